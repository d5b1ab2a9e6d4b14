package http

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"networth/internal/core"
	"networth/internal/csvio"
	applog "networth/internal/log"
	"networth/internal/storage"
)

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

type entryResponse struct {
	Date     string `json:"date"`
	Assets   string `json:"assets"`
	Debts    string `json:"debts"`
	NetWorth string `json:"net_worth"`
	Notes    string `json:"notes"`
}

func newEntryResponse(e core.Entry) entryResponse {
	return entryResponse{
		Date:     e.Key(),
		Assets:   e.Assets.Decimal().StringFixed(2),
		Debts:    e.Debts.Decimal().StringFixed(2),
		NetWorth: e.NetWorth().Decimal().StringFixed(2),
		Notes:    e.Notes,
	}
}

type entriesResponse struct {
	Entries []entryResponse `json:"entries"`
	Count   int             `json:"count"`
}

func newEntriesResponse(entries []core.Entry) entriesResponse {
	out := entriesResponse{Entries: make([]entryResponse, len(entries)), Count: len(entries)}
	for i, e := range entries {
		out.Entries[i] = newEntryResponse(e)
	}
	return out
}

// amount accepts a JSON number or string and keeps its text for the
// validator, which owns all amount parsing.
type amount string

func (a *amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*a = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = amount(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("amount must be a number or string: %w", err)
		}
		*a = amount(n.String())
	}
	return nil
}

type entryRequest struct {
	Date   string `json:"date"`
	Assets amount `json:"assets"`
	Debts  amount `json:"debts"`
	Notes  string `json:"notes"`
}

func (req entryRequest) input() core.EntryInput {
	return core.EntryInput{
		Date:   req.Date,
		Assets: string(req.Assets),
		Debts:  string(req.Debts),
		Notes:  req.Notes,
	}
}

const maxEntryBodyBytes = 64 << 10

func decodeEntryRequest(w http.ResponseWriter, r *http.Request) (entryRequest, error) {
	var req entryRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEntryBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return req, fmt.Errorf("decode request body: %w", err)
	}
	return req, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
}

// writeError maps domain errors to status codes. Anything unrecognised is
// logged and reported as a 500 without internal detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var entryErr *core.EntryError

	switch {
	case errors.As(err, &entryErr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: entryErr.Error(), Field: entryErr.Field})
	case errors.Is(err, storage.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "entry not found"})
	case errors.Is(err, csvio.ErrUnsupportedFile):
		writeJSON(w, http.StatusUnsupportedMediaType, errorResponse{Error: err.Error()})
	case errors.Is(err, csvio.ErrEmptyFile):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, csvio.ErrFileTooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: err.Error()})
	default:
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldError, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

// invalidRow reports whether err is an import stopped by a malformed or
// invalid row, as opposed to a storage failure.
func invalidRow(err error) (row int, field string, ok bool) {
	var importErr *csvio.ImportError
	if !errors.As(err, &importErr) {
		return 0, "", false
	}
	var entryErr *core.EntryError
	if errors.As(importErr.Err, &entryErr) {
		return importErr.Row, entryErr.Field, true
	}
	var parseErr *csv.ParseError
	if errors.As(importErr.Err, &parseErr) {
		return importErr.Row, "", true
	}
	return 0, "", false
}

// pathDate parses the {date} wildcard, reporting failures as a date
// validation error.
func pathDate(r *http.Request) (core.Date, error) {
	raw := strings.TrimSpace(r.PathValue("date"))
	d, err := core.ParseDate(raw)
	if err != nil {
		return core.Date{}, &core.EntryError{Field: core.FieldDate, Value: raw, Err: err}
	}
	return d, nil
}
