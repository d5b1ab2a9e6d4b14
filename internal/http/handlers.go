package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"networth/internal/aggregate"
	"networth/internal/csvio"
	applog "networth/internal/log"
	"networth/internal/storage"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

type readyResponse struct {
	Status  string `json:"status"`
	Entries int64  `json:"entries"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	err := s.svc.Ping(ctx)
	var count int64
	if err == nil {
		count, err = s.svc.Count(ctx)
	}
	if err != nil {
		applog.FromContext(ctx).WarnContext(ctx, "Readiness check failed", applog.FieldError, err)
		writeJSON(w, http.StatusServiceUnavailable, readyResponse{
			Status: "not ready",
			Error:  "storage unavailable",
		})
		return
	}
	writeJSON(w, http.StatusOK, readyResponse{Status: "ready", Entries: count})
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	order := storage.ParseOrder(r.URL.Query().Get("order"))
	key := "list:" + order.String()

	entries, ok := s.listCache.Get(key)
	if !ok {
		var err error
		entries, err = s.svc.List(r.Context(), order)
		if err != nil {
			writeError(w, r, err)
			return
		}
		s.listCache.Set(key, entries)
	}
	writeJSON(w, http.StatusOK, newEntriesResponse(entries))
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	date, err := pathDate(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	e, err := s.svc.Get(r.Context(), date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newEntryResponse(e))
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	req, err := decodeEntryRequest(w, r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	e, err := s.svc.Save(r.Context(), req.input(), "")
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/entries/"+e.Key())
	writeJSON(w, http.StatusCreated, newEntryResponse(e))
}

// handleSaveEntry stores the entry at the path date. A body date naming a
// different day moves the entry there.
func (s *Server) handleSaveEntry(w http.ResponseWriter, r *http.Request) {
	date, err := pathDate(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req, err := decodeEntryRequest(w, r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	in := req.input()
	if in.Date == "" {
		in.Date = date.String()
	}

	e, err := s.svc.Save(r.Context(), in, date.String())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newEntryResponse(e))
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	date, err := pathDate(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.Delete(r.Context(), date); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.Clear(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"cleared": n})
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.Undo(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"restored": n})
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	const key = "overview"

	ov, ok := s.overviewCache.Get(key)
	if !ok {
		var err error
		ov, err = s.svc.Overview(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		s.overviewCache.Set(key, ov)
	}
	writeJSON(w, http.StatusOK, overviewResponse(ov))
}

// overviewResponse makes sure empty stores serialize as empty arrays.
func overviewResponse(ov aggregate.Overview) aggregate.Overview {
	if ov.Rows == nil {
		ov.Rows = []aggregate.Row{}
	}
	if ov.Series.Labels == nil {
		ov.Series = aggregate.Series{
			Labels:   []string{},
			Assets:   []float64{},
			Debts:    []float64{},
			NetWorth: []float64{},
		}
	}
	return ov
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	// Buffered so a storage failure can still be reported as JSON.
	var buf bytes.Buffer
	n, err := s.svc.Export(r.Context(), &buf)
	if err != nil {
		writeError(w, r, err)
		return
	}

	name := csvio.ExportFilename(time.Now())
	w.Header().Set("Content-Type", csvio.MIMEType+"; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)

	applog.FromContext(r.Context()).InfoContext(r.Context(), "Entries exported",
		applog.FieldOperation, applog.OpExport,
		applog.FieldCount, n,
		applog.FieldFile, name)
}

type importResponse struct {
	Imported int    `json:"imported"`
	Rows     int    `json:"rows"`
	Error    string `json:"error,omitempty"`
	Row      int    `json:"row,omitempty"`
	Field    string `json:"field,omitempty"`
}

// handleImport reads the multipart "file" part through the upload gate and
// imports it row by row.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.importMaxBytes+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, r, fmt.Errorf("%w: request exceeds %d bytes", csvio.ErrFileTooLarge, s.importMaxBytes))
		case errors.Is(err, http.ErrMissingFile):
			writeBadRequest(w, errors.New(`missing multipart field "file"`))
		default:
			writeBadRequest(w, fmt.Errorf("read upload: %w", err))
		}
		return
	}
	defer file.Close()

	if err := csvio.CheckFile(header.Filename, header.Size, s.importMaxBytes); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := s.svc.Import(r.Context(), file)
	if err != nil {
		if row, field, ok := invalidRow(err); ok {
			writeJSON(w, http.StatusUnprocessableEntity, importResponse{
				Imported: res.Imported,
				Rows:     res.Rows,
				Error:    err.Error(),
				Row:      row,
				Field:    field,
			})
			return
		}
		writeError(w, r, err)
		return
	}

	applog.FromContext(r.Context()).InfoContext(r.Context(), "Entries imported",
		applog.FieldOperation, applog.OpImport,
		applog.FieldCount, res.Imported,
		applog.FieldFile, header.Filename)
	writeJSON(w, http.StatusOK, importResponse{Imported: res.Imported, Rows: res.Rows})
}
