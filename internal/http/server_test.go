package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"networth/internal/services"
	"networth/internal/storage/memory"
)

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	svc := services.NewNetWorthService(memory.New(), nil)
	s := NewServer(":0", svc, opts)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	rr := httptest.NewRecorder()
	s.Handler.ServeHTTP(rr, r)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func upload(t *testing.T, s *Server, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(content))
	mw.Close()

	r := httptest.NewRequest(http.MethodPost, "/api/import", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	s.Handler.ServeHTTP(rr, r)
	return rr
}

func TestHealthAndReady(t *testing.T) {
	s := newTestServer(t, Options{})

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, s, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Errorf("%s: status %d", path, rr.Code)
		}
		if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
			t.Errorf("%s: content type %q", path, ct)
		}
	}
}

func TestReadyReportsEntryCount(t *testing.T) {
	s := newTestServer(t, Options{})
	body := `{"date":"2024-01-01","assets":"1","debts":"0"}`
	if rr := do(t, s, http.MethodPost, "/api/entries", body); rr.Code != http.StatusCreated {
		t.Fatalf("create: status %d", rr.Code)
	}

	got := decode[readyResponse](t, do(t, s, http.MethodGet, "/readyz", ""))
	if got.Status != "ready" || got.Entries != 1 {
		t.Errorf("readyz = %+v", got)
	}
}

func TestMiddlewareHeaders(t *testing.T) {
	s := newTestServer(t, Options{})
	rr := do(t, s, http.MethodGet, "/api/entries", "")

	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security headers")
	}
}

func TestCreateGetList(t *testing.T) {
	s := newTestServer(t, Options{})

	rr := do(t, s, http.MethodPost, "/api/entries", `{"date":"2024-01-01","assets":"$1,000.50","debts":200,"notes":"<b>start</b>"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: status %d, body %s", rr.Code, rr.Body)
	}
	if loc := rr.Header().Get("Location"); loc != "/api/entries/2024-01-01" {
		t.Errorf("Location = %q", loc)
	}
	created := decode[entryResponse](t, rr)
	want := entryResponse{Date: "2024-01-01", Assets: "1000.50", Debts: "200.00", NetWorth: "800.50", Notes: "start"}
	if created != want {
		t.Errorf("created = %+v, want %+v", created, want)
	}

	do(t, s, http.MethodPost, "/api/entries", `{"date":"2024-02-01","assets":"10","debts":"0"}`)

	rr = do(t, s, http.MethodGet, "/api/entries/2024-01-01", "")
	if rr.Code != http.StatusOK || decode[entryResponse](t, rr) != want {
		t.Errorf("get: status %d, body %s", rr.Code, rr.Body)
	}

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"2024-02-01", "2024-01-01"}},
		{"?order=desc", []string{"2024-02-01", "2024-01-01"}},
		{"?order=asc", []string{"2024-01-01", "2024-02-01"}},
	}
	for _, tt := range tests {
		rr := do(t, s, http.MethodGet, "/api/entries"+tt.query, "")
		list := decode[entriesResponse](t, rr)
		if list.Count != len(tt.want) {
			t.Fatalf("%q: count %d", tt.query, list.Count)
		}
		for i, d := range tt.want {
			if list.Entries[i].Date != d {
				t.Errorf("%q: entry %d = %s, want %s", tt.query, i, list.Entries[i].Date, d)
			}
		}
	}
}

func TestGetErrors(t *testing.T) {
	s := newTestServer(t, Options{})

	tests := []struct {
		path   string
		status int
	}{
		{"/api/entries/2024-01-01", http.StatusNotFound},
		{"/api/entries/not-a-date", http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		rr := do(t, s, http.MethodGet, tt.path, "")
		if rr.Code != tt.status {
			t.Errorf("%s: status %d, want %d", tt.path, rr.Code, tt.status)
		}
	}
}

func TestSaveValidation(t *testing.T) {
	s := newTestServer(t, Options{})

	tests := []struct {
		name      string
		body      string
		status    int
		wantField string
	}{
		{"bad assets", `{"date":"2024-01-01","assets":"abc","debts":"0"}`, http.StatusUnprocessableEntity, "assets"},
		{"bad debts", `{"date":"2024-01-01","assets":"1","debts":"1x"}`, http.StatusUnprocessableEntity, "debts"},
		{"missing date", `{"assets":"1","debts":"0"}`, http.StatusUnprocessableEntity, "date"},
		{"malformed json", `{"date":`, http.StatusBadRequest, ""},
		{"unknown field", `{"date":"2024-01-01","cash":1}`, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, s, http.MethodPost, "/api/entries", tt.body)
			if rr.Code != tt.status {
				t.Fatalf("status %d, want %d: %s", rr.Code, tt.status, rr.Body)
			}
			if got := decode[errorResponse](t, rr); got.Field != tt.wantField {
				t.Errorf("field = %q, want %q", got.Field, tt.wantField)
			}
		})
	}

	if list := decode[entriesResponse](t, do(t, s, http.MethodGet, "/api/entries", "")); list.Count != 0 {
		t.Errorf("invalid saves stored %d entries", list.Count)
	}
}

func TestPutMovesEntry(t *testing.T) {
	s := newTestServer(t, Options{})
	do(t, s, http.MethodPost, "/api/entries", `{"date":"2024-01-01","assets":"100","debts":"0","notes":"n"}`)

	// Without a body date the path date is kept.
	rr := do(t, s, http.MethodPut, "/api/entries/2024-01-01", `{"assets":"150","debts":"0"}`)
	if rr.Code != http.StatusOK || decode[entryResponse](t, rr).Assets != "150.00" {
		t.Fatalf("overwrite: status %d, body %s", rr.Code, rr.Body)
	}

	rr = do(t, s, http.MethodPut, "/api/entries/2024-01-01", `{"date":"2024-01-05","assets":"200","debts":"0"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("move: status %d, body %s", rr.Code, rr.Body)
	}
	if rr := do(t, s, http.MethodGet, "/api/entries/2024-01-01", ""); rr.Code != http.StatusNotFound {
		t.Errorf("old date still present: %d", rr.Code)
	}
	list := decode[entriesResponse](t, do(t, s, http.MethodGet, "/api/entries", ""))
	if list.Count != 1 || list.Entries[0].Date != "2024-01-05" {
		t.Errorf("after move = %+v", list)
	}
}

func TestDeleteClearUndo(t *testing.T) {
	s := newTestServer(t, Options{})
	do(t, s, http.MethodPost, "/api/entries", `{"date":"2024-01-01","assets":"1","debts":"0"}`)
	do(t, s, http.MethodPost, "/api/entries", `{"date":"2024-01-02","assets":"2","debts":"0"}`)

	for i := 0; i < 2; i++ {
		if rr := do(t, s, http.MethodDelete, "/api/entries/2024-01-01", ""); rr.Code != http.StatusNoContent {
			t.Fatalf("delete #%d: status %d", i+1, rr.Code)
		}
	}

	rr := do(t, s, http.MethodPost, "/api/undo", "")
	if got := decode[map[string]int](t, rr); got["restored"] != 1 {
		t.Fatalf("undo delete = %v", got)
	}

	rr = do(t, s, http.MethodPost, "/api/entries/clear", "")
	if got := decode[map[string]int](t, rr); got["cleared"] != 2 {
		t.Fatalf("clear = %v", got)
	}
	if list := decode[entriesResponse](t, do(t, s, http.MethodGet, "/api/entries", "")); list.Count != 0 {
		t.Fatalf("after clear count = %d", list.Count)
	}

	rr = do(t, s, http.MethodPost, "/api/undo", "")
	if got := decode[map[string]int](t, rr); got["restored"] != 2 {
		t.Fatalf("undo clear = %v", got)
	}
	rr = do(t, s, http.MethodPost, "/api/undo", "")
	if got := decode[map[string]int](t, rr); got["restored"] != 0 {
		t.Fatalf("second undo = %v", got)
	}
}

func TestOverviewFollowsWrites(t *testing.T) {
	s := newTestServer(t, Options{})

	rr := do(t, s, http.MethodGet, "/api/overview", "")
	if !strings.Contains(rr.Body.String(), `"rows":[]`) {
		t.Errorf("empty overview should have empty rows: %s", rr.Body)
	}

	do(t, s, http.MethodPost, "/api/entries", `{"date":"2024-01-01","assets":"1000","debts":"0"}`)
	do(t, s, http.MethodPost, "/api/entries", `{"date":"2024-01-11","assets":"500","debts":"0"}`)

	var ov struct {
		Totals struct {
			Count int `json:"count"`
		} `json:"totals"`
		Growth struct {
			Days  int `json:"days"`
			Daily struct {
				Value float64 `json:"value"`
				Valid bool    `json:"valid"`
			} `json:"daily"`
		} `json:"growth"`
	}
	rr = do(t, s, http.MethodGet, "/api/overview", "")
	if err := json.Unmarshal(rr.Body.Bytes(), &ov); err != nil {
		t.Fatal(err)
	}
	if ov.Totals.Count != 2 || ov.Growth.Days != 10 {
		t.Fatalf("overview not refreshed: %s", rr.Body)
	}
	if !ov.Growth.Daily.Valid || ov.Growth.Daily.Value >= 0 {
		t.Errorf("daily rate should be negative: %+v", ov.Growth.Daily)
	}
}

func TestExport(t *testing.T) {
	s := newTestServer(t, Options{})
	do(t, s, http.MethodPost, "/api/entries", `{"date":"2024-01-01","assets":"1","debts":"0","notes":"a \"q\", b"}`)
	do(t, s, http.MethodPost, "/api/entries", `{"date":"2024-01-02","assets":"2.5","debts":"1"}`)

	rr := do(t, s, http.MethodGet, "/api/export", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("Content-Type = %q", ct)
	}
	cd := rr.Header().Get("Content-Disposition")
	if !strings.HasPrefix(cd, `attachment; filename="NetWorthExport_`) || !strings.HasSuffix(cd, `.csv"`) {
		t.Errorf("Content-Disposition = %q", cd)
	}
	want := `"2024-01-02","2.5","1",""` + "\n" + `"2024-01-01","1","0","a ""q"", b"`
	if rr.Body.String() != want {
		t.Errorf("body = %q, want %q", rr.Body.String(), want)
	}
}

func TestImport(t *testing.T) {
	tests := []struct {
		name         string
		filename     string
		content      string
		status       int
		wantImported int
		wantRow      int
	}{
		{"valid", "data.csv", "2024-01-01,100,10,a\n2024-01-02,200,20,b\n", http.StatusOK, 2, 0},
		{"upper case extension", "DATA.CSV", "2024-01-01,100,10,a\n", http.StatusOK, 1, 0},
		{"invalid row", "data.csv", "2024-01-01,100,10,a\nnope,1,1,\n2024-01-03,1,1,\n", http.StatusUnprocessableEntity, 1, 2},
		{"wrong extension", "data.txt", "2024-01-01,1,1,", http.StatusUnsupportedMediaType, 0, 0},
		{"empty file", "data.csv", "", http.StatusBadRequest, 0, 0},
		{"too large", "data.csv", strings.Repeat("2024-01-01,1,1,x\n", 10), http.StatusRequestEntityTooLarge, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, Options{ImportMaxBytes: 100})
			rr := upload(t, s, tt.filename, tt.content)
			if rr.Code != tt.status {
				t.Fatalf("status %d, want %d: %s", rr.Code, tt.status, rr.Body)
			}
			if tt.status == http.StatusOK || tt.status == http.StatusUnprocessableEntity {
				got := decode[importResponse](t, rr)
				if got.Imported != tt.wantImported || got.Row != tt.wantRow {
					t.Errorf("response = %+v", got)
				}
			}
			list := decode[entriesResponse](t, do(t, s, http.MethodGet, "/api/entries", ""))
			if list.Count != tt.wantImported {
				t.Errorf("stored %d entries, want %d", list.Count, tt.wantImported)
			}
		})
	}
}

func TestImportMissingFile(t *testing.T) {
	s := newTestServer(t, Options{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("other", "x")
	mw.Close()

	r := httptest.NewRequest(http.MethodPost, "/api/import", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	s.Handler.ServeHTTP(rr, r)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status %d, want 400", rr.Code)
	}
}

func TestRateLimitOnMutations(t *testing.T) {
	s := newTestServer(t, Options{RequestsPerMinute: 1})

	body := `{"date":"2024-01-01","assets":"1","debts":"0"}`
	if rr := do(t, s, http.MethodPost, "/api/entries", body); rr.Code != http.StatusCreated {
		t.Fatalf("first: status %d", rr.Code)
	}
	rr := do(t, s, http.MethodPost, "/api/entries", body)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second: status %d", rr.Code)
	}
	if secs, err := strconv.Atoi(rr.Header().Get("Retry-After")); err != nil || secs < 1 || secs > 60 {
		t.Errorf("Retry-After = %q, want 1..60 seconds", rr.Header().Get("Retry-After"))
	}
	// Reads are not limited.
	for i := 0; i < 3; i++ {
		if rr := do(t, s, http.MethodGet, "/api/entries", ""); rr.Code != http.StatusOK {
			t.Fatalf("read %d: status %d", i+1, rr.Code)
		}
	}
}

func TestRateLimitImportsSeparately(t *testing.T) {
	s := newTestServer(t, Options{RequestsPerMinute: 5, ImportsPerMinute: 1})

	if rr := upload(t, s, "data.csv", "2024-01-01,100,10,a\n"); rr.Code != http.StatusOK {
		t.Fatalf("first import: status %d", rr.Code)
	}
	if rr := upload(t, s, "data.csv", "2024-01-02,100,10,a\n"); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second import: status %d", rr.Code)
	}
	body := `{"date":"2024-02-01","assets":"1","debts":"0"}`
	if rr := do(t, s, http.MethodPost, "/api/entries", body); rr.Code != http.StatusCreated {
		t.Fatalf("write after import limit: status %d", rr.Code)
	}
}
