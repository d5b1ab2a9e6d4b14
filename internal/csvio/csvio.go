// Package csvio converts entries to and from the quoted comma-separated
// interchange format.
package csvio

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"networth/internal/core"
)

// MIMEType is the content type of exported files.
const MIMEType = "text/csv"

// DefaultMaxBytes is the largest file the import gate accepts by default.
const DefaultMaxBytes int64 = 10_000_000

var (
	ErrUnsupportedFile = errors.New("unsupported file type: expected .csv")
	ErrEmptyFile       = errors.New("file is empty")
	ErrFileTooLarge    = errors.New("file is too large")
)

// ExportFilename returns the download name for an export made at t.
func ExportFilename(t time.Time) string {
	return "NetWorthExport_" + t.Format(core.DateFormat) + ".csv"
}

// CheckFile gates an upload before it reaches Import. A limit <= 0 means
// DefaultMaxBytes.
func CheckFile(name string, size, limit int64) error {
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	if !strings.EqualFold(filepath.Ext(name), ".csv") {
		return fmt.Errorf("%w: %q", ErrUnsupportedFile, name)
	}
	if size <= 0 {
		return ErrEmptyFile
	}
	if size > limit {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, size, limit)
	}
	return nil
}

// Export writes one record per entry, every field double-quoted. Records
// are separated by a newline with none after the last.
func Export(w io.Writer, entries []core.Entry) error {
	bw := bufio.NewWriter(w)
	for i, e := range entries {
		if i > 0 {
			bw.WriteByte('\n')
		}
		fields := [4]string{e.Key(), e.Assets.String(), e.Debts.String(), e.Notes}
		for j, f := range fields {
			if j > 0 {
				bw.WriteByte(',')
			}
			bw.WriteByte('"')
			bw.WriteString(strings.ReplaceAll(f, `"`, `""`))
			bw.WriteByte('"')
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}

// Reader streams rows of an import file as four fields each.
type Reader struct {
	r   *csv.Reader
	row int
}

func NewReader(r io.Reader) *Reader {
	cr := csv.NewReader(bufio.NewReader(r))
	cr.FieldsPerRecord = -1
	// Older exports did not escape quotes inside notes.
	cr.LazyQuotes = true
	return &Reader{r: cr}
}

// Read returns the next row padded or truncated to date, assets, debts,
// notes. It returns io.EOF after the last row.
func (r *Reader) Read() (core.EntryInput, error) {
	rec, err := r.r.Read()
	if err != nil {
		return core.EntryInput{}, err
	}
	r.row++
	var f [4]string
	copy(f[:], rec)
	return core.EntryInput{Date: f[0], Assets: f[1], Debts: f[2], Notes: f[3]}, nil
}

// Row is the 1-based number of the last row returned by Read.
func (r *Reader) Row() int {
	return r.row
}

// ImportResult counts the rows read and stored by Import.
type ImportResult struct {
	Imported int `json:"imported"`
	Rows     int `json:"rows"`
}

// ImportError reports the row that stopped an import.
type ImportError struct {
	Row int
	Err error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("import row %d: %v", e.Row, e.Err)
}

func (e *ImportError) Unwrap() error {
	return e.Err
}

// PutFunc stores one validated entry.
type PutFunc func(ctx context.Context, e core.Entry) error

// Import validates and stores rows one at a time. The first row that fails
// stops the import; rows stored before it are kept.
func Import(ctx context.Context, r io.Reader, put PutFunc) (ImportResult, error) {
	var res ImportResult
	rd := NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		in, err := rd.Read()
		if err == io.EOF {
			return res, nil
		}
		if err != nil {
			return res, &ImportError{Row: rd.Row() + 1, Err: err}
		}
		res.Rows++

		e, err := in.Parse()
		if err != nil {
			return res, &ImportError{Row: rd.Row(), Err: err}
		}
		if err := put(ctx, e); err != nil {
			return res, &ImportError{Row: rd.Row(), Err: err}
		}
		res.Imported++
	}
}
