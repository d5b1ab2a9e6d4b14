package core

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	ErrInvalidEntry  = errors.New("invalid entry")
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidAmount = errors.New("invalid amount")
)

// Field names reported by EntryError.
const (
	FieldDate   = "date"
	FieldAssets = "assets"
	FieldDebts  = "debts"
	FieldNotes  = "notes"
)

// EntryError describes which field of an input rejected validation.
// errors.Is reports true for both ErrInvalidEntry and the field cause.
type EntryError struct {
	Field string
	Value string
	Err   error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("invalid entry: %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *EntryError) Unwrap() []error {
	return []error{ErrInvalidEntry, e.Err}
}

// EntryInput is the raw, unvalidated form of an Entry as typed by a user
// or read from an import row.
type EntryInput struct {
	Date   string
	Assets string
	Debts  string
	Notes  string
}

// Parse validates every field and returns the sanitized Entry.
func (in EntryInput) Parse() (Entry, error) {
	date, err := ParseDate(in.Date)
	if err != nil {
		return Entry{}, &EntryError{Field: FieldDate, Value: in.Date, Err: err}
	}
	assets, err := ParseAmount(in.Assets)
	if err != nil {
		return Entry{}, &EntryError{Field: FieldAssets, Value: in.Assets, Err: err}
	}
	debts, err := ParseAmount(in.Debts)
	if err != nil {
		return Entry{}, &EntryError{Field: FieldDebts, Value: in.Debts, Err: err}
	}
	return Entry{
		Date:   date,
		Assets: assets,
		Debts:  debts,
		Notes:  StripMarkup(in.Notes),
	}, nil
}

// Validate checks an already typed entry before it reaches storage.
func (e Entry) Validate() error {
	if e.Date.IsZero() {
		return &EntryError{Field: FieldDate, Err: ErrInvalidDate}
	}
	if e.Assets.Cents < 0 {
		return &EntryError{Field: FieldAssets, Value: e.Assets.String(), Err: ErrInvalidAmount}
	}
	if e.Debts.Cents < 0 {
		return &EntryError{Field: FieldDebts, Value: e.Debts.String(), Err: ErrInvalidAmount}
	}
	return nil
}

// Accepted date layouts, tried in order. "2006-1-2" also matches
// zero-padded ISO dates.
var dateLayouts = []string{
	"2006-1-2",
	"2006/1/2",
	"1/2/2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
}

// ParseDate parses a calendar date. RFC 3339 timestamps are accepted and
// reduced to their UTC day.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, ErrInvalidDate
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), nil
		}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return DateOf(t.UTC()), nil
	}
	return Date{}, ErrInvalidDate
}

var (
	currencyPunctuation = strings.NewReplacer("$", "", ",", "")
	maxCents            = decimal.NewFromInt(math.MaxInt64)
)

// maxAmountDigits is the most integer digits an amount in major units can
// have and still fit in int64 cents.
const maxAmountDigits = 17

// ParseAmount converts user input to a non-negative amount.
//
// Currency punctuation ("$" and ",") is stripped, an empty field is zero,
// the sign is dropped and the value is rounded half-up to cents.
// Non-numeric input is rejected with ErrInvalidAmount.
func ParseAmount(s string) (Money, error) {
	s = strings.TrimSpace(currencyPunctuation.Replace(s))
	if s == "" {
		return Money{}, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, ErrInvalidAmount
	}
	if d.IsZero() {
		return Money{}, nil
	}
	// Bound the magnitude before rescaling: a short input such as "1e9999999"
	// would otherwise expand into a huge integer.
	switch magnitude := d.NumDigits() + int(d.Exponent()); {
	case magnitude > maxAmountDigits:
		return Money{}, ErrInvalidAmount
	case magnitude < -2:
		// Below half a cent.
		return Money{}, nil
	}
	cents := d.Abs().Shift(2).Round(0)
	if cents.GreaterThan(maxCents) {
		return Money{}, ErrInvalidAmount
	}
	return Money{Cents: cents.IntPart()}, nil
}

// StripMarkup returns the visible text content of s with all tags removed.
// Script and style bodies are dropped. Character references are decoded
// unless the decoded text would read as a tag or another reference, so
// StripMarkup(StripMarkup(s)) == StripMarkup(s).
func StripMarkup(s string) string {
	out := strings.TrimSpace(s)
	for strings.ContainsAny(out, "<&") {
		// Every pass that changes the text shortens it.
		next := stripOnce(out)
		if next == out {
			break
		}
		out = next
	}
	return out
}

func stripOnce(s string) string {
	var b strings.Builder
	skip := 0
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// io.EOF is the only error a strings.Reader can produce.
			return strings.TrimSpace(b.String())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if a := atom.Lookup(name); a != atom.Script && a != atom.Style {
				continue
			}
			if tt == html.StartTagToken {
				skip++
			} else if tt == html.EndTagToken && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				decodeReferences(&b, string(z.Raw()))
			}
		}
	}
}

// decodeReferences writes raw with its character references decoded. A
// reference stays encoded when decoding it would open a tag ("&lt;b") or
// another reference ("&amp;lt;").
func decodeReferences(b *strings.Builder, raw string) {
	for {
		i := strings.IndexByte(raw, '&')
		if i < 0 {
			b.WriteString(raw)
			return
		}
		b.WriteString(raw[:i])
		raw = raw[i:]

		end := strings.IndexByte(raw, ';')
		if end < 0 || end > maxReferenceLen {
			b.WriteByte('&')
			raw = raw[1:]
			continue
		}
		ref, rest := raw[:end+1], raw[end+1:]
		decoded := html.UnescapeString(ref)
		if decoded == ref || opensMarkup(decoded, rest) {
			b.WriteString(ref)
		} else {
			b.WriteString(decoded)
		}
		raw = rest
	}
}

// maxReferenceLen bounds the search for a reference's closing ';'.
const maxReferenceLen = 32

func opensMarkup(decoded, rest string) bool {
	if !strings.ContainsAny(decoded, "<&") {
		return false
	}
	if rest == "" {
		return false
	}
	c := rest[0]
	alnum := c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
	switch decoded[len(decoded)-1] {
	case '<':
		return alnum || c == '/' || c == '!' || c == '?'
	case '&':
		return alnum || c == '#'
	}
	return true
}
