package core

import (
	"errors"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"2024-05-01", "2024-05-01", true},
		{"2024-5-1", "2024-05-01", true},
		{" 2024-05-01 ", "2024-05-01", true},
		{"2024/05/01", "2024-05-01", true},
		{"5/1/2024", "2024-05-01", true},
		{"May 1, 2024", "2024-05-01", true},
		{"January 15, 2023", "2023-01-15", true},
		{"2024-05-01T23:30:00-02:00", "2024-05-02", true}, // reduced to UTC day
		{"not-a-date", "", false},
		{"2023-02-30", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseDate(tc.in)
		if tc.ok {
			if err != nil || got.String() != tc.out {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("%q expected ErrInvalidDate, got %v", tc.in, err)
		}
	}
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.23", 123, true},
		{"$1,234.56", 123456, true},
		{"-20", 2000, true}, // sign is dropped
		{"1.005", 101, true},
		{"12.344", 1234, true},
		{"", 0, true},
		{"  ", 0, true},
		{"abc", 0, false},
		{"12abc", 0, false},
		{"Infinity", 0, false},
		{"NaN", 0, false},
		{"1e30", 0, false},
		{"1e10000000", 0, false},
		{"0.0004", 0, true},
		{"1e-10000000", 0, true},
		{"0e10000000", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got.Cents != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got.Cents, err)
			}
		} else if !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("%q expected ErrInvalidAmount, got %v", tc.in, err)
		}
	}
}

func TestStripMarkup(t *testing.T) {
	cases := []struct{ in, out string }{
		{"", ""},
		{"plain text", "plain text"},
		{"<b>bold</b> move", "bold move"},
		{"<script>alert(1)</script>car loan", "car loan"},
		{"Tom &amp; Jerry", "Tom & Jerry"},
		{"1 < 2", "1 < 2"},
		{"<a href=\"x\">link</a>", "link"},
		{"1 &lt; 2", "1 < 2"},
		{"use &lt;b&gt; for bold", "use &lt;b> for bold"},
		{"&amp;lt;b&amp;gt;", "&amp;lt;b&amp;gt;"},
		{"&lt;&lt;b>>", "<&lt;b>>"},
		{"trailing &lt;", "trailing <"},
	}
	for _, tc := range cases {
		got := StripMarkup(tc.in)
		if got != tc.out {
			t.Fatalf("StripMarkup(%q) = %q, want %q", tc.in, got, tc.out)
		}
		if again := StripMarkup(got); again != got {
			t.Fatalf("StripMarkup(%q) = %q, not stable after a second pass (%q)", tc.in, again, got)
		}
	}
}

func TestParseAmountHugeExponentFailsFast(t *testing.T) {
	for _, in := range []string{"1e10000000", "9e999999999", "1e-999999999"} {
		start := time.Now()
		_, _ = ParseAmount(in)
		if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
			t.Fatalf("ParseAmount(%q) took %s", in, elapsed)
		}
	}
}

func TestEntryInputParse(t *testing.T) {
	e, err := EntryInput{Date: "2024-05-01", Assets: "$100", Debts: "-20", Notes: "<i>x</i>"}.Parse()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Key() != "2024-05-01" || e.Assets.Cents != 10000 || e.Debts.Cents != 2000 || e.Notes != "x" {
		t.Fatalf("unexpected entry: %+v", e)
	}
	if e.NetWorth().Cents != 8000 {
		t.Fatalf("net worth = %d, want 8000", e.NetWorth().Cents)
	}

	bads := []struct {
		in    EntryInput
		field string
	}{
		{EntryInput{Date: "not-a-date", Assets: "1"}, FieldDate},
		{EntryInput{Date: "2024-05-01", Assets: "abc"}, FieldAssets},
		{EntryInput{Date: "2024-05-01", Assets: "1", Debts: "x"}, FieldDebts},
	}
	for i, tc := range bads {
		_, err := tc.in.Parse()
		if !errors.Is(err, ErrInvalidEntry) {
			t.Fatalf("case %d expected ErrInvalidEntry, got %v", i, err)
		}
		var ee *EntryError
		if !errors.As(err, &ee) || ee.Field != tc.field {
			t.Fatalf("case %d expected field %s, got %v", i, tc.field, err)
		}
	}
}

func TestEntryValidate(t *testing.T) {
	if err := (Entry{Date: NewDate(2024, 1, 1)}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Entry{}).Validate(); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate for zero date, got %v", err)
	}
	if err := (Entry{Date: NewDate(2024, 1, 1), Debts: Money{Cents: -1}}).Validate(); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}
