package core

import (
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// DateFormat is the ISO-8601 layout used for entry keys and exports.
const DateFormat = "2006-01-02"

// Currency is the display currency for all amounts.
const Currency = money.USD

type (
	// Date is a calendar day at midnight UTC.
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Entry is one dated net-worth snapshot. Date is the primary key.
	Entry struct {
		Date   Date
		Assets Money
		Debts  Money
		Notes  string
	}
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// String returns the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(DateFormat)
}

// Label returns the human readable form used for chart axes.
func (d Date) Label() string {
	return d.Format("Jan 2, 2006")
}

// DaysUntil returns the whole number of days from d to other.
func (d Date) DaysUntil(other Date) int {
	return int(other.Sub(d.Time).Hours() / 24)
}

// Equal reports whether both dates denote the same day.
func (d Date) Equal(other Date) bool {
	return d.Time.Equal(other.Time)
}

// Decimal returns the amount in major units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String returns the amount as a plain number without currency symbol,
// trailing zeros trimmed ("1234.5", "1000").
func (m Money) String() string {
	return m.Decimal().String()
}

// Float returns the amount in major units as float64, for charting and rates.
func (m Money) Float() float64 {
	return float64(m.Cents) / 100.0
}

// Display formats the amount in the display currency, e.g. "$1,234.50".
func (m Money) Display() string {
	return money.New(m.Cents, Currency).Display()
}

// Sub returns m - n.
func (m Money) Sub(n Money) Money {
	return Money{Cents: m.Cents - n.Cents}
}

// NetWorth is assets minus debts. It is derived and never stored.
func (e Entry) NetWorth() Money {
	return e.Assets.Sub(e.Debts)
}

// Key is the storage key of the entry.
func (e Entry) Key() string {
	return e.Date.String()
}
