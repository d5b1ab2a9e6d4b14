// Package aggregate derives chart series, table rows and growth-rate
// statistics from the full entry set.
package aggregate

import (
	"fmt"
	"math"
	"sort"

	"networth/internal/core"
)

// Rate is a growth rate expressed as a fraction (0.05 is 5%). Valid is
// false when the rate is not applicable.
type Rate struct {
	Value float64 `json:"value"`
	Valid bool    `json:"valid"`
}

// String renders the rate as a percentage or "N/A".
func (r Rate) String() string {
	if !r.Valid {
		return "N/A"
	}
	return fmt.Sprintf("%.2f%%", r.Value*100)
}

// Growth holds the compounded rates between the first and last entry.
type Growth struct {
	Days    int  `json:"days"`
	Daily   Rate `json:"daily"`
	Monthly Rate `json:"monthly"`
	Yearly  Rate `json:"yearly"`
}

// Series is chart data: parallel sequences in ascending date order.
type Series struct {
	Labels   []string  `json:"labels"`
	Assets   []float64 `json:"assets"`
	Debts    []float64 `json:"debts"`
	NetWorth []float64 `json:"net_worth"`
}

// Row is one table line, newest first.
type Row struct {
	Date     string `json:"date"`
	Assets   string `json:"assets"`
	Debts    string `json:"debts"`
	NetWorth string `json:"net_worth"`
	Notes    string `json:"notes"`
}

type Totals struct {
	Count    int    `json:"count"`
	Assets   string `json:"assets"`
	Debts    string `json:"debts"`
	NetWorth string `json:"net_worth"`
	First    string `json:"first,omitempty"`
	Last     string `json:"last,omitempty"`
}

// Overview is everything a presentation layer needs to render the store.
type Overview struct {
	Rows   []Row  `json:"rows"`
	Series Series `json:"series"`
	Growth Growth `json:"growth"`
	Totals Totals `json:"totals"`
}

// Build computes the overview of entries. The input order does not matter.
func Build(entries []core.Entry) Overview {
	asc := make([]core.Entry, len(entries))
	copy(asc, entries)
	sort.Slice(asc, func(i, j int) bool { return asc[i].Date.Before(asc[j].Date.Time) })

	ov := Overview{
		Rows: make([]Row, 0, len(asc)),
		Series: Series{
			Labels:   make([]string, 0, len(asc)),
			Assets:   make([]float64, 0, len(asc)),
			Debts:    make([]float64, 0, len(asc)),
			NetWorth: make([]float64, 0, len(asc)),
		},
		Growth: ComputeGrowth(asc),
		Totals: Totals{Count: len(asc)},
	}

	for _, e := range asc {
		ov.Series.Labels = append(ov.Series.Labels, e.Date.Label())
		ov.Series.Assets = append(ov.Series.Assets, e.Assets.Float())
		ov.Series.Debts = append(ov.Series.Debts, e.Debts.Float())
		ov.Series.NetWorth = append(ov.Series.NetWorth, e.NetWorth().Float())
	}
	for i := len(asc) - 1; i >= 0; i-- {
		e := asc[i]
		ov.Rows = append(ov.Rows, Row{
			Date:     e.Key(),
			Assets:   e.Assets.String(),
			Debts:    e.Debts.String(),
			NetWorth: e.NetWorth().String(),
			Notes:    e.Notes,
		})
	}

	if n := len(asc); n > 0 {
		latest := asc[n-1]
		ov.Totals.Assets = latest.Assets.String()
		ov.Totals.Debts = latest.Debts.String()
		ov.Totals.NetWorth = latest.NetWorth().String()
		ov.Totals.First = asc[0].Key()
		ov.Totals.Last = latest.Key()
	}
	return ov
}

// ComputeGrowth returns growth rates between the first and last entry of
// an ascending sequence. Fewer than two entries yield invalid rates.
func ComputeGrowth(asc []core.Entry) Growth {
	if len(asc) < 2 {
		return Growth{}
	}
	first, last := asc[0], asc[len(asc)-1]
	days := first.Date.DaysUntil(last.Date)
	if days <= 0 {
		return Growth{Days: days}
	}

	begin := first.NetWorth().Float()
	end := last.NetWorth().Float()
	ratio := end / begin

	daily := math.Pow(ratio, 1/float64(days)) - 1

	monthly := daily * 30
	if days >= 30 {
		monthly = math.Pow(ratio, 1/(float64(days)/30)) - 1
	}
	yearly := monthly * 12
	if days >= 365 {
		yearly = math.Pow(ratio, 1/(float64(days)/365)) - 1
	}

	dir := end - begin
	return Growth{
		Days:    days,
		Daily:   newRate(daily, dir),
		Monthly: newRate(monthly, dir),
		Yearly:  newRate(yearly, dir),
	}
}

// newRate forces the sign of v to match the direction of change. A
// non-finite v is reported as not applicable.
func newRate(v, dir float64) Rate {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Rate{}
	}
	switch {
	case dir > 0:
		v = math.Abs(v)
	case dir < 0:
		v = -math.Abs(v)
	}
	return Rate{Value: v, Valid: true}
}
