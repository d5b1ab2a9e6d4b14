package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"

	"networth/internal/aggregate"
	"networth/internal/core"
	"networth/internal/storage"
)

// reportCmd holds the flags for the 'report' subcommand.
type reportCmd struct {
	rows int
	raw  bool
}

func (*reportCmd) Name() string     { return "report" }
func (*reportCmd) Synopsis() string { return "display a net worth overview" }
func (*reportCmd) Usage() string {
	return `networthctl report [-n <rows>] [-raw]

  Displays the latest totals, compounded growth rates and recent history.
`
}

func (c *reportCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.rows, "n", 12, "Number of history rows to show, 0 for all.")
	f.BoolVar(&c.raw, "raw", false, "Print Markdown without terminal styling.")
}

func (c *reportCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	svc, _, closeFn, err := openService(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		return subcommands.ExitFailure
	}
	defer closeFn()

	entries, err := svc.List(ctx, storage.Ascending)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing entries: %v\n", err)
		return subcommands.ExitFailure
	}

	md := reportMarkdown(entries, c.rows)
	if c.raw {
		fmt.Print(md)
		return subcommands.ExitSuccess
	}
	printMarkdown(md)
	return subcommands.ExitSuccess
}

// printMarkdown renders md for the terminal, falling back to plain text.
func printMarkdown(md string) {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err == nil {
		var out string
		if out, err = r.Render(md); err == nil {
			fmt.Print(out)
			return
		}
	}
	fmt.Print(md)
}

// reportMarkdown builds the overview document of entries, showing at most
// rows history lines (all when rows <= 0).
func reportMarkdown(entries []core.Entry, rows int) string {
	var b strings.Builder
	b.WriteString("# Net Worth Report\n\n")

	if len(entries) == 0 {
		b.WriteString("No entries recorded yet.\n")
		return b.String()
	}

	ov := aggregate.Build(entries)
	byDate := make(map[string]core.Entry, len(entries))
	for _, e := range entries {
		byDate[e.Key()] = e
	}
	latest := byDate[ov.Totals.Last]

	fmt.Fprintf(&b, "Latest entry on **%s**, %d entries since %s.\n\n",
		latest.Date.Label(), ov.Totals.Count, byDate[ov.Totals.First].Date.Label())

	b.WriteString("| | Amount |\n|:---|---:|\n")
	fmt.Fprintf(&b, "| Assets | %s |\n", latest.Assets.Display())
	fmt.Fprintf(&b, "| Debts | %s |\n", latest.Debts.Display())
	fmt.Fprintf(&b, "| **Net worth** | **%s** |\n\n", latest.NetWorth().Display())

	b.WriteString("## Growth\n\n")
	if ov.Growth.Days > 0 {
		fmt.Fprintf(&b, "Compounded over %d days.\n\n", ov.Growth.Days)
	}
	b.WriteString("| Period | Rate |\n|:---|---:|\n")
	fmt.Fprintf(&b, "| Daily | %s |\n", ov.Growth.Daily)
	fmt.Fprintf(&b, "| Monthly | %s |\n", ov.Growth.Monthly)
	fmt.Fprintf(&b, "| Yearly | %s |\n\n", ov.Growth.Yearly)

	b.WriteString("## History\n\n")
	b.WriteString("| Date | Assets | Debts | Net worth | Notes |\n|:---|---:|---:|---:|:---|\n")
	for i, row := range ov.Rows {
		if rows > 0 && i == rows {
			fmt.Fprintf(&b, "\n%d older entries not shown.\n", len(ov.Rows)-rows)
			break
		}
		e := byDate[row.Date]
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
			row.Date, e.Assets.Display(), e.Debts.Display(), e.NetWorth().Display(), escapeCell(e.Notes))
	}
	return b.String()
}

var cellEscaper = strings.NewReplacer("|", `\|`, "\n", " ", "\r", "")

func escapeCell(s string) string {
	return cellEscaper.Replace(s)
}
