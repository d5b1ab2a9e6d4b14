package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"

	"networth/internal/core"
	"networth/internal/storage"
)

// addCmd holds the flags for the 'add' subcommand.
type addCmd struct {
	date   string
	assets string
	debts  string
	notes  string
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "record assets and debts for a day" }
func (*addCmd) Usage() string {
	return `networthctl add [-d <date>] -assets <amount> -debts <amount> [-notes <text>]

  Stores an entry. An existing entry for the same day is overwritten.
`
}

func (c *addCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", core.DateOf(time.Now()).String(), "Date of the entry.")
	f.StringVar(&c.assets, "assets", "", "Total assets, e.g. 12500 or $12,500.00.")
	f.StringVar(&c.debts, "debts", "", "Total debts.")
	f.StringVar(&c.notes, "notes", "", "Free-form notes.")
}

func (c *addCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	svc, _, closeFn, err := openService(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		return subcommands.ExitFailure
	}
	defer closeFn()

	e, err := svc.Save(ctx, core.EntryInput{Date: c.date, Assets: c.assets, Debts: c.debts, Notes: c.notes}, "")
	if err != nil {
		return reportEntryError(err)
	}
	printEntry(e)
	return subcommands.ExitSuccess
}

// editCmd changes an existing entry. Flags left unset keep their value.
type editCmd struct {
	addCmd
}

func (*editCmd) Name() string     { return "edit" }
func (*editCmd) Synopsis() string { return "change an existing entry" }
func (*editCmd) Usage() string {
	return `networthctl edit [-d <new date>] [-assets <amount>] [-debts <amount>] [-notes <text>] <date>

  Updates the entry for <date>. With -d the entry moves to the new date,
  replacing any entry already stored there.
`
}

func (c *editCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.date, "d", "", "New date of the entry.")
	f.StringVar(&c.assets, "assets", "", "Total assets.")
	f.StringVar(&c.debts, "debts", "", "Total debts.")
	f.StringVar(&c.notes, "notes", "", "Free-form notes.")
}

func (c *editCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "edit takes exactly one date")
		return subcommands.ExitUsageError
	}
	date, err := core.ParseDate(f.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing date %q: %v\n", f.Arg(0), err)
		return subcommands.ExitUsageError
	}

	svc, _, closeFn, err := openService(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		return subcommands.ExitFailure
	}
	defer closeFn()

	current, err := svc.Get(ctx, date)
	if errors.Is(err, storage.ErrNotFound) {
		fmt.Fprintf(os.Stderr, "No entry for %s\n", date)
		return subcommands.ExitFailure
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading entry: %v\n", err)
		return subcommands.ExitFailure
	}

	in := mergeInput(current, f, c.addCmd)
	e, err := svc.Save(ctx, in, date.String())
	if err != nil {
		return reportEntryError(err)
	}
	printEntry(e)
	return subcommands.ExitSuccess
}

// mergeInput overlays the flags set on the command line onto current.
func mergeInput(current core.Entry, f *flag.FlagSet, v addCmd) core.EntryInput {
	in := core.EntryInput{
		Date:   current.Key(),
		Assets: current.Assets.String(),
		Debts:  current.Debts.String(),
		Notes:  current.Notes,
	}
	f.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "d":
			in.Date = v.date
		case "assets":
			in.Assets = v.assets
		case "debts":
			in.Debts = v.debts
		case "notes":
			in.Notes = v.notes
		}
	})
	return in
}

func reportEntryError(err error) subcommands.ExitStatus {
	var entryErr *core.EntryError
	if errors.As(err, &entryErr) {
		fmt.Fprintf(os.Stderr, "Invalid %s %q: %v\n", entryErr.Field, entryErr.Value, entryErr.Err)
		return subcommands.ExitUsageError
	}
	fmt.Fprintf(os.Stderr, "Error saving entry: %v\n", err)
	return subcommands.ExitFailure
}

type rmCmd struct{}

func (*rmCmd) Name() string     { return "rm" }
func (*rmCmd) Synopsis() string { return "delete entries" }
func (*rmCmd) Usage() string {
	return `networthctl rm <date>...

  Deletes the entries for the given dates. Missing dates are ignored.
`
}

func (*rmCmd) SetFlags(*flag.FlagSet) {}

func (*rmCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "rm needs at least one date")
		return subcommands.ExitUsageError
	}
	dates := make([]core.Date, 0, f.NArg())
	for _, arg := range f.Args() {
		d, err := core.ParseDate(arg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error parsing date %q: %v\n", arg, err)
			return subcommands.ExitUsageError
		}
		dates = append(dates, d)
	}

	svc, _, closeFn, err := openService(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		return subcommands.ExitFailure
	}
	defer closeFn()

	for _, d := range dates {
		if err := svc.Delete(ctx, d); err != nil {
			fmt.Fprintf(os.Stderr, "Error deleting %s: %v\n", d, err)
			return subcommands.ExitFailure
		}
		fmt.Printf("deleted %s\n", d)
	}
	return subcommands.ExitSuccess
}

type showCmd struct{}

func (*showCmd) Name() string     { return "show" }
func (*showCmd) Synopsis() string { return "display one entry" }
func (*showCmd) Usage() string {
	return `networthctl show <date>
`
}

func (*showCmd) SetFlags(*flag.FlagSet) {}

func (*showCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "show takes exactly one date")
		return subcommands.ExitUsageError
	}
	d, err := core.ParseDate(f.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing date %q: %v\n", f.Arg(0), err)
		return subcommands.ExitUsageError
	}

	svc, _, closeFn, err := openService(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		return subcommands.ExitFailure
	}
	defer closeFn()

	e, err := svc.Get(ctx, d)
	if errors.Is(err, storage.ErrNotFound) {
		fmt.Fprintf(os.Stderr, "No entry for %s\n", d)
		return subcommands.ExitFailure
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading entry: %v\n", err)
		return subcommands.ExitFailure
	}
	printEntry(e)
	return subcommands.ExitSuccess
}

// listCmd holds the flags for the 'list' subcommand.
type listCmd struct {
	order     string
	assetsMin string
	assetsMax string
	debtsMin  string
	debtsMax  string
}

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "list entries" }
func (*listCmd) Usage() string {
	return `networthctl list [-order asc|desc] [-assets-min <amount>] [-assets-max <amount>]
                 [-debts-min <amount>] [-debts-max <amount>]

  Lists entries by date. With an assets or debts bound, lists the entries
  in that range ordered by the bounded amount.
`
}

func (c *listCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.order, "order", "desc", "Date order: asc or desc.")
	f.StringVar(&c.assetsMin, "assets-min", "", "Lowest assets amount to list.")
	f.StringVar(&c.assetsMax, "assets-max", "", "Highest assets amount to list.")
	f.StringVar(&c.debtsMin, "debts-min", "", "Lowest debts amount to list.")
	f.StringVar(&c.debtsMax, "debts-max", "", "Highest debts amount to list.")
}

// amountRange parses optional bounds. An unset bound is open.
func amountRange(minText, maxText string) (min, max core.Money, err error) {
	max = core.Money{Cents: math.MaxInt64}
	if minText != "" {
		if min, err = core.ParseAmount(minText); err != nil {
			return min, max, fmt.Errorf("min %q: %w", minText, err)
		}
	}
	if maxText != "" {
		if max, err = core.ParseAmount(maxText); err != nil {
			return min, max, fmt.Errorf("max %q: %w", maxText, err)
		}
	}
	return min, max, nil
}

func (c *listCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	byAssets := c.assetsMin != "" || c.assetsMax != ""
	byDebts := c.debtsMin != "" || c.debtsMax != ""
	if byAssets && byDebts {
		fmt.Fprintln(os.Stderr, "assets and debts bounds cannot be combined")
		return subcommands.ExitUsageError
	}

	svc, _, closeFn, err := openService(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		return subcommands.ExitFailure
	}
	defer closeFn()

	var entries []core.Entry
	switch {
	case byAssets:
		min, max, rerr := amountRange(c.assetsMin, c.assetsMax)
		if rerr != nil {
			fmt.Fprintf(os.Stderr, "Invalid assets bound: %v\n", rerr)
			return subcommands.ExitUsageError
		}
		entries, err = svc.ListByAssets(ctx, min, max)
	case byDebts:
		min, max, rerr := amountRange(c.debtsMin, c.debtsMax)
		if rerr != nil {
			fmt.Fprintf(os.Stderr, "Invalid debts bound: %v\n", rerr)
			return subcommands.ExitUsageError
		}
		entries, err = svc.ListByDebts(ctx, min, max)
	default:
		entries, err = svc.List(ctx, storage.ParseOrder(c.order))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing entries: %v\n", err)
		return subcommands.ExitFailure
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "DATE\tASSETS\tDEBTS\tNET WORTH\t NOTES")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t %s\n",
			e.Key(), e.Assets.Display(), e.Debts.Display(), e.NetWorth().Display(), e.Notes)
	}
	if err := w.Flush(); err != nil {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// clearCmd holds the flags for the 'clear' subcommand.
type clearCmd struct {
	yes bool
}

func (*clearCmd) Name() string     { return "clear" }
func (*clearCmd) Synopsis() string { return "delete every entry" }
func (*clearCmd) Usage() string {
	return `networthctl clear -yes

  Deletes all entries. Export first: the undo buffer does not outlive
  the command.
`
}

func (c *clearCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.yes, "yes", false, "Confirm deletion of every entry.")
}

func (c *clearCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !c.yes {
		fmt.Fprintln(os.Stderr, "refusing to clear without -yes")
		return subcommands.ExitUsageError
	}

	svc, _, closeFn, err := openService(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		return subcommands.ExitFailure
	}
	defer closeFn()

	n, err := svc.Clear(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error clearing entries: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("cleared %d entries\n", n)
	return subcommands.ExitSuccess
}
