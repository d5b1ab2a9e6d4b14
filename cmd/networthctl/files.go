package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/subcommands"

	"networth/internal/core"
	"networth/internal/csvio"
	"networth/internal/services"
)

// importCmd holds the flags for the 'import' subcommand.
type importCmd struct {
	dryRun bool
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "import entries from a CSV file" }
func (*importCmd) Usage() string {
	return `networthctl import [-dry-run] <file.csv>

  Reads rows of date,assets,debts,notes and stores each one, overwriting
  entries for the same day. The first invalid row stops the import; rows
  before it stay stored.
`
}

func (c *importCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.dryRun, "dry-run", false, "Validate the file without storing anything.")
}

func (c *importCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "import takes exactly one file")
		return subcommands.ExitUsageError
	}
	name := f.Arg(0)

	svc, cfg, closeFn, err := openService(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		return subcommands.ExitFailure
	}
	defer closeFn()

	file, err := openImportFile(name, cfg.ImportMaxBytes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening %s: %v\n", name, err)
		return subcommands.ExitFailure
	}
	defer file.Close()

	res, err := runImport(ctx, svc, file, c.dryRun)
	var importErr *csvio.ImportError
	if errors.As(err, &importErr) {
		fmt.Fprintf(os.Stderr, "Row %d: %v\n", importErr.Row, importErr.Err)
		fmt.Fprintf(os.Stderr, "%d of %d rows read were imported before the error\n", res.Imported, res.Rows)
		return subcommands.ExitFailure
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error importing %s: %v\n", name, err)
		return subcommands.ExitFailure
	}

	if c.dryRun {
		fmt.Printf("%d rows are valid\n", res.Imported)
	} else {
		fmt.Printf("imported %d entries\n", res.Imported)
	}
	return subcommands.ExitSuccess
}

// openImportFile applies the upload gate to a local file.
func openImportFile(name string, limit int64) (*os.File, error) {
	info, err := os.Stat(name)
	if err != nil {
		return nil, err
	}
	if err := csvio.CheckFile(filepath.Base(name), info.Size(), limit); err != nil {
		return nil, err
	}
	return os.Open(name)
}

// runImport imports r, or only validates it when dryRun is set.
func runImport(ctx context.Context, svc *services.NetWorthService, r io.Reader, dryRun bool) (csvio.ImportResult, error) {
	if dryRun {
		return csvio.Import(ctx, r, func(context.Context, core.Entry) error { return nil })
	}
	return svc.Import(ctx, r)
}

// exportCmd holds the flags for the 'export' subcommand.
type exportCmd struct {
	output string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "export every entry to CSV" }
func (*exportCmd) Usage() string {
	return `networthctl export [-o <file>]

  Writes all entries, newest first. Without -o the file is named
  NetWorthExport_<today>.csv; "-o -" writes to standard output.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.output, "o", "", "Output file, or - for standard output.")
}

func (c *exportCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	svc, _, closeFn, err := openService(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		return subcommands.ExitFailure
	}
	defer closeFn()

	if c.output == "-" {
		if _, err := svc.Export(ctx, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error exporting: %v\n", err)
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	}

	name := c.output
	if name == "" {
		name = csvio.ExportFilename(time.Now())
	}
	out, err := os.Create(name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating %s: %v\n", name, err)
		return subcommands.ExitFailure
	}
	n, err := svc.Export(ctx, out)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error exporting: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("exported %d entries to %s\n", n, name)
	return subcommands.ExitSuccess
}
