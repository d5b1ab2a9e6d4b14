package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"networth/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

var (
	_ Store       = (*SQLiteRepository)(nil)
	_ RangeReader = (*SQLiteRepository)(nil)
	_ Counter     = (*SQLiteRepository)(nil)
)

// NewSQLiteRepository opens (creating if needed) the database at dbPath and
// applies pending migrations. Failures wrap ErrStorageUnavailable.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("%w: create db directory: %v", ErrStorageUnavailable, err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlite database: %v", ErrStorageUnavailable, err)
	}
	// A single connection lets the engine serialize every transaction.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping database: %v", ErrStorageUnavailable, err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	slog.Info("SQLite store ready", "path", dbPath, "schema_version", version)

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database still answers.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// WithTx runs fn in a transaction, rolling back when fn fails.
func (r *SQLiteRepository) WithTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func upsertParams(e core.Entry) UpsertEntryParams {
	return UpsertEntryParams{
		Date:        e.Key(),
		AssetsCents: e.Assets.Cents,
		DebtsCents:  e.Debts.Cents,
		Notes:       e.Notes,
	}
}

// Put implements Store
func (r *SQLiteRepository) Put(ctx context.Context, e core.Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	err := r.WithTx(ctx, func(q *Queries) error {
		return q.UpsertEntry(ctx, upsertParams(e))
	})
	if err != nil {
		return fmt.Errorf("put entry %s: %w", e.Key(), err)
	}

	slog.DebugContext(ctx, "Entry saved to SQLite",
		"date", e.Key(),
		"assets_cents", e.Assets.Cents,
		"debts_cents", e.Debts.Cents)
	return nil
}

// Get implements Store
func (r *SQLiteRepository) Get(ctx context.Context, date core.Date) (core.Entry, error) {
	row, err := r.queries.GetEntry(ctx, date.String())
	if errors.Is(err, sql.ErrNoRows) {
		return core.Entry{}, ErrNotFound
	}
	if err != nil {
		return core.Entry{}, fmt.Errorf("get entry %s: %w", date, err)
	}
	return row.toEntry()
}

// Delete implements Store
func (r *SQLiteRepository) Delete(ctx context.Context, date core.Date) error {
	var removed int64
	err := r.WithTx(ctx, func(q *Queries) error {
		n, err := q.DeleteEntry(ctx, date.String())
		removed = n
		return err
	})
	if err != nil {
		return fmt.Errorf("delete entry %s: %w", date, err)
	}

	slog.DebugContext(ctx, "Entry deleted from SQLite", "date", date.String(), "removed", removed)
	return nil
}

// ListAll implements Store
func (r *SQLiteRepository) ListAll(ctx context.Context, order Order) ([]core.Entry, error) {
	rows, err := r.queries.ListEntries(ctx, order == Ascending)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return toEntries(rows)
}

// Clear implements Store
func (r *SQLiteRepository) Clear(ctx context.Context) error {
	var removed int64
	err := r.WithTx(ctx, func(q *Queries) error {
		n, err := q.DeleteAllEntries(ctx)
		removed = n
		return err
	})
	if err != nil {
		return fmt.Errorf("clear entries: %w", err)
	}

	slog.InfoContext(ctx, "All entries cleared from SQLite", "removed", removed)
	return nil
}

// Replace implements Store
func (r *SQLiteRepository) Replace(ctx context.Context, oldDate core.Date, e core.Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	err := r.WithTx(ctx, func(q *Queries) error {
		if !oldDate.Equal(e.Date) {
			if _, err := q.DeleteEntry(ctx, oldDate.String()); err != nil {
				return err
			}
		}
		return q.UpsertEntry(ctx, upsertParams(e))
	})
	if err != nil {
		return fmt.Errorf("replace entry %s with %s: %w", oldDate, e.Key(), err)
	}

	slog.DebugContext(ctx, "Entry moved in SQLite", "from", oldDate.String(), "to", e.Key())
	return nil
}

// PutAll implements Store
func (r *SQLiteRepository) PutAll(ctx context.Context, entries []core.Entry) error {
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return err
		}
	}
	err := r.WithTx(ctx, func(q *Queries) error {
		for _, e := range entries {
			if err := q.UpsertEntry(ctx, upsertParams(e)); err != nil {
				return fmt.Errorf("entry %s: %w", e.Key(), err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("put entries: %w", err)
	}

	slog.DebugContext(ctx, "Entries saved to SQLite", "count", len(entries))
	return nil
}

// ListByAssetsRange implements RangeReader using the assets index.
func (r *SQLiteRepository) ListByAssetsRange(ctx context.Context, min, max core.Money) ([]core.Entry, error) {
	rows, err := r.queries.ListEntriesByAssets(ctx, min.Cents, max.Cents)
	if err != nil {
		return nil, fmt.Errorf("list entries by assets: %w", err)
	}
	return toEntries(rows)
}

// ListByDebtsRange implements RangeReader using the debts index.
func (r *SQLiteRepository) ListByDebtsRange(ctx context.Context, min, max core.Money) ([]core.Entry, error) {
	rows, err := r.queries.ListEntriesByDebts(ctx, min.Cents, max.Cents)
	if err != nil {
		return nil, fmt.Errorf("list entries by debts: %w", err)
	}
	return toEntries(rows)
}

// Count returns the number of stored entries.
func (r *SQLiteRepository) Count(ctx context.Context) (int64, error) {
	n, err := r.queries.CountEntries(ctx)
	if err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

func toEntries(rows []EntryRow) ([]core.Entry, error) {
	entries := make([]core.Entry, 0, len(rows))
	for _, row := range rows {
		e, err := row.toEntry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}
