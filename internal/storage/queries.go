package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"networth/internal/core"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries holds the SQL statements of the entries table.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// EntryRow is the persisted shape of an entry.
type EntryRow struct {
	Date        string
	AssetsCents int64
	DebtsCents  int64
	Notes       string
	UpdatedAt   string
}

func (r EntryRow) toEntry() (core.Entry, error) {
	t, err := time.Parse(core.DateFormat, r.Date)
	if err != nil {
		return core.Entry{}, fmt.Errorf("corrupt entry key %q: %w", r.Date, err)
	}
	return core.Entry{
		Date:   core.DateOf(t),
		Assets: core.Money{Cents: r.AssetsCents},
		Debts:  core.Money{Cents: r.DebtsCents},
		Notes:  r.Notes,
	}, nil
}

const upsertEntry = `
INSERT INTO entries (date, assets_cents, debts_cents, notes, updated_at)
VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(date) DO UPDATE SET
    assets_cents = excluded.assets_cents,
    debts_cents  = excluded.debts_cents,
    notes        = excluded.notes,
    updated_at   = excluded.updated_at`

type UpsertEntryParams struct {
	Date        string
	AssetsCents int64
	DebtsCents  int64
	Notes       string
}

func (q *Queries) UpsertEntry(ctx context.Context, arg UpsertEntryParams) error {
	_, err := q.db.ExecContext(ctx, upsertEntry, arg.Date, arg.AssetsCents, arg.DebtsCents, arg.Notes)
	return err
}

const getEntry = `
SELECT date, assets_cents, debts_cents, notes, updated_at
FROM entries WHERE date = ?`

func (q *Queries) GetEntry(ctx context.Context, date string) (EntryRow, error) {
	var r EntryRow
	err := q.db.QueryRowContext(ctx, getEntry, date).
		Scan(&r.Date, &r.AssetsCents, &r.DebtsCents, &r.Notes, &r.UpdatedAt)
	return r, err
}

const deleteEntry = `DELETE FROM entries WHERE date = ?`

func (q *Queries) DeleteEntry(ctx context.Context, date string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteEntry, date)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteAllEntries = `DELETE FROM entries`

func (q *Queries) DeleteAllEntries(ctx context.Context) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteAllEntries)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const listEntriesAsc = `
SELECT date, assets_cents, debts_cents, notes, updated_at
FROM entries ORDER BY date ASC`

const listEntriesDesc = `
SELECT date, assets_cents, debts_cents, notes, updated_at
FROM entries ORDER BY date DESC`

func (q *Queries) ListEntries(ctx context.Context, ascending bool) ([]EntryRow, error) {
	query := listEntriesDesc
	if ascending {
		query = listEntriesAsc
	}
	return q.queryRows(ctx, query)
}

const listEntriesByAssets = `
SELECT date, assets_cents, debts_cents, notes, updated_at
FROM entries WHERE assets_cents BETWEEN ? AND ?
ORDER BY assets_cents ASC, date DESC`

func (q *Queries) ListEntriesByAssets(ctx context.Context, min, max int64) ([]EntryRow, error) {
	return q.queryRows(ctx, listEntriesByAssets, min, max)
}

const listEntriesByDebts = `
SELECT date, assets_cents, debts_cents, notes, updated_at
FROM entries WHERE debts_cents BETWEEN ? AND ?
ORDER BY debts_cents ASC, date DESC`

func (q *Queries) ListEntriesByDebts(ctx context.Context, min, max int64) ([]EntryRow, error) {
	return q.queryRows(ctx, listEntriesByDebts, min, max)
}

const countEntries = `SELECT COUNT(*) FROM entries`

func (q *Queries) CountEntries(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countEntries).Scan(&n)
	return n, err
}

func (q *Queries) queryRows(ctx context.Context, query string, args ...any) ([]EntryRow, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []EntryRow
	for rows.Next() {
		var r EntryRow
		if err := rows.Scan(&r.Date, &r.AssetsCents, &r.DebtsCents, &r.Notes, &r.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
