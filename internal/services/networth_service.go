package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"networth/internal/aggregate"
	"networth/internal/amqp"
	"networth/internal/core"
	"networth/internal/csvio"
	"networth/internal/log"
	"networth/internal/storage"
	"networth/internal/undo"
)

// ChangePublisher announces store mutations. *amqp.Client implements it.
type ChangePublisher interface {
	PublishEntryChange(ctx context.Context, msg *amqp.EntryChangeMessage) error
}

// NetWorthService is the session object: it owns the store handle, the
// undo buffer and the change publisher, and exposes one method per user
// command.
type NetWorthService struct {
	store     storage.Store
	undo      *undo.Buffer
	publisher ChangePublisher
	logger    *log.Logger
}

// NewNetWorthService wires a session. A nil publisher disables change
// events.
func NewNetWorthService(store storage.Store, publisher ChangePublisher) *NetWorthService {
	return &NetWorthService{
		store:     store,
		undo:      &undo.Buffer{},
		publisher: publisher,
		logger:    log.FromContext(context.Background()).WithComponent(log.ComponentNetWorth),
	}
}

// Save validates input and stores it. When editDate names a different day
// the old entry is moved to the new date in one transaction.
func (s *NetWorthService) Save(ctx context.Context, input core.EntryInput, editDate string) (core.Entry, error) {
	e, err := input.Parse()
	if err != nil {
		return core.Entry{}, err
	}

	var old core.Date
	moving := false
	if strings.TrimSpace(editDate) != "" {
		old, err = core.ParseDate(editDate)
		if err != nil {
			return core.Entry{}, &core.EntryError{Field: core.FieldDate, Value: editDate, Err: err}
		}
		moving = !old.Equal(e.Date)
	}

	dates := []string{e.Key()}
	if moving {
		if err := s.store.Replace(ctx, old, e); err != nil {
			return core.Entry{}, fmt.Errorf("move entry: %w", err)
		}
		dates = append(dates, old.String())
	} else if err := s.store.Put(ctx, e); err != nil {
		return core.Entry{}, fmt.Errorf("save entry: %w", err)
	}

	s.logger.InfoContext(ctx, "Entry saved",
		log.NewFields().WithOperation(log.OpSave).WithEntry(e.Key(), e.Assets.Cents, e.Debts.Cents).ToSlice()...)
	s.publish(ctx, amqp.NewEntryChangeMessage(amqp.ChangeSaved, dates...))
	return e, nil
}

// Get returns the entry for date or storage.ErrNotFound.
func (s *NetWorthService) Get(ctx context.Context, date core.Date) (core.Entry, error) {
	return s.store.Get(ctx, date)
}

func (s *NetWorthService) List(ctx context.Context, order storage.Order) ([]core.Entry, error) {
	entries, err := s.store.ListAll(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

// ListByAssets returns entries whose assets fall in [min, max]. Stores
// without a range index are filtered after a full scan.
func (s *NetWorthService) ListByAssets(ctx context.Context, min, max core.Money) ([]core.Entry, error) {
	if rr, ok := s.store.(storage.RangeReader); ok {
		return rr.ListByAssetsRange(ctx, min, max)
	}
	return s.filter(ctx, func(e core.Entry) bool {
		return e.Assets.Cents >= min.Cents && e.Assets.Cents <= max.Cents
	})
}

// ListByDebts returns entries whose debts fall in [min, max].
func (s *NetWorthService) ListByDebts(ctx context.Context, min, max core.Money) ([]core.Entry, error) {
	if rr, ok := s.store.(storage.RangeReader); ok {
		return rr.ListByDebtsRange(ctx, min, max)
	}
	return s.filter(ctx, func(e core.Entry) bool {
		return e.Debts.Cents >= min.Cents && e.Debts.Cents <= max.Cents
	})
}

func (s *NetWorthService) filter(ctx context.Context, keep func(core.Entry) bool) ([]core.Entry, error) {
	all, err := s.List(ctx, storage.Descending)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, e := range all {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

// Delete removes the entry for date and keeps it for Undo. Deleting a
// missing date succeeds and leaves the undo buffer alone.
func (s *NetWorthService) Delete(ctx context.Context, date core.Date) error {
	e, err := s.store.Get(ctx, date)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if err := s.store.Delete(ctx, date); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	s.undo.CaptureEntry(e)

	s.logger.InfoContext(ctx, "Entry deleted", log.FieldOperation, log.OpDelete, log.FieldDate, e.Key())
	s.publish(ctx, amqp.NewEntryChangeMessage(amqp.ChangeDeleted, e.Key()))
	return nil
}

// Clear removes every entry and keeps them all for Undo. It returns the
// number of entries removed.
func (s *NetWorthService) Clear(ctx context.Context) (int, error) {
	all, err := s.store.ListAll(ctx, storage.Descending)
	if err != nil {
		return 0, fmt.Errorf("clear entries: %w", err)
	}
	if err := s.store.Clear(ctx); err != nil {
		return 0, fmt.Errorf("clear entries: %w", err)
	}
	s.undo.CaptureAll(all)

	s.logger.InfoContext(ctx, "Entries cleared", log.FieldOperation, log.OpClear, log.FieldCount, len(all))
	s.publish(ctx, amqp.NewEntryChangeMessage(amqp.ChangeCleared).WithCount(len(all)))
	return len(all), nil
}

// Undo restores what the last Delete or Clear removed. It returns the
// number of entries restored, zero when there was nothing to undo.
func (s *NetWorthService) Undo(ctx context.Context) (int, error) {
	n, err := s.undo.Restore(ctx, s.store)
	if err != nil {
		return 0, fmt.Errorf("undo: %w", err)
	}
	if n == 0 {
		return 0, nil
	}

	s.logger.InfoContext(ctx, "Entries restored", log.FieldOperation, log.OpUndo, log.FieldCount, n)
	s.publish(ctx, amqp.NewEntryChangeMessage(amqp.ChangeRestored).WithCount(n))
	return n, nil
}

// CanUndo reports whether Undo would restore anything.
func (s *NetWorthService) CanUndo() bool {
	return !s.undo.Empty()
}

// Import stores the rows of a CSV file one by one. On a failing row the
// rows before it stay stored and the error is an *csvio.ImportError.
func (s *NetWorthService) Import(ctx context.Context, r io.Reader) (csvio.ImportResult, error) {
	res, err := csvio.Import(ctx, r, s.store.Put)

	fields := log.NewFields().WithOperation(log.OpImport).WithError(err)
	fields[log.FieldCount] = res.Imported
	if err != nil {
		s.logger.WarnContext(ctx, "Import stopped", fields.ToSlice()...)
	} else {
		s.logger.InfoContext(ctx, "Import finished", fields.ToSlice()...)
	}

	if res.Imported > 0 {
		s.publish(ctx, amqp.NewEntryChangeMessage(amqp.ChangeImported).WithCount(res.Imported))
	}
	return res, err
}

// Export writes every entry, newest first, and returns how many were
// written.
func (s *NetWorthService) Export(ctx context.Context, w io.Writer) (int, error) {
	entries, err := s.store.ListAll(ctx, storage.Descending)
	if err != nil {
		return 0, fmt.Errorf("export entries: %w", err)
	}
	if err := csvio.Export(w, entries); err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Overview rescans the store and recomputes the derived view.
func (s *NetWorthService) Overview(ctx context.Context) (aggregate.Overview, error) {
	entries, err := s.store.ListAll(ctx, storage.Ascending)
	if err != nil {
		return aggregate.Overview{}, fmt.Errorf("overview: %w", err)
	}
	return aggregate.Build(entries), nil
}

// Count returns the number of stored entries.
func (s *NetWorthService) Count(ctx context.Context) (int64, error) {
	if c, ok := s.store.(storage.Counter); ok {
		return c.Count(ctx)
	}
	entries, err := s.store.ListAll(ctx, storage.Ascending)
	if err != nil {
		return 0, err
	}
	return int64(len(entries)), nil
}

// Ping checks the store when it supports health checks.
func (s *NetWorthService) Ping(ctx context.Context) error {
	if p, ok := s.store.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (s *NetWorthService) publish(ctx context.Context, msg *amqp.EntryChangeMessage) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishEntryChange(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish change message",
			"kind", msg.Kind, log.FieldError, err)
	}
}

// Close closes the store and the publisher when it is closable.
func (s *NetWorthService) Close() error {
	var errs []error

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close networth service: %w", errors.Join(errs...))
	}
	return nil
}
