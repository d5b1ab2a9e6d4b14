package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"networth/internal/amqp"
	"networth/internal/core"
	"networth/internal/csvio"
	"networth/internal/storage"
)

// EntryLister is the read side of the store the worker backs up.
type EntryLister interface {
	ListAll(ctx context.Context, order storage.Order) ([]core.Entry, error)
}

// BackupWorker writes the whole store as a CSV export into a directory,
// one file per day, rewritten on every change.
type BackupWorker struct {
	source EntryLister
	dir    string
	now    func() time.Time
}

func NewBackupWorker(source EntryLister, dir string) *BackupWorker {
	return &BackupWorker{
		source: source,
		dir:    dir,
		now:    time.Now,
	}
}

// HandleChangeMessage backs up the store after a change event.
func (w *BackupWorker) HandleChangeMessage(ctx context.Context, msg *amqp.EntryChangeMessage) error {
	slog.InfoContext(ctx, "Processing change message",
		"id", msg.ID,
		"kind", msg.Kind,
		"count", msg.Count)

	if _, err := w.Backup(ctx); err != nil {
		return fmt.Errorf("backup after %s: %w", msg.Kind, err)
	}
	return nil
}

// Backup writes today's backup file and returns its path. The file is
// replaced atomically so readers never see a partial export.
func (w *BackupWorker) Backup(ctx context.Context) (string, error) {
	entries, err := w.source.ListAll(ctx, storage.Descending)
	if err != nil {
		return "", fmt.Errorf("list entries: %w", err)
	}

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}

	path := filepath.Join(w.dir, csvio.ExportFilename(w.now()))
	tmp, err := os.CreateTemp(w.dir, ".backup-*.csv")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := csvio.Export(tmp, entries); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("rename backup: %w", err)
	}

	slog.InfoContext(ctx, "Backup written", "path", path, "count", len(entries))
	return path, nil
}

// RunPeriodic backs up on every tick until ctx is done. It catches changes
// whose messages were lost while the worker was down.
func (w *BackupWorker) RunPeriodic(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.Backup(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic backup failed", "error", err)
			}
		}
	}
}
