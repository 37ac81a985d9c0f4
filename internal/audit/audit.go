// Package audit appends operator-visible log entries to the shared store.
package audit

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/helixbot/helix-poller/internal/models"
	"github.com/helixbot/helix-poller/internal/storage"
	"go.uber.org/zap"
)

// Path is the shared store path of the audit log.
const Path = "logs"

// Actor is the admin name used for entries written by the poller itself.
const Actor = models.DefaultBotName

// Log writes audit entries. Each entry is its own field under Path so
// concurrent writers never overwrite each other's entries.
type Log struct {
	store  storage.Storage
	logger *zap.Logger
	now    func() time.Time
}

func New(store storage.Storage, logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{store: store, logger: logger, now: time.Now}
}

// Append stores e, filling in the id and timestamp when they are empty.
func (l *Log) Append(ctx context.Context, e models.LogEntry) (models.LogEntry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = l.now().UTC()
	}
	if e.Severity == "" {
		e.Severity = models.SeverityInfo
	}
	if e.Admin == "" {
		e.Admin = Actor
	}
	if err := l.store.Put(ctx, Path+"/"+e.ID, e); err != nil {
		return e, fmt.Errorf("append audit entry: %w", err)
	}
	return e, nil
}

// Record appends an entry and only logs a failure; audit writes never stop
// message handling.
func (l *Log) Record(ctx context.Context, severity models.Severity, action, details string) {
	_, err := l.Append(ctx, models.LogEntry{Action: action, Details: details, Severity: severity})
	if err != nil {
		l.logger.Error("Failed to write audit entry", zap.String("action", action), zap.Error(err))
	}
}

// List returns all entries, newest first.
func (l *Log) List(ctx context.Context) ([]models.LogEntry, error) {
	var byID map[string]models.LogEntry
	err := l.store.Get(ctx, Path, &byID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load audit log: %w", err)
	}
	out := make([]models.LogEntry, 0, len(byID))
	for _, e := range byID {
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, nil
}

// Clear removes every entry.
func (l *Log) Clear(ctx context.Context) error {
	if err := l.store.Delete(ctx, Path); err != nil {
		return fmt.Errorf("clear audit log: %w", err)
	}
	return nil
}
