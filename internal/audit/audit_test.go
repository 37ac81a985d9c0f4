package audit

import (
	"context"
	"testing"
	"time"

	"github.com/helixbot/helix-poller/internal/models"
	"github.com/helixbot/helix-poller/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendList(t *testing.T) {
	ctx := context.Background()
	l := New(storage.NewMemoryStorage(), nil)
	base := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	tick := 0
	l.now = func() time.Time { tick++; return base.Add(time.Duration(tick) * time.Second) }

	first, err := l.Append(ctx, models.LogEntry{Action: "warn", Details: "user 1"})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, models.SeverityInfo, first.Severity)
	assert.Equal(t, Actor, first.Admin)

	l.Record(ctx, models.SeverityWarning, "ai_failed", "boom")

	entries, err := l.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "ai_failed", entries[0].Action)
	assert.Equal(t, models.SeverityWarning, entries[0].Severity)
	assert.Equal(t, first.ID, entries[1].ID)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	l := New(storage.NewMemoryStorage(), nil)
	l.Record(ctx, models.SeverityInfo, "a", "")

	require.NoError(t, l.Clear(ctx))

	entries, err := l.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
