// Package stats keeps the aggregate record of answered AI queries.
package stats

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/helixbot/helix-poller/internal/models"
	"github.com/helixbot/helix-poller/internal/storage"
	"go.uber.org/zap"
)

// Path is the shared store path of the stats document.
const Path = "aiStats"

// DefaultHistoryLimit caps how many records are retained.
const DefaultHistoryLimit = 100

// Recorder appends answered queries to the aiStats document.
type Recorder struct {
	store  storage.Storage
	limit  int
	logger *zap.Logger
	now    func() time.Time

	// serializes read-modify-write cycles within this process
	mu sync.Mutex
}

// NewRecorder returns a recorder keeping at most limit records (DefaultHistoryLimit when <= 0).
func NewRecorder(store storage.Storage, limit int, logger *zap.Logger) *Recorder {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{store: store, limit: limit, logger: logger, now: time.Now}
}

// Load reads the stats document; a missing document is empty.
func Load(ctx context.Context, store storage.Storage) (models.AIStats, error) {
	var st models.AIStats
	err := store.Get(ctx, Path, &st)
	if errors.Is(err, storage.ErrNotFound) {
		return models.AIStats{}, nil
	}
	if err != nil {
		return models.AIStats{}, fmt.Errorf("load stats: %w", err)
	}
	return st, nil
}

// Record prepends a new record, trims the history to the limit and
// increments the total, writing the document in one put.
func (r *Recorder) Record(ctx context.Context, query, response string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, err := Load(ctx, r.store)
	if err != nil {
		return err
	}

	rec := models.AiStat{
		ID:       uuid.NewString(),
		Query:    query,
		Response: response,
		Time:     r.now().UTC(),
	}
	history := make([]models.AiStat, 0, min(len(st.History)+1, r.limit))
	history = append(history, rec)
	for _, h := range st.History {
		if len(history) == r.limit {
			break
		}
		history = append(history, h)
	}
	st.History = history
	st.Total++

	if err := r.store.Put(ctx, Path, st); err != nil {
		return fmt.Errorf("save stats: %w", err)
	}
	r.logger.Debug("AI query recorded", zap.Int("total", st.Total), zap.Int("retained", len(st.History)))
	return nil
}

// Clear soft-deletes every retained record: they stop appearing in
// TopQuestions but the total is kept.
func (r *Recorder) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, err := Load(ctx, r.store)
	if err != nil {
		return err
	}
	if len(st.History) == 0 {
		return nil
	}
	fields := make(map[string]any, len(st.History))
	for i, h := range st.History {
		if !h.Cleared {
			fields[fmt.Sprintf("history/%d/cleared", i)] = true
		}
	}
	if len(fields) == 0 {
		return nil
	}
	if err := r.store.Update(ctx, Path, fields); err != nil {
		return fmt.Errorf("clear stats: %w", err)
	}
	return nil
}

// QuestionCount is one row of the top-questions report.
type QuestionCount struct {
	Query string `json:"query"`
	Count int    `json:"count"`
}

// TopQuestions groups non-cleared queries by their lowercased trimmed text
// and returns the most frequent ones. Ties keep first-seen order.
func TopQuestions(history []models.AiStat, limit int) []QuestionCount {
	idx := make(map[string]int)
	var out []QuestionCount
	for _, h := range history {
		if h.Cleared {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(h.Query))
		if key == "" {
			continue
		}
		if i, ok := idx[key]; ok {
			out[i].Count++
			continue
		}
		idx[key] = len(out)
		out = append(out, QuestionCount{Query: key, Count: 1})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
