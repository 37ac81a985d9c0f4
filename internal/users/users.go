// Package users tracks community members and the chats they write in.
package users

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/helixbot/helix-poller/internal/models"
	"github.com/helixbot/helix-poller/internal/storage"
	"go.uber.org/zap"
)

// Tracker records member activity in the shared store.
type Tracker struct {
	store        storage.Storage
	historyLimit int
	logger       *zap.Logger
	now          func() time.Time
}

// NewTracker creates a tracker. A historyLimit of zero keeps the full history.
func NewTracker(store storage.Storage, historyLimit int, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{store: store, historyLimit: historyLimit, logger: logger, now: time.Now}
}

// Inbound describes one message received from a member.
type Inbound struct {
	UserID   int64
	Name     string
	Username string

	ChatID    int64
	ChatTitle string
	ChatType  string

	Message models.Message
}

func userPath(id int64) string {
	return "users/" + strconv.FormatInt(id, 10)
}

// Get loads one member.
func (t *Tracker) Get(ctx context.Context, id int64) (models.User, error) {
	var u models.User
	if err := t.store.Get(ctx, userPath(id), &u); err != nil {
		return models.User{}, err
	}
	return u, nil
}

// List loads every tracked member keyed by id.
func (t *Tracker) List(ctx context.Context) (map[string]models.User, error) {
	var all map[string]models.User
	err := t.store.Get(ctx, "users", &all)
	if errors.Is(err, storage.ErrNotFound) {
		return map[string]models.User{}, nil
	}
	return all, err
}

// RecordInbound creates the member on first sight, otherwise appends the
// message and bumps the counters in one multi-path update. Platform service
// accounts are not tracked.
func (t *Tracker) RecordInbound(ctx context.Context, in Inbound) error {
	now := t.now()
	if in.Message.Timestamp.IsZero() {
		in.Message.Timestamp = now
	}
	if in.Message.Direction == "" {
		in.Message.Direction = models.DirectionIn
	}

	if in.ChatType == "group" || in.ChatType == "supergroup" {
		if err := t.recordGroup(ctx, in, now); err != nil {
			t.logger.Warn("Failed to record group", zap.Int64("chat_id", in.ChatID), zap.Error(err))
		}
	}

	if !models.IsHumanFacing(in.UserID) {
		return nil
	}

	u, err := t.Get(ctx, in.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		u = models.User{
			ID:            in.UserID,
			Name:          in.Name,
			Username:      in.Username,
			Status:        models.StatusActive,
			Role:          models.RoleUser,
			MsgCount:      1,
			DailyMsgCount: 1,
			UnreadCount:   1,
			LastSeen:      now,
			History:       []models.Message{in.Message},
		}
		if err := t.store.Put(ctx, userPath(in.UserID), u); err != nil {
			return fmt.Errorf("create user %d: %w", in.UserID, err)
		}
		t.logger.Info("New user", zap.Int64("user_id", in.UserID), zap.String("name", in.Name))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load user %d: %w", in.UserID, err)
	}

	daily := u.DailyMsgCount + 1
	if !sameDay(u.LastSeen, now) {
		daily = 1
	}
	fields := map[string]any{
		"msgCount":      u.MsgCount + 1,
		"dailyMsgCount": daily,
		"unreadCount":   u.UnreadCount + 1,
		"lastSeen":      now,
	}
	if in.Name != "" {
		fields["name"] = in.Name
	}
	if in.Username != "" {
		fields["username"] = in.Username
	}
	t.appendHistory(fields, u.History, in.Message)

	if err := t.store.Update(ctx, userPath(in.UserID), fields); err != nil {
		return fmt.Errorf("update user %d: %w", in.UserID, err)
	}
	return nil
}

// RecordOutbound appends a bot reply to the member's history. Unknown members
// are skipped.
func (t *Tracker) RecordOutbound(ctx context.Context, userID int64, msg models.Message) error {
	u, err := t.Get(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load user %d: %w", userID, err)
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = t.now()
	}
	msg.Direction = models.DirectionOut

	fields := make(map[string]any, 1)
	t.appendHistory(fields, u.History, msg)
	if err := t.store.Update(ctx, userPath(userID), fields); err != nil {
		return fmt.Errorf("append reply for user %d: %w", userID, err)
	}
	return nil
}

// appendHistory writes the new entry at the next index, or rewrites the whole
// list when it has to be trimmed.
func (t *Tracker) appendHistory(fields map[string]any, history []models.Message, msg models.Message) {
	if t.historyLimit > 0 && len(history)+1 > t.historyLimit {
		next := append(history[len(history)+1-t.historyLimit:], msg)
		fields["history"] = next
		return
	}
	fields["history/"+strconv.Itoa(len(history))] = msg
}

// AdjustWarnings adds delta to the member's warnings, clamped to 0..MaxWarnings,
// and returns the stored value.
func (t *Tracker) AdjustWarnings(ctx context.Context, userID int64, delta int) (int, error) {
	u, err := t.Get(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("load user %d: %w", userID, err)
	}
	n := models.ClampWarnings(u.Warnings + delta)
	if err := t.store.Put(ctx, userPath(userID)+"/warnings", n); err != nil {
		return 0, fmt.Errorf("save warnings for user %d: %w", userID, err)
	}
	return n, nil
}

// SetStatus stores the member's moderation status.
func (t *Tracker) SetStatus(ctx context.Context, userID int64, status models.UserStatus) error {
	if err := t.store.Put(ctx, userPath(userID)+"/status", status); err != nil {
		return fmt.Errorf("save status for user %d: %w", userID, err)
	}
	return nil
}

func (t *Tracker) recordGroup(ctx context.Context, in Inbound, now time.Time) error {
	g := models.Group{ID: in.ChatID, Title: in.ChatTitle, Type: in.ChatType, LastSeen: now}
	return t.store.Put(ctx, "groups/"+strconv.FormatInt(in.ChatID, 10), g)
}

func sameDay(a, b time.Time) bool {
	a = a.In(b.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
