// Package moderation executes the built-in system commands admins issue by
// replying to a member's message.
package moderation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/helixbot/helix-poller/internal/audit"
	"github.com/helixbot/helix-poller/internal/models"
	"github.com/helixbot/helix-poller/internal/telegram"
	"github.com/helixbot/helix-poller/internal/users"
	"go.uber.org/zap"
)

// DefaultMute applies when /mute has no duration.
const DefaultMute = 60 * time.Minute

type Action string

const (
	ActionWarn   Action = "warn"
	ActionUnwarn Action = "unwarn"
	ActionMute   Action = "mute"
	ActionUnmute Action = "unmute"
	ActionBan    Action = "ban"
	ActionUnban  Action = "unban"
)

var actions = map[string]Action{
	"/warn":   ActionWarn,
	"/unwarn": ActionUnwarn,
	"/mute":   ActionMute,
	"/unmute": ActionUnmute,
	"/ban":    ActionBan,
	"/unban":  ActionUnban,
}

// Parse recognizes a system command, including the /cmd@BotName form, and
// returns its arguments.
func Parse(text string) (Action, []string, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", nil, false
	}
	name := strings.ToLower(fields[0])
	if i := strings.IndexByte(name, '@'); i > 0 {
		name = name[:i]
	}
	a, ok := actions[name]
	if !ok {
		return "", nil, false
	}
	return a, fields[1:], true
}

// Telegram is the part of the Bot API moderation needs.
type Telegram interface {
	SendMessage(ctx context.Context, msg telegram.OutgoingMessage) telegram.Envelope
	RestrictChatMember(ctx context.Context, chatID, userID int64, canSend bool, until time.Time) telegram.Envelope
	BanChatMember(ctx context.Context, chatID, userID int64) telegram.Envelope
	UnbanChatMember(ctx context.Context, chatID, userID int64) telegram.Envelope
}

// Request is one system command as seen in a chat.
type Request struct {
	ChatID    int64
	ThreadID  int64
	MessageID int64

	ActorID    int64
	ActorName  string
	Authorized bool

	// Target is the author of the message the command replies to.
	TargetID   int64
	TargetName string

	Text string
}

type Moderator struct {
	tg     Telegram
	users  *users.Tracker
	audit  *audit.Log
	logger *zap.Logger
	now    func() time.Time
}

func New(tg Telegram, tracker *users.Tracker, log *audit.Log, logger *zap.Logger) *Moderator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Moderator{tg: tg, users: tracker, audit: log, logger: logger, now: time.Now}
}

// Handle runs req if it is a system command. The first result tells the
// caller whether the message was consumed.
func (m *Moderator) Handle(ctx context.Context, req Request) (bool, error) {
	action, args, ok := Parse(req.Text)
	if !ok {
		return false, nil
	}
	if !req.Authorized {
		m.logger.Debug("Ignoring system command from non-admin",
			zap.Int64("user_id", req.ActorID), zap.String("action", string(action)))
		return true, nil
	}
	if req.TargetID == 0 {
		m.reply(ctx, req, "Ответьте этой командой на сообщение пользователя.")
		return true, nil
	}

	target := req.TargetName
	if target == "" {
		target = strconv.FormatInt(req.TargetID, 10)
	}

	var (
		notice   string
		severity models.Severity
		env      telegram.Envelope
		err      error
	)
	switch action {
	case ActionWarn, ActionUnwarn:
		delta, sev := 1, models.SeverityWarning
		if action == ActionUnwarn {
			delta, sev = -1, models.SeveritySuccess
		}
		var n int
		n, err = m.users.AdjustWarnings(ctx, req.TargetID, delta)
		if err != nil {
			break
		}
		severity = sev
		notice = fmt.Sprintf("⚠️ %s: предупреждения %d/%d.", target, n, models.MaxWarnings)

	case ActionMute:
		d := muteDuration(args)
		env = m.tg.RestrictChatMember(ctx, req.ChatID, req.TargetID, false, m.now().Add(d))
		if err = env.Err(); err != nil {
			break
		}
		err = m.users.SetStatus(ctx, req.TargetID, models.StatusMuted)
		severity = models.SeverityWarning
		notice = fmt.Sprintf("🔇 %s не может писать %d мин.", target, int(d.Minutes()))

	case ActionUnmute:
		env = m.tg.RestrictChatMember(ctx, req.ChatID, req.TargetID, true, time.Time{})
		if err = env.Err(); err != nil {
			break
		}
		err = m.users.SetStatus(ctx, req.TargetID, models.StatusActive)
		severity = models.SeveritySuccess
		notice = fmt.Sprintf("🔊 %s снова может писать.", target)

	case ActionBan:
		env = m.tg.BanChatMember(ctx, req.ChatID, req.TargetID)
		if err = env.Err(); err != nil {
			break
		}
		err = m.users.SetStatus(ctx, req.TargetID, models.StatusBanned)
		severity = models.SeverityDanger
		notice = fmt.Sprintf("⛔ %s заблокирован.", target)

	case ActionUnban:
		env = m.tg.UnbanChatMember(ctx, req.ChatID, req.TargetID)
		if err = env.Err(); err != nil {
			break
		}
		err = m.users.SetStatus(ctx, req.TargetID, models.StatusActive)
		severity = models.SeveritySuccess
		notice = fmt.Sprintf("✅ %s разблокирован.", target)
	}

	details := fmt.Sprintf("user %d (%s) in chat %d", req.TargetID, target, req.ChatID)
	if err != nil {
		m.logger.Error("Moderation action failed",
			zap.String("action", string(action)),
			zap.Int64("chat_id", req.ChatID),
			zap.Int64("user_id", req.TargetID),
			zap.Error(err))
		m.entry(ctx, req, models.SeverityDanger, string(action)+"_failed", details+": "+err.Error())
		m.reply(ctx, req, "Не удалось выполнить команду.")
		return true, fmt.Errorf("%s: %w", action, err)
	}

	m.entry(ctx, req, severity, string(action), details)
	m.reply(ctx, req, notice)
	return true, nil
}

func muteDuration(args []string) time.Duration {
	if len(args) == 0 {
		return DefaultMute
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 {
		return DefaultMute
	}
	return time.Duration(n) * time.Minute
}

func (m *Moderator) entry(ctx context.Context, req Request, severity models.Severity, action, details string) {
	admin := req.ActorName
	if admin == "" {
		admin = strconv.FormatInt(req.ActorID, 10)
	}
	_, err := m.audit.Append(ctx, models.LogEntry{Admin: admin, Action: action, Details: details, Severity: severity})
	if err != nil {
		m.logger.Error("Failed to write audit entry", zap.String("action", action), zap.Error(err))
	}
}

func (m *Moderator) reply(ctx context.Context, req Request, text string) {
	env := m.tg.SendMessage(ctx, telegram.OutgoingMessage{
		ChatID:   req.ChatID,
		ThreadID: req.ThreadID,
		ReplyTo:  req.MessageID,
		Text:     text,
	})
	if !env.OK {
		m.logger.Warn("Failed to send moderation notice", zap.Int64("chat_id", req.ChatID), zap.String("error", env.Description))
	}
}
