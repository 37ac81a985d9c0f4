package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/helixbot/helix-poller/internal/commands"
	"github.com/helixbot/helix-poller/internal/knowledge"
	"github.com/helixbot/helix-poller/internal/llm"
	"github.com/helixbot/helix-poller/internal/models"
	"github.com/helixbot/helix-poller/internal/moderation"
	"github.com/helixbot/helix-poller/internal/prompt"
	"github.com/helixbot/helix-poller/internal/storage"
	"github.com/helixbot/helix-poller/internal/telegram"
	"github.com/helixbot/helix-poller/internal/users"
	"go.uber.org/zap"
)

func (b *Bot) handleMessage(ctx context.Context, msg *telegram.Message) {
	if msg.Chat == nil {
		return
	}
	cfg := b.state.Config()

	private := msg.Chat.IsPrivate()
	if private && !cfg.EnablePM {
		return
	}
	if !private && cfg.TargetChatID != 0 && msg.Chat.ID != cfg.TargetChatID {
		return
	}

	b.recordInbound(ctx, msg)

	if msg.Text == "" {
		return
	}

	if question, ok := b.wake.extractQuestion(msg.Text, cfg.Triggers()); ok {
		if !cfg.EnableAI {
			return
		}
		b.answer(ctx, cfg, msg, question)
		return
	}

	b.handleCommand(ctx, cfg, msg)
}

func (b *Bot) recordInbound(ctx context.Context, msg *telegram.Message) {
	if msg.From == nil {
		return
	}
	kind, fileID := msg.ContentType()
	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	sender := msg.From.DisplayName()

	in := users.Inbound{
		UserID:    msg.From.ID,
		Name:      sender,
		Username:  msg.From.Username,
		ChatID:    msg.Chat.ID,
		ChatTitle: msg.Chat.Title,
		ChatType:  msg.Chat.Type,
		Message: models.Message{
			Direction: models.DirectionIn,
			Sender:    sender,
			Text:      text,
			Type:      kind,
			Media:     fileID,
			Timestamp: messageTime(msg),
		},
	}
	if err := b.users.RecordInbound(ctx, in); err != nil {
		b.logger.Warn("Failed to record user activity",
			zap.Int64("user_id", msg.From.ID),
			zap.Int64("chat_id", msg.Chat.ID),
			zap.Error(err))
	}
}

// answer runs the AI branch for one question.
func (b *Bot) answer(ctx context.Context, cfg models.Config, msg *telegram.Message, question string) {
	chatID, threadID := msg.Chat.ID, msg.MessageThreadID

	if env := b.tg.SendChatAction(ctx, chatID, threadID, "typing"); !env.OK {
		b.logger.Debug("Failed to send typing action", zap.Int64("chat_id", chatID), zap.String("error", env.Description))
	}

	items := b.state.Knowledge()
	p := prompt.Compose(cfg, items, question)
	res := b.llm.Complete(ctx, llm.Request{
		BaseURL:      cfg.AIBaseURL,
		APIKey:       cfg.AIKey,
		Model:        cfg.AIModel,
		SystemPrompt: p.System,
		Question:     question,
		Temperature:  p.Temperature,
		MaxTokens:    p.MaxTokens,
	})

	out := telegram.OutgoingMessage{ChatID: chatID, ThreadID: threadID, ReplyTo: msg.MessageID}

	switch res.Kind {
	case llm.KindOK:
		out.Text = res.Text
		if matched := knowledge.Match(items, question); len(matched) > 0 {
			out.Buttons = matched[0].Buttons
		}
		if b.reply(ctx, out) && msg.From != nil {
			reply := models.Message{
				Sender:  cfg.Name(),
				Text:    res.Text,
				Type:    models.TextContent,
				Buttons: out.Buttons,
			}
			if err := b.users.RecordOutbound(ctx, msg.From.ID, reply); err != nil {
				b.logger.Warn("Failed to record reply", zap.Int64("user_id", msg.From.ID), zap.Error(err))
			}
		}
		if err := b.stats.Record(ctx, question, res.Text); err != nil {
			b.logger.Error("Failed to record AI stats", zap.Error(err))
		}
		b.count(&b.status.Answered)

	case llm.KindNotConfigured, llm.KindRateLimited:
		out.Text = res.Text
		b.reply(ctx, out)

	default:
		b.logger.Warn("AI produced no answer",
			zap.String("kind", string(res.Kind)),
			zap.Int64("chat_id", chatID),
			zap.String("detail", res.Detail))
		b.audit.Record(ctx, models.SeverityWarning, "ai_"+string(res.Kind),
			fmt.Sprintf("chat %d, question %q: %s", chatID, question, res.Detail))
	}
}

// handleCommand tries the built-in system commands, then operator commands.
func (b *Bot) handleCommand(ctx context.Context, cfg models.Config, msg *telegram.Message) {
	role := b.roleOf(ctx, cfg, msg.From)

	if b.moderator != nil && msg.From != nil {
		req := moderation.Request{
			ChatID:     msg.Chat.ID,
			ThreadID:   msg.MessageThreadID,
			MessageID:  msg.MessageID,
			ActorID:    msg.From.ID,
			ActorName:  msg.From.DisplayName(),
			Authorized: role == models.RoleAdmin || role == models.RoleModerator,
			Text:       msg.Text,
		}
		if msg.ReplyTo != nil && msg.ReplyTo.From != nil {
			req.TargetID = msg.ReplyTo.From.ID
			req.TargetName = msg.ReplyTo.From.DisplayName()
		}
		handled, err := b.moderator.Handle(ctx, req)
		if err != nil {
			b.logger.Warn("System command failed", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
		}
		if handled {
			return
		}
	}

	cmd, ok := commands.Match(b.state.Commands(), msg.Text, commands.Context{
		Private:  msg.Chat.IsPrivate(),
		ThreadID: msg.MessageThreadID,
		Role:     role,
	})
	if !ok {
		return
	}
	b.reply(ctx, telegram.OutgoingMessage{
		ChatID:   msg.Chat.ID,
		ThreadID: msg.MessageThreadID,
		ReplyTo:  msg.MessageID,
		Text:     cmd.Response,
		Media:    cmd.Media,
		Buttons:  cmd.Buttons,
	})
}

// roleOf resolves a sender's role: configured admins first, then the stored role.
func (b *Bot) roleOf(ctx context.Context, cfg models.Config, from *telegram.User) models.Role {
	if from == nil {
		return models.RoleUser
	}
	if cfg.IsAdmin(from.ID) {
		return models.RoleAdmin
	}
	u, err := b.users.Get(ctx, from.ID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			b.logger.Warn("Failed to load user role", zap.Int64("user_id", from.ID), zap.Error(err))
		}
		return models.RoleUser
	}
	if u.Role == "" {
		return models.RoleUser
	}
	return u.Role
}

// reply sends out once; a failed send is logged and not retried.
func (b *Bot) reply(ctx context.Context, out telegram.OutgoingMessage) bool {
	env := b.tg.Send(ctx, out)
	if env.OK {
		return true
	}
	b.count(&b.status.SendFailures)
	b.logger.Error("Failed to send reply",
		zap.Int64("chat_id", out.ChatID),
		zap.Int("error_code", env.ErrorCode),
		zap.String("error", env.Description))
	return false
}

func messageTime(msg *telegram.Message) time.Time {
	if msg.Date > 0 {
		return time.Unix(msg.Date, 0).UTC()
	}
	return time.Now().UTC()
}
