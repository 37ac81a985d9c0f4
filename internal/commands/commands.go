// Package commands matches operator-defined canned replies and keeps
// built-in moderation triggers out of them.
package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/helixbot/helix-poller/internal/models"
	"github.com/helixbot/helix-poller/internal/storage"
)

// Path is the shared store path of the command list.
const Path = "commands"

// legacySystemTriggers were once stored as ordinary commands. Routing only
// looks at isSystem; this list is used to migrate old data.
var legacySystemTriggers = map[string]struct{}{
	"/warn":   {},
	"/unwarn": {},
	"/mute":   {},
	"/unmute": {},
	"/ban":    {},
	"/unban":  {},
	"/kick":   {},
}

// IsLegacySystemTrigger reports whether trigger belongs to the built-in set.
func IsLegacySystemTrigger(trigger string) bool {
	_, ok := legacySystemTriggers[strings.ToLower(strings.TrimSpace(trigger))]
	return ok
}

// Load reads the command list; a missing document is an empty list.
func Load(ctx context.Context, store storage.Storage) ([]models.Command, error) {
	var cmds []models.Command
	err := store.Get(ctx, Path, &cmds)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load commands: %w", err)
	}
	return cmds, nil
}

// MigrateLegacy flags stored commands with a legacy system trigger as
// isSystem and writes only those flags back. It returns how many were changed.
func MigrateLegacy(ctx context.Context, store storage.Storage) (int, error) {
	cmds, err := Load(ctx, store)
	if err != nil {
		return 0, err
	}
	fields := make(map[string]any)
	for i, c := range cmds {
		if !c.IsSystem && IsLegacySystemTrigger(c.Trigger) {
			fields[fmt.Sprintf("%d/isSystem", i)] = true
		}
	}
	if len(fields) == 0 {
		return 0, nil
	}
	if err := store.Update(ctx, Path, fields); err != nil {
		return 0, fmt.Errorf("migrate commands: %w", err)
	}
	return len(fields), nil
}

// Context is where and by whom a message was sent.
type Context struct {
	Private  bool
	ThreadID int64
	Role     models.Role
}

// Match returns the first non-system command that fires for text in ctx.
func Match(cmds []models.Command, text string, mctx Context) (models.Command, bool) {
	msg := strings.ToLower(strings.TrimSpace(text))
	if msg == "" {
		return models.Command{}, false
	}
	for _, c := range cmds {
		if c.IsSystem {
			continue
		}
		if !inScope(c, mctx) || !roleAllowed(c, mctx.Role) {
			continue
		}
		if matches(c, msg) {
			return c, true
		}
	}
	return models.Command{}, false
}

func matches(c models.Command, msg string) bool {
	trig := strings.ToLower(strings.TrimSpace(c.Trigger))
	if trig == "" {
		return false
	}
	switch c.MatchMode {
	case models.MatchContains:
		return strings.Contains(msg, trig)
	case models.MatchPrefix:
		return strings.HasPrefix(msg, trig)
	default:
		return msg == trig
	}
}

func inScope(c models.Command, mctx Context) bool {
	if c.PrivateOnly && !mctx.Private {
		return false
	}
	if c.TopicID != nil && (mctx.Private || *c.TopicID != mctx.ThreadID) {
		return false
	}
	return true
}

func roleAllowed(c models.Command, role models.Role) bool {
	if len(c.AllowedRoles) == 0 {
		return true
	}
	if role == "" {
		role = models.RoleUser
	}
	for _, r := range c.AllowedRoles {
		if r == role {
			return true
		}
	}
	return false
}
