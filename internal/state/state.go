// Package state owns the process's snapshot of the shared configuration,
// knowledge base and command list and keeps it in sync with the store.
package state

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/helixbot/helix-poller/internal/commands"
	"github.com/helixbot/helix-poller/internal/knowledge"
	"github.com/helixbot/helix-poller/internal/models"
	"github.com/helixbot/helix-poller/internal/storage"
	"go.uber.org/zap"
)

// ConfigPath is the shared store path of the bot configuration.
const ConfigPath = "config"

// State is safe for concurrent use. Readers get copies.
type State struct {
	store  storage.Storage
	logger *zap.Logger

	mu        sync.RWMutex
	cfg       models.Config
	knowledge []models.KnowledgeItem
	commands  []models.Command
	loadedAt  time.Time
}

func New(store storage.Storage, logger *zap.Logger) *State {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &State{store: store, logger: logger}
}

// Bootstrap writes seed as the config when none is stored yet, marks legacy
// system commands, then loads everything.
func (s *State) Bootstrap(ctx context.Context, seed models.Config) error {
	var existing models.Config
	err := s.store.Get(ctx, ConfigPath, &existing)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		if err := s.store.Put(ctx, ConfigPath, seed); err != nil {
			return fmt.Errorf("seed config: %w", err)
		}
		s.logger.Info("Seeded shared config", zap.String("bot_name", seed.BotName))
	case err != nil:
		return fmt.Errorf("load config: %w", err)
	}

	n, err := commands.MigrateLegacy(ctx, s.store)
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Info("Marked legacy commands as system", zap.Int("count", n))
	}
	return s.Reload(ctx)
}

// Reload re-reads every document. A failed read keeps the previous value.
func (s *State) Reload(ctx context.Context) error {
	return errors.Join(s.reloadConfig(ctx), s.reloadKnowledge(ctx), s.reloadCommands(ctx))
}

func (s *State) reloadConfig(ctx context.Context) error {
	var cfg models.Config
	if err := s.store.Get(ctx, ConfigPath, &cfg); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("load config: %w", err)
	}
	s.mu.Lock()
	s.cfg = cfg
	s.loadedAt = time.Now()
	s.mu.Unlock()
	return nil
}

func (s *State) reloadKnowledge(ctx context.Context) error {
	items, err := knowledge.Load(ctx, s.store)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.knowledge = items
	s.mu.Unlock()
	return nil
}

func (s *State) reloadCommands(ctx context.Context) error {
	cmds, err := commands.Load(ctx, s.store)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.commands = cmds
	s.mu.Unlock()
	return nil
}

// Watch applies store changes until ctx is done, and reloads everything every
// refreshEvery (disabled when zero) to cover notifications that were missed.
func (s *State) Watch(ctx context.Context, refreshEvery time.Duration) {
	changes := s.store.Watch(ctx)

	var tick <-chan time.Time
	if refreshEvery > 0 {
		ticker := time.NewTicker(refreshEvery)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ch, ok := <-changes:
			if !ok {
				return
			}
			if err := s.apply(ctx, ch); err != nil {
				s.logger.Warn("Failed to apply shared state change", zap.String("path", ch.Path), zap.Error(err))
			}
		case <-tick:
			if err := s.Reload(ctx); err != nil {
				s.logger.Warn("Periodic state refresh failed", zap.Error(err))
			}
		}
	}
}

func (s *State) apply(ctx context.Context, ch storage.Change) error {
	root, _, _ := strings.Cut(strings.Trim(ch.Path, "/"), "/")
	switch root {
	case "":
		return s.Reload(ctx)
	case ConfigPath:
		return s.reloadConfig(ctx)
	case knowledge.Path:
		return s.reloadKnowledge(ctx)
	case commands.Path:
		return s.reloadCommands(ctx)
	}
	return nil
}

// Config returns a copy of the current configuration.
func (s *State) Config() models.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg := s.cfg
	cfg.AdminIDs = append([]int64(nil), s.cfg.AdminIDs...)
	cfg.WakeWords = append([]string(nil), s.cfg.WakeWords...)
	cfg.ProfanityWords = append([]string(nil), s.cfg.ProfanityWords...)
	return cfg
}

// Token is the current bot token.
func (s *State) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Token
}

// Knowledge returns a copy of the knowledge base in stored order.
func (s *State) Knowledge() []models.KnowledgeItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.KnowledgeItem(nil), s.knowledge...)
}

// Commands returns a copy of the command list.
func (s *State) Commands() []models.Command {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Command(nil), s.commands...)
}

// LoadedAt is when the config was last read from the store.
func (s *State) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}
