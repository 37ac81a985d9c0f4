package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/helixbot/helix-poller/internal/audit"
	"github.com/helixbot/helix-poller/internal/bot"
	"github.com/helixbot/helix-poller/internal/llm"
	"github.com/helixbot/helix-poller/internal/moderation"
	"github.com/helixbot/helix-poller/internal/state"
	"github.com/helixbot/helix-poller/internal/stats"
	"github.com/helixbot/helix-poller/internal/status"
	"github.com/helixbot/helix-poller/internal/telegram"
	"github.com/helixbot/helix-poller/internal/users"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newPollCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Poll Telegram for updates and answer them (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runPoll(cmd)
		},
	}
}

func (a *app) runPoll(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, logger := a.cfg, a.logger

	// Initialize storage
	store, err := a.openStore()
	if err != nil {
		logger.Error("Failed to initialize storage", zap.Error(err))
		return err
	}
	defer store.Close()

	shared := state.New(store, logger.Named("state"))
	if err := shared.Bootstrap(ctx, cfg.Seed()); err != nil {
		logger.Error("Failed to load shared state", zap.Error(err))
		return err
	}

	tg := telegram.NewClient(shared.Token, cfg.Telegram.APIEndpoint, &http.Client{Timeout: cfg.Telegram.HTTPTimeout}, logger.Named("telegram"))
	ai := llm.NewClient(&http.Client{Timeout: cfg.OpenAI.Timeout}, logger.Named("llm"))
	tracker := users.NewTracker(store, cfg.Users.HistoryLimit, logger)
	auditLog := audit.New(store, logger)

	b := bot.New(bot.Deps{
		Telegram:  tg,
		LLM:       ai,
		State:     shared,
		Users:     tracker,
		Stats:     stats.NewRecorder(store, cfg.Stats.HistoryLimit, logger),
		Audit:     auditLog,
		Moderator: moderation.New(tg, tracker, auditLog, logger.Named("moderation")),
		Logger:    logger.Named("poller"),
	}, bot.Options{
		PollTimeout:  cfg.Telegram.PollTimeout,
		FetchBackoff: cfg.Telegram.FetchBackoff,
		StartupDelay: cfg.Telegram.StartupDelay,
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		shared.Watch(ctx, cfg.Storage.RefreshInterval)
	}()

	if cfg.Status.Enabled {
		srv := status.New(cfg.Status.Addr, b, store, logger.Named("status"))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Run(ctx); err != nil {
				logger.Error("Status server failed", zap.Error(err))
			}
		}()
	}

	err = b.Run(ctx)
	stop()
	wg.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Poller stopped", zap.Error(err))
		return err
	}
	return nil
}
