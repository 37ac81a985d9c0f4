// Package bot runs the long-poll loop that turns Telegram updates into AI
// answers, canned replies and moderation actions.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/helixbot/helix-poller/internal/audit"
	"github.com/helixbot/helix-poller/internal/llm"
	"github.com/helixbot/helix-poller/internal/models"
	"github.com/helixbot/helix-poller/internal/moderation"
	"github.com/helixbot/helix-poller/internal/stats"
	"github.com/helixbot/helix-poller/internal/telegram"
	"github.com/helixbot/helix-poller/internal/users"
	"go.uber.org/zap"
)

// ErrNoToken stops the poller when no bot token is configured at startup.
var ErrNoToken = errors.New("bot token is not configured")

// Defaults for Options.
const (
	DefaultPollTimeout  = 30 * time.Second
	DefaultFetchBackoff = 5 * time.Second
	DefaultStartupDelay = 3 * time.Second
)

// Telegram is the part of the Bot API the loop uses.
type Telegram interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]telegram.Update, error)
	Send(ctx context.Context, msg telegram.OutgoingMessage) telegram.Envelope
	SendChatAction(ctx context.Context, chatID, threadID int64, action string) telegram.Envelope
}

// Completer answers a composed prompt.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) llm.Result
}

// Snapshot is the latest known shared state.
type Snapshot interface {
	Config() models.Config
	Knowledge() []models.KnowledgeItem
	Commands() []models.Command
}

type Options struct {
	PollTimeout  time.Duration
	FetchBackoff time.Duration
	StartupDelay time.Duration
}

func (o *Options) setDefaults() {
	if o.PollTimeout <= 0 {
		o.PollTimeout = DefaultPollTimeout
	}
	if o.FetchBackoff <= 0 {
		o.FetchBackoff = DefaultFetchBackoff
	}
	if o.StartupDelay < 0 {
		o.StartupDelay = 0
	}
}

// Deps are the collaborators of the loop. Moderator may be nil.
type Deps struct {
	Telegram  Telegram
	LLM       Completer
	State     Snapshot
	Users     *users.Tracker
	Stats     *stats.Recorder
	Audit     *audit.Log
	Moderator *moderation.Moderator
	Logger    *zap.Logger
}

// Status is a point-in-time view of the loop for the status endpoint.
type Status struct {
	Running             bool      `json:"running"`
	StartedAt           time.Time `json:"startedAt"`
	Cursor              int64     `json:"lastUpdateId"`
	LastFetchAt         time.Time `json:"lastFetchAt"`
	LastError           string    `json:"lastError,omitempty"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
	FetchErrors         int64     `json:"fetchErrors"`
	Updates             int64     `json:"updates"`
	Answered            int64     `json:"answered"`
	SendFailures        int64     `json:"sendFailures"`
	Panics              int64     `json:"panics"`
}

type Bot struct {
	tg        Telegram
	llm       Completer
	state     Snapshot
	users     *users.Tracker
	stats     *stats.Recorder
	audit     *audit.Log
	moderator *moderation.Moderator
	logger    *zap.Logger
	opts      Options

	sleep func(ctx context.Context, d time.Duration) error
	wake  wakeMatcher

	mu     sync.Mutex
	status Status
}

func New(deps Deps, opts Options) *Bot {
	opts.setDefaults()
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bot{
		tg:        deps.Telegram,
		llm:       deps.LLM,
		state:     deps.State,
		users:     deps.Users,
		stats:     deps.Stats,
		audit:     deps.Audit,
		moderator: deps.Moderator,
		logger:    logger,
		opts:      opts,
		sleep:     sleepContext,
	}
}

// Run waits the startup delay, then polls until ctx is done. It returns
// ErrNoToken if no token is configured by then and nil on cancellation.
// Fetch failures never stop the loop.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.sleep(ctx, b.opts.StartupDelay); err != nil {
		return nil
	}
	if strings.TrimSpace(b.state.Config().Token) == "" {
		b.logger.Error("Bot token is not configured, poller stopped")
		return ErrNoToken
	}

	b.mu.Lock()
	b.status.Running = true
	b.status.StartedAt = time.Now()
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		b.status.Running = false
		b.mu.Unlock()
	}()

	b.logger.Info("Poller started", zap.Duration("poll_timeout", b.opts.PollTimeout))

	for {
		if ctx.Err() != nil {
			b.logger.Info("Poller stopped")
			return nil
		}

		updates, err := b.tg.GetUpdates(ctx, b.cursor()+1, b.opts.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				b.logger.Info("Poller stopped")
				return nil
			}
			failures := b.fetchFailed(err)
			b.logger.Warn("Failed to fetch updates",
				zap.Error(err),
				zap.Int("consecutive_failures", failures),
				zap.Duration("retry_in", b.opts.FetchBackoff))
			if err := b.sleep(ctx, b.opts.FetchBackoff); err != nil {
				return nil
			}
			continue
		}
		b.fetchSucceeded()

		for _, u := range updates {
			b.accept(u.UpdateID)
			b.process(ctx, u)
		}
	}
}

// Status returns a copy of the loop's counters.
func (b *Bot) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

func (b *Bot) cursor() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status.Cursor
}

// accept advances the cursor to id unless it is already past it.
func (b *Bot) accept(id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if id > b.status.Cursor {
		b.status.Cursor = id
	}
	b.status.Updates++
}

func (b *Bot) fetchFailed(err error) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status.LastError = err.Error()
	b.status.ConsecutiveFailures++
	b.status.FetchErrors++
	return b.status.ConsecutiveFailures
}

func (b *Bot) fetchSucceeded() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.status.LastFetchAt = time.Now()
	b.status.ConsecutiveFailures = 0
}

func (b *Bot) count(field *int64) {
	b.mu.Lock()
	*field++
	b.mu.Unlock()
}

// process handles one update. A panic is contained to that update.
func (b *Bot) process(ctx context.Context, u telegram.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.count(&b.status.Panics)
			b.logger.Error("Update handler panicked",
				zap.Int64("update_id", u.UpdateID),
				zap.String("panic", fmt.Sprint(r)))
		}
	}()

	if u.Message == nil {
		return
	}
	b.handleMessage(ctx, u.Message)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
