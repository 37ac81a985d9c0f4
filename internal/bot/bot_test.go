package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/helixbot/helix-poller/internal/audit"
	"github.com/helixbot/helix-poller/internal/knowledge"
	"github.com/helixbot/helix-poller/internal/llm"
	"github.com/helixbot/helix-poller/internal/models"
	"github.com/helixbot/helix-poller/internal/moderation"
	"github.com/helixbot/helix-poller/internal/prompt"
	"github.com/helixbot/helix-poller/internal/state"
	"github.com/helixbot/helix-poller/internal/stats"
	"github.com/helixbot/helix-poller/internal/storage"
	"github.com/helixbot/helix-poller/internal/telegram"
	"github.com/helixbot/helix-poller/internal/users"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	groupID  int64 = -1001234567890
	memberID int64 = 6123456789
	adminID  int64 = 1001
)

var (
	group  = &telegram.Chat{ID: groupID, Type: "supergroup", Title: "Guild"}
	member = &telegram.User{ID: memberID, FirstName: "Ivan"}
)

// fakeTelegram serves queued update batches and records everything sent.
// When the queue runs dry it cancels the loop.
type fakeTelegram struct {
	mu      sync.Mutex
	batches [][]telegram.Update
	offsets []int64
	sent    []telegram.OutgoingMessage
	actions []string
	bans    []int64
	cancel  context.CancelFunc
}

func (f *fakeTelegram) GetUpdates(ctx context.Context, offset int64, _ time.Duration) ([]telegram.Update, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offsets = append(f.offsets, offset)
	if len(f.batches) == 0 {
		f.cancel()
		return nil, context.Canceled
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return batch, nil
}

func (f *fakeTelegram) Send(_ context.Context, msg telegram.OutgoingMessage) telegram.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return telegram.Envelope{OK: true}
}

func (f *fakeTelegram) SendMessage(ctx context.Context, msg telegram.OutgoingMessage) telegram.Envelope {
	return f.Send(ctx, msg)
}

func (f *fakeTelegram) SendChatAction(_ context.Context, _, _ int64, action string) telegram.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, action)
	return telegram.Envelope{OK: true}
}

func (f *fakeTelegram) RestrictChatMember(context.Context, int64, int64, bool, time.Time) telegram.Envelope {
	return telegram.Envelope{OK: true}
}

func (f *fakeTelegram) BanChatMember(_ context.Context, _, userID int64) telegram.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bans = append(f.bans, userID)
	return telegram.Envelope{OK: true}
}

func (f *fakeTelegram) UnbanChatMember(context.Context, int64, int64) telegram.Envelope {
	return telegram.Envelope{OK: true}
}

func (f *fakeTelegram) sentMessages() []telegram.OutgoingMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]telegram.OutgoingMessage(nil), f.sent...)
}

// fakeLLM returns a fixed result, or panics for questions listed in panicOn.
type fakeLLM struct {
	mu       sync.Mutex
	result   llm.Result
	panicOn  string
	requests []llm.Request
}

func (f *fakeLLM) Complete(_ context.Context, req llm.Request) llm.Result {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.panicOn != "" && req.Question == f.panicOn {
		panic("boom")
	}
	return f.result
}

type fixture struct {
	store   storage.Storage
	state   *state.State
	tracker *users.Tracker
	stats   *stats.Recorder
	audit   *audit.Log
	sleeps  []time.Duration
}

func newFixture(t *testing.T, cfg models.Config, items []models.KnowledgeItem, cmds []models.Command) *fixture {
	t.Helper()
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	if items != nil {
		require.NoError(t, knowledge.Save(ctx, store, items))
	}
	if cmds != nil {
		require.NoError(t, store.Put(ctx, "commands", cmds))
	}
	st := state.New(store, nil)
	require.NoError(t, st.Bootstrap(ctx, cfg))

	return &fixture{
		store:   store,
		state:   st,
		tracker: users.NewTracker(store, 0, nil),
		stats:   stats.NewRecorder(store, 0, nil),
		audit:   audit.New(store, nil),
	}
}

func (f *fixture) bot(tg Telegram, completer Completer, mod *moderation.Moderator) *Bot {
	b := New(Deps{
		Telegram:  tg,
		LLM:       completer,
		State:     f.state,
		Users:     f.tracker,
		Stats:     f.stats,
		Audit:     f.audit,
		Moderator: mod,
		Logger:    zap.NewNop(),
	}, Options{StartupDelay: DefaultStartupDelay})
	b.sleep = func(ctx context.Context, d time.Duration) error {
		f.sleeps = append(f.sleeps, d)
		return ctx.Err()
	}
	return b
}

func baseConfig() models.Config {
	return models.Config{
		Token:        "T",
		BotName:      "Helix",
		TargetChatID: groupID,
		AdminIDs:     []int64{adminID},
		EnableAI:     true,
		AIKey:        "sk-test",
	}
}

func textUpdate(id int64, chat *telegram.Chat, from *telegram.User, text string) telegram.Update {
	return telegram.Update{UpdateID: id, Message: &telegram.Message{
		MessageID: id * 10,
		Date:      time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC).Unix(),
		Chat:      chat,
		From:      from,
		Text:      text,
	}}
}

func runFake(t *testing.T, b *Bot, tg *fakeTelegram, batches ...[]telegram.Update) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tg.batches = batches
	tg.cancel = cancel
	require.NoError(t, b.Run(ctx))
}

func TestRun_NoToken(t *testing.T) {
	cfg := baseConfig()
	cfg.Token = ""
	f := newFixture(t, cfg, nil, nil)
	tg := &fakeTelegram{}

	err := f.bot(tg, &fakeLLM{}, nil).Run(context.Background())
	assert.ErrorIs(t, err, ErrNoToken)
	assert.Empty(t, tg.offsets)
	assert.Equal(t, []time.Duration{DefaultStartupDelay}, f.sleeps)
}

func TestRun_CancelledDuringStartupDelay(t *testing.T) {
	f := newFixture(t, baseConfig(), nil, nil)
	tg := &fakeTelegram{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, f.bot(tg, &fakeLLM{}, nil).Run(ctx))
	assert.Empty(t, tg.offsets)
}

func TestRun_CursorIsMaxSeen(t *testing.T) {
	f := newFixture(t, baseConfig(), nil, nil)
	tg := &fakeTelegram{}
	b := f.bot(tg, &fakeLLM{}, nil)

	runFake(t, b, tg,
		[]telegram.Update{{UpdateID: 3}, {UpdateID: 1}, {UpdateID: 2}},
		nil,
		[]telegram.Update{{UpdateID: 5}, {UpdateID: 4}},
	)

	assert.Equal(t, []int64{1, 4, 4, 6}, tg.offsets)
	st := b.Status()
	assert.Equal(t, int64(5), st.Cursor)
	assert.Equal(t, int64(5), st.Updates)
	assert.False(t, st.Running)
}

func TestRun_FetchFailuresBackOff(t *testing.T) {
	f := newFixture(t, baseConfig(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var fetches atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fetches.Add(1) <= 3 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("Internal Server Error"))
			return
		}
		cancel()
		_, _ = w.Write([]byte(`{"ok":true,"result":[]}`))
	}))
	defer ts.Close()

	tg := telegram.NewClient(f.state.Token, ts.URL+"/bot%s/%s", ts.Client(), zap.NewNop())
	b := f.bot(tg, &fakeLLM{}, nil)

	require.NoError(t, b.Run(ctx))

	assert.Equal(t, int32(4), fetches.Load())
	assert.Equal(t, []time.Duration{DefaultStartupDelay, DefaultFetchBackoff, DefaultFetchBackoff, DefaultFetchBackoff}, f.sleeps)
	st := b.Status()
	assert.Zero(t, st.Cursor)
	assert.Equal(t, int64(3), st.FetchErrors)
	assert.NotEmpty(t, st.LastError)
}

// telegramServer is an httptest Bot API that returns updates once, then
// cancels the loop, recording every send.
type telegramServer struct {
	mu      sync.Mutex
	updates string
	served  bool
	methods []string
	forms   []map[string]string
	cancel  context.CancelFunc
}

func (s *telegramServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	_ = r.ParseForm()
	form := map[string]string{}
	for k, v := range r.PostForm {
		form[k] = v[0]
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.methods = append(s.methods, method)
	s.forms = append(s.forms, form)

	switch method {
	case "getUpdates":
		if !s.served {
			s.served = true
			_, _ = fmt.Fprintf(w, `{"ok":true,"result":%s}`, s.updates)
			return
		}
		s.cancel()
		_, _ = w.Write([]byte(`{"ok":true,"result":[]}`))
	case "sendMessage":
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":900}}`))
	default:
		_, _ = w.Write([]byte(`{"ok":true,"result":true}`))
	}
}

func (s *telegramServer) form(method string) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, m := range s.methods {
		if m == method {
			return s.forms[i]
		}
	}
	return nil
}

func TestRun_AnswersQuestionEndToEnd(t *testing.T) {
	f := newFixture(t, baseConfig(), []models.KnowledgeItem{{
		ID:       "gold",
		Category: "Экономика",
		Title:    "Золото",
		Triggers: []string{"золото"},
		Response: "Золото фармится в шахтах.",
		Buttons:  []models.Button{{Text: "Гайд", URL: "https://example.com/gold"}},
	}}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got openai.ChatCompletionRequest
	var llmCalls atomic.Int32
	llmServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		llmCalls.Add(1)
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4o-mini",
			"choices":[{"index":0,"message":{"role":"assistant","content":" Ищи в шахтах! "},"finish_reason":"stop"}]}`))
	}))
	defer llmServer.Close()

	cfg := baseConfig()
	cfg.AIBaseURL = llmServer.URL + "/v1"
	require.NoError(t, f.store.Put(ctx, state.ConfigPath, cfg))
	require.NoError(t, f.state.Reload(ctx))

	tgServer := &telegramServer{
		cancel: cancel,
		updates: fmt.Sprintf(`[{"update_id":41,"message":{"message_id":77,"message_thread_id":5,"date":1780000000,
			"chat":{"id":%d,"type":"supergroup","title":"Guild"},
			"from":{"id":%d,"first_name":"Ivan"},
			"text":"Привет Helix, где фармить золото?"}}]`, groupID, memberID),
	}
	ts := httptest.NewServer(tgServer)
	defer ts.Close()

	tg := telegram.NewClient(f.state.Token, ts.URL+"/bot%s/%s", ts.Client(), zap.NewNop())
	b := f.bot(tg, llm.NewClient(llmServer.Client(), zap.NewNop()), nil)

	require.NoError(t, b.Run(ctx))

	require.Equal(t, int32(1), llmCalls.Load())
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "где фармить золото?", got.Messages[1].Content)
	assert.Contains(t, got.Messages[0].Content, "Золото фармится в шахтах.")

	action := tgServer.form("sendChatAction")
	require.NotNil(t, action)
	assert.Equal(t, "typing", action["action"])

	sent := tgServer.form("sendMessage")
	require.NotNil(t, sent)
	assert.Equal(t, "Ищи в шахтах!", sent["text"])
	assert.Equal(t, "77", sent["reply_to_message_id"])
	assert.Equal(t, "5", sent["message_thread_id"])
	assert.Contains(t, sent["reply_markup"], "https://example.com/gold")

	st, err := stats.Load(ctx, f.store)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Total)
	assert.Equal(t, "где фармить золото?", st.History[0].Query)

	u, err := f.tracker.Get(ctx, memberID)
	require.NoError(t, err)
	require.Len(t, u.History, 2)
	assert.Equal(t, models.DirectionIn, u.History[0].Direction)
	assert.Equal(t, models.DirectionOut, u.History[1].Direction)
	assert.Equal(t, "Ищи в шахтах!", u.History[1].Text)

	assert.Equal(t, int64(41), b.Status().Cursor)
	assert.Equal(t, int64(1), b.Status().Answered)
}

func TestRun_RateLimitedReply(t *testing.T) {
	f := newFixture(t, baseConfig(), nil, nil)
	llmServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`))
	}))
	defer llmServer.Close()

	ctx := context.Background()
	cfg := baseConfig()
	cfg.AIBaseURL = llmServer.URL
	require.NoError(t, f.store.Put(ctx, state.ConfigPath, cfg))
	require.NoError(t, f.state.Reload(ctx))

	tg := &fakeTelegram{}
	b := f.bot(tg, llm.NewClient(llmServer.Client(), zap.NewNop()), nil)
	runFake(t, b, tg, []telegram.Update{textUpdate(1, group, member, "helix, когда арена?")})

	sent := tg.sentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, llm.RateLimitMessage, sent[0].Text)
	assert.Equal(t, int64(10), sent[0].ReplyTo)

	st, err := stats.Load(ctx, f.store)
	require.NoError(t, err)
	assert.Zero(t, st.Total)
}

func TestRun_NotConfiguredReply(t *testing.T) {
	cfg := baseConfig()
	cfg.AIKey = ""
	f := newFixture(t, cfg, nil, nil)
	tg := &fakeTelegram{}
	b := f.bot(tg, llm.NewClient(nil, zap.NewNop()), nil)

	runFake(t, b, tg, []telegram.Update{textUpdate(1, group, member, "Helix привет")})

	sent := tg.sentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, llm.NotConfiguredMessage, sent[0].Text)
}

func TestRun_FailedAnswerSendsNothing(t *testing.T) {
	for _, kind := range []llm.Kind{llm.KindFailed, llm.KindEmpty} {
		t.Run(string(kind), func(t *testing.T) {
			f := newFixture(t, baseConfig(), nil, nil)
			tg := &fakeTelegram{}
			b := f.bot(tg, &fakeLLM{result: llm.Result{Kind: kind, Detail: "upstream broke"}}, nil)

			runFake(t, b, tg, []telegram.Update{textUpdate(1, group, member, "Helix, где золото?")})

			assert.Empty(t, tg.sentMessages())
			assert.Equal(t, []string{"typing"}, tg.actions)

			entries, err := f.audit.List(context.Background())
			require.NoError(t, err)
			require.Len(t, entries, 1)
			assert.Equal(t, models.SeverityWarning, entries[0].Severity)
			assert.Contains(t, entries[0].Details, "upstream broke")
		})
	}
}

func TestRun_BlankBotNameStillAnswers(t *testing.T) {
	cfg := baseConfig()
	cfg.BotName = ""
	f := newFixture(t, cfg, nil, nil)
	tg := &fakeTelegram{}
	completer := &fakeLLM{result: llm.Result{Kind: llm.KindOK, Text: "В шахтах."}}
	b := f.bot(tg, completer, nil)

	runFake(t, b, tg, []telegram.Update{textUpdate(1, group, member, "Helix, где золото?")})

	require.Len(t, completer.requests, 1)
	assert.Equal(t, "где золото?", completer.requests[0].Question)
	assert.Contains(t, completer.requests[0].SystemPrompt, "You are "+models.DefaultBotName)

	sent := tg.sentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "В шахтах.", sent[0].Text)

	u, err := f.tracker.Get(context.Background(), memberID)
	require.NoError(t, err)
	require.Len(t, u.History, 2)
	assert.Equal(t, models.DefaultBotName, u.History[1].Sender)
}

func TestRun_MaxStrictnessRefusal(t *testing.T) {
	cfg := baseConfig()
	strictness := prompt.MaxStrictness
	cfg.AIStrictness = &strictness
	f := newFixture(t, cfg, []models.KnowledgeItem{{
		ID:       "gold",
		Category: "Экономика",
		Title:    "Золото",
		Triggers: []string{"золото"},
		Response: "Золото фармится в шахтах.",
		Buttons:  []models.Button{{Text: "Гайд", URL: "https://example.com/gold"}},
	}}, nil)
	tg := &fakeTelegram{}
	completer := &fakeLLM{result: llm.Result{Kind: llm.KindOK, Text: prompt.RefusalPhrase}}
	b := f.bot(tg, completer, nil)

	runFake(t, b, tg, []telegram.Update{textUpdate(1, group, member, "Helix, когда арена?")})

	require.Len(t, completer.requests, 1)
	req := completer.requests[0]
	assert.Contains(t, req.SystemPrompt, prompt.RefusalPhrase)
	assert.Equal(t, prompt.StrictTemperature, req.Temperature)

	sent := tg.sentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, prompt.RefusalPhrase, sent[0].Text)
	assert.Empty(t, sent[0].Buttons)

	st, err := stats.Load(context.Background(), f.store)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Total)
	require.Len(t, st.History, 1)
	assert.Equal(t, "когда арена?", st.History[0].Query)
	assert.Equal(t, prompt.RefusalPhrase, st.History[0].Response)
}

func TestRun_IgnoredMessages(t *testing.T) {
	private := &telegram.Chat{ID: memberID, Type: "private"}
	otherGroup := &telegram.Chat{ID: -100999, Type: "supergroup"}

	tests := []struct {
		name   string
		mutate func(*models.Config)
		update telegram.Update
	}{
		{"private chat without enablePM", nil, textUpdate(1, private, member, "Helix, вопрос")},
		{"other group", nil, textUpdate(1, otherGroup, member, "Helix, вопрос")},
		{"AI disabled", func(c *models.Config) { c.EnableAI = false }, textUpdate(1, group, member, "Helix, вопрос")},
		{"no text", nil, telegram.Update{UpdateID: 1, Message: &telegram.Message{
			MessageID: 1, Chat: group, From: member, Caption: "Helix, вопрос",
			Photo: []telegram.PhotoSize{{FileID: "p1"}},
		}}},
		{"edited message", nil, telegram.Update{UpdateID: 1, EditedMessage: &telegram.Message{Chat: group, From: member, Text: "Helix?"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}
			f := newFixture(t, cfg, nil, nil)
			tg := &fakeTelegram{}
			completer := &fakeLLM{result: llm.Result{Kind: llm.KindOK, Text: "answer"}}
			b := f.bot(tg, completer, nil)

			runFake(t, b, tg, []telegram.Update{tt.update})

			assert.Empty(t, completer.requests)
			assert.Empty(t, tg.sentMessages())
			assert.Equal(t, int64(1), b.Status().Cursor)
		})
	}
}

func TestRun_PrivateChatWhenEnabled(t *testing.T) {
	cfg := baseConfig()
	cfg.EnablePM = true
	f := newFixture(t, cfg, nil, nil)
	tg := &fakeTelegram{}
	completer := &fakeLLM{result: llm.Result{Kind: llm.KindOK, Text: "answer"}}
	b := f.bot(tg, completer, nil)

	private := &telegram.Chat{ID: memberID, Type: "private"}
	runFake(t, b, tg, []telegram.Update{textUpdate(1, private, member, "helix где золото")})

	require.Len(t, completer.requests, 1)
	assert.Equal(t, "где золото", completer.requests[0].Question)
	assert.Equal(t, "sk-test", completer.requests[0].APIKey)
	require.Len(t, tg.sentMessages(), 1)
}

func TestRun_RecordsMediaActivity(t *testing.T) {
	f := newFixture(t, baseConfig(), nil, nil)
	tg := &fakeTelegram{}
	b := f.bot(tg, &fakeLLM{}, nil)

	runFake(t, b, tg, []telegram.Update{{UpdateID: 1, Message: &telegram.Message{
		MessageID: 1, Chat: group, From: member, Caption: "смотрите",
		Photo: []telegram.PhotoSize{{FileID: "small"}, {FileID: "large"}},
	}}})

	u, err := f.tracker.Get(context.Background(), memberID)
	require.NoError(t, err)
	require.Len(t, u.History, 1)
	assert.Equal(t, models.PhotoContent, u.History[0].Type)
	assert.Equal(t, "смотрите", u.History[0].Text)
}

func TestRun_PanicIsContained(t *testing.T) {
	cmds := []models.Command{{ID: "rules", Trigger: "!правила", MatchMode: models.MatchExact, Response: "Правила клана"}}
	f := newFixture(t, baseConfig(), nil, cmds)
	tg := &fakeTelegram{}
	completer := &fakeLLM{panicOn: "взорвись"}
	b := f.bot(tg, completer, nil)

	runFake(t, b, tg, []telegram.Update{
		textUpdate(1, group, member, "Helix взорвись"),
		textUpdate(2, group, member, "!правила"),
	})

	sent := tg.sentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "Правила клана", sent[0].Text)
	st := b.Status()
	assert.Equal(t, int64(1), st.Panics)
	assert.Equal(t, int64(2), st.Cursor)
}

func TestRun_SystemCommandFromAdmin(t *testing.T) {
	cmds := []models.Command{{ID: "old", Trigger: "/ban", Response: "legacy text"}}
	f := newFixture(t, baseConfig(), nil, cmds)
	tg := &fakeTelegram{}
	mod := moderation.New(tg, f.tracker, f.audit, nil)
	b := f.bot(tg, &fakeLLM{}, mod)

	admin := &telegram.User{ID: adminID, FirstName: "Admin"}
	spam := textUpdate(1, group, member, "купи крипту")
	ban := textUpdate(2, group, admin, "/ban")
	ban.Message.ReplyTo = spam.Message

	runFake(t, b, tg, []telegram.Update{spam, ban})

	assert.Equal(t, []int64{memberID}, tg.bans)
	u, err := f.tracker.Get(context.Background(), memberID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusBanned, u.Status)

	for _, m := range tg.sentMessages() {
		assert.NotEqual(t, "legacy text", m.Text)
	}
}

func TestRun_SystemCommandFromMemberIsIgnored(t *testing.T) {
	f := newFixture(t, baseConfig(), nil, nil)
	tg := &fakeTelegram{}
	mod := moderation.New(tg, f.tracker, f.audit, nil)
	b := f.bot(tg, &fakeLLM{}, mod)

	victim := &telegram.User{ID: 42, FirstName: "Victim"}
	msg := textUpdate(1, group, victim, "hello")
	ban := textUpdate(2, group, member, "/ban")
	ban.Message.ReplyTo = msg.Message

	runFake(t, b, tg, []telegram.Update{msg, ban})

	assert.Empty(t, tg.bans)
	assert.Empty(t, tg.sentMessages())
}
