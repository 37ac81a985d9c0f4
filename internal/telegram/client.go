// Package telegram is a thin wrapper over the Telegram Bot HTTP API that turns
// every call into a normalized Envelope.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// DescNoToken is the failure description returned when no bot token is configured.
const DescNoToken = "bot token is not configured"

// Envelope is the normalized result of a Bot API call. Callers must check OK.
type Envelope struct {
	OK          bool
	Result      json.RawMessage
	ErrorCode   int
	Description string
	RetryAfter  int
}

// Err returns nil for a successful envelope and the description otherwise.
func (e Envelope) Err() error {
	if e.OK {
		return nil
	}
	if e.ErrorCode != 0 {
		return fmt.Errorf("telegram %d: %s", e.ErrorCode, e.Description)
	}
	return fmt.Errorf("telegram: %s", e.Description)
}

// Client calls the Bot API with whatever token is current at call time, so a
// token changed from the dashboard takes effect without a restart.
type Client struct {
	token    func() string
	endpoint string
	http     tgbotapi.HTTPClient
	logger   *zap.Logger
}

// NewClient builds a client. endpoint is a tgbotapi endpoint format such as
// tgbotapi.APIEndpoint; httpClient defaults to a 60s-timeout http.Client.
func NewClient(token func() string, endpoint string, httpClient tgbotapi.HTTPClient, logger *zap.Logger) *Client {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if token == nil {
		token = func() string { return "" }
	}
	return &Client{
		token:    token,
		endpoint: endpoint,
		http:     httpClient,
		logger:   logger,
	}
}

// ctxClient binds outgoing library requests to the caller's context.
type ctxClient struct {
	ctx context.Context
	c   tgbotapi.HTTPClient
}

func (d ctxClient) Do(req *http.Request) (*http.Response, error) {
	return d.c.Do(req.WithContext(d.ctx))
}

// Call invokes method with params. Attaching files switches the request to a
// multipart form; otherwise parameters are form-encoded, with structured
// values JSON-encoded as the Bot API expects.
func (c *Client) Call(ctx context.Context, method string, params tgbotapi.Params, files ...tgbotapi.RequestFile) Envelope {
	token := strings.TrimSpace(c.token())
	if token == "" {
		return Envelope{Description: DescNoToken}
	}
	if err := ctx.Err(); err != nil {
		return Envelope{Description: err.Error()}
	}
	if params == nil {
		params = tgbotapi.Params{}
	}

	api := &tgbotapi.BotAPI{
		Token:  token,
		Client: ctxClient{ctx: ctx, c: c.http},
		Buffer: 100,
	}
	api.SetAPIEndpoint(c.endpoint)

	var (
		resp *tgbotapi.APIResponse
		err  error
	)
	if len(files) > 0 {
		resp, err = api.UploadFiles(method, params, files)
	} else {
		resp, err = api.MakeRequest(method, params)
	}

	env := envelope(resp, err)
	if !env.OK {
		c.logger.Debug("Telegram call failed",
			zap.String("method", method),
			zap.Int("error_code", env.ErrorCode),
			zap.String("description", env.Description))
	}
	return env
}

func envelope(resp *tgbotapi.APIResponse, err error) Envelope {
	var env Envelope
	if resp != nil {
		env.OK = resp.Ok
		env.Result = resp.Result
		env.ErrorCode = resp.ErrorCode
		env.Description = resp.Description
		if resp.Parameters != nil {
			env.RetryAfter = resp.Parameters.RetryAfter
		}
	}
	if err != nil {
		env.OK = false
		var tgErr *tgbotapi.Error
		if errors.As(err, &tgErr) {
			env.ErrorCode = tgErr.Code
			env.Description = tgErr.Message
			env.RetryAfter = tgErr.RetryAfter
		} else {
			env.Description = err.Error()
		}
	}
	if !env.OK && env.Description == "" {
		env.Description = "telegram returned ok=false"
	}
	return env
}

// GetUpdates long-polls for updates with ids >= offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	secs := int(timeout.Seconds())
	if secs < 0 {
		secs = 0
	}

	params := tgbotapi.Params{}
	params.AddNonZero64("offset", offset)
	params.AddNonZero("timeout", secs)

	env := c.Call(ctx, "getUpdates", params)
	if !env.OK {
		return nil, fmt.Errorf("getUpdates: %w", env.Err())
	}

	var updates []Update
	if err := json.Unmarshal(env.Result, &updates); err != nil {
		return nil, fmt.Errorf("getUpdates: malformed result: %w", err)
	}
	return updates, nil
}

// SendChatAction shows a transient status such as "typing".
func (c *Client) SendChatAction(ctx context.Context, chatID, threadID int64, action string) Envelope {
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", chatID)
	params.AddNonZero64("message_thread_id", threadID)
	params.AddNonEmpty("action", action)
	return c.Call(ctx, "sendChatAction", params)
}

// RestrictChatMember mutes a member until the given time (zero means forever)
// or restores the default permissions when canSend is true.
func (c *Client) RestrictChatMember(ctx context.Context, chatID, userID int64, canSend bool, until time.Time) Envelope {
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", chatID)
	params.AddNonZero64("user_id", userID)
	if !until.IsZero() {
		params.AddNonZero64("until_date", until.Unix())
	}
	perms := tgbotapi.ChatPermissions{
		CanSendMessages:       canSend,
		CanSendMediaMessages:  canSend,
		CanSendPolls:          canSend,
		CanSendOtherMessages:  canSend,
		CanAddWebPagePreviews: canSend,
	}
	if err := params.AddInterface("permissions", perms); err != nil {
		return Envelope{Description: err.Error()}
	}
	return c.Call(ctx, "restrictChatMember", params)
}

// BanChatMember removes a member from the chat.
func (c *Client) BanChatMember(ctx context.Context, chatID, userID int64) Envelope {
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", chatID)
	params.AddNonZero64("user_id", userID)
	return c.Call(ctx, "banChatMember", params)
}

// UnbanChatMember lifts a ban without kicking members that are not banned.
func (c *Client) UnbanChatMember(ctx context.Context, chatID, userID int64) Envelope {
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", chatID)
	params.AddNonZero64("user_id", userID)
	params.AddBool("only_if_banned", true)
	return c.Call(ctx, "unbanChatMember", params)
}
