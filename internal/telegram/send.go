package telegram

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"path"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/helixbot/helix-poller/internal/models"
)

const maxCaptionRunes = 1024

// MediaKind is the media type a reference resolves to.
type MediaKind string

const (
	MediaPhoto MediaKind = "photo"
	MediaVideo MediaKind = "video"
)

// Method returns the Bot API method that sends this kind of media.
func (k MediaKind) Method() string {
	if k == MediaVideo {
		return "sendVideo"
	}
	return "sendPhoto"
}

// Field returns the form field name the media is sent under.
func (k MediaKind) Field() string {
	return string(k)
}

var videoExts = map[string]bool{
	".mp4": true, ".mov": true, ".webm": true, ".mkv": true, ".avi": true, ".m4v": true,
}

// DetectMediaKind classifies a media reference: a data URL by its mime type,
// anything else by its file extension. Unknown references are sent as photos.
func DetectMediaKind(ref string) MediaKind {
	if rest, ok := strings.CutPrefix(ref, "data:"); ok {
		if strings.HasPrefix(rest, "video/") {
			return MediaVideo
		}
		return MediaPhoto
	}
	p := ref
	if u, err := url.Parse(ref); err == nil && u.Path != "" {
		p = u.Path
	}
	if videoExts[strings.ToLower(path.Ext(p))] {
		return MediaVideo
	}
	return MediaPhoto
}

// decodeDataURL extracts the payload of a base64 data URL.
func decodeDataURL(ref string) (mimeType string, data []byte, err error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return "", nil, fmt.Errorf("unsupported data url")
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode data url: %w", err)
	}
	return strings.TrimSuffix(meta, ";base64"), data, nil
}

// OutgoingMessage is a reply the bot sends. Media, when set, is a data URL,
// an http(s) URL or a Telegram file id.
type OutgoingMessage struct {
	ChatID    int64
	ThreadID  int64
	ReplyTo   int64
	Text      string
	ParseMode string
	Media     string
	Buttons   []models.Button
}

// Send delivers msg as text or as media with a caption.
func (c *Client) Send(ctx context.Context, msg OutgoingMessage) Envelope {
	if msg.Media != "" {
		return c.SendMedia(ctx, msg)
	}
	return c.SendMessage(ctx, msg)
}

func (c *Client) SendMessage(ctx context.Context, msg OutgoingMessage) Envelope {
	params := baseParams(msg)
	params.AddNonEmpty("text", msg.Text)
	params.AddNonEmpty("parse_mode", msg.ParseMode)
	if err := addKeyboard(params, msg.Buttons); err != nil {
		return Envelope{Description: err.Error()}
	}
	return c.Call(ctx, "sendMessage", params)
}

// SendMedia sends a photo or video. The method and the field name follow the
// detected media kind. Captions over the Bot API limit go out as a follow-up message.
func (c *Client) SendMedia(ctx context.Context, msg OutgoingMessage) Envelope {
	kind := DetectMediaKind(msg.Media)
	params := baseParams(msg)

	caption := msg.Text
	overflow := len([]rune(caption)) > maxCaptionRunes
	if !overflow {
		params.AddNonEmpty("caption", caption)
		params.AddNonEmpty("parse_mode", msg.ParseMode)
		if err := addKeyboard(params, msg.Buttons); err != nil {
			return Envelope{Description: err.Error()}
		}
	}

	var files []tgbotapi.RequestFile
	if strings.HasPrefix(msg.Media, "data:") {
		mimeType, data, err := decodeDataURL(msg.Media)
		if err != nil {
			return Envelope{Description: err.Error()}
		}
		files = append(files, tgbotapi.RequestFile{
			Name: kind.Field(),
			Data: tgbotapi.FileBytes{Name: uploadName(kind, mimeType), Bytes: data},
		})
	} else {
		params.AddNonEmpty(kind.Field(), msg.Media)
	}

	env := c.Call(ctx, kind.Method(), params, files...)
	if !env.OK || !overflow {
		return env
	}
	text := msg
	text.Media = ""
	text.ReplyTo = 0
	return c.SendMessage(ctx, text)
}

func baseParams(msg OutgoingMessage) tgbotapi.Params {
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", msg.ChatID)
	params.AddNonZero64("message_thread_id", msg.ThreadID)
	if msg.ReplyTo != 0 {
		params.AddNonZero64("reply_to_message_id", msg.ReplyTo)
		params.AddBool("allow_sending_without_reply", true)
	}
	return params
}

func addKeyboard(params tgbotapi.Params, buttons []models.Button) error {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, b := range buttons {
		if strings.TrimSpace(b.Text) == "" || strings.TrimSpace(b.URL) == "" {
			continue
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL)))
	}
	if len(rows) == 0 {
		return nil
	}
	return params.AddInterface("reply_markup", tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func uploadName(kind MediaKind, mimeType string) string {
	switch mimeType {
	case "image/png":
		return "upload.png"
	case "image/gif":
		return "upload.gif"
	case "image/webp":
		return "upload.webp"
	case "video/webm":
		return "upload.webm"
	case "video/quicktime":
		return "upload.mov"
	}
	if kind == MediaVideo {
		return "upload.mp4"
	}
	return "upload.jpg"
}
