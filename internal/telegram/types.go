package telegram

import (
	"strings"

	"github.com/helixbot/helix-poller/internal/models"
)

// Update is the subset of a Bot API update the poller reads. It is decoded
// from getUpdates directly because the library's types predate forum topics.
type Update struct {
	UpdateID      int64    `json:"update_id"`
	Message       *Message `json:"message,omitempty"`
	EditedMessage *Message `json:"edited_message,omitempty"`
}

type Message struct {
	MessageID       int64       `json:"message_id"`
	MessageThreadID int64       `json:"message_thread_id,omitempty"`
	IsTopicMessage  bool        `json:"is_topic_message,omitempty"`
	Date            int64       `json:"date,omitempty"`
	Chat            *Chat       `json:"chat,omitempty"`
	From            *User       `json:"from,omitempty"`
	ReplyTo         *Message    `json:"reply_to_message,omitempty"`
	Text            string      `json:"text,omitempty"`
	Caption         string      `json:"caption,omitempty"`
	Photo           []PhotoSize `json:"photo,omitempty"`
	Video           *File       `json:"video,omitempty"`
	Animation       *File       `json:"animation,omitempty"`
	Sticker         *File       `json:"sticker,omitempty"`
	Voice           *File       `json:"voice,omitempty"`
	VideoNote       *File       `json:"video_note,omitempty"`
	Document        *File       `json:"document,omitempty"`
}

type Chat struct {
	ID    int64  `json:"id"`
	Type  string `json:"type,omitempty"` // private|group|supergroup|channel
	Title string `json:"title,omitempty"`
}

func (c *Chat) IsPrivate() bool {
	return c != nil && c.Type == "private"
}

type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot,omitempty"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// DisplayName prefers the full name, then @username.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	first := strings.TrimSpace(u.FirstName)
	last := strings.TrimSpace(u.LastName)
	username := strings.TrimSpace(u.Username)
	switch {
	case first != "" && last != "":
		return first + " " + last
	case first != "":
		return first
	case last != "":
		return last
	case username != "":
		return "@" + username
	default:
		return ""
	}
}

type PhotoSize struct {
	FileID   string `json:"file_id"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`
}

type File struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`
}

// ContentType classifies the message for history records, along with the
// file id of its media when there is one.
func (m *Message) ContentType() (models.ContentType, string) {
	switch {
	case len(m.Photo) > 0:
		return models.PhotoContent, m.Photo[len(m.Photo)-1].FileID
	case m.Video != nil:
		return models.VideoContent, m.Video.FileID
	case m.Animation != nil:
		return models.AnimationContent, m.Animation.FileID
	case m.Sticker != nil:
		return models.StickerContent, m.Sticker.FileID
	case m.Voice != nil:
		return models.VoiceContent, m.Voice.FileID
	case m.VideoNote != nil:
		return models.VideoNoteContent, m.VideoNote.FileID
	case m.Document != nil:
		return models.DocumentContent, m.Document.FileID
	case m.Text != "":
		return models.TextContent, ""
	default:
		return models.OtherContent, ""
	}
}
