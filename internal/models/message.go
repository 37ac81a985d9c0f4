package models

import "time"

// Direction tells whether a history entry came from the member or from the bot.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

type ContentType string

const (
	TextContent      ContentType = "text"
	PhotoContent     ContentType = "photo"
	VideoContent     ContentType = "video"
	StickerContent   ContentType = "sticker"
	VoiceContent     ContentType = "voice"
	VideoNoteContent ContentType = "video_note"
	DocumentContent  ContentType = "document"
	AnimationContent ContentType = "animation"
	OtherContent     ContentType = "other"
)

// Button is an inline URL button attached to a reply.
type Button struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// Message is one immutable entry of a member's conversation history.
type Message struct {
	Direction Direction   `json:"direction"`
	Sender    string      `json:"sender"`
	Text      string      `json:"text"`
	Type      ContentType `json:"type"`
	Media     string      `json:"media,omitempty"`
	Buttons   []Button    `json:"buttons,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}
