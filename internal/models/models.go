package models

import "time"

// UserStatus is the moderation state of a community member.
type UserStatus string

const (
	StatusActive UserStatus = "active"
	StatusBanned UserStatus = "banned"
	StatusMuted  UserStatus = "muted"
)

// Role controls which commands a member may trigger.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// MaxWarnings is the ceiling warnings are clamped to.
const MaxWarnings = 3

// Platform service accounts that post on behalf of channels and anonymous admins.
const (
	TelegramServiceUserID   int64 = 777000
	GroupAnonymousBotUserID int64 = 1087968824
)

// User represents a community member tracked by the bot
type User struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	Username      string     `json:"username,omitempty"`
	Status        UserStatus `json:"status"`
	Role          Role       `json:"role"`
	Warnings      int        `json:"warnings"`
	MsgCount      int        `json:"msgCount"`
	DailyMsgCount int        `json:"dailyMsgCount"`
	UnreadCount   int        `json:"unreadCount"`
	LastSeen      time.Time  `json:"lastSeen"`
	History       []Message  `json:"history,omitempty"`
}

// IsHumanFacing reports whether the id belongs to a real person that may appear
// in operator views.
func IsHumanFacing(userID int64) bool {
	if userID <= 0 {
		return false
	}
	return userID != TelegramServiceUserID && userID != GroupAnonymousBotUserID
}

// ClampWarnings keeps a warning counter inside [0, MaxWarnings].
func ClampWarnings(n int) int {
	if n < 0 {
		return 0
	}
	if n > MaxWarnings {
		return MaxWarnings
	}
	return n
}

// Group is a chat the bot has seen traffic from.
type Group struct {
	ID       int64     `json:"id"`
	Title    string    `json:"title"`
	Type     string    `json:"type"`
	LastSeen time.Time `json:"lastSeen"`
}
