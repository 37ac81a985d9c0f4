package models

import "strings"

// DefaultStrictness applies when the shared config has no aiStrictness value.
const DefaultStrictness = 80

// DefaultBotName is the name the bot answers to when botName is blank.
const DefaultBotName = "Helix"

// Config is the shared bot configuration document edited from the dashboard.
type Config struct {
	Token        string   `json:"token"`
	TargetChatID int64    `json:"targetChatId"`
	AdminIDs     []int64  `json:"adminIds,omitempty"`
	BotName      string   `json:"botName"`
	WakeWords    []string `json:"wakeWords,omitempty"`

	EnableAI      bool `json:"enableAI"`
	EnablePM      bool `json:"enablePM"`
	EnableAutoTop bool `json:"enableAutoTop"`

	AIBaseURL     string  `json:"aiBaseUrl"`
	AIModel       string  `json:"aiModel"`
	AIKey         string  `json:"aiKey"`
	AIPersonality string  `json:"aiPersonality,omitempty"`
	AITemperature float64 `json:"aiTemperature,omitempty"`
	AIStrictness  *int    `json:"aiStrictness,omitempty"`

	ProfanityEnabled bool     `json:"profanityEnabled"`
	ProfanityWords   []string `json:"profanityWords,omitempty"`
}

// Strictness returns aiStrictness clamped to 0..100, defaulting when unset.
func (c Config) Strictness() int {
	if c.AIStrictness == nil {
		return DefaultStrictness
	}
	s := *c.AIStrictness
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

// IsAdmin reports whether userID is listed in adminIds.
func (c Config) IsAdmin(userID int64) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Name returns the trimmed bot name, or DefaultBotName when it is blank.
func (c Config) Name() string {
	if name := strings.TrimSpace(c.BotName); name != "" {
		return name
	}
	return DefaultBotName
}

// Triggers returns the bot name followed by any extra wake words, blanks dropped.
func (c Config) Triggers() []string {
	out := make([]string, 0, len(c.WakeWords)+1)
	out = append(out, c.Name())
	for _, w := range c.WakeWords {
		if strings.TrimSpace(w) != "" {
			out = append(out, w)
		}
	}
	return out
}
