package models

import "time"

// AiStat is one answered AI query. Cleared records keep counting but hide text.
type AiStat struct {
	ID       string    `json:"id"`
	Query    string    `json:"query"`
	Response string    `json:"response"`
	Time     time.Time `json:"time"`
	Cleared  bool      `json:"cleared,omitempty"`
}

// AIStats is the aiStats document: most recent records first.
type AIStats struct {
	Total   int      `json:"total"`
	History []AiStat `json:"history"`
}
