package models

// MatchMode selects how a command trigger is compared with message text.
type MatchMode string

const (
	MatchExact    MatchMode = "exact"
	MatchContains MatchMode = "contains"
	MatchPrefix   MatchMode = "prefix"
)

// Command is a canned reply configured by operators. System commands are
// built-in moderation actions and are never answered as free-form replies.
type Command struct {
	ID           string    `json:"id,omitempty"`
	Trigger      string    `json:"trigger"`
	MatchMode    MatchMode `json:"matchMode"`
	Response     string    `json:"response"`
	Media        string    `json:"media,omitempty"`
	Buttons      []Button  `json:"buttons,omitempty"`
	IsSystem     bool      `json:"isSystem,omitempty"`
	TopicID      *int64    `json:"topicId,omitempty"`
	PrivateOnly  bool      `json:"privateOnly,omitempty"`
	AllowedRoles []Role    `json:"allowedRoles,omitempty"`
}
