package models

// KnowledgeItem is a curated fact used to ground AI answers.
type KnowledgeItem struct {
	ID       string   `json:"id"`
	Category string   `json:"category"`
	Title    string   `json:"title"`
	Triggers []string `json:"triggers,omitempty"`
	Response string   `json:"response"`
	Media    string   `json:"media,omitempty"`
	Buttons  []Button `json:"buttons,omitempty"`
}
