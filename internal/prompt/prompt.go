// Package prompt composes the system prompt that grounds AI answers in the
// knowledge base.
package prompt

import (
	"fmt"
	"strings"

	"github.com/helixbot/helix-poller/internal/knowledge"
	"github.com/helixbot/helix-poller/internal/models"
)

// RefusalPhrase is the fixed answer for questions the knowledge base does not cover.
const RefusalPhrase = "В базе знаний нет информации по этому вопросу."

const (
	// StrictThreshold and above forbids outside knowledge.
	StrictThreshold = 90
	// MaxStrictness also suppresses small talk.
	MaxStrictness = 100

	StrictTemperature  float32 = 0.1
	RelaxedTemperature float32 = 0.4

	MaxTokens = 800
)

const defaultPersonality = "You are friendly, concise and helpful."

// Prompt is everything the completion call needs besides the question.
type Prompt struct {
	System      string
	Temperature float32
	MaxTokens   int
}

// Temperature is a fixed function of strictness.
func Temperature(strictness int) float32 {
	if strictness >= StrictThreshold {
		return StrictTemperature
	}
	return RelaxedTemperature
}

// Compose builds the prompt for question. The output depends only on its
// inputs; knowledge items appear in stored order.
func Compose(cfg models.Config, items []models.KnowledgeItem, question string) Prompt {
	strictness := cfg.Strictness()
	name := cfg.Name()
	personality := strings.TrimSpace(cfg.AIPersonality)
	if personality == "" {
		personality = defaultPersonality
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, the assistant of a Telegram gaming community.\n", name)
	fmt.Fprintf(&b, "Personality: %s\n", personality)
	b.WriteString("Answer in the language of the question.\n\n")

	b.WriteString("KNOWLEDGE BASE:\n")
	if len(items) == 0 {
		b.WriteString("(empty)\n")
	}
	for i, it := range items {
		fmt.Fprintf(&b, "%d. [%s] %s: %s\n", i+1, it.Category, it.Title, it.Response)
		if kw := keywords(it.Triggers); kw != "" {
			fmt.Fprintf(&b, "   Keywords: %s\n", kw)
		}
	}

	if matched := knowledge.Match(items, question); len(matched) > 0 {
		titles := make([]string, len(matched))
		for i, it := range matched {
			titles[i] = it.Title
		}
		fmt.Fprintf(&b, "\nEntries most relevant to this question: %s.\n", strings.Join(titles, "; "))
	}

	b.WriteString("\nRULES:\n")
	if strictness >= StrictThreshold {
		b.WriteString("- Answer questions about the community, the game, its rules and events ONLY from the knowledge base. Never use outside knowledge for them.\n")
		fmt.Fprintf(&b, "- If the knowledge base does not contain the answer, reply with exactly: %q\n", RefusalPhrase)
		if strictness >= MaxStrictness {
			fmt.Fprintf(&b, "- Do not make small talk. Reply to greetings, jokes and off-topic messages with exactly: %q\n", RefusalPhrase)
		} else {
			b.WriteString("- Brief small talk such as greetings and thanks is allowed.\n")
		}
	} else {
		b.WriteString("- Prefer the knowledge base.\n")
		b.WriteString("- If the knowledge base does not contain the answer, you may answer from general knowledge, but tell the user that this answer is not from the knowledge base.\n")
	}

	if words := profanity(cfg); len(words) > 0 {
		fmt.Fprintf(&b, "- Naturally include some of these words in your answers: %s.\n", strings.Join(words, ", "))
	}

	return Prompt{
		System:      b.String(),
		Temperature: Temperature(strictness),
		MaxTokens:   MaxTokens,
	}
}

func keywords(triggers []string) string {
	out := make([]string, 0, len(triggers))
	for _, t := range triggers {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return strings.Join(out, ", ")
}

// profanity returns the words to inject; the rule is off when the toggle is
// off or the list has no usable words.
func profanity(cfg models.Config) []string {
	if !cfg.ProfanityEnabled {
		return nil
	}
	var out []string
	for _, w := range cfg.ProfanityWords {
		if w = strings.TrimSpace(w); w != "" {
			out = append(out, w)
		}
	}
	return out
}
