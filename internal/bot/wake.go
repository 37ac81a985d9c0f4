package bot

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// wakeMatcher caches the compiled pattern for the current trigger list.
type wakeMatcher struct {
	key string
	re  *regexp.Regexp
}

func (w *wakeMatcher) pattern(triggers []string) *regexp.Regexp {
	words := make([]string, 0, len(triggers))
	for _, t := range triggers {
		if t = strings.TrimSpace(t); t != "" {
			words = append(words, t)
		}
	}
	if len(words) == 0 {
		return nil
	}
	// Longer triggers first so "Helix Bot" wins over "Helix" at the same position.
	sort.SliceStable(words, func(i, j int) bool { return len(words[i]) > len(words[j]) })

	key := strings.Join(words, "\x00")
	if w.re != nil && w.key == key {
		return w.re
	}
	quoted := make([]string, len(words))
	for i, word := range words {
		quoted[i] = regexp.QuoteMeta(word)
	}
	w.key = key
	w.re = regexp.MustCompile(`(?i)` + strings.Join(quoted, "|"))
	return w.re
}

// extractQuestion finds the first case-insensitive occurrence of a trigger.
// The question is the text after it with leading separators removed or, when
// nothing follows, the text before it with trailing separators removed.
func (w *wakeMatcher) extractQuestion(text string, triggers []string) (string, bool) {
	re := w.pattern(triggers)
	if re == nil {
		return "", false
	}
	loc := re.FindStringIndex(text)
	if loc == nil {
		return "", false
	}

	after := strings.TrimLeftFunc(text[loc[1]:], isSeparator)
	if q := strings.TrimSpace(after); q != "" {
		return q, true
	}
	before := strings.TrimRightFunc(text[:loc[0]], isSeparator)
	return strings.TrimSpace(before), true
}

// isSeparator covers whitespace and any Unicode punctuation, quotes included.
func isSeparator(r rune) bool {
	return unicode.IsSpace(r) || unicode.IsPunct(r)
}
