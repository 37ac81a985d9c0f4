// Package knowledge manages the ordered collection of curated entries that
// ground AI answers.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/helixbot/helix-poller/internal/models"
	"github.com/helixbot/helix-poller/internal/storage"
)

// Path is the shared store path of the knowledge base.
const Path = "knowledgeBase"

var (
	ErrDuplicateID = errors.New("knowledge: duplicate id")
	ErrNotFound    = errors.New("knowledge: item not found")
)

// Load reads the knowledge base; a missing document is an empty base.
func Load(ctx context.Context, store storage.Storage) ([]models.KnowledgeItem, error) {
	var items []models.KnowledgeItem
	err := store.Get(ctx, Path, &items)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load knowledge base: %w", err)
	}
	return items, nil
}

// Save writes the whole collection back.
func Save(ctx context.Context, store storage.Storage, items []models.KnowledgeItem) error {
	if err := Validate(items); err != nil {
		return err
	}
	if items == nil {
		items = []models.KnowledgeItem{}
	}
	if err := store.Put(ctx, Path, items); err != nil {
		return fmt.Errorf("save knowledge base: %w", err)
	}
	return nil
}

// Validate checks that every item has a unique, non-empty id.
func Validate(items []models.KnowledgeItem) error {
	seen := make(map[string]struct{}, len(items))
	for i, it := range items {
		if it.ID == "" {
			return fmt.Errorf("knowledge: item %d has no id", i)
		}
		if _, ok := seen[it.ID]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateID, it.ID)
		}
		seen[it.ID] = struct{}{}
	}
	return nil
}

// Add appends item, generating an id when it has none.
func Add(items []models.KnowledgeItem, item models.KnowledgeItem) ([]models.KnowledgeItem, models.KnowledgeItem, error) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	for _, it := range items {
		if it.ID == item.ID {
			return items, item, fmt.Errorf("%w: %s", ErrDuplicateID, item.ID)
		}
	}
	return append(items, item), item, nil
}

// Update replaces the item with the same id in place.
func Update(items []models.KnowledgeItem, item models.KnowledgeItem) error {
	for i := range items {
		if items[i].ID == item.ID {
			items[i] = item
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, item.ID)
}

// Remove drops the item with id, keeping the order of the rest.
func Remove(items []models.KnowledgeItem, id string) ([]models.KnowledgeItem, error) {
	for i := range items {
		if items[i].ID == id {
			out := make([]models.KnowledgeItem, 0, len(items)-1)
			out = append(out, items[:i]...)
			return append(out, items[i+1:]...), nil
		}
	}
	return items, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Match returns, in stored order, the items with a trigger keyword that
// occurs in question (case-insensitive).
func Match(items []models.KnowledgeItem, question string) []models.KnowledgeItem {
	q := strings.ToLower(question)
	if strings.TrimSpace(q) == "" {
		return nil
	}
	var out []models.KnowledgeItem
	for _, it := range items {
		for _, trig := range it.Triggers {
			trig = strings.ToLower(strings.TrimSpace(trig))
			if trig != "" && strings.Contains(q, trig) {
				out = append(out, it)
				break
			}
		}
	}
	return out
}

// UnknownCategories lists items whose category is missing from categories.
// The dashboard keeps the two in sync eventually, so this is only reported.
func UnknownCategories(items []models.KnowledgeItem, categories []string) []models.KnowledgeItem {
	known := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		known[c] = struct{}{}
	}
	var out []models.KnowledgeItem
	for _, it := range items {
		if _, ok := known[it.Category]; !ok {
			out = append(out, it)
		}
	}
	return out
}
