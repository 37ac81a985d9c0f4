package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// backend is the raw document table behind a Store.
type backend interface {
	load(ctx context.Context, key string) ([]byte, error)
	loadPrefix(ctx context.Context, prefix string) (map[string][]byte, error)
	// mutate replaces the document at key with fn's result atomically.
	// cur is nil when the document is absent; a nil result deletes it.
	mutate(ctx context.Context, key string, fn func(cur []byte) ([]byte, error)) error
	close() error
}

// publisher is implemented by backends that announce writes to other processes.
type publisher interface {
	publish(ctx context.Context, path string) error
}

// Store implements Storage on top of a document backend.
type Store struct {
	b   backend
	hub *hub
}

func newStore(b backend, h *hub) *Store {
	if h == nil {
		h = newHub()
	}
	return &Store{b: b, hub: h}
}

func (s *Store) Get(ctx context.Context, path string, dst any) error {
	loc, err := locate(path)
	if err != nil {
		return err
	}

	if loc.isCollection() {
		docs, err := s.b.loadPrefix(ctx, usersRoot+"/")
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			return ErrNotFound
		}
		all := make(map[string]json.RawMessage, len(docs))
		for key, raw := range docs {
			all[strings.TrimPrefix(key, usersRoot+"/")] = raw
		}
		raw, err := json.Marshal(all)
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, dst)
	}

	raw, err := s.b.load(ctx, loc.doc)
	if err != nil {
		return err
	}
	if len(loc.rest) == 0 {
		if err := json.Unmarshal(raw, dst); err != nil {
			return fmt.Errorf("unmarshal %s: %w", path, err)
		}
		return nil
	}

	node, err := decode(raw)
	if err != nil {
		return err
	}
	v, ok := lookup(node, loc.rest)
	if !ok || v == nil {
		return ErrNotFound
	}
	raw, err = json.Marshal(v)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("unmarshal %s: %w", path, err)
	}
	return nil
}

func (s *Store) Put(ctx context.Context, path string, value any) error {
	return s.Update(ctx, path, map[string]any{"": value})
}

func (s *Store) Update(ctx context.Context, path string, fields map[string]any) error {
	type write struct {
		rest  []string
		value any
	}
	byDoc := make(map[string][]write)
	var paths []string

	for field, value := range fields {
		full := strings.Trim(path, "/")
		if f := strings.Trim(field, "/"); f != "" {
			full += "/" + f
		}
		loc, err := locate(full)
		if err != nil {
			return err
		}
		if loc.isCollection() {
			return fmt.Errorf("%w: cannot write collection root %q", ErrInvalidPath, full)
		}
		v, err := normalize(value)
		if err != nil {
			return err
		}
		byDoc[loc.doc] = append(byDoc[loc.doc], write{rest: loc.rest, value: v})
		paths = append(paths, full)
	}

	docs := make([]string, 0, len(byDoc))
	for doc := range byDoc {
		docs = append(docs, doc)
	}
	sort.Strings(docs)

	for _, doc := range docs {
		writes := byDoc[doc]
		// Shorter paths first so a parent write never clobbers a child in the same call.
		sort.SliceStable(writes, func(i, j int) bool { return len(writes[i].rest) < len(writes[j].rest) })
		err := s.b.mutate(ctx, doc, func(cur []byte) ([]byte, error) {
			node, err := decode(cur)
			if err != nil {
				return nil, err
			}
			for _, w := range writes {
				node, err = assign(node, w.rest, w.value)
				if err != nil {
					return nil, err
				}
			}
			// Writing null over a whole document removes it.
			if node == nil {
				return nil, nil
			}
			return json.Marshal(node)
		})
		if err != nil {
			return fmt.Errorf("write %s: %w", doc, err)
		}
	}

	sort.Strings(paths)
	for _, p := range paths {
		s.notify(ctx, p)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, path string) error {
	loc, err := locate(path)
	if err != nil {
		return err
	}
	if loc.isCollection() {
		return fmt.Errorf("%w: cannot delete collection root", ErrInvalidPath)
	}
	err = s.b.mutate(ctx, loc.doc, func(cur []byte) ([]byte, error) {
		if cur == nil || len(loc.rest) == 0 {
			return nil, nil
		}
		node, err := decode(cur)
		if err != nil {
			return nil, err
		}
		return json.Marshal(remove(node, loc.rest))
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	s.notify(ctx, strings.Trim(path, "/"))
	return nil
}

func (s *Store) Watch(ctx context.Context) <-chan Change {
	return s.hub.subscribe(ctx)
}

func (s *Store) Close() error {
	return s.b.close()
}

func (s *Store) notify(ctx context.Context, path string) {
	s.hub.publish(Change{Path: path})
	if p, ok := s.b.(publisher); ok {
		// Remote watchers fall back to their periodic refresh if this fails.
		_ = p.publish(ctx, path)
	}
}
