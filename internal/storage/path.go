package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const usersRoot = "users"

// location splits a path into the persisted document key and the field path
// inside that document. Users are stored one document per id.
type location struct {
	doc  string
	rest []string
}

func (l location) isCollection() bool {
	return l.doc == usersRoot
}

func splitPath(p string) ([]string, error) {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	segs := strings.Split(p, "/")
	for _, s := range segs {
		if s == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, p)
		}
	}
	return segs, nil
}

func locate(p string) (location, error) {
	segs, err := splitPath(p)
	if err != nil {
		return location{}, err
	}
	if segs[0] == usersRoot {
		if len(segs) == 1 {
			return location{doc: usersRoot}, nil
		}
		return location{doc: usersRoot + "/" + segs[1], rest: segs[2:]}, nil
	}
	return location{doc: segs[0], rest: segs[1:]}, nil
}

// decode keeps numbers as json.Number so int64 ids survive a round trip.
func decode(raw []byte) (any, error) {
	if raw == nil {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return v, nil
}

func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode value: %w", err)
	}
	return decode(raw)
}

func lookup(node any, rest []string) (any, bool) {
	for _, seg := range rest {
		switch n := node.(type) {
		case map[string]any:
			v, ok := n[seg]
			if !ok {
				return nil, false
			}
			node = v
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(n) {
				return nil, false
			}
			node = n[i]
		default:
			return nil, false
		}
	}
	return node, true
}

func assign(node any, rest []string, value any) (any, error) {
	if len(rest) == 0 {
		return value, nil
	}
	seg := rest[0]
	switch n := node.(type) {
	case map[string]any:
		child, err := assign(n[seg], rest[1:], value)
		if err != nil {
			return nil, err
		}
		n[seg] = child
		return n, nil
	case []any:
		i, err := strconv.Atoi(seg)
		if err != nil || i < 0 || i > len(n) {
			return nil, fmt.Errorf("%w: index %q out of range", ErrInvalidPath, seg)
		}
		if i == len(n) {
			child, err := assign(nil, rest[1:], value)
			if err != nil {
				return nil, err
			}
			return append(n, child), nil
		}
		child, err := assign(n[i], rest[1:], value)
		if err != nil {
			return nil, err
		}
		n[i] = child
		return n, nil
	default:
		child, err := assign(nil, rest[1:], value)
		if err != nil {
			return nil, err
		}
		return map[string]any{seg: child}, nil
	}
}

func remove(node any, rest []string) any {
	if len(rest) == 0 {
		return nil
	}
	seg := rest[0]
	switch n := node.(type) {
	case map[string]any:
		if len(rest) == 1 {
			delete(n, seg)
			return n
		}
		if child, ok := n[seg]; ok {
			n[seg] = remove(child, rest[1:])
		}
		return n
	case []any:
		i, err := strconv.Atoi(seg)
		if err != nil || i < 0 || i >= len(n) {
			return n
		}
		if len(rest) == 1 {
			return append(n[:i], n[i+1:]...)
		}
		n[i] = remove(n[i], rest[1:])
		return n
	default:
		return node
	}
}
