// Package docstore provides read access to the program's document collections.
package docstore

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("docstore: document not found")

// Document is an untyped record read from a collection.
type Document struct {
	ID   string
	Data map[string]any
}

// Filter is an equality predicate on a top-level field.
type Filter struct {
	Field string
	Value any
}

// Eq builds an equality filter.
func Eq(field string, value any) Filter {
	return Filter{Field: field, Value: value}
}

// Store reads documents by collection path. Paths use slash separated
// segments, e.g. "users" or "users/{key}/income".
type Store interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	Find(ctx context.Context, collection string, filters ...Filter) ([]Document, error)
	Close(ctx context.Context) error
}

// Path joins collection segments.
func Path(segments ...string) string {
	return strings.Join(segments, "/")
}

// SplitPath separates a collection path into its parent document path and the
// leaf collection name. Top-level collections have an empty parent.
func SplitPath(collection string) (parent, leaf string) {
	collection = strings.Trim(collection, "/")
	idx := strings.LastIndex(collection, "/")
	if idx < 0 {
		return "", collection
	}
	return collection[:idx], collection[idx+1:]
}

// Matches reports whether data satisfies every filter.
func Matches(data map[string]any, filters []Filter) bool {
	for _, f := range filters {
		v, ok := data[f.Field]
		if !ok || !equalValue(v, f.Value) {
			return false
		}
	}
	return true
}

func equalValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return as == bs
	}
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return af == bf
		}
	}
	ab, aok := a.(bool)
	bb, bok := b.(bool)
	if aok && bok {
		return ab == bb
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
