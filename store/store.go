// Package store is the document gateway: collections of JSON documents with
// one-shot reads, merge-patch writes and live query subscriptions.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"sort"
	"strings"
)

var (
	ErrNotFound = errors.New("document not found")
	ErrClosed   = errors.New("store is closed")
)

// Document is a single record of a collection.
type Document struct {
	ID   string         `json:"id"`
	Data map[string]any `json:"data"`
}

// String returns the string value of field, or "" when missing or not a string.
func (d Document) String(field string) string {
	s, _ := d.Data[field].(string)
	return s
}

type Filter struct {
	Field string
	Value any
}

type Order struct {
	Field string
	Desc  bool
}

// Query selects documents of one collection with equality filters, ordered by
// OrderBy keys. Ties beyond the given keys fall back to document id.
type Query struct {
	Collection string
	Where      []Filter
	OrderBy    []Order
}

// Unsubscribe stops a live subscription. It is safe to call more than once.
// It returns only after a callback already in progress has returned, so no
// snapshot is delivered afterwards. A callback must not call its own
// Unsubscribe; cancel the subscription context instead.
type Unsubscribe func()

// UpdateFunc computes a merge patch from a document's current data, which is
// nil when the document does not exist. A nil patch leaves it untouched.
type UpdateFunc func(data map[string]any) (map[string]any, error)

// Store is the remote data gateway used by the services layer.
type Store interface {
	Subscribe(ctx context.Context, q Query, onSnapshot func([]Document), onError func(error)) (Unsubscribe, error)
	SubscribeDoc(ctx context.Context, collection, id string, onSnapshot func(*Document), onError func(error)) (Unsubscribe, error)

	Get(ctx context.Context, collection, id string) (*Document, error)
	Query(ctx context.Context, q Query) ([]Document, error)

	Add(ctx context.Context, collection string, data map[string]any) (string, error)
	Set(ctx context.Context, collection, id string, data map[string]any) error
	Merge(ctx context.Context, collection, id string, patch map[string]any) error
	// Update runs fn and applies its patch atomically with respect to every
	// other write to the same document.
	Update(ctx context.Context, collection, id string, fn UpdateFunc) error
	Delete(ctx context.Context, collection, id string) error

	Close() error
}

// Normalize round-trips data through JSON so every driver hands out the same
// value types: string, bool, json.Number, map[string]any, []any and nil.
func Normalize(data map[string]any) (map[string]any, error) {
	if data == nil {
		return map[string]any{}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return decodeData(raw)
}

func decodeData(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	out := map[string]any{}
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return out, nil
}

func (q Query) matches(d Document) bool {
	for _, f := range q.Where {
		if !valuesEqual(d.Data[f.Field], f.Value) {
			return false
		}
	}
	return true
}

func (q Query) sort(docs []Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		for _, o := range q.OrderBy {
			c := compareValues(docs[i].Data[o.Field], docs[j].Data[o.Field])
			if c == 0 {
				continue
			}
			if o.Desc {
				return c > 0
			}
			return c < 0
		}
		return docs[i].ID < docs[j].ID
	})
}

func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if an, ok := toNumber(a); ok {
		if bn, ok := toNumber(b); ok {
			return an.Cmp(bn) == 0
		}
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// compareValues orders nil < numbers < strings < everything else.
func compareValues(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch ra {
	case 0:
		return 0
	case 1:
		an, _ := toNumber(a)
		bn, _ := toNumber(b)
		return an.Cmp(bn)
	default:
		return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
	}
}

func rank(v any) int {
	if v == nil {
		return 0
	}
	if _, ok := toNumber(v); ok {
		return 1
	}
	if _, ok := v.(string); ok {
		return 2
	}
	return 3
}

func toNumber(v any) (*big.Float, bool) {
	switch n := v.(type) {
	case json.Number:
		f, ok := new(big.Float).SetString(n.String())
		return f, ok
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return nil, false
		}
		return big.NewFloat(n), true
	case int:
		return new(big.Float).SetInt64(int64(n)), true
	case int64:
		return new(big.Float).SetInt64(n), true
	}
	return nil, false
}
