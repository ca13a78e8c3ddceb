// Package quotes stores customer quotation requests and exposes them to the
// back office.
package quotes

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("quote not found")

// Repository is the storage contract handlers depend on. Append assigns ID
// and CreatedAt; nothing is ever deleted.
type Repository interface {
	Append(ctx context.Context, r Record) (Record, error)
	Update(ctx context.Context, id int64, patch map[string]any) (Record, error)
	Get(ctx context.Context, id int64) (Record, error)
	List(ctx context.Context, q string) ([]Record, error)
}

// stamp assigns a millisecond id not already present in taken.
func stamp(r Record, now time.Time, taken func(int64) bool) Record {
	id := now.UnixMilli()
	for taken(id) {
		id++
	}
	r.ID = id
	r.CreatedAt = now.UTC().Format(TimeLayout)
	if r.Fields == nil {
		r.Fields = map[string]any{}
	}
	return r
}

func filter(list []Record, q string) []Record {
	if q == "" {
		return list
	}
	out := make([]Record, 0, len(list))
	for _, r := range list {
		if r.Matches(q) {
			out = append(out, r)
		}
	}
	return out
}
