// Package inmemory provides an in-process implementation of the
// longterm.Driver interface.
//
// Search is a linear cosine-similarity scan over every record matching the
// filter. Intended for tests and single-process local development; production
// deployments use the qdrant driver.
package inmemory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/papercomputeco/warren/pkg/longterm"
)

// Driver implements longterm.Driver using in-process data structures.
type Driver struct {
	mu      sync.RWMutex
	records []longterm.Record
}

// NewDriver creates an empty in-memory long-term store.
func NewDriver() *Driver {
	return &Driver{}
}

// Add appends a record to the store. The first record fixes the store's
// dimensionality; later records must match it.
func (d *Driver) Add(_ context.Context, rec longterm.Record) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.records) > 0 {
		if want := len(d.records[0].Embedding); len(rec.Embedding) != want {
			return fmt.Errorf("%w: record has %d dimensions, store expects %d",
				longterm.ErrDimensionMismatch, len(rec.Embedding), want)
		}
	}

	d.records = append(d.records, rec)
	return nil
}

// Search scans records matching the filter and returns the topK most similar,
// highest score first.
func (d *Driver) Search(_ context.Context, embedding []float32, filter longterm.Filter, limit int) ([]longterm.Result, error) {
	if limit <= 0 {
		limit = 10
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	var results []longterm.Result
	for _, rec := range d.records {
		if !matches(rec, filter) {
			continue
		}
		results = append(results, longterm.Result{
			Record: rec,
			Score:  cosine(embedding, rec.Embedding),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error {
	return nil
}

// Len returns the number of stored records. Test helper.
func (d *Driver) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.records)
}

// Records returns a copy of all stored records. Test helper.
func (d *Driver) Records() []longterm.Record {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]longterm.Record, len(d.records))
	copy(out, d.records)
	return out
}

func matches(rec longterm.Record, f longterm.Filter) bool {
	if rec.Owner != f.Owner {
		return false
	}
	if rec.Scope != f.Scope {
		return false
	}
	if f.Visibility != "" && rec.Visibility != f.Visibility {
		return false
	}
	return true
}

// cosine computes cosine similarity between two vectors. Mismatched or empty
// vectors score zero.
func cosine(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

var _ longterm.Driver = (*Driver)(nil)
