// Package inmemory provides an in-process implementation of the
// shortterm.Driver interface.
//
// Intended for tests and single-process local development. Each thread's log
// is a plain slice guarded by a single mutex; every method is atomic with
// respect to other calls on the same driver.
package inmemory

import (
	"context"
	"sync"

	"github.com/papercomputeco/warren/pkg/shortterm"
)

// Driver implements shortterm.Driver using in-process data structures.
type Driver struct {
	mu sync.Mutex

	// turns maps thread key -> ordered turn log, oldest first.
	turns map[string][]shortterm.Turn
}

// NewDriver creates an empty in-memory short-term store.
func NewDriver() *Driver {
	return &Driver{
		turns: make(map[string][]shortterm.Turn),
	}
}

// Append pushes a turn onto the tail of the thread's log.
func (d *Driver) Append(_ context.Context, key string, turn shortterm.Turn) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.turns[key] = append(d.turns[key], turn)
	return nil
}

// Load returns a copy of the thread's turns, oldest first.
func (d *Driver) Load(_ context.Context, key string) ([]shortterm.Turn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	log := d.turns[key]
	out := make([]shortterm.Turn, len(log))
	copy(out, log)
	return out, nil
}

// PopOldest removes and returns the head of the thread's log.
func (d *Driver) PopOldest(_ context.Context, key string) (shortterm.Turn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	log := d.turns[key]
	if len(log) == 0 {
		return shortterm.Turn{}, shortterm.ErrEmpty
	}

	head := log[0]
	d.turns[key] = log[1:]
	return head, nil
}

// Trim drops turns from the head until at most window entries remain.
func (d *Driver) Trim(_ context.Context, key string, window int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	log := d.turns[key]
	if window <= 0 {
		delete(d.turns, key)
		return nil
	}

	if len(log) > window {
		d.turns[key] = log[len(log)-window:]
	}
	return nil
}

// Len returns the number of retained turns for the thread.
func (d *Driver) Len(_ context.Context, key string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.turns[key]), nil
}

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error {
	return nil
}

var _ shortterm.Driver = (*Driver)(nil)
