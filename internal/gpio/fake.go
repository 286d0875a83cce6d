package gpio

import (
	"errors"

	"github.com/sweeney/hc-receiver/internal/logic"
)

// FakeSource is a test double that replays scripted edges.
type FakeSource struct {
	// Edges are replayed in order by Watch.
	Edges []logic.Edge

	// WatchError, if set, is returned by Watch and nothing is replayed.
	WatchError error

	// Watching is true after a successful Watch.
	Watching bool

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeSource creates a FakeSource with the given edges.
func NewFakeSource(edges []logic.Edge) *FakeSource {
	return &FakeSource{Edges: edges}
}

// Watch replays all scripted edges synchronously before returning.
func (f *FakeSource) Watch(fn func(logic.Edge)) error {
	if f.WatchError != nil {
		return f.WatchError
	}
	if f.Closed {
		return errors.New("source closed")
	}
	f.Watching = true
	for _, e := range f.Edges {
		fn(e)
	}
	return nil
}

// Close marks the source as closed.
func (f *FakeSource) Close() error {
	f.Closed = true
	f.Watching = false
	return nil
}
