// Package render is the boundary to the rendering engine. The engine itself
// lives outside this process; adapters translate prepared data into whatever
// the engine accepts. Readiness is a one-shot future the adapter resolves
// exactly once, never a polling loop.
package render

import (
	"context"
	"sync"

	"github.com/mvaidya/graphstage/internal/graph"
)

// Frame is one full dataset handoff. Degraded marks a fallback frame whose
// records were sanitized but could not be index-resolved.
type Frame struct {
	Nodes    []graph.PreparedNode `json:"nodes"`
	Links    []graph.PreparedLink `json:"links"`
	Degraded bool                 `json:"degraded,omitempty"`
}

// Patch describes the minimal changed index ranges after an incremental
// apply, for adapters that support partial redraw.
type Patch struct {
	AddedIndices   []int `json:"added_indices,omitempty"`
	UpdatedIndices []int `json:"updated_indices,omitempty"`
	RemovedIndices []int `json:"removed_indices,omitempty"`
	LinksChanged   bool  `json:"links_changed,omitempty"`
}

// Adapter is the minimal surface the pipeline depends on: a readiness
// future and full-frame replacement.
type Adapter interface {
	// Ready is closed once the renderer can accept data.
	Ready() <-chan struct{}
	Replace(ctx context.Context, f Frame) error
}

// PatchApplier is implemented by adapters that can redraw incrementally.
// Adapters without it get a full Replace on every change.
type PatchApplier interface {
	ApplyPatch(ctx context.Context, p Patch) error
}

// FrameStore is an always-ready adapter that retains the latest frame for
// pull-based consumers (the HTTP frame endpoint). It does not implement
// PatchApplier; the pipeline sends it full replacements.
type FrameStore struct {
	ready chan struct{}
	mu    sync.RWMutex
	frame Frame
	set   bool
}

// NewFrameStore returns a FrameStore that is ready immediately.
func NewFrameStore() *FrameStore {
	ready := make(chan struct{})
	close(ready)
	return &FrameStore{ready: ready}
}

func (s *FrameStore) Ready() <-chan struct{} { return s.ready }

func (s *FrameStore) Replace(_ context.Context, f Frame) error {
	s.mu.Lock()
	s.frame = f
	s.set = true
	s.mu.Unlock()
	return nil
}

// Latest returns the most recent frame, if any has arrived.
func (s *FrameStore) Latest() (Frame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame, s.set
}

// Null is a no-op adapter for headless runs.
type Null struct{ ready chan struct{} }

// NewNull returns an always-ready Null adapter.
func NewNull() *Null {
	ready := make(chan struct{})
	close(ready)
	return &Null{ready: ready}
}

func (n *Null) Ready() <-chan struct{}                  { return n.ready }
func (n *Null) Replace(context.Context, Frame) error    { return nil }
func (n *Null) ApplyPatch(context.Context, Patch) error { return nil }
