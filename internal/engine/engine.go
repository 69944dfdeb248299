package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mvaidya/graphstage/internal/config"
	"github.com/mvaidya/graphstage/internal/dataset"
	"github.com/mvaidya/graphstage/internal/graph"
	"github.com/mvaidya/graphstage/internal/metrics"
	"github.com/mvaidya/graphstage/internal/render"
)

// ErrSuperseded marks a queued full replacement discarded because a newer
// one arrived before it started. Its caller's data was never applied.
var ErrSuperseded = errors.New("engine: preparation superseded by a newer request")

// Pipeline states surfaced in stats.
const (
	StateIdle      = "idle"
	StateApplying  = "applying"
	StatePreparing = "preparing"
)

// LiveStats is the query surface summary for callers.
type LiveStats struct {
	graph.Stats
	State string `json:"state"`
}

// Coordinator consumes delta events and full-replacement requests and keeps
// the dataset, its mirror and the renderer in step. Deltas are applied in
// arrival order by a single goroutine; full preparations go through the
// injected Serializer, and a newer replacement supersedes any queued one
// that has not started. Incremental deltas are never dropped by supersession,
// only ordered.
type Coordinator struct {
	ds      *dataset.Dataset
	adapter render.Adapter
	ser     *Serializer

	prepMu sync.RWMutex
	prep   config.Preparation

	mirrorMu sync.Mutex
	mirror   *mirror

	queue chan *graph.Delta
	wg    sync.WaitGroup
	state atomic.Int32

	// replaceSeq orders client full replacements; last writer wins among
	// them. rebuildSeq orders internal mirror rebuilds (escalation,
	// reconfigure). The counters are separate so an internal rebuild can
	// never cancel a queued client replacement.
	replaceSeq atomic.Uint64
	rebuildSeq atomic.Uint64
}

const (
	stIdle int32 = iota
	stApplying
	stPreparing
)

// New creates a Coordinator and starts its apply goroutine.
func New(ctx context.Context, ds *dataset.Dataset, adapter render.Adapter, ser *Serializer, conf config.EngineConf, prep config.Preparation) *Coordinator {
	c := &Coordinator{
		ds:      ds,
		adapter: adapter,
		ser:     ser,
		prep:    prep,
		mirror:  newMirror(),
		queue:   make(chan *graph.Delta, conf.QueueDepth),
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for d := range c.queue {
			c.applyDelta(ctx, d)
		}
	}()
	return c
}

// FullReplace rebuilds the dataset from a complete raw set. Queued
// replacements that have not started are superseded (last writer wins);
// the superseded caller gets ErrSuperseded.
func (c *Coordinator) FullReplace(ctx context.Context, nodes []graph.RawNode, links []graph.RawLink) error {
	seq := c.replaceSeq.Add(1)
	// A full replacement also makes queued mirror rebuilds redundant.
	c.rebuildSeq.Add(1)
	return c.ser.Enqueue(ctx, func(ctx context.Context) error {
		if seq != c.replaceSeq.Load() {
			metrics.RebuildsSuperseded.Inc()
			return ErrSuperseded
		}
		c.mirrorMu.Lock()
		c.mirror.replace(nodes, links)
		c.mirrorMu.Unlock()
		return c.prepare(ctx)
	})
}

// SubmitDelta enqueues one delta for in-order application. It returns false
// when the queue is full so the transport can retry; accepted deltas are
// never reordered or dropped.
func (c *Coordinator) SubmitDelta(d *graph.Delta) bool {
	select {
	case c.queue <- d:
		metrics.DeltasEnqueued.Inc()
		return true
	default:
		metrics.DeltasDropped.Inc()
		return false
	}
}

// Reconfigure swaps the preparation config and rebuilds from the mirror so
// derived fields (size, cluster) pick up the new settings.
func (c *Coordinator) Reconfigure(ctx context.Context, prep config.Preparation) error {
	c.prepMu.Lock()
	c.prep = prep
	c.prepMu.Unlock()
	return c.rebuild(ctx)
}

// Stats returns the live dataset summary plus pipeline state.
func (c *Coordinator) Stats() LiveStats {
	st := LiveStats{Stats: c.ds.Stats()}
	switch c.state.Load() {
	case stApplying:
		st.State = StateApplying
	case stPreparing:
		st.State = StatePreparing
	default:
		st.State = StateIdle
	}
	return st
}

// Ready reports whether the first successful build has completed.
func (c *Coordinator) Ready() bool { return c.ds.Built() }

// QueueUtilization returns queue used / capacity (0–1).
func (c *Coordinator) QueueUtilization() float64 {
	if cap(c.queue) == 0 {
		return 0
	}
	return float64(len(c.queue)) / float64(cap(c.queue))
}

// Shutdown stops accepting deltas and drains the apply goroutine.
func (c *Coordinator) Shutdown() {
	close(c.queue)
	c.wg.Wait()
}

func (c *Coordinator) applyDelta(ctx context.Context, d *graph.Delta) {
	c.state.Store(stApplying)
	defer c.state.Store(stIdle)

	// The mirror tracks every delta, applied incrementally or not, so an
	// escalated rebuild sees the delta's own payload too.
	c.mirrorMu.Lock()
	switch d.Op {
	case graph.OpAdd, graph.OpUpdate:
		c.mirror.upsert(d.Nodes, d.Links)
	case graph.OpDelete:
		c.mirror.removeNodes(d.NodeIDs)
		c.mirror.removeLinks(d.LinkKeys)
	}
	c.mirrorMu.Unlock()

	patch, err := c.applyIncremental(d)
	if err != nil {
		slog.Warn("delta escalated to full rebuild", "delta", d.ID, "op", d.Op, "err", err)
		metrics.Escalations.Inc()
		if rerr := c.rebuild(ctx); rerr != nil && !errors.Is(rerr, ErrSuperseded) {
			slog.Error("escalated rebuild failed", "delta", d.ID, "err", rerr)
		}
		return
	}

	metrics.DeltasApplied.WithLabelValues(string(d.Op)).Inc()
	c.publishStats()
	c.notifyPatch(ctx, patch)
}

func (c *Coordinator) applyIncremental(d *graph.Delta) (render.Patch, error) {
	var patch render.Patch
	switch d.Op {
	case graph.OpAdd:
		res, err := c.ds.ApplyAdd(d.Nodes, d.Links)
		if err != nil {
			return patch, err
		}
		patch.AddedIndices = res.AddedIndices
		patch.UpdatedIndices = res.UpdatedIndices
		patch.LinksChanged = res.AddedLinks > 0
		countDropped(res.DroppedNodes, res.DroppedLinks)
	case graph.OpUpdate:
		indices, err := c.ds.ApplyUpdateNodes(d.Nodes)
		if err != nil {
			return patch, err
		}
		updatedLinks, err := c.ds.ApplyUpdateLinks(d.Links)
		if err != nil {
			return patch, err
		}
		patch.UpdatedIndices = indices
		patch.LinksChanged = updatedLinks > 0
	case graph.OpDelete:
		for _, id := range d.NodeIDs {
			if i, ok := c.ds.IndexByID(id); ok {
				patch.RemovedIndices = append(patch.RemovedIndices, i)
			}
		}
		_, linksRemoved, err := c.ds.ApplyRemoveNodes(d.NodeIDs)
		if err != nil {
			return patch, err
		}
		removed, err := c.ds.ApplyRemoveLinks(d.LinkKeys)
		if err != nil {
			return patch, err
		}
		patch.LinksChanged = linksRemoved+removed > 0
	default:
		return patch, errors.New("engine: unknown delta operation")
	}
	return patch, nil
}

// rebuild queues a full preparation from the mirror. Only a newer mirror
// rebuild or a client full replacement supersedes it; it never touches
// replaceSeq, so a queued client replacement cannot be cancelled from here.
func (c *Coordinator) rebuild(ctx context.Context) error {
	seq := c.rebuildSeq.Add(1)
	return c.ser.Enqueue(ctx, func(ctx context.Context) error {
		if seq != c.rebuildSeq.Load() {
			metrics.RebuildsSuperseded.Inc()
			return ErrSuperseded
		}
		return c.prepare(ctx)
	})
}

// prepare runs one full build from the mirror and hands the result to the
// renderer. Called only from serializer tasks, so at most one runs at a time.
func (c *Coordinator) prepare(ctx context.Context) error {
	c.state.Store(stPreparing)
	defer c.state.Store(stIdle)
	start := time.Now()

	c.prepMu.RLock()
	prep := c.prep
	c.prepMu.RUnlock()

	// Snapshot and commit under one mirror lock. Every delta mutates the
	// mirror before the dataset, so a delta is either in the snapshot (and
	// therefore in the committed build) or its dataset mutation happens
	// after the commit. There is no window where the commit can erase an
	// already-acknowledged delta.
	c.mirrorMu.Lock()
	nodes, links := c.mirror.snapshot()
	res := c.ds.Build(nodes, links, prep)
	c.mirrorMu.Unlock()
	countDropped(res.DroppedNodes, res.DroppedLinks)
	metrics.RebuildsTotal.Inc()
	metrics.PrepareDuration.Observe(float64(time.Since(start).Milliseconds()))
	c.publishStats()
	slog.Info("dataset built",
		"generation", res.Generation,
		"nodes", res.Nodes, "links", res.Links,
		"dropped_nodes", res.DroppedNodes, "dropped_links", res.DroppedLinks)

	if err := c.waitReady(ctx); err != nil {
		return err
	}
	pn, pl := c.ds.Snapshot()
	if err := c.adapter.Replace(ctx, render.Frame{Nodes: pn, Links: pl}); err != nil {
		slog.Warn("renderer rejected prepared frame, sending degraded frame", "err", err)
		c.sendDegraded(ctx, nodes)
	}
	return nil
}

// notifyPatch tells the renderer what changed after an incremental apply.
// Adapters without patch support get a full replacement frame.
func (c *Coordinator) notifyPatch(ctx context.Context, patch render.Patch) {
	if err := c.waitReady(ctx); err != nil {
		return
	}
	if pa, ok := c.adapter.(render.PatchApplier); ok {
		err := pa.ApplyPatch(ctx, patch)
		if err == nil {
			return
		}
		slog.Warn("renderer rejected patch, falling back to full replace", "err", err)
	}
	pn, pl := c.ds.Snapshot()
	if err := c.adapter.Replace(ctx, render.Frame{Nodes: pn, Links: pl}); err != nil {
		slog.Warn("renderer rejected replacement frame", "err", err)
		c.mirrorMu.Lock()
		nodes, _ := c.mirror.snapshot()
		c.mirrorMu.Unlock()
		c.sendDegraded(ctx, nodes)
	}
}

// sendDegraded pushes sanitized but unindexed records so the renderer shows
// something rather than nothing. Index -1 marks an unresolved position.
func (c *Coordinator) sendDegraded(ctx context.Context, rawNodes []graph.RawNode) {
	c.prepMu.RLock()
	prep := c.prep
	c.prepMu.RUnlock()
	nodes := make([]graph.PreparedNode, 0, len(rawNodes))
	for _, rn := range rawNodes {
		if !graph.ValidNodeID(rn.ID) {
			continue
		}
		nodes = append(nodes, graph.SanitizeNode(rn, -1, prep))
	}
	if err := c.adapter.Replace(ctx, render.Frame{Nodes: nodes, Degraded: true}); err != nil {
		slog.Error("renderer rejected degraded frame", "err", err)
	}
}

func (c *Coordinator) waitReady(ctx context.Context) error {
	select {
	case <-c.adapter.Ready():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) publishStats() {
	st := c.ds.Stats()
	metrics.LiveNodes.Set(float64(st.NodeCount))
	metrics.LiveEdges.Set(float64(st.EdgeCount))
	metrics.QueueUtilization.Set(c.QueueUtilization())
}

func countDropped(nodes, links int) {
	if nodes > 0 {
		metrics.RecordsDropped.WithLabelValues("node").Add(float64(nodes))
	}
	if links > 0 {
		metrics.RecordsDropped.WithLabelValues("link").Add(float64(links))
	}
}
