package dataset

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mvaidya/graphstage/internal/config"
	"github.com/mvaidya/graphstage/internal/graph"
)

var (
	// ErrNotBuilt is returned when a mutation arrives before the first Build.
	ErrNotBuilt = errors.New("dataset: not built yet")
	// ErrUnknownNode is returned when an update references an unregistered id.
	ErrUnknownNode = errors.New("dataset: unknown node id")
	// ErrUnknownLink is returned when an update references a missing endpoint pair.
	ErrUnknownLink = errors.New("dataset: unknown link")
)

// Dataset owns the prepared node/link arrays and the index registry. All
// other components go through its methods; nothing else may touch the
// shared arrays. Every mutating method takes the write lock for the whole
// logical step, so a reader can never observe a node without its links
// resolved or a removed node with a dangling link.
type Dataset struct {
	mu          sync.RWMutex
	cfg         config.Preparation
	reg         *Registry
	nodes       []graph.PreparedNode
	links       []graph.PreparedLink
	pos         map[string]int // id → position in nodes slice
	built       bool
	generation  uint64
	lastUpdated time.Time
}

// New allocates an empty, unbuilt dataset.
func New() *Dataset {
	return &Dataset{
		reg: NewRegistry(),
		pos: make(map[string]int),
	}
}

// BuildResult summarizes one full rebuild.
type BuildResult struct {
	Nodes        int
	Links        int
	DroppedNodes int
	DroppedLinks int
	Generation   uint64
}

// AddResult summarizes one incremental add.
type AddResult struct {
	AddedIndices   []int
	UpdatedIndices []int
	AddedLinks     int
	DroppedNodes   int
	DroppedLinks   int
}

// Build replaces the whole dataset, starting a new generation with compact
// indices assigned in input order. Given identical input it produces an
// identical dataset, index assignments included. This is the only operation
// that may renumber.
func (d *Dataset) Build(rawNodes []graph.RawNode, rawLinks []graph.RawLink, cfg config.Preparation) BuildResult {
	reg := NewRegistry()
	nodes := make([]graph.PreparedNode, 0, len(rawNodes))
	pos := make(map[string]int, len(rawNodes))
	var res BuildResult

	for _, rn := range rawNodes {
		if !graph.ValidNodeID(rn.ID) {
			res.DroppedNodes++
			continue
		}
		if _, ok := reg.IndexOf(rn.ID); ok {
			// Duplicate id in the input; first occurrence wins.
			res.DroppedNodes++
			continue
		}
		idx := reg.Register(rn.ID)
		pos[rn.ID] = len(nodes)
		nodes = append(nodes, graph.SanitizeNode(rn, idx, cfg))
	}

	links := make([]graph.PreparedLink, 0, len(rawLinks))
	for _, rl := range rawLinks {
		if pl := graph.SanitizeLink(rl, reg.IndexOf); pl != nil {
			links = append(links, *pl)
		} else {
			res.DroppedLinks++
		}
	}

	d.mu.Lock()
	d.cfg = cfg
	d.reg = reg
	d.nodes = nodes
	d.links = links
	d.pos = pos
	d.built = true
	d.generation++
	d.lastUpdated = time.Now()
	res.Generation = d.generation
	d.mu.Unlock()

	res.Nodes = len(nodes)
	res.Links = len(links)
	return res
}

// ApplyAdd appends new nodes and links. Existing indices are never touched;
// an add for an already-registered id re-sanitizes the record in place at
// its existing index, since duplicate add events are expected under
// at-least-once delivery.
func (d *Dataset) ApplyAdd(rawNodes []graph.RawNode, rawLinks []graph.RawLink) (AddResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var res AddResult
	if !d.built {
		return res, ErrNotBuilt
	}

	for _, rn := range rawNodes {
		if !graph.ValidNodeID(rn.ID) {
			res.DroppedNodes++
			continue
		}
		if idx, ok := d.reg.IndexOf(rn.ID); ok {
			d.nodes[d.pos[rn.ID]] = graph.SanitizeNode(rn, idx, d.cfg)
			res.UpdatedIndices = append(res.UpdatedIndices, idx)
			continue
		}
		idx := d.reg.Register(rn.ID)
		d.pos[rn.ID] = len(d.nodes)
		d.nodes = append(d.nodes, graph.SanitizeNode(rn, idx, d.cfg))
		res.AddedIndices = append(res.AddedIndices, idx)
	}

	for _, rl := range rawLinks {
		if pl := graph.SanitizeLink(rl, d.reg.IndexOf); pl != nil {
			d.links = append(d.links, *pl)
			res.AddedLinks++
		} else {
			res.DroppedLinks++
		}
	}

	d.lastUpdated = time.Now()
	return res, nil
}

// ApplyUpdateNodes re-sanitizes existing nodes in place, keeping their
// indices. All ids are validated before anything is written, so a failed
// update leaves the dataset untouched.
func (d *Dataset) ApplyUpdateNodes(rawNodes []graph.RawNode) ([]int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.built {
		return nil, ErrNotBuilt
	}
	for _, rn := range rawNodes {
		if _, ok := d.reg.IndexOf(rn.ID); !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownNode, rn.ID)
		}
	}
	indices := make([]int, 0, len(rawNodes))
	for _, rn := range rawNodes {
		idx, _ := d.reg.IndexOf(rn.ID)
		d.nodes[d.pos[rn.ID]] = graph.SanitizeNode(rn, idx, d.cfg)
		indices = append(indices, idx)
	}
	d.lastUpdated = time.Now()
	return indices, nil
}

// ApplyUpdateLinks re-sanitizes existing links identified by their
// (source, target) pair. With multi-edges the first match in current link
// order is updated; identifying a specific parallel edge is not supported.
func (d *Dataset) ApplyUpdateLinks(rawLinks []graph.RawLink) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.built {
		return 0, ErrNotBuilt
	}
	for _, rl := range rawLinks {
		if d.findLink(rl.Source, rl.Target) < 0 {
			return 0, fmt.Errorf("%w: %s → %s", ErrUnknownLink, rl.Source, rl.Target)
		}
	}
	updated := 0
	for _, rl := range rawLinks {
		p := d.findLink(rl.Source, rl.Target)
		if pl := graph.SanitizeLink(rl, d.reg.IndexOf); pl != nil {
			d.links[p] = *pl
			updated++
		}
	}
	d.lastUpdated = time.Now()
	return updated, nil
}

// ApplyRemoveNodes unregisters the given ids and cascades: every link whose
// source or target is a removed id goes in the same step. Unknown ids are
// no-ops. Freed indices are not reused until the next Build.
func (d *Dataset) ApplyRemoveNodes(ids []string) (nodesRemoved, linksRemoved int, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.built {
		return 0, 0, ErrNotBuilt
	}
	gone := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := d.reg.IndexOf(id); ok {
			gone[id] = true
			d.reg.Unregister(id)
		}
	}
	if len(gone) == 0 {
		return 0, 0, nil
	}

	kept := d.nodes[:0]
	for _, n := range d.nodes {
		if gone[n.ID] {
			delete(d.pos, n.ID)
			nodesRemoved++
			continue
		}
		kept = append(kept, n)
	}
	d.nodes = kept
	for i, n := range d.nodes {
		d.pos[n.ID] = i
	}

	keptLinks := d.links[:0]
	for _, l := range d.links {
		if gone[l.Source] || gone[l.Target] {
			linksRemoved++
			continue
		}
		keptLinks = append(keptLinks, l)
	}
	d.links = keptLinks
	d.lastUpdated = time.Now()
	return nodesRemoved, linksRemoved, nil
}

// ApplyRemoveLinks removes one link per key, first match in current link
// order. Unknown keys are no-ops.
func (d *Dataset) ApplyRemoveLinks(keys []graph.LinkKey) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.built {
		return 0, ErrNotBuilt
	}
	removed := 0
	for _, k := range keys {
		p := d.findLink(k.Source, k.Target)
		if p < 0 {
			continue
		}
		d.links = append(d.links[:p], d.links[p+1:]...)
		removed++
	}
	if removed > 0 {
		d.lastUpdated = time.Now()
	}
	return removed, nil
}

func (d *Dataset) findLink(source, target string) int {
	for i, l := range d.links {
		if l.Source == source && l.Target == target {
			return i
		}
	}
	return -1
}

// NodeByIndex returns the prepared node at the given dense index.
func (d *Dataset) NodeByIndex(index int) (graph.PreparedNode, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.reg.IDAt(index)
	if !ok {
		return graph.PreparedNode{}, false
	}
	return d.nodes[d.pos[id]], true
}

// IndexByID returns the dense index for an external id.
func (d *Dataset) IndexByID(id string) (int, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.reg.IndexOf(id)
}

// Stats returns the live dataset summary.
func (d *Dataset) Stats() graph.Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return graph.Stats{
		NodeCount:   len(d.nodes),
		EdgeCount:   len(d.links),
		Generation:  d.generation,
		LastUpdated: d.lastUpdated,
	}
}

// Snapshot returns copies of the prepared arrays for handoff to a renderer.
func (d *Dataset) Snapshot() ([]graph.PreparedNode, []graph.PreparedLink) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	nodes := make([]graph.PreparedNode, len(d.nodes))
	copy(nodes, d.nodes)
	links := make([]graph.PreparedLink, len(d.links))
	copy(links, d.links)
	return nodes, links
}

// Generation returns the current generation counter.
func (d *Dataset) Generation() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.generation
}

// Built reports whether the first Build has completed.
func (d *Dataset) Built() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.built
}
