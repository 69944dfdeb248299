package dataset

// Registry is the bidirectional id ↔ dense-index mapping for one dataset
// generation. Indices are monotonic and never reused within a generation,
// even after Unregister; a stale index held by an in-flight renderer call
// can therefore never silently point at a different node. Compaction only
// happens when a full rebuild starts a new generation.
//
// Registry is not safe for concurrent use; the Dataset that owns it holds
// the lock.
type Registry struct {
	idToIndex map[string]int
	indexToID map[int]string
	next      int
}

// NewRegistry allocates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		idToIndex: make(map[string]int),
		indexToID: make(map[int]string),
	}
}

// Register assigns the next free index to id and returns it. Registering
// an already-known id returns the existing index; duplicate add events are
// expected under at-least-once delivery.
func (r *Registry) Register(id string) int {
	if i, ok := r.idToIndex[id]; ok {
		return i
	}
	i := r.next
	r.next++
	r.idToIndex[id] = i
	r.indexToID[i] = id
	return i
}

// Unregister removes the mapping for id. The freed index is not reused.
func (r *Registry) Unregister(id string) {
	i, ok := r.idToIndex[id]
	if !ok {
		return
	}
	delete(r.idToIndex, id)
	delete(r.indexToID, i)
}

// IndexOf returns the dense index for id.
func (r *Registry) IndexOf(id string) (int, bool) {
	i, ok := r.idToIndex[id]
	return i, ok
}

// IDAt returns the id registered at index.
func (r *Registry) IDAt(index int) (string, bool) {
	id, ok := r.indexToID[index]
	return id, ok
}

// Len returns the number of live mappings.
func (r *Registry) Len() int {
	return len(r.idToIndex)
}
