package engine

import "github.com/mvaidya/graphstage/internal/graph"

// mirror is the best currently-known full raw node/link set. The
// coordinator keeps it in step with every applied delta so that an
// escalated or reconfigured rebuild always has complete input, without
// asking the data source to resend anything.
type mirror struct {
	nodes  []graph.RawNode
	nodeAt map[string]int
	links  []graph.RawLink
}

func newMirror() *mirror {
	return &mirror{nodeAt: make(map[string]int)}
}

func (m *mirror) replace(nodes []graph.RawNode, links []graph.RawLink) {
	m.nodes = append(m.nodes[:0:0], nodes...)
	m.links = append(m.links[:0:0], links...)
	m.nodeAt = make(map[string]int, len(m.nodes))
	for i, n := range m.nodes {
		m.nodeAt[n.ID] = i
	}
}

func (m *mirror) upsert(nodes []graph.RawNode, links []graph.RawLink) {
	for _, n := range nodes {
		if !graph.ValidNodeID(n.ID) {
			continue
		}
		if i, ok := m.nodeAt[n.ID]; ok {
			m.nodes[i] = n
			continue
		}
		m.nodeAt[n.ID] = len(m.nodes)
		m.nodes = append(m.nodes, n)
	}
	for _, l := range links {
		if i := m.findLink(l.Source, l.Target); i >= 0 {
			m.links[i] = l
			continue
		}
		m.links = append(m.links, l)
	}
}

func (m *mirror) removeNodes(ids []string) {
	gone := make(map[string]bool, len(ids))
	for _, id := range ids {
		gone[id] = true
	}
	kept := m.nodes[:0]
	for _, n := range m.nodes {
		if !gone[n.ID] {
			kept = append(kept, n)
		}
	}
	m.nodes = kept
	m.nodeAt = make(map[string]int, len(m.nodes))
	for i, n := range m.nodes {
		m.nodeAt[n.ID] = i
	}
	keptLinks := m.links[:0]
	for _, l := range m.links {
		if !gone[l.Source] && !gone[l.Target] {
			keptLinks = append(keptLinks, l)
		}
	}
	m.links = keptLinks
}

func (m *mirror) removeLinks(keys []graph.LinkKey) {
	for _, k := range keys {
		if i := m.findLink(k.Source, k.Target); i >= 0 {
			m.links = append(m.links[:i], m.links[i+1:]...)
		}
	}
}

func (m *mirror) findLink(source, target string) int {
	for i, l := range m.links {
		if l.Source == source && l.Target == target {
			return i
		}
	}
	return -1
}

func (m *mirror) snapshot() ([]graph.RawNode, []graph.RawLink) {
	nodes := make([]graph.RawNode, len(m.nodes))
	copy(nodes, m.nodes)
	links := make([]graph.RawLink, len(m.links))
	copy(links, m.links)
	return nodes, links
}
