package graph

import "time"

// RawNode is the canonical input model for a node as delivered by the
// application data source. Every field except ID is optional; Properties
// carries arbitrary per-node data (centrality values, display hints, etc.).
type RawNode struct {
	ID         string         `json:"id"`
	Label      string         `json:"label,omitempty"`
	NodeType   string         `json:"node_type,omitempty"`
	Size       any            `json:"size,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
	CreatedAt  time.Time      `json:"created_at,omitempty"`
	UpdatedAt  time.Time      `json:"updated_at,omitempty"`
}

// RawLink is the input model for an edge. Source and Target are RawNode ids.
type RawLink struct {
	Source    string    `json:"source"`
	Target    string    `json:"target"`
	EdgeType  string    `json:"edge_type,omitempty"`
	Weight    any       `json:"weight,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// PreparedNode is the renderer-facing record. Index is the dense position
// the renderer trusts for all lookups; it is assigned at insertion time and
// never changes until the node is removed or the dataset is rebuilt.
type PreparedNode struct {
	ID          string  `json:"id"`
	Index       int     `json:"index"`
	Label       string  `json:"label"`
	NodeType    string  `json:"node_type"`
	Degree      float64 `json:"degree"`
	Pagerank    float64 `json:"pagerank"`
	Betweenness float64 `json:"betweenness"`
	Eigenvector float64 `json:"eigenvector"`
	Size        float64 `json:"size"`
	Cluster     int     `json:"cluster"`
}

// PreparedLink is the renderer-facing edge record. Source and Target keep
// the original ids for display; SourceIndex and TargetIndex are the dense
// positions resolved at preparation time.
type PreparedLink struct {
	Source      string  `json:"source"`
	Target      string  `json:"target"`
	SourceIndex int     `json:"sourceIndex"`
	TargetIndex int     `json:"targetIndex"`
	EdgeType    string  `json:"edge_type"`
	Weight      float64 `json:"weight"`
}

// LinkKey identifies a link by its endpoint ids for update/remove.
type LinkKey struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Op discriminates delta operations.
type Op string

const (
	OpAdd    Op = "add"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Delta is one incremental instruction from the live-update channel.
// Add and update carry full raw records; delete carries id/key lists.
type Delta struct {
	ID         string    `json:"id"`
	Op         Op        `json:"operation"`
	Nodes      []RawNode `json:"nodes,omitempty"`
	Links      []RawLink `json:"edges,omitempty"`
	NodeIDs    []string  `json:"node_ids,omitempty"`
	LinkKeys   []LinkKey `json:"edge_keys,omitempty"`
	ReceivedAt time.Time `json:"-"`
}

// Stats is the live dataset summary exposed to callers.
type Stats struct {
	NodeCount   int       `json:"node_count"`
	EdgeCount   int       `json:"edge_count"`
	Generation  uint64    `json:"generation"`
	LastUpdated time.Time `json:"last_updated"`
}
