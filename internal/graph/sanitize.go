package graph

import (
	"encoding/json"
	"hash/fnv"
	"strconv"
	"strings"

	"github.com/mvaidya/graphstage/internal/config"
)

// DefaultNodeType is assigned when a raw node carries no type.
const DefaultNodeType = "Unknown"

// DefaultEdgeType is assigned when a raw link carries no type.
const DefaultEdgeType = "default"

// IndexLookup resolves a node id to its dense index.
type IndexLookup func(id string) (int, bool)

// MapLookup adapts a plain map to an IndexLookup.
func MapLookup(m map[string]int) IndexLookup {
	return func(id string) (int, bool) {
		i, ok := m[id]
		return i, ok
	}
}

// ValidNodeID reports whether id may enter the dataset. The literal string
// "undefined" shows up when an upstream serializer stringifies a missing id.
func ValidNodeID(id string) bool {
	return id != "" && id != "undefined"
}

// SanitizeNode converts one raw node into the renderer record at the given
// dense index. Every output field has the documented type no matter what
// shape the input had; malformed numerics coerce to 0.
func SanitizeNode(raw RawNode, index int, cfg config.Preparation) PreparedNode {
	n := PreparedNode{
		ID:          raw.ID,
		Index:       index,
		Label:       raw.Label,
		NodeType:    raw.NodeType,
		Degree:      Num(raw.Properties["degree_centrality"]),
		Pagerank:    Num(raw.Properties["pagerank_centrality"]),
		Betweenness: Num(raw.Properties["betweenness_centrality"]),
		Eigenvector: Num(raw.Properties["eigenvector_centrality"]),
	}
	if n.Label == "" {
		n.Label = raw.ID
	}
	if n.NodeType == "" {
		n.NodeType = DefaultNodeType
	}
	n.Size = sizeFor(raw, n, cfg)
	n.Cluster = clusterFor(raw, n, cfg)
	return n
}

// SanitizeLink converts one raw link, resolving both endpoints through the
// registry snapshot. It returns nil when an endpoint does not resolve; the
// record is dropped, never errored.
func SanitizeLink(raw RawLink, indexOf IndexLookup) *PreparedLink {
	if indexOf == nil {
		return nil
	}
	si, ok := indexOf(raw.Source)
	if !ok || si < 0 {
		return nil
	}
	ti, ok := indexOf(raw.Target)
	if !ok || ti < 0 {
		return nil
	}
	l := &PreparedLink{
		Source:      raw.Source,
		Target:      raw.Target,
		SourceIndex: si,
		TargetIndex: ti,
		EdgeType:    raw.EdgeType,
		Weight:      Num(raw.Weight),
	}
	if l.EdgeType == "" {
		l.EdgeType = DefaultEdgeType
	}
	if l.Weight == 0 {
		l.Weight = 1
	}
	return l
}

// sizeFor derives node size. The configured metric is consulted first; any
// missing value falls through the fixed chain degree → pagerank → size hint
// → 1. The chain order must not change: siblings sized by the fallback must
// keep their relative size class when a node later gains a real value.
func sizeFor(raw RawNode, n PreparedNode, cfg config.Preparation) float64 {
	switch cfg.SizeMetric {
	case "pagerank":
		if n.Pagerank > 0 {
			return n.Pagerank
		}
	case "size":
		if s := Num(raw.Size); s > 0 {
			return s
		}
	}
	if n.Degree > 0 {
		return n.Degree
	}
	if n.Pagerank > 0 {
		return n.Pagerank
	}
	if s := Num(raw.Size); s > 0 {
		return s
	}
	return 1
}

// clusterFor hashes the configured grouping property into a small stable
// cluster id so the renderer colors related nodes together.
func clusterFor(raw RawNode, n PreparedNode, cfg config.Preparation) int {
	buckets := cfg.ClusterCount
	if buckets < 1 {
		buckets = 1
	}
	key := n.NodeType
	if cfg.ClusterBy != "" && cfg.ClusterBy != "node_type" {
		if v, ok := raw.Properties[cfg.ClusterBy]; ok {
			key = Str(v)
		}
	}
	h := fnv.New32a()
	h.Write([]byte(key))
	return int(h.Sum32() % uint32(buckets))
}

// Num coerces an arbitrary value to float64. Malformed input becomes 0.
func Num(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case uint:
		return float64(x)
	case uint64:
		return float64(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0
		}
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0
		}
		return f
	case bool:
		if x {
			return 1
		}
		return 0
	default:
		return 0
	}
}

// Str coerces an arbitrary value to its display string.
func Str(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	case nil:
		return ""
	default:
		return ""
	}
}
