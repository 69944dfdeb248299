package config

// Config is the top-level YAML structure.
type Config struct {
	Version     string      `yaml:"version"`
	Engine      EngineConf  `yaml:"engine"`
	Preparation Preparation `yaml:"preparation"`
}

// EngineConf holds tunable pipeline settings.
type EngineConf struct {
	QueueDepth       int `yaml:"queue_depth"`
	CooldownMs       int `yaml:"cooldown_ms"`
	PrepareTimeoutMs int `yaml:"prepare_timeout_ms"`
}

// Preparation controls how raw records become renderer records.
// It is passed explicitly into every build rather than read ambiently.
type Preparation struct {
	// SizeMetric picks which centrality drives node size: "degree",
	// "pagerank" or "size". A missing value falls through the fixed
	// chain degree → pagerank → size hint → 1.
	SizeMetric string `yaml:"size_metric"`
	// ClusterBy names the node property (or "node_type") whose value
	// is hashed into a cluster id.
	ClusterBy    string `yaml:"cluster_by"`
	ClusterCount int    `yaml:"cluster_count"`
}
