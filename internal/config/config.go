// Package config loads the node's full configuration from a TOML file and
// environment variables, in the defaults-then-file-then-env layering the
// teacher's internal/config package uses for rippled.cfg.
package config

// Randomize is the jitter distribution applied to generation/sync ticks
// (spec.md §6: "none | uniform | exponential").
type Randomize string

const (
	RandomizeNone        Randomize = "none"
	RandomizeUniform     Randomize = "uniform"
	RandomizeExponential Randomize = "exponential"
)

// Config holds every recognized option from spec.md §6 plus the ambient
// fields (storage, listen addresses, logging) the teacher's Config struct
// carries alongside its own protocol options.
type Config struct {
	// Protocol options (spec.md §6).
	Frequency        float64   `mapstructure:"frequency"`
	SyncFrequency    float64   `mapstructure:"sync_frequency"`
	EntropyThreshold int       `mapstructure:"entropy_threshold"`
	ConEntropy       int       `mapstructure:"con_entropy"`
	MaxEntropy       int       `mapstructure:"max_entropy"`
	GenesisNum       int       `mapstructure:"genesis_num"`
	ReferredNum      int       `mapstructure:"referred_num"`
	RoutablePrefix   string    `mapstructure:"routable_prefix"`
	McPrefix         string    `mapstructure:"mc_prefix"`
	IDManagerPrefix  string    `mapstructure:"id_manager_prefix"`
	Randomize        Randomize `mapstructure:"randomize"`
	SyncRandomize    Randomize `mapstructure:"sync_randomize"`

	// Ambient options: storage, transport, observability, admin surface.
	Storage   StorageConfig   `mapstructure:"storage"`
	Transport TransportConfig `mapstructure:"transport"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	LogLevel  string          `mapstructure:"log_level"`

	configPath string
}

// StorageConfig locates the pebble ledger store and the sqlite archival
// index on disk.
type StorageConfig struct {
	LedgerPath        string `mapstructure:"ledger_path"`
	HotCacheSize      int    `mapstructure:"hot_cache_size"`
	ArchivalIndexPath string `mapstructure:"archival_index_path"`
}

// TransportConfig configures the grpcsubstrate named-data adapter (spec
// §6's assumed transport primitive — see internal/transport/grpcsubstrate).
type TransportConfig struct {
	ListenAddr string   `mapstructure:"listen_addr"`
	Peers      []string `mapstructure:"peers"`
	PreferV2   bool     `mapstructure:"prefer_v2"`
}

// AdminConfig configures the local admin RPC surface (§9 design note) an
// identity-manager operator uses to trigger revocation.
type AdminConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// MetricsConfig configures the Prometheus exposition endpoint.
type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// GetConfigPath returns the path this Config was loaded from, or "" for a
// Config built purely from defaults (e.g. in tests).
func (c *Config) GetConfigPath() string {
	return c.configPath
}

// IsIdentityManager reports whether this peer's own routable prefix is
// the fabric's configured identity manager.
func (c *Config) IsIdentityManager() bool {
	return c.RoutablePrefix != "" && c.RoutablePrefix == c.IDManagerPrefix
}
