// Package config handles configuration for the SLP validation core: the
// download/depth limits and proxy toggle from spec.md §6, plus ambient
// logging, storage, and indexer settings.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Config holds the validator's runtime configuration.
type Config struct {
	DataDir string `conf:"datadir"`

	// Validation limits — spec.md §6 recognized configuration keys.
	Validator ValidatorConfig

	// Full-node JSON-RPC endpoint used for get/broadcast transaction.
	Node NodeConfig

	// Graph-search / indexer client settings.
	Indexer IndexerConfig

	// Reference storage backend (badger-backed ValidityCache/TxStore).
	Storage StorageConfig

	Log LogConfig
}

// ValidatorConfig maps directly onto spec.md §6's recognized configuration
// keys. DownloadLimit and DepthLimit are pointers because "null" (no limit)
// is a meaningfully different value from zero.
type ValidatorConfig struct {
	// slp_validator_download_limit
	DownloadLimit *int `conf:"slp_validator_download_limit"`
	// slp_validator_depth_limit
	DepthLimit *int `conf:"slp_validator_depth_limit"`
	// slp_validator_proxy_enabled
	ProxyEnabled bool `conf:"slp_validator_proxy_enabled"`
}

// NodeConfig configures the full-node JSON-RPC client.
type NodeConfig struct {
	RPCEndpoint string `conf:"node.rpc_endpoint"`
}

// IndexerConfig configures the graph-search bulk-download client.
type IndexerConfig struct {
	Host          string `conf:"indexer.host"`
	MaxTxPerQuery int    `conf:"indexer.max_tx_per_query"` // default 1000, spec.md §4.5
	RatePerSecond float64 `conf:"indexer.rate_per_second"`
}

// StorageConfig configures the reference badger-backed stores.
type StorageConfig struct {
	Enabled bool   `conf:"storage.enabled"`
	Path    string `conf:"storage.path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.slp-validator
//	macOS:   ~/Library/Application Support/SLPValidator
//	Windows: %APPDATA%\SLPValidator
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".slp-validator"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "SLPValidator")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "SLPValidator")
		}
		return filepath.Join(home, "AppData", "Roaming", "SLPValidator")
	default:
		return filepath.Join(home, ".slp-validator")
	}
}

// StorageDir returns the directory the reference badger stores live in.
func (c *Config) StorageDir() string {
	if c.Storage.Path != "" {
		return c.Storage.Path
	}
	return filepath.Join(c.DataDir, "storage")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "slp-validator.conf")
}
