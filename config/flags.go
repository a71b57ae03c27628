package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
)

// Flags holds parsed command-line flags.
type Flags struct {
	Help    bool
	Version bool

	DataDir string
	Config  string

	NodeRPC       string
	IndexerHost   string
	DownloadLimit string // "" = unset, "none" = no limit, else an integer
	DepthLimit    string
	ProxyEnabled  bool

	StoragePath string

	LogLevel string
	LogFile  string
	LogJSON  bool

	Args []string

	SetProxyEnabled bool
	SetLogJSON      bool
}

// ParseFlags parses command-line flags.
func ParseFlags() *Flags {
	f := &Flags{}
	fs := flag.NewFlagSet("slp-validator", flag.ContinueOnError)

	fs.BoolVar(&f.Help, "help", false, "Show help message")
	fs.BoolVar(&f.Help, "h", false, "Show help message (shorthand)")
	fs.BoolVar(&f.Version, "version", false, "Show version information")

	fs.StringVar(&f.DataDir, "datadir", "", "Data directory path")
	fs.StringVar(&f.Config, "config", "", "Config file path")
	fs.StringVar(&f.Config, "c", "", "Config file path (shorthand)")

	fs.StringVar(&f.NodeRPC, "node-rpc", "", "Full-node JSON-RPC endpoint for get/broadcast transaction")
	fs.StringVar(&f.IndexerHost, "indexer-host", "", "SLPDB-shaped indexer base URL for graph search")
	fs.StringVar(&f.DownloadLimit, "download-limit", "", `Max new downloads per job ("none" or an integer)`)
	fs.StringVar(&f.DepthLimit, "depth-limit", "", `Max ancestor hops per job ("none" or an integer)`)
	fs.BoolVar(&f.ProxyEnabled, "proxy", false, "Consult the validity oracle alongside local validation")
	fs.StringVar(&f.StoragePath, "storage-path", "", "Path for the reference badger-backed validity cache / tx store")

	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.LogFile, "log-file", "", "Log file path")
	fs.BoolVar(&f.LogJSON, "log-json", false, "Output logs as JSON")

	fs.Usage = printUsage

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	f.SetProxyEnabled = isFlagSet(fs, "proxy")
	f.SetLogJSON = isFlagSet(fs, "log-json")
	f.Args = fs.Args()

	return f
}

// ApplyFlags applies command-line flags to a Config struct.
func ApplyFlags(cfg *Config, f *Flags) error {
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}
	if f.NodeRPC != "" {
		cfg.Node.RPCEndpoint = f.NodeRPC
	}
	if f.IndexerHost != "" {
		cfg.Indexer.Host = f.IndexerHost
	}
	if f.DownloadLimit != "" {
		v, err := parseLimit(f.DownloadLimit)
		if err != nil {
			return fmt.Errorf("--download-limit: %w", err)
		}
		cfg.Validator.DownloadLimit = v
	}
	if f.DepthLimit != "" {
		v, err := parseLimit(f.DepthLimit)
		if err != nil {
			return fmt.Errorf("--depth-limit: %w", err)
		}
		cfg.Validator.DepthLimit = v
	}
	if f.SetProxyEnabled {
		cfg.Validator.ProxyEnabled = f.ProxyEnabled
	}
	if f.StoragePath != "" {
		cfg.Storage.Enabled = true
		cfg.Storage.Path = f.StoragePath
	}
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.Log.File = f.LogFile
	}
	if f.SetLogJSON {
		cfg.Log.JSON = f.LogJSON
	}
	return nil
}

// parseLimit parses a "none" or integer limit flag value into *int.
func parseLimit(s string) (*int, error) {
	if s == "none" {
		return nil, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("must be \"none\" or an integer, got %q", s)
	}
	return &n, nil
}

// isFlagSet checks if a flag was explicitly set.
func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(fl *flag.Flag) {
		if fl.Name == name {
			found = true
		}
	})
	return found
}

func printUsage() {
	usage := `slp-validator - SLP token DAG validation core

Usage:
  slpvalidate [options] <txid>
  slpvalidate --help

Options:
  --datadir          Data directory (default: ~/.slp-validator)
  --config, -c       Config file path (default: <datadir>/slp-validator.conf)
  --node-rpc         Full-node JSON-RPC endpoint for get/broadcast transaction
  --indexer-host     SLPDB-shaped indexer base URL for graph search
  --download-limit   Max new downloads per job ("none" or an integer)
  --depth-limit      Max ancestor hops per job ("none" or an integer)
  --proxy            Consult the validity oracle alongside local validation
  --storage-path     Path for the reference badger-backed stores
  --log-level        Log level: debug, info, warn, error (default: info)
  --log-file         Log file path (default: stdout)
  --log-json         Output logs as JSON

Examples:
  # Validate a token transaction using defaults
  slpvalidate <txid>

  # Validate against a graph-search indexer with a download ceiling
  slpvalidate --indexer-host=https://slpdb.example.com --download-limit=500 <txid>
`
	fmt.Print(usage)
}

// Load loads configuration with the following precedence:
// 1. Default values
// 2. Auto-create data dirs + default config file (idempotent)
// 3. Config file
// 4. Command-line flags (highest precedence)
func Load() (*Config, *Flags, error) {
	flags := ParseFlags()

	if flags.Help {
		printUsage()
		os.Exit(0)
	}
	if flags.Version {
		fmt.Println("slp-validator version 0.1.0")
		os.Exit(0)
	}

	cfg := Default()
	if flags.DataDir != "" {
		cfg.DataDir = flags.DataDir
	}

	if err := EnsureDataDirs(cfg); err != nil {
		return nil, nil, fmt.Errorf("ensuring data dirs: %w", err)
	}

	configPath := flags.Config
	if configPath == "" {
		configPath = cfg.ConfigFile()
	}
	fileValues, err := LoadFile(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config file: %w", err)
	}
	if err := ApplyFileConfig(cfg, fileValues); err != nil {
		return nil, nil, fmt.Errorf("applying config file: %w", err)
	}

	if err := ApplyFlags(cfg, flags); err != nil {
		return nil, nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, flags, nil
}
