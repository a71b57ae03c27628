package config

// Default returns the default validator configuration: no download or
// depth limit, proxy disabled, graph-search bounded by the default ceiling.
func Default() *Config {
	return &Config{
		DataDir: DefaultDataDir(),
		Validator: ValidatorConfig{
			DownloadLimit: nil,
			DepthLimit:    nil,
			ProxyEnabled:  false,
		},
		Node: NodeConfig{
			RPCEndpoint: "",
		},
		Indexer: IndexerConfig{
			Host:          "",
			MaxTxPerQuery: 1000,
			RatePerSecond: 4,
		},
		Storage: StorageConfig{
			Enabled: false,
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}
