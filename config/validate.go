package config

import "fmt"

// Validate checks runtime config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Validator.DownloadLimit != nil && *cfg.Validator.DownloadLimit < 0 {
		return fmt.Errorf("slp_validator_download_limit must be >= 0")
	}
	if cfg.Validator.DepthLimit != nil && *cfg.Validator.DepthLimit < 0 {
		return fmt.Errorf("slp_validator_depth_limit must be >= 0")
	}
	if cfg.Indexer.MaxTxPerQuery < 0 {
		return fmt.Errorf("indexer.max_tx_per_query must be >= 0")
	}
	return nil
}
