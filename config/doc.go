// Package config loads the inferops daemon configuration.
//
// A file is JSON (.json) or YAML (.yaml, .yml) using the snake_case option
// names below. Fields left out keep their Default value, so partial files are
// fine. ${VAR} references are expanded from the environment before parsing
// and a reference to an unset variable fails the load; $$ yields a literal $.
//
//	{
//	  "pipeline": {"max_concurrent_tasks": 2, "input_queue_size": 10,
//	               "processing_timeout_seconds": 5, "target_processing_time_ms": 33},
//	  "cache":    {"cache_lifetime_seconds": 60, "max_cache_size_mb": 50},
//	  "quality":  {"quality_window_size": 20, "min_quality_threshold": 0.3},
//	  "observe":  {"service_name": "inferopsd", "metrics_exporter": "prometheus"},
//	  "http":     {"addr": ":9090"}
//	}
//
// The section converters (PipelineConfig, CachePolicy, QualityConfig,
// ObserveConfig) produce the typed configuration of each package.
package config
