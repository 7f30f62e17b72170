// Package config loads msghub's tunables (quiet hours, retention
// windows, storage/archive paths) from YAML/TOML/env sources and
// optionally hot-reloads them. Grounded on the teacher's feeders
// package (feeders/yaml.go, feeders/toml.go, feeders/affixed_env.go):
// a narrow Feeder interface plus one struct per source format, rather
// than the teacher's own much larger field-tracking/verbose-debug
// feeder machinery, which nothing in this repo's single top-level
// Config needs.
package config

import (
	"github.com/stacknerd/msghub/policy"
)

// Config is the full set of runtime tunables spec.md leaves as
// deployment knobs rather than hard-coded constants.
type Config struct {
	BaseDir string `yaml:"baseDir" toml:"base_dir"`

	QuietHours policy.QuietHours `yaml:"quietHours" toml:"quiet_hours"`

	ArchiveKeepPreviousWeeks int    `yaml:"archiveKeepPreviousWeeks" toml:"archive_keep_previous_weeks"`
	StatsRollupKeepDays      int    `yaml:"statsRollupKeepDays" toml:"stats_rollup_keep_days"`
	StatsPruneCronSpec       string `yaml:"statsPruneCronSpec" toml:"stats_prune_cron_spec"`

	MsgStorageWriteIntervalMs int64 `yaml:"msgStorageWriteIntervalMs" toml:"msg_storage_write_interval_ms"`
	ArchiveFlushIntervalMs    int64 `yaml:"archiveFlushIntervalMs" toml:"archive_flush_interval_ms"`

	Locale string `yaml:"locale" toml:"locale"`
}

// Default returns the tunables' zero-risk defaults: quiet hours off,
// 90-day stats retention, current-week-only archive retention, no
// coalescing delay.
func Default() Config {
	return Config{
		BaseDir:                   "msghub-data",
		QuietHours:                policy.QuietHours{Enabled: false},
		ArchiveKeepPreviousWeeks:  0,
		StatsRollupKeepDays:       90,
		MsgStorageWriteIntervalMs: 0,
		ArchiveFlushIntervalMs:    0,
		Locale:                    "en-US",
	}
}

// Feeder populates structure from one configuration source. Mirrors the
// teacher's feeders.Feeder contract (Feed(interface{}) error), narrowed
// to the one method every feeder in this package actually needs.
type Feeder interface {
	Feed(structure any) error
}
