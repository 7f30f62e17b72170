package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/golobby/cast"
	"gopkg.in/yaml.v3"
)

// YAMLFeeder reads a Config from a YAML file. Mirrors the teacher's
// YamlFeeder (feeders/yaml.go) minus its verbose-debug/field-tracking
// hooks, which this single-struct config has no use for.
type YAMLFeeder struct {
	Path string
}

func NewYAMLFeeder(path string) YAMLFeeder { return YAMLFeeder{Path: path} }

func (f YAMLFeeder) Feed(structure any) error {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return fmt.Errorf("config: read yaml %s: %w", f.Path, err)
	}
	if err := yaml.Unmarshal(data, structure); err != nil {
		return fmt.Errorf("config: parse yaml %s: %w", f.Path, err)
	}
	return nil
}

// TOMLFeeder reads a Config from a TOML file. Mirrors the teacher's
// TomlFeeder (feeders/toml.go), using BurntSushi/toml directly rather
// than the teacher's golobby/config feeder.Toml embed.
type TOMLFeeder struct {
	Path string
}

func NewTOMLFeeder(path string) TOMLFeeder { return TOMLFeeder{Path: path} }

func (f TOMLFeeder) Feed(structure any) error {
	if _, err := toml.DecodeFile(f.Path, structure); err != nil {
		return fmt.Errorf("config: parse toml %s: %w", f.Path, err)
	}
	return nil
}

// EnvFeeder overlays a fixed set of environment variables onto an
// already-loaded Config, using golobby/cast for numeric/bool coercion
// the way the teacher's affixed_env feeder does (feeders/affixed_env.go)
// — narrowed from the teacher's reflection-driven whole-struct walk to
// an explicit, auditable list of the handful of knobs worth overriding
// per-deployment without editing the YAML/TOML file.
type EnvFeeder struct {
	Prefix string
	Lookup func(key string) (string, bool)
}

func NewEnvFeeder(prefix string) EnvFeeder {
	return EnvFeeder{Prefix: prefix, Lookup: os.LookupEnv}
}

func (f EnvFeeder) Feed(structure any) error {
	cfg, ok := structure.(*Config)
	if !ok {
		return fmt.Errorf("config: EnvFeeder.Feed requires *Config, got %T", structure)
	}

	if v, ok := f.lookup("QUIET_HOURS_ENABLED"); ok {
		b, err := cast.ToBool(v)
		if err != nil {
			return fmt.Errorf("config: env %s: %w", f.key("QUIET_HOURS_ENABLED"), err)
		}
		cfg.QuietHours.Enabled = b
	}
	if v, ok := f.lookup("QUIET_HOURS_START_MIN"); ok {
		n, err := envInt(v)
		if err != nil {
			return fmt.Errorf("config: env %s: %w", f.key("QUIET_HOURS_START_MIN"), err)
		}
		cfg.QuietHours.StartMin = n
	}
	if v, ok := f.lookup("QUIET_HOURS_END_MIN"); ok {
		n, err := envInt(v)
		if err != nil {
			return fmt.Errorf("config: env %s: %w", f.key("QUIET_HOURS_END_MIN"), err)
		}
		cfg.QuietHours.EndMin = n
	}
	if v, ok := f.lookup("QUIET_HOURS_MAX_LEVEL"); ok {
		n, err := envInt(v)
		if err != nil {
			return fmt.Errorf("config: env %s: %w", f.key("QUIET_HOURS_MAX_LEVEL"), err)
		}
		cfg.QuietHours.MaxLevel = n
	}
	if v, ok := f.lookup("STATS_ROLLUP_KEEP_DAYS"); ok {
		n, err := envInt(v)
		if err != nil {
			return fmt.Errorf("config: env %s: %w", f.key("STATS_ROLLUP_KEEP_DAYS"), err)
		}
		cfg.StatsRollupKeepDays = n
	}
	if v, ok := f.lookup("ARCHIVE_KEEP_PREVIOUS_WEEKS"); ok {
		n, err := envInt(v)
		if err != nil {
			return fmt.Errorf("config: env %s: %w", f.key("ARCHIVE_KEEP_PREVIOUS_WEEKS"), err)
		}
		cfg.ArchiveKeepPreviousWeeks = n
	}
	return nil
}

// envInt mirrors message.toInt64's own use of cast.ToInt64 for
// JSON/string-agnostic integer coercion, narrowed to the plain int
// fields this package's Config uses.
func envInt(v string) (int, error) {
	n, err := cast.ToInt64(v)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (f EnvFeeder) key(name string) string {
	if f.Prefix == "" {
		return name
	}
	return f.Prefix + "_" + name
}

func (f EnvFeeder) lookup(name string) (string, bool) {
	lookup := f.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return lookup(f.key(name))
}
