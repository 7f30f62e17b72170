package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestYAMLFeederFeedsConfig(t *testing.T) {
	path := writeFile(t, "msghub.yaml", `
baseDir: /var/lib/msghub
quietHours:
  enabled: true
  startMin: 1320
  endMin: 420
  maxLevel: 60
statsRollupKeepDays: 30
locale: de-DE
`)

	cfg := Default()
	require.NoError(t, NewYAMLFeeder(path).Feed(&cfg))

	assert.Equal(t, "/var/lib/msghub", cfg.BaseDir)
	assert.True(t, cfg.QuietHours.Enabled)
	assert.Equal(t, 1320, cfg.QuietHours.StartMin)
	assert.Equal(t, 420, cfg.QuietHours.EndMin)
	assert.Equal(t, 60, cfg.QuietHours.MaxLevel)
	assert.Equal(t, 30, cfg.StatsRollupKeepDays)
	assert.Equal(t, "de-DE", cfg.Locale)
}

func TestTOMLFeederFeedsConfig(t *testing.T) {
	path := writeFile(t, "msghub.toml", `
base_dir = "/var/lib/msghub"
stats_rollup_keep_days = 14
locale = "fr-FR"

[quiet_hours]
enabled = true
start_min = 1320
end_min = 420
max_level = 60
`)

	cfg := Default()
	require.NoError(t, NewTOMLFeeder(path).Feed(&cfg))

	assert.Equal(t, "/var/lib/msghub", cfg.BaseDir)
	assert.True(t, cfg.QuietHours.Enabled)
	assert.Equal(t, 1320, cfg.QuietHours.StartMin)
	assert.Equal(t, 14, cfg.StatsRollupKeepDays)
	assert.Equal(t, "fr-FR", cfg.Locale)
}

func TestYAMLFeederReturnsErrorOnMissingFile(t *testing.T) {
	cfg := Default()
	err := NewYAMLFeeder(filepath.Join(t.TempDir(), "missing.yaml")).Feed(&cfg)
	assert.Error(t, err)
}

func fakeLookup(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestEnvFeederOverlaysWithoutPrefix(t *testing.T) {
	cfg := Default()
	f := EnvFeeder{Lookup: fakeLookup(map[string]string{
		"QUIET_HOURS_ENABLED":         "true",
		"QUIET_HOURS_START_MIN":       "1320",
		"QUIET_HOURS_END_MIN":         "420",
		"QUIET_HOURS_MAX_LEVEL":       "60",
		"STATS_ROLLUP_KEEP_DAYS":      "30",
		"ARCHIVE_KEEP_PREVIOUS_WEEKS": "2",
	})}

	require.NoError(t, f.Feed(&cfg))

	assert.True(t, cfg.QuietHours.Enabled)
	assert.Equal(t, 1320, cfg.QuietHours.StartMin)
	assert.Equal(t, 420, cfg.QuietHours.EndMin)
	assert.Equal(t, 60, cfg.QuietHours.MaxLevel)
	assert.Equal(t, 30, cfg.StatsRollupKeepDays)
	assert.Equal(t, 2, cfg.ArchiveKeepPreviousWeeks)
}

func TestEnvFeederHonorsPrefix(t *testing.T) {
	cfg := Default()
	f := EnvFeeder{Prefix: "MSGHUB", Lookup: fakeLookup(map[string]string{
		"MSGHUB_QUIET_HOURS_ENABLED": "true",
	})}

	require.NoError(t, f.Feed(&cfg))
	assert.True(t, cfg.QuietHours.Enabled)
}

func TestEnvFeederLeavesUnsetFieldsAlone(t *testing.T) {
	cfg := Default()
	cfg.Locale = "ja-JP"
	f := EnvFeeder{Lookup: fakeLookup(nil)}

	require.NoError(t, f.Feed(&cfg))
	assert.Equal(t, "ja-JP", cfg.Locale)
	assert.False(t, cfg.QuietHours.Enabled)
}

func TestEnvFeederReturnsErrorOnBadCoercion(t *testing.T) {
	cfg := Default()
	f := EnvFeeder{Lookup: fakeLookup(map[string]string{
		"QUIET_HOURS_START_MIN": "not-a-number",
	})}

	assert.Error(t, f.Feed(&cfg))
}

func TestEnvFeederRejectsNonConfigStructure(t *testing.T) {
	f := EnvFeeder{Lookup: fakeLookup(nil)}
	var notConfig struct{ X int }
	assert.Error(t, f.Feed(&notConfig))
}
