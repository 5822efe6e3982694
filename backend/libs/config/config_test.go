package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	HTTP struct {
		Port string `yaml:"port"`
	} `yaml:"http"`
	Hold struct {
		TTL     time.Duration `yaml:"ttl" env:"SAMPLE_HOLD_TTL"`
		Enabled bool          `yaml:"enabled"`
	} `yaml:"hold"`
	Limit int `yaml:"limit"`
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http:\n  port: \"9000\"\nhold:\n  ttl: 4s\n  enabled: true\nlimit: 3\n"), 0o600))

	t.Setenv(configPathEnv, path)
	t.Setenv(dotenvPathEnv, "")
	t.Setenv("SAMPLE_HOLD_TTL", "1500ms")
	t.Setenv("LIMIT", "7")

	var cfg sample
	require.NoError(t, LoadConfig(&cfg))

	assert.Equal(t, "9000", cfg.HTTP.Port)
	assert.True(t, cfg.Hold.Enabled)
	assert.Equal(t, 1500*time.Millisecond, cfg.Hold.TTL)
	assert.Equal(t, 7, cfg.Limit)
}

func TestLoadConfigDotenvDoesNotOverrideEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("HTTP_PORT=7000\nLIMIT=2\n"), 0o600))

	t.Setenv(configPathEnv, "")
	t.Setenv(dotenvPathEnv, path)
	t.Setenv("LIMIT", "5")
	t.Cleanup(func() { os.Unsetenv("HTTP_PORT") })

	var cfg sample
	require.NoError(t, LoadConfig(&cfg))

	assert.Equal(t, "7000", cfg.HTTP.Port)
	assert.Equal(t, 5, cfg.Limit)
}

func TestLoadConfigRejectsBadInput(t *testing.T) {
	t.Setenv(configPathEnv, "")
	t.Setenv(dotenvPathEnv, "")

	assert.Error(t, LoadConfig(nil))
	var notStruct int
	assert.Error(t, LoadConfig(&notStruct))

	t.Setenv("SAMPLE_HOLD_TTL", "soon")
	var cfg sample
	assert.ErrorContains(t, LoadConfig(&cfg), "SAMPLE_HOLD_TTL")
}

func TestLoadConfigMissingExplicitDotenv(t *testing.T) {
	t.Setenv(configPathEnv, "")
	t.Setenv(dotenvPathEnv, filepath.Join(t.TempDir(), "absent.env"))

	var cfg sample
	assert.Error(t, LoadConfig(&cfg))
}
