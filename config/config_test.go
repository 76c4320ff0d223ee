package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWritesDefaultsWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg, err := load(path)
	require.NoError(t, err)
	assert.Equal(t, "38870", cfg.Port)
	assert.Equal(t, 70*time.Millisecond, cfg.AgentTick())
	assert.Equal(t, 150*time.Millisecond, cfg.PlayerTick())
	assert.Equal(t, 5*time.Second, cfg.EndSequence())

	_, err = os.Stat(path)
	require.NoError(t, err, "defaults saved to disk")

	again, err := load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"port":"9000","default_agent":"greedy","seed":7}`), 0644))

	cfg, err := load(path)
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "greedy", cfg.DefaultAgent)
	assert.Equal(t, uint64(7), cfg.Seed)
	assert.Equal(t, 3, cfg.InitialLength, "unset fields keep defaults")
}

func TestLoadRejectsBadValues(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"initial_length":0}`), 0644))
	_, err := load(bad)
	assert.Error(t, err)

	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte(`{`), 0644))
	_, err = load(broken)
	assert.Error(t, err)
}

func TestLoadConfigSingleton(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	other, err := LoadConfig(filepath.Join(t.TempDir(), "ignored.json"))
	require.NoError(t, err)
	assert.Same(t, cfg, other)

	assert.Equal(t, "38870", GetConfigValue("port"))
	assert.Equal(t, 70, GetConfigValue("agent_tick_ms"))
	assert.Equal(t, true, GetConfigValue("autoplay"))
	assert.Equal(t, "", GetConfigValue("nope"))
}
