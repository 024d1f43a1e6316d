package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestConfig(t *testing.T, body string) *Manager {
	t.Helper()
	file := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(file, []byte(body), 0o644))

	m := New()
	require.NoError(t, m.Load(file))
	return m
}

func TestManagerLoad(t *testing.T) {
	m := loadTestConfig(t, `{
		"store": {
			"nats_url": "nats://localhost:4222",
			"bucket": "traffic",
			"timeout": "30s"
		},
		"queue": {
			"size": 500,
			"workers": 2
		},
		"capture": {
			"exclude": ["metadata.google.internal", "safebrowsing"],
			"enabled": true
		}
	}`)

	assert.Equal(t, "nats://localhost:4222", m.GetString("store.nats_url", ""))
	assert.Equal(t, 500, m.GetInt("queue.size", 1000))
	assert.Equal(t, 30*time.Second, m.GetDuration("store.timeout", time.Minute))
	assert.True(t, m.GetBool("capture.enabled", false))
	assert.Equal(t, []string{"metadata.google.internal", "safebrowsing"}, m.GetStringSlice("capture.exclude"))
}

func TestManagerDefaults(t *testing.T) {
	m := loadTestConfig(t, `{"queue": {"size": "not a number"}}`)

	assert.Equal(t, "fallback", m.GetString("missing.path", "fallback"))
	assert.Equal(t, 1000, m.GetInt("queue.size", 1000), "type mismatch falls back to the default")
	assert.Equal(t, time.Minute, m.GetDuration("missing.timeout", time.Minute))
	assert.False(t, m.GetBool("missing.flag", false))
	assert.Nil(t, m.GetStringSlice("missing.list"))
}

func TestManagerLoadErrors(t *testing.T) {
	m := New()

	assert.Error(t, m.Load(filepath.Join(t.TempDir(), "absent.json")))

	file := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(file, []byte("{broken"), 0o644))
	assert.Error(t, m.Load(file))
}

func TestManagerEmpty(t *testing.T) {
	m := New()
	assert.Equal(t, "def", m.GetString("anything", "def"))
	assert.Equal(t, 7, m.GetInt("anything", 7))
}
