// Package config loads the JSON configuration file and exposes typed
// accessors over dot-separated paths. Values the file does not set fall
// back to caller-supplied defaults; flags and environment variables are
// layered on top by the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// Manager holds the loaded configuration tree.
type Manager struct {
	config map[string]interface{}
	file   string
	mutex  sync.RWMutex
}

// New creates an empty configuration manager.
func New() *Manager {
	return &Manager{config: make(map[string]interface{})}
}

// Load reads and parses a JSON configuration file.
func (m *Manager) Load(file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	var config map[string]interface{}
	if err := json.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}

	m.mutex.Lock()
	m.config = config
	m.file = file
	m.mutex.Unlock()
	return nil
}

// GetString returns the string at path, or def.
func (m *Manager) GetString(path, def string) string {
	if v, ok := m.get(path).(string); ok {
		return v
	}
	return def
}

// GetInt returns the integer at path, or def. JSON numbers decode as
// float64, so both forms are accepted.
func (m *Manager) GetInt(path string, def int) int {
	switch v := m.get(path).(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return def
}

// GetBool returns the boolean at path, or def.
func (m *Manager) GetBool(path string, def bool) bool {
	if v, ok := m.get(path).(bool); ok {
		return v
	}
	return def
}

// GetDuration returns the duration at path, parsed from a string like
// "5s", or def.
func (m *Manager) GetDuration(path string, def time.Duration) time.Duration {
	if v, ok := m.get(path).(string); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// GetStringSlice returns the string array at path, or nil.
func (m *Manager) GetStringSlice(path string) []string {
	items, ok := m.get(path).([]interface{})
	if !ok {
		return nil
	}
	var out []string
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// get navigates the config tree along a dot-separated path.
func (m *Manager) get(path string) interface{} {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if path == "" {
		return m.config
	}

	parts := strings.Split(path, ".")
	current := m.config
	for i, part := range parts {
		v, ok := current[part]
		if !ok {
			return nil
		}
		if i == len(parts)-1 {
			return v
		}
		current, ok = v.(map[string]interface{})
		if !ok {
			return nil
		}
	}
	return nil
}
