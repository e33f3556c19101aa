package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sliink/relay/internal/model"
	"gopkg.in/yaml.v3"
)

// ConfigManager handles loading, storing, and accessing configuration.
// Files ending in .yaml or .yml are YAML, everything else is JSON.
type ConfigManager struct {
	config     map[string]interface{}
	watchers   map[string][]func(interface{})
	mutex      sync.RWMutex
	configFile string
	BaseComponent
}

// NewConfigManager creates a new configuration manager
func NewConfigManager() *ConfigManager {
	return &ConfigManager{
		config:        make(map[string]interface{}),
		watchers:      make(map[string][]func(interface{})),
		BaseComponent: NewBaseComponent("config_manager", "Configuration Manager"),
	}
}

// Initialize prepares the configuration manager for operation
func (m *ConfigManager) Initialize() bool {
	m.SetStatus(model.StatusInitialized)
	return true
}

// Start begins configuration manager operation
func (m *ConfigManager) Start() bool {
	m.SetStatus(model.StatusRunning)
	return true
}

// Stop halts configuration manager operation
func (m *ConfigManager) Stop() bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.watchers = make(map[string][]func(interface{}))

	m.SetStatus(model.StatusStopped)
	return true
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// LoadConfig loads configuration from a JSON or YAML file
func (m *ConfigManager) LoadConfig(configFile string) error {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	config, err := parseConfig(data, isYAML(configFile))
	if err != nil {
		return fmt.Errorf("error parsing config file %s: %w", configFile, err)
	}

	m.mutex.Lock()
	m.config = config
	m.configFile = configFile
	callbacks := m.watchersFor([]string{""})
	m.mutex.Unlock()

	notify(callbacks)
	return nil
}

func parseConfig(data []byte, asYAML bool) (map[string]interface{}, error) {
	var config map[string]interface{}
	var err error
	if asYAML {
		err = yaml.Unmarshal(data, &config)
	} else {
		err = json.Unmarshal(data, &config)
	}
	if err != nil {
		return nil, err
	}
	if config == nil {
		config = make(map[string]interface{})
	}
	return config, nil
}

// SaveConfig saves the current configuration to a file, in the format its
// extension implies
func (m *ConfigManager) SaveConfig(configFile string) error {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if configFile == "" {
		configFile = m.configFile
	}
	if configFile == "" {
		return fmt.Errorf("no config file specified")
	}

	var data []byte
	var err error
	if isYAML(configFile) {
		data, err = yaml.Marshal(m.config)
	} else {
		data, err = json.MarshalIndent(m.config, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("error encoding config: %w", err)
	}

	if err := os.WriteFile(configFile, data, 0o644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}

// ConfigFile returns the path the configuration was loaded from
func (m *ConfigManager) ConfigFile() string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.configFile
}

// GetConfig retrieves a configuration value by dotted path. The empty path
// returns a copy of the whole document.
func (m *ConfigManager) GetConfig(path string, defaultValue interface{}) interface{} {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if path == "" {
		return deepCopy(m.config)
	}
	return m.get(path, defaultValue)
}

// get navigates the document; callers hold the lock
func (m *ConfigManager) get(path string, defaultValue interface{}) interface{} {
	if path == "" {
		return m.config
	}

	parts := strings.Split(path, ".")
	current := m.config
	for i, part := range parts {
		v, ok := current[part]
		if !ok {
			return defaultValue
		}
		if i == len(parts)-1 {
			return v
		}
		current, ok = v.(map[string]interface{})
		if !ok {
			return defaultValue
		}
	}
	return defaultValue
}

// SetConfig sets a configuration value, creating intermediate maps. Watchers
// of the path and of every parent path are notified.
func (m *ConfigManager) SetConfig(path string, value interface{}) error {
	m.mutex.Lock()

	if path == "" {
		newConfig, ok := value.(map[string]interface{})
		if !ok {
			m.mutex.Unlock()
			return fmt.Errorf("cannot set root config to non-map value")
		}
		m.config = newConfig
		callbacks := m.watchersFor([]string{""})
		m.mutex.Unlock()
		notify(callbacks)
		return nil
	}

	parts := strings.Split(path, ".")
	current := m.config
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value

	paths := make([]string, 0, len(parts)+1)
	for i := 0; i <= len(parts); i++ {
		paths = append(paths, strings.Join(parts[:i], "."))
	}
	callbacks := m.watchersFor(paths)
	m.mutex.Unlock()

	notify(callbacks)
	return nil
}

// WatchConfig registers a callback for changes at path and calls it once
// with the current value
func (m *ConfigManager) WatchConfig(path string, callback func(interface{})) {
	m.mutex.Lock()
	m.watchers[path] = append(m.watchers[path], callback)
	current := m.get(path, nil)
	m.mutex.Unlock()

	callback(current)
}

type pendingCallback struct {
	callback func(interface{})
	value    interface{}
}

// watchersFor collects the callbacks and current values for paths; callers
// hold the lock
func (m *ConfigManager) watchersFor(paths []string) []pendingCallback {
	var pending []pendingCallback
	for _, path := range paths {
		watchers := m.watchers[path]
		if len(watchers) == 0 {
			continue
		}
		value := m.get(path, nil)
		for _, callback := range watchers {
			pending = append(pending, pendingCallback{callback: callback, value: value})
		}
	}
	return pending
}

func notify(pending []pendingCallback) {
	for _, p := range pending {
		p.callback(p.value)
	}
}

func deepCopy(value interface{}) map[string]interface{} {
	source, ok := value.(map[string]interface{})
	if !ok {
		return nil
	}
	copied := make(map[string]interface{}, len(source))
	for k, v := range source {
		copied[k] = copyValue(v)
	}
	return copied
}

func copyValue(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		return deepCopy(v)
	case []interface{}:
		copied := make([]interface{}, len(v))
		for i, item := range v {
			copied[i] = copyValue(item)
		}
		return copied
	default:
		return v
	}
}
