package plugin

import (
	"log/slog"
	"sync/atomic"

	"github.com/sliink/relay/internal/model"
)

// BasePlugin provides common functionality for all plugins
type BasePlugin struct {
	id         string
	name       string
	pluginType model.PluginType
	status     atomic.Value
	Config     map[string]interface{}
	core       model.CoreAPI
	logger     *slog.Logger
}

// NewBasePlugin creates a new base plugin
func NewBasePlugin(id, name string, pluginType model.PluginType) BasePlugin {
	p := BasePlugin{
		id:         id,
		name:       name,
		pluginType: pluginType,
		Config:     make(map[string]interface{}),
		logger:     slog.Default().With("plugin", id),
	}
	p.status.Store(model.StatusUninitialized)
	return p
}

// ID returns the plugin's unique identifier
func (p *BasePlugin) ID() string {
	return p.id
}

// Name returns the plugin's human-readable name
func (p *BasePlugin) Name() string {
	return p.name
}

// GetType returns the plugin type
func (p *BasePlugin) GetType() model.PluginType {
	return p.pluginType
}

// GetStatus returns the current plugin status
func (p *BasePlugin) GetStatus() model.ComponentStatus {
	if status, ok := p.status.Load().(model.ComponentStatus); ok {
		return status
	}
	return model.StatusUninitialized
}

// SetStatus updates the plugin status
func (p *BasePlugin) SetStatus(status model.ComponentStatus) {
	p.status.Store(status)
}

// Configure applies configuration to the plugin
func (p *BasePlugin) Configure(config map[string]interface{}) bool {
	if config == nil {
		return false
	}
	p.Config = config
	return true
}

// GetConfig returns a shallow copy of the plugin configuration
func (p *BasePlugin) GetConfig() map[string]interface{} {
	copied := make(map[string]interface{}, len(p.Config))
	for k, v := range p.Config {
		copied[k] = v
	}
	return copied
}

// RegisterWithCore registers the plugin with the core system
func (p *BasePlugin) RegisterWithCore(core model.CoreAPI) bool {
	p.core = core
	return true
}

// Core returns the core the plugin was registered with, or nil
func (p *BasePlugin) Core() model.CoreAPI {
	return p.core
}

// PublishEvent forwards an event to the core when registered
func (p *BasePlugin) PublishEvent(eventType model.EventType, data interface{}) {
	if p.core != nil {
		p.core.PublishEvent(eventType, p.id, data)
	}
}

// SetLogger replaces the plugin logger; the plugin id is attached
func (p *BasePlugin) SetLogger(logger *slog.Logger) {
	if logger != nil {
		p.logger = logger.With("plugin", p.id)
	}
}

// Logger returns the plugin logger
func (p *BasePlugin) Logger() *slog.Logger {
	return p.logger
}

// Validate checks if the plugin is properly configured
func (p *BasePlugin) Validate() error {
	// Base implementation assumes valid, derived plugins should override
	return nil
}

// Relationships returns the default processor relationships
func (p *BasePlugin) Relationships() []model.Relationship {
	return []model.Relationship{model.RelSuccess}
}

// OnConfigurationChanged is a no-op by default
func (p *BasePlugin) OnConfigurationChanged(key string, oldValue, newValue interface{}) {}
