package core

import (
	"sort"
	"sync"

	"github.com/sliink/relay/internal/model"
)

// PluginRegistry keeps track of available plugins
type PluginRegistry struct {
	plugins map[string]model.Plugin
	mutex   sync.RWMutex
	BaseComponent
}

// NewPluginRegistry creates a new plugin registry
func NewPluginRegistry() *PluginRegistry {
	return &PluginRegistry{
		plugins:       make(map[string]model.Plugin),
		BaseComponent: NewBaseComponent("plugin_registry", "Plugin Registry"),
	}
}

// Initialize prepares the plugin registry for operation
func (r *PluginRegistry) Initialize() bool {
	r.SetStatus(model.StatusInitialized)
	return true
}

// Start begins plugin registry operation
func (r *PluginRegistry) Start() bool {
	r.SetStatus(model.StatusRunning)
	return true
}

// Stop halts every registered plugin
func (r *PluginRegistry) Stop() bool {
	for _, p := range r.GetAllPlugins() {
		p.Stop()
	}

	r.SetStatus(model.StatusStopped)
	return true
}

// RegisterPlugin adds a plugin to the registry; ids must be unique
func (r *PluginRegistry) RegisterPlugin(p model.Plugin) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.plugins[p.ID()]; exists {
		return false
	}

	r.plugins[p.ID()] = p
	return true
}

// UnregisterPlugin removes a plugin from the registry
func (r *PluginRegistry) UnregisterPlugin(pluginID string) bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.plugins[pluginID]; !exists {
		return false
	}

	delete(r.plugins, pluginID)
	return true
}

// GetPlugin retrieves a plugin by ID
func (r *PluginRegistry) GetPlugin(pluginID string) (model.Plugin, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	p, exists := r.plugins[pluginID]
	return p, exists
}

// GetProcessor retrieves a processor plugin by ID
func (r *PluginRegistry) GetProcessor(pluginID string) (model.ProcessorPlugin, bool) {
	p, exists := r.GetPlugin(pluginID)
	if !exists {
		return nil, false
	}
	processor, ok := p.(model.ProcessorPlugin)
	return processor, ok
}

// GetOutput retrieves an output plugin by ID
func (r *PluginRegistry) GetOutput(pluginID string) (model.OutputPlugin, bool) {
	p, exists := r.GetPlugin(pluginID)
	if !exists {
		return nil, false
	}
	output, ok := p.(model.OutputPlugin)
	return output, ok
}

// GetPluginsByType retrieves all plugins of a specific type, ordered by id
func (r *PluginRegistry) GetPluginsByType(pluginType model.PluginType) []model.Plugin {
	var result []model.Plugin
	for _, p := range r.GetAllPlugins() {
		if p.GetType() == pluginType {
			result = append(result, p)
		}
	}
	return result
}

// GetInputPlugins retrieves all input plugins
func (r *PluginRegistry) GetInputPlugins() []model.InputPlugin {
	var result []model.InputPlugin
	for _, p := range r.GetPluginsByType(model.InputPluginType) {
		if inputPlugin, ok := p.(model.InputPlugin); ok {
			result = append(result, inputPlugin)
		}
	}
	return result
}

// GetProcessorPlugins retrieves all processor plugins
func (r *PluginRegistry) GetProcessorPlugins() []model.ProcessorPlugin {
	var result []model.ProcessorPlugin
	for _, p := range r.GetPluginsByType(model.ProcessorPluginType) {
		if processorPlugin, ok := p.(model.ProcessorPlugin); ok {
			result = append(result, processorPlugin)
		}
	}
	return result
}

// GetOutputPlugins retrieves all output plugins
func (r *PluginRegistry) GetOutputPlugins() []model.OutputPlugin {
	var result []model.OutputPlugin
	for _, p := range r.GetPluginsByType(model.OutputPluginType) {
		if outputPlugin, ok := p.(model.OutputPlugin); ok {
			result = append(result, outputPlugin)
		}
	}
	return result
}

// GetAllPlugins retrieves all registered plugins, ordered by id
func (r *PluginRegistry) GetAllPlugins() []model.Plugin {
	r.mutex.RLock()
	result := make([]model.Plugin, 0, len(r.plugins))
	for _, p := range r.plugins {
		result = append(result, p)
	}
	r.mutex.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].ID() < result[j].ID() })
	return result
}
