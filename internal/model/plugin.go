package model

import "context"

// CoreAPI is an interface for core functions needed by plugins
type CoreAPI interface {
	// ProcessRecord runs a record through the flow and returns where it ended up
	ProcessRecord(ctx context.Context, record *Record) Relationship

	// PublishEvent publishes an event to the event bus
	PublishEvent(eventType EventType, sourceID string, data interface{})
}

// Plugin is the base interface for all plugins
type Plugin interface {
	// Initialize prepares the plugin for operation
	Initialize() bool

	// Start begins plugin operation
	Start() bool

	// Stop halts plugin operation
	Stop() bool

	// GetStatus returns the current plugin status
	GetStatus() ComponentStatus

	// SetStatus updates the plugin status
	SetStatus(status ComponentStatus)

	// Configure applies configuration to the plugin
	Configure(config map[string]interface{}) bool

	// ID returns the plugin's unique identifier
	ID() string

	// Name returns the plugin's human-readable name
	Name() string

	// GetType returns the plugin type
	GetType() PluginType

	// Validate checks if the plugin is properly configured
	Validate() error

	// RegisterWithCore registers the plugin with the core system
	RegisterWithCore(core CoreAPI) bool
}

// InputPlugin produces records
type InputPlugin interface {
	Plugin

	// Collect gathers new records from the source
	Collect() []*Record
}

// ProcessorPlugin transforms a record and decides where it goes next
type ProcessorPlugin interface {
	Plugin

	// Process handles one record and returns the relationship it was routed to
	Process(ctx context.Context, record *Record) Relationship

	// Relationships lists every relationship Process may return
	Relationships() []Relationship

	// OnConfigurationChanged is called after a single property was modified
	OnConfigurationChanged(key string, oldValue, newValue interface{})
}

// OutputPlugin consumes routed records
type OutputPlugin interface {
	Plugin

	// Send exports a record
	Send(record *Record) error
}

// StatsProvider is implemented by plugins that expose runtime counters
type StatsProvider interface {
	Stats() map[string]interface{}
}
