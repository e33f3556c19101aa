package model

import "time"

// ComponentStatus represents the current status of a component
type ComponentStatus string

const (
	// StatusUninitialized indicates the component has not been initialized
	StatusUninitialized ComponentStatus = "UNINITIALIZED"
	// StatusInitialized indicates the component has been initialized but not started
	StatusInitialized ComponentStatus = "INITIALIZED"
	// StatusRunning indicates the component is currently running
	StatusRunning ComponentStatus = "RUNNING"
	// StatusStopped indicates the component has been stopped
	StatusStopped ComponentStatus = "STOPPED"
	// StatusError indicates the component is in an error state
	StatusError ComponentStatus = "ERROR"
)

// PluginType represents the type of plugin
type PluginType string

const (
	// InputPluginType represents plugins that produce records
	InputPluginType PluginType = "INPUT"
	// ProcessorPluginType represents plugins that transform and route records
	ProcessorPluginType PluginType = "PROCESSOR"
	// OutputPluginType represents plugins that consume routed records
	OutputPluginType PluginType = "OUTPUT"
)

// EventType represents the type of system event
type EventType string

const (
	// EventComponentStatusChange indicates a component status has changed
	EventComponentStatusChange EventType = "COMPONENT_STATUS_CHANGE"
	// EventConfigChange indicates a configuration value has changed
	EventConfigChange EventType = "CONFIG_CHANGE"
	// EventRecordReceived indicates a record entered the flow
	EventRecordReceived EventType = "RECORD_RECEIVED"
	// EventRecordRouted indicates a record left the flow on a relationship
	EventRecordRouted EventType = "RECORD_ROUTED"
	// EventModelRegistered indicates a model was deployed to the scoring service
	EventModelRegistered EventType = "MODEL_REGISTERED"
	// EventError indicates an error has occurred
	EventError EventType = "ERROR"
)

// HealthStatus represents the health status of the system or a component
type HealthStatus struct {
	Status     ComponentStatus         `json:"status"`
	Timestamp  time.Time               `json:"timestamp"`
	Message    string                  `json:"message,omitempty"`
	Details    map[string]any          `json:"details,omitempty"`
	Components map[string]HealthStatus `json:"components,omitempty"`
}

// BufferStatus represents the status of an output buffer
type BufferStatus struct {
	BufferID       string    `json:"buffer_id"`
	QueueSize      int       `json:"queue_size"`
	PenalizedItems int       `json:"penalized_items"`
	TotalBuffered  int       `json:"total_buffered"`
	IsFull         bool      `json:"is_full"`
	LastUpdate     time.Time `json:"last_update"`
}
