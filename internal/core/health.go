package core

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sliink/relay/internal/model"
)

// Counter names maintained by the core
const (
	CounterAutoTerminated   = "auto_terminated"
	CounterBufferRejections = "buffer_rejections"
	CounterSendFailures     = "send_failures"
	CounterRecordsSent      = "records_sent"
	CounterInvalidRecords   = "invalid_records"
)

// RelationshipCounter returns the counter name for records routed to rel
func RelationshipCounter(rel model.Relationship) string {
	return "relationship." + rel.Name
}

// HealthMonitor tracks component health, metrics and counters
type HealthMonitor struct {
	components map[string]Component
	metrics    map[string]interface{}
	counters   map[string]int64
	mutex      sync.RWMutex
	BaseComponent
}

// NewHealthMonitor creates a new health monitor
func NewHealthMonitor() *HealthMonitor {
	return &HealthMonitor{
		components:    make(map[string]Component),
		metrics:       make(map[string]interface{}),
		counters:      make(map[string]int64),
		BaseComponent: NewBaseComponent("health_monitor", "Health Monitor"),
	}
}

// Initialize prepares the health monitor for operation
func (h *HealthMonitor) Initialize() bool {
	h.SetStatus(model.StatusInitialized)
	return true
}

// Start begins health monitor operation
func (h *HealthMonitor) Start() bool {
	h.SetStatus(model.StatusRunning)
	return true
}

// Stop halts health monitor operation. Counters survive so a stopped host
// can still report what it did.
func (h *HealthMonitor) Stop() bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.metrics = make(map[string]interface{})

	h.SetStatus(model.StatusStopped)
	return true
}

// RegisterComponent adds a component to be monitored
func (h *HealthMonitor) RegisterComponent(component Component) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.components[component.ID()] = component
}

// UnregisterComponent stops monitoring a component
func (h *HealthMonitor) UnregisterComponent(id string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	delete(h.components, id)
}

// AddMetric adds a metric value with optional metadata
func (h *HealthMonitor) AddMetric(name string, value interface{}, metadata map[string]interface{}) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if metadata == nil {
		metadata = make(map[string]interface{})
	}

	metadata["value"] = value
	metadata["timestamp"] = time.Now()

	h.metrics[name] = metadata
}

// GetMetric retrieves a metric value
func (h *HealthMonitor) GetMetric(name string) (interface{}, bool) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	metric, exists := h.metrics[name]
	return metric, exists
}

// GetAllMetrics retrieves all metrics
func (h *HealthMonitor) GetAllMetrics() map[string]interface{} {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.copyMetrics()
}

func (h *HealthMonitor) copyMetrics() map[string]interface{} {
	metrics := make(map[string]interface{}, len(h.metrics))
	for k, v := range h.metrics {
		metrics[k] = v
	}
	return metrics
}

// IncrementCounter adds one to a named counter
func (h *HealthMonitor) IncrementCounter(name string) {
	h.AddCounter(name, 1)
}

// AddCounter adds delta to a named counter
func (h *HealthMonitor) AddCounter(name string, delta int64) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.counters[name] += delta
}

// Counter returns the current value of a counter
func (h *HealthMonitor) Counter(name string) int64 {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return h.counters[name]
}

// Counters returns a snapshot of all counters
func (h *HealthMonitor) Counters() map[string]int64 {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.copyCounters()
}

func (h *HealthMonitor) copyCounters() map[string]int64 {
	counters := make(map[string]int64, len(h.counters))
	for k, v := range h.counters {
		counters[k] = v
	}
	return counters
}

// GetHealthStatus retrieves the health status of the system
func (h *HealthMonitor) GetHealthStatus() model.HealthStatus {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	now := time.Now()
	components := make(map[string]model.HealthStatus, len(h.components))
	for id, component := range h.components {
		components[id] = model.HealthStatus{
			Status:    component.GetStatus(),
			Timestamp: now,
			Message:   fmt.Sprintf("%s status: %s", component.Name(), component.GetStatus()),
		}
	}

	statusCounts := make(map[model.ComponentStatus]int)
	for _, health := range components {
		statusCounts[health.Status]++
	}

	systemStatus := model.StatusRunning
	var statusMessage string
	switch {
	case statusCounts[model.StatusError] > 0:
		systemStatus = model.StatusError
		statusMessage = fmt.Sprintf("System has errors: %d components in ERROR state (%v)",
			statusCounts[model.StatusError], idsWithStatus(components, model.StatusError))
	case statusCounts[model.StatusStopped] > 0 && statusCounts[model.StatusStopped] == len(components):
		systemStatus = model.StatusStopped
		statusMessage = "System is stopped"
	case statusCounts[model.StatusRunning] == 0:
		systemStatus = model.StatusInitialized
		statusMessage = "System is initializing"
	case statusCounts[model.StatusRunning] < len(components):
		systemStatus = model.StatusInitialized
		statusMessage = fmt.Sprintf("System is partially running: %d of %d components running",
			statusCounts[model.StatusRunning], len(components))
	default:
		statusMessage = "System is healthy: all components running"
	}

	details := h.copyMetrics()
	details["counters"] = h.copyCounters()

	return model.HealthStatus{
		Status:     systemStatus,
		Timestamp:  now,
		Message:    statusMessage,
		Components: components,
		Details:    details,
	}
}

func idsWithStatus(components map[string]model.HealthStatus, status model.ComponentStatus) []string {
	var ids []string
	for id, health := range components {
		if health.Status == status {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
