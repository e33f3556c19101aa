package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/sliink/relay/internal/model"
)

// FlowRouter runs records through an ordered list of processors and maps
// the final relationship to output plugins
type FlowRouter struct {
	registry    *PluginRegistry
	processors  []string
	connections map[string][]string
	mutex       sync.RWMutex
	BaseComponent
}

// NewFlowRouter creates a flow router over the registry's plugins
func NewFlowRouter(registry *PluginRegistry) *FlowRouter {
	return &FlowRouter{
		registry:      registry,
		BaseComponent: NewBaseComponent("flow_router", "Flow Router"),
	}
}

// Initialize prepares the flow router for operation
func (f *FlowRouter) Initialize() bool {
	if f.registry == nil {
		return false
	}
	f.SetStatus(model.StatusInitialized)
	return true
}

// Start begins flow router operation
func (f *FlowRouter) Start() bool {
	f.SetStatus(model.StatusRunning)
	return true
}

// Stop halts flow router operation
func (f *FlowRouter) Stop() bool {
	f.SetStatus(model.StatusStopped)
	return true
}

// SetFlow installs the processor order. Every id must name a registered
// processor.
func (f *FlowRouter) SetFlow(processorIDs []string) error {
	for _, id := range processorIDs {
		if _, exists := f.registry.GetPlugin(id); !exists {
			return errors.New("processor plugin not found: " + id)
		}
		if _, ok := f.registry.GetProcessor(id); !ok {
			return errors.New("plugin is not a processor: " + id)
		}
	}

	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.processors = append([]string(nil), processorIDs...)
	return nil
}

// SetConnections maps relationship names to output ids. A nil map sends
// every relationship to every output.
func (f *FlowRouter) SetConnections(connections map[string][]string) error {
	var copied map[string][]string
	if connections != nil {
		copied = make(map[string][]string, len(connections))
		for rel, outputs := range connections {
			for _, id := range outputs {
				if _, ok := f.registry.GetOutput(id); !ok {
					return fmt.Errorf("relationship %s: output plugin not found: %s", rel, id)
				}
			}
			copied[rel] = append([]string(nil), outputs...)
		}
	}

	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.connections = copied
	return nil
}

// Flow returns the processor order
func (f *FlowRouter) Flow() []string {
	f.mutex.RLock()
	defer f.mutex.RUnlock()
	return append([]string(nil), f.processors...)
}

// Connections returns a copy of the relationship to output mapping, or nil
// when every relationship goes to every output
func (f *FlowRouter) Connections() map[string][]string {
	f.mutex.RLock()
	defer f.mutex.RUnlock()
	if f.connections == nil {
		return nil
	}
	copied := make(map[string][]string, len(f.connections))
	for rel, outputs := range f.connections {
		copied[rel] = append([]string(nil), outputs...)
	}
	return copied
}

// Route runs the record through the flow. Processing stops at the first
// relationship that does not continue; that relationship is stored on the
// record and returned.
func (f *FlowRouter) Route(ctx context.Context, record *model.Record) model.Relationship {
	rel := model.RelSuccess
	for _, id := range f.Flow() {
		if ctx.Err() != nil {
			rel = model.RelFailure
			break
		}
		processor, ok := f.registry.GetProcessor(id)
		if !ok {
			rel = model.RelFailure
			break
		}
		rel = processor.Process(ctx, record)
		if !rel.Continues() {
			break
		}
	}
	record.Relationship = rel
	return rel
}

// Targets returns the outputs connected to a relationship. An empty result
// means the record is auto-terminated.
func (f *FlowRouter) Targets(rel model.Relationship) []model.OutputPlugin {
	f.mutex.RLock()
	connections := f.connections
	ids := connections[rel.Name]
	f.mutex.RUnlock()

	if connections == nil {
		return f.registry.GetOutputPlugins()
	}

	outputs := make([]model.OutputPlugin, 0, len(ids))
	for _, id := range ids {
		if output, ok := f.registry.GetOutput(id); ok {
			outputs = append(outputs, output)
		}
	}
	return outputs
}

// Relationships lists every relationship the configured processors can
// route to, sorted by name
func (f *FlowRouter) Relationships() []model.Relationship {
	seen := make(map[string]model.Relationship)
	for _, id := range f.Flow() {
		if processor, ok := f.registry.GetProcessor(id); ok {
			for _, rel := range processor.Relationships() {
				seen[rel.Name] = rel
			}
		}
	}
	if len(seen) == 0 {
		seen[model.RelSuccess.Name] = model.RelSuccess
	}

	result := make([]model.Relationship, 0, len(seen))
	for _, rel := range seen {
		result = append(result, rel)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}
