package core

import (
	"context"
	"errors"
	"sync"

	"github.com/sliink/relay/internal/model"
	"github.com/sliink/relay/internal/plugin"
)

// mockInputPlugin hands out queued records on Collect
type mockInputPlugin struct {
	plugin.BasePlugin
	mu      sync.Mutex
	pending []*model.Record
}

func newMockInput(id string) *mockInputPlugin {
	return &mockInputPlugin{BasePlugin: plugin.NewBasePlugin(id, "Mock Input", model.InputPluginType)}
}

func (m *mockInputPlugin) Initialize() bool {
	m.SetStatus(model.StatusInitialized)
	return true
}

func (m *mockInputPlugin) Start() bool {
	m.SetStatus(model.StatusRunning)
	return true
}

func (m *mockInputPlugin) Stop() bool {
	m.SetStatus(model.StatusStopped)
	return true
}

func (m *mockInputPlugin) push(records ...*model.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, records...)
}

func (m *mockInputPlugin) Collect() []*model.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.pending
	m.pending = nil
	return out
}

// mockProcessor routes records with a function
type mockProcessor struct {
	plugin.BasePlugin
	process     func(record *model.Record) model.Relationship
	initResult  bool
	validateErr error
	mu          sync.Mutex
	changes     []string
}

func newMockProcessor(id string, process func(record *model.Record) model.Relationship) *mockProcessor {
	return &mockProcessor{
		BasePlugin: plugin.NewBasePlugin(id, "Mock Processor", model.ProcessorPluginType),
		process:    process,
		initResult: true,
	}
}

func (m *mockProcessor) Initialize() bool {
	if !m.initResult {
		m.SetStatus(model.StatusError)
		return false
	}
	m.SetStatus(model.StatusInitialized)
	return true
}

func (m *mockProcessor) Start() bool {
	m.SetStatus(model.StatusRunning)
	return true
}

func (m *mockProcessor) Stop() bool {
	m.SetStatus(model.StatusStopped)
	return true
}

func (m *mockProcessor) Validate() error {
	if m.validateErr != nil {
		return m.validateErr
	}
	if v, ok := m.Config["valid"].(bool); ok && !v {
		return errors.New("valid is false")
	}
	return nil
}

func (m *mockProcessor) Relationships() []model.Relationship {
	return []model.Relationship{model.RelSuccess, model.RelFailure}
}

func (m *mockProcessor) Process(ctx context.Context, record *model.Record) model.Relationship {
	return m.process(record)
}

func (m *mockProcessor) OnConfigurationChanged(key string, oldValue, newValue interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changes = append(m.changes, key)
}

func (m *mockProcessor) changedKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.changes...)
}

// tagWith returns a process func that sets an attribute and routes rel
func tagWith(key, value string, rel model.Relationship) func(*model.Record) model.Relationship {
	return func(r *model.Record) model.Relationship {
		r.PutAttribute(key, value)
		return rel
	}
}

// mockOutputPlugin records everything it is sent
type mockOutputPlugin struct {
	plugin.BasePlugin
	mu      sync.Mutex
	sent    []*model.Record
	sendErr error
}

func newMockOutput(id string) *mockOutputPlugin {
	return &mockOutputPlugin{BasePlugin: plugin.NewBasePlugin(id, "Mock Output", model.OutputPluginType)}
}

func (m *mockOutputPlugin) Initialize() bool {
	m.SetStatus(model.StatusInitialized)
	return true
}

func (m *mockOutputPlugin) Start() bool {
	m.SetStatus(model.StatusRunning)
	return true
}

func (m *mockOutputPlugin) Stop() bool {
	m.SetStatus(model.StatusStopped)
	return true
}

func (m *mockOutputPlugin) Send(record *model.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, record)
	return nil
}

func (m *mockOutputPlugin) records() []*model.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*model.Record(nil), m.sent...)
}

func (m *mockOutputPlugin) failWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}
