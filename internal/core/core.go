package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sliink/relay/internal/model"
	"github.com/sliink/relay/internal/plugin"
)

// Default core settings
const (
	DefaultPollInterval    = time.Second
	DefaultFlushInterval   = time.Second
	DefaultPenaltyDuration = 30 * time.Second
	DefaultFlushBatch      = 100
)

// Settings holds the timing and capacity options of the core
type Settings struct {
	PollInterval    time.Duration `json:"poll_interval"`
	FlushInterval   time.Duration `json:"flush_interval"`
	PenaltyDuration time.Duration `json:"penalty_duration"`
	BufferSize      int           `json:"buffer_size"`
	FlushBatch      int           `json:"flush_batch"`
}

// DefaultSettings returns the settings used when nothing is configured
func DefaultSettings() Settings {
	return Settings{
		PollInterval:    DefaultPollInterval,
		FlushInterval:   DefaultFlushInterval,
		PenaltyDuration: DefaultPenaltyDuration,
		BufferSize:      defaultMaxQueueSize,
		FlushBatch:      DefaultFlushBatch,
	}
}

// configSource is implemented by plugins that expose their configuration
type configSource interface {
	GetConfig() map[string]interface{}
}

type loggerSetter interface {
	SetLogger(logger *slog.Logger)
}

// Core is the central coordinator of the system
type Core struct {
	eventBus       *EventBus
	registry       *PluginRegistry
	flow           *FlowRouter
	bufferManager  *BufferManager
	configManager  *ConfigManager
	healthMonitor  *HealthMonitor
	logger         *slog.Logger
	settings       Settings
	processorOrder []string
	flowConfigured bool
	propertyMutex  sync.Mutex
	cancel         context.CancelFunc
	wg             sync.WaitGroup
	BaseComponent
}

// NewCore creates a new core system with all of its components
func NewCore() *Core {
	registry := NewPluginRegistry()
	return &Core{
		eventBus:      NewEventBus(),
		registry:      registry,
		flow:          NewFlowRouter(registry),
		bufferManager: NewBufferManager(defaultMaxQueueSize),
		configManager: NewConfigManager(),
		healthMonitor: NewHealthMonitor(),
		logger:        slog.Default(),
		settings:      DefaultSettings(),
		BaseComponent: NewBaseComponent("core", "Core System"),
	}
}

// SetLogger replaces the core logger; plugins registered afterwards derive
// their loggers from it
func (c *Core) SetLogger(logger *slog.Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// Logger returns the core logger
func (c *Core) Logger() *slog.Logger {
	return c.logger
}

// GetComponent returns a component by ID
func (c *Core) GetComponent(id string) (Component, bool) {
	switch id {
	case "event_bus":
		return c.eventBus, true
	case "plugin_registry":
		return c.registry, true
	case "flow_router":
		return c.flow, true
	case "buffer_manager":
		return c.bufferManager, true
	case "config_manager":
		return c.configManager, true
	case "health_monitor":
		return c.healthMonitor, true
	case "core":
		return c, true
	}

	if p, exists := c.registry.GetPlugin(id); exists {
		return p, true
	}
	return nil, false
}

// GetEventBus returns the event bus component
func (c *Core) GetEventBus() *EventBus {
	return c.eventBus
}

// GetRegistry returns the plugin registry component
func (c *Core) GetRegistry() *PluginRegistry {
	return c.registry
}

// GetFlowRouter returns the flow router component
func (c *Core) GetFlowRouter() *FlowRouter {
	return c.flow
}

// GetBufferManager returns the buffer manager component
func (c *Core) GetBufferManager() *BufferManager {
	return c.bufferManager
}

// GetConfigManager returns the configuration manager component
func (c *Core) GetConfigManager() *ConfigManager {
	return c.configManager
}

// GetHealthMonitor returns the health monitor component
func (c *Core) GetHealthMonitor() *HealthMonitor {
	return c.healthMonitor
}

// Settings returns the active core settings
func (c *Core) Settings() Settings {
	return c.settings
}

// Configure applies the core section of a configuration document. It must be
// called before Start.
func (c *Core) Configure(config map[string]interface{}) bool {
	if config == nil {
		return false
	}
	for _, key := range []string{"poll_interval", "flush_interval", "penalty_duration"} {
		if v, ok := config[key]; ok {
			if _, err := plugin.AsDuration(v); err != nil {
				c.logger.Error("invalid core setting", "key", key, "error", err)
				return false
			}
		}
	}

	s := c.settings
	s.PollInterval = plugin.DurationValue(config, "poll_interval", s.PollInterval)
	s.FlushInterval = plugin.DurationValue(config, "flush_interval", s.FlushInterval)
	s.PenaltyDuration = plugin.DurationValue(config, "penalty_duration", s.PenaltyDuration)
	s.BufferSize = plugin.IntValue(config, "buffer_size", s.BufferSize)
	s.FlushBatch = plugin.IntValue(config, "flush_batch", s.FlushBatch)
	if s.PollInterval <= 0 || s.FlushInterval <= 0 || s.PenaltyDuration < 0 || s.BufferSize <= 0 {
		c.logger.Error("invalid core settings", "settings", s)
		return false
	}

	c.settings = s
	c.bufferManager.SetMaxQueueSize(s.BufferSize)
	return c.BaseComponent.Configure(config)
}

// Initialize prepares the core system for operation
func (c *Core) Initialize() bool {
	components := []Component{c.eventBus, c.registry, c.configManager, c.healthMonitor, c.bufferManager, c.flow}
	for _, component := range components {
		if !component.Initialize() {
			c.logger.Error("component failed to initialize", "component", component.ID())
			c.SetStatus(model.StatusError)
			return false
		}
		c.healthMonitor.RegisterComponent(component)
	}
	c.healthMonitor.RegisterComponent(c)

	c.SetStatus(model.StatusInitialized)
	return true
}

// Start begins core system operation: processors are started first, then
// outputs, then inputs
func (c *Core) Start() bool {
	for _, component := range []Component{c.eventBus, c.registry, c.configManager, c.healthMonitor, c.bufferManager, c.flow} {
		if !component.Start() {
			c.logger.Error("component failed to start", "component", component.ID())
			c.SetStatus(model.StatusError)
			return false
		}
	}

	if !c.flowConfigured {
		if err := c.flow.SetFlow(c.processorOrder); err != nil {
			return c.failStart(err)
		}
	}
	for _, processor := range c.registry.GetProcessorPlugins() {
		if err := startPlugin(processor); err != nil {
			return c.failStart(err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	settings := c.settings

	for _, output := range c.registry.GetOutputPlugins() {
		if err := startPlugin(output); err != nil {
			return c.failStart(err)
		}
		c.wg.Add(1)
		go c.runOutput(ctx, output, settings.FlushInterval, settings.FlushBatch)
	}

	for _, input := range c.registry.GetInputPlugins() {
		if err := startPlugin(input); err != nil {
			return c.failStart(err)
		}
		c.wg.Add(1)
		go c.runInput(ctx, input, settings.PollInterval)
	}

	c.SetStatus(model.StatusRunning)
	c.PublishEvent(model.EventComponentStatusChange, c.ID(), c.GetStatus())
	c.logger.Info("core started",
		"processors", c.flow.Flow(),
		"poll_interval", settings.PollInterval,
		"flush_interval", settings.FlushInterval)
	return true
}

func startPlugin(p model.Plugin) error {
	if !p.Initialize() {
		return fmt.Errorf("failed to initialize %s plugin: %s", p.GetType(), p.ID())
	}
	if !p.Start() {
		return fmt.Errorf("failed to start %s plugin: %s", p.GetType(), p.ID())
	}
	return nil
}

func (c *Core) failStart(err error) bool {
	c.logger.Error("core failed to start", "error", err)
	c.PublishEvent(model.EventError, c.ID(), err)
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	c.SetStatus(model.StatusError)
	return false
}

// Stop halts the input and output loops, sends whatever is ready, and stops
// every component in reverse order
func (c *Core) Stop() bool {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()

	for _, output := range c.registry.GetOutputPlugins() {
		if output.GetStatus() == model.StatusRunning {
			c.flushOutput(output, 0)
		}
	}
	pending := 0
	for _, status := range c.bufferManager.GetBufferStatus() {
		pending += status.QueueSize
	}
	if pending > 0 {
		c.logger.Warn("dropping buffered records on stop", "records", pending)
	}

	c.SetStatus(model.StatusStopped)
	c.PublishEvent(model.EventComponentStatusChange, c.ID(), c.GetStatus())

	c.flow.Stop()
	c.registry.Stop()
	c.bufferManager.Stop()
	c.healthMonitor.Stop()
	c.configManager.Stop()
	c.eventBus.Stop()
	return true
}

// RegisterPlugin validates a plugin and registers it with the core system
func (c *Core) RegisterPlugin(p model.Plugin) error {
	if p == nil {
		return fmt.Errorf("cannot register nil plugin")
	}

	if err := p.Validate(); err != nil {
		return fmt.Errorf("plugin validation failed: %s: %w", p.ID(), err)
	}

	if !p.RegisterWithCore(c) {
		return fmt.Errorf("plugin failed to register with core: %s", p.ID())
	}

	if setter, ok := p.(loggerSetter); ok {
		setter.SetLogger(c.logger)
	}

	if !c.registry.RegisterPlugin(p) {
		return fmt.Errorf("plugin registration failed: %s", p.ID())
	}

	if p.GetType() == model.ProcessorPluginType {
		c.processorOrder = append(c.processorOrder, p.ID())
	}
	c.healthMonitor.RegisterComponent(p)
	return nil
}

// ConfigureFlow reads flow and connections from a configuration document.
// Without a flow entry every processor runs in registration order; without
// connections every relationship goes to every output.
func (c *Core) ConfigureFlow(doc map[string]interface{}) error {
	flow := c.processorOrder
	if v, ok := doc["flow"]; ok {
		flow = plugin.StringSlice(v)
	}
	if err := c.flow.SetFlow(flow); err != nil {
		return fmt.Errorf("invalid flow: %w", err)
	}
	c.flowConfigured = true

	raw, ok := doc["connections"].(map[string]interface{})
	if !ok {
		return c.flow.SetConnections(nil)
	}
	connections := make(map[string][]string, len(raw))
	for rel, outputs := range raw {
		connections[rel] = plugin.StringSlice(outputs)
	}
	if err := c.flow.SetConnections(connections); err != nil {
		return fmt.Errorf("invalid connections: %w", err)
	}
	return nil
}

func (c *Core) runInput(ctx context.Context, input model.InputPlugin, interval time.Duration) {
	defer c.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, record := range input.Collect() {
				if ctx.Err() != nil {
					return
				}
				if record == nil {
					continue
				}
				c.ProcessRecord(ctx, record)
			}
		}
	}
}

func (c *Core) runOutput(ctx context.Context, output model.OutputPlugin, interval time.Duration, batch int) {
	defer c.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.flushOutput(output, batch)
		}
	}
}

// flushOutput sends the ready records of one output. Failed sends are
// penalized and queued again.
func (c *Core) flushOutput(output model.OutputPlugin, batch int) int {
	sent := 0
	for _, record := range c.bufferManager.Flush(output.ID(), batch) {
		if err := output.Send(record); err != nil {
			c.healthMonitor.IncrementCounter(CounterSendFailures)
			c.logger.Warn("failed to send record", "output", output.ID(), "record", record.ID, "error", err)
			c.PublishEvent(model.EventError, output.ID(), err)

			record.Penalize(c.settings.PenaltyDuration)
			if !c.bufferManager.Buffer(output.ID(), record) {
				c.healthMonitor.IncrementCounter(CounterBufferRejections)
				c.logger.Error("dropping record after failed send", "output", output.ID(), "record", record.ID)
			}
			continue
		}
		sent++
		c.healthMonitor.IncrementCounter(CounterRecordsSent)
	}
	return sent
}

// FlushOutput sends the ready records of one output immediately
func (c *Core) FlushOutput(id string) (int, bool) {
	output, ok := c.registry.GetOutput(id)
	if !ok {
		return 0, false
	}
	return c.flushOutput(output, 0), true
}

// Flush sends every ready record of every output immediately and returns how
// many were sent
func (c *Core) Flush() int {
	sent := 0
	for _, output := range c.registry.GetOutputPlugins() {
		sent += c.flushOutput(output, 0)
	}
	return sent
}

// ProcessRecord runs one record through the flow and queues a copy for each
// output connected to the resulting relationship
func (c *Core) ProcessRecord(ctx context.Context, record *model.Record) model.Relationship {
	if record == nil {
		c.healthMonitor.IncrementCounter(CounterInvalidRecords)
		return model.RelFailure
	}

	c.PublishEvent(model.EventRecordReceived, record.Source, map[string]interface{}{
		"record": record.ID,
		"size":   len(record.Payload),
	})

	rel := c.flow.Route(ctx, record)
	if penalizes(rel) && !record.IsPenalized(time.Now()) && c.settings.PenaltyDuration > 0 {
		record.Penalize(c.settings.PenaltyDuration)
	}
	c.healthMonitor.IncrementCounter(RelationshipCounter(rel))

	c.PublishEvent(model.EventRecordRouted, c.ID(), map[string]interface{}{
		"record":       record.ID,
		"relationship": rel.Name,
	})

	targets := c.flow.Targets(rel)
	if len(targets) == 0 {
		c.healthMonitor.IncrementCounter(CounterAutoTerminated)
		c.logger.Debug("record auto-terminated", "record", record.ID, "relationship", rel.Name)
		return rel
	}

	for _, output := range targets {
		if !c.bufferManager.Buffer(output.ID(), record.Clone()) {
			c.healthMonitor.IncrementCounter(CounterBufferRejections)
			c.PublishEvent(model.EventError, c.ID(), fmt.Errorf("buffer full for output: %s", output.ID()))
		}
	}
	return rel
}

func penalizes(rel model.Relationship) bool {
	return rel.Name == model.RelFailure.Name || rel.Name == model.RelModelFailure.Name
}

// SetPluginProperty changes one configuration property of a registered
// plugin. The new configuration is validated first and rolled back when
// invalid; processors are then told which property changed. A nil value
// removes the property.
func (c *Core) SetPluginProperty(id, key string, value interface{}) error {
	c.propertyMutex.Lock()
	defer c.propertyMutex.Unlock()

	p, ok := c.registry.GetPlugin(id)
	if !ok {
		return fmt.Errorf("plugin not found: %s", id)
	}
	source, ok := p.(configSource)
	if !ok {
		return fmt.Errorf("plugin %s does not expose its configuration", id)
	}

	previous := source.GetConfig()
	updated := source.GetConfig()
	oldValue := previous[key]
	if value == nil {
		delete(updated, key)
	} else {
		updated[key] = value
	}

	p.Configure(updated)
	if err := p.Validate(); err != nil {
		p.Configure(previous)
		return fmt.Errorf("invalid value for %s.%s: %w", id, key, err)
	}

	if processor, ok := p.(model.ProcessorPlugin); ok {
		processor.OnConfigurationChanged(key, oldValue, value)
	}

	c.logger.Info("plugin property changed", "plugin", id, "property", key)
	c.PublishEvent(model.EventConfigChange, id, map[string]interface{}{
		"property":  key,
		"old_value": oldValue,
		"new_value": value,
	})
	return nil
}

// PluginStats returns the runtime counters of a plugin, if it has any
func (c *Core) PluginStats(id string) (map[string]interface{}, bool) {
	p, ok := c.registry.GetPlugin(id)
	if !ok {
		return nil, false
	}
	stats := map[string]interface{}{}
	if provider, ok := p.(model.StatsProvider); ok {
		for k, v := range provider.Stats() {
			stats[k] = v
		}
	}
	stats["status"] = p.GetStatus()
	return stats, true
}

// PublishEvent publishes an event to the event bus
func (c *Core) PublishEvent(eventType model.EventType, sourceID string, data interface{}) {
	c.eventBus.Publish(NewEvent(eventType, sourceID, data))
}
