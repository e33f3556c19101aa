package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sliink/relay/internal/model"
	"github.com/sliink/relay/internal/plugin/processors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rejectingProcessor refuses to register with the core
type rejectingProcessor struct {
	*mockProcessor
}

func (r rejectingProcessor) RegisterWithCore(core model.CoreAPI) bool {
	return false
}

// newTestCore returns an initialized core with the plugins registered. The
// loops tick once an hour so tests drive flushing with Flush.
func newTestCore(t *testing.T, settings map[string]interface{}, plugins ...model.Plugin) *Core {
	t.Helper()
	core := NewCore()
	config := map[string]interface{}{"poll_interval": "1h", "flush_interval": "1h"}
	for k, v := range settings {
		config[k] = v
	}
	require.True(t, core.Configure(config))
	require.True(t, core.Initialize())
	for _, p := range plugins {
		require.NoError(t, core.RegisterPlugin(p))
	}
	return core
}

func startTestCore(t *testing.T, core *Core) {
	t.Helper()
	require.True(t, core.Start())
	t.Cleanup(func() { core.Stop() })
}

func TestNewCore(t *testing.T) {
	core := NewCore()

	assert.NotNil(t, core)
	assert.NotNil(t, core.eventBus)
	assert.NotNil(t, core.registry)
	assert.NotNil(t, core.flow)
	assert.NotNil(t, core.bufferManager)
	assert.NotNil(t, core.configManager)
	assert.NotNil(t, core.healthMonitor)
	assert.NotNil(t, core.Logger())
	assert.Equal(t, DefaultSettings(), core.Settings())
	assert.Equal(t, "core", core.ID())
	assert.Equal(t, "Core System", core.Name())
}

func TestCoreConfigure(t *testing.T) {
	t.Run("Configure with nil config returns false", func(t *testing.T) {
		assert.False(t, NewCore().Configure(nil))
	})

	t.Run("Configure reads durations and sizes", func(t *testing.T) {
		core := NewCore()
		require.True(t, core.Configure(map[string]interface{}{
			"poll_interval":    "2s",
			"flush_interval":   "500ms",
			"penalty_duration": "1m",
			"buffer_size":      25,
			"flush_batch":      float64(5),
		}))

		settings := core.Settings()
		assert.Equal(t, 2*time.Second, settings.PollInterval)
		assert.Equal(t, 500*time.Millisecond, settings.FlushInterval)
		assert.Equal(t, time.Minute, settings.PenaltyDuration)
		assert.Equal(t, 25, settings.BufferSize)
		assert.Equal(t, 5, settings.FlushBatch)
		assert.Equal(t, 25, core.bufferManager.maxQueueSize)
	})

	t.Run("Configure rejects invalid durations and keeps settings", func(t *testing.T) {
		core := NewCore()
		assert.False(t, core.Configure(map[string]interface{}{"poll_interval": "soon"}))
		assert.False(t, core.Configure(map[string]interface{}{"flush_interval": "0s"}))
		assert.Equal(t, DefaultSettings(), core.Settings())
	})
}

func TestCoreInitialize(t *testing.T) {
	core := NewCore()

	success := core.Initialize()
	assert.True(t, success)
	assert.Equal(t, model.StatusInitialized, core.GetStatus())

	health := core.healthMonitor.GetHealthStatus()
	for _, id := range []string{"core", "event_bus", "plugin_registry", "flow_router", "buffer_manager", "config_manager", "health_monitor"} {
		assert.Contains(t, health.Components, id)
	}
}

func TestCoreStartStop(t *testing.T) {
	processor := newMockProcessor("tag", tagWith("tagged", "yes", model.RelSuccess))
	output := newMockOutput("console")
	input := newMockInput("files")
	core := newTestCore(t, nil, processor, output, input)

	t.Run("Start starts all components and plugins", func(t *testing.T) {
		success := core.Start()
		assert.True(t, success)
		assert.Equal(t, model.StatusRunning, core.GetStatus())

		for _, component := range []Component{core.eventBus, core.registry, core.configManager, core.healthMonitor, core.bufferManager, core.flow} {
			assert.Equal(t, model.StatusRunning, component.GetStatus(), component.ID())
		}
		assert.Equal(t, model.StatusRunning, processor.GetStatus())
		assert.Equal(t, model.StatusRunning, output.GetStatus())
		assert.Equal(t, model.StatusRunning, input.GetStatus())
	})

	t.Run("Start without a flow runs processors in registration order", func(t *testing.T) {
		assert.Equal(t, []string{"tag"}, core.flow.Flow())
	})

	t.Run("Stop halts all components and plugins", func(t *testing.T) {
		success := core.Stop()
		assert.True(t, success)
		assert.Equal(t, model.StatusStopped, core.GetStatus())

		for _, component := range []Component{core.eventBus, core.registry, core.configManager, core.healthMonitor, core.bufferManager, core.flow} {
			assert.Equal(t, model.StatusStopped, component.GetStatus(), component.ID())
		}
		assert.Equal(t, model.StatusStopped, processor.GetStatus())
		assert.Equal(t, model.StatusStopped, output.GetStatus())
		assert.Equal(t, model.StatusStopped, input.GetStatus())
	})

	t.Run("Start fails when a processor cannot initialize", func(t *testing.T) {
		broken := newMockProcessor("broken", tagWith("a", "b", model.RelSuccess))
		broken.initResult = false
		core := newTestCore(t, nil, broken)

		assert.False(t, core.Start())
		assert.Equal(t, model.StatusError, core.GetStatus())
		core.Stop()
	})
}

func TestCoreGetComponent(t *testing.T) {
	core := NewCore()
	core.Initialize()

	t.Run("GetComponent returns core components", func(t *testing.T) {
		expected := map[string]Component{
			"event_bus":       core.eventBus,
			"plugin_registry": core.registry,
			"flow_router":     core.flow,
			"buffer_manager":  core.bufferManager,
			"config_manager":  core.configManager,
			"health_monitor":  core.healthMonitor,
			"core":            core,
		}
		for id, want := range expected {
			component, exists := core.GetComponent(id)
			assert.True(t, exists, id)
			assert.Equal(t, want, component, id)
		}
	})

	t.Run("GetComponent returns registered plugins", func(t *testing.T) {
		input := newMockInput("test_plugin")
		require.NoError(t, core.RegisterPlugin(input))

		component, exists := core.GetComponent("test_plugin")
		assert.True(t, exists)
		assert.Equal(t, input, component)
	})

	t.Run("GetComponent returns false for nonexistent component", func(t *testing.T) {
		_, exists := core.GetComponent("nonexistent")
		assert.False(t, exists)
	})
}

func TestCoreGetters(t *testing.T) {
	core := NewCore()

	assert.Equal(t, core.eventBus, core.GetEventBus())
	assert.Equal(t, core.registry, core.GetRegistry())
	assert.Equal(t, core.flow, core.GetFlowRouter())
	assert.Equal(t, core.bufferManager, core.GetBufferManager())
	assert.Equal(t, core.configManager, core.GetConfigManager())
	assert.Equal(t, core.healthMonitor, core.GetHealthMonitor())
}

func TestCoreRegisterPlugin(t *testing.T) {
	core := NewCore()
	core.Initialize()

	t.Run("RegisterPlugin fails with nil plugin", func(t *testing.T) {
		assert.Error(t, core.RegisterPlugin(nil))
	})

	t.Run("RegisterPlugin fails when validation fails", func(t *testing.T) {
		processor := newMockProcessor("invalid", tagWith("a", "b", model.RelSuccess))
		processor.validateErr = errors.New("service_url is required")

		err := core.RegisterPlugin(processor)
		assert.ErrorContains(t, err, "plugin validation failed: invalid")
		assert.ErrorIs(t, err, processor.validateErr)
	})

	t.Run("RegisterPlugin fails when registration with core fails", func(t *testing.T) {
		processor := rejectingProcessor{newMockProcessor("rejecting", tagWith("a", "b", model.RelSuccess))}

		assert.ErrorContains(t, core.RegisterPlugin(processor), "failed to register with core")
	})

	t.Run("RegisterPlugin succeeds with valid plugin", func(t *testing.T) {
		processor := newMockProcessor("valid", tagWith("a", "b", model.RelSuccess))

		require.NoError(t, core.RegisterPlugin(processor))

		p, exists := core.registry.GetPlugin("valid")
		assert.True(t, exists)
		assert.Equal(t, processor, p)
		assert.Equal(t, core, processor.Core())

		health := core.healthMonitor.GetHealthStatus()
		assert.Contains(t, health.Components, "valid")
	})

	t.Run("RegisterPlugin rejects duplicate ids", func(t *testing.T) {
		assert.ErrorContains(t, core.RegisterPlugin(newMockOutput("valid")), "plugin registration failed: valid")
	})
}

func TestCoreConfigureFlow(t *testing.T) {
	t.Run("Reads flow and connections from a document", func(t *testing.T) {
		core := newTestCore(t, nil,
			newMockProcessor("first", tagWith("a", "1", model.RelSuccess)),
			newMockProcessor("second", tagWith("b", "2", model.RelSuccess)),
			newMockOutput("console"),
		)

		require.NoError(t, core.ConfigureFlow(map[string]interface{}{
			"flow": []interface{}{"second", "first"},
			"connections": map[string]interface{}{
				"success": []interface{}{"console"},
			},
		}))

		assert.Equal(t, []string{"second", "first"}, core.flow.Flow())
		assert.Equal(t, map[string][]string{"success": {"console"}}, core.flow.Connections())
	})

	t.Run("Defaults to registration order and broadcast", func(t *testing.T) {
		core := newTestCore(t, nil,
			newMockProcessor("zeta", tagWith("a", "1", model.RelSuccess)),
			newMockProcessor("alpha", tagWith("b", "2", model.RelSuccess)),
		)

		require.NoError(t, core.ConfigureFlow(map[string]interface{}{}))

		assert.Equal(t, []string{"zeta", "alpha"}, core.flow.Flow())
		assert.Nil(t, core.flow.Connections())
	})

	t.Run("Rejects unknown processors and outputs", func(t *testing.T) {
		core := newTestCore(t, nil, newMockProcessor("tag", tagWith("a", "1", model.RelSuccess)))

		assert.ErrorContains(t, core.ConfigureFlow(map[string]interface{}{
			"flow": []interface{}{"missing"},
		}), "invalid flow")
		assert.ErrorContains(t, core.ConfigureFlow(map[string]interface{}{
			"connections": map[string]interface{}{"success": []interface{}{"nowhere"}},
		}), "invalid connections")
	})
}

func TestCoreProcessRecord(t *testing.T) {
	t.Run("ProcessRecord handles nil record", func(t *testing.T) {
		core := newTestCore(t, nil)
		startTestCore(t, core)

		assert.Equal(t, model.RelFailure, core.ProcessRecord(context.Background(), nil))
		assert.EqualValues(t, 1, core.healthMonitor.Counter(CounterInvalidRecords))
	})

	t.Run("ProcessRecord routes and queues a copy for the connected output", func(t *testing.T) {
		output := newMockOutput("console")
		core := newTestCore(t, nil, newMockProcessor("tag", tagWith("tagged", "yes", model.RelSuccess)), output)
		require.NoError(t, core.ConfigureFlow(map[string]interface{}{
			"connections": map[string]interface{}{"success": []interface{}{"console"}},
		}))
		startTestCore(t, core)

		record := model.NewRecord("test", []byte("payload"))
		rel := core.ProcessRecord(context.Background(), record)

		assert.Equal(t, model.RelSuccess, rel)
		assert.Equal(t, "yes", record.Attribute("tagged"))
		assert.Equal(t, 1, core.Flush())

		sent := output.records()
		require.Len(t, sent, 1)
		assert.NotSame(t, record, sent[0])
		assert.Equal(t, record.ID, sent[0].ID)
		assert.Equal(t, "yes", sent[0].Attribute("tagged"))
		assert.Equal(t, model.RelSuccess, sent[0].Relationship)
		assert.EqualValues(t, 1, core.healthMonitor.Counter(RelationshipCounter(model.RelSuccess)))
		assert.EqualValues(t, 1, core.healthMonitor.Counter(CounterRecordsSent))
	})

	t.Run("ProcessRecord publishes received and routed events", func(t *testing.T) {
		core := newTestCore(t, nil)
		startTestCore(t, core)

		var received, routed []Event
		core.eventBus.Subscribe(model.EventRecordReceived, "test", func(event Event) {
			received = append(received, event)
		})
		core.eventBus.Subscribe(model.EventRecordRouted, "test", func(event Event) {
			routed = append(routed, event)
		})

		record := model.NewRecord("files", []byte("x"))
		core.ProcessRecord(context.Background(), record)

		require.Len(t, received, 1)
		assert.Equal(t, "files", received[0].SourceID)
		require.Len(t, routed, 1)
		assert.Equal(t, "success", routed[0].Data.(map[string]interface{})["relationship"])
	})

	t.Run("Failed records are penalized and held by the buffer", func(t *testing.T) {
		output := newMockOutput("errors")
		core := newTestCore(t, map[string]interface{}{"penalty_duration": "1h"},
			newMockProcessor("fail", tagWith("error", "boom", model.RelFailure)), output)
		startTestCore(t, core)

		record := model.NewRecord("test", nil)
		assert.Equal(t, model.RelFailure, core.ProcessRecord(context.Background(), record))
		assert.True(t, record.IsPenalized(time.Now()))

		assert.Zero(t, core.Flush())
		assert.Empty(t, output.records())
		status := core.bufferManager.GetBufferStatus()["errors"]
		assert.Equal(t, 1, status.QueueSize)
		assert.Equal(t, 1, status.PenalizedItems)
	})

	t.Run("Existing penalties are kept", func(t *testing.T) {
		core := newTestCore(t, map[string]interface{}{"penalty_duration": "1h"},
			newMockProcessor("fail", func(r *model.Record) model.Relationship {
				r.Penalize(time.Minute)
				return model.RelModelFailure
			}))
		startTestCore(t, core)

		record := model.NewRecord("test", nil)
		core.ProcessRecord(context.Background(), record)

		assert.True(t, record.PenalizedUntil.Before(time.Now().Add(2*time.Minute)))
	})

	t.Run("Unconnected relationships are auto-terminated", func(t *testing.T) {
		output := newMockOutput("console")
		core := newTestCore(t, nil, newMockProcessor("fail", tagWith("a", "b", model.RelFailure)), output)
		require.NoError(t, core.ConfigureFlow(map[string]interface{}{
			"connections": map[string]interface{}{"success": []interface{}{"console"}},
		}))
		startTestCore(t, core)

		core.ProcessRecord(context.Background(), model.NewRecord("test", nil))

		assert.EqualValues(t, 1, core.healthMonitor.Counter(CounterAutoTerminated))
		assert.Empty(t, core.bufferManager.GetBufferStatus())
	})

	t.Run("Full buffers count rejections", func(t *testing.T) {
		core := newTestCore(t, map[string]interface{}{"buffer_size": 1}, newMockOutput("console"))
		startTestCore(t, core)

		var errs []Event
		core.eventBus.Subscribe(model.EventError, "test", func(event Event) {
			errs = append(errs, event)
		})

		core.ProcessRecord(context.Background(), model.NewRecord("test", nil))
		core.ProcessRecord(context.Background(), model.NewRecord("test", nil))

		assert.EqualValues(t, 1, core.healthMonitor.Counter(CounterBufferRejections))
		require.Len(t, errs, 1)
		assert.ErrorContains(t, errs[0].Data.(error), "buffer full for output: console")
	})
}

func TestCoreLoops(t *testing.T) {
	t.Run("Input records flow to outputs", func(t *testing.T) {
		input := newMockInput("files")
		output := newMockOutput("console")
		core := newTestCore(t, map[string]interface{}{
			"poll_interval":  "10ms",
			"flush_interval": "10ms",
		}, input, newMockProcessor("tag", tagWith("tagged", "yes", model.RelSuccess)), output)
		startTestCore(t, core)

		input.push(model.NewRecord("files", []byte("a")), nil, model.NewRecord("files", []byte("b")))

		require.Eventually(t, func() bool { return len(output.records()) == 2 }, time.Second, 10*time.Millisecond)
		for _, record := range output.records() {
			assert.Equal(t, "yes", record.Attribute("tagged"))
		}
	})

	t.Run("Failed sends are penalized and queued again", func(t *testing.T) {
		output := newMockOutput("console")
		output.failWith(errors.New("disk full"))
		core := newTestCore(t, map[string]interface{}{
			"flush_interval":   "10ms",
			"penalty_duration": "1h",
		}, output)
		startTestCore(t, core)

		core.ProcessRecord(context.Background(), model.NewRecord("test", nil))

		require.Eventually(t, func() bool {
			return core.bufferManager.GetBufferStatus()["console"].PenalizedItems == 1
		}, time.Second, 10*time.Millisecond)
		assert.EqualValues(t, 1, core.healthMonitor.Counter(CounterSendFailures))
		assert.Equal(t, 1, core.bufferManager.GetBufferStatus()["console"].QueueSize)
		assert.Empty(t, output.records())
	})

	t.Run("FlushOutput sends one output", func(t *testing.T) {
		first := newMockOutput("first")
		second := newMockOutput("second")
		core := newTestCore(t, nil, first, second)
		startTestCore(t, core)

		core.ProcessRecord(context.Background(), model.NewRecord("test", nil))

		sent, ok := core.FlushOutput("first")
		assert.True(t, ok)
		assert.Equal(t, 1, sent)
		assert.Len(t, first.records(), 1)
		assert.Empty(t, second.records())

		_, ok = core.FlushOutput("missing")
		assert.False(t, ok)
	})

	t.Run("Stop sends ready records", func(t *testing.T) {
		output := newMockOutput("console")
		core := newTestCore(t, nil, output)
		require.True(t, core.Start())

		core.ProcessRecord(context.Background(), model.NewRecord("test", nil))
		require.True(t, core.Stop())

		assert.Len(t, output.records(), 1)
	})
}

func TestCoreSetPluginProperty(t *testing.T) {
	processor := newMockProcessor("tag", tagWith("a", "b", model.RelSuccess))
	processor.Config = map[string]interface{}{"expression": "true"}
	core := newTestCore(t, nil, processor)
	startTestCore(t, core)

	var changes []Event
	core.eventBus.Subscribe(model.EventConfigChange, "test", func(event Event) {
		changes = append(changes, event)
	})

	t.Run("Unknown plugin is an error", func(t *testing.T) {
		assert.ErrorContains(t, core.SetPluginProperty("missing", "key", "value"), "plugin not found: missing")
	})

	t.Run("Valid change is applied and announced", func(t *testing.T) {
		require.NoError(t, core.SetPluginProperty("tag", "expression", "false"))

		assert.Equal(t, "false", processor.Config["expression"])
		assert.Equal(t, []string{"expression"}, processor.changedKeys())
		require.Len(t, changes, 1)
		assert.Equal(t, "tag", changes[0].SourceID)
		data := changes[0].Data.(map[string]interface{})
		assert.Equal(t, "true", data["old_value"])
		assert.Equal(t, "false", data["new_value"])
	})

	t.Run("Invalid change is rolled back", func(t *testing.T) {
		err := core.SetPluginProperty("tag", "valid", false)

		assert.ErrorContains(t, err, "invalid value for tag.valid")
		assert.NotContains(t, processor.Config, "valid")
		assert.Equal(t, "false", processor.Config["expression"])
		assert.Equal(t, []string{"expression"}, processor.changedKeys())
		assert.Len(t, changes, 1)
	})

	t.Run("Nil value removes the property", func(t *testing.T) {
		require.NoError(t, core.SetPluginProperty("tag", "expression", nil))

		assert.NotContains(t, processor.Config, "expression")
		assert.Equal(t, []string{"expression", "expression"}, processor.changedKeys())
	})
}

func TestCorePluginStats(t *testing.T) {
	core := newTestCore(t, nil, newMockOutput("console"))

	t.Run("Known plugin reports its status", func(t *testing.T) {
		stats, ok := core.PluginStats("console")
		require.True(t, ok)
		assert.Equal(t, model.StatusUninitialized, stats["status"])
	})

	t.Run("Unknown plugin is not found", func(t *testing.T) {
		_, ok := core.PluginStats("missing")
		assert.False(t, ok)
	})
}

func TestPublishEvent(t *testing.T) {
	core := NewCore()
	core.Initialize()

	t.Run("PublishEvent before start is dropped", func(t *testing.T) {
		called := false
		core.eventBus.Subscribe(model.EventError, "early", func(event Event) { called = true })

		core.PublishEvent(model.EventError, "source", "ignored")

		assert.False(t, called)
		core.eventBus.Unsubscribe(model.EventError, "early")
	})

	t.Run("PublishEvent sends event to eventBus", func(t *testing.T) {
		require.True(t, core.Start())
		defer core.Stop()

		var receivedEvent Event
		core.eventBus.Subscribe(model.EventError, "test", func(event Event) {
			receivedEvent = event
		})

		core.PublishEvent(model.EventError, "source", "test_data")

		assert.Equal(t, model.EventError, receivedEvent.Type)
		assert.Equal(t, "source", receivedEvent.SourceID)
		assert.Equal(t, "test_data", receivedEvent.Data)
	})
}

func TestCoreSetPluginPropertyScoringRelay(t *testing.T) {
	relay := processors.NewScoringRelay("score")
	relay.Configure(map[string]interface{}{
		processors.PropServiceURL: "http://scoring.local/openscoring",
		processors.PropPMML:       "<PMML/>",
	})
	core := newTestCore(t, nil, relay)

	blank := filepath.Join(t.TempDir(), "blank.pmml")
	require.NoError(t, os.WriteFile(blank, []byte("\n  \n"), 0o644))

	require.NoError(t, core.SetPluginProperty("score", processors.PropPMMLFile, blank))

	t.Run("Removing inline PMML in favour of a blank file is rolled back", func(t *testing.T) {
		err := core.SetPluginProperty("score", processors.PropPMML, nil)

		var cfgErr *processors.ConfigurationError
		require.True(t, errors.As(err, &cfgErr), "expected ConfigurationError, got %v", err)
		assert.Equal(t, processors.PropPMMLFile, cfgErr.Property)
		assert.Equal(t, "<PMML/>", relay.GetConfig()[processors.PropPMML])
	})
}
