package core

import (
	"context"
	"testing"

	"github.com/sliink/relay/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFlow(t *testing.T, plugins ...model.Plugin) *FlowRouter {
	t.Helper()
	registry := NewPluginRegistry()
	for _, p := range plugins {
		require.True(t, registry.RegisterPlugin(p))
	}
	flow := NewFlowRouter(registry)
	require.True(t, flow.Initialize())
	require.True(t, flow.Start())
	return flow
}

func TestFlowRouterLifecycle(t *testing.T) {
	t.Run("Initialize fails without registry", func(t *testing.T) {
		assert.False(t, NewFlowRouter(nil).Initialize())
	})

	t.Run("Start and Stop set status", func(t *testing.T) {
		flow := newTestFlow(t)
		assert.Equal(t, model.StatusRunning, flow.GetStatus())
		assert.True(t, flow.Stop())
		assert.Equal(t, model.StatusStopped, flow.GetStatus())
	})
}

func TestFlowRouterSetFlow(t *testing.T) {
	flow := newTestFlow(t,
		newMockProcessor("tag", tagWith("a", "1", model.RelSuccess)),
		newMockOutput("console"),
	)

	t.Run("Accepts registered processors", func(t *testing.T) {
		require.NoError(t, flow.SetFlow([]string{"tag"}))
		assert.Equal(t, []string{"tag"}, flow.Flow())
	})

	t.Run("Rejects unknown ids", func(t *testing.T) {
		assert.ErrorContains(t, flow.SetFlow([]string{"missing"}), "processor plugin not found: missing")
	})

	t.Run("Rejects non processors", func(t *testing.T) {
		assert.ErrorContains(t, flow.SetFlow([]string{"console"}), "plugin is not a processor: console")
		assert.Equal(t, []string{"tag"}, flow.Flow())
	})
}

func TestFlowRouterRoute(t *testing.T) {
	t.Run("Empty flow routes to success", func(t *testing.T) {
		flow := newTestFlow(t)
		rec := model.NewRecord("in", nil)

		assert.Equal(t, model.RelSuccess, flow.Route(context.Background(), rec))
		assert.Equal(t, model.RelSuccess, rec.Relationship)
	})

	t.Run("Continuing relationships run every processor in order", func(t *testing.T) {
		var order []string
		first := newMockProcessor("first", func(r *model.Record) model.Relationship {
			order = append(order, "first")
			return model.RelSuccess
		})
		second := newMockProcessor("second", func(r *model.Record) model.Relationship {
			order = append(order, "second")
			return model.RelMatched
		})
		flow := newTestFlow(t, first, second)
		require.NoError(t, flow.SetFlow([]string{"first", "second"}))

		assert.Equal(t, model.RelMatched, flow.Route(context.Background(), model.NewRecord("in", nil)))
		assert.Equal(t, []string{"first", "second"}, order)
	})

	t.Run("Terminal relationship stops the flow", func(t *testing.T) {
		called := false
		failing := newMockProcessor("score", tagWith("a", "1", model.RelModelFailure))
		after := newMockProcessor("after", func(r *model.Record) model.Relationship {
			called = true
			return model.RelSuccess
		})
		flow := newTestFlow(t, failing, after)
		require.NoError(t, flow.SetFlow([]string{"score", "after"}))

		rec := model.NewRecord("in", nil)
		assert.Equal(t, model.RelModelFailure, flow.Route(context.Background(), rec))
		assert.Equal(t, model.RelModelFailure, rec.Relationship)
		assert.False(t, called)
	})

	t.Run("Canceled context routes to failure", func(t *testing.T) {
		flow := newTestFlow(t, newMockProcessor("tag", tagWith("a", "1", model.RelSuccess)))
		require.NoError(t, flow.SetFlow([]string{"tag"}))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		rec := model.NewRecord("in", nil)
		assert.Equal(t, model.RelFailure, flow.Route(ctx, rec))
		assert.Empty(t, rec.Attribute("a"))
	})
}

func TestFlowRouterTargets(t *testing.T) {
	success := newMockOutput("success_out")
	failure := newMockOutput("failure_out")
	flow := newTestFlow(t, success, failure)

	t.Run("Without connections every output receives every relationship", func(t *testing.T) {
		assert.Len(t, flow.Targets(model.RelSuccess), 2)
		assert.Len(t, flow.Targets(model.RelModelFailure), 2)
		assert.Nil(t, flow.Connections())
	})

	t.Run("Connections select outputs per relationship", func(t *testing.T) {
		require.NoError(t, flow.SetConnections(map[string][]string{
			"success": {"success_out"},
			"failure": {"failure_out"},
		}))

		targets := flow.Targets(model.RelSuccess)
		require.Len(t, targets, 1)
		assert.Equal(t, "success_out", targets[0].ID())

		assert.Empty(t, flow.Targets(model.RelModelFailure))
		assert.Equal(t, []string{"failure_out"}, flow.Connections()["failure"])
	})

	t.Run("Unknown output is rejected", func(t *testing.T) {
		assert.Error(t, flow.SetConnections(map[string][]string{"success": {"nope"}}))
	})
}

func TestFlowRouterRelationships(t *testing.T) {
	flow := newTestFlow(t, newMockProcessor("score", tagWith("a", "1", model.RelSuccess)))
	assert.Equal(t, []model.Relationship{model.RelSuccess}, flow.Relationships())

	require.NoError(t, flow.SetFlow([]string{"score"}))
	assert.Equal(t, []model.Relationship{model.RelFailure, model.RelSuccess}, flow.Relationships())
}
