package processors

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/cel-go/cel"
	"github.com/sliink/relay/internal/model"
	"github.com/sliink/relay/internal/plugin"
)

// PropExpression is the CEL condition evaluated by the attribute router
const PropExpression = "expression"

// AttributeRouter routes records to matched or unmatched depending on a CEL
// expression over the record. The expression sees three variables:
//
//	attributes  map(string, string)  the record attributes
//	source      string               id of the input that produced the record
//	size        int                  payload length in bytes
//
// Example: attributes["mime.type"] == "text/csv" && size > 0
type AttributeRouter struct {
	plugin.BasePlugin
	program   atomic.Pointer[cel.Program]
	matched   atomic.Int64
	unmatched atomic.Int64
	failed    atomic.Int64
}

// NewAttributeRouter creates a new attribute router plugin
func NewAttributeRouter(id string) *AttributeRouter {
	return &AttributeRouter{
		BasePlugin: plugin.NewBasePlugin(id, "Attribute Router", model.ProcessorPluginType),
	}
}

func newRouterEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("attributes", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("source", cel.StringType),
		cel.Variable("size", cel.IntType),
	)
}

// compileExpression parses and type-checks a boolean CEL expression
func compileExpression(expr string) (cel.Program, error) {
	if expr == "" {
		return nil, &ConfigurationError{Property: PropExpression, Err: plugin.ErrMissing}
	}
	env, err := newRouterEnv()
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, &ConfigurationError{Property: PropExpression, Err: issues.Err()}
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, &ConfigurationError{
			Property: PropExpression,
			Err:      fmt.Errorf("expression must return bool, got %s", ast.OutputType()),
		}
	}
	return env.Program(ast)
}

// Validate checks that the expression compiles to a boolean
func (a *AttributeRouter) Validate() error {
	_, err := compileExpression(plugin.StringValue(a.Config, PropExpression, ""))
	return err
}

// Initialize compiles the routing expression
func (a *AttributeRouter) Initialize() bool {
	if err := a.compile(); err != nil {
		a.Logger().Error("invalid expression", "error", err)
		a.SetStatus(model.StatusError)
		return false
	}
	a.SetStatus(model.StatusInitialized)
	return true
}

func (a *AttributeRouter) compile() error {
	prg, err := compileExpression(plugin.StringValue(a.Config, PropExpression, ""))
	if err != nil {
		return err
	}
	a.program.Store(&prg)
	return nil
}

// Start begins router operation
func (a *AttributeRouter) Start() bool {
	a.SetStatus(model.StatusRunning)
	return true
}

// Stop halts router operation
func (a *AttributeRouter) Stop() bool {
	a.SetStatus(model.StatusStopped)
	return true
}

// Relationships returns the outcomes Process routes to
func (a *AttributeRouter) Relationships() []model.Relationship {
	return []model.Relationship{model.RelMatched, model.RelUnmatched, model.RelFailure}
}

// OnConfigurationChanged recompiles the expression; the old one stays
// active when the new one does not compile
func (a *AttributeRouter) OnConfigurationChanged(key string, oldValue, newValue interface{}) {
	if key != PropExpression {
		return
	}
	if err := a.compile(); err != nil {
		a.Logger().Error("rejected expression", "error", err)
	}
}

// Process evaluates the expression against the record
func (a *AttributeRouter) Process(ctx context.Context, record *model.Record) model.Relationship {
	if record == nil {
		return model.RelFailure
	}
	prg := a.program.Load()
	if prg == nil {
		a.failed.Add(1)
		return model.RelFailure
	}

	attrs := record.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	out, _, err := (*prg).ContextEval(ctx, map[string]interface{}{
		"attributes": attrs,
		"source":     record.Source,
		"size":       int64(len(record.Payload)),
	})
	if err != nil {
		a.Logger().Warn("expression evaluation failed", "record", record.ID, "error", err)
		a.failed.Add(1)
		return model.RelFailure
	}

	matched, ok := out.Value().(bool)
	if !ok {
		a.Logger().Warn("expression did not return bool", "record", record.ID, "type", fmt.Sprintf("%T", out.Value()))
		a.failed.Add(1)
		return model.RelFailure
	}
	if matched {
		a.matched.Add(1)
		return model.RelMatched
	}
	a.unmatched.Add(1)
	return model.RelUnmatched
}

// Stats returns the routing counters
func (a *AttributeRouter) Stats() map[string]interface{} {
	return map[string]interface{}{
		"matched":   a.matched.Load(),
		"unmatched": a.unmatched.Load(),
		"failure":   a.failed.Load(),
	}
}
