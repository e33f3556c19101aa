// Package standard wires the built-in plugins into a factory and builds
// plugin sets from configuration documents.
package standard

import (
	"fmt"

	"github.com/sliink/relay/internal/model"
	"github.com/sliink/relay/internal/plugin"
	"github.com/sliink/relay/internal/plugin/inputs"
	"github.com/sliink/relay/internal/plugin/outputs"
	"github.com/sliink/relay/internal/plugin/processors"
)

// Plugin type names used in configuration documents
const (
	FileInput      = "file"
	MimeProcessor  = "mime"
	ScoringRelay   = "openscoring"
	RouteProcessor = "route"
	StdoutOutput   = "stdout"
	FileOutput     = "file"
)

// RegisterStandardPlugins registers all standard plugins with the factory
func RegisterStandardPlugins(factory *plugin.PluginFactory) {
	factory.RegisterInputPlugin(FileInput, func(id string) model.InputPlugin {
		return inputs.NewFileInput(id)
	})

	factory.RegisterProcessorPlugin(MimeProcessor, func(id string) model.ProcessorPlugin {
		return processors.NewMimeTagger(id)
	})
	factory.RegisterProcessorPlugin(ScoringRelay, func(id string) model.ProcessorPlugin {
		return processors.NewScoringRelay(id)
	})
	factory.RegisterProcessorPlugin(RouteProcessor, func(id string) model.ProcessorPlugin {
		return processors.NewAttributeRouter(id)
	})

	factory.RegisterOutputPlugin(StdoutOutput, func(id string) model.OutputPlugin {
		return outputs.NewStdoutOutput(id)
	})
	factory.RegisterOutputPlugin(FileOutput, func(id string) model.OutputPlugin {
		return outputs.NewFileOutput(id)
	})
}

// NewFactory returns a factory with the standard plugins registered
func NewFactory() *plugin.PluginFactory {
	factory := plugin.NewPluginFactory()
	RegisterStandardPlugins(factory)
	return factory
}

var sections = []struct {
	key        string
	pluginType model.PluginType
}{
	{"inputs", model.InputPluginType},
	{"processors", model.ProcessorPluginType},
	{"outputs", model.OutputPluginType},
}

// CreateStandardPlugins creates and configures the plugins listed under
// inputs, processors and outputs of a configuration document
func CreateStandardPlugins(config map[string]interface{}) ([]model.Plugin, error) {
	factory := NewFactory()

	var plugins []model.Plugin
	seen := make(map[string]bool)
	for _, section := range sections {
		entries, ok := config[section.key].([]interface{})
		if !ok {
			continue
		}
		for i, entry := range entries {
			entryMap, ok := entry.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("%s[%d]: expected object, got %T", section.key, i, entry)
			}
			id, _ := entryMap["id"].(string)
			typeName, _ := entryMap["type"].(string)
			pluginConf, _ := entryMap["config"].(map[string]interface{})
			if pluginConf == nil {
				pluginConf = make(map[string]interface{})
			}

			if seen[id] {
				return nil, fmt.Errorf("%s[%d]: duplicate plugin id %q", section.key, i, id)
			}
			p, err := factory.CreatePlugin(section.pluginType, typeName, id)
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", section.key, i, err)
			}
			seen[id] = true

			p.Configure(pluginConf)
			plugins = append(plugins, p)
		}
	}
	return plugins, nil
}
