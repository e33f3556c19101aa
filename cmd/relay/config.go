package main

import (
	"github.com/sliink/relay/internal/model"
	"github.com/sliink/relay/internal/plugin/processors"
	"github.com/sliink/relay/internal/plugin/standard"
)

// Plugin ids for plugins created from flags
const (
	inputID   = "file_input"
	mimeID    = "mime_tagger"
	scoringID = "scoring_relay"
	stdoutID  = "stdout_output"
	fileID    = "file_output"
)

func pluginEntry(id, typeName string, config map[string]interface{}) interface{} {
	return map[string]interface{}{
		"id":     id,
		"type":   typeName,
		"config": config,
	}
}

func entries(doc map[string]interface{}, key string) []interface{} {
	list, _ := doc[key].([]interface{})
	return list
}

// buildDocument applies the command line flags to a configuration document.
// Without configured processors the relay tags MIME types and scores every
// record; without configured outputs records go to stdout.
func buildDocument(doc map[string]interface{}, opts *options, withInputs bool) map[string]interface{} {
	if doc == nil {
		doc = make(map[string]interface{})
	}

	if withInputs {
		if opts.inputFile != "" {
			doc["inputs"] = append(entries(doc, "inputs"), pluginEntry(inputID, standard.FileInput, map[string]interface{}{
				"paths": []interface{}{opts.inputFile},
			}))
		}
	} else {
		delete(doc, "inputs")
	}

	processorList := entries(doc, "processors")
	if len(processorList) == 0 {
		processorList = []interface{}{
			pluginEntry(mimeID, standard.MimeProcessor, map[string]interface{}{
				"patterns": []interface{}{
					map[string]interface{}{"pattern": `(?i)\.csv$`, "mime_type": "text/csv"},
				},
			}),
			pluginEntry(scoringID, standard.ScoringRelay, map[string]interface{}{}),
		}
	}
	for _, entry := range processorList {
		overrideScoring(entry, opts)
	}
	doc["processors"] = processorList

	var added []string
	outputList := entries(doc, "outputs")
	if opts.stdout || (withInputs && len(outputList) == 0 && opts.outputDir == "") {
		format := "text"
		if opts.jsonFormat {
			format = "json"
		}
		outputList = append(outputList, pluginEntry(stdoutID, standard.StdoutOutput, map[string]interface{}{
			"format":   format,
			"colorize": opts.colorize,
		}))
		added = append(added, stdoutID)
	}
	if opts.outputDir != "" {
		outputList = append(outputList, pluginEntry(fileID, standard.FileOutput, map[string]interface{}{
			"directory": opts.outputDir,
		}))
		added = append(added, fileID)
	}
	if outputList != nil {
		doc["outputs"] = outputList
	}

	// Outputs added by flags receive successful records when connections are configured
	if connections, ok := doc["connections"].(map[string]interface{}); ok && len(added) > 0 {
		targets, _ := connections[model.RelSuccess.Name].([]interface{})
		for _, id := range added {
			targets = append(targets, id)
		}
		connections[model.RelSuccess.Name] = targets
	}
	return doc
}

// overrideScoring applies --service-url and --pmml-file to a scoring relay entry
func overrideScoring(entry interface{}, opts *options) {
	def, ok := entry.(map[string]interface{})
	if !ok || def["type"] != standard.ScoringRelay {
		return
	}
	config, ok := def["config"].(map[string]interface{})
	if !ok {
		config = make(map[string]interface{})
		def["config"] = config
	}
	if opts.serviceURL != "" {
		config[processors.PropServiceURL] = opts.serviceURL
	}
	if opts.pmmlFile != "" {
		config[processors.PropPMMLFile] = opts.pmmlFile
		delete(config, processors.PropPMML)
	}
}
