package processors

import (
	"context"
	"fmt"
	"mime"
	"regexp"
	"sync/atomic"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sliink/relay/internal/model"
	"github.com/sliink/relay/internal/plugin"
)

type mimePattern struct {
	pattern  *regexp.Regexp
	mimeType string
}

// mimeRules is the compiled configuration of a tagger
type mimeRules struct {
	patterns []mimePattern
	sniff    bool
}

// MimeTagger fills in the mime.type attribute of records that lack one,
// first by matching the filename against configured patterns, then by
// sniffing the payload
type MimeTagger struct {
	plugin.BasePlugin
	rules atomic.Pointer[mimeRules]
}

// NewMimeTagger creates a new mime tagger plugin
func NewMimeTagger(id string) *MimeTagger {
	m := &MimeTagger{
		BasePlugin: plugin.NewBasePlugin(id, "Mime Tagger", model.ProcessorPluginType),
	}
	m.rules.Store(&mimeRules{patterns: make([]mimePattern, 0), sniff: true})
	return m
}

// Initialize compiles the filename patterns
func (m *MimeTagger) Initialize() bool {
	if err := m.load(); err != nil {
		m.Logger().Error("invalid pattern", "error", err)
		m.SetStatus(model.StatusError)
		return false
	}
	m.SetStatus(model.StatusInitialized)
	return true
}

func (m *MimeTagger) load() error {
	patterns, err := m.compile()
	if err != nil {
		return err
	}
	m.rules.Store(&mimeRules{
		patterns: patterns,
		sniff:    plugin.BoolValue(m.Config, "sniff", true),
	})
	return nil
}

// Start begins tagger operation
func (m *MimeTagger) Start() bool {
	m.SetStatus(model.StatusRunning)
	return true
}

// Stop halts tagger operation
func (m *MimeTagger) Stop() bool {
	m.SetStatus(model.StatusStopped)
	return true
}

// Validate checks that every pattern compiles
func (m *MimeTagger) Validate() error {
	_, err := m.compile()
	return err
}

func (m *MimeTagger) compile() ([]mimePattern, error) {
	raw, ok := m.Config["patterns"].([]interface{})
	if !ok {
		return nil, nil
	}

	patterns := make([]mimePattern, 0, len(raw))
	for i, entry := range raw {
		def, ok := entry.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("patterns[%d]: expected object, got %T", i, entry)
		}
		expr := plugin.StringValue(def, "pattern", "")
		mimeType := plugin.StringValue(def, "mime_type", "")
		if expr == "" || mimeType == "" {
			return nil, fmt.Errorf("patterns[%d]: pattern and mime_type are required", i)
		}
		regex, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("patterns[%d]: %w", i, err)
		}
		patterns = append(patterns, mimePattern{pattern: regex, mimeType: mimeType})
	}
	return patterns, nil
}

// OnConfigurationChanged recompiles the patterns; the previous rules stay
// active when the new ones do not compile
func (m *MimeTagger) OnConfigurationChanged(key string, oldValue, newValue interface{}) {
	if err := m.load(); err != nil {
		m.Logger().Error("rejected configuration change", "property", key, "error", err)
	}
}

// Process sets mime.type when the record does not declare one
func (m *MimeTagger) Process(ctx context.Context, record *model.Record) model.Relationship {
	if record == nil || record.MimeType() != "" {
		return model.RelSuccess
	}

	rules := m.rules.Load()
	filename := record.Attribute(model.AttrFilename)
	for _, p := range rules.patterns {
		if filename != "" && p.pattern.MatchString(filename) {
			record.PutAttribute(model.AttrMimeType, p.mimeType)
			return model.RelSuccess
		}
	}

	if rules.sniff && len(record.Payload) > 0 {
		detected := mimetype.Detect(record.Payload).String()
		if mediaType, _, err := mime.ParseMediaType(detected); err == nil {
			detected = mediaType
		}
		record.PutAttribute(model.AttrMimeType, detected)
	}
	return model.RelSuccess
}
