package outputs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/sliink/relay/internal/model"
	"github.com/sliink/relay/internal/plugin"
)

const attributesSuffix = ".attributes.json"

// FileOutput writes each record payload to
// {directory}/{relationship}/{filename}, falling back to the record id when
// the record has no filename attribute
type FileOutput struct {
	plugin.BasePlugin
	directory  string
	attributes bool
	unique     bool
	written    atomic.Int64
}

// NewFileOutput creates a new file output plugin
func NewFileOutput(id string) *FileOutput {
	return &FileOutput{
		BasePlugin: plugin.NewBasePlugin(id, "File Output", model.OutputPluginType),
	}
}

// Validate checks the target directory and conflict strategy
func (f *FileOutput) Validate() error {
	if err := (plugin.PropertyDescriptor{
		Name:       "directory",
		Required:   true,
		Validators: []plugin.Validator{plugin.NonEmpty},
	}).Validate(f.Config); err != nil {
		return err
	}
	switch conflict := plugin.StringValue(f.Config, "conflict", "replace"); conflict {
	case "replace", "unique":
		return nil
	default:
		return plugin.ValidationResult{Property: "conflict", Err: fmt.Errorf("unsupported strategy %q", conflict)}
	}
}

// Initialize creates the target directory
func (f *FileOutput) Initialize() bool {
	if err := f.Validate(); err != nil {
		f.Logger().Error("invalid configuration", "error", err)
		f.SetStatus(model.StatusError)
		return false
	}
	f.directory = plugin.StringValue(f.Config, "directory", "")
	f.attributes = plugin.BoolValue(f.Config, "write_attributes", false)
	f.unique = plugin.StringValue(f.Config, "conflict", "replace") == "unique"

	if err := os.MkdirAll(f.directory, 0o755); err != nil {
		f.Logger().Error("failed to create directory", "directory", f.directory, "error", err)
		f.SetStatus(model.StatusError)
		return false
	}
	f.SetStatus(model.StatusInitialized)
	return true
}

// Start begins file output operation
func (f *FileOutput) Start() bool {
	f.SetStatus(model.StatusRunning)
	return true
}

// Stop halts file output operation
func (f *FileOutput) Stop() bool {
	f.SetStatus(model.StatusStopped)
	return true
}

// Send writes the payload, and optionally the attributes, of a record
func (f *FileOutput) Send(record *model.Record) error {
	if record == nil {
		return nil
	}
	if f.GetStatus() != model.StatusRunning {
		return ErrNotRunning
	}

	rel := record.Relationship.Name
	if rel == "" {
		rel = model.RelSuccess.Name
	}
	dir := filepath.Join(f.directory, sanitize(rel))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	path := filepath.Join(dir, f.fileName(record))
	if err := writeAtomic(path, record.Payload); err != nil {
		return err
	}

	if f.attributes {
		data, err := json.MarshalIndent(record.Attributes, "", "  ")
		if err != nil {
			return err
		}
		if err := writeAtomic(path+attributesSuffix, data); err != nil {
			return err
		}
	}

	f.written.Add(1)
	return nil
}

func (f *FileOutput) fileName(record *model.Record) string {
	name := sanitize(record.Attribute(model.AttrFilename))
	if name == "" {
		return record.ID
	}
	if f.unique {
		ext := filepath.Ext(name)
		return strings.TrimSuffix(name, ext) + "-" + record.ID + ext
	}
	return name
}

// sanitize keeps a single path element
func sanitize(name string) string {
	name = filepath.Base(filepath.Clean("/" + name))
	if name == "/" || name == "." {
		return ""
	}
	return name
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".relay-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Stats returns the number of records written
func (f *FileOutput) Stats() map[string]interface{} {
	return map[string]interface{}{"written": f.written.Load()}
}
