package outputs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sliink/relay/internal/model"
	"github.com/sliink/relay/internal/plugin"
)

// ErrNotRunning is returned by Send on an output that was not started
var ErrNotRunning = errors.New("output is not running")

// StdoutOutput writes records to standard output
type StdoutOutput struct {
	plugin.BasePlugin
	colorize bool
	format   string
	payload  bool
	out      io.Writer
	mu       sync.Mutex
}

// NewStdoutOutput creates a new stdout output plugin
func NewStdoutOutput(id string) *StdoutOutput {
	return &StdoutOutput{
		BasePlugin: plugin.NewBasePlugin(id, "Stdout Output", model.OutputPluginType),
		colorize:   false,
		format:     "text",
		payload:    true,
		out:        os.Stdout,
	}
}

// Initialize prepares the stdout output for operation
func (s *StdoutOutput) Initialize() bool {
	s.colorize = plugin.BoolValue(s.Config, "colorize", false)
	s.format = plugin.StringValue(s.Config, "format", "text")
	s.payload = plugin.BoolValue(s.Config, "payload", true)

	s.SetStatus(model.StatusInitialized)
	return true
}

// Start begins stdout output operation
func (s *StdoutOutput) Start() bool {
	s.SetStatus(model.StatusRunning)
	return true
}

// Stop halts stdout output operation
func (s *StdoutOutput) Stop() bool {
	s.SetStatus(model.StatusStopped)
	return true
}

// Validate checks the output format
func (s *StdoutOutput) Validate() error {
	switch format := plugin.StringValue(s.Config, "format", "text"); format {
	case "text", "json":
		return nil
	default:
		return plugin.ValidationResult{Property: "format", Err: fmt.Errorf("unsupported format %q", format)}
	}
}

// Send writes a record to stdout
func (s *StdoutOutput) Send(record *model.Record) error {
	if record == nil {
		return nil
	}
	if s.GetStatus() != model.StatusRunning {
		return ErrNotRunning
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.format == "json" {
		return s.outputJSON(record)
	}
	return s.outputText(record)
}

// outputJSON prints a record as a single JSON line
func (s *StdoutOutput) outputJSON(record *model.Record) error {
	m := record.ToMap()
	if !s.payload {
		delete(m, "payload")
	}
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(s.out, string(data))
	return err
}

// outputText prints a header line, the sorted attributes and the payload
func (s *StdoutOutput) outputText(record *model.Record) error {
	timestamp := record.Timestamp.Format(time.RFC3339)

	rel := record.Relationship.Name
	if s.colorize {
		switch rel {
		case model.RelFailure.Name, model.RelModelFailure.Name:
			rel = "\033[31m" + rel + "\033[0m" // Red
		case model.RelUnmatched.Name:
			rel = "\033[33m" + rel + "\033[0m" // Yellow
		default:
			rel = "\033[32m" + rel + "\033[0m" // Green
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s %s (%s)\n", timestamp, rel, record.ID, record.Source)

	keys := make([]string, 0, len(record.Attributes))
	for k := range record.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "  %s=%s\n", k, record.Attributes[k])
	}

	if s.payload && len(record.Payload) > 0 {
		b.Write(record.Payload)
		if record.Payload[len(record.Payload)-1] != '\n' {
			b.WriteByte('\n')
		}
	}

	_, err := io.WriteString(s.out, b.String())
	return err
}
