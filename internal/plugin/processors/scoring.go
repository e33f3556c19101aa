package processors

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sliink/relay/internal/model"
	"github.com/sliink/relay/internal/openscoring"
	"github.com/sliink/relay/internal/plugin"
)

// Property keys of the scoring relay
const (
	PropServiceURL        = "service_url"
	PropPMML              = "pmml"
	PropPMMLFile          = "pmml_file"
	PropTimeout           = "timeout"
	PropRemoveStaleModels = "remove_stale_models"
	PropPenaltyDuration   = "penalty_duration"
)

// ErrManagedByCore is returned by Reconfigure on a relay registered with a core
var ErrManagedByCore = errors.New("relay is registered with a core; set its properties through the core")

const (
	// DefaultPenaltyDuration is how long a failed record is held back
	DefaultPenaltyDuration = 30 * time.Second

	mimeTypeCSV = "text/csv"
)

// ScoringRelayDescriptors lists the properties the relay understands
var ScoringRelayDescriptors = []plugin.PropertyDescriptor{
	{
		Name:        PropServiceURL,
		Description: "Base URL for the Openscoring server",
		Required:    true,
		Validators:  []plugin.Validator{plugin.NonEmpty, plugin.URL},
	},
	{
		Name:        PropPMML,
		Description: "The XML of the PMML model used to score records",
		Validators:  []plugin.Validator{plugin.NonEmpty},
	},
	{
		Name:        PropPMMLFile,
		Description: "Path of a file holding the PMML model, used when pmml is not set",
		Validators:  []plugin.Validator{plugin.NonEmpty, plugin.FileReadable},
	},
	{
		Name:        PropTimeout,
		Description: "Timeout of a single request to the scoring service",
		Validators:  []plugin.Validator{plugin.Duration},
	},
	{
		Name:        PropRemoveStaleModels,
		Description: "Undeploy the previous model when the configuration changes or the relay stops",
		Validators:  []plugin.Validator{plugin.Bool},
	},
	{
		Name:        PropPenaltyDuration,
		Description: "How long records routed to a failure relationship are held back",
		Validators:  []plugin.Validator{plugin.Duration},
	},
}

// ScoringRelay scores records against a PMML model deployed on an
// Openscoring server. JSON records get the prediction copied into their
// attributes; CSV records get their payload replaced by the scored CSV.
type ScoringRelay struct {
	plugin.BasePlugin
	registration  modelRegistration
	removeStale   atomic.Bool
	penalty       atomic.Int64
	registrations atomic.Int64
	succeeded     atomic.Int64
	failed        atomic.Int64
	modelFailed   atomic.Int64
}

// NewScoringRelay creates a new scoring relay plugin
func NewScoringRelay(id string) *ScoringRelay {
	r := &ScoringRelay{
		BasePlugin: plugin.NewBasePlugin(id, "Openscoring Relay", model.ProcessorPluginType),
	}
	r.penalty.Store(int64(DefaultPenaltyDuration))
	return r
}

// Relationships returns the outcomes Process routes to
func (r *ScoringRelay) Relationships() []model.Relationship {
	return []model.Relationship{model.RelSuccess, model.RelFailure, model.RelModelFailure}
}

// Validate checks the relay properties without contacting the service
func (r *ScoringRelay) Validate() error {
	var errs []error
	for _, d := range ScoringRelayDescriptors {
		if err := d.Validate(r.Config); err != nil {
			errs = append(errs, &ConfigurationError{Property: d.Name, Err: errors.Unwrap(err)})
		}
	}

	_, hasPMML := r.Config[PropPMML]
	_, hasFile := r.Config[PropPMMLFile]
	if !hasPMML && !hasFile {
		errs = append(errs, &ConfigurationError{Property: PropPMML, Err: plugin.ErrMissing})
	}
	if len(errs) == 0 {
		// The document the relay would deploy must have content
		if _, err := r.resolvePMML(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Initialize validates the configuration and prepares the client
func (r *ScoringRelay) Initialize() bool {
	if err := r.apply(); err != nil {
		r.Logger().Error("invalid configuration", "error", err)
		r.SetStatus(model.StatusError)
		return false
	}
	r.SetStatus(model.StatusInitialized)
	return true
}

// Start begins relay operation
func (r *ScoringRelay) Start() bool {
	r.SetStatus(model.StatusRunning)
	return true
}

// Stop halts relay operation
func (r *ScoringRelay) Stop() bool {
	if r.removeStale.Load() {
		if state, ok := r.registration.snapshot(); ok && state.modelID != "" {
			if r.undeploy(staleModel{client: state.target.client, modelID: state.modelID}, false) {
				r.registration.forget(state.modelID)
			}
		}
	}
	r.SetStatus(model.StatusStopped)
	return true
}

// Reconfigure points a standalone relay at a service URL and PMML document.
// Both are validated before anything else happens; the cached model id is
// dropped. Relays registered with a core change properties through the core.
func (r *ScoringRelay) Reconfigure(serviceURL, pmml string) error {
	if r.Core() != nil {
		return ErrManagedByCore
	}
	config := make(map[string]interface{}, len(r.Config)+2)
	for k, v := range r.Config {
		config[k] = v
	}
	config[PropServiceURL] = serviceURL
	config[PropPMML] = pmml
	delete(config, PropPMMLFile)

	previous := r.Config
	r.Config = config
	if err := r.apply(); err != nil {
		r.Config = previous
		return err
	}
	r.PublishEvent(model.EventConfigChange, map[string]interface{}{PropServiceURL: serviceURL})
	return nil
}

// OnConfigurationChanged re-reads the configuration after a property update
func (r *ScoringRelay) OnConfigurationChanged(key string, oldValue, newValue interface{}) {
	if err := r.apply(); err != nil {
		r.Logger().Error("rejected configuration change", "property", key, "error", err)
		return
	}
	r.Logger().Info("configuration changed", "property", key)
}

// apply validates r.Config and installs it; a new URL or PMML resets the
// model registration
func (r *ScoringRelay) apply() error {
	if err := r.Validate(); err != nil {
		return err
	}

	pmml, err := r.resolvePMML()
	if err != nil {
		return err
	}

	serviceURL := strings.TrimRight(plugin.StringValue(r.Config, PropServiceURL, ""), "/")
	timeout := plugin.DurationValue(r.Config, PropTimeout, openscoring.DefaultTimeout)
	r.removeStale.Store(plugin.BoolValue(r.Config, PropRemoveStaleModels, false))
	r.penalty.Store(int64(plugin.DurationValue(r.Config, PropPenaltyDuration, DefaultPenaltyDuration)))

	stale, reset := r.registration.setTarget(scoringTarget{
		serviceURL: serviceURL,
		pmml:       pmml,
		client:     openscoring.NewClient(serviceURL, openscoring.WithTimeout(timeout)),
	})
	if reset && stale.modelID != "" {
		r.Logger().Info("model registration reset", "stale_model", stale.modelID)
		if r.removeStale.Load() {
			go r.undeploy(stale, true)
		}
	}
	return nil
}

func (r *ScoringRelay) resolvePMML() (string, error) {
	if pmml, ok := r.Config[PropPMML].(string); ok {
		return pmml, nil
	}
	path := plugin.StringValue(r.Config, PropPMMLFile, "")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &ConfigurationError{Property: PropPMMLFile, Err: err}
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", &ConfigurationError{Property: PropPMMLFile, Err: errors.New("file is empty")}
	}
	return string(data), nil
}

func (r *ScoringRelay) undeploy(stale staleModel, async bool) bool {
	if stale.client == nil || stale.modelID == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), openscoring.DefaultTimeout)
	defer cancel()
	if err := stale.client.UndeployModel(ctx, stale.modelID); err != nil {
		r.Logger().Warn("failed to remove stale model", "model", stale.modelID, "async", async, "error", err)
		return false
	}
	r.Logger().Info("removed stale model", "model", stale.modelID)
	return true
}

// Process registers the model if needed, then scores the record
func (r *ScoringRelay) Process(ctx context.Context, record *model.Record) model.Relationship {
	if record == nil {
		return model.RelFailure
	}

	state, ok := r.registration.snapshot()
	if !ok || r.GetStatus() != model.StatusRunning {
		r.Logger().Error("relay is not running", "record", record.ID, "status", r.GetStatus())
		return r.fail(record, model.RelFailure)
	}

	modelID, err := r.ensureModelRegistered(ctx, state)
	if err != nil {
		r.Logger().Error("failure to post model", "record", record.ID, "error", err)
		return r.fail(record, model.RelModelFailure)
	}

	if err := r.score(ctx, state.target.client, modelID, record); err != nil {
		r.Logger().Error("failure to score record", "record", record.ID, "error", err)
		return r.fail(record, model.RelFailure)
	}

	r.succeeded.Add(1)
	return model.RelSuccess
}

func (r *ScoringRelay) fail(record *model.Record, rel model.Relationship) model.Relationship {
	record.Penalize(time.Duration(r.penalty.Load()))
	if rel == model.RelModelFailure {
		r.modelFailed.Add(1)
	} else {
		r.failed.Add(1)
	}
	return rel
}

// ensureModelRegistered returns the cached model id or deploys the PMML
// under a new one
func (r *ScoringRelay) ensureModelRegistered(ctx context.Context, state registrationState) (string, error) {
	return r.registration.ensure(ctx, state, func(ctx context.Context, id string) error {
		r.Logger().Info("deploying model", "url", state.target.client.ModelURL(id))
		if err := state.target.client.DeployModel(ctx, id, state.target.pmml); err != nil {
			return err
		}
		r.registrations.Add(1)
		r.PublishEvent(model.EventModelRegistered, map[string]interface{}{
			"model_id":    id,
			"service_url": state.target.serviceURL,
		})
		return nil
	})
}

// score sends the record payload to the model and merges the response
func (r *ScoringRelay) score(ctx context.Context, client *openscoring.Client, modelID string, record *model.Record) error {
	if IsCSV(record.MimeType()) {
		data, err := client.EvaluateCSV(ctx, modelID, record.Payload)
		if err != nil {
			return &ScoringError{ModelID: modelID, Err: err}
		}
		record.Payload = data
		record.PutAttribute(model.AttrMimeType, mimeTypeCSV)
		return nil
	}

	resp, err := client.Evaluate(ctx, modelID, record.Payload)
	if err != nil {
		return &ScoringError{ModelID: modelID, Err: err}
	}
	record.PutAllAttributes(FlattenResult(resp.Result))
	return nil
}

// Stats returns the relay counters and the current model id
func (r *ScoringRelay) Stats() map[string]interface{} {
	state, _ := r.registration.snapshot()
	return map[string]interface{}{
		"model_id":      state.modelID,
		"generation":    state.generation,
		"service_url":   state.target.serviceURL,
		"registrations": r.registrations.Load(),
		"success":       r.succeeded.Load(),
		"failure":       r.failed.Load(),
		"model-failure": r.modelFailed.Load(),
	}
}

// ModelID returns the cached model id, or "" before registration
func (r *ScoringRelay) ModelID() string {
	state, _ := r.registration.snapshot()
	return state.modelID
}

// IsCSV reports whether a mime.type value denotes CSV
func IsCSV(mimeType string) bool {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(mimeType))
	}
	return mediaType == mimeTypeCSV
}

// FlattenResult converts the scalar fields of an evaluation result to
// attribute strings. Null, object and array fields are skipped.
func FlattenResult(result map[string]interface{}) map[string]string {
	attrs := make(map[string]string, len(result))
	for key, value := range result {
		switch v := value.(type) {
		case string:
			attrs[key] = v
		case json.Number:
			attrs[key] = v.String()
		case bool:
			attrs[key] = strconv.FormatBool(v)
		case float64:
			attrs[key] = strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return attrs
}
