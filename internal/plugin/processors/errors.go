package processors

import "fmt"

// ConfigurationError reports an invalid or missing relay property. It is
// raised before any network call is made.
type ConfigurationError struct {
	Property string
	Err      error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid property %s: %v", e.Property, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// ModelRegistrationError reports a failed model deployment. Records hitting
// it are routed to model-failure.
type ModelRegistrationError struct {
	ModelID string
	Err     error
}

func (e *ModelRegistrationError) Error() string {
	return fmt.Sprintf("register model %s: %v", e.ModelID, e.Err)
}

func (e *ModelRegistrationError) Unwrap() error {
	return e.Err
}

// ScoringError reports a failed evaluation call or an unusable response.
// Records hitting it are routed to failure.
type ScoringError struct {
	ModelID string
	Err     error
}

func (e *ScoringError) Error() string {
	return fmt.Sprintf("score against model %s: %v", e.ModelID, e.Err)
}

func (e *ScoringError) Unwrap() error {
	return e.Err
}
