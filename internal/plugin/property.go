package plugin

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

// Validator checks a single property value
type Validator func(value interface{}) error

// PropertyDescriptor describes one configuration key of a plugin
type PropertyDescriptor struct {
	Name        string
	Description string
	Required    bool
	Validators  []Validator
}

// ValidationResult is the outcome of validating one property
type ValidationResult struct {
	Property string
	Err      error
}

func (r ValidationResult) Error() string {
	return fmt.Sprintf("%s: %v", r.Property, r.Err)
}

func (r ValidationResult) Unwrap() error {
	return r.Err
}

// ErrMissing is returned for a required property that is not set
var ErrMissing = errors.New("property is required")

// Validate checks a config map against the descriptor
func (d PropertyDescriptor) Validate(config map[string]interface{}) error {
	value, ok := config[d.Name]
	if !ok || value == nil {
		if d.Required {
			return ValidationResult{Property: d.Name, Err: ErrMissing}
		}
		return nil
	}
	for _, validate := range d.Validators {
		if err := validate(value); err != nil {
			return ValidationResult{Property: d.Name, Err: err}
		}
	}
	return nil
}

// ValidateAll validates every descriptor and joins the failures
func ValidateAll(config map[string]interface{}, descriptors []PropertyDescriptor) error {
	var errs []error
	for _, d := range descriptors {
		if err := d.Validate(config); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NonEmpty rejects values that are not strings or are blank
func NonEmpty(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("expected string, got %T", value)
	}
	if strings.TrimSpace(s) == "" {
		return errors.New("must not be empty")
	}
	return nil
}

// URL accepts absolute http or https URLs with a host
func URL(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("expected string, got %T", value)
	}
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("URL has no host")
	}
	return nil
}

// Duration accepts time.Duration values and Go duration strings
func Duration(value interface{}) error {
	_, err := AsDuration(value)
	return err
}

// Bool accepts booleans
func Bool(value interface{}) error {
	if _, ok := value.(bool); !ok {
		return fmt.Errorf("expected bool, got %T", value)
	}
	return nil
}

// FileReadable accepts paths to readable, non-empty regular files
func FileReadable(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("expected string, got %T", value)
	}
	info, err := os.Stat(s)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", s)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%s is empty", s)
	}
	return nil
}

// AsDuration converts a config value to a time.Duration
func AsDuration(value interface{}) (time.Duration, error) {
	switch v := value.(type) {
	case time.Duration:
		return v, nil
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", v, err)
		}
		return d, nil
	default:
		return 0, fmt.Errorf("expected duration, got %T", value)
	}
}

// StringValue reads a string config value, falling back to def
func StringValue(config map[string]interface{}, key, def string) string {
	if s, ok := config[key].(string); ok {
		return s
	}
	return def
}

// BoolValue reads a bool config value, falling back to def
func BoolValue(config map[string]interface{}, key string, def bool) bool {
	if b, ok := config[key].(bool); ok {
		return b
	}
	return def
}

// DurationValue reads a duration config value, falling back to def
func DurationValue(config map[string]interface{}, key string, def time.Duration) time.Duration {
	v, ok := config[key]
	if !ok {
		return def
	}
	d, err := AsDuration(v)
	if err != nil {
		return def
	}
	return d
}

// StringSlice reads a list of strings from a config value
func StringSlice(value interface{}) []string {
	switch v := value.(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{v}
	}
	return nil
}

// IntValue reads an integer config value, falling back to def. JSON
// documents decode numbers as float64, YAML ones as int.
func IntValue(config map[string]interface{}, key string, def int) int {
	switch v := config[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}
