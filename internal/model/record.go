package model

import (
	"time"

	"github.com/google/uuid"
)

// Well-known record attribute keys
const (
	AttrUUID         = "uuid"
	AttrMimeType     = "mime.type"
	AttrFilename     = "filename"
	AttrPath         = "path"
	AttrAbsolutePath = "absolute.path"
	AttrFileSize     = "file.size"
)

// Record is a unit of data moving through the flow: an opaque payload plus
// string attributes.
type Record struct {
	ID             string
	Source         string
	Timestamp      time.Time
	Payload        []byte
	Attributes     map[string]string
	PenalizedUntil time.Time
	Relationship   Relationship
}

// NewRecord creates a record with a fresh id
func NewRecord(source string, payload []byte) *Record {
	id := uuid.New().String()
	return &Record{
		ID:         id,
		Source:     source,
		Timestamp:  time.Now(),
		Payload:    payload,
		Attributes: map[string]string{AttrUUID: id},
	}
}

// Attribute returns the value of an attribute, or "" when absent
func (r *Record) Attribute(key string) string {
	if r.Attributes == nil {
		return ""
	}
	return r.Attributes[key]
}

// PutAttribute sets a single attribute
func (r *Record) PutAttribute(key, value string) {
	if r.Attributes == nil {
		r.Attributes = make(map[string]string)
	}
	r.Attributes[key] = value
}

// PutAllAttributes merges attrs into the record's attributes
func (r *Record) PutAllAttributes(attrs map[string]string) {
	for k, v := range attrs {
		r.PutAttribute(k, v)
	}
}

// MimeType returns the declared mime.type attribute
func (r *Record) MimeType() string {
	return r.Attribute(AttrMimeType)
}

// Penalize marks the record so the host holds it back for d
func (r *Record) Penalize(d time.Duration) {
	r.PenalizedUntil = time.Now().Add(d)
}

// IsPenalized reports whether the penalty is still active at now
func (r *Record) IsPenalized(now time.Time) bool {
	return now.Before(r.PenalizedUntil)
}

// Clone returns a deep copy of the record
func (r *Record) Clone() *Record {
	c := *r
	c.Payload = append([]byte(nil), r.Payload...)
	c.Attributes = make(map[string]string, len(r.Attributes))
	for k, v := range r.Attributes {
		c.Attributes[k] = v
	}
	return &c
}

// ToMap converts the record to a map representation
func (r *Record) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"id":           r.ID,
		"source":       r.Source,
		"timestamp":    r.Timestamp,
		"attributes":   r.Attributes,
		"payload":      string(r.Payload),
		"relationship": r.Relationship.Name,
	}
	if !r.PenalizedUntil.IsZero() {
		m["penalized_until"] = r.PenalizedUntil
	}
	return m
}
