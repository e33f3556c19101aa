package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewRecord(t *testing.T) {
	t.Run("Creates record with id and uuid attribute", func(t *testing.T) {
		record := NewRecord("file_input", []byte("5.1,3.5,1.4,0.2"))

		assert.NotEmpty(t, record.ID)
		assert.Equal(t, record.ID, record.Attribute(AttrUUID))
		assert.Equal(t, "file_input", record.Source)
		assert.Equal(t, []byte("5.1,3.5,1.4,0.2"), record.Payload)
		assert.False(t, record.Timestamp.IsZero())
	})

	t.Run("Each record gets a distinct id", func(t *testing.T) {
		a := NewRecord("test", nil)
		b := NewRecord("test", nil)
		assert.NotEqual(t, a.ID, b.ID)
	})
}

func TestRecordAttributes(t *testing.T) {
	t.Run("Attribute on nil map returns empty string", func(t *testing.T) {
		record := &Record{}
		assert.Equal(t, "", record.Attribute(AttrMimeType))
	})

	t.Run("PutAttribute initializes the map", func(t *testing.T) {
		record := &Record{}
		record.PutAttribute(AttrMimeType, "text/csv")
		assert.Equal(t, "text/csv", record.MimeType())
	})

	t.Run("PutAllAttributes merges and overwrites", func(t *testing.T) {
		record := NewRecord("test", nil)
		record.PutAttribute("class", "old")
		record.PutAllAttributes(map[string]string{
			"class":                "Iris-setosa",
			"probability(setosa)": "1.0",
		})

		assert.Equal(t, "Iris-setosa", record.Attribute("class"))
		assert.Equal(t, "1.0", record.Attribute("probability(setosa)"))
		assert.Equal(t, record.ID, record.Attribute(AttrUUID))
	})
}

func TestRecordPenalize(t *testing.T) {
	record := NewRecord("test", nil)

	t.Run("Fresh record is not penalized", func(t *testing.T) {
		assert.False(t, record.IsPenalized(time.Now()))
	})

	t.Run("Penalize holds the record until the duration passes", func(t *testing.T) {
		record.Penalize(time.Minute)
		assert.True(t, record.IsPenalized(time.Now()))
		assert.False(t, record.IsPenalized(time.Now().Add(2*time.Minute)))
	})
}

func TestRecordClone(t *testing.T) {
	original := NewRecord("test", []byte("payload"))
	original.PutAttribute("key", "value")

	clone := original.Clone()
	clone.Payload[0] = 'P'
	clone.PutAttribute("key", "changed")

	assert.Equal(t, []byte("payload"), original.Payload)
	assert.Equal(t, "value", original.Attribute("key"))
	assert.Equal(t, original.ID, clone.ID)
}

func TestRecordToMap(t *testing.T) {
	record := NewRecord("test", []byte("hello"))
	record.Relationship = RelSuccess

	t.Run("ToMap includes all fields", func(t *testing.T) {
		result := record.ToMap()

		assert.Equal(t, record.ID, result["id"])
		assert.Equal(t, "test", result["source"])
		assert.Equal(t, "hello", result["payload"])
		assert.Equal(t, "success", result["relationship"])
		assert.Equal(t, record.Attributes, result["attributes"])
		assert.NotContains(t, result, "penalized_until")
	})

	t.Run("ToMap includes penalty when set", func(t *testing.T) {
		record.Penalize(time.Second)
		assert.Contains(t, record.ToMap(), "penalized_until")
	})
}

func TestRelationshipContinues(t *testing.T) {
	assert.True(t, RelSuccess.Continues())
	assert.True(t, RelMatched.Continues())
	assert.False(t, RelFailure.Continues())
	assert.False(t, RelModelFailure.Continues())
	assert.False(t, RelUnmatched.Continues())
	assert.Equal(t, "model-failure", RelModelFailure.String())
}
