package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reviewPayload struct {
	TargetID string `json:"target_id"`
	AuthorID string `json:"author_id"`
}

func TestNewEvent_Fields(t *testing.T) {
	data := reviewPayload{TargetID: "COMP248", AuthorID: "user-1"}
	event, err := NewEvent("review.submitted", "COMP248", "course", "review-service", data)
	require.NoError(t, err)

	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, "review.submitted", event.EventType)
	assert.Equal(t, "COMP248", event.AggregateID)
	assert.Equal(t, "course", event.AggregateType)
	assert.Equal(t, 1, event.Version)
	assert.WithinDuration(t, time.Now().UTC(), event.Timestamp, 2*time.Second)

	var got reviewPayload
	require.NoError(t, event.UnmarshalData(&got))
	assert.Equal(t, data, got)
}

func TestNewEvent_InvalidData(t *testing.T) {
	_, err := NewEvent("review.submitted", "x", "course", "svc", make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "review.submitted")
}

func TestEvent_EnvelopeSurvivesTheWire(t *testing.T) {
	original, err := NewEvent("stats.repair", "COMP248", "course", "review-service", map[string]string{"reason": "partial write"})
	require.NoError(t, err)
	original.WithCorrelationID("corr-1").WithMetadata("attempt", "1")

	raw, err := original.Marshal()
	require.NoError(t, err)
	restored, err := UnmarshalEvent(raw)
	require.NoError(t, err)

	assert.Equal(t, original.EventID, restored.EventID)
	assert.Equal(t, "corr-1", restored.CorrelationID)
	assert.Equal(t, "1", restored.Metadata["attempt"])
	assert.JSONEq(t, string(original.Data), string(restored.Data))
}

func TestEvent_WithMetadata_NilMap(t *testing.T) {
	event := &Event{EventID: "e"}
	assert.Same(t, event, event.WithMetadata("k", "v"))
	assert.Equal(t, "v", event.Metadata["k"])
}

func TestUnmarshal_Invalid(t *testing.T) {
	_, err := UnmarshalEvent([]byte(`{broken`))
	require.Error(t, err)

	e := &Event{Data: json.RawMessage(`nope`)}
	require.Error(t, e.UnmarshalData(&map[string]string{}))
}

func TestTopics(t *testing.T) {
	assert.Equal(t, "coursereviews.review.submitted", Topic("review", "submitted"))
	assert.Equal(t, "coursereviews.dlq.coursereviews.stats.repair", DLQTopic(Topic("stats", "repair")))
}
