package event

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/coursereviews/pkg/errors"
	pkgkafka "github.com/utafrali/coursereviews/pkg/kafka"
	"github.com/utafrali/coursereviews/pkg/logger"
	"github.com/utafrali/coursereviews/services/review/internal/domain"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Mock publisher ---

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, topic string, event *pkgkafka.Event) error {
	args := m.Called(ctx, topic, event)
	return args.Error(0)
}

// --- Mock StatsRepairer ---

type mockStats struct {
	mock.Mock
}

func (m *mockStats) Repair(ctx context.Context, reviewType domain.ReviewType, targetID string) error {
	args := m.Called(ctx, reviewType, targetID)
	return args.Error(0)
}

func newTestEvent(t *testing.T, data any) *pkgkafka.Event {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return &pkgkafka.Event{
		EventID:   "evt-1",
		EventType: TopicStatsRepairRequested,
		Timestamp: time.Now().UTC(),
		Data:      raw,
	}
}

// ============================================================
// Producer
// ============================================================

func TestProducer_NilIsNoop(t *testing.T) {
	var p *Producer
	assert.NoError(t, p.PublishStatsRepair(context.Background(), domain.ReviewTypeCourse, "COMP248", "test"))

	disabled := NewProducer(nil, newTestLogger())
	assert.NoError(t, disabled.PublishSubscriptionChanged(context.Background(), "u1", "COMP248", true))
}

func TestProducer_PublishReviewSubmitted(t *testing.T) {
	pub := new(mockPublisher)
	p := &Producer{kafka: pub, logger: newTestLogger()}
	ctx := logger.WithCorrelationID(context.Background(), "corr-1")

	review := &domain.Review{
		ID:        "r1",
		Type:      domain.ReviewTypeCourse,
		AuthorID:  "alice",
		TargetID:  "COMP248",
		Timestamp: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	pub.On("Publish", ctx, TopicReviewSubmitted, mock.MatchedBy(func(e *pkgkafka.Event) bool {
		var data ReviewSubmittedData
		if err := json.Unmarshal(e.Data, &data); err != nil {
			return false
		}
		return e.AggregateID == "r1" &&
			e.AggregateType == AggregateTypeReview &&
			e.Source == SourceReviewService &&
			e.CorrelationID == "corr-1" &&
			data.IsNew && data.TargetID == "COMP248" && data.AuthorID == "alice"
	})).Return(nil)

	require.NoError(t, p.PublishReviewSubmitted(ctx, review, true))
	pub.AssertExpectations(t)
}

func TestProducer_PublishError(t *testing.T) {
	pub := new(mockPublisher)
	p := &Producer{kafka: pub, logger: newTestLogger()}
	pub.On("Publish", mock.Anything, TopicInteractionChanged, mock.Anything).Return(errors.New("broker down"))

	err := p.PublishInteractionChanged(context.Background(), domain.InteractionKey{
		Type: domain.ReviewTypeCourse, TargetID: "COMP248", UserID: "alice", Referrer: "bob",
	}, domain.KindLike, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestTopics(t *testing.T) {
	assert.Equal(t, "coursereviews.review.submitted", TopicReviewSubmitted)
	assert.Equal(t, "coursereviews.stats.repair", TopicStatsRepairRequested)
}

// ============================================================
// Consumer
// ============================================================

func TestHandleStatsRepair_Recomputes(t *testing.T) {
	stats := new(mockStats)
	c := NewConsumer(stats, newTestLogger())
	ctx := context.Background()

	stats.On("Repair", ctx, domain.ReviewTypeInstructor, "jane-doe").Return(nil)

	err := c.HandleStatsRepair(ctx, newTestEvent(t, StatsRepairData{Type: domain.ReviewTypeInstructor, TargetID: "jane-doe"}))
	require.NoError(t, err)
	stats.AssertExpectations(t)
}

func TestHandleStatsRepair_MissingTargetIsMoot(t *testing.T) {
	stats := new(mockStats)
	c := NewConsumer(stats, newTestLogger())
	ctx := context.Background()

	stats.On("Repair", ctx, domain.ReviewTypeCourse, "GONE1").Return(apperrors.InvalidState("missing course"))

	err := c.HandleStatsRepair(ctx, newTestEvent(t, StatsRepairData{Type: domain.ReviewTypeCourse, TargetID: "GONE1"}))
	assert.NoError(t, err)
}

func TestHandleStatsRepair_TransientFailureRetries(t *testing.T) {
	stats := new(mockStats)
	c := NewConsumer(stats, newTestLogger())
	ctx := context.Background()

	stats.On("Repair", ctx, domain.ReviewTypeCourse, "COMP248").Return(apperrors.Transient(errors.New("conn reset")))

	err := c.HandleStatsRepair(ctx, newTestEvent(t, StatsRepairData{Type: domain.ReviewTypeCourse, TargetID: "COMP248"}))
	require.Error(t, err)
	assert.True(t, apperrors.IsRetryable(err))
}

func TestHandleStatsRepair_SchoolIgnored(t *testing.T) {
	stats := new(mockStats)
	c := NewConsumer(stats, newTestLogger())

	err := c.HandleStatsRepair(context.Background(), newTestEvent(t, StatsRepairData{Type: domain.ReviewTypeSchool, TargetID: "concordia"}))
	assert.NoError(t, err)
	stats.AssertNotCalled(t, "Repair", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleStatsRepair_BadPayload(t *testing.T) {
	c := NewConsumer(new(mockStats), newTestLogger())
	event := &pkgkafka.Event{EventID: "evt-2", Data: json.RawMessage(`{not json`)}

	err := c.HandleStatsRepair(context.Background(), event)
	assert.Error(t, err)
}

func TestHandleStatsRepair_IdempotentWrapper(t *testing.T) {
	stats := new(mockStats)
	c := NewConsumer(stats, newTestLogger())
	ctx := context.Background()
	stats.On("Repair", ctx, domain.ReviewTypeCourse, "COMP248").Return(nil).Once()

	handler := pkgkafka.IdempotentHandler(pkgkafka.NewMemoryIdempotencyStore(time.Hour), c.HandleStatsRepair, newTestLogger())
	event := newTestEvent(t, StatsRepairData{Type: domain.ReviewTypeCourse, TargetID: "COMP248"})

	require.NoError(t, handler(ctx, event))
	require.NoError(t, handler(ctx, event))
	stats.AssertNumberOfCalls(t, "Repair", 1)
}
