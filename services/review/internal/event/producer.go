package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/utafrali/coursereviews/pkg/logger"
	pkgkafka "github.com/utafrali/coursereviews/pkg/kafka"
	"github.com/utafrali/coursereviews/services/review/internal/domain"
)

// Kafka topics for review domain events.
var (
	TopicReviewSubmitted      = pkgkafka.Topic("review", "submitted")
	TopicReviewDeleted        = pkgkafka.Topic("review", "deleted")
	TopicInteractionChanged   = pkgkafka.Topic("interaction", "changed")
	TopicSubscriptionChanged  = pkgkafka.Topic("subscription", "changed")
	TopicStatsRepairRequested = pkgkafka.Topic("stats", "repair")
)

// Aggregate types.
const (
	AggregateTypeReview       = "review"
	AggregateTypeInteraction  = "interaction"
	AggregateTypeSubscription = "subscription"
	AggregateTypeStats        = "stats"
)

// SourceReviewService identifies events originating from this service.
const SourceReviewService = "review-service"

// ReviewSubmittedData is the payload for a review.submitted event.
type ReviewSubmittedData struct {
	ID        string            `json:"id"`
	Type      domain.ReviewType `json:"type"`
	TargetID  string            `json:"target_id"`
	AuthorID  string            `json:"author_id"`
	IsNew     bool              `json:"is_new"`
	Timestamp time.Time         `json:"timestamp"`
}

// ReviewDeletedData is the payload for a review.deleted event.
type ReviewDeletedData struct {
	ID       string            `json:"id"`
	Type     domain.ReviewType `json:"type"`
	TargetID string            `json:"target_id"`
	AuthorID string            `json:"author_id"`
}

// InteractionChangedData is the payload for an interaction.changed event.
// Kind is empty when the interaction was removed.
type InteractionChangedData struct {
	Type       domain.ReviewType      `json:"type"`
	TargetID   string                 `json:"target_id"`
	UserID     string                 `json:"user_id"`
	Referrer   string                 `json:"referrer"`
	Kind       domain.InteractionKind `json:"kind,omitempty"`
	LikesDelta int                    `json:"likes_delta"`
}

// SubscriptionChangedData is the payload for a subscription.changed event.
type SubscriptionChangedData struct {
	UserID     string `json:"user_id"`
	CourseID   string `json:"course_id"`
	Subscribed bool   `json:"subscribed"`
}

// StatsRepairData asks the consumer group to recompute one target.
type StatsRepairData struct {
	Type     domain.ReviewType `json:"type"`
	TargetID string            `json:"target_id"`
	Reason   string            `json:"reason,omitempty"`
}

type publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes review domain events. A Producer without a Kafka
// publisher, or a nil *Producer, drops every event.
type Producer struct {
	kafka  publisher
	logger *slog.Logger
}

// NewProducer creates an event producer. kafka may be nil when Kafka is
// disabled.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	p := &Producer{logger: logger}
	if kafka != nil {
		p.kafka = kafka
	}
	return p
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID, aggregateType string, data any) error {
	if p == nil || p.kafka == nil {
		return nil
	}

	event, err := pkgkafka.NewEvent(topic, aggregateID, aggregateType, SourceReviewService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		event.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("aggregate_id", aggregateID),
	)
	return nil
}

// PublishReviewSubmitted publishes a review.submitted event.
func (p *Producer) PublishReviewSubmitted(ctx context.Context, review *domain.Review, isNew bool) error {
	return p.publish(ctx, TopicReviewSubmitted, review.ID, AggregateTypeReview, ReviewSubmittedData{
		ID:        review.ID,
		Type:      review.Type,
		TargetID:  review.TargetID,
		AuthorID:  review.AuthorID,
		IsNew:     isNew,
		Timestamp: review.Timestamp,
	})
}

// PublishReviewDeleted publishes a review.deleted event.
func (p *Producer) PublishReviewDeleted(ctx context.Context, review *domain.Review) error {
	return p.publish(ctx, TopicReviewDeleted, review.ID, AggregateTypeReview, ReviewDeletedData{
		ID:       review.ID,
		Type:     review.Type,
		TargetID: review.TargetID,
		AuthorID: review.AuthorID,
	})
}

// PublishInteractionChanged publishes an interaction.changed event.
func (p *Producer) PublishInteractionChanged(ctx context.Context, key domain.InteractionKey, kind domain.InteractionKind, delta int) error {
	return p.publish(ctx, TopicInteractionChanged, key.TargetID+"/"+key.UserID, AggregateTypeInteraction, InteractionChangedData{
		Type:       key.Type,
		TargetID:   key.TargetID,
		UserID:     key.UserID,
		Referrer:   key.Referrer,
		Kind:       kind,
		LikesDelta: delta,
	})
}

// PublishSubscriptionChanged publishes a subscription.changed event.
func (p *Producer) PublishSubscriptionChanged(ctx context.Context, userID, courseID string, subscribed bool) error {
	return p.publish(ctx, TopicSubscriptionChanged, courseID, AggregateTypeSubscription, SubscriptionChangedData{
		UserID:     userID,
		CourseID:   courseID,
		Subscribed: subscribed,
	})
}

// PublishStatsRepair asks the repair consumers to recompute a target whose
// stats may be stale.
func (p *Producer) PublishStatsRepair(ctx context.Context, reviewType domain.ReviewType, targetID, reason string) error {
	return p.publish(ctx, TopicStatsRepairRequested, targetID, AggregateTypeStats, StatsRepairData{
		Type:     reviewType,
		TargetID: targetID,
		Reason:   reason,
	})
}
