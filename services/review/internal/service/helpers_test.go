package service

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/coursereviews/services/review/internal/cache"
	"github.com/utafrali/coursereviews/services/review/internal/domain"
	"github.com/utafrali/coursereviews/services/review/internal/repository"
	"github.com/utafrali/coursereviews/services/review/internal/repository/memory"
)

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixClock makes clock tick one second per call starting at testNow.
func fixClock(t *testing.T) {
	t.Helper()
	prev := clock
	var mu sync.Mutex
	next := testNow
	clock = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		next = next.Add(time.Second)
		return next
	}
	t.Cleanup(func() { clock = prev })
}

// --- Event recorder ---

type recordedEvent struct {
	Name     string
	TargetID string
}

type recordingEvents struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recordingEvents) add(name, target string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{Name: name, TargetID: target})
	return nil
}

func (r *recordingEvents) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Name
	}
	return out
}

func (r *recordingEvents) count(name string) int {
	n := 0
	for _, got := range r.names() {
		if got == name {
			n++
		}
	}
	return n
}

func (r *recordingEvents) PublishReviewSubmitted(_ context.Context, review *domain.Review, _ bool) error {
	return r.add("review.submitted", review.TargetID)
}

func (r *recordingEvents) PublishReviewDeleted(_ context.Context, review *domain.Review) error {
	return r.add("review.deleted", review.TargetID)
}

func (r *recordingEvents) PublishInteractionChanged(_ context.Context, key domain.InteractionKey, _ domain.InteractionKind, _ int) error {
	return r.add("interaction.changed", key.TargetID)
}

func (r *recordingEvents) PublishSubscriptionChanged(_ context.Context, _, courseID string, _ bool) error {
	return r.add("subscription.changed", courseID)
}

func (r *recordingEvents) PublishStatsRepair(_ context.Context, _ domain.ReviewType, targetID, _ string) error {
	return r.add("stats.repair", targetID)
}

// --- Invalidation spy ---

// spyInvalidator records every bumped scope and forwards to the real cache,
// or fails with err when set.
type spyInvalidator struct {
	next cache.Invalidator
	mu   sync.Mutex
	seen []cache.Scope
	err  error
}

func (s *spyInvalidator) Bump(ctx context.Context, scopes ...cache.Scope) error {
	s.mu.Lock()
	s.seen = append(s.seen, scopes...)
	err := s.err
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.next.Bump(ctx, scopes...)
}

func (s *spyInvalidator) failWith(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *spyInvalidator) reset() {
	s.mu.Lock()
	s.seen = nil
	s.mu.Unlock()
}

func (s *spyInvalidator) bumped() []cache.Scope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.seen)
}

// --- Fixture ---

type fixture struct {
	store         repository.Store
	events        *recordingEvents
	spy           *spyInvalidator
	coordinator   *cache.Coordinator
	stats         *StatsService
	interactions  *InteractionService
	notifications *NotificationService
	subscriptions *SubscriptionService
	reviews       *ReviewService
	listing       *ListingService
	catalog       *CatalogService
}

// newFixture wires every service over a fresh memory store and a miniredis
// backed cache. wrap may replace repositories before wiring.
func newFixture(t *testing.T, wrap ...func(*repository.Store)) *fixture {
	t.Helper()
	fixClock(t)

	store := memory.New().Repositories()
	for _, w := range wrap {
		w(&store)
	}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := newTestLogger()
	rc := cache.NewRedisCache(client, "test", time.Hour, cache.DefaultBreakerConfig(), logger)
	spy := &spyInvalidator{next: rc}
	coord := cache.NewCoordinator(spy, logger)
	events := &recordingEvents{}

	f := &fixture{store: store, events: events, spy: spy, coordinator: coord}
	f.stats = NewStatsService(store.Courses, store.Instructors, coord, 2, logger)
	f.interactions = NewInteractionService(store.Interactions, coord, events, logger)
	f.notifications = NewNotificationService(store.Notifications, store.Subscriptions, rc, coord, logger)
	f.subscriptions = NewSubscriptionService(store.Subscriptions, coord, events, logger)
	f.reviews = NewReviewService(store, f.stats, f.interactions, f.notifications, coord, events, logger)
	f.listing = NewListingService(store, rc, logger)
	f.catalog = NewCatalogService(store, rc, coord, logger)
	return f
}

func (f *fixture) addCourse(t *testing.T, subject, catalog string) string {
	t.Helper()
	c := &domain.Course{Subject: subject, Catalog: catalog, Title: subject + " " + catalog}
	require.NoError(t, f.catalog.UpsertCourse(context.Background(), c))
	return c.ID
}

func (f *fixture) addInstructor(t *testing.T, first, last string) string {
	t.Helper()
	i := &domain.Instructor{FirstName: first, LastName: last, Departments: []string{"CS"}}
	require.NoError(t, f.catalog.UpsertInstructor(context.Background(), i))
	return i.ID
}

func courseInput(author, course string, difficulty, experience int) SubmitReviewInput {
	return SubmitReviewInput{
		Type:     domain.ReviewTypeCourse,
		AuthorID: author,
		TargetID: course,
		Content:  "review by " + author,
		Course:   &domain.CoursePayload{Difficulty: difficulty, Experience: experience},
	}
}

func instructorInput(author, instructor string, difficulty, rating int, tags ...domain.Tag) SubmitReviewInput {
	return SubmitReviewInput{
		Type:       domain.ReviewTypeInstructor,
		AuthorID:   author,
		TargetID:   instructor,
		Content:    "review by " + author,
		Instructor: &domain.InstructorPayload{Difficulty: difficulty, Rating: rating, Tags: tags},
	}
}

func (f *fixture) submit(t *testing.T, in SubmitReviewInput) *domain.Review {
	t.Helper()
	res, err := f.reviews.Submit(context.Background(), in)
	require.NoError(t, err)
	return res.Review
}

func (f *fixture) course(t *testing.T, id string) *domain.Course {
	t.Helper()
	c, err := f.store.Courses.GetByID(context.Background(), id)
	require.NoError(t, err)
	return c
}
