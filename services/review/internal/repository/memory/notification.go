package memory

import (
	"cmp"
	"context"
	"slices"
	"sort"

	apperrors "github.com/utafrali/coursereviews/pkg/errors"
	"github.com/utafrali/coursereviews/services/review/internal/domain"
)

// Subscriptions is the in-memory SubscriptionRepository.
type Subscriptions struct {
	s *Store
}

func (sr *Subscriptions) Create(_ context.Context, sub *domain.Subscription) error {
	sr.s.mu.Lock()
	defer sr.s.mu.Unlock()

	if _, ok := sr.s.courses[sub.CourseID]; !ok {
		return apperrors.NotFound("course", sub.CourseID)
	}
	key := subscriptionKey{userID: sub.UserID, courseID: sub.CourseID}
	if _, ok := sr.s.subscriptions[key]; ok {
		return apperrors.AlreadyExists("subscription", "course_id", sub.CourseID)
	}
	stored := *sub
	sr.s.subscriptions[key] = &stored
	return nil
}

func (sr *Subscriptions) Delete(_ context.Context, userID, courseID string) error {
	sr.s.mu.Lock()
	defer sr.s.mu.Unlock()

	key := subscriptionKey{userID: userID, courseID: courseID}
	if _, ok := sr.s.subscriptions[key]; !ok {
		return apperrors.NotFound("subscription", courseID)
	}
	delete(sr.s.subscriptions, key)
	return nil
}

func (sr *Subscriptions) ListByUser(_ context.Context, userID string) ([]domain.Subscription, error) {
	sr.s.mu.RLock()
	out := []domain.Subscription{}
	for k, v := range sr.s.subscriptions {
		if k.userID == userID {
			out = append(out, *v)
		}
	}
	sr.s.mu.RUnlock()

	slices.SortFunc(out, func(a, b domain.Subscription) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(a.CourseID, b.CourseID))
	})
	return out, nil
}

func (sr *Subscriptions) ListSubscribers(_ context.Context, courseID string) ([]string, error) {
	sr.s.mu.RLock()
	out := []string{}
	for k := range sr.s.subscriptions {
		if k.courseID == courseID {
			out = append(out, k.userID)
		}
	}
	sr.s.mu.RUnlock()

	sort.Strings(out)
	return out, nil
}

func (sr *Subscriptions) Exists(_ context.Context, userID, courseID string) (bool, error) {
	sr.s.mu.RLock()
	defer sr.s.mu.RUnlock()
	_, ok := sr.s.subscriptions[subscriptionKey{userID: userID, courseID: courseID}]
	return ok, nil
}

// Notifications is the in-memory NotificationRepository.
type Notifications struct {
	s *Store
}

func cloneNotification(n *domain.Notification) domain.Notification {
	out := *n
	out.Review = *n.Review.Clone()
	return out
}

func (nr *Notifications) InsertMany(_ context.Context, notifications []domain.Notification) (int64, error) {
	nr.s.mu.Lock()
	defer nr.s.mu.Unlock()

	var inserted int64
	for i := range notifications {
		key := notifications[i].Key()
		if _, exists := nr.s.notifications[key]; exists {
			continue
		}
		stored := cloneNotification(&notifications[i])
		nr.s.notifications[key] = &stored
		inserted++
	}
	return inserted, nil
}

// matching returns the notifications about (author, course) in recipient
// order. Callers hold s.mu.
func (nr *Notifications) matching(authorID, courseID string) []domain.NotificationKey {
	keys := []domain.NotificationKey{}
	for k := range nr.s.notifications {
		if k.AuthorID == authorID && k.CourseID == courseID {
			keys = append(keys, k)
		}
	}
	slices.SortFunc(keys, func(a, b domain.NotificationKey) int { return cmp.Compare(a.UserID, b.UserID) })
	return keys
}

func (nr *Notifications) UpdateSnapshot(_ context.Context, review *domain.Review) ([]string, error) {
	nr.s.mu.Lock()
	defer nr.s.mu.Unlock()

	users := []string{}
	for _, k := range nr.matching(review.AuthorID, review.CourseID()) {
		n := nr.s.notifications[k]
		n.Review = *review.Clone()
		n.Seen = false
		users = append(users, k.UserID)
	}
	return users, nil
}

func (nr *Notifications) DeleteForReview(_ context.Context, authorID, courseID string) ([]string, error) {
	nr.s.mu.Lock()
	defer nr.s.mu.Unlock()

	users := []string{}
	for _, k := range nr.matching(authorID, courseID) {
		delete(nr.s.notifications, k)
		users = append(users, k.UserID)
	}
	return users, nil
}

func (nr *Notifications) SetSeen(_ context.Context, key domain.NotificationKey, seen bool) (bool, error) {
	nr.s.mu.Lock()
	defer nr.s.mu.Unlock()

	n, ok := nr.s.notifications[key]
	if !ok {
		return false, nil
	}
	n.Seen = seen
	return true, nil
}

func (nr *Notifications) Delete(_ context.Context, key domain.NotificationKey) error {
	nr.s.mu.Lock()
	defer nr.s.mu.Unlock()

	if _, ok := nr.s.notifications[key]; !ok {
		return apperrors.NotFound("notification", key.CourseID+"/"+key.AuthorID)
	}
	delete(nr.s.notifications, key)
	return nil
}

func (nr *Notifications) ListByUser(_ context.Context, userID string) ([]domain.Notification, error) {
	nr.s.mu.RLock()
	out := []domain.Notification{}
	for k, n := range nr.s.notifications {
		if k.UserID == userID {
			out = append(out, cloneNotification(n))
		}
	}
	nr.s.mu.RUnlock()

	slices.SortFunc(out, func(a, b domain.Notification) int {
		return cmp.Or(b.Review.Timestamp.Compare(a.Review.Timestamp), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}
