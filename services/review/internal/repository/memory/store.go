// Package memory is an in-process repository backend. It backs
// STORE_BACKEND=memory and the service-level tests.
package memory

import (
	"sync"
	"time"

	"github.com/utafrali/coursereviews/services/review/internal/domain"
	"github.com/utafrali/coursereviews/services/review/internal/repository"
)

type subscriptionKey struct {
	userID, courseID string
}

// Store holds every collection behind one RWMutex. Stats recomputation is
// additionally serialized per target.
type Store struct {
	mu            sync.RWMutex
	reviews       map[string]*domain.Review
	reviewIDs     map[domain.ReviewKey]string
	courses       map[string]*domain.Course
	instructors   map[string]*domain.Instructor
	interactions  map[domain.InteractionKey]*domain.Interaction
	subscriptions map[subscriptionKey]*domain.Subscription
	notifications map[domain.NotificationKey]*domain.Notification

	statsLocks keyedMutex
	now        func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		reviews:       make(map[string]*domain.Review),
		reviewIDs:     make(map[domain.ReviewKey]string),
		courses:       make(map[string]*domain.Course),
		instructors:   make(map[string]*domain.Instructor),
		interactions:  make(map[domain.InteractionKey]*domain.Interaction),
		subscriptions: make(map[subscriptionKey]*domain.Subscription),
		notifications: make(map[domain.NotificationKey]*domain.Notification),
		statsLocks:    keyedMutex{locks: make(map[string]*refMutex)},
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Repositories exposes the store through the repository interfaces.
func (s *Store) Repositories() repository.Store {
	return repository.Store{
		Reviews:       &Reviews{s: s},
		Courses:       &Courses{s: s},
		Instructors:   &Instructors{s: s},
		Interactions:  &Interactions{s: s},
		Subscriptions: &Subscriptions{s: s},
		Notifications: &Notifications{s: s},
	}
}

type refMutex struct {
	sync.Mutex
	refs int
}

// keyedMutex hands out one mutex per key and forgets keys nobody holds.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

var (
	_ repository.ReviewRepository       = (*Reviews)(nil)
	_ repository.CourseRepository       = (*Courses)(nil)
	_ repository.InstructorRepository   = (*Instructors)(nil)
	_ repository.InteractionRepository  = (*Interactions)(nil)
	_ repository.SubscriptionRepository = (*Subscriptions)(nil)
	_ repository.NotificationRepository = (*Notifications)(nil)
)
