package cache

import (
	"context"
	"log/slog"

	"github.com/utafrali/coursereviews/services/review/internal/domain"
)

// Namespace names a family of derived reads that are invalidated together.
type Namespace string

const (
	NamespaceDetail          Namespace = "detail"
	NamespaceEntityReviews   Namespace = "entity_reviews"
	NamespaceFilteredListing Namespace = "filtered_listing"
	NamespaceHomeStats       Namespace = "home_stats"
	NamespaceNotifications   Namespace = "notifications"
)

// Wildcard is the scope of namespaces that are not partitioned by entity.
const Wildcard = "*"

// Scope is one invalidation unit: a namespace, optionally narrowed to one
// target or user.
type Scope struct {
	Namespace Namespace
	Key       string
}

func (s Scope) String() string {
	return string(s.Namespace) + "[" + s.Key + "]"
}

// Global returns the single scope of an unpartitioned namespace.
func Global(ns Namespace) Scope {
	return Scope{Namespace: ns, Key: Wildcard}
}

// TargetKey identifies a course or instructor within per-target namespaces.
func TargetKey(t domain.ReviewType, id string) string {
	return string(t) + "/" + id
}

// Detail, EntityReviews and Notifications build the partitioned scopes.
func Detail(t domain.ReviewType, id string) Scope {
	return Scope{Namespace: NamespaceDetail, Key: TargetKey(t, id)}
}

func EntityReviews(t domain.ReviewType, id string) Scope {
	return Scope{Namespace: NamespaceEntityReviews, Key: TargetKey(t, id)}
}

func Notifications(userID string) Scope {
	return Scope{Namespace: NamespaceNotifications, Key: userID}
}

// MutationKind classifies a write for invalidation.
type MutationKind int

const (
	MutationReview MutationKind = iota
	MutationInteraction
	MutationSubscription
	MutationNotification
	MutationCatalog
)

func (k MutationKind) String() string {
	switch k {
	case MutationReview:
		return "review"
	case MutationInteraction:
		return "interaction"
	case MutationSubscription:
		return "subscription"
	case MutationNotification:
		return "notification"
	case MutationCatalog:
		return "catalog"
	}
	return "unknown"
}

// Mutation describes one committed write. Target-scoped kinds set Type and
// Target; user-scoped kinds set User.
type Mutation struct {
	Kind   MutationKind
	Type   domain.ReviewType
	Target string
	User   string
}

func ReviewChanged(t domain.ReviewType, target string) Mutation {
	return Mutation{Kind: MutationReview, Type: t, Target: target}
}

func InteractionChanged(t domain.ReviewType, target string) Mutation {
	return Mutation{Kind: MutationInteraction, Type: t, Target: target}
}

func SubscriptionChanged(user string) Mutation {
	return Mutation{Kind: MutationSubscription, User: user}
}

func NotificationChanged(user string) Mutation {
	return Mutation{Kind: MutationNotification, User: user}
}

func CatalogChanged(t domain.ReviewType, target string) Mutation {
	return Mutation{Kind: MutationCatalog, Type: t, Target: target}
}

type partition int

const (
	byNone partition = iota
	byTarget
	byUser
)

type rule struct {
	namespace Namespace
	by        partition
}

// dispatch maps every mutation kind to the namespaces it makes stale.
var dispatch = map[MutationKind][]rule{
	MutationReview: {
		{NamespaceDetail, byTarget},
		{NamespaceEntityReviews, byTarget},
		{NamespaceFilteredListing, byNone},
		{NamespaceHomeStats, byNone},
	},
	MutationInteraction: {
		{NamespaceEntityReviews, byTarget},
		{NamespaceFilteredListing, byNone},
	},
	MutationSubscription: {
		{NamespaceNotifications, byUser},
	},
	MutationNotification: {
		{NamespaceNotifications, byUser},
	},
	MutationCatalog: {
		{NamespaceDetail, byTarget},
		{NamespaceFilteredListing, byNone},
		{NamespaceHomeStats, byNone},
	},
}

// Scopes resolves mutations to the distinct scopes they invalidate, in
// dispatch order.
func Scopes(mutations ...Mutation) []Scope {
	seen := make(map[Scope]struct{})
	var out []Scope
	for _, m := range mutations {
		for _, r := range dispatch[m.Kind] {
			s := Global(r.namespace)
			switch r.by {
			case byTarget:
				s.Key = TargetKey(m.Type, m.Target)
			case byUser:
				s.Key = m.User
			}
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// Invalidator makes every entry of the given scopes unreachable.
type Invalidator interface {
	Bump(ctx context.Context, scopes ...Scope) error
}

// Coordinator turns mutations into invalidation commands. It owns no storage.
type Coordinator struct {
	inv    Invalidator
	logger *slog.Logger
}

// NewCoordinator creates a coordinator issuing commands to inv.
func NewCoordinator(inv Invalidator, logger *slog.Logger) *Coordinator {
	return &Coordinator{inv: inv, logger: logger}
}

// Invalidate bumps every scope made stale by mutations.
func (c *Coordinator) Invalidate(ctx context.Context, mutations ...Mutation) error {
	scopes := Scopes(mutations...)
	if len(scopes) == 0 {
		return nil
	}
	for _, s := range scopes {
		invalidationsTotal.WithLabelValues(string(s.Namespace)).Inc()
	}
	if err := c.inv.Bump(ctx, scopes...); err != nil {
		c.logger.WarnContext(ctx, "cache invalidation failed",
			slog.Int("scopes", len(scopes)),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}
