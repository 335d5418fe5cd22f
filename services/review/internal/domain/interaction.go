package domain

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/utafrali/coursereviews/pkg/errors"
)

// InteractionKind is a reaction to a review.
type InteractionKind string

const (
	KindLike    InteractionKind = "like"
	KindDislike InteractionKind = "dislike"
)

// ParseInteractionKind accepts "like" and "dislike" case-insensitively.
func ParseInteractionKind(s string) (InteractionKind, error) {
	switch k := InteractionKind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindLike, KindDislike:
		return k, nil
	}
	return "", apperrors.InvalidInput(fmt.Sprintf("unknown interaction kind %q", s))
}

// Delta is the contribution of one reaction of this kind to a review's likes.
func (k InteractionKind) Delta() int {
	if k == KindLike {
		return 1
	}
	return -1
}

// Interaction records one referrer's reaction to one review. The review is
// addressed by (Type, TargetID, UserID) where UserID is its author.
type Interaction struct {
	ID        string          `json:"id"`
	Kind      InteractionKind `json:"kind"`
	Type      ReviewType      `json:"type"`
	TargetID  string          `json:"target_id"`
	UserID    string          `json:"user_id"`
	Referrer  string          `json:"referrer"`
	CreatedAt time.Time       `json:"created_at"`
}

// InteractionKey is the natural identity of an interaction.
type InteractionKey struct {
	Type     ReviewType `json:"type"`
	TargetID string     `json:"target_id"`
	UserID   string     `json:"user_id"`
	Referrer string     `json:"referrer"`
}

// Key returns the natural identity of i.
func (i *Interaction) Key() InteractionKey {
	return InteractionKey{Type: i.Type, TargetID: i.TargetID, UserID: i.UserID, Referrer: i.Referrer}
}

// Review returns the key of the review the interaction reacts to.
func (k InteractionKey) Review() ReviewKey {
	return ReviewKey{Type: k.Type, TargetID: k.TargetID, AuthorID: k.UserID}
}

// Validate checks that every identity field is set and that the review type
// supports reactions.
func (k InteractionKey) Validate() error {
	if k.Type != ReviewTypeCourse && k.Type != ReviewTypeInstructor {
		return apperrors.InvalidInput(fmt.Sprintf("interactions are not supported on %q reviews", k.Type))
	}
	if k.TargetID == "" || k.UserID == "" || k.Referrer == "" {
		return apperrors.InvalidInput("target_id, user_id and referrer are required")
	}
	return nil
}

// TransitionOp is the store operation a reaction requires.
type TransitionOp int

const (
	OpNoop TransitionOp = iota
	OpCreate
	OpSwap
)

func (op TransitionOp) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpSwap:
		return "swap"
	}
	return "noop"
}

// Transition returns the change to the review's likes and the store
// operation for reacting with kind when existing is the current interaction
// (nil for none):
//
//	none    -> like     +1 create
//	none    -> dislike  -1 create
//	like    -> like      0 noop
//	dislike -> dislike   0 noop
//	like    -> dislike  -2 swap
//	dislike -> like     +2 swap
func Transition(existing *Interaction, kind InteractionKind) (int, TransitionOp) {
	switch {
	case existing == nil:
		return kind.Delta(), OpCreate
	case existing.Kind == kind:
		return 0, OpNoop
	default:
		return kind.Delta() - existing.Kind.Delta(), OpSwap
	}
}

// UndoDelta is the change to likes when an interaction of kind is removed.
func UndoDelta(kind InteractionKind) int {
	return -kind.Delta()
}
