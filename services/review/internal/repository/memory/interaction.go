package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	apperrors "github.com/utafrali/coursereviews/pkg/errors"
	"github.com/utafrali/coursereviews/services/review/internal/domain"
)

// Interactions is the in-memory InteractionRepository. Every mutation and its
// likes adjustment happen under one write lock.
type Interactions struct {
	s *Store
}

func interactionID(key domain.InteractionKey) string {
	return fmt.Sprintf("%s/%s/%s/%s", key.Type, key.TargetID, key.UserID, key.Referrer)
}

// reviewForLikes returns the stored review an interaction targets. Callers
// hold s.mu for writing.
func (s *Store) reviewForLikes(key domain.ReviewKey) (*domain.Review, error) {
	id, ok := s.reviewIDs[key]
	if !ok {
		return nil, apperrors.NotFound("review", key.TargetID+"/"+key.AuthorID)
	}
	return s.reviews[id], nil
}

func (i *Interactions) Get(_ context.Context, key domain.InteractionKey) (*domain.Interaction, error) {
	i.s.mu.RLock()
	defer i.s.mu.RUnlock()

	existing, ok := i.s.interactions[key]
	if !ok {
		return nil, apperrors.NotFound("interaction", interactionID(key))
	}
	out := *existing
	return &out, nil
}

func (i *Interactions) Insert(_ context.Context, interaction *domain.Interaction) error {
	i.s.mu.Lock()
	defer i.s.mu.Unlock()

	key := interaction.Key()
	review, err := i.s.reviewForLikes(key.Review())
	if err != nil {
		return err
	}
	if _, exists := i.s.interactions[key]; exists {
		return apperrors.Conflict(fmt.Sprintf("interaction %s already exists", interactionID(key)))
	}

	stored := *interaction
	i.s.interactions[key] = &stored
	review.Likes += interaction.Kind.Delta()
	return nil
}

func (i *Interactions) SwapKind(_ context.Context, key domain.InteractionKey, from, to domain.InteractionKind, delta int) error {
	i.s.mu.Lock()
	defer i.s.mu.Unlock()

	existing, ok := i.s.interactions[key]
	if !ok || existing.Kind != from {
		return apperrors.Conflict(fmt.Sprintf("interaction %s changed concurrently", interactionID(key)))
	}
	review, err := i.s.reviewForLikes(key.Review())
	if err != nil {
		return err
	}
	existing.Kind = to
	review.Likes += delta
	return nil
}

func (i *Interactions) Remove(_ context.Context, key domain.InteractionKey) (domain.InteractionKind, error) {
	i.s.mu.Lock()
	defer i.s.mu.Unlock()

	existing, ok := i.s.interactions[key]
	if !ok {
		return "", apperrors.NotFound("interaction", interactionID(key))
	}
	delete(i.s.interactions, key)
	if review, err := i.s.reviewForLikes(key.Review()); err == nil {
		review.Likes += domain.UndoDelta(existing.Kind)
	}
	return existing.Kind, nil
}

func (i *Interactions) DeleteForReview(_ context.Context, key domain.ReviewKey) (int64, error) {
	i.s.mu.Lock()
	defer i.s.mu.Unlock()

	var n int64
	for k := range i.s.interactions {
		if k.Review() == key {
			delete(i.s.interactions, k)
			n++
		}
	}
	return n, nil
}

func (i *Interactions) ListForTarget(_ context.Context, reviewType domain.ReviewType, targetID, referrer string) ([]domain.Interaction, error) {
	i.s.mu.RLock()
	out := []domain.Interaction{}
	for k, v := range i.s.interactions {
		if k.Type == reviewType && k.TargetID == targetID && k.Referrer == referrer {
			out = append(out, *v)
		}
	}
	i.s.mu.RUnlock()

	slices.SortFunc(out, func(a, b domain.Interaction) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.UserID, b.UserID))
	})
	return out, nil
}
