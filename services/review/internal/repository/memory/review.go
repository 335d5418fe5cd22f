package memory

import (
	"context"
	"slices"

	apperrors "github.com/utafrali/coursereviews/pkg/errors"
	"github.com/utafrali/coursereviews/pkg/pagination"
	"github.com/utafrali/coursereviews/services/review/internal/domain"
)

// Reviews is the in-memory ReviewRepository.
type Reviews struct {
	s *Store
}

func (r *Reviews) GetByID(_ context.Context, id string) (*domain.Review, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	review, ok := r.s.reviews[id]
	if !ok {
		return nil, apperrors.NotFound("review", id)
	}
	return review.Clone(), nil
}

func (r *Reviews) GetByKey(_ context.Context, key domain.ReviewKey) (*domain.Review, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, ok := r.s.reviewIDs[key]
	if !ok {
		return nil, apperrors.NotFound("review", key.TargetID+"/"+key.AuthorID)
	}
	return r.s.reviews[id].Clone(), nil
}

// Upsert stores review, keeping the ID and likes of an existing review with
// the same identity.
func (r *Reviews) Upsert(_ context.Context, review *domain.Review) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if id, ok := r.s.reviewIDs[review.Key()]; ok {
		stored := r.s.reviews[id]
		stored.Overwrite(review.Clone())
		review.ID = stored.ID
		review.Likes = stored.Likes
		return false, nil
	}

	stored := review.Clone()
	stored.Likes = 0
	review.Likes = 0
	r.s.reviews[stored.ID] = stored
	r.s.reviewIDs[stored.Key()] = stored.ID
	return true, nil
}

func (r *Reviews) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	review, ok := r.s.reviews[id]
	if !ok {
		return apperrors.NotFound("review", id)
	}
	delete(r.s.reviews, id)
	delete(r.s.reviewIDs, review.Key())
	return nil
}

// reviewsFor returns copies of the reviews matching keep.
func (s *Store) reviewsFor(keep func(*domain.Review) bool) []domain.Review {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.Review{}
	for _, review := range s.reviews {
		if keep(review) {
			out = append(out, *review.Clone())
		}
	}
	return out
}

func (r *Reviews) ListByTarget(_ context.Context, q domain.ReviewQuery, w pagination.Window) ([]domain.Review, int, error) {
	w = w.Normalize()
	matched := r.s.reviewsFor(func(review *domain.Review) bool {
		return review.Type == q.Type &&
			review.TargetID == q.TargetID &&
			(q.InstructorID == "" || review.InstructorID() == q.InstructorID)
	})
	less := reviewLess(q.Sort)
	slices.SortFunc(matched, func(a, b domain.Review) int { return less(&a, &b) })
	return page(matched, w.Start(), w.Limit), len(matched), nil
}

func (r *Reviews) ListByAuthor(_ context.Context, authorID string) ([]domain.Review, error) {
	matched := r.s.reviewsFor(func(review *domain.Review) bool { return review.AuthorID == authorID })
	less := reviewLess(domain.ReviewSort{})
	slices.SortFunc(matched, func(a, b domain.Review) int { return less(&a, &b) })
	return matched, nil
}

func (r *Reviews) Exists(_ context.Context, key domain.ReviewKey) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	_, ok := r.s.reviewIDs[key]
	return ok, nil
}

func (r *Reviews) Count(_ context.Context) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return int64(len(r.s.reviews)), nil
}
