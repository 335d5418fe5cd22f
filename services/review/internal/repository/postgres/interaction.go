package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/coursereviews/pkg/database"
	apperrors "github.com/utafrali/coursereviews/pkg/errors"
	"github.com/utafrali/coursereviews/services/review/internal/domain"
)

// InteractionRepository implements reaction persistence using PostgreSQL.
// Each mutation and its likes adjustment share one transaction.
type InteractionRepository struct {
	pool database.DBTX
}

// NewInteractionRepository creates a new PostgreSQL-backed interaction repository.
func NewInteractionRepository(pool database.DBTX) *InteractionRepository {
	return &InteractionRepository{pool: pool}
}

const interactionSelect = `
		SELECT id, kind, type, target_id, user_id, referrer, created_at
		FROM interactions`

func scanInteraction(row pgx.Row) (*domain.Interaction, error) {
	var (
		i                domain.Interaction
		kind, reviewType string
	)
	if err := row.Scan(&i.ID, &kind, &reviewType, &i.TargetID, &i.UserID, &i.Referrer, &i.CreatedAt); err != nil {
		return nil, err
	}
	i.Kind = domain.InteractionKind(kind)
	i.Type = domain.ReviewType(reviewType)
	return &i, nil
}

func interactionID(key domain.InteractionKey) string {
	return fmt.Sprintf("%s/%s/%s/%s", key.Type, key.TargetID, key.UserID, key.Referrer)
}

// adjustLikes atomically adds delta to the likes of the reviewed review.
func adjustLikes(ctx context.Context, tx pgx.Tx, review domain.ReviewKey, delta int) error {
	tag, err := tx.Exec(ctx, `
		UPDATE reviews SET likes = likes + $1
		WHERE type = $2 AND target_id = $3 AND author_id = $4`,
		delta, string(review.Type), review.TargetID, review.AuthorID)
	if err != nil {
		return storeErr("adjust review likes", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("review", review.TargetID+"/"+review.AuthorID)
	}
	return nil
}

// inTx runs fn in a transaction. A transaction aborted by a concurrent writer
// on the same review is reported as a conflict so the caller re-reads.
func (r *InteractionRepository) inTx(ctx context.Context, key domain.InteractionKey, fn func(pgx.Tx) error) error {
	err := database.WithTx(ctx, r.pool, pgx.TxOptions{}, fn)
	if database.IsTxConflict(err) {
		return apperrors.Conflict(fmt.Sprintf("interaction %s changed concurrently", interactionID(key)))
	}
	return err
}

// Get retrieves the interaction with the given identity.
func (r *InteractionRepository) Get(ctx context.Context, key domain.InteractionKey) (*domain.Interaction, error) {
	i, err := scanInteraction(r.pool.QueryRow(ctx, interactionSelect+`
		WHERE target_id = $1 AND user_id = $2 AND referrer = $3 AND type = $4`,
		key.TargetID, key.UserID, key.Referrer, string(key.Type)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("interaction", interactionID(key))
		}
		return nil, storeErr("get interaction", err)
	}
	return i, nil
}

// Insert stores a new interaction and applies its delta to the review's likes.
func (r *InteractionRepository) Insert(ctx context.Context, interaction *domain.Interaction) error {
	key := interaction.Key()
	return r.inTx(ctx, key, func(tx pgx.Tx) error {
		if err := adjustLikes(ctx, tx, key.Review(), interaction.Kind.Delta()); err != nil {
			return err
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO interactions (id, kind, type, target_id, user_id, referrer, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			interaction.ID,
			string(interaction.Kind),
			string(interaction.Type),
			interaction.TargetID,
			interaction.UserID,
			interaction.Referrer,
			interaction.CreatedAt,
		)
		if err != nil {
			if database.IsUniqueViolation(err) {
				return apperrors.Conflict(fmt.Sprintf("interaction %s already exists", interactionID(key)))
			}
			return storeErr("insert interaction", err)
		}
		return nil
	})
}

// SwapKind moves an interaction from one kind to the other if it still holds
// `from`, adjusting the review's likes by delta.
func (r *InteractionRepository) SwapKind(ctx context.Context, key domain.InteractionKey, from, to domain.InteractionKind, delta int) error {
	return r.inTx(ctx, key, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE interactions SET kind = $1
			WHERE target_id = $2 AND user_id = $3 AND referrer = $4 AND type = $5 AND kind = $6`,
			string(to), key.TargetID, key.UserID, key.Referrer, string(key.Type), string(from))
		if err != nil {
			return storeErr("swap interaction kind", err)
		}
		if tag.RowsAffected() == 0 {
			return apperrors.Conflict(fmt.Sprintf("interaction %s changed concurrently", interactionID(key)))
		}
		return adjustLikes(ctx, tx, key.Review(), delta)
	})
}

// Remove deletes an interaction and reverts its contribution to likes.
func (r *InteractionRepository) Remove(ctx context.Context, key domain.InteractionKey) (domain.InteractionKind, error) {
	var removed domain.InteractionKind
	err := r.inTx(ctx, key, func(tx pgx.Tx) error {
		var kind string
		err := tx.QueryRow(ctx, `
			DELETE FROM interactions
			WHERE target_id = $1 AND user_id = $2 AND referrer = $3 AND type = $4
			RETURNING kind`,
			key.TargetID, key.UserID, key.Referrer, string(key.Type),
		).Scan(&kind)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperrors.NotFound("interaction", interactionID(key))
			}
			return storeErr("delete interaction", err)
		}
		removed = domain.InteractionKind(kind)
		// An interaction left behind by a deleted review is still removable.
		err = adjustLikes(ctx, tx, key.Review(), domain.UndoDelta(removed))
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return "", err
	}
	return removed, nil
}

// DeleteForReview removes every interaction on a review. Likes are not
// adjusted; the review is being deleted.
func (r *InteractionRepository) DeleteForReview(ctx context.Context, key domain.ReviewKey) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM interactions WHERE type = $1 AND target_id = $2 AND user_id = $3`,
		string(key.Type), key.TargetID, key.AuthorID)
	if err != nil {
		return 0, storeErr("delete interactions for review", err)
	}
	return tag.RowsAffected(), nil
}

// ListForTarget returns referrer's interactions on the reviews of one target.
func (r *InteractionRepository) ListForTarget(ctx context.Context, reviewType domain.ReviewType, targetID, referrer string) ([]domain.Interaction, error) {
	rows, err := r.pool.Query(ctx, interactionSelect+`
		WHERE type = $1 AND target_id = $2 AND referrer = $3
		ORDER BY created_at ASC`,
		string(reviewType), targetID, referrer)
	if err != nil {
		return nil, storeErr("list interactions", err)
	}
	defer rows.Close()

	interactions := []domain.Interaction{}
	for rows.Next() {
		i, err := scanInteraction(rows)
		if err != nil {
			return nil, storeErr("scan interaction row", err)
		}
		interactions = append(interactions, *i)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate interaction rows", err)
	}
	return interactions, nil
}
