package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/coursereviews/pkg/database"
	apperrors "github.com/utafrali/coursereviews/pkg/errors"
	"github.com/utafrali/coursereviews/pkg/pagination"
	"github.com/utafrali/coursereviews/services/review/internal/domain"
	"github.com/utafrali/coursereviews/services/review/internal/repository"
)

// InstructorRepository implements instructor persistence operations using PostgreSQL.
type InstructorRepository struct {
	pool database.DBTX
}

// NewInstructorRepository creates a new PostgreSQL-backed instructor repository.
func NewInstructorRepository(pool database.DBTX) *InstructorRepository {
	return &InstructorRepository{pool: pool}
}

const instructorColumns = `id, first_name, last_name, departments, courses, tags,
		       avg_difficulty, avg_rating, difficulty_distribution, rating_distribution,
		       review_count, updated_at`

func scanInstructor(row pgx.Row, extra ...any) (*domain.Instructor, error) {
	var (
		i                  domain.Instructor
		coursesJSON        []byte
		tags               []string
		difficulty, rating []int
	)
	dest := []any{
		&i.ID, &i.FirstName, &i.LastName, &i.Departments, &coursesJSON, &tags,
		&i.Stats.AvgDifficulty, &i.Stats.AvgRating, &difficulty, &rating,
		&i.Stats.ReviewCount, &i.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(coursesJSON, &i.Courses); err != nil {
		return nil, storeErr("decode instructor courses", err)
	}
	i.Stats.Tags = domain.TagsFromStrings(tags)
	i.Stats.DifficultyDistribution = toDistribution(difficulty)
	i.Stats.RatingDistribution = toDistribution(rating)
	return &i, nil
}

// Upsert creates an instructor or replaces its catalog fields. Stats columns
// are left untouched.
func (r *InstructorRepository) Upsert(ctx context.Context, instructor *domain.Instructor) error {
	courses := instructor.Courses
	if courses == nil {
		courses = []domain.InstructorCourse{}
	}
	coursesJSON, err := json.Marshal(courses)
	if err != nil {
		return storeErr("encode instructor courses", err)
	}

	query := `
		INSERT INTO instructors (id, first_name, last_name, departments, courses, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			departments = EXCLUDED.departments,
			courses = EXCLUDED.courses,
			updated_at = EXCLUDED.updated_at`

	instructor.UpdatedAt = clock()
	_, err = r.pool.Exec(ctx, query,
		instructor.ID,
		instructor.FirstName,
		instructor.LastName,
		instructor.Departments,
		coursesJSON,
		instructor.UpdatedAt,
	)
	if err != nil {
		return storeErr("upsert instructor", err)
	}
	return nil
}

// GetByID retrieves an instructor with its statistics.
func (r *InstructorRepository) GetByID(ctx context.Context, id string) (*domain.Instructor, error) {
	i, err := scanInstructor(r.pool.QueryRow(ctx, `SELECT `+instructorColumns+` FROM instructors WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("instructor", id)
		}
		return nil, storeErr("get instructor by id", err)
	}
	return i, nil
}

// Exists reports whether an instructor exists.
func (r *InstructorRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM instructors WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, storeErr("check instructor exists", err)
	}
	return exists, nil
}

// List returns one page of instructors matching filter with the total count.
func (r *InstructorRepository) List(ctx context.Context, filter domain.InstructorFilter, w pagination.Window) ([]domain.Instructor, int, error) {
	w = w.Normalize()
	b := instructorWhere(filter)
	filterArgs := len(b.args)
	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM instructors
		%s
		ORDER BY %s
		LIMIT %s OFFSET %s`,
		instructorColumns, b.clause(), instructorOrder(filter.Sort), b.arg(w.Limit), b.arg(w.Start()))

	ctx, end := database.TraceQuery(ctx, "ListInstructors", query)
	rows, err := r.pool.Query(ctx, query, b.args...)
	if err != nil {
		end(err)
		return nil, 0, storeErr("list instructors", err)
	}
	defer rows.Close()

	var (
		instructors = []domain.Instructor{}
		totalCount  int
	)
	for rows.Next() {
		i, err := scanInstructor(rows, &totalCount)
		if err != nil {
			end(err)
			return nil, 0, storeErr("scan instructor row", err)
		}
		instructors = append(instructors, *i)
	}
	if err := rows.Err(); err != nil {
		end(err)
		return nil, 0, storeErr("iterate instructor rows", err)
	}
	end(nil)

	if len(instructors) == 0 && w.Start() > 0 {
		total, err := pageTotal(ctx, r.pool, "instructors", b.clause(), b.args[:filterArgs])
		if err != nil {
			return nil, 0, err
		}
		totalCount = total
	}
	return instructors, totalCount, nil
}

// ListIDs returns every instructor ID.
func (r *InstructorRepository) ListIDs(ctx context.Context) ([]string, error) {
	return listIDs(ctx, r.pool, "instructors")
}

// RecomputeStats locks the instructor row, derives the statistics from the
// instructor's reviews and writes them back in one transaction.
func (r *InstructorRepository) RecomputeStats(ctx context.Context, id string, compute repository.InstructorStatsFunc) (domain.InstructorStats, error) {
	var stats domain.InstructorStats
	err := database.WithTx(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		if err := lockRow(ctx, tx, "instructors", id); err != nil {
			return err
		}

		reviews, err := reviewsForStats(ctx, tx, domain.ReviewTypeInstructor, id)
		if err != nil {
			return err
		}
		stats = compute(reviews)

		_, err = tx.Exec(ctx, `
			UPDATE instructors SET
				avg_difficulty = $2,
				avg_rating = $3,
				tags = $4,
				difficulty_distribution = $5,
				rating_distribution = $6,
				review_count = $7,
				updated_at = NOW()
			WHERE id = $1`,
			id,
			stats.AvgDifficulty,
			stats.AvgRating,
			domain.TagStrings(stats.Tags),
			fromDistribution(stats.DifficultyDistribution),
			fromDistribution(stats.RatingDistribution),
			stats.ReviewCount,
		)
		if err != nil {
			return storeErr("update instructor stats", err)
		}
		return nil
	})
	if err != nil {
		return domain.InstructorStats{}, err
	}
	return stats, nil
}

// Count returns the number of instructors.
func (r *InstructorRepository) Count(ctx context.Context) (int64, error) {
	return count(ctx, r.pool, "instructors")
}
