package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/coursereviews/pkg/database"
	apperrors "github.com/utafrali/coursereviews/pkg/errors"
	"github.com/utafrali/coursereviews/pkg/pagination"
	"github.com/utafrali/coursereviews/services/review/internal/domain"
	"github.com/utafrali/coursereviews/services/review/internal/repository"
)

// CourseRepository implements course persistence operations using PostgreSQL.
type CourseRepository struct {
	pool database.DBTX
}

// NewCourseRepository creates a new PostgreSQL-backed course repository.
func NewCourseRepository(pool database.DBTX) *CourseRepository {
	return &CourseRepository{pool: pool}
}

const courseColumns = `id, subject, catalog, title, description, terms, instructors,
		       avg_difficulty, avg_experience, difficulty_distribution, experience_distribution,
		       review_count, updated_at`

func toDistribution(counts []int) domain.Distribution {
	var d domain.Distribution
	copy(d[:], counts)
	return d
}

func fromDistribution(d domain.Distribution) []int {
	return append([]int(nil), d[:]...)
}

func scanCourse(row pgx.Row, extra ...any) (*domain.Course, error) {
	var (
		c                      domain.Course
		difficulty, experience []int
	)
	dest := []any{
		&c.ID, &c.Subject, &c.Catalog, &c.Title, &c.Description, &c.Terms, &c.Instructors,
		&c.Stats.AvgDifficulty, &c.Stats.AvgExperience, &difficulty, &experience,
		&c.Stats.ReviewCount, &c.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	c.Stats.DifficultyDistribution = toDistribution(difficulty)
	c.Stats.ExperienceDistribution = toDistribution(experience)
	return &c, nil
}

// Upsert creates a course or replaces its catalog fields. Stats columns are
// left untouched.
func (r *CourseRepository) Upsert(ctx context.Context, course *domain.Course) error {
	query := `
		INSERT INTO courses (id, subject, catalog, title, description, terms, instructors, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			subject = EXCLUDED.subject,
			catalog = EXCLUDED.catalog,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			terms = EXCLUDED.terms,
			instructors = EXCLUDED.instructors,
			updated_at = EXCLUDED.updated_at`

	course.UpdatedAt = clock()
	_, err := r.pool.Exec(ctx, query,
		course.ID,
		course.Subject,
		course.Catalog,
		course.Title,
		course.Description,
		course.Terms,
		course.Instructors,
		course.UpdatedAt,
	)
	if err != nil {
		return storeErr("upsert course", err)
	}
	return nil
}

// GetByID retrieves a course with its statistics.
func (r *CourseRepository) GetByID(ctx context.Context, id string) (*domain.Course, error) {
	c, err := scanCourse(r.pool.QueryRow(ctx, `SELECT `+courseColumns+` FROM courses WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("course", id)
		}
		return nil, storeErr("get course by id", err)
	}
	return c, nil
}

// Exists reports whether a course exists.
func (r *CourseRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM courses WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, storeErr("check course exists", err)
	}
	return exists, nil
}

// List returns one page of courses matching filter with the total count.
func (r *CourseRepository) List(ctx context.Context, filter domain.CourseFilter, w pagination.Window) ([]domain.Course, int, error) {
	w = w.Normalize()
	b := courseWhere(filter)
	filterArgs := len(b.args)
	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM courses
		%s
		ORDER BY %s
		LIMIT %s OFFSET %s`,
		courseColumns, b.clause(), courseOrder(filter.Sort), b.arg(w.Limit), b.arg(w.Start()))

	ctx, end := database.TraceQuery(ctx, "ListCourses", query)
	rows, err := r.pool.Query(ctx, query, b.args...)
	if err != nil {
		end(err)
		return nil, 0, storeErr("list courses", err)
	}
	defer rows.Close()

	var (
		courses    = []domain.Course{}
		totalCount int
	)
	for rows.Next() {
		c, err := scanCourse(rows, &totalCount)
		if err != nil {
			end(err)
			return nil, 0, storeErr("scan course row", err)
		}
		courses = append(courses, *c)
	}
	if err := rows.Err(); err != nil {
		end(err)
		return nil, 0, storeErr("iterate course rows", err)
	}
	end(nil)

	if len(courses) == 0 && w.Start() > 0 {
		total, err := pageTotal(ctx, r.pool, "courses", b.clause(), b.args[:filterArgs])
		if err != nil {
			return nil, 0, err
		}
		totalCount = total
	}
	return courses, totalCount, nil
}

// ListIDs returns every course ID.
func (r *CourseRepository) ListIDs(ctx context.Context) ([]string, error) {
	return listIDs(ctx, r.pool, "courses")
}

// RecomputeStats locks the course row, derives the statistics from the
// course's reviews and writes them back in one transaction.
func (r *CourseRepository) RecomputeStats(ctx context.Context, id string, compute repository.CourseStatsFunc) (domain.CourseStats, error) {
	var stats domain.CourseStats
	err := database.WithTx(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		if err := lockRow(ctx, tx, "courses", id); err != nil {
			return err
		}

		reviews, err := reviewsForStats(ctx, tx, domain.ReviewTypeCourse, id)
		if err != nil {
			return err
		}
		stats = compute(reviews)

		_, err = tx.Exec(ctx, `
			UPDATE courses SET
				avg_difficulty = $2,
				avg_experience = $3,
				difficulty_distribution = $4,
				experience_distribution = $5,
				review_count = $6,
				updated_at = NOW()
			WHERE id = $1`,
			id,
			stats.AvgDifficulty,
			stats.AvgExperience,
			fromDistribution(stats.DifficultyDistribution),
			fromDistribution(stats.ExperienceDistribution),
			stats.ReviewCount,
		)
		if err != nil {
			return storeErr("update course stats", err)
		}
		return nil
	})
	if err != nil {
		return domain.CourseStats{}, err
	}
	return stats, nil
}

// Count returns the number of courses.
func (r *CourseRepository) Count(ctx context.Context) (int64, error) {
	return count(ctx, r.pool, "courses")
}

// lockRow takes a row lock on table.id so concurrent recomputes of the same
// target serialize. A missing row is an invalid state: stats belong to an
// existing catalog entity.
func lockRow(ctx context.Context, tx pgx.Tx, table, id string) error {
	var locked string
	err := tx.QueryRow(ctx, `SELECT id FROM `+table+` WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.InvalidState(fmt.Sprintf("cannot update stats of missing %s %q", table[:len(table)-1], id))
		}
		return fmt.Errorf("lock %s row: %w", table, err)
	}
	return nil
}

func listIDs(ctx context.Context, pool database.DBTX, table string) ([]string, error) {
	rows, err := pool.Query(ctx, `SELECT id FROM `+table+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list %s ids: %w", table, err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan %s id: %w", table, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s ids: %w", table, err)
	}
	return ids, nil
}
