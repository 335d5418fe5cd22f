package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/utafrali/coursereviews/pkg/database"
	"github.com/utafrali/coursereviews/services/review/internal/domain"
)

// whereBuilder collects AND-ed conditions and their positional arguments.
type whereBuilder struct {
	conditions []string
	args       []any
}

// arg appends v and returns its placeholder.
func (b *whereBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *whereBuilder) add(cond string) {
	b.conditions = append(b.conditions, cond)
}

func (b *whereBuilder) clause() string {
	if len(b.conditions) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(b.conditions, " AND ")
}

// pageTotal returns the number of table rows matching where. Paged queries
// read the total from count(*) OVER(), which yields no row once the offset
// passes the last match; they fall back to this.
func pageTotal(ctx context.Context, pool database.DBTX, table, where string, args []any) (int, error) {
	var n int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM `+table+` `+where, args...).Scan(&n); err != nil {
		return 0, storeErr("count "+table, err)
	}
	return n, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func contains(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

func direction(reverse bool) string {
	if reverse {
		return "DESC"
	}
	return "ASC"
}

// courseWhere compiles a course filter into SQL conditions.
func courseWhere(f domain.CourseFilter) *whereBuilder {
	b := &whereBuilder{}
	if len(f.Levels) > 0 {
		b.add("catalog ~ " + b.arg(domain.LevelPattern(f.Levels)))
	}
	if len(f.Subjects) > 0 {
		b.add("subject ~ " + b.arg(domain.SubjectPattern(f.Subjects)))
	}
	if len(f.Terms) > 0 {
		b.add("terms @> " + b.arg(f.Terms))
	}
	if f.Query != "" {
		id := b.arg(contains(domain.IDQuery(f.Query)))
		text := b.arg(contains(f.Query))
		b.add(fmt.Sprintf(
			"(id ILIKE %[1]s OR catalog ILIKE %[2]s OR title ILIKE %[2]s OR subject ILIKE %[2]s OR description ILIKE %[2]s)",
			id, text))
	}
	return b
}

func courseOrder(s domain.CourseSort) string {
	var col string
	switch s.By {
	case domain.CourseSortDifficulty:
		col = "avg_difficulty"
	case domain.CourseSortExperience:
		col = "avg_experience"
	case domain.CourseSortReviewCount:
		col = "review_count"
	default:
		return "id ASC"
	}
	return fmt.Sprintf("%s %s, id ASC", col, direction(s.Reverse))
}

const taughtCourse = "EXISTS (SELECT 1 FROM jsonb_array_elements(courses) c WHERE %s)"

// instructorWhere compiles an instructor filter into SQL conditions. Levels
// and subjects match any course the instructor teaches.
func instructorWhere(f domain.InstructorFilter) *whereBuilder {
	b := &whereBuilder{}
	if len(f.Levels) > 0 {
		b.add(fmt.Sprintf(taughtCourse, "c->>'catalog' ~ "+b.arg(domain.LevelPattern(f.Levels))))
	}
	if len(f.Subjects) > 0 {
		b.add(fmt.Sprintf(taughtCourse, "c->>'subject' ~ "+b.arg(domain.SubjectPattern(f.Subjects))))
	}
	if len(f.Departments) > 0 {
		b.add("departments && " + b.arg(f.Departments))
	}
	if len(f.Tags) > 0 {
		b.add("tags && " + b.arg(domain.TagStrings(f.Tags)))
	}
	if f.Query != "" {
		id := b.arg(contains(domain.IDQuery(f.Query)))
		text := b.arg(contains(f.Query))
		course := fmt.Sprintf(taughtCourse, "(c->>'subject') || (c->>'catalog') ILIKE "+id)
		b.add(fmt.Sprintf(
			"(id ILIKE %[1]s OR first_name ILIKE %[2]s OR last_name ILIKE %[2]s OR (first_name || ' ' || last_name) ILIKE %[2]s"+
				" OR array_to_string(departments, ' ') ILIKE %[2]s OR array_to_string(tags, ' ') ILIKE %[2]s OR %[3]s)",
			id, text, course))
	}
	return b
}

func instructorOrder(s domain.InstructorSort) string {
	var col string
	switch s.By {
	case domain.InstructorSortDifficulty:
		col = "avg_difficulty"
	case domain.InstructorSortRating:
		col = "avg_rating"
	case domain.InstructorSortReviewCount:
		col = "review_count"
	default:
		return "last_name ASC, first_name ASC, id ASC"
	}
	return fmt.Sprintf("%s %s, id ASC", col, direction(s.Reverse))
}

// reviewOrder maps a review sort to ORDER BY. The zero sort lists the newest
// first.
func reviewOrder(s domain.ReviewSort) string {
	var col string
	switch s.By {
	case domain.ReviewSortRecency:
		col = "posted_at"
	case domain.ReviewSortExperience:
		col = "experience"
	case domain.ReviewSortRating:
		col = "rating"
	case domain.ReviewSortDifficulty:
		col = "difficulty"
	case domain.ReviewSortLikes:
		col = "likes"
	default:
		return "posted_at DESC, id ASC"
	}
	return fmt.Sprintf("%s %s, id ASC", col, direction(s.Reverse))
}
