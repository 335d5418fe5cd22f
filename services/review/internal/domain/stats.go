package domain

// Distribution counts scores 1..5; index 0 holds the count of 1s.
type Distribution [MaxScore]int

func (d *Distribution) add(score int) {
	if scoreOK(score) {
		d[score-MinScore]++
	}
}

// CourseStats is derived entirely from a course's course-type reviews.
type CourseStats struct {
	AvgDifficulty          float64      `json:"avg_difficulty"`
	AvgExperience          float64      `json:"avg_experience"`
	ReviewCount            int          `json:"review_count"`
	DifficultyDistribution Distribution `json:"difficulty_distribution"`
	ExperienceDistribution Distribution `json:"experience_distribution"`
}

// InstructorStats is derived entirely from an instructor's instructor-type
// reviews.
type InstructorStats struct {
	AvgDifficulty          float64      `json:"avg_difficulty"`
	AvgRating              float64      `json:"avg_rating"`
	ReviewCount            int          `json:"review_count"`
	Tags                   []Tag        `json:"tags"`
	DifficultyDistribution Distribution `json:"difficulty_distribution"`
	RatingDistribution     Distribution `json:"rating_distribution"`
}

func mean(sum, n int) float64 {
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}

// ComputeCourseStats averages difficulty and experience over the course
// reviews in reviews. Other review types are ignored; no reviews yields zeros.
func ComputeCourseStats(reviews []Review) CourseStats {
	var s CourseStats
	var difficulty, experience int
	for i := range reviews {
		p := reviews[i].Course
		if p == nil {
			continue
		}
		s.ReviewCount++
		difficulty += p.Difficulty
		experience += p.Experience
		s.DifficultyDistribution.add(p.Difficulty)
		s.ExperienceDistribution.add(p.Experience)
	}
	s.AvgDifficulty = mean(difficulty, s.ReviewCount)
	s.AvgExperience = mean(experience, s.ReviewCount)
	return s
}

// ComputeInstructorStats averages difficulty and rating over the instructor
// reviews in reviews and collects the union of their tags.
func ComputeInstructorStats(reviews []Review) InstructorStats {
	s := InstructorStats{Tags: []Tag{}}
	var difficulty, rating int
	tags := make(map[Tag]struct{})
	for i := range reviews {
		p := reviews[i].Instructor
		if p == nil {
			continue
		}
		s.ReviewCount++
		difficulty += p.Difficulty
		rating += p.Rating
		s.DifficultyDistribution.add(p.Difficulty)
		s.RatingDistribution.add(p.Rating)
		for _, t := range p.Tags {
			tags[t] = struct{}{}
		}
	}
	s.AvgDifficulty = mean(difficulty, s.ReviewCount)
	s.AvgRating = mean(rating, s.ReviewCount)
	s.Tags = sortedTags(tags)
	return s
}
