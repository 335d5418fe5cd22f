package domain

import (
	"fmt"

	apperrors "github.com/utafrali/coursereviews/pkg/errors"
	"github.com/utafrali/coursereviews/pkg/slug"
)

// Tag is an instructor descriptor chosen from a closed set. Its value is the
// display name.
type Tag string

const (
	TagToughGrader                Tag = "Tough Grader"
	TagGetReadyToRead             Tag = "Get Ready To Read"
	TagParticipationMatters       Tag = "Participation Matters"
	TagExtraCredit                Tag = "Extra Credit"
	TagSkipClassYouWontPass       Tag = "Skip Class? You Won't Pass"
	TagGroupProjects              Tag = "Group Projects"
	TagAmazingLectures            Tag = "Amazing Lectures"
	TagClearGradingCriteria       Tag = "Clear Grading Criteria"
	TagGivesGoodFeedback          Tag = "Gives Good Feedback"
	TagInspirational              Tag = "Inspirational"
	TagLotsOfHomework             Tag = "Lots Of Homework"
	TagHilarious                  Tag = "Hilarious"
	TagBewareOfPopQuizzes         Tag = "Beware Of Pop Quizzes"
	TagSoManyPapers               Tag = "So Many Papers"
	TagCaring                     Tag = "Caring"
	TagRespected                  Tag = "Respected"
	TagFlexibleDeadlines          Tag = "Flexible Deadlines"
	TagLectureHeavy               Tag = "Lecture Heavy"
	TagTestHeavy                  Tag = "Test Heavy"
	TagGradedByFewThings          Tag = "Graded By Few Things"
	TagAccessibleOutsideClass     Tag = "Accessible Outside Class"
	TagOnlineSavvy                Tag = "Online Savvy"
	TagEngaging                   Tag = "Engaging"
	TagTechnicallyProficient      Tag = "Technically Proficient"
	TagIndustryExperienced        Tag = "Industry Experienced"
	TagResearchOriented           Tag = "Research-Oriented"
	TagMultidisciplinaryApproach  Tag = "Multidisciplinary Approach"
	TagInteractiveSessions        Tag = "Interactive Sessions"
	TagEncouragesCriticalThinking Tag = "Encourages Critical Thinking"
	TagUsesMultimedia             Tag = "Uses Multimedia"
	TagCulturallyInclusive        Tag = "Culturally Inclusive"
	TagTestsNotMany               Tag = "Tests? Not many"
	TagWouldTakeAgain             Tag = "Would take again"
	TagTestsAreTough              Tag = "Tests are tough"
)

// AllTags lists every tag in display order.
var AllTags = []Tag{
	TagToughGrader, TagGetReadyToRead, TagParticipationMatters, TagExtraCredit,
	TagSkipClassYouWontPass, TagGroupProjects, TagAmazingLectures, TagClearGradingCriteria,
	TagGivesGoodFeedback, TagInspirational, TagLotsOfHomework, TagHilarious,
	TagBewareOfPopQuizzes, TagSoManyPapers, TagCaring, TagRespected,
	TagFlexibleDeadlines, TagLectureHeavy, TagTestHeavy, TagGradedByFewThings,
	TagAccessibleOutsideClass, TagOnlineSavvy, TagEngaging, TagTechnicallyProficient,
	TagIndustryExperienced, TagResearchOriented, TagMultidisciplinaryApproach, TagInteractiveSessions,
	TagEncouragesCriticalThinking, TagUsesMultimedia, TagCulturallyInclusive, TagTestsNotMany,
	TagWouldTakeAgain, TagTestsAreTough,
}

var tagsByKey = make(map[string]Tag, len(AllTags))

func init() {
	for _, t := range AllTags {
		tagsByKey[slug.Key(string(t))] = t
	}
}

// ParseTag resolves s to a tag ignoring case, spacing and punctuation, so
// "TOUGH_GRADER", "tough grader" and "Tough-Grader" are all TagToughGrader.
func ParseTag(s string) (Tag, error) {
	if t, ok := tagsByKey[slug.Key(s)]; ok {
		return t, nil
	}
	return "", apperrors.InvalidInput(fmt.Sprintf("unknown instructor tag %q", s))
}

// NormalizeTags parses every tag and returns the distinct set in display order.
func NormalizeTags(in []Tag) ([]Tag, error) {
	seen := make(map[Tag]struct{}, len(in))
	for _, raw := range in {
		t, err := ParseTag(string(raw))
		if err != nil {
			return nil, err
		}
		seen[t] = struct{}{}
	}
	return sortedTags(seen), nil
}

func sortedTags(set map[Tag]struct{}) []Tag {
	out := make([]Tag, 0, len(set))
	for _, t := range AllTags {
		if _, ok := set[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

// TagStrings converts tags for storage.
func TagStrings(tags []Tag) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = string(t)
	}
	return out
}

// TagsFromStrings converts stored tags back. Values are trusted.
func TagsFromStrings(ss []string) []Tag {
	out := make([]Tag, len(ss))
	for i, s := range ss {
		out[i] = Tag(s)
	}
	return out
}
