// Package learning holds the relational learning hierarchy
// (Subject → Skill → Module → Lesson → Activity) and the progress log.
package learning

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when an entity is missing or soft-deleted.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is returned for malformed input or dangling references.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrConflict is returned when a uniqueness constraint would be violated.
	ErrConflict = errors.New("conflict")
)

// DefaultPassScore is used when a quiz activity has no quiz_pass_score.
const DefaultPassScore = 70.0

// Subject is the top-level grouping of modules.
type Subject struct {
	ID          int64     `json:"id"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Skill levels.
const (
	LevelBeginner     = "Beginner"
	LevelIntermediate = "Intermediate"
	LevelAdvanced     = "Advanced"
)

// ValidLevel reports whether level is one of the progression levels.
func ValidLevel(level string) bool {
	switch level {
	case LevelBeginner, LevelIntermediate, LevelAdvanced:
		return true
	}
	return false
}

// Skill groups modules of a subject at one progression level.
type Skill struct {
	ID          int64     `json:"id"`
	SubjectID   int64     `json:"subject_id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description *string   `json:"description"`
	Level       string    `json:"level"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Module belongs to a subject and optionally to a skill.
type Module struct {
	ID          int64     `json:"id"`
	SubjectID   int64     `json:"subject_id"`
	SkillID     *int64    `json:"skill_id"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	OrderIndex  int       `json:"order_index"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Lesson belongs to a module. OrderIndex is unique within the module and
// defines the unlock sequence.
type Lesson struct {
	ID         int64     `json:"id"`
	ModuleID   int64     `json:"module_id"`
	Slug       string    `json:"slug"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	OrderIndex int       `json:"order_index"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ActivityType is either content or quiz.
type ActivityType string

const (
	ActivityContent ActivityType = "content"
	ActivityQuiz    ActivityType = "quiz"
)

// Valid reports whether t is a known activity type.
func (t ActivityType) Valid() bool {
	return t == ActivityContent || t == ActivityQuiz
}

// Activity is a unit of lesson content. Quiz activities carry questions.
type Activity struct {
	ID            int64        `json:"id"`
	LessonID      int64        `json:"lesson_id"`
	Type          ActivityType `json:"type"`
	Title         string       `json:"title"`
	Content       *string      `json:"content"`
	OrderIndex    int          `json:"order_index"`
	QuizQuestions []Question   `json:"quiz_questions"`
	QuizPassScore *float64     `json:"quiz_pass_score"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// PassScore returns the configured pass threshold or DefaultPassScore.
func (a Activity) PassScore() float64 {
	if a.QuizPassScore != nil {
		return *a.QuizPassScore
	}
	return DefaultPassScore
}

// Page is one page of a listing.
type Page[T any] struct {
	Items    []T `json:"items"`
	Total    int `json:"total"`
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ListParams holds shared search and pagination options.
type ListParams struct {
	Search   string
	Page     int
	PageSize int
}

// Normalize clamps pagination to page >= 1 and 1 <= page_size <= 100.
func (p ListParams) Normalize() ListParams {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = defaultPageSize
	}
	if p.PageSize > maxPageSize {
		p.PageSize = maxPageSize
	}
	return p
}

// Offset returns the number of rows to skip.
func (p ListParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// SubjectFilter filters subject listings.
type SubjectFilter struct {
	ListParams
	Slug string
}

// SkillFilter filters skill listings.
type SkillFilter struct {
	SubjectSlug string
	Level       string
}

// ModuleFilter filters module listings.
type ModuleFilter struct {
	ListParams
	SubjectID *int64
	Slug      string
}

// LessonFilter filters lesson listings.
type LessonFilter struct {
	ListParams
	ModuleID *int64
	Slug     string
}

// ActivityFilter filters activity listings.
type ActivityFilter struct {
	ListParams
	LessonID *int64
	Type     ActivityType
}

// SubjectPatch holds optional subject updates.
type SubjectPatch struct {
	Slug        *string `json:"slug"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

func (p SubjectPatch) empty() bool {
	return p.Slug == nil && p.Title == nil && p.Description == nil
}

// SkillPatch holds optional skill updates.
type SkillPatch struct {
	Name        *string   `json:"name"`
	Description *string   `json:"description"`
	Level       *string   `json:"level"`
	Tags        *[]string `json:"tags"`
}

func (p SkillPatch) empty() bool {
	return p.Name == nil && p.Description == nil && p.Level == nil && p.Tags == nil
}

// ModulePatch holds optional module updates.
type ModulePatch struct {
	SubjectID   *int64  `json:"subject_id"`
	SkillID     *int64  `json:"skill_id"`
	Slug        *string `json:"slug"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	OrderIndex  *int    `json:"order_index"`
}

func (p ModulePatch) empty() bool {
	return p.SubjectID == nil && p.SkillID == nil && p.Slug == nil &&
		p.Title == nil && p.Description == nil && p.OrderIndex == nil
}

// LessonPatch holds optional lesson updates.
type LessonPatch struct {
	ModuleID   *int64  `json:"module_id"`
	Slug       *string `json:"slug"`
	Title      *string `json:"title"`
	Content    *string `json:"content"`
	OrderIndex *int    `json:"order_index"`
}

func (p LessonPatch) empty() bool {
	return p.ModuleID == nil && p.Slug == nil && p.Title == nil && p.Content == nil && p.OrderIndex == nil
}

// ActivityPatch holds optional activity updates. QuizQuestions replaces the
// whole question list.
type ActivityPatch struct {
	LessonID      *int64        `json:"lesson_id"`
	Type          *ActivityType `json:"type"`
	Title         *string       `json:"title"`
	Content       *string       `json:"content"`
	OrderIndex    *int          `json:"order_index"`
	QuizQuestions *[]Question   `json:"quiz_questions"`
	QuizPassScore *float64      `json:"quiz_pass_score"`
}

func (p ActivityPatch) empty() bool {
	return p.LessonID == nil && p.Type == nil && p.Title == nil && p.Content == nil &&
		p.OrderIndex == nil && p.QuizQuestions == nil && p.QuizPassScore == nil
}

// apply merges the patch into a and validates the result.
func (p ActivityPatch) apply(a Activity) (Activity, error) {
	if p.LessonID != nil {
		a.LessonID = *p.LessonID
	}
	if p.Type != nil {
		a.Type = *p.Type
	}
	if p.Title != nil {
		a.Title = *p.Title
	}
	if p.Content != nil {
		a.Content = p.Content
	}
	if p.OrderIndex != nil {
		a.OrderIndex = *p.OrderIndex
	}
	if p.QuizQuestions != nil {
		a.QuizQuestions = *p.QuizQuestions
	}
	if p.QuizPassScore != nil {
		a.QuizPassScore = p.QuizPassScore
	}
	return a, validateActivity(a)
}

func validateActivity(a Activity) error {
	if !a.Type.Valid() {
		return fmt.Errorf("%w: type must be 'content' or 'quiz'", ErrInvalidArgument)
	}
	if a.QuizPassScore != nil && (*a.QuizPassScore < 0 || *a.QuizPassScore > 100) {
		return fmt.Errorf("%w: quiz_pass_score must be between 0 and 100", ErrInvalidArgument)
	}
	if a.Type == ActivityQuiz {
		if len(a.QuizQuestions) == 0 {
			return fmt.Errorf("%w: quiz_questions must be a non-empty list for quiz type", ErrInvalidArgument)
		}
		if err := ValidateQuestions(a.QuizQuestions); err != nil {
			return err
		}
	}
	return nil
}
