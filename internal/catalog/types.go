// Package catalog stores the document-shaped content catalog: skills and
// self-contained lessons that embed a three-question quiz and a badge.
package catalog

import (
	"fmt"
	"strings"
	"time"

	"github.com/p-n-ai/pai-learn/internal/learning"
)

const (
	// QuizSize is the exact number of questions a catalog lesson carries.
	QuizSize = 3
	// MaxBadgePoints caps the points a badge can award.
	MaxBadgePoints = 1000
)

// Badge is awarded when a lesson is completed.
type Badge struct {
	Name   string `json:"name"`
	Points int    `json:"points"`
}

// Skill is a catalog skill addressed by slug.
type Skill struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Category    string    `json:"category"`
	Description *string   `json:"description,omitempty"`
	Tags        []string  `json:"tags"`
	Difficulty  string    `json:"difficulty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Lesson is a catalog lesson with its embedded quiz.
type Lesson struct {
	ID         string              `json:"id"`
	Title      string              `json:"title"`
	Slug       string              `json:"slug"`
	Summary    *string             `json:"summary,omitempty"`
	Content    string              `json:"content"`
	Media      *string             `json:"media,omitempty"`
	Tags       []string            `json:"tags"`
	Difficulty string              `json:"difficulty"`
	Quiz       []learning.Question `json:"quiz"`
	Badge      Badge               `json:"badge"`
	SkillSlug  string              `json:"skillSlug"`
	Category   string              `json:"category"`
	CreatedAt  time.Time           `json:"createdAt"`
	UpdatedAt  time.Time           `json:"updatedAt"`
}

// SkillFilter filters skill listings. Search matches name, description and
// tags case-insensitively.
type SkillFilter struct {
	learning.ListParams
	Category   string
	Difficulty string
}

// SkillPatch holds optional skill changes. Nil fields are left untouched.
type SkillPatch struct {
	Name        *string  `json:"name"`
	Category    *string  `json:"category"`
	Description *string  `json:"description"`
	Tags        []string `json:"tags"`
	Difficulty  *string  `json:"difficulty"`
}

func (p SkillPatch) apply(s Skill) Skill {
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.Category != nil {
		s.Category = *p.Category
	}
	if p.Description != nil {
		s.Description = p.Description
	}
	if p.Tags != nil {
		s.Tags = p.Tags
	}
	if p.Difficulty != nil {
		s.Difficulty = *p.Difficulty
	}
	return s
}

// LessonPatch holds optional lesson changes. A non-nil Quiz replaces the
// whole quiz.
type LessonPatch struct {
	Title      *string             `json:"title"`
	Summary    *string             `json:"summary"`
	Content    *string             `json:"content"`
	Media      *string             `json:"media"`
	Tags       []string            `json:"tags"`
	Difficulty *string             `json:"difficulty"`
	Quiz       []learning.Question `json:"quiz"`
	Badge      *Badge              `json:"badge"`
	SkillSlug  *string             `json:"skillSlug"`
	Category   *string             `json:"category"`
}

func (p LessonPatch) apply(l Lesson) Lesson {
	if p.Title != nil {
		l.Title = *p.Title
	}
	if p.Summary != nil {
		l.Summary = p.Summary
	}
	if p.Content != nil {
		l.Content = *p.Content
	}
	if p.Media != nil {
		l.Media = p.Media
	}
	if p.Tags != nil {
		l.Tags = p.Tags
	}
	if p.Difficulty != nil {
		l.Difficulty = *p.Difficulty
	}
	if p.Quiz != nil {
		l.Quiz = p.Quiz
	}
	if p.Badge != nil {
		l.Badge = *p.Badge
	}
	if p.SkillSlug != nil {
		l.SkillSlug = *p.SkillSlug
	}
	if p.Category != nil {
		l.Category = *p.Category
	}
	return l
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", learning.ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func notFound(kind, slug string) error {
	return fmt.Errorf("%s %q: %w", kind, slug, learning.ErrNotFound)
}

func conflict(kind, slug string) error {
	return fmt.Errorf("%s slug %q already exists: %w", kind, slug, learning.ErrConflict)
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// normalizeSkill fills defaults and validates a skill before it is written.
func normalizeSkill(s Skill) (Skill, error) {
	if s.Difficulty == "" {
		s.Difficulty = learning.LevelBeginner
	}
	if s.Tags == nil {
		s.Tags = []string{}
	}
	switch {
	case blank(s.Name):
		return s, invalid("name is required")
	case blank(s.Slug):
		return s, invalid("slug is required")
	case blank(s.Category):
		return s, invalid("category is required")
	case !learning.ValidLevel(s.Difficulty):
		return s, invalid("difficulty must be one of Beginner, Intermediate, Advanced")
	}
	return s, nil
}

// normalizeLesson fills defaults and validates a lesson before it is written.
func normalizeLesson(l Lesson) (Lesson, error) {
	if l.Difficulty == "" {
		l.Difficulty = learning.LevelBeginner
	}
	if l.Tags == nil {
		l.Tags = []string{}
	}
	switch {
	case blank(l.Title):
		return l, invalid("title is required")
	case blank(l.Slug):
		return l, invalid("slug is required")
	case blank(l.Content):
		return l, invalid("content is required")
	case blank(l.SkillSlug):
		return l, invalid("skillSlug is required")
	case blank(l.Category):
		return l, invalid("category is required")
	case !learning.ValidLevel(l.Difficulty):
		return l, invalid("difficulty must be one of Beginner, Intermediate, Advanced")
	case len(l.Quiz) != QuizSize:
		return l, invalid("quiz must contain exactly %d questions", QuizSize)
	case blank(l.Badge.Name):
		return l, invalid("badge name is required")
	case l.Badge.Points < 0 || l.Badge.Points > MaxBadgePoints:
		return l, invalid("badge points must be between 0 and %d", MaxBadgePoints)
	}
	if err := learning.ValidateQuestions(l.Quiz); err != nil {
		return l, fmt.Errorf("invalid quiz: %w", err)
	}
	return l, nil
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
