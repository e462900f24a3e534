package catalog

import (
	"context"

	"github.com/p-n-ai/pai-learn/internal/learning"
)

// Store persists catalog skills and lessons. Missing documents report
// learning.ErrNotFound, duplicate slugs learning.ErrConflict and rejected
// input learning.ErrInvalidArgument.
type Store interface {
	ListSkills(ctx context.Context, f SkillFilter) (learning.Page[Skill], error)
	GetSkill(ctx context.Context, slug string) (Skill, error)
	CreateSkill(ctx context.Context, s Skill) (Skill, error)
	UpdateSkill(ctx context.Context, slug string, p SkillPatch) (Skill, error)
	// DeleteSkill removes the skill and every lesson that references it.
	DeleteSkill(ctx context.Context, slug string) error

	// ListLessonsForSkill returns the lessons of a skill sorted by title.
	// An unknown skill yields an empty list.
	ListLessonsForSkill(ctx context.Context, skillSlug string) ([]Lesson, error)
	GetLesson(ctx context.Context, slug string) (Lesson, error)
	CreateLesson(ctx context.Context, l Lesson) (Lesson, error)
	UpdateLesson(ctx context.Context, slug string, p LessonPatch) (Lesson, error)
	DeleteLesson(ctx context.Context, slug string) error
}
