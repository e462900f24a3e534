package learning

import (
	"context"
	"fmt"
)

// Tx is the part of the store that runs inside a single unit of work.
type Tx interface {
	GetActivity(ctx context.Context, id int64) (Activity, error)
	GetLesson(ctx context.Context, id int64) (Lesson, error)
	// NextLesson returns the non-deleted lesson of the module with the
	// smallest order_index strictly greater than afterOrder.
	NextLesson(ctx context.Context, moduleID int64, afterOrder int) (Lesson, bool, error)
	// AppendProgress inserts records as new rows. It never updates.
	AppendProgress(ctx context.Context, records ...ProgressRecord) ([]ProgressRecord, error)
}

// Store persists the learning hierarchy and the progress log.
type Store interface {
	Tx
	// WithTx runs fn atomically: either every write made through the Tx
	// commits, or none does.
	WithTx(ctx context.Context, fn func(Tx) error) error

	ListSubjects(ctx context.Context, f SubjectFilter) (Page[Subject], error)
	CreateSubject(ctx context.Context, s Subject) (Subject, error)
	GetSubject(ctx context.Context, id int64) (Subject, error)
	UpdateSubject(ctx context.Context, id int64, p SubjectPatch) (Subject, error)
	DeleteSubject(ctx context.Context, id int64) error

	ListSkills(ctx context.Context, f SkillFilter) ([]Skill, error)
	CreateSkill(ctx context.Context, s Skill) (Skill, error)
	GetSkill(ctx context.Context, slug string) (Skill, error)
	UpdateSkill(ctx context.Context, slug string, p SkillPatch) (Skill, error)
	DeleteSkill(ctx context.Context, slug string) error
	SkillModules(ctx context.Context, skillID int64) ([]Module, error)

	ListModules(ctx context.Context, f ModuleFilter) (Page[Module], error)
	CreateModule(ctx context.Context, m Module) (Module, error)
	GetModule(ctx context.Context, id int64) (Module, error)
	UpdateModule(ctx context.Context, id int64, p ModulePatch) (Module, error)
	DeleteModule(ctx context.Context, id int64) error

	ListLessons(ctx context.Context, f LessonFilter) (Page[Lesson], error)
	ModuleLessons(ctx context.Context, moduleID int64) ([]Lesson, error)
	CreateLesson(ctx context.Context, l Lesson) (Lesson, error)
	UpdateLesson(ctx context.Context, id int64, p LessonPatch) (Lesson, error)
	DeleteLesson(ctx context.Context, id int64) error

	ListActivities(ctx context.Context, f ActivityFilter) (Page[Activity], error)
	CreateActivity(ctx context.Context, a Activity) (Activity, error)
	UpdateActivity(ctx context.Context, id int64, p ActivityPatch) (Activity, error)
	DeleteActivity(ctx context.Context, id int64) error
	// FirstQuiz returns the lesson's quiz activity with the lowest
	// (order_index, id).
	FirstQuiz(ctx context.Context, lessonID int64) (Activity, error)

	ListProgress(ctx context.Context, f ProgressFilter) (Page[ProgressRecord], error)
	GetProgress(ctx context.Context, id int64) (ProgressRecord, error)
	DeleteProgress(ctx context.Context, id int64) error
	// UpsertProgress updates the latest record with the same user and
	// entity, or inserts one. Last write wins.
	UpsertProgress(ctx context.Context, u ProgressUpsert) (ProgressRecord, error)
	// LessonProgress returns every lesson-level record of the user for the
	// given lessons, oldest first.
	LessonProgress(ctx context.Context, userID string, lessonIDs ...int64) ([]ProgressRecord, error)
}

func notFound(entity string, id any) error {
	return fmt.Errorf("%w: %s %v", ErrNotFound, entity, id)
}

func invalidRef(field string) error {
	return fmt.Errorf("%w: invalid %s", ErrInvalidArgument, field)
}

func noFields() error {
	return fmt.Errorf("%w: no valid fields to update", ErrInvalidArgument)
}

func validateSubject(s Subject) error {
	if s.Slug == "" || s.Title == "" {
		return fmt.Errorf("%w: slug and title are required", ErrInvalidArgument)
	}
	return nil
}

func (p SubjectPatch) apply(s Subject) (Subject, error) {
	if p.Slug != nil {
		s.Slug = *p.Slug
	}
	if p.Title != nil {
		s.Title = *p.Title
	}
	if p.Description != nil {
		s.Description = p.Description
	}
	return s, validateSubject(s)
}

func validateSkill(s Skill) error {
	if s.Slug == "" || s.Name == "" {
		return fmt.Errorf("%w: name and slug are required", ErrInvalidArgument)
	}
	if !ValidLevel(s.Level) {
		return fmt.Errorf("%w: level must be one of Beginner|Intermediate|Advanced", ErrInvalidArgument)
	}
	return nil
}

func (p SkillPatch) apply(s Skill) (Skill, error) {
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.Description != nil {
		s.Description = p.Description
	}
	if p.Level != nil {
		s.Level = *p.Level
	}
	if p.Tags != nil {
		s.Tags = *p.Tags
	}
	return s, validateSkill(s)
}

func validateModule(m Module) error {
	if m.Slug == "" || m.Title == "" {
		return fmt.Errorf("%w: slug and title are required", ErrInvalidArgument)
	}
	return nil
}

func (p ModulePatch) apply(m Module) (Module, error) {
	if p.SubjectID != nil {
		m.SubjectID = *p.SubjectID
	}
	if p.SkillID != nil {
		m.SkillID = p.SkillID
	}
	if p.Slug != nil {
		m.Slug = *p.Slug
	}
	if p.Title != nil {
		m.Title = *p.Title
	}
	if p.Description != nil {
		m.Description = p.Description
	}
	if p.OrderIndex != nil {
		m.OrderIndex = *p.OrderIndex
	}
	return m, validateModule(m)
}

func validateLesson(l Lesson) error {
	if l.Slug == "" || l.Title == "" {
		return fmt.Errorf("%w: slug and title are required", ErrInvalidArgument)
	}
	return nil
}

func (p LessonPatch) apply(l Lesson) (Lesson, error) {
	if p.ModuleID != nil {
		l.ModuleID = *p.ModuleID
	}
	if p.Slug != nil {
		l.Slug = *p.Slug
	}
	if p.Title != nil {
		l.Title = *p.Title
	}
	if p.Content != nil {
		l.Content = *p.Content
	}
	if p.OrderIndex != nil {
		l.OrderIndex = *p.OrderIndex
	}
	return l, validateLesson(l)
}
