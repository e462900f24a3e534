package progression

import (
	"context"
	"fmt"

	"github.com/p-n-ai/pai-learn/internal/learning"
)

// Status is the derived per-user state of a lesson.
type Status string

const (
	StatusLocked    Status = "locked"
	StatusUnlocked  Status = "unlocked"
	StatusCompleted Status = "completed"
)

// LessonStatus is a lesson's state for one user.
type LessonStatus struct {
	LessonID   int64    `json:"lesson_id"`
	Title      string   `json:"title"`
	OrderIndex int      `json:"order_index"`
	Status     Status   `json:"status"`
	BestScore  *float64 `json:"best_score"`
}

// ModuleProgress summarises a user's progress through a module.
type ModuleProgress struct {
	UserID         string         `json:"user_id"`
	ModuleID       int64          `json:"module_id"`
	Lessons        []LessonStatus `json:"lessons"`
	Completed      int            `json:"completed"`
	Total          int            `json:"total"`
	CompletionRate float64        `json:"completion_rate"`
}

// ModuleProgress derives the status of every lesson in the module. The first
// lesson is always reachable.
func (e *Engine) ModuleProgress(ctx context.Context, userID string, moduleID int64) (ModuleProgress, error) {
	if userID == "" {
		return ModuleProgress{}, fmt.Errorf("%w: user_id is required", learning.ErrInvalidArgument)
	}
	lessons, err := e.store.ModuleLessons(ctx, moduleID)
	if err != nil {
		return ModuleProgress{}, fmt.Errorf("list module lessons: %w", err)
	}

	ids := make([]int64, len(lessons))
	for i, l := range lessons {
		ids[i] = l.ID
	}
	var records []learning.ProgressRecord
	if len(ids) > 0 {
		records, err = e.store.LessonProgress(ctx, userID, ids...)
		if err != nil {
			return ModuleProgress{}, fmt.Errorf("load lesson progress: %w", err)
		}
	}
	byLesson := make(map[int64][]learning.ProgressRecord, len(lessons))
	for _, r := range records {
		byLesson[*r.LessonID] = append(byLesson[*r.LessonID], r)
	}

	mp := ModuleProgress{
		UserID:   userID,
		ModuleID: moduleID,
		Lessons:  make([]LessonStatus, 0, len(lessons)),
		Total:    len(lessons),
	}
	for i, l := range lessons {
		st := deriveStatus(l, i == 0, byLesson[l.ID])
		if st.Status == StatusCompleted {
			mp.Completed++
		}
		mp.Lessons = append(mp.Lessons, st)
	}
	if mp.Total > 0 {
		mp.CompletionRate = float64(mp.Completed) / float64(mp.Total)
	}
	return mp, nil
}

// LessonStatus derives a single lesson's state for the user.
func (e *Engine) LessonStatus(ctx context.Context, userID string, lessonID int64) (LessonStatus, error) {
	lesson, err := e.store.GetLesson(ctx, lessonID)
	if err != nil {
		return LessonStatus{}, err
	}
	mp, err := e.ModuleProgress(ctx, userID, lesson.ModuleID)
	if err != nil {
		return LessonStatus{}, err
	}
	for _, st := range mp.Lessons {
		if st.LessonID == lessonID {
			return st, nil
		}
	}
	return LessonStatus{}, fmt.Errorf("%w: lesson %d", learning.ErrNotFound, lessonID)
}

func deriveStatus(l learning.Lesson, first bool, records []learning.ProgressRecord) LessonStatus {
	st := LessonStatus{LessonID: l.ID, Title: l.Title, OrderIndex: l.OrderIndex, Status: StatusLocked}
	if first || len(records) > 0 {
		st.Status = StatusUnlocked
	}
	for _, r := range records {
		if r.Completed {
			st.Status = StatusCompleted
		}
		if r.Score != nil && (st.BestScore == nil || *r.Score > *st.BestScore) {
			score := *r.Score
			st.BestScore = &score
		}
	}
	return st
}
