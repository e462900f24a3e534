// Package progression grades quiz submissions and unlocks lessons in
// sequence. All state lives in the append-only progress log.
package progression

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/p-n-ai/pai-learn/internal/learning"
)

// Store is the persistence the engine depends on.
type Store interface {
	WithTx(ctx context.Context, fn func(learning.Tx) error) error
	GetLesson(ctx context.Context, id int64) (learning.Lesson, error)
	ModuleLessons(ctx context.Context, moduleID int64) ([]learning.Lesson, error)
	LessonProgress(ctx context.Context, userID string, lessonIDs ...int64) ([]learning.ProgressRecord, error)
}

// EngineConfig holds dependencies for the progression engine.
type EngineConfig struct {
	Store Store
}

// Engine grades quizzes and derives lesson status.
type Engine struct {
	store Store
}

// NewEngine creates a progression engine. A nil store falls back to an
// in-memory one.
func NewEngine(cfg EngineConfig) *Engine {
	store := cfg.Store
	if store == nil {
		store = learning.NewMemoryStore()
	}
	return &Engine{store: store}
}

// Submission is one learner's answer set for a quiz activity.
type Submission struct {
	UserID     string
	ActivityID int64
	Answers    []int
}

// Result is the outcome of a graded submission.
type Result struct {
	ActivityID           int64   `json:"activity_id"`
	LessonID             int64   `json:"lesson_id"`
	TotalQuestions       int     `json:"total_questions"`
	Correct              int     `json:"correct"`
	Score                float64 `json:"score"`
	Passed               bool    `json:"passed"`
	UnlockedNextLessonID *int64  `json:"unlocked_next_lesson_id"`
}

// Score converts a correct count into a percentage rounded to two decimals.
func Score(correct, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(correct)/float64(total)*100*100) / 100
}

// SubmitQuiz grades the submission, records the attempt and, when the quiz
// is passed, completes the lesson and unlocks its successor. All records are
// written in one transaction.
func (e *Engine) SubmitQuiz(ctx context.Context, sub Submission) (Result, error) {
	if sub.UserID == "" {
		return Result{}, fmt.Errorf("%w: user_id is required", learning.ErrInvalidArgument)
	}

	var res Result
	err := e.store.WithTx(ctx, func(tx learning.Tx) error {
		activity, err := tx.GetActivity(ctx, sub.ActivityID)
		if err != nil {
			return fmt.Errorf("load quiz activity: %w", err)
		}
		if activity.Type != learning.ActivityQuiz {
			return fmt.Errorf("%w: activity %d is not a quiz", learning.ErrNotFound, activity.ID)
		}

		questions := activity.QuizQuestions
		if len(sub.Answers) != len(questions) {
			return fmt.Errorf("%w: answers length must equal number of questions", learning.ErrInvalidArgument)
		}

		correct := 0
		for i, q := range questions {
			ok, valid := q.Grade(sub.Answers[i])
			if !valid {
				slog.Warn("malformed quiz question graded as incorrect",
					"activity_id", activity.ID,
					"question_index", i,
				)
				continue
			}
			if ok {
				correct++
			}
		}

		score := Score(correct, len(questions))
		res = Result{
			ActivityID:     activity.ID,
			LessonID:       activity.LessonID,
			TotalQuestions: len(questions),
			Correct:        correct,
			Score:          score,
			Passed:         score >= activity.PassScore(),
		}

		records := []learning.ProgressRecord{learning.ActivityAttempt(sub.UserID, activity.ID, score)}
		if res.Passed {
			records = append(records, learning.LessonCompleted(sub.UserID, activity.LessonID, score))
			next, found, err := nextLesson(ctx, tx, activity.LessonID)
			if err != nil {
				return err
			}
			if found {
				records = append(records, learning.LessonUnlocked(sub.UserID, next.ID))
				res.UnlockedNextLessonID = &next.ID
			}
		}

		if _, err := tx.AppendProgress(ctx, records...); err != nil {
			return fmt.Errorf("record quiz attempt: %w", err)
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	slog.Info("quiz graded",
		"user_id", sub.UserID,
		"activity_id", res.ActivityID,
		"score", res.Score,
		"passed", res.Passed,
	)
	return res, nil
}

// nextLesson finds the immediate successor of the lesson in its module. A
// current lesson that no longer exists has no successor.
func nextLesson(ctx context.Context, tx learning.Tx, lessonID int64) (learning.Lesson, bool, error) {
	current, err := tx.GetLesson(ctx, lessonID)
	if errors.Is(err, learning.ErrNotFound) {
		return learning.Lesson{}, false, nil
	}
	if err != nil {
		return learning.Lesson{}, false, fmt.Errorf("load current lesson: %w", err)
	}
	next, found, err := tx.NextLesson(ctx, current.ModuleID, current.OrderIndex)
	if err != nil {
		return learning.Lesson{}, false, fmt.Errorf("find next lesson: %w", err)
	}
	return next, found, nil
}
