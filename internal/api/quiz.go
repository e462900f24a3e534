package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/p-n-ai/pai-learn/internal/learning"
	"github.com/p-n-ai/pai-learn/internal/progression"
	"github.com/p-n-ai/pai-learn/internal/quizgen"
)

// generatedQuizOrder places a newly generated quiz after hand-written
// activities.
const generatedQuizOrder = 999

type generateQuizRequest struct {
	LessonID   int64    `json:"lesson_id" validate:"required,gt=0"`
	PassScore  *float64 `json:"pass_score" validate:"omitempty,min=0,max=100"`
	Difficulty string   `json:"difficulty" validate:"omitempty,oneof=Beginner Intermediate Advanced"`
	UserID     string   `json:"user_id" validate:"omitempty,max=255"`
}

// GeneratedQuiz is the response of POST /ai/quiz/generate.
type GeneratedQuiz struct {
	ActivityID    int64               `json:"activity_id"`
	LessonID      int64               `json:"lesson_id"`
	Title         string              `json:"title"`
	QuizPassScore float64             `json:"quiz_pass_score"`
	QuizQuestions []learning.Question `json:"quiz_questions"`
}

type submitQuizRequest struct {
	UserID     string `json:"user_id" validate:"required"`
	ActivityID int64  `json:"activity_id" validate:"required,gt=0"`
	Answers    []int  `json:"answers" validate:"required,min=1"`
}

func (s *Server) generateQuiz(w http.ResponseWriter, r *http.Request) {
	var req generateQuizRequest
	if err := s.decode(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}
	ctx := r.Context()

	lesson, err := s.store.GetLesson(ctx, req.LessonID)
	if err != nil {
		fail(w, r, err)
		return
	}

	passScore := learning.DefaultPassScore
	if req.PassScore != nil {
		passScore = *req.PassScore
	}
	quiz, err := s.quizzes.Generate(ctx, quizgen.Request{
		LessonID:   lesson.ID,
		Title:      lesson.Title,
		Content:    lesson.Content,
		Difficulty: req.Difficulty,
		PassScore:  passScore,
		Caller:     req.UserID,
	})
	if err != nil {
		fail(w, r, err)
		return
	}

	act, err := s.saveQuiz(ctx, lesson, quiz)
	if err != nil {
		fail(w, r, err)
		return
	}
	slog.Info("quiz generated", "lesson_id", lesson.ID, "activity_id", act.ID)

	writeJSON(w, http.StatusOK, GeneratedQuiz{
		ActivityID:    act.ID,
		LessonID:      act.LessonID,
		Title:         act.Title,
		QuizPassScore: act.PassScore(),
		QuizQuestions: act.QuizQuestions,
	})
}

// saveQuiz replaces the questions and pass score of the lesson's first quiz,
// or creates a quiz activity when the lesson has none.
func (s *Server) saveQuiz(ctx context.Context, lesson learning.Lesson, quiz quizgen.Quiz) (learning.Activity, error) {
	existing, err := s.store.FirstQuiz(ctx, lesson.ID)
	switch {
	case err == nil:
		return s.store.UpdateActivity(ctx, existing.ID, learning.ActivityPatch{
			QuizQuestions: &quiz.Questions,
			QuizPassScore: &quiz.PassScore,
		})
	case errors.Is(err, learning.ErrNotFound):
		return s.store.CreateActivity(ctx, learning.Activity{
			LessonID:      lesson.ID,
			Type:          learning.ActivityQuiz,
			Title:         quiz.Title,
			OrderIndex:    generatedQuizOrder,
			QuizQuestions: quiz.Questions,
			QuizPassScore: &quiz.PassScore,
		})
	default:
		return learning.Activity{}, err
	}
}

func (s *Server) lessonQuiz(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "lesson_id")
	if err != nil {
		fail(w, r, err)
		return
	}
	act, err := s.store.FirstQuiz(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]learning.Activity{"activity": act})
}

func (s *Server) submitQuiz(w http.ResponseWriter, r *http.Request) {
	var req submitQuizRequest
	if err := s.decode(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}
	res, err := s.engine.SubmitQuiz(r.Context(), progression.Submission{
		UserID:     req.UserID,
		ActivityID: req.ActivityID,
		Answers:    req.Answers,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
