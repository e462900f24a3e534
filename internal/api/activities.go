package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/p-n-ai/pai-learn/internal/learning"
)

type activityRequest struct {
	LessonID      int64               `json:"lesson_id" validate:"required,gt=0"`
	Type          string              `json:"type" validate:"required,oneof=content quiz"`
	Title         string              `json:"title" validate:"required,max=255"`
	Content       *string             `json:"content"`
	OrderIndex    int                 `json:"order_index" validate:"min=0"`
	QuizQuestions []learning.Question `json:"quiz_questions"`
	QuizPassScore *float64            `json:"quiz_pass_score" validate:"omitempty,min=0,max=100"`
}

// quizRequest is an activityRequest whose type is always quiz.
type quizRequest struct {
	LessonID      int64               `json:"lesson_id" validate:"required,gt=0"`
	Title         string              `json:"title" validate:"required,max=255"`
	OrderIndex    int                 `json:"order_index" validate:"min=0"`
	QuizQuestions []learning.Question `json:"quiz_questions" validate:"required,min=1"`
	QuizPassScore *float64            `json:"quiz_pass_score" validate:"omitempty,min=0,max=100"`
}

func (s *Server) activityFilter(r *http.Request) (learning.ActivityFilter, error) {
	p, err := listParams(r)
	if err != nil {
		return learning.ActivityFilter{}, err
	}
	lessonID, err := queryID(r, "lesson_id")
	if err != nil {
		return learning.ActivityFilter{}, err
	}
	return learning.ActivityFilter{
		ListParams: p,
		LessonID:   lessonID,
		Type:       learning.ActivityType(r.URL.Query().Get("type")),
	}, nil
}

func (s *Server) listActivities(w http.ResponseWriter, r *http.Request) {
	f, err := s.activityFilter(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	page, err := s.store.ListActivities(r.Context(), f)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) listLessonActivities(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}
	f, err := s.activityFilter(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	if _, err := s.store.GetLesson(r.Context(), id); err != nil {
		fail(w, r, err)
		return
	}
	f.LessonID = &id
	page, err := s.store.ListActivities(r.Context(), f)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) createActivity(w http.ResponseWriter, r *http.Request) {
	var req activityRequest
	if err := s.decode(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}
	created, err := s.store.CreateActivity(r.Context(), learning.Activity{
		LessonID:      req.LessonID,
		Type:          learning.ActivityType(req.Type),
		Title:         req.Title,
		Content:       req.Content,
		OrderIndex:    req.OrderIndex,
		QuizQuestions: req.QuizQuestions,
		QuizPassScore: req.QuizPassScore,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) getActivity(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}
	act, err := s.store.GetActivity(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, act)
}

func (s *Server) updateActivity(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}
	var patch learning.ActivityPatch
	if err := s.decode(w, r, &patch); err != nil {
		fail(w, r, err)
		return
	}
	updated, err := s.store.UpdateActivity(r.Context(), id, patch)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteActivity(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := s.store.DeleteActivity(r.Context(), id); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Quizzes are activities of type quiz. Non-quiz ids answer 404.

func (s *Server) quizActivity(ctx context.Context, id int64) (learning.Activity, error) {
	act, err := s.store.GetActivity(ctx, id)
	if err != nil {
		return learning.Activity{}, err
	}
	if act.Type != learning.ActivityQuiz {
		return learning.Activity{}, fmt.Errorf("%w: quiz %d", learning.ErrNotFound, id)
	}
	return act, nil
}

func (s *Server) listQuizzes(w http.ResponseWriter, r *http.Request) {
	f, err := s.activityFilter(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	f.Type = learning.ActivityQuiz
	page, err := s.store.ListActivities(r.Context(), f)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) createQuiz(w http.ResponseWriter, r *http.Request) {
	var req quizRequest
	if err := s.decode(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}
	created, err := s.store.CreateActivity(r.Context(), learning.Activity{
		LessonID:      req.LessonID,
		Type:          learning.ActivityQuiz,
		Title:         req.Title,
		OrderIndex:    req.OrderIndex,
		QuizQuestions: req.QuizQuestions,
		QuizPassScore: req.QuizPassScore,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) getQuiz(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}
	act, err := s.quizActivity(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, act)
}

func (s *Server) updateQuiz(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}
	var patch learning.ActivityPatch
	if err := s.decode(w, r, &patch); err != nil {
		fail(w, r, err)
		return
	}
	if patch.Type != nil && *patch.Type != learning.ActivityQuiz {
		fail(w, r, badRequest("type of a quiz cannot be changed"))
		return
	}
	if _, err := s.quizActivity(r.Context(), id); err != nil {
		fail(w, r, err)
		return
	}
	updated, err := s.store.UpdateActivity(r.Context(), id, patch)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteQuiz(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}
	if _, err := s.quizActivity(r.Context(), id); err != nil {
		fail(w, r, err)
		return
	}
	if err := s.store.DeleteActivity(r.Context(), id); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
