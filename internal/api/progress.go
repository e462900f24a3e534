package api

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/p-n-ai/pai-learn/internal/learning"
	"github.com/p-n-ai/pai-learn/internal/platform/slug"
	"github.com/p-n-ai/pai-learn/internal/report"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type progressRequest struct {
	UserID     string   `json:"user_id" validate:"required"`
	EntityType string   `json:"entity_type" validate:"required,oneof=subject module lesson activity"`
	EntityID   int64    `json:"entity_id" validate:"required,gt=0"`
	Status     string   `json:"status" validate:"required,oneof=completed in_progress"`
	Score      *float64 `json:"score" validate:"omitempty,min=0,max=100"`
}

func userID(r *http.Request) (string, error) {
	id := r.URL.Query().Get("user_id")
	if id == "" {
		return "", badRequest("user_id is required")
	}
	return id, nil
}

func (s *Server) listProgress(w http.ResponseWriter, r *http.Request) {
	user, err := userID(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	p, err := listParams(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	f := learning.ProgressFilter{ListParams: p, UserID: user}
	for name, dst := range map[string]**int64{
		"subject_id":  &f.SubjectID,
		"module_id":   &f.ModuleID,
		"lesson_id":   &f.LessonID,
		"activity_id": &f.ActivityID,
	} {
		if *dst, err = queryID(r, name); err != nil {
			fail(w, r, err)
			return
		}
	}
	page, err := s.store.ListProgress(r.Context(), f)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) upsertProgress(w http.ResponseWriter, r *http.Request) {
	var req progressRequest
	if err := s.decode(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}
	rec, err := s.store.UpsertProgress(r.Context(), learning.ProgressUpsert{
		UserID:     req.UserID,
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
		Status:     req.Status,
		Score:      req.Score,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) getProgress(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}
	rec, err := s.store.GetProgress(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) deleteProgress(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := s.store.DeleteProgress(r.Context(), id); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// exportProgress streams the user's progress log as an xlsx workbook.
func (s *Server) exportProgress(w http.ResponseWriter, r *http.Request) {
	user, err := userID(r)
	if err != nil {
		fail(w, r, err)
		return
	}

	var buf bytes.Buffer
	n, err := report.WriteProgress(r.Context(), &buf, s.store, user)
	if err != nil {
		fail(w, r, err)
		return
	}

	name := slug.Make(user)
	if name == "" {
		name = "user"
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="progress-%s.xlsx"`, name))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Warn("progress export interrupted", "user_id", user, "error", err)
		return
	}
	slog.Info("progress exported", "user_id", user, "records", n)
}

func (s *Server) lessonStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}
	user, err := userID(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	status, err := s.engine.LessonStatus(r.Context(), user, id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) moduleProgress(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}
	user, err := userID(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	if _, err := s.store.GetModule(r.Context(), id); err != nil {
		fail(w, r, err)
		return
	}
	progress, err := s.engine.ModuleProgress(r.Context(), user, id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}
