package api

import (
	"net/http"

	"github.com/p-n-ai/pai-learn/internal/catalog"
	"github.com/p-n-ai/pai-learn/internal/learning"
)

type catalogSkillRequest struct {
	Name        string   `json:"name" validate:"required,max=255"`
	Slug        string   `json:"slug" validate:"omitempty,slug"`
	Category    string   `json:"category" validate:"required"`
	Description *string  `json:"description"`
	Tags        []string `json:"tags" validate:"omitempty,dive,required"`
	Difficulty  string   `json:"difficulty" validate:"omitempty,oneof=Beginner Intermediate Advanced"`
}

type catalogBadgeRequest struct {
	Name   string `json:"name" validate:"required"`
	Points int    `json:"points" validate:"min=0,max=1000"`
}

type catalogLessonRequest struct {
	Title      string              `json:"title" validate:"required,max=255"`
	Slug       string              `json:"slug" validate:"omitempty,slug"`
	Summary    *string             `json:"summary"`
	Content    string              `json:"content" validate:"required"`
	Media      *string             `json:"media"`
	Tags       []string            `json:"tags" validate:"omitempty,dive,required"`
	Difficulty string              `json:"difficulty" validate:"omitempty,oneof=Beginner Intermediate Advanced"`
	Quiz       []learning.Question `json:"quiz" validate:"len=3"`
	Badge      catalogBadgeRequest `json:"badge"`
	SkillSlug  string              `json:"skillSlug" validate:"required"`
	Category   string              `json:"category" validate:"required"`
}

// CatalogPage is a page of catalog skills.
type CatalogPage struct {
	Items    []catalog.Skill `json:"items"`
	Total    int             `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"pageSize"`
}

func (s *Server) listCatalogSkills(w http.ResponseWriter, r *http.Request) {
	p, err := listParams(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	q := r.URL.Query()
	page, err := s.catalog.ListSkills(r.Context(), catalog.SkillFilter{
		ListParams: p,
		Category:   q.Get("category"),
		Difficulty: q.Get("difficulty"),
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CatalogPage{
		Items:    page.Items,
		Total:    page.Total,
		Page:     page.Page,
		PageSize: page.PageSize,
	})
}

func (s *Server) getCatalogSkill(w http.ResponseWriter, r *http.Request) {
	skill, err := s.catalog.GetSkill(r.Context(), r.PathValue("slug"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, skill)
}

func (s *Server) createCatalogSkill(w http.ResponseWriter, r *http.Request) {
	var req catalogSkillRequest
	if err := s.decode(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}
	sl, err := slugFor(req.Slug, req.Name)
	if err != nil {
		fail(w, r, err)
		return
	}
	created, err := s.catalog.CreateSkill(r.Context(), catalog.Skill{
		Name:        req.Name,
		Slug:        sl,
		Category:    req.Category,
		Description: req.Description,
		Tags:        req.Tags,
		Difficulty:  req.Difficulty,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) updateCatalogSkill(w http.ResponseWriter, r *http.Request) {
	var patch catalog.SkillPatch
	if err := s.decode(w, r, &patch); err != nil {
		fail(w, r, err)
		return
	}
	updated, err := s.catalog.UpdateSkill(r.Context(), r.PathValue("slug"), patch)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteCatalogSkill(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.DeleteSkill(r.Context(), r.PathValue("slug")); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listCatalogSkillLessons(w http.ResponseWriter, r *http.Request) {
	lessons, err := s.catalog.ListLessonsForSkill(r.Context(), r.PathValue("slug"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lessons)
}

func (s *Server) getCatalogLesson(w http.ResponseWriter, r *http.Request) {
	lesson, err := s.catalog.GetLesson(r.Context(), r.PathValue("slug"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lesson)
}

func (s *Server) createCatalogLesson(w http.ResponseWriter, r *http.Request) {
	var req catalogLessonRequest
	if err := s.decode(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}
	sl, err := slugFor(req.Slug, req.Title)
	if err != nil {
		fail(w, r, err)
		return
	}
	created, err := s.catalog.CreateLesson(r.Context(), catalog.Lesson{
		Title:      req.Title,
		Slug:       sl,
		Summary:    req.Summary,
		Content:    req.Content,
		Media:      req.Media,
		Tags:       req.Tags,
		Difficulty: req.Difficulty,
		Quiz:       req.Quiz,
		Badge:      catalog.Badge{Name: req.Badge.Name, Points: req.Badge.Points},
		SkillSlug:  req.SkillSlug,
		Category:   req.Category,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) updateCatalogLesson(w http.ResponseWriter, r *http.Request) {
	var patch catalog.LessonPatch
	if err := s.decode(w, r, &patch); err != nil {
		fail(w, r, err)
		return
	}
	updated, err := s.catalog.UpdateLesson(r.Context(), r.PathValue("slug"), patch)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteCatalogLesson(w http.ResponseWriter, r *http.Request) {
	if err := s.catalog.DeleteLesson(r.Context(), r.PathValue("slug")); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
