package api

import (
	"net/http"

	"github.com/p-n-ai/pai-learn/internal/learning"
)

type subjectRequest struct {
	Slug        string  `json:"slug" validate:"omitempty,slug"`
	Title       string  `json:"title" validate:"required,max=255"`
	Description *string `json:"description"`
}

type skillRequest struct {
	SubjectID   int64    `json:"subject_id" validate:"required,gt=0"`
	Name        string   `json:"name" validate:"required,max=255"`
	Slug        string   `json:"slug" validate:"omitempty,slug"`
	Description *string  `json:"description"`
	Level       string   `json:"level" validate:"omitempty,oneof=Beginner Intermediate Advanced"`
	Tags        []string `json:"tags" validate:"omitempty,dive,required"`
}

type moduleRequest struct {
	SubjectID   int64   `json:"subject_id" validate:"required,gt=0"`
	SkillID     *int64  `json:"skill_id" validate:"omitempty,gt=0"`
	Slug        string  `json:"slug" validate:"omitempty,slug"`
	Title       string  `json:"title" validate:"required,max=255"`
	Description *string `json:"description"`
	OrderIndex  int     `json:"order_index" validate:"min=0"`
}

type lessonRequest struct {
	ModuleID   int64  `json:"module_id" validate:"required,gt=0"`
	Slug       string `json:"slug" validate:"omitempty,slug"`
	Title      string `json:"title" validate:"required,max=255"`
	Content    string `json:"content"`
	OrderIndex int    `json:"order_index" validate:"min=0"`
}

// Subjects

func (s *Server) listSubjects(w http.ResponseWriter, r *http.Request) {
	p, err := listParams(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	page, err := s.store.ListSubjects(r.Context(), learning.SubjectFilter{
		ListParams: p,
		Slug:       r.URL.Query().Get("slug"),
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) createSubject(w http.ResponseWriter, r *http.Request) {
	var req subjectRequest
	if err := s.decode(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}
	sl, err := slugFor(req.Slug, req.Title)
	if err != nil {
		fail(w, r, err)
		return
	}
	created, err := s.store.CreateSubject(r.Context(), learning.Subject{
		Slug:        sl,
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) getSubject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}
	subj, err := s.store.GetSubject(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, subj)
}

func (s *Server) updateSubject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}
	var patch learning.SubjectPatch
	if err := s.decode(w, r, &patch); err != nil {
		fail(w, r, err)
		return
	}
	updated, err := s.store.UpdateSubject(r.Context(), id, patch)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteSubject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := s.store.DeleteSubject(r.Context(), id); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listSubjectModules(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}
	p, err := listParams(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	if _, err := s.store.GetSubject(r.Context(), id); err != nil {
		fail(w, r, err)
		return
	}
	page, err := s.store.ListModules(r.Context(), learning.ModuleFilter{ListParams: p, SubjectID: &id})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Skills

func (s *Server) listSkills(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	skills, err := s.store.ListSkills(r.Context(), learning.SkillFilter{
		SubjectSlug: q.Get("subject"),
		Level:       q.Get("level"),
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, skills)
}

func (s *Server) createSkill(w http.ResponseWriter, r *http.Request) {
	var req skillRequest
	if err := s.decode(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}
	sl, err := slugFor(req.Slug, req.Name)
	if err != nil {
		fail(w, r, err)
		return
	}
	created, err := s.store.CreateSkill(r.Context(), learning.Skill{
		SubjectID:   req.SubjectID,
		Name:        req.Name,
		Slug:        sl,
		Description: req.Description,
		Level:       req.Level,
		Tags:        req.Tags,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) getSkill(w http.ResponseWriter, r *http.Request) {
	skill, err := s.store.GetSkill(r.Context(), r.PathValue("slug"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, skill)
}

func (s *Server) updateSkill(w http.ResponseWriter, r *http.Request) {
	var patch learning.SkillPatch
	if err := s.decode(w, r, &patch); err != nil {
		fail(w, r, err)
		return
	}
	updated, err := s.store.UpdateSkill(r.Context(), r.PathValue("slug"), patch)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteSkill(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteSkill(r.Context(), r.PathValue("slug")); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listSkillModules(w http.ResponseWriter, r *http.Request) {
	skill, err := s.store.GetSkill(r.Context(), r.PathValue("slug"))
	if err != nil {
		fail(w, r, err)
		return
	}
	modules, err := s.store.SkillModules(r.Context(), skill.ID)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, modules)
}

// Modules

func (s *Server) listModules(w http.ResponseWriter, r *http.Request) {
	p, err := listParams(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	subjectID, err := queryID(r, "subject_id")
	if err != nil {
		fail(w, r, err)
		return
	}
	page, err := s.store.ListModules(r.Context(), learning.ModuleFilter{
		ListParams: p,
		SubjectID:  subjectID,
		Slug:       r.URL.Query().Get("slug"),
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) createModule(w http.ResponseWriter, r *http.Request) {
	var req moduleRequest
	if err := s.decode(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}
	sl, err := slugFor(req.Slug, req.Title)
	if err != nil {
		fail(w, r, err)
		return
	}
	created, err := s.store.CreateModule(r.Context(), learning.Module{
		SubjectID:   req.SubjectID,
		SkillID:     req.SkillID,
		Slug:        sl,
		Title:       req.Title,
		Description: req.Description,
		OrderIndex:  req.OrderIndex,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) getModule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}
	mod, err := s.store.GetModule(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mod)
}

func (s *Server) updateModule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}
	var patch learning.ModulePatch
	if err := s.decode(w, r, &patch); err != nil {
		fail(w, r, err)
		return
	}
	updated, err := s.store.UpdateModule(r.Context(), id, patch)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteModule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := s.store.DeleteModule(r.Context(), id); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listModuleLessons(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}
	p, err := listParams(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	if _, err := s.store.GetModule(r.Context(), id); err != nil {
		fail(w, r, err)
		return
	}
	page, err := s.store.ListLessons(r.Context(), learning.LessonFilter{ListParams: p, ModuleID: &id})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Lessons

func (s *Server) listLessons(w http.ResponseWriter, r *http.Request) {
	p, err := listParams(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	moduleID, err := queryID(r, "module_id")
	if err != nil {
		fail(w, r, err)
		return
	}
	page, err := s.store.ListLessons(r.Context(), learning.LessonFilter{
		ListParams: p,
		ModuleID:   moduleID,
		Slug:       r.URL.Query().Get("slug"),
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) createLesson(w http.ResponseWriter, r *http.Request) {
	var req lessonRequest
	if err := s.decode(w, r, &req); err != nil {
		fail(w, r, err)
		return
	}
	sl, err := slugFor(req.Slug, req.Title)
	if err != nil {
		fail(w, r, err)
		return
	}
	created, err := s.store.CreateLesson(r.Context(), learning.Lesson{
		ModuleID:   req.ModuleID,
		Slug:       sl,
		Title:      req.Title,
		Content:    req.Content,
		OrderIndex: req.OrderIndex,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) getLesson(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}
	lesson, err := s.store.GetLesson(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lesson)
}

func (s *Server) updateLesson(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}
	var patch learning.LessonPatch
	if err := s.decode(w, r, &patch); err != nil {
		fail(w, r, err)
		return
	}
	updated, err := s.store.UpdateLesson(r.Context(), id, patch)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteLesson(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := s.store.DeleteLesson(r.Context(), id); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
