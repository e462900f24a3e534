// Package api exposes the learning hierarchy, the progression engine, the
// quiz generator and the content catalog over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/p-n-ai/pai-learn/internal/catalog"
	"github.com/p-n-ai/pai-learn/internal/learning"
	"github.com/p-n-ai/pai-learn/internal/platform/auth"
	"github.com/p-n-ai/pai-learn/internal/platform/slug"
	"github.com/p-n-ai/pai-learn/internal/progression"
	"github.com/p-n-ai/pai-learn/internal/quizgen"
)

const maxBodyBytes = 1 << 20

// Config holds dependencies for the HTTP API.
type Config struct {
	Store   learning.Store
	Catalog catalog.Store
	Engine  *progression.Engine
	Quizzes *quizgen.Generator
	Auth    *auth.Authenticator
}

// Server serves the REST API.
type Server struct {
	store    learning.Store
	catalog  catalog.Store
	engine   *progression.Engine
	quizzes  *quizgen.Generator
	auth     *auth.Authenticator
	validate *validator.Validate
}

// New creates the API server. Missing stores fall back to in-memory ones, a
// missing generator answers 503 and a missing authenticator rejects every
// admin request with 503.
func New(cfg Config) *Server {
	store := cfg.Store
	if store == nil {
		store = learning.NewMemoryStore()
	}
	cat := cfg.Catalog
	if cat == nil {
		cat = catalog.NewMemoryStore()
	}
	engine := cfg.Engine
	if engine == nil {
		engine = progression.NewEngine(progression.EngineConfig{Store: store})
	}
	authn := cfg.Auth
	if authn == nil {
		authn = auth.New("", 0)
	}
	return &Server{
		store:    store,
		catalog:  cat,
		engine:   engine,
		quizzes:  cfg.Quizzes,
		auth:     authn,
		validate: newValidator(),
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slug.Valid(fl.Field().String())
	})
	return v
}

// Handler returns the routes wrapped in the request id and access log
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return Middleware(mux)
}

// Register adds every API route to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /subjects", s.listSubjects)
	mux.HandleFunc("POST /subjects", s.createSubject)
	mux.HandleFunc("GET /subjects/{id}", s.getSubject)
	mux.HandleFunc("PUT /subjects/{id}", s.updateSubject)
	mux.HandleFunc("DELETE /subjects/{id}", s.deleteSubject)
	mux.HandleFunc("GET /subjects/{id}/modules", s.listSubjectModules)

	mux.HandleFunc("GET /skills", s.listSkills)
	mux.HandleFunc("POST /skills", s.createSkill)
	mux.HandleFunc("GET /skills/{slug}", s.getSkill)
	mux.HandleFunc("PUT /skills/{slug}", s.updateSkill)
	mux.HandleFunc("DELETE /skills/{slug}", s.deleteSkill)
	mux.HandleFunc("GET /skills/{slug}/modules", s.listSkillModules)

	mux.HandleFunc("GET /modules", s.listModules)
	mux.HandleFunc("POST /modules", s.createModule)
	mux.HandleFunc("GET /modules/{id}", s.getModule)
	mux.HandleFunc("PUT /modules/{id}", s.updateModule)
	mux.HandleFunc("DELETE /modules/{id}", s.deleteModule)
	mux.HandleFunc("GET /modules/{id}/lessons", s.listModuleLessons)

	mux.HandleFunc("GET /lessons", s.listLessons)
	mux.HandleFunc("POST /lessons", s.createLesson)
	mux.HandleFunc("GET /lessons/{id}", s.getLesson)
	mux.HandleFunc("PUT /lessons/{id}", s.updateLesson)
	mux.HandleFunc("DELETE /lessons/{id}", s.deleteLesson)
	mux.HandleFunc("GET /lessons/{id}/activities", s.listLessonActivities)

	mux.HandleFunc("GET /activities", s.listActivities)
	mux.HandleFunc("POST /activities", s.createActivity)
	mux.HandleFunc("GET /activities/{id}", s.getActivity)
	mux.HandleFunc("PUT /activities/{id}", s.updateActivity)
	mux.HandleFunc("DELETE /activities/{id}", s.deleteActivity)

	mux.HandleFunc("GET /quizzes", s.listQuizzes)
	mux.HandleFunc("POST /quizzes", s.createQuiz)
	mux.HandleFunc("GET /quizzes/{id}", s.getQuiz)
	mux.HandleFunc("PUT /quizzes/{id}", s.updateQuiz)
	mux.HandleFunc("DELETE /quizzes/{id}", s.deleteQuiz)

	mux.HandleFunc("GET /progress", s.listProgress)
	mux.HandleFunc("POST /progress", s.upsertProgress)
	mux.HandleFunc("GET /progress/export", s.exportProgress)
	mux.HandleFunc("GET /progress/lessons/{id}/status", s.lessonStatus)
	mux.HandleFunc("GET /progress/modules/{id}", s.moduleProgress)
	mux.HandleFunc("GET /progress/{id}", s.getProgress)
	mux.HandleFunc("DELETE /progress/{id}", s.deleteProgress)

	mux.HandleFunc("POST /ai/quiz/generate", s.generateQuiz)
	mux.HandleFunc("GET /ai/quiz/lesson/{lesson_id}", s.lessonQuiz)
	mux.HandleFunc("POST /ai/quiz/submit", s.submitQuiz)

	mux.HandleFunc("GET /content/skills", s.listCatalogSkills)
	mux.HandleFunc("POST /content/skills", s.requireAdmin(s.createCatalogSkill))
	mux.HandleFunc("GET /content/skills/{slug}", s.getCatalogSkill)
	mux.HandleFunc("PUT /content/skills/{slug}", s.requireAdmin(s.updateCatalogSkill))
	mux.HandleFunc("DELETE /content/skills/{slug}", s.requireAdmin(s.deleteCatalogSkill))
	mux.HandleFunc("GET /content/skills/{slug}/lessons", s.listCatalogSkillLessons)
	mux.HandleFunc("GET /content/lessons/{slug}", s.getCatalogLesson)
	mux.HandleFunc("POST /content/lessons", s.requireAdmin(s.createCatalogLesson))
	mux.HandleFunc("PUT /content/lessons/{slug}", s.requireAdmin(s.updateCatalogLesson))
	mux.HandleFunc("DELETE /content/lessons/{slug}", s.requireAdmin(s.deleteCatalogLesson))
}

// decode reads a JSON body into dst and validates it when dst is a struct.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("request body is required")
		}
		return badRequest("invalid JSON body: %v", err)
	}
	if reflect.Indirect(reflect.ValueOf(dst)).Kind() != reflect.Struct {
		return nil
	}
	return s.validate.Struct(dst)
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, badRequest("invalid %s %q", name, raw)
	}
	return id, nil
}

func queryID(r *http.Request, name string) (*int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, badRequest("invalid %s %q", name, raw)
	}
	return &id, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest("invalid %s %q", name, raw)
	}
	return n, nil
}

// listParams reads search, page and page_size. Pagination bounds are applied
// by the stores.
func listParams(r *http.Request) (learning.ListParams, error) {
	page, err := queryInt(r, "page")
	if err != nil {
		return learning.ListParams{}, err
	}
	size, err := queryInt(r, "page_size")
	if err != nil {
		return learning.ListParams{}, err
	}
	return learning.ListParams{
		Search:   strings.TrimSpace(r.URL.Query().Get("search")),
		Page:     page,
		PageSize: size,
	}, nil
}

// slugFor returns explicit, or a slug derived from title when explicit is
// empty.
func slugFor(explicit, title string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if s := slug.Make(title); s != "" {
		return s, nil
	}
	return "", validationFailed(map[string]string{"slug": "required: title has no usable characters"})
}
