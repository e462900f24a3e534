// Package quizgen turns lesson content into a three-question multiple-choice
// quiz using the AI gateway.
package quizgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/p-n-ai/pai-learn/internal/ai"
	"github.com/p-n-ai/pai-learn/internal/learning"
)

// QuestionsPerQuiz is the number of questions every generated quiz carries.
const QuestionsPerQuiz = 3

const (
	defaultTimeout    = 20 * time.Second
	defaultDifficulty = learning.LevelBeginner
	temperature       = 0.2
)

var (
	// ErrNotConfigured is returned when no AI provider is available.
	ErrNotConfigured = errors.New("quiz generation is not configured")
	// ErrGeneration is returned when the provider fails or its output
	// cannot be turned into a valid quiz.
	ErrGeneration = errors.New("quiz generation failed")
	// ErrBudgetExceeded is returned when the caller has spent its token
	// budget.
	ErrBudgetExceeded = errors.New("quiz generation budget exceeded")
)

// AnonymousCaller is the budget key for requests that name no caller.
const AnonymousCaller = "anonymous"

// GeneratorConfig holds dependencies for the quiz generator.
type GeneratorConfig struct {
	AIRouter *ai.Router
	Budget   ai.BudgetChecker // optional per-caller token budget
	Model    string           // optional model override
	Timeout  time.Duration    // per generation call (default 20s)
}

// Generator builds quizzes from lesson content.
type Generator struct {
	aiRouter *ai.Router
	budget   ai.BudgetChecker
	model    string
	timeout  time.Duration
}

// NewGenerator creates a quiz generator.
func NewGenerator(cfg GeneratorConfig) *Generator {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Generator{
		aiRouter: cfg.AIRouter,
		budget:   cfg.Budget,
		model:    cfg.Model,
		timeout:  timeout,
	}
}

// Configured reports whether a provider is available.
func (g *Generator) Configured() bool {
	return g != nil && g.aiRouter != nil && g.aiRouter.HasProvider()
}

// Request describes the lesson to build a quiz for.
type Request struct {
	LessonID   int64
	Title      string
	Content    string
	Difficulty string
	PassScore  float64
	Caller     string // budget key, AnonymousCaller when empty
}

// Quiz is a generated quiz ready to be stored as a quiz activity.
type Quiz struct {
	LessonID  int64
	Title     string
	PassScore float64
	Questions []learning.Question
}

// Generate asks the model for a quiz and validates its answer.
func (g *Generator) Generate(ctx context.Context, req Request) (Quiz, error) {
	if !g.Configured() {
		return Quiz{}, ErrNotConfigured
	}
	difficulty := req.Difficulty
	if difficulty == "" {
		difficulty = defaultDifficulty
	}
	caller := req.Caller
	if caller == "" {
		caller = AnonymousCaller
	}
	if err := g.checkBudget(ctx, caller); err != nil {
		return Quiz{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.aiRouter.Complete(ctx, ai.CompletionRequest{
		Messages: []ai.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(req.Title, req.Content, difficulty)},
		},
		Model:          g.model,
		Temperature:    temperature,
		ResponseFormat: ai.ResponseFormatJSON,
		Task:           ai.TaskQuizGeneration,
	})
	if err != nil {
		slog.Error("quiz generation request failed", "lesson_id", req.LessonID, "error", err)
		return Quiz{}, fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	g.recordUsage(ctx, caller, resp)

	questions, err := ParseQuestions(resp.Content)
	if err != nil {
		slog.Error("quiz generation output rejected", "lesson_id", req.LessonID, "model", resp.Model, "error", err)
		return Quiz{}, err
	}

	return Quiz{
		LessonID:  req.LessonID,
		Title:     QuizTitle(req.Title),
		PassScore: req.PassScore,
		Questions: questions,
	}, nil
}

// checkBudget refuses callers without budget left. A failing budget store
// does not block generation.
func (g *Generator) checkBudget(ctx context.Context, caller string) error {
	if g.budget == nil {
		return nil
	}
	ok, err := g.budget.Check(ctx, caller)
	if err != nil {
		slog.Warn("budget check failed, allowing request", "caller", caller, "error", err)
		return nil
	}
	if !ok {
		slog.Info("quiz generation refused, budget exceeded", "caller", caller)
		return ErrBudgetExceeded
	}
	return nil
}

func (g *Generator) recordUsage(ctx context.Context, caller string, resp ai.CompletionResponse) {
	if g.budget == nil {
		return
	}
	if err := g.budget.Record(ctx, caller, resp.TotalTokens()); err != nil {
		slog.Warn("recording token usage failed", "caller", caller, "tokens", resp.TotalTokens(), "error", err)
	}
}

// QuizTitle names the quiz activity of a lesson.
func QuizTitle(lessonTitle string) string {
	return lessonTitle + " - Quiz"
}

// ParseQuestions extracts exactly QuestionsPerQuiz valid questions from model
// output. Code fences around the JSON are tolerated and invalid entries are
// skipped.
func ParseQuestions(content string) ([]learning.Question, error) {
	var payload struct {
		Questions []json.RawMessage `json:"questions"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &payload); err != nil {
		return nil, fmt.Errorf("%w: decode model output: %w", ErrGeneration, err)
	}

	questions := make([]learning.Question, 0, QuestionsPerQuiz)
	for _, raw := range payload.Questions {
		if len(questions) == QuestionsPerQuiz {
			break
		}
		var q learning.Question
		if err := json.Unmarshal(raw, &q); err != nil {
			continue
		}
		q.Question = strings.TrimSpace(q.Question)
		if learning.ValidateQuestion(q) != nil {
			continue
		}
		questions = append(questions, q)
	}
	if len(questions) != QuestionsPerQuiz {
		return nil, fmt.Errorf("%w: model returned %d valid questions, want %d", ErrGeneration, len(questions), QuestionsPerQuiz)
	}
	return questions, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.Trim(s, "`")
	s = strings.TrimPrefix(s, "json")
	return strings.TrimSpace(s)
}
