package quizgen_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/p-n-ai/pai-learn/internal/ai"
	"github.com/p-n-ai/pai-learn/internal/quizgen"
)

const threeQuestions = `{"questions": [
	{"question": "What is 2+2?", "options": ["1", "2", "3", "4"], "answerIndex": 3},
	{"question": "What is 3x3?", "options": ["6", "9", "12", "33"], "answerIndex": 1},
	{"question": "What is 10/2?", "options": ["2", "5", "8", "20"], "answerIndex": 1}
]}`

func mockRouter(provider ai.Provider) *ai.Router {
	r := ai.NewRouter()
	r.Register("mock", provider)
	return r
}

func TestGenerator_Generate(t *testing.T) {
	mock := ai.NewMockProvider(threeQuestions)
	gen := quizgen.NewGenerator(quizgen.GeneratorConfig{AIRouter: mockRouter(mock), Model: "gpt-4o"})

	quiz, err := gen.Generate(context.Background(), quizgen.Request{
		LessonID:  7,
		Title:     "Arithmetic",
		Content:   "Adding and multiplying small numbers.",
		PassScore: 80,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if quiz.Title != "Arithmetic - Quiz" || quiz.LessonID != 7 || quiz.PassScore != 80 {
		t.Errorf("quiz = %+v", quiz)
	}
	if len(quiz.Questions) != 3 || *quiz.Questions[0].AnswerIndex != 3 {
		t.Errorf("questions = %+v", quiz.Questions)
	}

	req := mock.LastRequest
	if req == nil {
		t.Fatal("provider was not called")
	}
	if req.Task != ai.TaskQuizGeneration || req.ResponseFormat != ai.ResponseFormatJSON {
		t.Errorf("task = %v format = %q", req.Task, req.ResponseFormat)
	}
	if req.Temperature != 0.2 || req.Model != "gpt-4o" {
		t.Errorf("temperature = %v model = %q", req.Temperature, req.Model)
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
		t.Fatalf("messages = %+v", req.Messages)
	}
	user := req.Messages[1].Content
	for _, want := range []string{"Arithmetic", "Beginner", "Adding and multiplying"} {
		if !strings.Contains(user, want) {
			t.Errorf("user prompt missing %q", want)
		}
	}
}

func TestGenerator_NotConfigured(t *testing.T) {
	tests := []struct {
		name string
		gen  *quizgen.Generator
	}{
		{"nil router", quizgen.NewGenerator(quizgen.GeneratorConfig{})},
		{"empty router", quizgen.NewGenerator(quizgen.GeneratorConfig{AIRouter: ai.NewRouter()})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.gen.Configured() {
				t.Error("Configured() = true")
			}
			if _, err := tt.gen.Generate(context.Background(), quizgen.Request{Title: "x"}); !errors.Is(err, quizgen.ErrNotConfigured) {
				t.Errorf("Generate() error = %v, want ErrNotConfigured", err)
			}
		})
	}
}

func TestGenerator_ProviderFailure(t *testing.T) {
	mock := &ai.MockProvider{Err: errors.New("upstream 500")}
	gen := quizgen.NewGenerator(quizgen.GeneratorConfig{AIRouter: mockRouter(mock)})

	_, err := gen.Generate(context.Background(), quizgen.Request{Title: "x"})
	if !errors.Is(err, quizgen.ErrGeneration) {
		t.Errorf("Generate() error = %v, want ErrGeneration", err)
	}
}

func TestParseQuestions(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{"plain json", threeQuestions, false},
		{"fenced json", "```json\n" + threeQuestions + "\n```", false},
		{"fenced without tag", "```\n" + threeQuestions + "\n```", false},
		{"extra questions truncated", `{"questions": [
			{"question": "a", "options": ["1","2","3","4"], "answerIndex": 0},
			{"question": "b", "options": ["1","2","3","4"], "answerIndex": 1},
			{"question": "c", "options": ["1","2","3","4"], "answerIndex": 2},
			{"question": "d", "options": ["1","2","3","4"], "answerIndex": 3}
		]}`, false},
		{"invalid entries skipped", `{"questions": [
			{"question": "a", "options": ["1","2","3"], "answerIndex": 0},
			{"question": "b", "options": ["1","2","3","4"], "answerIndex": 1},
			{"question": "", "options": ["1","2","3","4"], "answerIndex": 1},
			{"question": "c", "options": ["1","2","3","4"], "answerIndex": 2},
			{"question": "d", "options": ["1","2","3","4"], "answerIndex": 7},
			{"question": "e", "options": ["1","2","3","4"], "answerIndex": 3}
		]}`, false},
		{"too few valid", `{"questions": [
			{"question": "a", "options": ["1","2","3","4"], "answerIndex": 0},
			{"question": "b", "options": ["1","2","3","4"], "answerIndex": 9}
		]}`, true},
		{"missing questions key", `{"items": []}`, true},
		{"not json", "Here is your quiz!", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := quizgen.ParseQuestions(tt.content)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseQuestions() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, quizgen.ErrGeneration) {
					t.Errorf("error = %v, want ErrGeneration", err)
				}
				return
			}
			if len(got) != quizgen.QuestionsPerQuiz {
				t.Errorf("len = %d, want %d", len(got), quizgen.QuestionsPerQuiz)
			}
		})
	}
}

func TestParseQuestions_SkipsInvalidInOrder(t *testing.T) {
	got, err := quizgen.ParseQuestions(`{"questions": [
		{"question": "a", "options": ["1","2","3"], "answerIndex": 0},
		{"question": "  b  ", "options": ["1","2","3","4"], "answerIndex": 1},
		{"question": "c", "options": ["1","2","3","4"], "answerIndex": 2},
		{"question": "d", "options": ["1","2","3","4"], "answerIndex": 3}
	]}`)
	if err != nil {
		t.Fatalf("ParseQuestions() error = %v", err)
	}
	if got[0].Question != "b" || got[2].Question != "d" {
		t.Errorf("questions = %q, %q, %q", got[0].Question, got[1].Question, got[2].Question)
	}
}

type failingBudget struct{ *ai.InMemoryBudget }

func (failingBudget) Check(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func TestGenerator_Budget(t *testing.T) {
	ctx := context.Background()
	mock := ai.NewMockProvider(threeQuestions)
	budget := ai.NewInMemoryBudget(0)
	budget.SetBudget("spent", 10)
	budget.Record(ctx, "spent", 10)
	gen := quizgen.NewGenerator(quizgen.GeneratorConfig{AIRouter: mockRouter(mock), Budget: budget})

	_, err := gen.Generate(ctx, quizgen.Request{Title: "T", Content: "C", Caller: "spent"})
	if !errors.Is(err, quizgen.ErrBudgetExceeded) {
		t.Fatalf("Generate() error = %v, want ErrBudgetExceeded", err)
	}
	if mock.Calls != 0 {
		t.Errorf("provider called %d times for a caller without budget", mock.Calls)
	}

	if _, err := gen.Generate(ctx, quizgen.Request{Title: "T", Content: "C", Caller: "u1"}); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	want := int64(10 + len(threeQuestions))
	if used, _, _ := budget.Usage(ctx, "u1"); used != want {
		t.Errorf("recorded usage = %d, want %d", used, want)
	}

	if _, err := gen.Generate(ctx, quizgen.Request{Title: "T", Content: "C"}); err != nil {
		t.Fatal(err)
	}
	if used, _, _ := budget.Usage(ctx, quizgen.AnonymousCaller); used != want {
		t.Errorf("anonymous usage = %d, want %d", used, want)
	}
}

func TestGenerator_BudgetRecordsRejectedOutput(t *testing.T) {
	ctx := context.Background()
	mock := ai.NewMockProvider(`{"questions": []}`)
	budget := ai.NewInMemoryBudget(0)
	gen := quizgen.NewGenerator(quizgen.GeneratorConfig{AIRouter: mockRouter(mock), Budget: budget})

	if _, err := gen.Generate(ctx, quizgen.Request{Title: "T", Caller: "u1"}); !errors.Is(err, quizgen.ErrGeneration) {
		t.Fatalf("Generate() error = %v, want ErrGeneration", err)
	}
	if used, _, _ := budget.Usage(ctx, "u1"); used == 0 {
		t.Error("tokens spent on unusable output were not recorded")
	}
}

func TestGenerator_BudgetStoreDown(t *testing.T) {
	mock := ai.NewMockProvider(threeQuestions)
	gen := quizgen.NewGenerator(quizgen.GeneratorConfig{
		AIRouter: mockRouter(mock),
		Budget:   failingBudget{InMemoryBudget: ai.NewInMemoryBudget(0)},
	})
	if _, err := gen.Generate(context.Background(), quizgen.Request{Title: "T", Caller: "u1"}); err != nil {
		t.Fatalf("Generate() error = %v, want generation to proceed", err)
	}
}
