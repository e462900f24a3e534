package app_test

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/p-n-ai/pai-learn/internal/app"
	"github.com/p-n-ai/pai-learn/internal/learning"
	"github.com/p-n-ai/pai-learn/internal/platform/config"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Store: config.StoreConfig{Backend: config.BackendMemory},
		Log:   config.LogConfig{Level: "info", Format: "json"},
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.LogConfig
		wantDebug bool
		wantJSON  bool
	}{
		{name: "json info", cfg: config.LogConfig{Level: "info", Format: "json"}, wantJSON: true},
		{name: "text debug", cfg: config.LogConfig{Level: "debug", Format: "text"}, wantDebug: true},
		{name: "unknown level", cfg: config.LogConfig{Level: "loud", Format: "json"}, wantJSON: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := app.NewLogger(tt.cfg, &buf)
			if got := logger.Enabled(context.Background(), slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("debug enabled = %v, want %v", got, tt.wantDebug)
			}
			logger.Info("hello")
			if got := strings.HasPrefix(buf.String(), "{"); got != tt.wantJSON {
				t.Errorf("output %q, json = %v", buf.String(), got)
			}
		})
	}
}

func TestNew_Memory(t *testing.T) {
	a, err := app.New(t.Context(), memoryConfig())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close(context.Background())

	if len(a.Checks()) != 0 {
		t.Errorf("Checks() = %v, want none for in-memory backends", a.Checks())
	}
	if a.Quizzes != nil {
		t.Error("quiz generator should be disabled without a provider")
	}

	rec := httptest.NewRecorder()
	a.API().Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/subjects", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("GET /subjects status = %d", rec.Code)
	}
}

func TestNew_PostgresRequiresReachableDatabase(t *testing.T) {
	cfg := memoryConfig()
	cfg.Store.Backend = config.BackendPostgres
	cfg.Database.URL = "not a url"

	if _, err := app.New(t.Context(), cfg); err == nil {
		t.Fatal("New() should fail on an invalid database URL")
	}
}

func TestNew_WithAIProvider(t *testing.T) {
	cfg := memoryConfig()
	cfg.AI.DeepSeek.APIKey = "sk-test"

	a, err := app.New(t.Context(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if a.Quizzes == nil {
		t.Error("quiz generator should be configured")
	}
}

func TestSeed(t *testing.T) {
	a, err := app.New(t.Context(), memoryConfig())
	if err != nil {
		t.Fatal(err)
	}

	res, err := a.Seed(t.Context(), "../../seeds")
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	if res.Created == 0 || res.Existing != 0 {
		t.Errorf("first Seed() = %+v", res)
	}

	skills, err := a.Store.ListSkills(t.Context(), learning.SkillFilter{Level: "Beginner"})
	if err != nil {
		t.Fatal(err)
	}
	if len(skills) != 5 {
		t.Errorf("beginner skills = %d, want 5", len(skills))
	}

	again, err := a.Seed(t.Context(), "../../seeds")
	if err != nil {
		t.Fatal(err)
	}
	if again.Created != 0 || again.Existing != res.Created {
		t.Errorf("second Seed() = %+v, want all existing", again)
	}
}

func TestSeed_MissingDir(t *testing.T) {
	a, err := app.New(t.Context(), memoryConfig())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.Seed(t.Context(), t.TempDir()+"/nope"); err == nil {
		t.Fatal("Seed() should fail for a missing directory")
	}
}

func TestNewAIRouter(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.AIConfig
		want []string
	}{
		{name: "none", want: []string{}},
		{
			name: "all in fallback order",
			cfg: config.AIConfig{
				Ollama:     config.OllamaConfig{URL: "http://localhost:11434"},
				OpenRouter: config.OpenRouterConfig{APIKey: "or"},
				Google:     config.GoogleConfig{APIKey: "g"},
				Anthropic:  config.AnthropicConfig{APIKey: "ant"},
				DeepSeek:   config.DeepSeekConfig{APIKey: "ds"},
				OpenAI:     config.OpenAIConfig{APIKey: "oa", Model: "gpt-4o-mini"},
			},
			want: []string{"openai", "deepseek", "anthropic", "google", "openrouter", "ollama"},
		},
		{
			name: "local only",
			cfg:  config.AIConfig{Ollama: config.OllamaConfig{URL: "http://ollama:11434", Model: "qwen2.5"}},
			want: []string{"ollama"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := app.NewAIRouter(tt.cfg).Providers()
			if len(got) != len(tt.want) {
				t.Fatalf("Providers() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Providers()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestNew_BudgetWithoutCache(t *testing.T) {
	cfg := memoryConfig()
	cfg.AI.Ollama.URL = "http://127.0.0.1:1"
	cfg.AI.Budget = config.BudgetConfig{TokensPerCaller: 1000, WindowHours: 24}

	a, err := app.New(t.Context(), cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if !a.Quizzes.Configured() {
		t.Error("quiz generator should be configured with a local provider")
	}
}
