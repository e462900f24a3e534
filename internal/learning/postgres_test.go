package learning_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/p-n-ai/pai-learn/internal/learning"
	"github.com/p-n-ai/pai-learn/internal/progression"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("pai_learn"),
		postgres.WithUsername("pai"),
		postgres.WithPassword("pai"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	if _, err := pool.Exec(ctx, learning.Schema); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return pool
}

func TestPostgresStore(t *testing.T) {
	pool := startPostgres(t)

	runStoreTests(t, func(t *testing.T) learning.Store {
		_, err := pool.Exec(t.Context(),
			`TRUNCATE progress, activities, lessons, modules, skills, subjects RESTART IDENTITY CASCADE`)
		if err != nil {
			t.Fatalf("truncate: %v", err)
		}
		store, err := learning.NewPostgresStore(pool)
		if err != nil {
			t.Fatalf("NewPostgresStore() error = %v", err)
		}
		return store
	})
}

func TestPostgresStore_SchemaIsIdempotent(t *testing.T) {
	pool := startPostgres(t)

	if _, err := pool.Exec(t.Context(), learning.Schema); err != nil {
		t.Fatalf("re-apply schema: %v", err)
	}
}

func TestPostgresStore_MalformedStoredQuestion(t *testing.T) {
	pool := startPostgres(t)
	store, err := learning.NewPostgresStore(pool)
	if err != nil {
		t.Fatalf("NewPostgresStore() error = %v", err)
	}
	ctx := t.Context()
	f := seedFixture(t, store)

	_, err = pool.Exec(ctx,
		`UPDATE activities SET quiz_questions = '[{"question":"q","options":["a","b","c","d"],"answerIndex":1}, {"question":"broken"}]'::jsonb
		 WHERE id = $1`, f.quiz.ID)
	if err != nil {
		t.Fatalf("corrupt question: %v", err)
	}

	got, err := store.GetActivity(ctx, f.quiz.ID)
	if err != nil {
		t.Fatalf("GetActivity() error = %v", err)
	}
	if len(got.QuizQuestions) != 2 {
		t.Fatalf("questions = %d, want 2", len(got.QuizQuestions))
	}
	if _, ok := got.QuizQuestions[1].Grade(0); ok {
		t.Error("question without answerIndex should be ungradeable")
	}
}

func TestPostgresStore_QuestionsNotAList(t *testing.T) {
	pool := startPostgres(t)
	store, err := learning.NewPostgresStore(pool)
	if err != nil {
		t.Fatalf("NewPostgresStore() error = %v", err)
	}
	ctx := t.Context()
	f := seedFixture(t, store)

	if _, err := pool.Exec(ctx, `UPDATE activities SET quiz_questions = '{}'::jsonb WHERE id = $1`, f.quiz.ID); err != nil {
		t.Fatalf("corrupt questions: %v", err)
	}

	got, err := store.GetActivity(ctx, f.quiz.ID)
	if err != nil {
		t.Fatalf("GetActivity() error = %v", err)
	}
	if len(got.QuizQuestions) != 0 {
		t.Errorf("questions = %v, want none", got.QuizQuestions)
	}

	engine := progression.NewEngine(progression.EngineConfig{Store: store})
	_, err = engine.SubmitQuiz(ctx, progression.Submission{UserID: "u1", ActivityID: f.quiz.ID, Answers: []int{0}})
	if !errors.Is(err, learning.ErrInvalidArgument) {
		t.Errorf("SubmitQuiz() error = %v, want ErrInvalidArgument", err)
	}
	page, err := store.ListProgress(ctx, learning.ProgressFilter{UserID: "u1"})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 0 {
		t.Errorf("progress records = %d, want 0", page.Total)
	}
}

func TestNewPostgresStore_NilPool(t *testing.T) {
	if _, err := learning.NewPostgresStore(nil); err == nil {
		t.Error("NewPostgresStore(nil) should fail")
	}
}
