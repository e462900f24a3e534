package learning_test

import (
	"testing"

	"github.com/p-n-ai/pai-learn/internal/learning"
)

func TestMemoryStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T) learning.Store {
		return learning.NewMemoryStore()
	})
}

func TestMemoryStore_ReturnedQuestionsAreCopies(t *testing.T) {
	store := learning.NewMemoryStore()
	f := seedFixture(t, store)

	got, err := store.GetActivity(t.Context(), f.quiz.ID)
	if err != nil {
		t.Fatalf("GetActivity() error = %v", err)
	}
	f.quiz.QuizQuestions[0].Question = "mutated"

	again, _ := store.GetActivity(t.Context(), f.quiz.ID)
	if again.QuizQuestions[0].Question != got.QuizQuestions[0].Question {
		t.Error("mutating a returned activity changed the stored one")
	}
}
