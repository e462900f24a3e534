package seed_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/p-n-ai/pai-learn/internal/catalog"
	"github.com/p-n-ai/pai-learn/internal/learning"
	"github.com/p-n-ai/pai-learn/internal/seed"
)

const basicYAML = `
subjects:
  - slug: digital
    title: Digital
    description: Digital topic
    skills:
      - slug: digital-beginner
        name: Digital Beginner
        level: Beginner
        tags: [digital]
        modules:
          - slug: digital-beginner-module-1
            title: Getting Started
            order_index: 0
            lessons:
              - slug: first-steps
                title: First Steps
                content: Welcome
                order_index: 0
                activities:
                  - type: content
                    title: Intro
                    content: Read this.
                  - type: quiz
                    title: First Steps - Quiz
                    order_index: 1
                    pass_score: 80
                    questions:
                      - question: Pick B
                        options: [A, B, C, D]
                        answerIndex: 1
              - slug: second-steps
                title: Second Steps
                content: More
                order_index: 1
    modules:
      - slug: digital-extras
        title: Extras
        order_index: 5
catalog:
  skills:
    - slug: python-basics
      name: Python Basics
      category: programming
      difficulty: Beginner
      tags: [python]
  lessons:
    - slug: intro-to-python
      title: Introduction to Python
      content: Python is readable.
      skill_slug: python-basics
      category: programming
      quiz:
        - question: Q1
          options: [a, b, c, d]
          answerIndex: 0
        - question: Q2
          options: [a, b, c, d]
          answerIndex: 1
        - question: Q3
          options: [a, b, c, d]
          answerIndex: 2
      badge:
        name: Pythonista
        points: 50
`

// subjects, skills, modules, lessons, activities and catalog entries in basicYAML.
const basicEntities = 1 + 1 + 2 + 2 + 2 + 2

func TestParse(t *testing.T) {
	f, err := seed.Parse([]byte(basicYAML))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(f.Subjects) != 1 || len(f.Subjects[0].Skills) != 1 {
		t.Fatalf("subjects = %+v", f.Subjects)
	}
	act := f.Subjects[0].Skills[0].Modules[0].Lessons[0].Activities[1]
	if act.PassScore == nil || *act.PassScore != 80 {
		t.Errorf("pass_score = %v, want 80", act.PassScore)
	}
	if act.Questions[0].AnswerIndex != 1 {
		t.Errorf("answerIndex = %d, want 1", act.Questions[0].AnswerIndex)
	}
	if got := f.Catalog.Lessons[0].Badge.Points; got != 50 {
		t.Errorf("badge points = %d, want 50", got)
	}
}

func TestParse_RejectsUnknownKeys(t *testing.T) {
	_, err := seed.Parse([]byte("subjects:\n  - slug: x\n    titel: typo\n"))
	if err == nil {
		t.Fatal("Parse() expected error for unknown key")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	write("basic.yaml", basicYAML)
	write("broken.yml", "subjects: [oops")
	write("notes.txt", "ignored")

	files, err := seed.Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(files) != 1 {
		t.Errorf("files = %d, want 1 (invalid and non-yaml skipped)", len(files))
	}
}

func TestLoad_MissingDir(t *testing.T) {
	if _, err := seed.Load(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("Load() expected error for missing directory")
	}
}

func TestLoad_NotADirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.yaml")
	if err := os.WriteFile(path, []byte(basicYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := seed.Load(path); err == nil {
		t.Error("Load() expected error for a file path")
	}
}

func TestSeeder_Apply(t *testing.T) {
	ctx := context.Background()
	store := learning.NewMemoryStore()
	cat := catalog.NewMemoryStore()

	f, err := seed.Parse([]byte(basicYAML))
	if err != nil {
		t.Fatal(err)
	}

	res, err := seed.NewSeeder(store, cat).Apply(ctx, f)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if res.Created != basicEntities || res.Existing != 0 {
		t.Errorf("result = %+v, want %d created", res, basicEntities)
	}

	skill, err := store.GetSkill(ctx, "digital-beginner")
	if err != nil {
		t.Fatalf("GetSkill() error = %v", err)
	}
	mods, err := store.SkillModules(ctx, skill.ID)
	if err != nil || len(mods) != 1 {
		t.Fatalf("SkillModules() = %v, %v; want 1 module", mods, err)
	}
	lessons, err := store.ModuleLessons(ctx, mods[0].ID)
	if err != nil || len(lessons) != 2 {
		t.Fatalf("ModuleLessons() = %v, %v; want 2 lessons", lessons, err)
	}

	quiz, err := store.FirstQuiz(ctx, lessons[0].ID)
	if err != nil {
		t.Fatalf("FirstQuiz() error = %v", err)
	}
	if quiz.PassScore() != 80 || len(quiz.QuizQuestions) != 1 {
		t.Errorf("quiz = %+v", quiz)
	}

	extras, err := store.ListModules(ctx, learning.ModuleFilter{Slug: "digital-extras"})
	if err != nil || extras.Total != 1 {
		t.Fatalf("ListModules(digital-extras) = %+v, %v", extras, err)
	}
	if extras.Items[0].SkillID != nil {
		t.Errorf("subject-level module has skill_id %v", *extras.Items[0].SkillID)
	}

	lesson, err := cat.GetLesson(ctx, "intro-to-python")
	if err != nil {
		t.Fatalf("catalog GetLesson() error = %v", err)
	}
	if lesson.Difficulty != learning.LevelBeginner || lesson.Badge.Name != "Pythonista" {
		t.Errorf("catalog lesson = %+v", lesson)
	}
}

func TestSeeder_Idempotent(t *testing.T) {
	ctx := context.Background()
	store := learning.NewMemoryStore()
	cat := catalog.NewMemoryStore()
	f, err := seed.Parse([]byte(basicYAML))
	if err != nil {
		t.Fatal(err)
	}

	s := seed.NewSeeder(store, cat)
	if _, err := s.Apply(ctx, f); err != nil {
		t.Fatalf("first Apply() error = %v", err)
	}
	res, err := s.Apply(ctx, f)
	if err != nil {
		t.Fatalf("second Apply() error = %v", err)
	}
	if res.Created != 0 || res.Existing != basicEntities {
		t.Errorf("second result = %+v, want 0 created, %d existing", res, basicEntities)
	}

	acts, err := store.ListActivities(ctx, learning.ActivityFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if acts.Total != 2 {
		t.Errorf("activities = %d, want 2", acts.Total)
	}
}

func TestSeeder_NilCatalog(t *testing.T) {
	f, err := seed.Parse([]byte(basicYAML))
	if err != nil {
		t.Fatal(err)
	}
	res, err := seed.NewSeeder(learning.NewMemoryStore(), nil).Apply(context.Background(), f)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if res.Created != basicEntities-2 {
		t.Errorf("created = %d, want %d without catalog", res.Created, basicEntities-2)
	}
}

func TestSeeder_InvalidContent(t *testing.T) {
	f, err := seed.Parse([]byte(`
subjects:
  - slug: s
    title: S
    skills:
      - slug: bad
        name: Bad
        level: Expert
`))
	if err != nil {
		t.Fatal(err)
	}
	_, err = seed.NewSeeder(learning.NewMemoryStore(), nil).Apply(context.Background(), f)
	if err == nil || !strings.Contains(err.Error(), "skill bad") {
		t.Errorf("Apply() error = %v, want skill error", err)
	}
}

func TestBundledSeeds(t *testing.T) {
	files, err := seed.Load(filepath.Join("..", "..", "seeds"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(files) == 0 {
		t.Fatal("no bundled seed files")
	}
	store := learning.NewMemoryStore()
	if _, err := seed.NewSeeder(store, catalog.NewMemoryStore()).Apply(context.Background(), files...); err != nil {
		t.Fatalf("Apply(bundled) error = %v", err)
	}
	skills, err := store.ListSkills(context.Background(), learning.SkillFilter{Level: learning.LevelAdvanced})
	if err != nil {
		t.Fatal(err)
	}
	if len(skills) != 5 {
		t.Errorf("advanced skills = %d, want 5", len(skills))
	}
}
