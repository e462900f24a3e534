package learning_test

import (
	"context"
	"errors"
	"testing"

	"github.com/p-n-ai/pai-learn/internal/learning"
)

// fixture is a subject with one module holding three ordered lessons.
type fixture struct {
	subject learning.Subject
	module  learning.Module
	lessons []learning.Lesson
	quiz    learning.Activity
}

func sampleQuestions() []learning.Question {
	opts := []string{"a", "b", "c", "d"}
	return []learning.Question{
		learning.NewQuestion("q1", opts, 0),
		learning.NewQuestion("q2", opts, 1),
		learning.NewQuestion("q3", opts, 2),
	}
}

func seedFixture(t *testing.T, store learning.Store) fixture {
	t.Helper()
	ctx := t.Context()

	sub, err := store.CreateSubject(ctx, learning.Subject{Slug: "math", Title: "Math"})
	if err != nil {
		t.Fatalf("CreateSubject() error = %v", err)
	}
	mod, err := store.CreateModule(ctx, learning.Module{SubjectID: sub.ID, Slug: "algebra", Title: "Algebra"})
	if err != nil {
		t.Fatalf("CreateModule() error = %v", err)
	}
	f := fixture{subject: sub, module: mod}
	for i, slug := range []string{"intro", "equations", "graphs"} {
		l, err := store.CreateLesson(ctx, learning.Lesson{
			ModuleID: mod.ID, Slug: slug, Title: slug, OrderIndex: (i + 1) * 10,
		})
		if err != nil {
			t.Fatalf("CreateLesson(%s) error = %v", slug, err)
		}
		f.lessons = append(f.lessons, l)
	}
	f.quiz, err = store.CreateActivity(ctx, learning.Activity{
		LessonID:      f.lessons[0].ID,
		Type:          learning.ActivityQuiz,
		Title:         "Intro quiz",
		QuizQuestions: sampleQuestions(),
	})
	if err != nil {
		t.Fatalf("CreateActivity() error = %v", err)
	}
	return f
}

// runStoreTests exercises behaviour shared by every Store implementation.
func runStoreTests(t *testing.T, newStore func(t *testing.T) learning.Store) {
	t.Run("SubjectCRUD", func(t *testing.T) {
		store := newStore(t)
		ctx := t.Context()

		sub, err := store.CreateSubject(ctx, learning.Subject{Slug: "science", Title: "Science"})
		if err != nil {
			t.Fatalf("CreateSubject() error = %v", err)
		}
		if _, err := store.CreateSubject(ctx, learning.Subject{Slug: "science", Title: "Again"}); !errors.Is(err, learning.ErrConflict) {
			t.Errorf("duplicate slug error = %v, want ErrConflict", err)
		}

		title := "Natural Science"
		got, err := store.UpdateSubject(ctx, sub.ID, learning.SubjectPatch{Title: &title})
		if err != nil {
			t.Fatalf("UpdateSubject() error = %v", err)
		}
		if got.Title != title || got.Slug != "science" {
			t.Errorf("updated = %+v", got)
		}
		if _, err := store.UpdateSubject(ctx, sub.ID, learning.SubjectPatch{}); !errors.Is(err, learning.ErrInvalidArgument) {
			t.Errorf("empty patch error = %v, want ErrInvalidArgument", err)
		}

		if err := store.DeleteSubject(ctx, sub.ID); err != nil {
			t.Fatalf("DeleteSubject() error = %v", err)
		}
		if _, err := store.GetSubject(ctx, sub.ID); !errors.Is(err, learning.ErrNotFound) {
			t.Errorf("GetSubject() after delete error = %v, want ErrNotFound", err)
		}
		if err := store.DeleteSubject(ctx, sub.ID); !errors.Is(err, learning.ErrNotFound) {
			t.Errorf("second delete error = %v, want ErrNotFound", err)
		}
	})

	t.Run("ListSubjectsSearchAndPaging", func(t *testing.T) {
		store := newStore(t)
		ctx := t.Context()

		for _, s := range []learning.Subject{
			{Slug: "physics", Title: "Physics"},
			{Slug: "biology", Title: "Biology"},
			{Slug: "chemistry", Title: "Chemistry"},
		} {
			if _, err := store.CreateSubject(ctx, s); err != nil {
				t.Fatalf("CreateSubject() error = %v", err)
			}
		}

		page, err := store.ListSubjects(ctx, learning.SubjectFilter{ListParams: learning.ListParams{PageSize: 2}})
		if err != nil {
			t.Fatalf("ListSubjects() error = %v", err)
		}
		if page.Total != 3 || len(page.Items) != 2 {
			t.Fatalf("page = total %d items %d, want 3/2", page.Total, len(page.Items))
		}
		if page.Items[0].Title != "Biology" || page.Items[1].Title != "Chemistry" {
			t.Errorf("order = %s, %s; want title order", page.Items[0].Title, page.Items[1].Title)
		}

		page, err = store.ListSubjects(ctx, learning.SubjectFilter{ListParams: learning.ListParams{Search: "HYS"}})
		if err != nil {
			t.Fatalf("ListSubjects() error = %v", err)
		}
		if page.Total != 1 || page.Items[0].Slug != "physics" {
			t.Errorf("search result = %+v", page)
		}
	})

	t.Run("ModuleAndLessonReferences", func(t *testing.T) {
		store := newStore(t)
		ctx := t.Context()
		f := seedFixture(t, store)

		if _, err := store.CreateModule(ctx, learning.Module{SubjectID: 9999, Slug: "x", Title: "X"}); !errors.Is(err, learning.ErrInvalidArgument) {
			t.Errorf("module with bad subject error = %v, want ErrInvalidArgument", err)
		}
		if _, err := store.CreateModule(ctx, learning.Module{SubjectID: f.subject.ID, Slug: "algebra", Title: "Dup"}); !errors.Is(err, learning.ErrConflict) {
			t.Errorf("duplicate module slug error = %v, want ErrConflict", err)
		}
		if _, err := store.CreateLesson(ctx, learning.Lesson{ModuleID: f.module.ID, Slug: "other", Title: "Other", OrderIndex: 10}); !errors.Is(err, learning.ErrConflict) {
			t.Errorf("duplicate order_index error = %v, want ErrConflict", err)
		}
		if _, err := store.CreateActivity(ctx, learning.Activity{LessonID: 9999, Type: learning.ActivityContent}); !errors.Is(err, learning.ErrInvalidArgument) {
			t.Errorf("activity with bad lesson error = %v, want ErrInvalidArgument", err)
		}
	})

	t.Run("NextLessonSkipsDeleted", func(t *testing.T) {
		store := newStore(t)
		ctx := t.Context()
		f := seedFixture(t, store)

		next, ok, err := store.NextLesson(ctx, f.module.ID, f.lessons[0].OrderIndex)
		if err != nil || !ok || next.ID != f.lessons[1].ID {
			t.Fatalf("NextLesson() = %v, %v, %v; want lesson %d", next.ID, ok, err, f.lessons[1].ID)
		}

		if err := store.DeleteLesson(ctx, f.lessons[1].ID); err != nil {
			t.Fatalf("DeleteLesson() error = %v", err)
		}
		next, ok, err = store.NextLesson(ctx, f.module.ID, f.lessons[0].OrderIndex)
		if err != nil || !ok || next.ID != f.lessons[2].ID {
			t.Fatalf("NextLesson() after delete = %v, %v, %v; want lesson %d", next.ID, ok, err, f.lessons[2].ID)
		}

		_, ok, err = store.NextLesson(ctx, f.module.ID, f.lessons[2].OrderIndex)
		if err != nil || ok {
			t.Errorf("NextLesson() past last = %v, %v; want none", ok, err)
		}
	})

	t.Run("ActivityValidation", func(t *testing.T) {
		store := newStore(t)
		ctx := t.Context()
		f := seedFixture(t, store)

		_, err := store.CreateActivity(ctx, learning.Activity{LessonID: f.lessons[0].ID, Type: learning.ActivityQuiz})
		if !errors.Is(err, learning.ErrInvalidArgument) {
			t.Errorf("quiz without questions error = %v, want ErrInvalidArgument", err)
		}
		_, err = store.CreateActivity(ctx, learning.Activity{LessonID: f.lessons[0].ID, Type: "video"})
		if !errors.Is(err, learning.ErrInvalidArgument) {
			t.Errorf("bad type error = %v, want ErrInvalidArgument", err)
		}

		got, err := store.GetActivity(ctx, f.quiz.ID)
		if err != nil {
			t.Fatalf("GetActivity() error = %v", err)
		}
		if len(got.QuizQuestions) != 3 || *got.QuizQuestions[2].AnswerIndex != 2 {
			t.Errorf("questions = %+v", got.QuizQuestions)
		}
		if got.PassScore() != learning.DefaultPassScore {
			t.Errorf("PassScore() = %v, want default", got.PassScore())
		}

		first, err := store.FirstQuiz(ctx, f.lessons[0].ID)
		if err != nil || first.ID != f.quiz.ID {
			t.Errorf("FirstQuiz() = %d, %v; want %d", first.ID, err, f.quiz.ID)
		}
		if _, err := store.FirstQuiz(ctx, f.lessons[1].ID); !errors.Is(err, learning.ErrNotFound) {
			t.Errorf("FirstQuiz() on lesson without quiz error = %v, want ErrNotFound", err)
		}

		quizzes, err := store.ListActivities(ctx, learning.ActivityFilter{Type: learning.ActivityQuiz})
		if err != nil || quizzes.Total != 1 {
			t.Errorf("ListActivities(quiz) = %d, %v; want 1", quizzes.Total, err)
		}
		if _, err := store.ListActivities(ctx, learning.ActivityFilter{Type: "video"}); !errors.Is(err, learning.ErrInvalidArgument) {
			t.Errorf("invalid type filter error = %v, want ErrInvalidArgument", err)
		}
	})

	t.Run("WithTxRollsBack", func(t *testing.T) {
		store := newStore(t)
		ctx := t.Context()
		f := seedFixture(t, store)

		boom := errors.New("boom")
		err := store.WithTx(ctx, func(tx learning.Tx) error {
			if _, err := tx.AppendProgress(ctx, learning.ActivityAttempt("u1", f.quiz.ID, 100)); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("WithTx() error = %v, want boom", err)
		}

		page, err := store.ListProgress(ctx, learning.ProgressFilter{UserID: "u1"})
		if err != nil {
			t.Fatalf("ListProgress() error = %v", err)
		}
		if page.Total != 0 {
			t.Errorf("progress after rollback = %d, want 0", page.Total)
		}
	})

	t.Run("AppendAndLessonProgress", func(t *testing.T) {
		store := newStore(t)
		ctx := t.Context()
		f := seedFixture(t, store)

		recs, err := store.AppendProgress(ctx,
			learning.LessonCompleted("u1", f.lessons[0].ID, 100),
			learning.LessonUnlocked("u1", f.lessons[1].ID),
			learning.LessonUnlocked("u2", f.lessons[1].ID),
		)
		if err != nil {
			t.Fatalf("AppendProgress() error = %v", err)
		}
		if len(recs) != 3 || recs[0].ID == 0 {
			t.Fatalf("AppendProgress() = %+v", recs)
		}

		got, err := store.LessonProgress(ctx, "u1", f.lessons[0].ID, f.lessons[1].ID)
		if err != nil {
			t.Fatalf("LessonProgress() error = %v", err)
		}
		if len(got) != 2 || !got[0].Completed || !got[1].IsUnlockSentinel() {
			t.Errorf("LessonProgress() = %+v", got)
		}
	})

	t.Run("UpsertProgressLastWriteWins", func(t *testing.T) {
		store := newStore(t)
		ctx := t.Context()
		f := seedFixture(t, store)

		score := 40.0
		first, err := store.UpsertProgress(ctx, learning.ProgressUpsert{
			UserID: "u1", EntityType: "lesson", EntityID: f.lessons[0].ID, Status: "in_progress", Score: &score,
		})
		if err != nil {
			t.Fatalf("UpsertProgress() error = %v", err)
		}
		score = 90
		second, err := store.UpsertProgress(ctx, learning.ProgressUpsert{
			UserID: "u1", EntityType: "lesson", EntityID: f.lessons[0].ID, Status: "completed", Score: &score,
		})
		if err != nil {
			t.Fatalf("UpsertProgress() error = %v", err)
		}
		if second.ID != first.ID || !second.Completed || *second.Score != 90 {
			t.Errorf("second upsert = %+v, want update of %d", second, first.ID)
		}

		_, err = store.UpsertProgress(ctx, learning.ProgressUpsert{
			UserID: "u1", EntityType: "activity", EntityID: 9999, Status: "completed",
		})
		if !errors.Is(err, learning.ErrInvalidArgument) {
			t.Errorf("upsert with missing entity error = %v, want ErrInvalidArgument", err)
		}
	})

	t.Run("ListProgressFilters", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		f := seedFixture(t, store)

		if _, err := store.AppendProgress(ctx,
			learning.ActivityAttempt("u1", f.quiz.ID, 50),
			learning.LessonCompleted("u1", f.lessons[0].ID, 100),
		); err != nil {
			t.Fatalf("AppendProgress() error = %v", err)
		}
		lessonID := f.lessons[0].ID
		page, err := store.ListProgress(ctx, learning.ProgressFilter{UserID: "u1", LessonID: &lessonID})
		if err != nil {
			t.Fatalf("ListProgress() error = %v", err)
		}
		if page.Total != 1 || page.Items[0].LessonID == nil {
			t.Errorf("filtered page = %+v", page)
		}

		if err := store.DeleteProgress(ctx, page.Items[0].ID); err != nil {
			t.Fatalf("DeleteProgress() error = %v", err)
		}
		if _, err := store.GetProgress(ctx, page.Items[0].ID); !errors.Is(err, learning.ErrNotFound) {
			t.Errorf("GetProgress() after delete error = %v, want ErrNotFound", err)
		}
	})

	t.Run("Skills", func(t *testing.T) {
		store := newStore(t)
		ctx := t.Context()
		f := seedFixture(t, store)

		sk, err := store.CreateSkill(ctx, learning.Skill{SubjectID: f.subject.ID, Name: "Linear equations", Slug: "linear", Tags: []string{"algebra"}})
		if err != nil {
			t.Fatalf("CreateSkill() error = %v", err)
		}
		if sk.Level != learning.LevelBeginner {
			t.Errorf("Level = %q, want default Beginner", sk.Level)
		}
		if _, err := store.CreateSkill(ctx, learning.Skill{SubjectID: 9999, Name: "x", Slug: "x"}); !errors.Is(err, learning.ErrNotFound) {
			t.Errorf("skill with missing subject error = %v, want ErrNotFound", err)
		}
		if _, err := store.CreateSkill(ctx, learning.Skill{SubjectID: f.subject.ID, Name: "x", Slug: "y", Level: "Expert"}); !errors.Is(err, learning.ErrInvalidArgument) {
			t.Errorf("skill with bad level error = %v, want ErrInvalidArgument", err)
		}

		skillID := sk.ID
		if _, err := store.UpdateModule(ctx, f.module.ID, learning.ModulePatch{SkillID: &skillID}); err != nil {
			t.Fatalf("UpdateModule() error = %v", err)
		}
		mods, err := store.SkillModules(ctx, sk.ID)
		if err != nil || len(mods) != 1 || mods[0].ID != f.module.ID {
			t.Errorf("SkillModules() = %+v, %v", mods, err)
		}

		skills, err := store.ListSkills(ctx, learning.SkillFilter{SubjectSlug: "math"})
		if err != nil || len(skills) != 1 {
			t.Errorf("ListSkills() = %+v, %v", skills, err)
		}

		if err := store.DeleteSkill(ctx, "linear"); err != nil {
			t.Fatalf("DeleteSkill() error = %v", err)
		}
		if _, err := store.GetSkill(ctx, "linear"); !errors.Is(err, learning.ErrNotFound) {
			t.Errorf("GetSkill() after delete error = %v, want ErrNotFound", err)
		}
	})
}
