// Package seed loads YAML content files and applies them to the stores.
// Applying is idempotent: every entity is looked up by slug first and only
// created when missing.
package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/p-n-ai/pai-learn/internal/catalog"
	"github.com/p-n-ai/pai-learn/internal/learning"
)

// Load reads every .yaml or .yml file under dir. Files that do not parse
// are skipped with a warning.
func Load(dir string) ([]File, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("reading seed directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("seed path %s is not a directory", dir)
	}

	var files []File
	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if !strings.HasSuffix(path, ".yaml") && !strings.HasSuffix(path, ".yml") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		f, err := Parse(data)
		if err != nil {
			slog.Warn("skipping invalid seed YAML", "path", path, "error", err)
			return nil
		}
		files = append(files, f)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading seeds: %w", err)
	}
	return files, nil
}

// Parse decodes one seed document. Unknown keys are rejected.
func Parse(data []byte) (File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return File{}, fmt.Errorf("decoding seed: %w", err)
	}
	return f, nil
}

// Result counts what an Apply call did.
type Result struct {
	Created  int
	Existing int
}

// Seeder applies seed files to the relational store and, when set, the
// document catalog.
type Seeder struct {
	store   learning.Store
	catalog catalog.Store
	res     Result
}

// NewSeeder creates a seeder. cat may be nil to skip catalog content.
func NewSeeder(store learning.Store, cat catalog.Store) *Seeder {
	return &Seeder{store: store, catalog: cat}
}

// Apply ensures every entity in files exists.
func (s *Seeder) Apply(ctx context.Context, files ...File) (Result, error) {
	s.res = Result{}
	for _, f := range files {
		for _, subj := range f.Subjects {
			if err := s.subject(ctx, subj); err != nil {
				return s.res, fmt.Errorf("seeding subject %s: %w", subj.Slug, err)
			}
		}
		if err := s.applyCatalog(ctx, f.Catalog); err != nil {
			return s.res, err
		}
	}
	slog.Info("seed applied", "created", s.res.Created, "existing", s.res.Existing)
	return s.res, nil
}

func (s *Seeder) count(created bool) {
	if created {
		s.res.Created++
	} else {
		s.res.Existing++
	}
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func questions(in []Question) []learning.Question {
	out := make([]learning.Question, len(in))
	for i, q := range in {
		out[i] = learning.NewQuestion(q.Question, q.Options, q.AnswerIndex)
	}
	return out
}

func (s *Seeder) subject(ctx context.Context, in Subject) error {
	page, err := s.store.ListSubjects(ctx, learning.SubjectFilter{Slug: in.Slug})
	if err != nil {
		return err
	}

	var subj learning.Subject
	if len(page.Items) > 0 {
		subj = page.Items[0]
	} else {
		subj, err = s.store.CreateSubject(ctx, learning.Subject{
			Slug:        in.Slug,
			Title:       in.Title,
			Description: optional(in.Description),
		})
		if err != nil {
			return err
		}
	}
	s.count(len(page.Items) == 0)

	for _, sk := range in.Skills {
		skill, err := s.skill(ctx, subj, sk)
		if err != nil {
			return fmt.Errorf("skill %s: %w", sk.Slug, err)
		}
		for _, m := range sk.Modules {
			if err := s.module(ctx, subj.ID, &skill.ID, m); err != nil {
				return fmt.Errorf("module %s: %w", m.Slug, err)
			}
		}
	}
	for _, m := range in.Modules {
		if err := s.module(ctx, subj.ID, nil, m); err != nil {
			return fmt.Errorf("module %s: %w", m.Slug, err)
		}
	}
	return nil
}

func (s *Seeder) skill(ctx context.Context, subj learning.Subject, in Skill) (learning.Skill, error) {
	existing, err := s.store.GetSkill(ctx, in.Slug)
	if err == nil {
		s.count(false)
		return existing, nil
	}
	if !errors.Is(err, learning.ErrNotFound) {
		return learning.Skill{}, err
	}

	created, err := s.store.CreateSkill(ctx, learning.Skill{
		SubjectID:   subj.ID,
		Name:        in.Name,
		Slug:        in.Slug,
		Description: optional(in.Description),
		Level:       in.Level,
		Tags:        in.Tags,
	})
	if err != nil {
		return learning.Skill{}, err
	}
	s.count(true)
	return created, nil
}

func (s *Seeder) module(ctx context.Context, subjectID int64, skillID *int64, in Module) error {
	page, err := s.store.ListModules(ctx, learning.ModuleFilter{SubjectID: &subjectID, Slug: in.Slug})
	if err != nil {
		return err
	}

	var mod learning.Module
	if len(page.Items) > 0 {
		mod = page.Items[0]
	} else {
		mod, err = s.store.CreateModule(ctx, learning.Module{
			SubjectID:   subjectID,
			SkillID:     skillID,
			Slug:        in.Slug,
			Title:       in.Title,
			Description: optional(in.Description),
			OrderIndex:  in.OrderIndex,
		})
		if err != nil {
			return err
		}
	}
	s.count(len(page.Items) == 0)

	for _, l := range in.Lessons {
		if err := s.lesson(ctx, mod.ID, l); err != nil {
			return fmt.Errorf("lesson %s: %w", l.Slug, err)
		}
	}
	return nil
}

func (s *Seeder) lesson(ctx context.Context, moduleID int64, in Lesson) error {
	page, err := s.store.ListLessons(ctx, learning.LessonFilter{ModuleID: &moduleID, Slug: in.Slug})
	if err != nil {
		return err
	}

	var lesson learning.Lesson
	if len(page.Items) > 0 {
		lesson = page.Items[0]
	} else {
		lesson, err = s.store.CreateLesson(ctx, learning.Lesson{
			ModuleID:   moduleID,
			Slug:       in.Slug,
			Title:      in.Title,
			Content:    in.Content,
			OrderIndex: in.OrderIndex,
		})
		if err != nil {
			return err
		}
	}
	s.count(len(page.Items) == 0)

	existing, err := s.store.ListActivities(ctx, learning.ActivityFilter{
		ListParams: learning.ListParams{PageSize: 100},
		LessonID:   &lesson.ID,
	})
	if err != nil {
		return err
	}
	for _, a := range in.Activities {
		if err := s.activity(ctx, lesson.ID, existing.Items, a); err != nil {
			return fmt.Errorf("activity %q: %w", a.Title, err)
		}
	}
	return nil
}

// activity matches existing activities by type and title since they have
// no slug.
func (s *Seeder) activity(ctx context.Context, lessonID int64, existing []learning.Activity, in Activity) error {
	typ := learning.ActivityType(in.Type)
	for _, a := range existing {
		if a.Type == typ && a.Title == in.Title {
			s.count(false)
			return nil
		}
	}

	act := learning.Activity{
		LessonID:      lessonID,
		Type:          typ,
		Title:         in.Title,
		Content:       optional(in.Content),
		OrderIndex:    in.OrderIndex,
		QuizPassScore: in.PassScore,
	}
	if len(in.Questions) > 0 {
		act.QuizQuestions = questions(in.Questions)
	}
	if _, err := s.store.CreateActivity(ctx, act); err != nil {
		return err
	}
	s.count(true)
	return nil
}

func (s *Seeder) applyCatalog(ctx context.Context, in Catalog) error {
	if s.catalog == nil {
		if len(in.Skills)+len(in.Lessons) > 0 {
			slog.Warn("catalog store not configured, skipping catalog seed", "skills", len(in.Skills), "lessons", len(in.Lessons))
		}
		return nil
	}

	for _, sk := range in.Skills {
		_, err := s.catalog.GetSkill(ctx, sk.Slug)
		if err == nil {
			s.count(false)
			continue
		}
		if !errors.Is(err, learning.ErrNotFound) {
			return fmt.Errorf("catalog skill %s: %w", sk.Slug, err)
		}
		_, err = s.catalog.CreateSkill(ctx, catalog.Skill{
			Name:        sk.Name,
			Slug:        sk.Slug,
			Category:    sk.Category,
			Description: optional(sk.Description),
			Tags:        sk.Tags,
			Difficulty:  sk.Difficulty,
		})
		if err != nil {
			return fmt.Errorf("catalog skill %s: %w", sk.Slug, err)
		}
		s.count(true)
	}

	for _, l := range in.Lessons {
		_, err := s.catalog.GetLesson(ctx, l.Slug)
		if err == nil {
			s.count(false)
			continue
		}
		if !errors.Is(err, learning.ErrNotFound) {
			return fmt.Errorf("catalog lesson %s: %w", l.Slug, err)
		}
		_, err = s.catalog.CreateLesson(ctx, catalog.Lesson{
			Title:      l.Title,
			Slug:       l.Slug,
			Summary:    optional(l.Summary),
			Content:    l.Content,
			Media:      optional(l.Media),
			Tags:       l.Tags,
			Difficulty: l.Difficulty,
			Quiz:       questions(l.Quiz),
			Badge:      catalog.Badge{Name: l.Badge.Name, Points: l.Badge.Points},
			SkillSlug:  l.SkillSlug,
			Category:   l.Category,
		})
		if err != nil {
			return fmt.Errorf("catalog lesson %s: %w", l.Slug, err)
		}
		s.count(true)
	}
	return nil
}
