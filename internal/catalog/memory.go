package catalog

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/p-n-ai/pai-learn/internal/learning"
)

// MemoryStore is an in-memory implementation of Store. Ids are ObjectID hex
// strings so they look the same as the ones MongoStore hands out.
type MemoryStore struct {
	mu      sync.RWMutex
	skills  map[string]Skill  // by slug
	lessons map[string]Lesson // by slug
}

// NewMemoryStore creates an empty in-memory catalog.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		skills:  make(map[string]Skill),
		lessons: make(map[string]Lesson),
	}
}

func cloneSkill(s Skill) Skill {
	s.Tags = slices.Clone(s.Tags)
	return s
}

func cloneLesson(l Lesson) Lesson {
	l.Tags = slices.Clone(l.Tags)
	l.Quiz = slices.Clone(l.Quiz)
	return l
}

func contains(field, search string) bool {
	return strings.Contains(strings.ToLower(field), search)
}

func (f SkillFilter) match(s Skill) bool {
	if f.Category != "" && s.Category != f.Category {
		return false
	}
	if f.Difficulty != "" && s.Difficulty != f.Difficulty {
		return false
	}
	if f.Search == "" {
		return true
	}
	search := strings.ToLower(f.Search)
	if contains(s.Name, search) || (s.Description != nil && contains(*s.Description, search)) {
		return true
	}
	return slices.ContainsFunc(s.Tags, func(tag string) bool { return contains(tag, search) })
}

func (m *MemoryStore) ListSkills(_ context.Context, f SkillFilter) (learning.Page[Skill], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []Skill
	for _, s := range m.skills {
		if f.match(s) {
			matched = append(matched, s)
		}
	}
	slices.SortFunc(matched, func(a, b Skill) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.Slug, b.Slug))
	})

	p := f.Normalize()
	total := len(matched)
	start := min(p.Offset(), total)
	end := min(start+p.PageSize, total)
	items := make([]Skill, 0, end-start)
	for _, s := range matched[start:end] {
		items = append(items, cloneSkill(s))
	}
	return learning.Page[Skill]{Items: items, Total: total, Page: p.Page, PageSize: p.PageSize}, nil
}

func (m *MemoryStore) GetSkill(_ context.Context, slug string) (Skill, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.skills[slug]
	if !ok {
		return Skill{}, notFound("skill", slug)
	}
	return cloneSkill(s), nil
}

func (m *MemoryStore) CreateSkill(_ context.Context, s Skill) (Skill, error) {
	s, err := normalizeSkill(cloneSkill(s))
	if err != nil {
		return Skill{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.skills[s.Slug]; exists {
		return Skill{}, conflict("skill", s.Slug)
	}
	s.ID = primitive.NewObjectID().Hex()
	s.CreatedAt = now()
	s.UpdatedAt = s.CreatedAt
	m.skills[s.Slug] = s
	return cloneSkill(s), nil
}

func (m *MemoryStore) UpdateSkill(_ context.Context, slug string, p SkillPatch) (Skill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.skills[slug]
	if !ok {
		return Skill{}, notFound("skill", slug)
	}
	next, err := normalizeSkill(cloneSkill(p.apply(cur)))
	if err != nil {
		return Skill{}, err
	}
	next.UpdatedAt = now()
	m.skills[slug] = next
	return cloneSkill(next), nil
}

func (m *MemoryStore) DeleteSkill(_ context.Context, slug string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.skills[slug]; !ok {
		return notFound("skill", slug)
	}
	delete(m.skills, slug)
	maps.DeleteFunc(m.lessons, func(_ string, l Lesson) bool { return l.SkillSlug == slug })
	return nil
}

func (m *MemoryStore) ListLessonsForSkill(_ context.Context, skillSlug string) ([]Lesson, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []Lesson{}
	for _, l := range m.lessons {
		if l.SkillSlug == skillSlug {
			out = append(out, cloneLesson(l))
		}
	}
	slices.SortFunc(out, func(a, b Lesson) int {
		return cmp.Or(cmp.Compare(a.Title, b.Title), cmp.Compare(a.Slug, b.Slug))
	})
	return out, nil
}

func (m *MemoryStore) GetLesson(_ context.Context, slug string) (Lesson, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	l, ok := m.lessons[slug]
	if !ok {
		return Lesson{}, notFound("lesson", slug)
	}
	return cloneLesson(l), nil
}

func (m *MemoryStore) CreateLesson(_ context.Context, l Lesson) (Lesson, error) {
	l, err := normalizeLesson(cloneLesson(l))
	if err != nil {
		return Lesson{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.lessons[l.Slug]; exists {
		return Lesson{}, conflict("lesson", l.Slug)
	}
	l.ID = primitive.NewObjectID().Hex()
	l.CreatedAt = now()
	l.UpdatedAt = l.CreatedAt
	m.lessons[l.Slug] = l
	return cloneLesson(l), nil
}

func (m *MemoryStore) UpdateLesson(_ context.Context, slug string, p LessonPatch) (Lesson, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.lessons[slug]
	if !ok {
		return Lesson{}, notFound("lesson", slug)
	}
	next, err := normalizeLesson(cloneLesson(p.apply(cur)))
	if err != nil {
		return Lesson{}, err
	}
	next.UpdatedAt = now()
	m.lessons[slug] = next
	return cloneLesson(next), nil
}

func (m *MemoryStore) DeleteLesson(_ context.Context, slug string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.lessons[slug]; !ok {
		return notFound("lesson", slug)
	}
	delete(m.lessons, slug)
	return nil
}
