package learning

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"
)

type row[T any] struct {
	val     T
	deleted bool
}

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	mu  sync.Mutex
	now func() time.Time

	subjects   map[int64]*row[Subject]
	skills     map[int64]*row[Skill]
	modules    map[int64]*row[Module]
	lessons    map[int64]*row[Lesson]
	activities map[int64]*row[Activity]
	progress   map[int64]*row[ProgressRecord]

	nextID map[string]int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:        func() time.Time { return time.Now().UTC() },
		subjects:   make(map[int64]*row[Subject]),
		skills:     make(map[int64]*row[Skill]),
		modules:    make(map[int64]*row[Module]),
		lessons:    make(map[int64]*row[Lesson]),
		activities: make(map[int64]*row[Activity]),
		progress:   make(map[int64]*row[ProgressRecord]),
		nextID:     make(map[string]int64),
	}
}

func (s *MemoryStore) id(table string) int64 {
	s.nextID[table]++
	return s.nextID[table]
}

// liveRows returns the non-deleted values ordered by id.
func liveRows[T any](m map[int64]*row[T]) []T {
	out := make([]T, 0, len(m))
	for _, id := range slices.Sorted(maps.Keys(m)) {
		if r := m[id]; !r.deleted {
			out = append(out, r.val)
		}
	}
	return out
}

func getLive[T any](m map[int64]*row[T], entity string, id int64) (T, error) {
	r, ok := m[id]
	if !ok || r.deleted {
		var zero T
		return zero, notFound(entity, id)
	}
	return r.val, nil
}

func softDelete[T any](m map[int64]*row[T], entity string, id int64) error {
	r, ok := m[id]
	if !ok || r.deleted {
		return notFound(entity, id)
	}
	r.deleted = true
	return nil
}

func paginate[T any](items []T, p ListParams) Page[T] {
	p = p.Normalize()
	total := len(items)
	start := min(p.Offset(), total)
	end := min(start+p.PageSize, total)
	page := make([]T, end-start)
	copy(page, items[start:end])
	return Page[T]{Items: page, Total: total, Page: p.Page, PageSize: p.PageSize}
}

func matchSearch(search string, fields ...string) bool {
	if search == "" {
		return true
	}
	search = strings.ToLower(search)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), search) {
			return true
		}
	}
	return false
}

func byOrder[T any](order func(T) int, id func(T) int64) func(a, b T) int {
	return func(a, b T) int {
		return cmp.Or(cmp.Compare(order(a), order(b)), cmp.Compare(id(a), id(b)))
	}
}

var (
	moduleOrder   = byOrder(func(m Module) int { return m.OrderIndex }, func(m Module) int64 { return m.ID })
	lessonOrder   = byOrder(func(l Lesson) int { return l.OrderIndex }, func(l Lesson) int64 { return l.ID })
	activityOrder = byOrder(func(a Activity) int { return a.OrderIndex }, func(a Activity) int64 { return a.ID })
)

// WithTx holds the store lock for the duration of fn and commits the
// records appended through the Tx only when fn succeeds.
func (s *MemoryStore) WithTx(ctx context.Context, fn func(Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{s: s}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, rec := range tx.staged {
		s.progress[rec.ID] = &row[ProgressRecord]{val: rec}
	}
	return nil
}

type memTx struct {
	s      *MemoryStore
	staged []ProgressRecord
}

func (t *memTx) GetActivity(_ context.Context, id int64) (Activity, error) {
	return getLive(t.s.activities, "activity", id)
}

func (t *memTx) GetLesson(_ context.Context, id int64) (Lesson, error) {
	return getLive(t.s.lessons, "lesson", id)
}

func (t *memTx) NextLesson(_ context.Context, moduleID int64, afterOrder int) (Lesson, bool, error) {
	l, ok := t.s.nextLesson(moduleID, afterOrder)
	return l, ok, nil
}

func (t *memTx) AppendProgress(_ context.Context, records ...ProgressRecord) ([]ProgressRecord, error) {
	out := make([]ProgressRecord, 0, len(records))
	for _, rec := range records {
		rec, err := t.s.prepareProgress(rec)
		if err != nil {
			return nil, err
		}
		t.staged = append(t.staged, rec)
		out = append(out, rec)
	}
	return out, nil
}

func (s *MemoryStore) nextLesson(moduleID int64, afterOrder int) (Lesson, bool) {
	var (
		next  Lesson
		found bool
	)
	for _, l := range liveRows(s.lessons) {
		if l.ModuleID != moduleID || l.OrderIndex <= afterOrder {
			continue
		}
		if !found || lessonOrder(l, next) < 0 {
			next, found = l, true
		}
	}
	return next, found
}

func (s *MemoryStore) prepareProgress(rec ProgressRecord) (ProgressRecord, error) {
	if rec.UserID == "" {
		return ProgressRecord{}, fmt.Errorf("%w: user_id is required", ErrInvalidArgument)
	}
	if _, ok := rec.Target(); !ok {
		return ProgressRecord{}, fmt.Errorf("%w: progress record has no target", ErrInvalidArgument)
	}
	now := s.now()
	rec.ID = s.id("progress")
	rec.CreatedAt = now
	rec.UpdatedAt = now
	return rec, nil
}

func (s *MemoryStore) GetActivity(ctx context.Context, id int64) (Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return getLive(s.activities, "activity", id)
}

func (s *MemoryStore) GetLesson(ctx context.Context, id int64) (Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return getLive(s.lessons, "lesson", id)
}

func (s *MemoryStore) NextLesson(ctx context.Context, moduleID int64, afterOrder int) (Lesson, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.nextLesson(moduleID, afterOrder)
	return l, ok, nil
}

func (s *MemoryStore) AppendProgress(ctx context.Context, records ...ProgressRecord) ([]ProgressRecord, error) {
	var out []ProgressRecord
	err := s.WithTx(ctx, func(tx Tx) error {
		var err error
		out, err = tx.AppendProgress(ctx, records...)
		return err
	})
	return out, err
}

// Subjects

func (s *MemoryStore) ListSubjects(ctx context.Context, f SubjectFilter) (Page[Subject], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var items []Subject
	for _, sub := range liveRows(s.subjects) {
		if f.Slug != "" && sub.Slug != f.Slug {
			continue
		}
		if !matchSearch(f.Search, sub.Slug, sub.Title) {
			continue
		}
		items = append(items, sub)
	}
	slices.SortStableFunc(items, func(a, b Subject) int { return cmp.Compare(a.Title, b.Title) })
	return paginate(items, f.ListParams), nil
}

func (s *MemoryStore) CreateSubject(ctx context.Context, sub Subject) (Subject, error) {
	if err := validateSubject(sub); err != nil {
		return Subject{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subjectSlugTaken(sub.Slug, 0) {
		return Subject{}, fmt.Errorf("%w: subject slug %q already exists", ErrConflict, sub.Slug)
	}
	now := s.now()
	sub.ID = s.id("subjects")
	sub.CreatedAt, sub.UpdatedAt = now, now
	s.subjects[sub.ID] = &row[Subject]{val: sub}
	return sub, nil
}

func (s *MemoryStore) subjectSlugTaken(slug string, except int64) bool {
	for id, r := range s.subjects {
		if id != except && r.val.Slug == slug {
			return true
		}
	}
	return false
}

func (s *MemoryStore) GetSubject(ctx context.Context, id int64) (Subject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return getLive(s.subjects, "subject", id)
}

func (s *MemoryStore) UpdateSubject(ctx context.Context, id int64, p SubjectPatch) (Subject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := getLive(s.subjects, "subject", id)
	if err != nil {
		return Subject{}, err
	}
	if p.empty() {
		return Subject{}, noFields()
	}
	next, err := p.apply(cur)
	if err != nil {
		return Subject{}, err
	}
	if s.subjectSlugTaken(next.Slug, id) {
		return Subject{}, fmt.Errorf("%w: subject slug %q already exists", ErrConflict, next.Slug)
	}
	next.UpdatedAt = s.now()
	s.subjects[id].val = next
	return next, nil
}

func (s *MemoryStore) DeleteSubject(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return softDelete(s.subjects, "subject", id)
}

// Skills

func (s *MemoryStore) ListSkills(ctx context.Context, f SkillFilter) ([]Skill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var subjectID int64
	if f.SubjectSlug != "" {
		sub, ok := s.subjectBySlug(f.SubjectSlug)
		if !ok {
			return []Skill{}, nil
		}
		subjectID = sub.ID
	}
	out := []Skill{}
	for _, sk := range liveRows(s.skills) {
		if subjectID != 0 && sk.SubjectID != subjectID {
			continue
		}
		if f.Level != "" && sk.Level != f.Level {
			continue
		}
		out = append(out, sk)
	}
	slices.SortStableFunc(out, func(a, b Skill) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (s *MemoryStore) subjectBySlug(slug string) (Subject, bool) {
	for _, sub := range liveRows(s.subjects) {
		if sub.Slug == slug {
			return sub, true
		}
	}
	return Subject{}, false
}

func (s *MemoryStore) CreateSkill(ctx context.Context, sk Skill) (Skill, error) {
	if sk.Level == "" {
		sk.Level = LevelBeginner
	}
	if err := validateSkill(sk); err != nil {
		return Skill{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := getLive(s.subjects, "subject", sk.SubjectID); err != nil {
		return Skill{}, err
	}
	for _, r := range s.skills {
		if r.val.Slug == sk.Slug {
			return Skill{}, fmt.Errorf("%w: skill slug %q already exists", ErrConflict, sk.Slug)
		}
	}
	now := s.now()
	sk.ID = s.id("skills")
	sk.Tags = slices.Clone(sk.Tags)
	if sk.Tags == nil {
		sk.Tags = []string{}
	}
	sk.CreatedAt, sk.UpdatedAt = now, now
	s.skills[sk.ID] = &row[Skill]{val: sk}
	return sk, nil
}

func (s *MemoryStore) skillBySlug(slug string) (*row[Skill], error) {
	for _, r := range s.skills {
		if !r.deleted && r.val.Slug == slug {
			return r, nil
		}
	}
	return nil, notFound("skill", slug)
}

func (s *MemoryStore) GetSkill(ctx context.Context, slug string) (Skill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.skillBySlug(slug)
	if err != nil {
		return Skill{}, err
	}
	return r.val, nil
}

func (s *MemoryStore) UpdateSkill(ctx context.Context, slug string, p SkillPatch) (Skill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.skillBySlug(slug)
	if err != nil {
		return Skill{}, err
	}
	if p.empty() {
		return Skill{}, noFields()
	}
	next, err := p.apply(r.val)
	if err != nil {
		return Skill{}, err
	}
	next.Tags = slices.Clone(next.Tags)
	next.UpdatedAt = s.now()
	r.val = next
	return next, nil
}

func (s *MemoryStore) DeleteSkill(ctx context.Context, slug string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.skillBySlug(slug)
	if err != nil {
		return err
	}
	r.deleted = true
	return nil
}

func (s *MemoryStore) SkillModules(ctx context.Context, skillID int64) ([]Module, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []Module{}
	for _, m := range liveRows(s.modules) {
		if m.SkillID != nil && *m.SkillID == skillID {
			out = append(out, m)
		}
	}
	slices.SortStableFunc(out, moduleOrder)
	return out, nil
}

// Modules

func (s *MemoryStore) ListModules(ctx context.Context, f ModuleFilter) (Page[Module], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var items []Module
	for _, m := range liveRows(s.modules) {
		if f.SubjectID != nil && m.SubjectID != *f.SubjectID {
			continue
		}
		if f.Slug != "" && m.Slug != f.Slug {
			continue
		}
		if !matchSearch(f.Search, m.Slug, m.Title) {
			continue
		}
		items = append(items, m)
	}
	slices.SortStableFunc(items, moduleOrder)
	return paginate(items, f.ListParams), nil
}

func (s *MemoryStore) checkModule(m Module, except int64) error {
	if _, err := getLive(s.subjects, "subject", m.SubjectID); err != nil {
		return invalidRef("subject_id")
	}
	if m.SkillID != nil {
		if _, err := getLive(s.skills, "skill", *m.SkillID); err != nil {
			return invalidRef("skill_id")
		}
	}
	for id, r := range s.modules {
		if id != except && r.val.SubjectID == m.SubjectID && r.val.Slug == m.Slug {
			return fmt.Errorf("%w: module slug %q already exists in subject", ErrConflict, m.Slug)
		}
	}
	return nil
}

func (s *MemoryStore) CreateModule(ctx context.Context, m Module) (Module, error) {
	if err := validateModule(m); err != nil {
		return Module{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkModule(m, 0); err != nil {
		return Module{}, err
	}
	now := s.now()
	m.ID = s.id("modules")
	m.CreatedAt, m.UpdatedAt = now, now
	s.modules[m.ID] = &row[Module]{val: m}
	return m, nil
}

func (s *MemoryStore) GetModule(ctx context.Context, id int64) (Module, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return getLive(s.modules, "module", id)
}

func (s *MemoryStore) UpdateModule(ctx context.Context, id int64, p ModulePatch) (Module, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := getLive(s.modules, "module", id)
	if err != nil {
		return Module{}, err
	}
	if p.empty() {
		return Module{}, noFields()
	}
	next, err := p.apply(cur)
	if err != nil {
		return Module{}, err
	}
	if err := s.checkModule(next, id); err != nil {
		return Module{}, err
	}
	next.UpdatedAt = s.now()
	s.modules[id].val = next
	return next, nil
}

func (s *MemoryStore) DeleteModule(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return softDelete(s.modules, "module", id)
}

// Lessons

func (s *MemoryStore) ListLessons(ctx context.Context, f LessonFilter) (Page[Lesson], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var items []Lesson
	for _, l := range liveRows(s.lessons) {
		if f.ModuleID != nil && l.ModuleID != *f.ModuleID {
			continue
		}
		if f.Slug != "" && l.Slug != f.Slug {
			continue
		}
		if !matchSearch(f.Search, l.Slug, l.Title) {
			continue
		}
		items = append(items, l)
	}
	slices.SortStableFunc(items, lessonOrder)
	return paginate(items, f.ListParams), nil
}

func (s *MemoryStore) ModuleLessons(ctx context.Context, moduleID int64) ([]Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []Lesson{}
	for _, l := range liveRows(s.lessons) {
		if l.ModuleID == moduleID {
			out = append(out, l)
		}
	}
	slices.SortStableFunc(out, lessonOrder)
	return out, nil
}

func (s *MemoryStore) checkLesson(l Lesson, except int64) error {
	if _, err := getLive(s.modules, "module", l.ModuleID); err != nil {
		return invalidRef("module_id")
	}
	for id, r := range s.lessons {
		if id == except || r.val.ModuleID != l.ModuleID {
			continue
		}
		if r.val.Slug == l.Slug {
			return fmt.Errorf("%w: lesson slug %q already exists in module", ErrConflict, l.Slug)
		}
		if !r.deleted && r.val.OrderIndex == l.OrderIndex {
			return fmt.Errorf("%w: order_index %d already used in module", ErrConflict, l.OrderIndex)
		}
	}
	return nil
}

func (s *MemoryStore) CreateLesson(ctx context.Context, l Lesson) (Lesson, error) {
	if err := validateLesson(l); err != nil {
		return Lesson{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkLesson(l, 0); err != nil {
		return Lesson{}, err
	}
	now := s.now()
	l.ID = s.id("lessons")
	l.CreatedAt, l.UpdatedAt = now, now
	s.lessons[l.ID] = &row[Lesson]{val: l}
	return l, nil
}

func (s *MemoryStore) UpdateLesson(ctx context.Context, id int64, p LessonPatch) (Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := getLive(s.lessons, "lesson", id)
	if err != nil {
		return Lesson{}, err
	}
	if p.empty() {
		return Lesson{}, noFields()
	}
	next, err := p.apply(cur)
	if err != nil {
		return Lesson{}, err
	}
	if err := s.checkLesson(next, id); err != nil {
		return Lesson{}, err
	}
	next.UpdatedAt = s.now()
	s.lessons[id].val = next
	return next, nil
}

func (s *MemoryStore) DeleteLesson(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return softDelete(s.lessons, "lesson", id)
}

// Activities

func (s *MemoryStore) ListActivities(ctx context.Context, f ActivityFilter) (Page[Activity], error) {
	if f.Type != "" && !f.Type.Valid() {
		return Page[Activity]{}, fmt.Errorf("%w: invalid type filter", ErrInvalidArgument)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var items []Activity
	for _, a := range liveRows(s.activities) {
		if f.LessonID != nil && a.LessonID != *f.LessonID {
			continue
		}
		if f.Type != "" && a.Type != f.Type {
			continue
		}
		items = append(items, a)
	}
	slices.SortStableFunc(items, activityOrder)
	return paginate(items, f.ListParams), nil
}

func (s *MemoryStore) CreateActivity(ctx context.Context, a Activity) (Activity, error) {
	if err := validateActivity(a); err != nil {
		return Activity{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := getLive(s.lessons, "lesson", a.LessonID); err != nil {
		return Activity{}, invalidRef("lesson_id")
	}
	now := s.now()
	a.ID = s.id("activities")
	a.CreatedAt, a.UpdatedAt = now, now
	stored := a
	stored.QuizQuestions = slices.Clone(a.QuizQuestions)
	s.activities[a.ID] = &row[Activity]{val: stored}
	return a, nil
}

func (s *MemoryStore) UpdateActivity(ctx context.Context, id int64, p ActivityPatch) (Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := getLive(s.activities, "activity", id)
	if err != nil {
		return Activity{}, err
	}
	if p.empty() {
		return Activity{}, noFields()
	}
	next, err := p.apply(cur)
	if err != nil {
		return Activity{}, err
	}
	if _, err := getLive(s.lessons, "lesson", next.LessonID); err != nil {
		return Activity{}, invalidRef("lesson_id")
	}
	next.UpdatedAt = s.now()
	stored := next
	stored.QuizQuestions = slices.Clone(next.QuizQuestions)
	s.activities[id].val = stored
	return next, nil
}

func (s *MemoryStore) DeleteActivity(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return softDelete(s.activities, "activity", id)
}

func (s *MemoryStore) FirstQuiz(ctx context.Context, lessonID int64) (Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var quizzes []Activity
	for _, a := range liveRows(s.activities) {
		if a.LessonID == lessonID && a.Type == ActivityQuiz {
			quizzes = append(quizzes, a)
		}
	}
	if len(quizzes) == 0 {
		return Activity{}, fmt.Errorf("%w: no quiz for lesson %d", ErrNotFound, lessonID)
	}
	return slices.MinFunc(quizzes, activityOrder), nil
}

// Progress

func newestFirst(a, b ProgressRecord) int {
	return cmp.Or(b.UpdatedAt.Compare(a.UpdatedAt), cmp.Compare(b.ID, a.ID))
}

func (s *MemoryStore) ListProgress(ctx context.Context, f ProgressFilter) (Page[ProgressRecord], error) {
	if f.UserID == "" {
		return Page[ProgressRecord]{}, fmt.Errorf("%w: user_id is required", ErrInvalidArgument)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var items []ProgressRecord
	for _, rec := range liveRows(s.progress) {
		if f.match(rec) {
			items = append(items, rec)
		}
	}
	slices.SortStableFunc(items, newestFirst)
	return paginate(items, f.ListParams), nil
}

func (s *MemoryStore) GetProgress(ctx context.Context, id int64) (ProgressRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return getLive(s.progress, "progress", id)
}

func (s *MemoryStore) DeleteProgress(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return softDelete(s.progress, "progress", id)
}

func (s *MemoryStore) targetExists(t Target) bool {
	var err error
	switch t.Kind {
	case TargetSubject:
		_, err = getLive(s.subjects, "subject", t.ID)
	case TargetModule:
		_, err = getLive(s.modules, "module", t.ID)
	case TargetLesson:
		_, err = getLive(s.lessons, "lesson", t.ID)
	case TargetActivity:
		_, err = getLive(s.activities, "activity", t.ID)
	default:
		return false
	}
	return err == nil
}

func (s *MemoryStore) UpsertProgress(ctx context.Context, u ProgressUpsert) (ProgressRecord, error) {
	rec, err := u.Record()
	if err != nil {
		return ProgressRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	target, _ := rec.Target()
	if !s.targetExists(target) {
		return ProgressRecord{}, invalidRef(string(target.Kind) + "_id")
	}

	var latest *row[ProgressRecord]
	for _, r := range s.progress {
		if r.deleted || !r.val.sameKey(rec) {
			continue
		}
		if latest == nil || newestFirst(r.val, latest.val) < 0 {
			latest = r
		}
	}
	if latest != nil {
		latest.val.Completed = rec.Completed
		latest.val.Score = rec.Score
		latest.val.UpdatedAt = s.now()
		return latest.val, nil
	}

	rec, err = s.prepareProgress(rec)
	if err != nil {
		return ProgressRecord{}, err
	}
	s.progress[rec.ID] = &row[ProgressRecord]{val: rec}
	return rec, nil
}

func (s *MemoryStore) LessonProgress(ctx context.Context, userID string, lessonIDs ...int64) ([]ProgressRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []ProgressRecord{}
	for _, rec := range liveRows(s.progress) {
		if rec.UserID != userID || rec.LessonID == nil {
			continue
		}
		if slices.Contains(lessonIDs, *rec.LessonID) {
			out = append(out, rec)
		}
	}
	return out, nil
}
