package learning

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the relational tables. Every statement is idempotent.
//
//go:embed schema.sql
var Schema string

const dbTimeout = 5 * time.Second

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore is a PostgreSQL-backed Store implementation.
type PostgresStore struct {
	q dbtx
}

// NewPostgresStore creates a store on top of an open pool. The schema must
// already exist.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &PostgresStore{q: pool}, nil
}

// WithTx runs fn inside a database transaction. A nested call opens a
// savepoint.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(Tx) error) error {
	return s.inTx(ctx, func(tx *PostgresStore) error { return fn(tx) })
}

func (s *PostgresStore) inTx(ctx context.Context, fn func(tx *PostgresStore) error) error {
	return pgx.BeginFunc(ctx, s.q, func(tx pgx.Tx) error {
		return fn(&PostgresStore{q: tx})
	})
}

// mapErr translates driver errors into the package sentinels.
func mapErr(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%s: %w: %s", op, ErrConflict, pgErr.Detail)
		case "23503", "23514":
			return fmt.Errorf("%s: %w: %s", op, ErrInvalidArgument, pgErr.ConstraintName)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// live reports whether a non-deleted row with id exists in table.
func (s *PostgresStore) live(ctx context.Context, table string, id int64) (bool, error) {
	var ok bool
	err := s.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1 AND NOT is_deleted)`, id,
	).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check %s: %w", table, err)
	}
	return ok, nil
}

func (s *PostgresStore) requireRef(ctx context.Context, table, field string, id int64) error {
	ok, err := s.live(ctx, table, id)
	if err != nil {
		return err
	}
	if !ok {
		return invalidRef(field)
	}
	return nil
}

func (s *PostgresStore) softDelete(ctx context.Context, table, entity string, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := s.q.Exec(ctx,
		`UPDATE `+table+` SET is_deleted = TRUE, updated_at = NOW() WHERE id = $1 AND NOT is_deleted`, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", entity, err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(entity, id)
	}
	return nil
}

// where accumulates AND-ed conditions with positional arguments.
type where struct {
	conds []string
	args  []any
}

func newWhere() *where {
	return &where{conds: []string{"NOT is_deleted"}}
}

func (w *where) arg(v any) string {
	w.args = append(w.args, v)
	return fmt.Sprintf("$%d", len(w.args))
}

func (w *where) eq(col string, v any) {
	w.conds = append(w.conds, col+" = "+w.arg(v))
}

func (w *where) search(term string, cols ...string) {
	if term == "" {
		return
	}
	p := w.arg("%" + term + "%")
	ors := make([]string, len(cols))
	for i, c := range cols {
		ors[i] = c + " ILIKE " + p
	}
	w.conds = append(w.conds, "("+strings.Join(ors, " OR ")+")")
}

func (w *where) String() string {
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (T, error)) ([]T, error) {
	return pgx.AppendRows(make([]T, 0), rows, func(r pgx.CollectableRow) (T, error) {
		return scan(r)
	})
}

// listPage counts the matching rows and fetches one page of them.
func listPage[T any](ctx context.Context, q dbtx, table, cols string, w *where, orderBy string, p ListParams, scan func(pgx.Row) (T, error)) (Page[T], error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	p = p.Normalize()
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM `+table+w.String(), w.args...).Scan(&total); err != nil {
		return Page[T]{}, fmt.Errorf("count %s: %w", table, err)
	}

	limit := w.arg(p.PageSize)
	offset := w.arg(p.Offset())
	rows, err := q.Query(ctx,
		`SELECT `+cols+` FROM `+table+w.String()+` ORDER BY `+orderBy+` LIMIT `+limit+` OFFSET `+offset,
		w.args...)
	if err != nil {
		return Page[T]{}, fmt.Errorf("list %s: %w", table, err)
	}
	items, err := collect(rows, scan)
	if err != nil {
		return Page[T]{}, fmt.Errorf("scan %s: %w", table, err)
	}
	return Page[T]{Items: items, Total: total, Page: p.Page, PageSize: p.PageSize}, nil
}

// Subjects

const subjectCols = `id, slug, title, description, created_at, updated_at`

func scanSubject(row pgx.Row) (Subject, error) {
	var s Subject
	err := row.Scan(&s.ID, &s.Slug, &s.Title, &s.Description, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (s *PostgresStore) ListSubjects(ctx context.Context, f SubjectFilter) (Page[Subject], error) {
	w := newWhere()
	if f.Slug != "" {
		w.eq("slug", f.Slug)
	}
	w.search(f.Search, "slug", "title")
	return listPage(ctx, s.q, "subjects", subjectCols, w, "title ASC, id ASC", f.ListParams, scanSubject)
}

func (s *PostgresStore) CreateSubject(ctx context.Context, sub Subject) (Subject, error) {
	if err := validateSubject(sub); err != nil {
		return Subject{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	out, err := scanSubject(s.q.QueryRow(ctx,
		`INSERT INTO subjects (slug, title, description) VALUES ($1, $2, $3)
		 RETURNING `+subjectCols,
		sub.Slug, sub.Title, sub.Description))
	if err != nil {
		return Subject{}, mapErr("create subject", err)
	}
	return out, nil
}

func (s *PostgresStore) GetSubject(ctx context.Context, id int64) (Subject, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	out, err := scanSubject(s.q.QueryRow(ctx,
		`SELECT `+subjectCols+` FROM subjects WHERE id = $1 AND NOT is_deleted`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Subject{}, notFound("subject", id)
	}
	if err != nil {
		return Subject{}, fmt.Errorf("get subject: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) UpdateSubject(ctx context.Context, id int64, p SubjectPatch) (Subject, error) {
	var out Subject
	err := s.inTx(ctx, func(tx *PostgresStore) error {
		cur, err := tx.GetSubject(ctx, id)
		if err != nil {
			return err
		}
		if p.empty() {
			return noFields()
		}
		next, err := p.apply(cur)
		if err != nil {
			return err
		}
		out, err = scanSubject(tx.q.QueryRow(ctx,
			`UPDATE subjects SET slug = $2, title = $3, description = $4, updated_at = NOW()
			 WHERE id = $1 RETURNING `+subjectCols,
			id, next.Slug, next.Title, next.Description))
		if err != nil {
			return mapErr("update subject", err)
		}
		return nil
	})
	return out, err
}

func (s *PostgresStore) DeleteSubject(ctx context.Context, id int64) error {
	return s.softDelete(ctx, "subjects", "subject", id)
}

// Skills

const skillCols = `id, subject_id, name, slug, description, level, tags, created_at, updated_at`

func scanSkill(row pgx.Row) (Skill, error) {
	var s Skill
	err := row.Scan(&s.ID, &s.SubjectID, &s.Name, &s.Slug, &s.Description, &s.Level, &s.Tags, &s.CreatedAt, &s.UpdatedAt)
	if s.Tags == nil {
		s.Tags = []string{}
	}
	return s, err
}

func (s *PostgresStore) ListSkills(ctx context.Context, f SkillFilter) ([]Skill, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	w := newWhere()
	if f.SubjectSlug != "" {
		w.conds = append(w.conds,
			"subject_id IN (SELECT id FROM subjects WHERE slug = "+w.arg(f.SubjectSlug)+" AND NOT is_deleted)")
	}
	if f.Level != "" {
		w.eq("level", f.Level)
	}
	rows, err := s.q.Query(ctx, `SELECT `+skillCols+` FROM skills`+w.String()+` ORDER BY created_at ASC, id ASC`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list skills: %w", err)
	}
	return collect(rows, scanSkill)
}

func (s *PostgresStore) CreateSkill(ctx context.Context, sk Skill) (Skill, error) {
	if sk.Level == "" {
		sk.Level = LevelBeginner
	}
	if err := validateSkill(sk); err != nil {
		return Skill{}, err
	}
	if sk.Tags == nil {
		sk.Tags = []string{}
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	ok, err := s.live(ctx, "subjects", sk.SubjectID)
	if err != nil {
		return Skill{}, err
	}
	if !ok {
		return Skill{}, notFound("subject", sk.SubjectID)
	}
	out, err := scanSkill(s.q.QueryRow(ctx,
		`INSERT INTO skills (subject_id, name, slug, description, level, tags)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+skillCols,
		sk.SubjectID, sk.Name, sk.Slug, sk.Description, sk.Level, sk.Tags))
	if err != nil {
		return Skill{}, mapErr("create skill", err)
	}
	return out, nil
}

func (s *PostgresStore) GetSkill(ctx context.Context, slug string) (Skill, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	out, err := scanSkill(s.q.QueryRow(ctx,
		`SELECT `+skillCols+` FROM skills WHERE slug = $1 AND NOT is_deleted`, slug))
	if errors.Is(err, pgx.ErrNoRows) {
		return Skill{}, notFound("skill", slug)
	}
	if err != nil {
		return Skill{}, fmt.Errorf("get skill: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) UpdateSkill(ctx context.Context, slug string, p SkillPatch) (Skill, error) {
	var out Skill
	err := s.inTx(ctx, func(tx *PostgresStore) error {
		cur, err := tx.GetSkill(ctx, slug)
		if err != nil {
			return err
		}
		if p.empty() {
			return noFields()
		}
		next, err := p.apply(cur)
		if err != nil {
			return err
		}
		if next.Tags == nil {
			next.Tags = []string{}
		}
		out, err = scanSkill(tx.q.QueryRow(ctx,
			`UPDATE skills SET name = $2, description = $3, level = $4, tags = $5, updated_at = NOW()
			 WHERE id = $1 RETURNING `+skillCols,
			cur.ID, next.Name, next.Description, next.Level, next.Tags))
		if err != nil {
			return mapErr("update skill", err)
		}
		return nil
	})
	return out, err
}

func (s *PostgresStore) DeleteSkill(ctx context.Context, slug string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := s.q.Exec(ctx,
		`UPDATE skills SET is_deleted = TRUE, updated_at = NOW() WHERE slug = $1 AND NOT is_deleted`, slug)
	if err != nil {
		return fmt.Errorf("delete skill: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound("skill", slug)
	}
	return nil
}

func (s *PostgresStore) SkillModules(ctx context.Context, skillID int64) ([]Module, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.q.Query(ctx,
		`SELECT `+moduleCols+` FROM modules WHERE skill_id = $1 AND NOT is_deleted ORDER BY order_index ASC, id ASC`,
		skillID)
	if err != nil {
		return nil, fmt.Errorf("list skill modules: %w", err)
	}
	return collect(rows, scanModule)
}

// Modules

const moduleCols = `id, subject_id, skill_id, slug, title, description, order_index, created_at, updated_at`

func scanModule(row pgx.Row) (Module, error) {
	var m Module
	err := row.Scan(&m.ID, &m.SubjectID, &m.SkillID, &m.Slug, &m.Title, &m.Description, &m.OrderIndex, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

func (s *PostgresStore) ListModules(ctx context.Context, f ModuleFilter) (Page[Module], error) {
	w := newWhere()
	if f.SubjectID != nil {
		w.eq("subject_id", *f.SubjectID)
	}
	if f.Slug != "" {
		w.eq("slug", f.Slug)
	}
	w.search(f.Search, "slug", "title")
	return listPage(ctx, s.q, "modules", moduleCols, w, "order_index ASC, id ASC", f.ListParams, scanModule)
}

func (s *PostgresStore) checkModuleRefs(ctx context.Context, m Module) error {
	if err := s.requireRef(ctx, "subjects", "subject_id", m.SubjectID); err != nil {
		return err
	}
	if m.SkillID != nil {
		return s.requireRef(ctx, "skills", "skill_id", *m.SkillID)
	}
	return nil
}

func (s *PostgresStore) CreateModule(ctx context.Context, m Module) (Module, error) {
	if err := validateModule(m); err != nil {
		return Module{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if err := s.checkModuleRefs(ctx, m); err != nil {
		return Module{}, err
	}
	out, err := scanModule(s.q.QueryRow(ctx,
		`INSERT INTO modules (subject_id, skill_id, slug, title, description, order_index)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+moduleCols,
		m.SubjectID, m.SkillID, m.Slug, m.Title, m.Description, m.OrderIndex))
	if err != nil {
		return Module{}, mapErr("create module", err)
	}
	return out, nil
}

func (s *PostgresStore) GetModule(ctx context.Context, id int64) (Module, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	out, err := scanModule(s.q.QueryRow(ctx,
		`SELECT `+moduleCols+` FROM modules WHERE id = $1 AND NOT is_deleted`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Module{}, notFound("module", id)
	}
	if err != nil {
		return Module{}, fmt.Errorf("get module: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) UpdateModule(ctx context.Context, id int64, p ModulePatch) (Module, error) {
	var out Module
	err := s.inTx(ctx, func(tx *PostgresStore) error {
		cur, err := tx.GetModule(ctx, id)
		if err != nil {
			return err
		}
		if p.empty() {
			return noFields()
		}
		next, err := p.apply(cur)
		if err != nil {
			return err
		}
		if err := tx.checkModuleRefs(ctx, next); err != nil {
			return err
		}
		out, err = scanModule(tx.q.QueryRow(ctx,
			`UPDATE modules SET subject_id = $2, skill_id = $3, slug = $4, title = $5,
			        description = $6, order_index = $7, updated_at = NOW()
			 WHERE id = $1 RETURNING `+moduleCols,
			id, next.SubjectID, next.SkillID, next.Slug, next.Title, next.Description, next.OrderIndex))
		if err != nil {
			return mapErr("update module", err)
		}
		return nil
	})
	return out, err
}

func (s *PostgresStore) DeleteModule(ctx context.Context, id int64) error {
	return s.softDelete(ctx, "modules", "module", id)
}

// Lessons

const lessonCols = `id, module_id, slug, title, content, order_index, created_at, updated_at`

func scanLesson(row pgx.Row) (Lesson, error) {
	var l Lesson
	err := row.Scan(&l.ID, &l.ModuleID, &l.Slug, &l.Title, &l.Content, &l.OrderIndex, &l.CreatedAt, &l.UpdatedAt)
	return l, err
}

func (s *PostgresStore) ListLessons(ctx context.Context, f LessonFilter) (Page[Lesson], error) {
	w := newWhere()
	if f.ModuleID != nil {
		w.eq("module_id", *f.ModuleID)
	}
	if f.Slug != "" {
		w.eq("slug", f.Slug)
	}
	w.search(f.Search, "slug", "title")
	return listPage(ctx, s.q, "lessons", lessonCols, w, "order_index ASC, id ASC", f.ListParams, scanLesson)
}

func (s *PostgresStore) ModuleLessons(ctx context.Context, moduleID int64) ([]Lesson, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.q.Query(ctx,
		`SELECT `+lessonCols+` FROM lessons WHERE module_id = $1 AND NOT is_deleted ORDER BY order_index ASC, id ASC`,
		moduleID)
	if err != nil {
		return nil, fmt.Errorf("list module lessons: %w", err)
	}
	return collect(rows, scanLesson)
}

func (s *PostgresStore) GetLesson(ctx context.Context, id int64) (Lesson, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	out, err := scanLesson(s.q.QueryRow(ctx,
		`SELECT `+lessonCols+` FROM lessons WHERE id = $1 AND NOT is_deleted`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lesson{}, notFound("lesson", id)
	}
	if err != nil {
		return Lesson{}, fmt.Errorf("get lesson: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) NextLesson(ctx context.Context, moduleID int64, afterOrder int) (Lesson, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	out, err := scanLesson(s.q.QueryRow(ctx,
		`SELECT `+lessonCols+` FROM lessons
		 WHERE module_id = $1 AND order_index > $2 AND NOT is_deleted
		 ORDER BY order_index ASC, id ASC
		 LIMIT 1`,
		moduleID, afterOrder))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lesson{}, false, nil
	}
	if err != nil {
		return Lesson{}, false, fmt.Errorf("find next lesson: %w", err)
	}
	return out, true, nil
}

func (s *PostgresStore) CreateLesson(ctx context.Context, l Lesson) (Lesson, error) {
	if err := validateLesson(l); err != nil {
		return Lesson{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if err := s.requireRef(ctx, "modules", "module_id", l.ModuleID); err != nil {
		return Lesson{}, err
	}
	out, err := scanLesson(s.q.QueryRow(ctx,
		`INSERT INTO lessons (module_id, slug, title, content, order_index)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+lessonCols,
		l.ModuleID, l.Slug, l.Title, l.Content, l.OrderIndex))
	if err != nil {
		return Lesson{}, mapErr("create lesson", err)
	}
	return out, nil
}

func (s *PostgresStore) UpdateLesson(ctx context.Context, id int64, p LessonPatch) (Lesson, error) {
	var out Lesson
	err := s.inTx(ctx, func(tx *PostgresStore) error {
		cur, err := tx.GetLesson(ctx, id)
		if err != nil {
			return err
		}
		if p.empty() {
			return noFields()
		}
		next, err := p.apply(cur)
		if err != nil {
			return err
		}
		if err := tx.requireRef(ctx, "modules", "module_id", next.ModuleID); err != nil {
			return err
		}
		out, err = scanLesson(tx.q.QueryRow(ctx,
			`UPDATE lessons SET module_id = $2, slug = $3, title = $4, content = $5,
			        order_index = $6, updated_at = NOW()
			 WHERE id = $1 RETURNING `+lessonCols,
			id, next.ModuleID, next.Slug, next.Title, next.Content, next.OrderIndex))
		if err != nil {
			return mapErr("update lesson", err)
		}
		return nil
	})
	return out, err
}

func (s *PostgresStore) DeleteLesson(ctx context.Context, id int64) error {
	return s.softDelete(ctx, "lessons", "lesson", id)
}

// Activities

const activityCols = `id, lesson_id, type, title, content, order_index, quiz_questions, quiz_pass_score, created_at, updated_at`

func scanActivity(row pgx.Row) (Activity, error) {
	var (
		a   Activity
		raw []byte
	)
	if err := row.Scan(&a.ID, &a.LessonID, &a.Type, &a.Title, &a.Content, &a.OrderIndex,
		&raw, &a.QuizPassScore, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return Activity{}, err
	}
	a.QuizQuestions = DecodeQuestions(raw)
	return a, nil
}

func encodeQuestions(questions []Question) ([]byte, error) {
	if len(questions) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(questions)
	if err != nil {
		return nil, fmt.Errorf("encode quiz questions: %w", err)
	}
	return raw, nil
}

func (s *PostgresStore) ListActivities(ctx context.Context, f ActivityFilter) (Page[Activity], error) {
	if f.Type != "" && !f.Type.Valid() {
		return Page[Activity]{}, fmt.Errorf("%w: invalid type filter", ErrInvalidArgument)
	}
	w := newWhere()
	if f.LessonID != nil {
		w.eq("lesson_id", *f.LessonID)
	}
	if f.Type != "" {
		w.eq("type", string(f.Type))
	}
	return listPage(ctx, s.q, "activities", activityCols, w, "order_index ASC, id ASC", f.ListParams, scanActivity)
}

func (s *PostgresStore) GetActivity(ctx context.Context, id int64) (Activity, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	out, err := scanActivity(s.q.QueryRow(ctx,
		`SELECT `+activityCols+` FROM activities WHERE id = $1 AND NOT is_deleted`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Activity{}, notFound("activity", id)
	}
	if err != nil {
		return Activity{}, fmt.Errorf("get activity: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CreateActivity(ctx context.Context, a Activity) (Activity, error) {
	if err := validateActivity(a); err != nil {
		return Activity{}, err
	}
	raw, err := encodeQuestions(a.QuizQuestions)
	if err != nil {
		return Activity{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	if err := s.requireRef(ctx, "lessons", "lesson_id", a.LessonID); err != nil {
		return Activity{}, err
	}
	out, err := scanActivity(s.q.QueryRow(ctx,
		`INSERT INTO activities (lesson_id, type, title, content, order_index, quiz_questions, quiz_pass_score)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+activityCols,
		a.LessonID, string(a.Type), a.Title, a.Content, a.OrderIndex, raw, a.QuizPassScore))
	if err != nil {
		return Activity{}, mapErr("create activity", err)
	}
	return out, nil
}

func (s *PostgresStore) UpdateActivity(ctx context.Context, id int64, p ActivityPatch) (Activity, error) {
	var out Activity
	err := s.inTx(ctx, func(tx *PostgresStore) error {
		cur, err := tx.GetActivity(ctx, id)
		if err != nil {
			return err
		}
		if p.empty() {
			return noFields()
		}
		next, err := p.apply(cur)
		if err != nil {
			return err
		}
		if err := tx.requireRef(ctx, "lessons", "lesson_id", next.LessonID); err != nil {
			return err
		}
		raw, err := encodeQuestions(next.QuizQuestions)
		if err != nil {
			return err
		}
		out, err = scanActivity(tx.q.QueryRow(ctx,
			`UPDATE activities SET lesson_id = $2, type = $3, title = $4, content = $5,
			        order_index = $6, quiz_questions = $7, quiz_pass_score = $8, updated_at = NOW()
			 WHERE id = $1 RETURNING `+activityCols,
			id, next.LessonID, string(next.Type), next.Title, next.Content, next.OrderIndex, raw, next.QuizPassScore))
		if err != nil {
			return mapErr("update activity", err)
		}
		return nil
	})
	return out, err
}

func (s *PostgresStore) DeleteActivity(ctx context.Context, id int64) error {
	return s.softDelete(ctx, "activities", "activity", id)
}

func (s *PostgresStore) FirstQuiz(ctx context.Context, lessonID int64) (Activity, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	out, err := scanActivity(s.q.QueryRow(ctx,
		`SELECT `+activityCols+` FROM activities
		 WHERE lesson_id = $1 AND type = 'quiz' AND NOT is_deleted
		 ORDER BY order_index ASC, id ASC
		 LIMIT 1`,
		lessonID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Activity{}, fmt.Errorf("%w: no quiz for lesson %d", ErrNotFound, lessonID)
	}
	if err != nil {
		return Activity{}, fmt.Errorf("get lesson quiz: %w", err)
	}
	return out, nil
}

// Progress

const progressCols = `id, user_id, subject_id, module_id, lesson_id, activity_id, completed, score, created_at, updated_at`

func scanProgress(row pgx.Row) (ProgressRecord, error) {
	var r ProgressRecord
	err := row.Scan(&r.ID, &r.UserID, &r.SubjectID, &r.ModuleID, &r.LessonID, &r.ActivityID,
		&r.Completed, &r.Score, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func (s *PostgresStore) insertProgress(ctx context.Context, rec ProgressRecord) (ProgressRecord, error) {
	if rec.UserID == "" {
		return ProgressRecord{}, fmt.Errorf("%w: user_id is required", ErrInvalidArgument)
	}
	if _, ok := rec.Target(); !ok {
		return ProgressRecord{}, fmt.Errorf("%w: progress record has no target", ErrInvalidArgument)
	}
	out, err := scanProgress(s.q.QueryRow(ctx,
		`INSERT INTO progress (user_id, subject_id, module_id, lesson_id, activity_id, completed, score)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+progressCols,
		rec.UserID, rec.SubjectID, rec.ModuleID, rec.LessonID, rec.ActivityID, rec.Completed, rec.Score))
	if err != nil {
		return ProgressRecord{}, mapErr("insert progress", err)
	}
	return out, nil
}

// AppendProgress inserts every record in one transaction.
func (s *PostgresStore) AppendProgress(ctx context.Context, records ...ProgressRecord) ([]ProgressRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	out := make([]ProgressRecord, 0, len(records))
	err := s.inTx(ctx, func(tx *PostgresStore) error {
		for _, rec := range records {
			saved, err := tx.insertProgress(ctx, rec)
			if err != nil {
				return err
			}
			out = append(out, saved)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) ListProgress(ctx context.Context, f ProgressFilter) (Page[ProgressRecord], error) {
	if f.UserID == "" {
		return Page[ProgressRecord]{}, fmt.Errorf("%w: user_id is required", ErrInvalidArgument)
	}
	w := newWhere()
	w.eq("user_id", f.UserID)
	if f.SubjectID != nil {
		w.eq("subject_id", *f.SubjectID)
	}
	if f.ModuleID != nil {
		w.eq("module_id", *f.ModuleID)
	}
	if f.LessonID != nil {
		w.eq("lesson_id", *f.LessonID)
	}
	if f.ActivityID != nil {
		w.eq("activity_id", *f.ActivityID)
	}
	return listPage(ctx, s.q, "progress", progressCols, w, "updated_at DESC, id DESC", f.ListParams, scanProgress)
}

func (s *PostgresStore) GetProgress(ctx context.Context, id int64) (ProgressRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	out, err := scanProgress(s.q.QueryRow(ctx,
		`SELECT `+progressCols+` FROM progress WHERE id = $1 AND NOT is_deleted`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return ProgressRecord{}, notFound("progress", id)
	}
	if err != nil {
		return ProgressRecord{}, fmt.Errorf("get progress: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) DeleteProgress(ctx context.Context, id int64) error {
	return s.softDelete(ctx, "progress", "progress", id)
}

var targetTables = map[TargetKind]string{
	TargetSubject:  "subjects",
	TargetModule:   "modules",
	TargetLesson:   "lessons",
	TargetActivity: "activities",
}

func (s *PostgresStore) UpsertProgress(ctx context.Context, u ProgressUpsert) (ProgressRecord, error) {
	rec, err := u.Record()
	if err != nil {
		return ProgressRecord{}, err
	}
	target, _ := rec.Target()

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var out ProgressRecord
	err = s.inTx(ctx, func(tx *PostgresStore) error {
		if err := tx.requireRef(ctx, targetTables[target.Kind], string(target.Kind)+"_id", target.ID); err != nil {
			return err
		}
		var id int64
		err := tx.q.QueryRow(ctx,
			`SELECT id FROM progress
			 WHERE user_id = $1
			   AND subject_id IS NOT DISTINCT FROM $2
			   AND module_id IS NOT DISTINCT FROM $3
			   AND lesson_id IS NOT DISTINCT FROM $4
			   AND activity_id IS NOT DISTINCT FROM $5
			   AND NOT is_deleted
			 ORDER BY updated_at DESC, id DESC
			 LIMIT 1
			 FOR UPDATE`,
			rec.UserID, rec.SubjectID, rec.ModuleID, rec.LessonID, rec.ActivityID,
		).Scan(&id)
		if errors.Is(err, pgx.ErrNoRows) {
			out, err = tx.insertProgress(ctx, rec)
			return err
		}
		if err != nil {
			return fmt.Errorf("find progress: %w", err)
		}
		out, err = scanProgress(tx.q.QueryRow(ctx,
			`UPDATE progress SET completed = $2, score = $3, updated_at = NOW()
			 WHERE id = $1 RETURNING `+progressCols,
			id, rec.Completed, rec.Score))
		if err != nil {
			return mapErr("update progress", err)
		}
		return nil
	})
	return out, err
}

func (s *PostgresStore) LessonProgress(ctx context.Context, userID string, lessonIDs ...int64) ([]ProgressRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.q.Query(ctx,
		`SELECT `+progressCols+` FROM progress
		 WHERE user_id = $1 AND lesson_id = ANY($2) AND NOT is_deleted
		 ORDER BY id ASC`,
		userID, lessonIDs)
	if err != nil {
		return nil, fmt.Errorf("list lesson progress: %w", err)
	}
	return collect(rows, scanProgress)
}
