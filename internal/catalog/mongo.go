package catalog

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/p-n-ai/pai-learn/internal/learning"
)

const (
	skillsCollection  = "skills"
	lessonsCollection = "lessons"

	dbTimeout = 5 * time.Second
)

// MongoStore implements Store on two MongoDB collections.
type MongoStore struct {
	skills  *mongo.Collection
	lessons *mongo.Collection
}

// NewMongoStore creates a catalog store on db. Call EnsureIndexes once
// before serving traffic.
func NewMongoStore(db *mongo.Database) (*MongoStore, error) {
	if db == nil {
		return nil, fmt.Errorf("mongo database is nil")
	}
	return &MongoStore{
		skills:  db.Collection(skillsCollection),
		lessons: db.Collection(lessonsCollection),
	}, nil
}

// EnsureIndexes creates the unique slug indexes and the lookup indexes.
// It is safe to call repeatedly.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	_, err := s.skills.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true).SetName("skill_slug_unique")},
		{Keys: bson.D{{Key: "category", Value: 1}, {Key: "slug", Value: 1}}, Options: options.Index().SetName("skill_category_slug")},
	})
	if err != nil {
		return fmt.Errorf("creating skill indexes: %w", err)
	}

	_, err = s.lessons.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true).SetName("lesson_slug_unique")},
		{Keys: bson.D{{Key: "skillSlug", Value: 1}}, Options: options.Index().SetName("lesson_skill_slug")},
		{Keys: bson.D{{Key: "category", Value: 1}}, Options: options.Index().SetName("lesson_category")},
	})
	if err != nil {
		return fmt.Errorf("creating lesson indexes: %w", err)
	}
	return nil
}

type skillDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Name        string             `bson:"name"`
	Slug        string             `bson:"slug"`
	Category    string             `bson:"category"`
	Description *string            `bson:"description,omitempty"`
	Tags        []string           `bson:"tags"`
	Difficulty  string             `bson:"difficulty"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

func (d skillDoc) skill() Skill {
	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}
	return Skill{
		ID:          d.ID.Hex(),
		Name:        d.Name,
		Slug:        d.Slug,
		Category:    d.Category,
		Description: d.Description,
		Tags:        tags,
		Difficulty:  d.Difficulty,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}

func newSkillDoc(s Skill) skillDoc {
	id, _ := primitive.ObjectIDFromHex(s.ID)
	return skillDoc{
		ID:          id,
		Name:        s.Name,
		Slug:        s.Slug,
		Category:    s.Category,
		Description: s.Description,
		Tags:        s.Tags,
		Difficulty:  s.Difficulty,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

type questionDoc struct {
	Question    string   `bson:"question"`
	Options     []string `bson:"options"`
	AnswerIndex *int     `bson:"answerIndex"`
}

type lessonDoc struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	Title      string             `bson:"title"`
	Slug       string             `bson:"slug"`
	Summary    *string            `bson:"summary,omitempty"`
	Content    string             `bson:"content"`
	Media      *string            `bson:"media,omitempty"`
	Tags       []string           `bson:"tags"`
	Difficulty string             `bson:"difficulty"`
	Quiz       []questionDoc      `bson:"quiz"`
	Badge      Badge              `bson:"badge"`
	SkillSlug  string             `bson:"skillSlug"`
	Category   string             `bson:"category"`
	CreatedAt  time.Time          `bson:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt"`
}

func (d lessonDoc) lesson() Lesson {
	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}
	quiz := make([]learning.Question, len(d.Quiz))
	for i, q := range d.Quiz {
		quiz[i] = learning.Question{Question: q.Question, Options: q.Options, AnswerIndex: q.AnswerIndex}
	}
	return Lesson{
		ID:         d.ID.Hex(),
		Title:      d.Title,
		Slug:       d.Slug,
		Summary:    d.Summary,
		Content:    d.Content,
		Media:      d.Media,
		Tags:       tags,
		Difficulty: d.Difficulty,
		Quiz:       quiz,
		Badge:      d.Badge,
		SkillSlug:  d.SkillSlug,
		Category:   d.Category,
		CreatedAt:  d.CreatedAt.UTC(),
		UpdatedAt:  d.UpdatedAt.UTC(),
	}
}

func newLessonDoc(l Lesson) lessonDoc {
	id, _ := primitive.ObjectIDFromHex(l.ID)
	quiz := make([]questionDoc, len(l.Quiz))
	for i, q := range l.Quiz {
		quiz[i] = questionDoc{Question: q.Question, Options: q.Options, AnswerIndex: q.AnswerIndex}
	}
	return lessonDoc{
		ID:         id,
		Title:      l.Title,
		Slug:       l.Slug,
		Summary:    l.Summary,
		Content:    l.Content,
		Media:      l.Media,
		Tags:       l.Tags,
		Difficulty: l.Difficulty,
		Quiz:       quiz,
		Badge:      l.Badge,
		SkillSlug:  l.SkillSlug,
		Category:   l.Category,
		CreatedAt:  l.CreatedAt,
		UpdatedAt:  l.UpdatedAt,
	}
}

func bySlug(slug string) bson.D {
	return bson.D{{Key: "slug", Value: slug}}
}

// skillQuery builds the Mongo filter for f. Search is matched literally.
func skillQuery(f SkillFilter) bson.D {
	q := bson.D{}
	if f.Category != "" {
		q = append(q, bson.E{Key: "category", Value: f.Category})
	}
	if f.Difficulty != "" {
		q = append(q, bson.E{Key: "difficulty", Value: f.Difficulty})
	}
	if f.Search != "" {
		re := primitive.Regex{Pattern: regexp.QuoteMeta(f.Search), Options: "i"}
		q = append(q, bson.E{Key: "$or", Value: bson.A{
			bson.D{{Key: "name", Value: re}},
			bson.D{{Key: "description", Value: re}},
			bson.D{{Key: "tags", Value: re}},
		}})
	}
	return q
}

func (s *MongoStore) ListSkills(ctx context.Context, f SkillFilter) (learning.Page[Skill], error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	p := f.Normalize()
	query := skillQuery(f)

	total, err := s.skills.CountDocuments(ctx, query)
	if err != nil {
		return learning.Page[Skill]{}, fmt.Errorf("counting skills: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}, {Key: "slug", Value: 1}}).
		SetSkip(int64(p.Offset())).
		SetLimit(int64(p.PageSize))
	cur, err := s.skills.Find(ctx, query, opts)
	if err != nil {
		return learning.Page[Skill]{}, fmt.Errorf("listing skills: %w", err)
	}
	var docs []skillDoc
	if err := cur.All(ctx, &docs); err != nil {
		return learning.Page[Skill]{}, fmt.Errorf("reading skills: %w", err)
	}

	items := make([]Skill, 0, len(docs))
	for _, d := range docs {
		items = append(items, d.skill())
	}
	return learning.Page[Skill]{Items: items, Total: int(total), Page: p.Page, PageSize: p.PageSize}, nil
}

func (s *MongoStore) GetSkill(ctx context.Context, slug string) (Skill, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var doc skillDoc
	err := s.skills.FindOne(ctx, bySlug(slug)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Skill{}, notFound("skill", slug)
	}
	if err != nil {
		return Skill{}, fmt.Errorf("getting skill: %w", err)
	}
	return doc.skill(), nil
}

func (s *MongoStore) CreateSkill(ctx context.Context, sk Skill) (Skill, error) {
	sk, err := normalizeSkill(sk)
	if err != nil {
		return Skill{}, err
	}
	sk.ID = ""
	sk.CreatedAt = now()
	sk.UpdatedAt = sk.CreatedAt

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	res, err := s.skills.InsertOne(ctx, newSkillDoc(sk))
	if mongo.IsDuplicateKeyError(err) {
		return Skill{}, conflict("skill", sk.Slug)
	}
	if err != nil {
		return Skill{}, fmt.Errorf("inserting skill: %w", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		sk.ID = id.Hex()
	}
	return sk, nil
}

func (s *MongoStore) UpdateSkill(ctx context.Context, slug string, p SkillPatch) (Skill, error) {
	cur, err := s.GetSkill(ctx, slug)
	if err != nil {
		return Skill{}, err
	}
	next, err := normalizeSkill(p.apply(cur))
	if err != nil {
		return Skill{}, err
	}
	next.UpdatedAt = now()

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	res, err := s.skills.ReplaceOne(ctx, bySlug(slug), newSkillDoc(next))
	if err != nil {
		return Skill{}, fmt.Errorf("updating skill: %w", err)
	}
	if res.MatchedCount == 0 {
		return Skill{}, notFound("skill", slug)
	}
	return next, nil
}

func (s *MongoStore) DeleteSkill(ctx context.Context, slug string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	res, err := s.skills.DeleteOne(ctx, bySlug(slug))
	if err != nil {
		return fmt.Errorf("deleting skill: %w", err)
	}
	if res.DeletedCount == 0 {
		return notFound("skill", slug)
	}
	if _, err := s.lessons.DeleteMany(ctx, bson.D{{Key: "skillSlug", Value: slug}}); err != nil {
		return fmt.Errorf("deleting lessons of skill: %w", err)
	}
	return nil
}

func (s *MongoStore) ListLessonsForSkill(ctx context.Context, skillSlug string) ([]Lesson, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "title", Value: 1}, {Key: "slug", Value: 1}})
	cur, err := s.lessons.Find(ctx, bson.D{{Key: "skillSlug", Value: skillSlug}}, opts)
	if err != nil {
		return nil, fmt.Errorf("listing lessons: %w", err)
	}
	var docs []lessonDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("reading lessons: %w", err)
	}

	out := make([]Lesson, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.lesson())
	}
	return out, nil
}

func (s *MongoStore) GetLesson(ctx context.Context, slug string) (Lesson, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var doc lessonDoc
	err := s.lessons.FindOne(ctx, bySlug(slug)).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Lesson{}, notFound("lesson", slug)
	}
	if err != nil {
		return Lesson{}, fmt.Errorf("getting lesson: %w", err)
	}
	return doc.lesson(), nil
}

func (s *MongoStore) CreateLesson(ctx context.Context, l Lesson) (Lesson, error) {
	l, err := normalizeLesson(l)
	if err != nil {
		return Lesson{}, err
	}
	l.ID = ""
	l.CreatedAt = now()
	l.UpdatedAt = l.CreatedAt

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	res, err := s.lessons.InsertOne(ctx, newLessonDoc(l))
	if mongo.IsDuplicateKeyError(err) {
		return Lesson{}, conflict("lesson", l.Slug)
	}
	if err != nil {
		return Lesson{}, fmt.Errorf("inserting lesson: %w", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		l.ID = id.Hex()
	}
	return l, nil
}

func (s *MongoStore) UpdateLesson(ctx context.Context, slug string, p LessonPatch) (Lesson, error) {
	cur, err := s.GetLesson(ctx, slug)
	if err != nil {
		return Lesson{}, err
	}
	next, err := normalizeLesson(p.apply(cur))
	if err != nil {
		return Lesson{}, err
	}
	next.UpdatedAt = now()

	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	res, err := s.lessons.ReplaceOne(ctx, bySlug(slug), newLessonDoc(next))
	if err != nil {
		return Lesson{}, fmt.Errorf("updating lesson: %w", err)
	}
	if res.MatchedCount == 0 {
		return Lesson{}, notFound("lesson", slug)
	}
	return next, nil
}

func (s *MongoStore) DeleteLesson(ctx context.Context, slug string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	res, err := s.lessons.DeleteOne(ctx, bySlug(slug))
	if err != nil {
		return fmt.Errorf("deleting lesson: %w", err)
	}
	if res.DeletedCount == 0 {
		return notFound("lesson", slug)
	}
	return nil
}
