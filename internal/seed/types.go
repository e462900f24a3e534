package seed

// File is one seed document. Subjects feed the relational store and
// Catalog feeds the document catalog.
type File struct {
	Subjects []Subject `yaml:"subjects"`
	Catalog  Catalog   `yaml:"catalog"`
}

// Subject describes a subject with its skills and the modules that sit
// directly under it.
type Subject struct {
	Slug        string   `yaml:"slug"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Skills      []Skill  `yaml:"skills"`
	Modules     []Module `yaml:"modules"`
}

// Skill is a progression level within a subject.
type Skill struct {
	Slug        string   `yaml:"slug"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Level       string   `yaml:"level"`
	Tags        []string `yaml:"tags"`
	Modules     []Module `yaml:"modules"`
}

// Module is an ordered group of lessons.
type Module struct {
	Slug        string   `yaml:"slug"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	OrderIndex  int      `yaml:"order_index"`
	Lessons     []Lesson `yaml:"lessons"`
}

// Lesson is one step of a module.
type Lesson struct {
	Slug       string     `yaml:"slug"`
	Title      string     `yaml:"title"`
	Content    string     `yaml:"content"`
	OrderIndex int        `yaml:"order_index"`
	Activities []Activity `yaml:"activities"`
}

// Activity is content or a quiz attached to a lesson.
type Activity struct {
	Type       string     `yaml:"type"`
	Title      string     `yaml:"title"`
	Content    string     `yaml:"content"`
	OrderIndex int        `yaml:"order_index"`
	PassScore  *float64   `yaml:"pass_score"`
	Questions  []Question `yaml:"questions"`
}

// Question is a multiple-choice quiz question.
type Question struct {
	Question    string   `yaml:"question"`
	Options     []string `yaml:"options"`
	AnswerIndex int      `yaml:"answerIndex"`
}

// Catalog holds document catalog content.
type Catalog struct {
	Skills  []CatalogSkill  `yaml:"skills"`
	Lessons []CatalogLesson `yaml:"lessons"`
}

// CatalogSkill is a catalog skill document.
type CatalogSkill struct {
	Slug        string   `yaml:"slug"`
	Name        string   `yaml:"name"`
	Category    string   `yaml:"category"`
	Description string   `yaml:"description"`
	Difficulty  string   `yaml:"difficulty"`
	Tags        []string `yaml:"tags"`
}

// CatalogLesson is a catalog lesson document with its quiz and badge.
type CatalogLesson struct {
	Slug       string     `yaml:"slug"`
	Title      string     `yaml:"title"`
	Summary    string     `yaml:"summary"`
	Content    string     `yaml:"content"`
	Media      string     `yaml:"media"`
	Difficulty string     `yaml:"difficulty"`
	Tags       []string   `yaml:"tags"`
	SkillSlug  string     `yaml:"skill_slug"`
	Category   string     `yaml:"category"`
	Quiz       []Question `yaml:"quiz"`
	Badge      Badge      `yaml:"badge"`
}

// Badge is awarded on lesson completion.
type Badge struct {
	Name   string `yaml:"name"`
	Points int    `yaml:"points"`
}
