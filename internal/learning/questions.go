package learning

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// OptionsPerQuestion is the fixed number of options of a quiz question.
const OptionsPerQuestion = 4

// Question is a multiple-choice quiz question. AnswerIndex is nil when the
// stored value is missing or could not be decoded.
type Question struct {
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	AnswerIndex *int     `json:"answerIndex"`
}

// Grade reports whether answer selects the correct option. ok is false when
// the question itself is malformed and cannot be graded.
func (q Question) Grade(answer int) (correct, ok bool) {
	if q.AnswerIndex == nil {
		return false, false
	}
	idx := *q.AnswerIndex
	if idx < 0 || idx >= OptionsPerQuestion {
		return false, false
	}
	return answer == idx, true
}

// NewQuestion builds a question with the given correct option index.
func NewQuestion(text string, options []string, answerIndex int) Question {
	return Question{Question: text, Options: options, AnswerIndex: &answerIndex}
}

// DecodeQuestions decodes a stored question list element by element. An
// element that does not decode becomes a Question with a nil AnswerIndex so
// that the list keeps its length and order. A payload that is not a list
// decodes as no questions.
func DecodeQuestions(raw []byte) []Question {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		slog.Warn("stored quiz questions are not a list, treating as empty", "error", err)
		return nil
	}

	questions := make([]Question, len(items))
	for i, item := range items {
		var q Question
		if err := json.Unmarshal(item, &q); err != nil {
			continue
		}
		questions[i] = q
	}
	return questions
}

const questionSchema = `{
  "type": "object",
  "required": ["question", "options", "answerIndex"],
  "properties": {
    "question": {"type": "string", "pattern": "\\S"},
    "options": {
      "type": "array",
      "minItems": 4,
      "maxItems": 4,
      "items": {"type": "string", "pattern": "\\S"}
    },
    "answerIndex": {"type": "integer", "minimum": 0, "maximum": 3}
  }
}`

var loadQuestionSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(questionSchema))
})

// ValidateQuestion checks a single question against the question schema.
func ValidateQuestion(q Question) error {
	schema, err := loadQuestionSchema()
	if err != nil {
		return fmt.Errorf("load question schema: %w", err)
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(q))
	if err != nil {
		return fmt.Errorf("validate question: %w", err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalidArgument, strings.Join(msgs, "; "))
}

// ValidateQuestions checks every question and reports the first failure
// with its index.
func ValidateQuestions(questions []Question) error {
	for i, q := range questions {
		if err := ValidateQuestion(q); err != nil {
			return fmt.Errorf("question %d: %w", i, err)
		}
	}
	return nil
}
