package quizgen

import (
	"fmt"
	"strings"
)

const systemPrompt = "You write short multiple-choice quizzes for lessons. " +
	"Reply with JSON only: an object with a \"questions\" array of 3 items. " +
	"Each item has \"question\" (string), \"options\" (exactly 4 strings) and " +
	"\"answerIndex\" (integer 0-3 pointing at the correct option)."

func userPrompt(title, content, difficulty string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a %d-question quiz for this lesson.\n", QuestionsPerQuiz)
	fmt.Fprintf(&b, "Title: %s\n", title)
	fmt.Fprintf(&b, "Difficulty: %s\n", difficulty)
	fmt.Fprintf(&b, "Content:\n%s\n\n", content)
	b.WriteString("Target the key points of the content and make sure answerIndex marks the best option.\n")
	b.WriteString(`Shape: {"questions": [{"question": "...", "options": ["...", "...", "...", "..."], "answerIndex": 0}]}`)
	return b.String()
}
