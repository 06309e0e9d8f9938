// Package study generates study aids (summaries, flashcards, quizzes)
// from an uploaded document via the completion provider.
package study

import (
	"context"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/pravin-sketch/studyflow-ai1/internal/topic"
	"github.com/pravin-sketch/studyflow-ai1/provider"
)

// Content caps per tool; keeps prompts inside model context limits.
const (
	summaryContentLimit = 10000
	cardsContentLimit   = 8000
)

const (
	DefaultFlashcardCount = 10
	DefaultQuizCount      = 8
)

// Generator runs study-tool prompts against one model.
type Generator struct {
	LLM   provider.Provider
	Model string
}

func NewGenerator(llm provider.Provider, models topic.ModelTable) *Generator {
	return &Generator{LLM: llm, Model: models.Model(topic.General)}
}

// Summarize produces a structured markdown summary of the document.
func (g *Generator) Summarize(ctx context.Context, docContent, subject string) (string, error) {
	prompt := fmt.Sprintf(`You are an expert study assistant. Create a comprehensive, well-structured summary of this document about %q.

Structure your summary as:
## 📋 Overview
[2-3 sentence overview]

## 🔑 Key Points
[5-8 bullet points of the most important concepts]

## 📚 Main Topics Covered
[List the main sections/topics]

## 💡 Key Takeaways
[3-5 actionable insights or conclusions]

Document content:
"""
%s
"""`, subject, clip(docContent, summaryContentLimit))

	out, err := g.LLM.ChatCompletion(ctx, g.Model,
		[]provider.Message{{Role: "user", Content: prompt}},
		provider.Options{Temperature: 0.3, MaxTokens: 1500})
	if err != nil {
		return "", fmt.Errorf("summary generation: %w", err)
	}
	return out, nil
}

// Flashcard is one front/back study card.
type Flashcard struct {
	ID    string `json:"id"`
	Front string `json:"front"`
	Back  string `json:"back"`
}

// Flashcards generates count cards from the document.
func (g *Generator) Flashcards(ctx context.Context, docContent, subject string, count int) ([]Flashcard, error) {
	if count <= 0 {
		count = DefaultFlashcardCount
	}
	prompt := fmt.Sprintf(`You are a study assistant. Generate exactly %d flashcards from this document about %q.

Each flashcard should test a key concept, definition, or fact from the document.

Respond with ONLY a JSON array (no markdown, no explanation):
[
  {"front": "Question or concept", "back": "Answer or explanation"},
  ...
]

Document content:
"""
%s
"""`, count, subject, clip(docContent, cardsContentLimit))

	out, err := g.LLM.ChatCompletion(ctx, g.Model,
		[]provider.Message{{Role: "user", Content: prompt}},
		provider.Options{Temperature: 0.4, MaxTokens: 2000})
	if err != nil {
		return nil, fmt.Errorf("flashcard generation: %w", err)
	}

	raw, err := topic.ExtractArray(out)
	if err != nil {
		return nil, nil
	}
	var cards []Flashcard
	if err := json.Unmarshal([]byte(raw), &cards); err != nil {
		return nil, fmt.Errorf("flashcard generation: parse: %w", err)
	}
	for i := range cards {
		cards[i].ID = fmt.Sprint(i)
	}
	return cards, nil
}

// QuizQuestion is one multiple-choice question with exactly four
// options.
type QuizQuestion struct {
	ID           string   `json:"id"`
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
	Explanation  string   `json:"explanation"`
}

// Quiz generates count multiple-choice questions from the document.
func (g *Generator) Quiz(ctx context.Context, docContent, subject string, count int) ([]QuizQuestion, error) {
	if count <= 0 {
		count = DefaultQuizCount
	}
	prompt := fmt.Sprintf(`You are a study assistant. Generate exactly %d multiple-choice quiz questions from this document about %q.

Each question must have exactly 4 options with one correct answer.

Respond with ONLY a JSON array (no markdown, no explanation):
[
  {
    "question": "Question text?",
    "options": ["Option A", "Option B", "Option C", "Option D"],
    "correctIndex": 0,
    "explanation": "Brief explanation of why this is correct"
  },
  ...
]

Document content:
"""
%s
"""`, count, subject, clip(docContent, cardsContentLimit))

	out, err := g.LLM.ChatCompletion(ctx, g.Model,
		[]provider.Message{{Role: "user", Content: prompt}},
		provider.Options{Temperature: 0.4, MaxTokens: 2500})
	if err != nil {
		return nil, fmt.Errorf("quiz generation: %w", err)
	}

	raw, err := topic.ExtractArray(out)
	if err != nil {
		return nil, nil
	}
	var questions []QuizQuestion
	if err := json.Unmarshal([]byte(raw), &questions); err != nil {
		return nil, fmt.Errorf("quiz generation: parse: %w", err)
	}
	for i := range questions {
		questions[i].ID = fmt.Sprint(i)
	}
	return questions, nil
}

// clip cuts s to at most n bytes without splitting a rune.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
