package topic

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"unicode/utf8"

	"github.com/pravin-sketch/studyflow-ai1/provider"
)

// documentSnippet caps how much of a document is sent for
// classification.
const documentSnippet = 3000

const detectPromptTemplate = `Analyze this text and classify it into exactly one category.

Text:
"""
%s
"""

Respond with ONLY a JSON object (no markdown, no explanation):
{
  "category": "coding" | "science" | "general" | "casual",
  "subject": "short subject name e.g. Biology, Python Programming, History",
  "confidence": 0.0-1.0,
  "emoji": "single relevant emoji"
}

Rules:
- coding: programming, software, algorithms, web dev, data structures, CS theory
- science: biology, chemistry, physics, mathematics, medicine, engineering
- general: history, literature, philosophy, business, law, economics, social sciences
- casual: personal topics, creative writing, recipes, travel, daily life`

// Detector classifies whole documents with an LLM call.
type Detector struct {
	LLM    provider.Provider
	Model  string // model used for the classification call itself
	Models ModelTable
	Logger *log.Logger
}

func NewDetector(llm provider.Provider, models ModelTable) *Detector {
	return &Detector{
		LLM:    llm,
		Model:  models.Model(General),
		Models: models,
		Logger: log.New(log.Writer(), "[TOPIC] ", log.LstdFlags),
	}
}

// Detect classifies up to the first 3000 characters of content.
// Classification failure is absorbed, never propagated: any transport
// error, malformed JSON or out-of-enum category yields the default
// general topic.
func (d *Detector) Detect(ctx context.Context, content string) Detected {
	prompt := fmt.Sprintf(detectPromptTemplate, truncate(content, documentSnippet))

	text, err := d.LLM.ChatCompletion(ctx, d.Model,
		[]provider.Message{{Role: "user", Content: prompt}},
		provider.Options{Temperature: 0.1, MaxTokens: 200})
	if err != nil {
		d.logf("topic detection failed: %v", err)
		return DefaultDetected(d.Models)
	}

	raw, err := ExtractObject(text)
	if err != nil {
		d.logf("topic detection: %v", err)
		return DefaultDetected(d.Models)
	}

	var parsed struct {
		Category   Category `json:"category"`
		Subject    string   `json:"subject"`
		Confidence float64  `json:"confidence"`
		Emoji      string   `json:"emoji"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		d.logf("topic detection: parse: %v", err)
		return DefaultDetected(d.Models)
	}
	if !parsed.Category.Valid() {
		d.logf("topic detection: category %q outside enum", parsed.Category)
		return DefaultDetected(d.Models)
	}

	det := Detected{
		Category:    parsed.Category,
		Subject:     parsed.Subject,
		Model:       d.Models.Model(parsed.Category),
		Confidence:  parsed.Confidence,
		Emoji:       parsed.Emoji,
		Description: Descriptions[parsed.Category],
	}
	if det.Subject == "" {
		det.Subject = "General"
	}
	if det.Confidence == 0 {
		det.Confidence = 0.8
	}
	if det.Emoji == "" {
		det.Emoji = Emojis[parsed.Category]
	}
	return det
}

func (d *Detector) logf(format string, args ...interface{}) {
	if d.Logger != nil {
		d.Logger.Printf(format, args...)
	}
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
