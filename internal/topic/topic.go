// Package topic classifies text into one of four fixed subject
// categories and maps each category to a backend completion model.
// Two classifiers exist: a network-backed document classifier and a
// local keyword heuristic that runs on every outgoing message.
package topic

// Category is a fixed subject classification. There is no "unknown"
// state; everything unresolvable is General.
type Category string

const (
	Coding  Category = "coding"
	Science Category = "science"
	General Category = "general"
	Casual  Category = "casual"
)

// Valid reports whether c is one of the four fixed categories.
func (c Category) Valid() bool {
	switch c {
	case Coding, Science, General, Casual:
		return true
	}
	return false
}

// Detected is the topic classification of an uploaded document.
// Immutable; produced once per upload (or defaulted when
// classification fails).
type Detected struct {
	Category    Category `json:"category"`
	Subject     string   `json:"subject"`
	Model       string   `json:"model"`
	Confidence  float64  `json:"confidence"`
	Emoji       string   `json:"emoji"`
	Description string   `json:"description"`
}

// ModelTable maps categories to backend model identifiers.
type ModelTable map[Category]string

// DefaultModels mirrors the Groq model ids the product ships with.
var DefaultModels = ModelTable{
	General: "llama-3.3-70b-versatile",
	Coding:  "llama-3.3-70b-versatile",
	Science: "llama-3.3-70b-versatile",
	Casual:  "llama3-8b-8192",
}

// Model resolves a category to a model id, falling back to General.
func (t ModelTable) Model(c Category) string {
	if m, ok := t[c]; ok && m != "" {
		return m
	}
	return t[General]
}

// Descriptions are the human-readable model blurbs per category.
var Descriptions = map[Category]string{
	Coding:  "LLaMA3 70B — Optimized for code & algorithms",
	Science: "LLaMA 3.1 70B — Expert in STEM subjects",
	General: "LLaMA 3.3 70B — Versatile knowledge base",
	Casual:  "LLaMA3 8B — Friendly conversational AI",
}

// Emojis are the per-category badges shown with a detected topic.
var Emojis = map[Category]string{
	Coding:  "💻",
	Science: "🔬",
	General: "📚",
	Casual:  "☕",
}

// DefaultDetected is the absorbed-failure fallback: classification
// errors never propagate, they resolve to a general-purpose topic.
func DefaultDetected(models ModelTable) Detected {
	return Detected{
		Category:    General,
		Subject:     "General",
		Model:       models.Model(General),
		Confidence:  0.5,
		Emoji:       "📚",
		Description: Descriptions[General],
	}
}
