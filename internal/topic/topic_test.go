package topic

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/pravin-sketch/studyflow-ai1/provider"
)

func TestClassifyMessage(t *testing.T) {
	cases := []struct {
		message string
		want    Category
	}{
		{"how do I debug this python function", Coding},
		{"explain recursion with a code example", Coding},
		{"tell me about atoms and molecules", Science},
		{"derive the integral of x squared", Science},
		{"what's a good recipe for pasta", Casual},
		{"how are you today", Casual},
		{"tell me about the french revolution", General},
		{"", General},
		{"THE DNA MOLECULE", Science}, // case-insensitive
	}
	for _, tc := range cases {
		if got := ClassifyMessage(tc.message); got != tc.want {
			t.Errorf("ClassifyMessage(%q) = %q, want %q", tc.message, got, tc.want)
		}
	}
}

func TestClassifyMessagePriority(t *testing.T) {
	// Two coding hits beat a single science hit.
	if got := ClassifyMessage("the code for this algorithm models energy"); got != Coding {
		t.Fatalf("got %q, want coding", got)
	}
	// Casual needs only parity to win over single-hit categories.
	if got := ClassifyMessage("a movie about an experiment"); got != Casual {
		t.Fatalf("got %q, want casual", got)
	}
}

func TestModelTableFallback(t *testing.T) {
	table := ModelTable{General: "fallback-model"}
	if got := table.Model(Coding); got != "fallback-model" {
		t.Fatalf("got %q, want fallback", got)
	}
	table[Coding] = "code-model"
	if got := table.Model(Coding); got != "code-model" {
		t.Fatalf("got %q, want code-model", got)
	}
}

func TestRoute(t *testing.T) {
	models := DefaultModels
	doc := &Detected{Category: Science, Model: "science-model"}

	// No document: message category wins.
	cat, model := Route(nil, Coding, models)
	if cat != Coding || model != models.Model(Coding) {
		t.Fatalf("got %q/%q", cat, model)
	}

	// Document + general message: inherit the document specialist.
	cat, model = Route(doc, General, models)
	if cat != Science || model != "science-model" {
		t.Fatalf("got %q/%q, want science inherit", cat, model)
	}

	// Document + clearly off-document message: switch for this turn.
	cat, model = Route(doc, Casual, models)
	if cat != Casual || model != models.Model(Casual) {
		t.Fatalf("got %q/%q, want casual", cat, model)
	}
}

func TestExtractObject(t *testing.T) {
	got, err := ExtractObject("Sure! Here you go:\n```json\n{\"a\": 1}\n```")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `{"a": 1}` {
		t.Fatalf("got %q", got)
	}
	if _, err := ExtractObject("no json here"); !errors.Is(err, ErrNoJSON) {
		t.Fatalf("expected ErrNoJSON, got %v", err)
	}
}

func TestExtractArray(t *testing.T) {
	got, err := ExtractArray(`text [1,2,{"x":[3]}] trailing`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `[1,2,{"x":[3]}]` {
		t.Fatalf("got %q", got)
	}
}

type stubLLM struct {
	reply  string
	err    error
	model  string
	prompt string
}

func (s *stubLLM) ChatCompletion(ctx context.Context, model string, messages []provider.Message, opts provider.Options) (string, error) {
	s.model = model
	if len(messages) > 0 {
		s.prompt = messages[0].Content
	}
	return s.reply, s.err
}

func (s *stubLLM) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	return "", errors.New("not implemented")
}

func newTestDetector(llm provider.Provider) *Detector {
	d := NewDetector(llm, DefaultModels)
	d.Logger = log.New(&bytes.Buffer{}, "", 0)
	return d
}

func TestDetectParsesWrappedJSON(t *testing.T) {
	llm := &stubLLM{reply: "Here is the result:\n{\"category\": \"science\", \"subject\": \"Biology\", \"confidence\": 0.92, \"emoji\": \"🧬\"}"}
	det := newTestDetector(llm).Detect(context.Background(), "mitochondria are the powerhouse of the cell")
	if det.Category != Science || det.Subject != "Biology" || det.Confidence != 0.92 || det.Emoji != "🧬" {
		t.Fatalf("unexpected detection: %+v", det)
	}
	if det.Model != DefaultModels.Model(Science) {
		t.Fatalf("model not resolved: %q", det.Model)
	}
}

func TestDetectDefaultsOnTransportError(t *testing.T) {
	llm := &stubLLM{err: errors.New("boom")}
	det := newTestDetector(llm).Detect(context.Background(), "anything")
	if det != DefaultDetected(DefaultModels) {
		t.Fatalf("expected default detection, got %+v", det)
	}
}

func TestDetectDefaultsOnMalformedJSON(t *testing.T) {
	llm := &stubLLM{reply: "{not json at all"}
	det := newTestDetector(llm).Detect(context.Background(), "anything")
	if det != DefaultDetected(DefaultModels) {
		t.Fatalf("expected default detection, got %+v", det)
	}
}

func TestDetectDefaultsOnUnknownCategory(t *testing.T) {
	llm := &stubLLM{reply: `{"category": "philosophy", "subject": "Ethics"}`}
	det := newTestDetector(llm).Detect(context.Background(), "anything")
	if det != DefaultDetected(DefaultModels) {
		t.Fatalf("expected default detection, got %+v", det)
	}
}

func TestDetectFillsMissingFields(t *testing.T) {
	llm := &stubLLM{reply: `{"category": "coding"}`}
	det := newTestDetector(llm).Detect(context.Background(), "anything")
	if det.Subject != "General" || det.Confidence != 0.8 || det.Emoji != Emojis[Coding] {
		t.Fatalf("defaults not applied: %+v", det)
	}
}

func TestDetectSnippetKeepsRunesIntact(t *testing.T) {
	llm := &stubLLM{reply: `{"category": "general", "subject": "History", "confidence": 0.9, "emoji": "📜"}`}
	// Offset by one byte so the snippet cap lands inside a 2-byte rune.
	content := "a" + strings.Repeat("é", 3000)
	newTestDetector(llm).Detect(context.Background(), content)
	if !utf8.ValidString(llm.prompt) {
		t.Fatal("classification prompt contains a split rune")
	}
}

func TestTruncateOnRuneBoundary(t *testing.T) {
	s := "a" + strings.Repeat("é", 10)
	got := truncate(s, 4)
	if got != "aé" {
		t.Fatalf("got %q", got)
	}
	if !utf8.ValidString(got) || len(got) > 4 {
		t.Fatalf("invalid truncation %q", got)
	}
	if truncate("short", 100) != "short" {
		t.Fatal("under-limit string modified")
	}
}
