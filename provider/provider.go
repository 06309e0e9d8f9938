package provider

import (
	"context"
	"errors"
	"time"

	"github.com/pravin-sketch/studyflow-ai1/config"
	groq_provider "github.com/pravin-sketch/studyflow-ai1/provider/groq"
)

// Client represents different LLM providers.
type Client string

const (
	Groq      Client = "groq"
	OpenAI    Client = "openai"
	Anthropic Client = "anthropic"
)

// Message is one turn in a conversation sent to a completion API.
type Message = groq_provider.Message

// Options tunes a single completion call.
type Options = groq_provider.Options

// Provider is the interface all LLM backends must satisfy.
type Provider interface {
	// ChatCompletion sends the ordered message list to the given model
	// and returns the assistant text.
	ChatCompletion(ctx context.Context, model string, messages []Message, opts Options) (string, error)
	// Transcribe converts an audio recording into text.
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// NewProvider creates an LLM client from config.
func NewProvider(client Client, cfg config.GroqConfig) (Provider, error) {
	switch client {
	case Groq:
		if cfg.APIKey == "" {
			return nil, errors.New("groq api key not configured (providers.groq.api_key)")
		}
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 60 * time.Second
		}
		return groq_provider.NewClient(cfg.APIKey, cfg.ChatURL, cfg.TranscriptionURL, cfg.WhisperModel, timeout), nil
	case OpenAI:
		return nil, errors.New("openai client not implemented yet")
	case Anthropic:
		return nil, errors.New("anthropic client not implemented yet")
	default:
		return nil, errors.New("unsupported LLM provider")
	}
}
