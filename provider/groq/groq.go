package groq_provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const (
	defaultChatURL          = "https://api.groq.com/openai/v1/chat/completions"
	defaultTranscriptionURL = "https://api.groq.com/openai/v1/audio/transcriptions"
	defaultWhisperModel     = "whisper-large-v3-turbo"
)

// client talks to Groq's OpenAI-compatible HTTP API.
type client struct {
	apiKey           string
	chatURL          string
	transcriptionURL string
	whisperModel     string
	httpClient       *http.Client
}

// Message represents a message in a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options tunes a single completion request.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// request represents a chat completion request body.
type request struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream"`
}

// response represents a chat completion response body.
type response struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// NewClient creates a Groq client. Empty URLs fall back to the public
// endpoints.
func NewClient(apiKey, chatURL, transcriptionURL, whisperModel string, timeout time.Duration) *client {
	if chatURL == "" {
		chatURL = defaultChatURL
	}
	if transcriptionURL == "" {
		transcriptionURL = defaultTranscriptionURL
	}
	if whisperModel == "" {
		whisperModel = defaultWhisperModel
	}
	return &client{
		apiKey:           apiKey,
		chatURL:          chatURL,
		transcriptionURL: transcriptionURL,
		whisperModel:     whisperModel,
		httpClient:       &http.Client{Timeout: timeout},
	}
}

// ChatCompletion sends messages to the given model and returns the
// assistant text.
func (c *client) ChatCompletion(ctx context.Context, model string, messages []Message, opts Options) (string, error) {
	body := request{
		Model:       model,
		Messages:    messages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		Stream:      false,
	}
	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.chatURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	var out response
	if err := json.Unmarshal(raw, &out); err != nil {
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("API returned status: %d", resp.StatusCode)
		}
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if out.Error != nil && out.Error.Message != "" {
			return "", fmt.Errorf("API error (%d): %s", resp.StatusCode, out.Error.Message)
		}
		return "", fmt.Errorf("API returned status: %d", resp.StatusCode)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return out.Choices[0].Message.Content, nil
}

// Transcribe sends an audio recording to the Whisper endpoint and
// returns the transcript text.
func (c *client) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if filename == "" {
		filename = "recording.webm"
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("failed to build form: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("failed to build form: %w", err)
	}
	_ = w.WriteField("model", c.whisperModel)
	_ = w.WriteField("response_format", "json")
	_ = w.WriteField("language", "en")
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to build form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.transcriptionURL, &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	var out struct {
		Text  string    `json:"text"`
		Error *apiError `json:"error"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("whisper API returned status: %d", resp.StatusCode)
		}
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if out.Error != nil && out.Error.Message != "" {
			return "", fmt.Errorf("whisper API error (%d): %s", resp.StatusCode, out.Error.Message)
		}
		return "", fmt.Errorf("whisper API returned status: %d", resp.StatusCode)
	}
	return strings.TrimSpace(out.Text), nil
}
