package server

import (
	"time"

	"github.com/pravin-sketch/studyflow-ai1/internal/study"
	"github.com/pravin-sketch/studyflow-ai1/internal/topic"
)

// HTTPError is the uniform error body returned by all endpoints.
type HTTPError struct {
	Error string `json:"error"`
}

type AuthSignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

type CreateSessionRequest struct {
	Title string `json:"title"`
}

type RenameSessionRequest struct {
	Title string `json:"title"`
}

type AddMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Message string `json:"message"`
}

type ChatResponse struct {
	Message  string         `json:"message"`
	Category topic.Category `json:"category"`
	Model    string         `json:"model"`
}

// UploadResponse describes an ingested document and its detected topic.
type UploadResponse struct {
	DocumentID string         `json:"document_id"`
	Filename   string         `json:"filename"`
	Subject    string         `json:"subject"`
	Category   topic.Category `json:"category"`
	Emoji      string         `json:"emoji"`
	Confidence float64        `json:"confidence"`
	Words      int            `json:"words"`
	Chunks     int            `json:"chunks"`
}

type SummaryResponse struct {
	Summary string `json:"summary"`
}

type FlashcardsResponse struct {
	Flashcards []study.Flashcard `json:"flashcards"`
}

type QuizResponse struct {
	Questions []study.QuizQuestion `json:"questions"`
}

type TranscribeResponse struct {
	Text string `json:"text"`
}

type StatusResponse struct {
	UserID      string `json:"user_id"`
	TokensToday int64  `json:"tokens_today"`
	Blocked     bool   `json:"blocked"`
}

type AdminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AdminChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type BlockUserRequest struct {
	Blocked bool `json:"blocked"`
}

// SearchHit is one admin document-search result.
type SearchHit struct {
	DocumentID string    `json:"document_id"`
	Filename   string    `json:"filename"`
	Subject    string    `json:"subject"`
	UserEmail  string    `json:"user_email"`
	Score      float64   `json:"score"`
	CreatedAt  time.Time `json:"created_at"`
}

type SearchResponse struct {
	Hits []SearchHit `json:"hits"`
}
