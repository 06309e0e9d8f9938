package server

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"

	"github.com/pravin-sketch/studyflow-ai1/internal/rag"
	"github.com/pravin-sketch/studyflow-ai1/internal/store"
	"github.com/pravin-sketch/studyflow-ai1/internal/study"
	"github.com/pravin-sketch/studyflow-ai1/internal/topic"
	"github.com/pravin-sketch/studyflow-ai1/provider"
)

// hookProvider runs fn before answering, so a test can interleave
// work while a handler is waiting on the LLM.
type hookProvider struct {
	stubProvider
	fn func()
}

func (p *hookProvider) ChatCompletion(ctx context.Context, model string, messages []provider.Message, opts provider.Options) (string, error) {
	if p.fn != nil {
		p.fn()
	}
	return p.stubProvider.ChatCompletion(ctx, model, messages, opts)
}

func newDocsTest(t *testing.T, llm provider.Provider) (*DocumentsHandler, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	search, err := NewDocSearch()
	if err != nil {
		t.Fatalf("NewDocSearch: %v", err)
	}
	detector := topic.NewDetector(llm, topic.DefaultModels)
	detector.Logger = quietLogger()
	h := &DocumentsHandler{
		Store:        &store.Store{DB: db},
		LLM:          llm,
		Detector:     detector,
		Study:        study.NewGenerator(llm, topic.DefaultModels),
		Rag:          rag.NewSessions(),
		Search:       search,
		Models:       topic.DefaultModels,
		ChunkSize:    rag.ChunkSize,
		ChunkOverlap: rag.ChunkOverlap,
		Logger:       quietLogger(),
	}
	return h, mock, func() { db.Close() }
}

func multipartContext(t *testing.T, path, field, filename string, content []byte) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatal(err)
	}
	mw.Close()

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("sess-1")
	c.Set("user_id", "user-1")
	return c, rec
}

func TestUploadTextDocument(t *testing.T) {
	llm := &stubProvider{reply: `{"category": "science", "subject": "Cell Biology", "confidence": 0.95, "emoji": "🧫"}`}
	h, mock, done := newDocsTest(t, llm)
	defer done()

	expectSession(mock, "Bio study")
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO documents`)).
		WithArgs("sess-1", "user-1", "cells.txt", sqlmock.AnyArg(), sqlmock.AnyArg(),
			"Cell Biology", "science", "🧫", 0.95, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("doc-1"))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE chat_sessions SET has_document=$2, document_name=$3, updated_at=NOW() WHERE id=$1`)).
		WithArgs("sess-1", true, "cells.txt").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT u.id, u.email, u.created_at`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "created_at", "sessions", "messages", "documents", "tokens"}).
			AddRow("user-1", "a@b.com", time.Now(), 1, 2, 1, 100))

	content := []byte("The cell divides through mitosis. Chromosomes align along the metaphase plate before separation.")
	c, rec := multipartContext(t, "/api/sessions/sess-1/document", "file", "cells.txt", content)
	if err := h.upload(c); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp UploadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.DocumentID != "doc-1" || resp.Subject != "Cell Biology" || resp.Category != topic.Science {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Chunks == 0 || resp.Words == 0 {
		t.Fatalf("index stats missing: %+v", resp)
	}

	// The in-memory index is live for this session now.
	idx, ok := h.Rag.Get("sess-1")
	if !ok || idx.Subject != "Cell Biology" {
		t.Fatalf("index not committed: %+v ok=%v", idx, ok)
	}

	// And the upload is findable in the admin search.
	hits, err := h.Search.Search("mitosis", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 || hits[0].DocumentID != "doc-1" {
		t.Fatalf("unexpected hits: %+v", hits)
	}
}

func TestUploadSupersededSkipsPersistence(t *testing.T) {
	llm := &hookProvider{stubProvider: stubProvider{reply: `{"category": "science", "subject": "Cell Biology", "confidence": 0.95, "emoji": "🧫"}`}}
	h, mock, done := newDocsTest(t, llm)
	defer done()

	// A faster re-upload lands while this one is still classifying.
	llm.fn = func() {
		gen := h.Rag.Begin("sess-1")
		newer := rag.BuildIndexSized("photosynthesis converts light into chemical energy", "Plant Biology", h.ChunkSize, h.ChunkOverlap)
		h.Rag.Commit("sess-1", gen, &newer)
	}

	// Only the session lookup: the stale build must write nothing.
	expectSession(mock, "Bio study")

	content := []byte("The cell divides through mitosis.")
	c, _ := multipartContext(t, "/api/sessions/sess-1/document", "file", "cells.txt", content)
	err := h.upload(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %v", err)
	}
	idx, ok := h.Rag.Get("sess-1")
	if !ok || idx.Subject != "Plant Biology" {
		t.Fatalf("newer index overwritten: %+v ok=%v", idx, ok)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unexpected database writes: %v", err)
	}
}

func TestUploadUnsupportedType(t *testing.T) {
	h, mock, done := newDocsTest(t, &stubProvider{})
	defer done()

	expectSession(mock, "Chat")
	c, _ := multipartContext(t, "/api/sessions/sess-1/document", "file", "track.mp3", []byte("RIFF"))
	err := h.upload(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %v", err)
	}
}

func TestUploadMissingFile(t *testing.T) {
	h, mock, done := newDocsTest(t, &stubProvider{})
	defer done()

	expectSession(mock, "Chat")
	c, _ := multipartContext(t, "/api/sessions/sess-1/document", "wrongfield", "notes.txt", []byte("text"))
	err := h.upload(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func expectSessionDocument(mock sqlmock.Sqlmock, text string) {
	mock.ExpectQuery(`SELECT id, session_id, user_id, filename, .* FROM documents WHERE session_id=\$1`).
		WithArgs("sess-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "session_id", "user_id", "filename", "content_type", "size_bytes", "subject", "category", "emoji", "confidence", "extracted_text", "created_at"}).
			AddRow("doc-1", "sess-1", "user-1", "bio.pdf", "application/pdf", 1234, "Biology", "science", "🔬", 0.9, text, time.Now()))
}

func jsonContext(t *testing.T, path string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, path, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("sess-1")
	c.Set("user_id", "user-1")
	return c, rec
}

func TestSummaryUsesStoredDocument(t *testing.T) {
	llm := &stubProvider{reply: "## 📋 Overview\nCells divide."}
	h, mock, done := newDocsTest(t, llm)
	defer done()

	expectSession(mock, "Bio study")
	expectSessionDocument(mock, "cells divide by mitosis")

	c, rec := jsonContext(t, "/api/sessions/sess-1/summary")
	if err := h.summary(c); err != nil {
		t.Fatalf("summary: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp SummaryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Summary == "" {
		t.Fatal("empty summary")
	}
	if llm.opts.Temperature != 0.3 || llm.opts.MaxTokens != 1500 {
		t.Fatalf("unexpected summary options: %+v", llm.opts)
	}
}

func TestSummaryWithoutDocument(t *testing.T) {
	h, mock, done := newDocsTest(t, &stubProvider{})
	defer done()

	expectSession(mock, "Chat")
	mock.ExpectQuery(`SELECT id, session_id, user_id, filename, .* FROM documents WHERE session_id=\$1`).
		WithArgs("sess-1").
		WillReturnError(sql.ErrNoRows)

	c, _ := jsonContext(t, "/api/sessions/sess-1/summary")
	err := h.summary(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestFlashcardsParsesWrappedArray(t *testing.T) {
	llm := &stubProvider{reply: "Here are your cards:\n[{\"front\":\"What is mitosis?\",\"back\":\"Cell division.\"}]"}
	h, mock, done := newDocsTest(t, llm)
	defer done()

	expectSession(mock, "Bio study")
	expectSessionDocument(mock, "cells divide by mitosis")

	c, rec := jsonContext(t, "/api/sessions/sess-1/flashcards")
	if err := h.flashcards(c); err != nil {
		t.Fatalf("flashcards: %v", err)
	}
	var resp FlashcardsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Flashcards) != 1 || resp.Flashcards[0].Front != "What is mitosis?" {
		t.Fatalf("unexpected cards: %+v", resp.Flashcards)
	}
}

func TestQuizOptions(t *testing.T) {
	llm := &stubProvider{reply: `[{"question":"Q?","options":["a","b","c","d"],"correctIndex":2,"explanation":"because"}]`}
	h, mock, done := newDocsTest(t, llm)
	defer done()

	expectSession(mock, "Bio study")
	expectSessionDocument(mock, "cells divide by mitosis")

	c, rec := jsonContext(t, "/api/sessions/sess-1/quiz")
	if err := h.quiz(c); err != nil {
		t.Fatalf("quiz: %v", err)
	}
	var resp QuizResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Questions) != 1 || resp.Questions[0].CorrectIndex != 2 {
		t.Fatalf("unexpected questions: %+v", resp.Questions)
	}
	if llm.opts.Temperature != 0.4 || llm.opts.MaxTokens != 2500 {
		t.Fatalf("unexpected quiz options: %+v", llm.opts)
	}
}

func TestTranscribe(t *testing.T) {
	llm := &stubProvider{transcript: "hello from the recording"}
	h, _, done := newDocsTest(t, llm)
	defer done()

	c, rec := multipartContext(t, "/api/transcribe", "file", "memo.m4a", []byte("audio-bytes"))
	if err := h.Transcribe(c); err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	var resp TranscribeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Text != "hello from the recording" {
		t.Fatalf("got %q", resp.Text)
	}
}
