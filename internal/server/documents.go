package server

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pravin-sketch/studyflow-ai1/internal/extract"
	"github.com/pravin-sketch/studyflow-ai1/internal/rag"
	"github.com/pravin-sketch/studyflow-ai1/internal/store"
	"github.com/pravin-sketch/studyflow-ai1/internal/study"
	"github.com/pravin-sketch/studyflow-ai1/internal/topic"
	"github.com/pravin-sketch/studyflow-ai1/provider"
)

const maxUploadBytes = 20 << 20 // 20 MiB

type DocumentsHandler struct {
	Store        *store.Store
	LLM          provider.Provider
	Detector     *topic.Detector
	Study        *study.Generator
	Rag          *rag.Sessions
	Search       *DocSearch
	Models       topic.ModelTable
	ChunkSize    int
	ChunkOverlap int
	Logger       *log.Logger
}

// Register adds document routes to an already-authenticated sessions
// group.
func (h *DocumentsHandler) Register(g *echo.Group) {
	g.POST("/:id/document", h.upload)
	g.GET("/:id/document", h.info)
	g.DELETE("/:id/document", h.remove)
	g.POST("/:id/summary", h.summary)
	g.POST("/:id/flashcards", h.flashcards)
	g.POST("/:id/quiz", h.quiz)
}

// upload ingests a document for a session: extract text, classify the
// topic, chunk into the in-memory index, and persist. Re-uploads
// replace the previous document wholesale.
func (h *DocumentsHandler) upload(c echo.Context) error {
	ctx := c.Request().Context()
	userID := c.Get("user_id").(string)
	sessionID := c.Param("id")

	if _, err := h.Store.GetSession(ctx, sessionID, userID); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}

	fh, err := c.FormFile("file")
	if err != nil {
		documentUploads.WithLabelValues("error").Inc()
		return echo.NewHTTPError(http.StatusBadRequest, "file required")
	}
	if fh.Size > maxUploadBytes {
		documentUploads.WithLabelValues("too_large").Inc()
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file too large")
	}
	src, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	defer src.Close()
	data, err := io.ReadAll(io.LimitReader(src, maxUploadBytes+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if int64(len(data)) > maxUploadBytes {
		documentUploads.WithLabelValues("too_large").Inc()
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file too large")
	}

	contentType := fh.Header.Get("Content-Type")
	text, err := extract.Text(fh.Filename, contentType, data)
	if err != nil {
		switch {
		case errors.Is(err, extract.ErrUnsupportedType):
			documentUploads.WithLabelValues("unsupported").Inc()
			return echo.NewHTTPError(http.StatusUnsupportedMediaType, "unsupported file type")
		case errors.Is(err, extract.ErrNoText):
			documentUploads.WithLabelValues("empty").Inc()
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "no readable text in file")
		default:
			documentUploads.WithLabelValues("error").Inc()
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		}
	}

	// Begin before the slow classification call so a concurrent
	// re-upload supersedes this one instead of racing it.
	gen := h.Rag.Begin(sessionID)

	detected := make(chan topic.Detected, 1)
	go func() { detected <- h.Detector.Detect(ctx, text) }()

	idx := rag.BuildIndexSized(text, "", h.ChunkSize, h.ChunkOverlap)
	det := <-detected
	if det == topic.DefaultDetected(h.Models) {
		topicFallbacks.Inc()
	}
	idx.Subject = det.Subject

	// Commit before persisting: when a concurrent re-upload has taken a
	// newer generation, this build must not touch the session's row
	// either, or Postgres would hold the stale document while the live
	// index serves the newer one.
	if !h.Rag.Commit(sessionID, gen, &idx) {
		documentUploads.WithLabelValues("superseded").Inc()
		h.Logger.Printf("upload superseded by a newer upload (session %s)", sessionID)
		return echo.NewHTTPError(http.StatusConflict, "superseded by a newer upload")
	}

	docID, err := h.Store.UpsertDocument(ctx, store.DocumentRecord{
		SessionID:   sessionID,
		UserID:      userID,
		Filename:    fh.Filename,
		ContentType: contentType,
		SizeBytes:   int64(len(data)),
		Subject:     det.Subject,
		Category:    string(det.Category),
		Emoji:       det.Emoji,
		Confidence:  det.Confidence,
		Text:        text,
		Data:        data,
	})
	if err != nil {
		documentUploads.WithLabelValues("error").Inc()
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if err := h.Store.SetSessionDocument(ctx, sessionID, true, fh.Filename); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	entry := docEntry{
		Filename:  fh.Filename,
		Subject:   det.Subject,
		Category:  string(det.Category),
		Text:      text,
		CreatedAt: time.Now(),
	}
	if p, perr := h.Store.UserProfile(ctx, userID); perr == nil {
		entry.UserEmail = p.Email
	}
	if err := h.Search.Index(docID, entry); err != nil {
		h.Logger.Printf("search index failed (doc %s): %v", docID, err)
	}

	documentUploads.WithLabelValues("ok").Inc()
	return c.JSON(http.StatusCreated, UploadResponse{
		DocumentID: docID,
		Filename:   fh.Filename,
		Subject:    det.Subject,
		Category:   det.Category,
		Emoji:      det.Emoji,
		Confidence: det.Confidence,
		Words:      idx.TotalWords,
		Chunks:     len(idx.Chunks),
	})
}

func (h *DocumentsHandler) info(c echo.Context) error {
	ctx := c.Request().Context()
	userID := c.Get("user_id").(string)
	sessionID := c.Param("id")
	if _, err := h.Store.GetSession(ctx, sessionID, userID); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	doc, found, err := h.Store.GetSessionDocument(ctx, sessionID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !found {
		return echo.NewHTTPError(http.StatusNotFound, "no document")
	}
	doc.Text = ""
	return c.JSON(http.StatusOK, doc)
}

func (h *DocumentsHandler) remove(c echo.Context) error {
	ctx := c.Request().Context()
	userID := c.Get("user_id").(string)
	sessionID := c.Param("id")
	if _, err := h.Store.GetSession(ctx, sessionID, userID); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	doc, found, err := h.Store.GetSessionDocument(ctx, sessionID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if found {
		if err := h.Store.DeleteSessionDocument(ctx, sessionID); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		if err := h.Search.Delete(doc.ID); err != nil {
			h.Logger.Printf("search delete failed (doc %s): %v", doc.ID, err)
		}
	}
	if err := h.Store.SetSessionDocument(ctx, sessionID, false, ""); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	h.Rag.Clear(sessionID)
	return c.NoContent(http.StatusOK)
}

func (h *DocumentsHandler) summary(c echo.Context) error {
	doc, err := h.sessionDoc(c)
	if err != nil {
		return err
	}
	out, err := h.Study.Summarize(c.Request().Context(), doc.Text, doc.Subject)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, SummaryResponse{Summary: out})
}

func (h *DocumentsHandler) flashcards(c echo.Context) error {
	doc, err := h.sessionDoc(c)
	if err != nil {
		return err
	}
	count, _ := strconv.Atoi(c.QueryParam("count"))
	cards, err := h.Study.Flashcards(c.Request().Context(), doc.Text, doc.Subject, count)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	if cards == nil {
		cards = []study.Flashcard{}
	}
	return c.JSON(http.StatusOK, FlashcardsResponse{Flashcards: cards})
}

func (h *DocumentsHandler) quiz(c echo.Context) error {
	doc, err := h.sessionDoc(c)
	if err != nil {
		return err
	}
	count, _ := strconv.Atoi(c.QueryParam("count"))
	questions, err := h.Study.Quiz(c.Request().Context(), doc.Text, doc.Subject, count)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	if questions == nil {
		questions = []study.QuizQuestion{}
	}
	return c.JSON(http.StatusOK, QuizResponse{Questions: questions})
}

// sessionDoc resolves the current session's document for study tools.
func (h *DocumentsHandler) sessionDoc(c echo.Context) (store.DocumentRecord, error) {
	ctx := c.Request().Context()
	userID := c.Get("user_id").(string)
	sessionID := c.Param("id")
	if _, err := h.Store.GetSession(ctx, sessionID, userID); err != nil {
		return store.DocumentRecord{}, echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	doc, found, err := h.Store.GetSessionDocument(ctx, sessionID)
	if err != nil {
		return store.DocumentRecord{}, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !found {
		return store.DocumentRecord{}, echo.NewHTTPError(http.StatusNotFound, "no document uploaded for this session")
	}
	return doc, nil
}

// Transcribe converts an uploaded audio file to text via the provider's
// speech endpoint.
func (h *DocumentsHandler) Transcribe(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file required")
	}
	if fh.Size > maxUploadBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file too large")
	}
	src, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	text, err := h.LLM.Transcribe(c.Request().Context(), data, fh.Filename)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, TranscribeResponse{Text: text})
}
