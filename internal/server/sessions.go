package server

import (
	"log"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/pravin-sketch/studyflow-ai1/internal/prompt"
	"github.com/pravin-sketch/studyflow-ai1/internal/rag"
	"github.com/pravin-sketch/studyflow-ai1/internal/store"
	"github.com/pravin-sketch/studyflow-ai1/internal/topic"
	"github.com/pravin-sketch/studyflow-ai1/internal/usage"
	"github.com/pravin-sketch/studyflow-ai1/provider"
)

const (
	chatHistoryWindow = 20
	autoTitleLimit    = 50

	apologyMessage    = "I'm sorry, I couldn't process that message. Please try again in a moment."
	emptyReplyMessage = "I couldn't generate a response. Please try rephrasing your message."
)

type SessionsHandler struct {
	Store  *store.Store
	LLM    provider.Provider
	Models topic.ModelTable
	Rag    *rag.Sessions
	Usage  *usage.Tracker
	TopK   int
	Logger *log.Logger
}

func (h *SessionsHandler) Register(g *echo.Group, secret []byte) {
	g.Use(withAuth(secret))
	g.GET("", h.list)
	g.POST("", h.create)
	g.GET("/:id", h.get)
	g.PUT("/:id", h.rename)
	g.DELETE("/:id", h.remove)
	g.GET("/:id/messages", h.messages)
	g.POST("/:id/messages", h.addMessage)
	g.POST("/:id/chat", h.chat)
}

func (h *SessionsHandler) list(c echo.Context) error {
	userID := c.Get("user_id").(string)
	items, err := h.Store.ListSessions(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []store.SessionRecord{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *SessionsHandler) create(c echo.Context) error {
	userID := c.Get("user_id").(string)
	var req CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Title == "" {
		req.Title = "New Chat"
	}
	id, err := h.Store.CreateSession(c.Request().Context(), userID, req.Title)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, map[string]string{"id": id})
}

func (h *SessionsHandler) get(c echo.Context) error {
	userID := c.Get("user_id").(string)
	sess, err := h.Store.GetSession(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	return c.JSON(http.StatusOK, sess)
}

func (h *SessionsHandler) rename(c echo.Context) error {
	userID := c.Get("user_id").(string)
	var req RenameSessionRequest
	if err := c.Bind(&req); err != nil || req.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title required")
	}
	if err := h.Store.UpdateSessionTitle(c.Request().Context(), c.Param("id"), userID, req.Title); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	return c.NoContent(http.StatusOK)
}

func (h *SessionsHandler) remove(c echo.Context) error {
	userID := c.Get("user_id").(string)
	id := c.Param("id")
	if err := h.Store.DeleteSession(c.Request().Context(), id, userID); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	h.Rag.Clear(id)
	return c.NoContent(http.StatusOK)
}

func (h *SessionsHandler) messages(c echo.Context) error {
	userID := c.Get("user_id").(string)
	id := c.Param("id")
	if _, err := h.Store.GetSession(c.Request().Context(), id, userID); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	items, err := h.Store.ListMessages(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []store.MessageRecord{}
	}
	return c.JSON(http.StatusOK, items)
}

// addMessage persists a single message without triggering a completion.
func (h *SessionsHandler) addMessage(c echo.Context) error {
	userID := c.Get("user_id").(string)
	id := c.Param("id")
	var req AddMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Role != store.RoleUser && req.Role != store.RoleAssistant {
		return echo.NewHTTPError(http.StatusBadRequest, "role must be user or assistant")
	}
	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content required")
	}
	blocked, err := h.Store.IsUserBlocked(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if blocked {
		return echo.NewHTTPError(http.StatusForbidden, "account blocked")
	}
	if _, err := h.Store.GetSession(c.Request().Context(), id, userID); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	msgID, err := h.Store.AddMessage(c.Request().Context(), id, req.Role, req.Content)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, map[string]string{"id": msgID})
}

// chat runs one full assistant turn: classify the message, route it to
// a model, retrieve document context when available, complete, and
// persist both sides of the exchange.
func (h *SessionsHandler) chat(c echo.Context) error {
	ctx := c.Request().Context()
	userID := c.Get("user_id").(string)
	sessionID := c.Param("id")

	blocked, err := h.Store.IsUserBlocked(ctx, userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if blocked {
		return echo.NewHTTPError(http.StatusForbidden, "account blocked")
	}

	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message required")
	}

	sess, err := h.Store.GetSession(ctx, sessionID, userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}

	// History is captured before the new message is stored so the
	// completion sees it exactly once.
	history, err := h.Store.ListRecentMessages(ctx, sessionID, chatHistoryWindow)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if _, err := h.Store.AddMessage(ctx, sessionID, store.RoleUser, req.Message); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	docTopic, docContent := h.sessionTopic(c, sessionID)
	msgCategory := topic.ClassifyMessage(req.Message)
	category, model := topic.Route(docTopic, msgCategory, h.Models)

	query := prompt.EnrichQuery(req.Message, userMessages(history))
	index, _ := h.Rag.Get(sessionID)
	system := prompt.BuildSystemPrompt(docTopic, docContent, category, index, query, h.TopK)

	messages := make([]provider.Message, 0, len(history)+2)
	messages = append(messages, provider.Message{Role: "system", Content: system})
	for _, m := range history {
		messages = append(messages, provider.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, provider.Message{Role: "user", Content: req.Message})

	reply, err := h.LLM.ChatCompletion(ctx, model, messages, provider.Options{Temperature: 0.7, MaxTokens: 2048})
	if err != nil {
		chatFailures.Inc()
		h.Logger.Printf("chat completion failed (session %s): %v", sessionID, err)
		if _, aerr := h.Store.AddMessage(ctx, sessionID, store.RoleAssistant, apologyMessage); aerr != nil {
			h.Logger.Printf("persist apology failed: %v", aerr)
		}
		return echo.NewHTTPError(http.StatusBadGateway, "completion failed")
	}
	if strings.TrimSpace(reply) == "" {
		reply = emptyReplyMessage
	}
	if _, err := h.Store.AddMessage(ctx, sessionID, store.RoleAssistant, reply); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	chatTurns.WithLabelValues(string(category), model).Inc()
	h.recordUsage(c, userID, system, history, req.Message, reply)
	h.maybeAutoTitle(c, sess, req.Message)

	return c.JSON(http.StatusOK, ChatResponse{Message: reply, Category: category, Model: model})
}

// sessionTopic loads the stored document classification for a session,
// if one exists, along with the extracted text used when the in-memory
// index is gone (e.g. after a restart).
func (h *SessionsHandler) sessionTopic(c echo.Context, sessionID string) (*topic.Detected, string) {
	doc, found, err := h.Store.GetSessionDocument(c.Request().Context(), sessionID)
	if err != nil {
		h.Logger.Printf("load session document failed (session %s): %v", sessionID, err)
		return nil, ""
	}
	if !found {
		return nil, ""
	}
	cat := topic.Category(doc.Category)
	if !cat.Valid() {
		cat = topic.General
	}
	return &topic.Detected{
		Category:    cat,
		Subject:     doc.Subject,
		Model:       h.Models.Model(cat),
		Confidence:  doc.Confidence,
		Emoji:       doc.Emoji,
		Description: topic.Descriptions[cat],
	}, doc.Text
}

func (h *SessionsHandler) recordUsage(c echo.Context, userID, system string, history []store.MessageRecord, message, reply string) {
	total := len(system) + len(message) + len(reply)
	for _, m := range history {
		total += len(m.Content)
	}
	tokens := int64(total / 4)
	h.Usage.Record(c.Request().Context(), userID, tokens)
	if err := h.Store.RecordUsage(c.Request().Context(), userID, tokens); err != nil {
		h.Logger.Printf("record usage failed: %v", err)
	}
}

func (h *SessionsHandler) maybeAutoTitle(c echo.Context, sess store.SessionRecord, message string) {
	if sess.Title != "" && sess.Title != "New Chat" {
		return
	}
	title := message
	if len(title) > autoTitleLimit {
		title = title[:autoTitleLimit]
	}
	if err := h.Store.UpdateSessionTitle(c.Request().Context(), sess.ID, sess.UserID, title); err != nil {
		h.Logger.Printf("auto-title failed: %v", err)
	}
}

func userMessages(history []store.MessageRecord) []string {
	var out []string
	for _, m := range history {
		if m.Role == store.RoleUser {
			out = append(out, m.Content)
		}
	}
	return out
}
