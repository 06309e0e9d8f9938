package server

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/pravin-sketch/studyflow-ai1/internal/runtime"
	"github.com/pravin-sketch/studyflow-ai1/internal/store"
)

const adminSearchLimit = 20

type AdminHandler struct {
	Store  *store.Store
	Search *DocSearch
	Secret []byte
}

func (h *AdminHandler) Register(g *echo.Group, secret []byte) {
	g.POST("/login", h.login)

	protected := g.Group("")
	protected.Use(withAuth(secret), runtime.RequireScopes(runtime.ScopeAdmin))
	protected.POST("/change-password", h.changePassword)
	protected.GET("/users", h.users)
	protected.POST("/users/:id/block", h.blockUser)
	protected.GET("/users/:id/sessions", h.userSessions)
	protected.GET("/sessions/:id/messages", h.sessionMessages)
	protected.GET("/documents", h.documents)
	protected.GET("/documents/search", h.searchDocuments)
	protected.GET("/documents/:id/download", h.downloadDocument)
	protected.GET("/stats", h.stats)
	protected.POST("/clear-chats", h.clearChats)
	protected.GET("/export/users", h.exportUsers)
	protected.GET("/export/documents", h.exportDocuments)
}

func (h *AdminHandler) login(c echo.Context) error {
	var req AdminLoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	id, hash, err := h.Store.GetAdminByUsername(c.Request().Context(), req.Username)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}
	signed, err := runtime.SignJWT(id, h.Secret, 12*time.Hour, runtime.ScopeAdmin)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, TokenResponse{Token: signed})
}

func (h *AdminHandler) changePassword(c echo.Context) error {
	var req AdminChangePasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(req.NewPassword) < 8 {
		return echo.NewHTTPError(http.StatusBadRequest, "password too short")
	}
	username := c.QueryParam("username")
	if username == "" {
		username = "admin"
	}
	_, hash, err := h.Store.GetAdminByUsername(c.Request().Context(), username)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "admin not found")
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.CurrentPassword)) != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}
	newHash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if err := h.Store.UpdateAdminPassword(c.Request().Context(), username, string(newHash)); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusOK)
}

func (h *AdminHandler) users(c echo.Context) error {
	items, err := h.Store.ListUsers(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []store.UserRecord{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *AdminHandler) blockUser(c echo.Context) error {
	var req BlockUserRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.Store.SetUserBlocked(c.Request().Context(), c.Param("id"), req.Blocked); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	return c.NoContent(http.StatusOK)
}

func (h *AdminHandler) userSessions(c echo.Context) error {
	items, err := h.Store.ListSessions(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []store.SessionRecord{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *AdminHandler) sessionMessages(c echo.Context) error {
	items, err := h.Store.ListMessages(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []store.MessageRecord{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *AdminHandler) documents(c echo.Context) error {
	items, err := h.Store.ListDocuments(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if items == nil {
		items = []store.DocumentRecord{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *AdminHandler) searchDocuments(c echo.Context) error {
	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q required")
	}
	k, _ := strconv.Atoi(c.QueryParam("limit"))
	if k <= 0 || k > 100 {
		k = adminSearchLimit
	}
	hits, err := h.Search.Search(q, k)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, SearchResponse{Hits: hits})
}

func (h *AdminHandler) downloadDocument(c echo.Context) error {
	doc, err := h.Store.GetDocumentByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "document not found")
	}
	contentType := doc.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Response().Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	return c.Blob(http.StatusOK, contentType, doc.Data)
}

func (h *AdminHandler) stats(c echo.Context) error {
	st, err := h.Store.Stats(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, st)
}

func (h *AdminHandler) clearChats(c echo.Context) error {
	if err := h.Store.ClearChats(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusOK)
}

func (h *AdminHandler) exportUsers(c echo.Context) error {
	items, err := h.Store.ListUsers(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	c.Response().Header().Set(echo.HeaderContentType, "text/csv")
	c.Response().Header().Set("Content-Disposition", `attachment; filename="users.csv"`)
	c.Response().WriteHeader(http.StatusOK)
	w := csv.NewWriter(c.Response())
	if err := w.Write([]string{"id", "email", "blocked", "created_at", "sessions", "messages", "documents", "tokens"}); err != nil {
		return err
	}
	for _, u := range items {
		rec := []string{
			u.ID, u.Email, strconv.FormatBool(u.IsBlocked), u.CreatedAt.Format(time.RFC3339),
			strconv.FormatInt(u.Sessions, 10), strconv.FormatInt(u.Messages, 10),
			strconv.FormatInt(u.Documents, 10), strconv.FormatInt(u.Tokens, 10),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func (h *AdminHandler) exportDocuments(c echo.Context) error {
	items, err := h.Store.ListDocuments(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	c.Response().Header().Set(echo.HeaderContentType, "text/csv")
	c.Response().Header().Set("Content-Disposition", `attachment; filename="documents.csv"`)
	c.Response().WriteHeader(http.StatusOK)
	w := csv.NewWriter(c.Response())
	if err := w.Write([]string{"id", "session_id", "user_email", "filename", "subject", "category", "size_bytes", "created_at"}); err != nil {
		return err
	}
	for _, d := range items {
		rec := []string{
			d.ID, d.SessionID, d.UserEmail, d.Filename, d.Subject, d.Category,
			strconv.FormatInt(d.SizeBytes, 10), d.CreatedAt.Format(time.RFC3339),
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
