package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/pravin-sketch/studyflow-ai1/internal/store"
	"github.com/pravin-sketch/studyflow-ai1/internal/usage"
)

type MeHandler struct {
	Store *store.Store
	Usage *usage.Tracker
}

func (h *MeHandler) Register(g *echo.Group, secret []byte) {
	g.Use(withAuth(secret))
	g.GET("", h.profile)
	g.GET("/status", h.status)
}

func (h *MeHandler) profile(c echo.Context) error {
	userID := c.Get("user_id").(string)
	p, err := h.Store.UserProfile(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

func (h *MeHandler) status(c echo.Context) error {
	userID := c.Get("user_id").(string)
	blocked, err := h.Store.IsUserBlocked(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, StatusResponse{
		UserID:      userID,
		TokensToday: h.Usage.Today(c.Request().Context(), userID),
		Blocked:     blocked,
	})
}
