package handler

import (
	"net/http"

	"learner-portal/internal/client"
	"learner-portal/internal/dto"
	"learner-portal/internal/middleware"
	"learner-portal/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type AuthHandler struct {
	courseClient client.CourseClient
	sessions     *service.WatchSessions
	courses      *CourseHandler
	reviews      *ReviewHandler
	log          zerolog.Logger
}

func NewAuthHandler(courseClient client.CourseClient, sessions *service.WatchSessions, courses *CourseHandler, reviews *ReviewHandler, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		courseClient: courseClient,
		sessions:     sessions,
		courses:      courses,
		reviews:      reviews,
		log:          log,
	}
}

func (h *AuthHandler) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, middleware.ViewerFrom(c))
}

// Logout ends the backend session and closes everything this browser had
// open. Local state is cleared even if the backend call fails.
func (h *AuthHandler) Logout(c echo.Context) error {
	sid := middleware.SessionIDFrom(c)

	closed := h.sessions.RemoveSession(sid)
	h.courses.RemoveSession(sid)
	h.reviews.RemoveSession(sid)
	h.log.Debug().Str("session_id", sid).Int("watch_sessions", closed).Msg("session cleared")

	if err := h.courseClient.Logout(c.Request().Context()); err != nil {
		h.log.Warn().Err(err).Msg("backend logout failed")
	}

	for _, ck := range c.Request().Cookies() {
		if ck.Name == middleware.SessionName {
			continue
		}
		c.SetCookie(&http.Cookie{Name: ck.Name, Value: "", Path: "/", MaxAge: -1})
	}

	return c.JSON(http.StatusOK, dto.MessageResponse{Message: "logged out"})
}
