package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"learner-portal/internal/client"
	"learner-portal/internal/config"
	"learner-portal/internal/middleware"
	"learner-portal/internal/repository"
	"learner-portal/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type WatchProgressRequest struct {
	Percent float64 `json:"percent"`
}

type WatchHandler struct {
	courseClient client.CourseClient
	sessions     *service.WatchSessions
	watchCfg     *config.Watch
	store        repository.CompletionRepository
	log          zerolog.Logger
}

// NewWatchHandler builds the watch page handlers. store may be nil.
func NewWatchHandler(
	courseClient client.CourseClient,
	sessions *service.WatchSessions,
	watchCfg *config.Watch,
	store repository.CompletionRepository,
	log zerolog.Logger,
) *WatchHandler {
	return &WatchHandler{
		courseClient: courseClient,
		sessions:     sessions,
		watchCfg:     watchCfg,
		store:        store,
		log:          log,
	}
}

// Open starts a watch session for the course, replacing any session this
// browser already had open on it. ?lesson= picks the initial lesson.
func (h *WatchHandler) Open(c echo.Context) error {
	ctx := c.Request().Context()

	courseID, err := int64Param(c, "id")
	if err != nil {
		return err
	}

	viewer := middleware.ViewerFrom(c)
	if !viewer.Authenticated {
		return echo.NewHTTPError(http.StatusUnauthorized, "login required")
	}

	var requested int64
	if raw := c.QueryParam("lesson"); raw != "" {
		requested, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid lesson")
		}
	}

	if _, err := h.courseClient.GetCourse(ctx, courseID); err != nil {
		return toHTTPError(fmt.Errorf("get course: %w", err))
	}

	lessons, err := h.courseClient.GetLessons(ctx, courseID)
	if err != nil {
		return toHTTPError(fmt.Errorf("get lessons: %w", err))
	}

	tracker := service.NewProgressTracker(ctx, courseID, viewer, lessons, requested, h.watchCfg, h.store, h.log)
	h.sessions.Put(h.key(c, courseID), tracker)

	return c.JSON(http.StatusOK, tracker.Snapshot())
}

func (h *WatchHandler) Get(c echo.Context) error {
	tracker, err := h.tracker(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tracker.Snapshot())
}

func (h *WatchHandler) SelectLesson(c echo.Context) error {
	tracker, err := h.tracker(c)
	if err != nil {
		return err
	}

	lessonID, err := int64Param(c, "lessonID")
	if err != nil {
		return err
	}

	if _, err := tracker.Select(lessonID); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, tracker.Snapshot())
}

func (h *WatchHandler) Progress(c echo.Context) error {
	tracker, err := h.tracker(c)
	if err != nil {
		return err
	}

	var req WatchProgressRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	tracker.OnWatchProgress(req.Percent)
	return c.JSON(http.StatusOK, tracker.Snapshot())
}

func (h *WatchHandler) CompleteLesson(c echo.Context) error {
	tracker, err := h.tracker(c)
	if err != nil {
		return err
	}

	lessonID, err := int64Param(c, "lessonID")
	if err != nil {
		return err
	}

	if err := tracker.MarkComplete(c.Request().Context(), lessonID); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, tracker.Snapshot())
}

func (h *WatchHandler) Next(c echo.Context) error {
	tracker, err := h.tracker(c)
	if err != nil {
		return err
	}

	if _, err := tracker.AdvanceNext(c.Request().Context()); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, tracker.Snapshot())
}

func (h *WatchHandler) Close(c echo.Context) error {
	courseID, err := int64Param(c, "id")
	if err != nil {
		return err
	}

	h.sessions.Remove(h.key(c, courseID))
	return c.NoContent(http.StatusNoContent)
}

func (h *WatchHandler) tracker(c echo.Context) (*service.ProgressTracker, error) {
	courseID, err := int64Param(c, "id")
	if err != nil {
		return nil, err
	}

	viewer := middleware.ViewerFrom(c)
	if !viewer.Authenticated {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "login required")
	}

	key := h.key(c, courseID)
	tracker, ok := h.sessions.Get(key)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusNotFound, "no open watch session for this course")
	}

	// the browser is now signed in as someone else
	if tracker.ViewerID() != viewer.UserID {
		h.sessions.Remove(key)
		h.log.Info().Int64("course_id", courseID).Int64("user_id", viewer.UserID).Msg("watch session of another user closed")
		return nil, echo.NewHTTPError(http.StatusNotFound, "no open watch session for this course")
	}
	return tracker, nil
}

func (h *WatchHandler) key(c echo.Context, courseID int64) string {
	return service.WatchSessionKey(middleware.SessionIDFrom(c), courseID)
}
