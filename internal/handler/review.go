package handler

import (
	"fmt"
	"net/http"
	"time"

	"learner-portal/internal/client"
	"learner-portal/internal/dto"
	"learner-portal/internal/middleware"
	"learner-portal/internal/model"
	"learner-portal/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type ReviewResult struct {
	Review *model.Review       `json:"review"`
	Course *model.Course       `json:"course,omitempty"`
	State  service.ReviewState `json:"state"`
}

type reviewEntry struct {
	userID int64
	gate   *service.ReviewGate
}

type ReviewHandler struct {
	courseClient client.CourseClient
	resolver     service.EnrollmentResolver
	log          zerolog.Logger

	gates *service.Registry[reviewEntry]
}

func NewReviewHandler(courseClient client.CourseClient, resolver service.EnrollmentResolver, log zerolog.Logger) *ReviewHandler {
	return &ReviewHandler{
		courseClient: courseClient,
		resolver:     resolver,
		log:          log,
		gates:        service.NewRegistry[reviewEntry](nil),
	}
}

func (h *ReviewHandler) GetReviews(c echo.Context) error {
	ctx := c.Request().Context()

	courseID, err := int64Param(c, "id")
	if err != nil {
		return err
	}

	course, err := h.courseClient.GetCourse(ctx, courseID)
	if err != nil {
		return toHTTPError(fmt.Errorf("get course: %w", err))
	}

	viewer := middleware.ViewerFrom(c)

	// anonymous viewers can never review, so nothing is kept for them
	gate := service.NewReviewGate(h.courseClient, viewer, courseID, h.log)
	if viewer.Authenticated {
		gate = h.gate(c, viewer, courseID)
	}
	if err := gate.Load(ctx); err != nil {
		return toHTTPError(err)
	}

	tier := h.resolver.Resolve(ctx, viewer, course)
	return c.JSON(http.StatusOK, gate.State(tier))
}

func (h *ReviewHandler) SubmitReview(c echo.Context) error {
	ctx := c.Request().Context()

	courseID, err := int64Param(c, "id")
	if err != nil {
		return err
	}

	viewer := middleware.ViewerFrom(c)
	if !viewer.Authenticated {
		return echo.NewHTTPError(http.StatusUnauthorized, "login required")
	}

	var req dto.ReviewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	course, err := h.courseClient.GetCourse(ctx, courseID)
	if err != nil {
		return toHTTPError(fmt.Errorf("get course: %w", err))
	}

	tier := h.resolver.Resolve(ctx, viewer, course)
	gate := h.gate(c, viewer, courseID)

	review, err := gate.Submit(ctx, tier, req.Rating, req.Comment)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusCreated, ReviewResult{
		Review: review,
		Course: gate.Course(),
		State:  gate.State(tier),
	})
}

// RemoveSession drops the review gates held for a browser session.
func (h *ReviewHandler) RemoveSession(sessionID string) {
	h.gates.RemoveSession(sessionID)
}

// SweepBefore drops review gates idle since cutoff.
func (h *ReviewHandler) SweepBefore(cutoff time.Time) int {
	return h.gates.SweepBefore(cutoff)
}

// gate returns the review gate for this session and course. A gate built for
// a different user is replaced.
func (h *ReviewHandler) gate(c echo.Context, viewer model.Viewer, courseID int64) *service.ReviewGate {
	key := service.WatchSessionKey(middleware.SessionIDFrom(c), courseID)

	e, ok := h.gates.Get(key)
	if ok && e.userID == viewer.UserID {
		return e.gate
	}

	entry := reviewEntry{
		userID: viewer.UserID,
		gate:   service.NewReviewGate(h.courseClient, viewer, courseID, h.log),
	}
	if ok {
		h.gates.Put(key, entry)
		return entry.gate
	}
	return h.gates.PutIfAbsent(key, entry).gate
}
