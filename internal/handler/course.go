package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"learner-portal/internal/client"
	"learner-portal/internal/config"
	"learner-portal/internal/middleware"
	"learner-portal/internal/model"
	"learner-portal/internal/repository"
	"learner-portal/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type CourseDetail struct {
	Course       *model.Course                `json:"course"`
	Tier         model.Tier                   `json:"tier"`
	Action       service.EnrollAction         `json:"action"`
	Instructions []service.PaymentInstruction `json:"payment_instructions,omitempty"`
	Submission   *model.PaymentSubmission     `json:"last_submission,omitempty"`
}

type PaymentResult struct {
	Message string               `json:"message"`
	State   service.PaymentState `json:"state"`
}

type CourseHandler struct {
	courseClient client.CourseClient
	resolver     service.EnrollmentResolver
	paymentCfg   *config.Payment
	ledger       repository.SubmissionRepository
	log          zerolog.Logger

	surfaces *service.Registry[*service.PaymentFlow]
}

func NewCourseHandler(
	courseClient client.CourseClient,
	resolver service.EnrollmentResolver,
	paymentCfg *config.Payment,
	ledger repository.SubmissionRepository,
	log zerolog.Logger,
) *CourseHandler {
	return &CourseHandler{
		courseClient: courseClient,
		resolver:     resolver,
		paymentCfg:   paymentCfg,
		ledger:       ledger,
		log:          log,
		surfaces:     service.NewRegistry(func(f *service.PaymentFlow) { f.Close() }),
	}
}

func (h *CourseHandler) GetCourse(c echo.Context) error {
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
	tier := h.resolver.Resolve(ctx, viewer, course)
	h.reconcile(surfaceKey(c, courseID, viewer), tier)
	service.SyncSubmissions(ctx, h.ledger, viewer, courseID, tier, h.log)

	detail := CourseDetail{
		Course: course,
		Tier:   tier,
		Action: service.ActionFor(viewer, tier),
	}
	if detail.Action == service.ActionOpenPaymentForm {
		detail.Instructions = service.NewPaymentFlow(h.courseClient, h.paymentCfg, h.log, tier).Instructions()
	}
	if h.ledger != nil && viewer.Authenticated {
		submission, err := h.ledger.FindLatest(ctx, viewer.UserID, courseID)
		if err != nil {
			h.log.Warn().Err(err).Int64("course_id", courseID).Msg("load last payment submission")
		}
		detail.Submission = submission
	}

	return c.JSON(http.StatusOK, detail)
}

// SubmitPayment takes the multipart payment form (method, screenshot). The
// amount always comes from the course price.
func (h *CourseHandler) SubmitPayment(c echo.Context) error {
	ctx := c.Request().Context()

	courseID, err := int64Param(c, "id")
	if err != nil {
		return err
	}

	viewer := middleware.ViewerFrom(c)
	if !viewer.Authenticated {
		return echo.NewHTTPError(http.StatusUnauthorized, "login required")
	}

	course, err := h.courseClient.GetCourse(ctx, courseID)
	if err != nil {
		return toHTTPError(fmt.Errorf("get course: %w", err))
	}

	key := surfaceKey(c, courseID, viewer)
	flow, err := h.surface(ctx, key, viewer, course)
	if err != nil {
		return toHTTPError(err)
	}

	if method := c.FormValue("method"); method != "" {
		if err := flow.SelectMethod(model.PaymentMethod(method)); err != nil {
			return toHTTPError(err)
		}
	}

	if fh, err := c.FormFile("screenshot"); err == nil {
		f, err := fh.Open()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "unreadable screenshot")
		}
		defer f.Close()

		var r io.Reader = f
		if limit := h.paymentCfg.MaxReceiptBytes; limit > 0 {
			r = io.LimitReader(f, limit+1)
		}
		data, err := io.ReadAll(r)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "unreadable screenshot")
		}
		if err := flow.AttachReceipt(fh.Filename, data); err != nil {
			return toHTTPError(err)
		}
	}

	res, err := flow.Submit(ctx, course)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusCreated, PaymentResult{
		Message: res.Message,
		State:   flow.State(),
	})
}

// surface returns the open payment surface for key. A surface that is
// missing or closed is (re)opened against a freshly resolved tier.
func (h *CourseHandler) surface(ctx context.Context, key string, viewer model.Viewer, course *model.Course) (*service.PaymentFlow, error) {
	flow, ok := h.surfaces.Get(key)
	if ok && flow.State().Open {
		return flow, nil
	}

	tier := h.resolver.Resolve(ctx, viewer, course)
	if ok {
		flow.Reconcile(tier)
		if err := flow.Open(); err != nil {
			h.surfaces.Remove(key)
			return nil, err
		}
		return flow, nil
	}

	flow = service.NewPaymentFlow(h.courseClient, h.paymentCfg, h.log, tier).WithLedger(h.ledger, viewer)
	if err := flow.Open(); err != nil {
		return nil, err
	}
	return h.surfaces.PutIfAbsent(key, flow), nil
}

// RemoveSession drops the payment surfaces held for a browser session.
func (h *CourseHandler) RemoveSession(sessionID string) {
	h.surfaces.RemoveSession(sessionID)
}

// SweepBefore drops payment surfaces idle since cutoff.
func (h *CourseHandler) SweepBefore(cutoff time.Time) int {
	return h.surfaces.SweepBefore(cutoff)
}

// reconcile hands the resolved tier to the session's surface. A surface that
// ends up closed, including one holding a predicted tier, is dropped.
func (h *CourseHandler) reconcile(key string, tier model.Tier) {
	flow, ok := h.surfaces.Get(key)
	if !ok || flow.IsSubmitting() {
		return
	}

	flow.Reconcile(tier)
	if !flow.State().Open {
		h.surfaces.Remove(key)
	}
}

// surfaceKey scopes a payment surface to the browser session, the course and
// the signed-in user.
func surfaceKey(c echo.Context, courseID int64, viewer model.Viewer) string {
	return fmt.Sprintf("%s:%d", service.WatchSessionKey(middleware.SessionIDFrom(c), courseID), viewer.UserID)
}
