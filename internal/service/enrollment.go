package service

import (
	"context"
	"fmt"

	"learner-portal/internal/client"
	"learner-portal/internal/model"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

type EnrollmentResolver interface {
	Resolve(ctx context.Context, viewer model.Viewer, course *model.Course) model.Tier
}

type enrollmentResolverImpl struct {
	courseClient client.CourseClient
	log          zerolog.Logger
	inflight     singleflight.Group
}

func NewEnrollmentResolver(courseClient client.CourseClient, log zerolog.Logger) EnrollmentResolver {
	return &enrollmentResolverImpl{
		courseClient: courseClient,
		log:          log,
	}
}

// Resolve derives the viewer's tier for course. Fetch failures fail closed to
// not_enrolled.
func (r *enrollmentResolverImpl) Resolve(ctx context.Context, viewer model.Viewer, course *model.Course) model.Tier {
	if !viewer.Authenticated {
		return model.TierNotAuthenticated
	}
	if viewer.IsAdmin() {
		return model.TierAdmin
	}
	if course == nil {
		return model.TierNotEnrolled
	}

	key := fmt.Sprintf("payments:%d", viewer.UserID)
	v, err, _ := r.inflight.Do(key, func() (interface{}, error) {
		return r.courseClient.GetMyPayments(ctx)
	})
	if err != nil {
		r.log.Warn().Err(err).
			Int64("course_id", course.ID).
			Int64("user_id", viewer.UserID).
			Msg("payment history unavailable, treating viewer as not enrolled")
		return model.TierNotEnrolled
	}

	latest := LatestPayment(v.([]*model.Payment), course.ID)
	if latest == nil {
		return model.TierNotEnrolled
	}
	return model.TierFromStatus(latest.Status)
}

// LatestPayment picks the most recently created payment for courseID. Equal
// timestamps are broken by the higher payment id.
func LatestPayment(payments []*model.Payment, courseID int64) *model.Payment {
	var latest *model.Payment
	for _, p := range payments {
		if p == nil || p.CourseID != courseID {
			continue
		}
		if latest == nil ||
			p.CreatedAt.After(latest.CreatedAt) ||
			(p.CreatedAt.Equal(latest.CreatedAt) && p.ID > latest.ID) {
			latest = p
		}
	}
	return latest
}

type EnrollAction string

const (
	ActionLogin           EnrollAction = "login"
	ActionNone            EnrollAction = "none"
	ActionWatch           EnrollAction = "watch"
	ActionViewPayments    EnrollAction = "view_payments"
	ActionOpenPaymentForm EnrollAction = "open_payment_form"
)

// ActionFor tells the shell what the enroll affordance does for tier.
func ActionFor(viewer model.Viewer, tier model.Tier) EnrollAction {
	switch {
	case !viewer.Authenticated || tier == model.TierNotAuthenticated:
		return ActionLogin
	case viewer.IsAdmin() || tier == model.TierAdmin:
		return ActionNone
	}

	switch tier {
	case model.TierApproved:
		return ActionWatch
	case model.TierPending:
		return ActionViewPayments
	default:
		return ActionOpenPaymentForm
	}
}
