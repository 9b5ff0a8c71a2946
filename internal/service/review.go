package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"learner-portal/internal/apperror"
	"learner-portal/internal/client"
	"learner-portal/internal/dto"
	"learner-portal/internal/model"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

type ReviewState struct {
	Reviews         []*model.Review `json:"reviews"`
	Loaded          bool            `json:"loaded"`
	AlreadyReviewed bool            `json:"already_reviewed"`
	CanReview       bool            `json:"can_review"`
	Submitting      bool            `json:"submitting"`
	Error           string          `json:"error,omitempty"`
}

// ReviewGate tracks a course's reviews for one viewer and decides whether the
// viewer may add one.
type ReviewGate struct {
	courseClient client.CourseClient
	viewer       model.Viewer
	courseID     int64
	log          zerolog.Logger
	inflight     singleflight.Group

	mu              sync.Mutex
	reviews         []*model.Review
	loaded          bool
	alreadyReviewed bool
	generation      uint64
	submitting      bool
	course          *model.Course
	lastErr         error
}

func NewReviewGate(courseClient client.CourseClient, viewer model.Viewer, courseID int64, log zerolog.Logger) *ReviewGate {
	return &ReviewGate{
		courseClient: courseClient,
		viewer:       viewer,
		courseID:     courseID,
		log:          log,
	}
}

// Load fetches the review list. Concurrent calls share one request and a
// response that lost a race with a newer change is dropped.
func (g *ReviewGate) Load(ctx context.Context) error {
	g.mu.Lock()
	gen := g.generation
	g.mu.Unlock()

	v, err, _ := g.inflight.Do("reviews", func() (interface{}, error) {
		return g.courseClient.GetReviews(ctx, g.courseID)
	})
	if err != nil {
		g.log.Warn().Err(err).Int64("course_id", g.courseID).Msg("fetch reviews")
		return fmt.Errorf("get reviews: %w", err)
	}
	reviews := v.([]*model.Review)

	g.mu.Lock()
	defer g.mu.Unlock()

	if gen != g.generation {
		return nil
	}
	g.generation++
	g.reviews = append([]*model.Review(nil), reviews...)
	g.loaded = true
	if g.viewer.Authenticated && hasReviewBy(reviews, g.viewer.UserID) {
		g.alreadyReviewed = true
	}
	return nil
}

// CanReview reports whether the review form may be offered. It stays false
// until reviews have been loaded, since an existing review cannot be ruled
// out before that.
func (g *ReviewGate) CanReview(tier model.Tier) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.canReviewLocked(tier)
}

// Submit posts a review. On success it is prepended to the list and the
// course is re-fetched for the server's aggregate rating.
func (g *ReviewGate) Submit(ctx context.Context, tier model.Tier, rating int, comment string) (*model.Review, error) {
	req := dto.ReviewRequest{Rating: rating, Comment: strings.TrimSpace(comment)}
	if err := dto.Validate(req); err != nil {
		g.setErr(err)
		return nil, err
	}

	g.mu.Lock()
	loaded := g.loaded
	g.mu.Unlock()
	if !loaded {
		if err := g.Load(ctx); err != nil {
			g.setErr(err)
			return nil, err
		}
	}

	g.mu.Lock()
	if g.submitting {
		g.mu.Unlock()
		return nil, ErrSubmissionInFlight
	}
	if !g.canReviewLocked(tier) {
		g.lastErr = ErrReviewNotAllowed
		g.mu.Unlock()
		return nil, ErrReviewNotAllowed
	}
	g.submitting = true
	g.lastErr = nil
	g.mu.Unlock()

	review, err := g.courseClient.SubmitReview(ctx, g.courseID, req)

	g.mu.Lock()
	g.submitting = false
	if err != nil {
		g.lastErr = err
		g.mu.Unlock()
		g.log.Error().Err(err).Int64("course_id", g.courseID).Msg("review submission failed")
		return nil, fmt.Errorf("submit review: %w", err)
	}

	if review.UserName == "" {
		review.UserName = g.viewer.Name
	}
	if review.UserID == 0 {
		review.UserID = g.viewer.UserID
	}
	g.generation++
	g.reviews = append([]*model.Review{review}, g.reviews...)
	g.alreadyReviewed = true
	g.mu.Unlock()

	course, err := g.courseClient.GetCourse(ctx, g.courseID)
	if err != nil {
		g.log.Warn().Err(err).Int64("course_id", g.courseID).Msg("refresh course rating after review")
		return review, nil
	}

	g.mu.Lock()
	g.course = course
	g.mu.Unlock()

	return review, nil
}

// Course returns the course as re-fetched after the last successful review,
// or nil if none was submitted yet.
func (g *ReviewGate) Course() *model.Course {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.course
}

func (g *ReviewGate) Reviews() []*model.Review {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*model.Review(nil), g.reviews...)
}

func (g *ReviewGate) AlreadyReviewed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.alreadyReviewed
}

func (g *ReviewGate) State(tier model.Tier) ReviewState {
	g.mu.Lock()
	defer g.mu.Unlock()

	state := ReviewState{
		Reviews:         append([]*model.Review{}, g.reviews...),
		Loaded:          g.loaded,
		AlreadyReviewed: g.alreadyReviewed,
		CanReview:       g.canReviewLocked(tier),
		Submitting:      g.submitting,
	}
	if g.lastErr != nil {
		state.Error = apperror.Message(g.lastErr)
	}
	return state
}

func (g *ReviewGate) canReviewLocked(tier model.Tier) bool {
	if !g.viewer.Authenticated || !g.loaded || g.alreadyReviewed {
		return false
	}
	return tier == model.TierApproved || g.viewer.IsAdmin()
}

func (g *ReviewGate) setErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastErr = err
}

func hasReviewBy(reviews []*model.Review, userID int64) bool {
	for _, r := range reviews {
		if r != nil && r.UserID == userID {
			return true
		}
	}
	return false
}
