package service

import (
	"context"
	"sync"
	"sync/atomic"

	"learner-portal/internal/dto"
	"learner-portal/internal/model"
)

type fakeCourseClient struct {
	mu sync.Mutex

	course      *model.Course
	courseErr   error
	lessons     []*model.Lesson
	reviews     []*model.Review
	reviewsErr  error
	payments    []*model.Payment
	paymentsErr error
	reviewErr   error
	paymentErr  error
	viewer      *model.Viewer

	// block, when set, holds calls until it is closed
	block chan struct{}

	paymentCalls  atomic.Int32
	paymentsCalls atomic.Int32
	reviewsCalls  atomic.Int32
	courseCalls   atomic.Int32
	lastPayment   dto.PaymentRequest
	lastReview    dto.ReviewRequest
}

func (f *fakeCourseClient) wait() {
	if f.block != nil {
		<-f.block
	}
}

func (f *fakeCourseClient) GetCourse(ctx context.Context, courseID int64) (*model.Course, error) {
	f.courseCalls.Add(1)
	if f.courseErr != nil {
		return nil, f.courseErr
	}
	c := *f.course
	return &c, nil
}

func (f *fakeCourseClient) GetLessons(ctx context.Context, courseID int64) ([]*model.Lesson, error) {
	return f.lessons, nil
}

func (f *fakeCourseClient) GetReviews(ctx context.Context, courseID int64) ([]*model.Review, error) {
	f.reviewsCalls.Add(1)
	f.wait()
	if f.reviewsErr != nil {
		return nil, f.reviewsErr
	}
	return f.reviews, nil
}

func (f *fakeCourseClient) SubmitReview(ctx context.Context, courseID int64, req dto.ReviewRequest) (*model.Review, error) {
	f.mu.Lock()
	f.lastReview = req
	f.mu.Unlock()
	if f.reviewErr != nil {
		return nil, f.reviewErr
	}
	return &model.Review{ID: 99, Rating: req.Rating, Comment: req.Comment}, nil
}

func (f *fakeCourseClient) SubmitPayment(ctx context.Context, req dto.PaymentRequest) (*dto.MessageResponse, error) {
	f.paymentCalls.Add(1)
	f.mu.Lock()
	f.lastPayment = req
	f.mu.Unlock()
	f.wait()
	if f.paymentErr != nil {
		return nil, f.paymentErr
	}
	return &dto.MessageResponse{Message: "received"}, nil
}

func (f *fakeCourseClient) GetMyPayments(ctx context.Context) ([]*model.Payment, error) {
	f.paymentsCalls.Add(1)
	f.wait()
	if f.paymentsErr != nil {
		return nil, f.paymentsErr
	}
	return f.payments, nil
}

func (f *fakeCourseClient) GetProfile(ctx context.Context) (*model.Viewer, error) {
	return f.viewer, nil
}

func (f *fakeCourseClient) Logout(ctx context.Context) error {
	return nil
}

var (
	learner = model.Viewer{Authenticated: true, UserID: 1, Name: "Sara", Role: model.RoleUser}
	admin   = model.Viewer{Authenticated: true, UserID: 2, Name: "Admin", Role: model.RoleAdmin}
)

func lessonsOf(accessible ...bool) []*model.Lesson {
	out := make([]*model.Lesson, len(accessible))
	for i, a := range accessible {
		out[i] = &model.Lesson{ID: int64(i + 1), Title: "lesson", IsAccessible: a}
	}
	return out
}
