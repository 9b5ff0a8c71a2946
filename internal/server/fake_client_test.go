package server

import (
	"context"
	"net/http"
	"sync"

	"learner-portal/internal/apperror"
	"learner-portal/internal/dto"
	"learner-portal/internal/model"
)

type fakeCourseClient struct {
	mu sync.Mutex

	course   *model.Course
	lessons  []*model.Lesson
	reviews  []*model.Review
	payments []*model.Payment
	viewer   *model.Viewer

	submittedPayment *dto.PaymentRequest
	logoutCalls      int
}

func (f *fakeCourseClient) GetCourse(ctx context.Context, courseID int64) (*model.Course, error) {
	if f.course == nil || f.course.ID != courseID {
		return nil, &apperror.APIError{Status: http.StatusNotFound, Message: "Course not found"}
	}
	c := *f.course
	return &c, nil
}

func (f *fakeCourseClient) GetLessons(ctx context.Context, courseID int64) ([]*model.Lesson, error) {
	return f.lessons, nil
}

func (f *fakeCourseClient) GetReviews(ctx context.Context, courseID int64) ([]*model.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*model.Review{}, f.reviews...), nil
}

func (f *fakeCourseClient) SubmitReview(ctx context.Context, courseID int64, req dto.ReviewRequest) (*model.Review, error) {
	return &model.Review{ID: 10, Rating: req.Rating, Comment: req.Comment}, nil
}

func (f *fakeCourseClient) SubmitPayment(ctx context.Context, req dto.PaymentRequest) (*dto.MessageResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submittedPayment = &req
	f.payments = append(f.payments, &model.Payment{
		ID:       int64(len(f.payments) + 100),
		CourseID: req.CourseID,
		UserID:   5,
		Amount:   req.Amount,
		Method:   req.Method,
		Status:   model.PaymentPending,
	})
	return &dto.MessageResponse{Message: "Payment submitted"}, nil
}

func (f *fakeCourseClient) GetMyPayments(ctx context.Context) ([]*model.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.payments, nil
}

func (f *fakeCourseClient) setViewer(v *model.Viewer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.viewer = v
}

func (f *fakeCourseClient) GetProfile(ctx context.Context) (*model.Viewer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.viewer == nil {
		return nil, &apperror.APIError{Status: http.StatusUnauthorized, Message: "Not authenticated"}
	}
	v := *f.viewer
	return &v, nil
}

func (f *fakeCourseClient) Logout(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logoutCalls++
	return nil
}
