package repository

import (
	"context"
	"errors"
	"time"

	"learner-portal/internal/model"

	"gorm.io/gorm"
)

type SubmissionRepository interface {
	Create(ctx context.Context, submission *model.PaymentSubmission) error
	FindLatest(ctx context.Context, userID, courseID int64) (*model.PaymentSubmission, error)
	MarkResolved(ctx context.Context, userID, courseID int64, status model.PaymentStatus) (int64, error)
}

type submissionRepoImpl struct {
	db *gorm.DB
}

func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepoImpl{
		db: db,
	}
}

func (r *submissionRepoImpl) Create(ctx context.Context, submission *model.PaymentSubmission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

// FindLatest returns nil, nil when the viewer never submitted for the course.
func (r *submissionRepoImpl) FindLatest(ctx context.Context, userID, courseID int64) (*model.PaymentSubmission, error) {
	var submission model.PaymentSubmission
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Order("created_at DESC").
		Order("id DESC").
		First(&submission).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &submission, nil
}

// MarkResolved moves every pending submission of the viewer for the course to
// status and reports how many rows changed.
func (r *submissionRepoImpl) MarkResolved(ctx context.Context, userID, courseID int64, status model.PaymentStatus) (int64, error) {
	result := r.db.WithContext(ctx).Model(&model.PaymentSubmission{}).
		Where(`
			user_id = ?
			AND course_id = ?
			AND status = ?
		`,
			userID,
			courseID,
			model.PaymentPending,
		).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		})

	return result.RowsAffected, result.Error
}
