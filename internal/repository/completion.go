package repository

import (
	"context"
	"learner-portal/internal/model"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CompletionRepository interface {
	MarkCompleted(ctx context.Context, userID, courseID, lessonID int64) error
	ListCompleted(ctx context.Context, userID, courseID int64) ([]int64, error)
}

type completionRepoImpl struct {
	db *gorm.DB
}

func NewCompletionRepository(db *gorm.DB) CompletionRepository {
	return &completionRepoImpl{
		db: db,
	}
}

func (r *completionRepoImpl) MarkCompleted(ctx context.Context, userID, courseID, lessonID int64) error {
	now := time.Now()
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "course_id"}, {Name: "lesson_id"}},
		DoNothing: true,
	}).Create(&model.LessonCompletion{
		UserID:      userID,
		CourseID:    courseID,
		LessonID:    lessonID,
		CompletedAt: now,
	}).Error
}

func (r *completionRepoImpl) ListCompleted(ctx context.Context, userID, courseID int64) ([]int64, error) {
	var lessonIDs []int64
	err := r.db.WithContext(ctx).
		Model(&model.LessonCompletion{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Order("completed_at").
		Pluck("lesson_id", &lessonIDs).Error

	if err != nil {
		return nil, err
	}

	return lessonIDs, nil
}
