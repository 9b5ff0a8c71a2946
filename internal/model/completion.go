package model

import "time"

// LessonCompletion backs the optional read-through cache of a viewer's
// completed lessons.
type LessonCompletion struct {
	UserID      int64 `gorm:"primaryKey;autoIncrement:false"`
	CourseID    int64 `gorm:"primaryKey;autoIncrement:false;index"`
	LessonID    int64 `gorm:"primaryKey;autoIncrement:false"`
	CompletedAt time.Time
	CreatedAt   time.Time
}
