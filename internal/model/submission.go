package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentSubmission is the local record of a receipt sent to the backend.
// Status stays pending until an enrollment resolve sees the backend's verdict.
type PaymentSubmission struct {
	ID          uint            `gorm:"primaryKey" json:"-"`
	Reference   string          `gorm:"uniqueIndex;size:36" json:"reference"`
	UserID      int64           `gorm:"index:idx_submission_user_course" json:"user_id"`
	CourseID    int64           `gorm:"index:idx_submission_user_course" json:"course_id"`
	Method      PaymentMethod   `gorm:"size:32" json:"method"`
	Amount      decimal.Decimal `gorm:"type:decimal(12,2)" json:"amount"`
	ReceiptName string          `json:"receipt_name"`
	Status      PaymentStatus   `gorm:"size:16" json:"status"`
	Message     string          `json:"message,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
