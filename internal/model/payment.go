package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentApproved PaymentStatus = "approved"
	PaymentRejected PaymentStatus = "rejected"
)

type PaymentMethod string

const (
	MethodVodafoneCash PaymentMethod = "vodafone_cash"
	MethodInstaPay     PaymentMethod = "instapay"
)

var PaymentMethods = []PaymentMethod{MethodVodafoneCash, MethodInstaPay}

func (m PaymentMethod) Valid() bool {
	for _, known := range PaymentMethods {
		if m == known {
			return true
		}
	}
	return false
}

// Payment is an enrollment attempt. Its status is only changed by an admin on
// the backend; a resubmission creates a new Payment.
type Payment struct {
	ID         int64           `json:"payment_id"`
	CourseID   int64           `json:"course_id"`
	UserID     int64           `json:"user_id"`
	Amount     decimal.Decimal `json:"amount"`
	Method     PaymentMethod   `json:"method"`
	ReceiptURL string          `json:"screenshot_url"`
	Status     PaymentStatus   `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
}
