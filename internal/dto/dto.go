package dto

import (
	"learner-portal/internal/model"

	"github.com/shopspring/decimal"
)

type Receipt struct {
	FileName string
	Data     []byte
}

type PaymentRequest struct {
	CourseID int64               `validate:"required,gt=0"`
	Amount   decimal.Decimal     `validate:"-"`
	Method   model.PaymentMethod `validate:"required,oneof=vodafone_cash instapay"`
	Receipt  *Receipt            `validate:"required"`
}

type ReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"required,notblank"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// Backend envelopes.

type CourseEnvelope struct {
	Course *model.Course `json:"course"`
}

type LessonsEnvelope struct {
	Lessons []*model.Lesson `json:"lessons"`
}

type ReviewsEnvelope struct {
	Reviews []*model.Review `json:"reviews"`
}

type ReviewEnvelope struct {
	Review *model.Review `json:"review"`
}

type PaymentsEnvelope struct {
	Payments []*model.Payment `json:"payments"`
}

type ProfileEnvelope struct {
	User *model.Viewer `json:"user"`
}
