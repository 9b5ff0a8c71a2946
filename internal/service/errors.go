package service

import "errors"

var (
	ErrSubmissionInFlight   = errors.New("a submission is already in progress")
	ErrPaymentFormClosed    = errors.New("payment form is not open")
	ErrPaymentNotOffered    = errors.New("payment is not offered for the current enrollment state")
	ErrLessonNotFound       = errors.New("lesson not found in this course")
	ErrLessonNotAccessible  = errors.New("this lesson is not available to you yet")
	ErrLessonNotActive      = errors.New("only the lesson being watched can be marked complete")
	ErrWatchThresholdNotMet = errors.New("lesson has not been watched long enough to be marked complete")
	ErrReviewNotAllowed     = errors.New("you cannot review this course")
	ErrSessionClosed        = errors.New("watch session is closed")
)
