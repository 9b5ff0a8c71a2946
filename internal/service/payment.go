package service

import (
	"context"
	"fmt"
	"sync"

	"learner-portal/internal/apperror"
	"learner-portal/internal/client"
	"learner-portal/internal/config"
	"learner-portal/internal/dto"
	"learner-portal/internal/model"
	"learner-portal/internal/repository"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const defaultPaymentMessage = "payment request sent and is under review"

type PaymentInstruction struct {
	Method  model.PaymentMethod `json:"method"`
	Account string              `json:"account"`
}

// PaymentState is a snapshot of one payment surface.
type PaymentState struct {
	Open       bool                `json:"open"`
	Method     model.PaymentMethod `json:"method"`
	Receipt    string              `json:"receipt,omitempty"`
	Submitting bool                `json:"submitting"`
	Tier       model.Tier          `json:"tier"`
	Predicted  bool                `json:"predicted"`
	Message    string              `json:"message,omitempty"`
	Error      string              `json:"error,omitempty"`
}

// PaymentFlow is one payment surface for a course view. At most one submission
// is in flight at a time.
type PaymentFlow struct {
	courseClient client.CourseClient
	paymentCfg   *config.Payment
	log          zerolog.Logger
	ledger       repository.SubmissionRepository
	viewer       model.Viewer

	mu         sync.Mutex
	open       bool
	method     model.PaymentMethod
	receipt    *dto.Receipt
	submitting bool
	tier       model.Tier
	predicted  bool
	message    string
	lastErr    error
}

func NewPaymentFlow(courseClient client.CourseClient, paymentCfg *config.Payment, log zerolog.Logger, tier model.Tier) *PaymentFlow {
	return &PaymentFlow{
		courseClient: courseClient,
		paymentCfg:   paymentCfg,
		log:          log,
		method:       model.MethodVodafoneCash,
		tier:         tier,
	}
}

// WithLedger records successful submissions by viewer in ledger.
func (f *PaymentFlow) WithLedger(ledger repository.SubmissionRepository, viewer model.Viewer) *PaymentFlow {
	f.ledger = ledger
	f.viewer = viewer
	return f
}

func (f *PaymentFlow) Instructions() []PaymentInstruction {
	return []PaymentInstruction{
		{Method: model.MethodVodafoneCash, Account: f.paymentCfg.VodafoneNumber},
		{Method: model.MethodInstaPay, Account: f.paymentCfg.InstapayAccount},
	}
}

// Open shows the surface. Only viewers who are not enrolled or were rejected
// are offered a payment.
func (f *PaymentFlow) Open() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !paymentOffered(f.tier) {
		return ErrPaymentNotOffered
	}
	f.open = true
	f.message = ""
	f.lastErr = nil
	return nil
}

func (f *PaymentFlow) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.submitting {
		return
	}
	f.open = false
	f.receipt = nil
	f.lastErr = nil
}

func (f *PaymentFlow) SelectMethod(method model.PaymentMethod) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.submitting {
		return ErrSubmissionInFlight
	}
	if !method.Valid() {
		return apperror.NewValidation("method", fmt.Sprintf("unsupported payment method %q", method))
	}
	f.method = method
	return nil
}

// AttachReceipt stores the receipt image. Only PNG and JPEG images within the
// configured size are accepted.
func (f *PaymentFlow) AttachReceipt(fileName string, data []byte) error {
	if len(data) == 0 {
		return apperror.NewValidation("screenshot", "please attach the payment receipt image")
	}
	if f.paymentCfg.MaxReceiptBytes > 0 && int64(len(data)) > f.paymentCfg.MaxReceiptBytes {
		return apperror.NewValidation("screenshot", fmt.Sprintf("receipt image must be at most %d bytes", f.paymentCfg.MaxReceiptBytes))
	}
	mtype := mimetype.Detect(data)
	if !mtype.Is("image/png") && !mtype.Is("image/jpeg") {
		return apperror.NewValidation("screenshot", "receipt must be a PNG or JPEG image")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.submitting {
		return ErrSubmissionInFlight
	}
	f.receipt = &dto.Receipt{FileName: fileName, Data: data}
	return nil
}

// Submit sends the enrollment request for course. On success the tier is
// predicted as pending until the next authoritative resolve.
func (f *PaymentFlow) Submit(ctx context.Context, course *model.Course) (*dto.MessageResponse, error) {
	f.mu.Lock()
	if f.submitting {
		f.mu.Unlock()
		return nil, ErrSubmissionInFlight
	}
	if !f.open {
		f.mu.Unlock()
		return nil, ErrPaymentFormClosed
	}
	if course == nil {
		f.mu.Unlock()
		return nil, apperror.NewValidation("course_id", "course is not loaded")
	}

	req := dto.PaymentRequest{
		CourseID: course.ID,
		Amount:   course.Price,
		Method:   f.method,
		Receipt:  f.receipt,
	}
	if err := dto.Validate(req); err != nil {
		if apperror.IsValidation(err) && f.receipt == nil {
			err = apperror.NewValidation("screenshot", "please attach the payment receipt image")
		}
		f.lastErr = err
		f.mu.Unlock()
		return nil, err
	}

	f.submitting = true
	f.lastErr = nil
	f.message = ""
	f.mu.Unlock()

	res, err := f.courseClient.SubmitPayment(ctx, req)
	if err == nil {
		f.record(ctx, req, res)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitting = false

	if err != nil {
		f.log.Error().Err(err).Int64("course_id", course.ID).Str("method", string(req.Method)).Msg("payment submission failed")
		f.lastErr = err
		return nil, fmt.Errorf("submit payment: %w", err)
	}

	f.tier = model.TierPending
	f.predicted = true
	f.open = false
	f.receipt = nil
	f.message = res.Message
	if f.message == "" {
		f.message = defaultPaymentMessage
	}

	f.log.Info().Int64("course_id", course.ID).Str("method", string(req.Method)).Msg("payment submitted")
	return &dto.MessageResponse{Message: f.message}, nil
}

func (f *PaymentFlow) record(ctx context.Context, req dto.PaymentRequest, res *dto.MessageResponse) {
	if f.ledger == nil {
		return
	}

	submission := &model.PaymentSubmission{
		Reference:   uuid.NewString(),
		UserID:      f.viewer.UserID,
		CourseID:    req.CourseID,
		Method:      req.Method,
		Amount:      req.Amount,
		ReceiptName: req.Receipt.FileName,
		Status:      model.PaymentPending,
		Message:     res.Message,
	}
	if err := f.ledger.Create(ctx, submission); err != nil {
		f.log.Warn().Err(err).Int64("course_id", req.CourseID).Msg("record payment submission")
	}
}

// SyncSubmissions settles the viewer's pending submissions for courseID once
// the backend has decided on them. A nil ledger is a no-op.
func SyncSubmissions(ctx context.Context, ledger repository.SubmissionRepository, viewer model.Viewer, courseID int64, tier model.Tier, log zerolog.Logger) {
	if ledger == nil || !viewer.Authenticated {
		return
	}

	var status model.PaymentStatus
	switch tier {
	case model.TierApproved:
		status = model.PaymentApproved
	case model.TierRejected:
		status = model.PaymentRejected
	default:
		return
	}

	n, err := ledger.MarkResolved(ctx, viewer.UserID, courseID, status)
	if err != nil {
		log.Warn().Err(err).Int64("course_id", courseID).Msg("settle payment submissions")
		return
	}
	if n > 0 {
		log.Info().Int64("course_id", courseID).Str("status", string(status)).Int64("count", n).Msg("payment submissions settled")
	}
}

// Reconcile replaces the surface's tier, predicted or not, with one resolved
// from the backend. An open surface closes when the new tier is no longer
// offered a payment.
func (f *PaymentFlow) Reconcile(tier model.Tier) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.predicted && tier != f.tier {
		f.log.Info().Str("predicted", string(f.tier)).Str("resolved", string(tier)).Msg("predicted enrollment state replaced by backend state")
	}
	f.tier = tier
	f.predicted = false

	if f.open && !paymentOffered(tier) && !f.submitting {
		f.open = false
		f.receipt = nil
	}
}

func paymentOffered(tier model.Tier) bool {
	return tier == model.TierNotEnrolled || tier == model.TierRejected
}

func (f *PaymentFlow) Tier() model.Tier {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tier
}

func (f *PaymentFlow) IsSubmitting() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submitting
}

func (f *PaymentFlow) LastError() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

func (f *PaymentFlow) State() PaymentState {
	f.mu.Lock()
	defer f.mu.Unlock()

	state := PaymentState{
		Open:       f.open,
		Method:     f.method,
		Submitting: f.submitting,
		Tier:       f.tier,
		Predicted:  f.predicted,
		Message:    f.message,
	}
	if f.receipt != nil {
		state.Receipt = f.receipt.FileName
	}
	if f.lastErr != nil {
		state.Error = apperror.Message(f.lastErr)
	}
	return state
}
