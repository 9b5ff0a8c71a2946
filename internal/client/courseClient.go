package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"learner-portal/internal/apperror"
	"learner-portal/internal/config"
	"learner-portal/internal/dto"
	"learner-portal/internal/model"

	"github.com/bytedance/sonic"
)

// CourseClient is the typed facade over the course backend. It never retries;
// failures surface as *apperror.NetworkError or *apperror.APIError.
type CourseClient interface {
	GetCourse(ctx context.Context, courseID int64) (*model.Course, error)
	GetLessons(ctx context.Context, courseID int64) ([]*model.Lesson, error)
	GetReviews(ctx context.Context, courseID int64) ([]*model.Review, error)
	SubmitReview(ctx context.Context, courseID int64, req dto.ReviewRequest) (*model.Review, error)
	SubmitPayment(ctx context.Context, req dto.PaymentRequest) (*dto.MessageResponse, error)
	GetMyPayments(ctx context.Context) ([]*model.Payment, error)
	GetProfile(ctx context.Context) (*model.Viewer, error)
	Logout(ctx context.Context) error
}

type courseClientImpl struct {
	httpClient *http.Client
	baseApiURL string
}

func NewCourseClient(backendCfg *config.Backend) CourseClient {
	timeout := backendCfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &courseClientImpl{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseApiURL: strings.TrimRight(backendCfg.BaseApiURL, "/"),
	}
}

type credentialsKey struct{}

// WithCredentials attaches the viewer's session cookies to every backend call
// made with the returned context. The client keeps no cookies of its own since
// one instance serves every viewer.
func WithCredentials(ctx context.Context, cookies []*http.Cookie) context.Context {
	return context.WithValue(ctx, credentialsKey{}, cookies)
}

func credentialsFrom(ctx context.Context) []*http.Cookie {
	cookies, _ := ctx.Value(credentialsKey{}).([]*http.Cookie)
	return cookies
}

func (c *courseClientImpl) GetCourse(ctx context.Context, courseID int64) (*model.Course, error) {
	var res dto.CourseEnvelope
	path := fmt.Sprintf("/courses/%d", courseID)
	if err := c.do(ctx, "get course", http.MethodGet, path, nil, "", &res); err != nil {
		return nil, err
	}
	if res.Course == nil {
		return nil, &apperror.APIError{Status: http.StatusNotFound, Message: "course not found"}
	}
	return res.Course, nil
}

func (c *courseClientImpl) GetLessons(ctx context.Context, courseID int64) ([]*model.Lesson, error) {
	var res dto.LessonsEnvelope
	path := fmt.Sprintf("/courses/%d/lessons", courseID)
	if err := c.do(ctx, "get lessons", http.MethodGet, path, nil, "", &res); err != nil {
		return nil, err
	}
	if res.Lessons == nil {
		return []*model.Lesson{}, nil
	}
	return res.Lessons, nil
}

func (c *courseClientImpl) GetReviews(ctx context.Context, courseID int64) ([]*model.Review, error) {
	var res dto.ReviewsEnvelope
	path := fmt.Sprintf("/courses/%d/reviews", courseID)
	if err := c.do(ctx, "get reviews", http.MethodGet, path, nil, "", &res); err != nil {
		return nil, err
	}
	if res.Reviews == nil {
		return []*model.Review{}, nil
	}
	return res.Reviews, nil
}

func (c *courseClientImpl) SubmitReview(ctx context.Context, courseID int64, req dto.ReviewRequest) (*model.Review, error) {
	body, err := sonic.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal review request: %w", err)
	}

	var res dto.ReviewEnvelope
	path := fmt.Sprintf("/courses/%d/reviews", courseID)
	if err := c.do(ctx, "submit review", http.MethodPost, path, bytes.NewReader(body), "application/json", &res); err != nil {
		return nil, err
	}
	if res.Review == nil {
		return nil, &apperror.NetworkError{Op: "submit review", Err: fmt.Errorf("response has no review")}
	}
	return res.Review, nil
}

func (c *courseClientImpl) SubmitPayment(ctx context.Context, req dto.PaymentRequest) (*dto.MessageResponse, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := map[string]string{
		"course_id": fmt.Sprintf("%d", req.CourseID),
		"amount":    req.Amount.String(),
		"method":    string(req.Method),
	}
	for _, name := range []string{"course_id", "amount", "method"} {
		if err := w.WriteField(name, fields[name]); err != nil {
			return nil, fmt.Errorf("write %s field: %w", name, err)
		}
	}

	if req.Receipt != nil {
		part, err := w.CreateFormFile("screenshot", req.Receipt.FileName)
		if err != nil {
			return nil, fmt.Errorf("create screenshot part: %w", err)
		}
		if _, err := part.Write(req.Receipt.Data); err != nil {
			return nil, fmt.Errorf("write screenshot part: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	var res dto.MessageResponse
	if err := c.do(ctx, "submit payment", http.MethodPost, "/payments", &buf, w.FormDataContentType(), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *courseClientImpl) GetMyPayments(ctx context.Context) ([]*model.Payment, error) {
	var res dto.PaymentsEnvelope
	if err := c.do(ctx, "get my payments", http.MethodGet, "/payments/my-payments", nil, "", &res); err != nil {
		return nil, err
	}
	if res.Payments == nil {
		return []*model.Payment{}, nil
	}
	return res.Payments, nil
}

func (c *courseClientImpl) GetProfile(ctx context.Context) (*model.Viewer, error) {
	var res dto.ProfileEnvelope
	if err := c.do(ctx, "get profile", http.MethodGet, "/auth/profile", nil, "", &res); err != nil {
		return nil, err
	}
	if res.User == nil {
		return nil, &apperror.APIError{Status: http.StatusUnauthorized, Message: "not authenticated"}
	}
	viewer := *res.User
	viewer.Authenticated = true
	return &viewer, nil
}

func (c *courseClientImpl) Logout(ctx context.Context) error {
	return c.do(ctx, "logout", http.MethodPost, "/auth/logout", nil, "", nil)
}

func (c *courseClientImpl) do(ctx context.Context, op, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseApiURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: new request: %w", op, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	for _, cookie := range credentialsFrom(ctx) {
		req.AddCookie(cookie)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		observe(op, outcomeNetwork, start)
		return &apperror.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		observe(op, outcomeNetwork, start)
		return &apperror.NetworkError{Op: op, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		observe(op, outcomeAPI, start)
		return &apperror.APIError{
			Status:  resp.StatusCode,
			Message: _extractErrorMessage(resp.StatusCode, b),
		}
	}

	if out != nil && len(bytes.TrimSpace(b)) > 0 {
		if err := sonic.Unmarshal(b, out); err != nil {
			observe(op, outcomeNetwork, start)
			return &apperror.NetworkError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
		}
	}

	observe(op, outcomeOK, start)
	return nil
}

func _extractErrorMessage(status int, body []byte) string {
	var res struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := sonic.Unmarshal(body, &res); err == nil {
		if res.Error != "" {
			return res.Error
		}
		if res.Message != "" {
			return res.Message
		}
	}
	return http.StatusText(status)
}
