package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"learner-portal/internal/client"
	"learner-portal/internal/config"
	"learner-portal/internal/middleware"
	"learner-portal/internal/model"
	"learner-portal/internal/repository"
	"learner-portal/internal/service"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngReceipt = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

type testBrowser struct {
	t       *testing.T
	srv     *Server
	handler http.Handler
	cookies map[string]*http.Cookie
}

func newTestServer(t *testing.T, fc *fakeCourseClient) (*testBrowser, *service.WatchSessions) {
	t.Helper()
	return newTestServerWithStores(t, fc, Stores{})
}

func newTestServerWithStores(t *testing.T, fc *fakeCourseClient, stores Stores) (*testBrowser, *service.WatchSessions) {
	t.Helper()
	return newTestServerWithConfig(t, fc, testConfig(), stores)
}

func testConfig() *config.Config {
	return &config.Config{
		Payment: config.Payment{VodafoneNumber: "0100", InstapayAccount: "me@instapay", MaxReceiptBytes: 1 << 20},
		Watch:   config.Watch{ThresholdPercent: 90},
	}
}

func newTestServerWithConfig(t *testing.T, fc *fakeCourseClient, cfg *config.Config, stores Stores) (*testBrowser, *service.WatchSessions) {
	t.Helper()

	log := zerolog.Nop()
	sessions := service.NewWatchSessions()
	t.Cleanup(sessions.CloseAll)

	srv := NewServer(cfg, fc, service.NewEnrollmentResolver(fc, log), sessions, stores, middleware.NewCookieStore("test-key"), log)
	return &testBrowser{t: t, srv: srv, handler: srv.Handler(), cookies: map[string]*http.Cookie{}}, sessions
}

func (b *testBrowser) login() {
	b.cookies["token"] = &http.Cookie{Name: "token", Value: "jwt"}
}

func (b *testBrowser) do(req *http.Request) *httptest.ResponseRecorder {
	b.t.Helper()
	for _, ck := range b.cookies {
		req.AddCookie(ck)
	}

	rec := httptest.NewRecorder()
	b.handler.ServeHTTP(rec, req)

	for _, ck := range rec.Result().Cookies() {
		if ck.MaxAge < 0 {
			delete(b.cookies, ck.Name)
			continue
		}
		b.cookies[ck.Name] = ck
	}
	return rec
}

func (b *testBrowser) get(path string) *httptest.ResponseRecorder {
	return b.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (b *testBrowser) postJSON(path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return b.do(req)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
}

func learnerClient() *fakeCourseClient {
	return &fakeCourseClient{
		course: &model.Course{ID: 1, Title: "Go", Price: decimal.NewFromInt(500)},
		lessons: []*model.Lesson{
			{ID: 11, Title: "intro", IsAccessible: true},
			{ID: 12, Title: "types", IsAccessible: true},
			{ID: 13, Title: "bonus", IsAccessible: false},
		},
		viewer: &model.Viewer{Authenticated: true, UserID: 5, Name: "Mona", Role: model.RoleUser},
	}
}

func TestHealth(t *testing.T) {
	b, _ := newTestServer(t, learnerClient())

	rec := b.get("/api/health")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCourseDetailAnonymous(t *testing.T) {
	b, _ := newTestServer(t, learnerClient())

	rec := b.get("/api/courses/1")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Tier   string `json:"tier"`
		Action string `json:"action"`
	}
	decode(t, rec, &body)
	assert.Equal(t, string(model.TierNotAuthenticated), body.Tier)
	assert.Equal(t, string(service.ActionLogin), body.Action)
}

func TestCourseDetailUnknownCourse(t *testing.T) {
	b, _ := newTestServer(t, learnerClient())

	rec := b.get("/api/courses/2")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Course not found"}`, rec.Body.String())
}

func TestCourseDetailInvalidID(t *testing.T) {
	b, _ := newTestServer(t, learnerClient())

	rec := b.get("/api/courses/abc")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPaymentSubmission(t *testing.T) {
	fc := learnerClient()
	b, _ := newTestServer(t, fc)
	b.login()

	rec := b.get("/api/courses/1")
	require.Equal(t, http.StatusOK, rec.Code)
	var detail struct {
		Action       string `json:"action"`
		Instructions []struct {
			Method  string `json:"method"`
			Account string `json:"account"`
		} `json:"payment_instructions"`
	}
	decode(t, rec, &detail)
	assert.Equal(t, string(service.ActionOpenPaymentForm), detail.Action)
	require.Len(t, detail.Instructions, 2)
	assert.Equal(t, "0100", detail.Instructions[0].Account)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("method", "instapay"))
	part, err := w.CreateFormFile("screenshot", "receipt.png")
	require.NoError(t, err)
	_, err = part.Write(pngReceipt)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/courses/1/payments", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec = b.do(req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var result struct {
		Message string `json:"message"`
		State   struct {
			Tier      string `json:"tier"`
			Predicted bool   `json:"predicted"`
		} `json:"state"`
	}
	decode(t, rec, &result)
	assert.Equal(t, "Payment submitted", result.Message)
	assert.Equal(t, string(model.TierPending), result.State.Tier)
	assert.True(t, result.State.Predicted)

	require.NotNil(t, fc.submittedPayment)
	assert.Equal(t, model.MethodInstaPay, fc.submittedPayment.Method)
	assert.True(t, decimal.NewFromInt(500).Equal(fc.submittedPayment.Amount))
	assert.Equal(t, "receipt.png", fc.submittedPayment.Receipt.FileName)
}

func newTestStores(t *testing.T) Stores {
	t.Helper()
	db, err := client.InitDBClient("sqlite", filepath.Join(t.TempDir(), "portal.db"))
	require.NoError(t, err)
	return Stores{
		Completions: repository.NewCompletionRepository(db),
		Submissions: repository.NewSubmissionRepository(db),
	}
}

func postReceipt(t *testing.T, b *testBrowser, path string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("screenshot", "receipt.png")
	require.NoError(t, err)
	_, err = part.Write(pngReceipt)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return b.do(req)
}

func TestPaymentSubmissionIsRecorded(t *testing.T) {
	fc := learnerClient()
	b, _ := newTestServerWithStores(t, fc, newTestStores(t))
	b.login()

	require.Equal(t, http.StatusCreated, postReceipt(t, b, "/api/courses/1/payments").Code)

	fc.mu.Lock()
	fc.payments = []*model.Payment{{ID: 3, CourseID: 1, UserID: 5, Status: model.PaymentApproved}}
	fc.mu.Unlock()

	rec := b.get("/api/courses/1")
	require.Equal(t, http.StatusOK, rec.Code)

	var detail struct {
		Tier       string                   `json:"tier"`
		Submission *model.PaymentSubmission `json:"last_submission"`
	}
	decode(t, rec, &detail)
	assert.Equal(t, string(model.TierApproved), detail.Tier)
	require.NotNil(t, detail.Submission)
	assert.Equal(t, model.PaymentApproved, detail.Submission.Status)
	assert.Equal(t, model.MethodVodafoneCash, detail.Submission.Method)
}

func TestCompletionsSurviveNewWatchSession(t *testing.T) {
	b, _ := newTestServerWithStores(t, learnerClient(), newTestStores(t))
	b.login()

	require.Equal(t, http.StatusOK, b.get("/api/courses/1/watch").Code)
	require.Equal(t, http.StatusOK, b.postJSON("/api/courses/1/watch/progress", `{"percent": 100}`).Code)
	require.Equal(t, http.StatusOK, b.postJSON("/api/courses/1/watch/lessons/11/complete", "").Code)

	rec := b.get("/api/courses/1/watch")
	require.Equal(t, http.StatusOK, rec.Code)

	var state service.WatchState
	decode(t, rec, &state)
	assert.Equal(t, []int64{11}, state.Completed)
}

func TestPaymentWithoutReceipt(t *testing.T) {
	fc := learnerClient()
	b, _ := newTestServer(t, fc)
	b.login()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("method", "vodafone_cash"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/courses/1/payments", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := b.do(req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, fc.submittedPayment)
}

func TestPaymentNotOfferedWhenApproved(t *testing.T) {
	fc := learnerClient()
	fc.payments = []*model.Payment{{ID: 1, CourseID: 1, UserID: 5, Status: model.PaymentApproved}}
	b, _ := newTestServer(t, fc)
	b.login()

	req := httptest.NewRequest(http.MethodPost, "/api/courses/1/payments", strings.NewReader(""))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	rec := b.do(req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWatchFlow(t *testing.T) {
	b, sessions := newTestServer(t, learnerClient())
	b.login()

	rec := b.get("/api/courses/1/watch")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, sessions.Len())

	var state service.WatchState
	decode(t, rec, &state)
	require.NotNil(t, state.ActiveLesson)
	assert.Equal(t, int64(11), state.ActiveLesson.ID)
	assert.Equal(t, 3, state.Total)

	rec = b.postJSON("/api/courses/1/watch/lessons/11/complete", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = b.postJSON("/api/courses/1/watch/progress", `{"percent": 95}`)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &state)
	assert.True(t, state.CanMarkComplete)

	rec = b.postJSON("/api/courses/1/watch/lessons/11/complete", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &state)
	assert.Equal(t, []int64{11}, state.Completed)
	assert.Equal(t, 33, state.ProgressPercent)
	assert.Equal(t, int64(12), state.ActiveLesson.ID)

	rec = b.postJSON("/api/courses/1/watch/lessons/13/select", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = b.get("/api/courses/1/watch/state")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &state)
	assert.Equal(t, int64(12), state.ActiveLesson.ID)
	assert.NotEmpty(t, state.Notice)

	rec = b.do(httptest.NewRequest(http.MethodDelete, "/api/courses/1/watch", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, sessions.Len())

	rec = b.postJSON("/api/courses/1/watch/next", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWatchRequiresLogin(t *testing.T) {
	b, _ := newTestServer(t, learnerClient())

	rec := b.get("/api/courses/1/watch")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWatchRequestedLesson(t *testing.T) {
	b, _ := newTestServer(t, learnerClient())
	b.login()

	rec := b.get("/api/courses/1/watch?lesson=12")
	require.Equal(t, http.StatusOK, rec.Code)

	var state service.WatchState
	decode(t, rec, &state)
	assert.Equal(t, int64(12), state.ActiveLesson.ID)
}

func TestReviews(t *testing.T) {
	fc := learnerClient()
	fc.payments = []*model.Payment{{ID: 1, CourseID: 1, UserID: 5, Status: model.PaymentApproved}}
	fc.reviews = []*model.Review{{ID: 1, UserID: 9, UserName: "Ali", Rating: 4, Comment: "good"}}
	b, _ := newTestServer(t, fc)
	b.login()

	rec := b.get("/api/courses/1/reviews")
	require.Equal(t, http.StatusOK, rec.Code)
	var state service.ReviewState
	decode(t, rec, &state)
	assert.True(t, state.Loaded)
	assert.True(t, state.CanReview)
	assert.Len(t, state.Reviews, 1)

	rec = b.postJSON("/api/courses/1/reviews", `{"rating": 0, "comment": "x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = b.postJSON("/api/courses/1/reviews", `{"rating": 5, "comment": "  great course "}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var result struct {
		Review model.Review        `json:"review"`
		State  service.ReviewState `json:"state"`
	}
	decode(t, rec, &result)
	assert.Equal(t, "great course", result.Review.Comment)
	assert.Equal(t, "Mona", result.Review.UserName)
	assert.False(t, result.State.CanReview)
	assert.True(t, result.State.AlreadyReviewed)

	rec = b.postJSON("/api/courses/1/reviews", `{"rating": 5, "comment": "again"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestReviewNotEnrolled(t *testing.T) {
	b, _ := newTestServer(t, learnerClient())
	b.login()

	rec := b.postJSON("/api/courses/1/reviews", `{"rating": 5, "comment": "nice"}`)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLogoutClosesWatchSessions(t *testing.T) {
	fc := learnerClient()
	b, sessions := newTestServer(t, fc)
	b.login()

	require.Equal(t, http.StatusOK, b.get("/api/courses/1/watch").Code)
	require.Equal(t, 1, sessions.Len())

	rec := b.postJSON("/api/logout", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, sessions.Len())
	assert.Equal(t, 1, fc.logoutCalls)
	assert.NotContains(t, b.cookies, "token")
}

func TestMe(t *testing.T) {
	b, _ := newTestServer(t, learnerClient())

	var anon model.Viewer
	decode(t, b.get("/api/me"), &anon)
	assert.False(t, anon.Authenticated)

	b.login()
	var viewer model.Viewer
	decode(t, b.get("/api/me"), &viewer)
	assert.True(t, viewer.Authenticated)
	assert.Equal(t, int64(5), viewer.UserID)
}
