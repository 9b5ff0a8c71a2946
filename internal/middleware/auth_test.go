package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"learner-portal/internal/apperror"
	"learner-portal/internal/client"
	"learner-portal/internal/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "shared-secret"

type profileClient struct {
	client.CourseClient
	viewer *model.Viewer
	err    error
	calls  atomic.Int32
}

func (p *profileClient) GetProfile(ctx context.Context) (*model.Viewer, error) {
	p.calls.Add(1)
	if p.err != nil {
		return nil, p.err
	}
	return p.viewer, nil
}

func signToken(t *testing.T, secret string, claims ViewerClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func validClaims() ViewerClaims {
	return ViewerClaims{
		UserID: 7,
		Name:   "Nour",
		Email:  "nour@example.com",
		Role:   "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func runViewer(t *testing.T, pc *profileClient, verifier *TokenVerifier, cookies ...*http.Cookie) model.Viewer {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var got model.Viewer
	h := ViewerMiddleware(pc, verifier, "token", zerolog.Nop())(func(c echo.Context) error {
		got = ViewerFrom(c)
		return nil
	})
	require.NoError(t, h(c))
	return got
}

func TestViewerAnonymousWithoutCookies(t *testing.T) {
	pc := &profileClient{viewer: &model.Viewer{Authenticated: true, UserID: 1}}

	got := runViewer(t, pc, nil, &http.Cookie{Name: SessionName, Value: "abc"})

	assert.False(t, got.Authenticated)
	assert.Zero(t, pc.calls.Load())
}

func TestViewerFromProfile(t *testing.T) {
	pc := &profileClient{viewer: &model.Viewer{Authenticated: true, UserID: 1, Name: "Sara"}}

	got := runViewer(t, pc, nil, &http.Cookie{Name: "token", Value: "opaque"})

	assert.True(t, got.Authenticated)
	assert.Equal(t, int64(1), got.UserID)
	assert.Equal(t, int32(1), pc.calls.Load())
}

func TestViewerUnauthorizedProfileIsAnonymous(t *testing.T) {
	pc := &profileClient{err: &apperror.APIError{Status: http.StatusUnauthorized, Message: "expired"}}

	got := runViewer(t, pc, nil, &http.Cookie{Name: "token", Value: "opaque"})

	assert.Equal(t, model.Anonymous, got)
}

func TestViewerFromVerifiedToken(t *testing.T) {
	pc := &profileClient{}
	token := signToken(t, testSecret, validClaims())

	got := runViewer(t, pc, NewTokenVerifier(testSecret), &http.Cookie{Name: "token", Value: token})

	assert.True(t, got.Authenticated)
	assert.Equal(t, int64(7), got.UserID)
	assert.True(t, got.IsAdmin())
	assert.Zero(t, pc.calls.Load())
}

func TestViewerBadTokenFallsBackToProfile(t *testing.T) {
	pc := &profileClient{viewer: &model.Viewer{Authenticated: true, UserID: 3}}
	token := signToken(t, "other-secret", validClaims())

	got := runViewer(t, pc, NewTokenVerifier(testSecret), &http.Cookie{Name: "token", Value: token})

	assert.Equal(t, int64(3), got.UserID)
	assert.Equal(t, int32(1), pc.calls.Load())
}

func TestTokenVerifier(t *testing.T) {
	assert.Nil(t, NewTokenVerifier(""))

	v := NewTokenVerifier(testSecret)

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	_, err := v.Verify(signToken(t, testSecret, expired))
	assert.Error(t, err)

	noExpiry := validClaims()
	noExpiry.ExpiresAt = nil
	_, err = v.Verify(signToken(t, testSecret, noExpiry))
	assert.Error(t, err)

	noUser := validClaims()
	noUser.UserID = 0
	_, err = v.Verify(signToken(t, testSecret, noUser))
	assert.Error(t, err)

	claims := validClaims()
	claims.Role = "user"
	viewer, err := v.Verify(signToken(t, testSecret, claims))
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, viewer.Role)
	assert.Equal(t, "nour@example.com", viewer.Email)
}

func TestSessionMiddlewareKeepsID(t *testing.T) {
	e := echo.New()
	store := NewCookieStore("test-key")

	var first string
	h := SessionMiddleware(store, zerolog.Nop())(func(c echo.Context) error {
		first = SessionIDFrom(c)
		return nil
	})
	rec := httptest.NewRecorder()
	require.NoError(t, h(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)))
	require.NotEmpty(t, first)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	var second string
	h = SessionMiddleware(store, zerolog.Nop())(func(c echo.Context) error {
		second = SessionIDFrom(c)
		return nil
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	require.NoError(t, h(e.NewContext(req, rec)))

	assert.Equal(t, first, second)
	assert.Empty(t, rec.Result().Cookies())
}
