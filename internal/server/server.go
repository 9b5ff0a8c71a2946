package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"learner-portal/internal/client"
	"learner-portal/internal/config"
	"learner-portal/internal/dto"
	"learner-portal/internal/handler"
	appmiddleware "learner-portal/internal/middleware"
	"learner-portal/internal/repository"
	"learner-portal/internal/service"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Stores are the optional local stores. Both are nil when persistence is off.
type Stores struct {
	Completions repository.CompletionRepository
	Submissions repository.SubmissionRepository
}

type Server struct {
	echo          *echo.Echo
	log           zerolog.Logger
	watchSessions *service.WatchSessions
	courseHandler *handler.CourseHandler
	watchHandler  *handler.WatchHandler
	reviewHandler *handler.ReviewHandler
	authHandler   *handler.AuthHandler
}

func NewServer(
	cfg *config.Config,
	courseClient client.CourseClient,
	resolver service.EnrollmentResolver,
	watchSessions *service.WatchSessions,
	stores Stores,
	sessionStore sessions.Store,
	log zerolog.Logger,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(log)

	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			evt := log.Info()
			if v.Error != nil {
				evt = log.Warn().Err(v.Error)
			}
			evt.Str("request_id", v.RequestID).
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	courseHandler := handler.NewCourseHandler(courseClient, resolver, &cfg.Payment, stores.Submissions, log)
	watchHandler := handler.NewWatchHandler(courseClient, watchSessions, &cfg.Watch, stores.Completions, log)
	reviewHandler := handler.NewReviewHandler(courseClient, resolver, log)
	authHandler := handler.NewAuthHandler(courseClient, watchSessions, courseHandler, reviewHandler, log)

	s := &Server{
		echo:          e,
		log:           log,
		watchSessions: watchSessions,
		courseHandler: courseHandler,
		watchHandler:  watchHandler,
		reviewHandler: reviewHandler,
		authHandler:   authHandler,
	}

	s.setupRoutes(sessionStore, courseClient, &cfg.Backend)
	return s
}

func (s *Server) setupRoutes(sessionStore sessions.Store, courseClient client.CourseClient, backendCfg *config.Backend) {
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	api.Use(appmiddleware.SessionMiddleware(sessionStore, s.log))
	verifier := appmiddleware.NewTokenVerifier(backendCfg.JWTSecret)
	api.Use(appmiddleware.ViewerMiddleware(courseClient, verifier, backendCfg.TokenCookie, s.log))

	api.GET("/me", s.authHandler.Me)
	api.POST("/logout", s.authHandler.Logout)

	// -------- course page --------
	courses := api.Group("/courses/:id")
	courses.GET("", s.courseHandler.GetCourse)
	courses.POST("/payments", s.courseHandler.SubmitPayment)
	courses.GET("/reviews", s.reviewHandler.GetReviews)
	courses.POST("/reviews", s.reviewHandler.SubmitReview)

	// -------- watch page --------
	watch := courses.Group("/watch")
	watch.GET("", s.watchHandler.Open)
	watch.DELETE("", s.watchHandler.Close)
	watch.GET("/state", s.watchHandler.Get)
	watch.POST("/progress", s.watchHandler.Progress)
	watch.POST("/next", s.watchHandler.Next)
	watch.POST("/lessons/:lessonID/select", s.watchHandler.SelectLesson)
	watch.POST("/lessons/:lessonID/complete", s.watchHandler.CompleteLesson)
}

// RunSweeper drops watch sessions, payment surfaces and review gates left idle
// for longer than idle, checking every interval until ctx is done.
func (s *Server) RunSweeper(ctx context.Context, interval, idle time.Duration) {
	if interval <= 0 || idle <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(time.Now().Add(-idle))
		}
	}
}

func (s *Server) sweep(cutoff time.Time) int {
	n := s.watchSessions.SweepBefore(cutoff) +
		s.courseHandler.SweepBefore(cutoff) +
		s.reviewHandler.SweepBefore(cutoff)
	if n > 0 {
		s.log.Debug().Int("evicted", n).Msg("idle browser state swept")
	}
	return n
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// errorHandler renders every error as {"error": "..."}.
func errorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		msg := http.StatusText(code)

		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			msg = fmt.Sprint(he.Message)
		} else {
			log.Error().Err(err).Str("uri", c.Request().RequestURI).Msg("unhandled error")
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, dto.ErrorResponse{Error: msg})
		}
		if err != nil {
			log.Error().Err(err).Msg("write error response")
		}
	}
}
