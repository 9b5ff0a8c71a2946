package handler

import (
	"errors"
	"net/http"
	"strconv"

	"learner-portal/internal/apperror"
	"learner-portal/internal/service"

	"github.com/labstack/echo/v4"
)

func toHTTPError(err error) *echo.HTTPError {
	var valErr *apperror.ValidationError
	var apiErr *apperror.APIError

	switch {
	case errors.As(err, &valErr):
		return echo.NewHTTPError(http.StatusBadRequest, valErr.Message)
	case errors.As(err, &apiErr):
		return echo.NewHTTPError(apiErr.Status, apperror.Message(err))
	case apperror.IsNetwork(err):
		return echo.NewHTTPError(http.StatusBadGateway, apperror.Message(err))
	case errors.Is(err, service.ErrLessonNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrLessonNotAccessible),
		errors.Is(err, service.ErrReviewNotAllowed),
		errors.Is(err, service.ErrPaymentNotOffered):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrSubmissionInFlight),
		errors.Is(err, service.ErrLessonNotActive),
		errors.Is(err, service.ErrWatchThresholdNotMet),
		errors.Is(err, service.ErrPaymentFormClosed),
		errors.Is(err, service.ErrSessionClosed):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

func int64Param(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}
