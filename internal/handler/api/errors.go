package api

import (
	"context"
	"errors"

	"WhyAgent/internal/domain/models"
	"WhyAgent/internal/services/features"
	xhttp "WhyAgent/pkg/http"
)

// toAppError maps use-case errors to HTTP errors.
func toAppError(err error) *xhttp.AppError {
	var (
		appErr       *xhttp.AppError
		schemaErr    *features.SchemaError
		shortErr     *features.InsufficientDataError
		dateParseErr *features.DateParseError
	)
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.As(err, &schemaErr), errors.As(err, &shortErr), errors.As(err, &dateParseErr):
		return xhttp.UnprocessableError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrPricesNotFound):
		return xhttp.NotFoundError("price file not found").WithError(err)
	case errors.Is(err, models.ErrModelNotFound):
		return xhttp.NotFoundError("model not found").WithError(err)
	case errors.Is(err, models.ErrNotConfigured):
		return xhttp.InternalError(err.Error()).WithError(err)
	case errors.Is(err, context.DeadlineExceeded):
		return xhttp.BadGatewayError("upstream timed out").WithError(err)
	default:
		return xhttp.InternalError("internal error").WithError(err)
	}
}
