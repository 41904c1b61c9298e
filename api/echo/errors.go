package echo

import (
	"errors"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	aerrors "go.pilab.hu/accountd/errors"
)

// apiResponse is the envelope for successful responses.
type apiResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// apiError is the envelope for failures. Details carries per-field validation
// messages when present.
type apiError struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

func respond(c echo.Context, status int, data interface{}, message string) error {
	return c.JSON(status, apiResponse{Message: message, Data: data})
}

// respondError is the single place where service error kinds become HTTP
// statuses. Kinds are never collapsed: a store outage is a 503, not a 401.
func respondError(c echo.Context, err error) error {
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		return c.JSON(http.StatusBadRequest, apiError{Error: "validation failed", Details: verrs})
	}

	switch {
	case errors.Is(err, aerrors.ErrInvalidCredentials),
		errors.Is(err, aerrors.ErrSignatureInvalid),
		errors.Is(err, aerrors.ErrTokenNotFound),
		errors.Is(err, aerrors.ErrInvalidSubject):
		return c.JSON(http.StatusUnauthorized, apiError{Error: publicMessage(err)})
	case errors.Is(err, aerrors.ErrUserNotFound):
		return c.JSON(http.StatusNotFound, apiError{Error: aerrors.ErrUserNotFound.Error()})
	case errors.Is(err, aerrors.ErrEmailTaken):
		return c.JSON(http.StatusBadRequest, apiError{Error: aerrors.ErrEmailTaken.Error()})
	case errors.Is(err, aerrors.ErrStoreUnavailable):
		log.Error().Err(err).Msg("store unavailable")
		return c.JSON(http.StatusServiceUnavailable, apiError{Error: "service temporarily unavailable"})
	default:
		log.Error().Err(err).Msg("unhandled error")
		return c.JSON(http.StatusInternalServerError, apiError{Error: "internal server error"})
	}
}

// respondTokenFlowError maps token errors for the reset-password and
// verify-email flows, where a dead token is the client's mistake (400), not
// a failed authentication.
func respondTokenFlowError(c echo.Context, err error) error {
	if errors.Is(err, aerrors.ErrSignatureInvalid) || errors.Is(err, aerrors.ErrTokenNotFound) {
		return c.JSON(http.StatusBadRequest, apiError{Error: "invalid or expired token"})
	}
	return respondError(c, err)
}

func publicMessage(err error) string {
	// Unwrap to the bare kind so internal wrapping context never leaks to
	// clients.
	for _, kind := range []error{
		aerrors.ErrInvalidCredentials,
		aerrors.ErrSignatureInvalid,
		aerrors.ErrTokenNotFound,
		aerrors.ErrInvalidSubject,
	} {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}
	return "unauthorized"
}
