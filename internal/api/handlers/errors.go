package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"auction-platform/internal/domain"
	"auction-platform/pkg/logger"

	"github.com/labstack/echo/v4"
)

const genericErrorMessage = "An unexpected error occurred. Please try again later."

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

var statusByKind = map[string]int{
	domain.KindNotFound:              http.StatusNotFound,
	domain.KindUnauthorized:          http.StatusUnauthorized,
	domain.KindForbidden:             http.StatusForbidden,
	domain.KindModificationForbidden: http.StatusForbidden,
	domain.KindExpired:               http.StatusForbidden,
	domain.KindClosed:                http.StatusForbidden,
	domain.KindBidTooLow:             http.StatusForbidden,
	domain.KindConcurrencyExhausted:  http.StatusConflict,
	domain.KindInvalid:               http.StatusBadRequest,
}

// ErrorHandler renders every error returned by a handler or middleware as
// an ErrorResponse. Unclassified errors are logged and hidden from the client.
func ErrorHandler(log logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := errorResponseFor(err)
		if status >= http.StatusInternalServerError {
			log.Error("Request failed",
				"method", c.Request().Method,
				"path", c.Path(),
				"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
				"error", err)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			log.Error("Failed to write error response", "error", err)
		}
	}
}

func errorResponseFor(err error) (int, ErrorResponse) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		kind := kindForStatus(he.Code)
		msg := fmt.Sprint(he.Message)
		if he.Code >= http.StatusInternalServerError {
			msg = genericErrorMessage
		}
		return he.Code, ErrorResponse{Error: msg, Kind: kind}
	}

	kind := domain.ErrorKind(err)
	status, ok := statusByKind[kind]
	if !ok {
		return http.StatusInternalServerError, ErrorResponse{Error: genericErrorMessage, Kind: domain.KindInternal}
	}
	return status, ErrorResponse{Error: err.Error(), Kind: kind}
}

func kindForStatus(status int) string {
	switch status {
	case http.StatusNotFound:
		return domain.KindNotFound
	case http.StatusUnauthorized:
		return domain.KindUnauthorized
	case http.StatusForbidden:
		return domain.KindForbidden
	}
	if status >= http.StatusInternalServerError {
		return domain.KindInternal
	}
	return domain.KindInvalid
}
