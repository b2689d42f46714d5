package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/vegasq/datamart/internal/engine"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Detail string `json:"detail"`
}

// queryError converts an engine error into an HTTP error for dataset name.
func queryError(name string, err error) *echo.HTTPError {
	var (
		code   int
		detail string
	)
	switch engine.Kind(err) {
	case engine.KindNotFound:
		code, detail = http.StatusNotFound, fmt.Sprintf("File %s not found", name)
	case engine.KindSchema, engine.KindValidation:
		code, detail = http.StatusBadRequest, err.Error()
	case engine.KindCanceled:
		code, detail = http.StatusRequestTimeout, "Request canceled"
	default:
		code, detail = http.StatusInternalServerError, "Internal server error"
	}
	return echo.NewHTTPError(code, detail).SetInternal(err)
}

// ErrorHandler renders errors as {"detail": "..."} bodies. Server errors
// are logged with their internal cause.
func ErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		detail := "Internal server error"
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			detail = fmt.Sprint(he.Message)
		}

		if code >= http.StatusInternalServerError {
			log.Error().Err(err).
				Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
				Int("status", code).
				Msg("request failed")
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, ErrorBody{Detail: detail})
		}
		if err != nil {
			log.Error().Err(err).Msg("failed to write error response")
		}
	}
}
