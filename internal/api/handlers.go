// Package api exposes the query engine over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/vegasq/datamart/internal/auth"
	"github.com/vegasq/datamart/internal/engine"
)

// Querier is the engine surface the handlers use. *engine.Service
// implements it.
type Querier interface {
	GetAll(ctx context.Context, name, filter string) ([]map[string]any, error)
	QueryByRange(ctx context.Context, q engine.RangeQuery) ([]engine.AggregateResult, error)
	QueryByTotalAndAvg(ctx context.Context, q engine.RangeQuery) ([]engine.AggregateResult, error)
}

// Authenticator issues session tokens and guards protected routes.
// *auth.Authenticator implements it.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (string, error)
	Middleware() echo.MiddlewareFunc
}

// Handler serves the dataset endpoints.
type Handler struct {
	svc  Querier
	auth Authenticator
	log  zerolog.Logger
}

// NewHandler creates a Handler.
func NewHandler(svc Querier, a Authenticator, log zerolog.Logger) *Handler {
	return &Handler{svc: svc, auth: a, log: log}
}

// RegisterRoutes mounts the public and protected routes on e.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/get_token", h.GetToken)

	protected := h.auth.Middleware()
	e.GET("/data/:filename", h.GetData, protected)
	e.GET("/query_data/:filename", h.QueryData, protected)
	e.GET("/v2/query_data/:filename", h.QueryDataV2, protected)
}

// Credentials is the body of /get_token.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse is returned by /get_token.
type TokenResponse struct {
	Token string `json:"token"`
}

// DataResponse wraps every dataset answer.
type DataResponse[T any] struct {
	Data []T `json:"data"`
}

// GetToken exchanges an email and password for a session token.
func (h *Handler) GetToken(c echo.Context) error {
	var creds Credentials
	if err := c.Bind(&creds); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid credentials").SetInternal(err)
	}

	token, err := h.auth.Login(c.Request().Context(), creds.Email, creds.Password)
	if err != nil {
		ev := h.log.Info()
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			ev = h.log.Error()
		}
		ev.Err(err).Msg("sign-in failed")
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid credentials").SetInternal(err)
	}
	return c.JSON(http.StatusOK, TokenResponse{Token: token})
}

// GetData returns the rows of a dataset, optionally filtered by the query
// parameter.
func (h *Handler) GetData(c echo.Context) error {
	name := c.Param("filename")
	rows, err := h.svc.GetAll(c.Request().Context(), name, c.QueryParam("query"))
	if err != nil {
		return queryError(name, err)
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	return c.JSON(http.StatusOK, DataResponse[map[string]any]{Data: rows})
}

// QueryData returns Qty and Amount totals per key for a date range.
func (h *Handler) QueryData(c echo.Context) error {
	q := rangeQuery(c)
	results, err := h.svc.QueryByRange(c.Request().Context(), q)
	if err != nil {
		return queryError(q.Dataset, err)
	}
	return c.JSON(http.StatusOK, DataResponse[engine.AggregateResult]{Data: results})
}

// QueryDataV2 is QueryData plus the average amount per unit.
func (h *Handler) QueryDataV2(c echo.Context) error {
	q := rangeQuery(c)

	flag := c.QueryParam("cummulative")
	if flag == "" {
		flag = c.QueryParam("cumulative")
	}
	if flag != "" {
		v, err := strconv.ParseBool(flag)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "cummulative: "+strconv.Quote(flag)+" is not a boolean")
		}
		q.Cumulative = v
	}

	results, err := h.svc.QueryByTotalAndAvg(c.Request().Context(), q)
	if err != nil {
		return queryError(q.Dataset, err)
	}
	return c.JSON(http.StatusOK, DataResponse[engine.AggregateResult]{Data: results})
}

func rangeQuery(c echo.Context) engine.RangeQuery {
	return engine.RangeQuery{
		Dataset:   c.Param("filename"),
		StartDate: c.QueryParam("start_date"),
		EndDate:   c.QueryParam("end_date"),
		KeyType:   c.QueryParam("key_type"),
		KeyValue:  c.QueryParam("key_value"),
	}
}
