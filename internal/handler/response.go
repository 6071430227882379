package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/book-market-backend/internal/reqctx"
	"github.com/shinyyama/book-market-backend/internal/service"
	"go.uber.org/zap"
)

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error errorPayload `json:"error"`
}

func NewErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{
		Error: errorPayload{
			Code:    code,
			Message: message,
		},
	}
}

var kindStatus = map[service.Kind]struct {
	status int
	code   string
}{
	service.KindNotFound:     {http.StatusNotFound, "not_found"},
	service.KindValidation:   {http.StatusBadRequest, "bad_request"},
	service.KindBusiness:     {http.StatusConflict, "conflict"},
	service.KindUnauthorized: {http.StatusForbidden, "forbidden"},
}

// respondError writes err with the status of its kind. Unexpected errors are
// logged in full and answered with an opaque body.
func respondError(c echo.Context, logger *zap.Logger, err error) error {
	kind := service.KindOf(err)
	if m, ok := kindStatus[kind]; ok {
		return c.JSON(m.status, NewErrorResponse(m.code, service.Message(err)))
	}
	ctx := c.Request().Context()
	logger.Error("request failed",
		zap.String("rid", reqctx.RID(ctx)),
		zap.String("uid", reqctx.UID(ctx)),
		zap.String("method", c.Request().Method),
		zap.String("path", c.Path()),
		zap.Error(err),
	)
	return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", service.Message(err)))
}

func currentUID(c echo.Context) string {
	uid, _ := c.Get("uid").(string)
	return uid
}

func missingUID(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
}

func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := t.Format(time.RFC3339)
	return &v
}
