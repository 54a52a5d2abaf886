package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/kurban/internal/domain/models"
	"github.com/mamadbah2/kurban/internal/service/auth"
	"github.com/mamadbah2/kurban/internal/service/whatsapp"
)

var (
	errConfirmationRequired = errors.New("confirmation required, repeat the request with confirm=true")
	errNotConfigured        = errors.New("feature is not configured")
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Field string `json:"field,omitempty"`
}

// statusFor maps the error taxonomy onto HTTP statuses.
func statusFor(err error) (int, errorResponse) {
	body := errorResponse{Error: err.Error()}

	var verr *models.ValidationError
	var serr *models.StoreError
	switch {
	case errors.As(err, &verr):
		body.Error = verr.Message
		body.Code = string(verr.Code)
		body.Field = verr.Field
		return http.StatusUnprocessableEntity, body
	case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrShareNotAssigned):
		return http.StatusNotFound, body
	case errors.Is(err, models.ErrRevisionConflict):
		return http.StatusConflict, body
	case errors.Is(err, errConfirmationRequired):
		return http.StatusPreconditionRequired, body
	case errors.Is(err, auth.ErrInvalidPIN), errors.Is(err, auth.ErrInvalidSession):
		return http.StatusUnauthorized, body
	case errors.Is(err, whatsapp.ErrNoPhone):
		body.Code = string(models.CodeInvalidPhone)
		return http.StatusUnprocessableEntity, body
	case errors.Is(err, whatsapp.ErrSendingDisabled), errors.Is(err, errNotConfigured):
		return http.StatusServiceUnavailable, body
	case errors.As(err, &serr):
		return http.StatusBadGateway, body
	default:
		return http.StatusInternalServerError, errorResponse{Error: "internal error"}
	}
}

func respondError(c *gin.Context, logger *zap.Logger, err error) {
	status, body := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Error(err))
	} else {
		logger.Debug("request rejected", zap.Int("status", status), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: msg})
}

// confirmed reports whether a destructive request carries confirm=true.
func confirmed(c *gin.Context) bool {
	ok, _ := strconv.ParseBool(c.Query("confirm"))
	return ok
}

func slotParam(c *gin.Context) (int, bool) {
	slot, err := strconv.Atoi(c.Param("slot"))
	if err != nil {
		badRequest(c, "slot must be a number")
		return 0, false
	}
	return slot, true
}
