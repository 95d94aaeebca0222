package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tentpost/internal/service"
	"go.uber.org/zap"
)

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, message)
		return false
	}
	return true
}

// statusFor 把服务层错误映射为 HTTP 状态码。
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrUnencodable),
		errors.Is(err, service.ErrDigestMismatch):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnknownParent):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrPostNotFound),
		errors.Is(err, service.ErrBlobNotFound),
		errors.Is(err, service.ErrAppNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrUserNotFound):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) respondServiceError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		c.Error(err)
		a.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		respondError(c, status, "internal error")
		return
	}
	respondError(c, status, err.Error())
}
