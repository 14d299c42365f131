// Package httpkit holds HTTP plumbing shared by handlers: error mapping,
// rate limiting, and the webhook shared-secret guard.
package httpkit

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"voice-campaigns/pkg/apperr"
	"voice-campaigns/pkg/logger"
)

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// HandleError writes err as JSON. Typed *apperr.Error values map by Kind;
// anything else is logged and reported as 500 without leaking its text.
// Returns false when err is nil.
func HandleError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}
	if e, ok := apperr.As(err); ok {
		if e.Kind == apperr.KindInternal {
			logger.FromGin(c).Error("request failed", "err", err)
		}
		c.AbortWithStatusJSON(e.HTTPStatus(), ErrorResponse{Error: e.Message, Details: e.Details})
		return true
	}
	logger.FromGin(c).Error("request failed", "err", err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	return true
}
