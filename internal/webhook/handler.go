package webhook

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"voice-campaigns/internal/httpkit"
	"voice-campaigns/pkg/logger"
)

const maxBodyBytes = 2 << 20

// Handler is the provider-facing HTTP endpoint.
type Handler struct {
	gateway *Gateway
}

func NewHandler(g *Gateway) *Handler { return &Handler{gateway: g} }

// Receive handles POST /webhooks/provider. Everything but a malformed envelope is answered 200.
func (h *Handler) Receive(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, httpkit.ErrorResponse{Error: "bad envelope"})
		return
	}

	resp, err := h.gateway.Handle(c.Request.Context(), body)
	if errors.Is(err, ErrBadEnvelope) {
		logger.FromGin(c).Warn("rejected webhook", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, httpkit.ErrorResponse{Error: "bad envelope"})
		return
	}
	if err != nil {
		logger.FromGin(c).Error("webhook failed", "err", err)
		resp = ack
	}
	c.JSON(http.StatusOK, resp)
}
