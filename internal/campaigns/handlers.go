package campaigns

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"voice-campaigns/internal/audit"
	"voice-campaigns/internal/auth"
	"voice-campaigns/internal/httpkit"
	"voice-campaigns/internal/rbac"
	"voice-campaigns/pkg/apperr"
)

// Handler exposes the campaign API. Keep it thin: bind, authorize, call the service.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

func NewHandler(svc *Service) *Handler {
	return &Handler{service: svc, validate: validator.New()}
}

// Register mounts the routes on an authenticated group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/campaigns/progress", h.GetProgress)
	rg.PATCH("/campaigns/:campaignId/status", rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleManager), h.ChangeStatus)
	rg.POST("/campaigns", rbac.RequireAnyRole(rbac.RoleOwner, rbac.RoleManager), h.Schedule)
}

// GetProgress handles GET /campaigns/progress?campaignId=&organizationId=.
func (h *Handler) GetProgress(c *gin.Context) {
	orgID, ok := h.organization(c, c.Query("organizationId"))
	if !ok {
		return
	}
	p, err := h.service.GetProgress(c.Request.Context(), orgID, c.Query("campaignId"))
	if httpkit.HandleError(c, err) {
		return
	}
	c.JSON(http.StatusOK, p)
}

type changeStatusRequest struct {
	Status         string `json:"status"`
	OrganizationID string `json:"organizationId"`
}

// ChangeStatus handles PATCH /campaigns/:campaignId/status.
func (h *Handler) ChangeStatus(c *gin.Context) {
	var req changeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.HandleError(c, apperr.BadRequest("invalid json"))
		return
	}
	if !Status(req.Status).Valid() {
		httpkit.HandleError(c, InvalidStatusError(req.Status))
		return
	}
	orgID, ok := h.organization(c, req.OrganizationID)
	if !ok {
		return
	}
	camp, err := h.service.ChangeStatus(c.Request.Context(), orgID, c.Param("campaignId"), req.Status, actor(c))
	if httpkit.HandleError(c, err) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"campaign": camp})
}

type scheduleRequest struct {
	OrganizationID string     `json:"organizationId"`
	Name           string     `json:"name" validate:"required,max=200"`
	AgentID        string     `json:"agentId" validate:"required"`
	Targets        []Target   `json:"targets" validate:"required,min=1,max=10000,dive"`
	ScheduledAt    *time.Time `json:"scheduledAt,omitempty"`
}

// Schedule handles POST /campaigns.
func (h *Handler) Schedule(c *gin.Context) {
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.HandleError(c, apperr.BadRequest("invalid json"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpkit.HandleError(c, apperr.Validation("invalid request").WithDetails(fieldErrors(err)))
		return
	}
	orgID, ok := h.organization(c, req.OrganizationID)
	if !ok {
		return
	}
	camp, err := h.service.Schedule(c.Request.Context(), ScheduleRequest{
		OrganizationID: orgID,
		Name:           req.Name,
		AgentID:        req.AgentID,
		Targets:        req.Targets,
		ScheduledAt:    req.ScheduledAt,
	}, actor(c))
	if httpkit.HandleError(c, err) {
		return
	}
	c.JSON(http.StatusCreated, gin.H{"campaign": camp})
}

// organization resolves the target organization, defaulting to the caller's own,
// and rejects access to any other organization.
func (h *Handler) organization(c *gin.Context, requested string) (string, bool) {
	if requested == "" {
		own, err := auth.OrganizationID(c.Request.Context())
		if err != nil {
			httpkit.HandleError(c, apperr.New(apperr.KindUnauthorized, "organizationId required"))
			return "", false
		}
		requested = own
	}
	if !rbac.CanAccessOrganization(c.Request.Context(), requested) {
		httpkit.HandleError(c, apperr.Forbidden("forbidden"))
		return "", false
	}
	return requested, true
}

func actor(c *gin.Context) audit.Actor {
	id, _ := auth.IdentityFrom(c.Request.Context())
	return audit.Actor{UserID: id.UserID, Role: id.Role, IP: c.ClientIP()}
}

func fieldErrors(err error) map[string]string {
	out := map[string]string{}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			out[fe.Namespace()] = fe.Tag()
		}
	}
	return out
}
