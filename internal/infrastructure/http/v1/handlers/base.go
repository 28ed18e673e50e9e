package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stockledger/internal/core/apperror"
	"stockledger/internal/core/id"
	"stockledger/internal/core/security"
	"stockledger/internal/domain/audit"
	"stockledger/pkg/logger"
)

// BaseHandler provides common handler utilities.
type BaseHandler struct {
	auditor audit.Auditor
}

// NewBaseHandler creates a new base handler. A nil auditor disables the
// audit trail.
func NewBaseHandler(auditor audit.Auditor) *BaseHandler {
	if auditor == nil {
		auditor = audit.Nop{}
	}
	return &BaseHandler{auditor: auditor}
}

// BindJSON binds and validates JSON request body.
func (h *BaseHandler) BindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid request body").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// BindQuery binds and validates query parameters.
func (h *BaseHandler) BindQuery(c *gin.Context, obj any) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		h.Error(c, apperror.NewValidation("invalid query parameters").WithDetail("error", err.Error()))
		return false
	}
	return true
}

// ParamID parses a UUID path parameter.
func (h *BaseHandler) ParamID(c *gin.Context, name string) (id.ID, bool) {
	v, err := id.Parse(c.Param(name))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid "+name).WithDetail(name, c.Param(name)))
		return id.Nil(), false
	}
	return v, true
}

// RequireOrg aborts unless the caller may act on orgID.
func (h *BaseHandler) RequireOrg(c *gin.Context, orgID id.ID) bool {
	if err := security.GetScope(c.Request.Context()).RequireOrg(orgID.String()); err != nil {
		h.Error(c, err)
		return false
	}
	return true
}

// Audit records a successful mutation. Failures are logged, never returned:
// the mutation has already committed.
func (h *BaseHandler) Audit(c *gin.Context, orgID id.ID, action audit.Action, entityType, entityID string, changes any) {
	ctx := c.Request.Context()
	entry, err := audit.NewEntry(ctx, orgID, action, entityType, entityID, changes)
	if err == nil {
		err = h.auditor.Log(ctx, entry)
	}
	if err != nil {
		logger.Warn(ctx, "audit write failed",
			"action", action,
			"entity_type", entityType,
			"entity_id", entityID,
			"error", err,
		)
	}
}

// Error registers error on Gin context and aborts request.
// Actual JSON response is produced by middleware.ErrorHandler.
func (h *BaseHandler) Error(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// Created sends 201 response with data.
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

// OK sends 200 response with data.
func (h *BaseHandler) OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}
