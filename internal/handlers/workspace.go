package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/taskhive/backend/internal/middleware"
	"github.com/taskhive/backend/internal/services"
	"github.com/taskhive/backend/pkg/response"
)

type WorkspaceHandler struct {
	workspaceService *services.WorkspaceService
}

func NewWorkspaceHandler(workspaceService *services.WorkspaceService) *WorkspaceHandler {
	return &WorkspaceHandler{workspaceService: workspaceService}
}

// List returns the caller's workspaces with their role in each
// GET /api/workspaces
func (h *WorkspaceHandler) List(c *gin.Context) {
	workspaces, err := h.workspaceService.ListForUser(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, workspaces)
}

// Create starts a trial workspace owned by the caller
// POST /api/workspaces
func (h *WorkspaceHandler) Create(c *gin.Context) {
	var req services.CreateWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	ws, err := h.workspaceService.Create(c.Request.Context(), middleware.AccessFrom(c).User(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, ws)
}

// GET /api/workspaces/:workspaceId
func (h *WorkspaceHandler) Get(c *gin.Context) {
	detail, err := h.workspaceService.Get(c.Request.Context(), middleware.AccessFrom(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, detail)
}

// PATCH /api/workspaces/:workspaceId
func (h *WorkspaceHandler) Update(c *gin.Context) {
	var req services.UpdateWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	ws, err := h.workspaceService.Update(c.Request.Context(), middleware.AccessFrom(c).Workspace.ID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, ws)
}

// Delete removes the workspace with all of its tasks and memberships
// DELETE /api/workspaces/:workspaceId
func (h *WorkspaceHandler) Delete(c *gin.Context) {
	if err := h.workspaceService.Delete(c.Request.Context(), middleware.AccessFrom(c).Workspace.ID); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "Workspace deleted")
}

// Stats returns membership, subscription and task figures
// GET /api/workspaces/:workspaceId/stats
func (h *WorkspaceHandler) Stats(c *gin.Context) {
	stats, err := h.workspaceService.Stats(c.Request.Context(), middleware.AccessFrom(c).Workspace)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, stats)
}
