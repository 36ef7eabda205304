package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/taskhive/backend/internal/middleware"
	"github.com/taskhive/backend/internal/services"
	"github.com/taskhive/backend/pkg/response"
)

type MemberHandler struct {
	workspaceService *services.WorkspaceService
}

func NewMemberHandler(workspaceService *services.WorkspaceService) *MemberHandler {
	return &MemberHandler{workspaceService: workspaceService}
}

// GET /api/workspaces/:workspaceId/members
func (h *MemberHandler) List(c *gin.Context) {
	members, err := h.workspaceService.ListMembers(c.Request.Context(), middleware.AccessFrom(c).Workspace.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, members)
}

// Add invites an existing account by email
// POST /api/workspaces/:workspaceId/members
func (h *MemberHandler) Add(c *gin.Context) {
	var req services.AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	member, err := h.workspaceService.AddMember(c.Request.Context(), middleware.AccessFrom(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, member)
}

// RegisterTeamMember creates an account directly inside the workspace
// POST /api/workspaces/:workspaceId/register/team-member
func (h *MemberHandler) RegisterTeamMember(c *gin.Context) {
	var req services.RegisterTeamMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	member, err := h.workspaceService.RegisterTeamMember(c.Request.Context(), middleware.AccessFrom(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, member)
}

// PATCH /api/workspaces/:workspaceId/members/:userId
func (h *MemberHandler) UpdateRole(c *gin.Context) {
	var req services.UpdateMemberRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	member, err := h.workspaceService.UpdateMemberRole(c.Request.Context(), middleware.AccessFrom(c).Workspace.ID, c.Param("userId"), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, member)
}

// DELETE /api/workspaces/:workspaceId/members/:userId
func (h *MemberHandler) Remove(c *gin.Context) {
	if err := h.workspaceService.RemoveMember(c.Request.Context(), middleware.AccessFrom(c), c.Param("userId")); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "Member removed")
}
