package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/taskhive/backend/internal/middleware"
	"github.com/taskhive/backend/internal/services"
	"github.com/taskhive/backend/pkg/response"
)

type TaskHandler struct {
	taskService *services.TaskService
}

func NewTaskHandler(taskService *services.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

// List returns a filtered, paginated page of tasks
// GET /api/workspaces/:workspaceId/tasks
func (h *TaskHandler) List(c *gin.Context) {
	var req services.TaskListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.taskService.List(c.Request.Context(), middleware.AccessFrom(c).Workspace.ID, &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// MyTasks is List restricted to tasks assigned to the caller
// GET /api/workspaces/:workspaceId/tasks/my-tasks
func (h *TaskHandler) MyTasks(c *gin.Context) {
	var req services.TaskListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	access := middleware.AccessFrom(c)
	result, err := h.taskService.MyTasks(c.Request.Context(), access.Workspace.ID, access.UserID(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// GET /api/workspaces/:workspaceId/tasks/stats
func (h *TaskHandler) Stats(c *gin.Context) {
	stats, err := h.taskService.Stats(c.Request.Context(), middleware.AccessFrom(c).Workspace.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, stats)
}

// GET /api/workspaces/:workspaceId/tasks/:taskId
func (h *TaskHandler) Get(c *gin.Context) {
	task, err := h.taskService.Get(c.Request.Context(), middleware.AccessFrom(c).Workspace.ID, c.Param("taskId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, task)
}

// Activity returns the task's history, newest first
// GET /api/workspaces/:workspaceId/tasks/:taskId/activity
func (h *TaskHandler) Activity(c *gin.Context) {
	logs, err := h.taskService.Activity(c.Request.Context(), middleware.AccessFrom(c).Workspace.ID, c.Param("taskId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, logs)
}

// POST /api/workspaces/:workspaceId/tasks
func (h *TaskHandler) Create(c *gin.Context) {
	var req services.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	task, err := h.taskService.Create(c.Request.Context(), middleware.AccessFrom(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, task)
}

// POST /api/workspaces/:workspaceId/tasks/:taskId/comments
func (h *TaskHandler) AddComment(c *gin.Context) {
	var req services.AddCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	comment, err := h.taskService.AddComment(c.Request.Context(), middleware.AccessFrom(c), c.Param("taskId"), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, comment)
}

// BulkUpdate applies one change to several tasks
// PATCH /api/workspaces/:workspaceId/tasks/bulk
func (h *TaskHandler) BulkUpdate(c *gin.Context) {
	var req services.BulkUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.taskService.BulkUpdate(c.Request.Context(), middleware.AccessFrom(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// PATCH /api/workspaces/:workspaceId/tasks/:taskId
func (h *TaskHandler) Update(c *gin.Context) {
	var req services.UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	task, err := h.taskService.Update(c.Request.Context(), middleware.AccessFrom(c), c.Param("taskId"), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, task)
}

// DELETE /api/workspaces/:workspaceId/tasks/:taskId
func (h *TaskHandler) Delete(c *gin.Context) {
	if err := h.taskService.Delete(c.Request.Context(), middleware.AccessFrom(c), c.Param("taskId")); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, "Task deleted")
}
