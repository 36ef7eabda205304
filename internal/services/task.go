package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/taskhive/backend/internal/authz"
	"github.com/taskhive/backend/internal/models"
	"github.com/taskhive/backend/pkg/response"
)

var (
	ErrTaskNotFound        = response.NewNotFound("No task found with that ID")
	ErrAssigneeNotMember   = response.NewBadRequest("Assignee must be a member of this workspace")
	ErrInvalidTaskStatus   = response.NewBadRequest("Status must be one of pending, in_progress, completed, on_hold, cancelled")
	ErrInvalidTaskPriority = response.NewBadRequest("Priority must be one of low, medium, high, urgent")
)

const (
	defaultTaskLimit = 10
	maxBulkTasks     = 100
	maxTags          = 20
)

type TaskService struct {
	db       *gorm.DB
	notifier *NotificationService
	activity *ActivityService
	now      func() time.Time
}

func NewTaskService(db *gorm.DB, notifier *NotificationService, activity *ActivityService) *TaskService {
	return &TaskService{db: db, notifier: notifier, activity: activity, now: time.Now}
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if n := utf8.RuneCountInString(title); n < 3 || n > 100 {
		return "", response.NewBadRequest("Title must be between 3 and 100 characters")
	}
	return title, nil
}

func validateDescription(desc string) (string, error) {
	if utf8.RuneCountInString(desc) > 1000 {
		return "", response.NewBadRequest("Description must not exceed 1000 characters")
	}
	return strings.TrimSpace(desc), nil
}

func parseStatus(s string) (models.TaskStatus, error) {
	status := models.TaskStatus(strings.ToLower(s))
	if !status.Valid() {
		return "", ErrInvalidTaskStatus
	}
	return status, nil
}

func parsePriority(s string) (models.TaskPriority, error) {
	priority := models.TaskPriority(strings.ToLower(s))
	if !priority.Valid() {
		return "", ErrInvalidTaskPriority
	}
	return priority, nil
}

func cleanTags(tags []string) ([]string, error) {
	if len(tags) > maxTags {
		return nil, response.NewBadRequest(fmt.Sprintf("A task can have at most %d tags", maxTags))
	}
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out, nil
}

// checkAssignee rejects assignees outside the workspace. nil or "" unassigns.
func checkAssignee(db *gorm.DB, workspaceID string, assigneeID *string) (*string, error) {
	if assigneeID == nil || *assigneeID == "" {
		return nil, nil
	}
	ok, err := isMember(db, workspaceID, *assigneeID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAssigneeNotMember
	}
	id := *assigneeID
	return &id, nil
}

func sameAssignee(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (s *TaskService) find(db *gorm.DB, workspaceID, taskID string) (*models.Task, error) {
	var task models.Task
	if err := db.Where("id = ? AND workspace_id = ?", taskID, workspaceID).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return &task, nil
}

type CreateTaskRequest struct {
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"dueDate"`
	AssigneeID  *string    `json:"assigneeId"`
	Tags        []string   `json:"tags"`
}

func (s *TaskService) Create(ctx context.Context, access *authz.Access, req *CreateTaskRequest) (*models.Task, error) {
	title, err := validateTitle(req.Title)
	if err != nil {
		return nil, err
	}
	desc, err := validateDescription(req.Description)
	if err != nil {
		return nil, err
	}
	status := models.TaskPending
	if req.Status != "" {
		if status, err = parseStatus(req.Status); err != nil {
			return nil, err
		}
	}
	priority := models.PriorityMedium
	if req.Priority != "" {
		if priority, err = parsePriority(req.Priority); err != nil {
			return nil, err
		}
	}
	tags, err := cleanTags(req.Tags)
	if err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	ws := access.Workspace
	assignee, err := checkAssignee(db, ws.ID, req.AssigneeID)
	if err != nil {
		return nil, err
	}

	task := &models.Task{
		WorkspaceID: ws.ID,
		Title:       title,
		Description: desc,
		Priority:    priority,
		DueDate:     req.DueDate,
		AssigneeID:  assignee,
		CreatorID:   access.UserID(),
		Tags:        tags,
	}
	task.ApplyStatus(status, s.now())
	if err := db.Create(task).Error; err != nil {
		return nil, err
	}

	s.record(ctx, ws.ID, task.ID, access, ActionTaskCreated, fmt.Sprintf("%s created task %q", access.User().Name, task.Title), nil)
	if assignee != nil && s.notifier != nil {
		s.notifier.TaskAssigned(ctx, ws, task, access.UserID())
	}
	return s.Get(ctx, ws.ID, task.ID)
}

func (s *TaskService) record(ctx context.Context, workspaceID, taskID string, access *authz.Access, action, message string, extra interface{}) {
	if s.activity == nil {
		return
	}
	id := taskID
	s.activity.Record(ctx, workspaceID, &id, access.UserID(), action, message, extra)
}

// Get returns a task with its assignee, creator and comments.
func (s *TaskService) Get(ctx context.Context, workspaceID, taskID string) (*models.Task, error) {
	var task models.Task
	err := s.db.WithContext(ctx).
		Preload("Assignee").
		Preload("Creator").
		Preload("Comments", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Comments.User").
		Where("id = ? AND workspace_id = ?", taskID, workspaceID).
		First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return &task, nil
}

type UpdateTaskRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Status      *string    `json:"status"`
	Priority    *string    `json:"priority"`
	DueDate     *time.Time `json:"dueDate"`
	// AssigneeID set to "" unassigns the task.
	AssigneeID *string   `json:"assigneeId"`
	Tags       *[]string `json:"tags"`
}

// taskChange is what an update did, for activity and notifications.
type taskChange struct {
	previousStatus models.TaskStatus
	statusChanged  bool
	newAssignee    bool
}

func (s *TaskService) apply(db *gorm.DB, task *models.Task, req *UpdateTaskRequest) (*taskChange, error) {
	change := &taskChange{previousStatus: task.Status}

	if req.Title != nil {
		title, err := validateTitle(*req.Title)
		if err != nil {
			return nil, err
		}
		task.Title = title
	}
	if req.Description != nil {
		desc, err := validateDescription(*req.Description)
		if err != nil {
			return nil, err
		}
		task.Description = desc
	}
	if req.Priority != nil {
		priority, err := parsePriority(*req.Priority)
		if err != nil {
			return nil, err
		}
		task.Priority = priority
	}
	if req.DueDate != nil {
		task.DueDate = req.DueDate
	}
	if req.Tags != nil {
		tags, err := cleanTags(*req.Tags)
		if err != nil {
			return nil, err
		}
		task.Tags = tags
	}
	if req.AssigneeID != nil {
		assignee, err := checkAssignee(db, task.WorkspaceID, req.AssigneeID)
		if err != nil {
			return nil, err
		}
		change.newAssignee = assignee != nil && !sameAssignee(task.AssigneeID, assignee)
		task.AssigneeID = assignee
	}
	if req.Status != nil {
		status, err := parseStatus(*req.Status)
		if err != nil {
			return nil, err
		}
		change.statusChanged = status != task.Status
		task.ApplyStatus(status, s.now())
	}
	return change, nil
}

func (s *TaskService) afterUpdate(ctx context.Context, access *authz.Access, task *models.Task, change *taskChange) {
	actor := access.User().Name
	if change.statusChanged {
		s.record(ctx, task.WorkspaceID, task.ID, access, ActionTaskStatus,
			fmt.Sprintf("%s changed status from %s to %s", actor, change.previousStatus, task.Status),
			map[string]string{"from": string(change.previousStatus), "to": string(task.Status)})
		if s.notifier != nil {
			s.notifier.TaskStatusUpdated(ctx, access.Workspace, task, change.previousStatus, access.UserID())
		}
	}
	if change.newAssignee {
		s.record(ctx, task.WorkspaceID, task.ID, access, ActionTaskAssigned,
			fmt.Sprintf("%s reassigned the task", actor),
			map[string]string{"assignee_id": *task.AssigneeID})
		if s.notifier != nil {
			s.notifier.TaskAssigned(ctx, access.Workspace, task, access.UserID())
		}
	}
	if !change.statusChanged && !change.newAssignee {
		s.record(ctx, task.WorkspaceID, task.ID, access, ActionTaskUpdated,
			fmt.Sprintf("%s updated the task", actor), nil)
	}
}

// Update applies a partial update. Concurrent updates to one task are
// last-write-wins.
func (s *TaskService) Update(ctx context.Context, access *authz.Access, taskID string, req *UpdateTaskRequest) (*models.Task, error) {
	db := s.db.WithContext(ctx)
	task, err := s.find(db, access.Workspace.ID, taskID)
	if err != nil {
		return nil, err
	}
	change, err := s.apply(db, task, req)
	if err != nil {
		return nil, err
	}
	if err := db.Save(task).Error; err != nil {
		return nil, err
	}

	s.afterUpdate(ctx, access, task, change)
	return s.Get(ctx, access.Workspace.ID, task.ID)
}

func (s *TaskService) Delete(ctx context.Context, access *authz.Access, taskID string) error {
	var title string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := s.find(tx, access.Workspace.ID, taskID)
		if err != nil {
			return err
		}
		title = task.Title
		if err := tx.Where("task_id = ?", task.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(task).Error
	})
	if err != nil {
		return err
	}

	s.record(ctx, access.Workspace.ID, taskID, access, ActionTaskDeleted,
		fmt.Sprintf("%s deleted task %q", access.User().Name, title), nil)
	return nil
}

var taskSortColumns = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"dueDate":   "due_date",
	"priority":  "priority",
	"status":    "status",
	"title":     "title",
}

type TaskListRequest struct {
	Pagination
	Status      string `form:"status"`
	Priority    string `form:"priority"`
	AssigneeID  string `form:"assignee"`
	Q           string `form:"q"`
	CreatedFrom string `form:"from"`
	CreatedTo   string `form:"to"`
	SortBy      string `form:"sortBy"`
	Order       string `form:"order"`
}

type TaskListResponse struct {
	Tasks      []models.Task `json:"tasks"`
	Pagination PageInfo      `json:"pagination"`
}

func parseDateParam(name, value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, response.NewBadRequest(fmt.Sprintf("%s must be a date (YYYY-MM-DD)", name))
}

func (s *TaskService) filter(db *gorm.DB, workspaceID string, req *TaskListRequest) (*gorm.DB, error) {
	q := db.Model(&models.Task{}).Where("workspace_id = ?", workspaceID)

	if req.Status != "" {
		status, err := parseStatus(req.Status)
		if err != nil {
			return nil, err
		}
		q = q.Where("status = ?", status)
	}
	if req.Priority != "" {
		priority, err := parsePriority(req.Priority)
		if err != nil {
			return nil, err
		}
		q = q.Where("priority = ?", priority)
	}
	if req.AssigneeID != "" {
		q = q.Where("assignee_id = ?", req.AssigneeID)
	}
	if term := strings.TrimSpace(req.Q); term != "" {
		if utf8.RuneCountInString(term) < 2 {
			return nil, response.NewBadRequest("Search query must be at least 2 characters")
		}
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("(LOWER(title) LIKE ? OR LOWER(description) LIKE ?)", like, like)
	}
	if req.CreatedFrom != "" {
		from, err := parseDateParam("from", req.CreatedFrom)
		if err != nil {
			return nil, err
		}
		q = q.Where("created_at >= ?", from)
	}
	if req.CreatedTo != "" {
		to, err := parseDateParam("to", req.CreatedTo)
		if err != nil {
			return nil, err
		}
		if len(req.CreatedTo) == len("2006-01-02") {
			to = to.AddDate(0, 0, 1)
		}
		q = q.Where("created_at < ?", to)
	}
	return q, nil
}

func orderClause(sortBy, order string) (string, error) {
	column := "created_at"
	if sortBy != "" {
		c, ok := taskSortColumns[sortBy]
		if !ok {
			return "", response.NewBadRequest("Unsupported sort field")
		}
		column = c
	}
	switch strings.ToLower(order) {
	case "", "desc":
		return column + " DESC", nil
	case "asc":
		return column + " ASC", nil
	}
	return "", response.NewBadRequest("Order must be asc or desc")
}

func (s *TaskService) List(ctx context.Context, workspaceID string, req *TaskListRequest) (*TaskListResponse, error) {
	if err := req.normalize(defaultTaskLimit); err != nil {
		return nil, err
	}
	order, err := orderClause(req.SortBy, req.Order)
	if err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	q, err := s.filter(db, workspaceID, req)
	if err != nil {
		return nil, err
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, err
	}

	tasks := make([]models.Task, 0)
	if err := q.Preload("Assignee").Preload("Creator").
		Order(order).
		Offset(req.offset()).
		Limit(req.Limit).
		Find(&tasks).Error; err != nil {
		return nil, err
	}

	return &TaskListResponse{Tasks: tasks, Pagination: newPageInfo(req.Pagination, total)}, nil
}

// MyTasks lists the tasks assigned to userID in the workspace.
func (s *TaskService) MyTasks(ctx context.Context, workspaceID, userID string, req *TaskListRequest) (*TaskListResponse, error) {
	req.AssigneeID = userID
	return s.List(ctx, workspaceID, req)
}

type TaskStats struct {
	Total          int64   `json:"total"`
	Pending        int64   `json:"pending"`
	InProgress     int64   `json:"in_progress"`
	Completed      int64   `json:"completed"`
	OnHold         int64   `json:"on_hold"`
	Cancelled      int64   `json:"cancelled"`
	Overdue        int64   `json:"overdue"`
	CompletionRate float64 `json:"completion_rate"`
}

// computeTaskStats counts tasks by status. A non-empty assigneeID narrows
// the counts to that user.
func computeTaskStats(db *gorm.DB, workspaceID, assigneeID string, now time.Time) (*TaskStats, error) {
	scope := func() *gorm.DB {
		q := db.Model(&models.Task{}).Where("workspace_id = ?", workspaceID)
		if assigneeID != "" {
			q = q.Where("assignee_id = ?", assigneeID)
		}
		return q
	}

	var rows []struct {
		Status models.TaskStatus
		Count  int64
	}
	if err := scope().Select("status, COUNT(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}

	stats := &TaskStats{}
	for _, r := range rows {
		stats.Total += r.Count
		switch r.Status {
		case models.TaskPending:
			stats.Pending = r.Count
		case models.TaskInProgress:
			stats.InProgress = r.Count
		case models.TaskCompleted:
			stats.Completed = r.Count
		case models.TaskOnHold:
			stats.OnHold = r.Count
		case models.TaskCancelled:
			stats.Cancelled = r.Count
		}
	}

	if err := scope().
		Where("due_date IS NOT NULL AND due_date < ?", now).
		Where("status NOT IN ?", []models.TaskStatus{models.TaskCompleted, models.TaskCancelled}).
		Count(&stats.Overdue).Error; err != nil {
		return nil, err
	}

	if stats.Total > 0 {
		rate := float64(stats.Completed) / float64(stats.Total) * 100
		stats.CompletionRate = math.Round(rate*100) / 100
	}
	return stats, nil
}

func (s *TaskService) Stats(ctx context.Context, workspaceID string) (*TaskStats, error) {
	return computeTaskStats(s.db.WithContext(ctx), workspaceID, "", s.now())
}

type BulkTaskUpdate struct {
	Status     *string `json:"status"`
	Priority   *string `json:"priority"`
	AssigneeID *string `json:"assigneeId"`
}

type BulkUpdateRequest struct {
	TaskIDs []string       `json:"taskIds" binding:"required"`
	Update  BulkTaskUpdate `json:"update"`
}

type BulkUpdateResult struct {
	Updated int `json:"updated"`
}

// BulkUpdate applies one change to many tasks atomically. Every id must
// belong to the workspace.
func (s *TaskService) BulkUpdate(ctx context.Context, access *authz.Access, req *BulkUpdateRequest) (*BulkUpdateResult, error) {
	if len(req.TaskIDs) == 0 || len(req.TaskIDs) > maxBulkTasks {
		return nil, response.NewBadRequest(fmt.Sprintf("taskIds must contain between 1 and %d ids", maxBulkTasks))
	}
	if req.Update.Status == nil && req.Update.Priority == nil && req.Update.AssigneeID == nil {
		return nil, response.NewBadRequest("Nothing to update")
	}
	update := &UpdateTaskRequest{
		Status:     req.Update.Status,
		Priority:   req.Update.Priority,
		AssigneeID: req.Update.AssigneeID,
	}

	var tasks []models.Task
	changes := make([]*taskChange, 0, len(req.TaskIDs))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("workspace_id = ? AND id IN ?", access.Workspace.ID, req.TaskIDs).Find(&tasks).Error; err != nil {
			return err
		}
		if len(tasks) != len(uniqueStrings(req.TaskIDs)) {
			return response.NewNotFound("One or more tasks were not found in this workspace")
		}
		for i := range tasks {
			change, err := s.apply(tx, &tasks[i], update)
			if err != nil {
				return err
			}
			if err := tx.Save(&tasks[i]).Error; err != nil {
				return err
			}
			changes = append(changes, change)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := range tasks {
		s.afterUpdate(ctx, access, &tasks[i], changes[i])
	}
	return &BulkUpdateResult{Updated: len(tasks)}, nil
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

type AddCommentRequest struct {
	Content string `json:"content" binding:"required"`
}

func (s *TaskService) AddComment(ctx context.Context, access *authz.Access, taskID string, req *AddCommentRequest) (*models.Comment, error) {
	content := strings.TrimSpace(req.Content)
	if n := utf8.RuneCountInString(content); n < 1 || n > 500 {
		return nil, response.NewBadRequest("Comment must be between 1 and 500 characters")
	}

	db := s.db.WithContext(ctx)
	task, err := s.find(db, access.Workspace.ID, taskID)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{TaskID: task.ID, UserID: access.UserID(), Content: content}
	if err := db.Create(comment).Error; err != nil {
		return nil, err
	}
	comment.User = access.User()

	s.record(ctx, task.WorkspaceID, task.ID, access, ActionCommentAdded,
		fmt.Sprintf("%s commented on the task", access.User().Name),
		map[string]string{"comment_id": comment.ID})
	if s.notifier != nil {
		s.notifier.TaskCommentAdded(ctx, access.Workspace, task, comment, access.User())
	}
	return comment, nil
}

// Activity returns the history of a task that still exists.
func (s *TaskService) Activity(ctx context.Context, workspaceID, taskID string) ([]models.ActivityLog, error) {
	if _, err := s.find(s.db.WithContext(ctx), workspaceID, taskID); err != nil {
		return nil, err
	}
	return s.activity.ListForTask(ctx, workspaceID, taskID)
}
