package services

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/taskhive/backend/internal/models"
	"github.com/taskhive/backend/pkg/logger"
	"github.com/taskhive/backend/pkg/response"
)

// NotificationService creates in-app notifications, pushes them to open
// streams and queues the matching email. Delivery problems are logged only.
type NotificationService struct {
	db          *gorm.DB
	mail        MailQueue
	hub         *SSEHub
	frontendURL string
}

func NewNotificationService(db *gorm.DB, mail MailQueue, hub *SSEHub, frontendURL string) *NotificationService {
	return &NotificationService{
		db:          db,
		mail:        mail,
		hub:         hub,
		frontendURL: strings.TrimSuffix(frontendURL, "/"),
	}
}

func (s *NotificationService) taskLink(task *models.Task) string {
	return fmt.Sprintf("%s/workspaces/%s/tasks/%s", s.frontendURL, task.WorkspaceID, task.ID)
}

// recipients loads the distinct users among ids, leaving out the actor.
func (s *NotificationService) recipients(ctx context.Context, actorID string, ids ...string) []models.User {
	seen := map[string]bool{}
	wanted := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || id == actorID || seen[id] {
			continue
		}
		seen[id] = true
		wanted = append(wanted, id)
	}
	if len(wanted) == 0 {
		return nil
	}

	var users []models.User
	if err := s.db.WithContext(ctx).Where("id IN ?", wanted).Find(&users).Error; err != nil {
		logger.Error().Err(err).Msg("[Notification] failed to load recipients")
		return nil
	}
	return users
}

func (s *NotificationService) deliver(ctx context.Context, user *models.User, n *models.Notification, mail *EmailMessage) {
	n.UserID = user.ID
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		logger.Error().Err(err).Str("type", string(n.Type)).Msg("[Notification] failed to store")
	} else if s.hub != nil {
		s.hub.PublishToUser(user.ID, Event{Type: "notification", Data: n})
	}

	if mail != nil {
		mail.To = []string{user.Email}
		s.sendMail(mail)
	}
}

func (s *NotificationService) sendMail(msg *EmailMessage) {
	if s.mail == nil {
		return
	}
	if err := s.mail.Enqueue(msg); err != nil {
		logger.Error().Err(err).Str("subject", msg.Subject).Msg("[Notification] failed to queue email")
	}
}

// TaskAssigned tells the assignee about a task, unless they assigned it themselves.
func (s *NotificationService) TaskAssigned(ctx context.Context, ws *models.Workspace, task *models.Task, actorID string) {
	if task.AssigneeID == nil {
		return
	}
	rows := []emailRow{{"Title", task.Title}, {"Priority", string(task.Priority)}}
	if task.DueDate != nil {
		rows = append(rows, emailRow{"Due Date", task.DueDate.Format("2006-01-02")})
	}

	for _, user := range s.recipients(ctx, actorID, *task.AssigneeID) {
		s.deliver(ctx, &user, &models.Notification{
			WorkspaceID: ws.ID,
			Type:        models.NotificationTaskAssigned,
			Title:       "New Task Assigned",
			Message:     fmt.Sprintf("You have been assigned \"%s\"", task.Title),
			Data:        map[string]any{"task_id": task.ID, "task_title": task.Title},
		}, &EmailMessage{
			Subject: "New Task Assignment",
			HTML: emailBody("New Task Assigned",
				fmt.Sprintf("You have been assigned a new task in workspace \"%s\".", ws.Name),
				rows, "View the task", s.taskLink(task)),
		})
	}
}

// TaskStatusUpdated tells the creator and assignee, except the actor.
func (s *NotificationService) TaskStatusUpdated(ctx context.Context, ws *models.Workspace, task *models.Task, previous models.TaskStatus, actorID string) {
	ids := []string{task.CreatorID}
	if task.AssigneeID != nil {
		ids = append(ids, *task.AssigneeID)
	}

	for _, user := range s.recipients(ctx, actorID, ids...) {
		s.deliver(ctx, &user, &models.Notification{
			WorkspaceID: ws.ID,
			Type:        models.NotificationTaskStatusUpdated,
			Title:       "Task Status Updated",
			Message:     fmt.Sprintf("\"%s\" moved from %s to %s", task.Title, previous, task.Status),
			Data:        map[string]any{"task_id": task.ID, "task_title": task.Title, "previous_status": previous, "new_status": task.Status},
		}, &EmailMessage{
			Subject: "Task Status Updated",
			HTML: emailBody("Task Status Updated",
				fmt.Sprintf("Task status has been updated in workspace \"%s\".", ws.Name),
				[]emailRow{{"Title", task.Title}, {"Previous Status", string(previous)}, {"New Status", string(task.Status)}},
				"View the task", s.taskLink(task)),
		})
	}
}

// TaskCommentAdded tells the creator and assignee, except the comment author.
func (s *NotificationService) TaskCommentAdded(ctx context.Context, ws *models.Workspace, task *models.Task, comment *models.Comment, author *models.User) {
	ids := []string{task.CreatorID}
	if task.AssigneeID != nil {
		ids = append(ids, *task.AssigneeID)
	}

	for _, user := range s.recipients(ctx, author.ID, ids...) {
		s.deliver(ctx, &user, &models.Notification{
			WorkspaceID: ws.ID,
			Type:        models.NotificationTaskCommentAdded,
			Title:       "New Comment",
			Message:     fmt.Sprintf("%s commented on \"%s\"", author.Name, task.Title),
			Data:        map[string]any{"task_id": task.ID, "task_title": task.Title, "comment_id": comment.ID},
		}, &EmailMessage{
			Subject: "New Comment on Task",
			HTML: emailBody("New Comment on Task",
				fmt.Sprintf("A new comment has been added to a task in workspace \"%s\".", ws.Name),
				[]emailRow{{"Title", task.Title}, {"Comment by", author.Name}, {"Comment", comment.Content}},
				"View the task", s.taskLink(task)),
		})
	}
}

// WorkspaceInvitation tells a user they were added to a workspace.
func (s *NotificationService) WorkspaceInvitation(ctx context.Context, ws *models.Workspace, inviter, invitee *models.User) {
	if inviter.ID == invitee.ID {
		return
	}
	s.deliver(ctx, invitee, &models.Notification{
		WorkspaceID: ws.ID,
		Type:        models.NotificationWorkspaceInvitation,
		Title:       "Workspace Invitation",
		Message:     fmt.Sprintf("%s added you to \"%s\"", inviter.Name, ws.Name),
		Data:        map[string]any{"workspace_id": ws.ID, "workspace_name": ws.Name, "invited_by": inviter.ID},
	}, &EmailMessage{
		Subject: "Workspace Invitation",
		HTML: emailBody("Workspace Invitation",
			fmt.Sprintf("You have been invited to join the workspace \"%s\" by %s.", ws.Name, inviter.Name),
			nil, "Open the workspace", fmt.Sprintf("%s/workspaces/%s", s.frontendURL, ws.ID)),
	})
}

// PasswordReset mails a reset link. There is no in-app notification.
func (s *NotificationService) PasswordReset(user *models.User, token string) {
	s.sendMail(&EmailMessage{
		To:      []string{user.Email},
		Subject: "Password Reset Request",
		HTML: emailBody("Password Reset",
			"You requested a password reset. The link below is valid for a limited time.",
			nil, "Reset your password", fmt.Sprintf("%s/reset-password?token=%s", s.frontendURL, token)),
	})
}

type NotificationListRequest struct {
	Pagination
	WorkspaceID string `form:"workspaceId"`
	UnreadOnly  bool   `form:"unread"`
}

type NotificationListResponse struct {
	Items      []models.Notification `json:"notifications"`
	Pagination PageInfo              `json:"pagination"`
}

func (s *NotificationService) List(ctx context.Context, userID string, req *NotificationListRequest) (*NotificationListResponse, error) {
	if err := req.normalize(20); err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userID)
	if req.WorkspaceID != "" {
		query = query.Where("workspace_id = ?", req.WorkspaceID)
	}
	if req.UnreadOnly {
		query = query.Where("is_read = ?", false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	items := []models.Notification{}
	if err := query.Order("created_at DESC").Offset(req.offset()).Limit(req.Limit).Find(&items).Error; err != nil {
		return nil, err
	}

	return &NotificationListResponse{Items: items, Pagination: newPageInfo(req.Pagination, total)}, nil
}

// MarkRead marks the given notifications of userID as read. Ids owned by
// other users are ignored.
func (s *NotificationService) MarkRead(ctx context.Context, userID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, response.NewBadRequest("notificationIds cannot be empty")
	}
	result := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND id IN ?", userID, ids).
		Update("is_read", true)
	return result.RowsAffected, result.Error
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}
