package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/taskhive/backend/internal/models"
	"github.com/taskhive/backend/pkg/response"
)

// AdminService backs the platform super admin endpoints.
type AdminService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewAdminService(db *gorm.DB) *AdminService {
	return &AdminService{db: db, now: time.Now}
}

type AdminListRequest struct {
	Pagination
	Search string `form:"search"`
	Status string `form:"status"`
}

type AdminWorkspace struct {
	models.Workspace
	MemberCount int64 `json:"member_count"`
	TaskCount   int64 `json:"task_count"`
}

type AdminWorkspaceList struct {
	Workspaces []AdminWorkspace `json:"workspaces"`
	Pagination PageInfo         `json:"pagination"`
}

func (s *AdminService) ListWorkspaces(ctx context.Context, req *AdminListRequest) (*AdminWorkspaceList, error) {
	if err := req.normalize(20); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	q := db.Model(&models.Workspace{})
	if term := strings.TrimSpace(req.Search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(slug) LIKE ?", like, like)
	}
	if req.Status != "" {
		status := models.SubscriptionStatus(req.Status)
		if !status.Valid() {
			return nil, response.NewBadRequest("Unknown subscription status")
		}
		q = q.Where("subscription_status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, err
	}
	var workspaces []models.Workspace
	if err := q.Preload("Owner").Order("created_at DESC").
		Offset(req.offset()).Limit(req.Limit).
		Find(&workspaces).Error; err != nil {
		return nil, err
	}

	out := make([]AdminWorkspace, 0, len(workspaces))
	for _, ws := range workspaces {
		item := AdminWorkspace{Workspace: ws}
		if err := db.Model(&models.WorkspaceMember{}).Where("workspace_id = ?", ws.ID).Count(&item.MemberCount).Error; err != nil {
			return nil, err
		}
		if err := db.Model(&models.Task{}).Where("workspace_id = ?", ws.ID).Count(&item.TaskCount).Error; err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return &AdminWorkspaceList{Workspaces: out, Pagination: newPageInfo(req.Pagination, total)}, nil
}

type AdminUserList struct {
	Users      []models.User `json:"users"`
	Pagination PageInfo      `json:"pagination"`
}

func (s *AdminService) ListUsers(ctx context.Context, req *AdminListRequest) (*AdminUserList, error) {
	if err := req.normalize(20); err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).Model(&models.User{})
	if term := strings.TrimSpace(req.Search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", like, like)
	}
	switch req.Status {
	case "":
	case "active":
		q = q.Where("is_active = ?", true)
	case "inactive":
		q = q.Where("is_active = ?", false)
	default:
		return nil, response.NewBadRequest("Status must be active or inactive")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, err
	}
	users := make([]models.User, 0)
	if err := q.Order("created_at DESC").Offset(req.offset()).Limit(req.Limit).Find(&users).Error; err != nil {
		return nil, err
	}
	return &AdminUserList{Users: users, Pagination: newPageInfo(req.Pagination, total)}, nil
}

type PlatformStats struct {
	Users            int64                                `json:"users"`
	ActiveUsers      int64                                `json:"active_users"`
	Workspaces       int64                                `json:"workspaces"`
	BySubscription   map[models.SubscriptionStatus]int64 `json:"by_subscription"`
	Tasks            int64                                `json:"tasks"`
	PaidRevenue      int64                                `json:"paid_revenue"`
	NewUsersLastWeek int64                                `json:"new_users_last_week"`
}

func (s *AdminService) Stats(ctx context.Context) (*PlatformStats, error) {
	db := s.db.WithContext(ctx)
	stats := &PlatformStats{BySubscription: map[models.SubscriptionStatus]int64{}}

	counts := []struct {
		model interface{}
		where string
		args  []interface{}
		dest  *int64
	}{
		{&models.User{}, "", nil, &stats.Users},
		{&models.User{}, "is_active = ?", []interface{}{true}, &stats.ActiveUsers},
		{&models.User{}, "created_at >= ?", []interface{}{s.now().AddDate(0, 0, -7)}, &stats.NewUsersLastWeek},
		{&models.Workspace{}, "", nil, &stats.Workspaces},
		{&models.Task{}, "", nil, &stats.Tasks},
	}
	for _, c := range counts {
		q := db.Model(c.model)
		if c.where != "" {
			q = q.Where(c.where, c.args...)
		}
		if err := q.Count(c.dest).Error; err != nil {
			return nil, err
		}
	}

	var rows []struct {
		SubscriptionStatus models.SubscriptionStatus
		Count              int64
	}
	if err := db.Model(&models.Workspace{}).
		Select("subscription_status, COUNT(*) AS count").
		Group("subscription_status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		stats.BySubscription[r.SubscriptionStatus] = r.Count
	}

	if err := db.Model(&models.SubscriptionPayment{}).
		Where("status = ?", models.PaymentPaid).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&stats.PaidRevenue).Error; err != nil {
		return nil, err
	}
	return stats, nil
}

type PatchWorkspaceRequest struct {
	SubscriptionStatus *string    `json:"subscription_status"`
	SubscriptionPlan   *string    `json:"subscription_plan"`
	MaxMembers         *int       `json:"max_members"`
	TrialEndsAt        *time.Time `json:"trial_ends_at"`
	IsActive           *bool      `json:"is_active"`
}

// PatchWorkspace lets a super admin override subscription fields directly.
func (s *AdminService) PatchWorkspace(ctx context.Context, id string, req *PatchWorkspaceRequest) (*models.Workspace, error) {
	updates := map[string]interface{}{}
	if req.SubscriptionStatus != nil {
		status := models.SubscriptionStatus(*req.SubscriptionStatus)
		if !status.Valid() {
			return nil, response.NewBadRequest("Unknown subscription status")
		}
		updates["subscription_status"] = status
	}
	if req.SubscriptionPlan != nil {
		plan := strings.ToUpper(strings.TrimSpace(*req.SubscriptionPlan))
		if plan == "" {
			return nil, response.NewBadRequest("Plan must not be empty")
		}
		updates["subscription_plan"] = plan
	}
	if req.MaxMembers != nil {
		if *req.MaxMembers < 1 {
			return nil, response.NewBadRequest("max_members must be at least 1")
		}
		updates["max_members"] = *req.MaxMembers
	}
	if req.TrialEndsAt != nil {
		updates["trial_ends_at"] = *req.TrialEndsAt
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	db := s.db.WithContext(ctx)
	var ws models.Workspace
	if err := db.First(&ws, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWorkspaceNotFound
		}
		return nil, err
	}
	if len(updates) > 0 {
		if err := db.Model(&ws).Updates(updates).Error; err != nil {
			return nil, err
		}
		if err := db.First(&ws, "id = ?", id).Error; err != nil {
			return nil, err
		}
	}
	return &ws, nil
}

type PatchUserRequest struct {
	IsActive *bool   `json:"is_active"`
	Role     *string `json:"role"`
}

// PatchUser activates, deactivates or changes the global role of a user.
// A super admin cannot demote or deactivate themselves.
func (s *AdminService) PatchUser(ctx context.Context, actorID, id string, req *PatchUserRequest) (*models.User, error) {
	updates := map[string]interface{}{}
	if req.IsActive != nil {
		if !*req.IsActive && id == actorID {
			return nil, response.NewBadRequest("You cannot deactivate your own account")
		}
		updates["is_active"] = *req.IsActive
	}
	if req.Role != nil {
		switch *req.Role {
		case models.GlobalRoleUser, models.GlobalRoleSuperAdmin:
		default:
			return nil, response.NewBadRequest("Role must be user or super_admin")
		}
		if *req.Role != models.GlobalRoleSuperAdmin && id == actorID {
			return nil, response.NewBadRequest("You cannot remove your own super admin role")
		}
		updates["role"] = *req.Role
	}

	db := s.db.WithContext(ctx)
	var user models.User
	if err := db.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("User not found")
		}
		return nil, err
	}
	if len(updates) > 0 {
		if err := db.Model(&user).Updates(updates).Error; err != nil {
			return nil, err
		}
		if err := db.First(&user, "id = ?", id).Error; err != nil {
			return nil, err
		}
	}
	return &user, nil
}
