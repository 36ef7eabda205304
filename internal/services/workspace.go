package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/taskhive/backend/internal/authz"
	"github.com/taskhive/backend/internal/config"
	"github.com/taskhive/backend/internal/models"
	"github.com/taskhive/backend/internal/utils"
	"github.com/taskhive/backend/pkg/response"
)

var (
	ErrCannotRemoveOwner = response.NewForbidden(response.KindCannotRemoveOwner, "The workspace owner cannot be removed or demoted.")
	ErrOwnerRoleAssign   = response.NewBadRequest("The owner role cannot be assigned.")
	ErrMemberLimit       = response.NewBadRequest("Workspace member limit reached. Please upgrade your plan.")
	ErrAlreadyMember     = response.NewConflict("User is already a member of this workspace.")
	ErrMemberNotFound    = response.NewNotFound("Member not found in this workspace.")
	ErrWorkspaceNotFound = response.NewNotFound("Workspace not found.")
)

const maxSlugAttempts = 20

type WorkspaceService struct {
	db       *gorm.DB
	cfg      config.SubscriptionConfig
	notifier *NotificationService
	activity *ActivityService
	now      func() time.Time
}

func NewWorkspaceService(db *gorm.DB, cfg config.SubscriptionConfig, notifier *NotificationService, activity *ActivityService) *WorkspaceService {
	return &WorkspaceService{db: db, cfg: cfg, notifier: notifier, activity: activity, now: time.Now}
}

// WorkspaceSummary is a workspace as seen by one of its members.
type WorkspaceSummary struct {
	ID                 string                    `json:"id"`
	Name               string                    `json:"name"`
	Slug               string                    `json:"slug"`
	Role               models.Role               `json:"role"`
	SubscriptionStatus models.SubscriptionStatus `json:"subscription_status"`
	SubscriptionPlan   string                    `json:"subscription_plan"`
	TrialEndsAt        *time.Time                `json:"trial_ends_at"`
}

func summarize(memberships []models.WorkspaceMember) []WorkspaceSummary {
	out := make([]WorkspaceSummary, 0, len(memberships))
	for _, m := range memberships {
		if m.Workspace == nil {
			continue
		}
		out = append(out, WorkspaceSummary{
			ID:                 m.Workspace.ID,
			Name:               m.Workspace.Name,
			Slug:               m.Workspace.Slug,
			Role:               m.Role,
			SubscriptionStatus: m.Workspace.SubscriptionStatus,
			SubscriptionPlan:   m.Workspace.SubscriptionPlan,
			TrialEndsAt:        m.Workspace.TrialEndsAt,
		})
	}
	return out
}

func validateWorkspaceName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n < 3 || n > 50 {
		return "", response.NewBadRequest("Workspace name must be between 3 and 50 characters")
	}
	return name, nil
}

func parseAssignableRole(s string) (models.Role, error) {
	if s == "" {
		return models.RoleMember, nil
	}
	role, err := models.ParseRole(strings.ToLower(s))
	if err != nil {
		return "", response.NewBadRequest("Role must be one of member or admin")
	}
	if role == models.RoleOwner {
		return "", ErrOwnerRoleAssign
	}
	return role, nil
}

// uniqueSlug derives a slug from name, adding a numeric suffix on clashes.
func uniqueSlug(tx *gorm.DB, name string) (string, error) {
	base := utils.Slugify(name)
	if base == "" {
		base = "workspace"
	}

	for i := 0; i < maxSlugAttempts; i++ {
		candidate := base
		if i > 0 {
			candidate = fmt.Sprintf("%s-%d", base, i+1)
		}
		var count int64
		if err := tx.Model(&models.Workspace{}).Where("slug = ?", candidate).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return candidate, nil
		}
	}
	return base + "-" + uuid.NewString()[:8], nil
}

type CreateWorkspaceRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// createInTx creates a trial workspace owned by owner, with the owner membership.
func (s *WorkspaceService) createInTx(tx *gorm.DB, owner *models.User, req *CreateWorkspaceRequest) (*models.Workspace, error) {
	name, err := validateWorkspaceName(req.Name)
	if err != nil {
		return nil, err
	}
	slug, err := uniqueSlug(tx, name)
	if err != nil {
		return nil, err
	}

	trialEnds := s.now().AddDate(0, 0, s.cfg.TrialDays)
	ws := &models.Workspace{
		Name:               name,
		Slug:               slug,
		Description:        strings.TrimSpace(req.Description),
		OwnerID:            owner.ID,
		Settings:           map[string]any{},
		SubscriptionStatus: models.SubscriptionTrial,
		SubscriptionPlan:   models.PlanFree,
		MaxMembers:         s.cfg.DefaultMaxMembers,
		TrialEndsAt:        &trialEnds,
		IsActive:           true,
	}
	if err := tx.Create(ws).Error; err != nil {
		return nil, err
	}
	if err := tx.Create(&models.WorkspaceMember{
		WorkspaceID: ws.ID,
		UserID:      owner.ID,
		Role:        models.RoleOwner,
	}).Error; err != nil {
		return nil, err
	}
	return ws, nil
}

func (s *WorkspaceService) Create(ctx context.Context, owner *models.User, req *CreateWorkspaceRequest) (*models.Workspace, error) {
	var ws *models.Workspace
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		ws, err = s.createInTx(tx, owner, req)
		return err
	})
	return ws, err
}

func (s *WorkspaceService) ListForUser(ctx context.Context, userID string) ([]WorkspaceSummary, error) {
	var memberships []models.WorkspaceMember
	if err := s.db.WithContext(ctx).Preload("Workspace").
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&memberships).Error; err != nil {
		return nil, err
	}
	return summarize(memberships), nil
}

type WorkspaceDetail struct {
	*models.Workspace
	Role               models.Role `json:"role"`
	MemberCount        int64       `json:"member_count"`
	SubscriptionActive bool        `json:"subscription_active"`
}

func (s *WorkspaceService) Get(ctx context.Context, access *authz.Access) (*WorkspaceDetail, error) {
	var ws models.Workspace
	if err := s.db.WithContext(ctx).Preload("Owner").First(&ws, "id = ?", access.Workspace.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWorkspaceNotFound
		}
		return nil, err
	}
	count, err := s.memberCount(s.db.WithContext(ctx), ws.ID)
	if err != nil {
		return nil, err
	}
	return &WorkspaceDetail{
		Workspace:          &ws,
		Role:               access.Role(),
		MemberCount:        count,
		SubscriptionActive: ws.IsActive && ws.SubscriptionActiveAt(s.now()),
	}, nil
}

type UpdateWorkspaceRequest struct {
	Name        *string        `json:"name"`
	Description *string        `json:"description"`
	Settings    map[string]any `json:"settings"`
}

// Update changes descriptive fields only; subscription fields move through
// SubscriptionService and the admin API.
func (s *WorkspaceService) Update(ctx context.Context, workspaceID string, req *UpdateWorkspaceRequest) (*models.Workspace, error) {
	var ws models.Workspace
	db := s.db.WithContext(ctx)
	if err := db.First(&ws, "id = ?", workspaceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWorkspaceNotFound
		}
		return nil, err
	}

	var columns []string
	if req.Name != nil {
		name, err := validateWorkspaceName(*req.Name)
		if err != nil {
			return nil, err
		}
		ws.Name = name
		columns = append(columns, "name")
	}
	if req.Description != nil {
		if utf8.RuneCountInString(*req.Description) > 500 {
			return nil, response.NewBadRequest("Description must not exceed 500 characters")
		}
		ws.Description = strings.TrimSpace(*req.Description)
		columns = append(columns, "description")
	}
	if req.Settings != nil {
		ws.Settings = req.Settings
		columns = append(columns, "settings")
	}
	if len(columns) == 0 {
		return &ws, nil
	}

	if err := db.Model(&ws).Select(columns).Updates(&ws).Error; err != nil {
		return nil, err
	}
	return &ws, nil
}

// Delete removes the workspace and everything scoped to it.
func (s *WorkspaceService) Delete(ctx context.Context, workspaceID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taskIDs := tx.Model(&models.Task{}).Select("id").Where("workspace_id = ?", workspaceID)
		if err := tx.Where("task_id IN (?)", taskIDs).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		for _, model := range []interface{}{
			&models.Task{},
			&models.Notification{},
			&models.ActivityLog{},
			&models.SubscriptionPayment{},
			&models.WorkspaceMember{},
		} {
			if err := tx.Where("workspace_id = ?", workspaceID).Delete(model).Error; err != nil {
				return err
			}
		}
		result := tx.Delete(&models.Workspace{}, "id = ?", workspaceID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrWorkspaceNotFound
		}
		return nil
	})
}

type MemberView struct {
	UserID   string      `json:"user_id"`
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Role     models.Role `json:"role"`
	IsActive bool        `json:"is_active"`
	JoinedAt time.Time   `json:"joined_at"`
}

func (s *WorkspaceService) ListMembers(ctx context.Context, workspaceID string) ([]MemberView, error) {
	var members []models.WorkspaceMember
	if err := s.db.WithContext(ctx).Preload("User").
		Where("workspace_id = ?", workspaceID).
		Order("created_at ASC").
		Find(&members).Error; err != nil {
		return nil, err
	}

	out := make([]MemberView, 0, len(members))
	for _, m := range members {
		if m.User == nil {
			continue
		}
		out = append(out, MemberView{
			UserID:   m.UserID,
			Name:     m.User.Name,
			Email:    m.User.Email,
			Role:     m.Role,
			IsActive: m.User.IsActive,
			JoinedAt: m.CreatedAt,
		})
	}
	return out, nil
}

func (s *WorkspaceService) memberCount(db *gorm.DB, workspaceID string) (int64, error) {
	var count int64
	err := db.Model(&models.WorkspaceMember{}).Where("workspace_id = ?", workspaceID).Count(&count).Error
	return count, err
}

func isMember(db *gorm.DB, workspaceID, userID string) (bool, error) {
	var count int64
	err := db.Model(&models.WorkspaceMember{}).
		Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		Count(&count).Error
	return count > 0, err
}

// addMemberInTx enforces the member limit and uniqueness, then inserts.
func (s *WorkspaceService) addMemberInTx(tx *gorm.DB, ws *models.Workspace, userID string, role models.Role) (*models.WorkspaceMember, error) {
	already, err := isMember(tx, ws.ID, userID)
	if err != nil {
		return nil, err
	}
	if already {
		return nil, ErrAlreadyMember
	}

	count, err := s.memberCount(tx, ws.ID)
	if err != nil {
		return nil, err
	}
	if !ws.CanAddMembers(count) {
		return nil, ErrMemberLimit
	}

	member := &models.WorkspaceMember{WorkspaceID: ws.ID, UserID: userID, Role: role}
	if err := tx.Create(member).Error; err != nil {
		return nil, err
	}
	return member, nil
}

type AddMemberRequest struct {
	Email string `json:"email" binding:"required,email"`
	Role  string `json:"role"`
}

// AddMember adds an existing account to the workspace by email.
func (s *WorkspaceService) AddMember(ctx context.Context, access *authz.Access, req *AddMemberRequest) (*models.WorkspaceMember, error) {
	role, err := parseAssignableRole(req.Role)
	if err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	var user models.User
	if err := db.Where("email = ?", normalizeEmail(req.Email)).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("No user found with that email address.")
		}
		return nil, err
	}

	var member *models.WorkspaceMember
	if err := db.Transaction(func(tx *gorm.DB) error {
		member, err = s.addMemberInTx(tx, access.Workspace, user.ID, role)
		return err
	}); err != nil {
		return nil, err
	}
	member.User = &user

	s.afterMemberAdded(ctx, access, &user, role)
	return member, nil
}

type RegisterTeamMemberRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
}

// RegisterTeamMember creates a new account and adds it to the workspace.
func (s *WorkspaceService) RegisterTeamMember(ctx context.Context, access *authz.Access, req *RegisterTeamMemberRequest) (*models.WorkspaceMember, error) {
	role, err := parseAssignableRole(req.Role)
	if err != nil {
		return nil, err
	}
	user, err := newUser(req.Name, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	var member *models.WorkspaceMember
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		member, err = s.addMemberInTx(tx, access.Workspace, user.ID, role)
		return err
	}); err != nil {
		return nil, err
	}
	member.User = user

	s.afterMemberAdded(ctx, access, user, role)
	return member, nil
}

func (s *WorkspaceService) afterMemberAdded(ctx context.Context, access *authz.Access, user *models.User, role models.Role) {
	if s.activity != nil {
		s.activity.Record(ctx, access.Workspace.ID, nil, access.UserID(), ActionMemberAdded,
			fmt.Sprintf("%s added %s as %s", access.User().Name, user.Email, role),
			map[string]string{"user_id": user.ID, "role": string(role)})
	}
	if s.notifier != nil {
		s.notifier.WorkspaceInvitation(ctx, access.Workspace, access.User(), user)
	}
}

func (s *WorkspaceService) findMember(db *gorm.DB, workspaceID, userID string) (*models.WorkspaceMember, error) {
	var member models.WorkspaceMember
	if err := db.Where("workspace_id = ? AND user_id = ?", workspaceID, userID).First(&member).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return &member, nil
}

type UpdateMemberRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// UpdateMemberRole switches a member between member and admin. The owner's
// role is fixed.
func (s *WorkspaceService) UpdateMemberRole(ctx context.Context, workspaceID, userID string, req *UpdateMemberRoleRequest) (*models.WorkspaceMember, error) {
	db := s.db.WithContext(ctx)
	member, err := s.findMember(db, workspaceID, userID)
	if err != nil {
		return nil, err
	}
	if member.Role == models.RoleOwner {
		return nil, ErrCannotRemoveOwner
	}
	role, err := parseAssignableRole(req.Role)
	if err != nil {
		return nil, err
	}

	if err := db.Model(member).Update("role", role).Error; err != nil {
		return nil, err
	}
	member.Role = role
	return member, nil
}

// RemoveMember deletes a membership and unassigns the user's tasks in the
// workspace. The owner cannot be removed.
func (s *WorkspaceService) RemoveMember(ctx context.Context, access *authz.Access, userID string) error {
	workspaceID := access.Workspace.ID
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		member, err := s.findMember(tx, workspaceID, userID)
		if err != nil {
			return err
		}
		if member.Role == models.RoleOwner {
			return ErrCannotRemoveOwner
		}
		if err := tx.Model(&models.Task{}).
			Where("workspace_id = ? AND assignee_id = ?", workspaceID, userID).
			Update("assignee_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(member).Error
	})
	if err != nil {
		return err
	}

	if s.activity != nil {
		s.activity.Record(ctx, workspaceID, nil, access.UserID(), ActionMemberRemoved,
			fmt.Sprintf("%s removed a member", access.User().Name),
			map[string]string{"user_id": userID})
	}
	return nil
}

type WorkspaceStats struct {
	MemberCount        int64                     `json:"member_count"`
	MaxMembers         int                       `json:"max_members"`
	SubscriptionStatus models.SubscriptionStatus `json:"subscription_status"`
	SubscriptionPlan   string                    `json:"subscription_plan"`
	TrialDaysLeft      int                       `json:"trial_days_left"`
	Tasks              TaskStats                 `json:"tasks"`
}

func (s *WorkspaceService) Stats(ctx context.Context, ws *models.Workspace) (*WorkspaceStats, error) {
	db := s.db.WithContext(ctx)
	count, err := s.memberCount(db, ws.ID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	tasks, err := computeTaskStats(db, ws.ID, "", now)
	if err != nil {
		return nil, err
	}

	stats := &WorkspaceStats{
		MemberCount:        count,
		MaxMembers:         ws.MaxMembers,
		SubscriptionStatus: ws.SubscriptionStatus,
		SubscriptionPlan:   ws.SubscriptionPlan,
		Tasks:              *tasks,
	}
	if ws.SubscriptionStatus == models.SubscriptionTrial && ws.TrialEndsAt != nil && now.Before(*ws.TrialEndsAt) {
		stats.TrialDaysLeft = int(math.Ceil(ws.TrialEndsAt.Sub(now).Hours() / 24))
	}
	return stats, nil
}
