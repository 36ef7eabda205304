package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/taskhive/backend/internal/authz"
	"github.com/taskhive/backend/internal/config"
	"github.com/taskhive/backend/internal/models"
	"github.com/taskhive/backend/internal/utils"
	"github.com/taskhive/backend/pkg/logger"
	"github.com/taskhive/backend/pkg/response"
)

var (
	ErrBadCredentials      = response.NewUnauthorized("Incorrect email or password")
	ErrInvalidRefreshToken = response.NewUnauthorized("Invalid or expired refresh token")
	ErrInvalidResetToken   = response.NewBadRequest("Token is invalid or has expired")
	ErrWrongPassword       = response.NewUnauthorized("Your current password is wrong")
)

type AuthService struct {
	db         *gorm.DB
	tokens     *utils.TokenManager
	jwtConfig  config.JWTConfig
	workspaces *WorkspaceService
	notifier   *NotificationService
	now        func() time.Time
}

func NewAuthService(db *gorm.DB, tokens *utils.TokenManager, jwtCfg config.JWTConfig, workspaces *WorkspaceService, notifier *NotificationService) *AuthService {
	return &AuthService{
		db:         db,
		tokens:     tokens,
		jwtConfig:  jwtCfg,
		workspaces: workspaces,
		notifier:   notifier,
		now:        time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) (string, error) {
	email = normalizeEmail(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", response.NewBadRequest("Please provide a valid email")
	}
	return email, nil
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n < 2 || n > 100 {
		return "", response.NewBadRequest("Name must be between 2 and 100 characters")
	}
	return name, nil
}

// newUser validates input and builds an active platform user with a hashed password.
func newUser(name, email, password string) (*models.User, error) {
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}
	email, err = validateEmail(email)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidatePasswordStrength(password); err != nil {
		return nil, response.NewBadRequest(err.Error())
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}
	return &models.User{
		Email:    email,
		Name:     name,
		Password: hash,
		Role:     models.GlobalRoleUser,
		IsActive: true,
	}, nil
}

// Session is what a client receives after logging in or refreshing.
type Session struct {
	Token            string             `json:"token"`
	ExpiresAt        time.Time          `json:"expires_at"`
	RefreshToken     string             `json:"refresh_token"`
	RefreshExpiresAt time.Time          `json:"refresh_expires_at"`
	User             *models.User       `json:"user"`
	Workspaces       []WorkspaceSummary `json:"workspaces"`
}

type RegisterAdminRequest struct {
	Name                 string `json:"name" binding:"required"`
	Email                string `json:"email" binding:"required"`
	Password             string `json:"password" binding:"required"`
	WorkspaceName        string `json:"workspaceName" binding:"required"`
	WorkspaceDescription string `json:"workspaceDescription"`
}

// RegisterAdmin creates an account together with its first workspace, which
// the account owns.
func (s *AuthService) RegisterAdmin(ctx context.Context, req *RegisterAdminRequest, clientIP, userAgent string) (*Session, error) {
	user, err := newUser(req.Name, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	var ws *models.Workspace
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("email = ?", user.Email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return response.NewConflict("Email already registered")
		}
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		ws, err = s.workspaces.createInTx(tx, user, &CreateWorkspaceRequest{
			Name:        req.WorkspaceName,
			Description: req.WorkspaceDescription,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Info().Str("user_id", user.ID).Str("workspace_id", ws.ID).Msg("Workspace admin registered")
	return s.issueSession(ctx, user, []models.WorkspaceMember{{
		WorkspaceID: ws.ID,
		Workspace:   ws,
		UserID:      user.ID,
		Role:        models.RoleOwner,
	}}, clientIP, userAgent)
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *AuthService) Login(ctx context.Context, req *LoginRequest, clientIP, userAgent string) (*Session, error) {
	db := s.db.WithContext(ctx)
	var user models.User
	if err := db.Preload("Memberships.Workspace").
		Where("email = ?", normalizeEmail(req.Email)).
		First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBadCredentials
		}
		return nil, err
	}
	if !utils.CheckPassword(req.Password, user.Password) {
		return nil, ErrBadCredentials
	}
	if !user.IsActive {
		return nil, authz.ErrAccountInactive
	}

	now := s.now()
	if err := db.Model(&user).UpdateColumn("last_login", now).Error; err != nil {
		logger.Warn().Err(err).Str("user_id", user.ID).Msg("Failed to update last login")
	}
	user.LastLogin = &now

	return s.issueSession(ctx, &user, user.Memberships, clientIP, userAgent)
}

func (s *AuthService) issueSession(ctx context.Context, user *models.User, memberships []models.WorkspaceMember, clientIP, userAgent string) (*Session, error) {
	token, expiresAt, err := s.tokens.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	refresh, record, err := s.newRefreshToken(user.ID, clientIP, userAgent)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, err
	}

	return &Session{
		Token:            token,
		ExpiresAt:        expiresAt,
		RefreshToken:     refresh,
		RefreshExpiresAt: record.ExpiresAt,
		User:             user,
		Workspaces:       summarize(memberships),
	}, nil
}

func (s *AuthService) newRefreshToken(userID, clientIP, userAgent string) (string, *models.RefreshToken, error) {
	token, hash, err := generateRefreshToken()
	if err != nil {
		return "", nil, err
	}
	return token, &models.RefreshToken{
		UserID:      userID,
		TokenHash:   hash,
		ExpiresAt:   s.now().Add(time.Duration(s.jwtConfig.RefreshExpireHour) * time.Hour),
		CreatedByIP: clientIP,
		UserAgent:   userAgent,
	}, nil
}

// Refresh exchanges a refresh token for a new session. The presented token
// is revoked and linked to its replacement.
func (s *AuthService) Refresh(ctx context.Context, refreshToken, clientIP, userAgent string) (*Session, error) {
	if refreshToken == "" {
		return nil, ErrInvalidRefreshToken
	}
	db := s.db.WithContext(ctx)

	var stored models.RefreshToken
	if err := db.Where("token_hash = ?", hashRefreshToken(refreshToken)).First(&stored).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}
	now := s.now()
	if !stored.UsableAt(now) {
		return nil, ErrInvalidRefreshToken
	}

	identity, err := s.LoadIdentity(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}
	if !identity.User.IsActive {
		return nil, authz.ErrAccountInactive
	}

	token, expiresAt, err := s.tokens.GenerateAccessToken(identity.User.ID, identity.User.Email)
	if err != nil {
		return nil, err
	}
	refresh, record, err := s.newRefreshToken(identity.User.ID, clientIP, userAgent)
	if err != nil {
		return nil, err
	}

	if err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(record).Error; err != nil {
			return err
		}
		result := tx.Model(&models.RefreshToken{}).
			Where("id = ? AND revoked_at IS NULL", stored.ID).
			Updates(map[string]interface{}{
				"revoked_at":           now,
				"replaced_by_token_id": record.ID,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrInvalidRefreshToken
		}
		return nil
	}); err != nil {
		return nil, err
	}

	return &Session{
		Token:            token,
		ExpiresAt:        expiresAt,
		RefreshToken:     refresh,
		RefreshExpiresAt: record.ExpiresAt,
		User:             identity.User,
		Workspaces:       summarize(identity.Memberships),
	}, nil
}

// Logout revokes a refresh token. Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("token_hash = ? AND revoked_at IS NULL", hashRefreshToken(refreshToken)).
		Update("revoked_at", s.now()).Error
}

func (s *AuthService) revokeAll(db *gorm.DB, userID string) error {
	return db.Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", s.now()).Error
}

func generateRefreshToken() (token string, tokenHash string, err error) {
	randomBytes := make([]byte, 32)
	if _, err = rand.Read(randomBytes); err != nil {
		return "", "", err
	}
	token = hex.EncodeToString(randomBytes)
	return token, hashRefreshToken(token), nil
}

func hashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// LoadIdentity loads a user with every membership and its workspace.
func (s *AuthService) LoadIdentity(ctx context.Context, userID string) (*authz.Identity, error) {
	var user models.User
	if err := s.db.WithContext(ctx).
		Preload("Memberships.Workspace").
		First(&user, "id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &authz.Identity{User: &user, Memberships: user.Memberships}, nil
}

type Profile struct {
	User       *models.User       `json:"user"`
	Workspaces []WorkspaceSummary `json:"workspaces"`
}

// Profile is built from the already-verified identity without extra queries.
func (s *AuthService) Profile(identity *authz.Identity) *Profile {
	return &Profile{User: identity.User, Workspaces: summarize(identity.Memberships)}
}

type UpdateProfileRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID string, req *UpdateProfileRequest) (*models.User, error) {
	updates := map[string]interface{}{}
	if req.Name != nil {
		name, err := validateName(*req.Name)
		if err != nil {
			return nil, err
		}
		updates["name"] = name
	}
	if req.Email != nil {
		email, err := validateEmail(*req.Email)
		if err != nil {
			return nil, err
		}
		updates["email"] = email
	}

	db := s.db.WithContext(ctx)
	if len(updates) > 0 {
		if err := db.Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	var user models.User
	if err := db.First(&user, "id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

// ChangePassword replaces the password and revokes every refresh token.
func (s *AuthService) ChangePassword(ctx context.Context, userID string, req *ChangePasswordRequest) error {
	db := s.db.WithContext(ctx)
	var user models.User
	if err := db.First(&user, "id = ?", userID).Error; err != nil {
		return err
	}
	if !utils.CheckPassword(req.CurrentPassword, user.Password) {
		return ErrWrongPassword
	}
	return s.setPassword(db, &user, req.NewPassword)
}

func (s *AuthService) setPassword(db *gorm.DB, user *models.User, password string) error {
	if err := utils.ValidatePasswordStrength(password); err != nil {
		return response.NewBadRequest(err.Error())
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(user).Update("password", hash).Error; err != nil {
			return err
		}
		return s.revokeAll(tx, user.ID)
	})
}

// RequestPasswordReset mails a reset link when the address belongs to an
// active account. It reports success either way.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !user.IsActive {
		return nil
	}

	token, err := s.tokens.GenerateResetToken(user.ID, user.Email, user.Password)
	if err != nil {
		return err
	}
	if s.notifier != nil {
		s.notifier.PasswordReset(&user, token)
	}
	return nil
}

type ResetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ResetPassword sets a new password from a reset token. A token works once:
// it is bound to the password hash it was issued against.
func (s *AuthService) ResetPassword(ctx context.Context, req *ResetPasswordRequest) error {
	claims, err := s.tokens.Parse(req.Token, utils.PurposeReset)
	if err != nil {
		return ErrInvalidResetToken
	}

	db := s.db.WithContext(ctx)
	var user models.User
	if err := db.First(&user, "id = ?", claims.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}
	if !user.IsActive || claims.Fingerprint != utils.PasswordFingerprint(user.Password) {
		return ErrInvalidResetToken
	}
	return s.setPassword(db, &user, req.Password)
}

// EnsureSuperAdmin creates or promotes the configured platform admin.
func (s *AuthService) EnsureSuperAdmin(ctx context.Context, cfg config.AdminConfig) error {
	if cfg.Email == "" || cfg.Password == "" {
		return nil
	}
	db := s.db.WithContext(ctx)

	var existing models.User
	err := db.Where("email = ?", normalizeEmail(cfg.Email)).First(&existing).Error
	if err == nil {
		if existing.IsSuperAdmin() {
			return nil
		}
		logger.Info().Str("email", existing.Email).Msg("Promoting configured admin to super admin")
		return db.Model(&existing).Update("role", models.GlobalRoleSuperAdmin).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	admin, err := newUser(cfg.Name, cfg.Email, cfg.Password)
	if err != nil {
		return err
	}
	admin.Role = models.GlobalRoleSuperAdmin
	if err := db.Create(admin).Error; err != nil {
		return err
	}
	logger.Info().Str("email", admin.Email).Msg("Super admin created")
	return nil
}
