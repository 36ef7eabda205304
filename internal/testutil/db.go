// Package testutil builds throwaway databases and fixtures for package tests.
package testutil

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/taskhive/backend/internal/models"
	"github.com/taskhive/backend/internal/utils"
)

// NewDB returns a migrated in-memory SQLite database private to t.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Password is the plaintext password of every user created by CreateUser.
const Password = "Passw0rd!"

var passwordHash string

// CreateUser inserts an active user with the shared test password.
func CreateUser(t testing.TB, db *gorm.DB, email string) *models.User {
	t.Helper()
	if passwordHash == "" {
		hash, err := utils.HashPassword(Password)
		if err != nil {
			t.Fatalf("hash password: %v", err)
		}
		passwordHash = hash
	}
	user := &models.User{
		Email:    email,
		Name:     email,
		Password: passwordHash,
		Role:     models.GlobalRoleUser,
		IsActive: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return user
}

// CreateWorkspace inserts a trial workspace owned by owner, with its owner membership.
func CreateWorkspace(t testing.TB, db *gorm.DB, owner *models.User, name string, trialEndsAt time.Time) *models.Workspace {
	t.Helper()
	ws := &models.Workspace{
		Name:               name,
		Slug:               utils.Slugify(name) + "-" + uuid.NewString()[:8],
		OwnerID:            owner.ID,
		SubscriptionStatus: models.SubscriptionTrial,
		SubscriptionPlan:   models.PlanFree,
		MaxMembers:         5,
		TrialEndsAt:        &trialEndsAt,
		IsActive:           true,
	}
	if err := db.Create(ws).Error; err != nil {
		t.Fatalf("create workspace: %v", err)
	}
	AddMember(t, db, ws, owner, models.RoleOwner)
	return ws
}

// AddMember inserts a membership row directly.
func AddMember(t testing.TB, db *gorm.DB, ws *models.Workspace, user *models.User, role models.Role) *models.WorkspaceMember {
	t.Helper()
	m := &models.WorkspaceMember{WorkspaceID: ws.ID, UserID: user.ID, Role: role}
	if err := db.Create(m).Error; err != nil {
		t.Fatalf("add member: %v", err)
	}
	return m
}

// FixedClock returns a clock stuck at ts.
func FixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}
