package services

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/taskhive/backend/internal/authz"
	"github.com/taskhive/backend/internal/config"
	"github.com/taskhive/backend/internal/models"
	"github.com/taskhive/backend/internal/testutil"
	"github.com/taskhive/backend/internal/utils"
	"github.com/taskhive/backend/pkg/response"
)

func newAuthService(t *testing.T) (*AuthService, *fixture) {
	f := newFixture(t)
	tokens := utils.NewTokenManager("test-secret", time.Hour, time.Hour)
	return NewAuthService(f.db, tokens, config.DefaultConfig().JWT, f.workspaces, f.notifier), f
}

func TestAuthService_RegisterAdmin(t *testing.T) {
	auth, f := newAuthService(t)
	ctx := context.Background()

	session, err := auth.RegisterAdmin(ctx, &RegisterAdminRequest{
		Name:          "Alice",
		Email:         "Alice@Example.com",
		Password:      "Secret123",
		WorkspaceName: "Alice Co",
	}, "127.0.0.1", "test")
	if err != nil {
		t.Fatalf("RegisterAdmin() error = %v", err)
	}
	if session.Token == "" || session.RefreshToken == "" {
		t.Error("expected access and refresh tokens")
	}
	if session.User.Email != "alice@example.com" {
		t.Errorf("expected normalized email, got %q", session.User.Email)
	}
	if len(session.Workspaces) != 1 || session.Workspaces[0].Role != models.RoleOwner {
		t.Fatalf("expected one owned workspace, got %+v", session.Workspaces)
	}
	if session.Workspaces[0].SubscriptionStatus != models.SubscriptionTrial {
		t.Errorf("expected trial workspace, got %q", session.Workspaces[0].SubscriptionStatus)
	}

	_, err = auth.RegisterAdmin(ctx, &RegisterAdminRequest{
		Name: "Alice", Email: "alice@example.com", Password: "Secret123", WorkspaceName: "Second",
	}, "", "")
	if response.KindOf(err) != response.KindConflict {
		t.Errorf("expected Conflict for duplicate email, got %v", err)
	}

	var workspaces int64
	f.db.Model(&models.Workspace{}).Count(&workspaces)
	if workspaces != 1 {
		t.Errorf("failed registration must not leave a workspace, got %d", workspaces)
	}
}

func TestAuthService_RegisterAdminValidation(t *testing.T) {
	auth, _ := newAuthService(t)

	tests := []struct {
		name string
		req  RegisterAdminRequest
	}{
		{"bad email", RegisterAdminRequest{Name: "Al", Email: "not-an-email", Password: "Secret123", WorkspaceName: "Team"}},
		{"weak password", RegisterAdminRequest{Name: "Al", Email: "a@example.com", Password: "secret", WorkspaceName: "Team"}},
		{"no digit", RegisterAdminRequest{Name: "Al", Email: "a@example.com", Password: "SecretSecret", WorkspaceName: "Team"}},
		{"short workspace", RegisterAdminRequest{Name: "Al", Email: "a@example.com", Password: "Secret123", WorkspaceName: "T"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.RegisterAdmin(context.Background(), &tt.req, "", "")
			if response.KindOf(err) != response.KindValidationFailed {
				t.Errorf("expected ValidationFailed, got %v", err)
			}
		})
	}
}

func TestAuthService_Login(t *testing.T) {
	auth, f := newAuthService(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "bob@example.com")
	testutil.CreateWorkspace(t, f.db, user, "Bob Team", t0.AddDate(0, 0, 30))

	session, err := auth.Login(ctx, &LoginRequest{Email: " BOB@example.com", Password: testutil.Password}, "", "")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if len(session.Workspaces) != 1 {
		t.Errorf("expected 1 workspace, got %d", len(session.Workspaces))
	}
	if session.User.LastLogin == nil {
		t.Error("expected last login to be set")
	}

	tests := []struct {
		email, password string
	}{
		{"bob@example.com", "wrong"},
		{"nobody@example.com", testutil.Password},
	}
	for _, tt := range tests {
		_, err := auth.Login(ctx, &LoginRequest{Email: tt.email, Password: tt.password}, "", "")
		if !errors.Is(err, ErrBadCredentials) {
			t.Errorf("%s: expected ErrBadCredentials, got %v", tt.email, err)
		}
	}

	f.db.Model(user).Update("is_active", false)
	_, err = auth.Login(ctx, &LoginRequest{Email: user.Email, Password: testutil.Password}, "", "")
	if response.KindOf(err) != response.KindAccountInactive {
		t.Errorf("expected AccountInactive, got %v", err)
	}
}

func TestAuthService_RefreshRotation(t *testing.T) {
	auth, f := newAuthService(t)
	ctx := context.Background()
	testutil.CreateUser(t, f.db, "carol@example.com")

	session, err := auth.Login(ctx, &LoginRequest{Email: "carol@example.com", Password: testutil.Password}, "", "")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	refreshed, err := auth.Refresh(ctx, session.RefreshToken, "", "")
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if refreshed.RefreshToken == session.RefreshToken {
		t.Error("expected a new refresh token")
	}

	if _, err := auth.Refresh(ctx, session.RefreshToken, "", ""); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("expected reused token to fail, got %v", err)
	}

	if err := auth.Logout(ctx, refreshed.RefreshToken); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if _, err := auth.Refresh(ctx, refreshed.RefreshToken, "", ""); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("expected revoked token to fail, got %v", err)
	}
}

func TestAuthService_ChangePassword(t *testing.T) {
	auth, f := newAuthService(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "dave@example.com")
	session, _ := auth.Login(ctx, &LoginRequest{Email: user.Email, Password: testutil.Password}, "", "")

	err := auth.ChangePassword(ctx, user.ID, &ChangePasswordRequest{CurrentPassword: "nope", NewPassword: "NewSecret1"})
	if !errors.Is(err, ErrWrongPassword) {
		t.Errorf("expected ErrWrongPassword, got %v", err)
	}

	if err := auth.ChangePassword(ctx, user.ID, &ChangePasswordRequest{CurrentPassword: testutil.Password, NewPassword: "NewSecret1"}); err != nil {
		t.Fatalf("ChangePassword() error = %v", err)
	}
	if _, err := auth.Login(ctx, &LoginRequest{Email: user.Email, Password: "NewSecret1"}, "", ""); err != nil {
		t.Errorf("expected login with new password, got %v", err)
	}
	if _, err := auth.Refresh(ctx, session.RefreshToken, "", ""); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("expected old sessions to be revoked, got %v", err)
	}
}

func resetTokenFrom(t *testing.T, m *recordingMailer) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.sent {
		idx := strings.Index(msg.HTML, "token=")
		if idx < 0 {
			continue
		}
		rest := msg.HTML[idx+len("token="):]
		end := strings.IndexAny(rest, "\"<")
		token, err := url.QueryUnescape(rest[:end])
		if err != nil {
			t.Fatalf("unescape token: %v", err)
		}
		return token
	}
	t.Fatal("no reset mail sent")
	return ""
}

func TestAuthService_PasswordReset(t *testing.T) {
	auth, f := newAuthService(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "erin@example.com")

	if err := auth.RequestPasswordReset(ctx, "unknown@example.com"); err != nil {
		t.Errorf("unknown email must not error, got %v", err)
	}
	if err := auth.RequestPasswordReset(ctx, user.Email); err != nil {
		t.Fatalf("RequestPasswordReset() error = %v", err)
	}
	f.queue.Wait()

	if got := f.mailer.recipients(); len(got) != 1 || got[0] != user.Email {
		t.Fatalf("expected exactly one reset mail to %s, got %v", user.Email, got)
	}
	token := resetTokenFrom(t, f.mailer)

	if err := auth.ResetPassword(ctx, &ResetPasswordRequest{Token: token, Password: "Weak"}); response.KindOf(err) != response.KindValidationFailed {
		t.Errorf("expected ValidationFailed for weak password, got %v", err)
	}
	if err := auth.ResetPassword(ctx, &ResetPasswordRequest{Token: token, Password: "Brand9New"}); err != nil {
		t.Fatalf("ResetPassword() error = %v", err)
	}
	if err := auth.ResetPassword(ctx, &ResetPasswordRequest{Token: token, Password: "Another9"}); !errors.Is(err, ErrInvalidResetToken) {
		t.Errorf("expected reused token to fail, got %v", err)
	}
	if err := auth.ResetPassword(ctx, &ResetPasswordRequest{Token: "garbage", Password: "Another9"}); !errors.Is(err, ErrInvalidResetToken) {
		t.Errorf("expected garbage token to fail, got %v", err)
	}
	if _, err := auth.Login(ctx, &LoginRequest{Email: user.Email, Password: "Brand9New"}, "", ""); err != nil {
		t.Errorf("expected login with reset password, got %v", err)
	}
}

func TestAuthService_UpdateProfile(t *testing.T) {
	auth, f := newAuthService(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "frank@example.com")
	testutil.CreateUser(t, f.db, "taken@example.com")

	updated, err := auth.UpdateProfile(ctx, user.ID, &UpdateProfileRequest{Name: strPtr("Frank")})
	if err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	if updated.Name != "Frank" {
		t.Errorf("expected name Frank, got %q", updated.Name)
	}

	_, err = auth.UpdateProfile(ctx, user.ID, &UpdateProfileRequest{Email: strPtr("taken@example.com")})
	if response.KindOf(err) != response.KindConflict {
		t.Errorf("expected Conflict for taken email, got %v", err)
	}
}

func TestAuthService_LoadIdentityAndProfile(t *testing.T) {
	auth, f := newAuthService(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, f.db, "gina@example.com")
	testutil.CreateWorkspace(t, f.db, user, "One", t0.AddDate(0, 0, 30))
	testutil.CreateWorkspace(t, f.db, user, "Two", t0.AddDate(0, 0, 30))

	identity, err := auth.LoadIdentity(ctx, user.ID)
	if err != nil {
		t.Fatalf("LoadIdentity() error = %v", err)
	}
	if len(identity.Memberships) != 2 {
		t.Fatalf("expected 2 memberships, got %d", len(identity.Memberships))
	}
	for _, m := range identity.Memberships {
		if m.Workspace == nil {
			t.Error("expected membership workspace to be loaded")
		}
	}

	profile := auth.Profile(identity)
	if len(profile.Workspaces) != 2 {
		t.Errorf("expected 2 workspaces in profile, got %d", len(profile.Workspaces))
	}

	var _ authz.IdentityStore = auth
}

func TestAuthService_EnsureSuperAdmin(t *testing.T) {
	auth, f := newAuthService(t)
	ctx := context.Background()

	if err := auth.EnsureSuperAdmin(ctx, config.AdminConfig{}); err != nil {
		t.Errorf("empty config should be a no-op, got %v", err)
	}

	cfg := config.AdminConfig{Email: "root@example.com", Password: "Root1234", Name: "Root"}
	for i := 0; i < 2; i++ {
		if err := auth.EnsureSuperAdmin(ctx, cfg); err != nil {
			t.Fatalf("EnsureSuperAdmin() error = %v", err)
		}
	}
	var admins []models.User
	f.db.Where("role = ?", models.GlobalRoleSuperAdmin).Find(&admins)
	if len(admins) != 1 || admins[0].Email != "root@example.com" {
		t.Errorf("expected one super admin, got %+v", admins)
	}

	existing := testutil.CreateUser(t, f.db, "ops@example.com")
	if err := auth.EnsureSuperAdmin(ctx, config.AdminConfig{Email: existing.Email, Password: "Whatever1", Name: "Ops"}); err != nil {
		t.Fatalf("EnsureSuperAdmin() error = %v", err)
	}
	var promoted models.User
	f.db.First(&promoted, "id = ?", existing.ID)
	if !promoted.IsSuperAdmin() {
		t.Error("expected existing user to be promoted")
	}
}
