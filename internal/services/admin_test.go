package services

import (
	"context"
	"testing"

	"github.com/taskhive/backend/internal/models"
	"github.com/taskhive/backend/internal/testutil"
	"github.com/taskhive/backend/pkg/response"
)

func TestAdminService_ListAndStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := NewAdminService(f.db)
	admin.now = testutil.FixedClock(t0)

	alice := testutil.CreateUser(t, f.db, "alice@example.com")
	bob := testutil.CreateUser(t, f.db, "bob@example.com")
	wsA := testutil.CreateWorkspace(t, f.db, alice, "Alpha", t0.AddDate(0, 0, 30))
	testutil.CreateWorkspace(t, f.db, bob, "Beta", t0.AddDate(0, 0, 30))
	testutil.AddMember(t, f.db, wsA, bob, models.RoleMember)
	f.db.Create(&models.SubscriptionPayment{WorkspaceID: wsA.ID, UserID: alice.ID, OrderID: "o1", Plan: "PRO", Amount: 49900, Currency: "INR", Status: models.PaymentPaid})
	f.db.Create(&models.SubscriptionPayment{WorkspaceID: wsA.ID, UserID: alice.ID, OrderID: "o2", Plan: "PRO", Amount: 49900, Currency: "INR", Status: models.PaymentFailed})

	list, err := admin.ListWorkspaces(ctx, &AdminListRequest{Search: "alp"})
	if err != nil {
		t.Fatalf("ListWorkspaces() error = %v", err)
	}
	if len(list.Workspaces) != 1 || list.Workspaces[0].MemberCount != 2 {
		t.Errorf("expected Alpha with 2 members, got %+v", list.Workspaces)
	}

	users, err := admin.ListUsers(ctx, &AdminListRequest{})
	if err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}
	if users.Pagination.Total != 2 {
		t.Errorf("expected 2 users, got %d", users.Pagination.Total)
	}

	stats, err := admin.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Users != 2 || stats.Workspaces != 2 {
		t.Errorf("expected 2 users and 2 workspaces, got %d/%d", stats.Users, stats.Workspaces)
	}
	if stats.BySubscription[models.SubscriptionTrial] != 2 {
		t.Errorf("expected 2 trial workspaces, got %v", stats.BySubscription)
	}
	if stats.PaidRevenue != 49900 {
		t.Errorf("expected revenue 49900, got %d", stats.PaidRevenue)
	}

	if _, err := admin.ListWorkspaces(ctx, &AdminListRequest{Status: "frozen"}); response.KindOf(err) != response.KindValidationFailed {
		t.Errorf("expected ValidationFailed for unknown status, got %v", err)
	}
}

func TestAdminService_PatchWorkspace(t *testing.T) {
	f := newFixture(t)
	admin := NewAdminService(f.db)
	owner := testutil.CreateUser(t, f.db, "owner@example.com")
	ws := testutil.CreateWorkspace(t, f.db, owner, "Alpha", t0.AddDate(0, 0, 30))

	status := string(models.SubscriptionActive)
	max := 50
	inactive := false
	got, err := admin.PatchWorkspace(context.Background(), ws.ID, &PatchWorkspaceRequest{
		SubscriptionStatus: &status,
		SubscriptionPlan:   strPtr("business"),
		MaxMembers:         &max,
		IsActive:           &inactive,
	})
	if err != nil {
		t.Fatalf("PatchWorkspace() error = %v", err)
	}
	if got.SubscriptionStatus != models.SubscriptionActive || got.SubscriptionPlan != "BUSINESS" || got.MaxMembers != 50 || got.IsActive {
		t.Errorf("unexpected workspace after patch: %+v", got)
	}

	bad := "paused"
	if _, err := admin.PatchWorkspace(context.Background(), ws.ID, &PatchWorkspaceRequest{SubscriptionStatus: &bad}); response.KindOf(err) != response.KindValidationFailed {
		t.Errorf("expected ValidationFailed, got %v", err)
	}
	if _, err := admin.PatchWorkspace(context.Background(), "missing", &PatchWorkspaceRequest{}); response.KindOf(err) != response.KindNotFound {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestAdminService_PatchUser(t *testing.T) {
	f := newFixture(t)
	admin := NewAdminService(f.db)
	root := testutil.CreateUser(t, f.db, "root@example.com")
	user := testutil.CreateUser(t, f.db, "user@example.com")
	ctx := context.Background()

	off := false
	got, err := admin.PatchUser(ctx, root.ID, user.ID, &PatchUserRequest{IsActive: &off})
	if err != nil {
		t.Fatalf("PatchUser() error = %v", err)
	}
	if got.IsActive {
		t.Error("expected user to be deactivated")
	}

	if _, err := admin.PatchUser(ctx, root.ID, root.ID, &PatchUserRequest{IsActive: &off}); response.KindOf(err) != response.KindValidationFailed {
		t.Errorf("expected self-deactivation to fail, got %v", err)
	}
	if _, err := admin.PatchUser(ctx, root.ID, user.ID, &PatchUserRequest{Role: strPtr("god")}); response.KindOf(err) != response.KindValidationFailed {
		t.Errorf("expected unknown role to fail, got %v", err)
	}

	got, err = admin.PatchUser(ctx, root.ID, user.ID, &PatchUserRequest{Role: strPtr(models.GlobalRoleSuperAdmin)})
	if err != nil {
		t.Fatalf("PatchUser() error = %v", err)
	}
	if !got.IsSuperAdmin() {
		t.Error("expected promotion to super admin")
	}
}
