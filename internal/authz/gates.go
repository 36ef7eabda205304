package authz

import (
	"time"

	"github.com/taskhive/backend/internal/models"
)

// ResolveMembership finds the identity's membership in workspaceID among the
// memberships loaded with the identity. A workspace that does not exist is
// indistinguishable from one the user does not belong to.
func ResolveMembership(identity *Identity, workspaceID string) (*models.WorkspaceMember, error) {
	for i := range identity.Memberships {
		m := &identity.Memberships[i]
		if m.WorkspaceID == workspaceID && m.Workspace != nil {
			return m, nil
		}
	}
	return nil, ErrNotAMember
}

// RequireRole passes when the membership's role is at least min.
func RequireRole(m *models.WorkspaceMember, min models.Role) error {
	if !m.Role.AtLeast(min) {
		return ErrInsufficientRole
	}
	return nil
}

// RequireSubscription passes for active workspaces and for trials that have
// not yet expired at now.
func RequireSubscription(ws *models.Workspace, now time.Time) error {
	if !ws.IsActive || !ws.SubscriptionActiveAt(now) {
		return ErrSubscriptionInactive
	}
	return nil
}

func RequireSuperAdmin(identity *Identity) error {
	if !identity.User.IsSuperAdmin() {
		return ErrSuperAdminRequired
	}
	return nil
}
