package authz

import (
	"context"
	"time"

	"github.com/taskhive/backend/internal/models"
)

// Policy declares which gates a route runs after authentication.
type Policy struct {
	WorkspaceScoped     bool
	MinRole             models.Role // empty means any member
	RequireSubscription bool
	SuperAdmin          bool
}

var (
	Authenticated = Policy{}
	Member        = Policy{WorkspaceScoped: true, MinRole: models.RoleMember}
	Admin         = Policy{WorkspaceScoped: true, MinRole: models.RoleAdmin}
	Owner         = Policy{WorkspaceScoped: true, MinRole: models.RoleOwner}
	SuperAdmin    = Policy{SuperAdmin: true}
)

// Subscribed returns a copy of p that also runs the subscription gate.
func (p Policy) Subscribed() Policy {
	p.RequireSubscription = true
	return p
}

// Access is what a request has proven about its caller. Workspace and
// Membership are set only for workspace-scoped policies.
type Access struct {
	Identity   *Identity
	Workspace  *models.Workspace
	Membership *models.WorkspaceMember
}

func (a *Access) User() *models.User {
	return a.Identity.User
}

func (a *Access) UserID() string {
	return a.Identity.User.ID
}

func (a *Access) Role() models.Role {
	if a.Membership == nil {
		return ""
	}
	return a.Membership.Role
}

// Dispatcher runs the gate chain for a request. Gates only read state.
type Dispatcher struct {
	verifier *TokenVerifier
	now      func() time.Time
}

func NewDispatcher(verifier *TokenVerifier, now func() time.Time) *Dispatcher {
	if now == nil {
		now = time.Now
	}
	return &Dispatcher{verifier: verifier, now: now}
}

// Authorize authenticates header and applies policy for workspaceID,
// stopping at the first gate that fails.
func (d *Dispatcher) Authorize(ctx context.Context, header, workspaceID string, policy Policy) (*Access, error) {
	identity, err := d.verifier.Verify(ctx, header)
	if err != nil {
		return nil, err
	}
	return d.authorizeIdentity(identity, workspaceID, policy)
}

// AuthorizeToken is Authorize for a raw token.
func (d *Dispatcher) AuthorizeToken(ctx context.Context, token, workspaceID string, policy Policy) (*Access, error) {
	identity, err := d.verifier.VerifyToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return d.authorizeIdentity(identity, workspaceID, policy)
}

func (d *Dispatcher) authorizeIdentity(identity *Identity, workspaceID string, policy Policy) (*Access, error) {
	access := &Access{Identity: identity}

	if policy.SuperAdmin {
		if err := RequireSuperAdmin(identity); err != nil {
			return nil, err
		}
	}

	if !policy.WorkspaceScoped {
		return access, nil
	}

	membership, err := ResolveMembership(identity, workspaceID)
	if err != nil {
		return nil, err
	}
	access.Membership = membership
	access.Workspace = membership.Workspace

	if policy.MinRole != "" {
		if err := RequireRole(membership, policy.MinRole); err != nil {
			return nil, err
		}
	}

	if policy.RequireSubscription {
		if err := RequireSubscription(access.Workspace, d.now()); err != nil {
			return nil, err
		}
	}
	return access, nil
}
