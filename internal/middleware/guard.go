package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/taskhive/backend/internal/authz"
	"github.com/taskhive/backend/pkg/logger"
	"github.com/taskhive/backend/pkg/response"
)

const (
	ContextAccess = "access"

	// WorkspaceParam is the route parameter naming the target workspace.
	WorkspaceParam = "workspaceId"
)

// Guard runs the authorization chain for policy and stores the resulting
// access on the context. The workspace comes from the :workspaceId parameter.
func Guard(d *authz.Dispatcher, policy authz.Policy) gin.HandlerFunc {
	return func(c *gin.Context) {
		access, err := d.Authorize(c.Request.Context(), c.GetHeader("Authorization"), c.Param(WorkspaceParam), policy)
		if err != nil {
			response.Error(c, err)
			return
		}
		setAccess(c, access)
		c.Next()
	}
}

func setAccess(c *gin.Context, access *authz.Access) {
	c.Set(ContextAccess, access)
	c.Set(logger.UserIDKey, access.UserID())
	if access.Workspace != nil {
		c.Set(logger.WorkspaceIDKey, access.Workspace.ID)
	}
}

// AccessFrom returns the access stored by Guard, or nil outside a guarded route.
func AccessFrom(c *gin.Context) *authz.Access {
	if v, exists := c.Get(ContextAccess); exists {
		if access, ok := v.(*authz.Access); ok {
			return access
		}
	}
	return nil
}

// GetUserID returns the authenticated user's id, or "".
func GetUserID(c *gin.Context) string {
	if access := AccessFrom(c); access != nil {
		return access.UserID()
	}
	return ""
}

// SuperAdminRequired guards platform administration routes.
func SuperAdminRequired(d *authz.Dispatcher) gin.HandlerFunc {
	return Guard(d, authz.SuperAdmin)
}
