package authz

import (
	"github.com/taskhive/backend/pkg/response"
)

// Gate failures. Compare with errors.Is; matching is by kind so a more
// specific message still matches its sentinel.
var (
	ErrUnauthenticated      = response.NewUnauthorized("You are not logged in! Please log in to get access.")
	ErrTokenExpired         = response.NewUnauthorized("Your token has expired! Please log in again.")
	ErrInvalidToken         = response.NewUnauthorized("Invalid token. Please log in again.")
	ErrUserGone             = response.NewUnauthorized("The user belonging to this token no longer exists.")
	ErrAccountInactive      = response.NewForbidden(response.KindAccountInactive, "Your account has been deactivated.")
	ErrNotAMember           = response.NewForbidden(response.KindNotAMember, "You are not a member of this workspace.")
	ErrInsufficientRole     = response.NewForbidden(response.KindInsufficientRole, "You do not have permission to perform this action.")
	ErrSubscriptionInactive = response.NewForbidden(response.KindSubscriptionInactive, "Your workspace subscription is inactive. Please upgrade to continue.")
	ErrSuperAdminRequired   = response.NewForbidden(response.KindInsufficientRole, "Super admin access required.")
)
