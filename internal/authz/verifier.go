package authz

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/taskhive/backend/internal/models"
	"github.com/taskhive/backend/internal/utils"
)

// Identity is an authenticated user together with every membership they
// hold, each with its workspace loaded.
type Identity struct {
	User        *models.User
	Memberships []models.WorkspaceMember
}

// IdentityStore loads a user and their memberships in one lookup.
// It returns gorm.ErrRecordNotFound when the user does not exist.
type IdentityStore interface {
	LoadIdentity(ctx context.Context, userID string) (*Identity, error)
}

// TokenVerifier turns a bearer credential into an Identity.
type TokenVerifier struct {
	tokens *utils.TokenManager
	store  IdentityStore
}

func NewTokenVerifier(tokens *utils.TokenManager, store IdentityStore) *TokenVerifier {
	return &TokenVerifier{tokens: tokens, store: store}
}

// BearerToken extracts the credential from an Authorization header value.
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// Verify authenticates an Authorization header value.
func (v *TokenVerifier) Verify(ctx context.Context, header string) (*Identity, error) {
	raw, ok := BearerToken(header)
	if !ok {
		return nil, ErrUnauthenticated
	}
	return v.VerifyToken(ctx, raw)
}

// VerifyToken authenticates a raw token, for transports without headers.
func (v *TokenVerifier) VerifyToken(ctx context.Context, raw string) (*Identity, error) {
	claims, err := v.tokens.Parse(raw, utils.PurposeAccess)
	if err != nil {
		if errors.Is(err, utils.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	identity, err := v.store.LoadIdentity(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserGone
		}
		return nil, err
	}
	if !identity.User.IsActive {
		return nil, ErrAccountInactive
	}
	return identity, nil
}
