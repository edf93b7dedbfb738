// Package tokens mints the access/refresh pair every successful
// authentication path ends with.
package tokens

import (
	"context"
	"fmt"

	"github.com/iudanet/tgauth/internal/models"
	"github.com/iudanet/tgauth/internal/server/jwt"
	"github.com/iudanet/tgauth/internal/server/storage"
	"github.com/iudanet/tgauth/internal/session"
)

// MembershipProvider maps a user to the tenant and roles carried in the
// access token. Organization management lives outside this service
type MembershipProvider interface {
	Membership(ctx context.Context, user *models.User) (tenantID string, roles []string, err error)
}

// StaticMembership puts every user into one configured tenant and derives
// roles from the admin flag
type StaticMembership struct {
	TenantID string
}

// Membership implements MembershipProvider
func (m StaticMembership) Membership(_ context.Context, user *models.User) (string, []string, error) {
	return m.TenantID, user.Roles(), nil
}

// Issuer signs token pairs and registers the refresh session
type Issuer struct {
	signer   *jwt.Signer
	sessions *session.Registry
	members  MembershipProvider
}

// NewIssuer creates an Issuer
func NewIssuer(signer *jwt.Signer, sessions *session.Registry, members MembershipProvider) *Issuer {
	return &Issuer{signer: signer, sessions: sessions, members: members}
}

// Issue mints a new pair for user and stores the refresh session through repo.
// Call it inside the same unit of work as the state change that authenticated the user
func (i *Issuer) Issue(ctx context.Context, repo storage.TokenStorage, user *models.User, device models.DeviceMeta) (*models.AuthResult, error) {
	tenantID, roles, err := i.members.Membership(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve membership: %w", err)
	}

	access, expiresIn, err := i.signer.GenerateAccessToken(models.Principal{
		UserID:   user.ID,
		TenantID: tenantID,
		Roles:    roles,
	})
	if err != nil {
		return nil, err
	}

	refresh, expiresAt, err := i.signer.GenerateRefreshToken(user.ID)
	if err != nil {
		return nil, err
	}

	if _, err := i.sessions.Issue(ctx, repo, user.ID, refresh, expiresAt, device); err != nil {
		return nil, err
	}

	return &models.AuthResult{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    expiresIn,
		User:         user.Profile(),
	}, nil
}
