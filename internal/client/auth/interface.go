package auth

import (
	"context"

	"github.com/iudanet/tgauth/internal/client/api"
	pkgapi "github.com/iudanet/tgauth/pkg/api"
)

//go:generate moq -out api_mock.go . API

// API is the part of the HTTP client the session service talks to
type API interface {
	Register(ctx context.Context, req pkgapi.RegisterRequest) (*pkgapi.TokenResponse, error)
	Login(ctx context.Context, req pkgapi.LoginRequest) (*pkgapi.TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*pkgapi.TokenResponse, error)
	Logout(ctx context.Context, refreshToken string) error
	LogoutAll(ctx context.Context, refreshToken string) error
	SessionCount(ctx context.Context, accessToken string) (int, error)

	BotInit(ctx context.Context) (*pkgapi.BotInitResponse, error)
	BotStatus(ctx context.Context, token string) (*pkgapi.BotStatusResponse, error)
	WaitBotAuth(ctx context.Context, token string) (*api.BotEvent, error)
}

var _ API = (*api.Client)(nil)
