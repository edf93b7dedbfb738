// Package auth is the authentication orchestrator. It composes the lockout
// policy, the token signer, the session registry, the Telegram validators and
// the verification tokens into the public use cases served over HTTP.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iudanet/tgauth/internal/autherr"
	"github.com/iudanet/tgauth/internal/botauth"
	"github.com/iudanet/tgauth/internal/crypto"
	"github.com/iudanet/tgauth/internal/events"
	"github.com/iudanet/tgauth/internal/lockout"
	"github.com/iudanet/tgauth/internal/models"
	"github.com/iudanet/tgauth/internal/server/jwt"
	"github.com/iudanet/tgauth/internal/server/storage"
	"github.com/iudanet/tgauth/internal/session"
	"github.com/iudanet/tgauth/internal/telegram"
	"github.com/iudanet/tgauth/internal/tokens"
	"github.com/iudanet/tgauth/internal/verification"
)

const tracerName = "github.com/iudanet/tgauth/internal/auth"

// dummyPassword хешируется при старте, чтобы на неизвестный email тратить
// столько же времени, сколько на неверный пароль
const dummyPassword = "tgauth-timing-equalizer-0"

// Deps are the collaborators of the Service
type Deps struct {
	Store        storage.Store
	Hasher       crypto.PasswordHasher
	Signer       *jwt.Signer
	Sessions     *session.Registry
	Issuer       *tokens.Issuer
	Telegram     *telegram.Validator
	Bot          *botauth.Flow
	Verification *verification.Manager
	Events       events.Publisher
}

// Config содержит параметры оркестратора
type Config struct {
	Now     func() time.Time
	Logger  *slog.Logger
	Tracer  trace.Tracer
	Lockout lockout.Policy
	// PublicURL база для ссылок в письмах, например https://app.example.com
	PublicURL string
}

// Service implements the auth use cases
type Service struct {
	store    storage.Store
	hasher   crypto.PasswordHasher
	signer   *jwt.Signer
	sessions *session.Registry
	issuer   *tokens.Issuer
	telegram *telegram.Validator
	bot      *botauth.Flow
	verify   *verification.Manager
	events   events.Publisher

	now       func() time.Time
	logger    *slog.Logger
	tracer    trace.Tracer
	policy    lockout.Policy
	publicURL string
	dummyHash string
}

// New creates a Service
func New(deps Deps, cfg Config) (*Service, error) {
	if deps.Store == nil || deps.Hasher == nil || deps.Signer == nil || deps.Sessions == nil ||
		deps.Issuer == nil || deps.Telegram == nil || deps.Bot == nil || deps.Verification == nil || deps.Events == nil {
		return nil, errors.New("auth: missing dependency")
	}

	dummy, err := deps.Hasher.Hash(dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}

	s := &Service{
		store:     deps.Store,
		hasher:    deps.Hasher,
		signer:    deps.Signer,
		sessions:  deps.Sessions,
		issuer:    deps.Issuer,
		telegram:  deps.Telegram,
		bot:       deps.Bot,
		verify:    deps.Verification,
		events:    deps.Events,
		now:       cfg.Now,
		logger:    cfg.Logger,
		tracer:    cfg.Tracer,
		policy:    lockout.NewPolicy(cfg.Lockout.Threshold, cfg.Lockout.Duration),
		publicURL: cfg.PublicURL,
		dummyHash: dummy,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}

	return s, nil
}

// startSpan opens a span for op. The returned func records err and ends the span
func (s *Service) startSpan(ctx context.Context, op string) (context.Context, func(error)) {
	ctx, span := s.tracer.Start(ctx, op)
	return ctx, func(err error) {
		if err != nil {
			if code := autherr.CodeOf(err); code != "" {
				// Бизнес-ошибки ожидаемы, не помечаем span как ошибочный
				span.SetAttributes(attribute.String("auth.error_code", string(code)))
			} else {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
		}
		span.End()
	}
}

// CountActiveSessions returns the number of usable refresh sessions of userID
func (s *Service) CountActiveSessions(ctx context.Context, userID string) (n int, err error) {
	ctx, end := s.startSpan(ctx, "auth.CountActiveSessions")
	defer func() { end(err) }()

	return s.sessions.CountActive(ctx, s.store, userID)
}

// SweepResult is the number of rows removed per table
type SweepResult struct {
	Sessions     int
	BotAuth      int
	Verification int
}

// Total returns the sum of removed rows
func (r SweepResult) Total() int {
	return r.Sessions + r.BotAuth + r.Verification
}

// Sweep purges expired and long-revoked rows. It is safe to run concurrently
func (s *Service) Sweep(ctx context.Context) (res SweepResult, err error) {
	ctx, end := s.startSpan(ctx, "auth.Sweep")
	defer func() { end(err) }()

	now := s.now()

	if res.Sessions, err = s.sessions.Sweep(ctx, s.store, now); err != nil {
		return res, err
	}
	if res.BotAuth, err = s.bot.Sweep(ctx, now); err != nil {
		return res, err
	}
	if res.Verification, err = s.verify.Sweep(ctx, s.store, now); err != nil {
		return res, err
	}

	s.logger.InfoContext(ctx, "sweep finished",
		slog.Int("sessions", res.Sessions),
		slog.Int("bot_auth", res.BotAuth),
		slog.Int("verification", res.Verification),
	)

	return res, nil
}

func lockoutState(u *models.User) lockout.State {
	return lockout.State{FailedAttempts: u.FailedLoginAttempts, LockedUntil: u.LockedUntil}
}

func applyLockoutState(u *models.User, st lockout.State) {
	u.FailedLoginAttempts = st.FailedAttempts
	u.LockedUntil = st.LockedUntil
}

// publish sends msg and only logs failures
func (s *Service) publish(ctx context.Context, msg events.Message) {
	if err := s.events.Publish(ctx, msg); err != nil {
		s.logger.WarnContext(ctx, "failed to publish event",
			slog.String("purpose", string(msg.Purpose)),
			slog.String("user_id", msg.UserID),
			slog.Any("error", err),
		)
	}
}
