// Package botauth implements the Telegram bot deep-link login.
//
// The browser calls Init and opens the deep-link; the bot backend, after the
// user presses Start, calls Confirm with the Telegram identity it observed.
// Confirm mints the token pair and pushes it on the bridge channel of the
// token, where the browser is subscribed. Status is a read-only fallback that
// never returns tokens.
package botauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/tgauth/internal/account"
	"github.com/iudanet/tgauth/internal/autherr"
	"github.com/iudanet/tgauth/internal/crypto"
	"github.com/iudanet/tgauth/internal/events"
	"github.com/iudanet/tgauth/internal/models"
	"github.com/iudanet/tgauth/internal/pubsub"
	"github.com/iudanet/tgauth/internal/server/storage"
	"github.com/iudanet/tgauth/internal/tokens"
)

// Значения по умолчанию
const (
	DefaultWindow     = 10 * time.Minute
	DefaultRetention  = 24 * time.Hour
	DefaultSweepBatch = 500

	// StartPrefix префикс параметра start в deep-link
	StartPrefix = "auth_"
)

// Config содержит параметры bot auth flow
type Config struct {
	Now    func() time.Time
	Random *crypto.TokenGenerator
	Logger *slog.Logger
	// BotURL ссылка на бота, например https://t.me/my_bot
	BotURL     string
	Window     time.Duration
	Retention  time.Duration
	SweepBatch int
}

// InitResult is returned to the browser that starts a bot login
type InitResult struct {
	ExpiresAt time.Time `json:"expires_at"`
	Token     string    `json:"token"`
	DeepLink  string    `json:"deeplink"`
}

// StatusResult is the polling view of a token
type StatusResult struct {
	User   *models.PublicProfile `json:"user,omitempty"`
	Status models.BotAuthStatus  `json:"status"`
}

// Flow is the bot auth state machine
type Flow struct {
	store  storage.Store
	issuer *tokens.Issuer
	bridge pubsub.Bridge
	events events.Publisher
	now    func() time.Time
	random *crypto.TokenGenerator
	logger *slog.Logger

	botURL    string
	window    time.Duration
	retention time.Duration
	batch     int
}

// New creates a Flow
func New(store storage.Store, issuer *tokens.Issuer, bridge pubsub.Bridge, publisher events.Publisher, cfg Config) *Flow {
	f := &Flow{
		store:     store,
		issuer:    issuer,
		bridge:    bridge,
		events:    publisher,
		now:       cfg.Now,
		random:    cfg.Random,
		logger:    cfg.Logger,
		botURL:    cfg.BotURL,
		window:    cfg.Window,
		retention: cfg.Retention,
		batch:     cfg.SweepBatch,
	}
	if f.now == nil {
		f.now = time.Now
	}
	if f.random == nil {
		f.random = crypto.NewTokenGenerator(nil)
	}
	if f.logger == nil {
		f.logger = slog.Default()
	}
	if f.window <= 0 {
		f.window = DefaultWindow
	}
	if f.retention <= 0 {
		f.retention = DefaultRetention
	}
	if f.batch <= 0 {
		f.batch = DefaultSweepBatch
	}
	return f
}

// ChannelName returns the bridge channel of a token. The raw token never
// leaves the process, only its hash
func ChannelName(token string) string {
	return "botauth:" + crypto.HashToken(token)
}

// Init creates a new PENDING token
func (f *Flow) Init(ctx context.Context) (*InitResult, error) {
	const op = "botauth.Init"

	token, err := f.random.Token()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := f.now()
	record := &models.BotAuthToken{
		ID:        uuid.New().String(),
		TokenHash: crypto.HashToken(token),
		Status:    models.BotAuthPending,
		ExpiresAt: now.Add(f.window),
		CreatedAt: now,
	}

	if err := f.store.SaveBotAuthToken(ctx, record); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &InitResult{
		Token:     token,
		DeepLink:  f.botURL + "?start=" + StartPrefix + token,
		ExpiresAt: record.ExpiresAt,
	}, nil
}

// Confirm binds a Telegram identity to a pending token, logs the user in and
// pushes the token pair to subscribers. Unknown, used and expired tokens all
// fail with TokenExpired
func (f *Flow) Confirm(ctx context.Context, token string, identity models.TelegramIdentity, device models.DeviceMeta) error {
	const op = "botauth.Confirm"
	log := f.logger.With(slog.String("op", op))

	if identity.ID <= 0 {
		return autherr.Validation("telegram id is required")
	}
	if token == "" {
		return autherr.ErrTokenExpired
	}

	hash := crypto.HashToken(token)
	now := f.now()

	var (
		result  *models.AuthResult
		user    *models.User
		created bool
	)

	err := account.InTx(ctx, f.store, func(repo storage.Repository) error {
		ok, err := repo.ConfirmBotAuthToken(ctx, hash, identity, now)
		if err != nil {
			return err
		}
		if !ok {
			return autherr.ErrTokenExpired
		}

		user, created, err = account.ResolveTelegramUser(ctx, repo, identity, now)
		if err != nil {
			return err
		}

		result, err = f.issuer.Issue(ctx, repo, user, device)
		if err != nil {
			return err
		}

		ok, err = repo.MarkBotAuthTokenUsed(ctx, hash, user.ID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("bot auth token changed state during confirmation")
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, autherr.ErrTokenExpired) {
			return err
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	log.InfoContext(ctx, "bot auth confirmed", slog.String("user_id", user.ID), slog.Bool("new_user", created))

	if created {
		f.publishRegistered(ctx, user)
	}

	payload, err := json.Marshal(result)
	if err != nil {
		log.ErrorContext(ctx, "failed to encode auth result", slog.Any("error", err))
		return nil
	}

	if err := f.bridge.Publish(ctx, ChannelName(token), payload); err != nil {
		// Клиент может получить статус через polling, но токены будут потеряны
		log.WarnContext(ctx, "failed to push auth result", slog.Any("error", err))
	}

	return nil
}

func (f *Flow) publishRegistered(ctx context.Context, user *models.User) {
	msg := events.Message{
		Purpose:        events.PurposeUserRegistered,
		UserID:         user.ID,
		FirstName:      user.FirstName,
		TelegramChatID: user.TelegramChatID,
	}
	if err := f.events.Publish(ctx, msg); err != nil {
		f.logger.WarnContext(ctx, "failed to publish user registered event",
			slog.String("user_id", user.ID),
			slog.Any("error", err),
		)
	}
}

// Status reports the state of token. For a resolved token it returns the
// user's public profile, never the tokens
func (f *Flow) Status(ctx context.Context, token string) (*StatusResult, error) {
	const op = "botauth.Status"

	record, err := f.store.GetBotAuthTokenByHash(ctx, crypto.HashToken(token))
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			return nil, autherr.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	res := &StatusResult{Status: record.EffectiveStatus(f.now())}

	if (res.Status == models.BotAuthConfirmed || res.Status == models.BotAuthUsed) && record.UserID != nil {
		user, err := f.store.GetUserByID(ctx, *record.UserID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		profile := user.Profile()
		res.User = &profile
	}

	return res, nil
}

// Subscribe opens a push subscription for token
func (f *Flow) Subscribe(ctx context.Context, token string) (pubsub.Subscription, error) {
	return f.bridge.Subscribe(ctx, ChannelName(token))
}

// Sweep deletes tokens that expired more than the retention window ago
func (f *Flow) Sweep(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-f.retention)

	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		n, err := f.store.DeleteExpiredBotAuthTokens(ctx, cutoff, f.batch)
		if err != nil {
			return total, fmt.Errorf("failed to sweep bot auth tokens: %w", err)
		}
		total += n

		if n < f.batch {
			return total, nil
		}
	}
}
