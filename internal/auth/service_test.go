package auth

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/tgauth/internal/autherr"
	"github.com/iudanet/tgauth/internal/botauth"
	"github.com/iudanet/tgauth/internal/crypto"
	"github.com/iudanet/tgauth/internal/events"
	"github.com/iudanet/tgauth/internal/lockout"
	"github.com/iudanet/tgauth/internal/models"
	"github.com/iudanet/tgauth/internal/pubsub"
	"github.com/iudanet/tgauth/internal/server/jwt"
	"github.com/iudanet/tgauth/internal/server/storage/sqlite"
	"github.com/iudanet/tgauth/internal/session"
	"github.com/iudanet/tgauth/internal/telegram"
	"github.com/iudanet/tgauth/internal/tokens"
	"github.com/iudanet/tgauth/internal/verification"
)

const testBotToken = "123456:test-bot-token"

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// countingHasher считает сравнения паролей
type countingHasher struct {
	crypto.PasswordHasher
	matches atomic.Int32
}

func (h *countingHasher) Matches(password, hash string) bool {
	h.matches.Add(1)
	return h.PasswordHasher.Matches(password, hash)
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []events.Message
	err  error // если задана, сообщения не принимаются
}

func (p *recordingPublisher) Publish(_ context.Context, msg events.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *recordingPublisher) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *recordingPublisher) ByPurpose(purpose events.Purpose) []events.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Message
	for _, m := range p.msgs {
		if m.Purpose == purpose {
			out = append(out, m)
		}
	}
	return out
}

type fixture struct {
	svc       *Service
	clock     *testClock
	hasher    *countingHasher
	publisher *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	store, err := sqlite.New(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	clock := &testClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}

	signer, err := jwt.NewSigner(jwt.Config{Secret: []byte("test-secret")}, jwt.WithClock(clock.Now))
	require.NoError(t, err)

	sessions := session.NewRegistry(session.Config{Now: clock.Now})
	issuer := tokens.NewIssuer(signer, sessions, tokens.StaticMembership{TenantID: "acme"})
	publisher := &recordingPublisher{}
	bridge := pubsub.NewMemory(nil)
	t.Cleanup(func() { _ = bridge.Close() })

	hasher := &countingHasher{PasswordHasher: crypto.NewBcryptHasher(4)}

	svc, err := New(Deps{
		Store:        store,
		Hasher:       hasher,
		Signer:       signer,
		Sessions:     sessions,
		Issuer:       issuer,
		Telegram:     telegram.NewValidator(testBotToken, clock.Now),
		Bot:          botauth.New(store, issuer, bridge, publisher, botauth.Config{Now: clock.Now, BotURL: "https://t.me/test_bot"}),
		Verification: verification.New(verification.Config{Now: clock.Now}),
		Events:       publisher,
	}, Config{
		Now:       clock.Now,
		Lockout:   lockout.NewPolicy(5, 15*time.Minute),
		PublicURL: "https://app.example.com/",
	})
	require.NoError(t, err)

	return &fixture{svc: svc, clock: clock, hasher: hasher, publisher: publisher}
}

func (f *fixture) register(t *testing.T, email, password string) *models.AuthResult {
	t.Helper()
	res, err := f.svc.Register(context.Background(), RegisterInput{
		Email:     email,
		Password:  password,
		FirstName: "Alice",
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) login(email, password string) (*models.AuthResult, error) {
	return f.svc.Login(context.Background(), LoginInput{Email: email, Password: password})
}

func tokenFromLink(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	require.NoError(t, err)
	token := u.Query().Get("token")
	require.NotEmpty(t, token)
	return token
}

func signedWidget(id int64, now time.Time) telegram.WidgetData {
	d := telegram.WidgetData{
		ID:        id,
		FirstName: "Ivan",
		Username:  "ivan",
		AuthDate:  now.Unix(),
	}
	d.Hash = telegram.ComputeHash(testBotToken, telegram.DataCheckString(d))
	return d
}

func TestService_AliceScenario(t *testing.T) {
	f := newFixture(t)

	res := f.register(t, "alice@example.com", "Password123")
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, int64(15*60), res.ExpiresIn)
	require.NotNil(t, res.User.Email)
	assert.Equal(t, "alice@example.com", *res.User.Email)

	for i := 1; i <= 4; i++ {
		_, err := f.login("alice@example.com", "WrongPass1")
		require.ErrorIs(t, err, autherr.ErrInvalidCredentials, "attempt %d", i)
	}

	_, err := f.login("alice@example.com", "WrongPass1")
	require.ErrorIs(t, err, autherr.ErrAccountLocked)

	var locked *autherr.LockedError
	require.True(t, errors.As(err, &locked))
	assert.Equal(t, f.clock.Now().Add(15*time.Minute), locked.Until)

	// Во время блокировки пароль не сравнивается вовсе
	before := f.hasher.matches.Load()
	_, err = f.login("alice@example.com", "Password123")
	assert.ErrorIs(t, err, autherr.ErrAccountLocked)
	_, err = f.login("alice@example.com", "WrongPass1")
	assert.ErrorIs(t, err, autherr.ErrAccountLocked)
	assert.Equal(t, before, f.hasher.matches.Load())
}

func TestService_LockoutThreshold(t *testing.T) {
	for failures := 1; failures <= 7; failures++ {
		f := newFixture(t)
		f.register(t, "bob@example.com", "Password123")

		for i := 0; i < failures; i++ {
			_, _ = f.login("bob@example.com", "WrongPass1")
		}

		_, err := f.login("bob@example.com", "Password123")
		if failures >= 5 {
			assert.ErrorIs(t, err, autherr.ErrAccountLocked, "failures=%d", failures)
		} else {
			assert.NoError(t, err, "failures=%d", failures)
		}
	}
}

func TestService_LockExpiresLazily(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice@example.com", "Password123")

	for i := 0; i < 5; i++ {
		_, _ = f.login("alice@example.com", "WrongPass1")
	}

	f.clock.Advance(15*time.Minute + time.Second)

	// Счётчик сброшен: одна ошибка не блокирует снова
	_, err := f.login("alice@example.com", "WrongPass1")
	assert.ErrorIs(t, err, autherr.ErrInvalidCredentials)

	res, err := f.login("alice@example.com", "Password123")
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
}

func TestService_LoginUnknownEmail(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice@example.com", "Password123")

	before := f.hasher.matches.Load()

	_, errUnknown := f.login("nobody@example.com", "Password123")
	_, errWrong := f.login("alice@example.com", "WrongPass1")

	assert.ErrorIs(t, errUnknown, autherr.ErrInvalidCredentials)
	assert.ErrorIs(t, errWrong, autherr.ErrInvalidCredentials)
	assert.Equal(t, errWrong.Error(), errUnknown.Error())
	// Одинаковая работа: по одному сравнению на попытку
	assert.Equal(t, before+2, f.hasher.matches.Load())
}

func TestService_LoginNormalizesEmail(t *testing.T) {
	f := newFixture(t)
	f.register(t, "Alice@Example.com", "Password123")

	_, err := f.login("  ALICE@example.COM ", "Password123")
	assert.NoError(t, err)
}

func TestService_RegisterErrors(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice@example.com", "Password123")

	tests := []struct {
		name    string
		input   RegisterInput
		wantErr error
	}{
		{
			name:    "duplicate email",
			input:   RegisterInput{Email: "ALICE@example.com", Password: "Password123", FirstName: "A"},
			wantErr: autherr.ErrEmailAlreadyExists,
		},
		{
			name:    "weak password",
			input:   RegisterInput{Email: "new@example.com", Password: "short1", FirstName: "A"},
			wantErr: autherr.ErrWeakPassword,
		},
		{
			name:    "password without digit",
			input:   RegisterInput{Email: "new@example.com", Password: "Passwordxx", FirstName: "A"},
			wantErr: autherr.ErrWeakPassword,
		},
		{
			name:    "bad email",
			input:   RegisterInput{Email: "not-an-email", Password: "Password123", FirstName: "A"},
			wantErr: autherr.ErrValidation,
		},
		{
			name:    "missing first name",
			input:   RegisterInput{Email: "new@example.com", Password: "Password123"},
			wantErr: autherr.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Register(context.Background(), tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestService_RefreshOneTimeUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.register(t, "alice@example.com", "Password123")

	next, err := f.svc.Refresh(ctx, res.RefreshToken, models.DeviceMeta{})
	require.NoError(t, err)
	assert.NotEqual(t, res.RefreshToken, next.RefreshToken)

	_, err = f.svc.Refresh(ctx, res.RefreshToken, models.DeviceMeta{})
	assert.ErrorIs(t, err, autherr.ErrInvalidCredentials)

	_, err = f.svc.Refresh(ctx, next.RefreshToken, models.DeviceMeta{})
	assert.NoError(t, err)
}

func TestService_RefreshConcurrentSingleWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.register(t, "alice@example.com", "Password123")

	const workers = 10
	var (
		wg      sync.WaitGroup
		wins    atomic.Int32
		invalid atomic.Int32
	)

	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.svc.Refresh(ctx, res.RefreshToken, models.DeviceMeta{})
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, autherr.ErrInvalidCredentials):
				invalid.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(workers-1), invalid.Load())
}

func TestService_RefreshRejectsGarbage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.register(t, "alice@example.com", "Password123")

	for _, raw := range []string{"", "garbage", res.AccessToken} {
		_, err := f.svc.Refresh(ctx, raw, models.DeviceMeta{})
		assert.ErrorIs(t, err, autherr.ErrInvalidCredentials)
	}
}

func TestService_LogoutAndLogoutAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.register(t, "alice@example.com", "Password123")
	second, err := f.login("alice@example.com", "Password123")
	require.NoError(t, err)
	third, err := f.login("alice@example.com", "Password123")
	require.NoError(t, err)

	count, err := f.svc.CountActiveSessions(ctx, first.User.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	require.NoError(t, f.svc.Logout(ctx, first.RefreshToken))
	require.NoError(t, f.svc.Logout(ctx, first.RefreshToken))
	require.NoError(t, f.svc.Logout(ctx, "unknown"))

	_, err = f.svc.Refresh(ctx, first.RefreshToken, models.DeviceMeta{})
	assert.ErrorIs(t, err, autherr.ErrInvalidCredentials)

	count, err = f.svc.CountActiveSessions(ctx, first.User.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, f.svc.LogoutAll(ctx, second.RefreshToken))
	require.NoError(t, f.svc.LogoutAll(ctx, second.RefreshToken))
	require.NoError(t, f.svc.LogoutAll(ctx, "unknown"))

	count, err = f.svc.CountActiveSessions(ctx, first.User.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = f.svc.Refresh(ctx, third.RefreshToken, models.DeviceMeta{})
	assert.ErrorIs(t, err, autherr.ErrInvalidCredentials)
}

func TestService_SessionCap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.register(t, "alice@example.com", "Password123")
	for i := 0; i < 10; i++ {
		f.clock.Advance(time.Second)
		_, err := f.login("alice@example.com", "Password123")
		require.NoError(t, err)
	}

	count, err := f.svc.CountActiveSessions(ctx, first.User.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, count)

	// Самая старая сессия вытеснена
	_, err = f.svc.Refresh(ctx, first.RefreshToken, models.DeviceMeta{})
	assert.ErrorIs(t, err, autherr.ErrInvalidCredentials)
}

func TestService_TelegramAuth(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.TelegramAuth(ctx, signedWidget(42, f.clock.Now()), models.DeviceMeta{})
	require.NoError(t, err)
	require.NotNil(t, res.User.TelegramID)
	assert.Equal(t, int64(42), *res.User.TelegramID)
	assert.Nil(t, res.User.Email)

	again, err := f.svc.TelegramAuth(ctx, signedWidget(42, f.clock.Now()), models.DeviceMeta{})
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, again.User.ID)

	assert.Len(t, f.publisher.ByPurpose(events.PurposeUserRegistered), 1)

	tampered := signedWidget(42, f.clock.Now())
	tampered.FirstName = "Mallory"
	_, err = f.svc.TelegramAuth(ctx, tampered, models.DeviceMeta{})
	assert.ErrorIs(t, err, autherr.ErrInvalidTelegramAuth)

	stale := signedWidget(42, f.clock.Now().Add(-2*time.Hour))
	_, err = f.svc.TelegramAuth(ctx, stale, models.DeviceMeta{})
	assert.ErrorIs(t, err, autherr.ErrInvalidTelegramAuth)
}

func TestService_TelegramLink(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alice := f.register(t, "alice@example.com", "Password123")
	bob := f.register(t, "bob@example.com", "Password123")

	res, err := f.svc.TelegramLink(ctx, alice.User.ID, signedWidget(42, f.clock.Now()), models.DeviceMeta{})
	require.NoError(t, err)
	require.NotNil(t, res.User.TelegramID)
	assert.Equal(t, int64(42), *res.User.TelegramID)
	require.NotNil(t, res.User.TelegramUsername)
	assert.Equal(t, "ivan", *res.User.TelegramUsername)

	// Повторная привязка того же аккаунта допустима
	_, err = f.svc.TelegramLink(ctx, alice.User.ID, signedWidget(42, f.clock.Now()), models.DeviceMeta{})
	require.NoError(t, err)

	_, err = f.svc.TelegramLink(ctx, bob.User.ID, signedWidget(42, f.clock.Now()), models.DeviceMeta{})
	assert.ErrorIs(t, err, autherr.ErrTelegramIDAlreadyExists)

	// Вход через виджет попадает в привязанный аккаунт
	login, err := f.svc.TelegramAuth(ctx, signedWidget(42, f.clock.Now()), models.DeviceMeta{})
	require.NoError(t, err)
	assert.Equal(t, alice.User.ID, login.User.ID)
}

func TestService_BotAuth(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	started, err := f.svc.BotAuthInit(ctx)
	require.NoError(t, err)

	status, err := f.svc.BotAuthStatus(ctx, started.Token)
	require.NoError(t, err)
	assert.Equal(t, models.BotAuthPending, status.Status)

	sub, err := f.svc.BotAuthSubscribe(ctx, started.Token)
	require.NoError(t, err)
	defer sub.Close()

	identity := models.TelegramIdentity{ID: 7, FirstName: "Bot", ChatID: models.Int64Ptr(7)}
	require.NoError(t, f.svc.BotAuthConfirm(ctx, started.Token, identity, models.DeviceMeta{}))

	select {
	case msg := <-sub.C():
		assert.Contains(t, string(msg), "refresh_token")
	case <-time.After(2 * time.Second):
		t.Fatal("auth payload was not pushed")
	}

	err = f.svc.BotAuthConfirm(ctx, started.Token, identity, models.DeviceMeta{})
	assert.ErrorIs(t, err, autherr.ErrTokenExpired)

	_, err = f.svc.BotAuthStatus(ctx, "unknown")
	assert.ErrorIs(t, err, autherr.ErrNotFound)
}

func TestService_EmailVerification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.register(t, "alice@example.com", "Password123")
	assert.False(t, res.User.EmailVerified)

	sent := f.publisher.ByPurpose(events.PurposeEmailVerification)
	require.Len(t, sent, 1)
	assert.Equal(t, "alice@example.com", sent[0].Email)
	assert.Contains(t, sent[0].Link, "https://app.example.com"+VerifyEmailPath+"?token=")

	profile, err := f.svc.VerifyEmail(ctx, tokenFromLink(t, sent[0].Link))
	require.NoError(t, err)
	assert.True(t, profile.EmailVerified)

	_, err = f.svc.VerifyEmail(ctx, tokenFromLink(t, sent[0].Link))
	assert.ErrorIs(t, err, autherr.ErrInvalidToken)

	// Уже подтверждённый и неизвестный адреса: тихий успех без событий
	require.NoError(t, f.svc.RequestEmailVerification(ctx, "alice@example.com"))
	require.NoError(t, f.svc.RequestEmailVerification(ctx, "nobody@example.com"))
	require.NoError(t, f.svc.RequestEmailVerification(ctx, "garbage"))
	assert.Len(t, f.publisher.ByPurpose(events.PurposeEmailVerification), 1)
}

func TestService_EmailVerificationRateLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Первый токен выпущен при регистрации
	f.register(t, "alice@example.com", "Password123")

	require.NoError(t, f.svc.RequestEmailVerification(ctx, "alice@example.com"))
	require.NoError(t, f.svc.RequestEmailVerification(ctx, "alice@example.com"))

	err := f.svc.RequestEmailVerification(ctx, "alice@example.com")
	assert.ErrorIs(t, err, autherr.ErrTooManyRequests)

	// Выдан только последний токен, предыдущие инвалидированы
	sent := f.publisher.ByPurpose(events.PurposeEmailVerification)
	require.Len(t, sent, 3)
	_, err = f.svc.VerifyEmail(ctx, tokenFromLink(t, sent[0].Link))
	assert.ErrorIs(t, err, autherr.ErrInvalidToken)
	_, err = f.svc.VerifyEmail(ctx, tokenFromLink(t, sent[2].Link))
	assert.NoError(t, err)
}

func TestService_PasswordResetRevokesSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := f.register(t, "alice@example.com", "Password123")
	_, err := f.login("alice@example.com", "Password123")
	require.NoError(t, err)

	// Блокировка снимается сбросом пароля
	for i := 0; i < 5; i++ {
		_, _ = f.login("alice@example.com", "WrongPass1")
	}

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "nobody@example.com"))
	require.Empty(t, f.publisher.ByPurpose(events.PurposePasswordReset))

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "alice@example.com"))
	sent := f.publisher.ByPurpose(events.PurposePasswordReset)
	require.Len(t, sent, 1)
	token := tokenFromLink(t, sent[0].Link)

	err = f.svc.ResetPassword(ctx, token, "weak")
	require.ErrorIs(t, err, autherr.ErrWeakPassword)

	require.NoError(t, f.svc.ResetPassword(ctx, token, "NewPassword456"))

	count, err := f.svc.CountActiveSessions(ctx, res.User.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = f.login("alice@example.com", "Password123")
	assert.ErrorIs(t, err, autherr.ErrInvalidCredentials)

	_, err = f.login("alice@example.com", "NewPassword456")
	assert.NoError(t, err)

	err = f.svc.ResetPassword(ctx, token, "AnotherPass789")
	assert.ErrorIs(t, err, autherr.ErrInvalidToken)
}

func TestService_Sweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.register(t, "alice@example.com", "Password123")
	_, err := f.svc.BotAuthInit(ctx)
	require.NoError(t, err)

	res, err := f.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Total())

	f.clock.Advance(8 * 24 * time.Hour)

	res, err = f.svc.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sessions)
	assert.Equal(t, 1, res.BotAuth)
	assert.Equal(t, 1, res.Verification)
}

func TestService_LongPasswords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 100 символов кириллицей: 200 байт, больше предела bcrypt
	long := strings.Repeat("пароль", 16) + "1234"
	require.Equal(t, 100, utf8.RuneCountInString(long))

	res := f.register(t, "bob@example.com", long)
	assert.NotEmpty(t, res.AccessToken)

	_, err := f.login("bob@example.com", long)
	require.NoError(t, err)

	// Совпадающие первые 72 байта не дают войти
	_, err = f.login("bob@example.com", strings.Repeat("пароль", 16)+"1235")
	assert.ErrorIs(t, err, autherr.ErrInvalidCredentials)

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "bob@example.com"))
	sent := f.publisher.ByPurpose(events.PurposePasswordReset)
	require.Len(t, sent, 1)

	next := strings.Repeat("a1", 50)
	require.NoError(t, f.svc.ResetPassword(ctx, tokenFromLink(t, sent[0].Link), next))
	_, err = f.login("bob@example.com", next)
	assert.NoError(t, err)
}

func TestService_LinkRequestsIgnorePublishFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.register(t, "alice@example.com", "Password123")
	f.publisher.Fail(errors.New("broker is down"))

	// Ответ для известного адреса не отличается от неизвестного
	for _, email := range []string{"alice@example.com", "nobody@example.com"} {
		assert.NoError(t, f.svc.RequestEmailVerification(ctx, email), email)
		assert.NoError(t, f.svc.RequestPasswordReset(ctx, email), email)
	}
}

func TestService_LinkRateLimitUnderConcurrency(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Регистрация уже выпустила один токен из трёх
	f.register(t, "alice@example.com", "Password123")

	const workers = 10
	var (
		wg      sync.WaitGroup
		ok      atomic.Int32
		limited atomic.Int32
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := f.svc.RequestEmailVerification(ctx, "alice@example.com")
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, autherr.ErrTooManyRequests):
				limited.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(2), ok.Load())
	assert.Equal(t, int32(workers-2), limited.Load())
	assert.Len(t, f.publisher.ByPurpose(events.PurposeEmailVerification), 3)
}
