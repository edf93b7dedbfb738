// Package cli implements the commands of the tgauth client.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/iudanet/tgauth/internal/client/iocli"
	"github.com/iudanet/tgauth/internal/client/storage"
	pkgapi "github.com/iudanet/tgauth/pkg/api"
)

// PasswordEnv переменная окружения с паролем
const PasswordEnv = "TGAUTH_PASSWORD"

type Passwords struct {
	FromFile string
	FromArgs string
}

// Session is the local session service (internal/client/auth.Service)
type Session interface {
	Register(ctx context.Context, email, password, firstName string) (*storage.AuthData, error)
	Login(ctx context.Context, email, password string) (*storage.AuthData, error)
	BotLogin(ctx context.Context, onLink func(deepLink string)) (*storage.AuthData, error)
	Refresh(ctx context.Context) (*storage.AuthData, error)
	Logout(ctx context.Context) error
	LogoutAll(ctx context.Context) error
	Current(ctx context.Context) (*storage.AuthData, error)
	SessionCount(ctx context.Context) (int, error)
}

// Account covers the email flows that need no session (api.Client)
type Account interface {
	ResendVerification(ctx context.Context, email string) (string, error)
	VerifyEmail(ctx context.Context, token string) (*pkgapi.UserProfile, error)
	ForgotPassword(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, token, newPassword string) error
}

// ServerList lists the servers with a saved session (boltdb.Storage)
type ServerList interface {
	Servers(ctx context.Context) ([]string, error)
}

type Cli struct {
	io        iocli.IO
	session   Session
	account   Account
	servers   ServerList
	now       func() time.Time
	passwords Passwords
}

func New(io iocli.IO, session Session, account Account, servers ServerList, passwords Passwords) *Cli {
	return &Cli{
		io:        io,
		session:   session,
		account:   account,
		servers:   servers,
		passwords: passwords,
		now:       time.Now,
	}
}

// getPassword retrieves password from various sources with priority:
// 1. Environment variable TGAUTH_PASSWORD
// 2. File specified in Passwords.FromFile
// 3. Command-line parameter
// 4. Interactive prompt (fallback)
func (c *Cli) getPassword(prompt string) (string, error) {
	// Priority 1: Environment variable
	if envPassword := os.Getenv(PasswordEnv); envPassword != "" {
		return envPassword, nil
	}

	// Priority 2: File
	if c.passwords.FromFile != "" {
		content, err := os.ReadFile(c.passwords.FromFile)
		if err != nil {
			return "", fmt.Errorf("failed to read password file: %w", err)
		}
		// Убираем trailing newline/whitespace
		password := strings.TrimSpace(string(content))
		if password == "" {
			return "", fmt.Errorf("password file is empty")
		}
		return password, nil
	}

	// Priority 3: CLI parameter
	if c.passwords.FromArgs != "" {
		return c.passwords.FromArgs, nil
	}

	// Priority 4: Interactive prompt (fallback)
	password, err := c.io.ReadPassword(prompt)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}

	return password, nil
}

// argOrInput берёт первый аргумент команды или спрашивает значение
func (c *Cli) argOrInput(args []string, prompt string) (string, error) {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return strings.TrimSpace(args[0]), nil
	}
	value, err := c.io.ReadInput(prompt)
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	if value == "" {
		return "", errors.New(strings.TrimSuffix(strings.TrimSpace(prompt), ":") + " cannot be empty")
	}
	return value, nil
}

func (c *Cli) printSession(authData *storage.AuthData) {
	switch {
	case authData.Email != "":
		c.io.Printf("User: %s <%s>\n", authData.FirstName, authData.Email)
	case authData.TelegramID != nil:
		c.io.Printf("User: %s (telegram %d)\n", authData.FirstName, *authData.TelegramID)
	default:
		c.io.Printf("User: %s\n", authData.FirstName)
	}
	c.io.Printf("User ID: %s\n", authData.UserID)
	if authData.Server != "" {
		c.io.Printf("Server: %s\n", authData.Server)
	}

	expiresAt := time.Unix(authData.ExpiresAt, 0)
	c.io.Printf("Access token expires: %s\n", expiresAt.UTC().Format(time.RFC3339))
}

func PrintUsage(io iocli.IO) {
	io.Println("tgauth client")
	io.Println()
	io.Println("Usage:")
	io.Println("  tgauth [OPTIONS] COMMAND [ARGS]")
	io.Println()
	io.Println("Options:")
	io.Println("  --version               Show version information")
	io.Println("  --server URL            Server URL (default: http://localhost:8080)")
	io.Println("  --db PATH               Path to local database (default: tgauth-client.db)")
	io.Println("  --password PASSWORD     Password (not recommended, use env var or file)")
	io.Println("  --password-file PATH    Path to file containing password")
	io.Println()
	io.Println("Password Priority (highest to lowest):")
	io.Println("  1. TGAUTH_PASSWORD environment variable")
	io.Println("  2. --password-file (file path)")
	io.Println("  3. --password (command line)")
	io.Println("  4. Interactive prompt (fallback)")
	io.Println()
	io.Println("Commands:")
	io.Println("  register [email]        Register with email and password")
	io.Println("  login [email]           Login with email and password")
	io.Println("  bot-login               Login through the Telegram bot")
	io.Println("  refresh                 Rotate the stored token pair")
	io.Println("  logout                  Logout this device")
	io.Println("  logout-all              Logout all devices")
	io.Println("  status                  Show the stored session")
	io.Println("  sessions                Show the number of active sessions")
	io.Println("  servers                 List servers with a saved session")
	io.Println("  verify-resend [email]   Send the verification email again")
	io.Println("  verify <token>          Verify email with a token from the email")
	io.Println("  forgot-password [email] Request a password reset email")
	io.Println("  reset-password <token>  Set a new password with a reset token")
	io.Println()
	io.Println("Examples:")
	io.Println("  tgauth register alice@example.com")
	io.Println("  TGAUTH_PASSWORD='Secret123' tgauth login alice@example.com")
	io.Println("  tgauth bot-login")
	io.Println("  tgauth --server https://auth.example.com sessions")
}
