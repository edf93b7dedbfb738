package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/iudanet/tgauth/internal/client/api"
)

func (c *Cli) runLogin(ctx context.Context, args []string) error {
	c.io.Println("=== Login ===")
	c.io.Println()

	email, err := c.argOrInput(args, "Email: ")
	if err != nil {
		return err
	}

	password, err := c.getPassword("Password: ")
	if err != nil {
		return err
	}

	c.io.Println()
	c.io.Println("Authenticating...")

	authData, err := c.session.Login(ctx, email, password)
	if err != nil {
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.LockedUntil != nil {
			return fmt.Errorf("account is locked until %s", apiErr.LockedUntil.Local().Format("15:04:05"))
		}
		return err
	}

	c.io.Println()
	c.io.Println("✓ Login successful!")
	c.printSession(authData)

	return nil
}

func (c *Cli) runBotLogin(ctx context.Context) error {
	c.io.Println("=== Telegram Login ===")
	c.io.Println()

	authData, err := c.session.BotLogin(ctx, func(deepLink string) {
		c.io.Println("Open this link in Telegram and press Start:")
		c.io.Println()
		c.io.Printf("  %s\n", deepLink)
		c.io.Println()
		c.io.Println("Waiting for confirmation...")
	})
	if err != nil {
		return err
	}

	c.io.Println()
	c.io.Println("✓ Login successful!")
	c.printSession(authData)

	return nil
}

func (c *Cli) runRefresh(ctx context.Context) error {
	authData, err := c.session.Refresh(ctx)
	if err != nil {
		return err
	}

	c.io.Println("✓ Tokens refreshed")
	c.printSession(authData)
	return nil
}
