package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/iudanet/tgauth/internal/client/api"
)

func (c *Cli) runResendVerification(ctx context.Context, args []string) error {
	email, err := c.argOrInput(args, "Email: ")
	if err != nil {
		return err
	}

	msg, err := c.account.ResendVerification(ctx, email)
	if err != nil {
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
			return fmt.Errorf("too many requests, try again in %s", apiErr.RetryAfter)
		}
		return err
	}

	c.io.Println(msg)
	return nil
}

func (c *Cli) runVerify(ctx context.Context, args []string) error {
	token, err := c.argOrInput(args, "Token: ")
	if err != nil {
		return err
	}

	user, err := c.account.VerifyEmail(ctx, token)
	if err != nil {
		return err
	}

	if user.Email != nil {
		c.io.Printf("✓ Email %s verified\n", *user.Email)
	} else {
		c.io.Println("✓ Email verified")
	}
	return nil
}

func (c *Cli) runForgotPassword(ctx context.Context, args []string) error {
	email, err := c.argOrInput(args, "Email: ")
	if err != nil {
		return err
	}

	msg, err := c.account.ForgotPassword(ctx, email)
	if err != nil {
		return err
	}

	c.io.Println(msg)
	return nil
}

func (c *Cli) runResetPassword(ctx context.Context, args []string) error {
	token, err := c.argOrInput(args, "Token: ")
	if err != nil {
		return err
	}

	password, err := c.getPassword("New password: ")
	if err != nil {
		return err
	}

	if err := c.account.ResetPassword(ctx, token, password); err != nil {
		return err
	}

	c.io.Println("✓ Password changed. All sessions were logged out, please login again.")
	return nil
}
