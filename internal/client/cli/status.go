package cli

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/iudanet/tgauth/internal/client/auth"
)

func (c *Cli) runStatus(ctx context.Context) error {
	c.io.Println("=== Authentication Status ===")
	c.io.Println()

	authData, err := c.session.Current(ctx)
	if errors.Is(err, auth.ErrNotLoggedIn) {
		c.io.Println("Status: Not authenticated")
		c.io.Println()
		c.io.Println("Run 'tgauth login' or 'tgauth bot-login' to authenticate.")
		return nil
	}
	if err != nil {
		return err
	}

	c.io.Println("Status: Authenticated")
	c.io.Printf("Method: %s\n", authData.Method)
	c.printSession(authData)

	remaining := time.Unix(authData.ExpiresAt, 0).Sub(c.now())
	if remaining > 0 {
		c.io.Printf("Time remaining: %s\n", remaining.Round(time.Second))
	} else {
		c.io.Println("⚠️  Access token has expired. Run 'tgauth refresh'.")
	}

	return nil
}

func (c *Cli) runSessions(ctx context.Context) error {
	n, err := c.session.SessionCount(ctx)
	if err != nil {
		return err
	}
	c.io.Printf("Active sessions: %d\n", n)
	return nil
}

func (c *Cli) runServers(ctx context.Context) error {
	servers, err := c.servers.Servers(ctx)
	if err != nil {
		return err
	}

	if len(servers) == 0 {
		c.io.Println("No saved sessions")
		return nil
	}

	sort.Strings(servers)
	for _, s := range servers {
		c.io.Println(s)
	}
	return nil
}
