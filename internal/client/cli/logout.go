package cli

import "context"

func (c *Cli) runLogout(ctx context.Context, all bool) error {
	if all {
		if err := c.session.LogoutAll(ctx); err != nil {
			return err
		}
		c.io.Println("✓ Logged out from all devices")
		return nil
	}

	if err := c.session.Logout(ctx); err != nil {
		return err
	}
	c.io.Println("✓ Logged out")
	return nil
}
