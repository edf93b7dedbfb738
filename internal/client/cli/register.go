package cli

import "context"

func (c *Cli) runRegister(ctx context.Context, args []string) error {
	c.io.Println("=== Registration ===")
	c.io.Println()

	email, err := c.argOrInput(args, "Email: ")
	if err != nil {
		return err
	}

	firstName, err := c.argOrInput(nil, "First name: ")
	if err != nil {
		return err
	}

	password, err := c.getPassword("Password: ")
	if err != nil {
		return err
	}

	c.io.Println()
	c.io.Println("Registering...")

	authData, err := c.session.Register(ctx, email, password, firstName)
	if err != nil {
		return err
	}

	c.io.Println()
	c.io.Println("✓ Registration successful!")
	c.printSession(authData)
	c.io.Println()
	c.io.Println("Check your inbox to verify the email address.")

	return nil
}
