package cli

import (
	"context"
	"fmt"
)

// Run выполняет команду. args не содержит имя команды
func (c *Cli) Run(ctx context.Context, command string, args []string) error {
	switch command {
	case "register":
		return c.runRegister(ctx, args)
	case "login":
		return c.runLogin(ctx, args)
	case "bot-login":
		return c.runBotLogin(ctx)
	case "refresh":
		return c.runRefresh(ctx)
	case "logout":
		return c.runLogout(ctx, false)
	case "logout-all":
		return c.runLogout(ctx, true)
	case "status":
		return c.runStatus(ctx)
	case "sessions":
		return c.runSessions(ctx)
	case "servers":
		return c.runServers(ctx)
	case "verify-resend":
		return c.runResendVerification(ctx, args)
	case "verify":
		return c.runVerify(ctx, args)
	case "forgot-password":
		return c.runForgotPassword(ctx, args)
	case "reset-password":
		return c.runResetPassword(ctx, args)
	default:
		PrintUsage(c.io)
		return fmt.Errorf("unknown command: %s", command)
	}
}
