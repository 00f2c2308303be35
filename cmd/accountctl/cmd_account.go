package main

import (
	"context"
	"fmt"

	"github.com/getkayan/accountguard"
)

// ---- Account Commands ----

func (c *CLI) register(ctx context.Context, svc *accountguard.Service, opts map[string]string, pos []string) error {
	if err := requireOpts(opts, "name", "email"); err != nil {
		return fmt.Errorf("usage: accountctl register --name=NAME --email=EMAIL [--password=PWD]: %w", err)
	}
	pw, err := c.password(opts, "Password: ")
	if err != nil {
		return err
	}

	u, err := svc.Register(ctx, opts["name"], opts["email"], pw)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "Registered %s (%s). Check the verification token.\n", u.Email, u.ID)
	return nil
}

func (c *CLI) login(ctx context.Context, svc *accountguard.Service, opts map[string]string, pos []string) error {
	if err := requireOpts(opts, "email"); err != nil {
		return fmt.Errorf("usage: accountctl login --email=EMAIL [--password=PWD]: %w", err)
	}
	pw, err := c.password(opts, "Password: ")
	if err != nil {
		return err
	}
	source := opts["source"]
	if source == "" {
		source = "cli"
	}

	u, err := svc.Login(ctx, opts["email"], pw, source)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "Logged in as %s\n", u.Email)
	return nil
}

func (c *CLI) logout(ctx context.Context, svc *accountguard.Service, opts map[string]string, pos []string) error {
	u, ok := svc.CurrentUser(ctx)
	svc.Logout(ctx)
	if !ok {
		fmt.Fprintln(c.Out, "Not logged in")
		return nil
	}
	fmt.Fprintf(c.Out, "Logged out %s\n", u.Email)
	return nil
}

func (c *CLI) whoami(ctx context.Context, svc *accountguard.Service, opts map[string]string, pos []string) error {
	u, ok := svc.CurrentUser(ctx)
	if !ok {
		fmt.Fprintln(c.Out, "Not logged in")
		return nil
	}
	fmt.Fprintf(c.Out, "ID:       %s\n", u.ID)
	fmt.Fprintf(c.Out, "Name:     %s\n", u.Name)
	fmt.Fprintf(c.Out, "Email:    %s\n", u.Email)
	fmt.Fprintf(c.Out, "Verified: %t\n", u.EmailVerified)
	return nil
}

func (c *CLI) verify(ctx context.Context, svc *accountguard.Service, opts map[string]string, pos []string) error {
	if len(pos) < 1 {
		return fmt.Errorf("usage: accountctl verify <token>")
	}
	u, err := svc.VerifyEmail(ctx, pos[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "Verified %s\n", u.Email)
	return nil
}

func (c *CLI) resend(ctx context.Context, svc *accountguard.Service, opts map[string]string, pos []string) error {
	if err := svc.ResendVerificationEmail(ctx); err != nil {
		return err
	}
	fmt.Fprintln(c.Out, "Verification token sent")
	return nil
}

func (c *CLI) forgot(ctx context.Context, svc *accountguard.Service, opts map[string]string, pos []string) error {
	if err := requireOpts(opts, "email"); err != nil {
		return fmt.Errorf("usage: accountctl forgot --email=EMAIL: %w", err)
	}
	if err := svc.RequestPasswordReset(ctx, opts["email"]); err != nil {
		return err
	}
	fmt.Fprintln(c.Out, "If the account exists, a reset token has been sent")
	return nil
}

func (c *CLI) reset(ctx context.Context, svc *accountguard.Service, opts map[string]string, pos []string) error {
	if len(pos) < 1 {
		return fmt.Errorf("usage: accountctl reset <token> [--password=PWD]")
	}
	pw, err := c.password(opts, "New password: ")
	if err != nil {
		return err
	}
	if err := svc.ResetPassword(ctx, pos[0], pw); err != nil {
		return err
	}
	fmt.Fprintln(c.Out, "Password updated")
	return nil
}
