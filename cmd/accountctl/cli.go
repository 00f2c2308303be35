package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/getkayan/accountguard"
	"github.com/getkayan/accountguard/core/config"
	"github.com/getkayan/accountguard/core/domain"
	"go.uber.org/zap"
	"golang.org/x/term"
)

var errUnknownCommand = errors.New("unknown command")

// CLI runs one command against the configured backend.
type CLI struct {
	Config *config.Config
	Out    io.Writer
	Logger *zap.Logger

	// ReadPassword prompts for a secret. Commands fall back to it when no
	// --password option is given.
	ReadPassword func(prompt string) (string, error)

	// Options are appended to the service options, for tests.
	Options []accountguard.Option
}

// Run dispatches cmd. Each call opens the service and closes it again, so
// printed tokens are flushed before Run returns.
func (c *CLI) Run(cmd string, args []string) error {
	var fn func(ctx context.Context, svc *accountguard.Service, opts map[string]string, pos []string) error
	switch cmd {
	case "register":
		fn = c.register
	case "login":
		fn = c.login
	case "logout":
		fn = c.logout
	case "whoami":
		fn = c.whoami
	case "verify":
		fn = c.verify
	case "resend":
		fn = c.resend
	case "forgot":
		fn = c.forgot
	case "reset":
		fn = c.reset
	case "status":
		fn = c.status
	case "sweep":
		fn = c.sweep
	case "audit":
		fn = c.auditCommand
	default:
		return errUnknownCommand
	}

	ctx := context.Background()
	opts, pos := parseArgs(args)

	svcOpts := []accountguard.Option{
		accountguard.WithNotifier(&printNotifier{out: c.Out}),
		accountguard.WithLogger(c.Logger),
	}
	svc, err := accountguard.New(ctx, c.Config, append(svcOpts, c.Options...)...)
	if err != nil {
		return err
	}

	runErr := fn(ctx, svc, opts, pos)
	return errors.Join(runErr, svc.Close(ctx))
}

func (c *CLI) password(opts map[string]string, prompt string) (string, error) {
	if p, ok := opts["password"]; ok {
		return p, nil
	}
	if c.ReadPassword == nil {
		return "", fmt.Errorf("--password is required")
	}
	return c.ReadPassword(prompt)
}

func terminalPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	defer fmt.Fprintln(os.Stderr)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// parseArgs splits --key=value options from positional arguments. A bare
// --flag is recorded as "true".
func parseArgs(args []string) (map[string]string, []string) {
	opts := make(map[string]string)
	var pos []string
	for _, arg := range args {
		if strings.HasPrefix(arg, "--") {
			parts := strings.SplitN(strings.TrimPrefix(arg, "--"), "=", 2)
			if len(parts) == 2 {
				opts[parts[0]] = parts[1]
			} else {
				opts[parts[0]] = "true"
			}
			continue
		}
		pos = append(pos, arg)
	}
	return opts, pos
}

func requireOpts(opts map[string]string, keys ...string) error {
	var missing []string
	for _, k := range keys {
		if opts[k] == "" {
			missing = append(missing, "--"+k)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// printNotifier writes tokens to the operator's terminal.
type printNotifier struct {
	mu  sync.Mutex
	out io.Writer
}

func (n *printNotifier) SendVerification(ctx context.Context, email, token string) error {
	return n.print(domain.TokenVerification, email, token)
}

func (n *printNotifier) SendPasswordReset(ctx context.Context, email, token string) error {
	return n.print(domain.TokenPasswordReset, email, token)
}

func (n *printNotifier) print(kind domain.TokenKind, email, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, err := fmt.Fprintf(n.out, "%s token for %s: %s\n", kind, email, token)
	return err
}
