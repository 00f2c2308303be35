package main

import (
	"bytes"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/getkayan/accountguard/core/config"
	"github.com/getkayan/accountguard/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type harness struct {
	t   *testing.T
	cli *CLI
	out *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := config.Default()
	cfg.StoreType = "sqlite"
	cfg.DSN = filepath.Join(t.TempDir(), "accountctl.db")
	cfg.BcryptCost = bcrypt.MinCost
	cfg.MaxAttempts = 2
	cfg.LockoutDuration = time.Hour
	cfg.TelemetryEnabled = false

	out := &bytes.Buffer{}
	return &harness{
		t:   t,
		out: out,
		cli: &CLI{
			Config: cfg,
			Out:    out,
			Logger: zap.NewNop(),
		},
	}
}

// run executes one command and returns what it printed.
func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	h.out.Reset()
	err := h.cli.Run(args[0], args[1:])
	return h.out.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run(args...)
	require.NoError(h.t, err, out)
	return out
}

func tokenFrom(t *testing.T, out string, kind domain.TokenKind, email string) string {
	t.Helper()
	re := regexp.MustCompile(regexp.QuoteMeta(string(kind)+" token for "+email+": ") + `(\S+)`)
	m := re.FindStringSubmatch(out)
	require.NotNil(t, m, "no %s token in output %q", kind, out)
	return m[1]
}

func TestCLI_RegisterVerifyLogin(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun("register", "--name=Ana", "--email=a@b.com", "--password=Str0ng!Pass")
	assert.Contains(t, out, "Registered a@b.com")
	tok := tokenFrom(t, out, domain.TokenVerification, "a@b.com")

	out = h.mustRun("whoami")
	assert.Contains(t, out, "Email:    a@b.com")
	assert.Contains(t, out, "Verified: false")

	out = h.mustRun("verify", tok)
	assert.Contains(t, out, "Verified a@b.com")

	_, err := h.run("verify", tok)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	_, err = h.run("resend")
	assert.ErrorIs(t, err, domain.ErrAlreadyVerified)

	assert.Contains(t, h.mustRun("logout"), "Logged out a@b.com")
	assert.Contains(t, h.mustRun("whoami"), "Not logged in")

	var prompts []string
	h.cli.ReadPassword = func(prompt string) (string, error) {
		prompts = append(prompts, prompt)
		return "Str0ng!Pass", nil
	}
	out = h.mustRun("login", "--email=a@b.com")
	assert.Contains(t, out, "Logged in as a@b.com")
	assert.Equal(t, []string{"Password: "}, prompts)
	assert.Contains(t, h.mustRun("whoami"), "Verified: true")
}

func TestCLI_ResendWhileUnverified(t *testing.T) {
	h := newHarness(t)
	h.mustRun("register", "--name=Ana", "--email=a@b.com", "--password=Str0ng!Pass")

	out := h.mustRun("resend")
	assert.Contains(t, out, "Verification token sent")
	tok := tokenFrom(t, out, domain.TokenVerification, "a@b.com")

	assert.Contains(t, h.mustRun("verify", tok), "Verified a@b.com")
}

func TestCLI_PasswordReset(t *testing.T) {
	h := newHarness(t)
	h.mustRun("register", "--name=Ana", "--email=a@b.com", "--password=Str0ng!Pass")

	out := h.mustRun("forgot", "--email=a@b.com")
	assert.Contains(t, out, "If the account exists")
	tok := tokenFrom(t, out, domain.TokenPasswordReset, "a@b.com")

	_, err := h.run("reset", tok, "--password=weak")
	assert.ErrorIs(t, err, domain.ErrWeakPassword)

	assert.Contains(t, h.mustRun("reset", tok, "--password=N3w!Password"), "Password updated")

	_, err = h.run("reset", tok, "--password=N3w!Password")
	assert.ErrorIs(t, err, domain.ErrInvalidOrExpiredToken)

	out = h.mustRun("forgot", "--email=ghost@b.com")
	assert.Contains(t, out, "If the account exists")
	assert.NotContains(t, out, "token for ghost@b.com")
}

func TestCLI_LockoutAndStatus(t *testing.T) {
	h := newHarness(t)
	out := h.mustRun("register", "--name=Ana", "--email=a@b.com", "--password=Str0ng!Pass")
	h.mustRun("verify", tokenFrom(t, out, domain.TokenVerification, "a@b.com"))
	h.mustRun("logout")

	_, err := h.run("login", "--email=a@b.com", "--password=Wr0ng!Pass")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, err = h.run("login", "--email=a@b.com", "--password=Wr0ng!Pass")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = h.run("login", "--email=a@b.com", "--password=Str0ng!Pass")
	assert.ErrorIs(t, err, domain.ErrAccountLocked)

	out = h.mustRun("status", "--email=a@b.com")
	assert.Regexp(t, `STATUS\s+healthy`, out)
	assert.Regexp(t, `sqlite\s+healthy`, out)
	assert.Regexp(t, `LOCKED\s+true`, out)
	assert.Regexp(t, `FAILED ATTEMPTS\s+2`, out)

	out = h.mustRun("audit", "query", "--email=a@b.com", "--type=auth.lockout")
	assert.Contains(t, out, "auth.lockout")
	assert.Contains(t, out, "high")

	out = h.mustRun("audit", "export", "--format=csv", "--limit=1")
	assert.Contains(t, out, "id,created_at,type,status,email,source,risk,message")

	_, err = h.run("audit", "export", "--format=xml")
	assert.Error(t, err)
}

func TestCLI_Sweep(t *testing.T) {
	h := newHarness(t)
	assert.Contains(t, h.mustRun("sweep"), "Removed 0 expired tokens and 0 lockout records")
}

func TestCLI_Errors(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("bogus")
	assert.ErrorIs(t, err, errUnknownCommand)

	_, err = h.run("register", "--email=a@b.com")
	assert.ErrorContains(t, err, "missing --name")

	_, err = h.run("login", "--email=a@b.com")
	assert.ErrorContains(t, err, "--password is required")

	_, err = h.run("verify")
	assert.ErrorContains(t, err, "usage: accountctl verify")

	_, err = h.run("resend")
	assert.ErrorIs(t, err, domain.ErrNoSession)

	_, err = h.run("audit", "query", "--limit=x")
	assert.ErrorContains(t, err, "invalid --limit")
}

func TestParseArgs(t *testing.T) {
	opts, pos := parseArgs([]string{"tok", "--email=a@b.com", "--force", "--password=a=b"})
	assert.Equal(t, map[string]string{
		"email":    "a@b.com",
		"force":    "true",
		"password": "a=b",
	}, opts)
	assert.Equal(t, []string{"tok"}, pos)
}
