package main

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/getkayan/accountguard"
	"github.com/getkayan/accountguard/core/audit"
	"github.com/getkayan/accountguard/core/health"
)

// ---- Admin Commands ----

func (c *CLI) status(ctx context.Context, svc *accountguard.Service, opts map[string]string, pos []string) error {
	report := svc.Health(ctx)

	w := tabwriter.NewWriter(c.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "STATUS\t%s\n", report.Status)
	fmt.Fprintf(w, "VERSION\t%s\n", report.Version)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "CHECK\tSTATUS\tLATENCY\tMESSAGE")
	for _, ch := range report.Checks {
		fmt.Fprintf(w, "%s\t%s\t%dms\t%s\n", ch.Name, ch.Status, ch.LatencyMs, ch.Message)
	}

	if email := opts["email"]; email != "" {
		locked, err := svc.IsAccountLocked(ctx, email)
		if err != nil {
			return err
		}
		remaining, err := svc.RemainingLockTime(ctx, email)
		if err != nil {
			return err
		}
		attempts, err := svc.FailedAttempts(ctx, email)
		if err != nil {
			return err
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "ACCOUNT\t%s\n", email)
		fmt.Fprintf(w, "LOCKED\t%t\n", locked)
		fmt.Fprintf(w, "REMAINING\t%s\n", remaining)
		fmt.Fprintf(w, "FAILED ATTEMPTS\t%d\n", attempts)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if report.Status == health.StatusUnhealthy {
		return fmt.Errorf("backend is unhealthy")
	}
	return nil
}

func (c *CLI) sweep(ctx context.Context, svc *accountguard.Service, opts map[string]string, pos []string) error {
	res, err := svc.Sweep(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "Removed %d expired tokens and %d lockout records\n", res.Tokens, res.Lockout)
	return nil
}

// ---- Audit Commands ----

func (c *CLI) auditCommand(ctx context.Context, svc *accountguard.Service, opts map[string]string, pos []string) error {
	if len(pos) < 1 {
		return fmt.Errorf("usage: accountctl audit <query|export>")
	}

	filter, err := auditFilter(opts)
	if err != nil {
		return err
	}
	events, err := svc.Audit().Query(ctx, filter)
	if err != nil {
		return err
	}

	switch pos[0] {
	case "query":
		return c.printEvents(events)
	case "export":
		format := audit.ExportJSON
		if f, ok := opts["format"]; ok {
			format = audit.ExportFormat(f)
		}
		return audit.Export(c.Out, events, format)
	default:
		return fmt.Errorf("unknown audit subcommand: %s", pos[0])
	}
}

func auditFilter(opts map[string]string) (audit.Filter, error) {
	f := audit.Filter{Email: opts["email"]}
	if t := opts["type"]; t != "" {
		f.Types = []string{t}
	}
	if l := opts["limit"]; l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			return f, fmt.Errorf("invalid --limit %q", l)
		}
		f.Limit = n
	}
	return f, nil
}

func (c *CLI) printEvents(events []audit.AuditEvent) error {
	w := tabwriter.NewWriter(c.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tTYPE\tSTATUS\tEMAIL\tSOURCE\tRISK")
	for _, e := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.CreatedAt.Format(time.RFC3339), e.Type, e.Status, e.Email, e.Source, e.Risk)
	}
	return w.Flush()
}
