// Package confirm gates destructive calls behind an explicit operator
// acknowledgement. The orchestrator consults the policy for every resource
// before its deletion runs; a denial skips that resource only.
package confirm

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Token is the literal the operator must type. Anything else, including an
// empty line, denies.
const Token = "destroy"

// DefaultTimeout bounds how long an interactive prompt waits before treating
// silence as denial.
const DefaultTimeout = 30 * time.Second

// Policy decides whether one resource may be destroyed.
type Policy interface {
	Confirm(ctx context.Context, family, name string) bool
}

// AutoApprove approves everything. Used by --force runs.
type AutoApprove struct{}

func (AutoApprove) Confirm(context.Context, string, string) bool { return true }

// AutoDeny denies everything. Used by dry runs, where the question should
// never reach a human.
type AutoDeny struct{}

func (AutoDeny) Confirm(context.Context, string, string) bool { return false }

// Interactive prompts on out and reads lines from in. A single long-lived
// goroutine pumps lines into a channel so an abandoned prompt never leaks a
// blocked reader per question.
type Interactive struct {
	out     io.Writer
	lines   <-chan string
	timeout time.Duration
	logger  zerolog.Logger
}

// NewInteractive starts the line pump. The pump goroutine lives as long as
// in does; it exits when in reaches EOF.
func NewInteractive(in io.Reader, out io.Writer, timeout time.Duration, logger zerolog.Logger) *Interactive {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
	}()

	return &Interactive{out: out, lines: lines, timeout: timeout, logger: logger}
}

// Confirm prompts for one resource and waits for the token. Timeout, EOF,
// context cancellation, and any non-token line all deny.
func (i *Interactive) Confirm(ctx context.Context, family, name string) bool {
	fmt.Fprintf(i.out, "\nAbout to destroy %s %q.\nType %q to proceed: ", family, name, Token)

	select {
	case line, ok := <-i.lines:
		if !ok {
			i.logger.Warn().Str("family", family).Str("resource", name).Msg("input closed, denying")
			return false
		}
		if line != Token {
			i.logger.Info().Str("family", family).Str("resource", name).Msg("confirmation denied")
			return false
		}
		return true
	case <-time.After(i.timeout):
		fmt.Fprintln(i.out, "\ntimed out, skipping")
		i.logger.Warn().
			Str("family", family).
			Str("resource", name).
			Dur("timeout", i.timeout).
			Msg("confirmation timed out, denying")
		return false
	case <-ctx.Done():
		return false
	}
}
