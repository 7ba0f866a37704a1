package console

import (
	"bufio"
	"context"
	"fmt"
	"time"

	"github.com/aman0603/Conversation-Assistant/internal/chat"
)

// runPlain is the no-TTY loop: one prompt, one line, one result. Input is
// read on its own goroutine; commands and monitor polls are interleaved here
// so the session is never touched concurrently.
func runPlain(ctx context.Context, opts Options) error {
	out := opts.Out
	fmt.Fprintln(out, WelcomeText)
	fmt.Fprintln(out)

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(opts.In)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	interval := chat.DefaultPollInterval
	if opts.Monitor != nil && opts.Monitor.Interval > 0 {
		interval = opts.Monitor.Interval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	fmt.Fprint(out, "> ")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-scanErr:
			return err
		case <-ticker.C:
			if opts.Monitor == nil {
				continue
			}
			for _, n := range opts.Monitor.Poll(ctx) {
				fmt.Fprintln(out)
				fmt.Fprintln(out, formatNotice(n))
				fmt.Fprint(out, "> ")
			}
		case line := <-lines:
			outcome := opts.Pipeline.HandleCommand(ctx, line)
			if outcome.Degraded {
				fmt.Fprintln(out, "(relay unavailable, processed locally)")
			}
			fmt.Fprintln(out, formatResult(outcome.Result))
			if outcome.Quit {
				return nil
			}
			fmt.Fprint(out, "> ")
		}
	}
}
