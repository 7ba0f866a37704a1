// Package console is the interactive surface: a bubbletea terminal UI when
// stdout is a TTY, a plain line loop otherwise. Both run the same pipeline
// and drive the monitor between commands so session state is only ever
// touched from one goroutine at a time.
package console

import (
	"context"
	"errors"
	"io"
	"os"

	"golang.org/x/term"

	"github.com/aman0603/Conversation-Assistant/internal/chat"
)

type Options struct {
	Pipeline *chat.Pipeline
	Monitor  *chat.Monitor
	Session  *chat.Session
	In       io.Reader
	Out      io.Writer
	Plain    bool
	Logf     func(format string, args ...any)
}

func Run(ctx context.Context, opts Options) error {
	if opts.Pipeline == nil || opts.Session == nil {
		return errors.New("console requires a pipeline and a session")
	}
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Logf == nil {
		opts.Logf = func(string, ...any) {}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.Plain || !isTerminal(opts.Out) {
		return runPlain(ctx, opts)
	}
	return runTUI(ctx, opts)
}

func isTerminal(out io.Writer) bool {
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
