package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// Interpreter turns raw text into an Action. The local Parser and the relay
// client both satisfy it; the choice is made once at construction.
type Interpreter interface {
	Interpret(ctx context.Context, rawText string, sess *Session) (Action, error)
}

// Sentinel errors an Interpreter uses to signal how the pipeline should
// degrade: a timeout falls back to local processing for that command only,
// an unavailable transport downgrades the session permanently.
var (
	ErrInterpreterTimeout     = errors.New("interpreter timed out")
	ErrInterpreterUnavailable = errors.New("interpreter unavailable")
)

// Interpret makes the local Parser an Interpreter. Literal commands are the
// pipeline's concern, so a bare quit/help reaching this path parses as a
// heuristic fallback.
func (p *Parser) Interpret(ctx context.Context, rawText string, sess *Session) (Action, error) {
	return p.Parse(ctx, rawText, sess).Action, nil
}

// Pipeline is the canonical parse -> resolve -> execute path shared by the
// console, the email gateway and the digest scheduler. It serializes
// commands: at most one Action is in flight at a time.
type Pipeline struct {
	Parser   *Parser
	Executor *Executor
	Session  *Session
	Logf     func(format string, args ...any)

	// Remote is the relay-mediated interpreter, nil in standalone mode.
	// After ErrInterpreterUnavailable it is cleared for the rest of the run.
	Remote Interpreter

	mu sync.Mutex
}

// Outcome carries the rendered result plus the loop-control signals that are
// not modeled as Actions.
type Outcome struct {
	Result Result
	Help   bool
	Quit   bool
	// Degraded marks a command that fell back from relay to local processing.
	Degraded bool
}

func (pl *Pipeline) HandleCommand(ctx context.Context, rawText string) Outcome {
	if pl == nil {
		return Outcome{Result: Result{OK: false, Text: "pipeline is not configured"}}
	}
	pl.mu.Lock()
	defer pl.mu.Unlock()

	switch strings.ToLower(strings.TrimSpace(rawText)) {
	case "help", "?":
		return Outcome{Help: true, Result: Result{OK: true, Text: HelpText}}
	case "quit", "exit", "stop":
		return Outcome{Quit: true, Result: Result{OK: true, Text: "Stopping."}}
	}

	var (
		action  Action
		outcome Outcome
		local   = pl.Remote == nil
	)
	if !local {
		remoteAction, err := pl.Remote.Interpret(ctx, rawText, pl.Session)
		switch {
		case err == nil:
			action = remoteAction
		case errors.Is(err, ErrInterpreterUnavailable):
			pl.logf("pipeline: relay unavailable, downgrading to standalone: %v", err)
			pl.Remote = nil
			if pl.Session != nil {
				pl.Session.Mode = "standalone"
			}
			outcome.Degraded = true
			local = true
		default:
			// Timeout or transient failure: local processing for this
			// command only, relay stays configured.
			pl.logf("pipeline: relay interpret failed, using local parse: %v", err)
			outcome.Degraded = true
			local = true
		}
	}
	if local {
		action = pl.Parser.Parse(ctx, rawText, pl.Session).Action
	}
	outcome.Result = pl.Executor.Execute(ctx, action, pl.Session)
	return outcome
}

// RunAction executes a pre-built Action under the same serialization as
// HandleCommand. The digest scheduler uses it to skip the parse step.
func (pl *Pipeline) RunAction(ctx context.Context, action Action) Result {
	if pl == nil {
		return Result{OK: false, Text: "pipeline is not configured"}
	}
	pl.mu.Lock()
	defer pl.mu.Unlock()
	return pl.Executor.Execute(ctx, action, pl.Session)
}

func (pl *Pipeline) logf(format string, args ...any) {
	if pl == nil || pl.Logf == nil {
		return
	}
	pl.Logf(format, args...)
}
