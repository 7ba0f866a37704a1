package chat

import (
	"context"
	"testing"
)

type fakeInterpreter struct {
	action Action
	err    error
	calls  int
}

func (f *fakeInterpreter) Interpret(ctx context.Context, rawText string, sess *Session) (Action, error) {
	f.calls++
	if f.err != nil {
		return Action{}, f.err
	}
	return f.action, nil
}

func newTestPipeline(remote Interpreter) (*Pipeline, *fakeDriver) {
	d := newFakeDriver()
	sess := NewSession("relay")
	return &Pipeline{
		Parser:   &Parser{Completer: &fakeCompleter{reply: "no json here"}},
		Executor: &Executor{Driver: d},
		Session:  sess,
		Remote:   remote,
	}, d
}

func TestPipelineLiterals(t *testing.T) {
	pl, _ := newTestPipeline(nil)
	if out := pl.HandleCommand(context.Background(), "help"); !out.Help {
		t.Fatalf("help outcome = %+v", out)
	}
	if out := pl.HandleCommand(context.Background(), "quit"); !out.Quit {
		t.Fatalf("quit outcome = %+v", out)
	}
}

func TestPipelineRemoteInterpreter(t *testing.T) {
	remote := &fakeInterpreter{action: Action{Kind: KindStatus}}
	pl, _ := newTestPipeline(remote)

	out := pl.HandleCommand(context.Background(), "how are things")
	if !out.Result.OK || out.Degraded {
		t.Fatalf("outcome = %+v", out)
	}
	if remote.calls != 1 {
		t.Fatalf("remote called %d times, want 1", remote.calls)
	}
}

func TestPipelineTimeoutDegradesOnce(t *testing.T) {
	remote := &fakeInterpreter{err: ErrInterpreterTimeout}
	pl, _ := newTestPipeline(remote)

	// One timeout: this command goes local, exactly one relay attempt.
	out := pl.HandleCommand(context.Background(), "list my contacts")
	if !out.Degraded {
		t.Fatalf("outcome = %+v, want degraded", out)
	}
	if remote.calls != 1 {
		t.Fatalf("remote called %d times for one command, want 1", remote.calls)
	}
	if pl.Remote == nil {
		t.Fatalf("timeout must not permanently downgrade")
	}

	// The relay stays configured for the next command.
	pl.HandleCommand(context.Background(), "status report")
	if remote.calls != 2 {
		t.Fatalf("remote calls = %d, want retry on next command", remote.calls)
	}
}

func TestPipelineConnectionLossDowngradesPermanently(t *testing.T) {
	remote := &fakeInterpreter{err: ErrInterpreterUnavailable}
	pl, _ := newTestPipeline(remote)

	out := pl.HandleCommand(context.Background(), "list my contacts")
	if !out.Degraded || !out.Result.OK {
		t.Fatalf("outcome = %+v", out)
	}
	if pl.Remote != nil {
		t.Fatalf("connection loss must clear the remote interpreter")
	}
	if pl.Session.Mode != "standalone" {
		t.Fatalf("mode = %q, want standalone", pl.Session.Mode)
	}

	pl.HandleCommand(context.Background(), "status")
	if remote.calls != 1 {
		t.Fatalf("remote calls = %d, want no further attempts", remote.calls)
	}
}
