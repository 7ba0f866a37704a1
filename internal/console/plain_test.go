package console

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aman0603/Conversation-Assistant/internal/automation"
	"github.com/aman0603/Conversation-Assistant/internal/chat"
)

func plainFixture() (Options, *bytes.Buffer) {
	driver := automation.NewScriptedDriver()
	driver.SetChats([]chat.ChatSummary{{Name: "Sarah", LastMessage: "hi"}})

	sess := chat.NewSession("standalone")
	pipeline := &chat.Pipeline{
		Parser:   &chat.Parser{},
		Executor: &chat.Executor{Driver: driver},
		Session:  sess,
	}
	out := &bytes.Buffer{}
	return Options{
		Pipeline: pipeline,
		Session:  sess,
		Out:      out,
		Plain:    true,
		Monitor: &chat.Monitor{
			Driver:   driver,
			Session:  sess,
			Interval: time.Hour, // keep the ticker out of the way
		},
	}, out
}

func TestRunPlain_StatusThenQuit(t *testing.T) {
	opts, out := plainFixture()
	opts.In = strings.NewReader("status\nquit\n")

	if err := Run(context.Background(), opts); err != nil {
		t.Fatalf("Run: %v", err)
	}

	output := out.String()
	if !strings.Contains(output, "Mode: standalone") {
		t.Fatalf("status output missing, got:\n%s", output)
	}
	if !strings.Contains(output, "Stopping.") {
		t.Fatalf("quit acknowledgement missing, got:\n%s", output)
	}
}

func TestRunPlain_ListGoesThroughDriver(t *testing.T) {
	opts, out := plainFixture()
	opts.In = strings.NewReader("list\nexit\n")

	if err := Run(context.Background(), opts); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.String(), "Sarah") {
		t.Fatalf("contact list missing, got:\n%s", out.String())
	}
}

func TestRunPlain_EOFEndsLoop(t *testing.T) {
	opts, _ := plainFixture()
	opts.In = strings.NewReader("status\n")

	done := make(chan error, 1)
	go func() { done <- Run(context.Background(), opts) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run after EOF: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("plain loop did not stop at EOF")
	}
}
