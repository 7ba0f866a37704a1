package console

import (
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"

	"github.com/aman0603/Conversation-Assistant/internal/chat"
)

func TestTruncateSnippet(t *testing.T) {
	cases := []struct {
		name  string
		in    string
		width int
		want  string
	}{
		{name: "short passes through", in: "hello", width: 10, want: "hello"},
		{name: "newlines flattened", in: "two\nlines", width: 20, want: "two lines"},
		{name: "zero width passes through", in: "hello", width: 0, want: "hello"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := truncateSnippet(tc.in, tc.width); got != tc.want {
				t.Fatalf("truncateSnippet(%q, %d) = %q, want %q", tc.in, tc.width, got, tc.want)
			}
		})
	}
}

func TestTruncateSnippet_CountsDisplayCells(t *testing.T) {
	// Each CJK rune is two cells wide; ten of them must not fit in 12 cells.
	wide := strings.Repeat("消", 10)
	got := truncateSnippet(wide, 12)
	if runewidth.StringWidth(got) > 12 {
		t.Fatalf("width = %d, want <= 12 (%q)", runewidth.StringWidth(got), got)
	}
	if !strings.HasSuffix(got, "…") {
		t.Fatalf("truncated snippet should end with ellipsis, got %q", got)
	}
}

func TestFormatNotice(t *testing.T) {
	n := chat.Notice{Chat: "Sarah", Snippet: "see you at 8"}
	if got := formatNotice(n); got != "[new] Sarah: see you at 8" {
		t.Fatalf("formatNotice = %q", got)
	}
	n.AutoReply = "sounds good"
	if got := formatNotice(n); !strings.Contains(got, "[auto-replied: sounds good]") {
		t.Fatalf("formatNotice with reply = %q", got)
	}
}

func TestFormatResult(t *testing.T) {
	if got := formatResult(chat.Result{OK: true, Text: "Sent to Sarah"}); got != "Sent to Sarah" {
		t.Fatalf("got %q", got)
	}
	if got := formatResult(chat.Result{OK: true}); got != "Done." {
		t.Fatalf("empty ok = %q", got)
	}
	if got := formatResult(chat.Result{OK: false}); got != "Failed." {
		t.Fatalf("empty failure = %q", got)
	}
}
