package console

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/aman0603/Conversation-Assistant/internal/chat"
)

const snippetDisplayWidth = 60

// WelcomeText mirrors the first screen of the assistant: what it can do and
// how to leave.
const WelcomeText = `WhatsApp Conversation Assistant
Type a command in plain language, for example:
  "Send John a message saying hello"
  "What did Sarah say last?"
  "Summarize my chat with Mike"
  "Turn on auto-reply"
Type "help" for more examples, "quit" to exit.`

func formatNotice(n chat.Notice) string {
	snippet := truncateSnippet(n.Snippet, snippetDisplayWidth)
	if n.AutoReply != "" {
		return fmt.Sprintf("[new] %s: %s  [auto-replied: %s]", n.Chat, snippet, truncateSnippet(n.AutoReply, snippetDisplayWidth))
	}
	return fmt.Sprintf("[new] %s: %s", n.Chat, snippet)
}

// truncateSnippet cuts on display cells, not bytes, so wide runes do not
// overflow the column.
func truncateSnippet(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}

func formatResult(res chat.Result) string {
	text := strings.TrimSpace(res.Text)
	if text == "" {
		if res.OK {
			return "Done."
		}
		return "Failed."
	}
	return text
}
