package chat

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const DefaultPollInterval = 2 * time.Second

// Notice is one observed new-message event, surfaced to the UI.
type Notice struct {
	Chat      string
	Snippet   string
	AutoReply string
}

// Monitor watches the chat list for new messages and optionally auto-replies.
//
// Detection is edge-triggered on last-snippet text change, kept per chat.
// That is a documented limitation inherited from the original design: two
// consecutive messages with identical snippet text are seen as one, and a
// snippet-truncation change double-counts. Detection by message id or count
// would fix it, but the backend exposes neither.
type Monitor struct {
	Driver    Driver
	Completer Completer
	Session   *Session
	Interval  time.Duration
	Logf      func(format string, args ...any)

	// Backoff is consulted after a completion failure; a rate-limited model
	// should not be hammered every poll.
	Backoff func(err error) time.Duration

	lastSnippets map[string]string
	pauseUntil   time.Time
}

// Poll runs one monitoring pass. It never returns an error: any collaborator
// failure is logged and skipped so the interactive session outlives it.
func (m *Monitor) Poll(ctx context.Context) []Notice {
	if m == nil || m.Driver == nil || m.Session == nil {
		return nil
	}
	if m.lastSnippets == nil {
		m.lastSnippets = make(map[string]string)
	}

	chats, err := m.Driver.ListChats(ctx)
	if err != nil {
		m.logf("monitor: list chats: %v", err)
		return nil
	}

	var notices []Notice
	for _, chat := range chats {
		name := strings.TrimSpace(chat.Name)
		snippet := chat.LastMessage
		if name == "" || snippet == "" {
			continue
		}
		prev, seen := m.lastSnippets[name]
		m.lastSnippets[name] = snippet
		if !seen || prev == snippet {
			// First sighting establishes the baseline without firing.
			continue
		}

		m.Session.AppendHistory(name, HistoryEntry{Text: snippet, Direction: DirectionIncoming})
		notice := Notice{Chat: name, Snippet: snippet}
		if m.Session.AutoReply {
			notice.AutoReply = m.autoReply(ctx, name, snippet)
		}
		notices = append(notices, notice)
	}
	return notices
}

// autoReply generates and sends a model reply for one new-message event.
// It replies only when the newest fetched message is incoming, so the bot
// never answers its own just-sent text.
func (m *Monitor) autoReply(ctx context.Context, chatName, snippet string) string {
	if m.Completer == nil {
		return ""
	}
	if !m.pauseUntil.IsZero() && time.Now().Before(m.pauseUntil) {
		return ""
	}
	latest, err := m.Driver.FetchMessages(ctx, chatName, 1)
	if err != nil {
		m.logf("monitor: fetch %s: %v", chatName, err)
		return ""
	}
	if len(latest) == 0 || latest[len(latest)-1].Direction != DirectionIncoming {
		return ""
	}

	system := fmt.Sprintf("Reply briefly to this WhatsApp message from %s.", chatName)
	reply, err := m.Completer.Complete(ctx, snippet, system)
	if err != nil {
		m.logf("monitor: completion for %s: %v", chatName, err)
		if m.Backoff != nil {
			if d := m.Backoff(err); d > 0 {
				m.pauseUntil = time.Now().Add(d)
			}
		}
		return ""
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return ""
	}
	ok, err := m.Driver.SendText(ctx, chatName, reply)
	if err != nil || !ok {
		m.logf("monitor: auto-reply to %s failed: %v", chatName, err)
		return ""
	}
	m.Session.AppendHistory(chatName, HistoryEntry{Text: reply, Direction: DirectionOutgoing})
	return reply
}

// Run loops Poll on the configured interval until the context ends. The
// console drives Poll from its own tick instead; Run serves headless modes.
func (m *Monitor) Run(ctx context.Context, onNotice func(Notice)) error {
	if m == nil {
		return fmt.Errorf("monitor is nil")
	}
	interval := m.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for _, n := range m.Poll(ctx) {
				if onNotice != nil {
					onNotice(n)
				}
			}
		}
	}
}

func (m *Monitor) logf(format string, args ...any) {
	if m == nil || m.Logf == nil {
		return
	}
	m.Logf(format, args...)
}
