package chat

import (
	"context"
	"fmt"
	"strings"
)

const (
	suggestFetchCount   = 10
	suggestContextTail  = 3
	listDisplayCap      = 15
	noMessagesContext   = "No messages"
	summarySystemPrompt = "Create a concise summary."
	suggestSystemPrompt = "Generate 3 brief message suggestions."
)

// Executor dispatches a resolved Action to the collaborators and formats a
// typed Result. Each action performs at most one externally-visible write.
type Executor struct {
	Driver    Driver
	Completer Completer
	Logf      func(format string, args ...any)
}

func (e *Executor) Execute(ctx context.Context, action Action, sess *Session) Result {
	if e == nil || e.Driver == nil {
		return Result{OK: false, Text: "automation backend is not available"}
	}
	switch action.Kind {
	case KindSend:
		return e.executeSend(ctx, action, sess)
	case KindList:
		return e.executeList(ctx, sess)
	case KindRead:
		return e.executeRead(ctx, action, sess)
	case KindSummary:
		return e.executeSummary(ctx, action, sess)
	case KindSuggest:
		return e.executeSuggest(ctx, action, sess)
	case KindAutoOn:
		sess.AutoReply = true
		return Result{OK: true, Text: "Auto-reply enabled"}
	case KindAutoOff:
		sess.AutoReply = false
		return Result{OK: true, Text: "Auto-reply disabled"}
	case KindStatus:
		return e.executeStatus(sess)
	case KindError:
		msg := strings.TrimSpace(action.Message)
		if msg == "" {
			msg = "Command not understood"
		}
		return Result{OK: false, Text: msg}
	default:
		return Result{OK: false, Text: fmt.Sprintf("Unknown action %q", action.Kind)}
	}
}

// resolveTarget applies contact resolution and records the last contact on a
// successful match. A miss passes the literal name through so the backend's
// own search can still find it.
func (e *Executor) resolveTarget(name string, sess *Session) string {
	resolved, ok := ResolveContact(name, sess.Contacts)
	if ok {
		sess.SetLastContact(resolved)
	}
	return resolved.DisplayName
}

func (e *Executor) executeSend(ctx context.Context, action Action, sess *Session) Result {
	contact := e.resolveTarget(action.Contact, sess)
	ok, err := e.Driver.SendText(ctx, contact, action.Message)
	if err != nil {
		e.logf("send: %v", err)
		ok = false
	}
	if !ok {
		return Result{OK: false, Text: fmt.Sprintf("Failed to send to %s", contact)}
	}
	sess.AppendHistory(contact, HistoryEntry{Text: action.Message, Direction: DirectionOutgoing})
	return Result{OK: true, Text: fmt.Sprintf("Sent to %s", contact)}
}

func (e *Executor) executeList(ctx context.Context, sess *Session) Result {
	chats, err := e.Driver.ListChats(ctx)
	if err != nil {
		return Result{OK: false, Text: fmt.Sprintf("Failed to list chats: %v", err)}
	}
	contacts := make([]Contact, 0, len(chats))
	for _, c := range chats {
		if strings.TrimSpace(c.Name) == "" {
			continue
		}
		contacts = append(contacts, Contact{DisplayName: c.Name})
	}
	sess.ReplaceContacts(contacts)
	if len(contacts) == 0 {
		return Result{OK: true, Text: "No chats found."}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Your contacts (%d):\n", len(contacts))
	for i, c := range contacts {
		if i == listDisplayCap {
			break
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, c.DisplayName)
	}
	// Display is capped; the payload keeps the full snapshot.
	return Result{OK: true, Text: strings.TrimRight(b.String(), "\n"), Payload: contacts}
}

func (e *Executor) executeRead(ctx context.Context, action Action, sess *Session) Result {
	contact := e.resolveTarget(action.Contact, sess)
	messages, err := e.Driver.FetchMessages(ctx, contact, action.Count)
	if err != nil {
		return Result{OK: false, Text: fmt.Sprintf("Failed to read messages from %s: %v", contact, err)}
	}
	if len(messages) == 0 {
		return Result{OK: true, Text: fmt.Sprintf("No messages with %s", contact)}
	}

	sel := SelectMessages(messages, action.Query, action.Position)
	switch action.Query {
	case QueryLastFromContact:
		if !sel.Found {
			return Result{OK: true, Text: fmt.Sprintf("No recent messages from %s", contact)}
		}
		return Result{OK: true, Text: fmt.Sprintf("Last message from %s: %s", contact, sel.Message.Text), Payload: sel.Message}
	case QueryLastFromMe:
		if !sel.Found {
			return Result{OK: true, Text: fmt.Sprintf("No recent messages sent to %s", contact)}
		}
		return Result{OK: true, Text: fmt.Sprintf("Last message you sent to %s: %s", contact, sel.Message.Text), Payload: sel.Message}
	case QueryPositionFromContact:
		if !sel.Found {
			return Result{OK: true, Text: fmt.Sprintf(
				"Not enough messages from %s: wanted the %s message but only %d incoming found",
				contact, PositionPhrase(action.Position), sel.IncomingCount)}
		}
		phrase := PositionPhrase(action.Position)
		return Result{OK: true, Text: fmt.Sprintf("%s message from %s: %s", capitalize(phrase), contact, sel.Message.Text), Payload: sel.Message}
	default:
		var b strings.Builder
		fmt.Fprintf(&b, "Recent messages with %s:\n", contact)
		for _, m := range sel.Window {
			prefix := "<- "
			if m.Direction == DirectionOutgoing {
				prefix = "-> "
			}
			b.WriteString(prefix)
			b.WriteString(m.Text)
			if m.Timestamp != "" {
				fmt.Fprintf(&b, " [%s]", m.Timestamp)
			}
			b.WriteByte('\n')
		}
		return Result{OK: true, Text: strings.TrimRight(b.String(), "\n"), Payload: sel.Window}
	}
}

func (e *Executor) executeSummary(ctx context.Context, action Action, sess *Session) Result {
	contact := e.resolveTarget(action.Contact, sess)
	messages, err := e.Driver.FetchMessages(ctx, contact, action.Count)
	if err != nil {
		return Result{OK: false, Text: fmt.Sprintf("Failed to fetch messages from %s: %v", contact, err)}
	}
	if len(messages) == 0 {
		return Result{OK: true, Text: fmt.Sprintf("No messages found with %s", contact)}
	}
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, fmt.Sprintf("%s: %s", m.Sender, m.Text))
	}
	prompt := "Summarize in 3 bullet points:\n" + strings.Join(lines, "\n")
	summary, err := e.complete(ctx, prompt, summarySystemPrompt)
	if err != nil {
		return Result{OK: false, Text: fmt.Sprintf("Failed to summarize chat with %s: %v", contact, err)}
	}
	return Result{OK: true, Text: fmt.Sprintf("Summary of chat with %s:\n%s", contact, summary)}
}

func (e *Executor) executeSuggest(ctx context.Context, action Action, sess *Session) Result {
	contact := e.resolveTarget(action.Contact, sess)
	messages, err := e.Driver.FetchMessages(ctx, contact, suggestFetchCount)
	if err != nil {
		return Result{OK: false, Text: fmt.Sprintf("Failed to fetch messages from %s: %v", contact, err)}
	}
	incoming := filterDirection(messages, DirectionIncoming)
	if len(incoming) > suggestContextTail {
		incoming = incoming[len(incoming)-suggestContextTail:]
	}
	// An empty conversation still asks the model, with a placeholder context.
	context := noMessagesContext
	if len(incoming) > 0 {
		texts := make([]string, 0, len(incoming))
		for _, m := range incoming {
			texts = append(texts, m.Text)
		}
		context = strings.Join(texts, "\n")
	}
	suggestions, err := e.complete(ctx, "Suggest 3 replies for:\n"+context, suggestSystemPrompt)
	if err != nil {
		return Result{OK: false, Text: fmt.Sprintf("Failed to suggest replies for %s: %v", contact, err)}
	}
	return Result{OK: true, Text: fmt.Sprintf("Reply suggestions for %s:\n%s", contact, suggestions)}
}

func (e *Executor) executeStatus(sess *Session) Result {
	mode := sess.Mode
	if mode == "" {
		mode = "standalone"
	}
	auto := "off"
	if sess.AutoReply {
		auto = "on"
	}
	last := sess.LastContactName()
	if last == "" {
		last = "(none)"
	}
	text := fmt.Sprintf("Mode: %s\nAuto-reply: %s\nLast contact: %s\nContacts loaded: %d",
		mode, auto, last, len(sess.Contacts))
	return Result{OK: true, Text: text, Payload: map[string]any{
		"mode":          mode,
		"auto_reply":    sess.AutoReply,
		"last_contact":  sess.LastContactName(),
		"contact_count": len(sess.Contacts),
	}}
}

func (e *Executor) complete(ctx context.Context, prompt, system string) (string, error) {
	if e.Completer == nil {
		return "", fmt.Errorf("language model is not configured")
	}
	out, err := e.Completer.Complete(ctx, prompt, system)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func (e *Executor) logf(format string, args ...any) {
	if e == nil || e.Logf == nil {
		return
	}
	e.Logf(format, args...)
}
