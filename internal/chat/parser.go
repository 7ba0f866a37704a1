package chat

import (
	"context"
	"fmt"
	"strings"
)

const actionGrammarPrompt = `You are a WhatsApp control assistant. Parse the user's command and respond with a JSON action.

Actions:
1. {"action": "send", "contact": "name", "message": "text"}
2. {"action": "list"}
3. {"action": "summary", "contact": "name", "count": 20}
4. {"action": "suggest", "contact": "name"}
5. {"action": "read", "contact": "name", "count": 10, "query_type": "all|last_from_contact|last_from_me|position_from_contact", "position": N}
   - Use query_type "last_from_contact" when the user asks for the last message FROM a contact
   - Use query_type "last_from_me" when the user asks for the last message TO a contact
   - Use query_type "position_from_contact" when the user asks for the Nth last message (second last, third last, ...)
   - Use query_type "all" for general message reading
   - position: 1 for last, 2 for second last, 3 for third last, etc.
6. {"action": "auto_on"} or {"action": "auto_off"}
7. {"action": "status"}
8. {"action": "error", "message": "explanation"}

Examples:
- "What did John say last?" -> {"action": "read", "contact": "John", "count": 20, "query_type": "last_from_contact"}
- "What is the second last message of mehul?" -> {"action": "read", "contact": "Mehul", "count": 20, "query_type": "position_from_contact", "position": 2}
- "What did I last send to Sarah?" -> {"action": "read", "contact": "Sarah", "count": 20, "query_type": "last_from_me"}
- "Show messages with Emma" -> {"action": "read", "contact": "Emma", "count": 10, "query_type": "all"}

Be tolerant of typos and informal language. Return ONLY the JSON, no other text.`

const HelpText = `Command examples:
- Send a message: "Send John a message saying hello"
- List contacts: "Show me my contacts" or "list"
- Read messages: "What did Sarah say?" or "Read Emma's messages"
- Summarize: "Summarize my chat with Mike"
- Get suggestions: "What should I reply to David?"
- Auto-reply: "Turn on auto-reply" or "disable auto-reply"
- status - show system status
- quit - exit`

// maxPromptContacts bounds how many known contacts ride along in the system
// prompt as resolution context.
const maxPromptContacts = 20

type ParsedKind int

const (
	ParsedAction ParsedKind = iota
	ParsedHelp
	ParsedQuit
)

type Parsed struct {
	Kind   ParsedKind
	Action Action
}

// Parser turns raw operator text into a structured Action. It reads the
// session for prompt context but never mutates it.
type Parser struct {
	Completer Completer
	Logf      func(format string, args ...any)
}

// Parse never fails: malformed or missing model output falls through to the
// keyword heuristics, which always produce an Action.
func (p *Parser) Parse(ctx context.Context, rawText string, sess *Session) Parsed {
	trimmed := strings.TrimSpace(rawText)
	switch strings.ToLower(trimmed) {
	case "help", "?":
		return Parsed{Kind: ParsedHelp}
	case "quit", "exit", "stop":
		return Parsed{Kind: ParsedQuit}
	}

	if p == nil || p.Completer == nil {
		return Parsed{Action: FallbackAction(trimmed)}
	}

	reply, err := p.Completer.Complete(ctx, promptWithContext(trimmed, sess), p.systemPrompt(sess))
	if err != nil {
		p.logf("parser: completion failed: %v", err)
		return Parsed{Action: FallbackAction(trimmed)}
	}
	obj, ok := ExtractJSONObject(reply)
	if !ok {
		return Parsed{Action: FallbackAction(trimmed)}
	}
	action, err := DecodeAction([]byte(obj))
	if err != nil {
		p.logf("parser: %v", err)
		return Parsed{Action: FallbackAction(trimmed)}
	}
	return Parsed{Action: action}
}

func (p *Parser) systemPrompt(sess *Session) string {
	var b strings.Builder
	b.WriteString(actionGrammarPrompt)
	if sess == nil {
		return b.String()
	}
	if last := sess.LastContactName(); last != "" {
		b.WriteString("\n\nLast contact: ")
		b.WriteString(last)
	}
	if names := sess.ContactNames(); len(names) > 0 {
		if len(names) > maxPromptContacts {
			names = names[:maxPromptContacts]
		}
		b.WriteString("\nKnown contacts: ")
		b.WriteString(strings.Join(names, ", "))
	}
	return b.String()
}

// promptWithContext appends a pronoun hint so "reply to him" binds to the
// last resolved contact.
func promptWithContext(command string, sess *Session) string {
	last := sess.LastContactName()
	if last == "" {
		return command
	}
	lower := strings.ToLower(command)
	for _, pronoun := range []string{"him", "her", "them", "their", "his"} {
		if strings.Contains(lower, pronoun) {
			return fmt.Sprintf("%s (referring to %s)", command, last)
		}
	}
	return command
}

// FallbackAction is the keyword heuristic pass used when the model reply has
// no parseable action object.
func FallbackAction(command string) Action {
	lower := strings.ToLower(command)
	switch {
	case strings.Contains(lower, "list"), strings.Contains(lower, "contacts"):
		return Action{Kind: KindList}
	case strings.Contains(lower, "auto") && strings.Contains(lower, "on"):
		return Action{Kind: KindAutoOn}
	case strings.Contains(lower, "auto") && strings.Contains(lower, "off"):
		return Action{Kind: KindAutoOff}
	case strings.Contains(lower, "status"):
		return Action{Kind: KindStatus}
	default:
		return ErrorAction("not understood")
	}
}

func (p *Parser) logf(format string, args ...any) {
	if p == nil || p.Logf == nil {
		return
	}
	p.Logf(format, args...)
}
