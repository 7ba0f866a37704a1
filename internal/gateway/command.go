package gateway

import (
	"context"
	"errors"
	"strings"

	"github.com/aman0603/Conversation-Assistant/internal/chat"
)

// commandRunner is the slice of chat.Pipeline the gateway needs.
type commandRunner interface {
	HandleCommand(ctx context.Context, rawText string) chat.Outcome
}

// replySender is satisfied by *EmailGateway; tests substitute a fake.
type replySender interface {
	SendReply(ctx context.Context, to string, subject string, htmlBody string, thread EmailThreadContext) error
}

// CommandGateway turns inbound command mails into pipeline runs and mails the
// rendered result back to the sender.
type CommandGateway struct {
	Email    *EmailGateway
	Pipeline commandRunner
	Logf     func(format string, args ...any)

	// sender overrides Email for reply delivery in tests.
	sender replySender
}

// Run blocks until ctx is cancelled or the inbox configuration is invalid.
func (cg *CommandGateway) Run(ctx context.Context) error {
	if cg == nil || cg.Email == nil {
		return errors.New("command gateway is not configured")
	}
	if cg.Pipeline == nil {
		return errors.New("pipeline is required")
	}
	onStatus := func(st EmailStatus) {
		if st.OK {
			cg.logf("gateway: inbox connected")
		} else {
			cg.logf("gateway: inbox error: %s", st.Error)
		}
	}
	return cg.Email.Run(ctx, onStatus, func(in EmailInbound) {
		cg.HandleInbound(ctx, in)
	})
}

// HandleInbound runs one mailed command through the pipeline and replies with
// the result. Loop-control outcomes (help renders its text, quit is refused)
// never stop the process: the inbox is not a terminal.
func (cg *CommandGateway) HandleInbound(ctx context.Context, in EmailInbound) {
	command := commandFromBody(in.Body)
	if command == "" {
		command = strings.TrimSpace(in.Subject)
	}
	if command == "" || strings.EqualFold(command, "(no subject)") {
		cg.reply(ctx, in, "No command found in the email body.")
		return
	}

	cg.logf("gateway: command from %s: %q", in.From, command)
	outcome := cg.Pipeline.HandleCommand(ctx, command)

	var b strings.Builder
	if outcome.Quit {
		b.WriteString("`quit` only applies to the interactive terminal; the assistant keeps running.")
	} else {
		if !outcome.Result.OK {
			b.WriteString("**Command failed.**\n\n")
		}
		b.WriteString(outcome.Result.Text)
	}
	if outcome.Degraded {
		b.WriteString("\n\n_Relay was unavailable; the command was processed locally._")
	}
	cg.reply(ctx, in, b.String())
}

func (cg *CommandGateway) reply(ctx context.Context, in EmailInbound, markdown string) {
	subject := strings.TrimSpace(in.Subject)
	if !strings.HasPrefix(strings.ToLower(subject), "re:") {
		subject = "Re: " + subject
	}
	htmlBody, err := renderEmailHTML(subject, markdown)
	if err != nil {
		cg.logf("gateway: render reply failed: %v", err)
		return
	}
	thread := EmailThreadContext{
		MessageID:  in.MessageID,
		InReplyTo:  in.InReplyTo,
		References: in.References,
	}
	sender := cg.sender
	if sender == nil {
		sender = cg.Email
	}
	if err := sender.SendReply(ctx, in.From, subject, htmlBody, thread); err != nil {
		cg.logf("gateway: send reply to %s failed: %v", in.From, err)
	}
}

func (cg *CommandGateway) logf(format string, args ...any) {
	if cg == nil || cg.Logf == nil {
		return
	}
	cg.Logf(format, args...)
}

// commandFromBody strips reply quotes and signatures, keeping the part the
// sender actually typed.
func commandFromBody(body string) string {
	lines := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")
	var kept []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, ">") {
			break
		}
		if trimmed == "--" || trimmed == "-- " {
			break
		}
		if strings.HasPrefix(trimmed, "On ") && strings.HasSuffix(trimmed, "wrote:") {
			break
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
