package chat

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

func TestExecuteSend(t *testing.T) {
	t.Run("success_resolves_and_records_last_contact", func(t *testing.T) {
		d := newFakeDriver()
		sess := NewSession("")
		sess.ReplaceContacts(contactsOf("John Doe", "Sarah"))
		e := &Executor{Driver: d}

		res := e.Execute(context.Background(), Action{Kind: KindSend, Contact: "john doe", Message: "hi"}, sess)
		if !res.OK || res.Text != "Sent to John Doe" {
			t.Fatalf("result = %+v", res)
		}
		if sess.LastContactName() != "John Doe" {
			t.Fatalf("last contact = %q, want John Doe", sess.LastContactName())
		}
		if len(d.sentTo) != 1 || d.sentTo[0] != "John Doe" {
			t.Fatalf("sent to %v", d.sentTo)
		}
	})

	t.Run("failure_is_reported_not_retried", func(t *testing.T) {
		d := newFakeDriver()
		d.sendOK = false
		sess := NewSession("")
		sess.ReplaceContacts(contactsOf("Sarah"))
		e := &Executor{Driver: d}

		res := e.Execute(context.Background(), Action{Kind: KindSend, Contact: "Sarah", Message: "hi"}, sess)
		if res.OK {
			t.Fatalf("expected failure result")
		}
		if res.Text != "Failed to send to Sarah" {
			t.Fatalf("text = %q", res.Text)
		}
		if len(d.sentTo) != 1 {
			t.Fatalf("send attempted %d times, want exactly 1", len(d.sentTo))
		}
		// Resolution still happened, so the matched contact is recorded.
		if sess.LastContactName() != "Sarah" {
			t.Fatalf("last contact = %q", sess.LastContactName())
		}
	})

	t.Run("unresolved_target_does_not_set_last_contact", func(t *testing.T) {
		d := newFakeDriver()
		d.sendOK = false
		sess := NewSession("")
		sess.ReplaceContacts(contactsOf("Alice"))
		e := &Executor{Driver: d}

		e.Execute(context.Background(), Action{Kind: KindSend, Contact: "Zelda", Message: "hi"}, sess)
		if sess.LastContact != nil {
			t.Fatalf("last contact = %q, want unset", sess.LastContactName())
		}
		// The literal name is still handed to the backend's own search.
		if len(d.sentTo) != 1 || d.sentTo[0] != "Zelda" {
			t.Fatalf("sent to %v", d.sentTo)
		}
	})
}

func TestExecuteList(t *testing.T) {
	d := newFakeDriver()
	for i := 1; i <= 18; i++ {
		d.chats = append(d.chats, ChatSummary{Name: fmt.Sprintf("Contact %02d", i)})
	}
	sess := NewSession("")
	e := &Executor{Driver: d}

	res := e.Execute(context.Background(), Action{Kind: KindList}, sess)
	if !res.OK {
		t.Fatalf("result = %+v", res)
	}
	if got := strings.Count(res.Text, "\n"); got != 15 {
		// Header line plus 15 numbered entries.
		t.Fatalf("display lines = %d, want capped at 15 entries", got)
	}
	contacts, ok := res.Payload.([]Contact)
	if !ok || len(contacts) != 18 {
		t.Fatalf("payload = %T len %d, want full 18 contacts", res.Payload, len(contacts))
	}
	if len(sess.Contacts) != 18 {
		t.Fatalf("session contacts = %d, want 18", len(sess.Contacts))
	}
}

func TestExecuteRead(t *testing.T) {
	d := newFakeDriver()
	d.messages["Emma"] = window(in("hi"), out("yo"), in("sup"), in("bye"))
	sess := NewSession("")
	sess.ReplaceContacts(contactsOf("Emma"))
	e := &Executor{Driver: d}

	t.Run("last_from_contact", func(t *testing.T) {
		res := e.Execute(context.Background(), Action{Kind: KindRead, Contact: "Emma", Count: 10, Query: QueryLastFromContact, Position: 1}, sess)
		if !res.OK || res.Text != "Last message from Emma: bye" {
			t.Fatalf("result = %+v", res)
		}
	})

	t.Run("position_from_contact", func(t *testing.T) {
		res := e.Execute(context.Background(), Action{Kind: KindRead, Contact: "Emma", Count: 10, Query: QueryPositionFromContact, Position: 2}, sess)
		if !res.OK || res.Text != "2nd last message from Emma: sup" {
			t.Fatalf("result = %+v", res)
		}
	})

	t.Run("position_miss_reports_both_numbers", func(t *testing.T) {
		res := e.Execute(context.Background(), Action{Kind: KindRead, Contact: "Emma", Count: 10, Query: QueryPositionFromContact, Position: 5}, sess)
		if !res.OK {
			t.Fatalf("retrieval miss must not be an error: %+v", res)
		}
		if !strings.Contains(res.Text, "5th last") || !strings.Contains(res.Text, "only 3 incoming") {
			t.Fatalf("text = %q, want requested position and actual count", res.Text)
		}
	})

	t.Run("empty_window", func(t *testing.T) {
		res := e.Execute(context.Background(), Action{Kind: KindRead, Contact: "Ghost", Count: 10, Query: QueryAll, Position: 1}, sess)
		if !res.OK || !strings.Contains(res.Text, "No messages with Ghost") {
			t.Fatalf("result = %+v", res)
		}
	})
}

func TestExecuteSummary(t *testing.T) {
	d := newFakeDriver()
	d.messages["Mike"] = []Message{
		{Text: "lunch?", Sender: "Mike", Direction: DirectionIncoming},
		{Text: "sure", Sender: "You", Direction: DirectionOutgoing},
	}
	c := &fakeCompleter{reply: "- lunch plans\n- agreed\n- today"}
	sess := NewSession("")
	sess.ReplaceContacts(contactsOf("Mike"))
	e := &Executor{Driver: d, Completer: c}

	res := e.Execute(context.Background(), Action{Kind: KindSummary, Contact: "Mike", Count: 20}, sess)
	if !res.OK || !strings.HasPrefix(res.Text, "Summary of chat with Mike:") {
		t.Fatalf("result = %+v", res)
	}
	if len(c.prompts) != 1 || !strings.Contains(c.prompts[0], "Mike: lunch?") || !strings.Contains(c.prompts[0], "You: sure") {
		t.Fatalf("transcript prompt = %q", c.prompts)
	}
}

func TestExecuteSuggest(t *testing.T) {
	t.Run("uses_last_three_incoming", func(t *testing.T) {
		d := newFakeDriver()
		d.messages["Dave"] = window(in("a"), in("b"), out("x"), in("c"), in("d"))
		c := &fakeCompleter{reply: "1. ok\n2. sure\n3. later"}
		sess := NewSession("")
		sess.ReplaceContacts(contactsOf("Dave"))
		e := &Executor{Driver: d, Completer: c}

		res := e.Execute(context.Background(), Action{Kind: KindSuggest, Contact: "Dave"}, sess)
		if !res.OK {
			t.Fatalf("result = %+v", res)
		}
		if !strings.Contains(c.prompts[0], "b\nc\nd") {
			t.Fatalf("context prompt = %q, want last 3 incoming", c.prompts[0])
		}
	})

	t.Run("empty_conversation_still_calls_model", func(t *testing.T) {
		d := newFakeDriver()
		c := &fakeCompleter{reply: "1. hi\n2. hello\n3. hey"}
		sess := NewSession("")
		e := &Executor{Driver: d, Completer: c}

		res := e.Execute(context.Background(), Action{Kind: KindSuggest, Contact: "Nobody"}, sess)
		if !res.OK {
			t.Fatalf("result = %+v", res)
		}
		if len(c.prompts) != 1 || !strings.Contains(c.prompts[0], "No messages") {
			t.Fatalf("prompts = %q, want placeholder context", c.prompts)
		}
	})
}

func TestExecuteToggleAndStatus(t *testing.T) {
	sess := NewSession("relay")
	e := &Executor{Driver: newFakeDriver()}

	if res := e.Execute(context.Background(), Action{Kind: KindAutoOn}, sess); !res.OK || !sess.AutoReply {
		t.Fatalf("auto_on: %+v autoReply=%v", res, sess.AutoReply)
	}
	if res := e.Execute(context.Background(), Action{Kind: KindAutoOff}, sess); !res.OK || sess.AutoReply {
		t.Fatalf("auto_off: %+v autoReply=%v", res, sess.AutoReply)
	}

	sess.ReplaceContacts(contactsOf("Alice", "Bob"))
	res := e.Execute(context.Background(), Action{Kind: KindStatus}, sess)
	if !res.OK {
		t.Fatalf("status: %+v", res)
	}
	for _, want := range []string{"Mode: relay", "Auto-reply: off", "Contacts loaded: 2"} {
		if !strings.Contains(res.Text, want) {
			t.Fatalf("status text %q missing %q", res.Text, want)
		}
	}
}

func TestExecuteErrorPassthrough(t *testing.T) {
	e := &Executor{Driver: newFakeDriver()}
	res := e.Execute(context.Background(), ErrorAction("not understood"), NewSession(""))
	if res.OK || res.Text != "not understood" {
		t.Fatalf("result = %+v", res)
	}
}
