package chat

import "testing"

func window(msgs ...Message) []Message {
	for i := range msgs {
		msgs[i].SequenceIndex = i
	}
	return msgs
}

func in(text string) Message  { return Message{Text: text, Direction: DirectionIncoming} }
func out(text string) Message { return Message{Text: text, Direction: DirectionOutgoing} }

func TestSelectMessages(t *testing.T) {
	msgs := window(in("hi"), out("yo"), in("sup"), in("bye"))

	t.Run("last_from_contact", func(t *testing.T) {
		sel := SelectMessages(msgs, QueryLastFromContact, 1)
		if !sel.Found || sel.Message.Text != "bye" {
			t.Fatalf("got found=%v text=%q, want bye", sel.Found, sel.Message.Text)
		}
	})

	t.Run("last_from_me", func(t *testing.T) {
		sel := SelectMessages(msgs, QueryLastFromMe, 1)
		if !sel.Found || sel.Message.Text != "yo" {
			t.Fatalf("got found=%v text=%q, want yo", sel.Found, sel.Message.Text)
		}
	})

	t.Run("second_from_contact", func(t *testing.T) {
		// incoming filters to [hi sup bye]; position 2 is second from the end.
		sel := SelectMessages(msgs, QueryPositionFromContact, 2)
		if !sel.Found || sel.Message.Text != "sup" {
			t.Fatalf("got found=%v text=%q, want sup", sel.Found, sel.Message.Text)
		}
	})

	t.Run("position_beyond_window_reports_count", func(t *testing.T) {
		sel := SelectMessages(msgs, QueryPositionFromContact, 4)
		if sel.Found {
			t.Fatalf("expected not-found")
		}
		if sel.IncomingCount != 3 {
			t.Fatalf("IncomingCount = %d, want 3", sel.IncomingCount)
		}
	})

	t.Run("all_trailing_window", func(t *testing.T) {
		long := window(in("a"), out("b"), in("c"), out("d"), in("e"), in("f"))
		sel := SelectMessages(long, QueryAll, 1)
		if !sel.Found || len(sel.Window) != 5 {
			t.Fatalf("got found=%v len=%d, want window of 5", sel.Found, len(sel.Window))
		}
		if sel.Window[0].Text != "b" || sel.Window[4].Text != "f" {
			t.Fatalf("window = %q..%q, want b..f", sel.Window[0].Text, sel.Window[4].Text)
		}
	})

	t.Run("no_incoming", func(t *testing.T) {
		sel := SelectMessages(window(out("one"), out("two")), QueryLastFromContact, 1)
		if sel.Found || sel.IncomingCount != 0 {
			t.Fatalf("got found=%v incoming=%d, want miss with 0", sel.Found, sel.IncomingCount)
		}
	})

	t.Run("empty_window_never_panics", func(t *testing.T) {
		for _, q := range []QueryType{QueryAll, QueryLastFromContact, QueryLastFromMe, QueryPositionFromContact} {
			if sel := SelectMessages(nil, q, 3); sel.Found {
				t.Fatalf("query %q on empty window reported found", q)
			}
		}
	})
}

func TestPositionPhrase(t *testing.T) {
	cases := []struct {
		position int
		want     string
	}{
		{1, "last"},
		{2, "2nd last"},
		{3, "3rd last"},
		{4, "4th last"},
		{11, "11th last"},
		{12, "12th last"},
		{13, "13th last"},
		{21, "21st last"},
		{22, "22nd last"},
		{101, "101st last"},
		{111, "111th last"},
	}
	for _, tc := range cases {
		if got := PositionPhrase(tc.position); got != tc.want {
			t.Fatalf("PositionPhrase(%d) = %q, want %q", tc.position, got, tc.want)
		}
	}
}

func TestOrdinalSuffixRules(t *testing.T) {
	// Every n in 11..20 takes "th" regardless of the final digit.
	for n := 11; n <= 13; n++ {
		want := "th"
		got := Ordinal(n)
		if got[len(got)-2:] != want {
			t.Fatalf("Ordinal(%d) = %q, want suffix %q", n, got, want)
		}
	}
}
