package chat

import "fmt"

// displayWindow bounds the "all" view; it is a display cap on top of the
// retrieval window, not a second fetch.
const displayWindow = 5

// Selection is the outcome of applying one query type to a retrieval window.
// For QueryAll the Window field holds the trailing display slice; for the
// single-message queries Message holds the hit when Found is true.
// IncomingCount reports how many incoming messages the window actually had,
// so positional misses can say "wanted 4th, found 2".
type Selection struct {
	Found         bool
	Message       Message
	Window        []Message
	IncomingCount int
}

// SelectMessages extracts the requested message(s) from a chronological
// window (oldest first). The window is already bounded to the newest count
// by retrieval; the selector trusts that and never re-bounds it.
func SelectMessages(messages []Message, query QueryType, position int) Selection {
	if position < 1 {
		position = 1
	}
	incoming := filterDirection(messages, DirectionIncoming)

	switch query {
	case QueryLastFromContact:
		if len(incoming) == 0 {
			return Selection{IncomingCount: 0}
		}
		return Selection{Found: true, Message: incoming[len(incoming)-1], IncomingCount: len(incoming)}
	case QueryLastFromMe:
		outgoing := filterDirection(messages, DirectionOutgoing)
		if len(outgoing) == 0 {
			return Selection{IncomingCount: len(incoming)}
		}
		return Selection{Found: true, Message: outgoing[len(outgoing)-1], IncomingCount: len(incoming)}
	case QueryPositionFromContact:
		if len(incoming) < position {
			return Selection{IncomingCount: len(incoming)}
		}
		// position 1 is the last element, 2 the second-to-last, and so on.
		return Selection{Found: true, Message: incoming[len(incoming)-position], IncomingCount: len(incoming)}
	default:
		window := messages
		if len(window) > displayWindow {
			window = window[len(window)-displayWindow:]
		}
		return Selection{Found: len(window) > 0, Window: window, IncomingCount: len(incoming)}
	}
}

func filterDirection(messages []Message, dir Direction) []Message {
	out := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Direction == dir {
			out = append(out, m)
		}
	}
	return out
}

// Ordinal renders 1 -> "1st", 2 -> "2nd", 11 -> "11th", 21 -> "21st".
func Ordinal(n int) string {
	suffix := "th"
	if n%100 < 11 || n%100 > 13 {
		switch n % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%d%s", n, suffix)
}

// PositionPhrase is the user-facing form of a positional query:
// 1 -> "last", n -> "{n}th last".
func PositionPhrase(position int) string {
	if position <= 1 {
		return "last"
	}
	return Ordinal(position) + " last"
}
