package chat

import (
	"context"
	"time"
)

type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// Contact identity is the display name, case-insensitive. The automation
// backend guarantees no stable ID, so resolution always runs against the
// current chat-list snapshot.
type Contact struct {
	DisplayName string `json:"display_name"`
	RawID       string `json:"raw_id,omitempty"`
}

// Message is one entry of a bounded trailing retrieval window, oldest first.
// SequenceIndex is the position within the window, not the full history.
type Message struct {
	Text          string    `json:"text"`
	Sender        string    `json:"sender"`
	Direction     Direction `json:"direction"`
	Timestamp     string    `json:"timestamp,omitempty"`
	SequenceIndex int       `json:"sequence_index"`
}

type ChatSummary struct {
	Name        string `json:"name"`
	LastMessage string `json:"last_message,omitempty"`
}

// Driver is the UI-automation collaborator. FetchMessages returns a
// chronological trailing window of up to count messages; absence of earlier
// history means unknown, not empty.
type Driver interface {
	ListChats(ctx context.Context) ([]ChatSummary, error)
	FetchMessages(ctx context.Context, chatName string, count int) ([]Message, error)
	SendText(ctx context.Context, chatName, text string) (bool, error)
}

// Completer is the language-model collaborator. Output carries no schema
// guarantee; callers must tolerate prose wrapped around JSON.
type Completer interface {
	Complete(ctx context.Context, prompt, systemPrompt string) (string, error)
}

// Result is what one executed Action renders to the operator.
type Result struct {
	OK      bool
	Text    string
	Payload any
}

type HistoryEntry struct {
	Time      time.Time
	Text      string
	Direction Direction
}
