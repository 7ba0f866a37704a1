package automation

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aman0603/Conversation-Assistant/internal/chat"
)

// ScriptedDriver is an in-memory chat.Driver. It backs tests of the layers
// above the automation boundary and the --dry-run mode, where commands should
// flow end to end without a browser session.
type ScriptedDriver struct {
	mu       sync.Mutex
	chats    []chat.ChatSummary
	messages map[string][]chat.Message
	sendOK   bool
	sent     []SentText
}

type SentText struct {
	Chat string
	Text string
}

func NewScriptedDriver() *ScriptedDriver {
	return &ScriptedDriver{
		messages: make(map[string][]chat.Message),
		sendOK:   true,
	}
}

func (d *ScriptedDriver) SetChats(chats []chat.ChatSummary) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.chats = chats
}

func (d *ScriptedDriver) SetMessages(chatName string, msgs []chat.Message) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages[strings.ToLower(chatName)] = msgs
}

func (d *ScriptedDriver) SetSendOK(ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sendOK = ok
}

func (d *ScriptedDriver) Sent() []SentText {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]SentText, len(d.sent))
	copy(out, d.sent)
	return out
}

func (d *ScriptedDriver) ListChats(ctx context.Context) ([]chat.ChatSummary, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]chat.ChatSummary, len(d.chats))
	copy(out, d.chats)
	return out, nil
}

func (d *ScriptedDriver) FetchMessages(ctx context.Context, chatName string, count int) ([]chat.Message, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	msgs, ok := d.messages[strings.ToLower(chatName)]
	if !ok {
		return nil, fmt.Errorf("no such chat: %s", chatName)
	}
	if count > 0 && len(msgs) > count {
		msgs = msgs[len(msgs)-count:]
	}
	out := make([]chat.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (d *ScriptedDriver) SendText(ctx context.Context, chatName, text string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.sendOK {
		return false, nil
	}
	d.sent = append(d.sent, SentText{Chat: chatName, Text: text})
	key := strings.ToLower(chatName)
	d.messages[key] = append(d.messages[key], chat.Message{
		Text:      text,
		Sender:    "me",
		Direction: chat.DirectionOutgoing,
	})
	return true, nil
}
