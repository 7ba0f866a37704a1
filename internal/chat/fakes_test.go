package chat

import (
	"context"
	"errors"
)

// fakeDriver is a scripted automation backend for tests.
type fakeDriver struct {
	chats    []ChatSummary
	messages map[string][]Message

	sendOK   bool
	sendErr  error
	listErr  error
	fetchErr error

	sentTo   []string
	sentText []string
	fetched  []string
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		messages: make(map[string][]Message),
		sendOK:   true,
	}
}

func (d *fakeDriver) ListChats(ctx context.Context) ([]ChatSummary, error) {
	if d.listErr != nil {
		return nil, d.listErr
	}
	return d.chats, nil
}

func (d *fakeDriver) FetchMessages(ctx context.Context, chatName string, count int) ([]Message, error) {
	d.fetched = append(d.fetched, chatName)
	if d.fetchErr != nil {
		return nil, d.fetchErr
	}
	msgs := d.messages[chatName]
	if len(msgs) > count {
		msgs = msgs[len(msgs)-count:]
	}
	return msgs, nil
}

func (d *fakeDriver) SendText(ctx context.Context, chatName, text string) (bool, error) {
	d.sentTo = append(d.sentTo, chatName)
	d.sentText = append(d.sentText, text)
	if d.sendErr != nil {
		return false, d.sendErr
	}
	return d.sendOK, nil
}

// fakeCompleter returns a canned reply and records what it was asked.
type fakeCompleter struct {
	reply   string
	err     error
	prompts []string
	systems []string
}

func (c *fakeCompleter) Complete(ctx context.Context, prompt, systemPrompt string) (string, error) {
	c.prompts = append(c.prompts, prompt)
	c.systems = append(c.systems, systemPrompt)
	if c.err != nil {
		return "", c.err
	}
	return c.reply, nil
}

var errFakeCollaborator = errors.New("collaborator failed")
