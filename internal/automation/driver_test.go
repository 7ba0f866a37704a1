package automation

import (
	"context"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/aman0603/Conversation-Assistant/internal/chat"
)

type scriptedCaller struct {
	results map[string]*mcp.CallToolResult
	err     error
	calls   []*mcp.CallToolParams
}

func textResult(text string, isError bool) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: isError,
	}
}

func (s *scriptedCaller) CallTool(ctx context.Context, params *mcp.CallToolParams) (*mcp.CallToolResult, error) {
	s.calls = append(s.calls, params)
	if s.err != nil {
		return nil, s.err
	}
	return s.results[params.Name], nil
}

func testDriver(caller *scriptedCaller) *MCPDriver {
	cfg := Config{}
	cfg.applyDefaults()
	return &MCPDriver{session: caller, tools: cfg.Tools, logf: func(string, ...any) {}}
}

func TestListChats_DecodesToolOutput(t *testing.T) {
	caller := &scriptedCaller{results: map[string]*mcp.CallToolResult{
		"list_chats": textResult(`[
			{"name": "Sarah", "last_message": "see you soon"},
			{"name": "", "last_message": "dropped"},
			{"name": "Mike"}
		]`, false),
	}}
	d := testDriver(caller)

	chats, err := d.ListChats(context.Background())
	if err != nil {
		t.Fatalf("ListChats: %v", err)
	}
	if len(chats) != 2 {
		t.Fatalf("chats = %+v, want nameless row dropped", chats)
	}
	if chats[0].Name != "Sarah" || chats[0].LastMessage != "see you soon" {
		t.Fatalf("first chat = %+v", chats[0])
	}
}

func TestFetchMessages_DirectionAndSequence(t *testing.T) {
	caller := &scriptedCaller{results: map[string]*mcp.CallToolResult{
		"list_messages": textResult(`[
			{"text": "hi", "sender": "Sarah", "direction": "incoming", "timestamp": "10:01"},
			{"text": "hey", "sender": "me", "direction": "outgoing"},
			{"text": "??", "sender": "Sarah", "direction": "sideways"}
		]`, false),
	}}
	d := testDriver(caller)

	msgs, err := d.FetchMessages(context.Background(), "Sarah", 10)
	if err != nil {
		t.Fatalf("FetchMessages: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("got %d messages", len(msgs))
	}
	if msgs[0].Direction != chat.DirectionIncoming || msgs[1].Direction != chat.DirectionOutgoing {
		t.Fatalf("directions = %q %q", msgs[0].Direction, msgs[1].Direction)
	}
	// Unknown direction defaults to incoming.
	if msgs[2].Direction != chat.DirectionIncoming {
		t.Fatalf("unknown direction = %q", msgs[2].Direction)
	}
	for i, m := range msgs {
		if m.SequenceIndex != i {
			t.Fatalf("sequence index %d = %d", i, m.SequenceIndex)
		}
	}

	if len(caller.calls) != 1 {
		t.Fatalf("calls = %d", len(caller.calls))
	}
	args, ok := caller.calls[0].Arguments.(map[string]any)
	if !ok || args["chat"] != "Sarah" || args["count"] != 10 {
		t.Fatalf("arguments = %#v", caller.calls[0].Arguments)
	}
}

func TestSendText_ResultShapes(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		want    bool
		wantErr bool
	}{
		{name: "ok json", raw: `{"ok": true}`, want: true},
		{name: "not ok json", raw: `{"ok": false}`, want: false},
		{name: "error json", raw: `{"ok": false, "error": "chat not found"}`, wantErr: true},
		{name: "bare sentence", raw: `Sent to Sarah`, want: true},
		{name: "bare failure", raw: `could not find chat`, want: false},
		{name: "empty", raw: ``, want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			caller := &scriptedCaller{results: map[string]*mcp.CallToolResult{
				"send_message": textResult(tc.raw, false),
			}}
			d := testDriver(caller)
			got, err := d.SendText(context.Background(), "Sarah", "hello")
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got ok=%v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("SendText: %v", err)
			}
			if got != tc.want {
				t.Fatalf("ok = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCall_ToolErrorSurfaces(t *testing.T) {
	caller := &scriptedCaller{results: map[string]*mcp.CallToolResult{
		"list_chats": textResult("browser session lost", true),
	}}
	d := testDriver(caller)
	if _, err := d.ListChats(context.Background()); err == nil {
		t.Fatal("IsError result must surface as an error")
	}
}

func TestCall_TransportErrorSurfaces(t *testing.T) {
	caller := &scriptedCaller{err: errors.New("pipe closed")}
	d := testDriver(caller)
	if _, err := d.ListChats(context.Background()); err == nil {
		t.Fatal("transport error must surface")
	}
}

func TestScriptedDriver_RoundTrip(t *testing.T) {
	d := NewScriptedDriver()
	d.SetChats([]chat.ChatSummary{{Name: "Sarah", LastMessage: "hi"}})
	d.SetMessages("Sarah", []chat.Message{
		{Text: "hi", Sender: "Sarah", Direction: chat.DirectionIncoming},
	})

	ctx := context.Background()
	chats, err := d.ListChats(ctx)
	if err != nil || len(chats) != 1 {
		t.Fatalf("ListChats = %v, %v", chats, err)
	}

	ok, err := d.SendText(ctx, "Sarah", "hello back")
	if err != nil || !ok {
		t.Fatalf("SendText = %v, %v", ok, err)
	}

	msgs, err := d.FetchMessages(ctx, "sarah", 10)
	if err != nil {
		t.Fatalf("FetchMessages: %v", err)
	}
	if len(msgs) != 2 || msgs[1].Direction != chat.DirectionOutgoing {
		t.Fatalf("messages = %+v", msgs)
	}

	if _, err := d.FetchMessages(ctx, "Nobody", 10); err == nil {
		t.Fatal("unknown chat must error")
	}
}
