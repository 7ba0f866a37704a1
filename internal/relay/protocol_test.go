package relay

import (
	"encoding/json"
	"testing"

	"github.com/aman0603/Conversation-Assistant/internal/chat"
)

func TestFramesAreFlat(t *testing.T) {
	frame := CommandFrame{
		Header:  NewHeader(MsgTypeCommand, "term-1", "req-1"),
		Command: "send hi to Jon",
		Context: CommandContext{LastContact: "Jon", ContactList: []string{"Jon", "Sarah"}},
	}
	data, err := marshalFrame(frame)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"type", "client_id", "timestamp", "request_id", "command", "context"} {
		if _, ok := flat[key]; !ok {
			t.Fatalf("missing top-level field %q in %s", key, data)
		}
	}
	if _, ok := flat["Header"]; ok {
		t.Fatalf("header must be inlined, got %s", data)
	}
}

func TestPeekType(t *testing.T) {
	cases := []struct {
		name    string
		data    string
		want    string
		wantErr bool
	}{
		{name: "ping", data: `{"type":"ping","client_id":"a"}`, want: MsgTypePing},
		{name: "response", data: `{"type":"response","request_id":"r1","content":{"action":"list"}}`, want: MsgTypeResponse},
		{name: "no type", data: `{"client_id":"a"}`, wantErr: true},
		{name: "not json", data: `hello`, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := PeekType([]byte(tc.data))
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("PeekType: %v", err)
			}
			if got != tc.want {
				t.Fatalf("type = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestResponseFrameCarriesAction(t *testing.T) {
	frame := ResponseFrame{
		Header:       NewHeader(MsgTypeResponse, "relay-1", "req-9"),
		ResponseType: ResponseTypeCommandResult,
		Content:      chat.Action{Kind: chat.KindSend, Contact: "Sarah", Message: "hello"},
	}
	data, err := marshalFrame(frame)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back ResponseFrame
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.RequestID != "req-9" {
		t.Fatalf("request_id = %q", back.RequestID)
	}
	if back.Content.Kind != chat.KindSend || back.Content.Contact != "Sarah" {
		t.Fatalf("content = %+v", back.Content)
	}
}
