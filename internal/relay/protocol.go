// Package relay carries parse requests from a terminal client to a server
// that runs the language model, over one persistent websocket per client.
// Frames are flat JSON objects: every frame has type, client_id and
// timestamp; request/response pairs are correlated by request_id.
package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aman0603/Conversation-Assistant/internal/chat"
)

const (
	MsgTypeRegister    = "register"
	MsgTypeRegisterAck = "register_ack"
	MsgTypePing        = "ping"
	MsgTypePong        = "pong"
	MsgTypeCommand     = "whatsapp_ai_command"
	MsgTypeResponse    = "response"
	MsgTypeError       = "error"
)

const (
	ResponseTypeCommandResult = "whatsapp_command_result"
	ResponseTypeParseError    = "ai_parse_error"
)

type Header struct {
	Type      string `json:"type"`
	ClientID  string `json:"client_id,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func NewHeader(msgType, clientID, requestID string) Header {
	return Header{
		Type:      msgType,
		ClientID:  strings.TrimSpace(clientID),
		Timestamp: time.Now().UTC().Unix(),
		RequestID: strings.TrimSpace(requestID),
	}
}

type RegisterAuth struct {
	TS    int64  `json:"ts"`
	Nonce string `json:"nonce"`
	Sig   string `json:"sig"`
}

type RegisterFrame struct {
	Header
	Name    string       `json:"name,omitempty"`
	Version string       `json:"version,omitempty"`
	Auth    RegisterAuth `json:"auth"`
}

type RegisterAckFrame struct {
	Header
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

type PingFrame struct {
	Header
}

type PongFrame struct {
	Header
}

// CommandContext rides along with each parse request so the server can
// resolve contacts and pronouns without holding terminal state.
type CommandContext struct {
	LastContact string   `json:"last_contact,omitempty"`
	ContactList []string `json:"contact_list,omitempty"`
}

type CommandFrame struct {
	Header
	Command string         `json:"command"`
	Context CommandContext `json:"context"`
}

type ResponseFrame struct {
	Header
	ResponseType string      `json:"response_type"`
	Content      chat.Action `json:"content"`
	Error        string      `json:"error,omitempty"`
}

type ErrorFrame struct {
	Header
	Error string `json:"error"`
}

// PeekType reads just the type field so the caller can pick the frame
// struct to decode into.
func PeekType(data []byte) (string, error) {
	var probe Header
	if err := json.Unmarshal(data, &probe); err != nil {
		return "", err
	}
	typ := strings.TrimSpace(probe.Type)
	if typ == "" {
		return "", errors.New("frame has no type")
	}
	return typ, nil
}

func marshalFrame(frame any) ([]byte, error) {
	data, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("marshal frame: %w", err)
	}
	return data, nil
}
