package automation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/aman0603/Conversation-Assistant/internal/chat"
)

const (
	clientName    = "conversation-assistant"
	clientVersion = "dev"
)

// toolCaller is the slice of mcp.ClientSession the driver needs; tests
// substitute a scripted one.
type toolCaller interface {
	CallTool(ctx context.Context, params *mcp.CallToolParams) (*mcp.CallToolResult, error)
}

// MCPDriver implements chat.Driver over one MCP session. Each driver call is
// one tool call; the server is trusted to return the documented JSON shapes
// and anything else surfaces as an error, never a panic.
type MCPDriver struct {
	session toolCaller
	closer  func() error
	tools   ToolNames
	logf    func(format string, args ...any)
}

// Connect dials the configured MCP server and checks that the three driver
// tools are present before handing the session to the chat layer.
func Connect(ctx context.Context, cfg Config, logf func(format string, args ...any)) (*MCPDriver, error) {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	cfg.applyDefaults()

	transport, err := transportFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	client := mcp.NewClient(&mcp.Implementation{
		Name:    clientName,
		Version: clientVersion,
	}, nil)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("automation connect: %w", err)
	}

	available, err := listToolNames(ctx, session)
	if err != nil {
		_ = session.Close()
		return nil, fmt.Errorf("automation list tools: %w", err)
	}
	for _, required := range []string{cfg.Tools.ListChats, cfg.Tools.ListMessages, cfg.Tools.SendMessage} {
		if !available[required] {
			_ = session.Close()
			return nil, fmt.Errorf("automation server does not expose tool %q", required)
		}
	}

	return &MCPDriver{
		session: session,
		closer:  session.Close,
		tools:   cfg.Tools,
		logf:    logf,
	}, nil
}

func listToolNames(ctx context.Context, session *mcp.ClientSession) (map[string]bool, error) {
	names := make(map[string]bool)
	cursor := ""
	for {
		params := &mcp.ListToolsParams{}
		if cursor != "" {
			params.Cursor = cursor
		}
		res, err := session.ListTools(ctx, params)
		if err != nil {
			return nil, err
		}
		for _, tool := range res.Tools {
			if tool != nil {
				names[tool.Name] = true
			}
		}
		if res.NextCursor == "" {
			break
		}
		cursor = res.NextCursor
	}
	return names, nil
}

func (d *MCPDriver) Close() error {
	if d == nil || d.closer == nil {
		return nil
	}
	return d.closer()
}

func (d *MCPDriver) ListChats(ctx context.Context) ([]chat.ChatSummary, error) {
	raw, err := d.call(ctx, d.tools.ListChats, map[string]any{})
	if err != nil {
		return nil, err
	}
	return decodeChats(raw)
}

func (d *MCPDriver) FetchMessages(ctx context.Context, chatName string, count int) ([]chat.Message, error) {
	raw, err := d.call(ctx, d.tools.ListMessages, map[string]any{
		"chat":  chatName,
		"count": count,
	})
	if err != nil {
		return nil, err
	}
	return decodeMessages(raw)
}

func (d *MCPDriver) SendText(ctx context.Context, chatName, text string) (bool, error) {
	raw, err := d.call(ctx, d.tools.SendMessage, map[string]any{
		"chat":    chatName,
		"message": text,
	})
	if err != nil {
		return false, err
	}
	return decodeSendResult(raw)
}

func (d *MCPDriver) call(ctx context.Context, tool string, args map[string]any) (string, error) {
	if d == nil || d.session == nil {
		return "", errors.New("automation driver is not connected")
	}
	res, err := d.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      tool,
		Arguments: args,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", tool, err)
	}
	text := joinTextContent(res)
	if res != nil && res.IsError {
		d.logf("automation: %s reported error: %s", tool, text)
		return "", fmt.Errorf("%s: %s", tool, strings.TrimSpace(text))
	}
	return text, nil
}

func joinTextContent(res *mcp.CallToolResult) string {
	if res == nil {
		return ""
	}
	parts := make([]string, 0, len(res.Content))
	for _, item := range res.Content {
		if text, ok := item.(*mcp.TextContent); ok {
			parts = append(parts, text.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func decodeChats(raw string) ([]chat.ChatSummary, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	var rows []struct {
		Name        string `json:"name"`
		LastMessage string `json:"last_message"`
	}
	if err := json.Unmarshal([]byte(trimmed), &rows); err != nil {
		return nil, fmt.Errorf("parse chat list: %w", err)
	}
	out := make([]chat.ChatSummary, 0, len(rows))
	for _, row := range rows {
		name := strings.TrimSpace(row.Name)
		if name == "" {
			continue
		}
		out = append(out, chat.ChatSummary{Name: name, LastMessage: row.LastMessage})
	}
	return out, nil
}

func decodeMessages(raw string) ([]chat.Message, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	var rows []struct {
		Text      string `json:"text"`
		Sender    string `json:"sender"`
		Direction string `json:"direction"`
		Timestamp string `json:"timestamp"`
	}
	if err := json.Unmarshal([]byte(trimmed), &rows); err != nil {
		return nil, fmt.Errorf("parse messages: %w", err)
	}
	out := make([]chat.Message, 0, len(rows))
	for i, row := range rows {
		direction := chat.DirectionIncoming
		if strings.EqualFold(strings.TrimSpace(row.Direction), string(chat.DirectionOutgoing)) {
			direction = chat.DirectionOutgoing
		}
		out = append(out, chat.Message{
			Text:          row.Text,
			Sender:        row.Sender,
			Direction:     direction,
			Timestamp:     row.Timestamp,
			SequenceIndex: i,
		})
	}
	return out, nil
}

func decodeSendResult(raw string) (bool, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return false, nil
	}
	var res struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(trimmed), &res); err != nil {
		// Some servers answer with a bare sentence instead of JSON.
		return strings.HasPrefix(strings.ToLower(trimmed), "sent"), nil
	}
	if res.Error != "" {
		return false, errors.New(res.Error)
	}
	return res.OK, nil
}
