// Package automation drives the WhatsApp browser session through an MCP
// server. The server owns the DOM work; this package speaks its tool surface
// and maps results onto the chat types.
package automation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

type Config struct {
	Transport string            `json:"transport"`
	Command   string            `json:"command"`
	Args      []string          `json:"args,omitempty"`
	Dir       string            `json:"dir,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
	URL       string            `json:"url,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"`

	Tools ToolNames `json:"tools"`
}

// ToolNames maps the three driver operations onto the MCP server's tool
// names. Defaults match the reference automation server.
type ToolNames struct {
	ListChats    string `json:"list_chats"`
	ListMessages string `json:"list_messages"`
	SendMessage  string `json:"send_message"`
}

func LoadConfig(path string) (Config, error) {
	if strings.TrimSpace(path) == "" {
		path = "config.json"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var root map[string]json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil {
		return Config{}, fmt.Errorf("parse config.json: %w", err)
	}
	var cfg Config
	if raw, ok := root["automation"]; ok && len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config.json.automation: %w", err)
		}
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c == nil {
		return
	}
	if strings.TrimSpace(c.Tools.ListChats) == "" {
		c.Tools.ListChats = "list_chats"
	}
	if strings.TrimSpace(c.Tools.ListMessages) == "" {
		c.Tools.ListMessages = "list_messages"
	}
	if strings.TrimSpace(c.Tools.SendMessage) == "" {
		c.Tools.SendMessage = "send_message"
	}
}
