package relay

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

type RelayConfig struct {
	URL               string `json:"url"`
	Secret            string `json:"secret"`
	ClientID          string `json:"client_id"`
	Name              string `json:"name"`
	Listen            string `json:"listen"`
	RedisURL          string `json:"redis_url"`
	SessionTTLSeconds int    `json:"session_ttl_seconds"`
}

// LoadRelayConfig reads the relay section of config.json. The same section
// serves both sides: the client reads url/secret/client_id, the server reads
// listen/secret/redis_url.
func LoadRelayConfig(path string) (RelayConfig, error) {
	if strings.TrimSpace(path) == "" {
		path = "config.json"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return RelayConfig{}, err
	}
	var root map[string]json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil {
		return RelayConfig{}, fmt.Errorf("parse config.json: %w", err)
	}
	var cfg RelayConfig
	if raw, ok := root["relay"]; ok && len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return RelayConfig{}, fmt.Errorf("parse config.json.relay: %w", err)
		}
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *RelayConfig) applyDefaults() {
	if c == nil {
		return
	}
	if strings.TrimSpace(c.URL) == "" {
		c.URL = "ws://localhost:8002/ws"
	}
	if strings.TrimSpace(c.Listen) == "" {
		c.Listen = ":8002"
	}
	if c.SessionTTLSeconds <= 0 {
		c.SessionTTLSeconds = 3600
	}
}

func DecodeSecretBase64(secret string) ([]byte, error) {
	raw := strings.TrimSpace(secret)
	if raw == "" {
		return nil, errors.New("relay.secret is empty")
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("decode relay.secret: %w", err)
	}
	if len(decoded) < 16 {
		return nil, errors.New("relay.secret is too short")
	}
	return decoded, nil
}
