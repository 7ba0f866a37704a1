package digest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// DigestConfig is the "digest" section of config.json.
type DigestConfig struct {
	Enabled  bool   `json:"enabled"`
	JobsPath string `json:"jobs_path"`
}

func LoadDigestConfig(path string) (DigestConfig, error) {
	if strings.TrimSpace(path) == "" {
		path = "config.json"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return DigestConfig{}, err
	}

	var root map[string]json.RawMessage
	if err := json.Unmarshal(data, &root); err != nil {
		return DigestConfig{}, fmt.Errorf("parse config.json: %w", err)
	}

	var cfg DigestConfig
	if raw, ok := root["digest"]; ok && len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return DigestConfig{}, fmt.Errorf("parse config.json.digest: %w", err)
		}
	}
	if strings.TrimSpace(cfg.JobsPath) == "" {
		cfg.JobsPath = "digests.yaml"
	}
	return cfg, nil
}
