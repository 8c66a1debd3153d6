// Package runtimeconfig loads the optional JSON file that pins agent
// identifiers and export settings for a deployment.
package runtimeconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type Config struct {
	AgentID      string `json:"agentId"`
	AgentAliasID string `json:"agentAliasId"`
	Region       string `json:"region"`
	Endpoint     string `json:"endpoint"`
	Project      string `json:"project"`
	TraceDB      string `json:"traceDb"`
}

func Load(path string) (Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Config{}, fmt.Errorf("config path is required")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to resolve config path: %w", err)
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file %q: %w", absPath, err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config file %q as JSON: %w", absPath, err)
	}

	cfg.AgentID = strings.TrimSpace(cfg.AgentID)
	cfg.AgentAliasID = strings.TrimSpace(cfg.AgentAliasID)
	cfg.Region = strings.TrimSpace(cfg.Region)
	cfg.Endpoint = strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	cfg.Project = strings.TrimSpace(cfg.Project)
	cfg.TraceDB = strings.TrimSpace(cfg.TraceDB)
	return cfg, nil
}
