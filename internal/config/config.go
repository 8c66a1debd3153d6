// Package config assembles the runtime configuration of the tracer
// binary from the environment, mounted secrets, and an optional file.
package config

import (
	"fmt"
	"strings"

	"github.com/PeriniM/langsmith-bedrock-agents/runtimeconfig"
)

const (
	DefaultRegion   = "eu-north-1"
	DefaultEndpoint = "https://api.smith.langchain.com/otel"
	DefaultProject  = "bedrock-agents"

	serviceName    = "bedrock-agent"
	serviceVersion = "0.0.0"
)

type Config struct {
	AgentID      string
	AgentAliasID string
	Region       string

	LangSmithEndpoint string
	LangSmithAPIKey   string
	LangSmithProject  string

	ServiceName    string
	ServiceVersion string

	TraceDB             string
	StreamFinalResponse bool
	GuardrailInterval   int
}

// FromEnv builds the configuration from environment variables, reading
// the LangSmith API key from a mounted secret when present.
func FromEnv() Config {
	return Config{
		AgentID:             GetEnv("AGENT_ID", ""),
		AgentAliasID:        GetEnv("AGENT_ALIAS_ID", ""),
		Region:              GetEnv("AWS_REGION", DefaultRegion),
		LangSmithEndpoint:   GetEnv("LANGSMITH_OTLP_ENDPOINT", DefaultEndpoint),
		LangSmithAPIKey:     ReadSecret("langsmith-api-key"),
		LangSmithProject:    GetEnv("LANGSMITH_PROJECT", DefaultProject),
		ServiceName:         serviceName,
		ServiceVersion:      serviceVersion,
		TraceDB:             GetEnv("TRACE_DB_PATH", ""),
		StreamFinalResponse: ParseBoolEnv("STREAM_FINAL_RESPONSE", false),
		GuardrailInterval:   ParseIntEnv("APPLY_GUARDRAIL_INTERVAL", 10),
	}
}

// ApplyFile overlays non-empty values from a config file.
func (c *Config) ApplyFile(fc runtimeconfig.Config) {
	if fc.AgentID != "" {
		c.AgentID = fc.AgentID
	}
	if fc.AgentAliasID != "" {
		c.AgentAliasID = fc.AgentAliasID
	}
	if fc.Region != "" {
		c.Region = fc.Region
	}
	if fc.Endpoint != "" {
		c.LangSmithEndpoint = fc.Endpoint
	}
	if fc.Project != "" {
		c.LangSmithProject = fc.Project
	}
	if fc.TraceDB != "" {
		c.TraceDB = fc.TraceDB
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.AgentID) == "" {
		return fmt.Errorf("AGENT_ID is required")
	}
	if strings.TrimSpace(c.AgentAliasID) == "" {
		return fmt.Errorf("AGENT_ALIAS_ID is required")
	}
	return nil
}
