// Package config loads and watches the WebPilot configuration file.
// The file is JSON5 so operators can comment their config.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/titanous/json5"

	"github.com/nextlevelbuilder/webpilot/internal/store"
)

// Config is the root configuration.
type Config struct {
	Provider ProviderConfig `json:"provider"`
	Agent    AgentConfig    `json:"agent"`
	Browser  BrowserConfig  `json:"browser"`
	Gateway  GatewayConfig  `json:"gateway"`
	Store    store.Config   `json:"store"`
	Tracing  TracingConfig  `json:"tracing"`
	Actions  ActionsConfig  `json:"actions"`
	Policy   PolicyConfig   `json:"policy"`
	LogLevel string         `json:"logLevel"`
}

// ProviderConfig selects the LLM backend used by the planner and evaluator.
type ProviderConfig struct {
	Name        string  `json:"name"`
	APIKey      string  `json:"apiKey"`
	APIBase     string  `json:"apiBase"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
}

// AgentConfig tunes the execution loop.
type AgentConfig struct {
	MaxIterations int    `json:"maxIterations"`
	HistoryWindow int    `json:"historyWindow"`
	TokenBudget   int    `json:"tokenBudget"`
	SystemPrompt  string `json:"systemPrompt"`
}

// BrowserConfig controls the managed Chrome instance.
type BrowserConfig struct {
	Headless bool `json:"headless"`
}

// GatewayConfig controls the WebSocket gateway.
type GatewayConfig struct {
	Addr  string `json:"addr"`
	Token string `json:"token"`
	RPM   int    `json:"rpm"`
	Burst int    `json:"burst"`
}

// TracingConfig controls OTLP span export. Disabled unless an endpoint is
// set.
type TracingConfig struct {
	Enabled     bool              `json:"enabled"`
	Endpoint    string            `json:"endpoint"`
	Protocol    string            `json:"protocol"` // "grpc" (default) or "http"
	Insecure    bool              `json:"insecure"`
	ServiceName string            `json:"serviceName"`
	Headers     map[string]string `json:"headers"`
}

// ActionsConfig points at the custom action manifest directory and caps
// dispatch frequency.
type ActionsConfig struct {
	Dir string `json:"dir"`
	// RPM limits dispatched actions per minute per scope. 0 = unlimited.
	RPM int `json:"rpm"`
}

// PolicyConfig holds CEL deny rules evaluated before every dispatch.
type PolicyConfig struct {
	Rules []string `json:"rules"`
}

// Defaults returns a config with every default filled in. Load unmarshals
// the file over it, so absent keys keep their defaults.
func Defaults() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Provider: ProviderConfig{
			Name:        "openai",
			APIBase:     "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			Temperature: 0.2,
		},
		Agent: AgentConfig{
			MaxIterations: 50,
			HistoryWindow: 10,
			TokenBudget:   12000,
		},
		Browser: BrowserConfig{
			Headless: true,
		},
		Gateway: GatewayConfig{
			Addr:  "127.0.0.1:8420",
			RPM:   120,
			Burst: 10,
		},
		Store: store.Config{
			Backend: "sqlite",
			Path:    filepath.Join(home, ".webpilot", "runs.db"),
		},
		Tracing: TracingConfig{
			Protocol:    "grpc",
			ServiceName: "webpilot",
		},
		Actions: ActionsConfig{
			Dir: filepath.Join(home, ".webpilot", "actions"),
		},
		LogLevel: "info",
	}
}

// DefaultPath is the config file location used when none is given.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".webpilot", "config.json5")
}

// Load reads a JSON5 config file, applies defaults for absent keys, then
// applies environment overrides. A missing file yields pure defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	applyEnv(cfg)
	return cfg, nil
}

// applyEnv overlays environment variables onto the loaded config. Env wins
// over file so secrets can stay out of it.
func applyEnv(cfg *Config) {
	if v := os.Getenv("WEBPILOT_API_KEY"); v != "" {
		cfg.Provider.APIKey = v
	} else if v := os.Getenv("OPENAI_API_KEY"); v != "" && cfg.Provider.APIKey == "" {
		cfg.Provider.APIKey = v
	}
	if v := os.Getenv("WEBPILOT_API_BASE"); v != "" {
		cfg.Provider.APIBase = v
	}
	if v := os.Getenv("WEBPILOT_MODEL"); v != "" {
		cfg.Provider.Model = v
	}
	if v := os.Getenv("WEBPILOT_GATEWAY_TOKEN"); v != "" {
		cfg.Gateway.Token = v
	}
	if v := os.Getenv("WEBPILOT_GATEWAY_ADDR"); v != "" {
		cfg.Gateway.Addr = v
	}
	if v := os.Getenv("WEBPILOT_HEADLESS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Browser.Headless = b
		}
	}
	if v := os.Getenv("WEBPILOT_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}
