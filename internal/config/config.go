// Package config loads application settings: the completion endpoint, API
// key, storage root, and named agent definitions.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Long18349276/Obsidian-Chat/internal/chat"
)

const (
	DefaultEndpoint    = "https://api.openai.com/v1"
	DefaultModel       = "gpt-4o-mini"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 2048
)

// Agent is a named model configuration. Sessions reference agents by id;
// the agent itself is owned here, not by the session store.
type Agent struct {
	ID           string  `mapstructure:"id" yaml:"id"`
	Name         string  `mapstructure:"name" yaml:"name"`
	Model        string  `mapstructure:"model" yaml:"model"`
	Temperature  float64 `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens    int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	SystemPrompt string  `mapstructure:"system_prompt" yaml:"system_prompt,omitempty"`
}

// Config is the full application configuration. Values layer as defaults,
// then the config file, then OCHAT_* environment variables.
type Config struct {
	Endpoint       string  `mapstructure:"endpoint" yaml:"endpoint"`
	APIKey         string  `mapstructure:"api_key" yaml:"api_key"`
	StorageRoot    string  `mapstructure:"storage_root" yaml:"storage_root"`
	ExportDir      string  `mapstructure:"export_dir" yaml:"export_dir"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	DefaultAgent   string  `mapstructure:"default_agent" yaml:"default_agent"`
	Agents         []Agent `mapstructure:"agents" yaml:"agents"`
}

// ConfigDir returns the directory holding the config file and debug log.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".obsidian-chat"
	}
	return filepath.Join(home, ".obsidian-chat")
}

// Load reads configuration from ~/.obsidian-chat/config.yaml and the
// environment. A missing file is not an error: defaults apply and a starter
// file is written best-effort so the user has something to edit.
func Load() (*Config, error) {
	return load(ConfigDir())
}

func load(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	v.SetDefault("endpoint", DefaultEndpoint)
	v.SetDefault("api_key", "")
	v.SetDefault("storage_root", filepath.Join(dir, "chats"))
	v.SetDefault("export_dir", filepath.Join(dir, "exports"))
	v.SetDefault("timeout_seconds", 0)
	v.SetDefault("default_agent", chat.DefaultAgentID)

	v.SetEnvPrefix("OCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		writeStarterConfig(dir)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if len(cfg.Agents) == 0 {
		cfg.Agents = []Agent{defaultAgent()}
	}
	return &cfg, nil
}

// AgentByID resolves an agent definition, falling back to a default agent
// carrying the requested id so sessions for unknown agents stay usable.
func (c *Config) AgentByID(agentID string) Agent {
	if agentID == "" {
		agentID = c.DefaultAgent
	}
	for _, agent := range c.Agents {
		if agent.ID == agentID {
			return agent
		}
	}
	agent := defaultAgent()
	agent.ID = agentID
	return agent
}

func defaultAgent() Agent {
	return Agent{
		ID:          chat.DefaultAgentID,
		Name:        "Assistant",
		Model:       DefaultModel,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}
}

// writeStarterConfig drops a commented default config for the user to edit.
// Failure is ignored; defaults still apply.
func writeStarterConfig(dir string) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return
	}
	path := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return
	}

	starter := Config{
		Endpoint:     DefaultEndpoint,
		StorageRoot:  filepath.Join(dir, "chats"),
		ExportDir:    filepath.Join(dir, "exports"),
		DefaultAgent: chat.DefaultAgentID,
		Agents:       []Agent{defaultAgent()},
	}
	data, err := yaml.Marshal(&starter)
	if err != nil {
		return
	}
	_ = os.WriteFile(path, data, 0600)
}
