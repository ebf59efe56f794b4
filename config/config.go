package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nithiin7/deep-research-app/utils"
	"github.com/spf13/viper"
)

// Config holds all configuration for the research service
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Search    SearchConfig    `mapstructure:"search"`
	Email     EmailConfig     `mapstructure:"email"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// LLMConfig contains the OpenAI-compatible provider settings
type LLMConfig struct {
	APIKey      string           `mapstructure:"api_key"`
	BaseURL     string           `mapstructure:"base_url"`
	Temperature float64          `mapstructure:"temperature"`
	MaxTokens   int              `mapstructure:"max_tokens"`
	Timeout     time.Duration    `mapstructure:"timeout"`
	Routing     LLMRoutingConfig `mapstructure:"routing"`
}

// LLMRoutingConfig defines which model to use for each stage
type LLMRoutingConfig struct {
	Planning string `mapstructure:"planning"` // Use for search planning
	Search   string `mapstructure:"search"`   // Use for summarizing search hits
	Writing  string `mapstructure:"writing"`  // Use for report synthesis
	Fallback string `mapstructure:"fallback"` // Fallback model
}

func (l LLMConfig) Validate() error {
	if strings.TrimSpace(l.APIKey) == "" {
		return fmt.Errorf("llm.api_key is required")
	}
	return nil
}

// Model returns the routed model for a stage, falling back when unset.
func (r LLMRoutingConfig) Model(stage string) string {
	var m string
	switch stage {
	case "planning":
		m = r.Planning
	case "search":
		m = r.Search
	case "writing":
		m = r.Writing
	}
	if m == "" {
		m = r.Fallback
	}
	return m
}

// SearchConfig contains web search settings
type SearchConfig struct {
	Provider    string        `mapstructure:"provider"` // serper or brave
	APIKey      string        `mapstructure:"api_key"`
	MaxResults  int           `mapstructure:"max_results"`
	MaxSearches int           `mapstructure:"max_searches"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

func (s SearchConfig) Validate() error {
	if strings.TrimSpace(s.APIKey) == "" {
		return fmt.Errorf("search.api_key is required")
	}
	if s.MaxSearches <= 0 {
		return fmt.Errorf("search.max_searches must be > 0")
	}
	return nil
}

// EmailConfig contains SendGrid delivery settings
type EmailConfig struct {
	SendGridAPIKey string `mapstructure:"sendgrid_api_key"`
	FromEmail      string `mapstructure:"from_email"`
	ToEmail        string `mapstructure:"to_email"`
}

func (e EmailConfig) Validate() error {
	if strings.TrimSpace(e.SendGridAPIKey) == "" {
		return fmt.Errorf("email.sendgrid_api_key is required")
	}
	if !utils.ValidateEmail(e.FromEmail) {
		return fmt.Errorf("email.from_email %q is not a valid address", e.FromEmail)
	}
	if !utils.ValidateEmail(e.ToEmail) {
		return fmt.Errorf("email.to_email %q is not a valid address", e.ToEmail)
	}
	return nil
}

// TelemetryConfig contains telemetry and monitoring settings
type TelemetryConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	CostTracking bool `mapstructure:"cost_tracking"`
	PeriodicLogs bool `mapstructure:"periodic_logs"`
}

// LoadConfig loads config from file with DEEPRESEARCH_* env overrides.
// Missing required values are a startup-time fatal error.
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("server.address", ":10020")
	viper.SetDefault("llm.base_url", "https://api.openai.com/v1")
	viper.SetDefault("llm.temperature", 0.3)
	viper.SetDefault("llm.max_tokens", 4096)
	viper.SetDefault("llm.timeout", 120*time.Second)
	viper.SetDefault("llm.routing.fallback", "gpt-4o-mini")
	viper.SetDefault("search.provider", "serper")
	viper.SetDefault("search.max_results", 5)
	viper.SetDefault("search.max_searches", 5)
	viper.SetDefault("search.timeout", 60*time.Second)
	viper.SetDefault("telemetry.enabled", true)
	viper.SetDefault("telemetry.cost_tracking", true)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("DEEPRESEARCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	if err := config.LLM.Validate(); err != nil {
		panic(err)
	}
	if err := config.Search.Validate(); err != nil {
		panic(err)
	}
	if err := config.Email.Validate(); err != nil {
		panic(err)
	}
	return &config
}
