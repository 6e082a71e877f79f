package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for searchbot.
type Config struct {
	General    GeneralConfig    `yaml:"general"`
	Slack      SlackConfig      `yaml:"slack"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Zendesk    ZendeskConfig    `yaml:"zendesk"`
	Jira       JiraConfig       `yaml:"jira"`
	Salesforce SalesforceConfig `yaml:"salesforce"`
}

type GeneralConfig struct {
	LogLevel              string `yaml:"logLevel"`
	DefaultLimit          int    `yaml:"defaultLimit"`          // records rendered per backend when no limit= token given
	RequestTimeoutSeconds int    `yaml:"requestTimeoutSeconds"` // per backend HTTP call
	PollIntervalMS        int    `yaml:"pollIntervalMs"`        // pause after each processed or ignored event
	CachePath             string `yaml:"cachePath"`             // directory snapshot database
}

type SlackConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"botToken"`
	AppToken string `yaml:"appToken"` // required for Socket Mode
}

type TelegramConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Token       string `yaml:"token"`
	BotUsername string `yaml:"botUsername"`
}

type ZendeskConfig struct {
	Subdomain string `yaml:"subdomain"`
	Email     string `yaml:"email"`
	APIToken  string `yaml:"apiToken"`
}

type JiraConfig struct {
	ServerURL string `yaml:"serverUrl"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
}

type SalesforceConfig struct {
	Enabled     bool   `yaml:"enabled"`
	InstanceURL string `yaml:"instanceUrl"`
	AccessToken string `yaml:"accessToken"`
	APIVersion  string `yaml:"apiVersion"`
}

// DefaultConfigDir returns the default config directory (~/.searchbot).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".searchbot"
	}
	return filepath.Join(home, ".searchbot")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "searchbot.yml")
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.General.CachePath = ExpandPath(cfg.General.CachePath)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // Keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.General.DefaultLimit < 1 {
		errs = append(errs, "general.defaultLimit must be >= 1")
	}
	if cfg.General.RequestTimeoutSeconds < 1 {
		errs = append(errs, "general.requestTimeoutSeconds must be >= 1")
	}
	if cfg.General.PollIntervalMS < 0 {
		errs = append(errs, "general.pollIntervalMs must be >= 0")
	}
	switch strings.ToLower(cfg.General.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
		// valid
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}

	if !cfg.Slack.Enabled && !cfg.Telegram.Enabled {
		errs = append(errs, "at least one of slack or telegram must be enabled")
	}
	if cfg.Slack.Enabled {
		if cfg.Slack.BotToken == "" {
			errs = append(errs, "slack.botToken is required when slack is enabled")
		}
		if cfg.Slack.AppToken == "" {
			errs = append(errs, "slack.appToken is required when slack is enabled")
		}
	}
	if cfg.Telegram.Enabled && cfg.Telegram.Token == "" {
		errs = append(errs, "telegram.token is required when telegram is enabled")
	}

	if cfg.Zendesk.Subdomain == "" {
		errs = append(errs, "zendesk.subdomain is required")
	}
	if cfg.Jira.ServerURL == "" {
		errs = append(errs, "jira.serverUrl is required")
	}
	if cfg.Salesforce.Enabled && cfg.Salesforce.InstanceURL == "" {
		errs = append(errs, "salesforce.instanceUrl is required when salesforce is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
