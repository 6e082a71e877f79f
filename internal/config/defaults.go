package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:              "warn",
			DefaultLimit:          10,
			RequestTimeoutSeconds: 15,
			PollIntervalMS:        1000,
			CachePath:             "~/.searchbot/directory.db",
		},
		Slack: SlackConfig{
			Enabled: true,
		},
		Telegram: TelegramConfig{
			Enabled: false,
		},
		Salesforce: SalesforceConfig{
			Enabled:    false,
			APIVersion: "58.0",
		},
	}
}
