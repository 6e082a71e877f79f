package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/slaffer-au/searchbot/internal/bot"
	"github.com/slaffer-au/searchbot/internal/channel"
	"github.com/slaffer-au/searchbot/internal/classify"
	"github.com/slaffer-au/searchbot/internal/config"
	"github.com/slaffer-au/searchbot/internal/connector"
	"github.com/slaffer-au/searchbot/internal/directory"
	"github.com/slaffer-au/searchbot/internal/dispatch"
	"github.com/slaffer-au/searchbot/internal/domain"
	"github.com/slaffer-au/searchbot/internal/render"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	logger  *slog.Logger

	configPath       string
	logLevel         string
	refreshDirectory bool
)

func main() {
	root := &cobra.Command{
		Use:     "searchbot",
		Short:   "searchbot: chat-driven search across Zendesk, Jira and Salesforce",
		Version: version,
		RunE:    runBot,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to searchbot.yml (default: ~/.searchbot/searchbot.yml)")
	root.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "log level: debug, info, warn, error (overrides config)")
	root.Flags().BoolVar(&refreshDirectory, "refresh-directory", false, "refresh the user/organization directory from Zendesk before starting")

	root.AddCommand(channelsCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := cfg.General.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger = newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	timeout := time.Duration(cfg.General.RequestTimeoutSeconds) * time.Second

	zendesk := connector.NewZendesk(connector.ZendeskConfig{
		Subdomain: cfg.Zendesk.Subdomain,
		Email:     cfg.Zendesk.Email,
		APIToken:  cfg.Zendesk.APIToken,
		Timeout:   timeout,
		Logger:    logger,
	})
	jira := connector.NewJira(connector.JiraConfig{
		ServerURL: cfg.Jira.ServerURL,
		Username:  cfg.Jira.Username,
		Password:  cfg.Jira.Password,
		Timeout:   timeout,
		Logger:    logger,
	})

	var salesforce *connector.Salesforce
	var salesforceSearcher domain.Searcher
	if cfg.Salesforce.Enabled {
		salesforce = connector.NewSalesforce(connector.SalesforceConfig{
			InstanceURL: cfg.Salesforce.InstanceURL,
			AccessToken: cfg.Salesforce.AccessToken,
			APIVersion:  cfg.Salesforce.APIVersion,
			Timeout:     timeout,
			Logger:      logger,
		})
		salesforceSearcher = salesforce
	}

	store, err := directory.OpenStore(cfg.General.CachePath, logger)
	if err != nil {
		return fmt.Errorf("directory store: %w", err)
	}
	defer store.Close()

	dir := directory.New(zendesk, store, logger)
	if err := dir.Load(ctx, refreshDirectory); err != nil {
		// A stale or empty directory only degrades name resolution;
		// searches still work on raw ids.
		logger.Warn("directory not populated", "err", err)
	}

	dispatcher := dispatch.New(zendesk, jira, salesforceSearcher, logger)

	rendererCfg := render.Config{
		Directory:      dir,
		ZendeskBaseURL: zendesk.BaseURL(),
		JiraBaseURL:    jira.BaseURL(),
	}
	if salesforce != nil {
		rendererCfg.SalesforceURL = salesforce.BaseURL()
	}
	renderer := render.New(rendererCfg)

	pause := time.Duration(cfg.General.PollIntervalMS) * time.Millisecond

	errCh := make(chan error, 2)
	started := 0

	if cfg.Slack.Enabled {
		slackCh := channel.NewSlack(channel.SlackConfig{
			BotToken: cfg.Slack.BotToken,
			AppToken: cfg.Slack.AppToken,
			Logger:   logger,
		})
		if err := slackCh.Start(ctx); err != nil {
			return fmt.Errorf("slack transport: %w", err)
		}
		go func() { errCh <- runLoop(ctx, cfg, slackCh, dispatcher, renderer, pause) }()
		started++
	}

	if cfg.Telegram.Enabled {
		tgCh := channel.NewTelegram(channel.TelegramConfig{
			Token:       cfg.Telegram.Token,
			BotUsername: cfg.Telegram.BotUsername,
			Logger:      logger,
		})
		if err := tgCh.Start(ctx); err != nil {
			return fmt.Errorf("telegram transport: %w", err)
		}
		go func() { errCh <- runLoop(ctx, cfg, tgCh, dispatcher, renderer, pause) }()
		started++
	}

	logger.Info("searchbot running", "transports", started)

	for i := 0; i < started; i++ {
		if err := <-errCh; err != nil && ctx.Err() == nil {
			return err
		}
	}
	return nil
}

// runLoop builds one processing loop per transport: each transport
// has its own bot identity, so each gets its own classifier.
func runLoop(ctx context.Context, cfg *config.Config, tr domain.Transport,
	dispatcher *dispatch.Dispatcher, renderer *render.Renderer, pause time.Duration) error {

	classifier := classify.New(tr.BotID(), cfg.General.DefaultLimit)
	loop := bot.New(bot.Config{
		Transport:  tr,
		Classifier: classifier,
		Dispatcher: dispatcher,
		Renderer:   renderer,
		Pause:      pause,
		Logger:     logger,
	})
	err := loop.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func channelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "channels",
		Short: "List Slack channels (name and id) and exit",
		Long:  "Lists public and private Slack channels so operators can find channel ids for configuration. Does not start the bot.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.Slack.BotToken == "" {
				return fmt.Errorf("slack.botToken is not configured")
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			channels, err := channel.ListChannels(ctx, cfg.Slack.BotToken)
			if err != nil {
				return err
			}
			for _, ch := range channels {
				fmt.Printf("%s\t%s\n", ch.Name, ch.ID)
			}
			return nil
		},
	}
}
