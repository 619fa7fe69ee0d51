package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/zulandar/admitflow/internal/automation"
	"github.com/zulandar/admitflow/internal/config"
	"github.com/zulandar/admitflow/internal/db"
	"github.com/zulandar/admitflow/internal/events"
	"github.com/zulandar/admitflow/internal/notify"
	"github.com/zulandar/admitflow/internal/notify/discord"
	"github.com/zulandar/admitflow/internal/notify/slack"
	"gorm.io/gorm"
)

func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to %s database: %w", cfg.Database.Driver, err)
	}

	return cfg, gormDB, nil
}

// buildNotifier registers every configured chat channel. Log output goes
// to out.
func buildNotifier(cfg *config.Config, out io.Writer) (*notify.Dispatcher, error) {
	var channels []notify.Channel
	if cfg.Notify.Slack.Enabled() {
		ch, err := slack.New(slack.ChannelOpts{BotToken: cfg.Notify.Slack.BotToken, ChannelID: cfg.Notify.Slack.ChannelID})
		if err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	if cfg.Notify.Discord.Enabled() {
		ch, err := discord.New(discord.ChannelOpts{BotToken: cfg.Notify.Discord.BotToken, ChannelID: cfg.Notify.Discord.ChannelID})
		if err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}
	return notify.NewDispatcher(cfg.Notify.DefaultChannel, out, channels...), nil
}

// buildEngine wires the automation engine with the configured notifier and
// webhook client.
func buildEngine(cfg *config.Config, gormDB *gorm.DB, out io.Writer) (*automation.Engine, error) {
	notifier, err := buildNotifier(cfg, out)
	if err != nil {
		return nil, err
	}
	return automation.NewEngine(gormDB, automation.EngineOpts{
		Notifier: notifier,
		Webhooks: automation.NewWebhookClient(cfg.Automation.WebhookTimeout, cfg.Automation.WebhookRate),
	}), nil
}

// services connects and returns the engine plus the event service around it.
func services(cmd *cobra.Command, configPath string) (*config.Config, *gorm.DB, *automation.Engine, *events.Service, error) {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	engine, err := buildEngine(cfg, gormDB, cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return cfg, gormDB, engine, events.NewService(gormDB, engine), nil
}

func definitionFromConfig(w config.WorkflowConfig) automation.Definition {
	active := w.IsActive()
	return automation.Definition{
		Name:        w.Name,
		Description: w.Description,
		Trigger:     w.Trigger,
		Conditions:  w.Conditions,
		Actions:     w.Actions,
		Active:      &active,
	}
}

func parseID(s, what string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s id %q", what, s)
	}
	return uint(id), nil
}

// optionalID turns a zero flag value into nil.
func optionalID(v uint) *uint {
	if v == 0 {
		return nil
	}
	return &v
}

func printResult(out io.Writer, res *automation.Result) {
	if res == nil {
		return
	}
	fmt.Fprintf(out, "Firing %s: %d fired, %d failed, %d skipped\n", res.FiringID, len(res.Fired), len(res.Failed), len(res.Skipped))
	for id, err := range res.Failed {
		fmt.Fprintf(out, "  workflow %d failed: %v\n", id, err)
	}
}
