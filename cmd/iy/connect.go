package main

import (
	"fmt"
	"io"
	"log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/zulandar/inspectyard/internal/config"
	"github.com/zulandar/inspectyard/internal/db"
	"github.com/zulandar/inspectyard/internal/metrics"
	"github.com/zulandar/inspectyard/internal/notify"
	"github.com/zulandar/inspectyard/internal/notify/discord"
	"github.com/zulandar/inspectyard/internal/notify/slack"
	"github.com/zulandar/inspectyard/internal/store"
	"github.com/zulandar/inspectyard/internal/watchdog"
	"gorm.io/gorm"
)

func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Open(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	return cfg, gormDB, nil
}

// newRunner wires a watchdog runner: gorm store, notifier from the notify
// section, and metrics when reg is non-nil.
func newRunner(cfg *config.Config, gormDB *gorm.DB, reg prometheus.Registerer, out io.Writer) *watchdog.Runner {
	st := store.New(gormDB)
	r := &watchdog.Runner{
		Scanner: watchdog.NewScanner(st, cfg, out),
		Runs:    st,
		Out:     out,
	}
	if n := newNotifier(cfg.Notify); n.Len() > 0 {
		r.Alerter = n
	}
	if reg != nil {
		r.Recorder = metrics.NewRecorder(reg)
	}
	return r
}

// newNotifier builds adapters for every enabled platform. A platform that
// fails to initialize is logged and skipped.
func newNotifier(cfg config.NotifyConfig) *notify.Notifier {
	adapters := make(map[string]notify.Adapter)
	if cfg.Slack.Enabled() {
		a, err := slack.New(slack.AdapterOpts{BotToken: cfg.Slack.BotToken, ChannelID: cfg.Slack.ChannelID})
		if err != nil {
			log.Printf("notify: slack disabled: %v", err)
		} else {
			adapters["slack"] = a
		}
	}
	if cfg.Discord.Enabled() {
		a, err := discord.New(discord.AdapterOpts{BotToken: cfg.Discord.BotToken, ChannelID: cfg.Discord.ChannelID})
		if err != nil {
			log.Printf("notify: discord disabled: %v", err)
		} else {
			adapters["discord"] = a
		}
	}
	return notify.New(adapters)
}
