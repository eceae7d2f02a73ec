package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hferris/dutywatch/internal/broadcast"
	"github.com/hferris/dutywatch/internal/config"
	"github.com/hferris/dutywatch/internal/db"
	"github.com/hferris/dutywatch/internal/lifecycle"
	"github.com/hferris/dutywatch/internal/notify"
	"github.com/hferris/dutywatch/internal/notify/discord"
	"github.com/hferris/dutywatch/internal/notify/slack"
	"github.com/hferris/dutywatch/internal/qgenda"
	"github.com/hferris/dutywatch/internal/reconcile"
	"github.com/hferris/dutywatch/internal/resolve"
	"github.com/hferris/dutywatch/internal/server"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the scheduling API server",
		Long:  "Launches the HTTP API, the WebSocket event stream, and (if configured) the scheduled external sync.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "dutywatch.yaml", "path to config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "override the configured port")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if port > 0 {
		cfg.Server.Port = port
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	if err := db.SeedRules(gormDB, cfg.Rules); err != nil {
		return err
	}

	hub := broadcast.NewHub(broadcast.Opts{
		PingInterval: cfg.Broadcaster.PingInterval,
		GracePeriod:  cfg.Broadcaster.GracePeriod,
	})

	adapters, err := buildAdapters(cfg.Notify)
	if err != nil {
		return err
	}
	if len(adapters) > 0 {
		fmt.Fprintf(out, "Escalations will post to %d chat channel(s)\n", len(adapters))
	}

	resolver := &resolve.Service{DB: gormDB, Hub: hub, Adapters: adapters}
	coordinator := &reconcile.Coordinator{DB: gormDB, Hub: hub}

	var syncer *qgenda.Syncer
	if cfg.QGenda.BaseURL != "" {
		client, err := qgenda.New(qgenda.Opts{
			BaseURL:      cfg.QGenda.BaseURL,
			TokenURL:     cfg.QGenda.TokenURL,
			ClientID:     cfg.QGenda.ClientID,
			ClientSecret: cfg.QGenda.ClientSecret,
		})
		if err != nil {
			return err
		}
		syncer = &qgenda.Syncer{DB: gormDB, Client: client, Hub: hub}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(out, "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	serverErr := make(chan error, 1)
	components := []lifecycle.Component{
		{
			Name: "broadcaster",
			Start: func(ctx context.Context) error {
				go hub.RunSweeper(ctx)
				return nil
			},
		},
	}

	httpNeeds := []string{"broadcaster"}
	if syncer != nil && cfg.QGenda.SyncCron != "" {
		var scheduler *cron.Cron
		components = append(components, lifecycle.Component{
			Name:  "sync-cron",
			Needs: []string{"broadcaster"},
			Start: func(ctx context.Context) error {
				scheduler = cron.New()
				_, err := scheduler.AddFunc(cfg.QGenda.SyncCron, func() {
					from := time.Now().UTC().Truncate(24 * time.Hour)
					if _, err := syncer.Run(ctx, from, from.AddDate(0, 0, 30)); err != nil {
						fmt.Fprintf(out, "scheduled sync failed: %v\n", err)
					}
				})
				if err != nil {
					return err
				}
				scheduler.Start()
				return nil
			},
			Stop: func(context.Context) error {
				if scheduler != nil {
					scheduler.Stop()
				}
				return nil
			},
		})
		httpNeeds = append(httpNeeds, "sync-cron")
	}

	components = append(components, lifecycle.Component{
		Name:  "http",
		Needs: httpNeeds,
		Start: func(ctx context.Context) error {
			go func() {
				serverErr <- server.Start(ctx, server.StartOpts{
					DB:          gormDB,
					Hub:         hub,
					Resolver:    resolver,
					Coordinator: coordinator,
					Syncer:      syncer,
					Port:        cfg.Server.Port,
					Out:         out,
				})
			}()
			return nil
		},
	})

	runner := lifecycle.NewRunner(components...)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case e := <-runner.Events():
				if e.Err != nil {
					fmt.Fprintf(out, "[%s] %s: %v\n", e.Component, e.Phase, e.Err)
				} else {
					fmt.Fprintf(out, "[%s] %s\n", e.Component, e.Phase)
				}
			}
		}
	}()

	if err := runner.Start(ctx); err != nil {
		return err
	}

	select {
	case err := <-serverErr:
		cancel()
		runner.Stop(context.Background())
		return err
	case <-ctx.Done():
		err := <-serverErr
		runner.Stop(context.Background())
		return err
	}
}

// buildAdapters wires the chat escalation channels present in config.
func buildAdapters(cfg config.NotifyConfig) ([]notify.Adapter, error) {
	var adapters []notify.Adapter
	if cfg.SlackBotToken != "" {
		a, err := slack.New(slack.AdapterOpts{
			BotToken:  cfg.SlackBotToken,
			ChannelID: cfg.SlackChannelID,
		})
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, a)
	}
	if cfg.DiscordToken != "" {
		a, err := discord.New(discord.AdapterOpts{
			BotToken:  cfg.DiscordToken,
			ChannelID: cfg.DiscordChannel,
		})
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, a)
	}
	return adapters, nil
}
