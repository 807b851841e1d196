package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/zulandar/inspectyard/internal/dashboard"
	"golang.org/x/sync/errgroup"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
		withDaemon bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long:  "Serves the scan trigger (POST /api/watchdog/scan), inspection and run views, and /metrics. With --watchdog the cron daemon runs in the same process.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port, withDaemon)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Inspectyard config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (default server.port)")
	cmd.Flags().BoolVar(&withDaemon, "watchdog", false, "also run the scheduled watchdog")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int, withDaemon bool) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	if port <= 0 {
		port = cfg.Server.Port
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	out := cmd.OutOrStdout()
	runner := newRunner(cfg, gormDB, reg, out)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return dashboard.Start(ctx, dashboard.StartOpts{
			DB:       gormDB,
			Port:     port,
			Out:      out,
			Runner:   runner,
			Registry: reg,
		})
	})
	if withDaemon {
		g.Go(func() error {
			return runner.RunDaemon(ctx, cfg.Watchdog.Schedule)
		})
	}

	err = g.Wait()
	if err != nil {
		log.Printf("serve: %v", err)
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
