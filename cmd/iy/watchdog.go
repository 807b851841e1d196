package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/inspectyard/internal/store"
	"github.com/zulandar/inspectyard/internal/watchdog"
)

func newWatchdogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watchdog",
		Short: "Scan in-flight inspections for stuck and failed agents",
	}

	cmd.AddCommand(newWatchdogScanCmd())
	cmd.AddCommand(newWatchdogRunCmd())
	cmd.AddCommand(newWatchdogHistoryCmd())
	return cmd
}

func newWatchdogScanCmd() *cobra.Command {
	var (
		configPath string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run a single watchdog pass",
		Long:  "Checks every processing inspection once, retries stuck or failed agents, and fails inspections whose agents exhausted their retries.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatchdogScan(cmd, configPath, asJSON)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Inspectyard config file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full report as JSON")
	return cmd
}

func runWatchdogScan(cmd *cobra.Command, configPath string, asJSON bool) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	progress := out
	if asJSON {
		progress = nil
	}
	runner := newRunner(cfg, gormDB, nil, progress)
	report := runner.RunOnce(cmd.Context(), watchdog.TriggerCLI)

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
	} else {
		printResults(cmd, report)
	}

	if !report.Success {
		return fmt.Errorf("watchdog: %s", report.Message)
	}
	return nil
}

func printResults(cmd *cobra.Command, report *watchdog.Report) {
	out := cmd.OutOrStdout()
	if len(report.Results) == 0 {
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INSPECTION\tOUTCOME\tSTUCK\tFAILED\tEXHAUSTED\tRETRIED")
	for _, r := range report.Results {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\n",
			r.JobID, r.Status, len(r.StuckAgents), len(r.FailedAgents), len(r.ExhaustedAgents), len(r.RetriedExecutions))
	}
	w.Flush()
}

func newWatchdogRunCmd() *cobra.Command {
	var (
		configPath string
		schedule   string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the watchdog on a cron schedule",
		Long:  "Runs a pass immediately and then on every tick of watchdog.schedule until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatchdogDaemon(cmd, configPath, schedule)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Inspectyard config file")
	cmd.Flags().StringVar(&schedule, "schedule", "", "cron expression overriding watchdog.schedule")
	return cmd
}

func runWatchdogDaemon(cmd *cobra.Command, configPath, schedule string) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	if schedule == "" {
		schedule = cfg.Watchdog.Schedule
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := newRunner(cfg, gormDB, nil, cmd.OutOrStdout())
	return runner.RunDaemon(ctx, schedule)
}

func newWatchdogHistoryCmd() *cobra.Command {
	var (
		configPath string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent watchdog passes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatchdogHistory(cmd, configPath, limit)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Inspectyard config file")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of passes to show")
	return cmd
}

func runWatchdogHistory(cmd *cobra.Command, configPath string, limit int) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	runs, err := store.New(gormDB).Runs(cmd.Context(), limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No watchdog runs recorded.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tTRIGGER\tOK\tCHECKED\tHEALTHY\tISSUES\tFAILED\tERRORS\tRETRIED")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%t\t%d\t%d\t%d\t%d\t%d\t%d\n",
			r.StartedAt.Format("2006-01-02 15:04:05"), r.Trigger, r.Success,
			r.TotalChecked, r.Healthy, r.IssuesDetected, r.Failed, r.Errors, r.Retried)
	}
	w.Flush()
	return nil
}
