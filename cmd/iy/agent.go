package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/zulandar/inspectyard/internal/execution"
)

// The agent commands stand in for the orchestrator: they record dispatches
// and the pending -> running -> outcome transitions the watchdog reads.
func newAgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Record agent executions (orchestrator side)",
	}

	cmd.AddCommand(newAgentDispatchCmd())
	cmd.AddCommand(newAgentBeginCmd())
	cmd.AddCommand(newAgentFinishCmd())
	return cmd
}

func newAgentDispatchCmd() *cobra.Command {
	var (
		configPath string
		opts       execution.DispatchOpts
	)

	cmd := &cobra.Command{
		Use:   "dispatch <inspection-id> <agent>",
		Short: "Record a pending first attempt of an agent",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			opts.InspectionID = args[0]
			opts.AgentName = args[1]
			exec, err := execution.Dispatch(gormDB, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Dispatched %s for %s (execution %d, max retries %d)\n",
				exec.AgentName, exec.InspectionID, exec.ID, exec.MaxRetries)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Inspectyard config file")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "orchestrator run ID")
	cmd.Flags().StringVar(&opts.AgentType, "type", "", "agent type (default from agent config)")
	cmd.Flags().IntVar(&opts.MaxRetries, "max-retries", 0, "retry budget (default from agent config)")
	return cmd
}

func newAgentBeginCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "begin <execution-id>",
		Short: "Start a pending execution and print its lease",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseExecID(args[0])
			if err != nil {
				return err
			}
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			exec, err := execution.Begin(gormDB, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Execution %d running: attempt %d/%d, lease %d\n",
				exec.ID, exec.AttemptNumber, exec.MaxRetries, exec.Lease)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Inspectyard config file")
	return cmd
}

func newAgentFinishCmd() *cobra.Command {
	var (
		configPath string
		lease      uint64
		status     string
		opts       execution.FinishOpts
	)

	cmd := &cobra.Command{
		Use:   "finish <execution-id>",
		Short: "Record the outcome of a running execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseExecID(args[0])
			if err != nil {
				return err
			}
			st, err := execution.ParseStatus(status)
			if err != nil {
				return err
			}
			opts.Status = st
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := execution.Finish(gormDB, id, lease, opts); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Execution %d %s\n", id, st)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Inspectyard config file")
	cmd.Flags().Uint64Var(&lease, "lease", 0, "lease returned by begin (required)")
	cmd.Flags().StringVar(&status, "status", "completed", "outcome: completed, failed, skipped, cancelled")
	cmd.Flags().StringVar(&opts.ErrorMessage, "error", "", "error message")
	cmd.Flags().StringVar(&opts.ErrorCode, "code", "", "error code")
	cmd.MarkFlagRequired("lease")
	return cmd
}

func parseExecID(s string) (uint, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid execution ID %q", s)
	}
	return uint(n), nil
}
