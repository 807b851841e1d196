package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/inspectyard/internal/inspection"
)

func newJobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Inspection job commands",
	}

	cmd.AddCommand(newJobCreateCmd())
	cmd.AddCommand(newJobStartCmd())
	cmd.AddCommand(newJobShowCmd())
	cmd.AddCommand(newJobListCmd())
	return cmd
}

func newJobCreateCmd() *cobra.Command {
	var (
		configPath string
		opts       inspection.CreateOpts
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Queue a new inspection",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			insp, err := inspection.Create(gormDB, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created inspection %s (%s)\n", insp.ID, insp.Status)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Inspectyard config file")
	cmd.Flags().StringVar(&opts.VehicleID, "vehicle", "", "vehicle ID (required)")
	cmd.Flags().StringVar(&opts.VIN, "vin", "", "17-character VIN")
	cmd.MarkFlagRequired("vehicle")
	return cmd
}

func newJobStartCmd() *cobra.Command {
	var (
		configPath string
		runID      string
	)

	cmd := &cobra.Command{
		Use:   "start <id>",
		Short: "Mark an inspection as processing under an orchestrator run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := inspection.StartRun(gormDB, args[0], runID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Inspection %s processing (run %s)\n", args[0], runID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Inspectyard config file")
	cmd.Flags().StringVar(&runID, "run", "", "orchestrator run ID (required)")
	cmd.MarkFlagRequired("run")
	return cmd
}

func newJobShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an inspection and its agent executions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJobShow(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Inspectyard config file")
	return cmd
}

func runJobShow(cmd *cobra.Command, configPath, id string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	insp, err := inspection.Get(gormDB, id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Inspection: %s\n", insp.ID)
	fmt.Fprintf(out, "Vehicle:    %s\n", insp.VehicleID)
	if insp.VIN != "" {
		fmt.Fprintf(out, "VIN:        %s\n", insp.VIN)
	}
	fmt.Fprintf(out, "Status:     %s\n", insp.Status)
	if insp.RunID != nil {
		fmt.Fprintf(out, "Run:        %s\n", *insp.RunID)
	}
	if insp.ErrorMessage != "" {
		fmt.Fprintf(out, "Error:      %s\n", insp.ErrorMessage)
	}
	fmt.Fprintf(out, "Created:    %s\n", insp.CreatedAt.Format("2006-01-02 15:04:05"))

	if len(insp.Executions) == 0 {
		fmt.Fprintln(out, "\nNo agent executions.")
		return nil
	}
	fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "EXEC\tAGENT\tSTATUS\tATTEMPT\tERROR")
	for _, e := range insp.Executions {
		errText := e.ErrorMessage
		if errText == "" {
			errText = "-"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d/%d\t%s\n", e.ID, e.AgentName, e.Status, e.AttemptNumber, e.MaxRetries, truncate(errText, 60))
	}
	w.Flush()
	return nil
}

func newJobListCmd() *cobra.Command {
	var (
		configPath string
		filters    inspection.ListFilters
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List inspections, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJobList(cmd, configPath, filters)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Inspectyard config file")
	cmd.Flags().StringVar(&filters.Status, "status", "", "filter by status")
	cmd.Flags().StringVar(&filters.VehicleID, "vehicle", "", "filter by vehicle ID")
	cmd.Flags().IntVarP(&filters.Limit, "limit", "n", 50, "maximum inspections to show")
	return cmd
}

func runJobList(cmd *cobra.Command, configPath string, filters inspection.ListFilters) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	jobs, err := inspection.List(gormDB, filters)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(jobs) == 0 {
		fmt.Fprintln(out, "No inspections found.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tVEHICLE\tSTATUS\tRUN\tCREATED")
	for _, j := range jobs {
		run := "-"
		if j.RunID != nil {
			run = *j.RunID
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", j.ID, j.VehicleID, j.Status, run, j.CreatedAt.Format("2006-01-02 15:04"))
	}
	w.Flush()
	return nil
}

// truncate shortens s to max runes, appending "..." when cut.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
