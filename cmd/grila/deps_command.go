package main

import (
	"errors"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"grila/internal/deps"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Check that the scoring worker can be launched",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			statuses := deps.CheckWorker(cfg.Worker)
			if jsonOut {
				if err := writeJSON(cmd, statuses); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				rows := make([][]string, 0, len(statuses))
				for _, status := range statuses {
					available := paint(out, text.FgGreen, yesNo(true))
					if !status.Available {
						available = paint(out, text.FgRed, yesNo(false))
					}
					rows = append(rows, []string{status.Name, status.Command, available, status.Detail})
				}
				fmt.Fprintln(out, renderTable([]string{"Dependency", "Command", "Available", "Detail"}, rows, nil))
			}
			if !deps.AllRequiredAvailable(statuses) {
				return errors.New("required dependencies are missing")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}
