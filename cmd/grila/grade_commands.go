package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"grila/internal/api"
	"grila/internal/config"
	"grila/internal/grading"
	"grila/internal/ingest"
	"grila/internal/results"
	"grila/internal/scorer"
)

func newGradeCommand(ctx *commandContext) *cobra.Command {
	var title string
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "grade <barem> <elev>",
		Short: "Grade one answer sheet against an answer key",
		Long: "Grade one answer sheet locally and store the result. The images are copied into the upload " +
			"directory first, so the originals are left in place.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd, func(cfg *config.Config, store results.Store) error {
				logger := ctx.logger(cmd)
				orchestrator, err := newLocalOrchestrator(cfg, store, logger)
				if err != nil {
					return err
				}
				staged, err := ingest.NewStager(cfg, logger).StageLocal(args[0], args[1:])
				if err != nil {
					return err
				}
				resp, err := orchestrator.GradeOne(cmd.Context(), grading.SingleRequest{
					Reference:  staged.Reference,
					Submission: staged.Submissions[0],
					Title:      title,
				})
				if err != nil {
					return err
				}
				payload := api.FromSingleResponse(resp)
				if jsonOut {
					return writeJSON(cmd, payload)
				}
				printGraded(cmd.OutOrStdout(), payload)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "Test title stored with the result")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newGradeBatchCommand(ctx *commandContext) *cobra.Command {
	var title string
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "grade-batch <barem> <elev>...",
		Short: "Grade several answer sheets against one answer key",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd, func(cfg *config.Config, store results.Store) error {
				logger := ctx.logger(cmd)
				orchestrator, err := newLocalOrchestrator(cfg, store, logger)
				if err != nil {
					return err
				}
				staged, err := ingest.NewStager(cfg, logger).StageLocal(args[0], args[1:])
				if err != nil {
					return err
				}
				resp, err := orchestrator.Grade(cmd.Context(), grading.BatchRequest{
					Reference:   staged.Reference,
					Submissions: staged.Submissions,
					Title:       title,
				})
				if err != nil {
					return err
				}
				payload := api.FromBatchResponse(resp)
				if jsonOut {
					return writeJSON(cmd, payload)
				}
				printBatch(cmd.OutOrStdout(), payload)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "Test title stored with every result")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newLocalOrchestrator(cfg *config.Config, store results.Store, logger *slog.Logger) (*grading.Orchestrator, error) {
	adapter, err := scorer.New(cfg.Worker, scorer.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return grading.NewOrchestrator(cfg.Grading, adapter, store, logger), nil
}

func printGraded(out io.Writer, payload api.GradeResponse) {
	student := noStudent
	if payload.StudentName != nil && payload.StudentName.Name != "" {
		student = payload.StudentName.Name
	}
	fmt.Fprintln(out, renderKeyValues([][2]string{
		{"ID", payload.SavedID},
		{"Test", payload.TestTitle},
		{"Student", student},
		{"Score", fmt.Sprintf("%d/%d", payload.CorrectAnswers, payload.TotalQuestions)},
		{"Processing", fmt.Sprintf("%d ms", payload.ProcessingTime)},
	}))
}

func printBatch(out io.Writer, payload api.BatchResponse) {
	rows := make([][]string, 0, len(payload.Results)+len(payload.Errors))
	for _, result := range payload.Results {
		student := noStudent
		if result.StudentName != nil && result.StudentName.Name != "" {
			student = result.StudentName.Name
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", result.Index),
			result.FileName,
			student,
			fmt.Sprintf("%d/%d", result.CorrectAnswers, result.TotalQuestions),
			result.SavedID,
		})
	}
	for _, failure := range payload.Errors {
		rows = append(rows, []string{
			fmt.Sprintf("%d", failure.Index),
			failure.FileName,
			paint(out, text.FgRed, failure.Kind),
			"-",
			failure.Error,
		})
	}
	sortRowsByIndex(rows)
	fmt.Fprintln(out, renderTable([]string{"#", "File", "Student", "Score", "ID / Error"}, rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft}))

	summary := payload.Summary
	colour := text.FgGreen
	if summary.Failed > 0 {
		colour = text.FgYellow
	}
	if summary.Successful == 0 {
		colour = text.FgRed
	}
	fmt.Fprintln(out, paint(out, colour, fmt.Sprintf("%d/%d graded (%s) in %d ms",
		summary.Successful, summary.TotalTests, summary.SuccessRate, summary.ProcessingTime)))
}
