package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"grila/internal/api"
)

const noStudent = "Nu s-a detectat"

func newResultsCommand(ctx *commandContext) *cobra.Command {
	resultsCmd := &cobra.Command{
		Use:   "results",
		Short: "Inspect and manage stored grading results",
	}
	resultsCmd.AddCommand(newResultsListCommand(ctx))
	resultsCmd.AddCommand(newResultsShowCommand(ctx))
	resultsCmd.AddCommand(newResultsDeleteCommand(ctx))
	return resultsCmd
}

func newResultsListCommand(ctx *commandContext) *cobra.Command {
	var query api.ListQuery
	var jsonOut bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored results, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withResults(cmd, func(svc *api.ResultsService) error {
				resp, err := svc.List(cmd.Context(), query)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, resp)
				}
				printResultList(cmd.OutOrStdout(), resp)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&query.StudentName, "student", "", "Filter by student name (case-insensitive substring)")
	cmd.Flags().StringVar(&query.TestTitle, "title", "", "Filter by test title (case-insensitive substring)")
	cmd.Flags().StringVar(&query.StartDate, "from", "", "Earliest date, YYYY-MM-DD or RFC3339")
	cmd.Flags().StringVar(&query.EndDate, "to", "", "Latest date, YYYY-MM-DD (whole day) or RFC3339")
	cmd.Flags().IntVar(&query.Page, "page", 1, "Page number")
	cmd.Flags().IntVar(&query.Limit, "limit", 0, "Results per page (default from config)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newResultsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one stored result with per-question details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withResults(cmd, func(svc *api.ResultsService) error {
				resp, err := svc.Describe(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, resp)
				}
				printResultDetail(cmd.OutOrStdout(), resp.Result)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func newResultsDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a stored result",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withResults(cmd, func(svc *api.ResultsService) error {
				resp, err := svc.Delete(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
				return nil
			})
		},
	}
}

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show aggregate statistics and the most recent results",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withResults(cmd, func(svc *api.ResultsService) error {
				resp, err := svc.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, resp)
				}
				printStats(cmd.OutOrStdout(), resp.Stats)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	return cmd
}

func printResultList(out io.Writer, resp *api.ResultListResponse) {
	if len(resp.Results) == 0 {
		fmt.Fprintln(out, "No results found")
		return
	}
	rows := make([][]string, 0, len(resp.Results))
	for _, item := range resp.Results {
		rows = append(rows, []string{item.ID, item.TestTitle, item.StudentName, item.Score, item.Date, item.Time})
	}
	fmt.Fprintln(out, renderTable([]string{"ID", "Test", "Student", "Score", "Date", "Time"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft}))
	p := resp.Pagination
	fmt.Fprintf(out, "Page %d of %d (%d results)\n", p.CurrentPage, p.TotalPages, p.TotalResults)
}

func printResultDetail(out io.Writer, result api.ResultDetail) {
	student := result.StudentName.Name
	if student == "" {
		student = noStudent
	}
	fmt.Fprintln(out, renderKeyValues([][2]string{
		{"ID", result.ID},
		{"Test", result.TestTitle},
		{"Student", student},
		{"Confidence", strconv.FormatFloat(result.StudentName.Confidence, 'f', 2, 64)},
		{"Score", fmt.Sprintf("%d/%d", result.CorrectAnswers, result.TotalQuestions)},
		{"Graded", result.Timestamp},
		{"Processing", fmt.Sprintf("%d ms", result.ProcessingTime)},
		{"Image", yesNo(result.ResultImage != "")},
	}))
	if len(result.Details) == 0 {
		return
	}
	rows := make([][]string, 0, len(result.Details))
	for _, detail := range result.Details {
		rows = append(rows, []string{
			strconv.Itoa(detail.Question),
			string(detail.Status),
			formatAnswers(detail.Barem),
			formatAnswers(detail.Elev),
		})
	}
	fmt.Fprintln(out, renderTable([]string{"Q", "Status", "Barem", "Elev"}, rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft}))
}

func printStats(out io.Writer, stats api.Stats) {
	fmt.Fprintln(out, renderKeyValues([][2]string{
		{"Total tests", strconv.Itoa(stats.TotalTests)},
		{"Average score", stats.AverageScore + "%"},
		{"Highest score", strconv.FormatFloat(stats.MaxScore, 'f', 1, 64) + "%"},
		{"Lowest score", strconv.FormatFloat(stats.MinScore, 'f', 1, 64) + "%"},
	}))
	if len(stats.RecentTests) == 0 {
		return
	}
	rows := make([][]string, 0, len(stats.RecentTests))
	for _, recent := range stats.RecentTests {
		rows = append(rows, []string{recent.TestTitle, recent.StudentName, recent.Score, recent.Date})
	}
	fmt.Fprintln(out, renderTable([]string{"Test", "Student", "Score", "Date"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft}))
}

// formatAnswers renders a bubble row as the letters that are filled in.
func formatAnswers(row []float64) string {
	var marked []string
	for i, value := range row {
		if value > 0 {
			marked = append(marked, string(rune('A'+i)))
		}
	}
	if len(marked) == 0 {
		return "-"
	}
	return strings.Join(marked, ",")
}

func sortRowsByIndex(rows [][]string) {
	sort.SliceStable(rows, func(a, b int) bool {
		left, _ := strconv.Atoi(rows[a][0])
		right, _ := strconv.Atoi(rows[b][0])
		return left < right
	})
}
