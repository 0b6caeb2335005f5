package api

import (
	"fmt"
	"strings"
	"time"

	"grila/internal/grading"
	"grila/internal/results"
	"grila/internal/scorer"
	"grila/internal/services"
)

// FromSingleResponse converts an orchestrator single result into its payload.
func FromSingleResponse(resp *grading.SingleResponse) GradeResponse {
	if resp == nil {
		return GradeResponse{}
	}
	out := GradeResponse{
		Success:        true,
		Timestamp:      formatTimestamp(resp.Timestamp),
		ProcessingTime: resp.ProcessingTime.Milliseconds(),
		SavedID:        resp.ID,
		TestTitle:      resp.Title,
	}
	if resp.Outcome != nil {
		out.Outcome = *resp.Outcome
	}
	return out
}

// FromBatchResponse converts a partitioned batch into its payload. Results and
// Errors are always non-nil so clients see empty arrays.
func FromBatchResponse(resp *grading.BatchResponse) BatchResponse {
	if resp == nil {
		return BatchResponse{Results: []BatchResult{}, Errors: []BatchError{}}
	}
	out := BatchResponse{
		Success:   true,
		BatchID:   resp.BatchID,
		TestTitle: resp.Title,
		Timestamp: formatTimestamp(resp.Timestamp),
		Summary:   FromBatchSummary(resp.Summary),
		Results:   make([]BatchResult, 0, len(resp.Results)),
		Errors:    make([]BatchError, 0, len(resp.Errors)),
	}
	for _, graded := range resp.Results {
		result := BatchResult{Index: graded.Index, FileName: graded.FileName, SavedID: graded.ID}
		if graded.Outcome != nil {
			result.Outcome = *graded.Outcome
		}
		out.Results = append(out.Results, result)
	}
	for _, failure := range resp.Errors {
		out.Errors = append(out.Errors, BatchError{
			Index:    failure.Index,
			FileName: failure.FileName,
			Error:    failure.Error,
			Kind:     failure.Kind,
		})
	}
	return out
}

// FromBatchSummary converts the batch aggregate.
func FromBatchSummary(summary grading.BatchSummary) BatchSummary {
	return BatchSummary{
		TotalTests:     summary.TotalTests,
		Successful:     summary.Successful,
		Failed:         summary.Failed,
		SuccessRate:    summary.SuccessRate,
		ProcessingTime: summary.ProcessingTime.Milliseconds(),
	}
}

// FromRecord converts a stored record into the detail payload.
func FromRecord(rec *results.Record) ResultDetail {
	if rec == nil {
		return ResultDetail{}
	}
	details := rec.Details
	if details == nil {
		details = []scorer.QuestionDetail{}
	}
	return ResultDetail{
		ID:        rec.ID,
		TestTitle: rec.TestTitle,
		StudentName: StudentName{
			Name:       rec.Student.Name,
			Confidence: rec.Student.Confidence,
			Success:    rec.Student.Success,
		},
		CorrectAnswers: rec.CorrectAnswers,
		TotalQuestions: rec.TotalQuestions,
		BaremMatrix:    rec.BaremMatrix,
		ElevMatrix:     rec.ElevMatrix,
		Details:        details,
		ResultImage:    rec.ResultImage,
		Timestamp:      formatTimestamp(rec.CreatedAt),
		ProcessingTime: rec.ProcessingTime.Milliseconds(),
	}
}

// FromSummary converts a list row, rendering date and time in loc.
func FromSummary(summary results.Summary, loc *time.Location) ResultSummary {
	created := inLocation(summary.CreatedAt, loc)
	return ResultSummary{
		ID:          summary.ID,
		TestTitle:   summary.TestTitle,
		StudentName: displayStudent(summary.StudentName),
		Score:       fmt.Sprintf("%d/%d", summary.CorrectAnswers, summary.TotalQuestions),
		Date:        created.Format(displayDateFormat),
		Time:        created.Format(displayTimeFormat),
	}
}

// FromStats converts store aggregates. Recent scores are percentages.
func FromStats(stats *results.Stats, loc *time.Location) Stats {
	out := Stats{AverageScore: "0.0", RecentTests: []RecentTest{}}
	if stats == nil {
		return out
	}
	out.TotalTests = stats.TotalCount
	out.AverageScore = fmt.Sprintf("%.1f", stats.AverageScore)
	out.MaxScore = roundTenth(stats.MaxScore)
	out.MinScore = roundTenth(stats.MinScore)
	for _, summary := range stats.Recent {
		out.RecentTests = append(out.RecentTests, RecentTest{
			ID:          summary.ID,
			TestTitle:   summary.TestTitle,
			StudentName: displayStudent(summary.StudentName),
			Score:       fmt.Sprintf("%.1f%%", summary.ScorePercent()),
			Date:        inLocation(summary.CreatedAt, loc).Format(displayDateFormat),
		})
	}
	return out
}

// NewErrorResponse builds the error body for err. message overrides the
// error text when set.
func NewErrorResponse(message string, err error) ErrorResponse {
	resp := ErrorResponse{Error: strings.TrimSpace(message)}
	if err != nil {
		resp.Kind = services.Kind(err)
		if resp.Error == "" {
			resp.Error = err.Error()
		} else {
			resp.Details = err.Error()
		}
	}
	return resp
}

func displayStudent(name string) string {
	if strings.TrimSpace(name) == "" {
		return noStudentDetected
	}
	return name
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func inLocation(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc)
}

func roundTenth(v float64) float64 {
	return float64(int64(v*10+0.5)) / 10
}
