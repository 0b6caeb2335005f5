package results

import (
	"time"

	"grila/internal/scorer"
)

// Record is a persisted grading outcome plus orchestration metadata.
type Record struct {
	ID             string
	TestTitle      string
	Student        scorer.StudentIdentity
	CorrectAnswers int
	TotalQuestions int
	BaremMatrix    [][]float64
	ElevMatrix     [][]float64
	Details        []scorer.QuestionDetail
	ResultImage    string
	CreatedAt      time.Time
	ProcessingTime time.Duration
}

// NewRecord builds an unsaved record from a worker outcome. A missing student
// identity becomes the empty default.
func NewRecord(title string, outcome *scorer.Outcome) *Record {
	if outcome == nil {
		return &Record{TestTitle: title}
	}
	return &Record{
		TestTitle:      title,
		Student:        outcome.Identity(),
		CorrectAnswers: outcome.CorrectAnswers,
		TotalQuestions: outcome.TotalQuestions,
		BaremMatrix:    outcome.BaremMatrix,
		ElevMatrix:     outcome.ElevMatrix,
		Details:        outcome.Details,
		ResultImage:    outcome.ResultImage,
	}
}

// Outcome projects the record back onto the worker outcome shape.
func (r *Record) Outcome() *scorer.Outcome {
	student := r.Student
	return &scorer.Outcome{
		StudentName:    &student,
		CorrectAnswers: r.CorrectAnswers,
		TotalQuestions: r.TotalQuestions,
		BaremMatrix:    r.BaremMatrix,
		ElevMatrix:     r.ElevMatrix,
		Details:        r.Details,
		ResultImage:    r.ResultImage,
	}
}

// Summary is the list projection of a record; it omits the annotated image
// and the raw matrices.
type Summary struct {
	ID             string
	TestTitle      string
	StudentName    string
	CorrectAnswers int
	TotalQuestions int
	CreatedAt      time.Time
	ProcessingTime time.Duration
}

// ScorePercent returns correct/total as a percentage, 0 when total is 0.
func (s Summary) ScorePercent() float64 {
	return percent(s.CorrectAnswers, s.TotalQuestions)
}

// Filter narrows List results. Empty fields do not filter.
type Filter struct {
	StudentName string
	TestTitle   string
	From        *time.Time
	To          *time.Time
}

// Page selects a 1-based page of Size items.
type Page struct {
	Number int
	Size   int
}

func (p Page) offset() int {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

// ListResult is one page of summaries and the total match count.
type ListResult struct {
	Items []Summary
	Total int
}

// Stats aggregates the whole store.
type Stats struct {
	TotalCount   int
	AverageScore float64
	MaxScore     float64
	MinScore     float64
	Recent       []Summary
}

func percent(correct, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(correct) * 100 / float64(total)
}
