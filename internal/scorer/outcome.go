package scorer

import (
	"fmt"

	"grila/internal/services"
)

// Verdict is the per-question grading status emitted by the worker.
type Verdict string

const (
	VerdictCorrect Verdict = "CORRECT"
	VerdictWrong   Verdict = "WRONG"
)

// Valid reports whether v is one of the known verdicts.
func (v Verdict) Valid() bool {
	return v == VerdictCorrect || v == VerdictWrong
}

// StudentIdentity is the best-effort name detection result. Success is
// independent of grading correctness.
type StudentIdentity struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	Success    bool    `json:"success"`
}

// QuestionDetail holds the verdict and marks for one question.
type QuestionDetail struct {
	Question int       `json:"question"`
	Status   Verdict   `json:"status"`
	Barem    []float64 `json:"barem"`
	Elev     []float64 `json:"elev"`
}

// Outcome is the worker's verdict for one submission.
type Outcome struct {
	StudentName    *StudentIdentity `json:"student_name,omitempty"`
	CorrectAnswers int              `json:"correct_answers"`
	TotalQuestions int              `json:"total_questions"`
	BaremMatrix    [][]float64      `json:"barem_matrix"`
	ElevMatrix     [][]float64      `json:"elev_matrix"`
	Details        []QuestionDetail `json:"details"`
	ResultImage    string           `json:"result_image"`
}

// Check enforces the structural invariants every outcome must satisfy.
func (o *Outcome) Check() error {
	if o == nil {
		return services.Wrap(services.ErrMalformedOutput, "scorer", "check outcome", "empty outcome", nil)
	}
	if o.CorrectAnswers < 0 || o.TotalQuestions < 0 {
		return services.Wrap(services.ErrMalformedOutput, "scorer", "check outcome",
			fmt.Sprintf("negative counts (correct=%d total=%d)", o.CorrectAnswers, o.TotalQuestions), nil)
	}
	if o.CorrectAnswers > o.TotalQuestions {
		return services.Wrap(services.ErrMalformedOutput, "scorer", "check outcome",
			fmt.Sprintf("correct_answers %d exceeds total_questions %d", o.CorrectAnswers, o.TotalQuestions), nil)
	}
	if len(o.Details) != o.TotalQuestions {
		return services.Wrap(services.ErrMalformedOutput, "scorer", "check outcome",
			fmt.Sprintf("%d details for %d questions", len(o.Details), o.TotalQuestions), nil)
	}
	for i, detail := range o.Details {
		if !detail.Status.Valid() {
			return services.Wrap(services.ErrMalformedOutput, "scorer", "check outcome",
				fmt.Sprintf("detail %d has unknown status %q", i+1, detail.Status), nil)
		}
	}
	return nil
}

// Identity returns the detected student identity, substituting the empty
// default when the worker omitted it.
func (o *Outcome) Identity() StudentIdentity {
	if o == nil || o.StudentName == nil {
		return StudentIdentity{}
	}
	return *o.StudentName
}

// Score renders the outcome as "correct/total".
func (o *Outcome) Score() string {
	if o == nil {
		return "0/0"
	}
	return fmt.Sprintf("%d/%d", o.CorrectAnswers, o.TotalQuestions)
}
