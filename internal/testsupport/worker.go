package testsupport

import (
	"fmt"
	"strings"
)

// WorkerOutput renders a well-formed worker JSON document with the given
// score. The first correct questions are CORRECT, the rest WRONG.
func WorkerOutput(student string, correct, total int) string {
	details := make([]string, 0, total)
	for i := 1; i <= total; i++ {
		status := "WRONG"
		if i <= correct {
			status = "CORRECT"
		}
		details = append(details, fmt.Sprintf(`{"question": %d, "status": %q, "barem": [1,0,0,0], "elev": [1,0,0,0]}`, i, status))
	}
	identity := ""
	if student != "" {
		identity = fmt.Sprintf(`"student_name": {"name": %q, "confidence": 0.9, "success": true},`, student)
	}
	return fmt.Sprintf(`{%s"correct_answers": %d, "total_questions": %d, "barem_matrix": [[1,0,0,0]], "elev_matrix": [[1,0,0,0]], "details": [%s], "result_image": "aW1n"}`,
		identity, correct, total, strings.Join(details, ", "))
}

// EchoWorker returns a worker script body that prints output on stdout.
func EchoWorker(output string) string {
	return "cat <<'JSON'\n" + output + "\nJSON"
}
