package results

import (
	"database/sql"
	"strings"
	"time"
)

const recordColumns = "id, test_title, student_name, student_confidence, student_success, correct_answers, total_questions, barem_matrix_json, elev_matrix_json, details_json, result_image, created_at, processing_time_ms"

const summaryColumns = "id, test_title, student_name, correct_answers, total_questions, created_at, processing_time_ms"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(scanner rowScanner) (*Record, error) {
	var (
		rec          Record
		success      int64
		resultImage  sql.NullString
		createdRaw   string
		processingMS int64
		p            payload
	)
	if err := scanner.Scan(
		&rec.ID,
		&rec.TestTitle,
		&rec.Student.Name,
		&rec.Student.Confidence,
		&success,
		&rec.CorrectAnswers,
		&rec.TotalQuestions,
		&p.barem,
		&p.elev,
		&p.details,
		&resultImage,
		&createdRaw,
		&processingMS,
	); err != nil {
		return nil, err
	}
	rec.Student.Success = success != 0
	rec.ResultImage = resultImage.String
	rec.ProcessingTime = time.Duration(processingMS) * time.Millisecond
	if created, err := parseTimestamp(createdRaw); err == nil {
		rec.CreatedAt = created
	}
	if err := decodePayload(&rec, p); err != nil {
		return nil, err
	}
	return &rec, nil
}

func scanSummary(scanner rowScanner) (Summary, error) {
	var (
		summary      Summary
		createdRaw   string
		processingMS int64
	)
	if err := scanner.Scan(
		&summary.ID,
		&summary.TestTitle,
		&summary.StudentName,
		&summary.CorrectAnswers,
		&summary.TotalQuestions,
		&createdRaw,
		&processingMS,
	); err != nil {
		return Summary{}, err
	}
	summary.ProcessingTime = time.Duration(processingMS) * time.Millisecond
	if created, err := parseTimestamp(createdRaw); err == nil {
		summary.CreatedAt = created
	}
	return summary, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

// sqliteWhere renders the filter as a WHERE clause with ? placeholders.
func sqliteWhere(filter Filter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if strings.TrimSpace(filter.StudentName) != "" {
		clauses = append(clauses, `student_name_folded LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(filter.StudentName))
	}
	if strings.TrimSpace(filter.TestTitle) != "" {
		clauses = append(clauses, `test_title_folded LIKE ? ESCAPE '\'`)
		args = append(args, likePattern(filter.TestTitle))
	}
	if filter.From != nil {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, formatTimestamp(*filter.From))
	}
	if filter.To != nil {
		clauses = append(clauses, "created_at <= ?")
		args = append(args, formatTimestamp(*filter.To))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
