package results

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Put assigns an id and creation time to rec and inserts it.
func (s *SQLiteStore) Put(ctx context.Context, rec *Record) (string, error) {
	if err := prepareInsert(rec); err != nil {
		return "", persistenceError("put", err)
	}
	p, err := encodePayload(rec)
	if err != nil {
		return "", persistenceError("put", err)
	}
	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO test_results (
            id, test_title, test_title_folded, student_name, student_name_folded,
            student_confidence, student_success, correct_answers, total_questions,
            barem_matrix_json, elev_matrix_json, details_json, result_image,
            created_at, processing_time_ms
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.TestTitle,
		fold(rec.TestTitle),
		rec.Student.Name,
		fold(rec.Student.Name),
		rec.Student.Confidence,
		boolToInt(rec.Student.Success),
		rec.CorrectAnswers,
		rec.TotalQuestions,
		p.barem,
		p.elev,
		p.details,
		nullableString(rec.ResultImage),
		formatTimestamp(rec.CreatedAt),
		milliseconds(rec.ProcessingTime),
	); err != nil {
		return "", persistenceError("insert result", err)
	}
	return rec.ID, nil
}

// Get fetches a full record including the annotated image.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Record, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM test_results WHERE id = ?", id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, persistenceError("get result", err)
	}
	return rec, nil
}

// UpdateProcessingTime backfills the measured processing time.
func (s *SQLiteStore) UpdateProcessingTime(ctx context.Context, id string, elapsed time.Duration) error {
	res, err := s.execWithRetry(ctx,
		"UPDATE test_results SET processing_time_ms = ? WHERE id = ?",
		milliseconds(elapsed), id,
	)
	if err != nil {
		return persistenceError("update processing time", err)
	}
	return requireAffected(res, id)
}

// Delete removes a record.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.execWithRetry(ctx, "DELETE FROM test_results WHERE id = ?", id)
	if err != nil {
		return persistenceError("delete result", err)
	}
	return requireAffected(res, id)
}

func requireAffected(res sql.Result, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return persistenceError("rows affected", err)
	}
	if affected == 0 {
		return notFound(id)
	}
	return nil
}

// List returns one page of summaries, newest first, plus the match count.
func (s *SQLiteStore) List(ctx context.Context, filter Filter, page Page) (*ListResult, error) {
	ctx = ensureContext(ctx)
	where, args := sqliteWhere(filter)

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM test_results"+where, args...).Scan(&total); err != nil {
		return nil, persistenceError("count results", err)
	}

	query := "SELECT " + summaryColumns + " FROM test_results" + where + " ORDER BY created_at DESC, id DESC"
	if page.Size > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, page.Size, page.offset())
	}
	items, err := s.querySummaries(ctx, query, args...)
	if err != nil {
		return nil, persistenceError("list results", err)
	}
	return &ListResult{Items: items, Total: total}, nil
}

// Stats aggregates all stored results and returns the most recent entries.
func (s *SQLiteStore) Stats(ctx context.Context, recent int) (*Stats, error) {
	ctx = ensureContext(ctx)
	var (
		stats                Stats
		avg, highest, lowest sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1),
            AVG(CASE WHEN total_questions > 0 THEN 100.0 * correct_answers / total_questions END),
            MAX(CASE WHEN total_questions > 0 THEN 100.0 * correct_answers / total_questions END),
            MIN(CASE WHEN total_questions > 0 THEN 100.0 * correct_answers / total_questions END)
        FROM test_results`).Scan(&stats.TotalCount, &avg, &highest, &lowest)
	if err != nil {
		return nil, persistenceError("aggregate results", err)
	}
	stats.AverageScore = avg.Float64
	stats.MaxScore = highest.Float64
	stats.MinScore = lowest.Float64

	if recent > 0 {
		items, err := s.querySummaries(ctx,
			"SELECT "+summaryColumns+" FROM test_results ORDER BY created_at DESC, id DESC LIMIT ?", recent)
		if err != nil {
			return nil, persistenceError("recent results", err)
		}
		stats.Recent = items
	}
	return &stats, nil
}

func (s *SQLiteStore) querySummaries(ctx context.Context, query string, args ...any) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Summary, 0)
	for rows.Next() {
		summary, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		items = append(items, summary)
	}
	return items, rows.Err()
}
