package results

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"grila/internal/config"
	"grila/internal/logging"
	"grila/internal/services"
)

//go:embed postgres_schema.sql
var postgresSchemaSQL string

const (
	postgresConnectAttempts = 5
	postgresConnectDelay    = time.Second
)

// PostgresStore persists results in PostgreSQL through a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to store.postgres_dsn, waiting for the server to
// accept connections, and creates the schema when missing.
func OpenPostgres(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*PostgresStore, error) {
	dsn := strings.TrimSpace(cfg.Store.PostgresDSN)
	if dsn == "" {
		return nil, services.Wrap(services.ErrConfiguration, "results", "open postgres", "store.postgres_dsn is required", nil)
	}
	logger = logging.NewComponentLogger(logger, "results")

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	err = retry.Do(
		func() error {
			return pool.Ping(ctx)
		},
		retry.Context(ctx),
		retry.Attempts(postgresConnectAttempts),
		retry.Delay(postgresConnectDelay),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("postgres not ready",
				logging.Int("attempt", int(n)+1),
				logging.Error(err),
			)
		}),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create postgres schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// Put assigns an id and creation time to rec and inserts it.
func (s *PostgresStore) Put(ctx context.Context, rec *Record) (string, error) {
	if err := prepareInsert(rec); err != nil {
		return "", persistenceError("put", err)
	}
	p, err := encodePayload(rec)
	if err != nil {
		return "", persistenceError("put", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO test_results (
            id, test_title, test_title_folded, student_name, student_name_folded,
            student_confidence, student_success, correct_answers, total_questions,
            barem_matrix_json, elev_matrix_json, details_json, result_image,
            created_at, processing_time_ms
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		rec.ID,
		rec.TestTitle,
		fold(rec.TestTitle),
		rec.Student.Name,
		fold(rec.Student.Name),
		rec.Student.Confidence,
		rec.Student.Success,
		rec.CorrectAnswers,
		rec.TotalQuestions,
		p.barem,
		p.elev,
		p.details,
		nullableString(rec.ResultImage),
		rec.CreatedAt,
		milliseconds(rec.ProcessingTime),
	)
	if err != nil {
		return "", persistenceError("insert result", err)
	}
	return rec.ID, nil
}

// Get fetches a full record including the annotated image.
func (s *PostgresStore) Get(ctx context.Context, id string) (*Record, error) {
	var (
		rec          Record
		resultImage  *string
		processingMS int64
		p            payload
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, test_title, student_name, student_confidence, student_success,
            correct_answers, total_questions, barem_matrix_json::text, elev_matrix_json::text,
            details_json::text, result_image, created_at, processing_time_ms
        FROM test_results WHERE id = $1`, id,
	).Scan(
		&rec.ID,
		&rec.TestTitle,
		&rec.Student.Name,
		&rec.Student.Confidence,
		&rec.Student.Success,
		&rec.CorrectAnswers,
		&rec.TotalQuestions,
		&p.barem,
		&p.elev,
		&p.details,
		&resultImage,
		&rec.CreatedAt,
		&processingMS,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, persistenceError("get result", err)
	}
	if resultImage != nil {
		rec.ResultImage = *resultImage
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.ProcessingTime = time.Duration(processingMS) * time.Millisecond
	if err := decodePayload(&rec, p); err != nil {
		return nil, persistenceError("get result", err)
	}
	return &rec, nil
}

// UpdateProcessingTime backfills the measured processing time.
func (s *PostgresStore) UpdateProcessingTime(ctx context.Context, id string, elapsed time.Duration) error {
	tag, err := s.pool.Exec(ctx, "UPDATE test_results SET processing_time_ms = $1 WHERE id = $2", milliseconds(elapsed), id)
	if err != nil {
		return persistenceError("update processing time", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(id)
	}
	return nil
}

// Delete removes a record.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM test_results WHERE id = $1", id)
	if err != nil {
		return persistenceError("delete result", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound(id)
	}
	return nil
}

// List returns one page of summaries, newest first, plus the match count.
func (s *PostgresStore) List(ctx context.Context, filter Filter, page Page) (*ListResult, error) {
	where, args := postgresWhere(filter)

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(1) FROM test_results"+where, args...).Scan(&total); err != nil {
		return nil, persistenceError("count results", err)
	}

	query := "SELECT " + summaryColumns + " FROM test_results" + where + " ORDER BY created_at DESC, id DESC"
	if page.Size > 0 {
		query += " LIMIT $" + strconv.Itoa(len(args)+1) + " OFFSET $" + strconv.Itoa(len(args)+2)
		args = append(args, page.Size, page.offset())
	}
	items, err := s.querySummaries(ctx, query, args...)
	if err != nil {
		return nil, persistenceError("list results", err)
	}
	return &ListResult{Items: items, Total: total}, nil
}

// Stats aggregates all stored results and returns the most recent entries.
func (s *PostgresStore) Stats(ctx context.Context, recent int) (*Stats, error) {
	var (
		stats                Stats
		avg, highest, lowest *float64
	)
	err := s.pool.QueryRow(ctx, `SELECT COUNT(1),
            AVG(CASE WHEN total_questions > 0 THEN 100.0 * correct_answers / total_questions END)::float8,
            MAX(CASE WHEN total_questions > 0 THEN 100.0 * correct_answers / total_questions END)::float8,
            MIN(CASE WHEN total_questions > 0 THEN 100.0 * correct_answers / total_questions END)::float8
        FROM test_results`).Scan(&stats.TotalCount, &avg, &highest, &lowest)
	if err != nil {
		return nil, persistenceError("aggregate results", err)
	}
	stats.AverageScore = derefFloat(avg)
	stats.MaxScore = derefFloat(highest)
	stats.MinScore = derefFloat(lowest)

	if recent > 0 {
		items, err := s.querySummaries(ctx,
			"SELECT "+summaryColumns+" FROM test_results ORDER BY created_at DESC, id DESC LIMIT $1", recent)
		if err != nil {
			return nil, persistenceError("recent results", err)
		}
		stats.Recent = items
	}
	return &stats, nil
}

func (s *PostgresStore) querySummaries(ctx context.Context, query string, args ...any) ([]Summary, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Summary, 0)
	for rows.Next() {
		var (
			summary      Summary
			processingMS int64
		)
		if err := rows.Scan(
			&summary.ID,
			&summary.TestTitle,
			&summary.StudentName,
			&summary.CorrectAnswers,
			&summary.TotalQuestions,
			&summary.CreatedAt,
			&processingMS,
		); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summary.CreatedAt = summary.CreatedAt.UTC()
		summary.ProcessingTime = time.Duration(processingMS) * time.Millisecond
		items = append(items, summary)
	}
	return items, rows.Err()
}

func derefFloat(value *float64) float64 {
	if value == nil {
		return 0
	}
	return *value
}

// postgresWhere renders the filter as a WHERE clause with numbered placeholders.
func postgresWhere(filter Filter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	next := func(value any) string {
		args = append(args, value)
		return "$" + strconv.Itoa(len(args))
	}
	if strings.TrimSpace(filter.StudentName) != "" {
		clauses = append(clauses, "student_name_folded LIKE "+next(likePattern(filter.StudentName))+` ESCAPE '\'`)
	}
	if strings.TrimSpace(filter.TestTitle) != "" {
		clauses = append(clauses, "test_title_folded LIKE "+next(likePattern(filter.TestTitle))+` ESCAPE '\'`)
	}
	if filter.From != nil {
		clauses = append(clauses, "created_at >= "+next(filter.From.UTC()))
	}
	if filter.To != nil {
		clauses = append(clauses, "created_at <= "+next(filter.To.UTC()))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
