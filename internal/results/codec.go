package results

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"grila/internal/scorer"
)

// timestampLayout is fixed width so stored timestamps sort lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// payload carries the JSON-encoded columns of a record.
type payload struct {
	barem   string
	elev    string
	details string
}

func encodePayload(rec *Record) (payload, error) {
	barem, err := marshalJSON(nonNilMatrix(rec.BaremMatrix))
	if err != nil {
		return payload{}, fmt.Errorf("encode barem matrix: %w", err)
	}
	elev, err := marshalJSON(nonNilMatrix(rec.ElevMatrix))
	if err != nil {
		return payload{}, fmt.Errorf("encode elev matrix: %w", err)
	}
	details := rec.Details
	if details == nil {
		details = []scorer.QuestionDetail{}
	}
	detailJSON, err := marshalJSON(details)
	if err != nil {
		return payload{}, fmt.Errorf("encode details: %w", err)
	}
	return payload{barem: barem, elev: elev, details: detailJSON}, nil
}

func decodePayload(rec *Record, p payload) error {
	if err := unmarshalJSON(p.barem, &rec.BaremMatrix); err != nil {
		return fmt.Errorf("decode barem matrix: %w", err)
	}
	if err := unmarshalJSON(p.elev, &rec.ElevMatrix); err != nil {
		return fmt.Errorf("decode elev matrix: %w", err)
	}
	if err := unmarshalJSON(p.details, &rec.Details); err != nil {
		return fmt.Errorf("decode details: %w", err)
	}
	return nil
}

func marshalJSON(value any) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalJSON(raw string, target any) error {
	if raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), target)
}

func nonNilMatrix(m [][]float64) [][]float64 {
	if m == nil {
		return [][]float64{}
	}
	return m
}

// prepareInsert assigns identity and creation time. A preset CreatedAt is
// kept so imports and tests can control ordering.
func prepareInsert(rec *Record) error {
	if rec == nil {
		return errors.New("record required")
	}
	rec.ID = uuid.NewString()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}

func milliseconds(d time.Duration) int64 {
	if d < 0 {
		return 0
	}
	return d.Milliseconds()
}
