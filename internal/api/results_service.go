package api

import (
	"context"
	"fmt"
	"strings"
	"time"

	"grila/internal/config"
	"grila/internal/results"
	"grila/internal/services"
)

// ResultsStore abstracts the result store interactions needed by the API.
type ResultsStore interface {
	Get(ctx context.Context, id string) (*results.Record, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter results.Filter, page results.Page) (*results.ListResult, error)
	Stats(ctx context.Context, recent int) (*results.Stats, error)
}

// ListQuery carries the raw list parameters accepted by the API. Dates are
// either YYYY-MM-DD or RFC3339.
type ListQuery struct {
	Page        int
	Limit       int
	StudentName string
	TestTitle   string
	StartDate   string
	EndDate     string
}

// ResultsService exposes result queries returning API DTOs.
type ResultsService struct {
	store       ResultsStore
	defaultSize int
	maxSize     int
	recent      int
	loc         *time.Location
}

// NewResultsService constructs a ResultsService around the provided store.
func NewResultsService(store ResultsStore, cfg config.Grading) *ResultsService {
	if store == nil {
		return nil
	}
	svc := &ResultsService{
		store:       store,
		defaultSize: cfg.DefaultPageSize,
		maxSize:     cfg.MaxPageSize,
		recent:      cfg.RecentCount,
		loc:         time.Local,
	}
	if svc.defaultSize <= 0 {
		svc.defaultSize = 10
	}
	if svc.maxSize < svc.defaultSize {
		svc.maxSize = svc.defaultSize
	}
	if svc.recent <= 0 {
		svc.recent = 5
	}
	return svc
}

// WithLocation sets the zone used for display dates.
func (s *ResultsService) WithLocation(loc *time.Location) *ResultsService {
	if s != nil && loc != nil {
		s.loc = loc
	}
	return s
}

// List returns one page of summaries, newest first.
func (s *ResultsService) List(ctx context.Context, query ListQuery) (*ResultListResponse, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	filter, err := buildFilter(query, s.loc)
	if err != nil {
		return nil, err
	}
	page := s.page(query)
	listed, err := s.store.List(ctx, filter, page)
	if err != nil {
		return nil, err
	}
	resp := &ResultListResponse{
		Success:    true,
		Results:    make([]ResultSummary, 0, len(listed.Items)),
		Pagination: paginate(page, listed.Total),
	}
	for _, item := range listed.Items {
		resp.Results = append(resp.Results, FromSummary(item, s.loc))
	}
	return resp, nil
}

// Describe fetches a single result including its image.
func (s *ResultsService) Describe(ctx context.Context, id string) (*ResultResponse, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	rec, err := s.store.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	return &ResultResponse{Success: true, Result: FromRecord(rec)}, nil
}

// Delete removes a result.
func (s *ResultsService) Delete(ctx context.Context, id string) (*DeleteResponse, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	if err := s.store.Delete(ctx, strings.TrimSpace(id)); err != nil {
		return nil, err
	}
	return &DeleteResponse{Success: true, Message: "Test result deleted successfully"}, nil
}

// Stats returns aggregate statistics and the most recent results.
func (s *ResultsService) Stats(ctx context.Context) (*StatsResponse, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	stats, err := s.store.Stats(ctx, s.recent)
	if err != nil {
		return nil, err
	}
	return &StatsResponse{Success: true, Stats: FromStats(stats, s.loc)}, nil
}

func (s *ResultsService) page(query ListQuery) results.Page {
	number := query.Page
	if number < 1 {
		number = 1
	}
	size := query.Limit
	if size < 1 {
		size = s.defaultSize
	}
	if size > s.maxSize {
		size = s.maxSize
	}
	return results.Page{Number: number, Size: size}
}

func paginate(page results.Page, total int) Pagination {
	pages := 0
	if page.Size > 0 {
		pages = (total + page.Size - 1) / page.Size
	}
	return Pagination{
		CurrentPage:  page.Number,
		TotalPages:   pages,
		TotalResults: total,
		Limit:        page.Size,
		HasNext:      page.Number < pages,
		HasPrev:      page.Number > 1,
	}
}

func buildFilter(query ListQuery, loc *time.Location) (results.Filter, error) {
	filter := results.Filter{
		StudentName: strings.TrimSpace(query.StudentName),
		TestTitle:   strings.TrimSpace(query.TestTitle),
	}
	if raw := strings.TrimSpace(query.StartDate); raw != "" {
		from, _, err := parseDate(raw, loc)
		if err != nil {
			return filter, err
		}
		filter.From = &from
	}
	if raw := strings.TrimSpace(query.EndDate); raw != "" {
		to, dateOnly, err := parseDate(raw, loc)
		if err != nil {
			return filter, err
		}
		// A bare date includes the whole day.
		if dateOnly {
			to = to.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		filter.To = &to
	}
	return filter, nil
}

func parseDate(raw string, loc *time.Location) (time.Time, bool, error) {
	if loc == nil {
		loc = time.Local
	}
	if t, err := time.ParseInLocation(time.DateOnly, raw, loc); err == nil {
		return t, true, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, false, nil
	}
	return time.Time{}, false, services.Wrap(services.ErrValidation, "api", "parse date",
		fmt.Sprintf("invalid date %q, expected YYYY-MM-DD or RFC3339", raw), nil)
}
