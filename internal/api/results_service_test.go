package api

import (
	"context"
	"errors"
	"testing"
	"time"

	"grila/internal/config"
	"grila/internal/results"
	"grila/internal/services"
)

type mockResultsStore struct {
	records   map[string]*results.Record
	items     []results.Summary
	total     int
	stats     *results.Stats
	listErr   error
	gotFilter results.Filter
	gotPage   results.Page
	gotRecent int
	deleted   []string
}

func (m *mockResultsStore) Get(_ context.Context, id string) (*results.Record, error) {
	rec, ok := m.records[id]
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "results", "lookup", "missing", nil)
	}
	return rec, nil
}

func (m *mockResultsStore) Delete(_ context.Context, id string) error {
	if _, ok := m.records[id]; !ok {
		return services.Wrap(services.ErrNotFound, "results", "lookup", "missing", nil)
	}
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockResultsStore) List(_ context.Context, filter results.Filter, page results.Page) (*results.ListResult, error) {
	m.gotFilter = filter
	m.gotPage = page
	if m.listErr != nil {
		return nil, m.listErr
	}
	return &results.ListResult{Items: m.items, Total: m.total}, nil
}

func (m *mockResultsStore) Stats(_ context.Context, recent int) (*results.Stats, error) {
	m.gotRecent = recent
	return m.stats, nil
}

func gradingConfig() config.Grading {
	return config.Grading{DefaultPageSize: 10, MaxPageSize: 100, RecentCount: 5}
}

func TestNewResultsServiceNilStore(t *testing.T) {
	if svc := NewResultsService(nil, gradingConfig()); svc != nil {
		t.Fatalf("expected nil service for nil store")
	}
	var svc *ResultsService
	resp, err := svc.List(context.Background(), ListQuery{})
	if err != nil || resp != nil {
		t.Fatalf("nil service List = %v, %v", resp, err)
	}
}

func TestResultsServiceListPagination(t *testing.T) {
	created := time.Date(2026, 5, 10, 9, 15, 30, 0, time.UTC)
	store := &mockResultsStore{
		items: []results.Summary{
			{ID: "a", TestTitle: "Evaluare", StudentName: "Ana Pop", CorrectAnswers: 8, TotalQuestions: 10, CreatedAt: created},
			{ID: "b", TestTitle: "Evaluare", CorrectAnswers: 0, TotalQuestions: 10, CreatedAt: created},
		},
		total: 25,
	}
	svc := NewResultsService(store, gradingConfig()).WithLocation(time.UTC)

	resp, err := svc.List(context.Background(), ListQuery{Page: 2, Limit: 10})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	want := Pagination{CurrentPage: 2, TotalPages: 3, TotalResults: 25, Limit: 10, HasNext: true, HasPrev: true}
	if resp.Pagination != want {
		t.Fatalf("pagination = %+v, want %+v", resp.Pagination, want)
	}
	if store.gotPage != (results.Page{Number: 2, Size: 10}) {
		t.Fatalf("store page = %+v", store.gotPage)
	}
	first := resp.Results[0]
	if first.Score != "8/10" || first.Date != "10.05.2026" || first.Time != "09:15:30" {
		t.Fatalf("unexpected summary %+v", first)
	}
	if resp.Results[1].StudentName != noStudentDetected {
		t.Fatalf("expected placeholder student, got %q", resp.Results[1].StudentName)
	}
}

func TestResultsServiceClampsPage(t *testing.T) {
	store := &mockResultsStore{}
	svc := NewResultsService(store, gradingConfig())

	if _, err := svc.List(context.Background(), ListQuery{Page: -3, Limit: 5000}); err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if store.gotPage != (results.Page{Number: 1, Size: 100}) {
		t.Fatalf("expected clamped page, got %+v", store.gotPage)
	}

	resp, err := svc.List(context.Background(), ListQuery{})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if store.gotPage.Size != 10 {
		t.Fatalf("expected default size, got %d", store.gotPage.Size)
	}
	if resp.Pagination.TotalPages != 0 || resp.Pagination.HasNext || resp.Pagination.HasPrev {
		t.Fatalf("unexpected empty pagination %+v", resp.Pagination)
	}
	if resp.Results == nil {
		t.Fatalf("expected empty, non-nil results")
	}
}

func TestResultsServiceDateFilters(t *testing.T) {
	store := &mockResultsStore{}
	svc := NewResultsService(store, gradingConfig()).WithLocation(time.UTC)

	_, err := svc.List(context.Background(), ListQuery{
		StudentName: "  stefan ",
		StartDate:   "2026-05-01",
		EndDate:     "2026-05-10",
	})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if store.gotFilter.StudentName != "stefan" {
		t.Fatalf("expected trimmed name, got %q", store.gotFilter.StudentName)
	}
	if got := store.gotFilter.From; got == nil || !got.Equal(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected from %v", got)
	}
	wantTo := time.Date(2026, 5, 11, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond)
	if got := store.gotFilter.To; got == nil || !got.Equal(wantTo) {
		t.Fatalf("unexpected to %v", got)
	}

	_, err = svc.List(context.Background(), ListQuery{EndDate: "2026-05-10T12:00:00Z"})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if got := store.gotFilter.To; got == nil || !got.Equal(time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected rfc3339 to %v", got)
	}
}

func TestResultsServiceRejectsBadDate(t *testing.T) {
	svc := NewResultsService(&mockResultsStore{}, gradingConfig())
	_, err := svc.List(context.Background(), ListQuery{StartDate: "10/05/2026"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if services.HTTPStatus(err) != 400 {
		t.Fatalf("expected 400, got %d", services.HTTPStatus(err))
	}
}

func TestResultsServiceDescribeAndDelete(t *testing.T) {
	store := &mockResultsStore{records: map[string]*results.Record{
		"abc": {ID: "abc", TestTitle: "Evaluare", CorrectAnswers: 7, TotalQuestions: 10, ResultImage: "data:image/png;base64,AA=="},
	}}
	svc := NewResultsService(store, gradingConfig())

	got, err := svc.Describe(context.Background(), " abc ")
	if err != nil {
		t.Fatalf("Describe returned error: %v", err)
	}
	if got.Result.ID != "abc" || got.Result.ResultImage == "" || got.Result.Details == nil {
		t.Fatalf("unexpected detail %+v", got.Result)
	}

	if _, err := svc.Describe(context.Background(), "missing"); services.HTTPStatus(err) != 404 {
		t.Fatalf("expected 404 for missing id, got %v", err)
	}

	del, err := svc.Delete(context.Background(), "abc")
	if err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if !del.Success || del.Message != "Test result deleted successfully" {
		t.Fatalf("unexpected delete response %+v", del)
	}
	if _, err := svc.Delete(context.Background(), "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestResultsServiceStats(t *testing.T) {
	store := &mockResultsStore{stats: &results.Stats{
		TotalCount:   3,
		AverageScore: 76.666,
		MaxScore:     100,
		MinScore:     50,
		Recent: []results.Summary{
			{ID: "r1", TestTitle: "Evaluare", StudentName: "Ana", CorrectAnswers: 3, TotalQuestions: 4, CreatedAt: time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)},
		},
	}}
	svc := NewResultsService(store, gradingConfig()).WithLocation(time.UTC)

	resp, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}
	if store.gotRecent != 5 {
		t.Fatalf("expected recent count 5, got %d", store.gotRecent)
	}
	stats := resp.Stats
	if stats.TotalTests != 3 || stats.AverageScore != "76.7" || stats.MaxScore != 100 || stats.MinScore != 50 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if len(stats.RecentTests) != 1 || stats.RecentTests[0].Score != "75.0%" || stats.RecentTests[0].Date != "10.05.2026" {
		t.Fatalf("unexpected recent tests %+v", stats.RecentTests)
	}
}
