package api

import "grila/internal/scorer"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Romanian short date and time layouts used by list and stats projections.
const (
	displayDateFormat = "02.01.2006"
	displayTimeFormat = "15:04:05"
)

// noStudentDetected is shown when the worker could not read a name.
const noStudentDetected = "Nu s-a detectat"

// GradeResponse is the single-submission grading payload. Worker fields keep
// the worker's snake_case names.
type GradeResponse struct {
	Success        bool   `json:"success"`
	Timestamp      string `json:"timestamp"`
	ProcessingTime int64  `json:"processingTime"`
	SavedID        string `json:"savedId"`
	TestTitle      string `json:"testTitle"`
	scorer.Outcome
}

// BatchSummary aggregates a batch.
type BatchSummary struct {
	TotalTests     int    `json:"totalTests"`
	Successful     int    `json:"successful"`
	Failed         int    `json:"failed"`
	SuccessRate    string `json:"successRate"`
	ProcessingTime int64  `json:"processingTime"`
}

// BatchResult is one graded submission of a batch.
type BatchResult struct {
	Index    int    `json:"index"`
	FileName string `json:"fileName"`
	SavedID  string `json:"savedId"`
	scorer.Outcome
}

// BatchError is one submission of a batch that produced no outcome.
type BatchError struct {
	Index    int    `json:"index"`
	FileName string `json:"fileName"`
	Error    string `json:"error"`
	Kind     string `json:"kind"`
}

// BatchResponse is the batch grading payload.
type BatchResponse struct {
	Success   bool          `json:"success"`
	BatchID   string        `json:"batchId"`
	TestTitle string        `json:"testTitle"`
	Timestamp string        `json:"timestamp"`
	Summary   BatchSummary  `json:"summary"`
	Results   []BatchResult `json:"results"`
	Errors    []BatchError  `json:"errors"`
}

// ResultSummary is the list projection of a stored result.
type ResultSummary struct {
	ID          string `json:"id"`
	TestTitle   string `json:"testTitle"`
	StudentName string `json:"studentName"`
	Score       string `json:"score"`
	Date        string `json:"date"`
	Time        string `json:"time"`
}

// Pagination describes the page returned by a list query.
type Pagination struct {
	CurrentPage  int  `json:"currentPage"`
	TotalPages   int  `json:"totalPages"`
	TotalResults int  `json:"totalResults"`
	Limit        int  `json:"limit"`
	HasNext      bool `json:"hasNext"`
	HasPrev      bool `json:"hasPrev"`
}

// ResultListResponse wraps one page of result summaries.
type ResultListResponse struct {
	Success    bool            `json:"success"`
	Results    []ResultSummary `json:"results"`
	Pagination Pagination      `json:"pagination"`
}

// StudentName mirrors scorer.StudentIdentity in camelCase payloads.
type StudentName struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	Success    bool    `json:"success"`
}

// ResultDetail is a full stored result including the annotated image.
type ResultDetail struct {
	ID             string                  `json:"id"`
	TestTitle      string                  `json:"testTitle"`
	StudentName    StudentName             `json:"studentName"`
	CorrectAnswers int                     `json:"correctAnswers"`
	TotalQuestions int                     `json:"totalQuestions"`
	BaremMatrix    [][]float64             `json:"baremMatrix"`
	ElevMatrix     [][]float64             `json:"elevMatrix"`
	Details        []scorer.QuestionDetail `json:"details"`
	ResultImage    string                  `json:"resultImage,omitempty"`
	Timestamp      string                  `json:"timestamp"`
	ProcessingTime int64                   `json:"processingTime"`
}

// ResultResponse wraps a single stored result.
type ResultResponse struct {
	Success bool         `json:"success"`
	Result  ResultDetail `json:"result"`
}

// DeleteResponse acknowledges a deletion.
type DeleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// RecentTest is the lightweight projection listed in stats.
type RecentTest struct {
	ID          string `json:"id"`
	TestTitle   string `json:"testTitle"`
	StudentName string `json:"studentName"`
	Score       string `json:"score"`
	Date        string `json:"date"`
}

// Stats aggregates the stored results.
type Stats struct {
	TotalTests   int          `json:"totalTests"`
	AverageScore string       `json:"averageScore"`
	MaxScore     float64      `json:"maxScore"`
	MinScore     float64      `json:"minScore"`
	RecentTests  []RecentTest `json:"recentTests"`
}

// StatsResponse wraps Stats.
type StatsResponse struct {
	Success bool  `json:"success"`
	Stats   Stats `json:"stats"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Kind    string `json:"kind,omitempty"`
	Details string `json:"details,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// WorkerStatus describes the scoring worker configuration.
type WorkerStatus struct {
	Command        string `json:"command"`
	Available      bool   `json:"available"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
	MaxConcurrency int    `json:"maxConcurrency"`
	ActiveJobs     int64  `json:"activeJobs"`
}

// HostStatus reports machine load next to the worker pool.
type HostStatus struct {
	CPUCount          int     `json:"cpuCount"`
	Load1             float64 `json:"load1"`
	Load5             float64 `json:"load5"`
	Load15            float64 `json:"load15"`
	MemoryTotal       uint64  `json:"memoryTotal"`
	MemoryUsedPercent float64 `json:"memoryUsedPercent"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	StartedAt    string             `json:"startedAt,omitempty"`
	StoreDriver  string             `json:"storeDriver"`
	LockFilePath string             `json:"lockFilePath"`
	Worker       WorkerStatus       `json:"worker"`
	Host         *HostStatus        `json:"host,omitempty"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// Event types broadcast on the live event stream.
const (
	EventJobFinished   = "job_finished"
	EventBatchFinished = "batch_finished"
)

// Event is one live grading notification.
type Event struct {
	Type      string        `json:"type"`
	Timestamp string        `json:"timestamp"`
	BatchID   string        `json:"batchId,omitempty"`
	Index     int           `json:"index,omitempty"`
	FileName  string        `json:"fileName,omitempty"`
	SavedID   string        `json:"savedId,omitempty"`
	Score     string        `json:"score,omitempty"`
	Error     string        `json:"error,omitempty"`
	Kind      string        `json:"kind,omitempty"`
	Summary   *BatchSummary `json:"summary,omitempty"`
}
