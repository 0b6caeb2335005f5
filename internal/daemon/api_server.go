package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"grila/internal/api"
	"grila/internal/config"
	"grila/internal/grading"
	"grila/internal/logging"
	"grila/internal/services"
)

// multipartMemory is the in-memory share of a parsed form; larger parts spill
// to temporary files.
const multipartMemory = 8 << 20

type apiServer struct {
	bind         string
	logger       *slog.Logger
	daemon       *Daemon
	router       *mux.Router
	writeTimeout time.Duration

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:         strings.TrimSpace(cfg.Paths.APIBind),
		logger:       logging.NewComponentLogger(logger, "api-server"),
		daemon:       d,
		writeTimeout: cfg.WorkerTimeout() + 30*time.Second,
	}
	srv.router = srv.routes(strings.TrimSpace(cfg.Paths.APIToken))
	return srv
}

func (s *apiServer) routes(token string) *mux.Router {
	router := mux.NewRouter()
	router.Use(requestIDMiddleware)
	if collector := s.daemon.metrics; collector != nil {
		router.Use(collector.Middleware)
		router.Handle("/metrics", collector.Handler()).Methods(http.MethodGet)
	}

	routes := router.PathPrefix("/grading").Subrouter()
	routes.Use(authMiddleware(token))
	routes.HandleFunc("/grade", s.handleGrade).Methods(http.MethodPost)
	routes.HandleFunc("/grade-batch", s.handleGradeBatch).Methods(http.MethodPost)
	routes.HandleFunc("/results", s.handleListResults).Methods(http.MethodGet)
	routes.HandleFunc("/results/{id}", s.handleGetResult).Methods(http.MethodGet)
	routes.HandleFunc("/results/{id}", s.handleDeleteResult).Methods(http.MethodDelete)
	routes.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	routes.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	routes.HandleFunc("/events", s.daemon.hub.serve).Methods(http.MethodGet)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, api.ErrorResponse{Error: "route not found"})
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, api.ErrorResponse{Error: "method not allowed"})
	})
	return router
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return nil
	}
	listener, err := listen(s.bind)
	if err != nil {
		return err
	}
	server := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      s.writeTimeout,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.listener = nil
	s.mu.Unlock()
	if server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		_ = server.Close()
	}
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleGrade(w http.ResponseWriter, r *http.Request) {
	form, err := s.parseForm(w, r, 2)
	if err != nil {
		s.writeError(w, r, "", err)
		return
	}
	defer form.RemoveAll() //nolint:errcheck

	submissions := form.File["elev"]
	if len(submissions) > 1 {
		s.writeError(w, r, "", services.Wrap(services.ErrIngestion, "api", "grade",
			"exactly one elev image is accepted, use /grading/grade-batch for more", nil))
		return
	}
	staged, err := s.daemon.stager.StageUploads(firstFile(form, "barem"), submissions)
	if err != nil {
		s.writeError(w, r, "", err)
		return
	}

	ctx, cancel := s.daemon.jobContext(r.Context())
	defer cancel()
	resp, err := s.daemon.orchestrator.GradeOne(ctx, grading.SingleRequest{
		Reference:  staged.Reference,
		Submission: staged.Submissions[0],
		Title:      formValue(form, "testTitle"),
	})
	if err != nil {
		s.writeError(w, r, "Error processing test", err)
		return
	}
	writeJSON(w, http.StatusOK, api.FromSingleResponse(resp))
}

func (s *apiServer) handleGradeBatch(w http.ResponseWriter, r *http.Request) {
	form, err := s.parseForm(w, r, s.daemon.cfg.Grading.MaxBatchFiles+1)
	if err != nil {
		s.writeError(w, r, "", err)
		return
	}
	defer form.RemoveAll() //nolint:errcheck

	staged, err := s.daemon.stager.StageUploads(firstFile(form, "barem"), form.File["elev"])
	if err != nil {
		s.writeError(w, r, "", err)
		return
	}

	ctx, cancel := s.daemon.jobContext(r.Context())
	defer cancel()
	resp, err := s.daemon.orchestrator.Grade(ctx, grading.BatchRequest{
		Reference:   staged.Reference,
		Submissions: staged.Submissions,
		Title:       formValue(form, "testTitle"),
	})
	if err != nil {
		s.writeError(w, r, "Error processing batch", err)
		return
	}
	writeJSON(w, http.StatusOK, api.FromBatchResponse(resp))
}

func (s *apiServer) handleListResults(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	resp, err := s.daemon.resultsSvc.List(r.Context(), api.ListQuery{
		Page:        atoi(query.Get("page")),
		Limit:       atoi(query.Get("limit")),
		StudentName: query.Get("studentName"),
		TestTitle:   query.Get("testTitle"),
		StartDate:   query.Get("startDate"),
		EndDate:     query.Get("endDate"),
	})
	if err != nil {
		s.writeError(w, r, "Error fetching results", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleGetResult(w http.ResponseWriter, r *http.Request) {
	resp, err := s.daemon.resultsSvc.Describe(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, "Error fetching result", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleDeleteResult(w http.ResponseWriter, r *http.Request) {
	resp, err := s.daemon.resultsSvc.Delete(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, "Error deleting result", err)
		return
	}
	logging.WithContext(r.Context(), s.logger).Info("test result deleted",
		logging.String(logging.FieldEventType, "result_deleted"),
		logging.String(logging.FieldResultID, mux.Vars(r)["id"]),
	)
	writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleStats(w http.ResponseWriter, r *http.Request) {
	resp, err := s.daemon.resultsSvc.Stats(r.Context())
	if err != nil {
		s.writeError(w, r, "Error fetching statistics", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.daemon.statusPayload(r.Context()))
}

// parseForm bounds the request body before parsing so oversized uploads fail
// without being buffered.
func (s *apiServer) parseForm(w http.ResponseWriter, r *http.Request, files int) (*multipart.Form, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.daemon.stager.MaxRequestBytes(files))
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, services.Wrap(services.ErrIngestion, "api", "parse form", "request body too large", err)
		}
		return nil, services.Wrap(services.ErrIngestion, "api", "parse form", "multipart form expected", err)
	}
	return r.MultipartForm, nil
}

// writeError maps err onto its status. Server-side failures keep the generic
// message and carry the error text as details; client errors report the
// error text itself.
func (s *apiServer) writeError(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := services.HTTPStatus(err)
	logger := logging.WithContext(r.Context(), s.logger)
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logger, "request failed", "request_failed",
			logging.String("route", r.URL.Path),
			logging.String(logging.FieldErrorKind, services.Kind(err)),
			logging.Error(err),
		)
		writeJSON(w, status, api.NewErrorResponse(message, err))
		return
	}
	logger.Debug("request rejected",
		logging.String("route", r.URL.Path),
		logging.Int("status", status),
		logging.Error(err),
	)
	if status == http.StatusNotFound {
		writeJSON(w, status, api.NewErrorResponse("Test result not found", err))
		return
	}
	writeJSON(w, status, api.NewErrorResponse("", err))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func firstFile(form *multipart.Form, field string) *multipart.FileHeader {
	if form == nil || len(form.File[field]) == 0 {
		return nil
	}
	return form.File[field][0]
}

func formValue(form *multipart.Form, field string) string {
	if form == nil || len(form.Value[field]) == 0 {
		return ""
	}
	return form.Value[field][0]
}

func atoi(raw string) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return value
}
