package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/higashi-matsudo/library-explorer/pkg/utils"
)

// SourceTypeHTTP is the source type constant for HTTP source.
const SourceTypeHTTP SourceType = "http"

func init() {
	Register(SourceTypeHTTP, NewHTTPSource)
}

// HTTPOptions holds HTTP source specific configuration.
type HTTPOptions struct {
	ListenAddr   string
	Path         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxBodySize  int64
}

// DefaultHTTPOptions returns the default options.
func DefaultHTTPOptions() *HTTPOptions {
	return &HTTPOptions{
		ListenAddr:   ":8081",
		Path:         "/problems",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		MaxBodySize:  1 << 16,
	}
}

// HTTPProblemRequest is the JSON body accepted by POST /problems, per
// SPEC_FULL.md's `{"name": "..."}` contract.
type HTTPProblemRequest struct {
	Name     string            `json:"name"`
	Priority int               `json:"priority,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// HTTPProblemResponse is the response for a problem submission.
type HTTPProblemResponse struct {
	Success bool   `json:"success"`
	Name    string `json:"name,omitempty"`
	Message string `json:"message,omitempty"`
}

// HTTPSource implements TaskSource for ad-hoc `POST /problems` requests,
// for re-solving a problem without restarting the process.
type HTTPSource struct {
	name    string
	options *HTTPOptions
	logger  utils.Logger

	server  *http.Server
	reqChan chan *ProblemRequest
	stopCh  chan struct{}

	mu      sync.RWMutex
	running bool
}

// NewHTTPSource creates a new HTTP source from configuration.
func NewHTTPSource(cfg *SourceConfig) (TaskSource, error) {
	opts := &HTTPOptions{
		ListenAddr:   cfg.GetString("listen_addr", ":8081"),
		Path:         cfg.GetString("path", "/problems"),
		ReadTimeout:  cfg.GetDuration("read_timeout", 30*time.Second),
		WriteTimeout: cfg.GetDuration("write_timeout", 30*time.Second),
		MaxBodySize:  int64(cfg.GetInt("max_body_size", 1<<16)),
	}

	return &HTTPSource{
		name:    cfg.Name,
		options: opts,
		reqChan: make(chan *ProblemRequest, 100),
		stopCh:  make(chan struct{}),
	}, nil
}

// NewHTTPSourceWithOptions creates a new HTTP source with explicit options.
func NewHTTPSourceWithOptions(name string, opts *HTTPOptions, logger utils.Logger) *HTTPSource {
	if opts == nil {
		opts = DefaultHTTPOptions()
	}
	if logger == nil {
		logger = utils.NewDefaultLogger(utils.LevelInfo, nil)
	}

	return &HTTPSource{
		name:    name,
		options: opts,
		logger:  logger,
		reqChan: make(chan *ProblemRequest, 100),
		stopCh:  make(chan struct{}),
	}
}

// SetLogger sets the logger.
func (s *HTTPSource) SetLogger(logger utils.Logger) {
	s.logger = logger
}

// Type returns the source type.
func (s *HTTPSource) Type() SourceType {
	return SourceTypeHTTP
}

// Name returns the source instance name.
func (s *HTTPSource) Name() string {
	return s.name
}

// Start starts the HTTP server.
func (s *HTTPSource) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()

	mux := http.NewServeMux()
	mux.HandleFunc(s.options.Path, s.handleProblem)
	mux.HandleFunc("/health", s.handleHealth)

	s.server = &http.Server{
		Addr:         s.options.ListenAddr,
		Handler:      mux,
		ReadTimeout:  s.options.ReadTimeout,
		WriteTimeout: s.options.WriteTimeout,
	}

	if s.logger != nil {
		s.logger.Info("HTTP source %s starting on %s%s", s.name, s.options.ListenAddr, s.options.Path)
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if s.logger != nil {
				s.logger.Error("HTTP source %s server error: %v", s.name, err)
			}
		}
	}()

	return nil
}

// Stop stops the HTTP server.
func (s *HTTPSource) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)

	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(ctx)
	}

	return nil
}

// Tasks returns the problem-request channel.
func (s *HTTPSource) Tasks() <-chan *ProblemRequest {
	return s.reqChan
}

// Ack acknowledges a request has been processed successfully. HTTP is
// synchronous so this is a no-op; the response was already sent.
func (s *HTTPSource) Ack(ctx context.Context, req *ProblemRequest) error {
	if s.logger != nil {
		s.logger.Debug("HTTP source %s acked problem %s", s.name, req.Name)
	}
	return nil
}

// Nack indicates a request failed.
func (s *HTTPSource) Nack(ctx context.Context, req *ProblemRequest, reason string) error {
	if s.logger != nil {
		s.logger.Warn("HTTP source %s nacked problem %s: %s", s.name, req.Name, reason)
	}
	return nil
}

// HealthCheck checks if the HTTP server is running.
func (s *HTTPSource) HealthCheck(ctx context.Context) error {
	s.mu.RLock()
	running := s.running
	s.mu.RUnlock()

	if !running {
		return fmt.Errorf("HTTP source %s is not running", s.name)
	}
	return nil
}

// handleProblem handles incoming problem submissions.
func (s *HTTPSource) handleProblem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.sendError(w, http.StatusMethodNotAllowed, "only POST method is allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.options.MaxBodySize)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.sendError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var body2 HTTPProblemRequest
	if err := json.Unmarshal(body, &body2); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	if body2.Name == "" {
		s.sendError(w, http.StatusBadRequest, "name is required")
		return
	}

	req := NewProblemRequest(body2.Name, SourceTypeHTTP, s.name)
	req.Priority = body2.Priority
	for k, v := range body2.Metadata {
		req.WithMetadata(k, v)
	}

	select {
	case s.reqChan <- req:
		s.sendSuccess(w, body2.Name, "problem accepted")
		if s.logger != nil {
			s.logger.Debug("HTTP source %s received problem %s", s.name, body2.Name)
		}
	default:
		s.sendError(w, http.StatusServiceUnavailable, "problem queue is full")
	}
}

// handleHealth handles health check requests.
func (s *HTTPSource) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "healthy",
		"source": s.name,
		"type":   string(SourceTypeHTTP),
	})
}

// sendError sends an error response.
func (s *HTTPSource) sendError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(HTTPProblemResponse{
		Success: false,
		Message: message,
	})
}

// sendSuccess sends a success response.
func (s *HTTPSource) sendSuccess(w http.ResponseWriter, name, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(HTTPProblemResponse{
		Success: true,
		Name:    name,
		Message: message,
	})
}
