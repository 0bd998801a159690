package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/higashi-matsudo/library-explorer/internal/repository"
)

var (
	serveAddr       string
	serveConfigPath string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve run history as read-only JSON",
	Long: `serve exposes the run history (one row per solve attempt, including
its recorded guess map) as read-only JSON over HTTP. Dump files in guess-map
storage are not served. It renders no images; it is an inspection
endpoint, not a dashboard.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	binName := BinName()
	serveCmd.Example = `  # Serve on the default address
  ` + binName + ` serve

  # Serve on a custom address
  ` + binName + ` serve --addr :9090`

	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "HTTP listen address")
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "Path to a config file (defaults to ./config.yaml)")
}

// serveServer bundles the handlers runServe registers, so they can be
// unit tested against an httptest.Server without going through cobra.
type serveServer struct {
	history repository.HistoryRepository
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp(serveConfigPath, "mock")
	if err != nil {
		return err
	}
	defer a.Close()

	srv := &serveServer{history: a.repos.History}
	mux := newServeMux(srv)

	httpServer := &http.Server{
		Addr:         serveAddr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("serving run history on %s", serveAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// newServeMux builds the read-only routes: /health, /runs?problem=NAME
// and /runs/pending.
func newServeMux(srv *serveServer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", srv.handleHealth)
	mux.HandleFunc("/runs", srv.handleRuns)
	mux.HandleFunc("/runs/pending", srv.handlePending)
	return mux
}

func (s *serveServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleRuns returns every RunRecord for a problem, most recent first.
func (s *serveServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	problem := r.URL.Query().Get("problem")
	if problem == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing problem query parameter"})
		return
	}
	records, err := s.history.ListByProblem(r.Context(), problem)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// handlePending returns the RunRecords currently queued for the
// database source.
func (s *serveServer) handlePending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	records, err := s.history.ListPending(r.Context(), 50)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
