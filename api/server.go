package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/frequency-chain/frequency-ops/database/models"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

// Store is the read side of the database used by the API.
type Store interface {
	Ping(ctx context.Context) error
	GetMessages(ctx context.Context, filter models.Filter, page, pageSize int64) (*models.PaginatedResult, error)
	ListLastIndexedBlocks(ctx context.Context) ([]models.LastIndexedBlock, error)
	GetUpgradeBatches(ctx context.Context, chain string) ([]models.UpgradeBatch, error)
}

// API server
type Server struct {
	r    chi.Router
	log  *slog.Logger
	db   Store
	opts ServerOpts
}

type ServerOpts struct {
	Logger *slog.Logger
	Store  Store
	Port   string
	// Gatherer backs /metrics. Defaults to the global registry.
	Gatherer prometheus.Gatherer
}

// Create API server
func NewServer(opts ServerOpts) (*Server, error) {
	if opts.Store == nil {
		return nil, errors.New("api server requires a store")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		log:  opts.Logger,
		db:   opts.Store,
		opts: opts,
	}
	s.routes()

	return s, nil
}

// StartServer serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) StartServer(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.opts.Port,
		Handler:           s.r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("📡 Server Started. API Server is now listening on http://localhost:" + s.opts.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down server: %w", err)
		}
		s.log.Info("server stopped")
		return nil
	}
}

// Turns server into http server
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.r.ServeHTTP(w, r)
}

// Returns JSON response to the API user. HTTP status code
// and data must be provided
func JSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.WriteHeader(statusCode)
	err := json.NewEncoder(w).Encode(data)
	if err != nil {
		fmt.Fprintf(w, "%s", err.Error())
	}
}

// Returns an error to the API user
func ERROR(w http.ResponseWriter, statusCode int, err error) {
	w.WriteHeader(statusCode)
	err = json.NewEncoder(w).Encode(map[string]interface{}{"error": err.Error()})
	if err != nil {
		fmt.Fprintf(w, "%s", err.Error())
	}
}
