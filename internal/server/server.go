// Package server exposes the assignee predictor over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/Veraticus/dispatch/internal/engine"
	"github.com/Veraticus/dispatch/internal/registry"
)

// Trainer runs a training job on demand.
type Trainer interface {
	Train(ctx context.Context) (*engine.Result, error)
	Running() bool
}

// Config configures a Server.
type Config struct {
	Registry *registry.Registry
	// Trainer enables POST /model/train when set.
	Trainer Trainer
	Logger  *slog.Logger
	Address string
}

// Server is the prediction HTTP service.
type Server struct {
	registry   *registry.Registry
	trainer    Trainer
	logger     *slog.Logger
	httpServer *http.Server
	listener   net.Listener
	address    string
	endpoints  []string
}

// NewServer creates a new prediction server.
func NewServer(config Config) (*Server, error) {
	if config.Registry == nil {
		return nil, fmt.Errorf("model registry is required")
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		registry: config.Registry,
		trainer:  config.Trainer,
		logger:   logger,
		address:  config.Address,
	}

	mux := http.NewServeMux()
	s.route(mux, "GET /health", s.handleHealth)
	s.route(mux, "POST /predict", s.handlePredict)
	s.route(mux, "GET /model/info", s.handleModelInfo)
	if s.trainer != nil {
		s.route(mux, "POST /model/train", s.handleTrain)
	}
	mux.HandleFunc("/", s.handleNotFound)

	s.httpServer = &http.Server{
		Handler:           s.recoverPanics(s.logRequests(cors(mux))),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute, // training runs synchronously
	}

	return s, nil
}

func (s *Server) route(mux *http.ServeMux, pattern string, handler http.HandlerFunc) {
	mux.HandleFunc(pattern, handler)
	s.endpoints = append(s.endpoints, pattern)
}

// Handler returns the root handler, including middleware.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening and serves in the background.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.address, err)
	}
	s.listener = listener

	s.logger.Info("Prediction server started",
		"address", listener.Addr().String(),
		"endpoints", s.endpoints)

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listen address once Start has succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.address
	}
	return s.listener.Addr().String()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down prediction server")
	return s.httpServer.Shutdown(ctx)
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			h.Set("Access-Control-Allow-Methods", "GET,HEAD,PUT,PATCH,POST,DELETE")
			if headers := r.Header.Get("Access-Control-Request-Headers"); headers != "" {
				h.Set("Access-Control-Allow-Headers", headers)
				h.Add("Vary", "Access-Control-Request-Headers")
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}

func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				s.logger.Error("Unhandled error", "panic", v, "path", r.URL.Path)
				s.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
