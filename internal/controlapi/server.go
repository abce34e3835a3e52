// Copyright 2025 James Ross
package controlapi

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/videoforge/engine/internal/broker"
	"github.com/videoforge/engine/internal/config"
	"github.com/videoforge/engine/internal/store"
)

// ReadyChecker reports whether the engine's dependencies (store, broker)
// are reachable. cmd/engine passes a function that pings both the
// database and Redis.
type ReadyChecker interface {
	Ready(ctx context.Context) error
}

type Server struct {
	cfg     *config.Config
	handler *Handler
	log     *zap.Logger
	ready   ReadyChecker
	srv     *http.Server
}

func NewServer(cfg *config.Config, jobs *store.JobRepository, execs *store.ExecutionRepository, br *broker.Broker, ready ReadyChecker, log *zap.Logger) *Server {
	return &Server{
		cfg:     cfg,
		handler: NewHandler(cfg, jobs, execs, br, log),
		log:     log,
		ready:   ready,
	}
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := s.ready.Ready(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "not ready", "reason": err.Error()})
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	api := http.NewServeMux()
	api.HandleFunc("/api/v1/jobs", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			s.handler.SubmitJob(w, r)
		case http.MethodGet:
			s.handler.ListJobs(w, r)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
		}
	})
	api.HandleFunc("/api/v1/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
			return
		}
		s.handler.GetJob(w, r)
	})
	api.HandleFunc("/api/v1/executions/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
			return
		}
		s.handler.GetExecution(w, r)
	})

	var apiHandler http.Handler = api
	apiHandler = AuthMiddleware(s.cfg.Auth.JWTSecret, s.log)(apiHandler)
	apiHandler = CORSMiddleware(s.cfg.Auth.CORSOrigins)(apiHandler)
	apiHandler = RecoveryMiddleware(s.log)(apiHandler)
	apiHandler = RequestIDMiddleware()(apiHandler)
	mux.Handle("/api/v1/", apiHandler)

	return mux
}

func (s *Server) Start(addr string) error {
	s.srv = &http.Server{Addr: addr, Handler: s.routes()}
	s.log.Info("control api listening", zap.String("addr", addr))
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
