package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/gorustyt/solonav/bake"
	"github.com/gorustyt/solonav/config"
	"github.com/gorustyt/solonav/navsys"
)

const (
	maxBodyBytes    = 64 << 20
	shutdownTimeout = 5 * time.Second
)

// Server exposes a NavSystem over HTTP/JSON.
type Server struct {
	ns     *navsys.NavSystem
	baker  *bake.Baker
	cfg    config.ServerConfig
	log    *zap.Logger
	router *mux.Router
}

// New builds the router. baker may be nil, in which case /api/bake is not
// served.
func New(ns *navsys.NavSystem, baker *bake.Baker, cfg config.ServerConfig, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{ns: ns, baker: baker, cfg: cfg, log: log.Named("http"), router: mux.NewRouter()}

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.health).Methods("GET")
	api.HandleFunc("/info", s.info).Methods("GET")
	api.HandleFunc("/path", s.findPath).Methods("POST")
	api.HandleFunc("/nearest", s.nearest).Methods("POST")
	api.HandleFunc("/raycast", s.raycast).Methods("POST")
	api.HandleFunc("/reload", s.reload).Methods("POST")
	api.HandleFunc("/unload", s.unload).Methods("POST")
	api.HandleFunc("/debug/edges", s.debugEdges).Methods("GET")
	if baker != nil {
		api.HandleFunc("/bake", s.bakeObj).Methods("POST")
	}
	api.Use(s.logRequests)
	return s
}

// Handler returns the router wrapped with CORS handling.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(s.router)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

// statusOf maps nav system errors to HTTP codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, navsys.ErrNotLoaded), errors.Is(err, navsys.ErrNoLastFile):
		return http.StatusServiceUnavailable
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, errForbidden):
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

var (
	errBadRequest = errors.New("bad request")
	errForbidden  = errors.New("forbidden")
)

// meshPath resolves a reload path against the mesh directory and refuses
// anything that lands outside it.
func (s *Server) meshPath(p string) (string, error) {
	if s.cfg.MeshDir == "" {
		return "", fmt.Errorf("%w: reload by path is disabled", errForbidden)
	}
	dir, err := filepath.Abs(s.cfg.MeshDir)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(dir, p)
	}
	rel, err := filepath.Rel(dir, filepath.Clean(p))
	if err != nil || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: %s is outside the mesh directory", errForbidden, p)
	}
	return filepath.Join(dir, rel), nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}
