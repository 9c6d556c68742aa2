package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"iter"
	stdlog "log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	uuid "github.com/satori/go.uuid"
	"github.com/sirupsen/logrus"

	"github.com/xperimental/git-seek/internal/config"
	"github.com/xperimental/git-seek/internal/engine"
	"github.com/xperimental/git-seek/internal/preset"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const requestIDHeader = "X-Request-Id"

type contextKey int

const requestLogKey contextKey = iota

// Querier runs graph queries against a repository.
type Querier interface {
	Query(query string, variables map[string]engine.FieldValue) (iter.Seq[engine.Row], error)
}

type Server struct {
	log       config.Logger
	cfg       config.Server
	querier   Querier
	presets   *preset.Registry
	sdl       string
	server    *http.Server
	templates *template.Template
	metrics   *metrics
	started   time.Time

	// queryLock serializes query execution against the repository handle.
	queryLock sync.Mutex
}

func New(log config.Logger, cfg config.Server, querier Querier, presets *preset.Registry, sdl string) (*Server, error) {
	if cfg.ListenAddress == "" {
		return nil, errors.New("listenAddress can not be empty")
	}

	if cfg.ShutdownTimeout == 0 {
		return nil, errors.New("shutdownTimeout can not be zero")
	}

	tpl, err := loadTemplates()
	if err != nil {
		return nil, err
	}

	srv := &Server{
		log:     log,
		cfg:     cfg,
		querier: querier,
		presets: presets,
		sdl:     sdl,
		server: &http.Server{
			ErrorLog:          stdlog.New(log.WriterLevel(logrus.ErrorLevel), "", 0),
			ReadHeaderTimeout: 10 * time.Second,
		},
		templates: tpl,
		metrics:   newMetrics(),
		started:   time.Now(),
	}
	srv.server.Handler = srv.router()

	return srv, nil
}

func (s *Server) router() http.Handler {
	r := mux.NewRouter()
	r.Use(s.requestMiddleware)
	r.Handle("/api/query", s.queryHandler()).Methods(http.MethodPost)
	r.Handle("/api/presets", s.presetsHandler()).Methods(http.MethodGet)
	r.Handle("/api/presets/{name}", s.presetHandler()).Methods(http.MethodPost)
	r.Handle("/api/schema", s.schemaHandler()).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))
	r.Handle("/", s.indexHandler()).Methods(http.MethodGet)
	return r
}

func (s *Server) Start(ctx context.Context, wg *sync.WaitGroup) error {
	l, err := net.Listen("tcp", s.cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("error creating listener: %w", err)
	}

	s.serve(ctx, wg, l)
	return nil
}

// serve runs the server on l until ctx is done or serving fails.
func (s *Server) serve(ctx context.Context, wg *sync.WaitGroup, l net.Listener) {
	ctx, cancel := context.WithCancel(ctx)

	wg.Add(1)
	go func() {
		defer wg.Done()

		s.log.Infof("Listening on %s ...", l.Addr())
		err := s.server.Serve(l)
		if err != http.ErrServerClosed {
			s.log.Errorf("Error in HTTP server: %s", err)
			cancel()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()

		<-ctx.Done()

		s.log.Debug("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		if err := s.server.Shutdown(ctx); err != nil {
			s.log.Errorf("Error shutting down server: %s", err)
		}
	}()
}

func (s *Server) requestMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewV4().String()
		log := s.log.WithFields(logrus.Fields{
			"request": id,
			"path":    r.URL.Path,
		})

		w.Header().Set(requestIDHeader, id)
		log.Debugf("%s %s", r.Method, r.URL.Path)

		ctx := context.WithValue(r.Context(), requestLogKey, log)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requestLog(r *http.Request) logrus.FieldLogger {
	if log, ok := r.Context().Value(requestLogKey).(logrus.FieldLogger); ok {
		return log
	}
	return s.log
}

type queryRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

type presetRequest struct {
	Params map[string]string `json:"params"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) queryHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req queryRequest
		decoder := json.NewDecoder(r.Body)
		decoder.UseNumber()
		if err := decoder.Decode(&req); err != nil {
			s.sendError(w, r, http.StatusBadRequest, fmt.Errorf("can not parse request: %w", err))
			return
		}

		if req.Query == "" {
			s.sendError(w, r, http.StatusBadRequest, errors.New("query can not be empty"))
			return
		}

		variables := make(map[string]engine.FieldValue, len(req.Variables))
		for name, raw := range req.Variables {
			value, err := engine.FromInterface(raw)
			if err != nil {
				s.sendError(w, r, http.StatusBadRequest, fmt.Errorf("variable %q: %w", name, err))
				return
			}
			variables[name] = value
		}

		s.runQuery(w, r, "query", req.Query, variables)
	})
}

func (s *Server) presetsHandler() http.Handler {
	type presetInfo struct {
		preset.Preset
		Usage string `json:"usage"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		result := []presetInfo{}
		for _, p := range s.presets.All() {
			result = append(result, presetInfo{
				Preset: p,
				Usage:  p.Usage(),
			})
		}

		s.sendJSON(w, r, http.StatusOK, result)
	})
}

func (s *Server) presetHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := mux.Vars(r)["name"]

		var req presetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			s.sendError(w, r, http.StatusBadRequest, fmt.Errorf("can not parse request: %w", err))
			return
		}

		query, variables, err := s.presets.Resolve(name, req.Params)
		switch {
		case errors.Is(err, preset.ErrUnknown):
			s.sendError(w, r, http.StatusNotFound, err)
			return
		case err != nil:
			s.sendError(w, r, http.StatusBadRequest, err)
			return
		default:
		}

		s.runQuery(w, r, "preset", query, variables)
	})
}

func (s *Server) schemaHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if _, err := w.Write([]byte(s.sdl)); err != nil {
			s.requestLog(r).Errorf("Failed to send schema: %s", err)
		}
	})
}

func (s *Server) runQuery(w http.ResponseWriter, r *http.Request, source, query string, variables map[string]engine.FieldValue) {
	rows, err := s.execute(r.Context(), source, query, variables)
	var queryErr *engine.QueryError
	switch {
	case errors.As(err, &queryErr):
		s.sendError(w, r, http.StatusBadRequest, err)
		return
	case err != nil:
		s.sendError(w, r, http.StatusInternalServerError, err)
		return
	default:
	}

	s.requestLog(r).Debugf("Query returned %d rows.", len(rows))
	s.sendJSON(w, r, http.StatusOK, rows)
}

// execute runs one query to completion. Only one query runs at a time.
func (s *Server) execute(ctx context.Context, source, query string, variables map[string]engine.FieldValue) ([]engine.Row, error) {
	s.queryLock.Lock()
	defer s.queryLock.Unlock()

	start := time.Now()
	defer func() {
		s.metrics.duration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	}()

	rows, err := s.querier.Query(query, variables)
	if err != nil {
		s.metrics.queries.WithLabelValues(source, resultError).Inc()
		return nil, err
	}

	result := []engine.Row{}
	for row := range rows {
		if err := ctx.Err(); err != nil {
			s.metrics.queries.WithLabelValues(source, resultCanceled).Inc()
			return nil, fmt.Errorf("query canceled: %w", err)
		}
		result = append(result, row)
	}

	s.metrics.queries.WithLabelValues(source, resultOK).Inc()
	s.metrics.rows.WithLabelValues(source).Add(float64(len(result)))
	return result, nil
}

func (s *Server) sendJSON(w http.ResponseWriter, r *http.Request, status int, value interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(value); err != nil {
		s.requestLog(r).Errorf("Failed to send response: %s", err)
	}
}

func (s *Server) sendError(w http.ResponseWriter, r *http.Request, status int, err error) {
	s.requestLog(r).Debugf("Request failed: %s", err)
	s.sendJSON(w, r, status, errorResponse{
		Error: err.Error(),
	})
}
