// Package httpapi serves the host's functions, status variables and tables
// over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lefred/mysql-component-viruscan/internal/access"
	"github.com/lefred/mysql-component-viruscan/internal/host"
	"github.com/lefred/mysql-component-viruscan/internal/matchtable"
	"github.com/lefred/mysql-component-viruscan/internal/status"
	"github.com/lefred/mysql-component-viruscan/internal/viruscan"
)

type Dependencies struct {
	Logger          *slog.Logger
	Addr            string
	Host            *host.Local
	Guard           *access.Guard
	MaxBodyBytes    int64
	TrustUserHeader bool
}

type Server struct {
	httpServer   *http.Server
	logger       *slog.Logger
	host         *host.Local
	guard        *access.Guard
	maxBodyBytes int64
}

// FunctionRequest is the body of POST /v1/functions/{name} and, optionally,
// POST /v1/reload. A null element is passed as SQL NULL.
type FunctionRequest struct {
	Args []*string `json:"args"`
}

type FunctionResponse struct {
	Result string `json:"result"`
}

type TableResponse struct {
	Table      string   `json:"table"`
	Definition string   `json:"definition"`
	RowCount   int      `json:"row_count"`
	Columns    []string `json:"columns"`
	Rows       [][]any  `json:"rows"`
}

type StatusResponse struct {
	Variables []status.Variable `json:"variables"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func NewServer(d Dependencies) *Server {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.MaxBodyBytes <= 0 {
		d.MaxBodyBytes = 64 << 20
	}
	s := &Server{
		logger:       d.Logger,
		host:         d.Host,
		guard:        d.Guard,
		maxBodyBytes: d.MaxBodyBytes,
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(accessLog(d.Logger))
	r.Use(middleware.Recoverer)
	r.Get("/health", s.handleHealth)
	r.Group(func(r chi.Router) {
		r.Use(identity(d.TrustUserHeader))
		r.Post("/v1/scan", s.handleScan)
		r.Post("/v1/reload", s.handleReload)
		r.Post("/v1/functions/{name}", s.handleFunction)
		r.Get("/v1/tables/{name}", s.handleTable)
		r.Get("/v1/status", s.handleStatus)
	})

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "too_large", "scan payload exceeds the configured limit")
			return
		}
		writeError(w, http.StatusBadRequest, "bad_body", "could not read request body")
		return
	}
	s.call(w, r, viruscan.FuncVirusScan, [][]byte{body})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	args, ok := s.decodeArgs(w, r)
	if !ok {
		return
	}
	s.call(w, r, viruscan.FuncVirusReloadEngine, args)
}

func (s *Server) handleFunction(w http.ResponseWriter, r *http.Request) {
	args, ok := s.decodeArgs(w, r)
	if !ok {
		return
	}
	s.call(w, r, chi.URLParam(r, "name"), args)
}

// decodeArgs reads an optional FunctionRequest; an empty body means no arguments.
func (s *Server) decodeArgs(w http.ResponseWriter, r *http.Request) ([][]byte, bool) {
	var req FunctionRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return nil, false
	}
	args := make([][]byte, len(req.Args))
	for i, a := range req.Args {
		if a != nil {
			args[i] = []byte(*a)
		}
	}
	return args, true
}

func (s *Server) call(w http.ResponseWriter, r *http.Request, name string, args [][]byte) {
	out, err := s.host.Call(r.Context(), CallerFrom(r.Context()), name, args)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, FunctionResponse{Result: out})
	case errors.Is(err, access.ErrDenied):
		writeError(w, http.StatusForbidden, "access_denied", err.Error())
	case errors.Is(err, host.ErrNotFound):
		writeError(w, http.StatusNotFound, "unknown_function", err.Error())
	case errors.Is(err, viruscan.ErrArgCount):
		writeError(w, http.StatusBadRequest, "bad_arguments", err.Error())
	default:
		s.logger.Error("function failed", "function", name, "error", err, "request_id", requestIDFrom(r.Context()))
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

// handleTable requires VIRUS_SCAN: match records name the users who scanned.
func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	if _, err := s.guard.Authorize(r.Context(), CallerFrom(r.Context()), access.PrivilegeVirusScan); err != nil {
		writeError(w, http.StatusForbidden, "access_denied", err.Error())
		return
	}
	share, err := s.host.Table(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown_table", err.Error())
		return
	}
	rows, err := share.Rows()
	if err != nil {
		s.logger.Error("table scan failed", "table", share.Name(), "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "table scan failed")
		return
	}
	resp := TableResponse{
		Table:      share.Name(),
		Definition: share.Definition(),
		RowCount:   share.RowCount(),
		Columns:    make([]string, len(matchtable.Columns)),
		Rows:       make([][]any, 0, len(rows)),
	}
	for i, c := range matchtable.Columns {
		resp.Columns[i] = c.Name
	}
	for _, row := range rows {
		out := make([]any, len(row))
		for i, v := range row {
			out[i] = v.Any()
		}
		resp.Rows = append(resp.Rows, out)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Variables: s.host.Status()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: code, Message: msg})
}
