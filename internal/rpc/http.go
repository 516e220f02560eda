package rpc

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/codecoder/codecoder/internal/apperr"
)

// HTTPConfig configures the local HTTP transport.
type HTTPConfig struct {
	Addr       string // default 127.0.0.1:<port>
	APIKey     string // empty disables auth
	EnableCORS bool
}

// HTTPServer exposes a Dispatcher over a single POST /rpc endpoint plus an
// always-anonymous /health.
type HTTPServer struct {
	cfg    HTTPConfig
	disp   *Dispatcher
	router *chi.Mux
	srv    *http.Server
}

// request is the wire shape of one POST /rpc body.
type request struct {
	Namespace string          `json:"namespace"`
	Method    string          `json:"method"`
	Args      json.RawMessage `json:"args,omitempty"`
	ID        any             `json:"id,omitempty"`
}

// response is the wire shape of one POST /rpc reply; exactly one of Result
// or Error is set.
type response struct {
	Result any              `json:"result,omitempty"`
	Error  *apperr.Envelope `json:"error,omitempty"`
	ID     any              `json:"id,omitempty"`
}

// NewHTTPServer builds an HTTP transport over disp.
func NewHTTPServer(cfg HTTPConfig, disp *Dispatcher) *HTTPServer {
	s := &HTTPServer{cfg: cfg, disp: disp, router: chi.NewRouter()}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	if cfg.EnableCORS {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST"},
			AllowedHeaders: []string{"Authorization", "X-API-Key", "Content-Type"},
		}))
	}

	s.router.Get("/health", s.handleHealth)
	s.router.With(s.authenticate).Post("/rpc", s.handleRPC)

	return s
}

// Router exposes the chi router, mainly for tests.
func (s *HTTPServer) Router() *chi.Mux { return s.router }

// ListenAndServe starts the HTTP transport; it blocks until Shutdown.
func (s *HTTPServer) ListenAndServe() error {
	s.srv = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
	}
	return s.srv.ListenAndServe()
}

// Shutdown gracefully stops the HTTP transport, letting in-flight requests
// drain until ctx is cancelled. A no-op if ListenAndServe was never called.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// authenticate enforces the single static API key, if configured, via
// either Authorization: Bearer <key> or X-API-Key: <key>.
func (s *HTTPServer) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.APIKey == "" {
			next.ServeHTTP(w, r)
			return
		}
		supplied := r.Header.Get("X-API-Key")
		if supplied == "" {
			if auth := r.Header.Get("Authorization"); len(auth) > 7 && auth[:7] == "Bearer " {
				supplied = auth[7:]
			}
		}
		if subtle.ConstantTimeCompare([]byte(supplied), []byte(s.cfg.APIKey)) != 1 {
			writeError(w, nil, apperr.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, nil, apperr.ErrInvalidArgument)
		return
	}

	method := req.Method
	if req.Namespace != "" {
		method = req.Namespace + "." + req.Method
	}

	result, err := s.disp.Call(r.Context(), method, req.Args)
	if err != nil {
		writeError(w, req.ID, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response{Result: result, ID: req.ID})
}

func writeError(w http.ResponseWriter, id any, err error) {
	env := apperr.ToEnvelope(err)
	status := statusForCode(env.Code)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response{Error: &env, ID: id})
}

func statusForCode(code string) int {
	switch code {
	case "unauthorized":
		return http.StatusUnauthorized
	case "not_found":
		return http.StatusNotFound
	case "invalid_argument":
		return http.StatusBadRequest
	case "already_decided", "terminal_state", "permission_rejected", "credential_conflict":
		return http.StatusConflict
	case "vault_locked":
		return http.StatusLocked
	case "deadline_exceeded":
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
