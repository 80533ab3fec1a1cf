// Package bus carries command envelopes between contexts over local HTTP.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"tracker-guard/agent/internal/command"
	"tracker-guard/agent/internal/logger"
)

const MessagePath = "/v1/message"

type Server struct {
	dispatcher *command.Dispatcher
	signer     *Signer
	router     chi.Router
}

func NewServer(d *command.Dispatcher, s *Signer) *Server {
	srv := &Server{dispatcher: d, signer: s}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(logging)
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "pong"})
	})
	r.Group(func(r chi.Router) {
		r.Use(requireToken(s))
		r.Post(MessagePath, srv.message)
	})
	srv.router = r
	return srv
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) message(w http.ResponseWriter, r *http.Request) {
	var env command.Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid envelope")
		return
	}
	claims := claimsFrom(r.Context())
	if claims == nil || !command.Allowed(claims.Context, env.Action) {
		writeJSONError(w, http.StatusForbidden, "action not allowed for this context")
		return
	}
	env.Sender = claims.Context
	writeJSON(w, http.StatusOK, s.dispatcher.Dispatch(r.Context(), env))
}

// Serve listens on addr until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	if err := s.signer.Check(); err != nil {
		return err
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.ServeListener(ctx, ln)
}

func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	hs := &http.Server{Handler: s.router, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = hs.Shutdown(shutdownCtx)
	}()
	logger.Infof("Message bus listening on %s", ln.Addr())
	if err := hs.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
