package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MikeSquared-Agency/ava/internal/conversation"
	"github.com/MikeSquared-Agency/ava/internal/facility"
	"github.com/MikeSquared-Agency/ava/internal/session"
)

// Conversations starts conversations and relays turns.
type Conversations interface {
	StartConversation(ctx context.Context, p conversation.Profile) (string, error)
	SendTurn(ctx context.Context, threadID, text string) (string, error)
}

// Sessions binds clients to threads.
type Sessions interface {
	Bind(ctx context.Context, client session.ClientID) (string, error)
	Replace(client session.ClientID, threadID string)
	Reset(client session.ClientID)
	Len() int
}

// Facilities searches for care facilities.
type Facilities interface {
	Search(ctx context.Context, location string, f facility.Filters) ([]facility.Record, error)
}

type Server struct {
	router        *chi.Mux
	port          int
	http          *http.Server
	conversations Conversations
	sessions      Sessions
	facilities    Facilities
	logger        *slog.Logger
}

func NewServer(port int, conv Conversations, sessions Sessions, facilities Facilities, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors)

	s := &Server{
		router:        router,
		port:          port,
		conversations: conv,
		sessions:      sessions,
		facilities:    facilities,
		logger:        logger,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/ava/status", s.status)

	router.Post("/start-chat", s.startChat)
	router.Post("/ask", s.ask)
	router.Delete("/session", s.resetSession)
	router.Get("/facilities", s.searchFacilities)

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called. It returns nil after a clean shutdown,
// including when Shutdown ran before Start.
func (s *Server) Start() error {
	s.logger.Info("API server starting", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"agent":    "ava",
		"status":   "ok",
		"sessions": s.sessions.Len(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// cors leaves the API open to any browser origin.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+sessionHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
