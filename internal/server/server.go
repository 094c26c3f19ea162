// Package server exposes the chat turn, history, events and operator push over HTTP.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"mindcare/internal/analytics"
	"mindcare/internal/chat"
	"mindcare/internal/history"
	"mindcare/internal/notify"
	"mindcare/internal/storage"
	"mindcare/internal/store"
)

const (
	DefaultPushTitle = "🧠 MindCare Check-in"
	DefaultPushBody  = "Bro how you feeling today? 💙"
)

// Turner is satisfied by *chat.Handler.
type Turner interface {
	Turn(ctx context.Context, req chat.TurnRequest) (chat.TurnResponse, error)
}

type Deps struct {
	Chat        Turner
	Store       store.Store
	Pusher      notify.Pusher
	Recorder    storage.Recorder
	AdminToken  string
	PushTimeout time.Duration
}

type Server struct {
	deps      Deps
	server    *http.Server
	port      string
	startTime time.Time
}

func New(deps Deps, port string) *Server {
	if deps.Recorder == nil {
		deps.Recorder = storage.Nop{}
	}
	return &Server{deps: deps, port: port, startTime: time.Now()}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("GET /history/{token}", s.handleHistory)
	mux.HandleFunc("GET /events/{token}", s.handleEvents)
	mux.HandleFunc("POST /push", s.handlePush)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handleRoot)
	return withRequestID(withAccessLog(withCORS(mux)))
}

// Start blocks until the server stops. http.ErrServerClosed is not reported as an error.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         ":" + s.port,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	log.Printf("🌐 MindCare server listening on http://localhost:%s", s.port)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type chatRequest struct {
	Message       string `json:"message"`
	FCMToken      string `json:"fcmToken"`
	IdentityToken string `json:"identityToken"`
	Language      string `json:"language,omitempty"`
}

type chatResponse struct {
	Reply string `json:"reply"`
	Mood  string `json:"mood,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, chatResponse{Reply: chat.ReplyInvalid})
		return
	}

	resp, err := s.deps.Chat.Turn(r.Context(), chat.TurnRequest{
		Message:  req.Message,
		Identity: firstNonEmpty(req.IdentityToken, req.FCMToken),
		Language: req.Language,
	})
	switch {
	case errors.Is(err, chat.ErrInvalidRequest):
		writeJSON(w, http.StatusBadRequest, chatResponse{Reply: resp.Reply})
		return
	case err != nil:
		log.Printf("❌ chat turn failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, chatResponse{Reply: chat.ReplyFallback})
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Reply: resp.Reply, Mood: string(resp.Mood)})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if rec == nil {
		writeJSON(w, http.StatusOK, []history.Entry{})
		return
	}
	writeJSON(w, http.StatusOK, rec.History)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if rec == nil {
		writeJSON(w, http.StatusOK, []store.Event{})
		return
	}
	writeJSON(w, http.StatusOK, rec.Events)
}

// lookup returns a nil record for unknown identities and false after writing an error.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*store.UserRecord, bool) {
	token := strings.TrimSpace(r.PathValue("token"))
	if token == "" {
		http.Error(w, "token is required", http.StatusBadRequest)
		return nil, false
	}
	rec, err := store.Snapshot(r.Context(), s.deps.Store, token)
	if errors.Is(err, store.ErrNotFound) {
		return nil, true
	}
	if err != nil {
		log.Printf("❌ load %s failed: %v", notify.Redact(token), err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return nil, false
	}
	return rec, true
}

type pushRequest struct {
	IdentityToken string `json:"identityToken"`
	FCMToken      string `json:"fcmToken"`
	Title         string `json:"title"`
	Body          string `json:"body"`
}

type pushResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	if s.deps.AdminToken != "" {
		got := r.Header.Get("X-Admin-Token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.deps.AdminToken)) != 1 {
			writeJSON(w, http.StatusUnauthorized, pushResponse{Error: "unauthorized"})
			return
		}
	}

	var req pushRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, pushResponse{Error: "invalid JSON"})
		return
	}
	token := strings.TrimSpace(firstNonEmpty(req.IdentityToken, req.FCMToken))
	if token == "" {
		writeJSON(w, http.StatusBadRequest, pushResponse{Error: "identityToken is required"})
		return
	}

	n := notify.Notification{
		Title: firstNonEmpty(req.Title, DefaultPushTitle),
		Body:  firstNonEmpty(req.Body, DefaultPushBody),
	}
	if err := Push(r.Context(), s.deps.Pusher, s.deps.PushTimeout, token, n); err != nil {
		log.Printf("❌ manual push to %s failed: %v", notify.Redact(token), err)
		writeJSON(w, http.StatusBadGateway, pushResponse{Error: err.Error()})
		return
	}
	log.Printf("🔔 manual push sent to %s", notify.Redact(token))
	writeJSON(w, http.StatusOK, pushResponse{OK: true})
}

// Push sends one operator notification with an optional timeout.
func Push(ctx context.Context, p notify.Pusher, timeout time.Duration, token string, n notify.Notification) error {
	if p == nil {
		return notify.ErrUnsupportedToken
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return p.Push(ctx, token, n)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	day := time.Now().UTC()
	if q := r.URL.Query().Get("date"); q != "" {
		parsed, err := time.Parse("2006-01-02", q)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid date %q, want YYYY-MM-DD", q), http.StatusBadRequest)
			return
		}
		day = parsed
	}
	items, err := s.deps.Recorder.LoadInteractions()
	if err != nil {
		log.Printf("❌ load interactions failed: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, analytics.AnalyzeDailyLogs(items, day))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"service":   "mindcare",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.startTime).Round(time.Second).String(),
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintln(w, "MindCare server running 💙")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("⚠️ failed to write response: %v", err)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
