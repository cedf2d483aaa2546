// Package httpapi exposes the assistant to the web front end as a small
// JSON API over the per-user orchestrators.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"foodseer/internal/analytics"
	"foodseer/internal/backend"
	"foodseer/internal/chat"
	"foodseer/internal/session"
	"foodseer/internal/storage"
)

type Server struct {
	manager  *chat.Manager
	recorder storage.Recorder
	server   *http.Server
}

func New(addr string, manager *chat.Manager, recorder storage.Recorder) *Server {
	s := &Server{manager: manager, recorder: recorder}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/assistant/message", s.handleMessage)
	mux.HandleFunc("/api/assistant/freeform", s.handleFreeform)
	mux.HandleFunc("/api/assistant/restart", s.handleRestart)
	mux.HandleFunc("/api/assistant/alternate", s.handleAlternate)
	mux.HandleFunc("/api/assistant/order", s.handleOrder)
	mux.HandleFunc("/api/assistant/state", s.handleState)
	mux.HandleFunc("/api/assistant/stats", s.handleStats)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) Start() error {
	log.Printf("assistant API listening on %s", s.server.Addr)
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type messageRequest struct {
	UserID  int64  `json:"userId"`
	Message string `json:"message"`
}

type stateResponse struct {
	Messages        []session.Message `json:"messages"`
	Step            int               `json:"step"`
	IsBusy          bool              `json:"isBusy"`
	RecommendedFood *backend.FoodItem `json:"recommendedFood,omitempty"`
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	s.conversationOp(w, r, func(ctx context.Context, o *chat.Orchestrator, text string) error {
		return o.SendMessage(ctx, text)
	})
}

func (s *Server) handleFreeform(w http.ResponseWriter, r *http.Request) {
	s.conversationOp(w, r, func(ctx context.Context, o *chat.Orchestrator, text string) error {
		return o.SendFreeformQuestion(ctx, text)
	})
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	s.conversationOp(w, r, func(ctx context.Context, o *chat.Orchestrator, _ string) error {
		return o.Restart(ctx)
	})
}

func (s *Server) handleAlternate(w http.ResponseWriter, r *http.Request) {
	s.conversationOp(w, r, func(ctx context.Context, o *chat.Orchestrator, _ string) error {
		return o.RequestAlternateSuggestion(ctx)
	})
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	s.conversationOp(w, r, func(ctx context.Context, o *chat.Orchestrator, _ string) error {
		return o.OrderRecommended(ctx)
	})
}

func (s *Server) conversationOp(w http.ResponseWriter, r *http.Request, op func(context.Context, *chat.Orchestrator, string) error) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.UserID == 0 {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}

	o := s.manager.For(r.Context(), req.UserID)
	if err := op(r.Context(), o, req.Message); err != nil {
		switch {
		case errors.Is(err, chat.ErrBusy):
			http.Error(w, "a request is already in progress", http.StatusConflict)
		case errors.Is(err, chat.ErrNoRecommendation):
			http.Error(w, "no active recommendation", http.StatusBadRequest)
		default:
			log.Printf("conversation operation failed for user %d: %v", req.UserID, err)
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}
	s.writeState(w, o)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, err := strconv.ParseInt(r.URL.Query().Get("userId"), 10, 64)
	if err != nil || userID == 0 {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}
	s.writeState(w, s.manager.For(r.Context(), userID))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.recorder == nil {
		http.Error(w, "interaction log not configured", http.StatusNotFound)
		return
	}

	date := time.Now().UTC()
	if q := r.URL.Query().Get("date"); q != "" {
		parsed, err := time.Parse("2006-01-02", q)
		if err != nil {
			http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		date = parsed
	}

	events, err := s.recorder.LoadInteractions()
	if err != nil {
		log.Printf("failed to load interactions: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, analytics.AnalyzeDailyLogs(events, date))
}

func (s *Server) writeState(w http.ResponseWriter, o *chat.Orchestrator) {
	writeJSON(w, stateResponse{
		Messages:        o.Messages(),
		Step:            o.Step(),
		IsBusy:          o.IsBusy(),
		RecommendedFood: o.RecommendedFood(),
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}
