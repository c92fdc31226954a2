package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/chatlens/chatlens/internal/chat"
	"github.com/chatlens/chatlens/internal/service"
)

// Analyzer is what the server needs from the service layer.
type Analyzer interface {
	AnalyzeStream(ctx context.Context, r io.Reader, formatID, dateOrder, title string) (*service.RunResult, error)
}

type Server struct {
	router *chi.Mux
	port   int
	svc    Analyzer
}

func NewServer(port int, svc Analyzer) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router: router,
		port:   port,
		svc:    svc,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/chatlens/status", s.status)
	router.Post("/api/v1/conversations/analyze", s.analyze)

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	slog.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"service": "chatlens",
		"status":  "ready",
	})
}

type analyzeResponse struct {
	ConversationID string                      `json:"conversation_id,omitempty"`
	Analytics      *chat.ConversationAnalytics `json:"analytics"`
	Diagnostics    []chat.Diagnostic           `json:"diagnostics"`
	Dropped        int                         `json:"dropped"`
}

// analyze handles POST /api/v1/conversations/analyze. The export is the raw
// request body; format and date_order come from query parameters so the body
// can stream straight into the parser.
func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		http.Error(w, `{"error":"format query parameter is required"}`, http.StatusBadRequest)
		return
	}
	dateOrder := r.URL.Query().Get("date_order")
	title := r.URL.Query().Get("title")

	res, err := s.svc.AnalyzeStream(r.Context(), r.Body, format, dateOrder, title)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, chat.ErrUnsupportedFormat) || errors.Is(err, chat.ErrAmbiguousDate) {
			status = http.StatusBadRequest
		}
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	resp := analyzeResponse{
		Analytics:   res.Analytics,
		Diagnostics: res.Diagnostics,
		Dropped:     res.Dropped,
	}
	if res.ConversationID != uuid.Nil {
		resp.ConversationID = res.ConversationID.String()
	}
	json.NewEncoder(w).Encode(resp)
}
