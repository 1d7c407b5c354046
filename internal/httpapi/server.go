package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/okhmat/lumen/internal/assets"
	"github.com/okhmat/lumen/internal/chat"
	"github.com/okhmat/lumen/internal/config"
	"github.com/okhmat/lumen/internal/observability"
)

// Responder answers one text request on behalf of a user.
type Responder interface {
	Respond(ctx context.Context, in chat.Incoming) (string, error)
}

type Server struct {
	cfg       config.Config
	responder Responder
	storeMode string
	metrics   *observability.Metrics
	upgrader  websocket.Upgrader
}

func New(cfg config.Config, responder Responder, storeMode string, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:       cfg,
		responder: responder,
		storeMode: storeMode,
		metrics:   metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only allow browser websocket connections from the same origin
				// unless explicitly opened up. Non-browser clients omit Origin
				// and are allowed.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})
	r.Get("/v1/chat/ws", s.handleChatWS)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":             "ok",
		"history_store_mode": s.storeMode,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":             "ready",
		"history_store_mode": s.storeMode,
	})
}

type wsRequest struct {
	UserID int64  `json:"user_id"`
	Text   string `json:"text"`
}

type wsReply struct {
	Reply string `json:"reply,omitempty"`
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

// handleChatWS is a development console: JSON frames in, replies out, through
// the same orchestrator the Telegram surface uses. Media is Telegram-only.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	if s.responder == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "responder not configured")
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx := r.Context()
	conn.SetReadLimit(1 << 20)

	for {
		var req wsRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		if req.UserID == 0 || strings.TrimSpace(req.Text) == "" {
			s.writeFrame(conn, wsReply{Error: "user_id and text are required", Code: "invalid_request"})
			continue
		}

		reply, err := s.responder.Respond(ctx, chat.Incoming{UserID: req.UserID, Text: req.Text})
		if err != nil {
			s.writeFrame(conn, wsReply{Error: chat.UserMessage(err), Code: errorCode(err)})
			continue
		}
		s.writeFrame(conn, wsReply{Reply: reply})
	}
}

func (s *Server) writeFrame(conn *websocket.Conn, frame wsReply) {
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	_ = conn.WriteJSON(frame)
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, chat.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, chat.ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, assets.ErrTooLarge):
		return "media_too_large"
	case errors.Is(err, assets.ErrProcessing):
		return "media_processing"
	default:
		return "internal"
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
