// Package httpapi is the transport layer: REST and websocket endpoints over
// the orchestrator, plus read-only views of the product and outlet tools.
// It owns serialization concerns entirely; conversation logic lives below.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/Tanz2024/Zuschat-Rag-API-sub001/internal/config"
	"github.com/Tanz2024/Zuschat-Rag-API-sub001/internal/history"
	"github.com/Tanz2024/Zuschat-Rag-API-sub001/internal/observability"
	"github.com/Tanz2024/Zuschat-Rag-API-sub001/internal/orchestrator"
	"github.com/Tanz2024/Zuschat-Rag-API-sub001/internal/protocol"
	"github.com/Tanz2024/Zuschat-Rag-API-sub001/internal/tools"
)

type Server struct {
	cfg         config.Config
	engine      *orchestrator.Engine
	products    *tools.ProductIndex
	outlets     *tools.OutletDirectory
	transcripts history.Store
	upgrader    websocket.Upgrader
}

func New(cfg config.Config, engine *orchestrator.Engine, products *tools.ProductIndex, outlets *tools.OutletDirectory, transcripts history.Store) *Server {
	return &Server{
		cfg:         cfg,
		engine:      engine,
		products:    products,
		outlets:     outlets,
		transcripts: transcripts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Browser connections must come from the same origin unless
				// explicitly opened up; non-browser clients omit Origin.
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

	r.Post("/v1/chat", s.handleChat)
	r.Post("/v1/chat/session/{id}/clear", s.handleClearSession)
	r.Get("/v1/chat/session/{id}/transcript", s.handleTranscript)
	r.Get("/v1/chat/ws", s.handleChatWS)

	r.Get("/v1/products", s.handleProducts)
	r.Get("/v1/outlets", s.handleOutlets)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type chatResponse struct {
	SessionID  string  `json:"session_id"`
	ReplyText  string  `json:"reply_text"`
	Intent     string  `json:"intent_label"`
	Confidence float64 `json:"confidence"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		respondError(w, http.StatusBadRequest, "empty_message", "message is required")
		return
	}

	turn, err := s.engine.HandleTurn(r.Context(), req.SessionID, req.Message)
	if err != nil {
		// Only an abandoned (cancelled) turn surfaces here; the client that
		// disconnected will not read this anyway.
		respondError(w, http.StatusRequestTimeout, "turn_abandoned", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, chatResponse{
		SessionID:  turn.SessionID,
		ReplyText:  turn.Reply.Text,
		Intent:     string(turn.Reply.Intent),
		Confidence: turn.Reply.Confidence,
	})
}

func (s *Server) handleClearSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return
	}
	s.engine.ClearSession(id)
	w.WriteHeader(http.StatusNoContent)
}

// handleTranscript returns the most recent persisted turns for a session,
// oldest first. Transcripts are redacted before storage, so this surface
// never exposes raw PII.
func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	if s.transcripts == nil {
		respondError(w, http.StatusServiceUnavailable, "transcripts_disabled", "no transcript store configured")
		return
	}
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 200 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be between 1 and 200")
			return
		}
		limit = n
	}
	records, err := s.transcripts.RecentTranscript(r.Context(), id, limit)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "transcript_read_failed", err.Error())
		return
	}
	if records == nil {
		// Empty sessions serialize as [], not null.
		records = []history.Record{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"session_id": id, "turns": records, "count": len(records)})
}

func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadLimit(64 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

	// One goroutine reads, handles and writes, so websocket writes stay
	// single-threaded and turns on this connection stay ordered.
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			s.writeWS(conn, protocol.ErrorEvent{
				Type:   protocol.TypeErrorEvent,
				Code:   "invalid_client_message",
				Detail: err.Error(),
			})
			continue
		}

		switch msg := parsed.(type) {
		case protocol.UserMessage:
			turn, err := s.engine.HandleTurn(ctx, msg.SessionID, msg.Text)
			if err != nil {
				return
			}
			s.writeWS(conn, protocol.AssistantReply{
				Type:       protocol.TypeAssistantReply,
				SessionID:  turn.SessionID,
				Text:       turn.Reply.Text,
				Intent:     string(turn.Reply.Intent),
				Confidence: turn.Reply.Confidence,
			})
		case protocol.ClearSession:
			s.engine.ClearSession(msg.SessionID)
			s.writeWS(conn, protocol.SystemEvent{
				Type:      protocol.TypeSystemEvent,
				SessionID: msg.SessionID,
				Code:      "session_cleared",
			})
		}
	}
}

func (s *Server) writeWS(conn *websocket.Conn, msg any) {
	_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	_ = conn.WriteJSON(msg)
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		respondError(w, http.StatusBadRequest, "missing_query", "query parameter query is required")
		return
	}
	results, err := s.products.Search(r.Context(), query)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "search_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"products": results, "count": len(results)})
}

func (s *Server) handleOutlets(w http.ResponseWriter, r *http.Request) {
	filters := tools.OutletFilters{
		City:    strings.TrimSpace(r.URL.Query().Get("city")),
		Service: strings.TrimSpace(r.URL.Query().Get("service")),
	}
	results, err := s.outlets.Search(r.Context(), filters)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "search_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"outlets": results, "count": len(results)})
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(out)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
