// Package api exposes the process's inbound HTTP surface: the Telegram
// webhook (push ingestion), a direct retrieval endpoint, health and
// metrics. Push and poll ingestion feed the same facade; the pipeline
// cannot tell them apart.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"telegram-video-courier/internal/domain/model"
	"telegram-video-courier/internal/infra/metrics"
)

const secretHeader = "X-Telegram-Bot-Api-Secret-Token"

// UpdateHandler consumes one decoded Telegram update. The variant tag
// records which ingestion mode produced it.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update tgbotapi.Update, variant string)
}

// Submitter admits a translated retrieval request into the pipeline.
type Submitter interface {
	SubmitRetrieval(req model.RetrievalRequest)
}

type Server struct {
	bot    UpdateHandler
	facade Submitter
	path   string
	secret string
	log    *zerolog.Logger
}

func NewServer(bot UpdateHandler, facade Submitter, webhookPath, webhookSecret string, logger *zerolog.Logger) *Server {
	if webhookPath == "" {
		webhookPath = "/webhook/telegram"
	}
	return &Server{
		bot:    bot,
		facade: facade,
		path:   webhookPath,
		secret: webhookSecret,
		log:    logger,
	}
}

// Router builds the chi router with the shared middleware chain.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(TraceID(), RequestLog(s.log), Recover(s.log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post(s.path, s.handleWebhook)
	r.Post("/api/retrieve", s.handleRetrieve)
	return r
}

// handleWebhook is the push ingestion variant: one serialized update per
// request, admitted only when the shared secret header matches.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if s.secret != "" && r.Header.Get(secretHeader) != s.secret {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "bad update payload", http.StatusBadRequest)
		return
	}

	// Acknowledge immediately; the run outcome reaches the requester
	// through the chat, not through this response.
	s.bot.HandleUpdate(r.Context(), update, "webhook")
	w.WriteHeader(http.StatusOK)
}

type retrieveRequest struct {
	ChatID  int64  `json:"chat_id"`
	URL     string `json:"url"`
	Quality string `json:"quality,omitempty"`
}

// handleRetrieve accepts a direct JSON ask, mirroring the webhook
// translation contract for callers that are not Telegram.
func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var body retrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}
	if body.ChatID == 0 || body.URL == "" {
		http.Error(w, "chat_id and url are required", http.StatusBadRequest)
		return
	}

	req := model.NewRetrievalRequest(body.ChatID, body.URL, body.Quality)
	metrics.IncIngest("http")
	s.facade.SubmitRetrieval(req)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"run_id": req.RunID, "status": "accepted"})
}

// NewHTTPServer wraps the router in a server with sane timeouts. Write
// timeout stays generous: webhook handling itself is quick, but slow
// clients on /metrics should not be cut off aggressively.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}
