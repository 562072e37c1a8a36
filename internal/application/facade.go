// Package application composes the pipeline behind the single submission
// contract both ingestion variants share. The pipeline has no awareness
// of which ingestion mode produced a given request.
package application

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"telegram-video-courier/internal/domain/model"
	"telegram-video-courier/internal/domain/ports/adapter"
	red "telegram-video-courier/internal/infra/redis"
	"telegram-video-courier/internal/infra/worker"
	"telegram-video-courier/internal/usecase"
)

const (
	rateLimitPerMinute = 6
	rateLimitWindow    = time.Minute
)

// Facade accepts translated retrieval requests and runs them on the
// worker pool, fire-and-forget. Outcomes reach the requester through the
// destination endpoint, never through the submission call.
type Facade struct {
	pipeline  *usecase.RetrievalUseCase
	pool      *worker.Pool
	messenger adapter.Messenger
	limiter   *red.RateLimiter // optional
	log       *zerolog.Logger
}

func NewFacade(pipeline *usecase.RetrievalUseCase, pool *worker.Pool, messenger adapter.Messenger, limiter *red.RateLimiter, logger *zerolog.Logger) *Facade {
	return &Facade{
		pipeline:  pipeline,
		pool:      pool,
		messenger: messenger,
		limiter:   limiter,
		log:       logger,
	}
}

// SubmitRetrieval admits one request into the pipeline. Both ingestion
// variants call this and nothing else.
func (f *Facade) SubmitRetrieval(req model.RetrievalRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if f.limiter != nil {
		allowed, err := f.limiter.Allow(ctx, red.ChatRequestKey(req.ChatID), rateLimitPerMinute, rateLimitWindow)
		if err != nil {
			f.log.Warn().Err(err).Msg("rate limiter unavailable, admitting request")
		} else if !allowed {
			_, _ = f.messenger.SendText(ctx, req.ChatID, "Easy there, too many requests. Try again in a minute.")
			return
		}
	}

	task := func(ctx context.Context) error {
		_, err := f.pipeline.Execute(ctx, req)
		return err
	}
	if err := f.pool.Submit(task); err != nil {
		f.log.Warn().Err(err).Int64("chat_id", req.ChatID).Msg("pipeline saturated, request dropped")
		_, _ = f.messenger.SendText(ctx, req.ChatID, "I'm at capacity right now. Please try again shortly.")
	}
}

// HandleStart returns the /start greeting.
func (f *Facade) HandleStart(username string) string {
	if username == "" {
		username = "there"
	}
	return "Hi " + username + "! Send me a YouTube link and I'll fetch the video for you.\nUse /help for details."
}

// HandleHelp returns the /help text.
func (f *Facade) HandleHelp() string {
	return "Send a YouTube link (watch page, youtu.be, shorts or live) and I'll deliver the video here.\n" +
		"You can also use /dl <url> [quality].\n" +
		"Long or oversized videos are rejected up front."
}
