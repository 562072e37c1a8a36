package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"telegram-video-courier/internal/domain/ports/adapter"
)

// ProgressNotifier edits one status message with throttled, idempotent
// updates. Identical text is never re-sent, and differing text inside the
// minimum interval is dropped, not queued, so no catch-up emission ever
// appears later with stale text. Delivery failures
// are swallowed; progress is best-effort and never load-bearing.
type ProgressNotifier struct {
	messenger adapter.Messenger
	chatID    int64
	messageID int
	interval  time.Duration
	log       *zerolog.Logger

	now func() time.Time // injectable for tests

	mu       sync.Mutex
	lastText string
	lastEmit time.Time
}

func NewProgressNotifier(messenger adapter.Messenger, chatID int64, messageID int, interval time.Duration, logger *zerolog.Logger) *ProgressNotifier {
	if interval <= 0 {
		interval = 800 * time.Millisecond
	}
	return &ProgressNotifier{
		messenger: messenger,
		chatID:    chatID,
		messageID: messageID,
		interval:  interval,
		log:       logger,
		now:       time.Now,
	}
}

// Update sends text to the status message, subject to the throttle rules.
func (n *ProgressNotifier) Update(ctx context.Context, text string) {
	n.mu.Lock()
	if text == n.lastText {
		n.mu.Unlock()
		return
	}
	now := n.now()
	if !n.lastEmit.IsZero() && now.Sub(n.lastEmit) < n.interval {
		n.mu.Unlock()
		return
	}
	n.lastText = text
	n.lastEmit = now
	n.mu.Unlock()

	if err := n.messenger.EditMessage(ctx, n.chatID, n.messageID, text); err != nil {
		n.log.Debug().Err(err).Msg("progress update dropped")
	}
}

// Final bypasses the interval throttle for the single terminal status of a
// run, still suppressing an exact repeat.
func (n *ProgressNotifier) Final(ctx context.Context, text string) {
	n.mu.Lock()
	if text == n.lastText {
		n.mu.Unlock()
		return
	}
	n.lastText = text
	n.lastEmit = n.now()
	n.mu.Unlock()

	if err := n.messenger.EditMessage(ctx, n.chatID, n.messageID, text); err != nil {
		n.log.Debug().Err(err).Msg("final status update dropped")
	}
}

// Drain consumes fetch progress events until the channel closes or ctx is
// done, applying the notifier's own throttle. The sender uses a bounded
// channel with non-blocking sends, so fetch timing is decoupled from
// notification timing.
func (n *ProgressNotifier) Drain(ctx context.Context, events <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case text, ok := <-events:
			if !ok {
				return
			}
			n.Update(ctx, text)
		}
	}
}
