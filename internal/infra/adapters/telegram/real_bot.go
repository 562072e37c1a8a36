package telegram

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-video-courier/internal/application"
	"telegram-video-courier/internal/config"
	"telegram-video-courier/internal/domain/model"
	"telegram-video-courier/internal/domain/ports/adapter"
	"telegram-video-courier/internal/infra/metrics"
)

// tgbotapi carries no per-request context, so the outbound timeout
// discipline lives in the HTTP clients: a short deadline for control
// calls (messages, edits, long-poll) and a generous one for calls that
// move media bytes. The long-poll window must stay under the control
// deadline or the poll loop would time itself out.
const (
	controlTimeout  = 30 * time.Second
	transferTimeout = 300 * time.Second
	longPollWindow  = 25 // seconds
)

func controlHTTPClient() *http.Client { return &http.Client{Timeout: controlTimeout} }

func transferHTTPClient() *http.Client { return &http.Client{Timeout: transferTimeout} }

// CourierBot implements the Messenger port with tgbotapi and, in polling
// mode, the pull ingestion variant: a long-poll loop fanning updates out
// to a bounded set of handler goroutines. Consumed updates are
// acknowledged through the poll offset so they are not redelivered.
type CourierBot struct {
	bot      *tgbotapi.BotAPI // control calls, short deadline
	transfer *tgbotapi.BotAPI // uploads and by-reference sends, long deadline
	cfg      *config.BotConfig
	facade   *application.Facade
	log      *zerolog.Logger

	updateWorkers int
	cancelPolling context.CancelFunc
}

var _ adapter.Messenger = (*CourierBot)(nil)

func NewCourierBot(cfg *config.BotConfig, logger *zerolog.Logger) (*CourierBot, error) {
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}
	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, tgbotapi.APIEndpoint, controlHTTPClient())
	if err != nil {
		return nil, err
	}
	// Same identity, different deadline. A stalled media transfer must
	// not hold a pool worker past the transfer ceiling.
	transfer := *bot
	transfer.Client = transferHTTPClient()

	workers := cfg.Workers
	if workers <= 0 {
		workers = 5
	}
	return &CourierBot{
		bot:           bot,
		transfer:      &transfer,
		cfg:           cfg,
		log:           logger,
		updateWorkers: workers,
	}, nil
}

// SetFacade wires the submission target after construction; the facade
// needs the bot as its Messenger, so the two are linked in main.
func (c *CourierBot) SetFacade(f *application.Facade) { c.facade = f }

// ---- Messenger port ----

func (c *CourierBot) SendText(ctx context.Context, chatID int64, text string) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	sent, err := c.bot.Send(msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

func (c *CourierBot) EditMessage(ctx context.Context, chatID int64, messageID int, text string) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	_, err := c.bot.Request(edit)
	return err
}

func (c *CourierBot) SendByReference(ctx context.Context, chatID int64, mediaURL, caption string, kind model.PayloadKind) (adapter.SendResult, error) {
	var msg tgbotapi.Chattable
	switch kind {
	case model.PayloadDocument:
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FileURL(mediaURL))
		doc.Caption = caption
		msg = doc
	default:
		vid := tgbotapi.NewVideo(chatID, tgbotapi.FileURL(mediaURL))
		vid.Caption = caption
		msg = vid
	}
	// The endpoint fetches the URL server-side before answering, so this
	// runs on the transfer deadline even though no bytes leave here.
	sent, err := c.transfer.Send(msg)
	if err != nil {
		// The endpoint answered ok=false (or the response did not parse).
		// That is attempt failure data for the dispatcher, not a fault.
		return adapter.SendResult{OK: false}, err
	}
	return adapter.SendResult{OK: true, MessageID: sent.MessageID}, nil
}

func (c *CourierBot) SendUpload(ctx context.Context, chatID int64, name string, data io.Reader, size int64, caption string, kind model.PayloadKind) (adapter.SendResult, error) {
	file := tgbotapi.FileReader{Name: name, Reader: data}
	var msg tgbotapi.Chattable
	switch kind {
	case model.PayloadDocument:
		doc := tgbotapi.NewDocument(chatID, file)
		doc.Caption = caption
		msg = doc
	default:
		vid := tgbotapi.NewVideo(chatID, file)
		vid.Caption = caption
		msg = vid
	}
	sent, err := c.transfer.Send(msg)
	if err != nil {
		return adapter.SendResult{OK: false}, err
	}
	return adapter.SendResult{OK: true, MessageID: sent.MessageID}, nil
}

// ---- Pull ingestion ----

// StartPolling begins the long-poll loop. It runs until ctx is canceled.
func (c *CourierBot) StartPolling(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = longPollWindow
	updates := c.bot.GetUpdatesChan(u)

	ctx, cancel := context.WithCancel(ctx)
	c.cancelPolling = cancel

	var wg sync.WaitGroup
	updateChan := make(chan tgbotapi.Update, 100)

	for i := 0; i < c.updateWorkers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case up, ok := <-updateChan:
					if !ok {
						return
					}
					c.handleUpdate(ctx, up)
				}
			}
		}(i)
	}

	for {
		select {
		case <-ctx.Done():
			c.bot.StopReceivingUpdates()
			close(updateChan)
			wg.Wait()
			return ctx.Err()
		case up := <-updates:
			select {
			case updateChan <- up:
			case <-ctx.Done():
			}
		}
	}
}

// StopPolling stops the polling loop gracefully.
func (c *CourierBot) StopPolling() {
	if c.cancelPolling != nil {
		c.cancelPolling()
	}
}

// HandleUpdate translates one inbound update and, when it matches,
// submits a retrieval. Shared by the polling loop and the webhook server
// so both ingestion variants behave identically.
func (c *CourierBot) HandleUpdate(ctx context.Context, update tgbotapi.Update, variant string) {
	if update.Message == nil || update.Message.Text == "" {
		return
	}
	chatID := update.Message.Chat.ID
	text := strings.TrimSpace(update.Message.Text)

	switch command(text) {
	case "/start":
		_, _ = c.SendText(ctx, chatID, c.facade.HandleStart(senderName(update)))
		return
	case "/help":
		_, _ = c.SendText(ctx, chatID, c.facade.HandleHelp())
		return
	}

	req, ok := RequestFrom(update)
	if !ok {
		// Non-matching events are dropped, not queued. In chat we nudge
		// toward /help instead of staying silent.
		if variant == "poll" {
			_, _ = c.SendText(ctx, chatID, "Send me a video link, or /help for what I understand.")
		}
		return
	}
	metrics.IncIngest(variant)
	c.facade.SubmitRetrieval(req)
}

// handleUpdate shields a polling worker the same way worker.Pool shields
// its tasks: a panicking update must not take the process down.
func (c *CourierBot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if rec := recover(); rec != nil {
			c.log.Error().Interface("panic", rec).Int("update_id", update.UpdateID).Msg("update handler panic recovered")
		}
	}()
	c.HandleUpdate(ctx, update, "poll")
}

// senderName is nil-safe: channel-authored messages carry no From.
func senderName(update tgbotapi.Update) string {
	if update.Message == nil || update.Message.From == nil {
		return ""
	}
	return update.Message.From.UserName
}

func command(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	cmd := strings.Fields(text)[0]
	// strip the @botname suffix used in groups
	if i := strings.Index(cmd, "@"); i > 0 {
		cmd = cmd[:i]
	}
	return cmd
}

// RequestFrom translates an update into zero or one RetrievalRequest:
// either "/dl <url> [quality]" or a bare message starting with a link.
func RequestFrom(update tgbotapi.Update) (model.RetrievalRequest, bool) {
	if update.Message == nil || update.Message.Text == "" {
		return model.RetrievalRequest{}, false
	}
	fields := strings.Fields(strings.TrimSpace(update.Message.Text))
	if len(fields) == 0 {
		return model.RetrievalRequest{}, false
	}

	var url, quality string
	switch {
	case command(fields[0]) == "/dl" && len(fields) >= 2:
		url = fields[1]
		if len(fields) >= 3 {
			quality = fields[2]
		}
	case strings.HasPrefix(fields[0], "http://"), strings.HasPrefix(fields[0], "https://"):
		url = fields[0]
	default:
		return model.RetrievalRequest{}, false
	}

	return model.NewRetrievalRequest(update.Message.Chat.ID, url, quality), true
}
