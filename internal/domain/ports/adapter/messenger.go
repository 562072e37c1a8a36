package adapter

import (
	"context"
	"io"

	"telegram-video-courier/internal/domain/model"
)

// SendResult is the destination endpoint's answer to a delivery attempt.
// OK mirrors the endpoint's explicit success flag; a failure here is data
// for the dispatcher, not a pipeline fault.
type SendResult struct {
	OK        bool
	MessageID int
}

// Messenger is the destination messaging endpoint. All operations carry
// their own timeouts and may fail independently.
type Messenger interface {
	// SendText posts a plain message and returns its message id, used as
	// the status message for progress edits.
	SendText(ctx context.Context, chatID int64, text string) (int, error)

	// EditMessage rewrites a previously sent status message.
	EditMessage(ctx context.Context, chatID int64, messageID int, text string) error

	// SendByReference hands the endpoint a remote URL to fetch itself.
	SendByReference(ctx context.Context, chatID int64, mediaURL, caption string, kind model.PayloadKind) (SendResult, error)

	// SendUpload transfers locally held bytes tagged as the given kind.
	SendUpload(ctx context.Context, chatID int64, name string, data io.Reader, size int64, caption string, kind model.PayloadKind) (SendResult, error)
}
