package usecase

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"telegram-video-courier/internal/domain"
	"telegram-video-courier/internal/domain/model"
	"telegram-video-courier/internal/domain/ports/adapter"
)

// LocalArtifact is a fetched media file ready for upload. Data must be
// rewindable: the document fallback re-sends the identical bytes from the
// start of the stream.
type LocalArtifact struct {
	Name string
	Size int64
	Data io.ReadSeeker
}

// DeliveryDispatcher walks the ordered delivery chain: remote-reference
// hand-off, then upload-as-video, then upload-as-document. Each attempt's
// failure falls through to the next rather than aborting the run.
type DeliveryDispatcher struct {
	messenger adapter.Messenger
	log       *zerolog.Logger
}

func NewDeliveryDispatcher(messenger adapter.Messenger, logger *zerolog.Logger) *DeliveryDispatcher {
	return &DeliveryDispatcher{messenger: messenger, log: logger}
}

// Deliver runs the chain for one destination chat.
//
// With art == nil only the remote-reference attempt is possible; if it
// does not succeed, ErrNeedLocalArtifact is returned so the caller can
// fetch and call again. With an artifact present the reference attempt is
// skipped (the bytes already exist locally) and the upload chain runs.
func (d *DeliveryDispatcher) Deliver(ctx context.Context, chatID int64, desc *model.MediaDescriptor, art *LocalArtifact, caption string) (model.DeliveryOutcome, error) {
	if art == nil {
		if desc.DirectMediaURL == "" {
			return model.DeliveryOutcome{}, domain.ErrNeedLocalArtifact
		}
		res, err := d.messenger.SendByReference(ctx, chatID, desc.DirectMediaURL, caption, referenceKind(desc))
		if err != nil || !res.OK {
			// Any non-ok answer, response parse failure included, is
			// attempt failure, not a fault.
			d.log.Debug().Err(err).Msg("remote-reference delivery refused, need local artifact")
			return model.DeliveryOutcome{}, domain.ErrNeedLocalArtifact
		}
		return model.DeliveryOutcome{OK: true, Method: model.MethodRemoteReference, RemoteMessageID: res.MessageID}, nil
	}

	res, vidErr := d.sendUpload(ctx, chatID, art, caption, model.PayloadVideo)
	if vidErr == nil && res.OK {
		return model.DeliveryOutcome{OK: true, Method: model.MethodUploadVideo, RemoteMessageID: res.MessageID}, nil
	}
	d.log.Debug().Err(vidErr).Msg("video upload refused, retrying as document")

	res, docErr := d.sendUpload(ctx, chatID, art, caption, model.PayloadDocument)
	if docErr == nil && res.OK {
		return model.DeliveryOutcome{OK: true, Method: model.MethodUploadDocument, RemoteMessageID: res.MessageID}, nil
	}

	return model.DeliveryOutcome{}, &domain.DeliveryError{
		Err: fmt.Errorf("video upload: %v; document upload: %v", vidErr, docErr),
	}
}

// sendUpload rewinds the artifact and transfers it once. Rewinding before
// every attempt guarantees the payload is byte-identical across retries.
func (d *DeliveryDispatcher) sendUpload(ctx context.Context, chatID int64, art *LocalArtifact, caption string, kind model.PayloadKind) (adapter.SendResult, error) {
	if _, err := art.Data.Seek(0, io.SeekStart); err != nil {
		return adapter.SendResult{}, fmt.Errorf("rewind artifact: %w", err)
	}
	return d.messenger.SendUpload(ctx, chatID, art.Name, art.Data, art.Size, caption, kind)
}

func referenceKind(desc *model.MediaDescriptor) model.PayloadKind {
	if strings.EqualFold(desc.Container, "mp4") || desc.Container == "" {
		return model.PayloadVideo
	}
	return model.PayloadDocument
}
