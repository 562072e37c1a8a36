package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// RetrievalRequest is one inbound ask: fetch this URL and deliver it to
// this chat. Immutable, owned by exactly one pipeline run.
type RetrievalRequest struct {
	ChatID    int64
	SourceURL string
	Quality   string // optional extractor format selector, "" = default
	RunID     string
	TraceID   string
}

// MediaDescriptor is the resolved metadata for a source URL. Byte size may
// be unknown before fetch; extraction services do not always report it.
type MediaDescriptor struct {
	Title           string
	DurationSeconds int64
	ByteSize        *int64
	DirectMediaURL  string
	Container       string // e.g. "mp4", "webm"
}

// SizeKnown reports whether the descriptor carries an advance byte size.
func (d *MediaDescriptor) SizeKnown() bool { return d.ByteSize != nil }

// Limits are the process-wide policy ceilings, immutable after startup.
type Limits struct {
	MaxDuration time.Duration
	MaxBytes    int64
}

// PolicyVerdict is the deterministic outcome of gating a descriptor
// against the configured ceilings.
type PolicyVerdict struct {
	Allowed bool
	Reason  string
}

// PayloadKind tags an outbound transfer for the destination endpoint.
type PayloadKind string

const (
	PayloadVideo    PayloadKind = "video"
	PayloadDocument PayloadKind = "document"
)

// DeliveryMethod records which attempt of the fallback chain succeeded.
type DeliveryMethod string

const (
	MethodRemoteReference DeliveryMethod = "remote_reference"
	MethodUploadVideo     DeliveryMethod = "upload_video"
	MethodUploadDocument  DeliveryMethod = "upload_document"
)

// DeliveryOutcome is the terminal value of a run.
type DeliveryOutcome struct {
	OK              bool
	Method          DeliveryMethod
	RemoteMessageID int
}

// RunRecord is the persisted trace of one finished run. Optional: records
// are written only when a database is configured.
type RunRecord struct {
	ID         string
	ChatID     int64
	SourceURL  string
	Outcome    string // delivered | rejected | failed
	Method     string
	Bytes      int64
	ErrorKind  string
	StartedAt  time.Time
	FinishedAt time.Time
}

// NewRunID returns a lexicographically sortable run identifier.
func NewRunID() string {
	return ulid.Make().String()
}

// NewRetrievalRequest stamps a fresh request with run and trace ids.
func NewRetrievalRequest(chatID int64, sourceURL, quality string) RetrievalRequest {
	return RetrievalRequest{
		ChatID:    chatID,
		SourceURL: sourceURL,
		Quality:   quality,
		RunID:     NewRunID(),
		TraceID:   uuid.NewString(),
	}
}
