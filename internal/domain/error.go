package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidationRejected means the source string is not a recognized video
	// URL. This is user guidance, not a fault.
	ErrValidationRejected = errors.New("source url not recognized")

	// ErrNeedLocalArtifact signals that remote-reference delivery did not
	// succeed and the dispatcher needs the bytes on disk to continue.
	ErrNeedLocalArtifact = errors.New("local artifact required for delivery")
)

// ResolutionKind classifies metadata resolution failures.
type ResolutionKind string

const (
	ResolutionTransient    ResolutionKind = "transient"
	ResolutionPermanent    ResolutionKind = "permanent"
	ResolutionNoMediaFound ResolutionKind = "no_media_found"
)

type ResolutionError struct {
	Kind ResolutionKind
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolution failed (%s): %v", e.Kind, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// FetchKind classifies artifact transfer failures.
type FetchKind string

const (
	FetchUnreachable FetchKind = "unreachable"
	FetchTruncated   FetchKind = "truncated"
)

type FetchError struct {
	Kind FetchKind
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failed (%s): %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// PolicyError carries the user-visible reason a resolved artifact was
// refused. It is never retried.
type PolicyError struct {
	Reason string
}

func (e *PolicyError) Error() string { return "policy rejected: " + e.Reason }

// DeliveryError is terminal: every delivery attempt in the fallback chain
// has been exhausted.
type DeliveryError struct {
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery failed (all attempts): %v", e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
