//go:build !integration

package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"telegram-video-courier/internal/config"
	"telegram-video-courier/internal/domain"
	"telegram-video-courier/internal/domain/model"
	"telegram-video-courier/internal/domain/ports/adapter"
)

const testSourceURL = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"

type retrievalDeps struct {
	extractor *memExtractor
	messenger *memMessenger
	runs      *memRunRepo
	uc        *RetrievalUseCase
}

func newRetrievalDeps(t *testing.T) *retrievalDeps {
	t.Helper()
	cfg := &config.Config{}
	cfg.Limits.MaxDuration = 15 * time.Minute
	cfg.Limits.MaxBytes = 50 << 20
	cfg.Limits.ProgressInterval = time.Millisecond
	cfg.Extractor.Quality = "b"
	cfg.Extractor.Retries = 1
	cfg.Extractor.SocketTimeout = 5

	deps := &retrievalDeps{
		extractor: &memExtractor{},
		messenger: newMemMessenger(),
		runs:      &memRunRepo{},
	}
	deps.uc = NewRetrievalUseCase(deps.extractor, nil, deps.messenger, deps.runs, cfg, newTestLogger())
	deps.uc.workspaceRoot = t.TempDir()
	return deps
}

func testRequest() model.RetrievalRequest {
	return model.NewRetrievalRequest(42, testSourceURL, "")
}

func resolvedDescriptor() *model.MediaDescriptor {
	return &model.MediaDescriptor{
		Title:           "some clip",
		DurationSeconds: 120,
		DirectMediaURL:  "https://cdn.example/stream.mp4",
		Container:       "mp4",
	}
}

func TestRetrievalUseCase_Validation(t *testing.T) {
	ctx := context.Background()

	t.Run("should reject a non-video url without touching the extractor", func(t *testing.T) {
		deps := newRetrievalDeps(t)
		req := model.NewRetrievalRequest(42, "https://example.com/not-a-video", "")

		_, err := deps.uc.Execute(ctx, req)
		if !errors.Is(err, domain.ErrValidationRejected) {
			t.Fatalf("expected ErrValidationRejected, got: %v", err)
		}
		if deps.extractor.resolveCalls != 0 {
			t.Error("resolution must not run for a rejected url")
		}
		if len(deps.messenger.texts) != 1 || !strings.Contains(deps.messenger.texts[0], "link") {
			t.Errorf("expected a single guidance message, got %v", deps.messenger.texts)
		}
		rec := deps.runs.last()
		if rec == nil || rec.Outcome != "rejected" || rec.ErrorKind != "validation" {
			t.Errorf("unexpected run record: %+v", rec)
		}
	})

	t.Run("should accept a playlist-free watch url", func(t *testing.T) {
		deps := newRetrievalDeps(t)
		deps.extractor.resolveFunc = func(int) (*model.MediaDescriptor, error) {
			return resolvedDescriptor(), nil
		}

		outcome, err := deps.uc.Execute(ctx, testRequest())
		if err != nil {
			t.Fatalf("expected delivery, got: %v", err)
		}
		if outcome.Method != model.MethodRemoteReference {
			t.Errorf("expected remote_reference, got %s", outcome.Method)
		}
	})
}

func TestRetrievalUseCase_Resolution(t *testing.T) {
	ctx := context.Background()

	t.Run("should retry transient failures up to the bound", func(t *testing.T) {
		deps := newRetrievalDeps(t)
		deps.extractor.resolveFunc = func(int) (*model.MediaDescriptor, error) {
			return nil, &domain.ResolutionError{Kind: domain.ResolutionTransient, Err: errors.New("timeout")}
		}

		_, err := deps.uc.Execute(ctx, testRequest())
		var re *domain.ResolutionError
		if !errors.As(err, &re) || re.Kind != domain.ResolutionTransient {
			t.Fatalf("expected transient resolution error, got: %v", err)
		}
		if deps.extractor.resolveCalls != 3 {
			t.Errorf("expected 3 resolve attempts, got %d", deps.extractor.resolveCalls)
		}
	})

	t.Run("should not retry permanent failures", func(t *testing.T) {
		deps := newRetrievalDeps(t)
		deps.extractor.resolveFunc = func(int) (*model.MediaDescriptor, error) {
			return nil, &domain.ResolutionError{Kind: domain.ResolutionPermanent, Err: errors.New("private video")}
		}

		_, err := deps.uc.Execute(ctx, testRequest())
		var re *domain.ResolutionError
		if !errors.As(err, &re) || re.Kind != domain.ResolutionPermanent {
			t.Fatalf("expected permanent resolution error, got: %v", err)
		}
		if deps.extractor.resolveCalls != 1 {
			t.Errorf("expected a single resolve attempt, got %d", deps.extractor.resolveCalls)
		}
		if !strings.Contains(deps.messenger.lastEdit(), "isn't available") {
			t.Errorf("final status should name the permanent failure, got %q", deps.messenger.lastEdit())
		}
	})

	t.Run("should treat a missing media url as no media found", func(t *testing.T) {
		deps := newRetrievalDeps(t)
		deps.extractor.resolveFunc = func(int) (*model.MediaDescriptor, error) {
			return &model.MediaDescriptor{Title: "page without media", DurationSeconds: 10}, nil
		}

		_, err := deps.uc.Execute(ctx, testRequest())
		var re *domain.ResolutionError
		if !errors.As(err, &re) || re.Kind != domain.ResolutionNoMediaFound {
			t.Fatalf("expected no_media_found, got: %v", err)
		}
	})
}

func TestRetrievalUseCase_Policy(t *testing.T) {
	ctx := context.Background()

	t.Run("should reject an over-length video before any fetch", func(t *testing.T) {
		deps := newRetrievalDeps(t)
		deps.extractor.resolveFunc = func(int) (*model.MediaDescriptor, error) {
			desc := resolvedDescriptor()
			desc.DurationSeconds = 7200
			return desc, nil
		}

		_, err := deps.uc.Execute(ctx, testRequest())
		var pe *domain.PolicyError
		if !errors.As(err, &pe) {
			t.Fatalf("expected PolicyError, got: %v", err)
		}
		if deps.extractor.downloadCalls != 0 {
			t.Error("no bytes may be transferred for a rejected video")
		}
		if !strings.Contains(deps.messenger.lastEdit(), "too long") {
			t.Errorf("final status should carry the rejection reason, got %q", deps.messenger.lastEdit())
		}
		rec := deps.runs.last()
		if rec == nil || rec.Outcome != "rejected" || rec.ErrorKind != "policy" {
			t.Errorf("unexpected run record: %+v", rec)
		}
	})

	t.Run("should discard an artifact that turns out oversized", func(t *testing.T) {
		deps := newRetrievalDeps(t)
		deps.uc.limits.MaxBytes = 10 // tiny ceiling, unknown up front
		deps.extractor.resolveFunc = func(int) (*model.MediaDescriptor, error) {
			desc := resolvedDescriptor()
			desc.ByteSize = nil
			return desc, nil
		}
		deps.messenger.refFunc = func(string, model.PayloadKind) (adapter.SendResult, error) {
			return adapter.SendResult{OK: false}, nil
		}
		deps.extractor.downloadFunc = func(_ int, destDir string) (string, error) {
			path := filepath.Join(destDir, "clip.mp4")
			return path, os.WriteFile(path, []byte("way more than ten bytes"), 0o644)
		}

		_, err := deps.uc.Execute(ctx, testRequest())
		var pe *domain.PolicyError
		if !errors.As(err, &pe) {
			t.Fatalf("expected post-fetch PolicyError, got: %v", err)
		}
		if len(deps.messenger.uploads) != 0 {
			t.Error("an oversized artifact must never be uploaded")
		}
		if _, statErr := os.Stat(deps.extractor.lastDestDir); !os.IsNotExist(statErr) {
			t.Error("workspace must be removed after a rejected fetch")
		}
	})
}

func TestRetrievalUseCase_FetchAndDeliver(t *testing.T) {
	ctx := context.Background()
	payload := []byte("actual media payload")

	t.Run("should fall back to upload when the reference is refused", func(t *testing.T) {
		deps := newRetrievalDeps(t)
		deps.extractor.resolveFunc = func(int) (*model.MediaDescriptor, error) {
			return resolvedDescriptor(), nil
		}
		deps.messenger.refFunc = func(string, model.PayloadKind) (adapter.SendResult, error) {
			return adapter.SendResult{OK: false}, nil
		}
		deps.extractor.downloadFunc = func(_ int, destDir string) (string, error) {
			path := filepath.Join(destDir, "clip.mp4")
			return path, os.WriteFile(path, payload, 0o644)
		}

		outcome, err := deps.uc.Execute(ctx, testRequest())
		if err != nil {
			t.Fatalf("expected delivery, got: %v", err)
		}
		if outcome.Method != model.MethodUploadVideo {
			t.Errorf("expected upload_video, got %s", outcome.Method)
		}
		if len(deps.messenger.uploads) != 1 || string(deps.messenger.uploads[0]) != string(payload) {
			t.Error("uploaded bytes must match the fetched artifact")
		}
		if _, statErr := os.Stat(deps.extractor.lastDestDir); !os.IsNotExist(statErr) {
			t.Error("workspace must be removed after delivery")
		}
		rec := deps.runs.last()
		if rec == nil || rec.Outcome != "delivered" || rec.Bytes != int64(len(payload)) {
			t.Errorf("unexpected run record: %+v", rec)
		}
	})

	t.Run("should scan the workspace when the collaborator reports no path", func(t *testing.T) {
		deps := newRetrievalDeps(t)
		deps.extractor.resolveFunc = func(int) (*model.MediaDescriptor, error) {
			return resolvedDescriptor(), nil
		}
		deps.messenger.refFunc = func(string, model.PayloadKind) (adapter.SendResult, error) {
			return adapter.SendResult{OK: false}, nil
		}
		deps.extractor.downloadFunc = func(_ int, destDir string) (string, error) {
			if err := os.WriteFile(filepath.Join(destDir, "clip.mp4"), payload, 0o644); err != nil {
				return "", err
			}
			return "", nil // file exists, path unreported
		}

		outcome, err := deps.uc.Execute(ctx, testRequest())
		if err != nil {
			t.Fatalf("expected scan fallback to deliver, got: %v", err)
		}
		if !outcome.OK {
			t.Error("expected a delivered outcome")
		}
	})

	t.Run("should surface exhaustion as an unreachable fetch", func(t *testing.T) {
		deps := newRetrievalDeps(t)
		deps.extractor.resolveFunc = func(int) (*model.MediaDescriptor, error) {
			desc := resolvedDescriptor()
			desc.DirectMediaURL = "https://cdn.example/gone.mp4"
			return desc, nil
		}
		deps.messenger.refFunc = func(string, model.PayloadKind) (adapter.SendResult, error) {
			return adapter.SendResult{OK: false}, nil
		}
		deps.extractor.downloadFunc = func(int, string) (string, error) {
			return "", errors.New("network down")
		}

		_, err := deps.uc.Execute(ctx, testRequest())
		var fe *domain.FetchError
		if !errors.As(err, &fe) || fe.Kind != domain.FetchUnreachable {
			t.Fatalf("expected unreachable fetch error, got: %v", err)
		}
		if deps.extractor.downloadCalls != 3 {
			t.Errorf("expected 3 download attempts, got %d", deps.extractor.downloadCalls)
		}
	})
}
