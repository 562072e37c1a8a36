package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"telegram-video-courier/internal/config"
	"telegram-video-courier/internal/domain"
	"telegram-video-courier/internal/domain/model"
	"telegram-video-courier/internal/domain/ports/adapter"
	"telegram-video-courier/internal/domain/ports/repository"
	"telegram-video-courier/internal/infra/logging"
	"telegram-video-courier/internal/infra/metrics"
	"telegram-video-courier/internal/infra/workspace"
)

const (
	resolveAttempts = 3
	fetchAttempts   = 3
	resolveTimeout  = 30 * time.Second
	fetchTimeout    = 300 * time.Second
)

// DirectFetcher streams a resolved direct media URL straight into a file.
// Used when the extraction collaborator cannot drive the download itself.
type DirectFetcher interface {
	FetchDirect(ctx context.Context, url, destPath string, progress func(downloaded, total int64)) (int64, error)
}

// RetrievalUseCase runs the whole pipeline for one request: validate,
// resolve, gate, fetch, deliver, clean up. Requests are independent; the
// only shared state is the immutable configuration.
type RetrievalUseCase struct {
	extractor adapter.MediaExtractor
	direct    DirectFetcher // optional fallback, may be nil
	messenger adapter.Messenger
	runs      repository.RunRepository // optional, may be nil

	limits        model.Limits
	extractorOpts adapter.ExtractOptions
	progressEvery time.Duration
	workspaceRoot string
	log           *zerolog.Logger
}

func NewRetrievalUseCase(
	extractor adapter.MediaExtractor,
	direct DirectFetcher,
	messenger adapter.Messenger,
	runs repository.RunRepository,
	cfg *config.Config,
	logger *zerolog.Logger,
) *RetrievalUseCase {
	return &RetrievalUseCase{
		extractor: extractor,
		direct:    direct,
		messenger: messenger,
		runs:      runs,
		limits: model.Limits{
			MaxDuration: cfg.Limits.MaxDuration,
			MaxBytes:    cfg.Limits.MaxBytes,
		},
		extractorOpts: adapter.ExtractOptions{
			Quality:       cfg.Extractor.Quality,
			Retries:       cfg.Extractor.Retries,
			SocketTimeout: cfg.Extractor.SocketTimeout,
		},
		progressEvery: cfg.Limits.ProgressInterval,
		workspaceRoot: "",
		log:           logger,
	}
}

// Execute runs one request end to end. The user-visible outcome is
// communicated through the status message; the returned error is for the
// caller's logging and metrics only and is never process-fatal.
func (uc *RetrievalUseCase) Execute(ctx context.Context, req model.RetrievalRequest) (model.DeliveryOutcome, error) {
	ctx = logging.WithRunID(logging.WithChatID(logging.WithTraceID(ctx, req.TraceID), req.ChatID), req.RunID)
	log := logging.With(ctx, uc.log)
	defer logging.TraceDuration(log, "RetrievalUC.Execute")()

	started := time.Now()

	if !domain.ValidSourceURL(req.SourceURL) {
		// Normal negative result, surfaced as guidance, never escalated.
		log.Debug().Str("url", req.SourceURL).Msg("source url rejected")
		_, _ = uc.messenger.SendText(ctx, req.ChatID,
			"That doesn't look like a video link I can handle. Send a watch page, youtu.be, shorts or live URL.")
		uc.finishRun(ctx, req, started, "rejected", "", 0, "validation")
		return model.DeliveryOutcome{}, domain.ErrValidationRejected
	}

	statusID, err := uc.messenger.SendText(ctx, req.ChatID, "🔍 Looking that up…")
	if err != nil {
		log.Warn().Err(err).Msg("status message not created, progress disabled")
	}
	notifier := NewProgressNotifier(uc.messenger, req.ChatID, statusID, uc.progressEvery, log)

	ws, err := workspace.New(uc.workspaceRoot, req.RunID)
	if err != nil {
		notifier.Final(ctx, "Something went wrong on my side. Please try again.")
		uc.finishRun(ctx, req, started, "failed", "", 0, "workspace")
		return model.DeliveryOutcome{}, err
	}
	defer func() {
		if rmErr := ws.Remove(); rmErr != nil {
			log.Warn().Err(rmErr).Msg("workspace teardown failed")
		}
	}()

	stageStart := time.Now()
	desc, err := uc.resolve(ctx, req, log)
	metrics.ObserveStage("resolve", time.Since(stageStart))
	if err != nil {
		notifier.Final(ctx, resolutionText(err))
		uc.finishRun(ctx, req, started, "failed", "", 0, errorKind(err))
		return model.DeliveryOutcome{}, err
	}
	log.Info().Str("title", desc.Title).Int64("duration_s", desc.DurationSeconds).Msg("resolved")

	if verdict := EvaluatePolicy(desc, uc.limits); !verdict.Allowed {
		notifier.Final(ctx, "🚫 "+verdict.Reason)
		uc.finishRun(ctx, req, started, "rejected", "", 0, "policy")
		return model.DeliveryOutcome{}, &domain.PolicyError{Reason: verdict.Reason}
	}

	dispatcher := NewDeliveryDispatcher(uc.messenger, log)
	caption := captionFor(desc)

	// Zero-copy hand-off first: let the destination fetch the URL itself.
	outcome, err := dispatcher.Deliver(ctx, req.ChatID, desc, nil, caption)
	if err == nil && outcome.OK {
		notifier.Final(ctx, "✅ Done.")
		uc.finishRun(ctx, req, started, "delivered", string(outcome.Method), 0, "")
		return outcome, nil
	}
	if !errors.Is(err, domain.ErrNeedLocalArtifact) {
		notifier.Final(ctx, "❌ I couldn't deliver that video.")
		uc.finishRun(ctx, req, started, "failed", "", 0, errorKind(err))
		return model.DeliveryOutcome{}, err
	}

	stageStart = time.Now()
	art, bytes, err := uc.fetch(ctx, req, desc, ws, notifier, log)
	metrics.ObserveStage("fetch", time.Since(stageStart))
	if err != nil {
		var pe *domain.PolicyError
		if errors.As(err, &pe) {
			notifier.Final(ctx, "🚫 "+pe.Reason)
			uc.finishRun(ctx, req, started, "rejected", "", bytes, "policy")
		} else {
			notifier.Final(ctx, "❌ The download failed. Please try again later.")
			uc.finishRun(ctx, req, started, "failed", "", bytes, errorKind(err))
		}
		return model.DeliveryOutcome{}, err
	}
	defer art.close()

	notifier.Update(ctx, "📤 Uploading…")
	stageStart = time.Now()
	outcome, err = dispatcher.Deliver(ctx, req.ChatID, desc, &art.LocalArtifact, caption)
	metrics.ObserveStage("deliver", time.Since(stageStart))
	if err != nil {
		notifier.Final(ctx, "❌ I couldn't deliver that video.")
		uc.finishRun(ctx, req, started, "failed", "", bytes, errorKind(err))
		return model.DeliveryOutcome{}, err
	}

	notifier.Final(ctx, "✅ Done.")
	uc.finishRun(ctx, req, started, "delivered", string(outcome.Method), bytes, "")
	return outcome, nil
}

// resolve asks the collaborator for metadata only, retrying transient
// failures up to the bound. Permanent failures surface immediately.
func (uc *RetrievalUseCase) resolve(ctx context.Context, req model.RetrievalRequest, log *zerolog.Logger) (*model.MediaDescriptor, error) {
	opts := uc.extractorOpts
	if req.Quality != "" {
		opts.Quality = req.Quality
	}

	var lastErr error
	for attempt := 1; attempt <= resolveAttempts; attempt++ {
		rctx, cancel := context.WithTimeout(ctx, resolveTimeout)
		desc, err := uc.extractor.Resolve(rctx, req.SourceURL, opts)
		cancel()
		if err == nil {
			if desc.DirectMediaURL == "" {
				// Never guess a media URL the collaborator did not return.
				return nil, &domain.ResolutionError{Kind: domain.ResolutionNoMediaFound, Err: errors.New("no usable media url")}
			}
			return desc, nil
		}
		lastErr = err

		var re *domain.ResolutionError
		if errors.As(err, &re) && re.Kind != domain.ResolutionTransient {
			return nil, err
		}
		log.Debug().Err(err).Int("attempt", attempt).Msg("resolve retry")
	}
	var re *domain.ResolutionError
	if errors.As(lastErr, &re) {
		return nil, lastErr
	}
	return nil, &domain.ResolutionError{Kind: domain.ResolutionTransient, Err: lastErr}
}

type openArtifact struct {
	LocalArtifact
	file *os.File
}

func (a *openArtifact) close() {
	if a.file != nil {
		_ = a.file.Close()
	}
}

// fetch brings the artifact into the workspace: the collaborator drives
// the download, with direct-URL streaming as fallback. Retries reuse the
// same target, truncating rather than appending. The on-disk size is
// re-gated before the artifact is handed to delivery.
func (uc *RetrievalUseCase) fetch(ctx context.Context, req model.RetrievalRequest, desc *model.MediaDescriptor, ws *workspace.Workspace, notifier *ProgressNotifier, log *zerolog.Logger) (*openArtifact, int64, error) {
	// Bounded channel, non-blocking sends: download ticks never wait on
	// the notifier.
	events := make(chan string, 16)
	drainCtx, stopDrain := context.WithCancel(ctx)
	drainDone := make(chan struct{})
	go func() {
		defer close(drainDone)
		notifier.Drain(drainCtx, events)
	}()
	defer func() {
		stopDrain()
		<-drainDone
	}()

	emit := func(text string) {
		select {
		case events <- text:
		default:
		}
	}
	progress := func(downloaded, total int64) {
		emit(progressText(downloaded, total))
	}

	emit("⬇️ Downloading…")

	path, err := uc.download(ctx, req, desc, ws, emit, progress, log)
	if err != nil {
		return nil, 0, err
	}

	info, statErr := os.Stat(path)
	if statErr != nil {
		return nil, 0, &domain.FetchError{Kind: domain.FetchUnreachable, Err: statErr}
	}
	size := info.Size()
	if size == 0 {
		return nil, 0, &domain.FetchError{Kind: domain.FetchUnreachable, Err: errors.New("empty artifact")}
	}

	// The gate runs again now that the size is certain; over-ceiling bytes
	// are discarded with the workspace.
	if verdict := EvaluateSize(size, uc.limits); !verdict.Allowed {
		return nil, size, &domain.PolicyError{Reason: verdict.Reason}
	}

	metrics.AddFetchedBytes(size)
	emit("⬇️ Download complete.")

	f, err := os.Open(path)
	if err != nil {
		return nil, size, &domain.FetchError{Kind: domain.FetchUnreachable, Err: err}
	}
	return &openArtifact{
		LocalArtifact: LocalArtifact{Name: filepath.Base(path), Size: size, Data: f},
		file:          f,
	}, size, nil
}

func (uc *RetrievalUseCase) download(ctx context.Context, req model.RetrievalRequest, desc *model.MediaDescriptor, ws *workspace.Workspace, emit func(string), progress func(int64, int64), log *zerolog.Logger) (string, error) {
	opts := uc.extractorOpts
	if req.Quality != "" {
		opts.Quality = req.Quality
	}

	var lastErr error
	for attempt := 1; attempt <= fetchAttempts; attempt++ {
		if attempt > 1 {
			emit(fmt.Sprintf("⬇️ Retrying download (%d/%d)…", attempt, fetchAttempts))
		}
		fctx, cancel := context.WithTimeout(ctx, fetchTimeout)
		path, err := uc.extractor.Download(fctx, req.SourceURL, ws.Dir(), opts, progress)
		cancel()
		if err == nil {
			if path == "" {
				// Collaborator did not report the produced file; fall back
				// to the deterministic workspace scan.
				if scanned, ok := ws.Scan(); ok {
					return scanned, nil
				}
				err = errors.New("no artifact produced")
			} else {
				return path, nil
			}
		}
		lastErr = err
		log.Debug().Err(err).Int("attempt", attempt).Msg("download retry")
		if ctx.Err() != nil {
			break
		}
	}

	// Extraction collaborator exhausted; stream the direct URL ourselves.
	if uc.direct != nil && desc.DirectMediaURL != "" && ctx.Err() == nil {
		emit("⬇️ Retrying download…")
		dest := ws.Path("artifact." + containerExt(desc))
		fctx, cancel := context.WithTimeout(ctx, fetchTimeout)
		defer cancel()
		if _, err := uc.direct.FetchDirect(fctx, desc.DirectMediaURL, dest, progress); err == nil {
			return dest, nil
		} else {
			lastErr = err
		}
	}

	return "", &domain.FetchError{Kind: domain.FetchUnreachable, Err: lastErr}
}

// finishRun records metrics and, when configured, the run history row.
func (uc *RetrievalUseCase) finishRun(ctx context.Context, req model.RetrievalRequest, started time.Time, outcome, method string, bytes int64, errKind string) {
	metrics.ObserveRun(outcome, method, time.Since(started))
	if uc.runs == nil {
		return
	}
	rec := &model.RunRecord{
		ID:         req.RunID,
		ChatID:     req.ChatID,
		SourceURL:  req.SourceURL,
		Outcome:    outcome,
		Method:     method,
		Bytes:      bytes,
		ErrorKind:  errKind,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	if err := uc.runs.Save(ctx, rec); err != nil {
		uc.log.Warn().Err(err).Str("run_id", req.RunID).Msg("run record not saved")
	}
}

func progressText(downloaded, total int64) string {
	if total > 0 {
		return fmt.Sprintf("⬇️ Downloading… %d%%", downloaded*100/total)
	}
	return fmt.Sprintf("⬇️ Downloading… %s", formatBytes(downloaded))
}

func captionFor(desc *model.MediaDescriptor) string {
	if desc.Title == "" {
		return "Here you go."
	}
	return desc.Title
}

func containerExt(desc *model.MediaDescriptor) string {
	if desc.Container != "" {
		return desc.Container
	}
	return "mp4"
}

func resolutionText(err error) string {
	var re *domain.ResolutionError
	if errors.As(err, &re) {
		switch re.Kind {
		case domain.ResolutionNoMediaFound:
			return "❌ I couldn't find downloadable media behind that link."
		case domain.ResolutionPermanent:
			return "❌ That video isn't available (private, removed or region-locked)."
		}
	}
	return "❌ I couldn't reach the video service. Please try again later."
}

func errorKind(err error) string {
	var re *domain.ResolutionError
	if errors.As(err, &re) {
		return "resolution_" + string(re.Kind)
	}
	var fe *domain.FetchError
	if errors.As(err, &fe) {
		return "fetch_" + string(fe.Kind)
	}
	var de *domain.DeliveryError
	if errors.As(err, &de) {
		return "delivery_all_attempts_failed"
	}
	return "internal"
}
