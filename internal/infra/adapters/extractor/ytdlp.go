// Package extractor adapts the yt-dlp media-extraction collaborator to
// the MediaExtractor port: metadata-only resolution and directed download
// into a caller-owned directory.
package extractor

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"
	"github.com/rs/zerolog"

	"telegram-video-courier/internal/domain"
	"telegram-video-courier/internal/domain/model"
	"telegram-video-courier/internal/domain/ports/adapter"
)

const progressTick = 500 * time.Millisecond

// YtDlpExtractor drives the yt-dlp binary through go-ytdlp.
type YtDlpExtractor struct {
	log *zerolog.Logger
}

var _ adapter.MediaExtractor = (*YtDlpExtractor)(nil)

func NewYtDlpExtractor(logger *zerolog.Logger) *YtDlpExtractor {
	return &YtDlpExtractor{log: logger}
}

// Resolve fetches metadata without transferring media bytes.
func (e *YtDlpExtractor) Resolve(ctx context.Context, url string, opts adapter.ExtractOptions) (*model.MediaDescriptor, error) {
	dl := ytdlp.New().
		SkipDownload().
		DumpJSON().
		NoPlaylist().
		NoWarnings().
		Format(format(opts)).
		Retries(strconv.Itoa(retries(opts))).
		SocketTimeout(socketTimeout(opts))

	result, err := dl.Run(ctx, url)
	if err != nil {
		return nil, classifyResolve(err)
	}
	info, err := result.GetExtractedInfo()
	if err != nil || len(info) == 0 {
		return nil, &domain.ResolutionError{Kind: domain.ResolutionNoMediaFound, Err: errors.New("no extraction info")}
	}
	return descriptorFrom(info[0]), nil
}

// Download transfers the artifact into destDir through the collaborator.
// Retries restart the same target file: ForceOverwrites truncates rather
// than resumes, keeping attempts byte-clean.
func (e *YtDlpExtractor) Download(ctx context.Context, url string, destDir string, opts adapter.ExtractOptions, progress func(downloaded, total int64)) (string, error) {
	dl := ytdlp.New().
		NoPlaylist().
		NoWarnings().
		ForceOverwrites().
		RestrictFilenames().
		Format(format(opts)).
		Retries(strconv.Itoa(retries(opts))).
		SocketTimeout(socketTimeout(opts)).
		Output(destDir + "/%(title)s.%(ext)s")

	if progress != nil {
		dl = dl.ProgressFunc(progressTick, func(update ytdlp.ProgressUpdate) {
			progress(int64(update.DownloadedBytes), int64(update.TotalBytes))
		})
	}

	result, err := dl.Run(ctx, url)
	if err != nil {
		return "", err
	}

	// The collaborator reports the resolved local path through the
	// extraction info; the caller falls back to a workspace scan when
	// it is absent.
	if info, infoErr := result.GetExtractedInfo(); infoErr == nil && len(info) > 0 {
		if info[0].Filename != nil && *info[0].Filename != "" {
			return *info[0].Filename, nil
		}
	}
	return "", nil
}

func descriptorFrom(info *ytdlp.ExtractedInfo) *model.MediaDescriptor {
	desc := &model.MediaDescriptor{}
	if info.Title != nil {
		desc.Title = *info.Title
	}
	if info.Duration != nil {
		desc.DurationSeconds = int64(*info.Duration)
	}
	if info.FileSize != nil && *info.FileSize > 0 {
		size := int64(*info.FileSize)
		desc.ByteSize = &size
	} else if info.FileSizeApprox != nil && *info.FileSizeApprox > 0 {
		size := int64(*info.FileSizeApprox)
		desc.ByteSize = &size
	}
	if info.URL != nil {
		desc.DirectMediaURL = *info.URL
	}
	if info.Extension != "" {
		desc.Container = info.Extension
	}
	return desc
}

// Markers yt-dlp prints for content that no retry will ever produce.
var permanentMarkers = []string{
	"private video",
	"video unavailable",
	"has been removed",
	"not available in your country",
	"sign in to confirm your age",
	"account associated with this video has been terminated",
	"unsupported url",
	"is not a valid url",
}

func classifyResolve(err error) error {
	msg := strings.ToLower(err.Error())
	for _, marker := range permanentMarkers {
		if strings.Contains(msg, marker) {
			return &domain.ResolutionError{Kind: domain.ResolutionPermanent, Err: err}
		}
	}
	return &domain.ResolutionError{Kind: domain.ResolutionTransient, Err: err}
}

func format(opts adapter.ExtractOptions) string {
	if opts.Quality != "" {
		return opts.Quality
	}
	return "b"
}

func retries(opts adapter.ExtractOptions) int {
	if opts.Retries > 0 {
		return opts.Retries
	}
	return 3
}

func socketTimeout(opts adapter.ExtractOptions) float64 {
	if opts.SocketTimeout > 0 {
		return opts.SocketTimeout
	}
	return 30
}
