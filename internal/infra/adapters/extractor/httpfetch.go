package extractor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"telegram-video-courier/internal/domain"
)

const fetchChunkSize = 1 << 20

// DirectHTTPFetcher streams a resolved direct media URL into a file,
// chunk by chunk, reporting progress as it goes. Used when the extraction
// collaborator cannot drive the download itself.
type DirectHTTPFetcher struct {
	client *http.Client
}

func NewDirectHTTPFetcher() *DirectHTTPFetcher {
	// No client-level timeout: bulk transfers are bounded by the caller's
	// context deadline instead.
	return &DirectHTTPFetcher{client: &http.Client{}}
}

// FetchDirect downloads url into destPath, truncating any previous
// attempt's bytes. A short body against a known Content-Length surfaces
// as a truncated fetch.
func (f *DirectHTTPFetcher) FetchDirect(ctx context.Context, url, destPath string, progress func(downloaded, total int64)) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	total := resp.ContentLength
	var written int64
	buf := make([]byte, fetchChunkSize)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				return written, writeErr
			}
			written += int64(n)
			if progress != nil {
				progress(written, total)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			if total > 0 && written < total {
				return written, &domain.FetchError{Kind: domain.FetchTruncated,
					Err: fmt.Errorf("got %d of %d bytes: %w", written, total, readErr)}
			}
			return written, readErr
		}
	}

	if total > 0 && written < total {
		return written, &domain.FetchError{Kind: domain.FetchTruncated,
			Err: fmt.Errorf("got %d of %d bytes", written, total)}
	}
	return written, nil
}
