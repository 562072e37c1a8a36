package usecase

import (
	"context"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"telegram-video-courier/internal/domain/model"
	"telegram-video-courier/internal/domain/ports/adapter"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// memMessenger is a small in-memory messenger used by unit tests. Every
// outbound call is recorded; hooks let a test script refusals.
type memMessenger struct {
	mu sync.Mutex

	texts []string
	edits []string

	refCalls   int
	refURLs    []string
	refKinds   []model.PayloadKind
	refFunc    func(url string, kind model.PayloadKind) (adapter.SendResult, error)
	uploads    [][]byte
	upKinds    []model.PayloadKind
	upNames    []string
	uploadFunc func(kind model.PayloadKind) (adapter.SendResult, error)
}

func newMemMessenger() *memMessenger {
	return &memMessenger{}
}

func (m *memMessenger) SendText(ctx context.Context, chatID int64, text string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, text)
	return len(m.texts), nil
}

func (m *memMessenger) EditMessage(ctx context.Context, chatID int64, messageID int, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edits = append(m.edits, text)
	return nil
}

func (m *memMessenger) SendByReference(ctx context.Context, chatID int64, mediaURL, caption string, kind model.PayloadKind) (adapter.SendResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refCalls++
	m.refURLs = append(m.refURLs, mediaURL)
	m.refKinds = append(m.refKinds, kind)
	if m.refFunc != nil {
		return m.refFunc(mediaURL, kind)
	}
	return adapter.SendResult{OK: true, MessageID: 100 + m.refCalls}, nil
}

func (m *memMessenger) SendUpload(ctx context.Context, chatID int64, name string, data io.Reader, size int64, caption string, kind model.PayloadKind) (adapter.SendResult, error) {
	payload, err := io.ReadAll(data)
	if err != nil {
		return adapter.SendResult{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads = append(m.uploads, payload)
	m.upKinds = append(m.upKinds, kind)
	m.upNames = append(m.upNames, name)
	if m.uploadFunc != nil {
		return m.uploadFunc(kind)
	}
	return adapter.SendResult{OK: true, MessageID: 200 + len(m.uploads)}, nil
}

func (m *memMessenger) lastEdit() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.edits) == 0 {
		return ""
	}
	return m.edits[len(m.edits)-1]
}

// memExtractor scripts metadata resolution and download behavior.
type memExtractor struct {
	mu            sync.Mutex
	resolveCalls  int
	downloadCalls int

	resolveFunc  func(attempt int) (*model.MediaDescriptor, error)
	downloadFunc func(attempt int, destDir string) (string, error)

	lastDestDir string
}

func (m *memExtractor) Resolve(ctx context.Context, url string, opts adapter.ExtractOptions) (*model.MediaDescriptor, error) {
	m.mu.Lock()
	m.resolveCalls++
	attempt := m.resolveCalls
	m.mu.Unlock()
	return m.resolveFunc(attempt)
}

func (m *memExtractor) Download(ctx context.Context, url, destDir string, opts adapter.ExtractOptions, progress func(downloaded, total int64)) (string, error) {
	m.mu.Lock()
	m.downloadCalls++
	attempt := m.downloadCalls
	m.lastDestDir = destDir
	m.mu.Unlock()
	if m.downloadFunc == nil {
		return "", nil
	}
	return m.downloadFunc(attempt, destDir)
}

// memRunRepo captures finished run records.
type memRunRepo struct {
	mu    sync.Mutex
	saved []*model.RunRecord
}

func (m *memRunRepo) Save(ctx context.Context, rec *model.RunRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, rec)
	return nil
}

func (m *memRunRepo) Recent(ctx context.Context, limit int) ([]*model.RunRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.RunRecord, len(m.saved))
	copy(out, m.saved)
	return out, nil
}

func (m *memRunRepo) last() *model.RunRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.saved) == 0 {
		return nil
	}
	return m.saved[len(m.saved)-1]
}
