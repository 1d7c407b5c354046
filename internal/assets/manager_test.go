package assets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type fakeRemote struct {
	mu       sync.Mutex
	uploads  int
	deletes  map[string]int
	statuses []RemoteState

	uploadErr error
	statusErr error
}

func newFakeRemote(statuses ...RemoteState) *fakeRemote {
	return &fakeRemote{deletes: map[string]int{}, statuses: statuses}
}

func (f *fakeRemote) Upload(_ context.Context, path, mimeType string) (RemoteFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return RemoteFile{}, f.uploadErr
	}
	f.uploads++
	return RemoteFile{Name: "files/abc", URI: "https://files/abc", MIMEType: mimeType}, nil
}

func (f *fakeRemote) Status(_ context.Context, name string) (RemoteState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return "", f.statusErr
	}
	if len(f.statuses) == 0 {
		return RemoteReady, nil
	}
	s := f.statuses[0]
	if len(f.statuses) > 1 {
		f.statuses = f.statuses[1:]
	}
	return s, nil
}

func (f *fakeRemote) Delete(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes[name]++
	return nil
}

func (f *fakeRemote) deleteCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.deletes[name]
}

func testManager(t *testing.T, remote RemoteStore) *Manager {
	t.Helper()
	cfg := DefaultConfig()
	cfg.TempDir = t.TempDir()
	cfg.ProcessingTimeout = 200 * time.Millisecond
	for k, kc := range cfg.Kinds {
		kc.PollInterval = 5 * time.Millisecond
		cfg.Kinds[k] = kc
	}
	return NewManager(remote, cfg, nil)
}

func writeDownload(content string) DownloadFunc {
	return func(_ context.Context, path string) error {
		return os.WriteFile(path, []byte(content), 0o644)
	}
}

func TestPrepareLifecycle(t *testing.T) {
	remote := newFakeRemote(RemoteProcessing, RemoteProcessing, RemoteReady)
	m := testManager(t, remote)

	h, err := m.Prepare(context.Background(), KindVoice, 1024, writeDownload("audio"))
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if h.State() != StateReady {
		t.Fatalf("State() = %q, want %q", h.State(), StateReady)
	}
	if h.File().URI != "https://files/abc" {
		t.Fatalf("File().URI = %q", h.File().URI)
	}
	if _, err := os.Stat(h.Path()); err != nil {
		t.Fatalf("temp file missing before cleanup: %v", err)
	}

	h.Cleanup(context.Background())
	if _, err := os.Stat(h.Path()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("temp file still present after cleanup: %v", err)
	}
	if got := remote.deleteCount("files/abc"); got != 1 {
		t.Fatalf("remote deletes = %d, want 1", got)
	}
}

func TestPrepareTooLargeTouchesNothing(t *testing.T) {
	remote := newFakeRemote()
	m := testManager(t, remote)

	called := false
	_, err := m.Prepare(context.Background(), KindVideo, 21<<20, func(context.Context, string) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("Prepare() error = %v, want ErrTooLarge", err)
	}
	if called {
		t.Fatal("download ran for oversized media")
	}
	if remote.uploads != 0 {
		t.Fatalf("uploads = %d, want 0", remote.uploads)
	}
	entries, _ := os.ReadDir(filepath.Join(m.cfg.TempDir, string(KindVideo)))
	if len(entries) != 0 {
		t.Fatalf("temp files left behind: %d", len(entries))
	}
}

func TestPrepareRemoteFailure(t *testing.T) {
	remote := newFakeRemote(RemoteProcessing, RemoteFailed)
	m := testManager(t, remote)

	_, err := m.Prepare(context.Background(), KindPhoto, 100, writeDownload("img"))
	if !errors.Is(err, ErrProcessing) {
		t.Fatalf("Prepare() error = %v, want ErrProcessing", err)
	}
	if got := remote.deleteCount("files/abc"); got != 1 {
		t.Fatalf("remote deletes = %d, want 1", got)
	}
	entries, _ := os.ReadDir(filepath.Join(m.cfg.TempDir, string(KindPhoto)))
	if len(entries) != 0 {
		t.Fatalf("temp files left behind: %d", len(entries))
	}
}

func TestPrepareProcessingTimeout(t *testing.T) {
	remote := newFakeRemote(RemoteProcessing)
	m := testManager(t, remote)

	_, err := m.Prepare(context.Background(), KindVideo, 100, writeDownload("vid"))
	if !errors.Is(err, ErrProcessing) {
		t.Fatalf("Prepare() error = %v, want ErrProcessing", err)
	}
	if got := remote.deleteCount("files/abc"); got != 1 {
		t.Fatalf("remote deletes = %d, want 1", got)
	}
}

func TestPrepareUploadError(t *testing.T) {
	remote := newFakeRemote()
	remote.uploadErr = errors.New("boom")
	m := testManager(t, remote)

	_, err := m.Prepare(context.Background(), KindVoice, 100, writeDownload("audio"))
	if err == nil {
		t.Fatal("Prepare() error = nil, want upload failure")
	}
	entries, _ := os.ReadDir(filepath.Join(m.cfg.TempDir, string(KindVoice)))
	if len(entries) != 0 {
		t.Fatalf("temp files left behind: %d", len(entries))
	}
}

func TestCleanupIdempotent(t *testing.T) {
	remote := newFakeRemote()
	m := testManager(t, remote)

	h, err := m.Prepare(context.Background(), KindPhoto, 100, writeDownload("img"))
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		h.Cleanup(context.Background())
	}
	if got := remote.deleteCount("files/abc"); got != 1 {
		t.Fatalf("remote deletes = %d, want 1", got)
	}
}

func TestCleanupSurvivesCancelledContext(t *testing.T) {
	remote := newFakeRemote()
	m := testManager(t, remote)

	h, err := m.Prepare(context.Background(), KindVoice, 100, writeDownload("audio"))
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h.Cleanup(ctx)
	if got := remote.deleteCount("files/abc"); got != 1 {
		t.Fatalf("remote deletes = %d, want 1", got)
	}
}
