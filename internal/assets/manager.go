package assets

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okhmat/lumen/internal/observability"
)

// Kind identifies the class of media moving through the lifecycle. Poll
// interval, temp file layout and MIME type are tuned per kind.
type Kind string

const (
	KindPhoto Kind = "photo"
	KindVoice Kind = "voice"
	KindVideo Kind = "video"
)

// State of one asset within a single request.
type State string

const (
	StateUploading  State = "uploading"
	StateProcessing State = "processing"
	StateReady      State = "ready"
	StateFailed     State = "failed"
)

var (
	// ErrTooLarge rejects media before any local or remote resource exists.
	ErrTooLarge = errors.New("media exceeds size limit")
	// ErrProcessing covers remote-side failure or a stuck asset that never
	// became ready within the processing timeout.
	ErrProcessing = errors.New("remote media processing failed")
)

// RemoteState is the remote service's view of an uploaded file.
type RemoteState string

const (
	RemoteProcessing RemoteState = "processing"
	RemoteReady      RemoteState = "ready"
	RemoteFailed     RemoteState = "failed"
)

// RemoteFile is the opaque handle the remote service returns for an upload.
type RemoteFile struct {
	Name     string
	URI      string
	MIMEType string
}

// RemoteStore is the slice of the inference service that stores media files.
type RemoteStore interface {
	Upload(ctx context.Context, path, mimeType string) (RemoteFile, error)
	Status(ctx context.Context, name string) (RemoteState, error)
	Delete(ctx context.Context, name string) error
}

// DownloadFunc writes the media content to the given local path. The manager
// owns the path; the func must not retain it.
type DownloadFunc func(ctx context.Context, path string) error

type KindConfig struct {
	PollInterval time.Duration
	FileExt      string
	MIMEType     string
}

type Config struct {
	// TempDir is the root for scoped temp files; empty means the OS default.
	TempDir string
	// MaxBytes is the declared-size ceiling checked before anything is created.
	MaxBytes int64
	// ProcessingTimeout bounds the poll loop; a stuck remote asset surfaces
	// ErrProcessing instead of polling forever.
	ProcessingTimeout time.Duration
	Kinds             map[Kind]KindConfig
}

func DefaultConfig() Config {
	return Config{
		MaxBytes:          20 << 20,
		ProcessingTimeout: 2 * time.Minute,
		Kinds: map[Kind]KindConfig{
			KindPhoto: {PollInterval: time.Second, FileExt: ".jpg", MIMEType: "image/jpeg"},
			KindVoice: {PollInterval: 2 * time.Second, FileExt: ".ogg", MIMEType: "audio/ogg"},
			KindVideo: {PollInterval: 5 * time.Second, FileExt: ".mp4", MIMEType: "video/mp4"},
		},
	}
}

// Manager drives the upload -> poll-until-ready -> use -> delete state machine
// for one media item per request. Both the local temp file and the remote
// handle are released on every exit path, including cancellation.
type Manager struct {
	remote  RemoteStore
	cfg     Config
	metrics *observability.Metrics
}

func NewManager(remote RemoteStore, cfg Config, metrics *observability.Metrics) *Manager {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 20 << 20
	}
	if cfg.ProcessingTimeout <= 0 {
		cfg.ProcessingTimeout = 2 * time.Minute
	}
	if cfg.TempDir == "" {
		cfg.TempDir = filepath.Join(os.TempDir(), "lumen-media")
	}
	if cfg.Kinds == nil {
		cfg.Kinds = DefaultConfig().Kinds
	}
	return &Manager{remote: remote, cfg: cfg, metrics: metrics}
}

// Prepare downloads the media into a scoped temp file, uploads it and polls
// until the remote asset is ready. On any failure after the temp file exists,
// Prepare releases everything it acquired before returning. The returned
// handle must be released with Cleanup once the request finishes.
func (m *Manager) Prepare(ctx context.Context, kind Kind, declaredSize int64, download DownloadFunc) (*Handle, error) {
	kc, ok := m.cfg.Kinds[kind]
	if !ok {
		return nil, fmt.Errorf("unknown media kind %q", kind)
	}
	if declaredSize > m.cfg.MaxBytes {
		m.metrics.ObserveAsset(string(kind), "too_large")
		return nil, fmt.Errorf("%d bytes over %d byte limit: %w", declaredSize, m.cfg.MaxBytes, ErrTooLarge)
	}

	dir := filepath.Join(m.cfg.TempDir, string(kind))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}

	h := &Handle{
		kind:      kind,
		state:     StateUploading,
		localPath: filepath.Join(dir, uuid.NewString()+kc.FileExt),
		remote:    m.remote,
	}

	if err := download(ctx, h.localPath); err != nil {
		h.Cleanup(ctx)
		return nil, fmt.Errorf("download media: %w", err)
	}

	start := time.Now()
	file, err := m.remote.Upload(ctx, h.localPath, kc.MIMEType)
	if err != nil {
		h.Cleanup(ctx)
		m.metrics.ObserveAsset(string(kind), "upload_error")
		return nil, fmt.Errorf("upload media: %w", err)
	}
	h.file = file
	h.state = StateProcessing

	if err := m.awaitReady(ctx, h, kc.PollInterval); err != nil {
		h.Cleanup(ctx)
		m.metrics.ObserveAsset(string(kind), "processing_error")
		return nil, err
	}

	h.state = StateReady
	m.metrics.ObserveAsset(string(kind), "ready")
	m.metrics.ObserveAssetProcessing(time.Since(start))
	return h, nil
}

func (m *Manager) awaitReady(ctx context.Context, h *Handle, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}
	deadline := time.NewTimer(m.cfg.ProcessingTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		state, err := m.remote.Status(ctx, h.file.Name)
		if err != nil {
			return fmt.Errorf("poll media status: %w", err)
		}
		switch state {
		case RemoteReady:
			return nil
		case RemoteFailed:
			h.state = StateFailed
			return fmt.Errorf("asset %s: %w", h.file.Name, ErrProcessing)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			h.state = StateFailed
			return fmt.Errorf("asset %s not ready after %s: %w", h.file.Name, m.cfg.ProcessingTimeout, ErrProcessing)
		case <-ticker.C:
		}
	}
}

// Handle ties one local temp file to one remote asset for the duration of a
// single request. It is owned by that request and never shared.
type Handle struct {
	kind      Kind
	state     State
	localPath string
	file      RemoteFile
	remote    RemoteStore

	mu          sync.Mutex
	localFreed  bool
	remoteFreed bool
}

func (h *Handle) Kind() Kind       { return h.kind }
func (h *Handle) State() State     { return h.state }
func (h *Handle) Path() string     { return h.localPath }
func (h *Handle) File() RemoteFile { return h.file }

// Cleanup releases the local temp file and the remote asset. It is idempotent
// and never fails: repeat invocations and already-missing files are no-ops.
// The remote delete runs on a detached context so cancellation of the request
// cannot leak the remote handle.
func (h *Handle) Cleanup(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.localFreed {
		h.localFreed = true
		if err := os.Remove(h.localPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Printf("assets: remove temp file %s: %v", h.localPath, err)
		}
	}

	if !h.remoteFreed && h.file.Name != "" {
		h.remoteFreed = true
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := h.remote.Delete(dctx, h.file.Name); err != nil {
			log.Printf("assets: delete remote asset %s: %v", h.file.Name, err)
		}
	}
}
