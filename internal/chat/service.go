package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okhmat/lumen/internal/assets"
	"github.com/okhmat/lumen/internal/gemini"
	"github.com/okhmat/lumen/internal/history"
	"github.com/okhmat/lumen/internal/observability"
	"github.com/okhmat/lumen/internal/reliability"
	"github.com/okhmat/lumen/internal/throttle"
)

var (
	// ErrRateLimited rejects a request inside its category cooldown. The
	// request has no other effect.
	ErrRateLimited = errors.New("request rate limited")
	// ErrQuotaExceeded marks inference failures caused by provider quota.
	ErrQuotaExceeded = errors.New("inference quota exceeded")
)

// RateLimitedError carries how long the user still has to wait. It unwraps
// to ErrRateLimited.
type RateLimitedError struct {
	Category  throttle.Category
	Remaining time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("category %s rate limited for another %s", e.Category, e.Remaining)
}

func (e *RateLimitedError) Unwrap() error { return ErrRateLimited }

// Generator produces a reply from the conversation window and prompt.
type Generator interface {
	Generate(ctx context.Context, window []history.Turn, prompt string, media *assets.RemoteFile) (string, error)
}

// Asset is a prepared media item scoped to one request.
type Asset interface {
	File() assets.RemoteFile
	Cleanup(ctx context.Context)
}

// Preparer runs the media lifecycle up to the ready state.
type Preparer interface {
	Prepare(ctx context.Context, kind assets.Kind, declaredSize int64, download assets.DownloadFunc) (Asset, error)
}

// PrepareFunc adapts an asset manager's Prepare method to Preparer.
type PrepareFunc func(ctx context.Context, kind assets.Kind, declaredSize int64, download assets.DownloadFunc) (*assets.Handle, error)

func (f PrepareFunc) Prepare(ctx context.Context, kind assets.Kind, declaredSize int64, download assets.DownloadFunc) (Asset, error) {
	h, err := f(ctx, kind, declaredSize, download)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// IncomingMedia describes one media attachment before it is downloaded.
type IncomingMedia struct {
	Kind         assets.Kind
	DeclaredSize int64
	Download     assets.DownloadFunc
}

// Incoming is one user request. Text may be empty when media is present.
type Incoming struct {
	UserID int64
	Text   string
	Media  *IncomingMedia
}

// Service coordinates one request across the limiter, the asset lifecycle,
// the history store and the generator. Safe for concurrent use.
type Service struct {
	limiter *throttle.Limiter
	store   history.Store
	prep    Preparer
	gen     Generator
	metrics *observability.Metrics
}

func New(limiter *throttle.Limiter, store history.Store, prep Preparer, gen Generator, metrics *observability.Metrics) *Service {
	return &Service{limiter: limiter, store: store, prep: prep, gen: gen, metrics: metrics}
}

// Respond handles one inbound item end to end and returns the reply text.
// On any failure after admission the conversation history is left untouched
// and any prepared media is released.
func (s *Service) Respond(ctx context.Context, in Incoming) (string, error) {
	category := categoryOf(in)
	if !s.limiter.Admit(in.UserID, category) {
		s.metrics.ObserveRateLimited(string(category))
		return "", &RateLimitedError{Category: category, Remaining: s.limiter.Remaining(in.UserID, category)}
	}
	s.limiter.Mark(in.UserID, category)

	prompt := in.Text
	userParts := []history.Part{}
	var media *assets.RemoteFile

	if in.Media != nil {
		h, err := s.prep.Prepare(ctx, in.Media.Kind, in.Media.DeclaredSize, in.Media.Download)
		if err != nil {
			s.metrics.ObserveRequest(string(category), "media_error")
			return "", err
		}
		defer h.Cleanup(ctx)

		file := h.File()
		media = &file
		prompt = promptFor(in.Media.Kind, in.Text)
		userParts = append(userParts,
			history.TextPart(loggedTextFor(in.Media.Kind, in.Text)),
			history.MediaPart(string(in.Media.Kind), file.MIMEType, file.URI),
		)
	} else {
		userParts = append(userParts, history.TextPart(in.Text))
	}

	window, err := s.store.Window(ctx, in.UserID)
	if err != nil {
		s.metrics.ObserveHistoryError()
		s.metrics.ObserveRequest(string(category), "history_error")
		return "", fmt.Errorf("load history: %w", err)
	}

	start := time.Now()
	reply, err := s.gen.Generate(ctx, window, prompt, media)
	if err != nil {
		s.metrics.ObserveRequest(string(category), "inference_error")
		if reliability.IsQuotaError(err) {
			return "", fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
		}
		return "", fmt.Errorf("generate reply: %w", err)
	}
	s.metrics.ObserveInference(time.Since(start))

	// No retry on failed appends; the reply is dropped instead of delivered
	// unrecorded.
	if err := s.store.Append(ctx, in.UserID, history.RoleUser, userParts); err != nil {
		s.metrics.ObserveHistoryError()
		s.metrics.ObserveRequest(string(category), "history_error")
		return "", fmt.Errorf("save user turn: %w", err)
	}
	if err := s.store.Append(ctx, in.UserID, history.RoleModel, []history.Part{history.TextPart(reply)}); err != nil {
		s.metrics.ObserveHistoryError()
		s.metrics.ObserveRequest(string(category), "history_error")
		return "", fmt.Errorf("save model turn: %w", err)
	}

	s.metrics.ObserveRequest(string(category), "ok")
	return reply, nil
}

// Fact returns a standalone random fact. It is rate limited under its own
// category and never reads or writes conversation history.
func (s *Service) Fact(ctx context.Context, userID int64) (string, error) {
	if !s.limiter.Admit(userID, throttle.CategoryFact) {
		s.metrics.ObserveRateLimited(string(throttle.CategoryFact))
		return "", &RateLimitedError{Category: throttle.CategoryFact, Remaining: s.limiter.Remaining(userID, throttle.CategoryFact)}
	}
	s.limiter.Mark(userID, throttle.CategoryFact)

	start := time.Now()
	reply, err := s.gen.Generate(ctx, nil, gemini.FactPrompt, nil)
	if err != nil {
		s.metrics.ObserveRequest(string(throttle.CategoryFact), "inference_error")
		if reliability.IsQuotaError(err) {
			return "", fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
		}
		return "", fmt.Errorf("generate fact: %w", err)
	}
	s.metrics.ObserveInference(time.Since(start))
	s.metrics.ObserveRequest(string(throttle.CategoryFact), "ok")
	return reply, nil
}

// ClearHistory removes the user's stored turns. Retention policy survives.
func (s *Service) ClearHistory(ctx context.Context, userID int64) error {
	return s.store.Clear(ctx, userID)
}

// SetHistoryLimit updates the user's retention limit, clamped to a sane range.
func (s *Service) SetHistoryLimit(ctx context.Context, userID int64, limit int) error {
	if limit < 1 {
		limit = 1
	}
	if limit > history.MaxLimit {
		limit = history.MaxLimit
	}
	return s.store.SetPolicy(ctx, userID, limit)
}

// HistoryLimit reports the user's effective retention limit.
func (s *Service) HistoryLimit(ctx context.Context, userID int64) (int, error) {
	return s.store.PolicyLimit(ctx, userID)
}

// AdmitSettings applies the settings-category cooldown to menu interactions.
func (s *Service) AdmitSettings(userID int64) bool {
	if !s.limiter.Admit(userID, throttle.CategorySettings) {
		s.metrics.ObserveRateLimited(string(throttle.CategorySettings))
		return false
	}
	s.limiter.Mark(userID, throttle.CategorySettings)
	return true
}

func categoryOf(in Incoming) throttle.Category {
	if in.Media == nil {
		return throttle.CategoryText
	}
	switch in.Media.Kind {
	case assets.KindPhoto:
		return throttle.CategoryPhoto
	case assets.KindVoice:
		return throttle.CategoryVoice
	case assets.KindVideo:
		return throttle.CategoryVideo
	}
	return throttle.CategoryText
}

func promptFor(kind assets.Kind, text string) string {
	switch kind {
	case assets.KindPhoto:
		return gemini.PhotoPrompt(text)
	case assets.KindVoice:
		return gemini.VoicePrompt
	case assets.KindVideo:
		return gemini.VideoPrompt
	}
	return text
}

func loggedTextFor(kind assets.Kind, text string) string {
	switch kind {
	case assets.KindPhoto:
		if text != "" {
			return text
		}
		return "(photo)"
	case assets.KindVoice:
		return "(voice message)"
	case assets.KindVideo:
		return "(video message)"
	}
	return text
}

// UserMessage maps an error to copy safe to show the end user.
func UserMessage(err error) string {
	var rl *RateLimitedError
	switch {
	case errors.As(err, &rl) && rl.Remaining > 0:
		secs := int((rl.Remaining + time.Second - 1) / time.Second)
		return fmt.Sprintf("Easy there! Give me another %d seconds.", secs)
	case errors.Is(err, ErrRateLimited):
		return "Easy there! Give me a few seconds before the next one."
	case errors.Is(err, ErrQuotaExceeded):
		return "I've hit my thinking quota for now. Please try again in a minute."
	case errors.Is(err, assets.ErrTooLarge):
		return "That file is too big for me. I can handle up to 20 MB."
	case errors.Is(err, assets.ErrProcessing):
		return "I couldn't process that media file. Mind trying a different one?"
	default:
		return "Something went wrong on my side. Please try again."
	}
}
