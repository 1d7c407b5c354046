package history

import (
	"context"
	"time"
)

// Role tags a turn as authored by the user or by the model.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

const (
	// DefaultLimit is the retention limit applied to users without a policy.
	DefaultLimit = 12
	// MaxLimit is the hard ceiling a user may raise their retention limit to.
	MaxLimit = 20
)

// Part is one element of a turn's content: plain text or a media reference.
// Exactly one field is set.
type Part struct {
	Text  string    `json:"text,omitempty"`
	Media *MediaRef `json:"media,omitempty"`
}

// MediaRef points at a remote media asset that accompanied a turn. The URI is
// opaque to the store; it is only replayed back to the inference service.
type MediaRef struct {
	Kind     string `json:"kind"`
	MIMEType string `json:"mime_type"`
	URI      string `json:"uri"`
}

func TextPart(text string) Part { return Part{Text: text} }

func MediaPart(kind, mimeType, uri string) Part {
	return Part{Media: &MediaRef{Kind: kind, MIMEType: mimeType, URI: uri}}
}

// Turn is one immutable message in a user's conversation history. Seq is a
// store-assigned monotonically increasing sequence number that breaks ordering
// ties when timestamps are coarse.
type Turn struct {
	Seq       int64     `json:"seq"`
	UserID    int64     `json:"user_id"`
	Role      Role      `json:"role"`
	Parts     []Part    `json:"parts"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists per-user conversation history and retention policies.
//
// Window returns at most the user's retention limit of turns, oldest-first.
// SetPolicy stores the limit as given; callers clamp to the allowed range.
// Clear removes a user's turns but leaves their policy untouched.
type Store interface {
	Append(ctx context.Context, userID int64, role Role, parts []Part) error
	Window(ctx context.Context, userID int64) ([]Turn, error)
	SetPolicy(ctx context.Context, userID int64, limit int) error
	PolicyLimit(ctx context.Context, userID int64) (int, error)
	Clear(ctx context.Context, userID int64) error
	Close() error
}
