package throttle

import (
	"sync"
	"time"
)

// Category classifies a request for cooldown purposes. Each category carries
// its own minimum interval between requests from the same user.
type Category string

const (
	CategoryText     Category = "text"
	CategoryFact     Category = "fact"
	CategoryPhoto    Category = "photo"
	CategoryVoice    Category = "voice"
	CategoryVideo    Category = "video"
	CategorySettings Category = "settings"
)

type key struct {
	userID   int64
	category Category
}

// Limiter tracks the last admitted request time per (user, category) pair.
// Admit is a pure check; callers invoke Mark separately once they commit to
// doing the work, so a request rejected for an unrelated reason does not
// penalize the user.
type Limiter struct {
	mu        sync.Mutex
	last      map[key]time.Time
	cooldowns map[Category]time.Duration
	fallback  time.Duration
	now       func() time.Time
}

func NewLimiter(cooldowns map[Category]time.Duration, fallback time.Duration) *Limiter {
	if fallback <= 0 {
		fallback = 2 * time.Second
	}
	cloned := make(map[Category]time.Duration, len(cooldowns))
	for c, d := range cooldowns {
		cloned[c] = d
	}
	return &Limiter{
		last:      make(map[key]time.Time),
		cooldowns: cloned,
		fallback:  fallback,
		now:       time.Now,
	}
}

// Cooldown returns the minimum inter-request interval for a category. Unknown
// categories fall back to the default interval.
func (l *Limiter) Cooldown(c Category) time.Duration {
	if d, ok := l.cooldowns[c]; ok {
		return d
	}
	return l.fallback
}

// Admit reports whether a request in the given category may proceed. It does
// not record the request.
func (l *Limiter) Admit(userID int64, c Category) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	last, ok := l.last[key{userID, c}]
	if !ok {
		return true
	}
	return l.now().Sub(last) >= l.Cooldown(c)
}

// Mark records now as the user's last request time for the category,
// overwriting any previous value.
func (l *Limiter) Mark(userID int64, c Category) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.last[key{userID, c}] = l.now()
}

// Remaining returns how long until the user's next request in the category
// would be admitted; zero when it would be admitted now.
func (l *Limiter) Remaining(userID int64, c Category) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	last, ok := l.last[key{userID, c}]
	if !ok {
		return 0
	}
	left := l.Cooldown(c) - l.now().Sub(last)
	if left < 0 {
		return 0
	}
	return left
}
