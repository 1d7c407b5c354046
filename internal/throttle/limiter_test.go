package throttle

import (
	"sync"
	"testing"
	"time"
)

func newTestLimiter(cooldowns map[Category]time.Duration) (*Limiter, *time.Time) {
	l := NewLimiter(cooldowns, 2*time.Second)
	clock := time.Unix(0, 0)
	l.now = func() time.Time { return clock }
	return l, &clock
}

func TestAdmitMarkCooldownWindow(t *testing.T) {
	l, clock := newTestLimiter(map[Category]time.Duration{CategoryVoice: 15 * time.Second})

	if !l.Admit(42, CategoryVoice) {
		t.Fatalf("Admit() at t=0 = false, want true")
	}
	l.Mark(42, CategoryVoice)

	*clock = clock.Add(10 * time.Second)
	if l.Admit(42, CategoryVoice) {
		t.Fatalf("Admit() at t=10 = true, want false (cooldown 15s)")
	}

	*clock = clock.Add(6 * time.Second)
	if !l.Admit(42, CategoryVoice) {
		t.Fatalf("Admit() at t=16 = false, want true")
	}
}

func TestAdmitWithoutMarkDoesNotThrottle(t *testing.T) {
	l, _ := newTestLimiter(map[Category]time.Duration{CategoryText: 3 * time.Second})

	// Two back-to-back checks without a Mark in between: both admitted.
	if !l.Admit(1, CategoryText) || !l.Admit(1, CategoryText) {
		t.Fatalf("Admit() without Mark should stay true")
	}
}

func TestCategoriesAndUsersAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(map[Category]time.Duration{
		CategoryText:  3 * time.Second,
		CategoryPhoto: 10 * time.Second,
	})

	l.Mark(1, CategoryPhoto)
	if !l.Admit(1, CategoryText) {
		t.Fatalf("photo Mark should not throttle text category")
	}
	if !l.Admit(2, CategoryPhoto) {
		t.Fatalf("user 1 Mark should not throttle user 2")
	}
	if l.Admit(1, CategoryPhoto) {
		t.Fatalf("Admit() right after Mark = true, want false")
	}
}

func TestUnknownCategoryUsesFallback(t *testing.T) {
	l, clock := newTestLimiter(nil)

	l.Mark(5, Category("mystery"))
	if l.Admit(5, Category("mystery")) {
		t.Fatalf("Admit() within fallback cooldown = true, want false")
	}
	*clock = clock.Add(2 * time.Second)
	if !l.Admit(5, Category("mystery")) {
		t.Fatalf("Admit() after fallback cooldown = false, want true")
	}
}

func TestRemaining(t *testing.T) {
	l, clock := newTestLimiter(map[Category]time.Duration{CategoryVideo: 20 * time.Second})

	if got := l.Remaining(3, CategoryVideo); got != 0 {
		t.Fatalf("Remaining() before any Mark = %s, want 0", got)
	}
	l.Mark(3, CategoryVideo)
	*clock = clock.Add(5 * time.Second)
	if got := l.Remaining(3, CategoryVideo); got != 15*time.Second {
		t.Fatalf("Remaining() = %s, want 15s", got)
	}
	*clock = clock.Add(30 * time.Second)
	if got := l.Remaining(3, CategoryVideo); got != 0 {
		t.Fatalf("Remaining() after cooldown = %s, want 0", got)
	}
}

func TestConcurrentMarkAndAdmit(t *testing.T) {
	l := NewLimiter(map[Category]time.Duration{CategoryText: time.Millisecond}, time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if l.Admit(userID, CategoryText) {
					l.Mark(userID, CategoryText)
				}
				l.Remaining(userID, CategoryText)
			}
		}(int64(i % 4))
	}
	wg.Wait()
}
