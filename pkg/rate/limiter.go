package rate

import (
	"math"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter decides whether an operation on key may proceed now
type Limiter interface {
	Allow(key string) (bool, error)
}

// Unlimited allows every operation
var Unlimited Limiter = unlimited{}

type unlimited struct{}

func (unlimited) Allow(string) (bool, error) {
	return true, nil
}

type keyedLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// NewKeyedLimiter returns an in memory Limiter with an independent token
// bucket per key. A burst below one defaults to the limit rounded up, and
// never less than one.
func NewKeyedLimiter(limit rate.Limit, burst int) Limiter {
	if burst < 1 {
		burst = int(math.Ceil(float64(limit)))
		if burst < 1 {
			burst = 1
		}
	}

	return &keyedLimiter{
		limit:   limit,
		burst:   burst,
		buckets: make(map[string]*rate.Limiter),
	}
}

func (l *keyedLimiter) Allow(key string) (bool, error) {
	return l.bucket(key).Allow(), nil
}

func (l *keyedLimiter) bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
		l.buckets[key] = b
	}
	return b
}
