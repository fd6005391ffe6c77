package geocode

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/norbert12x/parasol/pkg/parasol/store"
)

// DefaultDelay is the minimum gap between request starts required by the
// public Nominatim usage policy.
const DefaultDelay = 500 * time.Millisecond

// Recorder observes lookup outcomes: "hit", "miss" or "error".
type Recorder interface {
	GeocodeLookup(result string)
}

// Throttled serializes lookups and keeps at least Delay between the start
// of one request and the start of the next.
type Throttled struct {
	lookuper Lookuper
	delay    time.Duration
	logger   *zap.Logger
	recorder Recorder

	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

// ThrottleOptions configures a Throttled geocoder
type ThrottleOptions struct {
	Delay    time.Duration
	Logger   *zap.Logger
	Recorder Recorder
}

// NewThrottled wraps l. A zero delay uses DefaultDelay; a negative one
// disables throttling.
func NewThrottled(l Lookuper, opts ThrottleOptions) *Throttled {
	delay := opts.Delay
	if delay == 0 {
		delay = DefaultDelay
	}
	if delay < 0 {
		delay = 0
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Throttled{
		lookuper: l,
		delay:    delay,
		logger:   logger,
		recorder: opts.Recorder,
		now:      time.Now,
	}
}

// Lookup waits for the throttle and forwards to the wrapped Lookuper.
func (t *Throttled) Lookup(ctx context.Context, query string) (store.Coordinate, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.last.IsZero() {
		if wait := t.delay - t.now().Sub(t.last); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return store.Coordinate{}, false, ctx.Err()
			case <-timer.C:
			}
		}
	}
	t.last = t.now()
	return t.lookuper.Lookup(ctx, query)
}

// Resolve geocodes one address. Errors are logged and reported as not
// found so a failed lookup never fails an import.
func (t *Throttled) Resolve(ctx context.Context, addr store.Address) (store.Coordinate, bool) {
	query := FormatAddress(addr)
	if query == "" {
		return store.Coordinate{}, false
	}

	coord, ok, err := t.Lookup(ctx, query)
	switch {
	case err != nil:
		t.record("error")
		t.logger.Warn("geocode lookup failed",
			zap.String("krs", addr.KRS),
			zap.String("query", query),
			zap.Error(err))
		return store.Coordinate{}, false
	case !ok:
		t.record("miss")
		t.logger.Debug("no geocode result", zap.String("krs", addr.KRS), zap.String("query", query))
		return store.Coordinate{}, false
	}
	t.record("hit")
	coord.KRS = addr.KRS
	return coord, true
}

// ResolveAll geocodes addresses one after another and returns the
// coordinates that were found.
func (t *Throttled) ResolveAll(ctx context.Context, addrs []store.Address) []store.Coordinate {
	var out []store.Coordinate
	for _, a := range addrs {
		if c, ok := t.Resolve(ctx, a); ok {
			out = append(out, c)
		}
	}
	return out
}

func (t *Throttled) record(result string) {
	if t.recorder != nil {
		t.recorder.GeocodeLookup(result)
	}
}
