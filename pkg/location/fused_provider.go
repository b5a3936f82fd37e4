package location

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// MinUpdateInterval bounds how fast a subscription may tick. Requests with a
// smaller or non-positive interval are clamped to it.
const MinUpdateInterval = 10 * time.Millisecond

// highPowerSource is implemented by sources that keep a receiver powered while fixing.
type highPowerSource interface {
	HighPower() bool
}

// FusedProvider combines several sources into one callback driven provider.
// Every tick it asks the eligible sources for a fix and keeps the most accurate one.
type FusedProvider struct {
	sources       []Source
	sourceTimeout time.Duration
	logger        zerolog.Logger

	mu            sync.Mutex
	subscriptions map[Callback]context.CancelFunc
	last          *Location
	closed        bool
	wg            sync.WaitGroup
}

// NewFusedProvider creates a FusedProvider over the given sources.
func NewFusedProvider(sourceTimeout time.Duration, logger zerolog.Logger, sources ...Source) *FusedProvider {
	return &FusedProvider{
		sources:       sources,
		sourceTimeout: sourceTimeout,
		logger:        logger,
		subscriptions: make(map[Callback]context.CancelFunc),
	}
}

// RequestLocationUpdates starts periodic delivery to callback. Requesting
// again with the same callback replaces the previous request.
func (f *FusedProvider) RequestLocationUpdates(req Request, callback Callback) error {
	if callback == nil {
		return ErrNilCallback
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrProviderClosed
	}

	if cancel, ok := f.subscriptions[callback]; ok {
		cancel()
	}

	ctx, cancel := context.WithCancel(context.Background())
	f.subscriptions[callback] = cancel

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		f.runUpdates(ctx, req, callback)
	}()

	f.logger.Info().
		Dur("interval", req.Interval).
		Dur("max_wait_time", req.MaxWaitTime).
		Int("priority", int(req.Priority)).
		Msg("Location updates requested")
	return nil
}

// RemoveLocationUpdates cancels the subscription registered for callback.
func (f *FusedProvider) RemoveLocationUpdates(callback Callback) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	cancel, ok := f.subscriptions[callback]
	if !ok {
		return ErrCallbackNotRegistered
	}
	cancel()
	delete(f.subscriptions, callback)

	f.logger.Info().Msg("Location updates removed")
	return nil
}

// LastLocation reports the most recent cached fix without starting a new one.
// The listener is invoked on a separate goroutine.
func (f *FusedProvider) LastLocation(listener LastLocationListener) {
	f.mu.Lock()
	closed := f.closed
	var last *Location
	if f.last != nil {
		loc := *f.last
		last = &loc
	}
	f.mu.Unlock()

	go func() {
		if closed {
			listener.OnLastLocationFailure(ErrProviderClosed)
			return
		}
		listener.OnLastLocationSuccess(last)
	}()
}

// Close stops every subscription and releases sources that hold resources.
func (f *FusedProvider) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	for cb, cancel := range f.subscriptions {
		cancel()
		delete(f.subscriptions, cb)
	}
	f.mu.Unlock()

	f.wg.Wait()

	var errs []error
	for _, src := range f.sources {
		if closer, ok := src.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close source %s: %w", src.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}

func (f *FusedProvider) runUpdates(ctx context.Context, req Request, callback Callback) {
	interval := req.Interval
	if interval < MinUpdateInterval {
		interval = MinUpdateInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	flushTicks := batchTicks(interval, req.MaxWaitTime)

	var pending []Location
	ticks := 0

	for {
		select {
		case <-ticker.C:
			ticks++
			loc, err := f.currentLocation(ctx, req.Priority)
			if err != nil {
				if ctx.Err() == nil {
					f.logger.Warn().Err(err).Msg("Failed to obtain location fix")
				}
				continue
			}
			pending = append(pending, loc)

			if ticks < flushTicks {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			callback.OnLocationResult(Result{Locations: pending})
			pending = nil
			ticks = 0

		case <-ctx.Done():
			return
		}
	}
}

// batchTicks returns how many ticks make up one delivery. Batches never span
// more than maxWait; a maxWait at or below the interval delivers every fix.
func batchTicks(interval, maxWait time.Duration) int {
	if maxWait <= interval {
		return 1
	}
	return int(maxWait / interval)
}

// currentLocation queries the eligible sources and returns the most accurate fix.
func (f *FusedProvider) currentLocation(ctx context.Context, priority Priority) (Location, error) {
	sources := f.eligibleSources(priority)
	if len(sources) == 0 {
		return Location{}, ErrNoSources
	}

	var (
		best *Location
		errs []error
	)
	for _, src := range sources {
		sctx, cancel := context.WithTimeout(ctx, f.sourceTimeout)
		loc, err := src.GetLocation(sctx)
		cancel()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
			continue
		}
		if loc.Provider == "" {
			loc.Provider = src.Name()
		}
		if best == nil || moreAccurate(loc, *best) {
			l := loc
			best = &l
		}
	}

	if best == nil {
		return Location{}, errors.Join(errs...)
	}

	f.mu.Lock()
	f.last = best
	f.mu.Unlock()

	return *best, nil
}

// eligibleSources drops high power sources for low power requests, unless
// nothing else is available.
func (f *FusedProvider) eligibleSources(priority Priority) []Source {
	if priority == PriorityHighAccuracy {
		return f.sources
	}

	var lowPower []Source
	for _, src := range f.sources {
		if hp, ok := src.(highPowerSource); ok && hp.HighPower() {
			continue
		}
		lowPower = append(lowPower, src)
	}
	if len(lowPower) == 0 {
		return f.sources
	}
	return lowPower
}

// moreAccurate reports whether a beats b. An unknown (zero) accuracy never wins.
func moreAccurate(a, b Location) bool {
	if a.Accuracy <= 0 {
		return false
	}
	if b.Accuracy <= 0 {
		return true
	}
	return a.Accuracy < b.Accuracy
}
