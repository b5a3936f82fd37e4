package services

import (
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/benmeehan/location-bridge/internal/constants"
	"github.com/benmeehan/location-bridge/internal/models"
	"github.com/benmeehan/location-bridge/pkg/host"
	"github.com/benmeehan/location-bridge/pkg/location"
	"github.com/benmeehan/location-bridge/pkg/plugin"
	"github.com/rs/zerolog"
)

var verticalAccuracyConstraint = mustConstraint(constants.VerticalAccuracyMinPlatform)

// LocationBridge exposes a location provider to the host as a plugin.
// Commands run on the host main loop; provider results arrive on the
// provider's goroutines and are forwarded as signals without touching
// bridge state.
type LocationBridge struct {
	// Configuration fields
	legacyPermissionError bool

	// Dependencies
	provider location.Provider
	emitter  plugin.Emitter
	logger   zerolog.Logger

	// Bridge state, owned by the host main loop
	activity      host.Activity
	callback      *locationUpdatesCallback
	updatesActive bool
}

// NewLocationBridge creates a LocationBridge. With legacyPermissionError set,
// a permission error is emitted every time the updates callback is
// initialised, regardless of the actual permission state.
func NewLocationBridge(provider location.Provider, emitter plugin.Emitter, legacyPermissionError bool, logger zerolog.Logger) *LocationBridge {
	return &LocationBridge{
		legacyPermissionError: legacyPermissionError,
		provider:              provider,
		emitter:               emitter,
		logger:                logger,
	}
}

// Name returns the plugin name registered with the host.
func (b *LocationBridge) Name() string {
	return constants.LocationPluginName
}

// Signals lists the signals the bridge emits.
func (b *LocationBridge) Signals() []plugin.SignalInfo {
	return []plugin.SignalInfo{
		{Name: constants.SignalLocationUpdates, Params: []string{"location"}},
		{Name: constants.SignalLastKnownLocation, Params: []string{"location"}},
		{Name: constants.SignalLocationError, Params: []string{"code", "message"}},
	}
}

// Methods lists the methods the host may call.
func (b *LocationBridge) Methods() []string {
	return []string{
		constants.MethodStartLocationUpdates,
		constants.MethodStopLocationUpdates,
		constants.MethodGetLastKnownLocation,
	}
}

// OnMainCreate stores the host activity.
func (b *LocationBridge) OnMainCreate(activity host.Activity) {
	b.activity = activity
}

// Call dispatches a host method invocation.
func (b *LocationBridge) Call(method string, args plugin.Args) error {
	switch method {
	case constants.MethodStartLocationUpdates:
		interval, err := args.Int(0)
		if err != nil {
			return err
		}
		maxWaitTime, err := args.Int(1)
		if err != nil {
			return err
		}
		b.StartLocationUpdates(interval, maxWaitTime)
	case constants.MethodStopLocationUpdates:
		b.StopLocationUpdates()
	case constants.MethodGetLastKnownLocation:
		b.GetLastKnownLocation()
	default:
		return fmt.Errorf("%w: %s", plugin.ErrUnknownMethod, method)
	}
	return nil
}

// UpdatesActive reports whether a location subscription is running.
func (b *LocationBridge) UpdatesActive() bool {
	return b.updatesActive
}

// StartLocationUpdates subscribes to high accuracy updates. It is a no-op
// while updates are already active. Arguments are passed through unchecked.
func (b *LocationBridge) StartLocationUpdates(intervalMillis, maxWaitMillis int) {
	if b.updatesActive {
		b.logger.Debug().Msg("Location updates already started")
		return
	}
	if b.activity == nil {
		b.emitError(constants.ErrorActivityNotFound)
		return
	}
	if !b.hasLocationPermission() {
		b.emitError(constants.ErrorLocationPermissionMissing)
		return
	}
	if b.provider == nil {
		b.emitError(constants.ErrorLocationUpdatesNull)
		return
	}

	b.initializeLocationCallback()

	req := location.Request{
		Interval:    time.Duration(intervalMillis) * time.Millisecond,
		MaxWaitTime: time.Duration(maxWaitMillis) * time.Millisecond,
		Priority:    location.PriorityHighAccuracy,
	}
	if err := b.provider.RequestLocationUpdates(req, b.callback); err != nil {
		b.logger.Error().Err(err).Msg("Failed to request location updates")
		b.callback = nil
		b.emitError(constants.ErrorLocationUpdatesNull)
		return
	}

	b.updatesActive = true
	b.logger.Info().
		Int("interval_ms", intervalMillis).
		Int("max_wait_ms", maxWaitMillis).
		Msg("Location update started")
}

// StopLocationUpdates removes the active subscription, if any.
func (b *LocationBridge) StopLocationUpdates() {
	if !b.updatesActive || b.callback == nil {
		return
	}

	b.updatesActive = false
	if err := b.provider.RemoveLocationUpdates(b.callback); err != nil {
		b.logger.Warn().Err(err).Msg("Failed to remove location updates")
	}
	b.callback = nil
	b.logger.Info().Msg("Location update stopped")
}

// GetLastKnownLocation queries the provider's cached fix. The answer arrives
// asynchronously as a last known location or an error signal.
func (b *LocationBridge) GetLastKnownLocation() {
	if b.activity == nil {
		b.emitError(constants.ErrorActivityNotFound)
		return
	}
	if !b.hasLocationPermission() {
		b.emitError(constants.ErrorLocationPermissionMissing)
		return
	}
	if b.provider == nil {
		b.emitError(constants.ErrorLastKnownLocationNull)
		return
	}

	b.provider.LastLocation(&lastLocationQuery{
		bridge:          b,
		includeVertical: b.reportsVerticalAccuracy(),
	})
}

func (b *LocationBridge) initializeLocationCallback() {
	if b.legacyPermissionError {
		b.emitError(constants.ErrorLocationPermissionMissing)
	}
	b.callback = &locationUpdatesCallback{
		bridge:          b,
		includeVertical: b.reportsVerticalAccuracy(),
	}
}

func (b *LocationBridge) hasLocationPermission() bool {
	if b.activity.CheckSelfPermission(host.PermissionAccessFineLocation) == host.PermissionGranted {
		return true
	}
	b.logger.Debug().
		Str("permission", host.PermissionAccessFineLocation).
		Msg("Location requests need the fine location permission")
	return false
}

func (b *LocationBridge) reportsVerticalAccuracy() bool {
	v := b.activity.PlatformVersion()
	return v != nil && verticalAccuracyConstraint.Check(v)
}

func (b *LocationBridge) emitLocation(signal string, loc location.Location, includeVertical bool) {
	sample := toLocationSample(loc, includeVertical)
	if err := b.emitter.EmitSignal(signal, sample); err != nil {
		b.logger.Error().Err(err).Str("signal", signal).Msg("Failed to emit location signal")
	}
}

func (b *LocationBridge) emitError(code constants.ErrorCode) {
	if err := b.emitter.EmitSignal(constants.SignalLocationError, code.Code(), code.Message()); err != nil {
		b.logger.Error().Err(err).Int("code", code.Code()).Msg("Failed to emit location error")
	}
}

// locationUpdatesCallback forwards every delivered fix as an update signal.
type locationUpdatesCallback struct {
	bridge          *LocationBridge
	includeVertical bool
}

// OnLocationResult is invoked by the provider on its own goroutine.
func (c *locationUpdatesCallback) OnLocationResult(result location.Result) {
	last := result.LastLocation()
	if last == nil {
		return
	}

	for _, loc := range result.Locations {
		c.bridge.emitLocation(constants.SignalLocationUpdates, loc, c.includeVertical)
	}

	c.bridge.logger.Debug().
		Int("fixes", len(result.Locations)).
		Str("provider", last.Provider).
		Int64("last_fix_time", last.Time).
		Msg("Location result forwarded")
}

// lastLocationQuery receives the outcome of a single last location query.
type lastLocationQuery struct {
	bridge          *LocationBridge
	includeVertical bool
}

func (q *lastLocationQuery) OnLastLocationSuccess(loc *location.Location) {
	if loc == nil {
		q.bridge.emitError(constants.ErrorLastKnownLocationNull)
		return
	}
	q.bridge.emitLocation(constants.SignalLastKnownLocation, *loc, q.includeVertical)
}

func (q *lastLocationQuery) OnLastLocationFailure(err error) {
	q.bridge.logger.Warn().Err(err).Msg("Last known location query failed")
	q.bridge.emitError(constants.ErrorLastKnownLocationNull)
}

// toLocationSample narrows a provider fix to the signal payload. The
// timestamp keeps only its low 32 bits.
func toLocationSample(loc location.Location, includeVertical bool) models.LocationSample {
	sample := models.LocationSample{
		Longitude: float32(loc.Longitude),
		Latitude:  float32(loc.Latitude),
		Accuracy:  loc.Accuracy,
		Altitude:  float32(loc.Altitude),
		Speed:     loc.Speed,
		Time:      int32(loc.Time),
	}
	if includeVertical {
		sample.VerticalAccuracyMeters = loc.VerticalAccuracy
	}
	return sample
}

func mustConstraint(c string) *semver.Constraints {
	constraint, err := semver.NewConstraint(c)
	if err != nil {
		panic(err)
	}
	return constraint
}
