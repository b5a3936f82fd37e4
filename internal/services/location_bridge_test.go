package services_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/benmeehan/location-bridge/internal/constants"
	"github.com/benmeehan/location-bridge/internal/mocks"
	"github.com/benmeehan/location-bridge/internal/models"
	"github.com/benmeehan/location-bridge/internal/services"
	"github.com/benmeehan/location-bridge/pkg/host"
	"github.com/benmeehan/location-bridge/pkg/location"
	"github.com/benmeehan/location-bridge/pkg/plugin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newActivity(granted bool, version string) *mocks.MockActivity {
	status := host.PermissionDenied
	if granted {
		status = host.PermissionGranted
	}
	activity := new(mocks.MockActivity)
	activity.On("CheckSelfPermission", host.PermissionAccessFineLocation).Return(status).Maybe()
	activity.On("PlatformVersion").Return(semver.MustParse(version)).Maybe()
	return activity
}

func newBridge(provider location.Provider, activity host.Activity, legacy bool) (*services.LocationBridge, *mocks.RecordingEmitter) {
	emitter := &mocks.RecordingEmitter{}
	bridge := services.NewLocationBridge(provider, emitter, legacy, zerolog.Nop())
	if activity != nil {
		bridge.OnMainCreate(activity)
	}
	return bridge, emitter
}

func sampleLocation() location.Location {
	return location.Location{
		Latitude:         52.520008,
		Longitude:        13.404954,
		Altitude:         34.5,
		Accuracy:         4.2,
		VerticalAccuracy: 6.5,
		Speed:            1.25,
		Time:             1700000000123,
		Provider:         "gps",
	}
}

func assertError(t *testing.T, e mocks.Emission, code constants.ErrorCode) {
	t.Helper()
	assert.Equal(t, constants.SignalLocationError, e.Name)
	require.Len(t, e.Args, 2)
	assert.Equal(t, code.Code(), e.Args[0])
	assert.Equal(t, code.Message(), e.Args[1])
}

func assertSample(t *testing.T, e mocks.Emission, signal string, loc location.Location, vertical float32) {
	t.Helper()
	assert.Equal(t, signal, e.Name)
	require.Len(t, e.Args, 1)
	sample, ok := e.Args[0].(models.LocationSample)
	require.True(t, ok)
	assert.Equal(t, float32(loc.Longitude), sample.Longitude)
	assert.Equal(t, float32(loc.Latitude), sample.Latitude)
	assert.Equal(t, loc.Accuracy, sample.Accuracy)
	assert.Equal(t, vertical, sample.VerticalAccuracyMeters)
	assert.Equal(t, float32(loc.Altitude), sample.Altitude)
	assert.Equal(t, loc.Speed, sample.Speed)
	assert.Equal(t, int32(loc.Time), sample.Time)
}

// TestLocationBridge_Start_Twice checks that a second start is a no-op.
func TestLocationBridge_Start_Twice(t *testing.T) {
	provider := new(mocks.MockProvider)
	provider.On("RequestLocationUpdates", mock.Anything, mock.Anything).Return(nil)
	bridge, emitter := newBridge(provider, newActivity(true, "13.0.0"), false)

	bridge.StartLocationUpdates(1000, 2000)
	bridge.StartLocationUpdates(1000, 2000)

	assert.True(t, bridge.UpdatesActive())
	provider.AssertNumberOfCalls(t, "RequestLocationUpdates", 1)
	assert.Empty(t, emitter.Emissions())
}

// TestLocationBridge_Start_Request checks the request passed to the provider.
func TestLocationBridge_Start_Request(t *testing.T) {
	provider := new(mocks.MockProvider)
	provider.On("RequestLocationUpdates", location.Request{
		Interval:    5 * time.Second,
		MaxWaitTime: 10 * time.Second,
		Priority:    location.PriorityHighAccuracy,
	}, mock.Anything).Return(nil)
	bridge, _ := newBridge(provider, newActivity(true, "13.0.0"), false)

	bridge.StartLocationUpdates(5000, 10000)

	provider.AssertExpectations(t)
}

// TestLocationBridge_Start_NonPositiveArguments checks arguments are passed through.
func TestLocationBridge_Start_NonPositiveArguments(t *testing.T) {
	provider := new(mocks.MockProvider)
	provider.On("RequestLocationUpdates", location.Request{
		Interval:    -5 * time.Millisecond,
		MaxWaitTime: 0,
		Priority:    location.PriorityHighAccuracy,
	}, mock.Anything).Return(nil)
	bridge, emitter := newBridge(provider, newActivity(true, "13.0.0"), false)

	bridge.StartLocationUpdates(-5, 0)

	assert.True(t, bridge.UpdatesActive())
	assert.Empty(t, emitter.Emissions())
	provider.AssertExpectations(t)
}

// TestLocationBridge_Start_DeliversUpdatesInOrder drives two provider results through the bridge.
func TestLocationBridge_Start_DeliversUpdatesInOrder(t *testing.T) {
	provider := new(mocks.MockProvider)
	provider.On("RequestLocationUpdates", mock.Anything, mock.Anything).Return(nil)
	bridge, emitter := newBridge(provider, newActivity(true, "13.0.0"), false)

	bridge.StartLocationUpdates(5000, 10000)
	require.NotNil(t, provider.Callback)

	first := sampleLocation()
	second := sampleLocation()
	second.Latitude = 48.856613
	second.Longitude = 2.352222
	second.Time = first.Time + 5000

	provider.Callback.OnLocationResult(location.Result{Locations: []location.Location{first}})
	provider.Callback.OnLocationResult(location.Result{Locations: []location.Location{second}})

	updates := emitter.Named(constants.SignalLocationUpdates)
	require.Len(t, updates, 2)
	assertSample(t, updates[0], constants.SignalLocationUpdates, first, first.VerticalAccuracy)
	assertSample(t, updates[1], constants.SignalLocationUpdates, second, second.VerticalAccuracy)
	assert.Len(t, emitter.Emissions(), 2)
}

// TestLocationBridge_Start_BatchedResult checks each location in a batch becomes one signal.
func TestLocationBridge_Start_BatchedResult(t *testing.T) {
	provider := new(mocks.MockProvider)
	provider.On("RequestLocationUpdates", mock.Anything, mock.Anything).Return(nil)
	bridge, emitter := newBridge(provider, newActivity(true, "13.0.0"), false)

	bridge.StartLocationUpdates(1000, 3000)

	batch := []location.Location{sampleLocation(), sampleLocation(), sampleLocation()}
	provider.Callback.OnLocationResult(location.Result{Locations: batch})

	assert.Len(t, emitter.Named(constants.SignalLocationUpdates), 3)
}

// TestLocationBridge_Start_ResultLogging checks the newest fix of a batch is logged and empty results are dropped.
func TestLocationBridge_Start_ResultLogging(t *testing.T) {
	var logs bytes.Buffer
	provider := new(mocks.MockProvider)
	provider.On("RequestLocationUpdates", mock.Anything, mock.Anything).Return(nil)
	emitter := &mocks.RecordingEmitter{}
	bridge := services.NewLocationBridge(provider, emitter, false, zerolog.New(&logs).Level(zerolog.DebugLevel))
	bridge.OnMainCreate(newActivity(true, "13.0.0"))

	bridge.StartLocationUpdates(1000, 3000)
	logs.Reset()

	provider.Callback.OnLocationResult(location.Result{})
	assert.Empty(t, emitter.Emissions())
	assert.Empty(t, logs.String())

	older, newer := sampleLocation(), sampleLocation()
	newer.Time = older.Time + 1000
	newer.Provider = "network"
	provider.Callback.OnLocationResult(location.Result{Locations: []location.Location{older, newer}})

	assert.Len(t, emitter.Named(constants.SignalLocationUpdates), 2)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(logs.Bytes(), &entry))
	assert.Equal(t, "Location result forwarded", entry["message"])
	assert.Equal(t, float64(2), entry["fixes"])
	assert.Equal(t, "network", entry["provider"])
	assert.Equal(t, float64(newer.Time), entry["last_fix_time"])
}

// TestLocationBridge_Start_PermissionMissing checks the permission error path.
func TestLocationBridge_Start_PermissionMissing(t *testing.T) {
	provider := new(mocks.MockProvider)
	bridge, emitter := newBridge(provider, newActivity(false, "13.0.0"), false)

	bridge.StartLocationUpdates(1000, 2000)

	assert.False(t, bridge.UpdatesActive())
	provider.AssertNotCalled(t, "RequestLocationUpdates", mock.Anything, mock.Anything)
	emissions := emitter.Emissions()
	require.Len(t, emissions, 1)
	assertError(t, emissions[0], constants.ErrorLocationPermissionMissing)
}

// TestLocationBridge_Start_NoActivity checks commands before OnMainCreate.
func TestLocationBridge_Start_NoActivity(t *testing.T) {
	provider := new(mocks.MockProvider)
	bridge, emitter := newBridge(provider, nil, false)

	bridge.StartLocationUpdates(1000, 2000)
	bridge.GetLastKnownLocation()

	assert.False(t, bridge.UpdatesActive())
	emissions := emitter.Emissions()
	require.Len(t, emissions, 2)
	assertError(t, emissions[0], constants.ErrorActivityNotFound)
	assertError(t, emissions[1], constants.ErrorActivityNotFound)
	provider.AssertExpectations(t)
}

// TestLocationBridge_Start_NoProvider checks the missing provider path.
func TestLocationBridge_Start_NoProvider(t *testing.T) {
	bridge, emitter := newBridge(nil, newActivity(true, "13.0.0"), false)

	bridge.StartLocationUpdates(1000, 2000)
	bridge.GetLastKnownLocation()

	assert.False(t, bridge.UpdatesActive())
	emissions := emitter.Emissions()
	require.Len(t, emissions, 2)
	assertError(t, emissions[0], constants.ErrorLocationUpdatesNull)
	assertError(t, emissions[1], constants.ErrorLastKnownLocationNull)
}

// TestLocationBridge_Start_RequestFailure checks a rejected request leaves the bridge idle.
func TestLocationBridge_Start_RequestFailure(t *testing.T) {
	provider := new(mocks.MockProvider)
	provider.On("RequestLocationUpdates", mock.Anything, mock.Anything).Return(errors.New("provider closed")).Once()
	provider.On("RequestLocationUpdates", mock.Anything, mock.Anything).Return(nil).Once()
	bridge, emitter := newBridge(provider, newActivity(true, "13.0.0"), false)

	bridge.StartLocationUpdates(1000, 2000)
	assert.False(t, bridge.UpdatesActive())
	emissions := emitter.Emissions()
	require.Len(t, emissions, 1)
	assertError(t, emissions[0], constants.ErrorLocationUpdatesNull)

	// A later start tries again.
	bridge.StartLocationUpdates(1000, 2000)
	assert.True(t, bridge.UpdatesActive())
	provider.AssertNumberOfCalls(t, "RequestLocationUpdates", 2)
}

// TestLocationBridge_Start_LegacyPermissionError reproduces the unconditional permission error.
func TestLocationBridge_Start_LegacyPermissionError(t *testing.T) {
	provider := new(mocks.MockProvider)
	provider.On("RequestLocationUpdates", mock.Anything, mock.Anything).Return(nil)
	bridge, emitter := newBridge(provider, newActivity(true, "13.0.0"), true)

	bridge.StartLocationUpdates(1000, 2000)

	assert.True(t, bridge.UpdatesActive())
	emissions := emitter.Emissions()
	require.Len(t, emissions, 1)
	assertError(t, emissions[0], constants.ErrorLocationPermissionMissing)
}

// TestLocationBridge_Stop_NeverStarted checks stop is a silent no-op.
func TestLocationBridge_Stop_NeverStarted(t *testing.T) {
	provider := new(mocks.MockProvider)
	bridge, emitter := newBridge(provider, newActivity(true, "13.0.0"), false)

	bridge.StopLocationUpdates()

	provider.AssertNotCalled(t, "RemoveLocationUpdates", mock.Anything)
	assert.Empty(t, provider.Calls)
	assert.Empty(t, emitter.Emissions())
}

// TestLocationBridge_Stop_Success checks stop removes the registered callback.
func TestLocationBridge_Stop_Success(t *testing.T) {
	provider := new(mocks.MockProvider)
	provider.On("RequestLocationUpdates", mock.Anything, mock.Anything).Return(nil)
	provider.On("RemoveLocationUpdates", mock.Anything).Return(nil)
	bridge, emitter := newBridge(provider, newActivity(true, "13.0.0"), false)

	bridge.StartLocationUpdates(1000, 2000)
	callback := provider.Callback

	bridge.StopLocationUpdates()
	assert.False(t, bridge.UpdatesActive())
	provider.AssertCalled(t, "RemoveLocationUpdates", callback)

	// A second stop does nothing.
	bridge.StopLocationUpdates()
	provider.AssertNumberOfCalls(t, "RemoveLocationUpdates", 1)

	// Updates can be started again.
	bridge.StartLocationUpdates(1000, 2000)
	assert.True(t, bridge.UpdatesActive())
	provider.AssertNumberOfCalls(t, "RequestLocationUpdates", 2)
	assert.Empty(t, emitter.Emissions())
}

// TestLocationBridge_Stop_RemoveFailure checks a provider error does not keep updates active.
func TestLocationBridge_Stop_RemoveFailure(t *testing.T) {
	provider := new(mocks.MockProvider)
	provider.On("RequestLocationUpdates", mock.Anything, mock.Anything).Return(nil)
	provider.On("RemoveLocationUpdates", mock.Anything).Return(location.ErrCallbackNotRegistered)
	bridge, emitter := newBridge(provider, newActivity(true, "13.0.0"), false)

	bridge.StartLocationUpdates(1000, 2000)
	bridge.StopLocationUpdates()

	assert.False(t, bridge.UpdatesActive())
	assert.Empty(t, emitter.Emissions())
}

// TestLocationBridge_GetLastKnownLocation_PermissionMissing checks a single 103 error.
func TestLocationBridge_GetLastKnownLocation_PermissionMissing(t *testing.T) {
	provider := new(mocks.MockProvider)
	bridge, emitter := newBridge(provider, newActivity(false, "13.0.0"), false)

	bridge.GetLastKnownLocation()

	provider.AssertNotCalled(t, "LastLocation", mock.Anything)
	emissions := emitter.Emissions()
	require.Len(t, emissions, 1)
	assertError(t, emissions[0], constants.ErrorLocationPermissionMissing)
	assert.Empty(t, emitter.Named(constants.SignalLastKnownLocation))
}

// TestLocationBridge_GetLastKnownLocation_Nil checks a single 102 error for a nil location.
func TestLocationBridge_GetLastKnownLocation_Nil(t *testing.T) {
	provider := new(mocks.MockProvider)
	provider.On("LastLocation", mock.Anything).Return(nil, nil)
	bridge, emitter := newBridge(provider, newActivity(true, "13.0.0"), false)

	bridge.GetLastKnownLocation()

	emissions := emitter.Emissions()
	require.Len(t, emissions, 1)
	assertError(t, emissions[0], constants.ErrorLastKnownLocationNull)
}

// TestLocationBridge_GetLastKnownLocation_Failure checks a failed query reports 102.
func TestLocationBridge_GetLastKnownLocation_Failure(t *testing.T) {
	provider := new(mocks.MockProvider)
	provider.On("LastLocation", mock.Anything).Return(nil, location.ErrProviderClosed)
	bridge, emitter := newBridge(provider, newActivity(true, "13.0.0"), false)

	bridge.GetLastKnownLocation()

	emissions := emitter.Emissions()
	require.Len(t, emissions, 1)
	assertError(t, emissions[0], constants.ErrorLastKnownLocationNull)
}

// TestLocationBridge_GetLastKnownLocation_Success checks the converted payload.
func TestLocationBridge_GetLastKnownLocation_Success(t *testing.T) {
	loc := sampleLocation()
	provider := new(mocks.MockProvider)
	provider.On("LastLocation", mock.Anything).Return(&loc, nil)
	bridge, emitter := newBridge(provider, newActivity(true, "13.0.0"), false)

	bridge.GetLastKnownLocation()

	emissions := emitter.Emissions()
	require.Len(t, emissions, 1)
	assertSample(t, emissions[0], constants.SignalLastKnownLocation, loc, loc.VerticalAccuracy)
	assert.False(t, bridge.UpdatesActive())
}

// TestLocationBridge_GetLastKnownLocation_OldPlatform checks vertical accuracy is zeroed below 8.0.0.
func TestLocationBridge_GetLastKnownLocation_OldPlatform(t *testing.T) {
	loc := sampleLocation()
	provider := new(mocks.MockProvider)
	provider.On("LastLocation", mock.Anything).Return(&loc, nil)
	bridge, emitter := newBridge(provider, newActivity(true, "7.1.2"), false)

	bridge.GetLastKnownLocation()

	emissions := emitter.Emissions()
	require.Len(t, emissions, 1)
	assertSample(t, emissions[0], constants.SignalLastKnownLocation, loc, 0)
}

// TestLocationBridge_TimestampTruncation checks the timestamp keeps its low 32 bits.
func TestLocationBridge_TimestampTruncation(t *testing.T) {
	loc := sampleLocation()
	loc.Time = 1<<32 + 42
	provider := new(mocks.MockProvider)
	provider.On("LastLocation", mock.Anything).Return(&loc, nil)
	bridge, emitter := newBridge(provider, newActivity(true, "8.0.0"), false)

	bridge.GetLastKnownLocation()

	emissions := emitter.Emissions()
	require.Len(t, emissions, 1)
	sample := emissions[0].Args[0].(models.LocationSample)
	assert.Equal(t, int32(42), sample.Time)
	assert.Equal(t, loc.VerticalAccuracy, sample.VerticalAccuracyMeters)
}

// TestLocationBridge_Call dispatches host method calls.
func TestLocationBridge_Call(t *testing.T) {
	provider := new(mocks.MockProvider)
	provider.On("RequestLocationUpdates", location.Request{
		Interval:    250 * time.Millisecond,
		MaxWaitTime: time.Second,
		Priority:    location.PriorityHighAccuracy,
	}, mock.Anything).Return(nil)
	provider.On("RemoveLocationUpdates", mock.Anything).Return(nil)
	provider.On("LastLocation", mock.Anything).Return(nil, nil)
	bridge, emitter := newBridge(provider, newActivity(true, "13.0.0"), false)

	// JSON numbers arrive as float64.
	err := bridge.Call(constants.MethodStartLocationUpdates, plugin.Args{float64(250), float64(1000)})
	assert.NoError(t, err)
	assert.True(t, bridge.UpdatesActive())

	err = bridge.Call(constants.MethodStopLocationUpdates, nil)
	assert.NoError(t, err)
	assert.False(t, bridge.UpdatesActive())

	err = bridge.Call(constants.MethodGetLastKnownLocation, nil)
	assert.NoError(t, err)
	require.Len(t, emitter.Emissions(), 1)

	err = bridge.Call("teleport", nil)
	assert.ErrorIs(t, err, plugin.ErrUnknownMethod)

	err = bridge.Call(constants.MethodStartLocationUpdates, plugin.Args{float64(250)})
	assert.ErrorIs(t, err, plugin.ErrArgument)

	err = bridge.Call(constants.MethodStartLocationUpdates, plugin.Args{"fast", float64(1000)})
	assert.ErrorIs(t, err, plugin.ErrArgument)

	provider.AssertExpectations(t)
}

// TestLocationBridge_PluginContract checks the names registered with the host.
func TestLocationBridge_PluginContract(t *testing.T) {
	bridge, _ := newBridge(nil, nil, false)

	assert.Equal(t, "LocationPlugin", bridge.Name())
	assert.Equal(t, []string{"startLocationUpdates", "stopLocationUpdates", "getLastKnowLocation"}, bridge.Methods())

	var names []string
	for _, s := range bridge.Signals() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"onLocationUpdates", "onLastKnownLocation", "onLocationError"}, names)
}
