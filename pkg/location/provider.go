package location

import (
	"context"
	"errors"
)

var (
	ErrProviderClosed        = errors.New("location provider is closed")
	ErrNilCallback           = errors.New("location callback is nil")
	ErrCallbackNotRegistered = errors.New("location callback is not registered")
	ErrNoSources             = errors.New("no location sources configured")
)

// Source produces a single fix on demand.
type Source interface {
	Name() string
	GetLocation(ctx context.Context) (Location, error)
}

// Callback receives periodic results for a subscription. Results are
// delivered on the provider's goroutine.
type Callback interface {
	OnLocationResult(result Result)
}

// LastLocationListener receives the outcome of a LastLocation query. The
// location passed to OnLastLocationSuccess may be nil.
type LastLocationListener interface {
	OnLastLocationSuccess(loc *Location)
	OnLastLocationFailure(err error)
}

// Provider is an asynchronous, callback driven location service.
type Provider interface {
	RequestLocationUpdates(req Request, callback Callback) error
	RemoveLocationUpdates(callback Callback) error
	LastLocation(listener LastLocationListener)
}
