// Package plugin defines the contract between a scripting host and the
// plugins it loads: named methods in, named signals out.
package plugin

import (
	"errors"
	"fmt"

	"github.com/benmeehan/location-bridge/pkg/host"
)

var (
	ErrUnknownMethod = errors.New("unknown plugin method")
	ErrUnknownSignal = errors.New("unknown plugin signal")
	ErrSignalArity   = errors.New("signal argument count mismatch")
	ErrArgument      = errors.New("invalid method argument")
)

// SignalInfo declares a signal and the names of its parameters.
type SignalInfo struct {
	Name   string
	Params []string
}

// Emitter delivers signals to the host. Implementations must be safe for
// use from any goroutine.
type Emitter interface {
	EmitSignal(name string, args ...interface{}) error
}

// Plugin is implemented by everything a host can load.
type Plugin interface {
	Name() string
	Signals() []SignalInfo
	Methods() []string
	// OnMainCreate is called once on the host main loop before any method.
	OnMainCreate(activity host.Activity)
	// Call invokes a method on the host main loop.
	Call(method string, args Args) error
}

// Args holds decoded method arguments.
type Args []interface{}

// Int returns argument i as an int. JSON numbers decode as float64 and are
// truncated.
func (a Args) Int(i int) (int, error) {
	if i >= len(a) {
		return 0, fmt.Errorf("%w: missing argument %d", ErrArgument, i)
	}
	switch v := a[i].(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	default:
		return 0, fmt.Errorf("%w: argument %d is %T, want int", ErrArgument, i, a[i])
	}
}
