package mocks

import (
	"sync"
)

// Emission is one recorded signal.
type Emission struct {
	Name string
	Args []interface{}
}

// RecordingEmitter records every emitted signal. It is safe for concurrent use.
type RecordingEmitter struct {
	mu        sync.Mutex
	emissions []Emission
	Err       error
}

func (r *RecordingEmitter) EmitSignal(name string, args ...interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emissions = append(r.emissions, Emission{Name: name, Args: args})
	return r.Err
}

// Emissions returns a copy of the recorded signals in emission order.
func (r *RecordingEmitter) Emissions() []Emission {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Emission(nil), r.emissions...)
}

// Named returns the recorded signals with the given name.
func (r *RecordingEmitter) Named(name string) []Emission {
	var out []Emission
	for _, e := range r.Emissions() {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}
