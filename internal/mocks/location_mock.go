package mocks

import (
	"github.com/benmeehan/location-bridge/pkg/location"
	"github.com/stretchr/testify/mock"
)

// MockProvider is a mock implementation of the location.Provider interface.
// It remembers the last registered callback so tests can deliver results.
type MockProvider struct {
	mock.Mock

	Callback location.Callback
}

func (m *MockProvider) RequestLocationUpdates(req location.Request, callback location.Callback) error {
	m.Callback = callback
	args := m.Called(req, callback)
	return args.Error(0)
}

func (m *MockProvider) RemoveLocationUpdates(callback location.Callback) error {
	args := m.Called(callback)
	return args.Error(0)
}

// LastLocation answers synchronously with the configured location or error.
func (m *MockProvider) LastLocation(listener location.LastLocationListener) {
	args := m.Called(listener)
	if err := args.Error(1); err != nil {
		listener.OnLastLocationFailure(err)
		return
	}
	loc, _ := args.Get(0).(*location.Location)
	listener.OnLastLocationSuccess(loc)
}
