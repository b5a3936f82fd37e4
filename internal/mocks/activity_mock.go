package mocks

import (
	"github.com/Masterminds/semver/v3"
	"github.com/benmeehan/location-bridge/pkg/host"
	"github.com/stretchr/testify/mock"
)

// MockActivity is a mock implementation of the host.Activity interface
type MockActivity struct {
	mock.Mock
}

func (m *MockActivity) CheckSelfPermission(permission string) host.PermissionStatus {
	args := m.Called(permission)
	return args.Get(0).(host.PermissionStatus)
}

func (m *MockActivity) PlatformVersion() *semver.Version {
	args := m.Called()
	v, _ := args.Get(0).(*semver.Version)
	return v
}
