package registry

// Service is the lifecycle contract for everything the registry manages.
type Service interface {
	Start() error
	Stop() error
}
