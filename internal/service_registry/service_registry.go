package service_registry

import (
	"errors"
	"fmt"

	"github.com/benmeehan/location-bridge/internal/registry"
	"github.com/benmeehan/location-bridge/internal/services"
	"github.com/benmeehan/location-bridge/internal/utils"
	"github.com/benmeehan/location-bridge/pkg/host"
	"github.com/benmeehan/location-bridge/pkg/location"
	"github.com/benmeehan/location-bridge/pkg/mqtt"
	"github.com/rs/zerolog"
)

// ServiceRegistry manages the lifecycle of various services in the system.
type ServiceRegistry struct {
	services    map[string]registry.Service // Stores registered services
	serviceKeys []string                    // Maintains order of service registration
	mqttClient  mqtt.MQTTClient
	Logger      zerolog.Logger
}

// NewServiceRegistry initializes a new service registry with dependencies.
func NewServiceRegistry(mqttClient mqtt.MQTTClient, logger zerolog.Logger) *ServiceRegistry {
	return &ServiceRegistry{
		services:   make(map[string]registry.Service),
		mqttClient: mqttClient,
		Logger:     logger,
	}
}

// RegisterService adds a new service to the registry.
func (sr *ServiceRegistry) RegisterService(name string, svc registry.Service) {
	if _, exists := sr.services[name]; exists {
		sr.Logger.Warn().Msgf("Service %s is already registered", name)
		return
	}
	sr.services[name] = svc
	sr.serviceKeys = append(sr.serviceKeys, name)
	sr.Logger.Info().Msgf("Registered service: %s", name)
}

// ServiceNames returns the registered service names in start order.
func (sr *ServiceRegistry) ServiceNames() []string {
	return append([]string(nil), sr.serviceKeys...)
}

// StartServices initiates all registered services in order.
// If a service fails to start, it stops already started services.
func (sr *ServiceRegistry) StartServices() error {
	startedServices := []string{}

	for _, name := range sr.serviceKeys {
		svc := sr.services[name]
		sr.Logger.Info().Msgf("Starting service: %s", name)
		if err := svc.Start(); err != nil {
			sr.Logger.Error().Err(err).Msgf("Failed to start service: %s", name)

			sr.Logger.Warn().Msg("Stopping already started services due to startup failure...")
			for i := len(startedServices) - 1; i >= 0; i-- {
				_ = sr.services[startedServices[i]].Stop()
			}
			return fmt.Errorf("failed to start %s: %w", name, err)
		}
		startedServices = append(startedServices, name)
	}

	return nil
}

// StopServices stops all services in reverse order.
func (sr *ServiceRegistry) StopServices() error {
	var stopErrors []error
	for i := len(sr.serviceKeys) - 1; i >= 0; i-- {
		name := sr.serviceKeys[i]
		if err := sr.services[name].Stop(); err != nil {
			stopErrors = append(stopErrors, fmt.Errorf("failed to stop %s: %w", name, err))
		}
	}
	if len(stopErrors) > 0 {
		for _, e := range stopErrors {
			sr.Logger.Error().Err(e).Msg("Service stop failure")
		}
		return errors.Join(stopErrors...)
	}
	return nil
}

// RegisterServices builds the location provider, the bridge plugin and its
// host from configuration. The provider is registered first so it outlives the host.
func (sr *ServiceRegistry) RegisterServices(config *utils.Config) error {
	sources, err := sr.locationSources(config)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(sources))
	for _, src := range sources {
		names = append(names, src.Name())
	}
	providerService := services.NewLocationProviderService(
		location.NewFusedProvider(config.SourceTimeout(), sr.Logger.With().Str("component", "fused_provider").Logger(), sources...),
		names,
		sr.Logger,
	)

	activity, err := host.NewStaticActivity(config.Host.PlatformVersion, config.Host.GrantedPermissions)
	if err != nil {
		return fmt.Errorf("invalid platform version %q: %w", config.Host.PlatformVersion, err)
	}

	hostService := services.NewPluginHostService(
		config.Host.TopicPrefix,
		config.Host.QOS,
		config.Host.QueueSize,
		sr.mqttClient,
		activity,
		sr.Logger.With().Str("component", "plugin_host").Logger(),
	)

	bridge := services.NewLocationBridge(
		providerService.Provider(),
		hostService,
		config.Bridge.LegacyPermissionError,
		sr.Logger.With().Str("component", "location_bridge").Logger(),
	)
	if err := hostService.RegisterPlugin(bridge); err != nil {
		return err
	}

	sr.RegisterService("location_provider", providerService)
	sr.RegisterService("plugin_host", hostService)

	sr.Logger.Info().Msgf("Registered services in order: %v", sr.serviceKeys)
	return nil
}

// locationSources creates the enabled sources, most accurate first.
func (sr *ServiceRegistry) locationSources(config *utils.Config) ([]location.Source, error) {
	var sources []location.Source

	if config.Location.GPS.Enabled {
		sources = append(sources, location.NewDeviceSensorProvider(config.Location.GPS.DevicePort, config.Location.GPS.BaudRate))
	}

	if config.Location.Network.Enabled {
		provider, err := location.NewGoogleGeolocationProvider(
			config.Location.Network.MapsAPIKey,
			config.Location.Network.ModemIndex,
			sr.Logger.With().Str("component", "network_source").Logger(),
		)
		if err != nil {
			sr.Logger.Error().Err(err).Msg("failed to create Google Geolocation provider")
			return nil, err
		}
		sources = append(sources, provider)
	}

	return sources, nil
}
