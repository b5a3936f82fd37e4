package services

import (
	"errors"

	"github.com/benmeehan/location-bridge/pkg/location"
	"github.com/rs/zerolog"
)

// LocationProviderService owns the fused provider's lifecycle.
type LocationProviderService struct {
	provider *location.FusedProvider
	sources  []string
	logger   zerolog.Logger
	running  bool
}

// NewLocationProviderService creates a LocationProviderService over sources.
func NewLocationProviderService(provider *location.FusedProvider, sources []string, logger zerolog.Logger) *LocationProviderService {
	return &LocationProviderService{
		provider: provider,
		sources:  sources,
		logger:   logger,
	}
}

// Provider returns the managed provider.
func (l *LocationProviderService) Provider() *location.FusedProvider {
	return l.provider
}

// Start only checks that at least one source is configured. Sources are
// opened on demand by the provider's subscriptions.
func (l *LocationProviderService) Start() error {
	if l.running {
		l.logger.Warn().Msg("LocationProviderService is already running")
		return errors.New("location provider service is already running")
	}
	if len(l.sources) == 0 {
		return location.ErrNoSources
	}

	l.running = true
	l.logger.Info().Strs("sources", l.sources).Msg("LocationProviderService started")
	return nil
}

// Stop cancels all subscriptions and closes the sources.
func (l *LocationProviderService) Stop() error {
	if !l.running {
		l.logger.Warn().Msg("LocationProviderService is not running")
		return errors.New("location provider service is not running")
	}

	if err := l.provider.Close(); err != nil {
		l.logger.Error().Err(err).Msg("Failed to close location provider")
		return err
	}

	l.running = false
	l.logger.Info().Msg("LocationProviderService stopped")
	return nil
}
