package location

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"googlemaps.github.io/maps"
)

// GoogleGeolocationProvider uses the Google Maps API to get location data.
type GoogleGeolocationProvider struct {
	client     *maps.Client // Maps API client for making geolocation requests
	modemIndex int          // ModemManager index used for the cell tower scan
	logger     zerolog.Logger
	now        func() time.Time
}

// NewGoogleGeolocationProvider creates a new GoogleGeolocationProvider instance.
// Extra client options are applied after the API key.
func NewGoogleGeolocationProvider(apiKey string, modemIndex int, logger zerolog.Logger, opts ...maps.ClientOption) (*GoogleGeolocationProvider, error) {
	c, err := maps.NewClient(append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, err
	}

	return &GoogleGeolocationProvider{
		client:     c,
		modemIndex: modemIndex,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// Name identifies the source in emitted fixes.
func (g *GoogleGeolocationProvider) Name() string {
	return "network"
}

// GetLocation retrieves the device's location using Google Maps Geolocation API.
// Missing Wi-Fi or cell data is not fatal, the request falls back to the IP address.
func (g *GoogleGeolocationProvider) GetLocation(ctx context.Context) (Location, error) {
	wifiAPs, err := getWiFiAccessPoints(ctx)
	if err != nil {
		g.logger.Debug().Err(err).Msg("Wi-Fi scan unavailable")
	}

	cellTowers, err := getCellTowers(ctx, g.modemIndex)
	if err != nil {
		g.logger.Debug().Err(err).Int("modem", g.modemIndex).Msg("Cell tower scan unavailable")
	}

	req := &maps.GeolocationRequest{
		ConsiderIP:       true,
		WiFiAccessPoints: wifiAPs,
		CellTowers:       cellTowers,
	}

	resp, err := g.client.Geolocate(ctx, req)
	if err != nil {
		return Location{}, err
	}

	return Location{
		Latitude:  resp.Location.Lat,
		Longitude: resp.Location.Lng,
		Accuracy:  float32(resp.Accuracy),
		Time:      g.now().UnixMilli(),
		Provider:  g.Name(),
	}, nil
}
