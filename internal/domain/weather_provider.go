package domain

import "context"

// WeatherProvider fetches observations and forecasts from the upstream
// weather service. Implementations normalize units before returning.
type WeatherProvider interface {
	// ResolveLocation geocodes a place name. A miss yields
	// InvalidLocationError.
	ResolveLocation(ctx context.Context, name string) (Location, error)

	// FetchCurrent returns present conditions for a resolved location.
	FetchCurrent(ctx context.Context, loc Location) (*WeatherSnapshot, error)

	// FetchForecast returns up to days of forecast in 3-hour steps.
	FetchForecast(ctx context.Context, loc Location, days int) (ForecastSeries, error)

	// Ready reports whether the provider is usable right now, without
	// spending an upstream call.
	Ready() bool
}
