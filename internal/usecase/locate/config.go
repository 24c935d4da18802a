package locate

import "geolocate/internal/domain"

// Mode selects what the service does on construction.
type Mode string

const (
	ModeLocate Mode = "locate"
	ModeWatch  Mode = "watch"
)

// Config is the immutable service configuration.
type Config struct {
	LocateOnInit     bool
	LocateOnInitMode Mode
	PositionOptions  domain.PositionOptions
}

// Default settings.
const (
	defaultTimeoutMillis     = 10000
	defaultMaxCacheAgeMillis = 0
)

// DefaultConfig returns the configuration used when the caller supplies none.
func DefaultConfig() Config {
	return Config{
		LocateOnInit:     true,
		LocateOnInitMode: ModeLocate,
		PositionOptions: domain.PositionOptions{
			EnableHighAccuracy: false,
			TimeoutMillis:      defaultTimeoutMillis,
			MaxCacheAgeMillis:  defaultMaxCacheAgeMillis,
		},
	}
}
