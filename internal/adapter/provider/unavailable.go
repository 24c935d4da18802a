package provider

import (
	"context"

	"geolocate/internal/domain"
)

// Unavailable stands in for a host without a positioning capability.
type Unavailable struct{}

// NewUnavailable creates an Unavailable provider.
func NewUnavailable() *Unavailable { return &Unavailable{} }

func (Unavailable) Name() string    { return "unavailable" }
func (Unavailable) Supported() bool { return false }

func (Unavailable) RequestOnce(context.Context, domain.PositionOptions, domain.ResultHandler) error {
	return domain.ErrUnsupported
}

func (Unavailable) StartWatch(context.Context, domain.PositionOptions, domain.ResultHandler) (domain.WatchHandle, error) {
	return "", domain.ErrUnsupported
}

func (Unavailable) CancelWatch(domain.WatchHandle) {}
