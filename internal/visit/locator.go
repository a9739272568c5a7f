package visit

import (
	"context"
	"errors"
	"fmt"
	"math"

	"fieldsales/backend/internal/domain"
)

var (
	ErrLocationUnsupported = errors.New("location is not supported on this device")
	ErrLocationDenied      = errors.New("location permission denied")
	ErrLocationTimeout     = errors.New("location request timed out")
	ErrInvalidLocation     = errors.New("location coordinates are out of range")
)

// Locator acquires the device position.
type Locator interface {
	Locate(ctx context.Context) (domain.Location, error)
}

type LocatorFunc func(ctx context.Context) (domain.Location, error)

func (f LocatorFunc) Locate(ctx context.Context) (domain.Location, error) {
	return f(ctx)
}

// FixedLocator reports a position the device already resolved.
type FixedLocator domain.Location

func (l FixedLocator) Locate(context.Context) (domain.Location, error) {
	return domain.Location(l), nil
}

type failingLocator struct {
	err error
}

func (l failingLocator) Locate(context.Context) (domain.Location, error) {
	return domain.Location{}, l.err
}

// FromRequest turns what the device posted into a Locator.
func FromRequest(req domain.VisitStartRequest) Locator {
	switch {
	case req.Denied:
		return failingLocator{err: ErrLocationDenied}
	case req.Latitude == nil || req.Longitude == nil:
		return failingLocator{err: ErrLocationUnsupported}
	}
	return FixedLocator{Latitude: *req.Latitude, Longitude: *req.Longitude, Address: req.Address}
}

// ReverseGeocode renders coordinates as "lat, lng" to four decimals.
func ReverseGeocode(lat, lng float64) string {
	return fmt.Sprintf("%.4f, %.4f", lat, lng)
}

func Validate(loc domain.Location) error {
	if math.IsNaN(loc.Latitude) || math.IsNaN(loc.Longitude) ||
		loc.Latitude < -90 || loc.Latitude > 90 ||
		loc.Longitude < -180 || loc.Longitude > 180 {
		return ErrInvalidLocation
	}
	return nil
}
