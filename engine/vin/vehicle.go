// Package vin decodes Vehicle Identification Numbers into fleet truck data.
//
// Two upstream decoders are supported: Vincario (vindecoder.eu), which is
// keyed and EU-oriented, and the free NHTSA vPIC API. A Decoder validates
// the VIN locally, queries one or both providers depending on its Mode and
// reconciles their answers into a single Vehicle with a model year checked
// against the VIN's year code and a truck type from a keyword classifier.
package vin

import (
	"context"

	"github.com/maiwanamini/unnamed-tms-backend/engine/domain"
)

// Vehicle is a decoded VIN.
type Vehicle struct {
	VIN   string           `json:"vin"`
	Year  *int             `json:"year"`
	Model string           `json:"model"`
	Type  domain.TruckType `json:"type"`
	Raw   Raw              `json:"raw"`
}

// Raw keeps what a provider reported, before reconciliation. It is
// diagnostic only.
type Raw struct {
	Provider    string         `json:"provider"`
	Make        string         `json:"make,omitempty"`
	Model       string         `json:"model,omitempty"`
	VehicleType string         `json:"vehicleType,omitempty"`
	BodyClass   string         `json:"bodyClass,omitempty"`
	Providers   map[string]Raw `json:"providers,omitempty"`
}

// Fields is the classifier input.
type Fields struct {
	VehicleType string
	BodyClass   string
	Make        string
	Model       string
}

// Provider is one upstream decoder. Decode returns (nil, nil) when the
// provider has nothing useful for vin, or is not configured.
type Provider interface {
	Name() string
	Decode(ctx context.Context, vin string) (*Vehicle, error)
}

func intPtr(v int) *int { return &v }
