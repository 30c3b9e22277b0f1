package vin

import (
	"strings"
	"time"

	"github.com/maiwanamini/unnamed-tms-backend/engine/domain"
)

// combineModel builds the display model: "make model", falling back to
// whichever half is present.
func combineModel(make_, modelName string) string {
	return firstNonEmpty(strings.TrimSpace(make_)+" "+strings.TrimSpace(modelName), modelName, make_)
}

// buildVehicle assembles an adapter's result, or nil when the provider gave
// no usable year, no model text and no type.
func buildVehicle(vin, yearText, model string, typ domain.TruckType, raw Raw, currentYear int) *Vehicle {
	var year *int
	if reported, ok := parseYear(yearText); ok {
		if y, ok := CoerceYear(vin, reported, currentYear); ok {
			year = intPtr(y)
		}
	}
	if year == nil && model == "" && typ == domain.TruckTypeUnknown {
		return nil
	}
	return &Vehicle{VIN: vin, Year: year, Model: model, Type: typ, Raw: raw}
}

func nowOr(now func() time.Time) func() time.Time {
	if now != nil {
		return now
	}
	return time.Now
}
