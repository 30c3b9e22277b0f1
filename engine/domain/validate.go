package domain

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// VIN format: 17 alphanumeric characters, excluding I, O, Q. The check digit
// (position 9) is not verified; schemes differ by region.
var vinRegex = regexp.MustCompile(`^[A-HJ-NPR-Z0-9]{17}$`)

// Trucks registered by hand may predate the VIN year table.
const minTruckYear = 1900

// NormalizeVIN trims, uppercases and removes every whitespace rune.
func NormalizeVIN(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, strings.ToUpper(strings.TrimSpace(s)))
}

// ValidVINFormat reports whether vin is structurally valid.
func ValidVINFormat(vin string) bool {
	return vinRegex.MatchString(vin)
}

// ValidateVIN normalizes raw and returns it, or a ValidationError wrapping
// ErrVINRequired / ErrVINInvalid.
func ValidateVIN(raw string) (string, error) {
	vin := NormalizeVIN(raw)
	if vin == "" {
		return "", NewValidationError("vin", raw, ErrVINRequired)
	}
	if !ValidVINFormat(vin) {
		return "", NewValidationError("vin", vin, ErrVINInvalid)
	}
	return vin, nil
}

// NormalizePlate uppercases a license plate and collapses inner whitespace so
// "ab 12  cd" and "AB 12 CD" collide on the per-company uniqueness check.
func NormalizePlate(s string) string {
	return strings.Join(strings.Fields(strings.ToUpper(s)), " ")
}

// TruckFields is the subset of a truck that validation cares about.
type TruckFields struct {
	LicensePlate string
	VIN          string
	Year         *int
	Type         TruckType
	Status       TruckStatus
}

// ValidateTruck checks a truck before it is written.
func ValidateTruck(t TruckFields, currentYear int) error {
	if NormalizePlate(t.LicensePlate) == "" {
		return NewValidationError("licensePlate", t.LicensePlate, ErrInvalidTruck)
	}
	if t.VIN != "" && !ValidVINFormat(NormalizeVIN(t.VIN)) {
		return NewValidationError("vin", t.VIN, ErrVINInvalid)
	}
	if t.Year != nil {
		if y := *t.Year; y < minTruckYear || y > currentYear+ModelYearLead {
			return NewValidationError("year", fmt.Sprintf("%d", y), ErrInvalidTruck)
		}
	}
	if t.Type != TruckTypeUnknown && !t.Type.IsValid() {
		return NewValidationError("type", string(t.Type), ErrInvalidTruck)
	}
	if t.Status != "" && !t.Status.IsValid() {
		return NewValidationError("status", string(t.Status), ErrInvalidTruck)
	}
	return nil
}
