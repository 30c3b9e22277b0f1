// Package fleet manages the trucks a company registers, stored as (:Truck)
// nodes in Neo4j.
package fleet

import (
	"time"

	"github.com/maiwanamini/unnamed-tms-backend/engine/domain"
)

// Truck is a fleet vehicle.
type Truck struct {
	ID           string             `json:"id"`
	CompanyID    string             `json:"companyId,omitempty"`
	LicensePlate string             `json:"licensePlate"`
	VIN          string             `json:"vin,omitempty"`
	Brand        string             `json:"brand,omitempty"`
	Model        string             `json:"model,omitempty"`
	Year         *int               `json:"year,omitempty"`
	Type         domain.TruckType   `json:"type,omitempty"`
	Status       domain.TruckStatus `json:"status"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

// Input carries the writable fields of a truck. Nil fields are left
// unchanged on Update; on Create they take their defaults.
type Input struct {
	CompanyID    *string             `json:"companyId,omitempty"`
	LicensePlate *string             `json:"licensePlate,omitempty"`
	VIN          *string             `json:"vin,omitempty"`
	Brand        *string             `json:"brand,omitempty"`
	Model        *string             `json:"model,omitempty"`
	Year         *int                `json:"year,omitempty"`
	Type         *domain.TruckType   `json:"type,omitempty"`
	Status       *domain.TruckStatus `json:"status,omitempty"`
}

// apply copies the set fields of in onto t, normalizing plate and VIN.
func (in Input) apply(t *Truck) {
	if in.CompanyID != nil {
		t.CompanyID = *in.CompanyID
	}
	if in.LicensePlate != nil {
		t.LicensePlate = domain.NormalizePlate(*in.LicensePlate)
	}
	if in.VIN != nil {
		t.VIN = domain.NormalizeVIN(*in.VIN)
	}
	if in.Brand != nil {
		t.Brand = *in.Brand
	}
	if in.Model != nil {
		t.Model = *in.Model
	}
	if in.Year != nil {
		y := *in.Year
		t.Year = &y
	}
	if in.Type != nil {
		t.Type = *in.Type
	}
	if in.Status != nil {
		t.Status = *in.Status
	}
}

func (t Truck) fields() domain.TruckFields {
	return domain.TruckFields{
		LicensePlate: t.LicensePlate,
		VIN:          t.VIN,
		Year:         t.Year,
		Type:         t.Type,
		Status:       t.Status,
	}
}

// Page is one slice of a company's trucks.
type Page struct {
	Items  []Truck `json:"items"`
	Total  int64   `json:"total"`
	Offset int     `json:"offset"`
	Limit  int     `json:"limit"`
}
