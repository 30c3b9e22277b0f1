// Package domain defines core domain types, constants, and validation for the
// TMS backend. It acts as the validation gate at every entry point: HTTP
// handlers, the NATS decode worker and the CLI all normalize and validate
// input here before anything touches the network.
package domain

// TruckType is the fixed set of truck/van categories a fleet vehicle can be
// assigned. The VIN classifier only ever produces one of these or "".
type TruckType string

const (
	TruckTractorUnit  TruckType = "Tractor unit"
	TruckRigidBox     TruckType = "Rigid / box truck"
	TruckRefrigerated TruckType = "Refrigerated (reefer) truck"
	TruckFlatbed      TruckType = "Flatbed truck"
	TruckTanker       TruckType = "Tanker truck"
	TruckTipper       TruckType = "Tip truck / dumper"
	TruckVanLight     TruckType = "Van (light commercial)"
	TruckTypeUnknown  TruckType = ""
)

// AllTruckTypes returns every classifiable truck type in display order.
func AllTruckTypes() []TruckType {
	return []TruckType{
		TruckTractorUnit,
		TruckRigidBox,
		TruckRefrigerated,
		TruckFlatbed,
		TruckTanker,
		TruckTipper,
		TruckVanLight,
	}
}

// IsValid reports whether t is one of the known categories. The empty type is
// not valid here; callers that accept "unclassified" check for it first.
func (t TruckType) IsValid() bool {
	switch t {
	case TruckTractorUnit, TruckRigidBox, TruckRefrigerated, TruckFlatbed,
		TruckTanker, TruckTipper, TruckVanLight:
		return true
	}
	return false
}

func (t TruckType) String() string { return string(t) }

// TruckStatus is the operational state of a fleet truck.
type TruckStatus string

const (
	TruckActive   TruckStatus = "active"
	TruckInactive TruckStatus = "inactive"
)

// IsValid reports whether s is a known status.
func (s TruckStatus) IsValid() bool {
	return s == TruckActive || s == TruckInactive
}

// MinModelYear is the earliest model year the VIN year table encodes.
const MinModelYear = 1980

// ModelYearLead is how many years past the current calendar year a model year
// may run (manufacturers release next-year models early).
const ModelYearLead = 2
