package vin

import (
	"regexp"
	"strings"

	"github.com/maiwanamini/unnamed-tms-backend/engine/domain"
)

var (
	truckTerms = []string{"truck", "rigid", "box", "straight", "lorry", "heavy", "commercial vehicle"}
	vanTerms   = []string{"van", "cargo van", "minivan"}

	// DAF XF / XG / XG+ are sold as tractor units.
	dafTractorSeries = regexp.MustCompile(`\b(xg\+?|xf)\b`)
)

type haystack string

func (h haystack) has(terms ...string) bool {
	for _, t := range terms {
		if strings.Contains(string(h), t) {
			return true
		}
	}
	return false
}

// classifyRules is evaluated in order; the first match wins.
var classifyRules = []struct {
	match func(haystack) bool
	typ   domain.TruckType
}{
	{func(h haystack) bool { return h.has("tractor") }, domain.TruckTractorUnit},
	{func(h haystack) bool { return h.has("daf") && dafTractorSeries.MatchString(string(h)) }, domain.TruckTractorUnit},
	{func(h haystack) bool { return h.has("refrigerated", "reefer") }, domain.TruckRefrigerated},
	{func(h haystack) bool { return h.has("flatbed") }, domain.TruckFlatbed},
	{func(h haystack) bool { return h.has("tanker") }, domain.TruckTanker},
	{func(h haystack) bool { return h.has("dump", "tip") }, domain.TruckTipper},
	{func(h haystack) bool { return h.has("rigid", "box", "straight truck") }, domain.TruckRigidBox},
	{func(h haystack) bool { return h.has(vanTerms...) && !h.has(truckTerms...) }, domain.TruckVanLight},
	{func(h haystack) bool { return h.has(truckTerms...) }, domain.TruckRigidBox},
}

// Classify suggests a truck type from free-text vehicle fields by substring
// matching, so "tip" also hits "multipurpose". It returns TruckTypeUnknown
// when nothing matches.
func Classify(f Fields) domain.TruckType {
	h := haystack(strings.ToLower(f.VehicleType) + " " +
		strings.ToLower(f.BodyClass) + " " +
		strings.ToLower(f.Make+" "+f.Model))
	for _, r := range classifyRules {
		if r.match(h) {
			return r.typ
		}
	}
	return domain.TruckTypeUnknown
}
