package vin

import (
	"math"
	"strconv"
	"strings"

	"github.com/maiwanamini/unnamed-tms-backend/engine/domain"
)

// yearCodes maps the 10th VIN character to the first model year it encodes.
// The cycle repeats every 30 years; I, O, Q, U, Z and 0 are never used.
var yearCodes = map[byte]int{
	'A': 1980, 'B': 1981, 'C': 1982, 'D': 1983, 'E': 1984, 'F': 1985,
	'G': 1986, 'H': 1987, 'J': 1988, 'K': 1989, 'L': 1990, 'M': 1991,
	'N': 1992, 'P': 1993, 'R': 1994, 'S': 1995, 'T': 1996, 'V': 1997,
	'W': 1998, 'X': 1999, 'Y': 2000,
	'1': 2001, '2': 2002, '3': 2003, '4': 2004, '5': 2005,
	'6': 2006, '7': 2007, '8': 2008, '9': 2009,
}

const yearCycle = 30

// ModelYearCandidates returns every model year the VIN's year code can
// stand for, ascending, up to currentYear+2. It is empty when vin is not 17
// characters after normalization or the code is unknown.
func ModelYearCandidates(vin string, currentYear int) []int {
	v := domain.NormalizeVIN(vin)
	if len(v) != 17 {
		return nil
	}
	base, ok := yearCodes[v[9]]
	if !ok {
		return nil
	}
	var out []int
	for y := base; y <= currentYear+domain.ModelYearLead; y += yearCycle {
		out = append(out, y)
	}
	return out
}

// CoerceYear checks a provider-reported model year against the VIN.
//
// A plausible year (1980 through currentYear+2) is always kept, even if it
// disagrees with the VIN code. Only an implausible year is snapped to the
// nearest candidate, the earlier one on a tie. Non-positive, non-finite and
// fractional years are rejected.
func CoerceYear(vin string, reported float64, currentYear int) (int, bool) {
	if math.IsNaN(reported) || math.IsInf(reported, 0) || reported <= 0 || reported != math.Trunc(reported) {
		return 0, false
	}
	y := int(reported)

	candidates := ModelYearCandidates(vin, currentYear)
	if len(candidates) == 0 {
		return y, true
	}
	if y >= domain.MinModelYear && y <= currentYear+domain.ModelYearLead {
		return y, true
	}

	best := candidates[0]
	for _, c := range candidates {
		if c == y {
			return y, true
		}
		if absInt(c-y) < absInt(best-y) {
			best = c
		}
	}
	return best, true
}

// parseYear reads a reported year string. ok is false when s is blank or
// not a number.
func parseYear(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
