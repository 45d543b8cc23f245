// Package units provides shared constants and conversion for length units.
// Poses are stored in inches; other units are only used for display.
package units

// Unit constants
const (
	Inch  = "in"
	Foot  = "ft"
	Meter = "m"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{Inch, Foot, Meter}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "in, ft, m"
}

const inchesPerMeter = 39.37007874015748

// ConvertLength converts a length in inches to the target units.
// Unknown units fall back to inches.
func ConvertLength(inches float64, targetUnits string) float64 {
	switch targetUnits {
	case Foot:
		return inches / 12
	case Meter:
		return inches / inchesPerMeter
	default:
		return inches
	}
}

// ToInches converts a length expressed in the given units to inches.
func ToInches(v float64, fromUnits string) float64 {
	switch fromUnits {
	case Foot:
		return v * 12
	case Meter:
		return v * inchesPerMeter
	default:
		return v
	}
}
