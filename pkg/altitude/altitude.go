// Package altitude converts barometric pressure to altitude using the
// International Standard Atmosphere model.
package altitude

import (
	"fmt"
	"math"
)

// ISA constants.
const (
	SeaLevelTemperature = 288.15    // K
	SeaLevelPressure    = 1013.25   // hPa
	LapseRate           = 0.0065    // K/m
	GasConstant         = 8.31446   // J/(mol·K)
	Gravity             = 9.80665   // m/s²
	MolarMassAir        = 0.0289644 // kg/mol

	MetersToFeet = 3.28084
	// MpsToFpm converts m/s to ft/min.
	MpsToFpm = MetersToFeet * 60

	hpaToPa = 100.0
	paToHpa = 0.01
)

// Calibration step sizes used when nudging the displayed altitude.
const (
	MetricStepMeters = 10.0
	ImperialStepFeet = 25.0
)

// CalculateAltitude returns the altitude in meters for the given pressure and
// reference pressure (QNH), both in hPa.
//
// A first estimate is computed at sea-level temperature, then the formula is
// evaluated again with the ISA temperature at that estimated altitude.
// Callers must not pass non-positive pressures. NaN inputs yield NaN.
func CalculateAltitude(pressureHPa, qnhHPa float64) float64 {
	if pressureHPa == qnhHPa {
		return 0
	}

	p := pressureHPa * hpaToPa
	p0 := qnhHPa * hpaToPa

	rough := hypsometric(p, p0, SeaLevelTemperature)
	return hypsometric(p, p0, TemperatureAt(rough))
}

// CalculateQNHFromAltitude back-solves the reference pressure (hPa) given the
// current pressure (hPa) and a known altitude in meters.
func CalculateQNHFromAltitude(pressureHPa, knownAltitudeM float64) float64 {
	if knownAltitudeM == 0 {
		return pressureHPa
	}

	p := pressureHPa * hpaToPa
	t := TemperatureAt(knownAltitudeM)
	p0 := p * math.Exp((Gravity*MolarMassAir*knownAltitudeM)/(GasConstant*t))
	return p0 * paToHpa
}

// PressureAtAltitude is the inverse of CalculateQNHFromAltitude: the pressure
// (hPa) observed at altitudeM when the reference pressure is qnhHPa.
func PressureAtAltitude(qnhHPa, altitudeM float64) float64 {
	if altitudeM == 0 {
		return qnhHPa
	}
	t := TemperatureAt(altitudeM)
	p0 := qnhHPa * hpaToPa
	return p0 / math.Exp((Gravity*MolarMassAir*altitudeM)/(GasConstant*t)) * paToHpa
}

// TemperatureAt returns the ISA temperature (K) at the given altitude.
func TemperatureAt(altitudeM float64) float64 {
	return SeaLevelTemperature - LapseRate*altitudeM
}

func hypsometric(pPa, p0Pa, temperature float64) float64 {
	return -(GasConstant * temperature) * math.Log(pPa/p0Pa) / (Gravity * MolarMassAir)
}

// FormatAltitude renders an altitude in meters using the selected unit system.
func FormatAltitude(meters float64, useMetric bool) string {
	if math.IsNaN(meters) {
		return "--"
	}
	if useMetric {
		return fmt.Sprintf("%.0f m", meters)
	}
	return fmt.Sprintf("%.0f ft", meters*MetersToFeet)
}

// FormatVerticalSpeed renders a vertical speed in m/s (metric) or ft/min.
func FormatVerticalSpeed(mps float64, useMetric bool) string {
	if math.IsNaN(mps) {
		return "--"
	}
	if useMetric {
		return fmt.Sprintf("%.1f m/s", mps)
	}
	return fmt.Sprintf("%.0f ft/min", mps*MpsToFpm)
}

// StepMeters returns the calibration step in meters for the unit system.
func StepMeters(useMetric bool) float64 {
	if useMetric {
		return MetricStepMeters
	}
	return ImperialStepFeet / MetersToFeet
}
