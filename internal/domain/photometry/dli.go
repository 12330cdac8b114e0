package photometry

import "math"

// MaxPhotoperiod is the number of hours in a day.
const MaxPhotoperiod = 24.0

const secondsPerHour = 3600

// DLI converts PPFD (µmol/m²/s) held for hours per day into a daily light
// integral in mol/m²/day.
func DLI(ppfd, hours float64) float64 {
	return ppfd * hours * secondsPerHour / 1e6
}

// ValidatePhotoperiod rejects hours outside [0,24].
func ValidatePhotoperiod(hours float64) error {
	if math.IsNaN(hours) || hours < 0 || hours > MaxPhotoperiod {
		return invalidParameter("photoperiod must be in [0,%v] hours, got %v", MaxPhotoperiod, hours)
	}
	return nil
}

// ApplyDLI sets DLI on every point from its PPFD.
func ApplyDLI(points []GridPoint, hours float64) error {
	if err := ValidatePhotoperiod(hours); err != nil {
		return err
	}
	for i := range points {
		points[i].DLI = DLI(points[i].PPFD, hours)
	}
	return nil
}
