package progression

// DefaultDisplayCap is the largest value shown for infection and whisper.
const DefaultDisplayCap = 100

// Caps maps real resource values to display values.
type Caps struct {
	DisplayCap float64
}

// NewCaps returns Caps for displayCap, or the default when it is not positive.
func NewCaps(displayCap float64) Caps {
	if displayCap <= 0 {
		displayCap = DefaultDisplayCap
	}
	return Caps{DisplayCap: displayCap}
}

// Display returns min(real, cap).
func (c Caps) Display(real float64) float64 {
	return min(real, c.DisplayCap)
}

// Exceeded reports whether real is above the cap.
func (c Caps) Exceeded(real float64) bool {
	return real > c.DisplayCap
}
