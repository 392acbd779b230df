package curve

import "fmt"

// NormalizeFraction accepts an availability expressed either as a fraction
// in [0,1] or as a percentage in [0,100] and returns the fraction.
func NormalizeFraction(v float64) (float64, error) {
	switch {
	case v < 0 || v > 100:
		return 0, fmt.Errorf("availability %v outside [0,1] or [0,100]", v)
	case v > 1:
		return v / 100, nil
	default:
		return v, nil
	}
}

// NormalizeFractions normalizes a whole curve. When any value exceeds 1 the
// curve is read as percentages, so a 1 in a percent curve means 1%.
func NormalizeFractions(c Curve) (Curve, error) {
	if len(c) == 0 {
		return nil, nil
	}
	percent := false
	for i, v := range c {
		if v < 0 || v > 100 {
			return nil, fmt.Errorf("availability %v at hour %d outside [0,1] or [0,100]", v, i)
		}
		if v > 1 {
			percent = true
		}
	}
	out := c.Clone()
	if percent {
		for i := range out {
			out[i] /= 100
		}
	}
	return out, nil
}

// IsFraction reports whether v lies in [0,1].
func IsFraction(v float64) bool { return v >= 0 && v <= 1 }
