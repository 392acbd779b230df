// Package curve provides the hourly series used throughout the simulator.
package curve

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Hours is the number of hourly values in one simulated year.
const Hours = 8760

// Curve is an hour-indexed series. Curves shorter than Hours are valid;
// lookups outside the defined range return the caller's fallback.
type Curve []float64

// ErrEmpty is returned when a numeric column holds no values.
var ErrEmpty = errors.New("curve is empty")

// Constant returns a full-year curve with every hour set to v.
func Constant(v float64) Curve {
	c := make(Curve, Hours)
	for i := range c {
		c[i] = v
	}
	return c
}

// New returns a zeroed full-year curve.
func New() Curve { return make(Curve, Hours) }

// At returns the value at hour h, or fallback when h is outside the curve.
func (c Curve) At(h int, fallback float64) float64 {
	if h < 0 || h >= len(c) {
		return fallback
	}
	return c[h]
}

// Defined reports whether the curve carries at least one value.
func (c Curve) Defined() bool { return len(c) > 0 }

// Clone returns an independent copy.
func (c Curve) Clone() Curve {
	if c == nil {
		return nil
	}
	cp := make(Curve, len(c))
	copy(cp, c)
	return cp
}

// Equal reports whether both curves hold exactly the same values.
func (c Curve) Equal(o Curve) bool {
	if len(c) != len(o) {
		return false
	}
	for i := range c {
		if c[i] != o[i] {
			return false
		}
	}
	return true
}

// Sum returns the sum of all values.
func (c Curve) Sum() float64 {
	if len(c) == 0 {
		return 0
	}
	return floats.Sum(c)
}

// Summary holds the aggregate measures reported per round.
type Summary struct {
	Mean float64 `json:"mean" yaml:"mean"`
	Min  float64 `json:"min" yaml:"min"`
	Max  float64 `json:"max" yaml:"max"`
}

// Summarize computes mean, min and max. An empty curve yields a zero Summary.
func (c Curve) Summarize() Summary {
	if len(c) == 0 {
		return Summary{}
	}
	return Summary{
		Mean: stat.Mean(c, nil),
		Min:  floats.Min(c),
		Max:  floats.Max(c),
	}
}

// ClampNegative replaces negative values with zero in place and returns the
// number of values changed.
func (c Curve) ClampNegative() int {
	n := 0
	for i, v := range c {
		if v < 0 {
			c[i] = 0
			n++
		}
	}
	return n
}

// Validate checks every value with the provided predicate.
func (c Curve) Validate(ok func(float64) bool) error {
	for i, v := range c {
		if !ok(v) {
			return fmt.Errorf("invalid value %v at hour %d", v, i)
		}
	}
	return nil
}

// Read parses one numeric value per line. Blank lines are skipped and a
// single-column CSV header line is tolerated.
func Read(r io.Reader) (Curve, error) {
	var c Curve
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		// only the first column of a csv row is read
		if i := strings.IndexByte(text, ','); i >= 0 {
			text = strings.TrimSpace(text[:i])
		}
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			if line == 1 && len(c) == 0 {
				continue
			}
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		c = append(c, v)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(c) == 0 {
		return nil, ErrEmpty
	}
	return c, nil
}
