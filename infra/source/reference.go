package source

import (
	"errors"
	"fmt"
	"os"

	"github.com/kilianp07/meurit/core/curve"
	"github.com/kilianp07/meurit/infra/logger"
)

// ReadReferenceCurve reads a reference price curve. A length other than a
// full year is accepted with a warning and negative prices are clamped to
// zero.
func ReadReferenceCurve(path string, log logger.Logger) (curve.Curve, error) {
	if log == nil {
		log = logger.NopLogger{}
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &MissingResourceError{Path: path}
		}
		return nil, err
	}
	defer func() { _ = f.Close() }()

	c, err := curve.Read(f)
	if err != nil {
		return nil, &SourceFormatError{File: path, Reason: "reference curve could not be read", Err: err}
	}
	if len(c) != curve.Hours {
		log.Warnf("reference curve %s has %d values, expected %d", path, len(c), curve.Hours)
	}
	if n := c.ClampNegative(); n > 0 {
		log.Warnf("reference curve %s: clamped %d negative prices to zero", path, n)
	}
	return c, nil
}

// ReadAvailabilityCurve reads an availability curve given as fractions or
// percentages.
func ReadAvailabilityCurve(path string) (curve.Curve, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &MissingResourceError{Path: path}
		}
		return nil, err
	}
	defer func() { _ = f.Close() }()
	c, err := curve.Read(f)
	if err != nil {
		return nil, &SourceFormatError{File: path, Reason: "availability curve could not be read", Err: err}
	}
	n, err := curve.NormalizeFractions(c)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return n, nil
}
