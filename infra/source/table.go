package source

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kilianp07/meurit/core/curve"
)

// renamed maps legacy column names to their canonical form.
var renamed = map[string]string{
	"path_to_load_profile": "load_profile",
}

type row struct {
	file   string
	line   int
	values map[string]string
}

func readTable(path string) ([]row, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &MissingResourceError{Path: path}
		}
		return nil, err
	}
	defer func() { _ = f.Close() }()

	name := filepath.Base(path)
	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, &SourceFormatError{File: name, Line: 1, Reason: "could not be parsed", Err: err}
	}
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		if canon, ok := renamed[h]; ok {
			h = canon
		}
		header[i] = h
	}

	var rows []row
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &SourceFormatError{File: name, Line: line, Reason: "could not be parsed", Err: err}
		}
		values := make(map[string]string, len(header))
		for i, h := range header {
			values[h] = strings.TrimSpace(rec[i])
		}
		rows = append(rows, row{file: name, line: line, values: values})
	}
	return rows, nil
}

func (r row) has(col string) bool { return r.values[col] != "" }

func (r row) str(col string) string { return r.values[col] }

func (r row) fail(key, reason string, err error) error {
	return &SourceFormatError{File: r.file, Line: r.line, Key: key, Reason: reason, Err: err}
}

// float parses a numeric column; empty cells yield def.
func (r row) float(key, col string, def float64) (float64, error) {
	v := r.values[col]
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, r.fail(key, col+" is not a number", err)
	}
	return f, nil
}

// bool parses a boolean column; empty cells yield def.
func (r row) bool(key, col string, def bool) (bool, error) {
	v := r.values[col]
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, r.fail(key, col+" is not a boolean", err)
	}
	return b, nil
}

// curveLoader reads curve files relative to a folder, once per path.
type curveLoader struct {
	dir   string
	cache map[string]curve.Curve
}

func (c *curveLoader) load(r row, key, col string) (curve.Curve, error) {
	rel := r.values[col]
	if rel == "" {
		return nil, nil
	}
	path := filepath.Join(c.dir, rel)
	if cv, ok := c.cache[path]; ok {
		return cv.Clone(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, r.fail(key, col+" could not be located", &MissingResourceError{Path: path})
	}
	defer func() { _ = f.Close() }()
	cv, err := curve.Read(f)
	if err != nil {
		return nil, r.fail(key, col+" could not be read", err)
	}
	c.cache[path] = cv
	return cv.Clone(), nil
}
