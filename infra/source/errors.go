package source

import (
	"errors"
	"fmt"
)

// MissingResourceError reports a required file that does not exist.
type MissingResourceError struct {
	Path string
}

func (e *MissingResourceError) Error() string {
	return fmt.Sprintf("unable to locate %s", e.Path)
}

// SourceFormatError reports a table or row that cannot be interpreted.
type SourceFormatError struct {
	File   string
	Line   int
	Key    string
	Reason string
	Err    error
}

func (e *SourceFormatError) Error() string {
	msg := e.File
	if e.Line > 0 {
		msg = fmt.Sprintf("%s:%d", msg, e.Line)
	}
	if e.Key != "" {
		msg += " (" + e.Key + ")"
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SourceFormatError) Unwrap() error { return e.Err }

// RowError reports one row of a participant table that was left out.
type RowError struct {
	File string
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.File, e.Line, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// SkippedRows splits an error returned while reading participants into the
// rows that were left out and whatever else went wrong, such as a missing
// or unparsable table.
func SkippedRows(err error) ([]*RowError, error) {
	var (
		rows []*RowError
		rest []error
	)
	var walk func(error)
	walk = func(err error) {
		if joined, ok := err.(interface{ Unwrap() []error }); ok {
			for _, e := range joined.Unwrap() {
				walk(e)
			}
			return
		}
		var row *RowError
		if errors.As(err, &row) {
			rows = append(rows, row)
			return
		}
		rest = append(rest, err)
	}
	if err != nil {
		walk(err)
	}
	return rows, errors.Join(rest...)
}
