// Package errx builds errors that chain a package-level sentinel with a
// cause. errors.Is matches both the sentinel and anything in the cause
// chain, so callers can test for the category without losing detail.
package errx

import (
	"errors"
	"fmt"
)

type chained struct {
	base   error
	detail error
	sep    string
}

func (e *chained) Error() string {
	return e.base.Error() + e.sep + e.detail.Error()
}

func (e *chained) Is(target error) bool {
	return errors.Is(e.base, target)
}

func (e *chained) Unwrap() error {
	return e.detail
}

// Wrap attaches cause to base. A nil cause returns base unchanged.
func Wrap(base, cause error) error {
	if cause == nil {
		return base
	}
	return &chained{base: base, detail: cause, sep: ": "}
}

// With attaches a formatted detail to base. The format string is passed to
// fmt.Errorf, so %w works and the wrapped error stays matchable. The caller
// supplies any separator as part of the format.
func With(base error, format string, args ...interface{}) error {
	return &chained{base: base, detail: fmt.Errorf(format, args...)}
}
