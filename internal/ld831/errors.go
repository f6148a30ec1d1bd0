package ld831

import (
	"errors"
	"fmt"
)

// ErrFormat is matched by every FormatError.
var ErrFormat = errors.New("ld831 format error")

// FormatError reports a log whose header cannot be interpreted. It is fatal
// for that file only.
type FormatError struct {
	Variant Variant
	Offset  int
	Reason  string
}

func (e *FormatError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("ld831 %s: %s (offset %d)", e.Variant, e.Reason, e.Offset)
	}
	return fmt.Sprintf("ld831 %s: %s", e.Variant, e.Reason)
}

// Is lets errors.Is(err, ErrFormat) match any FormatError.
func (e *FormatError) Is(target error) bool {
	return target == ErrFormat
}

func formatErr(v Variant, off int, format string, args ...any) error {
	return &FormatError{Variant: v, Offset: off, Reason: fmt.Sprintf(format, args...)}
}
