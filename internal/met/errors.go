package met

import "fmt"

// EncodingError reports a file that cannot be decoded with an encoding.
// Loading records it against the attempt and moves on.
type EncodingError struct {
	Encoding Encoding
	Err      error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("decode met csv as %s: %v", e.Encoding, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// DelimiterError reports that no candidate delimiter was consistent across
// the sample. The loader falls back to a presence rule.
type DelimiterError struct {
	Fallback rune
}

func (e *DelimiterError) Error() string {
	return fmt.Sprintf("no consistent delimiter in sample, using %q", e.Fallback)
}
