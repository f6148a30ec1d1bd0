package met

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

// Encoding names a text encoding the loader can try.
type Encoding string

const (
	EncodingUTF8    Encoding = "utf-8"
	EncodingUTF8BOM Encoding = "utf-8-sig"
	EncodingUTF16LE Encoding = "utf-16-le"
	EncodingUTF16BE Encoding = "utf-16-be"
)

// Encodings lists the encodings in the order the loader retries them.
var Encodings = []Encoding{EncodingUTF8, EncodingUTF8BOM, EncodingUTF16LE, EncodingUTF16BE}

var (
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
)

// SniffEncoding picks an encoding from a leading byte-order mark, defaulting
// to UTF-8.
func SniffEncoding(head []byte) Encoding {
	switch {
	case bytes.HasPrefix(head, bomUTF16LE):
		return EncodingUTF16LE
	case bytes.HasPrefix(head, bomUTF16BE):
		return EncodingUTF16BE
	case bytes.HasPrefix(head, bomUTF8):
		return EncodingUTF8BOM
	}
	return EncodingUTF8
}

func (e Encoding) codec() (encoding.Encoding, error) {
	switch e {
	case EncodingUTF8:
		return unicode.UTF8, nil
	case EncodingUTF8BOM:
		return unicode.UTF8BOM, nil
	case EncodingUTF16LE:
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM), nil
	case EncodingUTF16BE:
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM), nil
	}
	return nil, &EncodingError{Encoding: e, Err: fmt.Errorf("unsupported encoding")}
}

// Decode converts data to a string. UTF-8 input must be valid. A leading
// U+FEFF left by the codec is dropped.
func Decode(data []byte, e Encoding) (string, error) {
	codec, err := e.codec()
	if err != nil {
		return "", err
	}
	if (e == EncodingUTF8 || e == EncodingUTF8BOM) && !utf8.Valid(data) {
		return "", &EncodingError{Encoding: e, Err: fmt.Errorf("invalid utf-8")}
	}
	out, err := codec.NewDecoder().Bytes(data)
	if err != nil {
		return "", &EncodingError{Encoding: e, Err: err}
	}
	return string(bytes.TrimPrefix(out, bomUTF8)), nil
}

// decodeLossy decodes for sniffing only; invalid sequences become U+FFFD.
func decodeLossy(data []byte, e Encoding) string {
	codec, err := e.codec()
	if err != nil {
		codec = unicode.UTF8
	}
	out, err := codec.NewDecoder().Bytes(data)
	if err != nil {
		return string(bytes.ToValidUTF8(data, []byte("\ufffd")))
	}
	return string(bytes.TrimPrefix(out, bomUTF8))
}
