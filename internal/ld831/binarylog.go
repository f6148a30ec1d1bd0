// Package ld831 decodes Larson Davis 831 time-history logs.
//
// Two on-disk variants exist. NEW files start with the 8-byte magic
// "NPSLD831" and carry a pointer to the time-history segment, the instrument
// serial number, the firmware version, and a settings bitfield describing
// which metrics each record stores. OLD files have no magic and no settings
// block; their record width is recovered by scanning for the second record's
// timestamp.
//
// All integers and floats are little-endian. A record is
//
//	flag int32 | epoch seconds int32 | duration float32 | metrics [n]float32
//
// so every record is (n+3)*4 bytes wide regardless of its flag.
package ld831

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
)

// Magic marks a NEW-variant file.
var Magic = []byte("NPSLD831")

// Variant discriminates the two on-disk layouts.
type Variant int

const (
	VariantOld Variant = iota
	VariantNew
)

func (v Variant) String() string {
	if v == VariantNew {
		return "NEW"
	}
	return "OLD"
}

// BinaryLog is an immutable in-memory copy of one log file.
type BinaryLog struct {
	data    []byte
	variant Variant
}

// NewBinaryLog wraps data and detects its variant from the leading magic.
func NewBinaryLog(data []byte) *BinaryLog {
	v := VariantOld
	if len(data) >= len(Magic) && bytes.Equal(data[:len(Magic)], Magic) {
		v = VariantNew
	}
	return &BinaryLog{data: data, variant: v}
}

// Open reads the whole file at path into memory.
func Open(path string) (*BinaryLog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	return NewBinaryLog(data), nil
}

// Variant reports whether the buffer is a NEW or OLD log.
func (b *BinaryLog) Variant() Variant { return b.variant }

// Len returns the buffer size in bytes.
func (b *BinaryLog) Len() int { return len(b.data) }

func (b *BinaryLog) fits(off, n int) bool {
	return off >= 0 && n >= 0 && off+n <= len(b.data)
}

func (b *BinaryLog) int32At(off int) int32 {
	return int32(binary.LittleEndian.Uint32(b.data[off : off+4]))
}

func (b *BinaryLog) uint32At(off int) uint32 {
	return binary.LittleEndian.Uint32(b.data[off : off+4])
}

func (b *BinaryLog) float32At(off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b.data[off : off+4]))
}

func (b *BinaryLog) byteAt(off int) byte {
	return b.data[off]
}

// asciiAt returns data[off:off+n] with non-ASCII bytes dropped.
func (b *BinaryLog) asciiAt(off, n int) string {
	if !b.fits(off, n) {
		return ""
	}
	out := make([]byte, 0, n)
	for _, c := range b.data[off : off+n] {
		if c < 0x80 {
			out = append(out, c)
		}
	}
	return string(out)
}
