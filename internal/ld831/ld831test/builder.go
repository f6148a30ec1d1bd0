// Package ld831test builds synthetic LD831 logs for tests and fixture
// generation.
package ld831test

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"
)

// Header layout of NEW logs.
const (
	magic            = "NPSLD831"
	historyPtrOffset = 16
	serialOffset     = 66
	firmwareOffset   = 143
	gainOffset       = 7980
	obaOffset        = 8049

	// DefaultHistoryOffset places the time-history segment past the header.
	DefaultHistoryOffset = 8192
)

// Frame is one record to encode. Frames with an unrecognized flag are still
// written at full width.
type Frame struct {
	Flag     int32
	Epoch    int32
	Duration float32
	Metrics  []float32
}

// Settings packs bit positions into the 7-byte settings block.
func Settings(bits ...int) [7]byte {
	var s [7]byte
	for _, b := range bits {
		s[b/8] |= 1 << (b % 8)
	}
	return s
}

// SettingsOffset returns where firmware fw stores its settings block.
func SettingsOffset(fw float64) int {
	switch {
	case fw < 1.5:
		return 4621
	case fw < 2.0:
		return 4633
	default:
		return 4649
	}
}

// NewLog describes a NEW-variant log.
type NewLog struct {
	Serial   string
	Firmware string
	Settings [7]byte

	// LAeqProbe sets the fallback LAeq bit one byte before the settings block.
	LAeqProbe bool
	GainZero  bool
	OBANormal bool

	// HistoryOffset defaults to DefaultHistoryOffset when zero.
	HistoryOffset int
	// RecordCount overrides the header record count when non-nil.
	RecordCount *int32
	Frames      []Frame
}

// Bytes encodes the log.
func (l NewLog) Bytes() []byte {
	hist := l.HistoryOffset
	if hist == 0 {
		hist = DefaultHistoryOffset
	}
	buf := make([]byte, hist+52)
	copy(buf, magic)
	binary.LittleEndian.PutUint32(buf[historyPtrOffset:], uint32(hist))
	copy(buf[serialOffset:serialOffset+5], padded(l.Serial, 5))
	copy(buf[firmwareOffset:firmwareOffset+5], padded(l.Firmware, 5))

	fw, _ := strconv.ParseFloat(strings.TrimSpace(l.Firmware), 64)
	off := SettingsOffset(fw)
	copy(buf[off:off+3], l.Settings[:3])
	copy(buf[off+11:off+15], l.Settings[3:])
	if l.LAeqProbe {
		buf[off-1] |= 1
	}
	if l.GainZero {
		buf[gainOffset] |= 1
	}
	if l.OBANormal {
		buf[obaOffset] |= 1
	}

	count := int32(len(l.Frames))
	if l.RecordCount != nil {
		count = *l.RecordCount
	}
	binary.LittleEndian.PutUint32(buf[hist+48:], uint32(count))
	return appendFrames(buf, l.Frames)
}

// OldLog describes an OLD-variant log. Records start at offset 52.
type OldLog struct {
	RecordCount *int32
	Frames      []Frame
}

// Bytes encodes the log.
func (l OldLog) Bytes() []byte {
	buf := make([]byte, 52)
	count := int32(len(l.Frames))
	if l.RecordCount != nil {
		count = *l.RecordCount
	}
	binary.LittleEndian.PutUint32(buf[48:], uint32(count))
	return appendFrames(buf, l.Frames)
}

// Count is a convenience for the RecordCount fields.
func Count(n int32) *int32 { return &n }

func appendFrames(buf []byte, frames []Frame) []byte {
	for _, f := range frames {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(f.Flag))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(f.Epoch))
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f.Duration))
		for _, m := range f.Metrics {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(m))
		}
	}
	return buf
}

func padded(s string, n int) []byte {
	out := make([]byte, n)
	copy(out, s)
	return out
}

// Series returns count frames one second apart starting at epoch, each
// carrying a copy of metrics.
func Series(epoch int32, count int, metrics []float32) []Frame {
	frames := make([]Frame, count)
	for i := range frames {
		m := make([]float32, len(metrics))
		copy(m, metrics)
		frames[i] = Frame{Epoch: epoch + int32(i), Duration: 1, Metrics: m}
	}
	return frames
}
