package ld831

import (
	"fmt"
	"strconv"
	"strings"
)

// ChannelKind is the semantic role a metric slot can play.
type ChannelKind int

const (
	ChannelLAeq ChannelKind = iota
	ChannelLCeq
	ChannelLZeq
	ChannelVoltage
	ChannelTempIndoor
	ChannelTempOutdoor
	ChannelWindSpeed
	ChannelWindDir
	ChannelHumidityRaw
	ChannelOctave11Start
	ChannelOctave33Start

	channelKindCount
)

var channelNames = [channelKindCount]string{
	"LAeq", "LCeq", "LZeq", "Voltage", "TempIndoor", "TempOutdoor",
	"WindSpeed", "WindDir", "HumidityRaw", "OctaveBand11Start", "OctaveBand33Start",
}

func (k ChannelKind) String() string {
	if k < 0 || k >= channelKindCount {
		return "unknown"
	}
	return channelNames[k]
}

// ChannelKinds lists every kind in declaration order.
func ChannelKinds() []ChannelKind {
	out := make([]ChannelKind, channelKindCount)
	for i := range out {
		out[i] = ChannelKind(i)
	}
	return out
}

// Display tags read from the NEW header.
const (
	GainZero   = "0"
	GainTwenty = "20"
	OBANormal  = "OBAnorm"
	OBALow     = "OBAlow"
)

// Octave group widths in metric slots. The one-octave array starts one slot
// into its group; the third-octave array skips three sub-audio bands.
const (
	octave11Width   = 12
	octave33Width   = 36
	octave11Lead    = 1
	octave33Lead    = 3
	octave11Bands   = 11
	octave33Bands   = 33
	settingsBits    = 56
	scalarBitLimit  = 48
	octaveBitLimit  = 52
	settingsGapSize = 8
)

// NEW header offsets.
const (
	newHistoryPtrOffset = 16
	newSerialOffset     = 66
	newSerialLen        = 5
	newFirmwareOffset   = 143
	newFirmwareLen      = 5
	newGainOffset       = 7980
	newOBAOffset        = 8049
	newMinHeader        = newOBAOffset + 1
	newScanTolerance    = 2400
)

// Offsets relative to the time-history pointer (NEW) or file start (OLD).
const (
	recordCountSkip = 48
	recordStartSkip = 52
	lengthTestSkip  = 56
)

// OLD header offsets.
const (
	oldRecordCountOffset = 48
	oldReferenceOffset   = 56
	oldMinHeader         = 60
	oldScanTolerance     = 1200
	oldLoggerFields      = 39
	oldOctaveMinFields   = 36
)

// Record count sanity clamps.
const (
	maxPlausibleRecords = 172800
	oversizeFudge       = 60
	overrunFudge        = 5
)

type firmwareBucket int

const (
	firmwareBelow15 firmwareBucket = iota
	firmwareBelow20
	firmwareCurrent
)

// settingsOffsets locates the 7-byte settings block per firmware revision.
var settingsOffsets = [...]int{
	firmwareBelow15: 4621,
	firmwareBelow20: 4633,
	firmwareCurrent: 4649,
}

func bucketForFirmware(fw float64) firmwareBucket {
	switch {
	case fw < 1.5:
		return firmwareBelow15
	case fw < 2.0:
		return firmwareBelow20
	default:
		return firmwareCurrent
	}
}

// settingsChannelBits maps single-slot settings bits to their channel.
var settingsChannelBits = map[int]ChannelKind{
	2:  ChannelLAeq,
	13: ChannelLCeq,
	24: ChannelLZeq,
	36: ChannelVoltage,
	37: ChannelTempIndoor,
	40: ChannelWindSpeed,
	41: ChannelWindDir,
	42: ChannelTempOutdoor,
	43: ChannelHumidityRaw,
}

const (
	octave11Bit = 49
	octave33Bit = 53
)

// Layout is the per-file record structure resolved from a log header.
type Layout struct {
	Variant         Variant
	MetricCount     int
	BitMetricCount  int
	Reconciled      bool
	FirmwareVersion float64
	Serial          string
	Gain            string
	OBARange        string

	HistoryOffset     int
	HeaderRecordCount int
	RecordStart       int
	RecordCount       int

	channels [channelKindCount]int
}

func newLayout(v Variant) Layout {
	l := Layout{Variant: v}
	for i := range l.channels {
		l.channels[i] = -1
	}
	return l
}

// Channel returns the metric index of kind k, if resolved.
func (l Layout) Channel(k ChannelKind) (int, bool) {
	if k < 0 || k >= channelKindCount || l.channels[k] < 0 {
		return 0, false
	}
	return l.channels[k], true
}

func (l *Layout) setChannel(k ChannelKind, idx int) {
	l.channels[k] = idx
}

// Stride is the byte width of one record.
func (l Layout) Stride() int {
	return (l.MetricCount + 3) * 4
}

// DeviceID identifies the instrument in the GChar3 column of NEW rows.
func (l Layout) DeviceID() string {
	if l.Variant != VariantNew {
		return ""
	}
	return fmt.Sprintf("LD831_%sv%.3f", l.Serial, l.FirmwareVersion)
}

// prune drops channel indices whose slots fall outside MetricCount.
func (l *Layout) prune() {
	for k := ChannelKind(0); k < channelKindCount; k++ {
		idx := l.channels[k]
		if idx < 0 {
			continue
		}
		span := 1
		switch k {
		case ChannelOctave11Start:
			span = octave11Lead + octave11Bands
		case ChannelOctave33Start:
			span = octave33Width
		}
		if idx+span > l.MetricCount {
			l.channels[k] = -1
		}
	}
}

// Resolve determines the record layout of b.
func Resolve(b *BinaryLog) (Layout, error) {
	if b.Variant() == VariantNew {
		return resolveNew(b)
	}
	return resolveOld(b)
}

func resolveNew(b *BinaryLog) (Layout, error) {
	l := newLayout(VariantNew)
	if b.Len() < newMinHeader {
		return l, formatErr(VariantNew, -1, "header too short: %d bytes, need %d", b.Len(), newMinHeader)
	}

	l.HistoryOffset = int(b.uint32At(newHistoryPtrOffset))
	l.Serial = strings.Trim(b.asciiAt(newSerialOffset, newSerialLen), "\x00")
	l.FirmwareVersion = parseFirmware(b.asciiAt(newFirmwareOffset, newFirmwareLen))

	settingsOff := settingsOffsets[bucketForFirmware(l.FirmwareVersion)]
	bits := readSettingsBits(b, settingsOff)
	count := l.applySettingsBits(bits)

	// Some firmware leaves the LAeq bit clear and flags it one byte earlier.
	if _, ok := l.Channel(ChannelLAeq); !ok && b.byteAt(settingsOff-1)&1 != 0 {
		l.setChannel(ChannelLAeq, 0)
		count++
	}

	l.Gain = GainTwenty
	if b.byteAt(newGainOffset)&1 != 0 {
		l.Gain = GainZero
	}
	l.OBARange = OBALow
	if b.byteAt(newOBAOffset)&1 != 0 {
		l.OBARange = OBANormal
	}

	l.BitMetricCount = count
	l.MetricCount = count

	base := l.HistoryOffset + lengthTestSkip
	if !b.fits(l.HistoryOffset+recordCountSkip, lengthTestSkip-recordCountSkip+4) {
		return l, formatErr(VariantNew, l.HistoryOffset, "time-history pointer outside buffer of %d bytes", b.Len())
	}
	l.reconcile(b, base)

	l.HeaderRecordCount = int(b.int32At(l.HistoryOffset + recordCountSkip))
	l.RecordStart = l.HistoryOffset + recordStartSkip
	l.RecordCount = clampRecordCount(l.HeaderRecordCount, l.Stride(), l.RecordStart, b.Len())
	l.prune()
	return l, nil
}

// reconcile re-derives the metric count from the distance between the first
// and second record timestamps. The settings bits undercount for some
// firmware and channel combinations; the scanned width wins when found.
func (l *Layout) reconcile(b *BinaryLog, base int) {
	ref := b.int32At(base)
	from := base + (l.BitMetricCount+2)*4
	off, ok := b.scanNear(from, ref, newScanTolerance)
	if !ok {
		return
	}
	n := (off-base)/4 - 3
	if n < 0 {
		return
	}
	_, haveSpeed := l.Channel(ChannelWindSpeed)
	_, haveDir := l.Channel(ChannelWindDir)
	if !haveSpeed && haveDir && n > l.BitMetricCount {
		l.setChannel(ChannelWindSpeed, n-1)
	}
	l.MetricCount = n
	l.Reconciled = true
}

func resolveOld(b *BinaryLog) (Layout, error) {
	l := newLayout(VariantOld)
	if b.Len() < oldMinHeader {
		return l, formatErr(VariantOld, -1, "header too short: %d bytes, need %d", b.Len(), oldMinHeader)
	}

	l.HeaderRecordCount = int(b.int32At(oldRecordCountOffset))
	ref := b.int32At(oldReferenceOffset)
	off, ok := b.scanNear(oldMinHeader, ref, oldScanTolerance)
	if !ok {
		return l, formatErr(VariantOld, oldReferenceOffset, "second record timestamp not found")
	}
	n := (off-oldReferenceOffset)/4 - 3
	if n < 0 {
		return l, formatErr(VariantOld, off, "record width %d bytes too small", off-oldReferenceOffset)
	}
	l.MetricCount = n
	l.BitMetricCount = n
	l.Reconciled = true

	switch {
	case n == oldLoggerFields:
		l.setChannel(ChannelLAeq, 0)
		l.setChannel(ChannelVoltage, 1)
		l.setChannel(ChannelTempIndoor, 2)
	case n > oldOctaveMinFields:
		l.setChannel(ChannelLAeq, 0)
		l.setChannel(ChannelOctave33Start, n-octave33Width)
	}

	// Decoding starts at the second record's flag word.
	count := clampRecordCount(l.HeaderRecordCount, l.Stride(), recordStartSkip, b.Len())
	l.RecordStart = off - 4
	l.RecordCount = max(0, count-1)
	l.prune()
	return l, nil
}

func parseFirmware(s string) float64 {
	fw, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return fw
}

// readSettingsBits expands the settings block (3 bytes, an 8-byte gap,
// then 4 bytes) into 56 bits, least significant bit first.
func readSettingsBits(b *BinaryLog, off int) [settingsBits]bool {
	var raw [7]byte
	for i := 0; i < 3; i++ {
		raw[i] = b.byteAt(off + i)
	}
	for i := 0; i < 4; i++ {
		raw[3+i] = b.byteAt(off + 3 + settingsGapSize + i)
	}

	var bits [settingsBits]bool
	for i, c := range raw {
		for j := 0; j < 8; j++ {
			bits[i*8+j] = (c>>j)&1 == 1
		}
	}
	return bits
}

// applySettingsBits assigns channel indices and returns the metric count
// implied by the settings bits.
func (l *Layout) applySettingsBits(bits [settingsBits]bool) int {
	count := 0
	for i := 0; i < scalarBitLimit; i++ {
		if !bits[i] {
			continue
		}
		if k, ok := settingsChannelBits[i]; ok {
			l.setChannel(k, count)
		}
		count++
	}
	for i := scalarBitLimit; i < octaveBitLimit; i++ {
		if !bits[i] {
			continue
		}
		if i == octave11Bit {
			l.setChannel(ChannelOctave11Start, count)
		}
		count += octave11Width
	}
	for i := octaveBitLimit; i < settingsBits; i++ {
		if !bits[i] {
			continue
		}
		if i == octave33Bit {
			l.setChannel(ChannelOctave33Start, count)
		}
		count += octave33Width
	}
	return count
}

// scanNear walks 4-byte words from off until one lies strictly within tol of
// ref. It returns the offset of the matching word.
func (b *BinaryLog) scanNear(off int, ref int32, tol int64) (int, bool) {
	lo, hi := int64(ref)-tol, int64(ref)+tol
	for ; off >= 0 && off+4 <= len(b.data); off += 4 {
		v := int64(b.int32At(off))
		if v > lo && v < hi {
			return off, true
		}
	}
	return 0, false
}

// clampRecordCount sanitizes a header record count so decoding stays inside
// the buffer. Records start at recordStart.
func clampRecordCount(n, stride, recordStart, bufLen int) int {
	if n < 0 {
		n = 0
	}
	if n > maxPlausibleRecords {
		n -= oversizeFudge
	}
	if n*stride+recordStart > bufLen {
		n = (bufLen-recordStart)/stride - overrunFudge
	}
	return max(0, n)
}
