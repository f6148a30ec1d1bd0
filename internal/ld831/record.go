package ld831

import "time"

// Flag is the record test flag word.
type Flag int32

const (
	FlagNormal         Flag = 0
	FlagOverloadSLM    Flag = 1024
	FlagOverloadOBA    Flag = 2048
	FlagOverloadSLMOBA Flag = 3072
)

// Recognized reports whether f marks a data record.
func (f Flag) Recognized() bool {
	switch f {
	case FlagNormal, FlagOverloadSLM, FlagOverloadOBA, FlagOverloadSLMOBA:
		return true
	}
	return false
}

// OverloadTag is the GChar1 tag written for OLD-variant overload records.
func (f Flag) OverloadTag() string {
	switch f {
	case FlagOverloadSLM:
		return "OVL:SLM"
	case FlagOverloadOBA:
		return "OVL:OBA"
	case FlagOverloadSLMOBA:
		return "OVL:SLMOBA"
	}
	return ""
}

// minAcceptedEpoch floors the monotonicity check; earlier stamps are device
// garbage.
var minAcceptedEpoch = int32(time.Date(1980, 1, 23, 0, 0, 0, 0, time.UTC).Unix())

// Record is one accepted time-history frame.
type Record struct {
	Flag     Flag
	Epoch    int32
	Duration float32
	Metrics  []float32
}

// DecodeStats counts what the decoder did with each record position.
type DecodeStats struct {
	Accepted    int
	Retrograde  int
	UnknownFlag int
	Truncated   bool
}

// Decoder walks the records of a log in file order. It is single pass.
//
//	d := NewDecoder(log, layout)
//	for d.Next() {
//		rec := d.Record()
//	}
type Decoder struct {
	log     *BinaryLog
	layout  Layout
	off     int
	visited int
	last    int32
	rec     Record
	stats   DecodeStats
}

// NewDecoder positions a decoder at layout.RecordStart.
func NewDecoder(b *BinaryLog, layout Layout) *Decoder {
	return &Decoder{
		log:    b,
		layout: layout,
		off:    layout.RecordStart,
		last:   minAcceptedEpoch,
	}
}

// Next advances to the next accepted record. It returns false once the
// record count or the buffer is exhausted.
func (d *Decoder) Next() bool {
	n := d.layout.MetricCount
	for d.visited < d.layout.RecordCount {
		if !d.log.fits(d.off, 4) {
			d.stats.Truncated = true
			return false
		}
		flag := Flag(d.log.int32At(d.off))
		d.off += 4
		d.visited++

		if !flag.Recognized() {
			d.stats.UnknownFlag++
			d.off += (n + 2) * 4
			continue
		}

		if !d.log.fits(d.off, (n+2)*4) {
			d.stats.Truncated = true
			return false
		}
		epoch := d.log.int32At(d.off)
		dur := d.log.float32At(d.off + 4)
		d.off += 8

		// The cursor moves past the metrics whether or not the record is kept.
		start := d.off
		d.off += n * 4
		if epoch <= d.last {
			d.stats.Retrograde++
			continue
		}

		metrics := make([]float32, n)
		for i := range metrics {
			metrics[i] = d.log.float32At(start + i*4)
		}
		d.last = epoch
		d.rec = Record{Flag: flag, Epoch: epoch, Duration: dur, Metrics: metrics}
		d.stats.Accepted++
		return true
	}
	return false
}

// Record returns the record produced by the last successful Next.
func (d *Decoder) Record() Record { return d.rec }

// Offset is the cursor position in bytes.
func (d *Decoder) Offset() int { return d.off }

// Stats returns the counts so far.
func (d *Decoder) Stats() DecodeStats { return d.stats }
