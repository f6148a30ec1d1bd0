package ld831

import (
	"strconv"
	"time"

	"github.com/couchcryptid/ld831-nvspl-etl/internal/domain"
)

// Humidity sensor calibration.
const (
	humidityScale     = 0.01
	humiditySlope     = 2.69
	humidityOffset    = 0.1515
	humidityGain      = 0.00636
	humidityTempBase  = 1.0546
	humidityTempCoeff = 0.00216
)

// Normalize maps an accepted record to an NVSPL row. Epoch seconds are
// rendered as wall-clock time in loc and then made naive.
func Normalize(rec Record, layout Layout, site string, loc *time.Location) domain.Row {
	if loc == nil {
		loc = time.Local
	}
	row := domain.NewRow(site, domain.Naive(time.Unix(int64(rec.Epoch), 0).In(loc)))
	vals := rec.Metrics

	value := func(k ChannelKind) (float64, bool) {
		idx, ok := layout.Channel(k)
		if !ok || idx >= len(vals) {
			return 0, false
		}
		return float64(vals[idx]), true
	}
	level := func(k ChannelKind, c domain.Column) {
		if v, ok := value(k); ok {
			row.Set(c, domain.FormatDecibel(v))
		}
	}
	scalar := func(k ChannelKind, c domain.Column) {
		if v, ok := value(k); ok {
			row.Set(c, domain.FormatRound1(v))
		}
	}

	level(ChannelLAeq, domain.ColDBA)
	level(ChannelLCeq, domain.ColDBC)
	level(ChannelLZeq, domain.ColDBF)
	scalar(ChannelVoltage, domain.ColVoltage)
	scalar(ChannelTempIndoor, domain.ColTempIns)
	scalar(ChannelTempOutdoor, domain.ColTempOut)
	scalar(ChannelWindSpeed, domain.ColWindSpeed)
	scalar(ChannelWindDir, domain.ColWindDir)

	if raw, ok := value(ChannelHumidityRaw); ok {
		temp, hasTemp := value(ChannelTempOutdoor)
		row.Set(domain.ColHumidity, domain.FormatRound1(Humidity(raw, temp, hasTemp)))
	}

	if idx, ok := layout.Channel(ChannelOctave11Start); ok && idx+octave11Lead+octave11Bands <= len(vals) {
		for i, c := range domain.OctaveBands {
			row.Set(c, domain.FormatDecibel(float64(vals[idx+octave11Lead+i])))
		}
	}
	if idx, ok := layout.Channel(ChannelOctave33Start); ok && idx+octave33Width <= len(vals) {
		for j := 0; j < octave33Bands; j++ {
			row.Set(domain.ThirdOctaveBand(j), domain.FormatDecibel(float64(vals[idx+octave33Lead+j])))
		}
	}

	row.Set(domain.ColStatus, domain.StatusFromFlag(int32(rec.Flag)))
	switch layout.Variant {
	case VariantNew:
		row.Set(domain.ColGChar3, layout.DeviceID())
		row.Set(domain.ColGChar1, layout.OBARange)
		row.Set(domain.ColGainAdjustment, layout.Gain)
	case VariantOld:
		row.Set(domain.ColGChar1, rec.Flag.OverloadTag())
	}
	return row
}

// Humidity converts a raw hygrometer reading to relative humidity, optionally
// compensated by outdoor temperature.
func Humidity(raw, tempOut float64, hasTemp bool) float64 {
	h := ((roundTo(humidityScale*raw, 2) / humiditySlope) - humidityOffset) / humidityGain
	if hasTemp {
		h /= humidityTempBase - humidityTempCoeff*roundTo(tempOut, 1)
	}
	return h
}

// roundTo rounds x to the given number of decimal places via its shortest
// decimal rendering.
func roundTo(x float64, places int) float64 {
	v, err := strconv.ParseFloat(strconv.FormatFloat(x, 'f', places, 64), 64)
	if err != nil {
		return x
	}
	return v
}
