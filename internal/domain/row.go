package domain

import (
	"time"
)

// Column identifies one field of the NVSPL row schema, in output order.
type Column int

const (
	ColSiteID Column = iota
	ColSTime

	// Third-octave bands, 12.5 Hz through 20 kHz.
	ColH12p5
	ColH15p8
	ColH20
	ColH25
	ColH31p5
	ColH40
	ColH50
	ColH63
	ColH80
	ColH100
	ColH125
	ColH160
	ColH200
	ColH250
	ColH315
	ColH400
	ColH500
	ColH630
	ColH800
	ColH1000
	ColH1250
	ColH1600
	ColH2000
	ColH2500
	ColH3150
	ColH4000
	ColH5000
	ColH6300
	ColH8000
	ColH10000
	ColH12500
	ColH16000
	ColH20000

	ColDBA
	ColDBC
	ColDBF
	ColVoltage
	ColWindSpeed
	ColWindDir
	ColTempIns
	ColTempOut
	ColHumidity
	ColINVID
	ColINSID
	ColGChar1
	ColGChar2
	ColGChar3
	ColAdjustmentsApplied
	ColCalibrationAdjustment
	ColGPSTimeAdjustment
	ColGainAdjustment
	ColStatus

	ColumnCount
)

// ThirdOctaveBandCount is the number of named third-octave columns.
const ThirdOctaveBandCount = int(ColH20000-ColH12p5) + 1

// Header is the NVSPL column header, indexed by Column.
var Header = [ColumnCount]string{
	"SiteID", "STime",
	"H12p5", "H15p8", "H20", "H25", "H31p5", "H40", "H50", "H63", "H80", "H100", "H125", "H160", "H200", "H250", "H315",
	"H400", "H500", "H630", "H800", "H1000", "H1250", "H1600", "H2000", "H2500", "H3150", "H4000", "H5000", "H6300", "H8000",
	"H10000", "H12500", "H16000", "H20000",
	"dbA", "dbC", "dbF", "Voltage", "WindSpeed", "WindDir", "TempIns", "TempOut", "Humidity",
	"INVID", "INSID", "GChar1", "GChar2", "GChar3", "AdjustmentsApplied", "CalibrationAdjustment",
	"GPSTimeAdjustment", "GainAdjustment", "Status",
}

// OctaveBands lists the one-octave columns in the order the device stores
// them after the leading sub-audio slot.
var OctaveBands = [11]Column{
	ColH15p8, ColH31p5, ColH63, ColH125, ColH250,
	ColH500, ColH1000, ColH2000, ColH4000, ColH8000, ColH16000,
}

// ThirdOctaveBand returns the column of the j-th named third-octave band.
func ThirdOctaveBand(j int) Column {
	return ColH12p5 + Column(j)
}

func (c Column) String() string {
	if c < 0 || c >= ColumnCount {
		return ""
	}
	return Header[c]
}

// Row is one second-level NVSPL observation. Time is a naive wall-clock
// timestamp stored in UTC. Cells other than SiteID and STime hold their
// rendered text; an empty cell means "no value".
type Row struct {
	Site  string
	Time  time.Time
	cells [ColumnCount]string
}

// NewRow returns an empty row for site at t.
func NewRow(site string, t time.Time) Row {
	return Row{Site: site, Time: t}
}

// Set stores the rendered value of column c. SiteID and STime are derived
// from Site and Time and cannot be set directly.
func (r *Row) Set(c Column, v string) {
	if c <= ColSTime || c >= ColumnCount {
		return
	}
	r.cells[c] = v
}

// Get returns the rendered value of column c.
func (r Row) Get(c Column) string {
	switch {
	case c == ColSiteID:
		return r.Site
	case c == ColSTime:
		return FormatTimestamp(r.Time)
	case c < 0 || c >= ColumnCount:
		return ""
	}
	return r.cells[c]
}

// Record renders the row in header order.
func (r Row) Record() []string {
	out := make([]string, ColumnCount)
	for c := Column(0); c < ColumnCount; c++ {
		out[c] = r.Get(c)
	}
	return out
}

// MetSample is one meteorological wind observation.
type MetSample struct {
	Time      time.Time
	WindSpeed float64
}

// BucketKey groups rows by site and the hour their timestamp falls in.
type BucketKey struct {
	Site string
	Hour time.Time
}

func (k BucketKey) String() string {
	return k.Site + "|" + k.Hour.Format("2006-01-02T15")
}

// HourBucket is the unit written to one NVSPL output file.
type HourBucket struct {
	Key  BucketKey
	Rows []Row
}

// ConvertedFile is the normalized content of one input log.
type ConvertedFile struct {
	Path     string
	Site     string
	Variant  string
	Anchored bool
	Shift    time.Duration
	Rows     []Row
}
