// Command genmock writes synthetic LD831 logs and a matching MET CSV for
// local runs and demos. It decodes what it wrote with the real ld831 package
// so the printed counts match what a convert run will produce.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock -site CANYCOLO -hours 3 -old -met
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/ld831-nvspl-etl/internal/domain"
	"github.com/couchcryptid/ld831-nvspl-etl/internal/ld831"
	"github.com/couchcryptid/ld831-nvspl-etl/internal/ld831/ld831test"
)

// Settings bits enabled on generated NEW logs: LAeq, LCeq, voltage, indoor
// and outdoor temperature, humidity and the third-octave array.
var newSettingsBits = []int{2, 13, 36, 37, 42, 43, 53}

// Metric slots implied by newSettingsBits.
const (
	slotLAeq = iota
	slotLCeq
	slotVoltage
	slotTempIn
	slotTempOut
	slotHumidity
	slotThirdOctave
	newMetricCount = slotThirdOctave + 36
)

// OLD logger records carry 39 metrics: LAeq, voltage, temperature, filler.
const oldMetricCount = 39

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output directory for the generated files")
	site := flag.String("site", "CANYCOLO", "site code used in file names")
	startStr := flag.String("start", "2025-05-15T11:21:47", "first record time (device clock, UTC)")
	hours := flag.Float64("hours", 2, "hours of 1 s records per log")
	old := flag.Bool("old", false, "also write an OLD-variant log starting one day later")
	met := flag.Bool("met", false, "write a 1-minute MET CSV covering the NEW log")
	seed := flag.Uint64("seed", 831, "random seed")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	start, err := time.Parse("2006-01-02T15:04:05", *startStr)
	if err != nil {
		return fmt.Errorf("parse -start: %w", err)
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		return err
	}

	rng := rand.New(rand.NewPCG(*seed, *seed>>1|1))
	count := int(*hours * 3600)

	newPath := filepath.Join(*out, logName(*site, start))
	newLog := ld831test.NewLog{
		Serial:    "10442",
		Firmware:  "2.301",
		Settings:  ld831test.Settings(newSettingsBits...),
		GainZero:  true,
		OBANormal: true,
		Frames:    newFrames(rng, start, count),
	}
	if err := os.WriteFile(newPath, newLog.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", newPath, err)
	}
	log.Printf("wrote NEW log: %s (%d records)", newPath, count)
	paths := []string{newPath}

	if *old {
		oldStart := start.Add(24 * time.Hour)
		oldPath := filepath.Join(*out, logName(*site, oldStart))
		oldLog := ld831test.OldLog{Frames: oldFrames(rng, oldStart, count)}
		if err := os.WriteFile(oldPath, oldLog.Bytes(), 0o600); err != nil {
			return fmt.Errorf("write %s: %w", oldPath, err)
		}
		log.Printf("wrote OLD log: %s (%d records)", oldPath, count)
		paths = append(paths, oldPath)
	}

	if *met {
		metPath := filepath.Join(*out, "MET_"+*site+".csv")
		if err := writeMet(metPath, rng, start, count); err != nil {
			return fmt.Errorf("write MET csv: %w", err)
		}
		log.Printf("wrote MET csv: %s", metPath)
	}

	return printStats(paths)
}

func logName(site string, t time.Time) string {
	return fmt.Sprintf("SPL_%s_%s.831", site, t.Format("2006_01_02_150405"))
}

// power converts a level in dB to the linear value the meter stores.
func power(db float64) float32 {
	return float32(math.Pow(10, db/10))
}

// level is a slow diurnal-ish drift plus noise and the occasional event.
func level(rng *rand.Rand, i int) float64 {
	base := 35 + 6*math.Sin(float64(i)/900)
	if rng.IntN(600) == 0 {
		base += 25
	}
	return base + rng.NormFloat64()
}

func newFrames(rng *rand.Rand, start time.Time, count int) []ld831test.Frame {
	epoch := int32(start.Unix())
	frames := make([]ld831test.Frame, count)
	for i := range frames {
		la := level(rng, i)
		m := make([]float32, newMetricCount)
		m[slotLAeq] = power(la)
		m[slotLCeq] = power(la + 4)
		m[slotVoltage] = float32(12.6 - float64(i)/float64(count))
		m[slotTempIn] = float32(24 + rng.Float64())
		m[slotTempOut] = float32(18 + 3*math.Sin(float64(i)/3600))
		m[slotHumidity] = float32(1400 + rng.IntN(200))
		for b := 0; b < 36; b++ {
			m[slotThirdOctave+b] = power(la - 12 + 4*math.Sin(float64(b)/5))
		}
		status := ld831.FlagNormal
		if rng.IntN(5000) == 0 {
			status = ld831.FlagOverloadOBA
		}
		frames[i] = ld831test.Frame{Flag: int32(status), Epoch: epoch + int32(i), Duration: 1, Metrics: m}
	}
	return frames
}

func oldFrames(rng *rand.Rand, start time.Time, count int) []ld831test.Frame {
	epoch := int32(start.Unix())
	frames := make([]ld831test.Frame, count)
	for i := range frames {
		m := make([]float32, oldMetricCount)
		m[0] = power(level(rng, i))
		m[1] = 12.4
		m[2] = float32(22 + rng.Float64())
		frames[i] = ld831test.Frame{Epoch: epoch + int32(i), Duration: 1, Metrics: m}
	}
	return frames
}

// writeMet writes end-stamped 1-minute wind samples in the column order the
// default config expects: record, timestamp, air temperature, wind speed.
func writeMet(path string, rng *rand.Rand, start time.Time, count int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"RECORD", "TIMESTAMP", "AirTC_Avg", "WS_ms_Avg"}); err != nil {
		return err
	}
	first := start.Truncate(time.Minute).Add(time.Minute)
	last := start.Add(time.Duration(count) * time.Second)
	wind := 3.0
	for i, t := 0, first; !t.After(last.Add(time.Minute)); i, t = i+1, t.Add(time.Minute) {
		wind = math.Max(0, wind+rng.NormFloat64()*0.4)
		row := []string{
			strconv.Itoa(i),
			t.Format("2006-01-02 15:04:05"),
			strconv.FormatFloat(18+rng.Float64(), 'f', 2, 64),
			strconv.FormatFloat(wind, 'f', 2, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func printStats(paths []string) error {
	fmt.Println("\n=== Decoded fixtures ===")
	for _, p := range paths {
		res, err := ld831.ParseFile(p, ld831.Options{Location: time.UTC})
		if err != nil {
			return fmt.Errorf("decode %s: %w", p, err)
		}
		rows := res.File.Rows
		buckets := domain.BucketByHour(rows)
		fmt.Printf("%s\n", filepath.Base(p))
		fmt.Printf("  Variant: %s, metrics: %d, records: %d\n", res.Layout.Variant, res.Layout.MetricCount, res.Layout.RecordCount)
		fmt.Printf("  Accepted: %d, retrograde: %d, unknown flag: %d\n",
			res.Stats.Accepted, res.Stats.Retrograde, res.Stats.UnknownFlag)
		if len(rows) > 0 {
			fmt.Printf("  Rows: %s .. %s\n",
				domain.FormatTimestamp(rows[0].Time), domain.FormatTimestamp(rows[len(rows)-1].Time))
		}
		fmt.Printf("  Hourly files: %d\n", len(buckets))
		for _, b := range buckets {
			fmt.Printf("    %s: %d rows\n", domain.BucketFileStem(b.Key), len(b.Rows))
		}
	}
	return nil
}
