// Package domain models NVSPL acoustic observations and the conventions shared
// by the LD831 decoder, the MET wind merge, and the hourly writers.
//
// # NVSPL Rows
//
// An NVSPL row is one second-level observation with a fixed 54-column schema:
//
//	SiteID, STime, H12p5 … H20000 (33 third-octave bands), dbA, dbC, dbF,
//	Voltage, WindSpeed, WindDir, TempIns, TempOut, Humidity, INVID, INSID,
//	GChar1, GChar2, GChar3, AdjustmentsApplied, CalibrationAdjustment,
//	GPSTimeAdjustment, GainAdjustment, Status
//
// Levels are stored by the meter as linear power and rendered as
// 10·log10(power) with one decimal. Non-positive power has no level and is
// written as an empty cell, never as -Inf. Missing values are empty cells.
//
// Time format:
//
//	STime is naive local wall-clock time, "2006-01-02 15:04:05.000".
//	Naive times are carried as time.Time values located in UTC; the location
//	is never meaningful and only the wall clock is compared.
//
// Status codes (from the record test flag):
//
//	0 → "0" (normal), 1024 → "9901" (SLM overload),
//	2048 → "9910" (OBA overload), 3072 → "9911" (both).
//
// # File Names
//
// Input logs are named SPL_<SITE>_<YYYY>_<MM>_<DD>_<HHMMSS> by the upstream
// merge tool. The declared instant is trusted over the device clock: the
// delta between it and the first decoded row is added to every row (see
// [ShiftToAnchor]). Stems that do not match are left unshifted.
//
// Output units are named NVSPL_<SITE>_<YYYY>_<MM>_<DD>_<HH>, one per site and
// hour (see [BucketByHour] and [BucketFileStem]).
package domain
