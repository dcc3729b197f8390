// Package oee computes Overall Equipment Effectiveness for a production
// run. The computation is pure: callers assemble the Input from stored
// timings and counts, and the result carries warnings instead of errors
// so a degenerate run (zero counts, clock skew) still yields a number.
package oee

import "fmt"

// Input is everything a single OEE computation needs, all durations in
// minutes.
type Input struct {
	// ShiftMinutes is the scheduled production window.
	ShiftMinutes float64
	// PlannedDowntimeMinutes covers scheduled pauses (breaks, TBT, 5S, PM).
	// It is subtracted from the shift before availability is judged.
	PlannedDowntimeMinutes float64
	// UnplannedDowntimeMinutes covers breakdowns, tool changes, waits.
	UnplannedDowntimeMinutes float64
	// RunTimeMinutes is wall time from first cycle start to last cycle end.
	// Zero means the run never cycled; performance falls back to operating
	// time.
	RunTimeMinutes float64
	// IdealCycleTimeMinutes is the standard minutes per piece.
	IdealCycleTimeMinutes float64
	// TotalCount is pieces produced, good or bad.
	TotalCount int64
	// GoodCount is pieces that passed inspection.
	GoodCount int64
}

type Result struct {
	Availability float64  `json:"availability"`
	Performance  float64  `json:"performance"`
	Quality      float64  `json:"quality"`
	OEE          float64  `json:"oee"`
	Warnings     []string `json:"warnings,omitempty"`
}

// Compute derives Availability x Performance x Quality. Each factor is
// clamped to [0, 1]; a clamp or a zero denominator adds a warning rather
// than failing, since shop-floor data is routinely messy.
func Compute(in Input) Result {
	var r Result

	plannedTime := in.ShiftMinutes - in.PlannedDowntimeMinutes
	if plannedTime <= 0 {
		r.Warnings = append(r.Warnings, "planned production time is zero or negative, availability set to 0")
	} else {
		operatingTime := plannedTime - in.UnplannedDowntimeMinutes
		r.Availability = clamp(operatingTime/plannedTime, "availability", &r.Warnings)
	}

	runTime := in.RunTimeMinutes
	if runTime <= 0 {
		runTime = plannedTime - in.UnplannedDowntimeMinutes
	}
	if runTime <= 0 {
		if in.TotalCount > 0 {
			r.Warnings = append(r.Warnings, "run time is zero with pieces produced, performance set to 0")
		}
	} else {
		ideal := in.IdealCycleTimeMinutes * float64(in.TotalCount)
		r.Performance = clamp(ideal/runTime, "performance", &r.Warnings)
	}

	switch {
	case in.TotalCount <= 0 && in.GoodCount > 0:
		r.Warnings = append(r.Warnings, "good count exceeds total count, quality set to 0")
	case in.TotalCount <= 0:
		// Nothing produced, nothing rejected.
		r.Quality = 1
	default:
		r.Quality = clamp(float64(in.GoodCount)/float64(in.TotalCount), "quality", &r.Warnings)
	}

	r.OEE = r.Availability * r.Performance * r.Quality
	return r
}

func clamp(v float64, name string, warnings *[]string) float64 {
	if v < 0 {
		*warnings = append(*warnings, fmt.Sprintf("%s computed below 0 (%.3f), clamped", name, v))
		return 0
	}
	if v > 1 {
		*warnings = append(*warnings, fmt.Sprintf("%s computed above 1 (%.3f), clamped", name, v))
		return 1
	}
	return v
}
