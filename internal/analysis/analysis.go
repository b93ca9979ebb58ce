// Package analysis computes level statistics for decoded audio.
package analysis

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// MinDB is the floor reported for digital silence.
const MinDB = -96.0

// Stats summarizes the level of one channel.
type Stats struct {
	Peak     float64 `json:"peak"`
	RMS      float64 `json:"rms"`
	PeakDBFS float64 `json:"peak_dbfs"`
	RMSDBFS  float64 `json:"rms_dbfs"`
	CrestDB  float64 `json:"crest_db"`
}

// Levels returns peak and RMS statistics for samples in [-1, 1].
func Levels(samples []float32) Stats {
	if len(samples) == 0 {
		return Stats{PeakDBFS: MinDB, RMSDBFS: MinDB}
	}

	s := make([]float64, len(samples))
	for i, v := range samples {
		s[i] = float64(v)
	}

	peak := math.Max(floats.Max(s), -floats.Min(s))
	rms := floats.Norm(s, 2) / math.Sqrt(float64(len(s)))

	st := Stats{
		Peak:     peak,
		RMS:      rms,
		PeakDBFS: DBFS(peak),
		RMSDBFS:  DBFS(rms),
	}
	if rms > 0 {
		st.CrestDB = st.PeakDBFS - st.RMSDBFS
	}
	return st
}

// DBFS converts a linear amplitude to decibels relative to full scale,
// floored at MinDB.
func DBFS(v float64) float64 {
	if v <= 0 {
		return MinDB
	}
	db := 20 * math.Log10(v)
	if db < MinDB {
		return MinDB
	}
	return db
}
