// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package stat

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"
)

func gaussianGrid(n int, lo, hi float64) ([]float64, []float64) {
	xs := make([]float64, n)
	pdf := make([]float64, n)
	d := distuv.UnitNormal
	for i := range xs {
		xs[i] = lo + (hi-lo)*float64(i)/float64(n-1)
		pdf[i] = d.Prob(xs[i])
	}
	return xs, pdf
}

func TestHighestDensityRegion_Gaussian(t *testing.T) {
	xs, pdf := gaussianGrid(4001, -6, 6)

	mask, level, err := HighestDensityRegion(pdf, 0.95)
	require.NoError(t, err)

	lo, hi := math.Inf(1), math.Inf(-1)
	for i, in := range mask {
		if in {
			lo = math.Min(lo, xs[i])
			hi = math.Max(hi, xs[i])
		}
	}
	assert.InDelta(t, -1.96, lo, 0.01)
	assert.InDelta(t, 1.96, hi, 0.01)
	assert.InDelta(t, distuv.UnitNormal.Prob(1.96), level, 1e-3)
}

func TestHighestDensityLevel_ScaleInvariantMask(t *testing.T) {
	_, pdf := gaussianGrid(101, -4, 4)
	scaled := make([]float64, len(pdf))
	for i, p := range pdf {
		scaled[i] = 7 * p
	}

	a, la, err := HighestDensityRegion(pdf, 0.68)
	require.NoError(t, err)
	b, lb, err := HighestDensityRegion(scaled, 0.68)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.InDelta(t, 7*la, lb, 1e-12)
}

func TestHighestDensityLevel_FullMass(t *testing.T) {
	level, err := HighestDensityLevel([]float64{0.1, 0.5, 0.4}, 1)
	require.NoError(t, err)
	assert.Equal(t, 0.1, level)
}

func TestHighestDensityLevel_Errors(t *testing.T) {
	tests := []struct {
		name  string
		pdf   []float64
		alpha float64
		want  error
	}{
		{"empty", nil, 0.9, ErrEmptyDensity},
		{"zero alpha", []float64{1}, 0, ErrInvalidAlpha},
		{"alpha above one", []float64{1}, 1.5, ErrInvalidAlpha},
		{"negative density", []float64{1, -1}, 0.5, ErrInvalidDensity},
		{"nan density", []float64{math.NaN()}, 0.5, ErrInvalidDensity},
		{"zero mass", []float64{0, 0}, 0.5, ErrInvalidDensity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := HighestDensityLevel(tt.pdf, tt.alpha)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestConfidenceLevel(t *testing.T) {
	statistic, critical, err := ConfidenceLevel([]float64{-3, -1, -0.5, -2}, 1, 0.95)
	require.NoError(t, err)

	assert.InDeltaSlice(t, []float64{5, 1, 0, 3}, statistic, 1e-12)
	assert.InDelta(t, 3.841, critical, 1e-3)

	_, critical2, err := ConfidenceLevel([]float64{0}, 2, 0.95)
	require.NoError(t, err)
	assert.InDelta(t, 5.991, critical2, 1e-3)
}

func TestConfidenceLevel_Errors(t *testing.T) {
	_, _, err := ConfidenceLevel(nil, 1, 0.9)
	assert.ErrorIs(t, err, ErrEmptyDensity)
	_, _, err = ConfidenceLevel([]float64{1}, 0, 0.9)
	assert.ErrorIs(t, err, ErrInvalidDOF)
	_, _, err = ConfidenceLevel([]float64{1}, 1, 1)
	assert.ErrorIs(t, err, ErrInvalidLevel)
}
