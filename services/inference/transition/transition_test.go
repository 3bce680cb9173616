// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package transition

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestNormal_SampleShape(t *testing.T) {
	n, err := NewNormal(2, 0.5, WithSeed(1))
	require.NoError(t, err)

	out, err := n.Sample([][]float64{{0, 0}, {10, -10}, {1, 1}}, 4)
	require.NoError(t, err)

	require.Len(t, out, 3)
	for _, row := range out {
		require.Len(t, row, 2)
		for _, column := range row {
			assert.Len(t, column, 4)
		}
	}
	// Draws stay near their own row's center.
	for s := 0; s < 4; s++ {
		assert.InDelta(t, 10, out[1][0][s], 5)
		assert.InDelta(t, -10, out[1][1][s], 5)
	}
}

func TestNormal_Validation(t *testing.T) {
	t.Run("bad sigma", func(t *testing.T) {
		_, err := NewNormal(1, 0)
		assert.ErrorIs(t, err, ErrInvalidSigma)
	})

	t.Run("bad dimensionality", func(t *testing.T) {
		_, err := NewNormal(0, 1)
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	})

	t.Run("row mismatch", func(t *testing.T) {
		n, err := NewNormal(2, 1)
		require.NoError(t, err)
		_, err = n.Sample([][]float64{{1}}, 1)
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	})

	t.Run("zero samples", func(t *testing.T) {
		n, err := NewNormal(1, 1)
		require.NoError(t, err)
		_, err = n.Sample([][]float64{{1}}, 0)
		assert.ErrorIs(t, err, ErrInvalidSamples)
	})
}

func TestNormal_LogProbSymmetric(t *testing.T) {
	n, err := NewNormal(3, 1.3)
	require.NoError(t, err)
	require.True(t, n.IsSymmetric())

	a := []float64{0.1, -2, 3}
	b := []float64{1.5, 0.2, 2.2}
	forward, err := n.LogProb(a, b)
	require.NoError(t, err)
	reverse, err := n.LogProb(b, a)
	require.NoError(t, err)
	assert.InDelta(t, forward, reverse, 1e-12)

	// Standard normal density at zero distance.
	unit, err := NewNormal(1, 1)
	require.NoError(t, err)
	lp, err := unit.LogProb([]float64{2}, []float64{2})
	require.NoError(t, err)
	assert.InDelta(t, -0.5*math.Log(2*math.Pi), lp, 1e-12)
}

func TestMultivariateNormal(t *testing.T) {
	cov := mat.NewSymDense(2, []float64{1, 0.5, 0.5, 2})
	m, err := NewMultivariateNormal(cov, WithSeed(7))
	require.NoError(t, err)
	assert.Equal(t, 2, m.Dimensionality())
	assert.True(t, m.IsSymmetric())

	next, err := Propose(m, []float64{3, 4})
	require.NoError(t, err)
	require.Len(t, next, 2)

	a := []float64{0, 0}
	b := []float64{1, -1}
	forward, err := m.LogProb(a, b)
	require.NoError(t, err)
	reverse, err := m.LogProb(b, a)
	require.NoError(t, err)
	assert.InDelta(t, forward, reverse, 1e-12)

	t.Run("not positive definite", func(t *testing.T) {
		bad := mat.NewSymDense(2, []float64{1, 2, 2, 1})
		_, err := NewMultivariateNormal(bad)
		assert.ErrorIs(t, err, ErrNotPositiveDefinite)
	})

	t.Run("row mismatch", func(t *testing.T) {
		_, err := m.LogProb([]float64{1}, []float64{1, 2})
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	})
}

func TestMultivariateNormal_SampleMoments(t *testing.T) {
	cov := mat.NewSymDense(2, []float64{1, 0.8, 0.8, 1})
	m, err := NewMultivariateNormal(cov, WithSeed(11))
	require.NoError(t, err)

	const draws = 20000
	out, err := m.Sample([][]float64{{1, -1}}, draws)
	require.NoError(t, err)

	var mx, my, cxy float64
	for s := 0; s < draws; s++ {
		mx += out[0][0][s]
		my += out[0][1][s]
	}
	mx /= draws
	my /= draws
	for s := 0; s < draws; s++ {
		cxy += (out[0][0][s] - mx) * (out[0][1][s] - my)
	}
	cxy /= draws - 1

	assert.InDelta(t, 1, mx, 0.05)
	assert.InDelta(t, -1, my, 0.05)
	assert.InDelta(t, 0.8, cxy, 0.05)
}

func TestUniform_StaysInBounds(t *testing.T) {
	u, err := NewUniform([]float64{-1}, []float64{1}, WithSeed(3))
	require.NoError(t, err)

	out, err := u.Sample([][]float64{{0}}, 10000)
	require.NoError(t, err)
	for _, x := range out[0][0] {
		require.GreaterOrEqual(t, x, -1.0)
		require.LessOrEqual(t, x, 1.0)
	}
}

func TestUniform_LogProbIgnoresCurrent(t *testing.T) {
	u, err := NewUniform([]float64{-1, 0}, []float64{1, 4})
	require.NoError(t, err)

	a, err := u.LogProb([]float64{-100, 100}, []float64{0, 1})
	require.NoError(t, err)
	b, err := u.LogProb([]float64{0.5, 0.5}, []float64{0, 1})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.InDelta(t, -math.Log(2)-math.Log(4), a, 1e-12)

	outside, err := u.LogProb([]float64{0, 0}, []float64{2, 1})
	require.NoError(t, err)
	assert.True(t, math.IsInf(outside, -1))
}

func TestUniform_InvalidBounds(t *testing.T) {
	tests := []struct {
		name         string
		lower, upper []float64
	}{
		{"empty", nil, nil},
		{"length mismatch", []float64{0}, []float64{1, 2}},
		{"inverted", []float64{1}, []float64{0}},
		{"degenerate", []float64{1}, []float64{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewUniform(tt.lower, tt.upper)
			assert.ErrorIs(t, err, ErrInvalidBounds)
		})
	}
}

func TestWithSeed_Reproducible(t *testing.T) {
	a, err := NewNormal(1, 1, WithSeed(42))
	require.NoError(t, err)
	b, err := NewNormal(1, 1, WithSeed(42))
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		x, err := Propose(a, []float64{0})
		require.NoError(t, err)
		y, err := Propose(b, []float64{0})
		require.NoError(t, err)
		assert.Equal(t, x, y)
	}
}
