// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package normal

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/hypothesis/services/inference/simulation"
)

func TestPrior(t *testing.T) {
	p := NewPrior(2, rand.NewPCG(1, 2))
	draws := p.Sample(1000)
	require.Len(t, draws, 1000)
	for _, d := range draws {
		require.Len(t, d, 2)
		assert.True(t, d[0] >= DefaultLower && d[0] <= DefaultUpper)
	}
	assert.InDelta(t, -2*math.Log(10), p.LogProb([]float64{0, 0}), 1e-12)
	assert.True(t, math.IsInf(p.LogProb([]float64{6, 0}), -1))
}

func TestSimulator_MeanMatchesTheta(t *testing.T) {
	sim := NewSimulator(rand.NewPCG(3, 4))
	thetas := simulation.Repeat([]float64{2, -1}, 5000)
	inputs, outputs, err := simulation.Run(context.Background(), sim, thetas)
	require.NoError(t, err)
	assert.Equal(t, thetas, inputs)

	var m0, m1 float64
	for _, x := range outputs {
		m0 += x[0]
		m1 += x[1]
	}
	assert.InDelta(t, 2, m0/5000, 0.05)
	assert.InDelta(t, -1, m1/5000, 0.05)
}

func TestSimulator_RespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := NewSimulator(nil).Simulate(ctx, [][]float64{{0}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLogLikelihood_GradientMatchesFiniteDifference(t *testing.T) {
	ll := NewLogLikelihood()
	obs := [][]float64{{0.5, 1}, {-0.2, 2}}
	theta := []float64{0.1, 1.4}

	grad := ll.Gradient(nil, theta, obs)
	const h = 1e-6
	for j := range theta {
		up := append([]float64(nil), theta...)
		down := append([]float64(nil), theta...)
		up[j] += h
		down[j] -= h
		fd := (ll.LogLikelihood(up, obs) - ll.LogLikelihood(down, obs)) / (2 * h)
		assert.InDelta(t, fd, grad[j], 1e-5)
	}
}
