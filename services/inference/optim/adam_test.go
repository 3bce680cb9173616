// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package optim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdam_FirstStepMagnitude(t *testing.T) {
	// With bias correction the first update is -lr * sign(g).
	a := NewAdam(2, 0.1)
	params := []float64{1, 1}
	require.NoError(t, a.Step(params, []float64{5, -0.01}))

	assert.InDelta(t, 0.9, params[0], 1e-6)
	assert.InDelta(t, 1.1, params[1], 1e-4)
	assert.Equal(t, 1, a.Steps())
}

func TestAdam_MinimizesQuadratic(t *testing.T) {
	// f(x, y) = (x-3)^2 + 2(y+1)^2
	a := NewAdam(2, 0.05)
	params := []float64{0, 0}
	grad := make([]float64, 2)
	for i := 0; i < 5000; i++ {
		grad[0] = 2 * (params[0] - 3)
		grad[1] = 4 * (params[1] + 1)
		require.NoError(t, a.Step(params, grad))
	}
	assert.InDelta(t, 3, params[0], 1e-2)
	assert.InDelta(t, -1, params[1], 1e-2)
}

func TestAdam_DefaultsAndErrors(t *testing.T) {
	a := NewAdam(1, 0)
	assert.Equal(t, DefaultLearningRate, a.LearningRate)

	err := a.Step([]float64{1}, []float64{1, 2})
	assert.ErrorIs(t, err, ErrGradientSize)
}
