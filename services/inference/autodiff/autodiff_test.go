// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package autodiff

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func quadratic(x []float64) float64 {
	return x[0]*x[0] + 3*x[0]*x[1] + math.Sin(x[1])
}

func quadraticGrad(dst, x []float64) []float64 {
	dst[0] = 2*x[0] + 3*x[1]
	dst[1] = 3*x[0] + math.Cos(x[1])
	return dst
}

func TestNumericalMatchesAnalytic(t *testing.T) {
	x := []float64{0.7, -1.2}
	a := Analytic{F: quadratic, Grad: quadraticGrad}.Gradient(nil, x)
	n := Numerical{F: quadratic}.Gradient(nil, x)

	assert.InDeltaSlice(t, a, n, 1e-6)
	assert.Equal(t, quadratic(x), Numerical{F: quadratic}.Value(x))
}

func TestNegate(t *testing.T) {
	f := Analytic{F: quadratic, Grad: quadraticGrad}
	neg := Negate(f)
	x := []float64{1, 2}

	assert.Equal(t, -quadratic(x), neg.Value(x))
	g := f.Gradient(nil, x)
	ng := neg.Gradient(make([]float64, 2), x)
	assert.Equal(t, -g[0], ng[0])
	assert.Equal(t, -g[1], ng[1])
}
