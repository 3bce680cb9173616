// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package optim implements first-order optimizers over flat parameter vectors.
package optim

import (
	"errors"
	"fmt"
	"math"
)

// Default Adam hyperparameters.
const (
	DefaultLearningRate = 1e-3
	DefaultBeta1        = 0.9
	DefaultBeta2        = 0.999
	DefaultEpsilon      = 1e-8
)

// ErrGradientSize indicates a gradient whose length differs from the parameters.
var ErrGradientSize = errors.New("gradient length does not match parameters")

// Adam is the Adam optimizer (Kingma & Ba, 2015) with bias correction.
//
// Thread Safety: NOT safe for concurrent use.
type Adam struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64

	m []float64
	v []float64
	t int
}

// NewAdam creates an optimizer for n parameters with default hyperparameters.
// A non-positive learningRate selects DefaultLearningRate.
func NewAdam(n int, learningRate float64) *Adam {
	if learningRate <= 0 {
		learningRate = DefaultLearningRate
	}
	return &Adam{
		LearningRate: learningRate,
		Beta1:        DefaultBeta1,
		Beta2:        DefaultBeta2,
		Epsilon:      DefaultEpsilon,
		m:            make([]float64, n),
		v:            make([]float64, n),
	}
}

// Step applies one update to params in place using grad.
//
// Inputs:
//   - params: Parameters to update. Modified in place.
//   - grad: Gradient of the loss with respect to params.
//
// Outputs:
//   - error: ErrGradientSize if lengths disagree.
func (a *Adam) Step(params, grad []float64) error {
	if len(params) != len(a.m) || len(grad) != len(a.m) {
		return fmt.Errorf("%w: params %d, grad %d, state %d", ErrGradientSize, len(params), len(grad), len(a.m))
	}
	a.t++
	c1 := 1 - math.Pow(a.Beta1, float64(a.t))
	c2 := 1 - math.Pow(a.Beta2, float64(a.t))
	for i, g := range grad {
		a.m[i] = a.Beta1*a.m[i] + (1-a.Beta1)*g
		a.v[i] = a.Beta2*a.v[i] + (1-a.Beta2)*g*g
		mHat := a.m[i] / c1
		vHat := a.v[i] / c2
		params[i] -= a.LearningRate * mHat / (math.Sqrt(vHat) + a.Epsilon)
	}
	return nil
}

// Steps returns the number of updates applied so far.
func (a *Adam) Steps() int { return a.t }
