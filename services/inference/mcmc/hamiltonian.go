// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package mcmc

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/AleutianAI/hypothesis/services/inference/autodiff"
	"github.com/AleutianAI/hypothesis/services/inference/events"
)

var (
	// ErrNotDifferentiable indicates HMC was given a likelihood without a
	// gradient and numerical differentiation was not enabled.
	ErrNotDifferentiable = errors.New("log-likelihood is not differentiable")

	// ErrInvalidLeapfrog indicates a non-positive step count or step size.
	ErrInvalidLeapfrog = errors.New("leapfrog steps and step size must be positive")
)

// HamiltonianMonteCarlo proposes by simulating Hamiltonian dynamics with
// potential U(theta) = -log p(observations | theta) and kinetic energy
// K(p) = |p|^2 / 2.
//
// Description:
//
//	Each step draws momentum p ~ N(0, I), runs LeapfrogSteps iterations of
//	half momentum step, full position step, half momentum step, and accepts
//	with min(1, exp(U(theta) - U(theta') - K(p') + K(p))).
type HamiltonianMonteCarlo struct {
	base
	likelihood LogLikelihood
	gradient   func(dst, theta []float64, observations [][]float64) []float64
	steps      int
	stepSize   float64

	momentumDim int
	momentum    func(dst []float64) []float64
}

// NewHamiltonianMonteCarlo builds a sampler.
//
// Inputs:
//   - likelihood: Must implement DifferentiableLogLikelihood unless
//     WithNumericalGradient is given.
//   - leapfrogSteps: Number of leapfrog iterations per proposal.
//   - stepSize: Leapfrog step size.
//
// Outputs:
//   - *HamiltonianMonteCarlo: The sampler.
//   - error: ErrNotDifferentiable, ErrInvalidLeapfrog or ErrNilLikelihood.
func NewHamiltonianMonteCarlo(likelihood LogLikelihood, leapfrogSteps int, stepSize float64, opts ...Option) (*HamiltonianMonteCarlo, error) {
	if likelihood == nil {
		return nil, ErrNilLikelihood
	}
	if leapfrogSteps <= 0 || !(stepSize > 0) {
		return nil, fmt.Errorf("%w: steps=%d size=%g", ErrInvalidLeapfrog, leapfrogSteps, stepSize)
	}
	o := buildOptions(opts)

	h := &HamiltonianMonteCarlo{
		base:       newBase(MethodHMC, events.HMCStepStart, events.HMCStepEnd, o),
		likelihood: likelihood,
		steps:      leapfrogSteps,
		stepSize:   stepSize,
	}
	switch d := likelihood.(type) {
	case DifferentiableLogLikelihood:
		h.gradient = d.Gradient
	default:
		if !o.numericalGradient {
			return nil, ErrNotDifferentiable
		}
		step := o.gradientStep
		h.gradient = func(dst, theta []float64, observations [][]float64) []float64 {
			return autodiff.Numerical{
				F:    func(x []float64) float64 { return likelihood.LogLikelihood(x, observations) },
				Step: step,
			}.Gradient(dst, theta)
		}
	}
	return h, nil
}

// potential returns U = -log p(observations | .) for one step.
func (h *HamiltonianMonteCarlo) potential(observations [][]float64) autodiff.Differentiable {
	return autodiff.Negate(autodiff.Analytic{
		F: func(x []float64) float64 { return h.likelihood.LogLikelihood(x, observations) },
		Grad: func(dst, x []float64) []float64 {
			return h.gradient(dst, x, observations)
		},
	})
}

// sampleMomentum draws p ~ N(0, I) matching theta's dimensionality.
func (h *HamiltonianMonteCarlo) sampleMomentum(dim int) []float64 {
	if h.momentum == nil || h.momentumDim != dim {
		h.momentumDim = dim
		if dim == 1 {
			n := distuv.Normal{Mu: 0, Sigma: 1, Src: h.rng}
			h.momentum = func(dst []float64) []float64 {
				dst[0] = n.Rand()
				return dst
			}
		} else {
			identity := mat.NewDiagDense(dim, nil)
			for i := 0; i < dim; i++ {
				identity.SetDiag(i, 1)
			}
			n, _ := distmv.NewNormal(make([]float64, dim), identity, h.rng)
			h.momentum = n.Rand
		}
	}
	return h.momentum(make([]float64, dim))
}

func kinetic(p []float64) float64 {
	return floats.Dot(p, p) / 2
}

// Step implements Sampler.
func (h *HamiltonianMonteCarlo) Step(_ context.Context, observations [][]float64, theta []float64) (Step, error) {
	u := h.potential(observations)
	dim := len(theta)

	p0 := h.sampleMomentum(dim)
	p := append([]float64(nil), p0...)
	q := append([]float64(nil), theta...)
	grad := make([]float64, dim)

	half := h.stepSize / 2
	for i := 0; i < h.steps; i++ {
		grad = u.Gradient(grad, q)
		floats.AddScaled(p, -half, grad)
		// dK/dp = p
		floats.AddScaled(q, h.stepSize, p)
		grad = u.Gradient(grad, q)
		floats.AddScaled(p, -half, grad)
	}

	rho := math.Exp(u.Value(theta) - u.Value(q) - kinetic(p) + kinetic(p0))
	return h.decide(theta, q, AcceptanceProbability(rho, 1)), nil
}

// Run implements Sampler.
func (h *HamiltonianMonteCarlo) Run(ctx context.Context, req RunRequest) (*Chain, error) {
	return run(ctx, h, &h.base, req)
}
