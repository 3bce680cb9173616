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
	"fmt"
	"math"

	"github.com/AleutianAI/hypothesis/services/inference/events"
	"github.com/AleutianAI/hypothesis/services/inference/transition"
)

// LogLikelihood evaluates log p(observations | theta).
type LogLikelihood interface {
	LogLikelihood(theta []float64, observations [][]float64) float64
}

// LogLikelihoodFunc adapts a function to LogLikelihood.
type LogLikelihoodFunc func(theta []float64, observations [][]float64) float64

// LogLikelihood implements LogLikelihood.
func (f LogLikelihoodFunc) LogLikelihood(theta []float64, observations [][]float64) float64 {
	return f(theta, observations)
}

// DifferentiableLogLikelihood also provides d/dtheta log p(observations | theta).
type DifferentiableLogLikelihood interface {
	LogLikelihood

	// Gradient writes the gradient into dst (allocating if nil) and
	// returns it.
	Gradient(dst, theta []float64, observations [][]float64) []float64
}

// MetropolisHastings is the likelihood-based sampler.
//
// The acceptance probability is
// min(1, exp(ll(next) - ll(theta)) * HastingsCorrection(theta, next)).
type MetropolisHastings struct {
	base
	likelihood LogLikelihood
	transition transition.Distribution
}

// NewMetropolisHastings builds a sampler.
//
// Outputs:
//   - *MetropolisHastings: The sampler, with its own emitter and rng.
//   - error: Non-nil if likelihood or kernel is nil.
func NewMetropolisHastings(likelihood LogLikelihood, t transition.Distribution, opts ...Option) (*MetropolisHastings, error) {
	if likelihood == nil {
		return nil, ErrNilLikelihood
	}
	if t == nil {
		return nil, ErrNilTransition
	}
	return &MetropolisHastings{
		base:       newBase(MethodMH, events.MHStepStart, events.MHStepEnd, buildOptions(opts)),
		likelihood: likelihood,
		transition: t,
	}, nil
}

// Step implements Sampler.
func (m *MetropolisHastings) Step(_ context.Context, observations [][]float64, theta []float64) (Step, error) {
	next, err := transition.Propose(m.transition, theta)
	if err != nil {
		return Step{}, fmt.Errorf("propose: %w", err)
	}
	correction, err := HastingsCorrection(m.transition, theta, next)
	if err != nil {
		return Step{}, err
	}
	ratio := math.Exp(m.likelihood.LogLikelihood(next, observations) - m.likelihood.LogLikelihood(theta, observations))
	return m.decide(theta, next, AcceptanceProbability(ratio, correction)), nil
}

// Run implements Sampler.
func (m *MetropolisHastings) Run(ctx context.Context, req RunRequest) (*Chain, error) {
	return run(ctx, m, &m.base, req)
}
