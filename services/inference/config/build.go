// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/AleutianAI/hypothesis/services/inference/benchmark/normal"
	"github.com/AleutianAI/hypothesis/services/inference/classifier"
	"github.com/AleutianAI/hypothesis/services/inference/events"
	"github.com/AleutianAI/hypothesis/services/inference/mcmc"
	"github.com/AleutianAI/hypothesis/services/inference/telemetry"
	"github.com/AleutianAI/hypothesis/services/inference/transition"
)

// Random streams derived from the run seed.
const (
	streamTransition uint64 = iota + 1
	streamSampler
	streamTrainer
	streamSimulator
	streamObservations
)

// StreamSeed derives an independent seed for chain i and stream s.
func StreamSeed(seed uint64, chain int, stream uint64) uint64 {
	// splitmix64 finalizer over the combined input.
	z := seed + uint64(chain)*0x9e3779b97f4a7c15 + stream*0xbf58476d1ce4e5b9
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// ResolveSeed replaces a zero seed with a random one and returns it.
func (c *RunConfig) ResolveSeed() uint64 {
	if c.Seed == 0 {
		c.Seed = rand.Uint64()
	}
	return c.Seed
}

// BuildTransition constructs the proposal kernel for dim parameters.
func BuildTransition(c TransitionConfig, dim int, seed uint64) (transition.Distribution, error) {
	opt := transition.WithSeed(seed)
	switch c.Kind {
	case TransitionNormal:
		return transition.NewNormal(dim, c.Sigma, opt)
	case TransitionMVNormal:
		if len(c.Covariance) != dim {
			return nil, fmt.Errorf("%w: covariance has %d rows, want %d", transition.ErrDimensionMismatch, len(c.Covariance), dim)
		}
		data := make([]float64, 0, dim*dim)
		for i, row := range c.Covariance {
			if len(row) != dim {
				return nil, fmt.Errorf("%w: covariance row %d has %d columns, want %d", transition.ErrDimensionMismatch, i, len(row), dim)
			}
			data = append(data, row...)
		}
		return transition.NewMultivariateNormal(mat.NewSymDense(dim, data), opt)
	case TransitionUniform:
		if len(c.Min) != dim || len(c.Max) != dim {
			return nil, fmt.Errorf("%w: uniform bounds have %d and %d entries, want %d", transition.ErrDimensionMismatch, len(c.Min), len(c.Max), dim)
		}
		return transition.NewUniform(c.Min, c.Max, opt)
	default:
		return nil, fmt.Errorf("%w: unknown transition kind %q", ErrInvalidConfig, c.Kind)
	}
}

// Model is the Normal benchmark wired for one run.
type Model struct {
	Likelihood normal.LogLikelihood
	Sigma      float64
}

// NewModel returns the benchmark model.
func (c RunConfig) NewModel() Model {
	return Model{Likelihood: normal.LogLikelihood{Sigma: c.Benchmark.Sigma}, Sigma: c.Benchmark.Sigma}
}

// ResolveObservations returns the configured observations, or simulates
// Benchmark.Observations rows at Benchmark.TrueTheta.
func (c RunConfig) ResolveObservations(ctx context.Context) ([][]float64, error) {
	if len(c.Observations) > 0 {
		return c.Observations, nil
	}
	sim := &normal.Simulator{Sigma: c.Benchmark.Sigma, Src: rand.NewPCG(StreamSeed(c.Seed, 0, streamObservations), c.Seed)}
	thetas := make([][]float64, c.Benchmark.Observations)
	for i := range thetas {
		thetas[i] = c.Benchmark.TrueTheta
	}
	_, outputs, err := sim.Simulate(ctx, thetas)
	if err != nil {
		return nil, fmt.Errorf("simulate observations: %w", err)
	}
	return outputs, nil
}

// Hooks are attached to every sampler a Factory builds.
type Hooks struct {
	Logger  *slog.Logger
	Metrics *telemetry.SamplerMetrics

	// OnEmitter is called with each chain's emitter before it runs, e.g.
	// to attach a sink.
	OnEmitter func(chain int, e *events.Emitter)
}

// Factory returns an mcmc.Factory building chain i's sampler with its own
// seeds and emitter. The seed must already be resolved.
func (c RunConfig) Factory(hooks Hooks) mcmc.Factory {
	model := c.NewModel()
	dim := c.Dimensionality()
	logger := hooks.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(i int) (mcmc.Sampler, error) {
		kernel, err := BuildTransition(c.Transition, dim, StreamSeed(c.Seed, i, streamTransition))
		if err != nil {
			return nil, err
		}
		emitter := events.NewEmitter(events.WithChainID(fmt.Sprintf("chain-%d", i)))
		if hooks.OnEmitter != nil {
			hooks.OnEmitter(i, emitter)
		}
		opts := []mcmc.Option{
			mcmc.WithSeed(StreamSeed(c.Seed, i, streamSampler)),
			mcmc.WithLogger(logger.With(slog.Int("chain", i))),
			mcmc.WithEmitter(emitter),
			mcmc.WithMetrics(hooks.Metrics),
		}

		switch c.Method {
		case mcmc.MethodMH:
			return mcmc.NewMetropolisHastings(model.Likelihood, kernel, opts...)
		case mcmc.MethodHMC:
			if c.HMC.NumericalGradient {
				opts = append(opts, mcmc.WithNumericalGradient(c.HMC.GradientStep))
				return mcmc.NewHamiltonianMonteCarlo(mcmc.LogLikelihoodFunc(model.Likelihood.LogLikelihood),
					c.HMC.LeapfrogSteps, c.HMC.StepSize, opts...)
			}
			return mcmc.NewHamiltonianMonteCarlo(model.Likelihood, c.HMC.LeapfrogSteps, c.HMC.StepSize, opts...)
		case mcmc.MethodLFMH:
			trainer, err := classifier.NewTrainer(classifier.LogisticFactory(dim), c.LFMH.Trainer(),
				rand.NewPCG(StreamSeed(c.Seed, i, streamTrainer), 1), logger)
			if err != nil {
				return nil, err
			}
			sim := &normal.Simulator{Sigma: model.Sigma, Src: rand.NewPCG(StreamSeed(c.Seed, i, streamSimulator), 2)}
			return mcmc.NewLikelihoodFreeMetropolisHastings(sim, trainer, kernel, opts...)
		default:
			return nil, fmt.Errorf("%w: unknown method %q", ErrInvalidConfig, c.Method)
		}
	}
}
