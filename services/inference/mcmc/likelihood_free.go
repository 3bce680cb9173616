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
	"log/slog"
	"math"
	"time"

	"github.com/AleutianAI/hypothesis/services/inference/classifier"
	"github.com/AleutianAI/hypothesis/services/inference/events"
	"github.com/AleutianAI/hypothesis/services/inference/simulation"
	"github.com/AleutianAI/hypothesis/services/inference/transition"
)

var (
	// ErrNilSimulator indicates a likelihood-free sampler without a simulator.
	ErrNilSimulator = errors.New("simulator is nil")

	// ErrNilTrainer indicates a likelihood-free sampler without a trainer.
	ErrNilTrainer = errors.New("classifier trainer is nil")

	// ErrInvalidScore indicates the classifier returned NaN scores, which
	// happens when observation rows do not match the simulator output.
	ErrInvalidScore = errors.New("classifier returned an invalid score")
)

// LikelihoodFreeMetropolisHastings replaces the likelihood ratio with a
// classifier trained at every step.
//
// Description:
//
//	Each step proposes next, simulates SimulatorSamples observations at
//	theta and at next, trains a fresh classifier to separate them (next
//	labelled 1), and scores the real observations. The ratio
//	prod s/(1-s+Epsilon) approximates p(x|next)/p(x|theta).
//
//	The step fires, in order: lfmh_simulation_start, lfmh_simulation_end,
//	lfmh_train_start, lfmh_train_end. The driver brackets these with
//	lfmh_step_start and lfmh_step_end.
type LikelihoodFreeMetropolisHastings struct {
	base
	simulator  simulation.Simulator
	trainer    *classifier.Trainer
	transition transition.Distribution
}

// NewLikelihoodFreeMetropolisHastings builds a sampler.
//
// Inputs:
//   - sim: Forward model p(x | theta).
//   - trainer: Builds a fresh classifier per step. Its SimulatorSamples
//     sets the number of simulations per parameter value.
//   - t: The proposal kernel.
//
// Outputs:
//   - *LikelihoodFreeMetropolisHastings: The sampler.
//   - error: Non-nil if any dependency is nil.
func NewLikelihoodFreeMetropolisHastings(sim simulation.Simulator, trainer *classifier.Trainer, t transition.Distribution, opts ...Option) (*LikelihoodFreeMetropolisHastings, error) {
	if sim == nil {
		return nil, ErrNilSimulator
	}
	if trainer == nil {
		return nil, ErrNilTrainer
	}
	if t == nil {
		return nil, ErrNilTransition
	}
	return &LikelihoodFreeMetropolisHastings{
		base:       newBase(MethodLFMH, events.LFMHStepStart, events.LFMHStepEnd, buildOptions(opts)),
		simulator:  sim,
		trainer:    trainer,
		transition: t,
	}, nil
}

// Step implements Sampler.
func (l *LikelihoodFreeMetropolisHastings) Step(ctx context.Context, observations [][]float64, theta []float64) (Step, error) {
	next, err := transition.Propose(l.transition, theta)
	if err != nil {
		return Step{}, fmt.Errorf("propose: %w", err)
	}

	n := l.trainer.Config().SimulatorSamples
	if err := l.emitter.Emit(ctx, events.LFMHSimulationStart, nil); err != nil {
		return Step{}, err
	}
	_, xTheta, err := simulation.Run(ctx, l.simulator, simulation.Repeat(theta, n))
	if err != nil {
		return Step{}, fmt.Errorf("simulate at theta: %w", err)
	}
	_, xNext, err := simulation.Run(ctx, l.simulator, simulation.Repeat(next, n))
	if err != nil {
		return Step{}, fmt.Errorf("simulate at proposal: %w", err)
	}
	if err := l.emitter.Emit(ctx, events.LFMHSimulationEnd, nil); err != nil {
		return Step{}, err
	}

	if err := l.emitter.Emit(ctx, events.LFMHTrainStart, nil); err != nil {
		return Step{}, err
	}
	started := time.Now()
	result, err := l.trainer.Train(ctx, xTheta, xNext)
	if err != nil {
		return Step{}, fmt.Errorf("train classifier: %w", err)
	}
	l.metrics.RecordTraining(ctx, time.Since(started))
	l.logger.Debug("surrogate trained",
		slog.Int("iterations", result.Iterations),
		slog.Float64("final_loss", result.FinalLoss),
	)
	if err := l.emitter.Emit(ctx, events.LFMHTrainEnd, result); err != nil {
		return Step{}, err
	}

	scores := result.Classifier.Score(observations)
	for _, s := range scores {
		if math.IsNaN(s) {
			return Step{}, ErrInvalidScore
		}
	}
	ratio := math.Exp(ClassifierLogRatio(scores))

	correction, err := HastingsCorrection(l.transition, theta, next)
	if err != nil {
		return Step{}, err
	}
	return l.decide(theta, next, AcceptanceProbability(ratio, correction)), nil
}

// Run implements Sampler.
func (l *LikelihoodFreeMetropolisHastings) Run(ctx context.Context, req RunRequest) (*Chain, error) {
	return run(ctx, l, &l.base, req)
}
