// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/AleutianAI/hypothesis/services/inference/optim"
)

// Default training budget per MCMC step.
const (
	DefaultSimulatorSamples = 20000
	DefaultBatchSize        = 128
	DefaultEpochs           = 50
)

var (
	// ErrNoData indicates an empty training set.
	ErrNoData = errors.New("training data is empty")

	// ErrInvalidConfig indicates a non-positive training budget.
	ErrInvalidConfig = errors.New("invalid trainer configuration")
)

// TrainerConfig is the per-step training budget.
type TrainerConfig struct {
	// SimulatorSamples is the number of simulations per parameter value.
	SimulatorSamples int

	// BatchSize is the number of rows drawn from each class per update.
	BatchSize int

	// Epochs scales the number of updates:
	// Epochs * SimulatorSamples / BatchSize.
	Epochs int

	// LearningRate for Adam. Zero selects optim.DefaultLearningRate.
	LearningRate float64
}

// DefaultTrainerConfig returns the standard budget.
func DefaultTrainerConfig() TrainerConfig {
	return TrainerConfig{
		SimulatorSamples: DefaultSimulatorSamples,
		BatchSize:        DefaultBatchSize,
		Epochs:           DefaultEpochs,
		LearningRate:     optim.DefaultLearningRate,
	}
}

// Iterations returns the number of gradient updates per training run.
func (c TrainerConfig) Iterations() int {
	if c.BatchSize <= 0 {
		return 0
	}
	return c.Epochs * c.SimulatorSamples / c.BatchSize
}

// Validate checks the budget.
func (c TrainerConfig) Validate() error {
	if c.SimulatorSamples <= 0 || c.BatchSize <= 0 || c.Epochs <= 0 {
		return fmt.Errorf("%w: samples=%d batch=%d epochs=%d",
			ErrInvalidConfig, c.SimulatorSamples, c.BatchSize, c.Epochs)
	}
	if c.LearningRate < 0 {
		return fmt.Errorf("%w: learning rate %v", ErrInvalidConfig, c.LearningRate)
	}
	return nil
}

// Result describes one training run.
type Result struct {
	Classifier Classifier
	Iterations int
	FinalLoss  float64
}

// Trainer fits a fresh classifier for every call to Train. No state is
// carried between calls other than the random source.
//
// Thread Safety: NOT safe for concurrent use.
type Trainer struct {
	factory Factory
	config  TrainerConfig
	rng     *rand.Rand
	logger  *slog.Logger
}

// NewTrainer creates a trainer.
//
// Inputs:
//   - factory: Allocates a new classifier per training run. Must not be nil.
//   - config: Training budget. Validated.
//   - src: Random source for mini-batch selection. Nil selects a random seed.
//   - logger: Nil selects slog.Default().
func NewTrainer(factory Factory, config TrainerConfig, src rand.Source, logger *slog.Logger) (*Trainer, error) {
	if factory == nil {
		return nil, fmt.Errorf("%w: nil classifier factory", ErrInvalidConfig)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Trainer{
		factory: factory,
		config:  config,
		rng:     rand.New(src),
		logger:  logger,
	}, nil
}

// Config returns the training budget.
func (t *Trainer) Config() TrainerConfig { return t.config }

// Train fits a new classifier to separate xThetaNext (label 1) from
// xTheta (label 0).
//
// Description:
//
//	Runs Config().Iterations() Adam updates. Each update draws BatchSize
//	rows with replacement from each class and minimizes the mean binary
//	cross-entropy over the balanced batch.
//
// Outputs:
//   - *Result: The trained classifier and final mini-batch loss.
//   - error: ErrNoData on empty inputs, or ctx.Err() if cancelled.
func (t *Trainer) Train(ctx context.Context, xTheta, xThetaNext [][]float64) (*Result, error) {
	if len(xTheta) == 0 || len(xThetaNext) == 0 {
		return nil, ErrNoData
	}

	clf := t.factory.NewClassifier()
	params := clf.Parameters()
	opt := optim.NewAdam(len(params), t.config.LearningRate)
	grad := make([]float64, len(params))

	b := t.config.BatchSize
	batch := make([][]float64, 2*b)
	labels := make([]float64, 2*b)
	for i := b; i < 2*b; i++ {
		labels[i] = 1
	}

	iterations := t.config.Iterations()
	var loss float64
	for it := 0; it < iterations; it++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for i := 0; i < b; i++ {
			batch[i] = xTheta[t.rng.IntN(len(xTheta))]
			batch[b+i] = xThetaNext[t.rng.IntN(len(xThetaNext))]
		}
		loss = clf.LossGradient(batch, labels, grad)
		if err := opt.Step(params, grad); err != nil {
			return nil, fmt.Errorf("optimizer step %d: %w", it, err)
		}
	}

	t.logger.Debug("classifier trained",
		slog.Int("iterations", iterations),
		slog.Float64("final_loss", loss),
	)
	return &Result{Classifier: clf, Iterations: iterations, FinalLoss: loss}, nil
}
