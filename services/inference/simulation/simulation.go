// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package simulation defines the simulator and prior contracts consumed by
// likelihood-free inference, plus joint/marginal sampling helpers.
package simulation

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrBatchSize indicates a simulator returned a batch of the wrong size.
	ErrBatchSize = errors.New("simulator output batch does not match input batch")

	// ErrInvalidCount indicates a non-positive sample count.
	ErrInvalidCount = errors.New("sample count must be positive")
)

// Simulator produces one observation per input parameter row.
//
// Implementations must return inputs that echo thetas and outputs with
// len(outputs) == len(thetas).
type Simulator interface {
	Simulate(ctx context.Context, thetas [][]float64) (inputs, outputs [][]float64, err error)
}

// SimulatorFunc adapts a function to Simulator.
type SimulatorFunc func(ctx context.Context, thetas [][]float64) (inputs, outputs [][]float64, err error)

// Simulate implements Simulator.
func (f SimulatorFunc) Simulate(ctx context.Context, thetas [][]float64) ([][]float64, [][]float64, error) {
	return f(ctx, thetas)
}

// Prior is a distribution over parameters.
type Prior interface {
	// Sample draws n parameter rows.
	Sample(n int) [][]float64

	// LogProb returns the log prior density of theta.
	LogProb(theta []float64) float64
}

// Run calls sim and checks the batch contract.
func Run(ctx context.Context, sim Simulator, thetas [][]float64) ([][]float64, [][]float64, error) {
	inputs, outputs, err := sim.Simulate(ctx, thetas)
	if err != nil {
		return nil, nil, fmt.Errorf("simulate %d rows: %w", len(thetas), err)
	}
	if len(outputs) != len(thetas) {
		return nil, nil, fmt.Errorf("%w: %d inputs, %d outputs", ErrBatchSize, len(thetas), len(outputs))
	}
	return inputs, outputs, nil
}

// Repeat returns n copies of theta, each an independent slice.
func Repeat(theta []float64, n int) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		out[i] = append([]float64(nil), theta...)
	}
	return out
}

// SampleJoint draws n pairs (theta, x) with theta ~ prior and x ~ p(x | theta).
//
// Outputs:
//   - inputs: The sampled parameters.
//   - outputs: One simulated observation per parameter.
//   - error: Non-nil if n <= 0 or the simulator fails.
func SampleJoint(ctx context.Context, sim Simulator, prior Prior, n int) ([][]float64, [][]float64, error) {
	if n <= 0 {
		return nil, nil, fmt.Errorf("%w: got %d", ErrInvalidCount, n)
	}
	return Run(ctx, sim, prior.Sample(n))
}

// SampleMarginal draws n observations from the evidence p(x) by simulating
// at prior draws and discarding the parameters.
func SampleMarginal(ctx context.Context, sim Simulator, prior Prior, n int) ([][]float64, error) {
	_, outputs, err := SampleJoint(ctx, sim, prior, n)
	if err != nil {
		return nil, err
	}
	return outputs, nil
}
