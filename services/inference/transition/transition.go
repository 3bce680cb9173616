// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package transition provides proposal kernels for Markov Chain Monte Carlo.
//
// # Description
//
// A Distribution proposes a candidate parameter vector given the current
// one, reports the log-density of that move, and declares whether the kernel
// is symmetric. Samplers skip the Hastings correction for symmetric kernels.
//
// Three kernels are provided:
//
//   - Normal: independent Gaussian random walk with a shared sigma
//   - MultivariateNormal: correlated Gaussian random walk
//   - Uniform: independent uniform proposal inside fixed bounds
//
// # Shapes
//
// Sample takes a batch of parameter rows (batch x dimensionality) and returns
// batch x dimensionality x samples. Use Propose for the common single-row,
// single-draw case.
//
// # Thread Safety
//
// Kernels hold a random source and are NOT safe for concurrent use. Give each
// chain its own kernel.
package transition

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

var (
	// ErrDimensionMismatch indicates a parameter row does not match the
	// kernel's configured dimensionality.
	ErrDimensionMismatch = errors.New("parameter dimensionality does not match transition")

	// ErrInvalidSamples indicates a non-positive number of draws was requested.
	ErrInvalidSamples = errors.New("number of samples must be positive")

	// ErrInvalidBounds indicates uniform bounds that are empty or inverted.
	ErrInvalidBounds = errors.New("invalid uniform bounds")

	// ErrNotPositiveDefinite indicates a covariance matrix that cannot be factorized.
	ErrNotPositiveDefinite = errors.New("covariance is not positive definite")

	// ErrInvalidSigma indicates a non-positive standard deviation.
	ErrInvalidSigma = errors.New("sigma must be positive")
)

// Distribution is a Markov transition kernel q(next | current).
type Distribution interface {
	// Sample draws samples proposals for every row in thetas.
	// The result is indexed [row][parameter][sample].
	Sample(thetas [][]float64, samples int) ([][][]float64, error)

	// LogProb returns log q(next | current).
	LogProb(current, next []float64) (float64, error)

	// IsSymmetric reports whether q(a | b) == q(b | a) for all a, b.
	IsSymmetric() bool

	// Dimensionality is the length of every parameter row.
	Dimensionality() int
}

// Option configures a kernel.
type Option func(*options)

type options struct {
	src rand.Source
}

// WithSource sets the random source used for proposals.
func WithSource(src rand.Source) Option {
	return func(o *options) {
		o.src = src
	}
}

// WithSeed seeds a PCG source for reproducible proposals.
func WithSeed(seed uint64) Option {
	return func(o *options) {
		o.src = rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	}
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.src == nil {
		o.src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return o
}

// Propose draws a single proposal from d centered on theta.
//
// Inputs:
//   - d: The transition kernel.
//   - theta: Current parameter row. Not modified.
//
// Outputs:
//   - []float64: A new parameter row.
//   - error: Non-nil on dimensionality mismatch.
func Propose(d Distribution, theta []float64) ([]float64, error) {
	draws, err := d.Sample([][]float64{theta}, 1)
	if err != nil {
		return nil, err
	}
	next := make([]float64, len(draws[0]))
	for i, column := range draws[0] {
		next[i] = column[0]
	}
	return next, nil
}

func checkBatch(thetas [][]float64, samples, dim int) error {
	if samples <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidSamples, samples)
	}
	for i, theta := range thetas {
		if len(theta) != dim {
			return fmt.Errorf("%w: row %d has %d parameters, want %d", ErrDimensionMismatch, i, len(theta), dim)
		}
	}
	return nil
}

func checkPair(current, next []float64, dim int) error {
	if len(current) != dim || len(next) != dim {
		return fmt.Errorf("%w: got %d and %d, want %d", ErrDimensionMismatch, len(current), len(next), dim)
	}
	return nil
}

func allocate(batch, dim, samples int) [][][]float64 {
	out := make([][][]float64, batch)
	for i := range out {
		out[i] = make([][]float64, dim)
		for j := range out[i] {
			out[i][j] = make([]float64, samples)
		}
	}
	return out
}
