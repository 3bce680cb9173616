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
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultLag selects the default maximum lag (chain size - 1) wherever a
// maxLag argument is accepted.
const DefaultLag = -1

var (
	// ErrEmptyChain indicates a chain with no rows.
	ErrEmptyChain = errors.New("chain is empty")

	// ErrMismatchedLengths indicates thetas and probabilities differ in length.
	ErrMismatchedLengths = errors.New("thetas and probabilities differ in length")

	// ErrRaggedChain indicates rows of differing dimensionality.
	ErrRaggedChain = errors.New("chain rows differ in dimensionality")

	// ErrInvalidLag indicates a lag or interval outside the chain.
	ErrInvalidLag = errors.New("lag out of range")

	// ErrInvalidParameter indicates a parameter index outside the chain.
	ErrInvalidParameter = errors.New("parameter index out of range")

	// ErrDegenerateChain indicates thinning a chain whose effective
	// sample size is zero.
	ErrDegenerateChain = errors.New("chain has zero effective sample size")
)

// Chain is an immutable record of an MCMC run.
//
// Description:
//
//	Row i holds the state after step i and probabilities[i] that step's
//	acceptance probability. Rejected steps repeat the previous row. The
//	optional burn-in is a separate Chain with the same dimensionality.
//
// Thread Safety:
//
//	Safe for concurrent reads. Accessors return copies.
type Chain struct {
	thetas        [][]float64
	probabilities []float64
	burnin        *Chain
}

// ChainOption configures NewChain.
type ChainOption func(*chainOptions)

type chainOptions struct {
	burninThetas        [][]float64
	burninProbabilities []float64
}

// WithBurnin attaches a burn-in record. Empty input means no burn-in.
func WithBurnin(thetas [][]float64, probabilities []float64) ChainOption {
	return func(o *chainOptions) {
		o.burninThetas = thetas
		o.burninProbabilities = probabilities
	}
}

// NewChain copies thetas and probabilities into a Chain.
//
// Outputs:
//   - *Chain: The chain.
//   - error: ErrEmptyChain, ErrMismatchedLengths or ErrRaggedChain.
func NewChain(thetas [][]float64, probabilities []float64, opts ...ChainOption) (*Chain, error) {
	o := chainOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	c, err := newChain(thetas, probabilities)
	if err != nil {
		return nil, err
	}
	if len(o.burninThetas) > 0 || len(o.burninProbabilities) > 0 {
		b, err := newChain(o.burninThetas, o.burninProbabilities)
		if err != nil {
			return nil, fmt.Errorf("burn-in: %w", err)
		}
		if b.Dimensionality() != c.Dimensionality() {
			return nil, fmt.Errorf("%w: burn-in has %d parameters, chain has %d",
				ErrRaggedChain, b.Dimensionality(), c.Dimensionality())
		}
		c.burnin = b
	}
	return c, nil
}

func newChain(thetas [][]float64, probabilities []float64) (*Chain, error) {
	if len(thetas) == 0 {
		return nil, ErrEmptyChain
	}
	if len(thetas) != len(probabilities) {
		return nil, fmt.Errorf("%w: %d thetas, %d probabilities", ErrMismatchedLengths, len(thetas), len(probabilities))
	}
	dim := len(thetas[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: zero-dimensional rows", ErrRaggedChain)
	}
	rows := make([][]float64, len(thetas))
	for i, row := range thetas {
		if len(row) != dim {
			return nil, fmt.Errorf("%w: row %d has %d parameters, want %d", ErrRaggedChain, i, len(row), dim)
		}
		rows[i] = append([]float64(nil), row...)
	}
	return &Chain{
		thetas:        rows,
		probabilities: append([]float64(nil), probabilities...),
	}, nil
}

// Size returns the number of recorded rows.
func (c *Chain) Size() int { return len(c.thetas) }

// Dimensionality returns the number of parameters per row.
func (c *Chain) Dimensionality() int { return len(c.thetas[0]) }

// Iterations returns the number of sampling steps, or the number of
// burn-in steps if burnin is true (zero when there was no burn-in).
func (c *Chain) Iterations(burnin bool) int {
	if burnin {
		if c.burnin == nil {
			return 0
		}
		return c.burnin.Size()
	}
	return c.Size()
}

// HasBurnin reports whether a burn-in record is attached.
func (c *Chain) HasBurnin() bool { return c.burnin != nil }

// Burnin returns the burn-in record, or nil.
func (c *Chain) Burnin() *Chain { return c.burnin }

// Thetas returns a copy of all rows.
func (c *Chain) Thetas() [][]float64 {
	out := make([][]float64, len(c.thetas))
	for i, row := range c.thetas {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

// Theta returns a copy of row i.
func (c *Chain) Theta(i int) []float64 {
	return append([]float64(nil), c.thetas[i]...)
}

// Probabilities returns a copy of the per-step acceptance probabilities.
func (c *Chain) Probabilities() []float64 {
	return append([]float64(nil), c.probabilities...)
}

// First returns a copy of the first row.
func (c *Chain) First() []float64 { return c.Theta(0) }

// Last returns a copy of the last row.
func (c *Chain) Last() []float64 { return c.Theta(len(c.thetas) - 1) }

// Parameter returns the trace of parameter j.
func (c *Chain) Parameter(j int) ([]float64, error) {
	if j < 0 || j >= c.Dimensionality() {
		return nil, fmt.Errorf("%w: %d of %d", ErrInvalidParameter, j, c.Dimensionality())
	}
	return c.column(j), nil
}

func (c *Chain) column(j int) []float64 {
	out := make([]float64, len(c.thetas))
	for i, row := range c.thetas {
		out[i] = row[j]
	}
	return out
}

// Mean returns the per-parameter sample mean.
func (c *Chain) Mean() []float64 {
	out := make([]float64, c.Dimensionality())
	for j := range out {
		out[j] = stat.Mean(c.column(j), nil)
	}
	return out
}

// Variance returns the per-parameter unbiased sample variance. A single
// row yields NaN.
func (c *Chain) Variance() []float64 {
	out := make([]float64, c.Dimensionality())
	for j := range out {
		out[j] = stat.Variance(c.column(j), nil)
	}
	return out
}

// Min returns the per-parameter minimum.
func (c *Chain) Min() []float64 {
	out := make([]float64, c.Dimensionality())
	for j := range out {
		out[j] = floats.Min(c.column(j))
	}
	return out
}

// Max returns the per-parameter maximum.
func (c *Chain) Max() []float64 {
	out := make([]float64, c.Dimensionality())
	for j := range out {
		out[j] = floats.Max(c.column(j))
	}
	return out
}

// MeanAcceptance returns the mean acceptance probability.
func (c *Chain) MeanAcceptance() float64 {
	return mean(c.probabilities)
}

// AcceptanceRate returns the fraction of consecutive rows that differ,
// i.e. the realized move rate. A single row yields 0.
func (c *Chain) AcceptanceRate() float64 {
	if len(c.thetas) < 2 {
		return 0
	}
	moves := 0
	for i := 1; i < len(c.thetas); i++ {
		if !floats.Equal(c.thetas[i-1], c.thetas[i]) {
			moves++
		}
	}
	return float64(moves) / float64(len(c.thetas)-1)
}

// Autocorrelation returns the unnormalized autocovariance of parameter
// j at lag k: sum_{t<N-k} (x_t - mean)(x_{t+k} - mean) / (N - k).
func (c *Chain) Autocorrelation(lag, param int) (float64, error) {
	x, err := c.Parameter(param)
	if err != nil {
		return 0, err
	}
	if lag < 0 || lag >= len(x) {
		return 0, fmt.Errorf("%w: lag %d for chain of size %d", ErrInvalidLag, lag, len(x))
	}
	return autocovariance(center(x), lag), nil
}

// AutocorrelationFunction returns the normalized autocorrelation of
// parameter j at lags 0, interval, 2*interval, ... up to maxLag
// (inclusive). DefaultLag selects size - 1. A constant trace yields NaN
// values.
//
// Outputs:
//   - lags: The evaluated lags.
//   - values: Autocorrelation(lag) / Autocorrelation(0); values[0] == 1.
//   - error: ErrInvalidLag or ErrInvalidParameter.
func (c *Chain) AutocorrelationFunction(maxLag, interval, param int) (lags []int, values []float64, err error) {
	x, err := c.Parameter(param)
	if err != nil {
		return nil, nil, err
	}
	maxLag, err = resolveLag(maxLag, interval, len(x))
	if err != nil {
		return nil, nil, err
	}
	centered := center(x)
	c0 := autocovariance(centered, 0)
	for k := 0; k <= maxLag; k += interval {
		lags = append(lags, k)
		values = append(values, autocovariance(centered, k)/c0)
	}
	return lags, values, nil
}

// IntegratedAutocorrelation returns the integrated autocorrelation time
// of parameter j:
//
//	1 + 2 * interval * sum_{k in interval, 2*interval, ... <= maxLag} rho(k)
//
// DefaultLag selects size - 1. A constant trace yields NaN.
func (c *Chain) IntegratedAutocorrelation(maxLag, interval, param int) (float64, error) {
	x, err := c.Parameter(param)
	if err != nil {
		return 0, err
	}
	maxLag, err = resolveLag(maxLag, interval, len(x))
	if err != nil {
		return 0, err
	}
	centered := center(x)
	c0 := autocovariance(centered, 0)
	var sum float64
	for k := interval; k <= maxLag; k += interval {
		sum += autocovariance(centered, k) / c0
	}
	return 1 + 2*float64(interval)*sum, nil
}

func resolveLag(maxLag, interval, size int) (int, error) {
	if interval <= 0 {
		return 0, fmt.Errorf("%w: interval must be positive, got %d", ErrInvalidLag, interval)
	}
	if maxLag < 0 {
		return size - 1, nil
	}
	if maxLag >= size {
		return 0, fmt.Errorf("%w: lag %d for chain of size %d", ErrInvalidLag, maxLag, size)
	}
	return maxLag, nil
}

// EffectiveSize returns the smallest per-parameter effective sample size.
func (c *Chain) EffectiveSize() int {
	ess := math.MaxInt
	for j := 0; j < c.Dimensionality(); j++ {
		ess = min(ess, effectiveSize(c.column(j)))
	}
	return ess
}

// EffectiveSizeOf returns the effective sample size of parameter j.
//
// Description:
//
//	Scans lags from 1 until the normalized autocorrelation first turns
//	negative at lag L, and integrates up to L - 1 (or size - 1 if it
//	never does). The result is floor(|N / tau|). Constant and single-row
//	traces return 0.
func (c *Chain) EffectiveSizeOf(param int) (int, error) {
	x, err := c.Parameter(param)
	if err != nil {
		return 0, err
	}
	return effectiveSize(x), nil
}

func effectiveSize(x []float64) int {
	n := len(x)
	if n < 2 {
		return 0
	}
	centered := center(x)
	c0 := autocovariance(centered, 0)
	if !(c0 > 0) {
		return 0
	}
	var sum float64
	for k := 1; k < n; k++ {
		rho := autocovariance(centered, k) / c0
		if rho < 0 {
			break
		}
		sum += rho
	}
	tau := 1 + 2*sum
	return int(math.Floor(math.Abs(float64(n) / tau)))
}

// Efficiency returns EffectiveSize / Size.
func (c *Chain) Efficiency() float64 {
	return float64(c.EffectiveSize()) / float64(c.Size())
}

// Thin keeps every floor(N/E)-th row, E being the effective size, and
// returns floor(N / floor(N/E)) rows starting at row 0. The result has no
// burn-in.
//
// Outputs:
//   - *Chain: The thinned chain.
//   - error: ErrDegenerateChain if the effective size is zero.
func (c *Chain) Thin() (*Chain, error) {
	ess := c.EffectiveSize()
	if ess <= 0 {
		return nil, ErrDegenerateChain
	}
	n := c.Size()
	step := n / ess
	count := n / step
	thetas := make([][]float64, count)
	probabilities := make([]float64, count)
	for i := 0; i < count; i++ {
		thetas[i] = c.thetas[i*step]
		probabilities[i] = c.probabilities[i*step]
	}
	return newChain(thetas, probabilities)
}

func center(x []float64) []float64 {
	m := stat.Mean(x, nil)
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = v - m
	}
	return out
}

func autocovariance(centered []float64, lag int) float64 {
	n := len(centered)
	return floats.Dot(centered[:n-lag], centered[lag:]) / float64(n-lag)
}

func mean(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	return stat.Mean(x, nil)
}
