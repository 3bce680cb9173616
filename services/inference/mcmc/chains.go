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

	"gonum.org/v1/gonum/stat"
)

var (
	// ErrNoChains indicates an empty collection.
	ErrNoChains = errors.New("no chains")

	// ErrMismatchedChains indicates chains of differing size or
	// dimensionality.
	ErrMismatchedChains = errors.New("chains differ in size or dimensionality")

	// ErrTooFewChains indicates R-hat was requested for fewer than two chains.
	ErrTooFewChains = errors.New("R-hat needs at least two chains")
)

// Chains is an immutable set of independent runs of equal size and
// dimensionality.
type Chains struct {
	chains []*Chain
}

// NewChains validates and wraps chains.
func NewChains(chains ...*Chain) (*Chains, error) {
	if len(chains) == 0 {
		return nil, ErrNoChains
	}
	first := chains[0]
	for i, c := range chains {
		if c == nil {
			return nil, fmt.Errorf("%w: chain %d is nil", ErrMismatchedChains, i)
		}
		if c.Size() != first.Size() || c.Dimensionality() != first.Dimensionality() {
			return nil, fmt.Errorf("%w: chain %d is %dx%d, chain 0 is %dx%d", ErrMismatchedChains,
				i, c.Size(), c.Dimensionality(), first.Size(), first.Dimensionality())
		}
	}
	return &Chains{chains: append([]*Chain(nil), chains...)}, nil
}

// Size returns the number of chains.
func (c *Chains) Size() int { return len(c.chains) }

// ChainSize returns the number of rows per chain.
func (c *Chains) ChainSize() int { return c.chains[0].Size() }

// Dimensionality returns the number of parameters.
func (c *Chains) Dimensionality() int { return c.chains[0].Dimensionality() }

// Chain returns chain i.
func (c *Chains) Chain(i int) *Chain { return c.chains[i] }

// All returns the chains in order.
func (c *Chains) All() []*Chain { return append([]*Chain(nil), c.chains...) }

// Mean returns the per-parameter mean of the chain means.
func (c *Chains) Mean() []float64 {
	means := make([]float64, c.Dimensionality())
	for _, ch := range c.chains {
		for j, v := range ch.Mean() {
			means[j] += v
		}
	}
	for j := range means {
		means[j] /= float64(len(c.chains))
	}
	return means
}

// Variance returns the per-parameter within-chain variance W, the mean of
// the chain variances.
func (c *Chains) Variance() []float64 {
	w := make([]float64, c.Dimensionality())
	for _, ch := range c.chains {
		for j, v := range ch.Variance() {
			w[j] += v
		}
	}
	for j := range w {
		w[j] /= float64(len(c.chains))
	}
	return w
}

// Rhat returns the per-parameter Gelman-Rubin statistic.
//
// Description:
//
//	With m chains of n rows, chain means mu_j, grand mean mu and
//	within-chain variance W:
//
//	  B      = n / (m - 1) * sum_j (mu_j - mu)^2
//	  var    = (1 - 1/n) * W + B / n
//	  R-hat  = sqrt(var / W)
//
//	Values near 1 indicate convergence. W == 0 yields NaN.
//
// Outputs:
//   - []float64: One R-hat per parameter.
//   - error: ErrTooFewChains if fewer than two chains are held.
func (c *Chains) Rhat() ([]float64, error) {
	m := len(c.chains)
	if m < 2 {
		return nil, fmt.Errorf("%w: have %d", ErrTooFewChains, m)
	}
	n := float64(c.ChainSize())
	dim := c.Dimensionality()

	chainMeans := make([][]float64, dim)
	for j := range chainMeans {
		chainMeans[j] = make([]float64, m)
	}
	for i, ch := range c.chains {
		for j, v := range ch.Mean() {
			chainMeans[j][i] = v
		}
	}
	w := c.Variance()

	out := make([]float64, dim)
	for j := 0; j < dim; j++ {
		if !(w[j] > 0) {
			out[j] = math.NaN()
			continue
		}
		grand := stat.Mean(chainMeans[j], nil)
		var ss float64
		for _, mu := range chainMeans[j] {
			ss += (mu - grand) * (mu - grand)
		}
		b := n / float64(m-1) * ss
		v := (1-1/n)*w[j] + b/n
		out[j] = math.Sqrt(v / w[j])
	}
	return out, nil
}

// GelmanRubin is an alias for Rhat.
func (c *Chains) GelmanRubin() ([]float64, error) { return c.Rhat() }
