// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package transition

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
	"gonum.org/v1/gonum/stat/distuv"
)

// Normal is an isotropic Gaussian random walk: next ~ N(current, sigma^2 I).
type Normal struct {
	sigma float64
	dim   int
	src   rand.Source
}

// NewNormal creates a Gaussian random-walk kernel.
//
// Inputs:
//   - dim: Parameter dimensionality. Must be positive.
//   - sigma: Per-component standard deviation. Must be positive.
//
// Outputs:
//   - *Normal: The kernel.
//   - error: Non-nil if dim or sigma is invalid.
func NewNormal(dim int, sigma float64, opts ...Option) (*Normal, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dimensionality %d", ErrDimensionMismatch, dim)
	}
	if !(sigma > 0) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidSigma, sigma)
	}
	o := buildOptions(opts)
	return &Normal{sigma: sigma, dim: dim, src: o.src}, nil
}

// Sigma returns the proposal standard deviation.
func (n *Normal) Sigma() float64 { return n.sigma }

// Dimensionality implements Distribution.
func (n *Normal) Dimensionality() int { return n.dim }

// IsSymmetric implements Distribution. Always true.
func (n *Normal) IsSymmetric() bool { return true }

// Sample implements Distribution.
func (n *Normal) Sample(thetas [][]float64, samples int) ([][][]float64, error) {
	if err := checkBatch(thetas, samples, n.dim); err != nil {
		return nil, err
	}
	out := allocate(len(thetas), n.dim, samples)
	noise := distuv.Normal{Mu: 0, Sigma: n.sigma, Src: n.src}
	for i, theta := range thetas {
		for s := 0; s < samples; s++ {
			for j := range theta {
				out[i][j][s] = theta[j] + noise.Rand()
			}
		}
	}
	return out, nil
}

// LogProb implements Distribution.
func (n *Normal) LogProb(current, next []float64) (float64, error) {
	if err := checkPair(current, next, n.dim); err != nil {
		return 0, err
	}
	var lp float64
	for j := range current {
		lp += distuv.Normal{Mu: current[j], Sigma: n.sigma}.LogProb(next[j])
	}
	return lp, nil
}

// MultivariateNormal is a correlated Gaussian random walk:
// next ~ N(current, Sigma).
type MultivariateNormal struct {
	dim   int
	noise *distmv.Normal
}

// NewMultivariateNormal creates a correlated Gaussian random-walk kernel.
//
// Inputs:
//   - covariance: Symmetric positive definite proposal covariance.
//
// Outputs:
//   - *MultivariateNormal: The kernel.
//   - error: ErrNotPositiveDefinite if the covariance cannot be factorized.
func NewMultivariateNormal(covariance mat.Symmetric, opts ...Option) (*MultivariateNormal, error) {
	if covariance == nil {
		return nil, fmt.Errorf("%w: nil covariance", ErrNotPositiveDefinite)
	}
	o := buildOptions(opts)
	dim := covariance.SymmetricDim()
	noise, ok := distmv.NewNormal(make([]float64, dim), covariance, o.src)
	if !ok {
		return nil, ErrNotPositiveDefinite
	}
	return &MultivariateNormal{dim: dim, noise: noise}, nil
}

// Dimensionality implements Distribution.
func (m *MultivariateNormal) Dimensionality() int { return m.dim }

// IsSymmetric implements Distribution. Always true.
func (m *MultivariateNormal) IsSymmetric() bool { return true }

// Sample implements Distribution.
func (m *MultivariateNormal) Sample(thetas [][]float64, samples int) ([][][]float64, error) {
	if err := checkBatch(thetas, samples, m.dim); err != nil {
		return nil, err
	}
	out := allocate(len(thetas), m.dim, samples)
	z := make([]float64, m.dim)
	for i, theta := range thetas {
		for s := 0; s < samples; s++ {
			m.noise.Rand(z)
			for j := range theta {
				out[i][j][s] = theta[j] + z[j]
			}
		}
	}
	return out, nil
}

// LogProb implements Distribution.
func (m *MultivariateNormal) LogProb(current, next []float64) (float64, error) {
	if err := checkPair(current, next, m.dim); err != nil {
		return 0, err
	}
	delta := make([]float64, m.dim)
	for j := range delta {
		delta[j] = next[j] - current[j]
	}
	return m.noise.LogProb(delta), nil
}
