// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package normal is a tractable benchmark: theta ~ Uniform(lower, upper) per
// component and x ~ N(theta, sigma^2 I).
//
// The likelihood is known in closed form, so the same problem can be
// sampled with likelihood-based and likelihood-free methods and compared.
package normal

import (
	"context"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Default prior bounds and observation noise.
const (
	DefaultLower = -5.0
	DefaultUpper = 5.0
	DefaultSigma = 1.0
)

// Prior is a box-uniform prior.
type Prior struct {
	Lower, Upper float64
	Dim          int
	Src          rand.Source
}

// NewPrior returns the default Uniform(-5, 5) prior in dim dimensions.
func NewPrior(dim int, src rand.Source) *Prior {
	return &Prior{Lower: DefaultLower, Upper: DefaultUpper, Dim: dim, Src: src}
}

// Sample implements simulation.Prior.
func (p *Prior) Sample(n int) [][]float64 {
	u := distuv.Uniform{Min: p.Lower, Max: p.Upper, Src: p.Src}
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, p.Dim)
		for j := range out[i] {
			out[i][j] = u.Rand()
		}
	}
	return out
}

// LogProb implements simulation.Prior.
func (p *Prior) LogProb(theta []float64) float64 {
	u := distuv.Uniform{Min: p.Lower, Max: p.Upper}
	var lp float64
	for _, v := range theta {
		lp += u.LogProb(v)
	}
	return lp
}

// Simulator draws x ~ N(theta, Sigma^2 I).
type Simulator struct {
	Sigma float64
	Src   rand.Source
}

// NewSimulator returns a unit-noise simulator.
func NewSimulator(src rand.Source) *Simulator {
	return &Simulator{Sigma: DefaultSigma, Src: src}
}

// Simulate implements simulation.Simulator.
func (s *Simulator) Simulate(ctx context.Context, thetas [][]float64) ([][]float64, [][]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	noise := distuv.Normal{Mu: 0, Sigma: s.Sigma, Src: s.Src}
	outputs := make([][]float64, len(thetas))
	for i, theta := range thetas {
		outputs[i] = make([]float64, len(theta))
		for j, v := range theta {
			outputs[i][j] = v + noise.Rand()
		}
	}
	return thetas, outputs, nil
}

// LogLikelihood is the exact log p(observations | theta) for the benchmark.
type LogLikelihood struct {
	Sigma float64
}

// NewLogLikelihood returns the unit-noise likelihood.
func NewLogLikelihood() LogLikelihood {
	return LogLikelihood{Sigma: DefaultSigma}
}

// LogLikelihood sums log N(x | theta, Sigma^2) over observations and components.
func (l LogLikelihood) LogLikelihood(theta []float64, observations [][]float64) float64 {
	var lp float64
	for _, x := range observations {
		for j, v := range theta {
			lp += distuv.Normal{Mu: v, Sigma: l.Sigma}.LogProb(x[j])
		}
	}
	return lp
}

// Gradient writes d/dtheta of LogLikelihood into dst and returns it.
func (l LogLikelihood) Gradient(dst, theta []float64, observations [][]float64) []float64 {
	if dst == nil {
		dst = make([]float64, len(theta))
	}
	s2 := l.Sigma * l.Sigma
	for j := range dst {
		dst[j] = 0
	}
	for _, x := range observations {
		for j, v := range theta {
			dst[j] += (x[j] - v) / s2
		}
	}
	return dst
}
