// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package classifier provides the binary discriminator contract used as a
// surrogate likelihood ratio, a logistic implementation of it, and the
// per-step Trainer.
//
// # Description
//
// A classifier trained to separate x ~ p(x | theta_next) (label 1) from
// x ~ p(x | theta) (label 0) with balanced classes approximates
//
//	s(x) = p(x | theta_next) / (p(x | theta) + p(x | theta_next))
//
// so s / (1 - s) approximates the likelihood ratio.
package classifier

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Classifier scores observations with P(label = 1 | x).
type Classifier interface {
	// Score returns one value in [0, 1] per observation row.
	Score(observations [][]float64) []float64

	// Parameters returns the live trainable parameter vector. Optimizers
	// update it in place.
	Parameters() []float64

	// LossGradient computes the mean binary cross-entropy over (x, labels),
	// writes its gradient with respect to Parameters into grad, and returns
	// the loss.
	LossGradient(x [][]float64, labels []float64, grad []float64) float64
}

// Factory allocates freshly initialized classifiers.
type Factory interface {
	NewClassifier() Classifier
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func() Classifier

// NewClassifier implements Factory.
func (f FactoryFunc) NewClassifier() Classifier { return f() }

// logClamp mirrors the usual BCE floor on log terms.
const logClamp = -100

// Logistic is logistic regression on quadratic features [x, x^2] per
// component. For Gaussian simulators the true log-ratio is quadratic in x,
// so this family contains the optimal discriminator.
type Logistic struct {
	dim int
	// weights: linear[dim], quadratic[dim], bias
	params []float64
}

// NewLogistic returns a zero-initialized classifier over dim-dimensional
// observations.
func NewLogistic(dim int) *Logistic {
	return &Logistic{dim: dim, params: make([]float64, 2*dim+1)}
}

// LogisticFactory allocates Logistic classifiers of a fixed dimensionality.
func LogisticFactory(dim int) Factory {
	return FactoryFunc(func() Classifier { return NewLogistic(dim) })
}

// Dimensionality returns the expected observation length.
func (l *Logistic) Dimensionality() int { return l.dim }

// Parameters implements Classifier.
func (l *Logistic) Parameters() []float64 { return l.params }

func (l *Logistic) logit(x []float64) float64 {
	z := l.params[2*l.dim]
	for j := 0; j < l.dim; j++ {
		z += l.params[j]*x[j] + l.params[l.dim+j]*x[j]*x[j]
	}
	return z
}

// Score implements Classifier. Rows of the wrong length score NaN.
func (l *Logistic) Score(observations [][]float64) []float64 {
	out := make([]float64, len(observations))
	for i, x := range observations {
		if len(x) != l.dim {
			out[i] = math.NaN()
			continue
		}
		out[i] = sigmoid(l.logit(x))
	}
	return out
}

// LossGradient implements Classifier.
func (l *Logistic) LossGradient(x [][]float64, labels []float64, grad []float64) float64 {
	for i := range grad {
		grad[i] = 0
	}
	if len(x) == 0 {
		return 0
	}
	var loss float64
	for i, row := range x {
		s := sigmoid(l.logit(row))
		y := labels[i]
		loss -= y*clampedLog(s) + (1-y)*clampedLog(1-s)
		d := s - y
		for j := 0; j < l.dim; j++ {
			grad[j] += d * row[j]
			grad[l.dim+j] += d * row[j] * row[j]
		}
		grad[2*l.dim] += d
	}
	n := float64(len(x))
	floats.Scale(1/n, grad)
	return loss / n
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

func clampedLog(v float64) float64 {
	if v <= 0 {
		return logClamp
	}
	return math.Max(math.Log(v), logClamp)
}
