// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package autodiff abstracts "evaluate the gradient of a scalar function at
// a point". Callers either supply an analytic gradient or opt into a
// central finite-difference approximation.
package autodiff

import (
	"gonum.org/v1/gonum/diff/fd"
)

// Differentiable is a scalar function with a gradient.
type Differentiable interface {
	// Value returns f(x).
	Value(x []float64) float64

	// Gradient writes grad f(x) into dst (allocating if nil) and returns it.
	Gradient(dst, x []float64) []float64
}

// Analytic pairs a function with its closed-form gradient.
type Analytic struct {
	F    func(x []float64) float64
	Grad func(dst, x []float64) []float64
}

// Value implements Differentiable.
func (a Analytic) Value(x []float64) float64 { return a.F(x) }

// Gradient implements Differentiable.
func (a Analytic) Gradient(dst, x []float64) []float64 {
	if dst == nil {
		dst = make([]float64, len(x))
	}
	return a.Grad(dst, x)
}

// Numerical differentiates F with central finite differences.
type Numerical struct {
	F func(x []float64) float64

	// Step is the finite-difference step. Zero uses the gonum default.
	Step float64
}

// Value implements Differentiable.
func (n Numerical) Value(x []float64) float64 { return n.F(x) }

// Gradient implements Differentiable.
func (n Numerical) Gradient(dst, x []float64) []float64 {
	if dst == nil {
		dst = make([]float64, len(x))
	}
	return fd.Gradient(dst, n.F, x, &fd.Settings{
		Formula: fd.Central,
		Step:    n.Step,
	})
}

// Negate returns -f with gradient -grad f.
func Negate(f Differentiable) Differentiable {
	return Analytic{
		F: func(x []float64) float64 { return -f.Value(x) },
		Grad: func(dst, x []float64) []float64 {
			dst = f.Gradient(dst, x)
			for i := range dst {
				dst[i] = -dst[i]
			}
			return dst
		},
	}
}
