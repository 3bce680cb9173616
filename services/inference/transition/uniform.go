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

	"gonum.org/v1/gonum/stat/distuv"
)

// Uniform proposes every component independently from [min, max], ignoring
// the current position.
//
// The density of a move does not depend on the current state, so forward
// and reverse densities are equal and the kernel reports itself as
// symmetric. A chain driven by Uniform is an independence sampler, not a
// random walk.
type Uniform struct {
	min []float64
	max []float64
	src rand.Source
}

// NewUniform creates an independence kernel over the box [min, max].
//
// Inputs:
//   - lower, upper: Per-component bounds. Must have equal, non-zero length
//     and lower[i] < upper[i].
//
// Outputs:
//   - *Uniform: The kernel.
//   - error: ErrInvalidBounds on malformed bounds.
func NewUniform(lower, upper []float64, opts ...Option) (*Uniform, error) {
	if len(lower) == 0 || len(lower) != len(upper) {
		return nil, fmt.Errorf("%w: %d lower and %d upper bounds", ErrInvalidBounds, len(lower), len(upper))
	}
	for i := range lower {
		if !(lower[i] < upper[i]) {
			return nil, fmt.Errorf("%w: component %d has [%v, %v]", ErrInvalidBounds, i, lower[i], upper[i])
		}
	}
	o := buildOptions(opts)
	return &Uniform{
		min: append([]float64(nil), lower...),
		max: append([]float64(nil), upper...),
		src: o.src,
	}, nil
}

// Bounds returns copies of the lower and upper bounds.
func (u *Uniform) Bounds() (lower, upper []float64) {
	return append([]float64(nil), u.min...), append([]float64(nil), u.max...)
}

// Dimensionality implements Distribution.
func (u *Uniform) Dimensionality() int { return len(u.min) }

// IsSymmetric implements Distribution. Always true, see type docs.
func (u *Uniform) IsSymmetric() bool { return true }

// Sample implements Distribution. Row values are only checked for shape.
func (u *Uniform) Sample(thetas [][]float64, samples int) ([][][]float64, error) {
	if err := checkBatch(thetas, samples, len(u.min)); err != nil {
		return nil, err
	}
	out := allocate(len(thetas), len(u.min), samples)
	for i := range thetas {
		for j := range u.min {
			d := distuv.Uniform{Min: u.min[j], Max: u.max[j], Src: u.src}
			for s := 0; s < samples; s++ {
				out[i][j][s] = d.Rand()
			}
		}
	}
	return out, nil
}

// LogProb implements Distribution. current is only checked for shape.
func (u *Uniform) LogProb(current, next []float64) (float64, error) {
	if err := checkPair(current, next, len(u.min)); err != nil {
		return 0, err
	}
	var lp float64
	for j := range next {
		lp += distuv.Uniform{Min: u.min[j], Max: u.max[j]}.LogProb(next[j])
	}
	return lp, nil
}
