// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package stat provides credible and confidence constraints over gridded
// posteriors and profile likelihoods.
package stat

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrEmptyDensity indicates an empty density grid.
	ErrEmptyDensity = errors.New("density grid is empty")

	// ErrInvalidDensity indicates negative, NaN or all-zero densities.
	ErrInvalidDensity = errors.New("density grid must be non-negative with positive mass")

	// ErrInvalidAlpha indicates a credibility outside (0, 1].
	ErrInvalidAlpha = errors.New("alpha must be in (0, 1]")

	// ErrInvalidLevel indicates a confidence level outside (0, 1).
	ErrInvalidLevel = errors.New("confidence level must be in (0, 1)")

	// ErrInvalidDOF indicates non-positive degrees of freedom.
	ErrInvalidDOF = errors.New("degrees of freedom must be positive")
)

// -----------------------------------------------------------------------------
// Highest density
// -----------------------------------------------------------------------------

// HighestDensityLevel returns the density threshold of the smallest region
// holding at least alpha of the total mass.
//
// Description:
//
//	Densities are normalized, sorted in decreasing order and accumulated
//	until the mass reaches alpha. The returned level is in the units of
//	the input, so pdf[i] >= level selects the region.
//
// Inputs:
//   - pdf: Unnormalized densities on a uniform grid. Not modified.
//   - alpha: Credibility in (0, 1], e.g. 0.95.
//
// Outputs:
//   - float64: The threshold density.
//   - error: ErrEmptyDensity, ErrInvalidDensity or ErrInvalidAlpha.
func HighestDensityLevel(pdf []float64, alpha float64) (float64, error) {
	if len(pdf) == 0 {
		return 0, ErrEmptyDensity
	}
	if !(alpha > 0 && alpha <= 1) {
		return 0, fmt.Errorf("%w: got %v", ErrInvalidAlpha, alpha)
	}
	total := 0.0
	for i, p := range pdf {
		if p < 0 || math.IsNaN(p) || math.IsInf(p, 0) {
			return 0, fmt.Errorf("%w: pdf[%d] = %v", ErrInvalidDensity, i, p)
		}
		total += p
	}
	if total <= 0 {
		return 0, ErrInvalidDensity
	}

	sorted := append([]float64(nil), pdf...)
	indices := make([]int, len(sorted))
	floats.Argsort(sorted, indices)

	var mass float64
	for i := len(sorted) - 1; i >= 0; i-- {
		mass += sorted[i] / total
		if mass >= alpha {
			return sorted[i], nil
		}
	}
	// Rounding left the accumulated mass a hair under alpha == 1.
	return sorted[0], nil
}

// HighestDensityRegion returns the region mask pdf[i] >= level for the
// HighestDensityLevel at alpha.
func HighestDensityRegion(pdf []float64, alpha float64) ([]bool, float64, error) {
	level, err := HighestDensityLevel(pdf, alpha)
	if err != nil {
		return nil, 0, err
	}
	mask := make([]bool, len(pdf))
	for i, p := range pdf {
		mask[i] = p >= level
	}
	return mask, level, nil
}

// -----------------------------------------------------------------------------
// Profile likelihood
// -----------------------------------------------------------------------------

// ConfidenceLevel converts log likelihood ratios on a grid to the
// likelihood-ratio test statistic and its chi-square critical value.
//
// Description:
//
//	The statistic is -2 * (r - max r), shifted so its minimum is zero.
//	Grid points whose statistic is at or below the critical value form
//	the confidence region at the given level (Wilks' theorem).
//
// Inputs:
//   - logRatios: Log likelihood ratios per grid point.
//   - dof: Degrees of freedom, usually the number of parameters.
//   - level: Confidence level in (0, 1), e.g. 0.95.
//
// Outputs:
//   - []float64: The test statistic per grid point.
//   - float64: The chi-square quantile at level.
//   - error: Non-nil on invalid input.
func ConfidenceLevel(logRatios []float64, dof int, level float64) ([]float64, float64, error) {
	if len(logRatios) == 0 {
		return nil, 0, ErrEmptyDensity
	}
	if dof <= 0 {
		return nil, 0, fmt.Errorf("%w: got %d", ErrInvalidDOF, dof)
	}
	if !(level > 0 && level < 1) {
		return nil, 0, fmt.Errorf("%w: got %v", ErrInvalidLevel, level)
	}

	best := floats.Max(logRatios)
	statistic := make([]float64, len(logRatios))
	for i, r := range logRatios {
		statistic[i] = -2 * (r - best)
	}
	floats.AddConst(-floats.Min(statistic), statistic)

	critical := distuv.ChiSquared{K: float64(dof)}.Quantile(level)
	return statistic, critical, nil
}
