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
	"fmt"
	"math"

	"github.com/AleutianAI/hypothesis/services/inference/transition"
)

// Epsilon regularizes every denominator that may vanish: classifier odds
// s / (1 - s + Epsilon) and the Hastings correction.
const Epsilon = 1e-7

// HastingsCorrection returns q(theta | next) / (q(next | theta) + Epsilon).
//
// Description:
//
//	Symmetric kernels return exactly 1 without evaluating any density.
//
// Outputs:
//   - float64: The correction factor.
//   - error: Non-nil if the kernel rejects the parameter shapes.
func HastingsCorrection(t transition.Distribution, theta, next []float64) (float64, error) {
	if t.IsSymmetric() {
		return 1, nil
	}
	forward, err := t.LogProb(theta, next)
	if err != nil {
		return 0, fmt.Errorf("forward proposal density: %w", err)
	}
	reverse, err := t.LogProb(next, theta)
	if err != nil {
		return 0, fmt.Errorf("reverse proposal density: %w", err)
	}
	return math.Exp(reverse) / (math.Exp(forward) + Epsilon), nil
}

// AcceptanceProbability returns min(1, ratio * correction).
//
// A NaN product (for example 0 * Inf) is treated as a certain rejection
// and yields 0, so the result always lies in [0, 1].
func AcceptanceProbability(ratio, correction float64) float64 {
	a := ratio * correction
	if math.IsNaN(a) || a < 0 {
		return 0
	}
	return math.Min(1, a)
}

// ClassifierLogRatio returns sum_i log(s_i / (1 - s_i + Epsilon)), the
// surrogate log likelihood ratio of the observations under a classifier
// trained to label draws at the proposed parameter as 1.
func ClassifierLogRatio(scores []float64) float64 {
	var lr float64
	for _, s := range scores {
		lr += math.Log(s / (1 - s + Epsilon))
	}
	return lr
}

// Accept reports whether a uniform draw u accepts a proposal with the given
// acceptance probability.
func Accept(u, acceptance float64) bool {
	return u <= acceptance
}
