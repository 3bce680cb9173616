// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package mcmc implements Markov Chain Monte Carlo samplers for posterior
// inference, including a likelihood-free Metropolis-Hastings variant that
// replaces the likelihood ratio with a per-step trained classifier.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────────────┐
//	│                            Run (driver)                              │
//	│   INIT ──► BURN-IN (optional) ──► SAMPLING ──► Chain                 │
//	│                 │                     │                              │
//	│                 └──────── Step ◄──────┘                              │
//	│                            │                                         │
//	│        ┌───────────────────┼──────────────────────┐                  │
//	│        ▼                   ▼                      ▼                  │
//	│  MetropolisHastings  LikelihoodFreeMH     HamiltonianMonteCarlo      │
//	│  (log-likelihood)    (simulate + train)   (leapfrog + gradient)      │
//	│        │                   │                      │                  │
//	│        └──────────► acceptance rule ◄─────────────┘                  │
//	│                   min(1, ratio * correction), u <= a                 │
//	└──────────────────────────────────────────────────────────────────────┘
//
// # Chains and diagnostics
//
// A Chain records every visited state, including repeats on rejection, and
// every step's acceptance probability. It provides mean, variance,
// autocorrelation, integrated autocorrelation time, effective sample size
// and thinning. Chains aggregates independent runs and computes the
// Gelman-Rubin R-hat.
//
// # Numerical policy
//
// Every epsilon-regularized denominator uses Epsilon. Degenerate
// diagnostics (constant or single-row chains) return NaN or zero rather
// than an error; precondition violations (dimension mismatch, unequal
// chains, non-differentiable HMC likelihood) return errors.
//
// # Thread Safety
//
// A sampler instance is NOT safe for concurrent use: the chain is strictly
// sequential. Independent chains may run concurrently with one sampler
// instance each; see RunIndependent. Chain and Chains are immutable after
// construction and safe for concurrent reads.
package mcmc
