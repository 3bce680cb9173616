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
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Factory builds the sampler for chain i. Every chain must get its own
// instance: samplers hold per-chain random state and emitters.
type Factory func(i int) (Sampler, error)

// RunIndependent runs one chain per start state concurrently.
//
// Description:
//
//	Chain i starts at starts[i] and otherwise uses req. The first failing
//	chain cancels the others.
//
// Inputs:
//   - ctx: Cancels every chain.
//   - factory: Builds a fresh sampler per chain.
//   - req: Shared request; Theta0 is ignored.
//   - starts: One initial state per chain.
//   - limit: Maximum concurrent chains. Non-positive means unlimited.
//
// Outputs:
//   - *Chains: The runs in start order.
//   - error: The first chain error.
func RunIndependent(ctx context.Context, factory Factory, req RunRequest, starts [][]float64, limit int) (*Chains, error) {
	if len(starts) == 0 {
		return nil, ErrNoChains
	}

	results := make([]*Chain, len(starts))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, start := range starts {
		g.Go(func() error {
			s, err := factory(i)
			if err != nil {
				return fmt.Errorf("chain %d: build sampler: %w", i, err)
			}
			r := req
			r.Theta0 = start
			chain, err := s.Run(gctx, r)
			if err != nil {
				return fmt.Errorf("chain %d: %w", i, err)
			}
			results[i] = chain
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return NewChains(results...)
}
