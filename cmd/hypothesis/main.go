// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command hypothesis runs MCMC samplers and inspects their chains.
//
// Usage:
//
//	hypothesis sample --config run.yaml
//	hypothesis sample --method hmc --chains 4 --seed 7
//	hypothesis runs list
//	hypothesis diagnose <run-id>
//	hypothesis hdr --run <run-id> --alpha 0.95
//	hypothesis hdr --density grid.csv --alpha 0.68
//	hypothesis confidence --log-ratios ratios.csv --dof 1
//
// Every command reads an optional YAML run configuration; without one the
// built-in defaults sample the one-dimensional Normal benchmark.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
