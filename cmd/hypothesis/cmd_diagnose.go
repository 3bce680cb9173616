// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/hypothesis/services/inference/mcmc"
)

func newDiagnoseCmd(root *rootOptions) *cobra.Command {
	opts := diagnoseOptions{}
	var burnin bool
	cmd := &cobra.Command{
		Use:   "diagnose <run-id>",
		Short: "Print chain diagnostics and R-hat for a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			run, err := a.loadRun(cmd, args[0])
			if err != nil {
				return a.fail(err)
			}

			chains := run.Chains
			if burnin {
				if chains, err = burninChains(chains); err != nil {
					return a.fail(err)
				}
			}

			a.printer.Title("run " + run.Metadata.ID)
			a.printer.Field("method", run.Metadata.Method)
			a.printer.Field("created", run.Metadata.CreatedAt.Format("2006-01-02 15:04:05"))
			a.printer.Field("seed", run.Metadata.Seed)
			if len(run.Metadata.Labels) > 0 {
				a.printer.Field("labels", formatLabels(run.Metadata.Labels))
			}
			if err := printDiagnostics(a.printer, chains, opts); err != nil {
				return a.fail(err)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.maxLag, "max-lag", mcmc.DefaultLag, "Largest lag for the integrated autocorrelation time (-1 for size-1)")
	f.IntVar(&opts.interval, "interval", 1, "Lag stride for the integrated autocorrelation time")
	f.BoolVar(&opts.thin, "thin", false, "Show the thinned chain size")
	f.BoolVar(&burnin, "burnin", false, "Diagnose the burn-in phase instead of the samples")
	return cmd
}

// burninChains returns the burn-in phase of every chain.
func burninChains(chains *mcmc.Chains) (*mcmc.Chains, error) {
	all := chains.All()
	burnin := make([]*mcmc.Chain, len(all))
	for i, c := range all {
		if !c.HasBurnin() {
			return nil, fmt.Errorf("%w: chain %d has no burn-in", mcmc.ErrEmptyChain, i)
		}
		burnin[i] = c.Burnin()
	}
	return mcmc.NewChains(burnin...)
}
