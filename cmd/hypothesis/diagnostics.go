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
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/AleutianAI/hypothesis/pkg/ux"
	"github.com/AleutianAI/hypothesis/services/inference/mcmc"
)

// rhatThreshold is the usual convergence cut-off for R-hat.
const rhatThreshold = 1.1

type diagnoseOptions struct {
	maxLag   int
	interval int
	thin     bool
}

// chainTable summarizes every chain: moments, integrated autocorrelation
// time, effective size and acceptance.
func chainTable(chains *mcmc.Chains, opts diagnoseOptions) (ux.Table, error) {
	t := ux.Table{
		Title:   "Chains",
		Headers: []string{"chain", "size", "mean", "variance", "iat", "ess", "efficiency", "acceptance", "moved"},
	}
	if opts.thin {
		t.Headers = append(t.Headers, "thinned")
	}

	for i, c := range chains.All() {
		iat := make([]float64, c.Dimensionality())
		for j := range iat {
			v, err := c.IntegratedAutocorrelation(opts.maxLag, opts.interval, j)
			if err != nil {
				return ux.Table{}, fmt.Errorf("chain %d: %w", i, err)
			}
			iat[j] = v
		}

		ess := c.EffectiveSize()
		essCell := ux.Plain(strconv.Itoa(ess))
		if ess == 0 {
			essCell.Status = ux.StatusError
		}

		row := []ux.Cell{
			ux.Plain(strconv.Itoa(i)),
			ux.Plain(strconv.Itoa(c.Size())),
			ux.Plain(formatVector(c.Mean())),
			ux.Plain(formatVector(c.Variance())),
			ux.Plain(formatVector(iat)),
			essCell,
			ux.Plain(formatFloat(c.Efficiency())),
			ux.Plain(formatFloat(c.MeanAcceptance())),
			ux.Plain(formatFloat(c.AcceptanceRate())),
		}
		if opts.thin {
			thinned, err := c.Thin()
			switch {
			case errors.Is(err, mcmc.ErrDegenerateChain):
				row = append(row, ux.Cell{Text: "-", Status: ux.StatusWarning})
			case err != nil:
				return ux.Table{}, fmt.Errorf("chain %d: %w", i, err)
			default:
				row = append(row, ux.Plain(strconv.Itoa(thinned.Size())))
			}
		}
		t.AddRow(row...)
	}
	return t, nil
}

// convergenceTable reports the pooled mean, within-chain variance and
// R-hat per parameter.
func convergenceTable(chains *mcmc.Chains) (ux.Table, error) {
	rhat, err := chains.Rhat()
	if err != nil {
		return ux.Table{}, err
	}
	mean := chains.Mean()
	within := chains.Variance()

	t := ux.Table{Title: "Convergence", Headers: []string{"param", "mean", "within_var", "rhat"}}
	for j := range rhat {
		t.AddRow(
			ux.Plain(strconv.Itoa(j)),
			ux.Plain(formatFloat(mean[j])),
			ux.Plain(formatFloat(within[j])),
			rhatCell(rhat[j]),
		)
	}
	return t, nil
}

func rhatCell(v float64) ux.Cell {
	c := ux.Plain(formatFloat(v))
	switch {
	case math.IsNaN(v):
		c.Status = ux.StatusError
	case v < rhatThreshold:
		c.Status = ux.StatusOK
	default:
		c.Status = ux.StatusWarning
	}
	return c
}

// printDiagnostics prints the chain table and, with two or more chains,
// the convergence table.
func printDiagnostics(p *ux.Printer, chains *mcmc.Chains, opts diagnoseOptions) error {
	ct, err := chainTable(chains, opts)
	if err != nil {
		return err
	}
	p.Table(ct)

	if chains.Size() < 2 {
		p.Warning("R-hat needs at least two chains")
		return nil
	}
	rt, err := convergenceTable(chains)
	if err != nil {
		return err
	}
	p.Table(rt)
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 4, 64)
}

func formatVector(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = formatFloat(x)
	}
	return strings.Join(parts, ",")
}
