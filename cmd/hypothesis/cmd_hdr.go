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
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
	gstat "gonum.org/v1/gonum/stat"

	"github.com/AleutianAI/hypothesis/pkg/ux"
	"github.com/AleutianAI/hypothesis/services/inference/mcmc"
	"github.com/AleutianAI/hypothesis/services/inference/stat"
)

var errNoSource = errors.New("exactly one of --run or --density is required")

// grid is a one-dimensional set of values with optional coordinates.
type grid struct {
	x      []float64
	values []float64
}

// at returns the coordinate of cell i, or i itself without coordinates.
func (g grid) at(i int) float64 {
	if g.x == nil {
		return float64(i)
	}
	return g.x[i]
}

// readGrid parses CSV rows of "value" or "x,value". Blank lines and lines
// starting with # are skipped.
func readGrid(r io.Reader) (grid, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var g grid
	columns := 0
	for line := 1; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return grid{}, err
		}
		if columns == 0 {
			columns = len(record)
			if columns != 1 && columns != 2 {
				return grid{}, fmt.Errorf("line %d: want 1 or 2 columns, got %d", line, columns)
			}
		}
		if len(record) != columns {
			return grid{}, fmt.Errorf("line %d: want %d columns, got %d", line, columns, len(record))
		}
		nums := make([]float64, columns)
		for i, field := range record {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return grid{}, fmt.Errorf("line %d: %w", line, err)
			}
			nums[i] = v
		}
		if columns == 2 {
			g.x = append(g.x, nums[0])
		}
		g.values = append(g.values, nums[columns-1])
	}
	if len(g.values) == 0 {
		return grid{}, stat.ErrEmptyDensity
	}
	return g, nil
}

func readGridFile(path string) (grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return grid{}, err
	}
	defer f.Close()
	g, err := readGrid(f)
	if err != nil {
		return grid{}, fmt.Errorf("read %s: %w", path, err)
	}
	return g, nil
}

// histogram bins the pooled samples of one parameter into a density grid
// whose coordinates are the bin centers.
func histogram(chains *mcmc.Chains, param, bins int) (grid, error) {
	if bins < 1 {
		return grid{}, fmt.Errorf("bins must be positive, got %d", bins)
	}
	var samples []float64
	for _, c := range chains.All() {
		x, err := c.Parameter(param)
		if err != nil {
			return grid{}, err
		}
		samples = append(samples, x...)
	}
	sort.Float64s(samples)

	lo, hi := samples[0], samples[len(samples)-1]
	if hi == lo {
		hi = lo + 1
	}
	// Widen the last divider so the maximum lands inside the final bin.
	dividers := floats.Span(make([]float64, bins+1), lo, hi)
	dividers[bins] = hi + (hi-lo)*1e-9

	counts := gstat.Histogram(nil, dividers, samples, nil)
	g := grid{x: make([]float64, bins), values: make([]float64, bins)}
	for i := range counts {
		width := dividers[i+1] - dividers[i]
		g.x[i] = (dividers[i] + dividers[i+1]) / 2
		g.values[i] = counts[i] / (float64(len(samples)) * width)
	}
	return g, nil
}

// intervals returns the [start, end] index pairs of the true runs in mask.
func intervals(mask []bool) [][2]int {
	var out [][2]int
	start := -1
	for i, in := range mask {
		switch {
		case in && start < 0:
			start = i
		case !in && start >= 0:
			out = append(out, [2]int{start, i - 1})
			start = -1
		}
	}
	if start >= 0 {
		out = append(out, [2]int{start, len(mask) - 1})
	}
	return out
}

func regionTable(title string, g grid, mask []bool) ux.Table {
	t := ux.Table{Title: title, Headers: []string{"from", "to", "cells"}}
	for _, iv := range intervals(mask) {
		t.AddRow(
			ux.Plain(formatFloat(g.at(iv[0]))),
			ux.Plain(formatFloat(g.at(iv[1]))),
			ux.Plain(strconv.Itoa(iv[1]-iv[0]+1)),
		)
	}
	return t
}

func newHDRCmd(root *rootOptions) *cobra.Command {
	var (
		runID   string
		density string
		param   int
		bins    int
		alpha   float64
	)
	cmd := &cobra.Command{
		Use:   "hdr",
		Short: "Highest density region of a stored run or a density grid",
		Long: `Computes the smallest region holding alpha of the probability mass.
With --run the pooled samples of one parameter are binned into a histogram;
with --density a CSV grid of "density" or "x,density" rows is read.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := root.setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			if (runID == "") == (density == "") {
				return a.fail(errNoSource)
			}

			var g grid
			if runID != "" {
				run, err := a.loadRun(cmd, runID)
				if err != nil {
					return a.fail(err)
				}
				if g, err = histogram(run.Chains, param, bins); err != nil {
					return a.fail(err)
				}
			} else if g, err = readGridFile(density); err != nil {
				return a.fail(err)
			}

			mask, level, err := stat.HighestDensityRegion(g.values, alpha)
			if err != nil {
				return a.fail(err)
			}
			a.logger.Debug("highest density region", "alpha", alpha, "level", level, "cells", len(g.values))
			a.printer.Field("alpha", alpha)
			a.printer.Field("level", formatFloat(level))
			a.printer.Table(regionTable("Highest density region", g, mask))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&runID, "run", "", "Stored run id")
	f.StringVar(&density, "density", "", "CSV density grid")
	f.IntVar(&param, "param", 0, "Parameter index for --run")
	f.IntVar(&bins, "bins", 50, "Histogram bins for --run")
	f.Float64Var(&alpha, "alpha", 0.95, "Probability mass of the region")
	return cmd
}

func newConfidenceCmd(root *rootOptions) *cobra.Command {
	var (
		path  string
		dof   int
		level float64
	)
	cmd := &cobra.Command{
		Use:   "confidence",
		Short: "Profile-likelihood confidence region from log likelihood ratios",
		Long: `Reads a CSV grid of "log_ratio" or "x,log_ratio" rows and reports the
grid cells whose likelihood-ratio statistic is within the chi-square
critical value at the given level.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := root.setup(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			g, err := readGridFile(path)
			if err != nil {
				return a.fail(err)
			}
			statistic, critical, err := stat.ConfidenceLevel(g.values, dof, level)
			if err != nil {
				return a.fail(err)
			}
			mask := make([]bool, len(statistic))
			for i, s := range statistic {
				mask[i] = s <= critical
			}
			a.printer.Field("level", level)
			a.printer.Field("critical", formatFloat(critical))
			a.printer.Table(regionTable("Confidence region", g, mask))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&path, "log-ratios", "", "CSV grid of log likelihood ratios")
	f.IntVar(&dof, "dof", 1, "Degrees of freedom")
	f.Float64Var(&level, "level", 0.95, "Confidence level")
	_ = cmd.MarkFlagRequired("log-ratios")
	return cmd
}
