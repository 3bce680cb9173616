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
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"
)

// iidChain draws n independent rows from N(0, 1) in dim dimensions.
func iidChain(t *testing.T, n, dim int, seed uint64) *Chain {
	t.Helper()
	d := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewPCG(seed, seed+1)}
	thetas := make([][]float64, n)
	probs := make([]float64, n)
	for i := range thetas {
		thetas[i] = make([]float64, dim)
		for j := range thetas[i] {
			thetas[i][j] = d.Rand()
		}
		probs[i] = 1
	}
	c, err := NewChain(thetas, probs)
	require.NoError(t, err)
	return c
}

// ar1Chain is x_t = phi * x_{t-1} + noise, a strongly correlated trace.
func ar1Chain(t *testing.T, n int, phi float64, seed uint64) *Chain {
	t.Helper()
	d := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewPCG(seed, seed+1)}
	thetas := make([][]float64, n)
	probs := make([]float64, n)
	x := 0.0
	for i := range thetas {
		x = phi*x + d.Rand()
		thetas[i] = []float64{x}
		probs[i] = 0.5
	}
	c, err := NewChain(thetas, probs)
	require.NoError(t, err)
	return c
}

func TestNewChain_Validation(t *testing.T) {
	_, err := NewChain(nil, nil)
	assert.ErrorIs(t, err, ErrEmptyChain)

	_, err = NewChain([][]float64{{1}, {2}}, []float64{1})
	assert.ErrorIs(t, err, ErrMismatchedLengths)

	_, err = NewChain([][]float64{{1}, {2, 3}}, []float64{1, 1})
	assert.ErrorIs(t, err, ErrRaggedChain)

	_, err = NewChain([][]float64{{1}}, []float64{1}, WithBurnin([][]float64{{1, 2}}, []float64{1}))
	assert.ErrorIs(t, err, ErrRaggedChain)

	c, err := NewChain([][]float64{{1}}, []float64{1}, WithBurnin(nil, nil))
	require.NoError(t, err)
	assert.False(t, c.HasBurnin())
}

func TestChain_CopiesInput(t *testing.T) {
	rows := [][]float64{{1, 2}, {3, 4}}
	c, err := NewChain(rows, []float64{0.5, 0.5})
	require.NoError(t, err)

	rows[0][0] = 99
	assert.Equal(t, 1.0, c.First()[0])

	out := c.Thetas()
	out[1][1] = 99
	assert.Equal(t, 4.0, c.Last()[1])
}

func TestChain_Summaries(t *testing.T) {
	c, err := NewChain(
		[][]float64{{1, 10}, {2, 20}, {3, 30}, {3, 30}},
		[]float64{1, 1, 1, 0},
		WithBurnin([][]float64{{0, 0}, {1, 10}}, []float64{1, 1}),
	)
	require.NoError(t, err)

	assert.Equal(t, 4, c.Size())
	assert.Equal(t, 2, c.Dimensionality())
	assert.Equal(t, 2, c.Iterations(true))
	assert.Equal(t, 4, c.Iterations(false))
	assert.InDeltaSlice(t, []float64{2.25, 22.5}, c.Mean(), 1e-12)
	assert.Equal(t, []float64{1, 10}, c.Min())
	assert.Equal(t, []float64{3, 30}, c.Max())
	assert.InDelta(t, 0.75, c.MeanAcceptance(), 1e-12)
	assert.InDelta(t, 2.0/3.0, c.AcceptanceRate(), 1e-12)

	p, err := c.Parameter(1)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 20, 30, 30}, p)
	_, err = c.Parameter(2)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestChain_SingleRowIsDegenerate(t *testing.T) {
	c, err := NewChain([][]float64{{1}}, []float64{1})
	require.NoError(t, err)

	assert.True(t, math.IsNaN(c.Variance()[0]))
	assert.Zero(t, c.EffectiveSize())
	assert.Zero(t, c.AcceptanceRate())
	_, err = c.Thin()
	assert.ErrorIs(t, err, ErrDegenerateChain)
}

func TestChain_AutocorrelationFunctionStartsAtOne(t *testing.T) {
	c := ar1Chain(t, 500, 0.9, 1)

	lags, acf, err := c.AutocorrelationFunction(DefaultLag, 1, 0)
	require.NoError(t, err)
	require.Len(t, acf, 500)
	assert.Equal(t, 0, lags[0])
	assert.InDelta(t, 1.0, acf[0], 1e-12)
	assert.Greater(t, acf[1], 0.7)

	lags, _, err = c.AutocorrelationFunction(10, 5, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 5, 10}, lags)
}

func TestChain_AutocorrelationDirect(t *testing.T) {
	c, err := NewChain([][]float64{{1}, {2}, {3}, {4}}, []float64{1, 1, 1, 1})
	require.NoError(t, err)

	// Centered: -1.5, -0.5, 0.5, 1.5.
	c0, err := c.Autocorrelation(0, 0)
	require.NoError(t, err)
	assert.InDelta(t, 5.0/4.0, c0, 1e-12)

	c1, err := c.Autocorrelation(1, 0)
	require.NoError(t, err)
	assert.InDelta(t, (0.75-0.25+0.75)/3, c1, 1e-12)

	_, err = c.Autocorrelation(4, 0)
	assert.ErrorIs(t, err, ErrInvalidLag)
	_, err = c.Autocorrelation(-1, 0)
	assert.ErrorIs(t, err, ErrInvalidLag)
	_, err = c.Autocorrelation(0, 1)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestChain_IntegratedAutocorrelation(t *testing.T) {
	c := ar1Chain(t, 20000, 0.9, 2)

	// tau = (1 + phi) / (1 - phi) = 19 for AR(1).
	tau, err := c.IntegratedAutocorrelation(100, 1, 0)
	require.NoError(t, err)
	assert.InDelta(t, 19, tau, 9)

	strided, err := c.IntegratedAutocorrelation(100, 2, 0)
	require.NoError(t, err)
	assert.InDelta(t, tau, strided, 5)

	_, err = c.IntegratedAutocorrelation(10, 0, 0)
	assert.ErrorIs(t, err, ErrInvalidLag)
	_, err = c.IntegratedAutocorrelation(20000, 1, 0)
	assert.ErrorIs(t, err, ErrInvalidLag)
}

func TestChain_EffectiveSize(t *testing.T) {
	iid := iidChain(t, 2000, 2, 3)
	ess := iid.EffectiveSize()
	assert.Greater(t, ess, 1000)
	assert.LessOrEqual(t, ess, 2000)

	perParam, err := iid.EffectiveSizeOf(1)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, perParam, ess)

	correlated := ar1Chain(t, 2000, 0.95, 4)
	assert.Less(t, correlated.EffectiveSize(), 400)
	assert.Less(t, correlated.Efficiency(), iid.Efficiency())
}

func TestChain_ThinSize(t *testing.T) {
	for _, c := range []*Chain{ar1Chain(t, 1000, 0.8, 5), ar1Chain(t, 997, 0.5, 6), iidChain(t, 300, 1, 7)} {
		n := c.Size()
		e := c.EffectiveSize()
		require.Positive(t, e)

		thinned, err := c.Thin()
		require.NoError(t, err)
		assert.Equal(t, n/(n/e), thinned.Size())
		assert.Equal(t, c.First(), thinned.First())
		assert.False(t, thinned.HasBurnin())
	}
}

func TestChains_Validation(t *testing.T) {
	_, err := NewChains()
	assert.ErrorIs(t, err, ErrNoChains)

	_, err = NewChains(iidChain(t, 10, 1, 1), iidChain(t, 11, 1, 2))
	assert.ErrorIs(t, err, ErrMismatchedChains)

	_, err = NewChains(iidChain(t, 10, 1, 1), iidChain(t, 10, 2, 2))
	assert.ErrorIs(t, err, ErrMismatchedChains)

	one, err := NewChains(iidChain(t, 10, 1, 1))
	require.NoError(t, err)
	_, err = one.Rhat()
	assert.ErrorIs(t, err, ErrTooFewChains)
}

func TestChains_IdenticalChainsRhatAtMostOne(t *testing.T) {
	c := iidChain(t, 500, 2, 8)
	chains, err := NewChains(c, c, c)
	require.NoError(t, err)

	rhat, err := chains.GelmanRubin()
	require.NoError(t, err)
	require.Len(t, rhat, 2)
	for _, r := range rhat {
		assert.LessOrEqual(t, r, 1.0)
	}
	assert.InDeltaSlice(t, c.Mean(), chains.Mean(), 1e-12)
	assert.InDeltaSlice(t, c.Variance(), chains.Variance(), 1e-12)
}

func TestChains_SeparatedChainsHaveLargeRhat(t *testing.T) {
	a := iidChain(t, 500, 1, 9)
	rows := a.Thetas()
	for _, row := range rows {
		row[0] += 10
	}
	b, err := NewChain(rows, a.Probabilities())
	require.NoError(t, err)

	chains, err := NewChains(a, b)
	require.NoError(t, err)
	rhat, err := chains.Rhat()
	require.NoError(t, err)
	assert.Greater(t, rhat[0], 2.0)
}

func TestChains_ConstantChainsRhatNaN(t *testing.T) {
	c, err := NewChain([][]float64{{1}, {1}, {1}}, []float64{0, 0, 0})
	require.NoError(t, err)
	chains, err := NewChains(c, c)
	require.NoError(t, err)
	rhat, err := chains.Rhat()
	require.NoError(t, err)
	assert.True(t, math.IsNaN(rhat[0]))
}
