// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package chainstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/hypothesis/services/inference/mcmc"
	"github.com/AleutianAI/hypothesis/services/inference/storage/badger"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	db, err := badger.Open(badger.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, nil)
}

func testChains(t *testing.T) *mcmc.Chains {
	t.Helper()
	a, err := mcmc.NewChain(
		[][]float64{{1, 2}, {1, 2}, {3, 4}},
		[]float64{0.5, 0.1, 0.9},
		mcmc.WithBurnin([][]float64{{0, 0}}, []float64{1}),
	)
	require.NoError(t, err)
	b, err := mcmc.NewChain(
		[][]float64{{5, 6}, {7, 8}, {7, 8}},
		[]float64{1, 0.3, 0.2},
		mcmc.WithBurnin([][]float64{{9, 9}}, []float64{0.4}),
	)
	require.NoError(t, err)
	chains, err := mcmc.NewChains(a, b)
	require.NoError(t, err)
	return chains
}

func TestStore_SaveLoad(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	chains := testChains(t)

	meta, err := s.Save(ctx, Metadata{Method: mcmc.MethodMH, Seed: 7, Labels: map[string]string{"model": "normal"}}, chains)
	require.NoError(t, err)
	assert.NotEmpty(t, meta.ID)
	assert.Equal(t, 2, meta.Chains)
	assert.Equal(t, 3, meta.Samples)
	assert.Equal(t, 1, meta.BurninSteps)
	assert.Equal(t, 2, meta.Dimensionality)

	run, err := s.Load(ctx, meta.ID)
	require.NoError(t, err)
	assert.Equal(t, meta.ID, run.Metadata.ID)
	assert.Equal(t, "normal", run.Metadata.Labels["model"])
	require.Equal(t, 2, run.Chains.Size())
	for i := 0; i < 2; i++ {
		assert.Equal(t, chains.Chain(i).Thetas(), run.Chains.Chain(i).Thetas())
		assert.Equal(t, chains.Chain(i).Probabilities(), run.Chains.Chain(i).Probabilities())
		assert.Equal(t, chains.Chain(i).Burnin().Thetas(), run.Chains.Chain(i).Burnin().Thetas())
	}
}

func TestStore_SaveKeepsGivenID(t *testing.T) {
	s := newStore(t)
	meta, err := s.Save(context.Background(), Metadata{ID: "run-42", Method: mcmc.MethodHMC}, testChains(t))
	require.NoError(t, err)
	assert.Equal(t, "run-42", meta.ID)

	run, err := s.Load(context.Background(), "run-42")
	require.NoError(t, err)
	assert.Equal(t, mcmc.MethodHMC, run.Metadata.Method)
}

func TestStore_ListNewestFirst(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	first, err := s.Save(ctx, Metadata{Method: mcmc.MethodMH}, testChains(t))
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := s.Save(ctx, Metadata{Method: mcmc.MethodHMC}, testChains(t))
	require.NoError(t, err)

	runs, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID)
	assert.Equal(t, first.ID, runs[1].ID)
}

func TestStore_Delete(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	meta, err := s.Save(ctx, Metadata{Method: mcmc.MethodLFMH}, testChains(t))
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, meta.ID))

	_, err = s.Load(ctx, meta.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, meta.ID), ErrNotFound)

	runs, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestStore_Errors(t *testing.T) {
	s := newStore(t)
	_, err := s.Save(context.Background(), Metadata{}, nil)
	assert.ErrorIs(t, err, ErrNilChains)

	_, err = s.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
