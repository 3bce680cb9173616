// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package classifier

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"
)

func gaussianRows(mu float64, n int, seed uint64) [][]float64 {
	d := distuv.Normal{Mu: mu, Sigma: 1, Src: rand.NewPCG(seed, seed+1)}
	out := make([][]float64, n)
	for i := range out {
		out[i] = []float64{d.Rand()}
	}
	return out
}

func TestLogistic_ZeroInitScoresHalf(t *testing.T) {
	l := NewLogistic(2)
	scores := l.Score([][]float64{{1, 2}, {-3, 0}})
	assert.Equal(t, []float64{0.5, 0.5}, scores)
	assert.Len(t, l.Parameters(), 5)
	assert.True(t, math.IsNaN(l.Score([][]float64{{1}})[0]))
}

func TestLogistic_GradientMatchesFiniteDifference(t *testing.T) {
	l := NewLogistic(2)
	copy(l.Parameters(), []float64{0.3, -0.2, 0.1, 0.05, -0.4})
	x := [][]float64{{1, 2}, {-0.5, 0.3}, {2, -1}}
	y := []float64{1, 0, 1}

	grad := make([]float64, 5)
	l.LossGradient(x, y, grad)

	scratch := make([]float64, 5)
	const h = 1e-6
	params := l.Parameters()
	for i := range params {
		orig := params[i]
		params[i] = orig + h
		up := l.LossGradient(x, y, scratch)
		params[i] = orig - h
		down := l.LossGradient(x, y, scratch)
		params[i] = orig
		assert.InDelta(t, (up-down)/(2*h), grad[i], 1e-6, "param %d", i)
	}
}

func TestTrainer_LearnsLikelihoodRatio(t *testing.T) {
	cfg := TrainerConfig{SimulatorSamples: 4000, BatchSize: 64, Epochs: 20, LearningRate: 0.01}
	tr, err := NewTrainer(LogisticFactory(1), cfg, rand.NewPCG(5, 6), nil)
	require.NoError(t, err)
	assert.Equal(t, 1250, cfg.Iterations())

	xTheta := gaussianRows(0, 4000, 1)
	xNext := gaussianRows(1, 4000, 2)
	res, err := tr.Train(context.Background(), xTheta, xNext)
	require.NoError(t, err)
	assert.Equal(t, 1250, res.Iterations)

	// True log-ratio log N(x|1,1) - log N(x|0,1) = x - 0.5.
	for _, x := range []float64{-1, 0, 0.5, 1, 2} {
		s := res.Classifier.Score([][]float64{{x}})[0]
		logRatio := math.Log(s / (1 - s))
		assert.InDelta(t, x-0.5, logRatio, 0.35, "x=%v", x)
	}
}

func TestTrainer_FreshClassifierEveryCall(t *testing.T) {
	allocated := 0
	factory := FactoryFunc(func() Classifier {
		allocated++
		return NewLogistic(1)
	})
	cfg := TrainerConfig{SimulatorSamples: 10, BatchSize: 5, Epochs: 1}
	tr, err := NewTrainer(factory, cfg, rand.NewPCG(1, 1), nil)
	require.NoError(t, err)

	a, err := tr.Train(context.Background(), gaussianRows(0, 10, 1), gaussianRows(1, 10, 2))
	require.NoError(t, err)
	b, err := tr.Train(context.Background(), gaussianRows(0, 10, 3), gaussianRows(1, 10, 4))
	require.NoError(t, err)

	assert.Equal(t, 2, allocated)
	assert.NotSame(t, a.Classifier, b.Classifier)
}

func TestTrainer_Errors(t *testing.T) {
	_, err := NewTrainer(nil, DefaultTrainerConfig(), nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewTrainer(LogisticFactory(1), TrainerConfig{SimulatorSamples: 1, BatchSize: 0, Epochs: 1}, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	tr, err := NewTrainer(LogisticFactory(1), DefaultTrainerConfig(), nil, nil)
	require.NoError(t, err)
	_, err = tr.Train(context.Background(), nil, [][]float64{{1}})
	assert.ErrorIs(t, err, ErrNoData)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = tr.Train(ctx, [][]float64{{0}}, [][]float64{{1}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDefaultTrainerConfig(t *testing.T) {
	cfg := DefaultTrainerConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 20000*50/128, cfg.Iterations())
}
