// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package simulation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type constPrior struct{ v float64 }

func (p constPrior) Sample(n int) [][]float64 { return Repeat([]float64{p.v}, n) }
func (p constPrior) LogProb([]float64) float64 { return 0 }

func doubling() Simulator {
	return SimulatorFunc(func(_ context.Context, thetas [][]float64) ([][]float64, [][]float64, error) {
		out := make([][]float64, len(thetas))
		for i, th := range thetas {
			out[i] = []float64{2 * th[0]}
		}
		return thetas, out, nil
	})
}

func TestSampleJoint(t *testing.T) {
	inputs, outputs, err := SampleJoint(context.Background(), doubling(), constPrior{v: 1.5}, 4)
	require.NoError(t, err)
	require.Len(t, inputs, 4)
	require.Len(t, outputs, 4)
	for i := range inputs {
		assert.Equal(t, []float64{1.5}, inputs[i])
		assert.Equal(t, []float64{3}, outputs[i])
	}
}

func TestSampleMarginal(t *testing.T) {
	outputs, err := SampleMarginal(context.Background(), doubling(), constPrior{v: -1}, 2)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{-2}, {-2}}, outputs)

	_, err = SampleMarginal(context.Background(), doubling(), constPrior{}, 0)
	assert.ErrorIs(t, err, ErrInvalidCount)
}

func TestRun_BatchContract(t *testing.T) {
	short := SimulatorFunc(func(_ context.Context, thetas [][]float64) ([][]float64, [][]float64, error) {
		return thetas, thetas[:1], nil
	})
	_, _, err := Run(context.Background(), short, Repeat([]float64{0}, 3))
	assert.ErrorIs(t, err, ErrBatchSize)

	boom := errors.New("boom")
	failing := SimulatorFunc(func(context.Context, [][]float64) ([][]float64, [][]float64, error) {
		return nil, nil, boom
	})
	_, _, err = Run(context.Background(), failing, Repeat([]float64{0}, 1))
	assert.ErrorIs(t, err, boom)
}

func TestRepeat_IndependentRows(t *testing.T) {
	rows := Repeat([]float64{1, 2}, 2)
	rows[0][0] = 99
	assert.Equal(t, []float64{1, 2}, rows[1])
}
