// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitter_DeliversInOrder(t *testing.T) {
	e := NewEmitter(WithChainID("chain-1"))
	var order []string

	e.Subscribe(func(_ context.Context, ev *Event) error {
		order = append(order, "first:"+string(ev.Type))
		return nil
	})
	e.Subscribe(func(_ context.Context, ev *Event) error {
		order = append(order, "second:"+string(ev.Type))
		assert.Equal(t, "chain-1", ev.ChainID)
		return nil
	}, MHStepEnd)

	require.NoError(t, e.Emit(context.Background(), MHStepStart, nil))
	require.NoError(t, e.Emit(context.Background(), MHStepEnd, StepData{Index: 3}))

	assert.Equal(t, []string{
		"first:mh_step_start",
		"first:mh_step_end",
		"second:mh_step_end",
	}, order)
}

func TestEmitter_HandlerErrorPropagates(t *testing.T) {
	e := NewEmitter()
	boom := errors.New("boom")
	called := false

	e.Subscribe(func(context.Context, *Event) error { return boom })
	e.Subscribe(func(context.Context, *Event) error {
		called = true
		return nil
	})

	err := e.Emit(context.Background(), LFMHTrainStart, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHandler)
	assert.ErrorIs(t, err, boom)
	assert.False(t, called, "handlers after a failure must not run")
}

func TestEmitter_PanicBecomesError(t *testing.T) {
	e := NewEmitter()
	e.Subscribe(func(context.Context, *Event) error { panic("bad hook") })

	err := e.Emit(context.Background(), HMCStepStart, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHandler)
	assert.Contains(t, err.Error(), "bad hook")
}

func TestEmitter_Unsubscribe(t *testing.T) {
	e := NewEmitter()
	rec := &Recorder{}
	id := e.Subscribe(rec.Handle)
	assert.Equal(t, 1, e.SubscriptionCount())

	assert.True(t, e.Unsubscribe(id))
	assert.False(t, e.Unsubscribe(id))
	assert.Equal(t, 0, e.SubscriptionCount())

	require.NoError(t, e.Emit(context.Background(), MHStepEnd, nil))
	assert.Empty(t, rec.Events())
}

func TestEmitter_NilIsNoop(t *testing.T) {
	var e *Emitter
	assert.NoError(t, e.Emit(context.Background(), MHStepEnd, nil))
	assert.Equal(t, 0, e.SubscriptionCount())
	assert.Empty(t, e.ChainID())
}

func TestRecorder_Count(t *testing.T) {
	e := NewEmitter()
	rec := &Recorder{}
	e.Subscribe(rec.Handle)
	for i := 0; i < 3; i++ {
		require.NoError(t, e.Emit(context.Background(), LFMHStepEnd, nil))
	}
	assert.Equal(t, 3, rec.Count(LFMHStepEnd))
	assert.Equal(t, 0, rec.Count(LFMHStepStart))
	assert.True(t, LFMHStepEnd.IsStepEnd())
	assert.False(t, LFMHTrainEnd.IsStepEnd())
}
