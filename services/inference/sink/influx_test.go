// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package sink

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/hypothesis/services/inference/events"
)

type fakeWriter struct {
	mu     sync.Mutex
	points []*write.Point
	err    error
}

func (f *fakeWriter) WritePoint(_ context.Context, points ...*write.Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.points = append(f.points, points...)
	return nil
}

func fields(p *write.Point) map[string]any {
	out := map[string]any{}
	for _, f := range p.FieldList() {
		out[f.Key] = f.Value
	}
	return out
}

func tags(p *write.Point) map[string]string {
	out := map[string]string{}
	for _, t := range p.TagList() {
		out[t.Key] = t.Value
	}
	return out
}

func TestStepSink_WritesStepEnds(t *testing.T) {
	w := &fakeWriter{}
	s := NewWithWriter(w, "", "run-1", nil)
	em := events.NewEmitter(events.WithChainID("chain-0"))
	s.Attach(em)

	ctx := context.Background()
	require.NoError(t, em.Emit(ctx, events.MHStepStart, events.StepData{}))
	require.NoError(t, em.Emit(ctx, events.MHStepEnd, events.StepData{
		Index:      3,
		Burnin:     true,
		Theta:      []float64{0.5, -1},
		Acceptance: 0.25,
		Accepted:   true,
	}))

	require.Len(t, w.points, 1)
	p := w.points[0]
	assert.Equal(t, DefaultMeasurement, p.Name())
	assert.Equal(t, map[string]string{
		"run_id":   "run-1",
		"chain_id": "chain-0",
		"method":   "mh",
		"phase":    "burnin",
	}, tags(p))

	f := fields(p)
	assert.Equal(t, int64(3), f["step"])
	assert.Equal(t, 0.25, f["acceptance"])
	assert.Equal(t, true, f["accepted"])
	assert.Equal(t, 0.5, f["theta_0"])
	assert.Equal(t, -1.0, f["theta_1"])
}

func TestStepSink_IgnoresOtherEvents(t *testing.T) {
	w := &fakeWriter{}
	s := NewWithWriter(w, "custom", "run", nil)

	require.NoError(t, s.Handle(context.Background(), &events.Event{Type: events.LFMHTrainEnd}))
	require.NoError(t, s.Handle(context.Background(), &events.Event{Type: events.HMCStepEnd, Data: "not step data"}))
	assert.Empty(t, w.points)
}

func TestStepSink_WriteErrorPropagates(t *testing.T) {
	boom := errors.New("influx down")
	s := NewWithWriter(&fakeWriter{err: boom}, "", "run", nil)
	em := events.NewEmitter()
	s.Attach(em)

	err := em.Emit(context.Background(), events.LFMHStepEnd, events.StepData{Theta: []float64{1}})
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, events.ErrHandler)
}

func TestNew_RequiresConnectionSettings(t *testing.T) {
	_, err := New(Config{URL: "http://localhost:8086"}, "run", nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	s, err := New(Config{URL: "http://localhost:8086", Org: "o", Bucket: "b"}, "run", nil)
	require.NoError(t, err)
	s.Close()

	assert.False(t, Config{}.Enabled())
}
