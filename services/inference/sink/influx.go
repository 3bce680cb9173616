// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package sink streams sampler steps to InfluxDB as they happen.
package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/AleutianAI/hypothesis/services/inference/events"
)

// DefaultMeasurement is the measurement name for step points.
const DefaultMeasurement = "mcmc_steps"

// ErrInvalidConfig indicates missing connection settings.
var ErrInvalidConfig = errors.New("invalid influx sink configuration")

// Config holds InfluxDB connection settings.
type Config struct {
	URL         string `yaml:"url" json:"url" validate:"omitempty,url"`
	Token       string `yaml:"token" json:"-"`
	Org         string `yaml:"org" json:"org"`
	Bucket      string `yaml:"bucket" json:"bucket"`
	Measurement string `yaml:"measurement" json:"measurement"`
}

// Enabled reports whether a URL is configured.
func (c Config) Enabled() bool { return c.URL != "" }

// PointWriter is the subset of api.WriteAPIBlocking the sink uses.
type PointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// StepSink writes one point per *_step_end event.
//
// Description:
//
//	Each point is tagged with run id, chain id, method and phase
//	(burnin or sampling), and carries the step index, acceptance
//	probability, accepted flag and theta_<j> fields. A write error is
//	returned to the emitter and therefore aborts the chain.
//
// Thread Safety: Safe for concurrent use if the writer is.
type StepSink struct {
	writer      PointWriter
	client      influxdb2.Client
	measurement string
	runID       string
	logger      *slog.Logger
}

// New connects to InfluxDB with a blocking write API.
func New(cfg Config, runID string, logger *slog.Logger) (*StepSink, error) {
	if cfg.URL == "" || cfg.Org == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: url, org and bucket are required", ErrInvalidConfig)
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	s := NewWithWriter(client.WriteAPIBlocking(cfg.Org, cfg.Bucket), cfg.Measurement, runID, logger)
	s.client = client
	return s, nil
}

// NewWithWriter builds a sink over any PointWriter. An empty measurement
// selects DefaultMeasurement.
func NewWithWriter(w PointWriter, measurement, runID string, logger *slog.Logger) *StepSink {
	if measurement == "" {
		measurement = DefaultMeasurement
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StepSink{
		writer:      w,
		measurement: measurement,
		runID:       runID,
		logger:      logger.With(slog.String("component", "influx_sink")),
	}
}

// Attach subscribes the sink to every step-end event of e.
func (s *StepSink) Attach(e *events.Emitter) string {
	return e.Subscribe(s.Handle, events.MHStepEnd, events.HMCStepEnd, events.LFMHStepEnd)
}

// Handle implements events.Handler.
func (s *StepSink) Handle(ctx context.Context, event *events.Event) error {
	if !event.Type.IsStepEnd() {
		return nil
	}
	data, ok := event.Data.(events.StepData)
	if !ok {
		return nil
	}

	phase := "sampling"
	if data.Burnin {
		phase = "burnin"
	}
	method, _, _ := strings.Cut(string(event.Type), "_")

	p := influxdb2.NewPointWithMeasurement(s.measurement).
		AddTag("run_id", s.runID).
		AddTag("chain_id", event.ChainID).
		AddTag("method", method).
		AddTag("phase", phase).
		AddField("step", data.Index).
		AddField("acceptance", data.Acceptance).
		AddField("accepted", data.Accepted).
		SetTime(event.Timestamp)
	for j, v := range data.Theta {
		p.AddField(fmt.Sprintf("theta_%d", j), v)
	}

	if err := s.writer.WritePoint(ctx, p); err != nil {
		s.logger.Warn("step write failed",
			slog.String("chain_id", event.ChainID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("write step point: %w", err)
	}
	return nil
}

// Close releases the client, if New created one.
func (s *StepSink) Close() {
	if s.client != nil {
		s.client.Close()
	}
}
