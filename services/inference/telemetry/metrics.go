// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SamplerMetrics contains the sampler instruments. All names use the
// "hypothesis_" prefix.
//
// Thread Safety: Safe for concurrent use after creation.
type SamplerMetrics struct {
	// StepsTotal counts sampler steps by method and phase.
	StepsTotal metric.Int64Counter

	// AcceptedTotal counts accepted proposals by method and phase.
	AcceptedTotal metric.Int64Counter

	// AcceptanceProbability records per-step acceptance probabilities.
	AcceptanceProbability metric.Float64Histogram

	// StepDuration records wall time per step in seconds.
	StepDuration metric.Float64Histogram

	// TrainDuration records surrogate classifier training time in seconds.
	TrainDuration metric.Float64Histogram

	// ChainsTotal counts completed chain runs by method and status.
	ChainsTotal metric.Int64Counter
}

// NewSamplerMetrics registers the sampler instruments with meter.
//
// Outputs:
//   - *SamplerMetrics: The instruments.
//   - error: Non-nil if any registration fails.
func NewSamplerMetrics(meter metric.Meter) (*SamplerMetrics, error) {
	m := &SamplerMetrics{}
	var err error

	m.StepsTotal, err = meter.Int64Counter(
		"hypothesis_mcmc_steps_total",
		metric.WithDescription("Total MCMC steps"),
		metric.WithUnit("{step}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create mcmc_steps_total: %w", err)
	}

	m.AcceptedTotal, err = meter.Int64Counter(
		"hypothesis_mcmc_accepted_total",
		metric.WithDescription("Total accepted MCMC proposals"),
		metric.WithUnit("{step}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create mcmc_accepted_total: %w", err)
	}

	m.AcceptanceProbability, err = meter.Float64Histogram(
		"hypothesis_mcmc_acceptance_probability",
		metric.WithDescription("Metropolis-Hastings acceptance probability per step"),
		metric.WithExplicitBucketBoundaries(0, 0.05, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1),
	)
	if err != nil {
		return nil, fmt.Errorf("create mcmc_acceptance_probability: %w", err)
	}

	m.StepDuration, err = meter.Float64Histogram(
		"hypothesis_mcmc_step_duration_seconds",
		metric.WithDescription("MCMC step duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.00001, 0.0001, 0.001, 0.01, 0.1, 1, 10, 60),
	)
	if err != nil {
		return nil, fmt.Errorf("create mcmc_step_duration: %w", err)
	}

	m.TrainDuration, err = meter.Float64Histogram(
		"hypothesis_classifier_train_duration_seconds",
		metric.WithDescription("Surrogate classifier training duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 300),
	)
	if err != nil {
		return nil, fmt.Errorf("create classifier_train_duration: %w", err)
	}

	m.ChainsTotal, err = meter.Int64Counter(
		"hypothesis_mcmc_chains_total",
		metric.WithDescription("Total MCMC chain runs"),
		metric.WithUnit("{chain}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create mcmc_chains_total: %w", err)
	}

	return m, nil
}

// DefaultSamplerMetrics registers instruments on the global meter provider.
func DefaultSamplerMetrics() (*SamplerMetrics, error) {
	return NewSamplerMetrics(otel.Meter(TracerName))
}

// RecordStep records one sampler step. Nil-safe.
func (m *SamplerMetrics) RecordStep(ctx context.Context, method string, burnin bool, acceptance float64, accepted bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.Bool("burnin", burnin),
	)
	m.StepsTotal.Add(ctx, 1, attrs)
	if accepted {
		m.AcceptedTotal.Add(ctx, 1, attrs)
	}
	m.AcceptanceProbability.Record(ctx, acceptance, attrs)
	m.StepDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordTraining records one classifier training run. Nil-safe.
func (m *SamplerMetrics) RecordTraining(ctx context.Context, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.TrainDuration.Record(ctx, elapsed.Seconds())
}

// RecordChain records a finished chain run. Nil-safe.
func (m *SamplerMetrics) RecordChain(ctx context.Context, method string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.ChainsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("status", status),
	))
}
