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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/hypothesis/services/inference/events"
	"github.com/AleutianAI/hypothesis/services/inference/telemetry"
)

// Sampler method names, used in logs, metrics and persisted runs.
const (
	MethodMH   = "mh"
	MethodLFMH = "lfmh"
	MethodHMC  = "hmc"
)

var (
	// ErrInvalidRequest indicates a malformed RunRequest.
	ErrInvalidRequest = errors.New("invalid run request")

	// ErrNilLikelihood indicates a sampler was built without a likelihood.
	ErrNilLikelihood = errors.New("log-likelihood is nil")

	// ErrNilTransition indicates a sampler was built without a kernel.
	ErrNilTransition = errors.New("transition distribution is nil")
)

// Step is the outcome of a single Markov transition.
type Step struct {
	// Theta is the chain state after the step: Proposal if accepted,
	// otherwise a copy of the previous state.
	Theta []float64

	// Proposal is the candidate that was evaluated.
	Proposal []float64

	// Acceptance is the acceptance probability in [0, 1].
	Acceptance float64

	// Accepted reports whether the proposal was taken.
	Accepted bool
}

// RunRequest describes one chain.
type RunRequest struct {
	// Theta0 is the initial state. Not modified.
	Theta0 []float64

	// Observations are the observed data the posterior conditions on.
	Observations [][]float64

	// Samples is the number of recorded steps. Must be positive.
	Samples int

	// BurninSteps is the number of discarded warm-up steps. Zero skips
	// burn-in.
	BurninSteps int
}

// Validate checks the request shape.
func (r RunRequest) Validate() error {
	if len(r.Theta0) == 0 {
		return fmt.Errorf("%w: theta0 is empty", ErrInvalidRequest)
	}
	if r.Samples <= 0 {
		return fmt.Errorf("%w: samples must be positive, got %d", ErrInvalidRequest, r.Samples)
	}
	if r.BurninSteps < 0 {
		return fmt.Errorf("%w: burnin steps must be non-negative, got %d", ErrInvalidRequest, r.BurninSteps)
	}
	return nil
}

// Sampler advances a Markov chain.
//
// Description:
//
//	Step performs exactly one transition from theta and never modifies
//	its inputs. Run drives a full chain: optional burn-in followed by
//	sampling, one recorded row per step.
//
// Thread Safety:
//
//	Implementations are NOT safe for concurrent use.
type Sampler interface {
	// Method returns the sampler's short name.
	Method() string

	// Step performs a single transition.
	Step(ctx context.Context, observations [][]float64, theta []float64) (Step, error)

	// Run drives burn-in and sampling and returns the recorded chain.
	Run(ctx context.Context, req RunRequest) (*Chain, error)

	// Events returns the sampler's own event emitter.
	Events() *events.Emitter
}

// Option configures a sampler.
type Option func(*options)

type options struct {
	logger            *slog.Logger
	emitter           *events.Emitter
	metrics           *telemetry.SamplerMetrics
	src               rand.Source
	numericalGradient bool
	gradientStep      float64
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithEmitter replaces the sampler's own emitter.
func WithEmitter(emitter *events.Emitter) Option {
	return func(o *options) {
		o.emitter = emitter
	}
}

// WithMetrics records per-step metrics. Nil disables metrics.
func WithMetrics(metrics *telemetry.SamplerMetrics) Option {
	return func(o *options) {
		o.metrics = metrics
	}
}

// WithSource sets the random source for acceptance draws and momenta.
func WithSource(src rand.Source) Option {
	return func(o *options) {
		o.src = src
	}
}

// WithSeed seeds a PCG source for reproducible runs.
func WithSeed(seed uint64) Option {
	return func(o *options) {
		o.src = rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	}
}

// WithNumericalGradient lets HamiltonianMonteCarlo differentiate a plain
// LogLikelihood with central finite differences. A zero step uses the
// gonum default.
func WithNumericalGradient(step float64) Option {
	return func(o *options) {
		o.numericalGradient = true
		o.gradientStep = step
	}
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.emitter == nil {
		o.emitter = events.NewEmitter()
	}
	if o.src == nil {
		o.src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return o
}

// base holds the state shared by every sampler.
type base struct {
	method    string
	stepStart events.Type
	stepEnd   events.Type
	logger    *slog.Logger
	emitter   *events.Emitter
	metrics   *telemetry.SamplerMetrics
	rng       *rand.Rand
}

func newBase(method string, start, end events.Type, o options) base {
	return base{
		method:    method,
		stepStart: start,
		stepEnd:   end,
		logger:    o.logger.With(slog.String("method", method)),
		emitter:   o.emitter,
		metrics:   o.metrics,
		rng:       rand.New(o.src),
	}
}

// Method implements Sampler.
func (b *base) Method() string { return b.method }

// Events implements Sampler.
func (b *base) Events() *events.Emitter { return b.emitter }

// decide draws u and builds the step outcome.
func (b *base) decide(theta, proposal []float64, acceptance float64) Step {
	step := Step{Proposal: proposal, Acceptance: acceptance}
	if Accept(b.rng.Float64(), acceptance) {
		step.Accepted = true
		step.Theta = append([]float64(nil), proposal...)
	} else {
		step.Theta = append([]float64(nil), theta...)
	}
	return step
}

// run drives burn-in and sampling for s.
//
// Description:
//
//	The final burn-in state becomes the first sampling state. Every step
//	is bracketed by the sampler's start and end events; a handler error
//	aborts the run before the step is recorded. The context is checked
//	between steps.
func run(ctx context.Context, s Sampler, b *base, req RunRequest) (chain *Chain, err error) {
	if ctx == nil {
		return nil, fmt.Errorf("%w: nil context", ErrInvalidRequest)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartSpan(ctx, "mcmc.Run",
		attribute.String("mcmc.method", b.method),
		attribute.Int("mcmc.samples", req.Samples),
		attribute.Int("mcmc.burnin_steps", req.BurninSteps),
		attribute.Int("mcmc.dimensionality", len(req.Theta0)),
	)
	defer span.End()
	defer func() {
		b.metrics.RecordChain(ctx, b.method, err)
		if err != nil {
			telemetry.RecordError(span, err)
			return
		}
		telemetry.SetSpanOK(span)
	}()

	logger := b.logger.With(slog.String("chain_id", b.emitter.ChainID()))
	start := time.Now()
	logger.Info("chain started",
		slog.Int("samples", req.Samples),
		slog.Int("burnin_steps", req.BurninSteps),
	)

	theta := append([]float64(nil), req.Theta0...)

	var burnin *phase
	if req.BurninSteps > 0 {
		burnin, err = runPhase(ctx, s, b, req.Observations, theta, req.BurninSteps, true)
		if err != nil {
			return nil, fmt.Errorf("burn-in: %w", err)
		}
		theta = burnin.thetas[len(burnin.thetas)-1]
		logger.Info("burn-in complete",
			slog.Float64("mean_acceptance", mean(burnin.probabilities)),
		)
	}

	sampling, err := runPhase(ctx, s, b, req.Observations, theta, req.Samples, false)
	if err != nil {
		return nil, fmt.Errorf("sampling: %w", err)
	}

	var opts []ChainOption
	if burnin != nil {
		opts = append(opts, WithBurnin(burnin.thetas, burnin.probabilities))
	}
	chain, err = NewChain(sampling.thetas, sampling.probabilities, opts...)
	if err != nil {
		return nil, err
	}

	logger.Info("chain finished",
		slog.Float64("mean_acceptance", chain.MeanAcceptance()),
		slog.Duration("elapsed", time.Since(start)),
	)
	return chain, nil
}

type phase struct {
	thetas        [][]float64
	probabilities []float64
}

func runPhase(ctx context.Context, s Sampler, b *base, observations [][]float64, theta []float64, steps int, burnin bool) (*phase, error) {
	p := &phase{
		thetas:        make([][]float64, 0, steps),
		probabilities: make([]float64, 0, steps),
	}
	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		if err := b.emitter.Emit(ctx, b.stepStart, events.StepData{
			Index:  i,
			Burnin: burnin,
			Theta:  append([]float64(nil), theta...),
		}); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}

		started := time.Now()
		step, err := s.Step(ctx, observations, theta)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		b.metrics.RecordStep(ctx, b.method, burnin, step.Acceptance, step.Accepted, time.Since(started))

		if err := b.emitter.Emit(ctx, b.stepEnd, events.StepData{
			Index:      i,
			Burnin:     burnin,
			Theta:      append([]float64(nil), step.Theta...),
			Acceptance: step.Acceptance,
			Accepted:   step.Accepted,
		}); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}

		p.thetas = append(p.thetas, step.Theta)
		p.probabilities = append(p.probabilities, step.Acceptance)
		theta = step.Theta
	}
	return p, nil
}
