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
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/hypothesis/services/inference/chainstore"
	"github.com/AleutianAI/hypothesis/services/inference/config"
	"github.com/AleutianAI/hypothesis/services/inference/events"
	"github.com/AleutianAI/hypothesis/services/inference/mcmc"
	"github.com/AleutianAI/hypothesis/services/inference/sink"
	"github.com/AleutianAI/hypothesis/services/inference/telemetry"
)

type sampleOptions struct {
	method      string
	samples     int
	burnin      int
	chains      int
	parallelism int
	seed        uint64
	noStore     bool
	labels      map[string]string
}

func newSampleCmd(root *rootOptions) *cobra.Command {
	opts := &sampleOptions{}
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Run independent chains and store them",
		Long: `Runs the configured sampler on every start in theta0, prints
per-chain diagnostics and R-hat, and stores the chains under a new run id.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSample(cmd, root, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.method, "method", "", "Override method (mh, hmc, lfmh)")
	f.IntVar(&opts.samples, "samples", 0, "Override samples per chain")
	f.IntVar(&opts.burnin, "burnin", 0, "Override burn-in steps per chain")
	f.IntVar(&opts.chains, "chains", 0, "Override chain count (a single theta0 is shared)")
	f.IntVar(&opts.parallelism, "parallelism", 0, "Override concurrent chain limit")
	f.Uint64Var(&opts.seed, "seed", 0, "Override seed")
	f.BoolVar(&opts.noStore, "no-store", false, "Do not persist the run")
	f.StringToStringVar(&opts.labels, "label", nil, "Label stored with the run (key=value, repeatable)")
	return cmd
}

// apply copies changed flags onto cfg.
func (o *sampleOptions) apply(cmd *cobra.Command, cfg *config.RunConfig) {
	f := cmd.Flags()
	if f.Changed("method") {
		cfg.Method = o.method
	}
	if f.Changed("samples") {
		cfg.Samples = o.samples
	}
	if f.Changed("burnin") {
		cfg.BurninSteps = o.burnin
	}
	if f.Changed("chains") {
		cfg.Chains = o.chains
		if len(cfg.Theta0) != o.chains {
			cfg.Theta0 = cfg.Theta0[:1]
		}
	}
	if f.Changed("parallelism") {
		cfg.Parallelism = o.parallelism
	}
	if f.Changed("seed") {
		cfg.Seed = o.seed
	}
}

func runSample(cmd *cobra.Command, root *rootOptions, opts *sampleOptions) error {
	a, err := root.setup(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	opts.apply(cmd, &a.cfg)
	if err := a.cfg.Validate(); err != nil {
		return a.fail(err)
	}
	cfg := a.cfg
	ctx := cmd.Context()
	logger := a.logger

	shutdown, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return a.fail(err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()
	if stop := serveMetrics(cfg.Telemetry.MetricsAddr, a); stop != nil {
		defer stop()
	}

	metrics, err := telemetry.DefaultSamplerMetrics()
	if err != nil {
		return a.fail(err)
	}

	seed := cfg.ResolveSeed()
	observations, err := cfg.ResolveObservations(ctx)
	if err != nil {
		return a.fail(err)
	}

	runID := uuid.NewString()
	hooks := config.Hooks{Logger: logger.Slog(), Metrics: metrics}
	if cfg.Influx.Enabled() {
		stepSink, err := sink.New(cfg.Influx, runID, logger.Slog())
		if err != nil {
			return a.fail(err)
		}
		defer stepSink.Close()
		hooks.OnEmitter = func(_ int, e *events.Emitter) { stepSink.Attach(e) }
	}

	logger.Info("run started",
		"run_id", runID,
		"method", cfg.Method,
		"chains", cfg.Chains,
		"samples", cfg.Samples,
		"burnin_steps", cfg.BurninSteps,
		"seed", seed,
		"observations", len(observations),
	)
	started := time.Now()
	req := mcmc.RunRequest{Observations: observations, Samples: cfg.Samples, BurninSteps: cfg.BurninSteps}
	chains, err := mcmc.RunIndependent(ctx, cfg.Factory(hooks), req, cfg.Starts(), cfg.Parallelism)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			a.printer.Warning("sampling interrupted")
		}
		return a.fail(err)
	}
	elapsed := time.Since(started)
	logger.Info("run finished", "run_id", runID, "elapsed", elapsed)

	a.printer.Title(fmt.Sprintf("%s run %s", cfg.Method, runID))
	a.printer.Field("seed", seed)
	a.printer.Field("elapsed", elapsed.Round(time.Millisecond))

	if !opts.noStore {
		store, closeStore, err := a.openStore()
		if err != nil {
			return a.fail(err)
		}
		defer closeStore()
		meta, err := store.Save(ctx, chainstore.Metadata{
			ID:     runID,
			Method: cfg.Method,
			Seed:   seed,
			Labels: opts.labels,
		}, chains)
		if err != nil {
			return a.fail(err)
		}
		a.printer.Success(fmt.Sprintf("stored run %s", meta.ID))
	}

	return printDiagnostics(a.printer, chains, diagnoseOptions{maxLag: mcmc.DefaultLag, interval: 1})
}

// serveMetrics serves the Prometheus handler on addr. It returns nil when
// addr is empty or no Prometheus exporter is installed.
func serveMetrics(addr string, a *app) func() {
	if addr == "" {
		return nil
	}
	handler := telemetry.MetricsHandler()
	if handler == nil {
		a.printer.Warning("metrics_addr is set but the prometheus exporter is disabled")
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Warn("metrics server stopped", "addr", addr, "error", err)
		}
	}()
	a.logger.Info("serving metrics", "addr", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
