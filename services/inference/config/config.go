// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads and validates sampling run configuration.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/hypothesis/services/inference/classifier"
	"github.com/AleutianAI/hypothesis/services/inference/mcmc"
	"github.com/AleutianAI/hypothesis/services/inference/sink"
	"github.com/AleutianAI/hypothesis/services/inference/storage/badger"
	"github.com/AleutianAI/hypothesis/services/inference/telemetry"
)

// Transition kinds.
const (
	TransitionNormal   = "normal"
	TransitionMVNormal = "mvnormal"
	TransitionUniform  = "uniform"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid run configuration")

// RunConfig is a complete sampling run.
type RunConfig struct {
	// Method is mh, hmc or lfmh.
	Method string `yaml:"method" validate:"required,oneof=mh hmc lfmh"`

	// Samples per chain after burn-in.
	Samples int `yaml:"samples" validate:"gt=0"`

	// BurninSteps per chain. Zero skips burn-in.
	BurninSteps int `yaml:"burnin_steps" validate:"gte=0"`

	// Chains is the number of independent chains.
	Chains int `yaml:"chains" validate:"gte=1"`

	// Parallelism caps concurrently running chains. Zero is unlimited.
	Parallelism int `yaml:"parallelism" validate:"gte=0"`

	// Seed makes the run reproducible. Zero draws a random seed.
	Seed uint64 `yaml:"seed"`

	// Theta0 holds one start per chain, or a single start shared by all.
	Theta0 [][]float64 `yaml:"theta0" validate:"required,min=1,dive,min=1,dive,finite"`

	// Observations conditions the posterior. Empty means simulate them
	// from the benchmark at Benchmark.TrueTheta.
	Observations [][]float64 `yaml:"observations" validate:"dive,min=1,dive,finite"`

	Benchmark  BenchmarkConfig  `yaml:"benchmark"`
	Transition TransitionConfig `yaml:"transition"`
	HMC        HMCConfig        `yaml:"hmc"`
	LFMH       LFMHConfig       `yaml:"lfmh"`
	Storage    badger.Config    `yaml:"storage"`
	Telemetry  telemetry.Config `yaml:"telemetry"`
	Logging    LoggingConfig    `yaml:"logging"`
	Influx     sink.Config      `yaml:"influx"`
}

// BenchmarkConfig describes the Normal benchmark model.
type BenchmarkConfig struct {
	// Sigma is the observation noise.
	Sigma float64 `yaml:"sigma" validate:"gt=0"`

	// TrueTheta generates observations when none are given.
	TrueTheta []float64 `yaml:"true_theta" validate:"dive,finite"`

	// Observations is the number of generated observations.
	Observations int `yaml:"observations" validate:"gte=0"`
}

// TransitionConfig describes the proposal kernel.
type TransitionConfig struct {
	Kind       string      `yaml:"kind" validate:"required,oneof=normal mvnormal uniform"`
	Sigma      float64     `yaml:"sigma" validate:"gte=0"`
	Covariance [][]float64 `yaml:"covariance"`
	Min        []float64   `yaml:"min"`
	Max        []float64   `yaml:"max"`
}

// HMCConfig holds leapfrog settings.
type HMCConfig struct {
	LeapfrogSteps     int     `yaml:"leapfrog_steps" validate:"gt=0"`
	StepSize          float64 `yaml:"step_size" validate:"gt=0"`
	NumericalGradient bool    `yaml:"numerical_gradient"`
	GradientStep      float64 `yaml:"gradient_step" validate:"gte=0"`
}

// LFMHConfig holds the per-step classifier training budget.
type LFMHConfig struct {
	SimulatorSamples int     `yaml:"simulator_samples" validate:"gt=0"`
	BatchSize        int     `yaml:"batch_size" validate:"gt=0"`
	Epochs           int     `yaml:"epochs" validate:"gt=0"`
	LearningRate     float64 `yaml:"learning_rate" validate:"gte=0"`
}

// Trainer converts to the classifier training budget.
func (c LFMHConfig) Trainer() classifier.TrainerConfig {
	return classifier.TrainerConfig{
		SimulatorSamples: c.SimulatorSamples,
		BatchSize:        c.BatchSize,
		Epochs:           c.Epochs,
		LearningRate:     c.LearningRate,
	}
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Dir   string `yaml:"dir"`
	JSON  bool   `yaml:"json"`
}

// DefaultRunConfig returns a runnable configuration: four MH chains on the
// one-dimensional Normal benchmark.
func DefaultRunConfig() RunConfig {
	trainer := classifier.DefaultTrainerConfig()
	return RunConfig{
		Method:      mcmc.MethodMH,
		Samples:     5000,
		BurninSteps: 500,
		Chains:      4,
		Theta0:      [][]float64{{-2}, {-1}, {1}, {2}},
		Benchmark: BenchmarkConfig{
			Sigma:        1,
			TrueTheta:    []float64{0.5},
			Observations: 100,
		},
		Transition: TransitionConfig{Kind: TransitionNormal, Sigma: 0.2},
		HMC:        HMCConfig{LeapfrogSteps: 10, StepSize: 0.02},
		LFMH: LFMHConfig{
			SimulatorSamples: trainer.SimulatorSamples,
			BatchSize:        trainer.BatchSize,
			Epochs:           trainer.Epochs,
			LearningRate:     trainer.LearningRate,
		},
		Storage:   badger.DefaultConfig(defaultStorePath()),
		Telemetry: telemetry.DefaultConfig(),
		Logging:   LoggingConfig{Level: "info"},
	}
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".hypothesis", "runs")
	}
	return filepath.Join(home, ".hypothesis", "runs")
}

// Load reads path over DefaultRunConfig and validates the result.
func Load(path string) (RunConfig, error) {
	cfg := DefaultRunConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return RunConfig{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return RunConfig{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return RunConfig{}, err
	}
	return cfg, nil
}

// Write stores cfg as YAML, creating parent directories.
func Write(path string, cfg RunConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("finite", validateFinite)
	v.RegisterStructValidation(validateRun, RunConfig{})
	return v
}

// validateFinite rejects NaN and infinities.
func validateFinite(fl validator.FieldLevel) bool {
	f := fl.Field().Float()
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// validateRun checks cross-field shape constraints.
func validateRun(sl validator.StructLevel) {
	cfg := sl.Current().Interface().(RunConfig)
	if len(cfg.Theta0) == 0 {
		return
	}
	dim := len(cfg.Theta0[0])

	if n := len(cfg.Theta0); n != 1 && n != cfg.Chains {
		sl.ReportError(cfg.Theta0, "Theta0", "Theta0", "chains", fmt.Sprint(cfg.Chains))
	}
	for _, row := range cfg.Theta0 {
		if len(row) != dim {
			sl.ReportError(cfg.Theta0, "Theta0", "Theta0", "dims", fmt.Sprint(dim))
			break
		}
	}
	for _, row := range cfg.Observations {
		if len(row) != dim {
			sl.ReportError(cfg.Observations, "Observations", "Observations", "dims", fmt.Sprint(dim))
			break
		}
	}
	if len(cfg.Observations) == 0 {
		if len(cfg.Benchmark.TrueTheta) != dim {
			sl.ReportError(cfg.Benchmark.TrueTheta, "TrueTheta", "TrueTheta", "dims", fmt.Sprint(dim))
		}
		if cfg.Benchmark.Observations <= 0 {
			sl.ReportError(cfg.Benchmark.Observations, "Observations", "Observations", "required_without_data", "")
		}
	}
	if cfg.Transition.Kind == TransitionNormal && !(cfg.Transition.Sigma > 0) {
		sl.ReportError(cfg.Transition.Sigma, "Sigma", "Sigma", "gt", "0")
	}
}

// Validate checks cfg against its struct tags and shape constraints.
func (c RunConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Dimensionality returns the parameter count.
func (c RunConfig) Dimensionality() int {
	if len(c.Theta0) == 0 {
		return 0
	}
	return len(c.Theta0[0])
}

// Starts returns one start state per chain.
func (c RunConfig) Starts() [][]float64 {
	starts := make([][]float64, c.Chains)
	for i := range starts {
		src := c.Theta0[0]
		if len(c.Theta0) == c.Chains {
			src = c.Theta0[i]
		}
		starts[i] = append([]float64(nil), src...)
	}
	return starts
}
