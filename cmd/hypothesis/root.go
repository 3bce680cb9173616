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
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/hypothesis/pkg/logging"
	"github.com/AleutianAI/hypothesis/pkg/ux"
	"github.com/AleutianAI/hypothesis/services/inference/chainstore"
	"github.com/AleutianAI/hypothesis/services/inference/config"
	"github.com/AleutianAI/hypothesis/services/inference/storage/badger"
)

// rootOptions holds the persistent flags.
type rootOptions struct {
	configPath string
	output     string
	logLevel   string
	storePath  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "hypothesis",
		Short:         "Run MCMC samplers and inspect their chains",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "YAML run configuration (defaults are used when empty)")
	flags.StringVarP(&opts.output, "output", "o", "auto", "Output mode: auto, rich or machine")
	flags.StringVar(&opts.logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	flags.StringVar(&opts.storePath, "store", "", "Override storage.path")

	root.AddCommand(
		newSampleCmd(opts),
		newDiagnoseCmd(opts),
		newRunsCmd(opts),
		newHDRCmd(opts),
		newConfidenceCmd(opts),
		newConfigCmd(opts),
	)
	return root
}

// app is the per-command environment built from the flags.
type app struct {
	cfg     config.RunConfig
	logger  *logging.Logger
	printer *ux.Printer
}

// setup loads configuration and builds the logger and printer for cmd.
// Errors are also printed, since the root command silences them.
func (o *rootOptions) setup(cmd *cobra.Command) (*app, error) {
	mode, err := ux.ParseMode(o.output, ux.DetectMode(os.Stdout))
	if err != nil {
		return nil, err
	}
	printer := ux.NewPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	cfg, err := o.loadConfig()
	if err != nil {
		printer.Error(err.Error())
		return nil, err
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		printer.Error(err.Error())
		return nil, err
	}
	logger := logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Logging.Dir,
		Service: cmd.Name(),
		JSON:    cfg.Logging.JSON,
		Output:  cmd.ErrOrStderr(),
	})
	return &app{cfg: cfg, logger: logger, printer: printer}, nil
}

func (o *rootOptions) loadConfig() (config.RunConfig, error) {
	cfg := config.DefaultRunConfig()
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return config.RunConfig{}, err
		}
		cfg = loaded
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if o.storePath != "" {
		cfg.Storage.Path = o.storePath
		cfg.Storage.InMemory = false
	}
	if err := cfg.Validate(); err != nil {
		return config.RunConfig{}, err
	}
	return cfg, nil
}

// fail prints err and returns it.
func (a *app) fail(err error) error {
	a.printer.Error(err.Error())
	a.logger.Error("command failed", "error", err)
	return err
}

// close releases the logger.
func (a *app) close() {
	_ = a.logger.Close()
}

// openStore opens the run store. The returned function closes it.
func (a *app) openStore() (*chainstore.Store, func(), error) {
	storeCfg := a.cfg.Storage
	storeCfg.Logger = a.logger.Slog()
	db, err := badger.Open(storeCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open run store: %w", err)
	}
	closeFn := func() {
		if err := db.Close(); err != nil {
			a.logger.Warn("close run store", "error", err)
		}
	}
	return chainstore.New(db, a.logger.Slog()), closeFn, nil
}

// loadRun reads a stored run by id.
func (a *app) loadRun(cmd *cobra.Command, id string) (*chainstore.Run, error) {
	store, closeStore, err := a.openStore()
	if err != nil {
		return nil, err
	}
	defer closeStore()

	return store.Load(cmd.Context(), id)
}
