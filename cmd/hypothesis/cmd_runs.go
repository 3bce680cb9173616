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
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/hypothesis/pkg/ux"
	"github.com/AleutianAI/hypothesis/services/inference/chainstore"
)

func newRunsCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Manage stored runs",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List stored runs, newest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withStore(cmd, root, func(a *app, store *chainstore.Store) error {
					runs, err := store.List(cmd.Context())
					if err != nil {
						return err
					}
					if len(runs) == 0 {
						a.printer.Warning("no stored runs")
						return nil
					}
					a.printer.Table(runsTable(runs))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "delete <run-id>...",
			Short: "Delete stored runs",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd, root, func(a *app, store *chainstore.Store) error {
					for _, id := range args {
						if err := store.Delete(cmd.Context(), id); err != nil {
							return fmt.Errorf("delete %s: %w", id, err)
						}
						a.printer.Success("deleted run " + id)
					}
					return nil
				})
			},
		},
	)
	return cmd
}

// withStore runs fn with an open store and reports its error.
func withStore(cmd *cobra.Command, root *rootOptions, fn func(*app, *chainstore.Store) error) error {
	a, err := root.setup(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	store, closeStore, err := a.openStore()
	if err != nil {
		return a.fail(err)
	}
	defer closeStore()

	if err := fn(a, store); err != nil {
		return a.fail(err)
	}
	return nil
}

func runsTable(runs []chainstore.Metadata) ux.Table {
	t := ux.Table{
		Title:   "Runs",
		Headers: []string{"id", "method", "created", "chains", "samples", "burnin", "dims", "labels"},
	}
	for _, m := range runs {
		t.AddRow(
			ux.Plain(m.ID),
			ux.Plain(m.Method),
			ux.Plain(m.CreatedAt.Local().Format(time.DateTime)),
			ux.Plain(strconv.Itoa(m.Chains)),
			ux.Plain(strconv.Itoa(m.Samples)),
			ux.Plain(strconv.Itoa(m.BurninSteps)),
			ux.Plain(strconv.Itoa(m.Dimensionality)),
			ux.Plain(formatLabels(m.Labels)),
		)
	}
	return t
}

func formatLabels(labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + labels[k]
	}
	return strings.Join(parts, ",")
}
