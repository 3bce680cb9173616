// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package chainstore persists sampling runs in BadgerDB.
//
// # Key layout
//
//	run:meta:<id>    JSON Metadata
//	run:chains:<id>  JSON []chainRecord
//
// Listing reads only the metadata keys.
package chainstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/AleutianAI/hypothesis/services/inference/mcmc"
	"github.com/AleutianAI/hypothesis/services/inference/storage/badger"
)

const (
	metaPrefix   = "run:meta:"
	chainsPrefix = "run:chains:"
)

var (
	// ErrNotFound indicates an unknown run id.
	ErrNotFound = errors.New("run not found")

	// ErrNilChains indicates Save was called without chains.
	ErrNilChains = errors.New("chains are nil")
)

// Metadata describes a stored run.
type Metadata struct {
	ID             string            `json:"id"`
	Method         string            `json:"method"`
	CreatedAt      time.Time         `json:"created_at"`
	Chains         int               `json:"chains"`
	Samples        int               `json:"samples"`
	BurninSteps    int               `json:"burnin_steps"`
	Dimensionality int               `json:"dimensionality"`
	Seed           uint64            `json:"seed,omitempty"`
	Labels         map[string]string `json:"labels,omitempty"`
}

// Run is a loaded run.
type Run struct {
	Metadata Metadata
	Chains   *mcmc.Chains
}

type chainRecord struct {
	Thetas              [][]float64 `json:"thetas"`
	Probabilities       []float64   `json:"probabilities"`
	BurninThetas        [][]float64 `json:"burnin_thetas,omitempty"`
	BurninProbabilities []float64   `json:"burnin_probabilities,omitempty"`
}

// Store saves and loads runs.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

// New wraps an open database. A nil logger selects slog.Default().
func New(db *badger.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger.With(slog.String("component", "chainstore"))}
}

// Save stores chains under meta.ID, or a new run id when it is empty.
//
// Description:
//
//	meta.CreatedAt is set and Chains, Samples, BurninSteps and
//	Dimensionality are derived from chains. Metadata and chains are
//	written in one transaction.
//
// Outputs:
//   - Metadata: The stored metadata, including the new id.
//   - error: ErrNilChains, an encoding error, or a database error.
func (s *Store) Save(ctx context.Context, meta Metadata, chains *mcmc.Chains) (Metadata, error) {
	if chains == nil {
		return Metadata{}, ErrNilChains
	}

	if meta.ID == "" {
		meta.ID = uuid.NewString()
	}
	meta.CreatedAt = time.Now().UTC()
	meta.Chains = chains.Size()
	meta.Samples = chains.ChainSize()
	meta.Dimensionality = chains.Dimensionality()
	meta.BurninSteps = chains.Chain(0).Iterations(true)

	records := make([]chainRecord, chains.Size())
	for i, c := range chains.All() {
		records[i] = chainRecord{Thetas: c.Thetas(), Probabilities: c.Probabilities()}
		if b := c.Burnin(); b != nil {
			records[i].BurninThetas = b.Thetas()
			records[i].BurninProbabilities = b.Probabilities()
		}
	}

	metaData, err := json.Marshal(meta)
	if err != nil {
		return Metadata{}, fmt.Errorf("encode metadata: %w", err)
	}
	chainData, err := json.Marshal(records)
	if err != nil {
		return Metadata{}, fmt.Errorf("encode chains: %w", err)
	}

	err = s.db.Update(ctx, func(txn *dgbadger.Txn) error {
		if err := txn.Set(metaKey(meta.ID), metaData); err != nil {
			return err
		}
		return txn.Set(chainsKey(meta.ID), chainData)
	})
	if err != nil {
		return Metadata{}, fmt.Errorf("save run %s: %w", meta.ID, err)
	}

	s.logger.Info("run saved",
		slog.String("run_id", meta.ID),
		slog.String("method", meta.Method),
		slog.Int("chains", meta.Chains),
		slog.Int("bytes", len(chainData)),
	)
	return meta, nil
}

// Load reads a run.
func (s *Store) Load(ctx context.Context, id string) (*Run, error) {
	var meta Metadata
	var records []chainRecord
	err := s.db.View(ctx, func(txn *dgbadger.Txn) error {
		if err := getJSON(txn, metaKey(id), &meta); err != nil {
			return err
		}
		return getJSON(txn, chainsKey(id), &records)
	})
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", id, err)
	}

	chains := make([]*mcmc.Chain, len(records))
	for i, r := range records {
		c, err := mcmc.NewChain(r.Thetas, r.Probabilities, mcmc.WithBurnin(r.BurninThetas, r.BurninProbabilities))
		if err != nil {
			return nil, fmt.Errorf("load run %s: chain %d: %w", id, i, err)
		}
		chains[i] = c
	}
	all, err := mcmc.NewChains(chains...)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", id, err)
	}
	return &Run{Metadata: meta, Chains: all}, nil
}

// List returns metadata for every stored run, newest first.
func (s *Store) List(ctx context.Context) ([]Metadata, error) {
	var out []Metadata
	prefix := []byte(metaPrefix)
	err := s.db.View(ctx, func(txn *dgbadger.Txn) error {
		it := txn.NewIterator(dgbadger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var meta Metadata
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &meta)
			})
			if err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			out = append(out, meta)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Delete removes a run.
func (s *Store) Delete(ctx context.Context, id string) error {
	err := s.db.Update(ctx, func(txn *dgbadger.Txn) error {
		if _, err := txn.Get(metaKey(id)); err != nil {
			if errors.Is(err, dgbadger.ErrKeyNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := txn.Delete(metaKey(id)); err != nil {
			return err
		}
		return txn.Delete(chainsKey(id))
	})
	if err != nil {
		return fmt.Errorf("delete run %s: %w", id, err)
	}
	s.logger.Info("run deleted", slog.String("run_id", id))
	return nil
}

func getJSON(txn *dgbadger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if errors.Is(err, dgbadger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func metaKey(id string) []byte   { return []byte(metaPrefix + id) }
func chainsKey(id string) []byte { return []byte(chainsPrefix + id) }
