// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package workload cross-checks an oamap.Map against Go's builtin map on a
// randomized insert, erase, reinsert and lookup workload, timing each phase
// for both implementations.
package workload

import (
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/exp/rand"

	"github.com/cockroachdb/oamap"
)

// ErrMismatch is returned by Run when the two maps disagree.
var ErrMismatch = errors.New("oamap and builtin map disagree")

// Timings holds the time spent in each phase of a run.
type Timings struct {
	Insert   time.Duration
	Erase    time.Duration
	Reinsert time.Duration
	Find     time.Duration
}

// Report summarizes a run.
type Report struct {
	// Keys is the number of distinct keys generated.
	Keys int
	// Erased is the number of keys erased and then reinserted.
	Erased int
	// Mismatches is the number of keys whose lookups disagreed.
	Mismatches int
	OAMap      Timings
	Builtin    Timings
}

// Run executes the workload described by cfg.
func Run(cfg Config, logger *zap.Logger) (Report, error) {
	if err := cfg.Validate(); err != nil {
		return Report{}, err
	}

	words := NewWords(cfg.Seed)
	values := rand.New(rand.NewSource(cfg.Seed + 1))
	builtin := make(map[string]int)
	m := oamap.New[string, int](hashFuncs[cfg.Hash],
		oamap.WithMaxLoadFactor[string, int](cfg.LoadFactor))

	var rep Report
	// keys holds the distinct keys in the order they were first generated.
	keys := make([]string, 0, cfg.Count)

	for i := 0; i < cfg.Count; i++ {
		key := words.Word(cfg.MaxWordLen)
		value := values.Intn(100)
		if _, ok := builtin[key]; !ok {
			keys = append(keys, key)
		}

		start := time.Now()
		builtin[key] = value
		rep.Builtin.Insert += time.Since(start)

		start = time.Now()
		m.Put(key, value)
		rep.OAMap.Insert += time.Since(start)
	}
	rep.Keys = len(keys)
	logPhase(logger, "insert", rep.OAMap.Insert, rep.Builtin.Insert, m.Len())

	erased := keys[:min(len(keys), int(float64(cfg.Count)*cfg.EraseFraction))]
	rep.Erased = len(erased)
	for _, key := range erased {
		start := time.Now()
		delete(builtin, key)
		rep.Builtin.Erase += time.Since(start)

		start = time.Now()
		ok := m.Delete(key)
		rep.OAMap.Erase += time.Since(start)
		if !ok {
			logger.Debug("erase missed", zap.String("key", key))
			rep.Mismatches++
		}
	}
	logPhase(logger, "erase", rep.OAMap.Erase, rep.Builtin.Erase, m.Len())

	for _, key := range erased {
		value := values.Intn(100)

		start := time.Now()
		builtin[key] = value
		rep.Builtin.Reinsert += time.Since(start)

		start = time.Now()
		*m.Access(key) = value
		rep.OAMap.Reinsert += time.Since(start)
	}
	logPhase(logger, "reinsert", rep.OAMap.Reinsert, rep.Builtin.Reinsert, m.Len())

	for _, key := range keys {
		start := time.Now()
		want, wantOK := builtin[key]
		rep.Builtin.Find += time.Since(start)

		start = time.Now()
		got, gotOK := m.Get(key)
		rep.OAMap.Find += time.Since(start)

		if got != want || gotOK != wantOK {
			rep.Mismatches++
			logger.Debug("lookup mismatch",
				zap.String("key", key),
				zap.Int("builtin", want),
				zap.Int("oamap", got),
				zap.Bool("found", gotOK))
		}
	}
	logPhase(logger, "find", rep.OAMap.Find, rep.Builtin.Find, m.Len())

	if m.Len() != len(builtin) {
		logger.Debug("length mismatch", zap.Int("builtin", len(builtin)), zap.Int("oamap", m.Len()))
		rep.Mismatches++
	}
	if rep.Mismatches > 0 {
		return rep, errors.Wrapf(ErrMismatch, "%d mismatches over %d keys", rep.Mismatches, rep.Keys)
	}
	return rep, nil
}

func logPhase(logger *zap.Logger, phase string, oa, builtin time.Duration, n int) {
	logger.Info("phase complete",
		zap.String("phase", phase),
		zap.Duration("oamap", oa),
		zap.Duration("builtin", builtin),
		zap.Int("len", n))
}
