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

// oamapbench runs a randomized word workload against oamap.Map and Go's
// builtin map, verifying that both agree and reporting per-phase timings.
//
//	oamapbench --count 1000000 --hash xxhash
//	oamapbench --config workload.toml -v
package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cockroachdb/oamap/internal/workload"
)

func main() {
	def := workload.DefaultConfig()

	configPath := pflag.String("config", "", "path to a TOML workload config")
	count := pflag.Int("count", def.Count, "number of random words to insert")
	maxLen := pflag.Int("max-len", def.MaxWordLen, "maximum word length")
	loadFactor := pflag.Float64("load-factor", def.LoadFactor, "max load factor of the map")
	eraseFraction := pflag.Float64("erase-fraction", def.EraseFraction, "fraction of the inserted words to erase and reinsert")
	seed := pflag.Uint64("seed", def.Seed, "random seed")
	hash := pflag.String("hash", def.Hash, "string hash: fold or xxhash")
	verbose := pflag.BoolP("verbose", "v", false, "enable debug logging")
	pflag.Parse()

	logger, err := newLogger(*verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}

	cfg := def
	if *configPath != "" {
		if cfg, err = workload.LoadConfig(*configPath); err != nil {
			fatal(logger, err)
		}
	}
	// Flags given explicitly take precedence over the config file.
	flags := pflag.CommandLine
	if flags.Changed("count") {
		cfg.Count = *count
	}
	if flags.Changed("max-len") {
		cfg.MaxWordLen = *maxLen
	}
	if flags.Changed("load-factor") {
		cfg.LoadFactor = *loadFactor
	}
	if flags.Changed("erase-fraction") {
		cfg.EraseFraction = *eraseFraction
	}
	if flags.Changed("seed") {
		cfg.Seed = *seed
	}
	if flags.Changed("hash") {
		cfg.Hash = *hash
	}

	logger.Info("starting workload",
		zap.String("count", humanize.Comma(int64(cfg.Count))),
		zap.Int("max-word-len", cfg.MaxWordLen),
		zap.Float64("load-factor", cfg.LoadFactor),
		zap.Float64("erase-fraction", cfg.EraseFraction),
		zap.Uint64("seed", cfg.Seed),
		zap.String("hash", cfg.Hash))

	rep, err := workload.Run(cfg, logger)
	if err != nil {
		fatal(logger, err)
	}

	logger.Info("workload complete",
		zap.String("keys", humanize.Comma(int64(rep.Keys))),
		zap.String("erased", humanize.Comma(int64(rep.Erased))))
	logTimings(logger, "oamap", rep.OAMap)
	logTimings(logger, "builtin", rep.Builtin)
	_ = logger.Sync()
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

func logTimings(logger *zap.Logger, impl string, t workload.Timings) {
	logger.Info("timings",
		zap.String("impl", impl),
		zap.Duration("insert", t.Insert),
		zap.Duration("erase", t.Erase),
		zap.Duration("reinsert", t.Reinsert),
		zap.Duration("find", t.Find),
		zap.Duration("total", t.Insert+t.Erase+t.Reinsert+t.Find))
}

func fatal(logger *zap.Logger, err error) {
	logger.Error("workload failed", zap.Error(err))
	_ = logger.Sync()
	os.Exit(1)
}
