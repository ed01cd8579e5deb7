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

package workload

import (
	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"

	"github.com/cockroachdb/oamap"
)

// ErrInvalidConfig is returned when a Config fails validation.
var ErrInvalidConfig = errors.New("invalid workload config")

var hashFuncs = map[string]oamap.HashFunc[string]{
	"fold":   oamap.StringFold,
	"xxhash": oamap.XXHash,
}

// Config describes a workload run.
type Config struct {
	// Count is the number of random words generated and inserted. Duplicate
	// words overwrite, so the number of distinct keys may be smaller.
	Count int `toml:"count"`
	// MaxWordLen is the maximum length of a generated word.
	MaxWordLen int `toml:"max-word-len"`
	// LoadFactor is the max load factor of the map under test.
	LoadFactor float64 `toml:"load-factor"`
	// EraseFraction is the fraction of Count that is erased and then
	// reinserted with new values.
	EraseFraction float64 `toml:"erase-fraction"`
	// Seed seeds the word and value generators.
	Seed uint64 `toml:"seed"`
	// Hash names the string hash strategy: "fold" or "xxhash".
	Hash string `toml:"hash"`
}

// DefaultConfig returns the default workload configuration.
func DefaultConfig() Config {
	return Config{
		Count:         200000,
		MaxWordLen:    20,
		LoadFactor:    0.75,
		EraseFraction: 0.7,
		Seed:          1,
		Hash:          "fold",
	}
}

// LoadConfig reads a TOML file on top of DefaultConfig and validates the
// result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "loading workload config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Count <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "count must be positive, got %d", c.Count)
	}
	if c.MaxWordLen <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "max-word-len must be positive, got %d", c.MaxWordLen)
	}
	if !(c.LoadFactor > 0 && c.LoadFactor <= 1) {
		return errors.Wrapf(ErrInvalidConfig, "load-factor must be in (0, 1], got %v", c.LoadFactor)
	}
	if !(c.EraseFraction >= 0 && c.EraseFraction <= 1) {
		return errors.Wrapf(ErrInvalidConfig, "erase-fraction must be in [0, 1], got %v", c.EraseFraction)
	}
	if _, ok := hashFuncs[c.Hash]; !ok {
		return errors.Wrapf(ErrInvalidConfig, "unknown hash %q", c.Hash)
	}
	return nil
}
