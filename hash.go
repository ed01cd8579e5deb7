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

package oamap

import (
	"math/bits"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/exp/constraints"
)

// HashFunc maps a key to a starting probe index in [0, capacity). The
// capacity passed in is always a power of two, but it changes as the map
// grows, so a HashFunc must be correct for every power of two and must not
// cache anything derived from a previous capacity.
type HashFunc[K any] func(key K, capacity uintptr) uintptr

const (
	// fibonacciMultiplier is 2^64 divided by the golden ratio, rounded to an
	// odd number.
	fibonacciMultiplier = 11400714819323198485

	stringFoldMultiplier = 53
)

// Fibonacci is a multiplicative hash for integer keys. The key is multiplied
// by a large odd constant and the top log2(capacity) bits of the product are
// used as the index, which spreads sequential or otherwise low-entropy keys
// across the whole table.
func Fibonacci[K constraints.Integer](key K, capacity uintptr) uintptr {
	shift := 64 - bits.TrailingZeros64(uint64(capacity))
	h := uint64(key) * fibonacciMultiplier
	// NB: when capacity == 1 the shift is 64 which yields 0.
	return uintptr(h>>shift) & (capacity - 1)
}

// Modulo hashes an integer key by reducing it modulo the capacity. It is
// only suitable for keys whose low bits are already well distributed.
func Modulo[K constraints.Integer](key K, capacity uintptr) uintptr {
	return uintptr(uint64(key)) & (capacity - 1)
}

// StringFold folds the bytes of key left to right as h = (h*53 + c) mod
// capacity. The reduction is applied at every step so the intermediate value
// never exceeds 53*capacity+255, which fits in 64 bits for any capacity the
// map can reach.
func StringFold(key string, capacity uintptr) uintptr {
	mask := uint64(capacity - 1)
	var h uint64
	for i := 0; i < len(key); i++ {
		h = (h*stringFoldMultiplier + uint64(key[i])) & mask
	}
	return uintptr(h)
}

// XXHash hashes a string key with xxHash64. It is considerably more robust
// than StringFold against adversarial or highly similar keys.
func XXHash(key string, capacity uintptr) uintptr {
	return uintptr(xxhash.Sum64String(key)) & (capacity - 1)
}
