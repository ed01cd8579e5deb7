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

// option provide an interface to do work on Map while it is being created.
type option[K comparable, V any] interface {
	apply(m *Map[K, V])
}

type equalOption[K comparable, V any] struct {
	equal func(a, b K) bool
}

func (op equalOption[K, V]) apply(m *Map[K, V]) {
	m.equal = op.equal
}

// WithEqual is an option to specify the key comparator to use for a
// Map[K,V]. The comparator must be consistent with the hash function: keys
// that compare equal must hash to the same index for every capacity.
func WithEqual[K comparable, V any](equal func(a, b K) bool) option[K, V] {
	return equalOption[K, V]{equal}
}

type maxLoadFactorOption[K comparable, V any] struct {
	maxLoadFactor float64
}

func (op maxLoadFactorOption[K, V]) apply(m *Map[K, V]) {
	m.maxLoadFactor = op.maxLoadFactor
}

// WithMaxLoadFactor is an option to specify the fraction of slots, in
// (0,1], that may be occupied or tombstoned before the map doubles its
// capacity. The default is 0.75.
func WithMaxLoadFactor[K comparable, V any](maxLoadFactor float64) option[K, V] {
	return maxLoadFactorOption[K, V]{maxLoadFactor}
}

type initialCapacityOption[K comparable, V any] struct {
	initialCapacity int
}

func (op initialCapacityOption[K, V]) apply(m *Map[K, V]) {
	m.initialCapacity = op.initialCapacity
}

// WithInitialCapacity is an option to specify the number of slots allocated
// up front. The value is rounded up to a power of two.
func WithInitialCapacity[K comparable, V any](initialCapacity int) option[K, V] {
	return initialCapacityOption[K, V]{initialCapacity}
}
