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
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIteratorEmpty(t *testing.T) {
	m := New[int, int](Fibonacci[int], WithInitialCapacity[int, int](8))
	require.Equal(t, m.End(), m.Begin())
	require.True(t, m.Begin().Done())
	require.Equal(t, m.End(), m.End().Next())
	require.Equal(t, m.End(), m.Find(1))
}

func TestIteratorCompleteness(t *testing.T) {
	m := New[int, int](Fibonacci[int], WithInitialCapacity[int, int](1))
	e := make(map[int]int)
	for i := 0; i < 2000; i++ {
		k := rand.Intn(1000)
		if rand.Intn(3) == 0 {
			m.Delete(k)
			delete(e, k)
		} else {
			m.Put(k, i)
			e[k] = i
		}
	}

	seen := make(map[int]int)
	for it := m.Begin(); it != m.End(); it = it.Next() {
		require.False(t, it.Done())
		require.Equal(t, ctrlFull, m.ctrls[it.i])
		_, dup := seen[it.Key()]
		require.False(t, dup, "key %d visited twice", it.Key())
		seen[it.Key()] = it.Value()
	}
	require.Equal(t, e, seen)
	require.Equal(t, m.Len(), len(seen))
}

func TestIteratorFindAndPut(t *testing.T) {
	m := New[string, int](StringFold)

	it := m.Put("a", 1)
	require.Equal(t, "a", it.Key())
	require.Equal(t, 1, it.Value())
	require.Equal(t, it, m.Find("a"))
	require.Equal(t, it, m.Begin())

	// Overwriting returns the same position.
	require.Equal(t, it, m.Put("a", 2))
	require.Equal(t, 2, it.Value())

	// Values can be updated in place.
	*m.Find("a").Ptr() = 3
	v, ok := m.Get("a")
	require.True(t, ok)
	require.Equal(t, 3, v)

	require.NotEqual(t, m.End(), m.Find("a"))
	require.Equal(t, m.End(), m.Find("b"))
}

func TestIteratorAcrossGrowth(t *testing.T) {
	m := New[int, int](Fibonacci[int], WithInitialCapacity[int, int](2))
	// Every Put that grows the map returns an iterator valid in the new
	// table.
	for i := 0; i < 100; i++ {
		it := m.Put(i, i*i)
		require.Equal(t, i, it.Key())
		require.Equal(t, i*i, it.Value())
		require.Equal(t, it, m.Find(i))
	}
}

func TestIteratorDeleteWhileIterating(t *testing.T) {
	m := New[int, int](Fibonacci[int], WithInitialCapacity[int, int](64))
	for i := 0; i < 40; i++ {
		m.Put(i, i)
	}
	// Deleting the entry at the current position and then advancing is
	// permitted as deletion never moves other entries.
	for it := m.Begin(); it != m.End(); {
		k := it.Key()
		next := it.Next()
		if k%2 == 0 {
			require.True(t, m.Delete(k))
		}
		it = next
	}
	require.Equal(t, 20, m.Len())
	m.All(func(k, v int) bool {
		require.Equal(t, 1, k%2)
		return true
	})
}

func TestIteratorInvalidatedByRehash(t *testing.T) {
	if !invariants {
		t.Skip("stale iterators are only detected with the invariants build tag")
	}
	m := New[int, int](Fibonacci[int], WithInitialCapacity[int, int](8))
	it := m.Put(1, 1)
	m.Rehash()
	require.NotEqual(t, m.Find(1), it)
	require.Panics(t, func() { it.Key() })
	require.Panics(t, func() { it.Next() })
}
