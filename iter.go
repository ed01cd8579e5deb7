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

// Iterator is a forward cursor over the live entries of a Map. It is an index
// into the map's slot array rather than a pointer, and is a plain value:
// Next returns a new Iterator and leaves the receiver untouched.
//
// Two iterators compare equal with == when they refer to the same slot of the
// same map, so the canonical loop is
//
//	for it := m.Begin(); it != m.End(); it = it.Next() {
//	  fmt.Printf("%v: %v\n", it.Key(), it.Value())
//	}
//
// An Iterator is invalidated by Rehash, Clear, and any Put or Access that
// grows the map. Calling Key, Value or Ptr on End() or on an invalidated
// iterator is a programming error; the former panics with an index out of
// range and the latter panics when built with the invariants tag.
type Iterator[K comparable, V any] struct {
	m   *Map[K, V]
	i   uintptr
	gen uint32
}

// Begin returns an Iterator positioned at the first live entry of the map,
// or End() if the map is empty.
func (m *Map[K, V]) Begin() Iterator[K, V] {
	return m.iterFrom(0)
}

// End returns the past-the-end Iterator.
func (m *Map[K, V]) End() Iterator[K, V] {
	return Iterator[K, V]{m: m, i: m.capacity(), gen: m.gen}
}

// iterFrom returns an Iterator positioned at the first full slot at or after
// index i.
func (m *Map[K, V]) iterFrom(i uintptr) Iterator[K, V] {
	capacity := m.capacity()
	for i < capacity && m.ctrls[i] != ctrlFull {
		i++
	}
	if i > capacity {
		i = capacity
	}
	return Iterator[K, V]{m: m, i: i, gen: m.gen}
}

// Next returns an Iterator positioned at the next live entry, or End().
// Advancing End() yields End().
func (it Iterator[K, V]) Next() Iterator[K, V] {
	it.check()
	return it.m.iterFrom(it.i + 1)
}

// Done returns true if the iterator is positioned at End().
func (it Iterator[K, V]) Done() bool {
	return it.i >= it.m.capacity()
}

// Key returns the key of the entry at the iterator's position.
func (it Iterator[K, V]) Key() K {
	it.checkFull()
	return it.m.slots[it.i].key
}

// Value returns the value of the entry at the iterator's position.
func (it Iterator[K, V]) Value() V {
	it.checkFull()
	return it.m.slots[it.i].value
}

// Ptr returns a pointer to the value of the entry at the iterator's
// position, allowing it to be updated in place.
func (it Iterator[K, V]) Ptr() *V {
	it.checkFull()
	return &it.m.slots[it.i].value
}

func (it Iterator[K, V]) check() {
	if invariants {
		if it.gen != it.m.gen {
			panic("invariant failed: iterator used after the map was reallocated")
		}
	}
}

func (it Iterator[K, V]) checkFull() {
	it.check()
	if invariants {
		if it.i < it.m.capacity() && it.m.ctrls[it.i] != ctrlFull {
			panic("invariant failed: iterator positioned at a non-full slot")
		}
	}
}
