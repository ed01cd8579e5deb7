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

// Package oamap is a generic hash map built on open addressing with
// tombstone deletion.
//
// # Layout
//
// A Map owns two parallel arrays of the same power-of-two length: a control
// array holding one state byte per slot (empty, deleted or full) and a slot
// array holding the key/value payloads. A payload is only meaningful when
// its control byte is full. Keeping the state out of the payload keeps the
// probe loop on a dense byte array and means there is no way to read a key
// out of an empty slot through the public API.
//
// # Probing
//
// The starting index comes from a caller supplied HashFunc, which is passed
// the current capacity and must return a value in [0, capacity). Collisions
// are resolved with triangular probing:
//
//	p(0)   = hash
//	p(k+1) = p(k) + k + 1 (mod capacity)
//
// For a power-of-two capacity the offsets (k^2+k)/2 form a bijection on
// Z/(2^m), so a probe sequence visits every slot exactly once within
// capacity steps. A lookup therefore terminates at the first empty slot or
// after a full pass, and an insertion is guaranteed to find a free slot if
// one exists.
//
// # Deletion
//
// Deleting an entry marks its slot as a tombstone. A tombstone does not stop
// a lookup, since entries inserted after it may live further along the same
// probe sequence, but it can be reused by a later insertion. Insertion
// remembers the first tombstone on the probe path and places the new entry
// there in preference to the terminating empty slot.
//
// Tombstones are only reclaimed by a rehash. To keep probe sequences bounded
// under insert/delete churn, tombstones count against the load factor just
// like live entries: the map grows when an insertion would consume an empty
// slot and (live+tombstones+1)/capacity would reach the max load factor.
// Reusing a tombstone never triggers growth. A consequence is that
// insert/delete churn over distinct keys keeps doubling the capacity even
// with a constant number of live entries.
//
// # Growth
//
// Rehash doubles the capacity, allocates fresh arrays and re-places every
// live entry through the same placement routine used by Put. Any Iterator or
// value pointer obtained before a rehash is invalidated by it, and since any
// insertion may rehash, callers must not hold on to them across insertions.
//
// A Map is NOT goroutine-safe.
package oamap

import (
	"fmt"
	"math"
	"math/bits"
	"strings"

	"github.com/cockroachdb/errors"
)

const (
	debug = false

	// defaultInitialCapacity is the number of slots allocated by New when
	// WithInitialCapacity is not supplied.
	defaultInitialCapacity = 1024
	defaultMaxLoadFactor   = 0.75

	ctrlEmpty   ctrl = 0
	ctrlDeleted ctrl = 1
	ctrlFull    ctrl = 2
)

var (
	// ErrCapacityExhausted is the panic value (wrapped as an assertion
	// failure) raised when a probe sequence visits every slot without finding
	// the key, an empty slot or a tombstone. The load factor check performed
	// before every insertion makes this unreachable unless the map's
	// bookkeeping is corrupt.
	ErrCapacityExhausted = errors.New("oamap: probe sequence exhausted without a free slot")

	// ErrInvalidLoadFactor is the panic value raised by New when the max load
	// factor is not in (0, 1].
	ErrInvalidLoadFactor = errors.New("oamap: max load factor must be in (0, 1]")
)

// ctrl is the state of a slot.
type ctrl uint8

func (c ctrl) String() string {
	switch c {
	case ctrlEmpty:
		return "empty"
	case ctrlDeleted:
		return "deleted"
	case ctrlFull:
		return "full"
	default:
		return fmt.Sprintf("ctrl(%d)", uint8(c))
	}
}

// Slot holds a key and value.
type Slot[K comparable, V any] struct {
	key   K
	value V
}

// Map is an unordered map from keys to values with Put, Find, Get, Access,
// Delete and iteration operations, implemented with open addressing. The
// hash function is supplied to New; keys are compared with == unless a
// comparator is supplied with WithEqual.
//
// A Map is NOT goroutine-safe.
type Map[K comparable, V any] struct {
	hash  HashFunc[K]
	equal func(a, b K) bool
	// ctrls and slots are capacity in length. The capacity is always a power
	// of two so that capacity-1 can be used as a mask.
	ctrls []ctrl
	slots []Slot[K, V]
	// The number of full slots (i.e. the number of elements in the map).
	used int
	// The number of tombstones.
	deleted int
	// The number of empty slots we can still fill without needing to rehash.
	// Tombstones are excluded from this count as they are only reclaimed by a
	// rehash.
	growthLeft int
	// maxLoadFactor bounds (used+deleted)/capacity.
	maxLoadFactor   float64
	initialCapacity int
	// gen is incremented whenever the slot arrays are reallocated or reset.
	// Iterators record the generation they were created in.
	gen uint32
}

// New constructs a new Map using the specified hash function. By default the
// map starts with 1024 slots and a max load factor of 0.75. New panics if the
// hash function is nil or the max load factor is not in (0, 1].
func New[K comparable, V any](hash HashFunc[K], options ...option[K, V]) *Map[K, V] {
	m := &Map[K, V]{
		hash:            hash,
		maxLoadFactor:   defaultMaxLoadFactor,
		initialCapacity: defaultInitialCapacity,
	}

	for _, op := range options {
		op.apply(m)
	}

	if m.hash == nil {
		panic(errors.New("oamap: nil hash function"))
	}
	// NB: written as a negation so that NaN is rejected.
	if !(m.maxLoadFactor > 0 && m.maxLoadFactor <= 1) {
		panic(errors.Wrapf(ErrInvalidLoadFactor, "max load factor %v", m.maxLoadFactor))
	}
	if m.equal == nil {
		m.equal = func(a, b K) bool {
			return a == b
		}
	}

	capacity := uintptr(1)
	if m.initialCapacity > 1 {
		capacity = uintptr(1) << bits.Len(uint(m.initialCapacity-1))
	}
	m.resize(capacity)
	return m
}

// Put inserts an entry into the map, overwriting the value of an existing
// entry with the same key. It returns an Iterator positioned at the entry.
// Put may rehash the map, invalidating previously obtained iterators.
func (m *Map[K, V]) Put(key K, value V) Iterator[K, V] {
	i := m.put(key)
	m.slots[i].value = value
	m.checkInvariants()
	return Iterator[K, V]{m: m, i: i, gen: m.gen}
}

// Find returns an Iterator positioned at the entry for key, or End() if the
// key is not present.
func (m *Map[K, V]) Find(key K) Iterator[K, V] {
	if i, ok := m.find(key); ok {
		return Iterator[K, V]{m: m, i: i, gen: m.gen}
	}
	return m.End()
}

// Get retrieves the value from the map for the specified key, returning
// ok=false if the key is not present.
func (m *Map[K, V]) Get(key K) (value V, ok bool) {
	i, ok := m.find(key)
	if !ok {
		return value, false
	}
	return m.slots[i].value, true
}

// Access returns a pointer to the value for key, first inserting an entry
// with the zero value if the key is not present. The pointer is invalidated
// by any subsequent operation that rehashes the map.
func (m *Map[K, V]) Access(key K) *V {
	i, ok := m.find(key)
	if !ok {
		i = m.put(key)
		m.checkInvariants()
	}
	return &m.slots[i].value
}

// Delete deletes the entry corresponding to the specified key from the map,
// returning whether an entry was removed.
func (m *Map[K, V]) Delete(key K) bool {
	i, ok := m.find(key)
	if !ok {
		if debug {
			fmt.Printf("delete(%v): not found\n", key)
		}
		return false
	}

	// The slot becomes a tombstone. Its payload is zeroed so that the map
	// does not keep the old key and value reachable.
	m.slots[i] = Slot[K, V]{}
	m.ctrls[i] = ctrlDeleted
	m.used--
	m.deleted++
	if debug {
		fmt.Printf("delete(%v): index=%d used=%d deleted=%d\n", key, i, m.used, m.deleted)
	}
	m.checkInvariants()
	return true
}

// Rehash doubles the capacity of the map, dropping all tombstones. It is
// invoked automatically by Put and Access when required by the max load
// factor.
//
// Since tombstones count against the load factor and are only reclaimed by
// growth, a workload that repeatedly deletes and inserts distinct keys grows
// the capacity without bound even when the number of live entries stays
// constant. Such callers should periodically copy the live entries into a
// fresh Map, or Clear and refill it.
func (m *Map[K, V]) Rehash() {
	m.resize(2 * m.capacity())
}

// rehashInPlace rebuilds the table at its current capacity, dropping all
// tombstones. The live entries always fit since used <= maxGrowth.
func (m *Map[K, V]) rehashInPlace() {
	m.resize(m.capacity())
}

// Clear deletes all entries from the map, resetting every slot to empty
// while retaining the current capacity.
func (m *Map[K, V]) Clear() {
	clear(m.ctrls)
	clear(m.slots)
	m.used = 0
	m.deleted = 0
	m.growthLeft = m.maxGrowth(m.capacity())
	m.gen++
	m.checkInvariants()
}

// All calls yield sequentially for each key and value present in the map. If
// yield returns false, iteration stops. The map can be mutated during
// iteration, though there is no guarantee that the mutations will be visible
// to the iteration.
func (m *Map[K, V]) All(yield func(key K, value V) bool) {
	// Snapshot the controls and slots so that iteration remains valid if the
	// map is rehashed during iteration.
	ctrls, slots := m.ctrls, m.slots
	for i := range ctrls {
		if ctrls[i] != ctrlFull {
			continue
		}
		if !yield(slots[i].key, slots[i].value) {
			return
		}
	}
}

// Len returns the number of entries in the map.
func (m *Map[K, V]) Len() int {
	return m.used
}

// capacity returns the number of slots in the map.
func (m *Map[K, V]) capacity() uintptr {
	return uintptr(len(m.ctrls))
}

// tombstones returns the number of deleted slots awaiting a rehash.
func (m *Map[K, V]) tombstones() int {
	return m.deleted
}

// maxGrowth returns the largest number of full and deleted slots a table of
// the given capacity may hold, i.e. the largest n with n/capacity <
// maxLoadFactor.
func (m *Map[K, V]) maxGrowth(capacity uintptr) int {
	return int(math.Ceil(m.maxLoadFactor*float64(capacity))) - 1
}

// find walks the probe sequence for key, returning the index of its slot.
func (m *Map[K, V]) find(key K) (uintptr, bool) {
	capacity := m.capacity()
	seq := makeProbeSeq(m.hash(key, capacity), capacity-1)
	if debug {
		fmt.Printf("find(%v): %s\n", key, seq)
	}

	// An empty slot terminates the search: had key been inserted it would
	// have been placed no later than this slot. Tombstones are skipped.
	for n := uintptr(0); n < capacity; n, seq = n+1, seq.next() {
		switch m.ctrls[seq.offset] {
		case ctrlEmpty:
			return 0, false
		case ctrlFull:
			if m.equal(m.slots[seq.offset].key, key) {
				return seq.offset, true
			}
		}
	}
	return 0, false
}

// put returns the index of the slot holding key, inserting key with a zero
// value if it is not already present. The map is grown first if the
// insertion would consume an empty slot beyond the load factor.
func (m *Map[K, V]) put(key K) uintptr {
	i, found := m.findInsertSlot(key)
	if found {
		if debug {
			fmt.Printf("put(%v): updating index=%d\n", key, i)
		}
		return i
	}

	if m.ctrls[i] == ctrlEmpty && m.growthLeft == 0 {
		for m.growthLeft == 0 {
			m.resize(2 * m.capacity())
		}
		// The freshly allocated table contains no tombstones, so this lands
		// on an empty slot.
		i, _ = m.findInsertSlot(key)
	}
	m.insertAt(i, key)
	if debug {
		fmt.Printf("put(%v): inserting index=%d used=%d growth-left=%d\n",
			key, i, m.used, m.growthLeft)
	}
	return i
}

// findInsertSlot walks the probe sequence for key. If key is present its
// index is returned with found=true. Otherwise the returned index is where
// key should be placed: the first tombstone on the probe path if there is
// one, else the empty slot that terminated the walk.
func (m *Map[K, V]) findInsertSlot(key K) (i uintptr, found bool) {
	capacity := m.capacity()
	seq := makeProbeSeq(m.hash(key, capacity), capacity-1)

	var firstDeleted uintptr
	var haveDeleted bool
	for n := uintptr(0); n < capacity; n, seq = n+1, seq.next() {
		switch m.ctrls[seq.offset] {
		case ctrlEmpty:
			if haveDeleted {
				return firstDeleted, false
			}
			return seq.offset, false
		case ctrlDeleted:
			if !haveDeleted {
				firstDeleted, haveDeleted = seq.offset, true
			}
		default:
			if m.equal(m.slots[seq.offset].key, key) {
				return seq.offset, true
			}
		}
	}

	if haveDeleted {
		return firstDeleted, false
	}
	panic(errors.WithAssertionFailure(errors.Wrapf(ErrCapacityExhausted,
		"capacity=%d used=%d deleted=%d", capacity, m.used, m.deleted)))
}

// insertAt stores key with a zero value in the empty or deleted slot i.
func (m *Map[K, V]) insertAt(i uintptr, key K) {
	if m.ctrls[i] == ctrlEmpty {
		m.growthLeft--
	} else {
		m.deleted--
	}
	m.ctrls[i] = ctrlFull
	m.slots[i] = Slot[K, V]{key: key}
	m.used++
}

// resize allocates fresh arrays of the given capacity and re-places every
// live entry into them, discarding the old arrays and all tombstones.
func (m *Map[K, V]) resize(newCapacity uintptr) {
	oldCtrls, oldSlots := m.ctrls, m.slots
	m.ctrls = make([]ctrl, newCapacity)
	m.slots = make([]Slot[K, V], newCapacity)
	m.used = 0
	m.deleted = 0
	m.growthLeft = m.maxGrowth(newCapacity)
	m.gen++

	if debug {
		fmt.Printf("resize: capacity=%d->%d  growth-left=%d\n",
			len(oldCtrls), newCapacity, m.growthLeft)
	}

	for i := range oldCtrls {
		if oldCtrls[i] != ctrlFull {
			continue
		}
		s := &oldSlots[i]
		j, found := m.findInsertSlot(s.key)
		if !found {
			m.insertAt(j, s.key)
		}
		m.slots[j].value = s.value
	}

	m.checkInvariants()
}

func (m *Map[K, V]) checkInvariants() {
	if invariants {
		capacity := m.capacity()
		if capacity == 0 || capacity&(capacity-1) != 0 {
			panic(fmt.Sprintf("invariant failed: capacity %d is not a power of two", capacity))
		}
		if uintptr(len(m.slots)) != capacity {
			panic(fmt.Sprintf("invariant failed: %d slots, but %d ctrls", len(m.slots), capacity))
		}

		// For every full slot, verify find locates the key at that slot,
		// which also proves each key occupies a single slot. Count the number
		// of used and deleted slots.
		var used int
		var deleted int
		for i := uintptr(0); i < capacity; i++ {
			switch c := m.ctrls[i]; c {
			case ctrlEmpty:
			case ctrlDeleted:
				deleted++
			case ctrlFull:
				s := &m.slots[i]
				if j, ok := m.find(s.key); !ok || j != i {
					panic(fmt.Sprintf("invariant failed: slot(%d): %v found=%t at %d [h=%d]\n%s",
						i, s.key, ok, j, m.hash(s.key, capacity), m.debugString()))
				}
				used++
			default:
				panic(fmt.Sprintf("invariant failed: ctrl(%d): unexpected %s", i, c))
			}
		}

		if used != m.used {
			panic(fmt.Sprintf("invariant failed: found %d used slots, but used count is %d\n%s",
				used, m.used, m.debugString()))
		}
		if deleted != m.deleted {
			panic(fmt.Sprintf("invariant failed: found %d deleted slots, but deleted count is %d\n%s",
				deleted, m.deleted, m.debugString()))
		}

		growthLeft := m.maxGrowth(capacity) - used - deleted
		if growthLeft != m.growthLeft {
			panic(fmt.Sprintf("invariant failed: found %d growthLeft, but expected %d\n%s",
				m.growthLeft, growthLeft, m.debugString()))
		}
		if growthLeft < 0 {
			panic(fmt.Sprintf("invariant failed: load %d/%d exceeds max load factor %v",
				used+deleted, capacity, m.maxLoadFactor))
		}
	}
}

func (m *Map[K, V]) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "capacity=%d  used=%d  deleted=%d  growth-left=%d\n",
		m.capacity(), m.used, m.deleted, m.growthLeft)
	for i := range m.ctrls {
		switch c := m.ctrls[i]; c {
		case ctrlFull:
			s := &m.slots[i]
			fmt.Fprintf(&buf, "  %4d: %v [h=%d]\n", i, s.key, m.hash(s.key, m.capacity()))
		default:
			fmt.Fprintf(&buf, "  %4d: %s\n", i, c)
		}
	}
	return buf.String()
}

// probeSeq maintains the state for a probe sequence. The sequence is a
// triangular progression of the form
//
//	p(i) := (i^2 + i)/2 + hash (mod mask+1)
//
// which visits every slot exactly once within mask+1 steps when mask+1 is a
// power of two, since (i^2+i)/2 is a bijection in Z/(2^m). See
// https://en.wikipedia.org/wiki/Quadratic_probing. A probeSeq is a value;
// each search makes its own with makeProbeSeq.
type probeSeq struct {
	mask   uintptr
	offset uintptr
	index  uintptr
}

func makeProbeSeq(hash, mask uintptr) probeSeq {
	return probeSeq{
		mask:   mask,
		offset: hash & mask,
		index:  0,
	}
}

func (s probeSeq) next() probeSeq {
	s.index++
	s.offset = (s.offset + s.index) & s.mask
	return s
}

func (s probeSeq) String() string {
	return fmt.Sprintf("mask=%d offset=%d index=%d", s.mask, s.offset, s.index)
}
