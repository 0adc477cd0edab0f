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


// Package chainmap is a hash table mapping string keys to value references,
// using separate chaining to resolve collisions.
//
// # Layout
//
// A Map is an array of buckets. Each bucket holds the head of a singly linked
// chain of entries whose keys hash to that bucket. Keys within one chain are
// distinct. The bucket for a key is hash(key, step) % capacity where step is
// the multiplier supplied to New and hash defaults to StepHash. The empty key
// always maps to bucket 0 and can never be stored.
//
// # Growth
//
// The capacity is always drawn from a fixed ladder of primes (5, 13, 23, 47,
// ..., 98299) and doubles once the ladder is exhausted. After an insertion
// pushes count/capacity above the configured load factor, the Map rehashes
// into the next capacity on the ladder. Rehashing is a single synchronous
// pass over every entry: the Set that crosses the threshold pays for it.
// Entries keep their relative discovery order inside a destination bucket.
// Shrinking is not supported.
//
// # Ownership
//
// The Map owns each stored value reference until it is overwritten by a
// different reference, removed, cleared or the Map is closed. At that point
// the reference is handed exactly once to a release function: the default
// release configured with WithRelease, or the function passed to Clear or
// Close. Storing the same reference twice under a key is a noop and does not
// release anything.
//
// # Errors
//
// Using the empty key with Set or Get is reported: a warning is logged and
// ErrEmptyKey or a miss is returned, leaving the Map unchanged. Failing to
// allocate a bucket array and asking Rehash to shrink the Map are fatal: the
// condition is logged with Fatalf and the process exits.
package chainmap

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Version is reported in the header written by Map.Dump.
const Version = "1.0.0"

// ErrEmptyKey is returned by Set when called with the empty key.
var ErrEmptyKey = errors.New("chainmap: empty key")

// FormatFunc renders a key and its value to w. It is used by Map.Dump and
// Map.Print.
type FormatFunc[T any] func(w io.Writer, key string, value *T)

// Map is a hash table from string keys to *T value references with Set, Get,
// Unset, IsSet, Clear and All operations.
//
// A Map is NOT goroutine-safe. Callers needing concurrent access must
// serialize all operations, including iteration, behind a single lock.
type Map[T any] struct {
	// The hash function applied to keys. Defaults to StepHash.
	hash HashFunc
	// step is the multiplier passed to hash.
	step uint32
	// The allocator to use for the bucket arrays.
	allocator Allocator[T]
	// release is the default release function for values that are
	// overwritten or removed. May be nil.
	release func(*T)
	logger  logrus.FieldLogger
	// buckets is capacity in length. buckets[i] is the head of the chain of
	// entries whose keys hash to i.
	buckets  []*Entry[T]
	capacity uint32
	// The number of entries across all chains.
	count int
	// A rehash is triggered when count/capacity exceeds loadFactor after an
	// insertion.
	loadFactor float64
}

// New constructs a new Map. The initial capacity is the smallest value on the
// capacity ladder strictly greater than sizeHint. loadFactor is the
// count/capacity ratio above which the Map grows and hashStep is the
// multiplier handed to the hash function.
func New[T any](sizeHint uint32, loadFactor float64, hashStep uint32, options ...option[T]) *Map[T] {
	m := &Map[T]{
		hash:       StepHash,
		step:       hashStep,
		allocator:  defaultAllocator[T]{},
		logger:     logrus.StandardLogger(),
		loadFactor: loadFactor,
	}

	for _, op := range options {
		op.apply(m)
	}

	m.capacity = nextCapacity(sizeHint, m.logger)
	m.buckets = m.allocBuckets(m.capacity)
	m.logger.Debugf("chainmap: created capacity=%d load-factor=%f step=%d",
		m.capacity, m.loadFactor, m.step)

	m.checkInvariants()
	return m
}

// Set stores value under key. If key already holds a different reference the
// old one is handed to the default release function. Setting the reference
// that is already stored is a noop. Set returns ErrEmptyKey, and leaves the
// map untouched, if key is empty.
func (m *Map[T]) Set(key string, value *T) error {
	if key == "" {
		m.logger.Warn("chainmap: set called with an empty key")
		return ErrEmptyKey
	}

	i := m.bucketIndex(key)
	var inserted, updated bool
	m.buckets[i], inserted, updated = insertOrUpdate(m.buckets[i], key, value, m.release)
	switch {
	case inserted:
		m.count++
		m.logger.Debugf("chainmap: entry added: %q", key)
		if m.Load() > m.loadFactor {
			m.Rehash(nextCapacity(m.capacity, m.logger))
		}
	case updated:
		m.logger.Debugf("chainmap: entry updated: %q", key)
	}

	m.checkInvariants()
	return nil
}

// Get retrieves the value reference stored under key, returning ok=false if
// the key is not present. The Map retains ownership of the value. Get with an
// empty key logs a warning and reports a miss.
func (m *Map[T]) Get(key string) (value *T, ok bool) {
	if key == "" {
		m.logger.Warn("chainmap: get called with an empty key")
		return nil, false
	}
	e := find(m.buckets[m.bucketIndex(key)], key)
	if e == nil {
		return nil, false
	}
	return e.value, true
}

// Unset removes the entry for key, handing its value to the default release
// function, and reports whether an entry was removed. It is a noop to unset a
// non-existent key.
//
// Unlike Set and Get, Unset does not warn about an empty key: no entry can
// have the empty key so the call simply removes nothing.
func (m *Map[T]) Unset(key string) bool {
	i := m.bucketIndex(key)
	var removed bool
	m.buckets[i], removed = removeOne(m.buckets[i], key, m.release)
	if removed {
		m.count--
		m.logger.Debugf("chainmap: entry removed: %q", key)
	}
	m.checkInvariants()
	return removed
}

// IsSet reports whether key is present in the map.
func (m *Map[T]) IsSet(key string) bool {
	return exists(m.buckets[m.bucketIndex(key)], key)
}

// Clear removes every entry from the map, handing each value to release. If
// release is nil the default release function is used. The capacity of the
// map is retained.
func (m *Map[T]) Clear(release func(*T)) {
	if release == nil {
		release = m.release
	}
	for i := range m.buckets {
		m.count -= removeAll(m.buckets[i], release)
		m.buckets[i] = nil
	}
	m.logger.Debug("chainmap: cleared")
	m.checkInvariants()
}

// Close clears the map using release (see Clear) and returns the bucket array
// to the configured allocator. It is invalid to use a Map after it has been
// closed, though Close itself is idempotent.
func (m *Map[T]) Close(release func(*T)) {
	if m.buckets == nil {
		return
	}
	m.Clear(release)
	m.allocator.FreeBuckets(m.buckets)
	m.buckets = nil
	m.capacity = 0
	m.allocator = nil
	m.logger.Debug("chainmap: closed")
}

// Rehash redistributes every entry into a new bucket array of newCapacity
// buckets. It is called by Set when the load factor is exceeded and may be
// called directly to grow the map ahead of time. Rehashing into a smaller
// capacity is fatal.
func (m *Map[T]) Rehash(newCapacity uint32) {
	if newCapacity < m.capacity {
		m.fatalf("chainmap: cannot rehash capacity %d into smaller capacity %d",
			m.capacity, newCapacity)
	}
	m.logger.Debugf("chainmap: rehashing capacity=%d->%d count=%d",
		m.capacity, newCapacity, m.count)

	oldBuckets := m.buckets
	m.buckets = m.allocBuckets(newCapacity)
	m.capacity = newCapacity

	for i, head := range oldBuckets {
		oldBuckets[i] = nil
		for e := head; e != nil; {
			next := e.next
			j := m.bucketIndex(e.key)
			var merged bool
			m.buckets[j], merged = merge(m.buckets[j], e)
			if !merged {
				// Two chains held the same key. Keep the entry seen first.
				m.logger.Warnf("chainmap: discarding duplicate key %q while rehashing", e.key)
				m.count--
				if m.release != nil {
					m.release(e.value)
				}
				*e = Entry[T]{}
			}
			e = next
		}
	}
	m.allocator.FreeBuckets(oldBuckets)

	m.checkInvariants()
}

// All calls yield sequentially for each key and value present in the map, in
// bucket order and then chain order. If yield returns false, All stops the
// iteration. A nil yield is a noop. The map must not be mutated during
// iteration.
func (m *Map[T]) All(yield func(key string, value *T) bool) {
	if yield == nil {
		return
	}
	for _, head := range m.buckets {
		for e := head; e != nil; {
			next := e.next
			if !yield(e.key, e.value) {
				return
			}
			e = next
		}
	}
}

// Len returns the number of entries in the map.
func (m *Map[T]) Len() int {
	return m.count
}

// Capacity returns the number of buckets in the map.
func (m *Map[T]) Capacity() int {
	return int(m.capacity)
}

// Load returns the current ratio of entries to buckets.
func (m *Map[T]) Load() float64 {
	return float64(m.count) / float64(m.capacity)
}

// LoadFactor returns the load above which the map grows.
func (m *Map[T]) LoadFactor() float64 {
	return m.loadFactor
}

// Print writes format(key, value) for every entry in the map to w, in the
// order of All. Nothing is written if format is nil.
func (m *Map[T]) Print(w io.Writer, format FormatFunc[T]) error {
	if format == nil {
		return nil
	}
	var buf strings.Builder
	m.All(func(key string, value *T) bool {
		format(&buf, key, value)
		return true
	})
	if _, err := io.WriteString(w, buf.String()); err != nil {
		return errors.Wrap(err, "chainmap: print")
	}
	return nil
}

// Dump writes a diagnostic description of the map to w: the version, the
// capacity, the number of entries, the current load and the load factor,
// followed by every bucket and the entries chained from it. Each entry shows
// its key and the address of its value, followed by format(key, value) if
// format is non-nil.
func (m *Map[T]) Dump(w io.Writer, format FormatFunc[T]) error {
	var buf strings.Builder
	m.dump(&buf, format)
	if _, err := io.WriteString(w, buf.String()); err != nil {
		return errors.Wrap(err, "chainmap: dump")
	}
	return nil
}

const dumpRule = "################################################################################"

func (m *Map[T]) dump(buf *strings.Builder, format FormatFunc[T]) {
	fmt.Fprintf(buf, "\n### chainmap dump %s\n\n", dumpRule[len("### chainmap dump "):])
	fmt.Fprintf(buf, " Version: %s\n", Version)
	fmt.Fprintf(buf, " Capacity: %d\n", m.capacity)
	fmt.Fprintf(buf, " Items: %d\n", m.count)
	fmt.Fprintf(buf, " Load: %f\n", m.Load())
	fmt.Fprintf(buf, " Load factor: %f\n", m.loadFactor)
	fmt.Fprintf(buf, "\n%s\n\n", dumpRule)
	if m.count == 0 {
		buf.WriteString(" (no items)\n\n")
	}
	for i, head := range m.buckets {
		fmt.Fprintf(buf, " index %d\n", i)
		for e := head; e != nil; e = e.next {
			fmt.Fprintf(buf, "  - key: %q\tvalue: %p\t", e.key, e.value)
			if format != nil {
				format(buf, e.key, e.value)
			}
			buf.WriteString("\n")
		}
	}
	fmt.Fprintf(buf, "\n%s\n\n", dumpRule)
}

// bucketIndex returns the bucket for key. The empty key always maps to bucket
// 0 without consulting the hash function.
func (m *Map[T]) bucketIndex(key string) uint32 {
	if key == "" {
		return 0
	}
	return m.hash(key, m.step) % m.capacity
}

// allocBuckets returns n empty chain heads from the allocator. An allocator
// that cannot satisfy the request is fatal.
func (m *Map[T]) allocBuckets(n uint32) []*Entry[T] {
	b := m.allocator.AllocBuckets(int(n))
	if len(b) < int(n) {
		m.fatalf("chainmap: could not allocate %d buckets", n)
	}
	b = b[:n:n]
	clear(b)
	return b
}

// fatalf reports an unrecoverable condition. logger.Fatalf exits the process;
// the panic is only reached if the logger's exit handler returns.
func (m *Map[T]) fatalf(format string, args ...interface{}) {
	m.logger.Fatalf(format, args...)
	panic(fmt.Sprintf(format, args...))
}

func (m *Map[T]) checkInvariants() {
	if invariants {
		if len(m.buckets) != int(m.capacity) {
			panic(fmt.Sprintf("invariant failed: %d buckets, but capacity is %d\n%s",
				len(m.buckets), m.capacity, m.debugString()))
		}

		var count int
		for i, head := range m.buckets {
			seen := make(map[string]struct{})
			for e := head; e != nil; e = e.next {
				count++
				if count > m.count {
					panic(fmt.Sprintf("invariant failed: found more than %d entries (cycle?)", m.count))
				}
				if e.key == "" {
					panic(fmt.Sprintf("invariant failed: bucket(%d): empty key\n%s", i, m.debugString()))
				}
				if _, ok := seen[e.key]; ok {
					panic(fmt.Sprintf("invariant failed: bucket(%d): duplicate key %q\n%s",
						i, e.key, m.debugString()))
				}
				seen[e.key] = struct{}{}
				if j := m.bucketIndex(e.key); j != uint32(i) {
					panic(fmt.Sprintf("invariant failed: bucket(%d): key %q belongs in bucket %d\n%s",
						i, e.key, j, m.debugString()))
				}
			}
		}

		if count != m.count {
			panic(fmt.Sprintf("invariant failed: found %d entries, but count is %d\n%s",
				count, m.count, m.debugString()))
		}
	}
}

func (m *Map[T]) debugString() string {
	var buf strings.Builder
	m.dump(&buf, nil)
	return buf.String()
}
