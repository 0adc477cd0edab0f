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


package chainmap

import "github.com/sirupsen/logrus"

// option provide an interface to do work on Map while it is being created.
type option[T any] interface {
	apply(m *Map[T])
}

type hashOption[T any] struct {
	hash HashFunc
}

func (op hashOption[T]) apply(m *Map[T]) {
	m.hash = op.hash
}

// WithHash is an option to specify the hash function to use for a Map[T]. The
// default is StepHash.
func WithHash[T any](hash HashFunc) option[T] {
	return hashOption[T]{hash}
}

// Allocator specifies an interface for allocating and releasing the bucket
// arrays used by a Map. The default allocator utilizes Go's builtin make()
// and allows the GC to reclaim memory.
//
// An allocator that cannot satisfy a request must return a slice shorter than
// n (typically nil). The Map treats this as a fatal condition.
type Allocator[T any] interface {
	// AllocBuckets should return a slice equivalent to make([]*Entry[T], n).
	AllocBuckets(n int) []*Entry[T]

	// FreeBuckets can optionally release the memory associated with the
	// supplied slice that is guaranteed to have been allocated by
	// AllocBuckets. All of the chain heads have been cleared by the time
	// FreeBuckets is called.
	FreeBuckets(v []*Entry[T])
}

type defaultAllocator[T any] struct{}

func (defaultAllocator[T]) AllocBuckets(n int) []*Entry[T] {
	return make([]*Entry[T], n)
}

func (defaultAllocator[T]) FreeBuckets(v []*Entry[T]) {
}

type allocatorOption[T any] struct {
	allocator Allocator[T]
}

func (op allocatorOption[T]) apply(m *Map[T]) {
	m.allocator = op.allocator
}

// WithAllocator is an option for specify the Allocator to use for a Map[T].
func WithAllocator[T any](allocator Allocator[T]) option[T] {
	return allocatorOption[T]{allocator}
}

type releaseOption[T any] struct {
	release func(*T)
}

func (op releaseOption[T]) apply(m *Map[T]) {
	m.release = op.release
}

// WithRelease is an option to specify the default release function for
// values owned by a Map[T]. It is invoked exactly once for a value that is
// overwritten by a different value or removed by Unset, and by Clear and
// Close when they are not given a release function of their own. The default
// does nothing and leaves the value to the GC.
func WithRelease[T any](release func(*T)) option[T] {
	return releaseOption[T]{release}
}

type loggerOption[T any] struct {
	logger logrus.FieldLogger
}

func (op loggerOption[T]) apply(m *Map[T]) {
	m.logger = op.logger
}

// WithLogger is an option to specify where a Map[T] reports diagnostics. The
// default is logrus.StandardLogger(). Fatal conditions are reported through
// logger.Fatalf which is expected not to return.
func WithLogger[T any](logger logrus.FieldLogger) option[T] {
	return loggerOption[T]{logger}
}
