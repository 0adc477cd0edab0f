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

// Entry holds a key and the value reference stored under it. Entries sharing
// a bucket form a singly linked chain.
type Entry[T any] struct {
	key   string
	value *T
	next  *Entry[T]
}

// Key returns the key of the entry.
func (e *Entry[T]) Key() string {
	return e.key
}

// Value returns the value reference stored in the entry.
func (e *Entry[T]) Value() *T {
	return e.value
}

// The chain operations below take the chain head and return the (possibly
// new) head. They walk the chain iteratively and know nothing about the
// table-wide count or capacity.

// insertOrUpdate sets key to value in the chain headed by head. A new entry is
// appended at the tail if key is absent. If key is present and value is a
// different reference from the stored one, the stored value is handed to
// release (if non-nil) and replaced. Storing the same reference again is a
// noop.
func insertOrUpdate[T any](
	head *Entry[T], key string, value *T, release func(*T),
) (_ *Entry[T], inserted, updated bool) {
	if head == nil {
		return &Entry[T]{key: key, value: value}, true, false
	}
	for cur := head; ; cur = cur.next {
		if cur.key == key {
			if cur.value == value {
				return head, false, false
			}
			old := cur.value
			cur.value = value
			if release != nil {
				release(old)
			}
			return head, false, true
		}
		if cur.next == nil {
			cur.next = &Entry[T]{key: key, value: value}
			return head, true, false
		}
	}
}

// find returns the entry for key in the chain headed by head, or nil.
func find[T any](head *Entry[T], key string) *Entry[T] {
	for cur := head; cur != nil; cur = cur.next {
		if cur.key == key {
			return cur
		}
	}
	return nil
}

func exists[T any](head *Entry[T], key string) bool {
	return find(head, key) != nil
}

// removeOne splices the entry for key out of the chain headed by head,
// handing its value to release (if non-nil).
func removeOne[T any](head *Entry[T], key string, release func(*T)) (_ *Entry[T], removed bool) {
	var prev *Entry[T]
	for cur := head; cur != nil; prev, cur = cur, cur.next {
		if cur.key != key {
			continue
		}
		if prev == nil {
			head = cur.next
		} else {
			prev.next = cur.next
		}
		v := cur.value
		*cur = Entry[T]{}
		if release != nil {
			release(v)
		}
		return head, true
	}
	return head, false
}

// removeAll tears down every entry in the chain headed by head, handing each
// value to release (if non-nil), and returns the number of entries removed.
// The chain is empty afterwards.
func removeAll[T any](head *Entry[T], release func(*T)) int {
	var n int
	for cur := head; cur != nil; {
		next := cur.next
		v := cur.value
		*cur = Entry[T]{}
		if release != nil {
			release(v)
		}
		n++
		cur = next
	}
	return n
}

// merge links the detached entry e into the chain headed by head. It is only
// used while rehashing. If the chain already holds e's key the existing entry
// wins and merged is false; the caller owns e's value. Otherwise e is
// appended at the tail so that entries retain their discovery order.
func merge[T any](head, e *Entry[T]) (_ *Entry[T], merged bool) {
	e.next = nil
	if head == nil {
		return e, true
	}
	for cur := head; ; cur = cur.next {
		if cur.key == e.key {
			return head, false
		}
		if cur.next == nil {
			cur.next = e
			return head, true
		}
	}
}
