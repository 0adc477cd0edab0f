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

import (
	"github.com/cespare/xxhash/v2"
	"github.com/sirupsen/logrus"
)

// HashFunc computes the raw hash of a non-empty key. The map reduces the
// result modulo its capacity. step is the multiplier the map was created
// with; a HashFunc is free to ignore it.
type HashFunc func(key string, step uint32) uint32

// StepHash is the default HashFunc. Every byte of the key is added to the
// running value which is then multiplied by step:
//
//	h = (h + key[i]) * step
//
// Arithmetic wraps at 32 bits. StepHash is simple and fast but offers no
// protection against adversarial keys.
func StepHash(key string, step uint32) uint32 {
	var h uint32
	for i := 0; i < len(key); i++ {
		h += uint32(key[i])
		h *= step
	}
	return h
}

// XXHash is a HashFunc backed by xxHash64. It ignores step and folds the 64
// bit digest into 32 bits. It spreads keys that share long prefixes or
// suffixes much better than StepHash.
func XXHash(key string, _ uint32) uint32 {
	h := xxhash.Sum64String(key)
	return uint32(h ^ (h >> 32))
}

// capacities is the ladder of bucket counts a Map moves through as it grows.
// The values are primes (or close to it) roughly doubling at each step which
// keeps the modulo reduction of StepHash reasonably well distributed.
var capacities = [...]uint32{
	5, 13, 23, 47, 97, 193, 383, 769, 1531, 3067, 6143, 12289, 24571, 49157, 98299,
}

// nextCapacity returns the smallest entry of the capacity ladder strictly
// greater than n. Once the ladder is exhausted it falls back to 2*n and logs a
// warning.
func nextCapacity(n uint32, logger logrus.FieldLogger) uint32 {
	for _, c := range capacities {
		if c > n {
			return c
		}
	}
	logger.Warnf("chainmap: capacity %d exceeds the prime ladder, doubling instead", n)
	return 2 * n
}
