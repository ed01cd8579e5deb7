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

import "golang.org/x/exp/rand"

// Words generates random words of ASCII letters.
type Words struct {
	rng *rand.Rand
}

// NewWords returns a generator seeded with seed. Generators with the same
// seed produce the same sequence of words.
func NewWords(seed uint64) *Words {
	return &Words{rng: rand.New(rand.NewSource(seed))}
}

// Word returns a word of between 1 and maxLen letters drawn from a-x, each
// upper-cased with probability 1/2.
func (w *Words) Word(maxLen int) string {
	b := make([]byte, w.rng.Intn(maxLen)+1)
	for i := range b {
		c := byte('a' + w.rng.Intn('z'-'a'-1))
		if w.rng.Intn(2) == 1 {
			c -= 'a' - 'A'
		}
		b[i] = c
	}
	return string(b)
}
