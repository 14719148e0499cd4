/*
 * bundle store (bundlestore): content-addressed bundle store
 * Copyright © 2026 Mario Finelli
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package merkle

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRootEmpty(t *testing.T) {
	t.Parallel()

	want := sha256.Sum256(nil)
	assert.Equal(t, hex.EncodeToString(want[:]), Root(nil))
	assert.Equal(t, hex.EncodeToString(want[:]), Root([]Leaf{}))
}

func TestRootSingleLeaf(t *testing.T) {
	t.Parallel()

	leaf := Leaf{Path: "a.txt", Hash: repeat("a", 64)}
	expected := sha256.Sum256([]byte(leaf.Path + ":" + leaf.Hash))

	assert.Equal(t, hex.EncodeToString(expected[:]), Root([]Leaf{leaf}))
}

// TestRootThreeLeaves mirrors the literal scenario from the specification:
// three files a.txt/b.txt/c.txt, the odd leaf out is paired with itself.
func TestRootThreeLeaves(t *testing.T) {
	t.Parallel()

	a := Leaf{Path: "a.txt", Hash: repeat("a", 64)}
	b := Leaf{Path: "b.txt", Hash: repeat("b", 64)}
	c := Leaf{Path: "c.txt", Hash: repeat("c", 64)}

	la := sha256.Sum256([]byte(a.Path + ":" + a.Hash))
	lb := sha256.Sum256([]byte(b.Path + ":" + b.Hash))
	lc := sha256.Sum256([]byte(c.Path + ":" + c.Hash))

	left := sha256.Sum256(append(append([]byte{}, la[:]...), lb[:]...))
	right := sha256.Sum256(append(append([]byte{}, lc[:]...), lc[:]...))
	root := sha256.Sum256(append(append([]byte{}, left[:]...), right[:]...))

	got := Root([]Leaf{a, b, c})
	assert.Equal(t, hex.EncodeToString(root[:]), got)

	// Order of the input slice must not matter.
	gotReordered := Root([]Leaf{c, a, b})
	assert.Equal(t, got, gotReordered)
}

func TestRootInvariantUnderReordering(t *testing.T) {
	t.Parallel()

	leaves := []Leaf{
		{Path: "z/last.bin", Hash: repeat("1", 64)},
		{Path: "a/first.bin", Hash: repeat("2", 64)},
		{Path: "m/mid.bin", Hash: repeat("3", 64)},
		{Path: "b/second.bin", Hash: repeat("4", 64)},
	}

	reversed := make([]Leaf, len(leaves))
	for i, l := range leaves {
		reversed[len(leaves)-1-i] = l
	}

	assert.Equal(t, Root(leaves), Root(reversed))
}

func repeat(s string, n int) string {
	out := make([]byte, 0, n*len(s))
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}
