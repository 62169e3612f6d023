// Copyright 2026 Dolthub, Inc.
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

package hash

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseError(t *testing.T) {
	assert := assert.New(t)

	assertParseError := func(s string) {
		assert.Panics(func() {
			Parse(s)
		})
	}

	assertParseError("foo")
	// too few digits
	assertParseError("0000000000000000000000000000000")
	// too many digits
	assertParseError("000000000000000000000000000000000")
	// 'w' not valid base32
	assertParseError("00000000000000000000000000000000w")
	// no prefix
	assertParseError("sha1-00000000000000000000000000000000")

	r := Parse("00000000000000000000000000000000")
	assert.NotNil(r)
	assert.True(r.IsEmpty())
}

func TestMaybeParse(t *testing.T) {
	assert := assert.New(t)

	parse := func(s string, success bool) {
		r, ok := MaybeParse(s)
		assert.Equal(success, ok, "Expected success=%t for %s", success, s)
		if ok {
			assert.Equal(s, r.String())
		} else {
			assert.Equal(emptyHash, r)
		}
	}

	parse("00000000000000000000000000000000", true)
	parse("00000000000000000000000000000001", true)
	parse("", false)
	parse("adsfasdf", false)
	parse("00000000000000000000000000000000w", false)
}

func TestOfIsStable(t *testing.T) {
	a := Of([]byte("abc"))
	b := Of([]byte("abc"))
	c := Of([]byte("abd"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.False(t, a.IsEmpty())
	assert.Len(t, a.String(), StringLen)
	assert.Equal(t, a, Parse(a.String()))
}

func TestTextRoundTrip(t *testing.T) {
	h := Of([]byte("text"))
	txt, err := h.MarshalText()
	require.NoError(t, err)

	var out Hash
	require.NoError(t, out.UnmarshalText(txt))
	assert.Equal(t, h, out)

	var empty Hash
	txt, err = empty.MarshalText()
	require.NoError(t, err)
	assert.Empty(t, txt)
	require.NoError(t, out.UnmarshalText(txt))
	assert.True(t, out.IsEmpty())

	assert.Error(t, out.UnmarshalText([]byte("nope")))
}

func TestHashSliceSort(t *testing.T) {
	rs := HashSlice{}
	for i := 1; i <= 3; i++ {
		for j := 1; j <= 3; j++ {
			h := Hash{}
			for k := 1; k <= j; k++ {
				h[k-1] = byte(i)
			}
			rs = append(rs, h)
		}
	}

	rs2 := HashSlice(make([]Hash, len(rs)))
	copy(rs2, rs)
	sort.Sort(sort.Reverse(rs2))
	assert.False(t, sort.IsSorted(rs2))

	sort.Sort(rs2)
	assert.True(t, sort.IsSorted(rs2))
	assert.Equal(t, rs, rs2)
}

func TestHashSet(t *testing.T) {
	a, b, c := Of([]byte("a")), Of([]byte("b")), Of([]byte("c"))
	hs := NewHashSet(a, b)
	assert.True(t, hs.Has(a))
	assert.False(t, hs.Has(c))
	hs.Insert(c)
	hs.Remove(a)
	assert.False(t, hs.Has(a))
	sorted := hs.Sorted()
	assert.Len(t, sorted, 2)
	assert.True(t, sort.IsSorted(sorted))
}
