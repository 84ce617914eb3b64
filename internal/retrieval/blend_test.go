package retrieval

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDedupeFirstWins(t *testing.T) {
	a := scored("a", 0.9, nil)
	b := scored("b", 0.8, nil)
	dup := scored("dup", 0.99, nil)
	dup.Chunk.Content = a.Chunk.Content
	upper := scored("upper", 0.5, nil)
	upper.Chunk.Content = "TEXT A"

	out := Dedupe([]SearchResult{a, b, dup, upper})
	require.Equal(t, []string{"a", "b", "upper"}, ids(out))
}

func TestPerQueryCap(t *testing.T) {
	require.Equal(t, 5, PerQueryCap(10, 2))
	require.Equal(t, 4, PerQueryCap(7, 2))
	require.Equal(t, 7, PerQueryCap(7, 1))
	require.Equal(t, 0, PerQueryCap(7, 0))
}

func TestBlendGroupsAndCaps(t *testing.T) {
	in := []SearchResult{
		{Chunk: chunk("q1a", "1a", nil, meta("", "")), Score: 0.4, QueryIndex: 1},
		{Chunk: chunk("q0a", "0a", nil, meta("", "")), Score: 0.2, QueryIndex: 0},
		{Chunk: chunk("q1b", "1b", nil, meta("", "")), Score: 0.9, QueryIndex: 1},
		{Chunk: chunk("q0b", "0b", nil, meta("", "")), Score: 0.7, QueryIndex: 0},
		{Chunk: chunk("q1c", "1c", nil, meta("", "")), Score: 0.6, QueryIndex: 1},
	}
	out := Blend(in, 2)
	require.Equal(t, []string{"q1b", "q1c", "q0b", "q0a"}, ids(out))

	all := Blend(in, 0)
	require.Len(t, all, 5)
}
