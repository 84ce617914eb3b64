package retrieval

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExpandQuery(t *testing.T) {
	require.Equal(t, []string{"acid base", "acid base chemistry concepts principles examples"},
		ExpandQuery("acid base", "chemistry", "CHEM101"))
	require.Equal(t, []string{"acid base", "acid base concepts principles examples"},
		ExpandQuery(" acid base ", "", ""))
	require.Nil(t, ExpandQuery("   ", "chemistry", ""))
	require.Equal(t, ExpandQuery("q", "t", "c"), ExpandQuery("q", "t", "CHEM101"))
}
