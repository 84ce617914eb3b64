package dbutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFinalizeRebindsPlaceholders(t *testing.T) {
	query, args := Finalize("SELECT id FROM documents WHERE state = ? AND topic = ?", []interface{}{1, "acids"})
	require.Equal(t, "SELECT id FROM documents WHERE state = $1 AND topic = $2", query)
	require.Equal(t, []interface{}{1, "acids"}, args)
}

func TestFinalizeRewritesLimitOffset(t *testing.T) {
	query, args := Finalize("SELECT id FROM quizzes WHERE course_code = ? LIMIT ?, ?", []interface{}{"CHEM101", 20, 10})
	require.Equal(t, "SELECT id FROM quizzes WHERE course_code = $1 LIMIT $2 OFFSET $3", query)
	require.Equal(t, []interface{}{"CHEM101", 10, 20}, args)
}
