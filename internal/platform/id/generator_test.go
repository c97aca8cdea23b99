package id

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDGenerator_NewID(t *testing.T) {
	gen := NewUUIDGenerator()

	a, err := gen.NewID()
	require.NoError(t, err)
	b, err := gen.NewID()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	_, err = uuid.Parse(a)
	assert.NoError(t, err)
}

func TestUUIDGenerator_NewJoinCode(t *testing.T) {
	gen := NewUUIDGenerator()

	for range 100 {
		code, err := gen.NewJoinCode()
		require.NoError(t, err)
		require.Len(t, code, JoinCodeLength)
		for _, r := range code {
			assert.True(t, strings.ContainsRune(JoinCodeAlphabet, r), "unexpected rune %q in %s", r, code)
		}
	}
}
