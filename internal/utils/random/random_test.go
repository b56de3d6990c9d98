package random

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecureToken(t *testing.T) {
	a, err := SecureToken(32)
	require.NoError(t, err)
	b, err := SecureToken(32)
	require.NoError(t, err)

	assert.Len(t, a, 43)
	assert.NotEqual(t, a, b)
	assert.NotContains(t, a, "=")
}
