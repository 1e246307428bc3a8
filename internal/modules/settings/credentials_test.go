package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentials_SetGetClear(t *testing.T) {
	c := NewCredentials()

	_, err := c.Get("gemini")
	assert.ErrorIs(t, err, ErrMissingCredential)

	c.Set("gemini", "  secret-key-1234 ")
	key, err := c.Get("gemini")
	require.NoError(t, err)
	assert.Equal(t, "secret-key-1234", key)

	c.Set("gemini", "")
	_, err = c.Get("gemini")
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func TestCredentials_StatusIsMasked(t *testing.T) {
	c := NewCredentials()
	c.Set("gemini", "abcdefgh")

	status := c.Status()
	assert.Equal(t, "****efgh", status["gemini"])
	assert.NotContains(t, status["gemini"], "abcd")
}

func TestMask(t *testing.T) {
	assert.Equal(t, "", Mask(""))
	assert.Equal(t, "***", Mask("abc"))
	assert.Equal(t, "****", Mask("abcd"))
	assert.Equal(t, "*bcde", Mask("abcde"))
}
