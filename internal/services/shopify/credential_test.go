package shopify

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reverseDecrypter struct{}

func (reverseDecrypter) Decrypt(s string) (string, error) {
	if strings.HasPrefix(s, "!") {
		return "", errors.New("bad ciphertext")
	}
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r), nil
}

func TestCredential_Resolve(t *testing.T) {
	tok, err := PlainCredential("shpat_1").Resolve(nil)
	require.NoError(t, err)
	assert.Equal(t, "shpat_1", tok)

	tok, err = EncryptedCredential("1_taphs").Resolve(reverseDecrypter{})
	require.NoError(t, err)
	assert.Equal(t, "shpat_1", tok)

	_, err = EncryptedCredential("!garbage").Resolve(reverseDecrypter{})
	assert.ErrorIs(t, err, ErrCredentialDecrypt)

	_, err = EncryptedCredential("1_taphs").Resolve(nil)
	assert.ErrorIs(t, err, ErrCredentialDecrypt)

	_, err = PlainCredential("").Resolve(nil)
	assert.ErrorIs(t, err, ErrMissingCredential)

	_, err = Credential{}.Resolve(reverseDecrypter{})
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func TestCredential_PlainNeverDecrypts(t *testing.T) {
	// A plain token that happens to look like garbage is used as-is.
	tok, err := PlainCredential("!not-encrypted").Resolve(reverseDecrypter{})
	require.NoError(t, err)
	assert.Equal(t, "!not-encrypted", tok)
	assert.False(t, PlainCredential("x").IsEncrypted())
	assert.True(t, EncryptedCredential("x").IsEncrypted())
}
