package shopify

import (
	"errors"
	"fmt"
)

var (
	ErrMissingCredential = errors.New("missing access credential")
	ErrCredentialDecrypt = errors.New("failed to decrypt access credential")
)

// Decrypter reverses the at-rest encryption of stored access tokens.
type Decrypter interface {
	Decrypt(ciphertext string) (string, error)
}

type credentialKind int

const (
	credentialPlain credentialKind = iota + 1
	credentialEncrypted
)

// Credential is either a plaintext access token (fresh from the token
// exchange) or the encrypted form persisted on a Connection. The zero value
// is an empty credential.
type Credential struct {
	kind  credentialKind
	value string
}

func PlainCredential(token string) Credential {
	return Credential{kind: credentialPlain, value: token}
}

func EncryptedCredential(ciphertext string) Credential {
	return Credential{kind: credentialEncrypted, value: ciphertext}
}

func (c Credential) IsEncrypted() bool {
	return c.kind == credentialEncrypted
}

// Resolve returns the plaintext access token, decrypting when needed.
func (c Credential) Resolve(d Decrypter) (string, error) {
	if c.value == "" {
		return "", ErrMissingCredential
	}

	switch c.kind {
	case credentialPlain:
		return c.value, nil
	case credentialEncrypted:
		if d == nil {
			return "", fmt.Errorf("%w: no decrypter configured", ErrCredentialDecrypt)
		}
		token, err := d.Decrypt(c.value)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrCredentialDecrypt, err)
		}
		if token == "" {
			return "", ErrMissingCredential
		}
		return token, nil
	default:
		return "", ErrMissingCredential
	}
}
