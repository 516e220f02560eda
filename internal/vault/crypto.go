package vault

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
)

const (
	saltSize = 16

	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// deriveKey derives a chacha20poly1305 key from the install key seed and a
// per-file random salt via scrypt. Re-run on every open/persist since the
// salt is stored alongside the ciphertext, never cached.
func deriveKey(keySeed, salt []byte) ([]byte, error) {
	key, err := scrypt.Key(keySeed, salt, scryptN, scryptR, scryptP, chacha20poly1305.KeySize)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return key, nil
}

// encrypt seals plaintext under a key derived from keySeed, returning the
// salt and nonce that must accompany the ciphertext for decrypt to work.
// aad is bound into the ciphertext as additional authenticated data so a
// ciphertext from a different vault format/version fails to authenticate.
func encrypt(keySeed, plaintext []byte) (salt, nonce, ciphertext []byte, err error) {
	salt = make([]byte, saltSize)
	if _, err = rand.Read(salt); err != nil {
		return nil, nil, nil, fmt.Errorf("read salt: %w", err)
	}

	key, err := deriveKey(keySeed, salt)
	if err != nil {
		return nil, nil, nil, err
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("new aead: %w", err)
	}

	nonce = make([]byte, aead.NonceSize())
	if _, err = rand.Read(nonce); err != nil {
		return nil, nil, nil, fmt.Errorf("read nonce: %w", err)
	}

	ciphertext = aead.Seal(nil, nonce, plaintext, []byte(aad))
	return salt, nonce, ciphertext, nil
}

// decrypt opens a ciphertext produced by encrypt, verifying it was sealed
// under keySeed with the aad bound at encrypt time.
func decrypt(keySeed, salt, nonce, ciphertext []byte) ([]byte, error) {
	key, err := deriveKey(keySeed, salt)
	if err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("new aead: %w", err)
	}
	if len(nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("bad nonce size")
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, []byte(aad))
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	return plaintext, nil
}
