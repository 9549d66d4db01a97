// Package cryptox implements the symmetric file encryption used by the vault:
// AES-256-CBC with PKCS#7 padding, plus a SHA-256 integrity digest computed
// over the ciphertext. The digest is taken over encrypted bytes on purpose, so
// integrity can be verified without decrypting.
//
// All functions are stateless and safe for concurrent use.
package cryptox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/genovault/genovault/internal/common"
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32
	// IVSize is the CBC initialization vector length in bytes (one AES block).
	IVSize = aes.BlockSize
)

// Envelope holds the output of a single encryption: the ciphertext, the fresh
// key/IV that produced it, and the hex SHA-256 digest of the ciphertext.
type Envelope struct {
	Ciphertext []byte
	Key        []byte
	IV         []byte
	Digest     string
}

// Encrypt encrypts plaintext under a freshly generated random key and IV.
// Key and IV are never reused across calls; encrypting the same plaintext
// twice yields different ciphertexts and digests.
func Encrypt(plaintext []byte) (*Envelope, error) {
	key := common.GenerateRandByteArray(KeySize)
	iv := common.GenerateRandByteArray(IVSize)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cipher init: %w", err)
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return &Envelope{
		Ciphertext: ciphertext,
		Key:        key,
		IV:         iv,
		Digest:     DigestHex(ciphertext),
	}, nil
}

// Decrypt reverses Encrypt. Malformed key/IV, truncated ciphertext, or bad
// padding all surface as common.ErrDecryptionFailed; the underlying cause is
// wrapped but callers are expected not to leak it to end users.
func Decrypt(ciphertext, key, iv []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: bad key length %d", common.ErrDecryptionFailed, len(key))
	}
	if len(iv) != IVSize {
		return nil, fmt.Errorf("%w: bad iv length %d", common.ErrDecryptionFailed, len(iv))
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext not block-aligned", common.ErrDecryptionFailed)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecryptionFailed, err)
	}

	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, ciphertext)

	plaintext, err := pkcs7Unpad(padded, aes.BlockSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDecryptionFailed, err)
	}
	return plaintext, nil
}

// DigestHex returns the hex-encoded SHA-256 digest of data.
func DigestHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// VerifyDigest recomputes the SHA-256 digest of ciphertext and compares it to
// expected. Pure function: no side effects, returns false on any mismatch
// including malformed expected values.
func VerifyDigest(ciphertext []byte, expected string) bool {
	return DigestHex(ciphertext) == expected
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("invalid padded length %d", len(data))
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize {
		return nil, fmt.Errorf("invalid padding byte %d", n)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("inconsistent padding")
		}
	}
	return data[:len(data)-n], nil
}
