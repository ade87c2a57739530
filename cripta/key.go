package cripta

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const DefaultKDFIterations = 100_000

// ParseKey accepts a key typed as exactly 8 bytes of text.
func ParseKey(text string) ([]uint8, error) {
	if len(text) != DESKeySize {
		return nil, fmt.Errorf("%w: key must be exactly %d characters, got %d", ErrInvalidKey, DESKeySize, len(text))
	}
	return []uint8(text), nil
}

// ParseHexKey accepts 16 hex digits; spaces are ignored.
func ParseHexKey(text string) ([]uint8, error) {
	key, err := hex.DecodeString(strings.ReplaceAll(text, " ", ""))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(key) != DESKeySize {
		return nil, fmt.Errorf("%w: hex key must decode to %d bytes, got %d", ErrInvalidKey, DESKeySize, len(key))
	}
	return key, nil
}

// DeriveKey stretches a passphrase into a DES key with PBKDF2-HMAC-SHA256.
func DeriveKey(passphrase string, salt []uint8, iterations int) []uint8 {
	if iterations <= 0 {
		iterations = DefaultKDFIterations
	}
	return pbkdf2.Key([]byte(passphrase), salt, iterations, DESKeySize, sha256.New)
}

func GenerateKey() ([]uint8, error) {
	key := make([]uint8, DESKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}
