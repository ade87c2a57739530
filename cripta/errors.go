package cripta

import "errors"

var (
	// ErrInvalidKey is returned when a DES key is not exactly 8 bytes.
	ErrInvalidKey = errors.New("invalid key")

	// ErrInvalidInput is returned for ciphertext that is not a positive
	// multiple of the block size, or a block of the wrong width.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidPadding is only returned in strict padding mode.
	ErrInvalidPadding = errors.New("invalid padding")
)
