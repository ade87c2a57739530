package cripta

import (
	"crypto/cipher"
	"fmt"
)

const (
	DESBlockSize = 8
	blockWidth   = DESBlockSize * 8
)

var IP = Table{
	58, 50, 42, 34, 26, 18, 10, 2,
	60, 52, 44, 36, 28, 20, 12, 4,
	62, 54, 46, 38, 30, 22, 14, 6,
	64, 56, 48, 40, 32, 24, 16, 8,
	57, 49, 41, 33, 25, 17, 9, 1,
	59, 51, 43, 35, 27, 19, 11, 3,
	61, 53, 45, 37, 29, 21, 13, 5,
	63, 55, 47, 39, 31, 23, 15, 7,
}

// FP is the inverse of IP.
var FP = Table{
	40, 8, 48, 16, 56, 24, 64, 32,
	39, 7, 47, 15, 55, 23, 63, 31,
	38, 6, 46, 14, 54, 22, 62, 30,
	37, 5, 45, 13, 53, 21, 61, 29,
	36, 4, 44, 12, 52, 20, 60, 28,
	35, 3, 43, 11, 51, 19, 59, 27,
	34, 2, 42, 10, 50, 18, 58, 26,
	33, 1, 41, 9, 49, 17, 57, 25,
}

var (
	_ ISymmetricCipher = (*DESCipher)(nil)
	_ cipher.Block     = (*DESCipher)(nil)
)

// DESCipher is single DES bound to one key. The subkeys are computed in
// NewDESCipher and never change, so a DESCipher is safe for concurrent use.
type DESCipher struct {
	feistel *FeistelNetwork
	trace   TraceFunc
}

func NewDESCipher(key []uint8, opts ...Option) (*DESCipher, error) {
	o := collectOptions(opts)

	feistel, err := NewFeistelNetwork(
		&DESKeySchedule{trace: o.trace},
		&DESRoundFunction{trace: o.trace},
		key,
		DESRounds,
		o.trace,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to set up DES: %w", err)
	}

	return &DESCipher{
		feistel: feistel,
		trace:   o.trace,
	}, nil
}

// Subkeys returns copies of the 16 round keys, subkey 1 first.
func (des *DESCipher) Subkeys() []Bits {
	return des.feistel.RoundKeys()
}

func (des *DESCipher) EncryptBits(block Bits) Bits {
	return des.transform(block, false)
}

func (des *DESCipher) DecryptBits(block Bits) Bits {
	return des.transform(block, true)
}

func (des *DESCipher) transform(block Bits, decrypt bool) Bits {
	mustWidth(block, blockWidth)

	permuted := Permute(block, IP)
	des.trace.emit("ip", permuted)

	var swapped Bits
	if decrypt {
		swapped = des.feistel.Decrypt(permuted)
	} else {
		swapped = des.feistel.Encrypt(permuted)
	}

	result := Permute(swapped, FP)
	des.trace.emit("fp", result)
	return result
}

func (des *DESCipher) EncryptBlock(plainBlock []uint8) ([]uint8, error) {
	if len(plainBlock) != DESBlockSize {
		return nil, fmt.Errorf("%w: DES block must be %d bytes, got %d", ErrInvalidInput, DESBlockSize, len(plainBlock))
	}
	return BitsToBytes(des.EncryptBits(BytesToBits(plainBlock))), nil
}

func (des *DESCipher) DecryptBlock(cipherBlock []uint8) ([]uint8, error) {
	if len(cipherBlock) != DESBlockSize {
		return nil, fmt.Errorf("%w: DES block must be %d bytes, got %d", ErrInvalidInput, DESBlockSize, len(cipherBlock))
	}
	return BitsToBytes(des.DecryptBits(BytesToBits(cipherBlock))), nil
}

func (des *DESCipher) BlockSize() int { return DESBlockSize }

// Encrypt encrypts the first block of src into dst, as crypto/cipher.Block.
func (des *DESCipher) Encrypt(dst, src []byte) {
	if len(src) < DESBlockSize {
		panic("cripta: input not full block")
	}
	if len(dst) < DESBlockSize {
		panic("cripta: output not full block")
	}
	copy(dst, BitsToBytes(des.EncryptBits(BytesToBits(src[:DESBlockSize]))))
}

func (des *DESCipher) Decrypt(dst, src []byte) {
	if len(src) < DESBlockSize {
		panic("cripta: input not full block")
	}
	if len(dst) < DESBlockSize {
		panic("cripta: output not full block")
	}
	copy(dst, BitsToBytes(des.DecryptBits(BytesToBits(src[:DESBlockSize]))))
}
