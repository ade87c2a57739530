package cripta

import (
	"context"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"
)

// PaddedCipher encrypts arbitrary-length buffers with DES in ECB mode and
// PKCS#5-style padding. Blocks are independent; with parallelism enabled
// they are processed concurrently but always written back in order.
type PaddedCipher struct {
	cipher        *DESCipher
	parallelism   int
	strictPadding bool
}

func NewPaddedCipher(key []uint8, opts ...Option) (*PaddedCipher, error) {
	o := collectOptions(opts)

	des, err := NewDESCipher(key, opts...)
	if err != nil {
		return nil, err
	}

	return &PaddedCipher{
		cipher:        des,
		parallelism:   o.parallelism,
		strictPadding: o.strictPadding,
	}, nil
}

// Block exposes the underlying block cipher.
func (pc *PaddedCipher) Block() *DESCipher {
	return pc.cipher
}

// Encrypt pads and encrypts plaintext. The output is always a non-zero
// multiple of the block size.
func (pc *PaddedCipher) Encrypt(plaintext []uint8) []uint8 {
	padded := applyPadding(plaintext)
	result := make([]uint8, len(padded))

	ranges := pc.blockRanges(len(padded) / DESBlockSize)
	if len(ranges) == 1 {
		pc.cryptRange(pc.cipher.Encrypt, result, padded, ranges[0])
		return result
	}

	var wg sync.WaitGroup
	for _, r := range ranges {
		wg.Go(func() {
			pc.cryptRange(pc.cipher.Encrypt, result, padded, r)
		})
	}
	wg.Wait()
	return result
}

func (pc *PaddedCipher) Decrypt(ciphertext []uint8) ([]uint8, error) {
	return pc.DecryptContext(context.Background(), ciphertext)
}

func (pc *PaddedCipher) EncryptContext(ctx context.Context, plaintext []uint8) ([]uint8, error) {
	return pc.cryptBlocks(ctx, applyPadding(plaintext), false)
}

func (pc *PaddedCipher) DecryptContext(ctx context.Context, ciphertext []uint8) ([]uint8, error) {
	if len(ciphertext) == 0 || len(ciphertext)%DESBlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext length must be a positive multiple of %d, got %d",
			ErrInvalidInput, DESBlockSize, len(ciphertext))
	}

	plaintext, err := pc.cryptBlocks(ctx, ciphertext, true)
	if err != nil {
		return nil, err
	}

	return pc.removePadding(plaintext)
}

// applyPadding always appends between 1 and 8 bytes, each equal to the count.
func applyPadding(data []uint8) []uint8 {
	paddingLength := DESBlockSize - len(data)%DESBlockSize

	padded := make([]uint8, len(data)+paddingLength)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = uint8(paddingLength)
	}
	return padded
}

func (pc *PaddedCipher) removePadding(data []uint8) ([]uint8, error) {
	paddingLength := int(data[len(data)-1])

	valid := paddingLength >= 1 && paddingLength <= DESBlockSize
	if valid {
		for i := len(data) - paddingLength; i < len(data); i++ {
			if data[i] != uint8(paddingLength) {
				valid = false
				break
			}
		}
	}

	if !valid {
		if pc.strictPadding {
			return nil, fmt.Errorf("%w: trailing byte 0x%02x", ErrInvalidPadding, data[len(data)-1])
		}
		return data, nil
	}

	return data[:len(data)-paddingLength], nil
}

type blockRange struct {
	start, end int
}

// blockRanges splits numBlocks into at most parallelism contiguous runs.
func (pc *PaddedCipher) blockRanges(numBlocks int) []blockRange {
	numWorkers := min(pc.parallelism, numBlocks)
	if numWorkers < 2 {
		return []blockRange{{0, numBlocks}}
	}

	blocksPerWorker := (numBlocks + numWorkers - 1) / numWorkers
	ranges := make([]blockRange, 0, numWorkers)
	for start := 0; start < numBlocks; start += blocksPerWorker {
		ranges = append(ranges, blockRange{start, min(start+blocksPerWorker, numBlocks)})
	}
	return ranges
}

func (pc *PaddedCipher) cryptRange(crypt func(dst, src []byte), dst, src []uint8, r blockRange) {
	for i := r.start; i < r.end; i++ {
		crypt(dst[i*DESBlockSize:], src[i*DESBlockSize:])
	}
}

func (pc *PaddedCipher) cryptBlocks(ctx context.Context, data []uint8, decrypt bool) ([]uint8, error) {
	result := make([]uint8, len(data))

	crypt := pc.cipher.Encrypt
	if decrypt {
		crypt = pc.cipher.Decrypt
	}

	cryptChecked := func(ctx context.Context, r blockRange) error {
		for i := r.start; i < r.end; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			crypt(result[i*DESBlockSize:], data[i*DESBlockSize:])
		}
		return nil
	}

	ranges := pc.blockRanges(len(data) / DESBlockSize)
	if len(ranges) == 1 {
		if err := cryptChecked(ctx, ranges[0]); err != nil {
			return nil, err
		}
		return result, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(ranges))
	for _, r := range ranges {
		g.Go(func() error {
			return cryptChecked(gctx, r)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("block processing aborted: %w", err)
	}

	return result, nil
}

func (pc *PaddedCipher) EncryptFile(ctx context.Context, inputPath string, outputPath string) error {
	return transformFile(ctx, inputPath, outputPath, pc.EncryptContext, "encryption")
}

func (pc *PaddedCipher) DecryptFile(ctx context.Context, inputPath string, outputPath string) error {
	return transformFile(ctx, inputPath, outputPath, pc.DecryptContext, "decryption")
}

// transformFile reads the whole input, applies transform and writes the
// result. The output file is not created when transform fails.
func transformFile(
	ctx context.Context,
	inputPath, outputPath string,
	transform func(context.Context, []uint8) ([]uint8, error),
	operation string,
) error {
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("failed to read input file: %w", err)
	}

	out, err := transform(ctx, data)
	if err != nil {
		return fmt.Errorf("%s failed: %w", operation, err)
	}

	if err := os.WriteFile(outputPath, out, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}
