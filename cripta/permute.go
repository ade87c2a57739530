package cripta

import (
	"fmt"
	"strings"
)

// Bits is an ordered sequence of single-bit values, most significant first.
type Bits []uint8

// Table is a permutation rule of 1-based source bit positions.
type Table []int

func BytesToBits(data []uint8) Bits {
	bits := make(Bits, 0, len(data)*8)
	for _, b := range data {
		for i := 7; i >= 0; i-- {
			bits = append(bits, (b>>i)&1)
		}
	}
	return bits
}

// BitsToBytes packs bits back into bytes. The length must be a multiple of 8.
func BitsToBytes(bits Bits) []uint8 {
	if len(bits)%8 != 0 {
		panic(fmt.Sprintf("cripta: bit length %d is not a multiple of 8", len(bits)))
	}

	result := make([]uint8, len(bits)/8)
	for i, bit := range bits {
		result[i/8] |= (bit & 1) << (7 - i%8)
	}
	return result
}

// Permute builds a new sequence where output[i] = bits[table[i]-1]. The output
// is as wide as the table, so the same call expands, compresses or reorders.
func Permute(bits Bits, table Table) Bits {
	result := make(Bits, len(table))
	for i, pos := range table {
		if pos < 1 || pos > len(bits) {
			panic(fmt.Sprintf("cripta: position %d out of bounds for %d bits", pos, len(bits)))
		}
		result[i] = bits[pos-1]
	}
	return result
}

func xorBits(a, b Bits) Bits {
	mustWidth(b, len(a))
	result := make(Bits, len(a))
	for i := range a {
		result[i] = a[i] ^ b[i]
	}
	return result
}

func concatBits(left, right Bits) Bits {
	result := make(Bits, 0, len(left)+len(right))
	result = append(result, left...)
	return append(result, right...)
}

func rotateLeft(bits Bits, shift int) Bits {
	shift %= len(bits)
	return concatBits(bits[shift:], bits[:shift])
}

func mustWidth(bits Bits, width int) {
	if len(bits) != width {
		panic(fmt.Sprintf("cripta: expected %d bits, got %d", width, len(bits)))
	}
}

// String renders the sequence in groups of eight, e.g. "00000001 00100011".
func (b Bits) String() string {
	var sb strings.Builder
	for i, bit := range b {
		if i > 0 && i%8 == 0 {
			sb.WriteByte(' ')
		}
		sb.WriteByte('0' + bit)
	}
	return sb.String()
}
