package cripta

import (
	"fmt"
	"strconv"
)

const (
	DESKeySize   = 8
	DESRounds    = 16
	SubkeyWidth  = 48
	halfKeyWidth = 28
)

var PC1 = Table{
	57, 49, 41, 33, 25, 17, 9,
	1, 58, 50, 42, 34, 26, 18,
	10, 2, 59, 51, 43, 35, 27,
	19, 11, 3, 60, 52, 44, 36,
	63, 55, 47, 39, 31, 23, 15,
	7, 62, 54, 46, 38, 30, 22,
	14, 6, 61, 53, 45, 37, 29,
	21, 13, 5, 28, 20, 12, 4,
}

var PC2 = Table{
	14, 17, 11, 24, 1, 5,
	3, 28, 15, 6, 21, 10,
	23, 19, 12, 4, 26, 8,
	16, 7, 27, 20, 13, 2,
	41, 52, 31, 37, 47, 55,
	30, 40, 51, 45, 33, 48,
	44, 49, 39, 56, 34, 53,
	46, 42, 50, 36, 29, 32,
}

var ShiftSchedule = [DESRounds]int{
	1, 1, 2, 2, 2, 2, 2, 2,
	1, 2, 2, 2, 2, 2, 2, 1,
}

type DESKeySchedule struct {
	trace TraceFunc
}

// GenerateRoundKeys derives the 16 48-bit subkeys in round order.
func (dks *DESKeySchedule) GenerateRoundKeys(masterKey []uint8) ([]Bits, error) {
	if len(masterKey) != DESKeySize {
		return nil, fmt.Errorf("%w: DES key must be %d bytes, got %d", ErrInvalidKey, DESKeySize, len(masterKey))
	}

	key := BytesToBits(masterKey)
	dks.trace.emit("key", key)

	permutedKey := Permute(key, PC1)
	dks.trace.emit("pc1", permutedKey)

	c := permutedKey[:halfKeyWidth]
	d := permutedKey[halfKeyWidth:]

	roundKeys := make([]Bits, 0, DESRounds)
	for round := 0; round < DESRounds; round++ {
		c = rotateLeft(c, ShiftSchedule[round])
		d = rotateLeft(d, ShiftSchedule[round])

		roundKey := Permute(concatBits(c, d), PC2)
		roundKeys = append(roundKeys, roundKey)

		if dks.trace != nil {
			n := strconv.Itoa(round + 1)
			dks.trace("round "+n+" C", c)
			dks.trace("round "+n+" D", d)
			dks.trace("subkey "+n, roundKey)
		}
	}

	return roundKeys, nil
}
