package cripta

import (
	"fmt"
	"strconv"
)

type FeistelNetwork struct {
	roundFunction IRoundFunction
	roundsCount   int
	roundKeys     []Bits
	trace         TraceFunc
}

// NewFeistelNetwork derives the round keys once; the network is read-only
// afterwards and may be shared between goroutines.
func NewFeistelNetwork(
	keySchedule IKeySchedule,
	roundFunction IRoundFunction,
	key []uint8,
	roundsCount int,
	trace TraceFunc,
) (*FeistelNetwork, error) {
	if keySchedule == nil {
		return nil, fmt.Errorf("key schedule implementation cannot be nil")
	}
	if roundFunction == nil {
		return nil, fmt.Errorf("round function implementation cannot be nil")
	}
	if roundsCount <= 0 {
		return nil, fmt.Errorf("rounds count must be positive, got %d", roundsCount)
	}

	roundKeys, err := keySchedule.GenerateRoundKeys(key)
	if err != nil {
		return nil, fmt.Errorf("failed to generate round keys: %w", err)
	}
	if len(roundKeys) < roundsCount {
		return nil, fmt.Errorf("key schedule generated insufficient round keys: got %d, need %d",
			len(roundKeys), roundsCount)
	}

	return &FeistelNetwork{
		roundFunction: roundFunction,
		roundsCount:   roundsCount,
		roundKeys:     roundKeys[:roundsCount],
		trace:         trace,
	}, nil
}

func (fn *FeistelNetwork) RoundsCount() int {
	return fn.roundsCount
}

// RoundKeys returns a copy of the schedule in round order.
func (fn *FeistelNetwork) RoundKeys() []Bits {
	keys := make([]Bits, len(fn.roundKeys))
	for i, k := range fn.roundKeys {
		keys[i] = append(Bits(nil), k...)
	}
	return keys
}

// Encrypt runs the rounds with keys 1..n and returns R_n || L_n.
func (fn *FeistelNetwork) Encrypt(block Bits) Bits {
	return fn.run(block, false)
}

// Decrypt is Encrypt with the key order reversed.
func (fn *FeistelNetwork) Decrypt(block Bits) Bits {
	return fn.run(block, true)
}

func (fn *FeistelNetwork) run(block Bits, reverse bool) Bits {
	if len(block)%2 != 0 {
		panic(fmt.Sprintf("cripta: block width %d is not even", len(block)))
	}

	half := len(block) / 2
	left := block[:half]
	right := block[half:]
	fn.trace.emit("L0", left)
	fn.trace.emit("R0", right)

	for round := 0; round < fn.roundsCount; round++ {
		keyIndex := round
		if reverse {
			keyIndex = fn.roundsCount - 1 - round
		}

		left, right = FeistelRound(left, right, fn.roundKeys[keyIndex], fn.roundFunction)

		if fn.trace != nil {
			n := strconv.Itoa(round + 1)
			fn.trace("round "+n+" L", left)
			fn.trace("round "+n+" R", right)
		}
	}

	swapped := concatBits(right, left)
	fn.trace.emit("swap", swapped)
	return swapped
}
