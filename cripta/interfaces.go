package cripta

type IKeySchedule interface {
	GenerateRoundKeys(masterKey []uint8) ([]Bits, error)
}

type IRoundFunction interface {
	Apply(half Bits, roundKey Bits) Bits
}

type ISymmetricCipher interface {
	EncryptBlock(plainBlock []uint8) ([]uint8, error)
	DecryptBlock(cipherBlock []uint8) ([]uint8, error)
}
