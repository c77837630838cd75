package checksum

import (
	"crypto/sha256"
	"encoding/binary"
)

// CalculateCheckSum folds the first four bytes of the SHA-256 digest of data.
func CalculateCheckSum(data []byte) uint32 {
	sum := sha256.Sum256(data)
	return binary.BigEndian.Uint32(sum[:4])
}

func Verify(data []byte, sum uint32) bool {
	return CalculateCheckSum(data) == sum
}
