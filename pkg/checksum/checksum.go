package checksum

import (
	"hash/crc32"
)

var ieeeTable = crc32.MakeTable(crc32.IEEE)

// Sum computes the IEEE CRC32 over one or more byte slices, in order.
func Sum(parts ...[]byte) uint32 {
	var sum uint32
	for _, p := range parts {
		sum = crc32.Update(sum, ieeeTable, p)
	}
	return sum
}

// Verify reports whether data hashes to expected.
func Verify(expected uint32, parts ...[]byte) bool {
	return Sum(parts...) == expected
}
