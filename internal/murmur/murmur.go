// Package murmur pins the 32-bit MurmurHash3 (x86_32) digest used to address
// filter bits.
//
// The output is part of the persisted filter format: indices derived from it
// address bits in filter files produced by other implementations, so Sum32
// must stay bit-for-bit stable across platforms and releases.
package murmur

import "github.com/spaolacci/murmur3"

// Sum32 returns the MurmurHash3 x86_32 digest of data for the given seed.
func Sum32(data []byte, seed uint32) uint32 {
	return murmur3.Sum32WithSeed(data, seed)
}
