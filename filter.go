package seenindex

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"math/bits"

	"github.com/danish45007/seenindex/internal/murmur"
)

// Filter is a Bloom filter over a bit array of exactly 2^n bits, packed eight
// to a byte with the most significant bit first.
//
// A Filter is not safe for concurrent mutation. Add and Combine must be
// serialized by the caller; Contains may run concurrently with other readers.
type Filter struct {
	bits     []byte // 2^(exponent-3) bytes of packed bits.
	exponent uint8  // log2 of the number of bits.
	rounds   uint32 // hash rounds per element.
}

// New allocates a zeroed filter of 2^exponent bits.
func New(exponent int, opts ...Option) (*Filter, error) {
	o, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	size, err := byteLength(exponent)
	if err != nil {
		return nil, err
	}
	// refuse before allocating.
	if size > o.maxBytes {
		return nil, fmt.Errorf("%w: 2^%d bits needs %d bytes, limit is %d", ErrAllocation, exponent, size, o.maxBytes)
	}
	return &Filter{
		bits:     make([]byte, size),
		exponent: uint8(exponent),
		rounds:   o.rounds,
	}, nil
}

// FromBytes wraps an existing raw bit array. The slice is adopted, not copied.
func FromBytes(raw []byte, exponent int, opts ...Option) (*Filter, error) {
	o, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}
	size, err := byteLength(exponent)
	if err != nil {
		return nil, err
	}
	// a 2^n bit filter is exactly 2^(n-3) bytes.
	if len(raw) != size {
		return nil, fmt.Errorf("%w: have %d bytes, 2^%d bits needs %d", ErrSizeMismatch, len(raw), exponent, size)
	}
	return &Filter{
		bits:     raw,
		exponent: uint8(exponent),
		rounds:   o.rounds,
	}, nil
}

// ExponentForLength returns the exponent of a raw filter that is nbytes long.
func ExponentForLength(nbytes int) (int, error) {
	if nbytes <= 0 || nbytes > MaxFilterBytes || nbytes&(nbytes-1) != 0 {
		return 0, fmt.Errorf("%w: %d bytes is not a filter length", ErrInvalidSize, nbytes)
	}
	return bits.TrailingZeros(uint(nbytes)) + 3, nil
}

func byteLength(exponent int) (int, error) {
	if exponent < MinExponent || exponent > MaxExponent {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidSize, exponent)
	}
	return 1 << (exponent - 3), nil
}

// index keeps the top n bits of the round's hash, so every one of the 2^n
// positions is reachable without a modulo.
func (f *Filter) index(data []byte, round uint32) uint32 {
	return murmur.Sum32(data, round) >> (32 - uint32(f.exponent))
}

// Add records data in the filter. Adding the same data twice is a no-op.
func (f *Filter) Add(data []byte) {
	if f.bits == nil {
		return
	}
	for i := uint32(0); i < f.rounds; i++ {
		idx := f.index(data, i)
		// divide by 8 for the byte, then set the bit counting from the MSB.
		f.bits[idx>>3] |= 1 << (7 - idx&7)
	}
}

// AddString records s in the filter.
func (f *Filter) AddString(s string) {
	f.Add([]byte(s))
}

// Contains reports whether data was probably added. A false result is exact.
func (f *Filter) Contains(data []byte) bool {
	if f.bits == nil {
		return false
	}
	for i := uint32(0); i < f.rounds; i++ {
		idx := f.index(data, i)
		// return early on the first unset bit.
		if f.bits[idx>>3]&(1<<(7-idx&7)) == 0 {
			return false
		}
	}
	return true
}

// ContainsString reports whether s was probably added.
func (f *Filter) ContainsString(s string) bool {
	return f.Contains([]byte(s))
}

// Combine ORs other into f, so f answers for the union of both sets. Both
// filters must share the exponent and the round count.
func (f *Filter) Combine(other *Filter) error {
	if f.Released() || other.Released() {
		return ErrReleased
	}
	if err := f.checkShape(other); err != nil {
		return err
	}
	// union is a plain bytewise or.
	for i, b := range other.bits {
		f.bits[i] |= b
	}
	return nil
}

// checkShape returns ErrSizeMismatch unless other has the same exponent and
// round count as f.
func (f *Filter) checkShape(other *Filter) error {
	if f.exponent != other.exponent || f.rounds != other.rounds {
		return fmt.Errorf("%w: 2^%d bits/%d rounds vs 2^%d bits/%d rounds",
			ErrSizeMismatch, f.exponent, f.rounds, other.exponent, other.rounds)
	}
	return nil
}

// Release drops the backing array. The filter answers false to every query
// afterwards and can no longer be combined or written.
func (f *Filter) Release() {
	f.bits = nil
}

// Released reports whether Release has been called.
func (f *Filter) Released() bool {
	return f == nil || f.bits == nil
}

// Exponent returns n, where the filter holds 2^n bits.
func (f *Filter) Exponent() int { return int(f.exponent) }

// Rounds returns the number of hash rounds per element.
func (f *Filter) Rounds() uint32 { return f.rounds }

// Bytes returns the live raw bit array in the on-disk layout.
func (f *Filter) Bytes() []byte { return f.bits }

// Len returns the size of the raw bit array in bytes.
func (f *Filter) Len() int { return len(f.bits) }

// BitCount returns the number of addressable bits, 2^n.
func (f *Filter) BitCount() uint64 { return uint64(1) << f.exponent }

// Clone returns a deep copy of f.
func (f *Filter) Clone() *Filter {
	return &Filter{
		bits:     bytes.Clone(f.bits),
		exponent: f.exponent,
		rounds:   f.rounds,
	}
}

// Equal reports whether both filters share configuration and bits.
func (f *Filter) Equal(other *Filter) bool {
	return f.exponent == other.exponent &&
		f.rounds == other.rounds &&
		bytes.Equal(f.bits, other.bits)
}

// PopCount returns the number of set bits.
func (f *Filter) PopCount() uint64 {
	var count uint64
	b := f.bits
	for len(b) >= 8 {
		count += uint64(bits.OnesCount64(binary.LittleEndian.Uint64(b)))
		b = b[8:]
	}
	for _, x := range b {
		count += uint64(bits.OnesCount8(x))
	}
	return count
}

// FillRatio returns the fraction of bits that are set.
func (f *Filter) FillRatio() float64 {
	if f.bits == nil {
		return 0
	}
	return float64(f.PopCount()) / float64(f.BitCount())
}

// EstimatedFalsePositiveRate returns (1 - e^(-k*m/size))^k, the expected false
// positive probability after m distinct insertions.
func (f *Filter) EstimatedFalsePositiveRate(m uint64) float64 {
	return FalsePositiveRate(f.rounds, m, f.BitCount())
}

// FalsePositiveRate evaluates the false positive formula for k rounds, m
// elements and a filter of size bits.
func FalsePositiveRate(k uint32, m, size uint64) float64 {
	if size == 0 {
		return 1
	}
	kf := float64(k)
	return math.Pow(1-math.Exp(-kf*float64(m)/float64(size)), kf)
}
