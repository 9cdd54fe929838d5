package seenindex

import "bytes"

// Snapshot is an inflated filter image together with its length. It is what
// Decompress hands back in place of a buffer pointer plus a separate size.
type Snapshot struct {
	Data []byte
}

// Decompress inflates a compressed filter held in memory.
func Decompress(blob []byte, opts ...Option) (Snapshot, error) {
	raw, err := Deserialize(bytes.NewReader(blob), opts...)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{Data: raw}, nil
}

// Len returns the number of inflated bytes.
func (s Snapshot) Len() int {
	return len(s.Data)
}

// Exponent infers n from the snapshot length, log2(len)+3.
func (s Snapshot) Exponent() (int, error) {
	return ExponentForLength(len(s.Data))
}

// Filter wraps the snapshot as a Filter. The data is adopted, not copied.
func (s Snapshot) Filter(opts ...Option) (*Filter, error) {
	exponent, err := s.Exponent()
	if err != nil {
		return nil, err
	}
	return FromBytes(s.Data, exponent, opts...)
}
