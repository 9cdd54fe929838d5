package seenindex

import (
	"fmt"
	"io"
	"os"

	"google.golang.org/protobuf/encoding/protowire"
)

// Manifest is the sidecar record that travels next to a filter file. The
// filter formats carry no header, so the manifest is where the exponent and
// round count live.
//
// Wire layout (protobuf, all varint):
//
//	1: exponent
//	2: rounds
//	3: encoding
//	4: inserted (best-effort count of Add calls)
//	5: created_unix_nano
type Manifest struct {
	Exponent        int
	Rounds          uint32
	Encoding        Encoding
	Inserted        uint64
	CreatedUnixNano int64
}

const (
	manifestExponentField protowire.Number = 1
	manifestRoundsField   protowire.Number = 2
	manifestEncodingField protowire.Number = 3
	manifestInsertedField protowire.Number = 4
	manifestCreatedField  protowire.Number = 5
)

// ManifestFor describes f as it would be written with enc.
func ManifestFor(f *Filter, enc Encoding, inserted uint64) Manifest {
	return Manifest{
		Exponent:        f.Exponent(),
		Rounds:          f.Rounds(),
		Encoding:        enc,
		Inserted:        inserted,
		CreatedUnixNano: nowUnixNano(),
	}
}

// Validate checks the manifest describes a filter this package can build.
func (m Manifest) Validate() error {
	if m.Exponent < MinExponent || m.Exponent > MaxExponent {
		return fmt.Errorf("%w: exponent %d", ErrCorruptManifest, m.Exponent)
	}
	if m.Rounds == 0 {
		return fmt.Errorf("%w: zero rounds", ErrCorruptManifest)
	}
	if _, ok := encodingNames[m.Encoding]; !ok {
		return fmt.Errorf("%w: encoding %d", ErrCorruptManifest, int(m.Encoding))
	}
	return nil
}

// Options returns the filter options recorded in the manifest.
func (m Manifest) Options() []Option {
	return []Option{WithRounds(m.Rounds)}
}

// MarshalManifest encodes m in protobuf wire format.
func MarshalManifest(m Manifest) []byte {
	var b []byte
	b = appendVarintField(b, manifestExponentField, uint64(m.Exponent))
	b = appendVarintField(b, manifestRoundsField, uint64(m.Rounds))
	b = appendVarintField(b, manifestEncodingField, uint64(m.Encoding))
	b = appendVarintField(b, manifestInsertedField, m.Inserted)
	b = appendVarintField(b, manifestCreatedField, uint64(m.CreatedUnixNano))
	return b
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// UnmarshalManifest decodes and validates a manifest. Unknown fields are
// skipped so newer writers stay readable.
func UnmarshalManifest(b []byte) (Manifest, error) {
	var m Manifest
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Manifest{}, fmt.Errorf("%w: %w", ErrCorruptManifest, protowire.ParseError(n))
		}
		b = b[n:]

		// every known field is a varint, skip anything else.
		if typ != protowire.VarintType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Manifest{}, fmt.Errorf("%w: field %d: %w", ErrCorruptManifest, num, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}

		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return Manifest{}, fmt.Errorf("%w: field %d: %w", ErrCorruptManifest, num, protowire.ParseError(n))
		}
		b = b[n:]

		switch num {
		case manifestExponentField:
			m.Exponent = int(v)
		case manifestRoundsField:
			m.Rounds = uint32(v)
		case manifestEncodingField:
			m.Encoding = Encoding(v)
		case manifestInsertedField:
			m.Inserted = v
		case manifestCreatedField:
			m.CreatedUnixNano = int64(v)
		}
	}
	if err := m.Validate(); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// WriteManifestFile atomically writes m to path.
func WriteManifestFile(path string, m Manifest) error {
	return writeFileAtomic(path, func(w io.Writer) error {
		if _, err := w.Write(MarshalManifest(m)); err != nil {
			return fmt.Errorf("%w: write manifest %s: %w", ErrIO, path, err)
		}
		return nil
	})
}

// ReadManifestFile reads and validates a manifest from path.
func ReadManifestFile(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("%w: read manifest %s: %w", ErrIO, path, err)
	}
	m, err := UnmarshalManifest(data)
	if err != nil {
		return Manifest{}, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}
