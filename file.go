package seenindex

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Encoding selects how a filter is laid out on disk.
type Encoding int

const (
	EncodingRaw  Encoding = iota // bare bit array, 2^(n-3) bytes.
	EncodingGzip                 // gzip stream of the bit array.
	EncodingZlib                 // zlib stream of the bit array.
)

var encodingNames = map[Encoding]string{
	EncodingRaw:  "raw",
	EncodingGzip: "gzip",
	EncodingZlib: "zlib",
}

var encodingSuffixes = map[Encoding]string{
	EncodingRaw:  ".bloom",
	EncodingGzip: ".bloom.gz",
	EncodingZlib: ".bloom.zz",
}

func (e Encoding) String() string {
	if name, ok := encodingNames[e]; ok {
		return name
	}
	return fmt.Sprintf("Encoding(%d)", int(e))
}

// Suffix returns the file name suffix used for the encoding.
func (e Encoding) Suffix() string {
	return encodingSuffixes[e]
}

// ParseEncoding parses "raw", "gzip" or "zlib".
func ParseEncoding(s string) (Encoding, error) {
	for e, name := range encodingNames {
		if strings.EqualFold(s, name) {
			return e, nil
		}
	}
	return 0, fmt.Errorf("seenindex: unknown encoding %q", s)
}

// EncodingFromPath guesses the encoding from a file name suffix, defaulting
// to raw.
func EncodingFromPath(path string) Encoding {
	switch {
	case strings.HasSuffix(path, ".gz"):
		return EncodingGzip
	case strings.HasSuffix(path, ".zz"):
		return EncodingZlib
	default:
		return EncodingRaw
	}
}

// Encode writes f to w using the encoding.
func (e Encoding) Encode(w io.Writer, f *Filter) error {
	switch e {
	case EncodingRaw:
		return WriteRaw(w, f)
	case EncodingGzip:
		return Serialize(w, f)
	case EncodingZlib:
		return SerializeZlib(w, f)
	default:
		return fmt.Errorf("seenindex: unknown encoding %d", int(e))
	}
}

// WriteFile writes f to path. A failed write never leaves a partial filter
// behind.
func WriteFile(path string, f *Filter, enc Encoding) error {
	if f.Released() {
		return ErrReleased
	}
	return writeFileAtomic(path, func(w io.Writer) error {
		return enc.Encode(w, f)
	})
}

// writeFileAtomic streams write into a temporary file in the same directory
// and renames it over path once everything reached the disk.
func writeFileAtomic(path string, write func(w io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create %s: %w", ErrIO, path, err)
	}
	// remove the temp file on every failure path.
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	// write through a buffer, then make it durable before the rename.
	w := bufio.NewWriterSize(tmp, ChunkSize)
	if err := write(w); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("%w: flush %s: %w", ErrIO, path, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("%w: sync %s: %w", ErrIO, path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", ErrIO, path, err)
	}
	if err := os.Chmod(tmp.Name(), snapshotFileMode); err != nil {
		return fmt.Errorf("%w: chmod %s: %w", ErrIO, path, err)
	}
	// rename is atomic within one directory.
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: rename %s: %w", ErrIO, path, err)
	}
	committed = true
	return nil
}

// ReadFile reads a filter written with the given encoding. An exponent of 0
// infers the size from the file (or inflated) length.
func ReadFile(path string, exponent int, enc Encoding, opts ...Option) (*Filter, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrIO, path, err)
	}
	defer file.Close()

	if enc == EncodingRaw {
		// raw files carry their size in their length.
		if exponent == 0 {
			info, err := file.Stat()
			if err != nil {
				return nil, fmt.Errorf("%w: stat %s: %w", ErrIO, path, err)
			}
			if info.Size() > MaxFilterBytes {
				return nil, fmt.Errorf("%w: %s is %d bytes", ErrInvalidSize, path, info.Size())
			}
			if exponent, err = ExponentForLength(int(info.Size())); err != nil {
				return nil, err
			}
		}
		return ReadRaw(bufio.NewReaderSize(file, ChunkSize), exponent, opts...)
	}

	raw, err := Deserialize(file, opts...)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	// compressed files carry it in their inflated length.
	snapshot := Snapshot{Data: raw}
	if exponent == 0 {
		return snapshot.Filter(opts...)
	}
	return FromBytes(raw, exponent, opts...)
}
