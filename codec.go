package seenindex

import (
	"bufio"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// gzip writers at BestCompression carry large internal tables, reuse them.
var gzipWriterPool sync.Pool

func getGzipWriter(w io.Writer) *gzip.Writer {
	if v := gzipWriterPool.Get(); v != nil {
		zw := v.(*gzip.Writer)
		zw.Reset(w)
		return zw
	}
	// BestCompression is a valid level, NewWriterLevel cannot fail here.
	zw, _ := gzip.NewWriterLevel(w, gzip.BestCompression)
	return zw
}

func putGzipWriter(zw *gzip.Writer) {
	gzipWriterPool.Put(zw)
}

// Serialize writes the raw bit array of f to w as a gzip stream at maximum
// compression. The stream carries no size information; the reader must learn
// the exponent some other way.
func Serialize(w io.Writer, f *Filter) error {
	if f.Released() {
		return ErrReleased
	}
	zw := getGzipWriter(w)
	defer putGzipWriter(zw)

	// close flushes the trailer, the stream is incomplete without it.
	if _, err := zw.Write(f.bits); err != nil {
		return fmt.Errorf("%w: write gzip stream: %w", ErrIO, err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("%w: close gzip stream: %w", ErrIO, err)
	}
	return nil
}

// SerializeZlib is Serialize with a zlib container instead of gzip.
func SerializeZlib(w io.Writer, f *Filter) error {
	if f.Released() {
		return ErrReleased
	}
	zw, err := zlib.NewWriterLevel(w, zlib.BestCompression)
	if err != nil {
		return err
	}
	if _, err := zw.Write(f.bits); err != nil {
		return fmt.Errorf("%w: write zlib stream: %w", ErrIO, err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("%w: close zlib stream: %w", ErrIO, err)
	}
	return nil
}

// sourceReader remembers failures of the underlying reader so they can be
// told apart from decompression failures.
type sourceReader struct {
	r   io.Reader
	err error
}

func (s *sourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && err != io.EOF {
		s.err = err
	}
	return n, err
}

// Deserialize inflates a gzip or zlib stream (detected from its header) and
// returns the decompressed bytes. The output buffer starts at one byte and
// doubles whenever the inflated data outgrows it, which ends exactly on the
// filter size because filter sizes are powers of two.
//
// On any failure no data is returned. Errors wrap ErrCorruptStream for bad
// input, ErrIO for a failing source and ErrAllocation when the output would
// outgrow the WithMaxBytes limit.
func Deserialize(r io.Reader, opts ...Option) ([]byte, error) {
	o, err := applyOptions(opts)
	if err != nil {
		return nil, err
	}

	// wrap the source so its failures are not reported as corrupt input.
	src := &sourceReader{r: r}
	zr, err := newDecompressor(bufio.NewReaderSize(src, ChunkSize))
	if err != nil {
		return nil, classifyReadError(src, err)
	}
	defer zr.Close()

	var (
		buf      = make([]byte, 1) // grows by doubling.
		produced = 0
		chunk    = make([]byte, ChunkSize)
	)
	for {
		n, err := zr.Read(chunk)
		if n > 0 {
			// double the buffer until the new bytes fit.
			for produced+n > len(buf) {
				if len(buf)*2 > o.maxBytes {
					return nil, fmt.Errorf("%w: inflated data exceeds %d bytes", ErrAllocation, o.maxBytes)
				}
				grown := make([]byte, len(buf)*2)
				copy(grown, buf[:produced])
				buf = grown
			}
			copy(buf[produced:], chunk[:n])
			produced += n
		}
		// the stream ended cleanly, trailer and checksum included.
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, classifyReadError(src, err)
		}
	}
	return buf[:produced], nil
}

// newDecompressor picks gzip or zlib from the first two bytes of the stream.
func newDecompressor(br *bufio.Reader) (io.ReadCloser, error) {
	header, err := br.Peek(2)
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	switch {
	case isGzipHeader(header):
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, err
		}
		return zr, nil
	case isZlibHeader(header):
		return zlib.NewReader(br)
	default:
		return nil, fmt.Errorf("unrecognized header %#x", header)
	}
}

func isGzipHeader(b []byte) bool {
	return b[0] == 0x1f && b[1] == 0x8b
}

// isZlibHeader checks for the deflate method and the CMF/FLG checksum.
func isZlibHeader(b []byte) bool {
	return b[0]&0x0f == 8 && (uint16(b[0])<<8|uint16(b[1]))%31 == 0
}

func classifyReadError(src *sourceReader, err error) error {
	if src.err != nil {
		return fmt.Errorf("%w: read source: %w", ErrIO, src.err)
	}
	return fmt.Errorf("%w: %w", ErrCorruptStream, err)
}

// Load inflates a compressed filter and wraps it as a 2^exponent bit filter.
func Load(r io.Reader, exponent int, opts ...Option) (*Filter, error) {
	raw, err := Deserialize(r, opts...)
	if err != nil {
		return nil, err
	}
	return FromBytes(raw, exponent, opts...)
}

// WriteRaw writes the uncompressed bit array, exactly 2^(n-3) bytes.
func WriteRaw(w io.Writer, f *Filter) error {
	if f.Released() {
		return ErrReleased
	}
	if _, err := w.Write(f.bits); err != nil {
		return fmt.Errorf("%w: write raw filter: %w", ErrIO, err)
	}
	return nil
}

// ReadRaw reads exactly 2^(n-3) bytes and fails if the source holds more.
func ReadRaw(r io.Reader, exponent int, opts ...Option) (*Filter, error) {
	f, err := New(exponent, opts...)
	if err != nil {
		return nil, err
	}
	// the filter is exactly as long as its exponent says.
	if _, err := io.ReadFull(r, f.bits); err != nil {
		return nil, fmt.Errorf("%w: read raw filter: %w", ErrIO, err)
	}
	var extra [1]byte
	if n, _ := io.ReadFull(r, extra[:]); n > 0 {
		return nil, fmt.Errorf("%w: trailing data after 2^%d bit filter", ErrSizeMismatch, exponent)
	}
	return f, nil
}
