package seenindex

const (
	DefaultExponent  = 27       // 2^27 bits = 16 MiB, sized for 3-10 million entries.
	DefaultRounds    = 23       // Hash rounds per element for DefaultExponent.
	MinExponent      = 3        // Smallest exponent that fills a whole byte.
	MaxExponent      = 31       // Largest exponent addressable by a 32 bit hash.
	ChunkSize        = 16 << 10 // Read size used while inflating a compressed filter.
	MaxFilterBytes   = 1 << 28  // Byte length of a MaxExponent filter.
	ManifestSuffix   = ".manifest"
	snapshotFileMode = 0o644
)

const (
	WALDirectory       = ".wal"   // Store subdirectory holding the write-ahead log.
	walMaxFileSize     = 4 << 20  // 4 MiB per log segment.
	walMaxSegments     = 1000     // Maximum number of log segments.
	walFlushBytes      = 16 << 20 // Logged bytes that trigger a store flush.
	walRecycleSegments = 4        // Segment count at which a flushed log is recreated.
)
