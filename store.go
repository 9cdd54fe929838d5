package seenindex

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	wal "github.com/danish45007/GoLogMatrix"
	"github.com/huandu/skiplist"
)

// storeEntry is one named filter held by a Store.
type storeEntry struct {
	filter   *Filter
	encoding Encoding
	inserted uint64 // best-effort count of Add calls.
	created  int64  // unix nanos of the first write.
	dirty    bool   // changed since the last flush.
}

// Store keeps named filters in a directory. Each filter is persisted as a
// filter file (<name>.bloom, .bloom.gz or .bloom.zz) plus a <name>.manifest
// sidecar holding its exponent and round count.
//
// Every mutation is written to a write-ahead log in the .wal subdirectory
// before it is applied, and a checkpoint is logged after each flush, so
// changes made between flushes survive a crash. The log buffers writes for
// up to 200ms before they reach the disk.
//
// A Store serializes access to its filters: writers take an exclusive lock,
// Contains takes a shared one.
type Store struct {
	mu        sync.RWMutex       // protects everything below.
	directory string             // directory holding filter and manifest files.
	catalog   *skiplist.SkipList // filter name -> *storeEntry, in name order.
	wal       *wal.WAL           // write-ahead log for unflushed mutations.
	logged    int                // bytes logged since the last checkpoint.
	encoding  Encoding           // encoding used for filters created by the store.
	logger    *slog.Logger
	metrics   *Metrics
	closed    bool
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithEncoding sets the on-disk encoding for filters created by the store.
// Filters loaded from disk keep the encoding recorded in their manifest.
func WithEncoding(enc Encoding) StoreOption {
	return func(s *Store) { s.encoding = enc }
}

// WithLogger sets the logger used by the store.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = logger }
}

// WithMetrics sets the collectors updated by the store.
func WithMetrics(m *Metrics) StoreOption {
	return func(s *Store) { s.metrics = m }
}

// OpenStore opens a Store. If the directory does not exist, it will be
// created. Every filter with a manifest in the directory is loaded into
// memory, then mutations logged after the last flush are replayed.
func OpenStore(directory string, opts ...StoreOption) (*Store, error) {
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create store directory: %w", ErrIO, err)
	}
	s := &Store{
		directory: directory,
		catalog:   skiplist.New(skiplist.String),
		encoding:  EncodingGzip,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("store", directory)

	// setup the write-ahead log before touching any filter.
	if err := s.openWAL(); err != nil {
		return nil, err
	}
	if err := s.restore(); err != nil {
		s.wal.Close()
		return nil, err
	}
	s.metrics.setFilters(s.catalog.Len())
	s.logger.Info("store opened", "filters", s.catalog.Len())
	return s, nil
}

// restore loads the flushed filters, replays the log on top of them, writes
// the result back and starts a fresh log.
func (s *Store) restore() error {
	if err := s.loadFilters(); err != nil {
		return err
	}
	replayed, err := s.replayWAL()
	if err != nil {
		return err
	}
	if replayed > 0 {
		s.logger.Info("write-ahead log replayed", "records", replayed)
		// persist the replayed state so the old log can go.
		if err := s.flushLocked(); err != nil {
			return err
		}
	}
	if err := s.discardWAL(); err != nil {
		return err
	}
	return s.openWAL()
}

// loadFilters reads every manifest in the directory and the filter it names.
func (s *Store) loadFilters() error {
	files, err := os.ReadDir(s.directory)
	if err != nil {
		return fmt.Errorf("%w: list store directory: %w", ErrIO, err)
	}
	for _, file := range files {
		// skip the log directory and anything that is not a manifest.
		if file.IsDir() || !isManifestFile(file.Name()) {
			continue
		}
		name := strings.TrimSuffix(file.Name(), ManifestSuffix)
		manifest, err := ReadManifestFile(s.manifestPath(name))
		if err != nil {
			return err
		}
		filter, err := ReadFile(s.filterPath(name, manifest.Encoding), manifest.Exponent, manifest.Encoding, manifest.Options()...)
		if err != nil {
			return fmt.Errorf("load filter %q: %w", name, err)
		}
		s.catalog.Set(name, &storeEntry{
			filter:   filter,
			encoding: manifest.Encoding,
			inserted: manifest.Inserted,
			created:  manifest.CreatedUnixNano,
		})
		s.logger.Debug("filter loaded", "name", name, "exponent", manifest.Exponent, "rounds", manifest.Rounds)
	}
	return nil
}

// Create adds an empty 2^exponent bit filter under name.
func (s *Store) Create(name string, exponent int, opts ...Option) error {
	if err := validateName(name); err != nil {
		return err
	}
	filter, err := New(exponent, opts...)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.catalog.Get(name) != nil {
		return fmt.Errorf("%w: %q", ErrExists, name)
	}
	// log before the catalog changes.
	if err := s.logRecord(walRecord{op: walCreate, name: name, exponent: exponent, rounds: filter.Rounds()}); err != nil {
		return err
	}
	s.insertEntry(name, filter)
	s.logger.Debug("filter created", "name", name, "exponent", exponent, "rounds", filter.Rounds())
	return s.maybeFlush()
}

// Import stores a copy of f under name, or unions f into the existing filter
// of that name.
func (s *Store) Import(name string, f *Filter) error {
	if err := validateName(name); err != nil {
		return err
	}
	if f.Released() {
		return ErrReleased
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	// reject a mismatch before it is logged.
	if entry, err := s.lookup(name); err == nil {
		if err := entry.filter.checkShape(f); err != nil {
			return fmt.Errorf("import into %q: %w", name, err)
		}
	}
	r := walRecord{op: walImport, name: name, data: f.Bytes(), exponent: f.Exponent(), rounds: f.Rounds()}
	if err := s.logRecord(r); err != nil {
		return err
	}
	if err := s.importFilter(name, f.Clone()); err != nil {
		return err
	}
	return s.maybeFlush()
}

// Add records data in the named filter.
func (s *Store) Add(name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.writable(name)
	if err != nil {
		s.metrics.observe("add", "error")
		return err
	}
	// write to the log before the filter.
	if err := s.logRecord(walRecord{op: walAdd, name: name, data: data}); err != nil {
		s.metrics.observe("add", "error")
		return err
	}
	entry.add(data)
	s.metrics.observe("add", "ok")
	return s.maybeFlush()
}

// Contains reports whether data is probably in the named filter.
func (s *Store) Contains(name string, data []byte) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false, ErrClosed
	}
	entry, err := s.lookup(name)
	if err != nil {
		s.metrics.observe("contains", "error")
		return false, err
	}
	if entry.filter.Contains(data) {
		s.metrics.observe("contains", "hit")
		return true, nil
	}
	s.metrics.observe("contains", "miss")
	return false, nil
}

// Merge unions the filter src into dst. Both must share exponent and rounds.
func (s *Store) Merge(dst, src string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	to, err := s.writable(dst)
	if err != nil {
		return err
	}
	from, err := s.lookup(src)
	if err != nil {
		return err
	}
	if err := to.filter.checkShape(from.filter); err != nil {
		s.metrics.observe("merge", "error")
		return fmt.Errorf("merge %q into %q: %w", src, dst, err)
	}
	if err := s.logRecord(walRecord{op: walMerge, name: dst, data: []byte(src)}); err != nil {
		return err
	}
	if err := to.merge(from); err != nil {
		return err
	}
	s.metrics.observe("merge", "ok")
	s.logger.Debug("filters merged", "dst", dst, "src", src)
	return s.maybeFlush()
}

// Snapshot returns a copy of the named filter that the caller owns.
func (s *Store) Snapshot(name string) (*Filter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}
	entry, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	return entry.filter.Clone(), nil
}

// Stat returns the manifest the named filter would be flushed with.
func (s *Store) Stat(name string) (Manifest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return Manifest{}, ErrClosed
	}
	entry, err := s.lookup(name)
	if err != nil {
		return Manifest{}, err
	}
	return entry.manifest(), nil
}

// Names returns the names of all filters in sorted order.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, s.catalog.Len())
	// the skip list keeps keys ordered, walk it from the front.
	for elem := s.catalog.Front(); elem != nil; elem = elem.Next() {
		names = append(names, elem.Key().(string))
	}
	return names
}

// Drop removes the named filter and its files.
func (s *Store) Drop(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.writable(name); err != nil {
		return err
	}
	if err := s.logRecord(walRecord{op: walDrop, name: name}); err != nil {
		return err
	}
	if err := s.dropEntry(name); err != nil {
		return err
	}
	s.logger.Info("filter dropped", "name", name)
	return nil
}

// Flush writes every filter changed since the last flush. The filter file is
// written before its manifest, so a manifest on disk always names a complete
// filter.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	return s.flushLocked()
}

func (s *Store) flushLocked() error {
	for elem := s.catalog.Front(); elem != nil; elem = elem.Next() {
		name := elem.Key().(string)
		entry := elem.Value.(*storeEntry)
		// clean filters are already on disk.
		if !entry.dirty {
			continue
		}
		if entry.created == 0 {
			entry.created = nowUnixNano()
		}
		// filter first, so the manifest never points at a missing file.
		if err := WriteFile(s.filterPath(name, entry.encoding), entry.filter, entry.encoding); err != nil {
			return fmt.Errorf("flush %q: %w", name, err)
		}
		if err := WriteManifestFile(s.manifestPath(name), entry.manifest()); err != nil {
			return fmt.Errorf("flush %q: %w", name, err)
		}
		entry.dirty = false
		s.metrics.observeFlush(entry.filter.Len())
		s.logger.Info("filter flushed", "name", name, "bytes", entry.filter.Len(), "encoding", entry.encoding.String())
	}
	// everything logged so far is on disk now.
	return s.checkpoint()
}

// maybeFlush flushes once the log has grown past walFlushBytes. Must be
// called with s.mu held for writing.
func (s *Store) maybeFlush() error {
	if s.logged < walFlushBytes {
		return nil
	}
	s.logger.Debug("write-ahead log full, flushing", "bytes", s.logged)
	return s.flushLocked()
}

// Close flushes pending changes, discards the log and releases every filter.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	if err := s.flushLocked(); err != nil {
		return err
	}
	// a clean shutdown leaves nothing to replay.
	if err := s.discardWAL(); err != nil {
		return err
	}
	for elem := s.catalog.Front(); elem != nil; elem = elem.Next() {
		elem.Value.(*storeEntry).filter.Release()
	}
	s.catalog.Init()
	s.closed = true
	s.logger.Info("store closed")
	return nil
}

// insertEntry must be called with s.mu held for writing.
func (s *Store) insertEntry(name string, filter *Filter) {
	s.catalog.Set(name, &storeEntry{
		filter:   filter,
		encoding: s.encoding,
		dirty:    true,
	})
	s.metrics.setFilters(s.catalog.Len())
}

// importFilter adopts f under name or unions it into the existing filter.
// Must be called with s.mu held for writing.
func (s *Store) importFilter(name string, f *Filter) error {
	entry, err := s.lookup(name)
	if err != nil {
		s.insertEntry(name, f)
		return nil
	}
	if err := entry.filter.Combine(f); err != nil {
		return fmt.Errorf("import into %q: %w", name, err)
	}
	entry.dirty = true
	return nil
}

// dropEntry must be called with s.mu held for writing.
func (s *Store) dropEntry(name string) error {
	entry, err := s.lookup(name)
	if err != nil {
		return err
	}
	for _, path := range []string{s.manifestPath(name), s.filterPath(name, entry.encoding)} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("%w: drop %q: %w", ErrIO, name, err)
		}
	}
	entry.filter.Release()
	s.catalog.Remove(name)
	s.metrics.setFilters(s.catalog.Len())
	return nil
}

// lookup must be called with s.mu held.
func (s *Store) lookup(name string) (*storeEntry, error) {
	elem := s.catalog.Get(name)
	if elem == nil {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return elem.Value.(*storeEntry), nil
}

// writable must be called with s.mu held for writing.
func (s *Store) writable(name string) (*storeEntry, error) {
	if s.closed {
		return nil, ErrClosed
	}
	return s.lookup(name)
}

func (s *Store) manifestPath(name string) string {
	return filepath.Join(s.directory, name+ManifestSuffix)
}

func (s *Store) filterPath(name string, enc Encoding) string {
	return filepath.Join(s.directory, name+enc.Suffix())
}

func (e *storeEntry) add(data []byte) {
	e.filter.Add(data)
	e.inserted++
	e.dirty = true
}

func (e *storeEntry) merge(from *storeEntry) error {
	if err := e.filter.Combine(from.filter); err != nil {
		return err
	}
	e.inserted += from.inserted
	e.dirty = true
	return nil
}

func (e *storeEntry) manifest() Manifest {
	return Manifest{
		Exponent:        e.filter.Exponent(),
		Rounds:          e.filter.Rounds(),
		Encoding:        e.encoding,
		Inserted:        e.inserted,
		CreatedUnixNano: e.created,
	}
}
