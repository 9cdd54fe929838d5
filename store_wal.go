package seenindex

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	wal "github.com/danish45007/GoLogMatrix"
	"google.golang.org/protobuf/encoding/protowire"
)

// walOp is the kind of store mutation a log record replays.
type walOp uint64

const (
	walCreate walOp = iota + 1
	walAdd
	walMerge
	walImport
	walDrop
)

// walRecord is one logged store mutation.
//
// Wire layout (protobuf):
//
//	1: op (varint)
//	2: name (bytes)
//	3: data (bytes) - the element for add, the source name for merge, the
//	   raw bits for import
//	4: exponent (varint)
//	5: rounds (varint)
type walRecord struct {
	op       walOp
	name     string
	data     []byte
	exponent int
	rounds   uint32
}

const (
	walOpField       protowire.Number = 1
	walNameField     protowire.Number = 2
	walDataField     protowire.Number = 3
	walExponentField protowire.Number = 4
	walRoundsField   protowire.Number = 5
)

func (r walRecord) marshal() []byte {
	b := make([]byte, 0, len(r.name)+len(r.data)+24)
	b = appendVarintField(b, walOpField, uint64(r.op))
	b = protowire.AppendTag(b, walNameField, protowire.BytesType)
	b = protowire.AppendString(b, r.name)
	if len(r.data) > 0 {
		b = protowire.AppendTag(b, walDataField, protowire.BytesType)
		b = protowire.AppendBytes(b, r.data)
	}
	if r.exponent != 0 {
		b = appendVarintField(b, walExponentField, uint64(r.exponent))
	}
	if r.rounds != 0 {
		b = appendVarintField(b, walRoundsField, uint64(r.rounds))
	}
	return b
}

func unmarshalWALRecord(b []byte) (walRecord, error) {
	var r walRecord
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return walRecord{}, fmt.Errorf("%w: %w", ErrCorruptLog, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return walRecord{}, fmt.Errorf("%w: field %d: %w", ErrCorruptLog, num, protowire.ParseError(n))
			}
			b = b[n:]
			switch num {
			case walOpField:
				r.op = walOp(v)
			case walExponentField:
				r.exponent = int(v)
			case walRoundsField:
				r.rounds = uint32(v)
			}
		case typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return walRecord{}, fmt.Errorf("%w: field %d: %w", ErrCorruptLog, num, protowire.ParseError(n))
			}
			b = b[n:]
			switch num {
			case walNameField:
				r.name = string(v)
			case walDataField:
				r.data = v
			}
		default:
			// skip fields written by newer versions.
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return walRecord{}, fmt.Errorf("%w: field %d: %w", ErrCorruptLog, num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	if r.op < walCreate || r.op > walDrop || r.name == "" {
		return walRecord{}, fmt.Errorf("%w: op %d name %q", ErrCorruptLog, r.op, r.name)
	}
	return r, nil
}

func (s *Store) walDirectory() string {
	return filepath.Join(s.directory, WALDirectory)
}

func (s *Store) openWAL() error {
	log, err := wal.OpenWAL(s.walDirectory(), true, walMaxFileSize, walMaxSegments)
	if err != nil {
		return fmt.Errorf("%w: open write-ahead log: %w", ErrIO, err)
	}
	s.wal = log
	s.logged = 0
	return nil
}

// logRecord must be called with s.mu held for writing, before the mutation
// it describes is applied.
func (s *Store) logRecord(r walRecord) error {
	data := r.marshal()
	if err := s.wal.WriteEntity(data); err != nil {
		s.metrics.observe("wal", "error")
		return fmt.Errorf("%w: write-ahead log: %w", ErrIO, err)
	}
	s.logged += len(data)
	return nil
}

// replayWAL reapplies the mutations logged after the last checkpoint. Every
// operation is idempotent on bits, so records already covered by a flush
// that finished without its checkpoint replay harmlessly.
func (s *Store) replayWAL() (int, error) {
	entries, err := s.wal.ReadAllFromOffset(0, true)
	if err != nil {
		return 0, fmt.Errorf("%w: read write-ahead log: %w", ErrIO, err)
	}
	replayed := 0
	for _, entry := range entries {
		// checkpoints carry no mutation.
		if entry.GetIsCheckPoint() {
			continue
		}
		r, err := unmarshalWALRecord(entry.GetData())
		if err != nil {
			return replayed, err
		}
		if err := s.apply(r); err != nil {
			return replayed, fmt.Errorf("replay %d %q: %w", r.op, r.name, err)
		}
		replayed++
	}
	return replayed, nil
}

// apply performs a logged mutation without logging it again.
func (s *Store) apply(r walRecord) error {
	switch r.op {
	case walCreate:
		filter, err := New(r.exponent, WithRounds(r.rounds))
		if err != nil {
			return err
		}
		// the create may already have reached the disk.
		if s.catalog.Get(r.name) == nil {
			s.insertEntry(r.name, filter)
		}
	case walAdd:
		entry, err := s.lookup(r.name)
		if err != nil {
			return err
		}
		entry.add(r.data)
	case walMerge:
		to, err := s.lookup(r.name)
		if err != nil {
			return err
		}
		from, err := s.lookup(string(r.data))
		if err != nil {
			return err
		}
		return to.merge(from)
	case walImport:
		filter, err := FromBytes(r.data, r.exponent, WithRounds(r.rounds))
		if err != nil {
			return err
		}
		return s.importFilter(r.name, filter)
	case walDrop:
		// the files may be gone already.
		if err := s.dropEntry(r.name); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
	}
	return nil
}

// checkpoint marks everything logged so far as flushed, and recreates the log
// once it has spread over walRecycleSegments segments. Must be called with
// s.mu held for writing, right after a successful flush.
func (s *Store) checkpoint() error {
	if s.logged == 0 {
		return nil
	}
	if err := s.wal.CreateCheckPoint(nil); err != nil {
		return fmt.Errorf("%w: checkpoint write-ahead log: %w", ErrIO, err)
	}
	s.logged = 0

	segments, err := filepath.Glob(filepath.Join(s.walDirectory(), "segment-*"))
	if err != nil || len(segments) < walRecycleSegments {
		return nil
	}
	if err := s.discardWAL(); err != nil {
		return err
	}
	s.logger.Debug("write-ahead log recycled", "segments", len(segments))
	return s.openWAL()
}

// discardWAL closes the log and deletes its files. Only safe once every
// logged mutation has been flushed.
func (s *Store) discardWAL() error {
	if err := s.wal.Close(); err != nil {
		return fmt.Errorf("%w: close write-ahead log: %w", ErrIO, err)
	}
	if err := os.RemoveAll(s.walDirectory()); err != nil {
		return fmt.Errorf("%w: remove write-ahead log: %w", ErrIO, err)
	}
	return nil
}
