// Package store persists an execution trace of a simulator run: one record
// per committed instruction plus a digest of the final architectural state.
// The trace is a diagnostic sink, the simulator itself keeps no state between
// runs.
package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"
	"golang.org/x/crypto/blake2b"

	"github.com/eigerco/bilberry/internal/riscv"
)

var ErrClosed = errors.New("trace store closed")

var (
	commitPrefix = []byte("commit/")
	digestKey    = []byte("state/digest")
)

// Record is one committed instruction.
type Record struct {
	Tick    uint64
	PC      uint32
	Word    uint32
	Rd      riscv.Reg
	RdWrite bool
	RdValue uint32
}

// TraceStore writes trace records to a pebble database. Safe for use from a
// single run; the mutex only guards Close against late writes.
type TraceStore struct {
	db     *pebble.DB
	mu     sync.Mutex
	closed bool
}

func Open(dir string) (*TraceStore, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open trace store: %w", err)
	}
	return &TraceStore{db: db}, nil
}

// PutRecord appends one commit record, keyed by tick so iteration replays the
// commit order.
func (s *TraceStore) PutRecord(r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	key := make([]byte, len(commitPrefix)+8)
	copy(key, commitPrefix)
	binary.BigEndian.PutUint64(key[len(commitPrefix):], r.Tick)

	value := make([]byte, 14)
	binary.LittleEndian.PutUint32(value[0:], r.PC)
	binary.LittleEndian.PutUint32(value[4:], r.Word)
	value[8] = byte(r.Rd)
	if r.RdWrite {
		value[9] = 1
	}
	binary.LittleEndian.PutUint32(value[10:], r.RdValue)

	return s.db.Set(key, value, pebble.NoSync)
}

// PutStateDigest stores the blake2b digest of the final state dump, so two
// runs can be compared by hash alone.
func (s *TraceStore) PutStateDigest(dump string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	digest := blake2b.Sum256([]byte(dump))
	return s.db.Set(digestKey, digest[:], pebble.Sync)
}

// StateDigest reads back the stored final-state digest.
func (s *TraceStore) StateDigest() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	value, closer, err := s.db.Get(digestKey)
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Records replays the stored commits in tick order.
func (s *TraceStore) Records() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	upper := append(append([]byte{}, commitPrefix...), 0xFF)
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: commitPrefix, UpperBound: upper})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var records []Record
	for iter.First(); iter.Valid(); iter.Next() {
		key := iter.Key()
		value, err := iter.ValueAndErr()
		if err != nil {
			return nil, err
		}
		if len(key) != len(commitPrefix)+8 || len(value) != 14 {
			return nil, fmt.Errorf("malformed trace record %q", key)
		}
		records = append(records, Record{
			Tick:    binary.BigEndian.Uint64(key[len(commitPrefix):]),
			PC:      binary.LittleEndian.Uint32(value[0:]),
			Word:    binary.LittleEndian.Uint32(value[4:]),
			Rd:      riscv.Reg(value[8]),
			RdWrite: value[9] == 1,
			RdValue: binary.LittleEndian.Uint32(value[10:]),
		})
	}
	return records, iter.Error()
}

func (s *TraceStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
