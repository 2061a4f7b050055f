// Package keyval implements SPEC_FULL.md component 4.E, the keyval store
// layer: an ordered index keyed by (object-id, entry-type, key-bytes) built
// over internal/storage, with a handle-info counter record per (object,
// type) flavor and a resumable iteration protocol backed by a position
// cache (pcache).
package keyval

import (
	"encoding/binary"

	"github.com/dreamware/pvfsmeta/internal/errs"
	"github.com/dreamware/pvfsmeta/internal/storage"
)

// EntryType distinguishes the flavor of a keyval entry, per spec.md §3.
type EntryType byte

const (
	Attribute EntryType = iota
	DirectoryEntry
	Count
)

// Flags is the bitmask of spec.md §4.E.1/4.E.2.
type Flags uint32

const (
	Sync Flags = 1 << iota
	NoOverwrite
	OnlyOverwrite
	FlagDirectoryEntry
	BinaryKey
	HandleCount
	IterateRemove
)

// OID is the 128-bit opaque object handle of spec.md §3.
type OID [16]byte

// maxUserKeyLen mirrors the legacy page-constrained constant named in
// spec.md §6 ("legacy value 512").
const maxUserKeyLen = 512

// physicalKey builds the storage engine key: [OID(16B)][type(1B)][user key],
// per spec.md §6's keyval physical key encoding.
func physicalKey(oid OID, typ EntryType, userKey []byte) []byte {
	k := make([]byte, 0, 16+1+len(userKey))
	k = append(k, oid[:]...)
	k = append(k, byte(typ))
	k = append(k, userKey...)
	return k
}

// countKey is the handle-info record's physical key: the empty user-key
// under (oid, typ), per spec.md §9's "counter record empty-key collision".
func countKey(oid OID, typ EntryType) []byte {
	return physicalKey(oid, typ, nil)
}

// Store is the keyval engine. It owns no goroutines; every operation
// executes synchronously against the underlying storage.Store, matching
// the collaborator contract of spec.md §6 (the job-id-returning async
// contract of §4.E.1 is the caller's concern; Store operations return
// their results directly).
type Store struct {
	engine *storage.Store
	pc     *pcache
}

// New creates a keyval store over a fresh storage engine.
func New() *Store {
	return &Store{engine: storage.New(), pc: newPcache(4096)}
}

// Read implements spec.md 4.E.1 `read`. bufSize bounds the returned value;
// if the stored value is larger, a BufferTooSmall error carrying the
// required size is returned per §4.E.5/§7 ("not logged as an error"), per
// spec.md S3 (`buf_sz=0` on a 1-byte value returns `BufferTooSmall` with
// required=1). A negative bufSize means "unbounded" for callers that
// already hold a large enough buffer and don't want the size check.
func (s *Store) Read(oid OID, typ EntryType, key []byte, bufSize int) ([]byte, error) {
	v, err := s.engine.Get(physicalKey(oid, typ, key))
	if err != nil {
		return nil, err
	}
	if bufSize >= 0 && len(v) > bufSize {
		return nil, errs.TooSmall(len(v))
	}
	return v, nil
}

// Write implements spec.md 4.E.1 `write` with the flags of 4.E.2.
func (s *Store) Write(oid OID, typ EntryType, key, value []byte, flags Flags) error {
	if len(key) > maxUserKeyLen {
		return errs.New(errs.BadArg, "key length %d exceeds %d", len(key), maxUserKeyLen)
	}
	if flags&FlagDirectoryEntry != 0 {
		typ = DirectoryEntry
	}
	pk := physicalKey(oid, typ, key)

	if flags&OnlyOverwrite != 0 {
		if _, err := s.engine.Get(pk); err != nil {
			return err
		}
		return s.engine.Put(pk, value)
	}

	if flags&NoOverwrite != 0 {
		if err := s.engine.PutOnce(pk, value); err != nil {
			return err
		}
		if flags&HandleCount != 0 {
			s.bumpHandleCount(oid, typ, 1)
		}
		if flags&Sync != 0 {
			return s.engine.Sync()
		}
		return nil
	}

	if err := s.engine.Put(pk, value); err != nil {
		return err
	}
	if flags&Sync != 0 {
		return s.engine.Sync()
	}
	return nil
}

// Remove implements spec.md 4.E.1 `remove`.
func (s *Store) Remove(oid OID, typ EntryType, key []byte, flags Flags) error {
	if flags&FlagDirectoryEntry != 0 {
		typ = DirectoryEntry
	}
	existed, err := s.engine.Del(physicalKey(oid, typ, key))
	if err != nil {
		return err
	}
	if existed && flags&HandleCount != 0 {
		s.bumpHandleCount(oid, typ, -1)
	}
	return nil
}

// ReadList/WriteList/RemoveList implement the batched variants of 4.E.1 by
// looping the single-key operations; the legacy engine pipelines these for
// throughput, but correctness does not depend on that.
func (s *Store) ReadList(oid OID, typ EntryType, keys [][]byte, bufSize int) ([][]byte, []error) {
	vals := make([][]byte, len(keys))
	errsOut := make([]error, len(keys))
	for i, k := range keys {
		vals[i], errsOut[i] = s.Read(oid, typ, k, bufSize)
	}
	return vals, errsOut
}

func (s *Store) WriteList(oid OID, typ EntryType, keys, values [][]byte, flags Flags) []error {
	out := make([]error, len(keys))
	for i := range keys {
		out[i] = s.Write(oid, typ, keys[i], values[i], flags)
	}
	return out
}

func (s *Store) RemoveList(oid OID, typ EntryType, keys [][]byte, flags Flags) []error {
	out := make([]error, len(keys))
	for i, k := range keys {
		out[i] = s.Remove(oid, typ, k, flags)
	}
	return out
}

// Flush implements spec.md 4.E.1 `flush`, forcing a sync of the underlying
// engine regardless of whether Sync was requested per-write.
func (s *Store) Flush() error { return s.engine.Sync() }

// GetHandleInfo implements spec.md 4.E.1/4.E.4 `get_handle_info`: the
// authoritative count of entries of typ under oid. Returns NotFound if no
// count record exists (spec.md S5: "count record deleted; get_handle_info
// -> NotFound").
func (s *Store) GetHandleInfo(oid OID, typ EntryType) (int32, error) {
	v, err := s.engine.Get(countKey(oid, typ))
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(v)), nil
}

// bumpHandleCount implements spec.md §4.E.4: increments or decrements the
// Count record for (oid,typ), deleting it when it reaches zero. Errors are
// deliberately swallowed here: handle-info bookkeeping is best-effort
// alongside the primary write/remove, matching the legacy behavior of never
// failing the primary operation because of counter maintenance.
func (s *Store) bumpHandleCount(oid OID, typ EntryType, delta int32) {
	ck := countKey(oid, typ)
	var cur int32
	if v, err := s.engine.Get(ck); err == nil {
		cur = int32(binary.BigEndian.Uint32(v))
	}
	cur += delta
	if cur <= 0 {
		_, _ = s.engine.Del(ck)
		return
	}
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(cur))
	_ = s.engine.Put(ck, buf)
}
