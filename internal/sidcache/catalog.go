package sidcache

import (
	"strings"
	"sync"

	"golang.org/x/exp/slices"

	"github.com/dreamware/pvfsmeta/internal/errs"
)

// Catalog is the SID cache's primary table plus secondary indexes, per
// spec.md §4.H. The primary/secondary/type tables are kept consistent
// under a single mutex — the spec permits this (§5: "this layer does not
// add a mutex across primary/secondary index writes" only if the engine
// does it for you; a plain in-memory map here plays that engine's role,
// so one mutex keeps the invariant of §3 "primary and secondary indexes
// are consistent" trivially true).
type Catalog struct {
	mu sync.RWMutex

	primary map[SID]*ServerRecord

	// secondary[attr][value] is the sorted list of SIDs whose Attrs[attr]
	// == value, implementing spec.md §4.H's "one per attribute (duplicate
	// keys allowed, sorted)" secondary index.
	secondary map[string]map[string][]SID

	// typeTable[bit] holds every SID with that role bit set, the
	// "(type_bit,sid)" table of spec.md §4.H. No separate sid-keyed mirror
	// map is kept.
	typeTable map[TypeBit]map[SID]struct{}
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		primary:   make(map[SID]*ServerRecord),
		secondary: make(map[string]map[string][]SID),
		typeTable: make(map[TypeBit]map[SID]struct{}),
	}
}

// Add inserts or replaces a server record, rebuilding its secondary index
// entries and type-table membership.
func (c *Catalog) Add(rec ServerRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.primary[rec.SID]; ok {
		c.unindexLocked(old)
	}
	cp := rec
	cp.Attrs = make(map[string]string, len(rec.Attrs))
	for k, v := range rec.Attrs {
		cp.Attrs[k] = v
	}
	c.primary[rec.SID] = &cp
	c.indexLocked(&cp)
}

// Remove deletes a server record and all of its index entries.
func (c *Catalog) Remove(sid SID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.primary[sid]
	if !ok {
		return false
	}
	c.unindexLocked(rec)
	delete(c.primary, sid)
	return true
}

// Get returns a copy of the record for sid.
func (c *Catalog) Get(sid SID) (ServerRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.primary[sid]
	if !ok {
		return ServerRecord{}, errs.New(errs.NotFound, "unknown sid")
	}
	return cloneRecord(rec), nil
}

// All returns a copy of every record, sorted by SID text form, suitable
// for deterministic iteration (used by Save).
func (c *Catalog) All() []ServerRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ServerRecord, 0, len(c.primary))
	for _, rec := range c.primary {
		out = append(out, cloneRecord(rec))
	}
	slices.SortFunc(out, func(a, b ServerRecord) int { return strings.Compare(a.SID.String(), b.SID.String()) })
	return out
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.primary)
}

// ByAttr returns every SID whose Attrs[attr] == value, in sorted order.
func (c *Catalog) ByAttr(attr, value string) []SID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	vals, ok := c.secondary[attr]
	if !ok {
		return nil
	}
	sids := vals[value]
	out := make([]SID, len(sids))
	copy(out, sids)
	return out
}

// ByType returns every SID with typ set.
func (c *Catalog) ByType(typ TypeBit) []SID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	set := c.typeTable[typ]
	out := make([]SID, 0, len(set))
	for sid := range set {
		out = append(out, sid)
	}
	slices.SortFunc(out, func(a, b SID) int { return strings.Compare(a.String(), b.String()) })
	return out
}

func (c *Catalog) indexLocked(rec *ServerRecord) {
	for attr, val := range rec.Attrs {
		if c.secondary[attr] == nil {
			c.secondary[attr] = make(map[string][]SID)
		}
		list := append(c.secondary[attr][val], rec.SID)
		slices.SortFunc(list, func(a, b SID) int { return strings.Compare(a.String(), b.String()) })
		c.secondary[attr][val] = list
	}
	for _, bit := range allTypeBits {
		if rec.Types&bit != 0 {
			if c.typeTable[bit] == nil {
				c.typeTable[bit] = make(map[SID]struct{})
			}
			c.typeTable[bit][rec.SID] = struct{}{}
		}
	}
}

func (c *Catalog) unindexLocked(rec *ServerRecord) {
	for attr, val := range rec.Attrs {
		list := c.secondary[attr][val]
		for i, sid := range list {
			if sid == rec.SID {
				c.secondary[attr][val] = append(list[:i], list[i+1:]...)
				break
			}
		}
	}
	for _, set := range c.typeTable {
		delete(set, rec.SID)
	}
}

func cloneRecord(rec *ServerRecord) ServerRecord {
	cp := *rec
	cp.Attrs = make(map[string]string, len(rec.Attrs))
	for k, v := range rec.Attrs {
		cp.Attrs[k] = v
	}
	return cp
}
