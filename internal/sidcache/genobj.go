package sidcache

import "github.com/google/uuid"

// OID is a freshly generated object identifier, independent of any
// particular storage engine's own OID representation — callers translate
// it into their own key encoding.
type OID [16]byte

func newOID() OID { return OID(uuid.New()) }

// GeneratedObject is one entry filled in by GenMeta/GenData: a fresh OID
// plus the replica set chosen for it, per spec.md §4.H.2.
type GeneratedObject struct {
	OID  OID
	SIDs []SID
}

// genObjects is the shared body of GenMeta/GenData: generate n fresh
// OIDs, invoke the selector once for a pool of wantN servers, then
// distribute policy.Copies SIDs round-robin into each object.
func genObjects(cat *Catalog, policy Policy, n int) ([]GeneratedObject, error) {
	copies := policy.Copies
	if copies <= 0 {
		copies = 1
	}
	wantN := n * copies
	pool, _ := SelectServers(cat, policy, wantN)
	if len(pool) == 0 {
		return nil, errNoServers
	}

	objs := make([]GeneratedObject, n)
	cursor := 0
	for i := range objs {
		objs[i].OID = newOID()
		objs[i].SIDs = make([]SID, copies)
		for j := 0; j < copies; j++ {
			objs[i].SIDs[j] = pool[cursor%len(pool)]
			cursor++
		}
	}
	return objs, nil
}

// GenMeta fills n fresh metadata object-refs per spec.md §4.H.2. fsID is
// accepted for parity with the legacy call signature; this layer does not
// yet vary selection by filesystem.
func GenMeta(cat *Catalog, policy Policy, fsID uint32, n int) ([]GeneratedObject, error) {
	return genObjects(cat, policy, n)
}

// GenData fills n fresh data object-refs per spec.md §4.H.2.
func GenData(cat *Catalog, policy Policy, fsID uint32, n int) ([]GeneratedObject, error) {
	return genObjects(cat, policy, n)
}
