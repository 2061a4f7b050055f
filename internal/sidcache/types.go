// Package sidcache implements SPEC_FULL.md component 4.H, the SID cache:
// a primary table of remote server records, secondary attribute indexes,
// a typed server-role table, and a policy-driven selector used to place
// new objects (spec.md §4.H.1-4.H.4).
package sidcache

import (
	"github.com/google/uuid"
)

// SID is the 128-bit opaque server id of spec.md §3.
type SID [16]byte

// String renders the canonical 36-character lowercase hex-with-dashes form
// named in spec.md §6's on-disk text format.
func (s SID) String() string {
	return uuid.UUID(s).String()
}

// ParseSID parses the canonical 36-character form back into a SID.
func ParseSID(s string) (SID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return SID{}, err
	}
	return SID(u), nil
}

// NewSID generates a fresh random SID, used by object generation and by
// administrative tooling adding new servers to the catalog.
func NewSID() SID {
	return SID(uuid.New())
}

// MarshalText renders the canonical text form, so a SID serializes as a
// plain JSON string rather than an array of 16 numbers.
func (s SID) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText parses the canonical text form.
func (s *SID) UnmarshalText(text []byte) error {
	parsed, err := ParseSID(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// TypeBit is one of the fixed enumerated server roles of spec.md §4.H.
type TypeBit uint32

const (
	TypeRoot TypeBit = 1 << iota
	TypePrime
	TypeConfig
	TypeLocal
	TypeMeta
	TypeData
	TypeDirM
	TypeDirD
	TypeSecurity
	TypeMe
)

// ValidTypes is the bitwise OR of every legal type bit, per spec.md §4.H.
const ValidTypes = TypeRoot | TypePrime | TypeConfig | TypeLocal | TypeMeta |
	TypeData | TypeDirM | TypeDirD | TypeSecurity | TypeMe

var typeNames = map[string]TypeBit{
	"Root":     TypeRoot,
	"Prime":    TypePrime,
	"Config":   TypeConfig,
	"Local":    TypeLocal,
	"Meta":     TypeMeta,
	"Data":     TypeData,
	"DirM":     TypeDirM,
	"DirD":     TypeDirD,
	"Security": TypeSecurity,
	"Me":       TypeMe,
}

// allTypeBits enumerates every legal bit individually, for code that must
// iterate membership (the catalog's type-table maintenance) rather than
// parse or render the text format.
var allTypeBits = []TypeBit{
	TypeRoot, TypePrime, TypeConfig, TypeLocal, TypeMeta,
	TypeData, TypeDirM, TypeDirD, TypeSecurity, TypeMe,
}

// ServerRecord is the primary-table record of spec.md §3: `{sid, bmi_addr,
// url, attrs}`. Attrs is keyed by attribute name since the set of legal
// attribute names is deployment-defined (rack, zone, ...), unlike the
// fixed-size N_ATTR array of the legacy source.
type ServerRecord struct {
	SID SID
	// Alias is the optional human-readable name from the text format's
	// `Alias NAME` directive; it plays no role in indexing or selection.
	Alias   string
	BMIAddr uint64
	URL     string
	Attrs   map[string]string
	Types   TypeBit
}
