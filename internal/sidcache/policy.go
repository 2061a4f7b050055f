package sidcache

// Predicate is a single join_criteria term of spec.md §4.H.1: a candidate
// SID passes when its record's Attrs[Attr] == Value, or, when Value is
// wildcardValue ("*"), when the record has Attr at all.
type Predicate struct {
	Attr  string `yaml:"attr"`
	Value string `yaml:"value"`
}

// SetPredicate is the boolean expression half of a set_criteria entry.
// The legacy source generates these from an external policy DSL; here a
// predicate is either the universal "always true" (Always) or a single
// attribute equality/inequality test, which covers every case the policy
// fixtures in this repository express.
type SetPredicate struct {
	Always bool   `yaml:"always,omitempty"`
	Attr   string `yaml:"attr,omitempty"`
	Equals string `yaml:"equals,omitempty"`
	Not    bool   `yaml:"not,omitempty"`
}

// Match reports whether rec satisfies p.
func (p SetPredicate) Match(rec ServerRecord) bool {
	if p.Always {
		return true
	}
	v, ok := rec.Attrs[p.Attr]
	eq := ok && v == p.Equals
	if p.Not {
		return !eq
	}
	return eq
}

// SetCriterion pairs a predicate with the maximum number of SIDs it may
// contribute to a selection, per spec.md §4.H.1.
type SetCriterion struct {
	CountMax int          `yaml:"count_max"`
	Predicate SetPredicate `yaml:"predicate"`
}

// Policy is the selector configuration of spec.md §4.H.1. Copies is the
// per-object replica count this policy chooses, returned to the caller
// of select_servers alongside the SID list.
type Policy struct {
	Name         string         `yaml:"name"`
	JoinCriteria []Predicate    `yaml:"join_criteria"`
	SpreadAttr   string         `yaml:"spread_attr,omitempty"`
	SetCriteria  []SetCriterion `yaml:"set_criteria"`
	Copies       int            `yaml:"copies"`
}
