package sidcache

import (
	"strings"

	"golang.org/x/exp/slices"
)

// wildcardValue marks a join_criteria predicate that only requires the
// attribute to be present, regardless of its value (spec.md scenario S6's
// `join=[(rack,=,*)]`).
const wildcardValue = "*"

// joinCandidates returns the sorted intersection of SIDs matching every
// join_criteria predicate, per spec.md §4.H.1's "cursor join across the
// attribute secondary indexes". An empty criteria list matches the whole
// catalog.
func joinCandidates(cat *Catalog, criteria []Predicate) []SID {
	if len(criteria) == 0 {
		all := cat.All()
		out := make([]SID, len(all))
		for i, rec := range all {
			out[i] = rec.SID
		}
		return out
	}

	var current map[SID]struct{}
	for i, pred := range criteria {
		var matched []SID
		if pred.Value == wildcardValue {
			matched = cat.withAttrPresent(pred.Attr)
		} else {
			matched = cat.ByAttr(pred.Attr, pred.Value)
		}
		if i == 0 {
			current = make(map[SID]struct{}, len(matched))
			for _, sid := range matched {
				current[sid] = struct{}{}
			}
			continue
		}
		next := make(map[SID]struct{}, len(matched))
		for _, sid := range matched {
			if _, ok := current[sid]; ok {
				next[sid] = struct{}{}
			}
		}
		current = next
	}

	out := make([]SID, 0, len(current))
	for sid := range current {
		out = append(out, sid)
	}
	slices.SortFunc(out, func(a, b SID) int { return strings.Compare(a.String(), b.String()) })
	return out
}

// spreadOrder reorders candidates so that consecutive entries differ in
// their spreadAttr value where possible, approximating "maximally varied"
// placement (spec.md §4.H.1's spread_attr) via round-robin interleaving
// across attribute-value groups.
func spreadOrder(cat *Catalog, candidates []SID, spreadAttr string) []SID {
	if spreadAttr == "" {
		return candidates
	}
	groups := make(map[string][]SID)
	var order []string
	for _, sid := range candidates {
		rec, err := cat.Get(sid)
		val := ""
		if err == nil {
			val = rec.Attrs[spreadAttr]
		}
		if _, ok := groups[val]; !ok {
			order = append(order, val)
		}
		groups[val] = append(groups[val], sid)
	}
	slices.Sort(order)

	out := make([]SID, 0, len(candidates))
	for {
		progressed := false
		for _, key := range order {
			if len(groups[key]) == 0 {
				continue
			}
			out = append(out, groups[key][0])
			groups[key] = groups[key][1:]
			progressed = true
		}
		if !progressed {
			break
		}
	}
	return out
}

// SelectServers implements spec.md §4.H.1's select_servers: it returns up
// to wantN SIDs drawn from the join_criteria intersection, diversified by
// spread_attr and quota-bounded per set_criteria entry, plus the policy's
// replica count.
func SelectServers(cat *Catalog, policy Policy, wantN int) (sids []SID, copies int) {
	candidates := joinCandidates(cat, policy.JoinCriteria)
	candidates = spreadOrder(cat, candidates, policy.SpreadAttr)

	criteria := policy.SetCriteria
	if len(criteria) == 0 {
		criteria = []SetCriterion{{CountMax: wantN, Predicate: SetPredicate{Always: true}}}
	}

	seen := make(map[SID]struct{}, wantN)
	out := make([]SID, 0, wantN)

	for _, crit := range criteria {
		taken := 0
		for _, sid := range candidates {
			if len(out) >= wantN {
				break
			}
			if taken >= crit.CountMax {
				break
			}
			if _, ok := seen[sid]; ok {
				continue
			}
			rec, err := cat.Get(sid)
			if err != nil {
				continue
			}
			if !crit.Predicate.Match(rec) {
				continue
			}
			out = append(out, sid)
			seen[sid] = struct{}{}
			taken++
		}
		if len(out) >= wantN {
			break
		}
	}

	return out, policy.Copies
}

// withAttrPresent returns every SID that has any value recorded for attr.
func (c *Catalog) withAttrPresent(attr string) []SID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	vals, ok := c.secondary[attr]
	if !ok {
		return nil
	}
	var out []SID
	for _, sids := range vals {
		out = append(out, sids...)
	}
	slices.SortFunc(out, func(a, b SID) int { return strings.Compare(a.String(), b.String()) })
	return out
}
