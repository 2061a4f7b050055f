package sidcache

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/dreamware/pvfsmeta/internal/errs"
)

const (
	tagDefinesOpen  = "<ServerDefines>"
	tagDefinesClose = "</ServerDefines>"
	tagDefOpen      = "<ServerDef>"
	tagDefClose     = "</ServerDef>"
)

// Load parses the text stream of spec.md §6's `<ServerDefines>` format
// into a fresh Catalog. Duplicate directive keys within one `<ServerDef>`
// block are rejected; a `<ServerDef>` block naming an unrecognized type
// word aborts loading that one server (the rest of the stream still
// loads).
func Load(r io.Reader) (*Catalog, error) {
	cat := NewCatalog()
	sc := bufio.NewScanner(r)

	var cur map[string]string
	var curAttrs []string
	var curTypes []string
	inDef := false

	flush := func() error {
		rec, skip, err := buildRecord(cur, curAttrs, curTypes)
		if err != nil {
			return err
		}
		if !skip {
			cat.Add(rec)
		}
		cur = nil
		curAttrs = nil
		curTypes = nil
		return nil
	}

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		switch line {
		case tagDefinesOpen, tagDefinesClose:
			continue
		case tagDefOpen:
			inDef = true
			cur = make(map[string]string)
			continue
		case tagDefClose:
			if !inDef {
				return nil, errs.New(errs.BadArg, "unmatched </ServerDef>")
			}
			if err := flush(); err != nil {
				return nil, err
			}
			inDef = false
			continue
		}
		if !inDef {
			// Unknown content outside any block is silently discarded.
			continue
		}

		key, rest, ok := splitDirective(line)
		if !ok {
			continue
		}
		switch key {
		case "Alias", "SID", "Address":
			if _, dup := cur[key]; dup {
				return nil, errs.New(errs.BadArg, "duplicate %s directive in ServerDef", key)
			}
			cur[key] = rest
		case "Attributes":
			curAttrs = strings.Fields(rest)
		case "Type":
			curTypes = strings.Fields(rest)
		default:
			// Unknown directive keywords are silently discarded.
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errs.Wrap(err, "reading server definitions")
	}
	if inDef {
		return nil, errs.New(errs.BadArg, "unterminated <ServerDef>")
	}
	return cat, nil
}

func splitDirective(line string) (key, rest string, ok bool) {
	i := strings.IndexAny(line, " \t")
	if i < 0 {
		return line, "", true
	}
	return line[:i], strings.TrimSpace(line[i+1:]), true
}

func buildRecord(fields map[string]string, attrPairs, typeWords []string) (rec ServerRecord, skip bool, err error) {
	if fields == nil {
		return ServerRecord{}, true, nil
	}
	sidText, ok := fields["SID"]
	if !ok {
		return ServerRecord{}, false, errs.New(errs.BadArg, "ServerDef missing SID")
	}
	sid, perr := ParseSID(sidText)
	if perr != nil {
		return ServerRecord{}, false, errs.New(errs.BadArg, "bad SID %q: %v", sidText, perr)
	}

	rec.SID = sid
	rec.Alias = fields["Alias"]
	rec.URL = fields["Address"]
	rec.Attrs = make(map[string]string, len(attrPairs))
	for _, pair := range attrPairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		rec.Attrs[k] = v
	}

	for _, word := range typeWords {
		bit, ok := typeNames[word]
		if !ok {
			// Unknown type word aborts loading this one server.
			return ServerRecord{}, true, nil
		}
		rec.Types |= bit
	}
	return rec, false, nil
}

// Save emits every catalog record in the text format, sorted by SID.
func Save(w io.Writer, cat *Catalog) error {
	return saveRecords(w, cat.All())
}

// SaveList emits only the records whose SIDs appear in sids.
func SaveList(w io.Writer, cat *Catalog, sids []SID) error {
	want := make(map[SID]struct{}, len(sids))
	for _, sid := range sids {
		want[sid] = struct{}{}
	}
	var recs []ServerRecord
	for _, rec := range cat.All() {
		if _, ok := want[rec.SID]; ok {
			recs = append(recs, rec)
		}
	}
	return saveRecords(w, recs)
}

func saveRecords(w io.Writer, recs []ServerRecord) error {
	slices.SortFunc(recs, func(a, b ServerRecord) int { return strings.Compare(a.SID.String(), b.SID.String()) })

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, tagDefinesOpen)
	for _, rec := range recs {
		fmt.Fprintln(bw, tagDefOpen)
		if rec.Alias != "" {
			fmt.Fprintf(bw, "    Alias %s\n", rec.Alias)
		}
		fmt.Fprintf(bw, "    SID %s\n", rec.SID.String())
		fmt.Fprintf(bw, "    Address %s\n", rec.URL)
		if len(rec.Attrs) > 0 {
			names := make([]string, 0, len(rec.Attrs))
			for k := range rec.Attrs {
				names = append(names, k)
			}
			slices.Sort(names)
			pairs := make([]string, len(names))
			for i, k := range names {
				pairs[i] = k + "=" + rec.Attrs[k]
			}
			fmt.Fprintf(bw, "    Attributes %s\n", strings.Join(pairs, " "))
		}
		if words := typeWords(rec.Types); len(words) > 0 {
			fmt.Fprintf(bw, "    Type %s\n", strings.Join(words, " "))
		}
		fmt.Fprintln(bw, tagDefClose)
	}
	fmt.Fprintln(bw, tagDefinesClose)
	return bw.Flush()
}

func typeWords(t TypeBit) []string {
	names := make([]string, 0, len(typeNames))
	for name := range typeNames {
		names = append(names, name)
	}
	slices.Sort(names)
	var out []string
	for _, name := range names {
		if t&typeNames[name] != 0 {
			out = append(out, name)
		}
	}
	return out
}
