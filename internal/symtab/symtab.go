package symtab

import (
	"fmt"
	"sync"

	"github.com/snipe-tools/snipe/internal/extractor"
)

// Symbol is the authoritative cross-file record for one name.
type Symbol struct {
	Name       string
	Kind       string // array, scalar, function
	Type       string
	TypeFamily string

	// Size is the authoritative element count for arrays. HasSize is false
	// for unparseable sizes and for extern-only symbols, whose accesses are
	// unverifiable.
	Size     int
	HasSize  bool
	SizeText string

	Params int

	// DefFile/DefLine locate the authoritative definition, or the first
	// forward reference when ExternOnly is set.
	DefFile string
	DefLine int

	// ExternOnly means no defining unit was found in this run.
	ExternOnly bool
}

// Conflict records a declaration that disagrees with the authoritative
// definition in size or type. The authoritative definition is kept; the
// conflict is surfaced as a diagnostic.
type Conflict struct {
	Name      string
	Aspect    string // "size" or "type"
	DefFile   string
	DefLine   int
	DefDetail string // e.g. "size 10" or "float"
	File      string
	Line      int
	Detail    string
}

// Message renders the conflict in the diagnostic format used downstream.
func (c Conflict) Message() string {
	return fmt.Sprintf("Conflicting declarations for '%s': %s (%s:%d) vs %s (%s:%d).",
		c.Name, c.DefDetail, c.DefFile, c.DefLine, c.Detail, c.File, c.Line)
}

// Table holds the merged symbols for one analysis run.
type Table struct {
	mu         sync.RWMutex
	symbols    map[string]Symbol
	order      []string
	conflicts  []Conflict
	unresolved []Symbol
}

// Build merges per-unit declaration facts into one table. Units are
// processed in slice order and declarations in source order; the first
// definition encountered is authoritative. Conflict content does not depend
// on that order: every other declaration is compared against the
// authoritative one, whichever unit it came from.
func Build(units []extractor.FileFacts) *Table {
	table := &Table{symbols: make(map[string]Symbol)}

	type located struct {
		decl extractor.Declaration
		file string
	}
	byName := make(map[string][]located)
	var names []string
	for _, unit := range units {
		for _, decl := range unit.Declarations {
			if _, seen := byName[decl.Name]; !seen {
				names = append(names, decl.Name)
			}
			byName[decl.Name] = append(byName[decl.Name], located{decl: decl, file: unit.File})
		}
	}

	for _, name := range names {
		decls := byName[name]

		// First definition wins. This is deliberate policy, not an accident
		// of iteration order; tests pin it.
		authIdx := -1
		for i, d := range decls {
			if !d.decl.IsExtern {
				authIdx = i
				break
			}
		}

		if authIdx < 0 {
			first := decls[0]
			sym := symbolFromDecl(first.decl, first.file)
			sym.HasSize = false
			sym.ExternOnly = true
			table.add(sym)
			table.unresolved = append(table.unresolved, sym)
			continue
		}

		auth := decls[authIdx]
		sym := symbolFromDecl(auth.decl, auth.file)
		table.add(sym)

		for i, d := range decls {
			if i == authIdx {
				continue
			}
			if conflict, ok := compare(sym, d.decl, d.file); ok {
				table.conflicts = append(table.conflicts, conflict)
			}
		}
	}

	return table
}

// compare checks a declaration against the authoritative symbol. Unknown
// sizes and unknown type families never conflict.
func compare(auth Symbol, decl extractor.Declaration, file string) (Conflict, bool) {
	if auth.Kind == extractor.KindArray && decl.Kind == extractor.KindArray &&
		auth.HasSize && decl.HasSize && auth.Size != decl.Size {
		return Conflict{
			Name:      auth.Name,
			Aspect:    "size",
			DefFile:   auth.DefFile,
			DefLine:   auth.DefLine,
			DefDetail: fmt.Sprintf("size %d", auth.Size),
			File:      file,
			Line:      decl.Line,
			Detail:    fmt.Sprintf("size %d", decl.Size),
		}, true
	}

	if auth.TypeFamily != extractor.FamilyUnknown && decl.TypeFamily != extractor.FamilyUnknown &&
		auth.TypeFamily != decl.TypeFamily {
		return Conflict{
			Name:      auth.Name,
			Aspect:    "type",
			DefFile:   auth.DefFile,
			DefLine:   auth.DefLine,
			DefDetail: auth.Type,
			File:      file,
			Line:      decl.Line,
			Detail:    decl.Type,
		}, true
	}

	return Conflict{}, false
}

func symbolFromDecl(decl extractor.Declaration, file string) Symbol {
	return Symbol{
		Name:       decl.Name,
		Kind:       decl.Kind,
		Type:       decl.Type,
		TypeFamily: decl.TypeFamily,
		Size:       decl.Size,
		HasSize:    decl.HasSize,
		SizeText:   decl.SizeText,
		Params:     decl.Params,
		DefFile:    file,
		DefLine:    decl.Line,
		ExternOnly: decl.IsExtern,
	}
}

func (t *Table) add(sym Symbol) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.symbols[sym.Name]; !exists {
		t.order = append(t.order, sym.Name)
	}
	t.symbols[sym.Name] = sym
}

// Get returns the symbol for a name.
func (t *Table) Get(name string) (Symbol, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	sym, ok := t.symbols[name]
	return sym, ok
}

// Has reports whether the name is known.
func (t *Table) Has(name string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.symbols[name]
	return ok
}

// Names returns symbol names in first-seen order.
func (t *Table) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// All returns a copy of the symbol map.
func (t *Table) All() map[string]Symbol {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]Symbol, len(t.symbols))
	for k, v := range t.symbols {
		out[k] = v
	}
	return out
}

// Len returns the number of symbols.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.symbols)
}

// Conflicts returns conflicting declarations in detection order.
func (t *Table) Conflicts() []Conflict {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Conflict, len(t.conflicts))
	copy(out, t.conflicts)
	return out
}

// Unresolved returns extern-only symbols with no defining unit.
func (t *Table) Unresolved() []Symbol {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Symbol, len(t.unresolved))
	copy(out, t.unresolved)
	return out
}
