package checker

import (
	"reflect"
	"testing"

	"github.com/snipe-tools/snipe/internal/extractor"
	"github.com/snipe-tools/snipe/internal/symtab"
)

func TestCrossFileOutOfBounds(t *testing.T) {
	// core.c defines arr[10]; main.c forward-declares it and reads arr[144].
	units := []extractor.FileFacts{
		{File: "core.c", Declarations: []extractor.Declaration{
			intArray("arr", 10, false, 3),
		}},
		{File: "main.c",
			Declarations: []extractor.Declaration{intArray("arr", 10, true, 2)},
			Subscripts:   []extractor.Subscript{constIndex("arr", 144, 8)},
		},
	}

	diags := Run(units, symtab.Build(units))

	bounds := filterRule(diags, RuleArrayBounds)
	if len(bounds) != 1 {
		t.Fatalf("expected 1 bounds diagnostic, got %+v", diags)
	}
	d := bounds[0]
	if d.File != "main.c" || d.Line != 8 {
		t.Fatalf("expected diagnostic at access site main.c:8, got %s:%d", d.File, d.Line)
	}
	if d.DefFile != "core.c" || d.DefLine != 3 {
		t.Fatalf("expected attribution to core.c:3, got %s:%d", d.DefFile, d.DefLine)
	}
	if d.Index != 144 || d.Size != 10 || d.Severity != SeverityError {
		t.Fatalf("unexpected diagnostic payload: %+v", d)
	}
	want := "Index 144 exceeds declared size 10 for 'arr' (declared in core.c:3)."
	if d.Message != want {
		t.Fatalf("message %q, want %q", d.Message, want)
	}
}

func TestBoundaryIndexValid(t *testing.T) {
	units := []extractor.FileFacts{
		{File: "a.c",
			Declarations: []extractor.Declaration{intArray("arr", 10, false, 1)},
			Subscripts: []extractor.Subscript{
				constIndex("arr", 9, 4),
				constIndex("arr", 0, 5),
			},
		},
	}

	diags := Run(units, symtab.Build(units))
	if len(diags) != 0 {
		t.Fatalf("in-range accesses must not be flagged: %+v", diags)
	}
}

func TestNegativeIndex(t *testing.T) {
	units := []extractor.FileFacts{
		{File: "a.c",
			Declarations: []extractor.Declaration{intArray("arr", 10, false, 1)},
			Subscripts:   []extractor.Subscript{constIndex("arr", -1, 3)},
		},
	}

	diags := Run(units, symtab.Build(units))

	bounds := filterRule(diags, RuleArrayBounds)
	if len(bounds) != 1 || bounds[0].Index != -1 {
		t.Fatalf("expected negative index diagnostic, got %+v", diags)
	}
}

func TestNonConstantIndexNeverFlagged(t *testing.T) {
	units := []extractor.FileFacts{
		{File: "a.c",
			Declarations: []extractor.Declaration{intArray("arr", 10, false, 1)},
			Subscripts: []extractor.Subscript{
				{Symbol: "arr", IndexText: "k", Line: 4},
				{Symbol: "arr", IndexText: "i + 1", Line: 5},
			},
		},
	}

	diags := Run(units, symtab.Build(units))
	if len(diags) != 0 {
		t.Fatalf("non-constant indices on a sized array must produce nothing: %+v", diags)
	}
}

func TestUnknownSizeUnverifiableNote(t *testing.T) {
	// int arr[n]; arr[k] -> registered with unknown size, note only.
	units := []extractor.FileFacts{
		{File: "a.c",
			Declarations: []extractor.Declaration{{
				Name: "arr", Kind: extractor.KindArray, Type: "int",
				TypeFamily: extractor.FamilyInteger, SizeText: "n", Line: 1,
			}},
			Subscripts: []extractor.Subscript{{Symbol: "arr", IndexText: "k", Line: 3}},
		},
	}

	diags := Run(units, symtab.Build(units))

	if len(filterRule(diags, RuleArrayBounds)) != 0 {
		t.Fatalf("unknown size must never produce a bounds error: %+v", diags)
	}
	notes := filterRule(diags, RuleUnverifiable)
	if len(notes) != 1 || notes[0].Severity != SeverityInfo {
		t.Fatalf("expected 1 unverifiable note, got %+v", diags)
	}
}

func TestUnresolvedExternUnverifiable(t *testing.T) {
	units := []extractor.FileFacts{
		{File: "main.c",
			Declarations: []extractor.Declaration{intArray("orphan", 8, true, 2)},
			Subscripts:   []extractor.Subscript{constIndex("orphan", 999, 5)},
		},
	}

	diags := Run(units, symtab.Build(units))

	if len(filterRule(diags, RuleArrayBounds)) != 0 {
		t.Fatalf("accesses to unresolved externs are unverifiable, got %+v", diags)
	}
	if len(filterRule(diags, RuleUnresolvedExtern)) != 1 {
		t.Fatalf("expected unresolved extern note, got %+v", diags)
	}
	if len(filterRule(diags, RuleUnverifiable)) != 1 {
		t.Fatalf("expected unverifiable access note, got %+v", diags)
	}
}

func TestConflictingDefinitionDiagnostic(t *testing.T) {
	units := []extractor.FileFacts{
		{File: "core.c", Declarations: []extractor.Declaration{{
			Name: "balance", Kind: extractor.KindScalar, Type: "float",
			TypeFamily: extractor.FamilyFloat, Line: 4,
		}}},
		{File: "main.c", Declarations: []extractor.Declaration{{
			Name: "balance", Kind: extractor.KindScalar, Type: "int",
			TypeFamily: extractor.FamilyInteger, IsExtern: true, Line: 7,
		}}},
	}

	diags := Run(units, symtab.Build(units))

	conflicts := filterRule(diags, RuleConflictingDecl)
	if len(conflicts) != 1 {
		t.Fatalf("expected 1 conflict diagnostic, got %+v", diags)
	}
	c := conflicts[0]
	if c.File != "main.c" || c.Line != 7 || c.Symbol != "balance" {
		t.Fatalf("conflict should point at the disagreeing declaration, got %+v", c)
	}
}

func TestSignatureDrift(t *testing.T) {
	units := []extractor.FileFacts{
		{File: "utils.c", Declarations: []extractor.Declaration{{
			Name: "process", Kind: extractor.KindFunction, Type: "void",
			TypeFamily: extractor.FamilyUnknown, Params: 2, Line: 1,
		}}},
		{File: "main.c", Calls: []extractor.Call{
			{Callee: "process", Args: 1, Line: 5},
			{Callee: "printf", Args: 2, Line: 6},
		}},
	}

	diags := Run(units, symtab.Build(units))

	drift := filterRule(diags, RuleSignatureDrift)
	if len(drift) != 1 {
		t.Fatalf("expected 1 drift diagnostic, got %+v", diags)
	}
	want := "Function 'process' expects 2 argument(s) but 1 provided (see utils.c:1)."
	if drift[0].Message != want {
		t.Fatalf("message %q, want %q", drift[0].Message, want)
	}
}

func TestDiagnosticOrderingAndIdempotence(t *testing.T) {
	units := []extractor.FileFacts{
		{File: "b.c",
			Declarations: []extractor.Declaration{intArray("arr", 4, true, 1)},
			Subscripts: []extractor.Subscript{
				constIndex("arr", 9, 7),
				constIndex("arr", 5, 2),
			},
		},
		{File: "a.c",
			Declarations: []extractor.Declaration{intArray("arr", 4, false, 1)},
			Subscripts:   []extractor.Subscript{constIndex("arr", 4, 3)},
		},
	}

	table := symtab.Build(units)
	first := Run(units, table)
	second := Run(units, symtab.Build(units))

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("pipeline must be idempotent:\n%+v\n%+v", first, second)
	}

	for i := 1; i < len(first); i++ {
		prev, cur := first[i-1], first[i]
		if prev.File > cur.File || (prev.File == cur.File && prev.Line > cur.Line) {
			t.Fatalf("diagnostics out of order: %+v before %+v", prev, cur)
		}
	}

	bounds := filterRule(first, RuleArrayBounds)
	if len(bounds) != 3 {
		t.Fatalf("expected 3 bounds diagnostics, got %+v", bounds)
	}
	if bounds[0].File != "a.c" || bounds[1].Line != 2 || bounds[2].Line != 7 {
		t.Fatalf("unexpected order: %+v", bounds)
	}
}

func intArray(name string, size int, isExtern bool, line int) extractor.Declaration {
	return extractor.Declaration{
		Name:       name,
		Kind:       extractor.KindArray,
		Type:       "int",
		TypeFamily: extractor.FamilyInteger,
		Size:       size,
		HasSize:    true,
		IsExtern:   isExtern,
		Line:       line,
	}
}

func constIndex(symbol string, index int64, line int) extractor.Subscript {
	return extractor.Subscript{
		Symbol:     symbol,
		Index:      index,
		IndexKnown: true,
		Line:       line,
	}
}

func filterRule(diags []Diagnostic, rule string) []Diagnostic {
	var out []Diagnostic
	for _, d := range diags {
		if d.Rule == rule {
			out = append(out, d)
		}
	}
	return out
}
