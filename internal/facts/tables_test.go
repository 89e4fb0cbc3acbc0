package facts

import (
	"testing"

	"github.com/snipe-tools/snipe/internal/config"
	"github.com/snipe-tools/snipe/internal/extractor"
)

func sampleUnits() []extractor.FileFacts {
	return []extractor.FileFacts{
		{
			File: "core.c",
			Declarations: []extractor.Declaration{
				{Name: "arr", Kind: extractor.KindArray, Type: "int", TypeFamily: extractor.FamilyInteger, Size: 10, HasSize: true, SizeText: "10", Line: 3},
				{Name: "balance", Kind: extractor.KindScalar, Type: "float", TypeFamily: extractor.FamilyFloat, Line: 5},
				{Name: "add", Kind: extractor.KindFunction, Type: "int", Params: 2, Line: 8},
			},
			Includes: []extractor.Include{
				{Target: "stdio.h", System: true, Line: 1},
			},
		},
		{
			File: "main.c",
			Declarations: []extractor.Declaration{
				{Name: "arr", Kind: extractor.KindArray, Type: "int", TypeFamily: extractor.FamilyInteger, IsExtern: true, Line: 2},
			},
			Subscripts: []extractor.Subscript{
				{Symbol: "arr", Index: 144, IndexKnown: true, IndexText: "144", Line: 6},
			},
			Calls: []extractor.Call{
				{Callee: "add", Args: 2, Line: 7},
			},
		},
	}
}

func TestBuildTablesRows(t *testing.T) {
	groups := map[string]config.FileGroupInfo{
		"core.c": {GroupName: "core"},
	}
	thirdParty := map[string]bool{"main.c": false}

	tables := BuildTables(sampleUnits(), groups, thirdParty, nil)

	if len(tables.Files) != 2 {
		t.Fatalf("expected 2 file rows, got %d", len(tables.Files))
	}
	if tables.Files[0].Path != "core.c" || tables.Files[0].Group != "core" {
		t.Errorf("unexpected first file row: %+v", tables.Files[0])
	}
	if len(tables.Arrays) != 2 {
		t.Fatalf("expected 2 array rows, got %d", len(tables.Arrays))
	}
	if !tables.Arrays[0].HasSize || tables.Arrays[0].Size != 10 {
		t.Errorf("definition row lost its size: %+v", tables.Arrays[0])
	}
	if !tables.Arrays[1].IsExtern {
		t.Errorf("extern declaration row should be marked extern: %+v", tables.Arrays[1])
	}
	if len(tables.Scalars) != 1 || tables.Scalars[0].Family != extractor.FamilyFloat {
		t.Errorf("unexpected scalar rows: %+v", tables.Scalars)
	}
	if len(tables.Functions) != 1 || tables.Functions[0].Params != 2 {
		t.Errorf("unexpected function rows: %+v", tables.Functions)
	}
	if len(tables.Accesses) != 1 || tables.Accesses[0].Index != 144 {
		t.Errorf("unexpected access rows: %+v", tables.Accesses)
	}
	if len(tables.Calls) != 1 || tables.Calls[0].Callee != "add" {
		t.Errorf("unexpected call rows: %+v", tables.Calls)
	}
	if len(tables.Includes) != 1 || !tables.Includes[0].System {
		t.Errorf("unexpected include rows: %+v", tables.Includes)
	}
}

func TestBuildTablesFilesSortedAndDeduped(t *testing.T) {
	units := []extractor.FileFacts{
		{File: "z.c"},
		{File: "a.c"},
		{File: "z.c"},
	}
	tables := BuildTables(units, nil, nil, nil)
	if len(tables.Files) != 2 {
		t.Fatalf("expected deduped file rows, got %d", len(tables.Files))
	}
	if tables.Files[0].Path != "a.c" || tables.Files[1].Path != "z.c" {
		t.Errorf("file rows not sorted: %+v", tables.Files)
	}
}

func TestBuildTablesSymbols(t *testing.T) {
	symbols := []SymbolRow{
		{Name: "arr", Kind: "array", File: "core.c", Line: 3},
	}
	tables := BuildTables(sampleUnits(), nil, nil, symbols)
	if len(tables.Symbols) != 1 || tables.Symbols[0].Name != "arr" {
		t.Errorf("symbol rows not carried through: %+v", tables.Symbols)
	}
}
