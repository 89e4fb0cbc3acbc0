package facts

import "testing"

func TestFilterTablesByFiles(t *testing.T) {
	tables := emptyTables()
	tables.Files = []FileRow{{Path: "core.c"}, {Path: "main.c"}}
	tables.Arrays = []ArrayRow{
		{Name: "arr", File: "core.c", Line: 3},
		{Name: "buf", File: "main.c", Line: 2},
	}
	tables.Accesses = []AccessRow{
		{Symbol: "buf", File: "main.c", Line: 5},
	}

	keep := map[string]bool{"core.c": true}
	filtered := FilterTablesByFiles(tables, keep)

	if len(filtered.Files) != 1 || filtered.Files[0].Path != "core.c" {
		t.Errorf("unexpected file rows: %+v", filtered.Files)
	}
	if len(filtered.Arrays) != 1 || filtered.Arrays[0].Name != "arr" {
		t.Errorf("unexpected array rows: %+v", filtered.Arrays)
	}
	if len(filtered.Accesses) != 0 {
		t.Errorf("access rows from excluded files survived: %+v", filtered.Accesses)
	}
}

func TestFilterDeltaByFiles(t *testing.T) {
	delta := Delta{Added: emptyTables(), Removed: emptyTables()}
	delta.Added.Calls = []CallRow{
		{Callee: "add", File: "main.c", Line: 7},
		{Callee: "helper", File: "util.c", Line: 9},
	}

	filtered := FilterDeltaByFiles(delta, map[string]bool{"util.c": true})
	if len(filtered.Added.Calls) != 1 || filtered.Added.Calls[0].Callee != "helper" {
		t.Errorf("unexpected delta rows: %+v", filtered.Added.Calls)
	}
}
