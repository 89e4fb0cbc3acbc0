package facts

import "testing"

func TestComputeDeltaAddedAndRemoved(t *testing.T) {
	from := emptyTables()
	from.Accesses = []AccessRow{
		{Symbol: "arr", Index: 5, IndexKnown: true, IndexText: "5", File: "main.c", Line: 4},
	}

	to := emptyTables()
	to.Accesses = []AccessRow{
		{Symbol: "arr", Index: 144, IndexKnown: true, IndexText: "144", File: "main.c", Line: 4},
	}
	to.Arrays = []ArrayRow{
		{Name: "arr", Type: "int", Size: 10, HasSize: true, SizeText: "10", File: "core.c", Line: 3},
	}

	delta := ComputeDelta(from, to)

	if len(delta.Added.Accesses) != 1 || delta.Added.Accesses[0].Index != 144 {
		t.Errorf("expected changed access in added set: %+v", delta.Added.Accesses)
	}
	if len(delta.Removed.Accesses) != 1 || delta.Removed.Accesses[0].Index != 5 {
		t.Errorf("expected old access in removed set: %+v", delta.Removed.Accesses)
	}
	if len(delta.Added.Arrays) != 1 {
		t.Errorf("expected new array row in added set: %+v", delta.Added.Arrays)
	}
	if delta.IsEmpty() {
		t.Error("delta with rows reported empty")
	}
}

func TestComputeDeltaIdentical(t *testing.T) {
	tables := emptyTables()
	tables.Calls = []CallRow{{Callee: "add", Args: 2, File: "main.c", Line: 7}}

	delta := ComputeDelta(tables, tables)
	if !delta.IsEmpty() {
		t.Errorf("identical snapshots should produce empty delta: %+v", delta)
	}
}
