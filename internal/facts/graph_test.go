package facts

import (
	"testing"

	"github.com/snipe-tools/snipe/internal/config"
)

func TestBuildGraph(t *testing.T) {
	symbols := []SymbolRow{
		{Name: "arr", Kind: "array", File: "core.c", Line: 3},
		{Name: "balance", Kind: "scalar", File: "core.c", Line: 5},
		{Name: "add", Kind: "function", File: "core.c", Line: 8},
	}
	tables := BuildTables(sampleUnits(), map[string]config.FileGroupInfo{}, nil, symbols)

	graph := BuildGraph(tables)

	if len(graph.Nodes) != 3 {
		t.Fatalf("expected 3 nodes, got %+v", graph.Nodes)
	}
	if graph.Nodes[0].Name != "add" || graph.Nodes[1].Name != "arr" || graph.Nodes[2].Name != "balance" {
		t.Errorf("nodes not sorted by name: %+v", graph.Nodes)
	}

	// One access to arr, one call to add. printf-style calls to symbols
	// outside the table must not produce edges.
	if len(graph.Edges) != 2 {
		t.Fatalf("expected 2 edges, got %+v", graph.Edges)
	}
	access := graph.Edges[0]
	if access.Symbol != "arr" || access.Ref != "access" || access.File != "main.c" || access.Line != 6 {
		t.Errorf("unexpected access edge: %+v", access)
	}
	call := graph.Edges[1]
	if call.Symbol != "add" || call.Ref != "call" || call.File != "main.c" || call.Line != 7 {
		t.Errorf("unexpected call edge: %+v", call)
	}
}

func TestBuildGraphSkipsUnknownCallees(t *testing.T) {
	tables := Tables{
		Symbols: []SymbolRow{{Name: "dump", Kind: "function", File: "io.c", Line: 2}},
		Calls: []CallRow{
			{Callee: "dump", Args: 0, File: "main.c", Line: 4},
			{Callee: "printf", Args: 2, File: "main.c", Line: 5},
		},
	}

	graph := BuildGraph(tables)

	if len(graph.Edges) != 1 || graph.Edges[0].Symbol != "dump" {
		t.Fatalf("expected only the dump edge, got %+v", graph.Edges)
	}
}

func TestBuildGraphEmptyTables(t *testing.T) {
	graph := BuildGraph(Tables{})
	if graph.Nodes == nil || graph.Edges == nil {
		t.Fatal("graph slices must be non-nil for JSON output")
	}
	if len(graph.Nodes) != 0 || len(graph.Edges) != 0 {
		t.Fatalf("expected empty graph, got %+v", graph)
	}
}
