package facts

import "sort"

// Graph is the symbol-reference view of the fact tables: one node per
// known symbol, one edge per access or call that resolves to it.
// References to symbols outside the table (libc calls, unresolved
// names) produce no edge.
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

type GraphNode struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	File       string `json:"file"`
	Line       int    `json:"line"`
	ExternOnly bool   `json:"extern_only"`
}

// GraphEdge links a use site to the symbol it references.
type GraphEdge struct {
	Symbol string `json:"symbol"`
	Ref    string `json:"ref"` // "access" or "call"
	File   string `json:"file"`
	Line   int    `json:"line"`
}

// BuildGraph derives the reference graph from the relational tables.
// Output ordering is deterministic: nodes by name, edges by
// (file, line, symbol).
func BuildGraph(tables Tables) Graph {
	graph := Graph{
		Nodes: []GraphNode{},
		Edges: []GraphEdge{},
	}

	known := make(map[string]bool, len(tables.Symbols))
	for _, sym := range tables.Symbols {
		known[sym.Name] = true
		graph.Nodes = append(graph.Nodes, GraphNode{
			Name:       sym.Name,
			Kind:       sym.Kind,
			File:       sym.File,
			Line:       sym.Line,
			ExternOnly: sym.ExternOnly,
		})
	}

	for _, access := range tables.Accesses {
		if !known[access.Symbol] {
			continue
		}
		graph.Edges = append(graph.Edges, GraphEdge{
			Symbol: access.Symbol,
			Ref:    "access",
			File:   access.File,
			Line:   access.Line,
		})
	}
	for _, call := range tables.Calls {
		if !known[call.Callee] {
			continue
		}
		graph.Edges = append(graph.Edges, GraphEdge{
			Symbol: call.Callee,
			Ref:    "call",
			File:   call.File,
			Line:   call.Line,
		})
	}

	sort.Slice(graph.Nodes, func(i, j int) bool {
		return graph.Nodes[i].Name < graph.Nodes[j].Name
	})
	sort.Slice(graph.Edges, func(i, j int) bool {
		a, b := graph.Edges[i], graph.Edges[j]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Symbol < b.Symbol
	})
	return graph
}
