package facts

// emptyTables returns a Tables value with non-nil slices so JSON output
// always encodes each relation as an array.
func emptyTables() Tables {
	return Tables{
		Files:     []FileRow{},
		Arrays:    []ArrayRow{},
		Scalars:   []ScalarRow{},
		Functions: []FunctionRow{},
		Accesses:  []AccessRow{},
		Calls:     []CallRow{},
		Includes:  []IncludeRow{},
		Symbols:   []SymbolRow{},
	}
}

// FilterTablesByFiles keeps only rows originating from the given files.
func FilterTablesByFiles(tables Tables, files map[string]bool) Tables {
	out := emptyTables()

	for _, row := range tables.Files {
		if files[row.Path] {
			out.Files = append(out.Files, row)
		}
	}
	for _, row := range tables.Arrays {
		if files[row.File] {
			out.Arrays = append(out.Arrays, row)
		}
	}
	for _, row := range tables.Scalars {
		if files[row.File] {
			out.Scalars = append(out.Scalars, row)
		}
	}
	for _, row := range tables.Functions {
		if files[row.File] {
			out.Functions = append(out.Functions, row)
		}
	}
	for _, row := range tables.Accesses {
		if files[row.File] {
			out.Accesses = append(out.Accesses, row)
		}
	}
	for _, row := range tables.Calls {
		if files[row.File] {
			out.Calls = append(out.Calls, row)
		}
	}
	for _, row := range tables.Includes {
		if files[row.File] {
			out.Includes = append(out.Includes, row)
		}
	}
	for _, row := range tables.Symbols {
		if files[row.File] {
			out.Symbols = append(out.Symbols, row)
		}
	}

	return out
}

// FilterDeltaByFiles keeps only delta rows originating from the given files.
func FilterDeltaByFiles(delta Delta, files map[string]bool) Delta {
	return Delta{
		Added:   FilterTablesByFiles(delta.Added, files),
		Removed: FilterTablesByFiles(delta.Removed, files),
	}
}
