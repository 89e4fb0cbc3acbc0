package facts

import "strconv"

// Delta is the row-level difference between two fact snapshots.
type Delta struct {
	Added   Tables `json:"added"`
	Removed Tables `json:"removed"`
}

// ComputeDelta returns the rows present in to but not from (Added) and
// in from but not to (Removed). Rows are matched by their full content.
func ComputeDelta(from, to Tables) Delta {
	return Delta{
		Added: Tables{
			Files:     diffRows(from.Files, to.Files, fileKey),
			Arrays:    diffRows(from.Arrays, to.Arrays, arrayKey),
			Scalars:   diffRows(from.Scalars, to.Scalars, scalarKey),
			Functions: diffRows(from.Functions, to.Functions, functionKey),
			Accesses:  diffRows(from.Accesses, to.Accesses, accessKey),
			Calls:     diffRows(from.Calls, to.Calls, callKey),
			Includes:  diffRows(from.Includes, to.Includes, includeKey),
			Symbols:   diffRows(from.Symbols, to.Symbols, symbolKey),
		},
		Removed: Tables{
			Files:     diffRows(to.Files, from.Files, fileKey),
			Arrays:    diffRows(to.Arrays, from.Arrays, arrayKey),
			Scalars:   diffRows(to.Scalars, from.Scalars, scalarKey),
			Functions: diffRows(to.Functions, from.Functions, functionKey),
			Accesses:  diffRows(to.Accesses, from.Accesses, accessKey),
			Calls:     diffRows(to.Calls, from.Calls, callKey),
			Includes:  diffRows(to.Includes, from.Includes, includeKey),
			Symbols:   diffRows(to.Symbols, from.Symbols, symbolKey),
		},
	}
}

// IsEmpty reports whether the delta contains no rows in either direction.
func (d Delta) IsEmpty() bool {
	return tablesEmpty(d.Added) && tablesEmpty(d.Removed)
}

func tablesEmpty(t Tables) bool {
	return len(t.Files) == 0 &&
		len(t.Arrays) == 0 &&
		len(t.Scalars) == 0 &&
		len(t.Functions) == 0 &&
		len(t.Accesses) == 0 &&
		len(t.Calls) == 0 &&
		len(t.Includes) == 0 &&
		len(t.Symbols) == 0
}

// diffRows returns the rows of have whose key is absent from base.
func diffRows[T any](base, have []T, key func(T) string) []T {
	seen := make(map[string]bool, len(base))
	for _, row := range base {
		seen[key(row)] = true
	}
	out := []T{}
	for _, row := range have {
		if !seen[key(row)] {
			out = append(out, row)
		}
	}
	return out
}

func fileKey(r FileRow) string {
	return r.Path + "|" + r.Group + "|" + boolKey(r.IsThirdParty)
}

func arrayKey(r ArrayRow) string {
	return r.Name + "|" + r.Type + "|" + r.Family + "|" + itoa(r.Size) + "|" +
		boolKey(r.HasSize) + "|" + r.SizeText + "|" + boolKey(r.IsExtern) + "|" +
		r.File + "|" + itoa(r.Line)
}

func scalarKey(r ScalarRow) string {
	return r.Name + "|" + r.Type + "|" + r.Family + "|" + boolKey(r.IsExtern) + "|" +
		r.File + "|" + itoa(r.Line)
}

func functionKey(r FunctionRow) string {
	return r.Name + "|" + r.Type + "|" + itoa(r.Params) + "|" + boolKey(r.IsExtern) + "|" +
		r.File + "|" + itoa(r.Line)
}

func accessKey(r AccessRow) string {
	return r.Symbol + "|" + strconv.FormatInt(r.Index, 10) + "|" + boolKey(r.IndexKnown) + "|" +
		r.IndexText + "|" + r.File + "|" + itoa(r.Line)
}

func callKey(r CallRow) string {
	return r.Callee + "|" + itoa(r.Args) + "|" + r.File + "|" + itoa(r.Line)
}

func includeKey(r IncludeRow) string {
	return r.File + "|" + r.Target + "|" + boolKey(r.System) + "|" + itoa(r.Line)
}

func symbolKey(r SymbolRow) string {
	return r.Name + "|" + r.Kind + "|" + r.File + "|" + itoa(r.Line) + "|" + boolKey(r.ExternOnly)
}

func boolKey(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
