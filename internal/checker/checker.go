package checker

import (
	"fmt"
	"sort"

	"github.com/snipe-tools/snipe/internal/extractor"
	"github.com/snipe-tools/snipe/internal/symtab"
)

// Severities. These are defaults; config may override per rule.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

// Rule identifiers, used for config severity overrides and reporting.
const (
	RuleArrayBounds      = "array-bounds"
	RuleConflictingDecl  = "conflicting-definition"
	RuleUnresolvedExtern = "unresolved-extern"
	RuleUnverifiable     = "unverifiable-access"
	RuleSignatureDrift   = "signature-drift"
)

// Access is one subscript occurrence resolved against the symbol table.
// Immutable once created; consumed once by the bound check.
type Access struct {
	Symbol     string
	File       string
	Line       int
	Index      int64
	IndexKnown bool
	IndexText  string
}

// Diagnostic is one finding. Bounds errors carry the offending index, the
// declared size and the location of the array's definition for cross-file
// attribution.
type Diagnostic struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Severity string `json:"severity"`
	Rule     string `json:"rule"`
	Message  string `json:"message"`
	Symbol   string `json:"symbol,omitempty"`
	Index    int64  `json:"index,omitempty"`
	Size     int    `json:"size,omitempty"`
	DefFile  string `json:"def_file,omitempty"`
	DefLine  int    `json:"def_line,omitempty"`
}

// ScanAccesses filters one unit's subscript facts down to Access records
// for symbols known to the merged table. Subscripts on unknown names
// (locals of other scopes, macros) are skipped.
func ScanAccesses(unit extractor.FileFacts, table *symtab.Table) []Access {
	var accesses []Access
	for _, sub := range unit.Subscripts {
		if !table.Has(sub.Symbol) {
			continue
		}
		accesses = append(accesses, Access{
			Symbol:     sub.Symbol,
			File:       unit.File,
			Line:       sub.Line,
			Index:      sub.Index,
			IndexKnown: sub.IndexKnown,
			IndexText:  sub.IndexText,
		})
	}
	return accesses
}

// CheckBounds compares each access against the authoritative size.
// Unknown sizes produce an info note; non-constant indices on known-size
// arrays produce nothing at all.
func CheckBounds(accesses []Access, table *symtab.Table) []Diagnostic {
	var diags []Diagnostic
	for _, acc := range accesses {
		sym, ok := table.Get(acc.Symbol)
		if !ok {
			continue
		}
		if sym.Kind != extractor.KindArray {
			continue
		}

		if !sym.HasSize {
			reason := "non-literal size"
			if sym.ExternOnly {
				reason = "no definition found"
			}
			diags = append(diags, Diagnostic{
				File:     acc.File,
				Line:     acc.Line,
				Severity: SeverityInfo,
				Rule:     RuleUnverifiable,
				Symbol:   acc.Symbol,
				Message: fmt.Sprintf("Cannot verify access to '%s': size unknown (%s).",
					acc.Symbol, reason),
			})
			continue
		}

		if !acc.IndexKnown {
			continue
		}

		if acc.Index < 0 {
			diags = append(diags, Diagnostic{
				File:     acc.File,
				Line:     acc.Line,
				Severity: SeverityError,
				Rule:     RuleArrayBounds,
				Symbol:   acc.Symbol,
				Index:    acc.Index,
				Size:     sym.Size,
				DefFile:  sym.DefFile,
				DefLine:  sym.DefLine,
				Message: fmt.Sprintf("Index %d is negative for '%s' (declared in %s:%d).",
					acc.Index, acc.Symbol, sym.DefFile, sym.DefLine),
			})
			continue
		}
		if acc.Index >= int64(sym.Size) {
			diags = append(diags, Diagnostic{
				File:     acc.File,
				Line:     acc.Line,
				Severity: SeverityError,
				Rule:     RuleArrayBounds,
				Symbol:   acc.Symbol,
				Index:    acc.Index,
				Size:     sym.Size,
				DefFile:  sym.DefFile,
				DefLine:  sym.DefLine,
				Message: fmt.Sprintf("Index %d exceeds declared size %d for '%s' (declared in %s:%d).",
					acc.Index, sym.Size, acc.Symbol, sym.DefFile, sym.DefLine),
			})
		}
	}
	return diags
}

// CheckSignatures flags calls whose argument count differs from the known
// declaration. Calls recovered by the regex fallback carry no arg count
// and are skipped.
func CheckSignatures(unit extractor.FileFacts, table *symtab.Table) []Diagnostic {
	var diags []Diagnostic
	for _, call := range unit.Calls {
		if call.Args < 0 {
			continue
		}
		sym, ok := table.Get(call.Callee)
		if !ok || sym.Kind != extractor.KindFunction {
			continue
		}
		if call.Args != sym.Params {
			diags = append(diags, Diagnostic{
				File:     unit.File,
				Line:     call.Line,
				Severity: SeverityWarning,
				Rule:     RuleSignatureDrift,
				Symbol:   call.Callee,
				DefFile:  sym.DefFile,
				DefLine:  sym.DefLine,
				Message: fmt.Sprintf("Function '%s' expects %d argument(s) but %d provided (see %s:%d).",
					call.Callee, sym.Params, call.Args, sym.DefFile, sym.DefLine),
			})
		}
	}
	return diags
}

// ConflictDiagnostics converts merge conflicts into diagnostics, located
// at the disagreeing declaration.
func ConflictDiagnostics(table *symtab.Table) []Diagnostic {
	var diags []Diagnostic
	for _, c := range table.Conflicts() {
		diags = append(diags, Diagnostic{
			File:     c.File,
			Line:     c.Line,
			Severity: SeverityWarning,
			Rule:     RuleConflictingDecl,
			Symbol:   c.Name,
			DefFile:  c.DefFile,
			DefLine:  c.DefLine,
			Message:  c.Message(),
		})
	}
	return diags
}

// UnresolvedDiagnostics emits a note per extern with no defining unit.
func UnresolvedDiagnostics(table *symtab.Table) []Diagnostic {
	var diags []Diagnostic
	for _, sym := range table.Unresolved() {
		diags = append(diags, Diagnostic{
			File:     sym.DefFile,
			Line:     sym.DefLine,
			Severity: SeverityInfo,
			Rule:     RuleUnresolvedExtern,
			Symbol:   sym.Name,
			Message: fmt.Sprintf("No definition found for extern '%s' (declared in %s:%d).",
				sym.Name, sym.DefFile, sym.DefLine),
		})
	}
	return diags
}

// Run executes all checks over the extracted units and the merged table.
// The result is ordered by (file, line) with ties kept in discovery order;
// identical inputs always yield the identical sequence.
func Run(units []extractor.FileFacts, table *symtab.Table) []Diagnostic {
	var diags []Diagnostic

	diags = append(diags, ConflictDiagnostics(table)...)
	diags = append(diags, UnresolvedDiagnostics(table)...)

	for _, unit := range units {
		accesses := ScanAccesses(unit, table)
		diags = append(diags, CheckBounds(accesses, table)...)
		diags = append(diags, CheckSignatures(unit, table)...)
	}

	Sort(diags)
	return diags
}

// Sort orders diagnostics by (file, line), preserving discovery order for
// ties.
func Sort(diags []Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		if diags[i].File != diags[j].File {
			return diags[i].File < diags[j].File
		}
		return diags[i].Line < diags[j].Line
	})
}
