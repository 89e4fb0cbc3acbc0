package facts

import (
	"sort"

	"github.com/snipe-tools/snipe/internal/config"
	"github.com/snipe-tools/snipe/internal/extractor"
)

// Tables is the relational fact model of an analysis run.
// Each slice is a relation (table) with flat rows.
type Tables struct {
	Files     []FileRow     `json:"files"`
	Arrays    []ArrayRow    `json:"arrays"`
	Scalars   []ScalarRow   `json:"scalars"`
	Functions []FunctionRow `json:"functions"`
	Accesses  []AccessRow   `json:"accesses"`
	Calls     []CallRow     `json:"calls"`
	Includes  []IncludeRow  `json:"includes"`
	Symbols   []SymbolRow   `json:"symbols"`
}

type FileRow struct {
	Path         string `json:"path"`
	Group        string `json:"group"`
	IsThirdParty bool   `json:"is_third_party"`
}

type ArrayRow struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Family   string `json:"family"`
	Size     int    `json:"size"`
	HasSize  bool   `json:"has_size"`
	SizeText string `json:"size_text"`
	IsExtern bool   `json:"is_extern"`
	File     string `json:"file"`
	Line     int    `json:"line"`
}

type ScalarRow struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Family   string `json:"family"`
	IsExtern bool   `json:"is_extern"`
	File     string `json:"file"`
	Line     int    `json:"line"`
}

type FunctionRow struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Params   int    `json:"params"`
	IsExtern bool   `json:"is_extern"`
	File     string `json:"file"`
	Line     int    `json:"line"`
}

type AccessRow struct {
	Symbol     string `json:"symbol"`
	Index      int64  `json:"index"`
	IndexKnown bool   `json:"index_known"`
	IndexText  string `json:"index_text"`
	File       string `json:"file"`
	Line       int    `json:"line"`
}

type CallRow struct {
	Callee string `json:"callee"`
	Args   int    `json:"args"`
	File   string `json:"file"`
	Line   int    `json:"line"`
}

type IncludeRow struct {
	File   string `json:"file"`
	Target string `json:"target"`
	System bool   `json:"system"`
	Line   int    `json:"line"`
}

type SymbolRow struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	File       string `json:"file"`
	Line       int    `json:"line"`
	ExternOnly bool   `json:"extern_only"`
}

// BuildTables converts extractor FileFacts into a normalized relational model.
func BuildTables(units []extractor.FileFacts, fileGroups map[string]config.FileGroupInfo, thirdParty map[string]bool, symbols []SymbolRow) Tables {
	tables := emptyTables()

	seenFiles := make(map[string]bool)
	for _, unit := range units {
		if !seenFiles[unit.File] {
			seenFiles[unit.File] = true
			groupName := ""
			if info, ok := fileGroups[unit.File]; ok {
				groupName = info.GroupName
			}
			tables.Files = append(tables.Files, FileRow{
				Path:         unit.File,
				Group:        groupName,
				IsThirdParty: thirdParty[unit.File],
			})
		}

		for _, d := range unit.Declarations {
			switch d.Kind {
			case extractor.KindArray:
				tables.Arrays = append(tables.Arrays, ArrayRow{
					Name:     d.Name,
					Type:     d.Type,
					Family:   d.TypeFamily,
					Size:     d.Size,
					HasSize:  d.HasSize,
					SizeText: d.SizeText,
					IsExtern: d.IsExtern,
					File:     unit.File,
					Line:     d.Line,
				})
			case extractor.KindFunction:
				tables.Functions = append(tables.Functions, FunctionRow{
					Name:     d.Name,
					Type:     d.Type,
					Params:   d.Params,
					IsExtern: d.IsExtern,
					File:     unit.File,
					Line:     d.Line,
				})
			default:
				tables.Scalars = append(tables.Scalars, ScalarRow{
					Name:     d.Name,
					Type:     d.Type,
					Family:   d.TypeFamily,
					IsExtern: d.IsExtern,
					File:     unit.File,
					Line:     d.Line,
				})
			}
		}

		for _, s := range unit.Subscripts {
			tables.Accesses = append(tables.Accesses, AccessRow{
				Symbol:     s.Symbol,
				Index:      s.Index,
				IndexKnown: s.IndexKnown,
				IndexText:  s.IndexText,
				File:       unit.File,
				Line:       s.Line,
			})
		}

		for _, c := range unit.Calls {
			tables.Calls = append(tables.Calls, CallRow{
				Callee: c.Callee,
				Args:   c.Args,
				File:   unit.File,
				Line:   c.Line,
			})
		}

		for _, inc := range unit.Includes {
			tables.Includes = append(tables.Includes, IncludeRow{
				File:   unit.File,
				Target: inc.Target,
				System: inc.System,
				Line:   inc.Line,
			})
		}
	}

	if len(symbols) > 0 {
		tables.Symbols = append(tables.Symbols, symbols...)
	}

	sort.Slice(tables.Files, func(i, j int) bool { return tables.Files[i].Path < tables.Files[j].Path })

	return tables
}
