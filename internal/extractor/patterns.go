package extractor

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// Pattern: [extern] <type words> <name> [ <size> ] ;
	arrayDeclPattern = regexp.MustCompile(`^\s*(extern\s+)?((?:const\s+|static\s+|unsigned\s+|signed\s+|long\s+|short\s+)*[A-Za-z_]\w*)\s+([A-Za-z_]\w*)\s*\[\s*([^\]]*?)\s*\]`)

	// Pattern: [extern] <type words> <name> ;
	scalarDeclPattern = regexp.MustCompile(`^\s*(extern\s+)?((?:const\s+|static\s+|unsigned\s+|signed\s+|long\s+|short\s+)*[A-Za-z_]\w*)\s+([A-Za-z_]\w*)\s*(?:=[^;]*)?;`)

	// Pattern: <name> [ <integer literal> ] anywhere in a line
	subscriptPattern = regexp.MustCompile(`([A-Za-z_]\w*)\s*\[\s*(-?\d+|0[xX][0-9a-fA-F]+)\s*\]`)

	// Pattern: <name> ( ... )
	callPattern = regexp.MustCompile(`([A-Za-z_]\w*)\s*\(`)
)

// cKeywords are identifiers the fallback must not mistake for symbol names.
var cKeywords = map[string]bool{
	"if": true, "else": true, "for": true, "while": true, "do": true,
	"switch": true, "case": true, "return": true, "sizeof": true,
	"struct": true, "union": true, "enum": true, "typedef": true,
	"goto": true, "break": true, "continue": true, "default": true,
}

// extractFallback is a line-oriented regex extractor used when Tree-sitter
// fails on a unit. It recovers array declarations and literal-index
// subscripts, which is enough to keep bound checking alive for that file.
func (e *Extractor) extractFallback(filePath string, content []byte) FileFacts {
	facts := FileFacts{File: filePath, UsedFallback: true}

	for i, line := range strings.Split(string(content), "\n") {
		lineNum := i + 1
		code := stripLineComment(line)

		declared := ""
		if m := arrayDeclPattern.FindStringSubmatch(code); m != nil {
			decl := Declaration{
				Name:       m[3],
				Kind:       KindArray,
				Type:       strings.Join(strings.Fields(m[2]), " "),
				TypeFamily: typeFamily(m[2]),
				IsExtern:   m[1] != "",
				SizeText:   m[4],
				Line:       lineNum,
			}
			if size, err := strconv.ParseInt(m[4], 0, 64); err == nil && size >= 0 {
				decl.Size = int(size)
				decl.HasSize = true
			}
			facts.Declarations = append(facts.Declarations, decl)
			declared = m[3]
		} else if m := scalarDeclPattern.FindStringSubmatch(code); m != nil && !cKeywords[m[3]] && !cKeywords[strings.Fields(m[2])[0]] {
			facts.Declarations = append(facts.Declarations, Declaration{
				Name:       m[3],
				Kind:       KindScalar,
				Type:       strings.Join(strings.Fields(m[2]), " "),
				TypeFamily: typeFamily(m[2]),
				IsExtern:   m[1] != "",
				Line:       lineNum,
			})
		}

		for _, m := range subscriptPattern.FindAllStringSubmatch(code, -1) {
			if cKeywords[m[1]] || m[1] == declared {
				continue
			}
			sub := Subscript{
				Symbol:    m[1],
				IndexText: m[2],
				Line:      lineNum,
			}
			if value, err := strconv.ParseInt(m[2], 0, 64); err == nil {
				sub.Index = value
				sub.IndexKnown = true
			}
			facts.Subscripts = append(facts.Subscripts, sub)
		}

		for _, m := range callPattern.FindAllStringSubmatch(code, -1) {
			if cKeywords[m[1]] {
				continue
			}
			facts.Calls = append(facts.Calls, Call{Callee: m[1], Args: -1, Line: lineNum})
		}
	}

	return facts
}

func stripLineComment(line string) string {
	if i := strings.Index(line, "//"); i >= 0 {
		return line[:i]
	}
	return line
}
