package extractor

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
)

// Declaration kinds.
const (
	KindArray    = "array"
	KindScalar   = "scalar"
	KindFunction = "function"
)

// Semantic type families. Conflict detection compares families, not raw
// type text, so "unsigned long" and "int" do not conflict with each other.
const (
	FamilyInteger = "integer"
	FamilyFloat   = "float"
	FamilyUnknown = "unknown"
)

// Extractor uses Tree-sitter to parse C translation units and extract facts.
// Not safe for concurrent use: the parser holds mutable state, so create
// one Extractor per goroutine.
type Extractor struct {
	parser *sitter.Parser
	lang   *sitter.Language
}

// FileFacts contains all extracted information from a single translation unit
type FileFacts struct {
	File         string
	Declarations []Declaration
	Subscripts   []Subscript
	Calls        []Call
	Includes     []Include

	// UsedFallback is set when Tree-sitter parsing failed and the
	// regex-based extraction recovered what it could.
	UsedFallback bool
}

// Declaration is one declared symbol: array, scalar or function.
type Declaration struct {
	Name       string
	Kind       string // array, scalar, function
	Type       string // raw declared type text, e.g. "unsigned int"
	TypeFamily string // integer, float, unknown

	// Size is the declared element count for arrays. HasSize is false when
	// the size expression is not a compile-time integer literal; SizeText
	// then carries the raw expression for reporting.
	Size     int
	HasSize  bool
	SizeText string

	// IsExtern marks an extern forward reference (not a definition).
	IsExtern bool

	// Params is the declared parameter count for functions.
	Params int

	Line int
}

// Subscript is one subscript expression found in the unit. IndexKnown is
// false for non-constant indices; those are never bound-checked.
type Subscript struct {
	Symbol     string
	IndexText  string
	Index      int64
	IndexKnown bool
	Line       int
}

// Call is one call expression with its argument count.
type Call struct {
	Callee string
	Args   int
	Line   int
}

// Include is a preprocessor include directive.
type Include struct {
	Target string
	System bool
	Line   int
}

// New creates a new Extractor with the C grammar loaded
func New() *Extractor {
	lang := c.GetLanguage()
	parser := sitter.NewParser()
	parser.SetLanguage(lang)
	return &Extractor{
		parser: parser,
		lang:   lang,
	}
}

// Extract parses a C file and extracts facts
func (e *Extractor) Extract(filePath string) (FileFacts, error) {
	facts := FileFacts{File: filePath}

	content, err := os.ReadFile(filePath)
	if err != nil {
		return facts, fmt.Errorf("reading file: %w", err)
	}

	return e.ExtractSource(filePath, content)
}

// ExtractSource extracts facts from already-loaded source text.
func (e *Extractor) ExtractSource(filePath string, content []byte) (FileFacts, error) {
	facts := FileFacts{File: filePath}

	tree, err := e.parser.ParseCtx(context.Background(), nil, content)
	if err != nil || tree == nil {
		// Degrade to regex extraction rather than dropping the unit.
		return e.extractFallback(filePath, content), nil
	}
	defer tree.Close()

	e.walkTree(tree.RootNode(), content, &facts)

	return facts, nil
}

// walkTree traverses the syntax tree and extracts relevant nodes
func (e *Extractor) walkTree(node *sitter.Node, source []byte, facts *FileFacts) {
	if node == nil {
		return
	}

	switch node.Type() {
	case "declaration":
		facts.Declarations = append(facts.Declarations, e.extractDeclaration(node, source)...)

	case "function_definition":
		if decl, ok := e.extractFunctionDefinition(node, source); ok {
			facts.Declarations = append(facts.Declarations, decl)
		}

	case "subscript_expression":
		if sub, ok := e.extractSubscript(node, source); ok {
			facts.Subscripts = append(facts.Subscripts, sub)
		}

	case "call_expression":
		if call, ok := e.extractCall(node, source); ok {
			facts.Calls = append(facts.Calls, call)
		}

	case "preproc_include":
		facts.Includes = append(facts.Includes, e.extractInclude(node, source))
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		e.walkTree(node.Child(i), source, facts)
	}
}

// extractDeclaration handles a declaration node, which may declare several
// symbols ("int a, b;"). Each declarator becomes its own record.
func (e *Extractor) extractDeclaration(node *sitter.Node, source []byte) []Declaration {
	typeText, isExtern := declarationType(node, source)
	line := int(node.StartPoint().Row) + 1

	var decls []Declaration
	for i := 0; i < int(node.ChildCount()); i++ {
		if node.FieldNameForChild(i) != "declarator" {
			continue
		}
		declarator := node.Child(i)
		if declarator.Type() == "init_declarator" {
			if inner := declarator.ChildByFieldName("declarator"); inner != nil {
				declarator = inner
			}
		}

		decl, ok := e.extractDeclarator(declarator, source)
		if !ok {
			continue
		}
		decl.Type = typeText
		decl.TypeFamily = typeFamily(typeText)
		decl.IsExtern = isExtern
		decl.Line = line
		decls = append(decls, decl)
	}
	return decls
}

// extractDeclarator classifies a single declarator as array, function or
// scalar and pulls out the name and, for arrays, the size literal.
func (e *Extractor) extractDeclarator(node *sitter.Node, source []byte) (Declaration, bool) {
	switch node.Type() {
	case "array_declarator":
		decl := Declaration{Kind: KindArray}
		name := identifierInDeclarator(node.ChildByFieldName("declarator"), source)
		if name == "" {
			return decl, false
		}
		decl.Name = name
		if sizeNode := node.ChildByFieldName("size"); sizeNode != nil {
			sizeText := strings.TrimSpace(sizeNode.Content(source))
			decl.SizeText = sizeText
			if size, err := strconv.ParseInt(sizeText, 0, 64); err == nil && size >= 0 {
				decl.Size = int(size)
				decl.HasSize = true
			}
		}
		return decl, true

	case "function_declarator":
		decl := Declaration{Kind: KindFunction}
		name := identifierInDeclarator(node.ChildByFieldName("declarator"), source)
		if name == "" {
			return decl, false
		}
		decl.Name = name
		decl.Params = countParameters(node.ChildByFieldName("parameters"), source)
		return decl, true

	case "pointer_declarator":
		// Pointers are registered as scalars of unknown extent; subscripts
		// through them are never bound-checked.
		name := identifierInDeclarator(node, source)
		if name == "" {
			return Declaration{}, false
		}
		return Declaration{Kind: KindScalar, Name: name}, true

	case "identifier":
		return Declaration{Kind: KindScalar, Name: node.Content(source)}, true
	}

	// Unrecognized declarator shape: try to find an identifier anyway.
	if name := identifierInDeclarator(node, source); name != "" {
		return Declaration{Kind: KindScalar, Name: name}, true
	}
	return Declaration{}, false
}

func (e *Extractor) extractFunctionDefinition(node *sitter.Node, source []byte) (Declaration, bool) {
	declarator := node.ChildByFieldName("declarator")
	for declarator != nil && declarator.Type() == "pointer_declarator" {
		declarator = declarator.ChildByFieldName("declarator")
	}
	if declarator == nil || declarator.Type() != "function_declarator" {
		return Declaration{}, false
	}

	name := identifierInDeclarator(declarator.ChildByFieldName("declarator"), source)
	if name == "" {
		return Declaration{}, false
	}

	typeText, _ := declarationType(node, source)
	return Declaration{
		Name:       name,
		Kind:       KindFunction,
		Type:       typeText,
		TypeFamily: typeFamily(typeText),
		Params:     countParameters(declarator.ChildByFieldName("parameters"), source),
		Line:       int(node.StartPoint().Row) + 1,
	}, true
}

func (e *Extractor) extractSubscript(node *sitter.Node, source []byte) (Subscript, bool) {
	arg := node.ChildByFieldName("argument")
	idx := node.ChildByFieldName("index")
	if arg == nil || idx == nil {
		return Subscript{}, false
	}
	// Only direct identifier bases are modeled; p->buf[i] and similar are
	// outside the analysis contract.
	if arg.Type() != "identifier" {
		return Subscript{}, false
	}

	sub := Subscript{
		Symbol:    arg.Content(source),
		IndexText: strings.TrimSpace(idx.Content(source)),
		Line:      int(node.StartPoint().Row) + 1,
	}
	if value, err := strconv.ParseInt(sub.IndexText, 0, 64); err == nil {
		sub.Index = value
		sub.IndexKnown = true
	}
	return sub, true
}

func (e *Extractor) extractCall(node *sitter.Node, source []byte) (Call, bool) {
	fn := node.ChildByFieldName("function")
	if fn == nil || fn.Type() != "identifier" {
		return Call{}, false
	}

	call := Call{
		Callee: fn.Content(source),
		Line:   int(node.StartPoint().Row) + 1,
	}
	if args := node.ChildByFieldName("arguments"); args != nil {
		for i := 0; i < int(args.ChildCount()); i++ {
			if args.Child(i).IsNamed() && args.Child(i).Type() != "comment" {
				call.Args++
			}
		}
	}
	return call, true
}

func (e *Extractor) extractInclude(node *sitter.Node, source []byte) Include {
	inc := Include{Line: int(node.StartPoint().Row) + 1}
	if path := node.ChildByFieldName("path"); path != nil {
		inc.Target = strings.Trim(path.Content(source), `"<>`)
		inc.System = path.Type() == "system_lib_string"
	}
	return inc
}

// declarationType collects the type specifier text of a declaration or
// function definition and reports whether an extern storage class is present.
func declarationType(node *sitter.Node, source []byte) (string, bool) {
	var parts []string
	isExtern := false
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "storage_class_specifier":
			if child.Content(source) == "extern" {
				isExtern = true
			}
		case "primitive_type", "sized_type_specifier", "type_identifier", "struct_specifier", "enum_specifier", "union_specifier":
			parts = append(parts, strings.Join(strings.Fields(child.Content(source)), " "))
		}
	}
	return strings.Join(parts, " "), isExtern
}

// identifierInDeclarator digs through nested declarators to the identifier.
func identifierInDeclarator(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	if node.Type() == "identifier" {
		return node.Content(source)
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		if name := identifierInDeclarator(node.Child(i), source); name != "" {
			return name
		}
	}
	return ""
}

// countParameters counts parameter declarations, treating "(void)" and "()"
// as zero parameters.
func countParameters(params *sitter.Node, source []byte) int {
	if params == nil {
		return 0
	}
	count := 0
	for i := 0; i < int(params.ChildCount()); i++ {
		child := params.Child(i)
		if child.Type() != "parameter_declaration" && child.Type() != "variadic_parameter" {
			continue
		}
		if strings.TrimSpace(child.Content(source)) == "void" {
			continue
		}
		count++
	}
	return count
}

// typeFamily maps raw C type text to its semantic family.
func typeFamily(typeText string) string {
	for _, word := range strings.Fields(typeText) {
		switch word {
		case "float", "double":
			return FamilyFloat
		}
	}
	for _, word := range strings.Fields(typeText) {
		switch word {
		case "int", "char", "short", "long", "unsigned", "signed", "_Bool", "size_t":
			return FamilyInteger
		}
	}
	return FamilyUnknown
}
