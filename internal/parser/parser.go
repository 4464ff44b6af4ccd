// Package parser extracts structural facts from Python source files
// using tree-sitter: symbol definitions, module-scope imports, and
// call references. Parse failures are reported as data, never raised.
package parser

import (
	"context"
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// Symbol kinds
const (
	KindClass         = "class"
	KindFunction      = "function"
	KindAsyncFunction = "async_function"
)

// ModuleScope is the caller token for calls made at module top level
const ModuleScope = "<module>"

// Symbol is one extracted definition
type Symbol struct {
	Name          string
	QualifiedName string
	Kind          string
	StartLine     int // 1-indexed
	EndLine       int // 1-indexed
	Signature     string
}

// Call is one call reference; Caller is the dot-joined scope stack at
// the call site, or ModuleScope.
type Call struct {
	Caller     string
	CalleeName string
}

// Result holds everything extracted from one file. When ParseError is
// non-empty the fact slices are empty and the file is degraded, not fatal.
type Result struct {
	Symbols    []Symbol
	Imports    []string
	Calls      []Call
	ParseError string
}

// Parser parses Python source files
type Parser struct {
	inner *sitter.Parser
}

// New creates a Python parser
func New() *Parser {
	p := sitter.NewParser()
	p.SetLanguage(python.GetLanguage())
	return &Parser{inner: p}
}

// Parse extracts symbols, imports, and calls from one file's source.
// On a syntax error the result carries a ParseError and empty facts.
func (p *Parser) Parse(ctx context.Context, path string, source []byte) *Result {
	tree, err := p.inner.ParseCtx(ctx, nil, source)
	if err != nil {
		return &Result{ParseError: fmt.Sprintf("parse failed: %v", err)}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return &Result{ParseError: describeSyntaxError(root, path)}
	}

	c := &collector{source: source}
	c.walk(root, nil)

	sort.Strings(c.imports)
	imports := dedupeSorted(c.imports)

	return &Result{
		Symbols: c.symbols,
		Imports: imports,
		Calls:   c.calls,
	}
}

// describeSyntaxError locates the first error node for the message
func describeSyntaxError(root *sitter.Node, path string) string {
	if bad := firstErrorNode(root); bad != nil {
		return fmt.Sprintf("%s: syntax error at line %d", path, int(bad.StartPoint().Row)+1)
	}
	return fmt.Sprintf("%s: syntax error", path)
}

func firstErrorNode(node *sitter.Node) *sitter.Node {
	if node.IsError() || node.IsMissing() {
		return node
	}
	for i := uint32(0); i < node.ChildCount(); i++ {
		child := node.Child(int(i))
		if child == nil || !child.HasError() {
			continue
		}
		if found := firstErrorNode(child); found != nil {
			return found
		}
	}
	return nil
}

// collector walks the syntax tree. The scope stack is passed down
// per call rather than mutated in place, so a later parallel walk
// cannot alias traversal state.
type collector struct {
	source  []byte
	symbols []Symbol
	imports []string
	calls   []Call
}

func (c *collector) walk(node *sitter.Node, scope []string) {
	switch node.Type() {
	case "class_definition":
		c.visitClass(node, scope)
		return
	case "function_definition":
		c.visitFunction(node, scope)
		return
	case "import_statement":
		c.visitImport(node)
	case "import_from_statement":
		c.visitImportFrom(node)
	case "call":
		c.visitCall(node, scope)
	}

	for i := uint32(0); i < node.ChildCount(); i++ {
		if child := node.Child(int(i)); child != nil {
			c.walk(child, scope)
		}
	}
}

func (c *collector) text(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	return string(c.source[node.StartByte():node.EndByte()])
}

func qualify(scope []string, name string) string {
	if len(scope) == 0 {
		return name
	}
	return strings.Join(scope, ".") + "." + name
}

// push returns a fresh scope slice so sibling walks never share backing arrays
func push(scope []string, name string) []string {
	next := make([]string, 0, len(scope)+1)
	next = append(next, scope...)
	return append(next, name)
}

func (c *collector) visitClass(node *sitter.Node, scope []string) {
	nameNode := node.ChildByFieldName("name")
	name := c.text(nameNode)
	if name == "" {
		return
	}

	signature := "class " + name
	if supers := node.ChildByFieldName("superclasses"); supers != nil {
		bases := strings.TrimSuffix(strings.TrimPrefix(c.text(supers), "("), ")")
		if strings.TrimSpace(bases) != "" {
			signature = fmt.Sprintf("class %s(%s)", name, bases)
		}
	}

	c.symbols = append(c.symbols, Symbol{
		Name:          name,
		QualifiedName: qualify(scope, name),
		Kind:          KindClass,
		StartLine:     int(node.StartPoint().Row) + 1,
		EndLine:       int(node.EndPoint().Row) + 1,
		Signature:     signature,
	})

	inner := push(scope, name)
	for i := uint32(0); i < node.ChildCount(); i++ {
		if child := node.Child(int(i)); child != nil {
			c.walk(child, inner)
		}
	}
}

func (c *collector) visitFunction(node *sitter.Node, scope []string) {
	nameNode := node.ChildByFieldName("name")
	name := c.text(nameNode)
	if name == "" {
		return
	}

	kind := KindFunction
	if isAsyncDef(node) {
		kind = KindAsyncFunction
	}

	c.symbols = append(c.symbols, Symbol{
		Name:          name,
		QualifiedName: qualify(scope, name),
		Kind:          kind,
		StartLine:     int(node.StartPoint().Row) + 1,
		EndLine:       int(node.EndPoint().Row) + 1,
		Signature:     c.functionSignature(node, name, kind),
	})

	inner := push(scope, name)
	for i := uint32(0); i < node.ChildCount(); i++ {
		if child := node.Child(int(i)); child != nil {
			c.walk(child, inner)
		}
	}
}

// isAsyncDef reports whether the definition carries the async keyword
func isAsyncDef(node *sitter.Node) bool {
	for i := uint32(0); i < node.ChildCount(); i++ {
		child := node.Child(int(i))
		if child == nil {
			continue
		}
		if child.Type() == "async" {
			return true
		}
		if child.Type() == "def" {
			break
		}
	}
	return false
}

func (c *collector) functionSignature(node *sitter.Node, name, kind string) string {
	params := c.text(node.ChildByFieldName("parameters"))
	if params == "" {
		params = "()"
	}

	prefix := "def"
	if kind == KindAsyncFunction {
		prefix = "async def"
	}

	sig := fmt.Sprintf("%s %s%s", prefix, name, params)
	if ret := c.text(node.ChildByFieldName("return_type")); ret != "" {
		sig += " -> " + ret
	}
	return sig
}

// visitImport handles `import a.b` and `import a.b as c`
func (c *collector) visitImport(node *sitter.Node) {
	for i := uint32(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(int(i))
		if child == nil {
			continue
		}
		switch child.Type() {
		case "dotted_name":
			c.addImport(c.text(child))
		case "aliased_import":
			c.addImport(c.text(child.ChildByFieldName("name")))
		}
	}
}

// visitImportFrom handles the from-import forms:
// `from a.b import c` -> a.b.c, `from a.b import *` -> a.b,
// relative prefixes are stripped (from .m import x -> m.x).
func (c *collector) visitImportFrom(node *sitter.Node) {
	moduleNode := node.ChildByFieldName("module_name")
	module := ""
	if moduleNode != nil {
		module = strings.TrimLeft(c.text(moduleNode), ".")
	}

	for i := uint32(0); i < node.NamedChildCount(); i++ {
		child := node.NamedChild(int(i))
		if child == nil {
			continue
		}
		// Node wrappers are not identity-comparable; skip the module
		// operand by position.
		if moduleNode != nil && child.StartByte() == moduleNode.StartByte() && child.EndByte() == moduleNode.EndByte() {
			continue
		}

		var name string
		switch child.Type() {
		case "wildcard_import":
			if module != "" {
				c.addImport(module)
			}
			continue
		case "dotted_name":
			name = c.text(child)
		case "aliased_import":
			name = c.text(child.ChildByFieldName("name"))
		default:
			continue
		}

		if name == "" {
			continue
		}
		if module != "" {
			c.addImport(module + "." + name)
		} else {
			c.addImport(name)
		}
	}
}

func (c *collector) addImport(module string) {
	if module != "" {
		c.imports = append(c.imports, module)
	}
}

// visitCall records the callee identifier: the plain name, or the last
// attribute segment for attribute-style calls. No binding resolution.
func (c *collector) visitCall(node *sitter.Node, scope []string) {
	fn := node.ChildByFieldName("function")
	if fn == nil {
		return
	}

	var callee string
	switch fn.Type() {
	case "identifier":
		callee = c.text(fn)
	case "attribute":
		callee = c.text(fn.ChildByFieldName("attribute"))
	}

	if callee == "" {
		return
	}

	caller := ModuleScope
	if len(scope) > 0 {
		caller = strings.Join(scope, ".")
	}
	c.calls = append(c.calls, Call{Caller: caller, CalleeName: callee})
}

func dedupeSorted(sorted []string) []string {
	out := sorted[:0]
	var prev string
	for i, s := range sorted {
		if i == 0 || s != prev {
			out = append(out, s)
		}
		prev = s
	}
	return out
}
