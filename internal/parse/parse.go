// Package parse extracts documented API declarations from parsed source files.
package parse

import (
	"slices"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/dtscheck/internal/ast"
	"github.com/phobologic/dtscheck/internal/jsdoc"
	"github.com/phobologic/dtscheck/internal/model"
)

// DefaultCacheSize bounds the number of distinct comment blocks kept parsed.
const DefaultCacheSize = 8192

// wrappers are transparent for nesting and for comment lookup.
var wrappers = map[string]struct{}{
	"export_statement":     {},
	"ambient_declaration":  {},
	"expression_statement": {},
}

// Extractor turns syntax trees into ApiNode arenas. It is safe for
// concurrent use; identical comment blocks are parsed once.
type Extractor struct {
	blocks *lru.Cache[string, jsdoc.Block]
}

// NewExtractor creates an Extractor caching up to size parsed comment blocks.
func NewExtractor(size int) *Extractor {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, jsdoc.Block](size)
	if err != nil {
		panic(err) // only fails for non-positive sizes
	}
	return &Extractor{blocks: cache}
}

// Extract produces one ApiNode per qualifying declaration in sf, in source
// pre-order. Overload signatures become separate nodes.
func (e *Extractor) Extract(sf *ast.SourceFile) *model.File {
	f := &model.File{
		Path:     sf.Path,
		BaseName: model.BaseName(sf.Path),
	}
	w := walker{e: e, sf: sf, file: f}
	w.visit(sf.Root(), -1)
	return f
}

func (e *Extractor) parseBlock(text string) jsdoc.Block {
	if b, ok := e.blocks.Get(text); ok {
		return b
	}
	b := jsdoc.Parse(text)
	e.blocks.Add(text, b)
	return b
}

type walker struct {
	e    *Extractor
	sf   *ast.SourceFile
	file *model.File
}

// visit walks the named children of node, attaching qualifying declarations
// to parent.
func (w *walker) visit(node *sitter.Node, parent int) {
	if node == nil {
		return
	}
	container := node.Type()
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		kind, ok := classify(child, container, w.sf.Source)
		if ok {
			idx := w.add(child, kind, parent)
			switch kind {
			case model.Namespace, model.Class, model.Interface:
				w.visit(child.ChildByFieldName("body"), idx)
			}
			continue
		}
		switch child.Type() {
		case "export_statement", "ambient_declaration", "expression_statement", "statement_block":
			w.visit(child, parent)
		}
	}
}

// classify maps a tree-sitter node to an API kind. container is the type of
// the node's parent, which separates class members from interface members.
func classify(node *sitter.Node, container string, source []byte) (model.Kind, bool) {
	switch node.Type() {
	case "internal_module", "module":
		return model.Namespace, true
	case "class_declaration", "abstract_class_declaration":
		return model.Class, true
	case "interface_declaration":
		return model.Interface, true
	case "enum_declaration":
		return model.Enum, true
	case "function_declaration", "function_signature":
		return model.Function, true
	case "method_definition", "method_signature", "abstract_method_signature":
		if container == "class_body" {
			if isConstructor(node, source) {
				return model.Constructor, true
			}
			return model.MethodDeclaration, true
		}
		return model.MethodSignature, true
	case "call_signature":
		return model.CallSignature, true
	case "public_field_definition":
		return model.PropertyDeclaration, true
	case "property_signature":
		return model.PropertySignature, true
	case "lexical_declaration", "variable_declaration":
		return model.VariableStatement, true
	}
	return "", false
}

func isConstructor(node *sitter.Node, source []byte) bool {
	name := node.ChildByFieldName("name")
	return name != nil && name.Content(source) == "constructor"
}

func (w *walker) add(node *sitter.Node, kind model.Kind, parent int) int {
	outer := outermost(node)
	pos := w.sf.Position(outer)
	n := model.ApiNode{
		Index:    len(w.file.Nodes),
		Kind:     kind,
		Name:     w.nameOf(node, kind),
		Line:     pos.Line,
		Column:   pos.Column,
		FullText: w.fullText(outer, node, kind),
		Parent:   parent,
		Attrs:    w.attributes(node, kind),
	}
	if stack := w.docComments(node); len(stack) > 0 {
		b := w.e.parseBlock(stack[len(stack)-1])
		n.HasDoc = true
		n.Tags = slices.Clone(b.Tags)
		n.Introduced = w.introduced(stack)
	}
	w.file.Nodes = append(w.file.Nodes, n)
	return n.Index
}

// outermost climbs the wrapper chain ("export", "declare") that node leads.
func outermost(node *sitter.Node) *sitter.Node {
	for {
		parent := node.Parent()
		if parent == nil {
			return node
		}
		if _, ok := wrappers[parent.Type()]; !ok || !sameNode(leadingChild(parent), node) {
			return node
		}
		node = parent
	}
}

// docComments finds the documentation blocks attached to node: the
// contiguous /** */ comments preceding the node or its wrapper chain, oldest
// first. Declarations revised across releases stack one block per revision;
// the last block is the current documentation.
func (w *walker) docComments(node *sitter.Node) []string {
	anchor := node
	for {
		if stack := w.precedingDocs(anchor); len(stack) > 0 {
			return stack
		}
		parent := anchor.Parent()
		if parent == nil {
			return nil
		}
		if _, ok := wrappers[parent.Type()]; !ok {
			return nil
		}
		// Only the leading declaration of a wrapper inherits its comment.
		if !sameNode(leadingChild(parent), anchor) {
			return nil
		}
		anchor = parent
	}
}

func (w *walker) precedingDocs(node *sitter.Node) []string {
	prev := node.PrevNamedSibling()
	for prev != nil && prev.Type() == "decorator" {
		prev = prev.PrevNamedSibling()
	}
	var stack []string
	for prev != nil && prev.Type() == "comment" {
		text := w.sf.Text(prev)
		if !jsdoc.IsDocComment(text) {
			break
		}
		stack = append(stack, text)
		prev = prev.PrevNamedSibling()
	}
	slices.Reverse(stack)
	return stack
}

// introduced returns the lowest numeric version tag across a block stack,
// 0 when no block carries one.
func (w *walker) introduced(stack []string) int {
	lowest := 0
	for _, text := range stack {
		for _, tag := range w.e.parseBlock(text).Tags {
			if tag.Name != "since" {
				continue
			}
			if v, ok := jsdoc.Version(tag.RawValue); ok && (lowest == 0 || v < lowest) {
				lowest = v
			}
		}
	}
	return lowest
}

// leadingChild returns the first named child that is not a comment or decorator.
func leadingChild(node *sitter.Node) *sitter.Node {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		switch c := node.NamedChild(i); c.Type() {
		case "comment", "decorator":
		default:
			return c
		}
	}
	return nil
}

func sameNode(a, b *sitter.Node) bool {
	return a != nil && b != nil && a.Type() == b.Type() &&
		a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte()
}

func (w *walker) nameOf(node *sitter.Node, kind model.Kind) string {
	switch kind {
	case model.CallSignature:
		return ""
	case model.VariableStatement:
		for i := 0; i < int(node.NamedChildCount()); i++ {
			c := node.NamedChild(i)
			if c.Type() == "variable_declarator" {
				if name := c.ChildByFieldName("name"); name != nil {
					return w.sf.Text(name)
				}
			}
		}
		return ""
	}
	if name := node.ChildByFieldName("name"); name != nil {
		return strings.Trim(w.sf.Text(name), `'"`)
	}
	return ""
}

// fullText returns the declaration text starting at its outermost wrapper.
// Containers are cut at their body so a namespace does not repeat its whole
// file.
func (w *walker) fullText(outer, node *sitter.Node, kind model.Kind) string {
	switch kind {
	case model.Namespace, model.Class, model.Interface, model.Enum:
		if body := node.ChildByFieldName("body"); body != nil {
			return ast.CollapseWhitespace(string(w.sf.Source[outer.StartByte():body.StartByte()]))
		}
	}
	return strings.TrimSpace(w.sf.Text(outer))
}

func (w *walker) attributes(node *sitter.Node, kind model.Kind) model.Attributes {
	var a model.Attributes
	for i := 0; i < int(node.ChildCount()); i++ {
		switch c := node.Child(i); c.Type() {
		case "?":
			a.Optional = true
		case "readonly":
			a.Readonly = true
		case "const":
			a.Const = true
		case "extends_type_clause", "extends_clause":
			a.HasHeritage = true
		case "class_heritage":
			for j := 0; j < int(c.NamedChildCount()); j++ {
				if c.NamedChild(j).Type() == "extends_clause" {
					a.HasHeritage = true
				}
			}
		}
	}

	target := node
	if kind == model.VariableStatement {
		for i := 0; i < int(node.NamedChildCount()); i++ {
			if c := node.NamedChild(i); c.Type() == "variable_declarator" {
				target = c
				break
			}
		}
	}

	if t := target.ChildByFieldName("type"); t != nil {
		a.DeclaredType = typeText(w.sf.Text(t))
	}
	if target.ChildByFieldName("value") != nil {
		a.HasInitializer = true
	}
	if params := node.ChildByFieldName("parameters"); params != nil {
		for i := 0; i < int(params.NamedChildCount()); i++ {
			switch params.NamedChild(i).Type() {
			case "required_parameter", "optional_parameter", "rest_parameter":
				a.ParamCount++
			}
		}
	}
	if rt := node.ChildByFieldName("return_type"); rt != nil {
		a.ReturnType = typeText(w.sf.Text(rt))
	}
	return a
}

// typeText strips the leading colon of a type annotation.
func typeText(s string) string {
	return ast.CollapseWhitespace(strings.TrimPrefix(strings.TrimSpace(s), ":"))
}
