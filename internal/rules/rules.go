// Package rules holds the lookup tables that drive documentation checking.
//
// Nothing in the checker names a specific tag: it asks the tables whether a
// tag is ordered, legal for a kind, optional, conditionally required,
// inheritable, repeatable or part of a contradicting pair.
package rules

import (
	"slices"
	"strings"

	"github.com/phobologic/dtscheck/internal/jsdoc"
	"github.com/phobologic/dtscheck/internal/model"
)

// Well-known tags the checker reads values from.
const (
	VersionTag    = "since"
	ErrorCodeTag  = "throws"
	PermissionTag = "permission"
)

// Error codes whose presence a tag justifies.
const (
	PermissionDeniedCode = 201
	NotSystemAppCode     = 202
)

// Condition reports whether a conditionally optional tag is required on n.
type Condition func(t *Tables, n *model.ApiNode) bool

// Tables is an immutable rule set. Use Default for the standard one.
type Tables struct {
	order        []string
	orderIndex   map[string]int
	standard     set
	inheritable  []string
	optional     set
	conditional  map[string]Condition
	legal        map[model.Kind][]string
	permission   set
	repeatable   set
	contradicts  [][2]string
	dependencies map[string]string
	codeTags     map[int]string
}

type set map[string]struct{}

func newSet(items ...string) set {
	s := make(set, len(items))
	for _, it := range items {
		s[it] = struct{}{}
	}
	return s
}

func (s set) has(item string) bool {
	_, ok := s[item]
	return ok
}

// tagOrder is the canonical sequence of project tags.
var tagOrder = []string{
	"namespace", "struct", "extends", "typedef", "interface", "permission", "enum", "constant", "type", "param", "default",
	"returns", "readonly", "throws", "static", "fires", "syscap", "systemapi", "famodelonly", "FAModelOnly",
	"stagemodelonly", "StageModelOnly", "crossplatform", "form", "atomicservice", "since", "deprecated", "useinstead",
	"test", "example",
}

// jsdocStandard are JSDoc tags that are accepted anywhere and never ordered.
var jsdocStandard = []string{
	"abstract", "access", "alias", "async", "augments", "author", "borrows", "class", "classdesc", "constructs",
	"copyright", "event", "exports", "external", "file", "function", "generator", "global", "hideconstructor", "ignore",
	"implements", "inheritdoc", "inner", "instance", "lends", "license", "listens", "member", "memberof", "mixes",
	"mixin", "modifies", "module", "package", "private", "property", "protected", "public", "requires", "see", "summary",
	"this", "todo", "tutorial", "variation", "version", "yields", "also", "description", "kind", "name", "undocumented",
}

var inheritableTags = []string{
	"test", "famodelonly", "FAModelOnly", "stagemodelonly", "StageModelOnly", "deprecated", "systemapi",
}

var optionalTags = []string{
	"static", "fires", "systemapi", "famodelonly", "FAModelOnly", "stagemodelonly", "StageModelOnly",
	"crossplatform", "deprecated", "useinstead", "test", "form", "example", "atomicservice",
}

var legalTags = map[model.Kind][]string{
	model.CallSignature:       {"param", "returns", "permission", "throws", "syscap", "since"},
	model.Class:               {"extends", "syscap", "since"},
	model.Constructor:         {"param", "syscap", "permission", "throws", "since"},
	model.Enum:                {"enum", "syscap", "since"},
	model.Function:            {"param", "returns", "permission", "throws", "syscap", "since"},
	model.Interface:           {"interface", "typedef", "extends", "syscap", "since"},
	model.MethodDeclaration:   {"param", "returns", "permission", "throws", "syscap", "since"},
	model.MethodSignature:     {"param", "returns", "permission", "throws", "syscap", "since"},
	model.Namespace:           {"namespace", "syscap", "since"},
	model.PropertyDeclaration: {"type", "default", "permission", "throws", "readonly", "syscap", "since"},
	model.PropertySignature:   {"type", "default", "permission", "throws", "readonly", "syscap", "since"},
	model.VariableStatement:   {"constant", "default", "permission", "throws", "syscap", "since"},
}

var permissionKinds = []model.Kind{
	model.Function,
	model.MethodSignature,
	model.MethodDeclaration,
	model.CallSignature,
	model.Constructor,
	model.PropertyDeclaration,
	model.PropertySignature,
	model.VariableStatement,
}

var conditions = map[string]Condition{
	"type": func(_ *Tables, n *model.ApiNode) bool {
		return n.Attrs.DeclaredType == ""
	},
	"default": func(_ *Tables, n *model.ApiNode) bool {
		return n.Attrs.Optional && !n.Attrs.HasInitializer
	},
	"readonly": func(_ *Tables, n *model.ApiNode) bool {
		return n.Attrs.Readonly
	},
	PermissionTag: func(_ *Tables, n *model.ApiNode) bool {
		for _, tag := range n.TagsNamed(ErrorCodeTag) {
			if th := jsdoc.ParseThrows(tag.RawValue); th.HasCode && th.Code == PermissionDeniedCode {
				return true
			}
		}
		return false
	},
	ErrorCodeTag: func(t *Tables, n *model.ApiNode) bool {
		return n.HasTag(PermissionTag) && t.Legal(n.Kind, ErrorCodeTag)
	},
	"param": func(_ *Tables, n *model.ApiNode) bool {
		return n.Attrs.ParamCount > 0
	},
	"returns": func(_ *Tables, n *model.ApiNode) bool {
		rt := n.Attrs.ReturnType
		return n.Kind != model.Constructor && rt != "" && rt != "void"
	},
	"constant": func(_ *Tables, n *model.ApiNode) bool {
		return n.Attrs.Const
	},
	"extends": func(_ *Tables, n *model.ApiNode) bool {
		return n.Attrs.HasHeritage
	},
	// An interface is documented by either tag; only a block with neither
	// reports, and it reports "interface".
	"interface": func(_ *Tables, n *model.ApiNode) bool {
		return !n.HasTag("typedef")
	},
	"typedef": func(*Tables, *model.ApiNode) bool {
		return false
	},
}

// Default returns the standard rule set.
func Default() *Tables {
	t := &Tables{
		order:       slices.Clone(tagOrder),
		orderIndex:  make(map[string]int, len(tagOrder)),
		standard:    newSet(jsdocStandard...),
		inheritable: slices.Clone(inheritableTags),
		optional:    newSet(optionalTags...),
		conditional: conditions,
		legal:       make(map[model.Kind][]string, len(legalTags)),
		permission:  make(set, len(permissionKinds)),
		repeatable:  newSet("param", "throws", "extends", "fires", "example", "see"),
		contradicts: [][2]string{
			{"famodelonly", "stagemodelonly"},
			{"FAModelOnly", "StageModelOnly"},
			{"famodelonly", "StageModelOnly"},
			{"FAModelOnly", "stagemodelonly"},
			{"interface", "typedef"},
		},
		dependencies: map[string]string{"useinstead": "deprecated"},
		codeTags: map[int]string{
			PermissionDeniedCode: PermissionTag,
			NotSystemAppCode:     "systemapi",
		},
	}
	for i, tag := range t.order {
		t.orderIndex[tag] = i
	}
	for kind, tags := range legalTags {
		t.legal[kind] = slices.Clone(tags)
	}
	for _, kind := range permissionKinds {
		t.permission[string(kind)] = struct{}{}
	}
	return t
}

// OrderIndex returns the canonical position of tag, or false for tags
// outside the order table.
func (t *Tables) OrderIndex(tag string) (int, bool) {
	i, ok := t.orderIndex[tag]
	return i, ok
}

// Known reports whether tag is a project tag or a JSDoc standard tag.
func (t *Tables) Known(tag string) bool {
	_, ordered := t.orderIndex[tag]
	return ordered || t.standard.has(tag)
}

// Legal reports whether tag is in the legal set of kind.
func (t *Tables) Legal(kind model.Kind, tag string) bool {
	return slices.Contains(t.legal[kind], tag)
}

// LegalTags returns the legal set of kind in table order.
func (t *Tables) LegalTags(kind model.Kind) []string {
	return slices.Clone(t.legal[kind])
}

// Permitted reports whether tag may appear on a node of kind: it is legal
// for the kind, optional everywhere, or a JSDoc standard tag.
func (t *Tables) Permitted(kind model.Kind, tag string) bool {
	return t.Legal(kind, tag) || t.optional.has(tag) || t.standard.has(tag)
}

// Optional reports whether tag is never required.
func (t *Tables) Optional(tag string) bool {
	return t.optional.has(tag)
}

// Required reports whether a missing tag on n is a finding. Legal tags are
// required unless optional; conditional tags only when their condition holds.
func (t *Tables) Required(n *model.ApiNode, tag string) bool {
	if !t.Legal(n.Kind, tag) || t.optional.has(tag) {
		return false
	}
	if cond, ok := t.conditional[tag]; ok {
		return cond(t, n)
	}
	return true
}

// Inheritable reports whether tag must propagate to nested members and
// across overloads.
func (t *Tables) Inheritable(tag string) bool {
	return slices.Contains(t.inheritable, tag)
}

// InheritableTags returns the inheritable tags in table order.
func (t *Tables) InheritableTags() []string {
	return slices.Clone(t.inheritable)
}

// BearsPermission reports whether kind may document permissions and error
// codes.
func (t *Tables) BearsPermission(kind model.Kind) bool {
	return t.permission.has(string(kind))
}

// Repeatable reports whether tag may occur more than once in one block.
func (t *Tables) Repeatable(tag string) bool {
	return t.repeatable.has(tag)
}

// Contradictions returns the pairs of tags that cannot share a block.
func (t *Tables) Contradictions() [][2]string {
	return slices.Clone(t.contradicts)
}

// DependsOn returns the tag that must accompany tag, if any.
func (t *Tables) DependsOn(tag string) (string, bool) {
	dep, ok := t.dependencies[tag]
	return dep, ok
}

// CodeRequires returns the tag that justifies documenting code, if any.
func (t *Tables) CodeRequires(code int) (string, bool) {
	tag, ok := t.codeTags[code]
	return tag, ok
}

// Message templates. Each "$$" is replaced in order by Format.
const (
	MsgNoDoc                 = "api [$$] has no documentation comment"
	MsgMissingTag            = "missing [$$] tag"
	MsgWrongOrder            = "tag [$$] should be placed before tag [$$]"
	MsgIllegalTag            = "tag [$$] is not allowed on $$"
	MsgUnofficialTag         = "tag [$$] is not an official tag"
	MsgDuplicateTag          = "tag [$$] appears more than once"
	MsgContradictingTags     = "tags [$$] and [$$] cannot be used together"
	MsgDependentTag          = "tag [$$] requires tag [$$]"
	MsgWrongVersion          = "[$$] value [$$] is not a version number"
	MsgVersionOutOfRange     = "[$$] value $$ is newer than the checked api version $$"
	MsgVersionRegression     = "[$$] value $$ is lower than the enclosing declaration's $$"
	MsgInheritFromParent     = "tag [$$] of the enclosing declaration is missing"
	MsgInheritFromOverload   = "tag [$$] is present on another overload of [$$]"
	MsgErrorCodeMissing      = "[$$] tag has no error code: $$"
	MsgErrorCodeDuplicate    = "error code $$ is documented more than once"
	MsgErrorCodeInconsistent = "error code $$ is documented on another overload of [$$]"
)

// Format substitutes params into the placeholders of template in order.
// Surplus placeholders are left as is; surplus params are dropped.
func Format(template string, params ...string) string {
	parts := strings.Split(template, "$$")
	var b strings.Builder
	for i, part := range parts {
		b.WriteString(part)
		if i == len(parts)-1 {
			break
		}
		if i < len(params) {
			b.WriteString(params[i])
		} else {
			b.WriteString("$$")
		}
	}
	return b.String()
}
