// Package model defines core data structures for dtscheck.
package model

import (
	"fmt"
	"strings"
)

// Kind is the syntactic kind of a documented API declaration.
type Kind string

const (
	Namespace           Kind = "namespace"
	Class               Kind = "class"
	Interface           Kind = "interface"
	Enum                Kind = "enum"
	Function            Kind = "function"
	MethodSignature     Kind = "methodSignature"
	MethodDeclaration   Kind = "methodDeclaration"
	CallSignature       Kind = "callSignature"
	Constructor         Kind = "constructor"
	PropertyDeclaration Kind = "propertyDeclaration"
	PropertySignature   Kind = "propertySignature"
	VariableStatement   Kind = "variableStatement"
)

// Kinds lists every kind eligible for documentation checking.
var Kinds = []Kind{
	Namespace, Class, Interface, Enum, Function, MethodSignature,
	MethodDeclaration, CallSignature, Constructor, PropertyDeclaration,
	PropertySignature, VariableStatement,
}

// IsCallable reports whether declarations of this kind can be overloaded.
func (k Kind) IsCallable() bool {
	switch k {
	case Function, MethodSignature, MethodDeclaration, CallSignature, Constructor:
		return true
	}
	return false
}

// TagRecord is one documentation tag occurrence within a comment block.
type TagRecord struct {
	Name     string
	RawValue string
	Order    int
}

// Attributes are the syntax facts of a declaration that conditional rules consult.
type Attributes struct {
	Optional       bool   // declared with "?"
	Readonly       bool   // readonly modifier
	Const          bool   // const variable statement
	HasInitializer bool   // "= value" present
	DeclaredType   string // type annotation text, "" when absent
	HasHeritage    bool   // extends clause on a class or interface
	ParamCount     int
	ReturnType     string // return type annotation text, "" when absent
}

// ApiNode is one declaration eligible for documentation checking.
// Nodes live in a File arena; Parent and Overloads are arena indexes.
type ApiNode struct {
	Index     int
	Kind      Kind
	Name      string
	Tags      []TagRecord
	HasDoc    bool
	Line      int // 1-based
	Column    int // 1-based
	FullText  string
	Parent    int // -1 when top level
	Overloads []int
	Attrs     Attributes
	// Introduced is the lowest version across every stacked doc block of
	// the declaration, 0 when none carries one.
	Introduced int
}

// HasTag reports whether the node carries a tag with the given name.
func (n *ApiNode) HasTag(name string) bool {
	for i := range n.Tags {
		if n.Tags[i].Name == name {
			return true
		}
	}
	return false
}

// TagsNamed returns every occurrence of the named tag in source order.
func (n *ApiNode) TagsNamed(name string) []TagRecord {
	var out []TagRecord
	for _, t := range n.Tags {
		if t.Name == name {
			out = append(out, t)
		}
	}
	return out
}

// File is the arena of ApiNodes extracted from one source file.
// Nodes are stored in pre-order, so a parent precedes its children.
type File struct {
	Path     string
	BaseName string
	Nodes    []ApiNode
}

// ParentOf returns the enclosing node, or nil at top level.
func (f *File) ParentOf(n *ApiNode) *ApiNode {
	if n.Parent < 0 || n.Parent >= len(f.Nodes) {
		return nil
	}
	return &f.Nodes[n.Parent]
}

// Location formats a file position the way findings report it.
func Location(path string, line, col int) string {
	return fmt.Sprintf("%s(line: %d, col: %d)", path, line, col)
}

// BaseName derives the logical module name of a declaration file.
func BaseName(path string) string {
	name := path
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	for _, suffix := range []string{".d.ets", ".d.ts", ".ets", ".tsx", ".ts"} {
		if strings.HasSuffix(name, suffix) {
			return strings.TrimSuffix(name, suffix)
		}
	}
	return name
}

// ErrorType classifies a Finding.
type ErrorType string

const (
	ErrMissingTag          ErrorType = "missing tag"
	ErrWrongOrder          ErrorType = "wrong order"
	ErrIllegalTag          ErrorType = "illegal tag"
	ErrDuplicateTag        ErrorType = "duplicate tag"
	ErrVersionRegression   ErrorType = "version regression"
	ErrVersionRange        ErrorType = "version out of range"
	ErrWrongValue          ErrorType = "wrong value"
	ErrMalformedErrorCode  ErrorType = "malformed error code"
	ErrInconsistentCode    ErrorType = "inconsistent error code"
	ErrInconsistentInherit ErrorType = "inconsistent inheritable tag"
)

// ErrorTypes lists every error type in reporting order.
var ErrorTypes = []ErrorType{
	ErrMissingTag, ErrWrongOrder, ErrIllegalTag, ErrDuplicateTag,
	ErrVersionRegression, ErrVersionRange, ErrWrongValue,
	ErrMalformedErrorCode, ErrInconsistentCode, ErrInconsistentInherit,
}

// Slug returns the kebab-case identifier used on the command line.
func (e ErrorType) Slug() string {
	return strings.ReplaceAll(string(e), " ", "-")
}

// ParseErrorType accepts either the display form or the slug of an error type.
func ParseErrorType(s string) (ErrorType, error) {
	norm := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", " ")
	for _, e := range ErrorTypes {
		if string(e) == norm {
			return e, nil
		}
	}
	return "", fmt.Errorf("unknown error type %q", s)
}

// Finding is one rule violation.
type Finding struct {
	ErrorType   ErrorType `json:"errorType"`
	Location    string    `json:"location"`
	File        string    `json:"-"`
	Line        int       `json:"-"`
	Column      int       `json:"-"`
	ApiName     string    `json:"apiName"`
	ApiFullText string    `json:"apiFullText"`
	ApiKind     Kind      `json:"apiKind"`
	Message     string    `json:"message"`
	Version     string    `json:"version"`
	BaseName    string    `json:"baseName"`
}
