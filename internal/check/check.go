// Package check evaluates the documentation rules against linked ApiNode
// arenas and produces findings.
package check

import (
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/phobologic/dtscheck/internal/graph"
	"github.com/phobologic/dtscheck/internal/jsdoc"
	"github.com/phobologic/dtscheck/internal/model"
	"github.com/phobologic/dtscheck/internal/rules"
)

// Checker runs the rule set. It holds no per-run state and is safe for
// concurrent use.
type Checker struct {
	tables     *rules.Tables
	apiVersion int
	enabled    map[model.ErrorType]bool
}

// Option configures a Checker.
type Option func(*Checker)

// WithAPIVersion sets the newest version a version tag may carry.
// Zero or negative disables the bound.
func WithAPIVersion(v int) Option {
	return func(c *Checker) { c.apiVersion = v }
}

// WithTables replaces the standard rule tables.
func WithTables(t *rules.Tables) Option {
	return func(c *Checker) { c.tables = t }
}

// WithErrorTypes restricts reporting to the given error types.
// No types means all of them.
func WithErrorTypes(types ...model.ErrorType) Option {
	return func(c *Checker) {
		if len(types) == 0 {
			c.enabled = nil
			return
		}
		c.enabled = make(map[model.ErrorType]bool, len(types))
		for _, t := range types {
			c.enabled[t] = true
		}
	}
}

// New creates a Checker with the standard tables.
func New(opts ...Option) *Checker {
	c := &Checker{tables: rules.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CheckFile evaluates every node of f in arena order. f must have been
// linked with graph.Link. The file is only read.
func (c *Checker) CheckFile(f *model.File) []model.Finding {
	r := run{c: c, f: f}
	for i := range f.Nodes {
		r.node(i)
	}
	return r.findings
}

type run struct {
	c        *Checker
	f        *model.File
	findings []model.Finding
}

func (r *run) emit(n *model.ApiNode, errType model.ErrorType, msg string) {
	if r.c.enabled != nil && !r.c.enabled[errType] {
		return
	}
	r.findings = append(r.findings, model.Finding{
		ErrorType:   errType,
		Location:    model.Location(r.f.Path, n.Line, n.Column),
		File:        r.f.Path,
		Line:        n.Line,
		Column:      n.Column,
		ApiName:     n.Name,
		ApiFullText: n.FullText,
		ApiKind:     n.Kind,
		Message:     msg,
		Version:     versionText(n),
		BaseName:    r.f.BaseName,
	})
}

func versionText(n *model.ApiNode) string {
	for _, t := range n.Tags {
		if t.Name == rules.VersionTag {
			return strings.TrimSpace(t.RawValue)
		}
	}
	return ""
}

func (r *run) node(i int) {
	n := &r.f.Nodes[i]
	if !n.HasDoc {
		r.emit(n, model.ErrMissingTag, rules.Format(rules.MsgNoDoc, displayName(n)))
		return
	}
	r.duplicates(n)
	r.order(n)
	r.legality(n)
	r.optionality(n)
	r.values(n)
	r.monotonicity(i)
	r.inheritance(i)
	r.errorCodes(n)
}

func displayName(n *model.ApiNode) string {
	if n.Name == "" {
		return string(n.Kind)
	}
	return n.Name
}

// distinctTags returns tag names in order of first occurrence.
func distinctTags(n *model.ApiNode) []string {
	var names []string
	for _, t := range n.Tags {
		if !slices.Contains(names, t.Name) {
			names = append(names, t.Name)
		}
	}
	return names
}

func (r *run) duplicates(n *model.ApiNode) {
	t := r.c.tables
	for _, name := range distinctTags(n) {
		if _, ordered := t.OrderIndex(name); !ordered || t.Repeatable(name) {
			continue
		}
		if len(n.TagsNamed(name)) > 1 {
			r.emit(n, model.ErrDuplicateTag, rules.Format(rules.MsgDuplicateTag, name))
		}
	}
	for _, pair := range t.Contradictions() {
		if n.HasTag(pair[0]) && n.HasTag(pair[1]) {
			r.emit(n, model.ErrDuplicateTag, rules.Format(rules.MsgContradictingTags, pair[0], pair[1]))
		}
	}
}

// order reports the first tag whose canonical position precedes that of a
// tag already seen. Tags outside the order table are skipped.
func (r *run) order(n *model.ApiNode) {
	maxIdx, maxTag := -1, ""
	for _, tag := range n.Tags {
		idx, ok := r.c.tables.OrderIndex(tag.Name)
		if !ok {
			continue
		}
		if idx < maxIdx {
			r.emit(n, model.ErrWrongOrder, rules.Format(rules.MsgWrongOrder, tag.Name, maxTag))
			return
		}
		if idx > maxIdx {
			maxIdx, maxTag = idx, tag.Name
		}
	}
}

func (r *run) legality(n *model.ApiNode) {
	t := r.c.tables
	for _, tag := range n.Tags {
		switch {
		case !t.Known(tag.Name):
			r.emit(n, model.ErrIllegalTag, rules.Format(rules.MsgUnofficialTag, tag.Name))
		case !t.Permitted(n.Kind, tag.Name):
			r.emit(n, model.ErrIllegalTag, rules.Format(rules.MsgIllegalTag, tag.Name, string(n.Kind)))
		}
	}
}

func (r *run) optionality(n *model.ApiNode) {
	t := r.c.tables
	for _, tag := range t.LegalTags(n.Kind) {
		if !n.HasTag(tag) && t.Required(n, tag) {
			r.emit(n, model.ErrMissingTag, rules.Format(rules.MsgMissingTag, tag))
		}
	}
	for _, name := range distinctTags(n) {
		if dep, ok := t.DependsOn(name); ok && !n.HasTag(dep) {
			r.emit(n, model.ErrMissingTag, rules.Format(rules.MsgDependentTag, name, dep))
		}
	}
}

func (r *run) values(n *model.ApiNode) {
	for _, tag := range n.TagsNamed(rules.VersionTag) {
		v, ok := jsdoc.Version(tag.RawValue)
		if !ok {
			r.emit(n, model.ErrWrongValue, rules.Format(rules.MsgWrongVersion, rules.VersionTag, tag.RawValue))
			continue
		}
		if r.c.apiVersion > 0 && v > r.c.apiVersion {
			r.emit(n, model.ErrVersionRange, rules.Format(rules.MsgVersionOutOfRange,
				rules.VersionTag, strconv.Itoa(v), strconv.Itoa(r.c.apiVersion)))
		}
	}
}

// version returns the first numeric version tag of n.
func version(n *model.ApiNode) (int, bool) {
	for _, tag := range n.TagsNamed(rules.VersionTag) {
		if v, ok := jsdoc.Version(tag.RawValue); ok {
			return v, true
		}
	}
	return 0, false
}

// introduced returns the version a declaration first appeared in: the
// lowest version across its stacked doc blocks, else its current version.
func introduced(n *model.ApiNode) (int, bool) {
	if n.Introduced > 0 {
		return n.Introduced, true
	}
	return version(n)
}

// monotonicity compares a node with the version its nearest versioned
// ancestor was introduced in.
func (r *run) monotonicity(i int) {
	n := &r.f.Nodes[i]
	v, ok := version(n)
	if !ok {
		return
	}
	a := graph.NearestAncestor(r.f, i, func(p *model.ApiNode) bool {
		_, ok := introduced(p)
		return ok
	})
	if a < 0 {
		return
	}
	av, _ := introduced(&r.f.Nodes[a])
	if v < av {
		r.emit(n, model.ErrVersionRegression, rules.Format(rules.MsgVersionRegression,
			rules.VersionTag, strconv.Itoa(v), strconv.Itoa(av)))
	}
}

// inheritance carries the inheritable tags of every ancestor down to the
// node, then compares the node with its overloads.
func (r *run) inheritance(i int) {
	n := &r.f.Nodes[i]
	t := r.c.tables
	reported := make(map[string]bool)

	for _, tag := range t.InheritableTags() {
		for _, a := range graph.Ancestors(r.f, i) {
			if r.f.Nodes[a].HasTag(tag) && !n.HasTag(tag) {
				r.emit(n, model.ErrInconsistentInherit, rules.Format(rules.MsgInheritFromParent, tag))
				reported[tag] = true
				break
			}
		}
	}

	for _, tag := range t.InheritableTags() {
		if reported[tag] || n.HasTag(tag) {
			continue
		}
		for _, o := range n.Overloads {
			if r.f.Nodes[o].HasTag(tag) {
				r.emit(n, model.ErrInconsistentInherit, rules.Format(rules.MsgInheritFromOverload, tag, displayName(n)))
				break
			}
		}
	}
}

func codesOf(n *model.ApiNode) (codes []int, malformed []string) {
	for _, tag := range n.TagsNamed(rules.ErrorCodeTag) {
		th := jsdoc.ParseThrows(tag.RawValue)
		if !th.HasCode {
			malformed = append(malformed, tag.RawValue)
			continue
		}
		codes = append(codes, th.Code)
	}
	return codes, malformed
}

func (r *run) errorCodes(n *model.ApiNode) {
	if !r.c.tables.BearsPermission(n.Kind) {
		return
	}
	codes, malformed := codesOf(n)
	for _, raw := range malformed {
		r.emit(n, model.ErrMalformedErrorCode, rules.Format(rules.MsgErrorCodeMissing, rules.ErrorCodeTag, raw))
	}

	seen := make(map[int]int, len(codes))
	for _, code := range codes {
		seen[code]++
		if seen[code] == 2 {
			r.emit(n, model.ErrInconsistentCode, rules.Format(rules.MsgErrorCodeDuplicate, strconv.Itoa(code)))
		}
	}

	// A sibling's code that depends on a tag this node lacks is not
	// expected here.
	missing := make(map[int]struct{})
	for _, o := range n.Overloads {
		other, _ := codesOf(&r.f.Nodes[o])
		for _, code := range other {
			if tag, ok := r.c.tables.CodeRequires(code); ok && !n.HasTag(tag) {
				continue
			}
			if _, ok := seen[code]; !ok {
				missing[code] = struct{}{}
			}
		}
	}
	sorted := make([]int, 0, len(missing))
	for code := range missing {
		sorted = append(sorted, code)
	}
	sort.Ints(sorted)
	for _, code := range sorted {
		r.emit(n, model.ErrInconsistentCode, rules.Format(rules.MsgErrorCodeInconsistent, strconv.Itoa(code), displayName(n)))
	}
}
