// Package ast adapts tree-sitter TypeScript grammars to the fixed parsing
// configuration used by the checker.
package ast

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// ErrFileTooLarge is returned by ParseFile for files above Options.MaxFileSize.
var ErrFileTooLarge = errors.New("file exceeds size limit")

// DefaultMaxFileSize is the largest file ParseFile accepts unless
// configured otherwise.
const DefaultMaxFileSize = 4_000_000

// targets are the language levels the grammar parses.
var targets = map[string]struct{}{
	"es2015": {}, "es2016": {}, "es2017": {}, "es2018": {}, "es2019": {},
	"es2020": {}, "es2021": {}, "es2022": {}, "esnext": {},
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// Options mirrors the compiler options of the checker. Everything that would
// emit output, persist build state or remap module paths stays disabled.
type Options struct {
	Target               string
	JSX                  string
	NoResolve            bool
	IsolatedModules      bool
	AllowNonTSExtensions bool

	Declaration     bool
	DeclarationMap  bool
	Incremental     bool
	Composite       bool
	TSBuildInfoFile string
	Paths           map[string][]string
	RootDirs        []string

	MaxFileSize int64
}

// CheckOptions returns the fixed configuration used for static checking.
func CheckOptions() Options {
	return Options{
		Target:               "es2020",
		JSX:                  "preserve",
		NoResolve:            true,
		IsolatedModules:      true,
		AllowNonTSExtensions: true,
		MaxFileSize:          DefaultMaxFileSize,
	}
}

// Validate rejects configurations the checker cannot honour.
func (o Options) Validate() error {
	if _, ok := targets[strings.ToLower(o.Target)]; !ok {
		return fmt.Errorf("unsupported target %q", o.Target)
	}
	switch {
	case o.Declaration || o.DeclarationMap:
		return errors.New("declaration emission must be disabled")
	case o.Incremental || o.Composite || o.TSBuildInfoFile != "":
		return errors.New("incremental build artifacts must be disabled")
	case len(o.Paths) > 0 || len(o.RootDirs) > 0:
		return errors.New("path mapping must be disabled")
	case !o.NoResolve:
		return errors.New("module resolution must be disabled")
	case !o.IsolatedModules:
		return errors.New("files must be checked in isolation")
	case o.JSX != "" && o.JSX != "preserve":
		return fmt.Errorf("jsx mode %q would transform sources; use preserve", o.JSX)
	case o.MaxFileSize <= 0:
		return fmt.Errorf("invalid max file size %d", o.MaxFileSize)
	}
	return nil
}

// Grammar holds a tree-sitter language and the file suffixes it parses.
type Grammar struct {
	Name     string
	Suffixes []string
	lang     *sitter.Language
}

// GetLanguage returns the tree-sitter Language pointer.
func (g *Grammar) GetLanguage() *sitter.Language {
	return g.lang
}

// NewParser creates a fresh tree-sitter parser for this grammar.
// Each goroutine must use its own parser (not thread-safe).
func (g *Grammar) NewParser() *sitter.Parser {
	p := sitter.NewParser()
	p.SetLanguage(g.lang)
	return p
}

var (
	tsGrammar = &Grammar{
		Name:     "typescript",
		Suffixes: []string{".d.ets", ".ts"},
		lang:     typescript.GetLanguage(),
	}
	tsxGrammar = &Grammar{
		Name:     "tsx",
		Suffixes: []string{".tsx"},
		lang:     tsx.GetLanguage(),
	}
)

// GrammarFor returns the grammar for a path under opts, or nil if the path is
// not a checkable source file.
func GrammarFor(opts Options, path string) *Grammar {
	name := filepath.Base(path)
	switch {
	case strings.HasSuffix(name, ".d.ets"):
		if opts.AllowNonTSExtensions {
			return tsGrammar
		}
		return nil
	case strings.HasSuffix(name, ".ts"):
		return tsGrammar
	case strings.HasSuffix(name, ".tsx"):
		if opts.JSX != "" {
			return tsxGrammar
		}
	}
	return nil
}

// Position is a 1-based line/column pair.
type Position struct {
	Line   int
	Column int
}

// SourceFile is one parsed source file. Close releases the syntax tree.
type SourceFile struct {
	Path    string // relative to the checked root
	Source  []byte
	Grammar *Grammar
	Tree    *sitter.Tree
}

// Root returns the root node of the syntax tree.
func (sf *SourceFile) Root() *sitter.Node {
	return sf.Tree.RootNode()
}

// Position returns the 1-based start position of node.
func (sf *SourceFile) Position(node *sitter.Node) Position {
	p := node.StartPoint()
	return Position{Line: int(p.Row) + 1, Column: int(p.Column) + 1}
}

// Text returns the verbatim source text of node.
func (sf *SourceFile) Text(node *sitter.Node) string {
	return string(sf.Source[node.StartByte():node.EndByte()])
}

// Close releases the syntax tree.
func (sf *SourceFile) Close() {
	if sf.Tree != nil {
		sf.Tree.Close()
		sf.Tree = nil
	}
}

// ParseFile reads root/rel and parses it with the grammar chosen by extension.
// Read failures are returned wrapped with the offending path.
func ParseFile(ctx context.Context, opts Options, root, rel string) (*SourceFile, error) {
	g := GrammarFor(opts, rel)
	if g == nil {
		return nil, fmt.Errorf("%s: unsupported source file", rel)
	}

	absPath := filepath.Join(root, rel)
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rel, err)
	}
	if info.Size() > opts.MaxFileSize {
		return nil, fmt.Errorf("%s: %w (%d > %d bytes)", rel, ErrFileTooLarge, info.Size(), opts.MaxFileSize)
	}

	source, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rel, err)
	}
	return ParseSource(ctx, g, rel, source)
}

// ParseSource parses source that is already in memory.
func ParseSource(ctx context.Context, g *Grammar, path string, source []byte) (*SourceFile, error) {
	tree, err := g.NewParser().ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &SourceFile{Path: path, Source: source, Grammar: g, Tree: tree}, nil
}

// TypeScript returns the grammar used for .ts, .d.ts and .d.ets files.
func TypeScript() *Grammar {
	return tsGrammar
}

// CollapseWhitespace replaces runs of whitespace with a single space and trims.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
