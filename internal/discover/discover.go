// Package discover finds checkable declaration files under a root directory.
package discover

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/phobologic/dtscheck/internal/ast"
)

// IgnoreFile is read from the root in addition to .gitignore.
const IgnoreFile = ".dtscheckignore"

var skipDirs = map[string]struct{}{
	"node_modules": {},
	".git":         {},
	".hg":          {},
	".svn":         {},
	"oh_modules":   {},
}

// Options controls discovery.
type Options struct {
	// Parse decides which files are checkable.
	Parse ast.Options
	// Exclude holds extra gitignore-style patterns relative to the root.
	Exclude []string
}

// Files returns root-relative paths of checkable files, sorted.
// Any traversal error aborts discovery and names the offending path.
func Files(root string, opts Options) ([]string, error) {
	gitFiles := gitLsFiles(root)
	var gi *ignore.GitIgnore
	if gitFiles == nil {
		gi = loadIgnore(filepath.Join(root, ".gitignore"))
	}
	local := loadIgnore(filepath.Join(root, IgnoreFile), opts.Exclude...)

	var results []string

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walking %s: %w", path, err)
		}

		name := d.Name()

		if d.IsDir() {
			if path == root {
				return nil
			}
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(name, ".") {
			return nil
		}

		// Skip symlinks
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("relativizing %s: %w", path, err)
		}

		if gitFiles != nil {
			if _, ok := gitFiles[filepath.ToSlash(rel)]; !ok {
				return nil
			}
		} else if gi != nil && gi.MatchesPath(rel) {
			return nil
		}
		if local != nil && local.MatchesPath(rel) {
			return nil
		}

		if ast.GrammarFor(opts.Parse, name) == nil {
			return nil
		}

		results = append(results, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(results)
	return results, nil
}

func gitLsFiles(root string) map[string]struct{} {
	gitDir := filepath.Join(root, ".git")
	info, err := os.Stat(gitDir)
	if err != nil || !info.IsDir() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil
	}

	files := make(map[string]struct{})
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line != "" {
			files[line] = struct{}{}
		}
	}
	return files
}

// loadIgnore compiles the ignore file at path plus extra patterns. It returns
// nil when there is nothing to ignore.
func loadIgnore(path string, extra ...string) *ignore.GitIgnore {
	if _, err := os.Stat(path); err == nil {
		gi, err := ignore.CompileIgnoreFileAndLines(path, extra...)
		if err == nil {
			return gi
		}
	}
	if len(extra) == 0 {
		return nil
	}
	return ignore.CompileIgnoreLines(extra...)
}
