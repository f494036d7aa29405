// Package filter narrows a findings list: to the APIs a change touches, to
// APIs matching a name, or to the first N findings.
package filter

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sourcegraph/go-diff/diff"

	"github.com/phobologic/dtscheck/internal/model"
)

// Limit returns the first max findings. If max is <= 0 or >= len(findings),
// findings is returned unchanged.
func Limit(findings []model.Finding, max int) []model.Finding {
	if max <= 0 || max >= len(findings) {
		return findings
	}
	return findings[:max]
}

// ByAPI keeps findings whose API name contains substr (case-insensitive).
// Anonymous declarations match by kind.
func ByAPI(findings []model.Finding, substr string) []model.Finding {
	if substr == "" {
		return findings
	}
	lower := strings.ToLower(substr)
	var out []model.Finding
	for i := range findings {
		name := findings[i].ApiName
		if name == "" {
			name = string(findings[i].ApiKind)
		}
		if strings.Contains(strings.ToLower(name), lower) {
			out = append(out, findings[i])
		}
	}
	return out
}

type lineRange struct{ start, end int } // [start, end)

// Changes records, per file, the new-side line ranges of a unified diff.
type Changes struct {
	files map[string][]lineRange
}

// ParseDiff reads a unified (git) diff. Deleted files are ignored.
func ParseDiff(patch []byte) (*Changes, error) {
	fileDiffs, err := diff.NewMultiFileDiffReader(bytes.NewReader(patch)).ReadAllFiles()
	if err != nil {
		return nil, fmt.Errorf("parsing diff: %w", err)
	}

	c := &Changes{files: make(map[string][]lineRange)}
	for _, fd := range fileDiffs {
		name := fd.NewName
		if name == "" || name == "/dev/null" {
			continue
		}
		name = strings.TrimPrefix(name, "b/")
		for _, h := range fd.Hunks {
			start := int(h.NewStartLine)
			c.files[name] = append(c.files[name], lineRange{start, start + int(h.NewLines)})
		}
	}
	return c, nil
}

// Files returns the number of files the diff changes.
func (c *Changes) Files() int {
	return len(c.files)
}

// Touches reports whether line of path lies inside a changed hunk.
func (c *Changes) Touches(path string, line int) bool {
	for _, r := range c.files[filepath.ToSlash(path)] {
		if line >= r.start && line < r.end {
			return true
		}
	}
	return false
}

// ByChanges keeps findings located inside a changed hunk.
func ByChanges(findings []model.Finding, c *Changes) []model.Finding {
	var out []model.Finding
	for i := range findings {
		if c.Touches(findings[i].File, findings[i].Line) {
			out = append(out, findings[i])
		}
	}
	return out
}
