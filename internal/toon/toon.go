// Package toon implements TOON (Token-Oriented Object Notation) encoding.
package toon

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/phobologic/dtscheck/internal/model"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// Encode converts a findings report into TOON format: a per-type summary
// table followed by one row per finding.
func Encode(root string, findings []model.Finding) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("root: %s", encodeValue(root)))
	parts = append(parts, fmt.Sprintf("total: %d", len(findings)))

	counts := make(map[model.ErrorType]int)
	for i := range findings {
		counts[findings[i].ErrorType]++
	}
	var summaryRows [][]string
	for _, et := range model.ErrorTypes {
		if n := counts[et]; n > 0 {
			summaryRows = append(summaryRows, []string{string(et), strconv.Itoa(n)})
		}
	}
	parts = append(parts, formatTabular("summary", []string{"errorType", "count"}, summaryRows))

	var rows [][]string
	for i := range findings {
		f := &findings[i]
		rows = append(rows, []string{
			string(f.ErrorType),
			f.File,
			strconv.Itoa(f.Line),
			strconv.Itoa(f.Column),
			f.ApiName,
			string(f.ApiKind),
			f.Message,
			f.Version,
		})
	}
	parts = append(parts, formatTabular("findings",
		[]string{"errorType", "file", "line", "col", "apiName", "apiKind", "message", "version"}, rows))

	return strings.Join(parts, "\n")
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}
