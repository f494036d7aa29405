// Package jsdoc parses documentation comment blocks into tag records.
package jsdoc

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/phobologic/dtscheck/internal/model"
)

// Block is a parsed documentation comment.
type Block struct {
	Description string
	Tags        []model.TagRecord
}

// IsDocComment reports whether text is a /** ... */ block comment.
func IsDocComment(text string) bool {
	return strings.HasPrefix(text, "/**") && !strings.HasPrefix(text, "/**/")
}

// Parse splits a comment block into its description and ordered tags.
// Lines beginning with "@" open a tag; following lines continue it. A bare
// "@" is dropped and parsing carries on, so malformed blocks still yield
// every well-formed tag.
func Parse(text string) Block {
	body := strings.TrimPrefix(text, "/**")
	body = strings.TrimSuffix(body, "*/")

	var (
		b       Block
		desc    []string
		current = -1
	)
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(strings.TrimRight(line, "\r"))
		line = strings.TrimPrefix(line, "*")
		line = strings.TrimSpace(line)

		if strings.HasPrefix(line, "@") {
			name, rest := splitTag(line[1:])
			if name == "" {
				current = -1
				continue
			}
			b.Tags = append(b.Tags, model.TagRecord{
				Name:     name,
				RawValue: rest,
				Order:    len(b.Tags),
			})
			current = len(b.Tags) - 1
			continue
		}

		if line == "" {
			continue
		}
		if current >= 0 {
			t := &b.Tags[current]
			if t.RawValue == "" {
				t.RawValue = line
			} else {
				t.RawValue += " " + line
			}
			continue
		}
		desc = append(desc, line)
	}
	b.Description = strings.Join(desc, " ")
	return b
}

func splitTag(s string) (name, rest string) {
	end := strings.IndexFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == '{'
	})
	if end < 0 {
		return s, ""
	}
	return s[:end], strings.TrimSpace(s[end:])
}

// Version parses a version-tag value such as "9" or "11 dynamic".
func Version(raw string) (int, bool) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return 0, false
	}
	v, err := strconv.Atoi(fields[0])
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// Throws is the structured value of an error-code tag:
// "{ BusinessError } 401 - The parameter check failed."
type Throws struct {
	Type        string
	Code        int
	HasCode     bool
	Description string
}

// ParseThrows splits an error-code tag value into type, code and description.
func ParseThrows(raw string) Throws {
	var t Throws
	rest := strings.TrimSpace(raw)
	if strings.HasPrefix(rest, "{") {
		if end := strings.Index(rest, "}"); end >= 0 {
			t.Type = strings.TrimSpace(rest[1:end])
			rest = strings.TrimSpace(rest[end+1:])
		}
	}

	digits := 0
	for digits < len(rest) && rest[digits] >= '0' && rest[digits] <= '9' {
		digits++
	}
	if digits > 0 && (digits == len(rest) || !isWordByte(rest[digits])) {
		if code, err := strconv.Atoi(rest[:digits]); err == nil {
			t.Code = code
			t.HasCode = true
			rest = strings.TrimSpace(rest[digits:])
		}
	}

	rest = strings.TrimPrefix(rest, "-")
	t.Description = strings.TrimSpace(rest)
	return t
}

func isWordByte(c byte) bool {
	return c == '_' || c == '.' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
