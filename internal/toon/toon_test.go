package toon

import (
	"strings"
	"testing"

	"github.com/phobologic/dtscheck/internal/model"
)

func TestEncodeValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", `""`},
		{"simple", "hello", "hello"},
		{"leading space", " hello", `" hello"`},
		{"trailing space", "hello ", `"hello "`},
		{"newline", "a\nb", `"a\nb"`},
		{"tab", "a\tb", `"a\tb"`},
		{"carriage return", "a\rb", `"a\rb"`},
		{"true keyword", "true", `"true"`},
		{"True keyword", "True", `"True"`},
		{"false keyword", "false", `"false"`},
		{"null keyword", "null", `"null"`},
		{"integer", "42", "42"},
		{"negative integer", "-1", "-1"},
		{"float", "3.14", "3.14"},
		{"zero", "0", "0"},
		{"leading zero invalid", "01", "01"},
		{"comma", "a,b", `"a,b"`},
		{"colon", "a:b", `"a:b"`},
		{"quote", `a"b`, `"a\"b"`},
		{"backslash", `a\b`, `"a\\b"`},
		{"bracket", "a[b", `"a[b"`},
		{"brace", "a{b", `"a{b"`},
		{"dash prefix", "-foo", `"-foo"`},
		{"path", "api/@ohos.base.d.ts", "api/@ohos.base.d.ts"},
		{"dotted name", "SystemCapability.Test", "SystemCapability.Test"},
		{"error type", "missing tag", "missing tag"},
		{"message with brackets", "tag [since] appears more than once", `"tag [since] appears more than once"`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := encodeValue(tt.in)
			if got != tt.want {
				t.Errorf("encodeValue(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestEncode(t *testing.T) {
	t.Parallel()

	findings := []model.Finding{
		{
			ErrorType: model.ErrWrongOrder,
			File:      "api/@ohos.data.d.ts",
			Line:      18,
			Column:    5,
			ApiName:   "isProxy",
			ApiKind:   model.PropertySignature,
			Message:   "tag [default] should be placed before tag [since]",
			Version:   "10",
		},
		{
			ErrorType: model.ErrMissingTag,
			File:      "api/@ohos.data.d.ts",
			Line:      3,
			Column:    1,
			ApiName:   "data",
			ApiKind:   model.Namespace,
			Message:   "missing syscap",
			Version:   "",
		},
		{
			ErrorType: model.ErrMissingTag,
			File:      "api/@ohos.net.d.ts",
			Line:      7,
			Column:    3,
			ApiName:   "open",
			ApiKind:   model.Function,
			Message:   "missing since",
		},
	}

	got := Encode("interface/sdk-js", findings)

	lines := strings.Split(got, "\n")
	want := []string{
		"root: interface/sdk-js",
		"total: 3",
		"summary[2]{errorType,count}:",
		"  missing tag,2",
		"  wrong order,1",
		"findings[3]{errorType,file,line,col,apiName,apiKind,message,version}:",
		`  wrong order,api/@ohos.data.d.ts,18,5,isProxy,propertySignature,"tag [default] should be placed before tag [since]",10`,
		`  missing tag,api/@ohos.data.d.ts,3,1,data,namespace,missing syscap,""`,
		`  missing tag,api/@ohos.net.d.ts,7,3,open,function,missing since,""`,
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d:\n%s", len(lines), len(want), got)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d: got %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestEncodeEmpty(t *testing.T) {
	t.Parallel()

	got := Encode(".", nil)
	if !strings.Contains(got, "summary[0]{errorType,count}:") {
		t.Errorf("expected empty summary section, got:\n%s", got)
	}
	if !strings.Contains(got, "findings[0]{errorType,file,line,col,apiName,apiKind,message,version}:") {
		t.Errorf("expected empty findings section, got:\n%s", got)
	}
	if !strings.Contains(got, "total: 0") {
		t.Errorf("expected zero total, got:\n%s", got)
	}
}
