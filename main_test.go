package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/phobologic/dtscheck/internal/clierr"
)

const namespaceSource = `/**
 * @namespace test
 * @syscap SystemCapability.Test
 * @since 9
 */
declare namespace test {
  /**
   * @interface Options
   * @syscap SystemCapability.Test
   * @since 9
   */
  interface Options {
    /**
     * @syscap SystemCapability.Test
     * @since 8
     */
    reset(): void;
  }
}
`

const functionSource = `/**
 * @param { string } uri - the uri.
 * @throws { BusinessError } The parameter check failed.
 * @syscap SystemCapability.Test
 * @since 9
 */
declare function open(uri: string): void;
`

type jsonFinding struct {
	ErrorType string `json:"errorType"`
	Location  string `json:"location"`
	ApiName   string `json:"apiName"`
	Version   string `json:"version"`
}

func writeTestFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// createSampleTree holds one version regression in @ohos.test and one
// malformed error code in @ohos.open.
func createSampleTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeTestFile(t, dir, "api/@ohos.test.d.ts", namespaceSource)
	writeTestFile(t, dir, "api/@ohos.open.d.ts", functionSource)
	writeTestFile(t, dir, "README.md", "# api\n")
	return dir
}

func decodeFindings(t *testing.T, out []byte) []jsonFinding {
	t.Helper()
	var findings []jsonFinding
	if err := json.Unmarshal(out, &findings); err != nil {
		t.Fatalf("decoding report: %v\n%s", err, out)
	}
	return findings
}

func TestRunBasic(t *testing.T) {
	t.Parallel()
	dir := createSampleTree(t)

	var stdout, stderr bytes.Buffer
	if err := run([]string{dir}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v\nstderr: %s", err, stderr.String())
	}

	findings := decodeFindings(t, stdout.Bytes())
	if len(findings) != 2 {
		t.Fatalf("expected 2 findings, got %d:\n%s", len(findings), stdout.String())
	}
	// Files are checked in path order.
	if findings[0].ErrorType != "malformed error code" || findings[0].ApiName != "open" {
		t.Errorf("unexpected first finding: %+v", findings[0])
	}
	if findings[1].ErrorType != "version regression" || findings[1].ApiName != "reset" {
		t.Errorf("unexpected second finding: %+v", findings[1])
	}
	if want := filepath.Join("api", "@ohos.test.d.ts") + "(line: 17, col: 5)"; findings[1].Location != want {
		t.Errorf("location = %q, want %q", findings[1].Location, want)
	}
	if findings[1].Version != "8" {
		t.Errorf("version = %q, want 8", findings[1].Version)
	}
}

func TestRunDeterministic(t *testing.T) {
	t.Parallel()
	dir := createSampleTree(t)

	var first, second, stderr bytes.Buffer
	if err := run([]string{"--workers", "1", dir}, &first, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := run([]string{"--workers", "8", dir}, &second, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	if first.String() != second.String() {
		t.Errorf("output depends on worker count:\n%s\n---\n%s", first.String(), second.String())
	}
}

func TestRunChecksFilter(t *testing.T) {
	t.Parallel()
	dir := createSampleTree(t)

	var stdout, stderr bytes.Buffer
	if err := run([]string{"--checks", "version-regression", dir}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	findings := decodeFindings(t, stdout.Bytes())
	if len(findings) != 1 || findings[0].ApiName != "reset" {
		t.Errorf("expected only the regression, got %+v", findings)
	}
}

func TestRunUnknownCheck(t *testing.T) {
	t.Parallel()
	dir := createSampleTree(t)

	var stdout, stderr bytes.Buffer
	err := run([]string{"--checks", "typo", dir}, &stdout, &stderr)
	if err == nil {
		t.Fatal("expected error for unknown check")
	}
	if stdout.Len() != 0 {
		t.Errorf("an aborted run should not write a report:\n%s", stdout.String())
	}
}

func TestRunAPIFilter(t *testing.T) {
	t.Parallel()
	dir := createSampleTree(t)

	var stdout, stderr bytes.Buffer
	if err := run([]string{"--api", "OPEN", dir}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	findings := decodeFindings(t, stdout.Bytes())
	if len(findings) != 1 || findings[0].ApiName != "open" {
		t.Errorf("expected only open, got %+v", findings)
	}
}

func TestRunMaxFindings(t *testing.T) {
	t.Parallel()
	dir := createSampleTree(t)

	var stdout, stderr bytes.Buffer
	if err := run([]string{"--max-findings", "1", dir}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := len(decodeFindings(t, stdout.Bytes())); got != 1 {
		t.Errorf("expected 1 finding, got %d", got)
	}
}

func TestRunFailOnFindings(t *testing.T) {
	t.Parallel()
	dir := createSampleTree(t)

	var stdout, stderr bytes.Buffer
	err := run([]string{"--fail-on-findings", dir}, &stdout, &stderr)
	if err == nil {
		t.Fatal("expected an exit error")
	}
	if code := clierr.ExitCodeOf(err); code != clierr.ExitFindings {
		t.Errorf("exit code = %d, want %d", code, clierr.ExitFindings)
	}
	if !clierr.Silent(err) {
		t.Error("findings exit should not print an error")
	}
	if len(decodeFindings(t, stdout.Bytes())) != 2 {
		t.Error("report should still be written")
	}

	clean := t.TempDir()
	stdout.Reset()
	if err := run([]string{"--fail-on-findings", clean}, &stdout, &stderr); err != nil {
		t.Errorf("clean tree should pass: %v", err)
	}
}

func TestRunAPIVersionFlag(t *testing.T) {
	t.Parallel()
	dir := createSampleTree(t)

	var stdout, stderr bytes.Buffer
	if err := run([]string{"--api-version", "8", "--checks", "version-out-of-range", dir}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	findings := decodeFindings(t, stdout.Bytes())
	if len(findings) == 0 {
		t.Fatal("expected @since 9 to exceed api version 8")
	}
	for _, f := range findings {
		if f.Version != "9" {
			t.Errorf("only @since 9 should be out of range, got %+v", f)
		}
	}
}

func TestRunManifest(t *testing.T) {
	t.Parallel()
	dir := createSampleTree(t)
	writeTestFile(t, dir, "package.json", `{"name": "api", "checkApiVersion": 8}`)

	var stdout, stderr bytes.Buffer
	if err := run([]string{"--checks", "version-out-of-range", dir}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(decodeFindings(t, stdout.Bytes())) == 0 {
		t.Error("manifest api version should enable the range check")
	}

	stdout.Reset()
	if err := run([]string{"--api-version", "20", "--checks", "version-out-of-range", dir}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := len(decodeFindings(t, stdout.Bytes())); got != 0 {
		t.Errorf("--api-version should override the manifest, got %d findings", got)
	}
}

func TestRunExplicitManifestMissing(t *testing.T) {
	t.Parallel()
	dir := createSampleTree(t)

	var stdout, stderr bytes.Buffer
	err := run([]string{"--manifest", filepath.Join(dir, "nope.json"), dir}, &stdout, &stderr)
	if err == nil {
		t.Fatal("expected error for a missing explicit manifest")
	}
}

func TestRunConfigFile(t *testing.T) {
	t.Parallel()
	dir := createSampleTree(t)
	writeTestFile(t, dir, ".dtscheck.yaml", "format: toon\nexclude:\n  - \"@ohos.open.d.ts\"\n")

	var stdout, stderr bytes.Buffer
	if err := run([]string{dir}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v\nstderr: %s", err, stderr.String())
	}
	out := stdout.String()
	if !strings.HasPrefix(out, "root: ") || !strings.Contains(out, "\ntotal: 1\n") {
		t.Errorf("expected TOON header with one finding, got:\n%s", out)
	}
	if strings.Contains(out, "open") {
		t.Errorf("excluded file should not be checked:\n%s", out)
	}
}

func TestRunFlagOverridesConfig(t *testing.T) {
	t.Parallel()
	dir := createSampleTree(t)
	writeTestFile(t, dir, ".dtscheck.yaml", "format: toon\n")

	var stdout, stderr bytes.Buffer
	if err := run([]string{"--format", "json", dir}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(decodeFindings(t, stdout.Bytes())) != 2 {
		t.Error("--format should override the config file")
	}
}

func TestRunInvalidConfig(t *testing.T) {
	t.Parallel()
	dir := createSampleTree(t)
	writeTestFile(t, dir, ".dtscheck.yaml", "format: csv\n")

	var stdout, stderr bytes.Buffer
	err := run([]string{dir}, &stdout, &stderr)
	if err == nil {
		t.Fatal("expected error for invalid format")
	}
	if !strings.Contains(err.Error(), "Format") {
		t.Errorf("error should name the field: %v", err)
	}
}

func TestRunDotEnv(t *testing.T) {
	t.Parallel()
	dir := createSampleTree(t)
	writeTestFile(t, dir, ".env", "DTSCHECK_FORMAT=text\n")

	var stdout, stderr bytes.Buffer
	if err := run([]string{dir}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	out := stdout.String()
	if !strings.HasSuffix(out, "2 findings\n") {
		t.Errorf("expected text report, got:\n%s", out)
	}
	if !strings.Contains(out, "[version regression] reset") {
		t.Errorf("missing finding line:\n%s", out)
	}
}

func TestRunOutputFile(t *testing.T) {
	t.Parallel()
	dir := createSampleTree(t)
	out := filepath.Join(t.TempDir(), "result.xlsx")

	var stdout, stderr bytes.Buffer
	if err := run([]string{"--format", "xlsx", "-o", out, dir}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	if stdout.Len() != 0 {
		t.Errorf("stdout should be empty when --output is set, got %q", stdout.String())
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("PK")) {
		t.Error("xlsx report should be a zip archive")
	}
}

func TestRunDiff(t *testing.T) {
	t.Parallel()
	dir := createSampleTree(t)
	patch := "diff --git a/api/@ohos.test.d.ts b/api/@ohos.test.d.ts\n" +
		"index 1111111..2222222 100644\n" +
		"--- a/api/@ohos.test.d.ts\n" +
		"+++ b/api/@ohos.test.d.ts\n" +
		"@@ -15,3 +15,4 @@ declare namespace test {\n" +
		"      * @since 8\n" +
		"      */\n" +
		"+    reset(): void;\n" +
		"   }\n"
	diffPath := filepath.Join(t.TempDir(), "change.patch")
	if err := os.WriteFile(diffPath, []byte(patch), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	if err := run([]string{"--diff", diffPath, dir}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	findings := decodeFindings(t, stdout.Bytes())
	if len(findings) != 1 || findings[0].ApiName != "reset" {
		t.Errorf("expected only the changed api, got %+v", findings)
	}
}

func TestRunVersion(t *testing.T) {
	t.Parallel()

	for _, args := range [][]string{{"version"}, {"--version"}} {
		var stdout, stderr bytes.Buffer
		if err := run(args, &stdout, &stderr); err != nil {
			t.Fatalf("run %v: %v", args, err)
		}
		if got := stdout.String(); got != "dtscheck dev\n" {
			t.Errorf("run %v: got %q", args, got)
		}
	}
}

func TestRunNoFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeTestFile(t, dir, "index.js", "export {};\n")

	var stdout, stderr bytes.Buffer
	if err := run([]string{dir}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := stdout.String(); got != "[]\n" {
		t.Errorf("expected an empty report, got %q", got)
	}
}

func TestRunNotADirectory(t *testing.T) {
	t.Parallel()
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	err := run([]string{f}, &stdout, &stderr)
	if err == nil {
		t.Fatal("expected error for non-directory")
	}
	if code := clierr.ExitCodeOf(err); code != clierr.ExitAborted {
		t.Errorf("exit code = %d, want %d", code, clierr.ExitAborted)
	}
}

func TestRunMaxFileSize(t *testing.T) {
	t.Parallel()
	dir := createSampleTree(t)
	writeTestFile(t, dir, "api/@ohos.big.d.ts", strings.Repeat("// filler\n", 200))

	var stdout, stderr bytes.Buffer
	if err := run([]string{"--max-file-size", "1000", dir}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(decodeFindings(t, stdout.Bytes())) != 2 {
		t.Errorf("small files should still be checked:\n%s", stdout.String())
	}
	want := "Warning: " + filepath.Join("api", "@ohos.big.d.ts") + ": file exceeds size limit"
	if !strings.Contains(stderr.String(), want) {
		t.Errorf("expected warning about skipped file, stderr:\n%s", stderr.String())
	}
}

func TestRunVerbose(t *testing.T) {
	t.Parallel()
	dir := createSampleTree(t)

	var stdout, stderr bytes.Buffer
	if err := run([]string{"-v", dir}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(stderr.String(), "level=DEBUG") {
		t.Errorf("expected debug logging, stderr:\n%s", stderr.String())
	}

	stderr.Reset()
	if err := run([]string{dir}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	if stderr.Len() != 0 {
		t.Errorf("expected quiet stderr, got:\n%s", stderr.String())
	}
}
