package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/phobologic/dtscheck/internal/ast"
	"github.com/phobologic/dtscheck/internal/check"
	"github.com/phobologic/dtscheck/internal/clierr"
	"github.com/phobologic/dtscheck/internal/config"
	"github.com/phobologic/dtscheck/internal/discover"
	"github.com/phobologic/dtscheck/internal/filter"
	"github.com/phobologic/dtscheck/internal/graph"
	"github.com/phobologic/dtscheck/internal/model"
	"github.com/phobologic/dtscheck/internal/parse"
	"github.com/phobologic/dtscheck/internal/report"
)

const defaultFormat = report.JSON

// settings holds the flag values of the root command.
type settings struct {
	configPath     string
	manifestPath   string
	apiVersion     int
	format         string
	output         string
	checks         []string
	api            string
	diffPath       string
	maxFindings    int
	maxFileSize    int64
	workers        int
	exclude        []string
	failOnFindings bool
	verbose        bool

	// changed reports whether a flag was set on the command line.
	changed func(name string) bool
}

func (s settings) set(name string) bool {
	return s.changed != nil && s.changed(name)
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// runCheck is the root command: discover, parse, check, select and report.
func runCheck(ctx context.Context, s settings, root string, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := newLogger(stderr, s.verbose)

	root, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolving root: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("root path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: not a directory", root)
	}

	cfg, err := s.resolve(root)
	if err != nil {
		return err
	}
	format, err := report.ParseFormat(cfg.Format)
	if err != nil {
		return err
	}
	types, err := cfg.ErrorTypes()
	if err != nil {
		return err
	}
	apiVersion, err := s.checkedAPIVersion(cfg, root, logger)
	if err != nil {
		return err
	}

	var changes *filter.Changes
	if s.diffPath != "" {
		patch, err := os.ReadFile(s.diffPath)
		if err != nil {
			return fmt.Errorf("reading diff: %w", err)
		}
		if changes, err = filter.ParseDiff(patch); err != nil {
			return err
		}
		logger.Debug("diff loaded", "path", s.diffPath, "files", changes.Files())
	}

	opts := ast.CheckOptions()
	opts.MaxFileSize = cfg.MaxFileSize
	if err := opts.Validate(); err != nil {
		return fmt.Errorf("parser options: %w", err)
	}

	files, err := discover.Files(root, discover.Options{Parse: opts, Exclude: cfg.Exclude})
	if err != nil {
		return fmt.Errorf("discovering files: %w", err)
	}
	if len(files) == 0 {
		logger.Warn("no declaration files found", "root", root)
	}
	logger.Debug("discovered files", "root", root, "count", len(files), "api_version", apiVersion)

	checker := check.New(check.WithAPIVersion(apiVersion), check.WithErrorTypes(types...))
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	perFile, err := checkFiles(ctx, root, files, opts, checker, workers, stderr, logger)
	if err != nil {
		return err
	}

	var sink report.Sink
	for _, found := range perFile {
		sink.Add(found...)
	}
	findings := sink.Findings()
	if changes != nil {
		findings = filter.ByChanges(findings, changes)
	}
	findings = filter.ByAPI(findings, s.api)
	findings = filter.Limit(findings, cfg.MaxFindings)
	logger.Debug("check complete", "files", len(files), "raw_findings", sink.Len(), "reported", len(findings))

	if err := writeReport(stdout, cfg.Output, format, findings, filepath.Base(root)); err != nil {
		return err
	}

	if s.failOnFindings && len(findings) > 0 {
		return clierr.Newf(clierr.ExitFindings, "%d findings", len(findings))
	}
	return nil
}

// resolve layers the config file, the environment and flags, in that order.
func (s settings) resolve(root string) (*config.Config, error) {
	path := s.configPath
	required := path != ""
	if path == "" {
		path = filepath.Join(root, config.FileName)
	}
	cfg, err := config.Load(path, required)
	if err != nil {
		return nil, err
	}

	getenv, err := config.Env(root)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(getenv); err != nil {
		return nil, err
	}

	if s.set("api-version") {
		cfg.APIVersion = s.apiVersion
	}
	if s.set("format") {
		cfg.Format = s.format
	}
	if s.set("output") {
		cfg.Output = s.output
	}
	if s.set("checks") {
		cfg.Checks = s.checks
	}
	if s.set("exclude") {
		cfg.Exclude = append(cfg.Exclude, s.exclude...)
	}
	if s.set("max-findings") {
		cfg.MaxFindings = s.maxFindings
	}
	if s.set("max-file-size") || cfg.MaxFileSize == 0 {
		cfg.MaxFileSize = s.maxFileSize
	}
	if cfg.MaxFileSize == 0 {
		cfg.MaxFileSize = ast.DefaultMaxFileSize
	}
	if s.set("workers") {
		cfg.Workers = s.workers
	}
	if cfg.Format == "" {
		cfg.Format = string(defaultFormat)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// checkedAPIVersion returns the configured API version, falling back to the
// package manifest. Without either the range check is disabled (0).
func (s settings) checkedAPIVersion(cfg *config.Config, root string, logger *slog.Logger) (int, error) {
	if cfg.APIVersion > 0 {
		return cfg.APIVersion, nil
	}
	path := s.manifestPath
	explicit := path != ""
	if !explicit {
		path = filepath.Join(root, config.ManifestName)
	}
	v, err := config.ReadManifest(path)
	if err == nil {
		return v, nil
	}
	if !explicit && (errors.Is(err, fs.ErrNotExist) || errors.Is(err, config.ErrNoAPIVersion)) {
		logger.Debug("version range check disabled", "reason", err)
		return 0, nil
	}
	return 0, err
}

// checkFiles parses and checks files concurrently. Results are indexed like
// files. Oversized files are skipped with a warning; any other failure
// aborts the run.
func checkFiles(ctx context.Context, root string, files []string, opts ast.Options, checker *check.Checker, workers int, stderr io.Writer, logger *slog.Logger) ([][]model.Finding, error) {
	results := make([][]model.Finding, len(files))
	extractor := parse.NewExtractor(0)

	var stderrMu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, rel := range files {
		i, rel := i, rel
		g.Go(func() error {
			sf, err := ast.ParseFile(ctx, opts, root, rel)
			if errors.Is(err, ast.ErrFileTooLarge) {
				stderrMu.Lock()
				_, _ = fmt.Fprintf(stderr, "Warning: %v\n", err)
				stderrMu.Unlock()
				return nil
			}
			if err != nil {
				return err
			}
			defer sf.Close()

			f := extractor.Extract(sf)
			graph.Link(f)
			results[i] = checker.CheckFile(f)
			logger.Debug("checked file", "file", rel, "apis", len(f.Nodes), "findings", len(results[i]))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// writeReport renders findings to path, or to stdout when path is empty.
func writeReport(stdout io.Writer, path string, format report.Format, findings []model.Finding, root string) error {
	if path == "" {
		if format.Binary() && report.IsTerminal(stdout) {
			return fmt.Errorf("refusing to write %s to a terminal; use --output", format)
		}
		opts := report.Options{Root: root, Color: format == report.Text && report.IsTerminal(stdout)}
		return report.Write(stdout, format, findings, opts)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report: %w", err)
	}
	if err := report.Write(f, format, findings, report.Options{Root: root}); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
