package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phobologic/dtscheck/internal/config"
)

const (
	sentinelStart = "# dtscheck:start"
	sentinelEnd   = "# dtscheck:end"
)

type initSettings struct {
	dryRun     bool
	apiVersion int
	format     string
	checks     []string
}

// newInitCmd implements `dtscheck init`, which writes (or updates) a managed
// settings block in a .dtscheck.yaml file.
func newInitCmd(stdout, stderr io.Writer) *cobra.Command {
	var s initSettings

	cmd := &cobra.Command{
		Use:   "init [flags] [path-to-.dtscheck.yaml]",
		Short: "Write a dtscheck settings block to a config file",
		Long: `Write dtscheck settings to a config file. The block is wrapped in sentinel
comments so it can be updated in place on subsequent runs without touching
surrounding content. Keys outside the block must not repeat keys inside it.
Creates the file if it does not exist.

path-to-.dtscheck.yaml defaults to ./.dtscheck.yaml.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(s, args, stdout, stderr)
		},
	}
	f := cmd.Flags()
	f.BoolVar(&s.dryRun, "dry-run", false, "print what would be written without modifying the file")
	f.IntVar(&s.apiVersion, "api-version", 0, "highest @since value allowed (0 = read package.json)")
	f.StringVar(&s.format, "format", string(defaultFormat), "report format")
	f.StringSliceVar(&s.checks, "checks", nil, "error types to report (default: all)")
	return cmd
}

func runInit(s initSettings, args []string, stdout, stderr io.Writer) error {
	section, err := generateSection(&config.Config{
		APIVersion: s.apiVersion,
		Format:     s.format,
		Checks:     s.checks,
	})
	if err != nil {
		return err
	}

	// --dry-run with no path: just print the section itself.
	if s.dryRun && len(args) == 0 {
		_, _ = fmt.Fprintln(stdout, section)
		return nil
	}

	path := config.FileName
	if len(args) > 0 {
		path = args[0]
	}

	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	updated := applySection(string(existing), section)
	if _, err := config.Parse([]byte(updated)); err != nil {
		return fmt.Errorf("%s would not be a valid config: %w", path, err)
	}

	if s.dryRun {
		_, _ = fmt.Fprint(stdout, updated)
		return nil
	}

	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	_, _ = fmt.Fprintf(stderr, "wrote dtscheck settings to %s\n", path)
	return nil
}

// generateSection returns cfg as a sentinel-wrapped YAML block.
func generateSection(cfg *config.Config) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	body, err := cfg.Marshal()
	if err != nil {
		return "", err
	}
	header := "# Managed by `dtscheck init`. Run `dtscheck --help` for every setting.\n"
	return sentinelStart + "\n" + header + body + sentinelEnd, nil
}

// applySection inserts section into content, replacing an existing sentinel
// block if present or appending if not. It is a pure function for easy testing.
func applySection(content, section string) string {
	start := strings.Index(content, sentinelStart)
	end := strings.Index(content, sentinelEnd)

	if start >= 0 && end > start {
		return content[:start] + section + content[end+len(sentinelEnd):]
	}

	if len(content) == 0 {
		return section + "\n"
	}
	// Append, ensuring a blank line separator.
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content + "\n" + section + "\n"
}
