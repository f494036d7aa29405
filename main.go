// dtscheck checks the JSDoc tags of TypeScript API declaration files.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/phobologic/dtscheck/internal/ast"
	"github.com/phobologic/dtscheck/internal/clierr"
	"github.com/phobologic/dtscheck/internal/report"
)

var version = "dev"

func main() {
	err := run(os.Args[1:], os.Stdout, os.Stderr)
	if err != nil && !clierr.Silent(err) {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	os.Exit(clierr.ExitCodeOf(err))
}

func run(args []string, stdout, stderr io.Writer) error {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	return cmd.Execute()
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var s settings

	cmd := &cobra.Command{
		Use:   "dtscheck [flags] [root]",
		Short: "Check JSDoc tags of .d.ts and .d.ets API declarations",
		Long: `dtscheck walks root (default: current directory), parses every .d.ts and
.d.ets file and reports documentation comments whose tags are missing,
misordered, illegal for the declaration, or inconsistent with enclosing
declarations and overloads.

Settings are read from .dtscheck.yaml in root, then DTSCHECK_* variables
(the process environment or root/.env), then flags.`,
		Args:          cobra.MaximumNArgs(1),
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) > 0 {
				root = args[0]
			}
			s.changed = cmd.Flags().Changed
			return runCheck(cmd.Context(), s, root, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetVersionTemplate("dtscheck {{.Version}}\n")

	formats := make([]string, len(report.Formats))
	for i, f := range report.Formats {
		formats[i] = string(f)
	}

	f := cmd.Flags()
	f.StringVar(&s.configPath, "config", "", "config file (default: root/.dtscheck.yaml)")
	f.StringVar(&s.manifestPath, "manifest", "", "package manifest with checkApiVersion (default: root/package.json)")
	f.IntVar(&s.apiVersion, "api-version", 0, "highest @since value allowed; 0 disables the range check")
	f.StringVar(&s.format, "format", "", fmt.Sprintf("report format: %v (default json)", formats))
	f.StringVarP(&s.output, "output", "o", "", "write the report to this file instead of stdout")
	f.StringSliceVar(&s.checks, "checks", nil, "only report these error types, e.g. missing-tag,wrong-order")
	f.StringVar(&s.api, "api", "", "only report APIs whose name contains this text")
	f.StringVar(&s.diffPath, "diff", "", "only report findings on lines covered by this unified diff")
	f.IntVar(&s.maxFindings, "max-findings", 0, "maximum number of findings to report (0 = all)")
	f.Int64Var(&s.maxFileSize, "max-file-size", ast.DefaultMaxFileSize, "skip files larger than this many bytes")
	f.IntVar(&s.workers, "workers", 0, "files parsed in parallel (default: GOMAXPROCS)")
	f.StringSliceVar(&s.exclude, "exclude", nil, "gitignore-style patterns to skip, relative to root")
	f.BoolVar(&s.failOnFindings, "fail-on-findings", false, "exit with status 2 when findings are reported")
	cmd.PersistentFlags().BoolVarP(&s.verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(newInitCmd(stdout, stderr))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the dtscheck version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "dtscheck %s\n", version)
		},
	})

	return cmd
}
