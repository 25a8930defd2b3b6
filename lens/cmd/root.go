// Package cmd provides the command tree and configuration loading of the entrylens tool.
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/PatchLens/cs-entry-lens/internal/logging"
	"github.com/PatchLens/cs-entry-lens/lens"
)

// BuildInfo holds build-time version information.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// NewRootCommand creates the entrylens command, which instruments a project, with its subcommands.
func NewRootCommand(info BuildInfo) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "entrylens [project]",
		Short: "Instrument C# method entries with line preserving trace statements",
		Long: `entrylens writes a copy of every C# source file of a project into a generated directory,
injecting a trace call at the start of each method body. #line directives keep debugger
locations and compiler messages pointing at the original files.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProject(cmd, args)
		},
	}
	AddConfigFlags(rootCmd)

	rootCmd.AddCommand(newRewriteCommand())
	rootCmd.AddCommand(newVersionCommand(info))
	return rootCmd
}

func runProject(cmd *cobra.Command, args []string) error {
	cfg, err := LoadConfig(cmd, args)
	if err != nil {
		return err
	}
	logger := logging.NewWithWriter(cmd.ErrOrStderr(), cfg.LogLevel)
	ctx := logging.WithLogger(cmd.Context(), logger)

	var diffOut io.Writer
	if cfg.DryRun {
		var diffFile *os.File
		if cfg.DiffFile != "" {
			if diffFile, err = os.Create(cfg.DiffFile); err != nil {
				return fmt.Errorf("create diff file: %w", err)
			}
			defer func() { _ = diffFile.Close() }()
		}
		// stdout stays open, only the diff file is closed
		diffOut = lens.TeeWriter(cmd.OutOrStdout(), fileWriter(diffFile))
	}

	report, err := lens.ProcessProject(ctx, cfg, diffOut)
	if err != nil {
		return err
	}
	if err := report.WriteJSON(cfg.ReportJSON); err != nil {
		return err
	} else if err := lens.WriteReportChart(cfg.ReportChart, report); err != nil {
		return err
	}
	if cfg.ReportJSON != "" {
		logger.Info("Report file wrote", logging.FieldOutput, cfg.ReportJSON)
	}
	if failures := report.Failures(); len(failures) > 0 {
		return fmt.Errorf("%d source file(s) could not be parsed", len(failures))
	}
	return nil
}

// fileWriter avoids handing a typed nil *os.File to TeeWriter.
func fileWriter(f *os.File) io.Writer {
	if f == nil {
		return nil
	}
	return f
}

func newRewriteCommand() *cobra.Command {
	var path, marker, callee, newline string
	var kinds []string
	cmd := &cobra.Command{
		Use:   "rewrite",
		Short: "Instrument a single source read from stdin and write it to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := lens.Config{Callee: callee, Kinds: kinds, Newline: newline}
			opts, err := cfg.RewriteOptions()
			if err != nil {
				return err
			}
			rewriter, err := lens.NewRewriter(opts)
			if err != nil {
				return err
			}
			return rewriter.RewriteStream(path, marker, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "Path of the original file written into #line directives")
	cmd.Flags().StringVar(&marker, "marker", "//entrylens:"+lens.Version, "First line of the output")
	cmd.Flags().StringVar(&callee, "callee", lens.DefaultCallee, "Method invoked by the injected entry statement")
	cmd.Flags().StringSliceVar(&kinds, "kinds", lens.DefaultKinds, "Declaration kinds to instrument")
	cmd.Flags().StringVar(&newline, "newline", "lf", "Line break around injected lines: lf, crlf, auto")
	_ = cmd.MarkFlagRequired("path")
	return cmd
}

func newVersionCommand(info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "entrylens %s (marker %s, commit %s, built %s)\n",
				info.Version, lens.Version, info.Commit, info.Date)
		},
	}
}
