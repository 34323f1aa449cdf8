package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bvisness/wasm-inspect/crosscheck"
	"github.com/bvisness/wasm-inspect/decoder"
	"github.com/bvisness/wasm-inspect/inspect"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

type options struct {
	sections       bool
	verbose        bool
	verify         bool
	maxSectionSize int
}

func (o *options) addFlags(flags *pflag.FlagSet) {
	flags.BoolVarP(&o.sections, "sections", "s", false, "Show custom sections")
	flags.BoolVarP(&o.verbose, "verbose", "v", false, "Log decoding steps to stderr and show imports and the section table")
	flags.BoolVar(&o.verify, "verify", false, "Compile the module with wazero and compare it against the decoded summary")
	flags.IntVar(&o.maxSectionSize, "max-section-size", 0, "Reject sections larger than this many bytes (0 for no limit)")
}

func newRootCmd() *cobra.Command {
	var o options
	cmd := &cobra.Command{
		Use:          "wasm-inspect <file.wasm>",
		Short:        "🔍 A WASM binary inspector",
		Long:         "Decode a WebAssembly module and report its functions, exports, memory layout, and custom sections.",
		Args:         cobra.MatchAll(cobra.ExactArgs(1), wasmExtension),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), args[0], o)
		},
	}
	o.addFlags(cmd.Flags())
	return cmd
}

func wasmExtension(cmd *cobra.Command, args []string) error {
	if !strings.HasSuffix(args[0], ".wasm") {
		return fmt.Errorf("input file must have .wasm extension: %s", args[0])
	}
	return nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if !verbose {
		return zap.NewNop(), nil
	}
	return zap.NewDevelopment()
}

func run(ctx context.Context, out io.Writer, path string, o options) error {
	log, err := newLogger(o.verbose)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer log.Sync()

	wasm, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read .wasm file: %w", err)
	}

	fmt.Fprintf(out, "🔍 Inspecting WASM file: %s\n\n", path)

	m, err := decoder.DecodeModule(wasm,
		decoder.WithLogger(log.Named("decoder").With(zap.String("file", path))),
		decoder.WithMaxSectionSize(o.maxSectionSize),
	)
	if err != nil {
		return fmt.Errorf("invalid module: %w", err)
	}

	if err := inspect.Render(out, m, inspect.Options{
		ShowCustomSections: o.sections,
		Verbose:            o.verbose,
	}); err != nil {
		return err
	}

	if !o.verify {
		return nil
	}
	mismatches, err := crosscheck.Check(ctx, m, wasm)
	if err != nil {
		return err
	}
	if len(mismatches) > 0 {
		for _, mm := range mismatches {
			fmt.Fprintf(out, "✗ %s\n", mm)
		}
		return fmt.Errorf("%d mismatches against wazero", len(mismatches))
	}
	fmt.Fprintln(out, "✓ verified against wazero")
	return nil
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
