package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tavgar/endpointfinder/internal/analysis"
	"github.com/tavgar/endpointfinder/internal/config"
	"github.com/tavgar/endpointfinder/internal/symbolic"
	"github.com/tavgar/endpointfinder/internal/syntax"
)

func newInspectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [file]",
		Short: "Dump the bindings and call sites recorded for a JavaScript file",
		Long: `Inspect analyzes one JavaScript source and prints every symbol binding
followed by every recorded call site, in symbolic form. Reads stdin when
no file or "-" is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := "-"
			if len(args) == 1 {
				name = args[0]
			}
			src, err := a.readSource(name)
			if err != nil {
				return err
			}
			res, err := analysis.NewAnalyzer(a.logger).AnalyzeSource(cmd.Context(), src)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			a.logger.Debug("analysis complete", zap.String("source", name), zap.Int("bindings", res.Len()))
			return writeInspection(a.stdout, src, res)
		},
	}
}

func (a *app) readSource(name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(a.stdin)
	}
	return os.ReadFile(config.ExpandPath(name))
}

func writeInspection(w io.Writer, src []byte, res *analysis.Result) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "bindings:")
	for _, b := range res.Bindings() {
		if b.Key != nil {
			fmt.Fprintf(bw, "  [%s] = %s\n", symbolic.Human(b.Key), symbolic.Human(b.Value))
			continue
		}
		fmt.Fprintf(bw, "  %s = %s\n", b.Symbol, symbolic.Human(b.Value))
	}
	fmt.Fprintln(bw, "calls:")
	for _, inv := range res.Invocations() {
		loc := syntax.LocationAt(src, inv.Span.Start)
		fmt.Fprintf(bw, "  %d:%d %s\n", loc.Line, loc.Column, symbolic.Human(inv))
	}
	return bw.Flush()
}
