package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tavgar/endpointfinder/internal/config"
	"github.com/tavgar/endpointfinder/internal/output"
	"github.com/tavgar/endpointfinder/internal/scan"
)

type scanOptions struct {
	targets string
	headers []string
}

func newScanCmd(a *app) *cobra.Command {
	var opts scanOptions
	cmd := &cobra.Command{
		Use:   "scan [target...]",
		Short: "Scan files, directories, archives, URLs or stdin for endpoints",
		Long: `Scan analyzes JavaScript sources and HTML pages and prints the endpoints
passed to XMLHttpRequest, jQuery and Angular $http calls.

A target is "-" for stdin, an http(s) URL, a directory, a .zip or .jar
archive, or a single file. With no targets stdin is read.`,
		Example: `  endpointfinder scan app.js
  endpointfinder scan --format json ./dist
  curl -s https://example.com/app.js | endpointfinder scan -
  endpointfinder scan --render --header "Cookie: s=1" https://example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runScan(cmd.Context(), opts, args)
		},
	}

	fs := cmd.Flags()
	fs.StringP("format", "f", output.FormatPretty, "output format: pretty, plain, json")
	fs.StringP("output", "o", "", "write results to this file")
	fs.BoolP("quiet", "q", false, "hide the banner")
	fs.Bool("safe", true, "only analyze .js, .jsx, .mjs, .cjs and HTML sources")
	fs.IntP("workers", "w", 4, "concurrent workers for directory scans")
	fs.Bool("literals", false, "also report endpoint-like string literals")
	fs.Bool("external", false, "follow scripts hosted on other domains")
	fs.Bool("unique", true, "report each endpoint value once")
	fs.String("allow", "", "file of host or path suffixes to skip")
	fs.StringSlice("matchers", nil, "YAML files declaring extra matchers")
	fs.Bool("render", false, "render URL targets in headless Chrome first")
	fs.Bool("insecure", false, "skip TLS certificate verification")
	fs.Int("max-depth", 16, "maximum call-site expansion depth")
	fs.Int("max-length", 8192, "maximum length of an evaluated endpoint")
	fs.Float64("rate", 0, "maximum requests per second, 0 for no limit")
	fs.StringVarP(&opts.targets, "targets", "t", "", "file listing one target per line")
	fs.StringArrayVarP(&opts.headers, "header", "H", nil, `extra request header "Name: value", repeatable`)

	for flag, key := range map[string]string{
		"format":     "output.format",
		"output":     "output.file",
		"quiet":      "output.quiet",
		"safe":       "scan.safe",
		"workers":    "scan.workers",
		"literals":   "scan.literals",
		"external":   "scan.external",
		"unique":     "scan.unique",
		"allow":      "scan.allowlist",
		"matchers":   "scan.matchers",
		"render":     "render.enabled",
		"insecure":   "network.insecure",
		"max-depth":  "analysis.max_depth",
		"max-length": "analysis.max_length",
		"rate":       "network.rate",
	} {
		annotate(fs, flag, key)
	}
	return cmd
}

func (a *app) runScan(ctx context.Context, opts scanOptions, args []string) error {
	if err := a.applyHeaders(opts.headers); err != nil {
		return err
	}
	targets, err := collectTargets(args, opts.targets)
	if err != nil {
		return err
	}

	finder, err := a.finder(nil)
	if err != nil {
		return err
	}

	var all []scan.Match
	failed := 0
	for _, target := range targets {
		ms, err := a.scanTarget(ctx, finder, target)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failed++
			a.logger.Error("target failed", zap.String("target", target), zap.Error(err))
			continue
		}
		all = append(all, ms...)
	}
	if a.cfg.Scan.Unique {
		all = scan.UniqueMatches(all)
	}

	out := a.stdout
	if a.cfg.Output.File != "" {
		f, err := os.Create(config.ExpandPath(a.cfg.Output.File))
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	banner := !a.cfg.Output.Quiet && a.cfg.Output.File == ""
	printer, err := output.NewPrinter(a.cfg.Output.Format, banner, a.cfg.Output.ShowSource, Version)
	if err != nil {
		return err
	}
	if err := printer.Print(out, all); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	a.logger.Info("scan complete",
		zap.Int("targets", len(targets)),
		zap.Int("endpoints", len(all)),
		zap.Int("failed", failed),
	)
	if failed > 0 {
		return fmt.Errorf("%d of %d targets failed", failed, len(targets))
	}
	return nil
}

// applyHeaders merges "Name: value" flags over the configured headers.
func (a *app) applyHeaders(raw []string) error {
	if len(raw) == 0 {
		return nil
	}
	if a.cfg.Network.Headers == nil {
		a.cfg.Network.Headers = make(map[string]string, len(raw))
	}
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return fmt.Errorf("invalid header %q, want \"Name: value\"", h)
		}
		a.cfg.Network.Headers[name] = strings.TrimSpace(value)
	}
	return nil
}

func (a *app) scanTarget(ctx context.Context, f *scan.Finder, target string) ([]scan.Match, error) {
	switch {
	case target == "-":
		return f.ScanReader(ctx, "stdin", a.stdin)
	case strings.HasPrefix(target, "http://"), strings.HasPrefix(target, "https://"):
		if a.cfg.Render.Enabled {
			return f.ScanRendered(ctx, target, a.cfg.Scan.External, a.cfg.RenderOptions())
		}
		return f.ScanURL(ctx, target, a.cfg.Scan.External)
	}

	path := config.ExpandPath(target)
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() || isArchivePath(path) {
		return f.ScanDir(ctx, path, a.cfg.Scan.Workers)
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return f.ScanReader(ctx, target, file)
}

func isArchivePath(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".zip") || strings.HasSuffix(lower, ".jar")
}

// collectTargets joins the positional targets with those listed in the
// targets file. Blank lines and lines starting with # are skipped.
func collectTargets(args []string, listFile string) ([]string, error) {
	targets := append([]string(nil), args...)
	if listFile != "" {
		f, err := os.Open(config.ExpandPath(listFile))
		if err != nil {
			return nil, fmt.Errorf("open targets file: %w", err)
		}
		defer f.Close()
		more, err := readTargets(f)
		if err != nil {
			return nil, fmt.Errorf("read targets file: %w", err)
		}
		targets = append(targets, more...)
	}
	if len(targets) == 0 {
		targets = []string{"-"}
	}
	return targets, nil
}

func readTargets(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}
