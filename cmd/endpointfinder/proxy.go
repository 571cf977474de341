package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tavgar/endpointfinder/internal/metrics"
	"github.com/tavgar/endpointfinder/internal/output"
	"github.com/tavgar/endpointfinder/internal/proxy"
)

func newProxyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "proxy",
		Short: "Run an intercepting HTTP proxy that analyzes scripts passing through",
		Long: `Proxy starts a MITM HTTP proxy. Every JavaScript or HTML response seen
for the first time is analyzed and its endpoints are printed one per line
as they are found. Point a browser at the proxy and trust the goproxy CA
to cover HTTPS traffic.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var m *metrics.Metrics
			if a.cfg.Proxy.MetricsAddr != "" {
				m = metrics.New()
			}
			finder, err := a.finder(m)
			if err != nil {
				return err
			}
			printer, err := output.NewPrinter(a.cfg.Output.Format, false, a.cfg.Output.ShowSource, Version)
			if err != nil {
				return err
			}
			a.logger.Info("proxy listening",
				zap.String("addr", a.cfg.Proxy.Addr),
				zap.String("metrics_addr", a.cfg.Proxy.MetricsAddr),
			)
			return proxy.New(finder, printer, a.stdout, a.logger, m).Run(cmd.Context(), a.cfg.Proxy)
		},
	}
	fs := cmd.Flags()
	fs.String("addr", "127.0.0.1:8080", "proxy listen address")
	fs.String("metrics-addr", "", "serve Prometheus metrics on this address")
	fs.StringP("format", "f", output.FormatPretty, "output format: pretty, plain, json")
	annotate(fs, "addr", "proxy.addr")
	annotate(fs, "metrics-addr", "proxy.metrics_addr")
	annotate(fs, "format", "output.format")
	return cmd
}
