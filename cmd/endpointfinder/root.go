package main

import (
	"fmt"
	"io"
	"plugin"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tavgar/endpointfinder/internal/config"
	"github.com/tavgar/endpointfinder/internal/matcher"
	"github.com/tavgar/endpointfinder/internal/metrics"
	"github.com/tavgar/endpointfinder/internal/observability"
	"github.com/tavgar/endpointfinder/internal/scan"
)

// viperKey annotates flags with the config key they override.
const viperKey = "viper_key"

// app carries what every command needs once configuration is loaded.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	logger  *zap.Logger

	stdin          io.Reader
	stdout, stderr io.Writer
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	a := &app{v: viper.New(), logger: zap.NewNop(), stdin: stdin, stdout: stdout, stderr: stderr}
	config.SetDefaults(a.v)

	root := &cobra.Command{
		Use:           "endpointfinder",
		Short:         "Find the HTTP endpoints a JavaScript code base calls",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			observability.Sync(a.logger)
		},
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	pf := root.PersistentFlags()
	pf.StringVarP(&a.cfgFile, "config", "c", "", "config file (default $HOME/.endpointfinder.yaml)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.StringSlice("plugins", nil, "Go plugins registering extra matchers")
	annotate(pf, "log-level", "logger.level")
	annotate(pf, "plugins", "scan.plugins")

	root.AddCommand(newScanCmd(a), newInspectCmd(a), newProxyCmd(a), newVersionCmd(a))
	return root
}

func annotate(fs *pflag.FlagSet, name, key string) {
	if err := fs.SetAnnotation(name, viperKey, []string{key}); err != nil {
		panic(err)
	}
}

// setup binds the running command's flags, loads configuration, builds the
// logger and opens plugins.
func (a *app) setup(cmd *cobra.Command) error {
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if keys := f.Annotations[viperKey]; len(keys) == 1 && bindErr == nil {
			bindErr = a.v.BindPFlag(keys[0], f)
		}
	})
	if bindErr != nil {
		return bindErr
	}
	if err := config.Prepare(a.v, a.cfgFile); err != nil {
		return err
	}
	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = observability.NewLogger(cfg.Logger, zapcore.Lock(zapcore.AddSync(a.stderr)))
	if used := a.v.ConfigFileUsed(); used != "" {
		a.logger.Debug("config loaded", zap.String("file", used))
	}

	for _, p := range cfg.Scan.Plugins {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, err := plugin.Open(config.ExpandPath(p)); err != nil {
			return fmt.Errorf("open plugin %s: %w", p, err)
		}
		a.logger.Info("plugin loaded", zap.String("path", p))
	}
	return nil
}

// registry returns the built-in and registered matchers plus those declared
// in the configured matcher files.
func (a *app) registry() (*matcher.Registry, error) {
	reg := matcher.Default(a.logger)
	for _, path := range a.cfg.Scan.Matchers {
		ms, err := matcher.LoadFile(config.ExpandPath(path))
		if err != nil {
			return nil, err
		}
		for _, m := range ms {
			reg.Add(m)
		}
	}
	return reg, nil
}

func (a *app) finder(m *metrics.Metrics) (*scan.Finder, error) {
	reg, err := a.registry()
	if err != nil {
		return nil, err
	}
	f := scan.NewFinder(a.logger,
		scan.WithRegistry(reg),
		scan.WithLimits(a.cfg.Analysis),
		scan.WithSafeMode(a.cfg.Scan.Safe),
		scan.WithLiterals(a.cfg.Scan.Literals),
		scan.WithFetcher(scan.NewFetcher(a.cfg.Network)),
		scan.WithMetrics(m),
	)
	if a.cfg.Scan.Allowlist != "" {
		if err := f.LoadAllowlist(config.ExpandPath(a.cfg.Scan.Allowlist)); err != nil {
			return nil, fmt.Errorf("load allowlist: %w", err)
		}
	}
	return f, nil
}
