// Package config loads endpointfinder settings from a YAML file, environment
// variables and command line flags through viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/tavgar/endpointfinder/internal/output"
	"github.com/tavgar/endpointfinder/internal/proxy"
	"github.com/tavgar/endpointfinder/internal/resolve"
	"github.com/tavgar/endpointfinder/internal/scan"
)

// EnvPrefix prefixes environment overrides, e.g. ENDPOINTFINDER_SCAN_WORKERS.
const EnvPrefix = "ENDPOINTFINDER"

// FileName is the base name of the config file searched for by default.
const FileName = ".endpointfinder"

// Config is the complete configuration.
type Config struct {
	Logger   LoggerConfig       `mapstructure:"logger"`
	Analysis resolve.Limits     `mapstructure:"analysis"`
	Scan     ScanConfig         `mapstructure:"scan"`
	Network  scan.FetcherConfig `mapstructure:"network"`
	Render   RenderConfig       `mapstructure:"render"`
	Proxy    proxy.Config       `mapstructure:"proxy"`
	Output   OutputConfig       `mapstructure:"output"`
}

// LoggerConfig controls logging.
type LoggerConfig struct {
	Level      string      `mapstructure:"level"`
	Format     string      `mapstructure:"format"`
	AddSource  bool        `mapstructure:"add_source"`
	LogFile    string      `mapstructure:"log_file"`
	MaxSize    int         `mapstructure:"max_size"`
	MaxBackups int         `mapstructure:"max_backups"`
	MaxAge     int         `mapstructure:"max_age"`
	Compress   bool        `mapstructure:"compress"`
	Colors     ColorConfig `mapstructure:"colors"`
}

// ColorConfig names the console color of each level.
type ColorConfig struct {
	Debug string `mapstructure:"debug"`
	Info  string `mapstructure:"info"`
	Warn  string `mapstructure:"warn"`
	Error string `mapstructure:"error"`
}

// ScanConfig controls what is scanned and how.
type ScanConfig struct {
	Safe      bool     `mapstructure:"safe"`
	Workers   int      `mapstructure:"workers"`
	Literals  bool     `mapstructure:"literals"`
	External  bool     `mapstructure:"external"`
	Unique    bool     `mapstructure:"unique"`
	Allowlist string   `mapstructure:"allowlist"`
	Matchers  []string `mapstructure:"matchers"`
	Plugins   []string `mapstructure:"plugins"`
}

// RenderConfig controls headless rendering of URL targets.
type RenderConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Timeout time.Duration `mapstructure:"timeout"`
	Wait    time.Duration `mapstructure:"wait"`
}

// OutputConfig controls how matches are written.
type OutputConfig struct {
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	Quiet      bool   `mapstructure:"quiet"`
	ShowSource bool   `mapstructure:"show_source"`
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 28)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- Analysis --
	limits := resolve.DefaultLimits()
	v.SetDefault("analysis.max_depth", limits.MaxDepth)
	v.SetDefault("analysis.max_results", limits.MaxResults)
	v.SetDefault("analysis.max_length", limits.MaxLength)

	// -- Scan --
	v.SetDefault("scan.safe", true)
	v.SetDefault("scan.workers", 4)
	v.SetDefault("scan.literals", false)
	v.SetDefault("scan.external", false)
	v.SetDefault("scan.unique", true)
	v.SetDefault("scan.allowlist", "")
	v.SetDefault("scan.matchers", []string{})
	v.SetDefault("scan.plugins", []string{})

	// -- Network --
	v.SetDefault("network.timeout", scan.HTTPClientTimeout)
	v.SetDefault("network.max_redirects", scan.MaxRedirects)
	v.SetDefault("network.user_agent", scan.DefaultUserAgent)
	v.SetDefault("network.headers", map[string]string{})
	v.SetDefault("network.insecure", false)
	v.SetDefault("network.rate", 0)
	v.SetDefault("network.burst", 1)

	// -- Render --
	v.SetDefault("render.enabled", false)
	v.SetDefault("render.timeout", scan.RenderTimeout)
	v.SetDefault("render.wait", scan.RenderWait)

	// -- Proxy --
	v.SetDefault("proxy.addr", "127.0.0.1:8080")
	v.SetDefault("proxy.metrics_addr", "")

	// -- Output --
	v.SetDefault("output.format", output.FormatPretty)
	v.SetDefault("output.file", "")
	v.SetDefault("output.quiet", false)
	v.SetDefault("output.show_source", true)
}

// Prepare wires environment overrides and the config file into v. An
// explicit path must exist; otherwise $HOME/.endpointfinder.yaml and then
// ./.endpointfinder.yaml are tried and may be absent.
func Prepare(v *viper.Viper, path string) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		expanded, err := homedir.Expand(path)
		if err != nil {
			return fmt.Errorf("expand config path: %w", err)
		}
		v.SetConfigFile(expanded)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", expanded, err)
		}
		return nil
	}

	v.SetConfigName(FileName)
	v.SetConfigType("yaml")
	if home, err := homedir.Dir(); err == nil {
		v.AddConfigPath(home)
	}
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

// Load decodes and validates the settings held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	if c.Scan.Workers <= 0 {
		return fmt.Errorf("scan.workers must be a positive integer")
	}
	if c.Analysis.MaxDepth <= 0 || c.Analysis.MaxResults <= 0 || c.Analysis.MaxLength <= 0 {
		return fmt.Errorf("analysis.max_depth, analysis.max_results and analysis.max_length must be positive")
	}
	if c.Network.Rate < 0 {
		return fmt.Errorf("network.rate must not be negative")
	}
	switch c.Output.Format {
	case output.FormatJSON, output.FormatPretty, output.FormatPlain:
	default:
		return fmt.Errorf("output.format must be one of json, pretty, plain; got %q", c.Output.Format)
	}
	for _, p := range append(append([]string{}, c.Scan.Matchers...), c.Scan.Plugins...) {
		if _, err := os.Stat(expand(p)); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
	}
	return nil
}

// RenderOptions combines the render and network settings.
func (c *Config) RenderOptions() scan.RenderOptions {
	return scan.RenderOptions{
		Timeout:   c.Render.Timeout,
		Wait:      c.Render.Wait,
		UserAgent: c.Network.UserAgent,
		Headers:   c.Network.Headers,
		Insecure:  c.Network.Insecure,
	}
}

// ExpandPath resolves a leading ~ in path.
func ExpandPath(path string) string { return expand(path) }

func expand(path string) string {
	if p, err := homedir.Expand(path); err == nil {
		return filepath.Clean(p)
	}
	return path
}
