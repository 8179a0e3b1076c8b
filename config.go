package kida

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/kida-ssg/kida/loader"
	"github.com/kida-ssg/kida/optimizer"
	"github.com/kida-ssg/kida/runtime"
)

// EnvironmentConfig is the on-disk shape of the options a host program can
// hand to NewEnvironment, following the teacher's EnvironmentOption pattern
// but expressed as data so it can be versioned alongside a site's other
// YAML configuration files.
type EnvironmentConfig struct {
	AutoEscape          bool   `yaml:"auto_escape"`
	TrimBlocks          bool   `yaml:"trim_blocks"`
	LstripBlocks        bool   `yaml:"lstrip_blocks"`
	KeepTrailingNewline bool   `yaml:"keep_trailing_newline"`
	UndefinedBehavior   string `yaml:"undefined_behavior"` // silent | strict | debug
	CacheSize           int    `yaml:"cache_size"`
	Optimize            bool   `yaml:"optimize"`
	TemplateRoot        string `yaml:"template_root"`
}

// LoadEnvironmentConfig reads an EnvironmentConfig from a YAML file through
// fs, defaulting to the OS filesystem when fs is nil.
func LoadEnvironmentConfig(fs afero.Fs, path string) (*EnvironmentConfig, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading environment config %q: %w", path, err)
	}

	cfg := &EnvironmentConfig{CacheSize: defaultTemplateCacheSize}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing environment config %q: %w", path, err)
	}
	return cfg, nil
}

// Options translates the config into the EnvironmentOption values
// NewEnvironment expects.
func (c *EnvironmentConfig) Options() ([]EnvironmentOption, error) {
	opts := []EnvironmentOption{
		WithAutoEscape(c.AutoEscape),
		WithTrimBlocks(c.TrimBlocks),
		WithLstripBlocks(c.LstripBlocks),
		WithKeepTrailingNewline(c.KeepTrailingNewline),
	}

	if c.CacheSize > 0 {
		opts = append(opts, WithCacheSize(c.CacheSize))
	}
	if c.Optimize {
		opts = append(opts, WithOptimization(optimizer.Options{}))
	}

	switch c.UndefinedBehavior {
	case "", "silent":
		opts = append(opts, WithUndefinedBehavior(runtime.UndefinedSilent))
	case "strict":
		opts = append(opts, WithUndefinedBehavior(runtime.UndefinedStrict))
	case "debug":
		opts = append(opts, WithUndefinedBehavior(runtime.UndefinedDebug))
	default:
		return nil, fmt.Errorf("unknown undefined_behavior %q", c.UndefinedBehavior)
	}

	if c.TemplateRoot != "" {
		fsLoader := loader.NewFileSystemLoader([]string{c.TemplateRoot}, loader.NewDirectTemplateParser())
		opts = append(opts, WithLoader(fsLoader))
	}

	return opts, nil
}

// ConfigFlags binds the subset of EnvironmentConfig a CLI host typically
// wants overridable on the command line, mirroring the teacher's
// functional-options surface as pflag flags.
type ConfigFlags struct {
	set *pflag.FlagSet

	autoEscape        bool
	trimBlocks        bool
	lstripBlocks      bool
	undefinedBehavior string
	cacheSize         int
	optimize          bool
	configFile        string
}

// NewConfigFlags registers environment flags on fs, or on a freshly created
// FlagSet named "kida" when fs is nil.
func NewConfigFlags(fs *pflag.FlagSet) *ConfigFlags {
	if fs == nil {
		fs = pflag.NewFlagSet("kida", pflag.ContinueOnError)
	}
	c := &ConfigFlags{set: fs}

	fs.BoolVar(&c.autoEscape, "auto-escape", true, "escape HTML in variable output")
	fs.BoolVar(&c.trimBlocks, "trim-blocks", false, "strip the newline after a block tag")
	fs.BoolVar(&c.lstripBlocks, "lstrip-blocks", false, "strip leading whitespace before a block tag")
	fs.StringVar(&c.undefinedBehavior, "undefined", "silent", "undefined variable behavior: silent, strict, or debug")
	fs.IntVar(&c.cacheSize, "cache-size", defaultTemplateCacheSize, "compiled template cache capacity")
	fs.BoolVar(&c.optimize, "optimize", false, "run the AST optimizer pipeline on compiled templates")
	fs.StringVar(&c.configFile, "config", "", "path to an EnvironmentConfig YAML file; flags override its values")

	return c
}

// Parse parses args (typically os.Args[1:]) and, if --config was given,
// layers the flag-provided overrides on top of the file's settings.
func (c *ConfigFlags) Parse(args []string) (*EnvironmentConfig, error) {
	if err := c.set.Parse(args); err != nil {
		return nil, err
	}

	cfg := &EnvironmentConfig{CacheSize: defaultTemplateCacheSize}
	if c.configFile != "" {
		loaded, err := LoadEnvironmentConfig(nil, c.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if c.set.Changed("auto-escape") {
		cfg.AutoEscape = c.autoEscape
	}
	if c.set.Changed("trim-blocks") {
		cfg.TrimBlocks = c.trimBlocks
	}
	if c.set.Changed("lstrip-blocks") {
		cfg.LstripBlocks = c.lstripBlocks
	}
	if c.set.Changed("undefined") {
		cfg.UndefinedBehavior = c.undefinedBehavior
	}
	if c.set.Changed("cache-size") {
		cfg.CacheSize = c.cacheSize
	}
	if c.set.Changed("optimize") {
		cfg.Optimize = c.optimize
	}

	return cfg, nil
}

// NewEnvironmentFromArgs is a convenience entry point for host programs:
// it parses os.Args-style flags (plus an optional --config file) and
// returns a ready Environment.
func NewEnvironmentFromArgs(args []string) (*Environment, error) {
	cfg, err := NewConfigFlags(nil).Parse(args)
	if err != nil {
		return nil, err
	}
	opts, err := cfg.Options()
	if err != nil {
		return nil, err
	}
	return NewEnvironment(opts...), nil
}
