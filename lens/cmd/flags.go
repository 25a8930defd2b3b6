package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/PatchLens/cs-entry-lens/lens"
)

const (
	configName = ".entrylens"
	configType = "yaml"
	envPrefix  = "ENTRYLENS"
)

// configFlag binds a config key to a command line flag.
type configFlag struct {
	key   string
	flag  string
	usage string
}

var configFlags = []configFlag{
	{"project", "project", "Path to the C# project directory"},
	{"generated_dir", "generated-dir", "Directory inside the project receiving instrumented copies"},
	{"extensions", "extensions", "Source file extensions to instrument"},
	{"exclude_dirs", "exclude-dirs", "Directory names never descended into"},
	{"callee", "callee", "Method invoked by the injected entry statement"},
	{"kinds", "kinds", "Declaration kinds to instrument: method_declaration, constructor_declaration, destructor_declaration, local_function_statement"},
	{"newline", "newline", "Line break around injected lines: lf, crlf, auto"},
	{"cache_dir", "cache-dir", "Directory persisting rewrite results between runs, empty for none"},
	{"cache_mb", "cache-mb", "Cache memory budget in MB"},
	{"report_json", "json", "File to output run details"},
	{"report_chart", "chart", "File to output the run overview chart image (.png, .jpg, .svg)"},
	{"diff_file", "diff-file", "File also receiving dry run diffs"},
	{"dry_run", "dry-run", "Print unified diffs instead of writing outputs"},
	{"force", "force", "Rewrite outputs even if they are fresh"},
	{"prune", "prune", "Remove generated files whose original no longer exists"},
	{"clear_cache", "clear-cache", "Drop every cached rewrite result before processing"},
	{"log_level", "log-level", "Log level: debug, info, warn, error"},
	{"jobs", "jobs", "Files processed concurrently, 0 for one per CPU"},
}

// AddConfigFlags registers the configuration flags on cmd, defaults come from lens.DefaultConfig.
func AddConfigFlags(cmd *cobra.Command) {
	defaults := lens.DefaultConfig("")
	fs := cmd.Flags()
	fs.String("config", "", "Path to a config file, "+configName+".yaml in the project or working directory by default")
	fs.String("project", defaults.ProjectDir, usageFor("project"))
	fs.String("generated-dir", defaults.GeneratedDir, usageFor("generated_dir"))
	fs.StringSlice("extensions", defaults.Extensions, usageFor("extensions"))
	fs.StringSlice("exclude-dirs", defaults.ExcludeDirs, usageFor("exclude_dirs"))
	fs.String("callee", defaults.Callee, usageFor("callee"))
	fs.StringSlice("kinds", defaults.Kinds, usageFor("kinds"))
	fs.String("newline", defaults.Newline, usageFor("newline"))
	fs.String("cache-dir", defaults.CacheDir, usageFor("cache_dir"))
	fs.Int("cache-mb", defaults.CacheMB, usageFor("cache_mb"))
	fs.String("json", "", usageFor("report_json"))
	fs.String("chart", "", usageFor("report_chart"))
	fs.String("diff-file", "", usageFor("diff_file"))
	fs.Bool("dry-run", false, usageFor("dry_run"))
	fs.Bool("force", false, usageFor("force"))
	fs.Bool("prune", false, usageFor("prune"))
	fs.Bool("clear-cache", false, usageFor("clear_cache"))
	fs.String("log-level", defaults.LogLevel, usageFor("log_level"))
	fs.Int("jobs", 0, usageFor("jobs"))
}

func usageFor(key string) string {
	for _, f := range configFlags {
		if f.key == key {
			return f.usage
		}
	}
	return ""
}

// LoadConfig builds the configuration from defaults, the config file, ENTRYLENS_ environment
// variables and the flags of cmd, later sources taking precedence. A positional project argument
// overrides all of them. The returned config is prepared.
func LoadConfig(cmd *cobra.Command, args []string) (*lens.Config, error) {
	v := viper.New()
	applyDefaults(v)

	v.SetConfigType(configType)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	for _, f := range configFlags {
		if flag := cmd.Flags().Lookup(f.flag); flag != nil {
			if err := v.BindPFlag(f.key, flag); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", f.flag, err)
			}
		}
	}
	if len(args) > 0 {
		v.Set("project", args[0])
	}

	configPath, _ := cmd.Flags().GetString("config")
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(configName)
		if project := v.GetString("project"); project != "" {
			v.AddConfigPath(project)
		}
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg lens.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	} else if err := cfg.Prepare(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(v *viper.Viper) {
	defaults := lens.DefaultConfig("")
	v.SetDefault("project", defaults.ProjectDir)
	v.SetDefault("generated_dir", defaults.GeneratedDir)
	v.SetDefault("extensions", defaults.Extensions)
	v.SetDefault("exclude_dirs", defaults.ExcludeDirs)
	v.SetDefault("callee", defaults.Callee)
	v.SetDefault("kinds", defaults.Kinds)
	v.SetDefault("newline", defaults.Newline)
	v.SetDefault("cache_dir", defaults.CacheDir)
	v.SetDefault("cache_mb", defaults.CacheMB)
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("jobs", 0)
}
