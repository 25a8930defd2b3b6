package lens

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Defaults for the batch configuration.
const (
	DefaultGeneratedDir = "Generated"
	DefaultCacheMB      = 64
	DefaultLogLevel     = "info"
)

var (
	DefaultExtensions  = []string{".cs"}
	DefaultExcludeDirs = []string{"bin", "obj", ".git", ".vs"}
)

// Config configures ProcessProject.
type Config struct {
	ProjectDir   string   `mapstructure:"project"`
	GeneratedDir string   `mapstructure:"generated_dir"` // relative to ProjectDir
	Extensions   []string `mapstructure:"extensions"`
	ExcludeDirs  []string `mapstructure:"exclude_dirs"`
	Callee       string   `mapstructure:"callee"`
	Kinds        []string `mapstructure:"kinds"`
	Newline      string   `mapstructure:"newline"` // lf, crlf or auto
	CacheDir     string   `mapstructure:"cache_dir"`
	CacheMB      int      `mapstructure:"cache_mb"`
	ReportJSON   string   `mapstructure:"report_json"`
	ReportChart  string   `mapstructure:"report_chart"`
	DiffFile     string   `mapstructure:"diff_file"`
	DryRun       bool     `mapstructure:"dry_run"`
	Force        bool     `mapstructure:"force"`
	Prune        bool     `mapstructure:"prune"`
	ClearCache   bool     `mapstructure:"clear_cache"`
	LogLevel     string   `mapstructure:"log_level"`
	Jobs         int      `mapstructure:"jobs"`

	// Computed by Prepare
	AbsProjDir, AbsGeneratedDir string
	prepared                    bool
}

// DefaultConfig returns a Config with every default applied for the given project.
func DefaultConfig(projectDir string) Config {
	return Config{
		ProjectDir:   projectDir,
		GeneratedDir: DefaultGeneratedDir,
		Extensions:   slices.Clone(DefaultExtensions),
		ExcludeDirs:  slices.Clone(DefaultExcludeDirs),
		Callee:       DefaultCallee,
		Kinds:        slices.Clone(DefaultKinds),
		Newline:      "lf",
		CacheMB:      DefaultCacheMB,
		LogLevel:     DefaultLogLevel,
	}
}

// RewriteOptions converts the configuration into Rewriter options.
func (c *Config) RewriteOptions() (Options, error) {
	opts := Options{Callee: c.Callee, Kinds: c.Kinds}
	switch strings.ToLower(c.Newline) {
	case "", "lf":
		opts.Newline = "\n"
	case "crlf":
		opts.Newline = "\r\n"
	case NewlineAuto:
		opts.Newline = NewlineAuto
	default:
		return Options{}, fmt.Errorf("invalid newline '%s', must be one of: lf, crlf, auto", c.Newline)
	}
	return opts, nil
}

// Prepare validates the configuration and resolves its paths.
func (c *Config) Prepare() error {
	if c.prepared {
		return errors.New("config has already been prepared")
	}

	if c.ProjectDir == "" {
		return errors.New("project directory is required")
	} else if c.GeneratedDir == "" {
		return errors.New("generated directory is required")
	} else if filepath.IsAbs(c.GeneratedDir) {
		return fmt.Errorf("generated directory '%s' must be relative to the project", c.GeneratedDir)
	} else if len(c.Extensions) == 0 {
		return errors.New("at least one source extension is required")
	} else if c.CacheMB < 1 || c.CacheMB > 10240 { // 10GB limit
		return fmt.Errorf("cache size must be between 1 and 10240 MB, got %d", c.CacheMB)
	} else if c.Jobs < 0 {
		return fmt.Errorf("jobs must not be negative, got %d", c.Jobs)
	}

	absProjDir, err := filepath.Abs(c.ProjectDir)
	if err != nil {
		return fmt.Errorf("error resolving project directory: %w", err)
	} else if info, err := os.Stat(absProjDir); err != nil {
		return fmt.Errorf("project directory is not accessible: %w", err)
	} else if !info.IsDir() {
		return fmt.Errorf("project path '%s' is not a directory", c.ProjectDir)
	}
	c.AbsProjDir = absProjDir

	c.AbsGeneratedDir = filepath.Join(absProjDir, c.GeneratedDir)
	if within, err := fileWithinDir(c.AbsGeneratedDir, absProjDir); err != nil {
		return err
	} else if !within || c.AbsGeneratedDir == absProjDir {
		return fmt.Errorf("generated directory '%s' must be inside the project", c.GeneratedDir)
	}

	if _, err := c.RewriteOptions(); err != nil {
		return err
	}

	for _, path := range []string{c.ReportJSON, c.ReportChart, c.DiffFile} {
		if path == "" {
			continue
		} else if err := validateOutputPath(path); err != nil {
			return fmt.Errorf("invalid output file path: %w", err)
		}
	}
	if c.ReportChart != "" {
		if _, err := chartOutputType(c.ReportChart); err != nil {
			return err
		}
	}

	c.prepared = true
	return nil
}

// validateOutputPath validates that an output file path can be written to
func validateOutputPath(path string) error {
	dir := filepath.Dir(path)

	// Check if directory exists, if not try to create it
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("cannot create output directory '%s': %w", dir, err)
		}
	}

	// Check if we can write to the directory
	file, err := os.CreateTemp(dir, ".write_test*")
	if err != nil {
		return fmt.Errorf("cannot write to output directory '%s': %w", dir, err)
	}
	_ = file.Close()
	return os.Remove(file.Name())
}
