package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PatchLens/cs-entry-lens/lens"
)

const testSource = "class Program\n{\n    static void Main()\n    {\n        Run();\n    }\n}\n"

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func loadTestConfig(t *testing.T, flags []string, args ...string) (*lens.Config, error) {
	t.Helper()

	cmd := &cobra.Command{Use: "test"}
	AddConfigFlags(cmd)
	require.NoError(t, cmd.Flags().Parse(flags))
	return LoadConfig(cmd, args)
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		proj := t.TempDir()
		cfg, err := loadTestConfig(t, nil, proj)
		require.NoError(t, err)

		assert.Equal(t, proj, cfg.ProjectDir)
		assert.Equal(t, proj, cfg.AbsProjDir)
		assert.Equal(t, lens.DefaultGeneratedDir, cfg.GeneratedDir)
		assert.Equal(t, filepath.Join(proj, lens.DefaultGeneratedDir), cfg.AbsGeneratedDir)
		assert.Equal(t, lens.DefaultExtensions, cfg.Extensions)
		assert.Equal(t, lens.DefaultExcludeDirs, cfg.ExcludeDirs)
		assert.Equal(t, lens.DefaultCallee, cfg.Callee)
		assert.Equal(t, lens.DefaultKinds, cfg.Kinds)
		assert.Equal(t, lens.DefaultCacheMB, cfg.CacheMB)
		assert.Empty(t, cfg.CacheDir)
		assert.False(t, cfg.DryRun)
		assert.False(t, cfg.ClearCache)
	})

	t.Run("flags", func(t *testing.T) {
		proj := t.TempDir()
		cfg, err := loadTestConfig(t, []string{
			"--project", proj,
			"--generated-dir", "Out",
			"--kinds", "method_declaration,constructor_declaration",
			"--callee", "Trace.Enter",
			"--newline", "crlf",
			"--dry-run",
			"--clear-cache",
			"--jobs", "3",
		})
		require.NoError(t, err)

		assert.Equal(t, "Out", cfg.GeneratedDir)
		assert.Equal(t, []string{"method_declaration", "constructor_declaration"}, cfg.Kinds)
		assert.Equal(t, "Trace.Enter", cfg.Callee)
		assert.Equal(t, "crlf", cfg.Newline)
		assert.True(t, cfg.DryRun)
		assert.True(t, cfg.ClearCache)
		assert.Equal(t, 3, cfg.Jobs)
	})

	t.Run("positional_overrides_flag", func(t *testing.T) {
		proj := t.TempDir()
		cfg, err := loadTestConfig(t, []string{"--project", t.TempDir()}, proj)
		require.NoError(t, err)
		assert.Equal(t, proj, cfg.AbsProjDir)
	})

	t.Run("config_file", func(t *testing.T) {
		proj := t.TempDir()
		writeFile(t, filepath.Join(proj, ".entrylens.yaml"),
			"generated_dir: Instrumented\ncallee: Trace.Enter\ncache_mb: 16\nexclude_dirs:\n  - bin\n  - Legacy\n")

		cfg, err := loadTestConfig(t, nil, proj)
		require.NoError(t, err)
		assert.Equal(t, "Instrumented", cfg.GeneratedDir)
		assert.Equal(t, "Trace.Enter", cfg.Callee)
		assert.Equal(t, 16, cfg.CacheMB)
		assert.Equal(t, []string{"bin", "Legacy"}, cfg.ExcludeDirs)

		// flags take precedence over the file
		cfg, err = loadTestConfig(t, []string{"--callee", "Log.Enter"}, proj)
		require.NoError(t, err)
		assert.Equal(t, "Log.Enter", cfg.Callee)
		assert.Equal(t, "Instrumented", cfg.GeneratedDir)
	})

	t.Run("explicit_config_file", func(t *testing.T) {
		proj := t.TempDir()
		configPath := filepath.Join(t.TempDir(), "settings.yaml")
		writeFile(t, configPath, "newline: auto\nforce: true\n")

		cfg, err := loadTestConfig(t, []string{"--config", configPath}, proj)
		require.NoError(t, err)
		assert.Equal(t, "auto", cfg.Newline)
		assert.True(t, cfg.Force)

		_, err = loadTestConfig(t, []string{"--config", filepath.Join(t.TempDir(), "missing.yaml")}, proj)
		assert.Error(t, err)
	})

	t.Run("environment", func(t *testing.T) {
		proj := t.TempDir()
		t.Setenv("ENTRYLENS_CALLEE", "Env.Enter")
		t.Setenv("ENTRYLENS_CACHE_MB", "8")

		cfg, err := loadTestConfig(t, nil, proj)
		require.NoError(t, err)
		assert.Equal(t, "Env.Enter", cfg.Callee)
		assert.Equal(t, 8, cfg.CacheMB)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := loadTestConfig(t, nil)
		assert.ErrorContains(t, err, "project directory is required")

		proj := t.TempDir()
		_, err = loadTestConfig(t, []string{"--generated-dir", "../outside"}, proj)
		assert.ErrorContains(t, err, "must be inside the project")
		_, err = loadTestConfig(t, []string{"--newline", "cr"}, proj)
		assert.ErrorContains(t, err, "invalid newline")
		_, err = loadTestConfig(t, []string{"--chart", filepath.Join(proj, "chart.gif")}, proj)
		assert.ErrorContains(t, err, "unhandled chart file type")
	})
}

func executeRoot(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()

	root := NewRootCommand(BuildInfo{Version: "test", Commit: "abc", Date: "today"})
	var stdout, stderr bytes.Buffer
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRootCommandProcessesProject(t *testing.T) {
	proj := t.TempDir()
	writeFile(t, filepath.Join(proj, "Program.cs"), testSource)
	writeFile(t, filepath.Join(proj, "obj", "Skipped.cs"), testSource)
	reportPath := filepath.Join(t.TempDir(), "report.json")

	_, _, err := executeRoot(t, "", proj, "--json", reportPath)
	require.NoError(t, err)

	output, err := os.ReadFile(filepath.Join(proj, "Generated", "Program.cs"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(output), "//entrylens:"+lens.Version+":"))
	assert.Contains(t, string(output), "#line 1 \"../Program.cs\"\n")
	assert.Contains(t, string(output), "System.Console.WriteLine(\"Entering Main\");\n#line 5 \"../Program.cs\"\n")
	assert.NoFileExists(t, filepath.Join(proj, "Generated", "obj", "Skipped.cs"))

	report, err := lens.ReadReportJSON(reportPath)
	require.NoError(t, err)
	require.Len(t, report.Files, 1)
	assert.Equal(t, lens.FileRewritten, report.Files[0].Status)

	// unchanged sources are reported fresh
	_, _, err = executeRoot(t, "", proj, "--json", reportPath)
	require.NoError(t, err)
	report, err = lens.ReadReportJSON(reportPath)
	require.NoError(t, err)
	assert.Equal(t, lens.FileFresh, report.Files[0].Status)
}

func TestRootCommandDryRun(t *testing.T) {
	proj := t.TempDir()
	writeFile(t, filepath.Join(proj, "Program.cs"), testSource)
	diffPath := filepath.Join(t.TempDir(), "changes.diff")

	stdout, _, err := executeRoot(t, "", proj, "--dry-run", "--diff-file", diffPath)
	require.NoError(t, err)

	assert.Contains(t, stdout, "+++ b/Generated/Program.cs")
	assert.Contains(t, stdout, "+System.Console.WriteLine(\"Entering Main\");")
	assert.NoDirExists(t, filepath.Join(proj, "Generated"))

	diff, err := os.ReadFile(diffPath)
	require.NoError(t, err)
	assert.Equal(t, stdout, string(diff))
}

func TestRootCommandParseFailure(t *testing.T) {
	proj := t.TempDir()
	writeFile(t, filepath.Join(proj, "Good.cs"), testSource)
	writeFile(t, filepath.Join(proj, "Bad.cs"), "class Bad {\n    void M() {\n")

	_, stderr, err := executeRoot(t, "", proj)
	require.ErrorContains(t, err, "1 source file(s) could not be parsed")
	assert.Contains(t, stderr, "Bad.cs")
	assert.FileExists(t, filepath.Join(proj, "Generated", "Good.cs"))
	assert.NoFileExists(t, filepath.Join(proj, "Generated", "Bad.cs"))
}

func TestRewriteCommand(t *testing.T) {
	src := "class C { void M() { Run(); } }"
	stdout, _, err := executeRoot(t, src, "rewrite", "--path", "../C.cs", "--marker", "//m")
	require.NoError(t, err)

	expect, err := lens.Rewrite(src, "../C.cs", "//m")
	require.NoError(t, err)
	assert.Equal(t, expect, stdout)

	stdout, _, err = executeRoot(t, src, "rewrite", "--path", "C.cs", "--marker", "//m", "--callee", "Trace.Enter")
	require.NoError(t, err)
	assert.Contains(t, stdout, `Trace.Enter("Entering M");`)

	stdout, _, err = executeRoot(t, "class C {", "rewrite", "--path", "C.cs")
	assert.ErrorIs(t, err, lens.ErrParse)
	assert.Empty(t, stdout)

	_, _, err = executeRoot(t, src, "rewrite")
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := executeRoot(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "entrylens test (marker "+lens.Version+", commit abc, built today)\n", stdout)
}
