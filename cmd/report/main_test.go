package main

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PatchLens/cs-entry-lens/lens"
)

func TestReportCommand(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "run.json")
	chartPath := filepath.Join(dir, "run.svg")
	report := &lens.RunReport{
		GeneratedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Version:      lens.Version,
		Project:      "/src/Demo",
		GeneratedDir: lens.DefaultGeneratedDir,
		Files: []lens.FileResult{
			{Path: "A.cs", Status: lens.FileRewritten, Stats: lens.Stats{Methods: 2}},
			{Path: "B.cs", Status: lens.FileFresh},
		},
		Totals: lens.Stats{Methods: 2},
	}
	require.NoError(t, report.WriteJSON(jsonPath))

	cmd := newReportCommand()
	cmd.SetArgs([]string{"--json", jsonPath, "--chart", chartPath})
	require.NoError(t, cmd.Execute())
	assert.FileExists(t, chartPath)

	cmd = newReportCommand()
	cmd.SetArgs([]string{"--json", filepath.Join(dir, "missing.json"), "--chart", chartPath})
	assert.Error(t, cmd.Execute())
}
