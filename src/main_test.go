package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"ssashelper/src/engine"
	"ssashelper/src/projecttest"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	color.NoColor = true

	var stdout, stderr bytes.Buffer
	code := run(append(args, "--print=false"), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestBuildCommand(t *testing.T) {
	p := projecttest.Write(t)
	target := filepath.Join(t.TempDir(), "Adventure Works.asdatabase")

	code, stdout, stderr := runCLI(t, "build", "--project", p.Manifest, "--target", target, "--edition", "Standard")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Build succeeded: "+target)
	assert.FileExists(t, target)

	code, _, stderr = runCLI(t, "build", "--project", p.Manifest)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Error: missing required option --target")
}

func TestBuildCommandFailsOnDiagnostics(t *testing.T) {
	p := projecttest.Write(t)
	p.WriteFile(t, projecttest.FinancePartitions, `<Cube {{root}}><ID>Finance</ID><Name>Finance</Name></Cube>`)
	target := filepath.Join(t.TempDir(), "out.asdatabase")

	code, _, stderr := runCLI(t, "build", "--project", p.Manifest, "--target", target)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Warning: Cube Finance/Finance: measure group has no partitions")
	assert.Contains(t, stderr, "Build failed with 1 diagnostics")
	assert.NotContains(t, stderr, "Error: failed")
	assert.NoFileExists(t, target)
}

func TestConfigFileAndFlagPrecedence(t *testing.T) {
	p := projecttest.Write(t)
	config := filepath.Join(t.TempDir(), "ssashelper.yaml")
	require.NoError(t, os.WriteFile(config, []byte("project: "+p.Manifest+"\nedition: Standard\n"), 0644))

	code, stdout, stderr := runCLI(t, "validate", "--config", config)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "0 diagnostics")

	code, _, stderr = runCLI(t, "validate", "--config", config, "--edition", "Web")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, `unknown edition "Web"`)

	code, _, stderr = runCLI(t, "validate", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "could not read config file")
}

func TestDisassembleCommand(t *testing.T) {
	p := projecttest.Write(t)
	out := filepath.Join(t.TempDir(), "split")

	code, stdout, stderr := runCLI(t, "disassemble", "--project", p.Manifest, "--out", out)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Project file: "+filepath.Join(out, projecttest.ProjectFileName))
	assert.FileExists(t, filepath.Join(out, projecttest.DatabaseFileName))

	bare := filepath.Join(t.TempDir(), "bare")
	code, stdout, stderr = runCLI(t, "disassemble", "--project", p.Manifest, "--out", bare, "--manifest=false")
	require.Equal(t, 0, code, stderr)
	assert.NotContains(t, stdout, "Project file")
	assert.FileExists(t, filepath.Join(bare, projecttest.SalesCubeFile))
	assert.NoFileExists(t, filepath.Join(bare, projecttest.ProjectFileName))

	code, _, stderr = runCLI(t, "disassemble", "--out", bare)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "one of --project or --input is required")
}

func TestOutputCommand(t *testing.T) {
	p := projecttest.Write(t)
	target := filepath.Join(t.TempDir(), "aw.asdatabase")

	code, stdout, stderr := runCLI(t, "output", "--project", p.Manifest, "--target", target)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Wrote "+target)

	split := filepath.Join(t.TempDir(), "split")
	code, _, stderr = runCLI(t, "disassemble", "--input", target, "--out", split)
	require.Equal(t, 0, code, stderr)
	assert.FileExists(t, filepath.Join(split, projecttest.FinancePartitions))
}

func TestCleanCommand(t *testing.T) {
	p := projecttest.Write(t)

	code, stdout, stderr := runCLI(t, "clean", "--dir", p.Dir, "--backup=false")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Inspected 10 files, 10 eligible, 6 altered")

	backups, err := filepath.Glob(filepath.Join(p.Dir, "*.bak"))
	require.NoError(t, err)
	assert.Empty(t, backups)

	code, stdout, stderr = runCLI(t, "clean", "--dir", p.Dir, "--remove-design-time-names", "--patterns", "*.role")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Inspected 1 files, 1 eligible, 1 altered")
}

func TestInventoryAndVerifyCommands(t *testing.T) {
	p := projecttest.Write(t)
	out := filepath.Join(t.TempDir(), "aw.inventory")

	code, stdout, stderr := runCLI(t, "inventory", "--project", p.Manifest, "--out", out)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Database Adventure Works: 2 dimensions, 2 cubes, 4 partitions")
	assert.FileExists(t, out)

	code, stdout, stderr = runCLI(t, "verify", "--project", p.Manifest)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Round trip verified")
}

func TestJournalDirRecordsCommands(t *testing.T) {
	p := projecttest.Write(t)
	journalDir := t.TempDir()

	code, _, stderr := runCLI(t, "clean", "--dir", p.Dir, "--journaldir", journalDir)
	require.Equal(t, 0, code, stderr)

	files, err := filepath.Glob(filepath.Join(journalDir, "ssashelper_*.journal"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	entries, err := engine.ReadJournal(files[0])
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "clean", entries[0].Command)
	assert.Equal(t, p.Dir, entries[0].Project)
}
