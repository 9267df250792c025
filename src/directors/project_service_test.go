package directors

import (
	"os"
	"path/filepath"
	"testing"

	"ssashelper/src/engine"
	"ssashelper/src/helpers"
	"ssashelper/src/projecttest"
	"ssashelper/src/projerrors"
	"ssashelper/src/settings"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*ProjectService, *engine.Journal) {
	t.Helper()
	journal, err := engine.NewJournal(t.TempDir(), 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = journal.Close() })

	ns := helpers.NewNamespaces()
	service := NewProjectService(
		engine.NewProjectStore(ns, nil),
		engine.NewDirectoryCleaner(ns, nil),
		engine.NewValidator(nil),
		journal,
		nil,
	)
	return service, journal
}

func journalCommands(t *testing.T, j *engine.Journal) []string {
	t.Helper()
	entries, err := engine.ReadJournal(j.Path())
	require.NoError(t, err)
	var commands []string
	for _, e := range entries {
		commands = append(commands, e.Command)
	}
	return commands
}

func TestBuild(t *testing.T) {
	s, journal := newTestService(t)
	p := projecttest.Write(t)
	target := filepath.Join(t.TempDir(), "bin", "Adventure Works.asdatabase")

	result, err := s.Build(p.Manifest, target, "Standard")
	require.NoError(t, err)
	assert.True(t, result.OK)
	assert.Empty(t, result.Diagnostics)
	assert.Equal(t, target, result.Target)
	assert.FileExists(t, target)
	assert.Equal(t, []string{"build"}, journalCommands(t, journal))
}

func TestBuildStopsOnDiagnostics(t *testing.T) {
	s, journal := newTestService(t)
	p := projecttest.Write(t)
	// A measure group without partitions only warns, which still fails the build.
	p.WriteFile(t, projecttest.FinancePartitions, `<Cube {{root}}><ID>Finance</ID><Name>Finance</Name></Cube>`)
	target := filepath.Join(t.TempDir(), "out.asdatabase")

	result, err := s.Build(p.Manifest, target, "Enterprise")
	require.NoError(t, err)
	assert.False(t, result.OK)
	require.Len(t, result.Diagnostics, 1)
	assert.Equal(t, engine.SeverityWarning, result.Diagnostics[0].Severity)
	assert.NoFileExists(t, target)

	entries, err := engine.ReadJournal(journal.Path())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "failed: 1 diagnostics", entries[0].Details)
}

func TestBuildArguments(t *testing.T) {
	s, _ := newTestService(t)
	p := projecttest.Write(t)
	target := filepath.Join(t.TempDir(), "out.asdatabase")

	_, err := s.Build(p.Manifest, target, "Web")
	assert.True(t, projerrors.ErrInvalidArgument.Is(err))

	_, err = s.Build(p.Manifest, "", "Standard")
	assert.True(t, projerrors.ErrInvalidArgument.Is(err))

	_, err = s.Build(filepath.Join(p.Dir, "missing.dwproj"), target, "Standard")
	assert.True(t, projerrors.ErrNotFound.Is(err))
}

func TestDisassembleFromProjectAndOutput(t *testing.T) {
	s, journal := newTestService(t)
	p := projecttest.Write(t)

	out := filepath.Join(t.TempDir(), "split")
	manifest, err := s.Disassemble(p.Manifest, "", out, engine.DisassembleOptions{}, true)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, projecttest.ProjectFileName), manifest)
	assert.FileExists(t, filepath.Join(out, projecttest.SalesPartitions))

	output := filepath.Join(t.TempDir(), "aw.asdatabase")
	require.NoError(t, s.GenerateOutput(manifest, output))

	fromOutput := filepath.Join(t.TempDir(), "again")
	manifest, err = s.Disassemble("", output, fromOutput, engine.DisassembleOptions{}, false)
	require.NoError(t, err)
	assert.Empty(t, manifest)
	assert.FileExists(t, filepath.Join(fromOutput, projecttest.SalesCubeFile))
	assert.NoFileExists(t, filepath.Join(fromOutput, projecttest.ProjectFileName))

	_, err = s.Disassemble("", "", fromOutput, engine.DisassembleOptions{}, false)
	assert.True(t, projerrors.ErrInvalidArgument.Is(err))

	assert.Equal(t, []string{"disassemble", "output", "disassemble"}, journalCommands(t, journal))
}

func TestClean(t *testing.T) {
	s, _ := newTestService(t)
	p := projecttest.Write(t)

	args := settings.NewArguments().Clean
	args.Directory = p.Dir
	args.Backup = false

	result, err := s.Clean(args)
	require.NoError(t, err)
	assert.Equal(t, projecttest.ProjectFileCount, result.Inspected)
	assert.Equal(t, projecttest.VolatileFileCount, result.Altered)

	args.Patterns = "[bad"
	_, err = s.Clean(args)
	assert.True(t, projerrors.ErrInvalidArgument.Is(err))
}

func TestValidateAndInventory(t *testing.T) {
	s, _ := newTestService(t)
	p := projecttest.Write(t)

	diags, ok, err := s.Validate(p.Manifest, "Developer")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, diags)

	_, _, err = s.Validate(p.Manifest, "developer")
	assert.True(t, projerrors.ErrInvalidArgument.Is(err))

	out := filepath.Join(t.TempDir(), "aw.inventory")
	inv, err := s.Inventory(p.Manifest, out)
	require.NoError(t, err)
	assert.Len(t, inv.Cubes, 2)

	stored, err := engine.ReadInventory(out)
	require.NoError(t, err)
	assert.Empty(t, inv.Diff(stored))
}

func TestVerify(t *testing.T) {
	s, _ := newTestService(t)
	p := projecttest.Write(t)

	diffs, err := s.Verify(p.Manifest)
	require.NoError(t, err)
	assert.Empty(t, diffs)

	_, err = s.Verify(filepath.Join(p.Dir, "missing.dwproj"))
	assert.True(t, projerrors.ErrNotFound.Is(err))
}

func TestInitServices(t *testing.T) {
	config := settings.NewArguments()
	config.PrintToScreen = false
	config.LogDir = filepath.Join(t.TempDir(), "logs")
	config.JournalDir = filepath.Join(t.TempDir(), "journal")
	require.NoError(t, os.MkdirAll(config.LogDir, 0755))

	manager, closer, err := InitServices(config)
	require.NoError(t, err)
	require.NotNil(t, manager.ProjectService)
	assert.Same(t, manager, GetServiceManager())

	logs, err := filepath.Glob(filepath.Join(config.LogDir, "*_ssashelper.log"))
	require.NoError(t, err)
	assert.Len(t, logs, 1)

	require.NoError(t, closer())

	// A second run gets a fresh manager.
	second, closer, err := InitServices(config)
	require.NoError(t, err)
	assert.NotSame(t, manager, second)
	require.NoError(t, closer())

	previous := settings.GetSettings()
	t.Cleanup(func() { settings.SetSettings(previous) })
	settings.SetSettings(config)
	fromSettings, closer, err := InitServices(nil)
	require.NoError(t, err)
	assert.NotSame(t, second, fromSettings)
	assert.Same(t, fromSettings, GetServiceManager())
	require.NoError(t, closer())
	ResetServiceManager()
}
