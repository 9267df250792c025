package directors

import (
	"fmt"
	"os"
	"strings"

	"ssashelper/src/engine"
	"ssashelper/src/helpers"
	"ssashelper/src/models"
	"ssashelper/src/projerrors"
	"ssashelper/src/settings"

	"go.uber.org/zap"
)

// BuildResult is the outcome of a build run.
type BuildResult struct {
	Target      string
	Diagnostics []engine.Diagnostic
	OK          bool
}

// ProjectService runs the top-level operations on a project.
type ProjectService struct {
	store     engine.ProjectStore
	cleaner   *engine.DirectoryCleaner
	validator *engine.Validator
	journal   *engine.Journal
	logger    *zap.SugaredLogger
}

// NewProjectService creates a ProjectService. journal may be nil.
func NewProjectService(store engine.ProjectStore, cleaner *engine.DirectoryCleaner, validator *engine.Validator,
	journal *engine.Journal,
	logger *zap.SugaredLogger) *ProjectService {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &ProjectService{
		store:     store,
		cleaner:   cleaner,
		validator: validator,
		journal:   journal,
		logger:    logger,
	}
}

// Build assembles a project, validates it for edition and writes the
// consolidated output to target. The output is only written when validation
// produced no diagnostics at all.
func (s *ProjectService) Build(project, target, edition string) (*BuildResult, error) {
	if _, err := engine.ParseEdition(edition); err != nil {
		return nil, err
	}
	if strings.TrimSpace(target) == "" {
		return nil, projerrors.ErrInvalidArgument.New("target file is required")
	}
	if !helpers.FileExists(project, s.logger) {
		return nil, projerrors.ErrNotFound.New(project)
	}

	db, err := s.store.Assemble(project)
	if err != nil {
		return nil, err
	}

	diagnostics, ok, err := s.validator.Validate(db, edition)
	if err != nil {
		return nil, err
	}
	for _, d := range diagnostics {
		s.logger.Errorf("%s", d)
	}

	result := &BuildResult{Target: target, Diagnostics: diagnostics, OK: ok && len(diagnostics) == 0}
	if !result.OK {
		s.logger.Errorf("Build of %s failed validation with %d diagnostics", project, len(diagnostics))
		s.record("build", project, fmt.Sprintf("failed: %d diagnostics", len(diagnostics)))
		return result, nil
	}

	if err := s.store.GenerateOutputFile(db, target); err != nil {
		return nil, err
	}
	s.record("build", project, "wrote "+target)
	return result, nil
}

// Disassemble splits a project, or a consolidated output file when input is
// set, into per-object files under outDir. With writeManifest it also writes
// the database descriptor and project file and returns the project file path.
func (s *ProjectService) Disassemble(project, input, outDir string, opts engine.DisassembleOptions, writeManifest bool) (string, error) {
	db, source, err := s.load(project, input)
	if err != nil {
		return "", err
	}

	if err := s.store.Disassemble(db, outDir, opts); err != nil {
		return "", err
	}

	manifest := ""
	if writeManifest {
		if manifest, err = s.store.WriteProjectManifest(db, outDir); err != nil {
			return "", err
		}
	}
	s.record("disassemble", source, "into "+outDir)
	return manifest, nil
}

// GenerateOutput assembles a project and writes it as one document to target.
func (s *ProjectService) GenerateOutput(project, target string) error {
	if err := s.store.GenerateOutputFileFromProject(project, target); err != nil {
		return err
	}
	s.record("output", project, "wrote "+target)
	return nil
}

// Clean strips volatile metadata from the project files in the configured directory.
func (s *ProjectService) Clean(args settings.CleanArguments) (engine.CleanResult, error) {
	patterns, err := settings.ParsePatterns(args.Patterns)
	if err != nil {
		return engine.CleanResult{}, err
	}

	result, err := s.cleaner.Clean(args.Directory, engine.CleanOptions{
		Patterns:                   patterns,
		Recursive:                  args.Recursive,
		RemoveDesignTimeNames:      args.RemoveDesignTimeNames,
		RemoveDimensionAnnotations: args.RemoveDimensionAnnotations,
		MakeBackup:                 args.Backup,
	})
	if err != nil {
		return result, err
	}
	s.record("clean", args.Directory, fmt.Sprintf("inspected %d, eligible %d, altered %d", result.Inspected, result.Eligible, result.Altered))
	return result, nil
}

// Validate assembles a project and validates it for edition.
func (s *ProjectService) Validate(project, edition string) ([]engine.Diagnostic, bool, error) {
	if _, err := engine.ParseEdition(edition); err != nil {
		return nil, false, err
	}
	db, err := s.store.Assemble(project)
	if err != nil {
		return nil, false, err
	}
	return s.validator.Validate(db, edition)
}

// Inventory assembles a project and summarizes it. When out is set the
// inventory is also written there.
func (s *ProjectService) Inventory(project, out string) (*engine.Inventory, error) {
	db, err := s.store.Assemble(project)
	if err != nil {
		return nil, err
	}
	inv, err := engine.BuildInventory(db)
	if err != nil {
		return nil, err
	}
	if out != "" {
		if err := engine.WriteInventory(inv, out); err != nil {
			return nil, err
		}
		s.record("inventory", project, "wrote "+out)
	}
	return inv, nil
}

// Verify disassembles a project into a scratch directory, assembles the
// result again and returns the differences between both databases.
func (s *ProjectService) Verify(project string) ([]string, error) {
	db, err := s.store.Assemble(project)
	if err != nil {
		return nil, err
	}
	before, err := engine.BuildInventory(db)
	if err != nil {
		return nil, err
	}

	scratch, err := os.MkdirTemp("", "ssashelper-verify-")
	if err != nil {
		return nil, projerrors.ErrIO.Wrap(err, "scratch directory")
	}
	defer os.RemoveAll(scratch)

	if err := s.store.Disassemble(db, scratch, engine.DisassembleOptions{}); err != nil {
		return nil, err
	}
	manifest, err := s.store.WriteProjectManifest(db, scratch)
	if err != nil {
		return nil, err
	}

	again, err := s.store.Assemble(manifest)
	if err != nil {
		return nil, err
	}
	after, err := engine.BuildInventory(again)
	if err != nil {
		return nil, err
	}

	diffs := before.Diff(after)
	s.record("verify", project, fmt.Sprintf("%d differences", len(diffs)))
	return diffs, nil
}

func (s *ProjectService) load(project, input string) (*models.Database, string, error) {
	if input != "" {
		db, err := s.store.LoadOutputFile(input)
		return db, input, err
	}
	if project == "" {
		return nil, "", projerrors.ErrInvalidArgument.New("a project or an input file is required")
	}
	db, err := s.store.Assemble(project)
	return db, project, err
}

func (s *ProjectService) record(command, project, details string) {
	if s.journal == nil {
		return
	}
	if err := s.journal.AddEntry(command, project, details); err != nil {
		s.logger.Warnf("Failed to write journal entry: %v", err)
	}
}
