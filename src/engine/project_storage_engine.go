package engine

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ssashelper/src/codec"
	"ssashelper/src/helpers"
	"ssashelper/src/models"
	"ssashelper/src/projerrors"

	"go.uber.org/zap"
)

// File extensions of the per-object project files.
const (
	ExtDatabase        = ".database"
	ExtDataSource      = ".ds"
	ExtDataSourceView  = ".dsv"
	ExtRole            = ".role"
	ExtDimension       = ".dim"
	ExtMiningStructure = ".dmm"
	ExtCube            = ".cube"
	ExtPartitions      = ".partitions"
	ExtProject         = ".dwproj"
)

// ProjectStore defines the operations on a multi-file project.
type ProjectStore interface {
	Assemble(manifestPath string) (*models.Database, error)

	Disassemble(db *models.Database, targetDir string, opts DisassembleOptions) error

	WriteProjectManifest(db *models.Database, targetDir string) (string, error)

	GenerateOutputFile(db *models.Database, path string) error

	GenerateOutputFileFromProject(manifestPath, path string) error

	LoadOutputFile(path string) (*models.Database, error)
}

// DisassembleOptions controls how objects are written out.
type DisassembleOptions struct {
	// AllowOverwrite lets a later object replace the file of an earlier one
	// with the same name in the same category.
	AllowOverwrite bool
}

type ProjectStorageEngine struct {
	codec      *codec.Codec
	repair     *FileRepairer
	reconciler *PartitionReconciler
	factory    ObjectFactory
	logger     *zap.SugaredLogger
}

// NewProjectStore creates a store resolving namespaces with ns.
func NewProjectStore(ns *helpers.Namespaces, logger *zap.SugaredLogger) *ProjectStorageEngine {
	if ns == nil {
		ns = helpers.NewNamespaces()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	factory := NewObjectFactory()
	return &ProjectStorageEngine{
		codec:      codec.New(ns),
		repair:     NewFileRepairer(ns, logger),
		reconciler: NewPartitionReconciler(factory),
		factory:    factory,
		logger:     logger,
	}
}

// Assemble loads every file the project manifest at manifestPath lists into
// one database. Any failure aborts the whole load.
func (p *ProjectStorageEngine) Assemble(manifestPath string) (*models.Database, error) {
	if !helpers.FileExists(manifestPath, p.logger) {
		return nil, projerrors.ErrNotFound.New(manifestPath)
	}

	manifest, err := ReadManifest(manifestPath)
	if err != nil {
		return nil, projerrors.ErrAssembly.Wrap(err, manifestPath)
	}

	db := p.factory.NewDatabase()
	dbPath := manifest.Resolve(manifest.Database)
	if err := p.codec.DeserializeFile(dbPath, db); err != nil {
		return nil, projerrors.ErrAssembly.Wrap(err, dbPath)
	}
	p.logger.Debugf("Loaded database %s from %s", db.Name, dbPath)

	if db.DataSources, err = load(p, manifest, manifest.DataSources, db.DataSources); err != nil {
		return nil, err
	}
	if db.DataSourceViews, err = load(p, manifest, manifest.DataSourceViews, db.DataSourceViews); err != nil {
		return nil, err
	}
	if db.Roles, err = load(p, manifest, manifest.Roles, db.Roles); err != nil {
		return nil, err
	}
	if db.Dimensions, err = load(p, manifest, manifest.Dimensions, db.Dimensions); err != nil {
		return nil, err
	}
	if db.MiningStructures, err = load(p, manifest, manifest.MiningStructures, db.MiningStructures); err != nil {
		return nil, err
	}

	for _, item := range manifest.Cubes {
		cube, err := p.loadCube(manifest, item)
		if err != nil {
			return nil, err
		}
		db.Cubes = append(db.Cubes, cube)
	}

	p.logger.Infof("Assembled database %s from %s (%d files)", db.Name, manifestPath, len(manifest.Files()))
	return db, nil
}

// load deserializes every file of one category and appends the objects to
// into, in manifest order.
func load[T any](p *ProjectStorageEngine, m *Manifest, paths []string, into []*T) ([]*T, error) {
	for _, rel := range paths {
		path := m.Resolve(rel)
		obj := new(T)
		if err := p.codec.DeserializeFile(path, obj); err != nil {
			return nil, projerrors.ErrAssembly.Wrap(err, path)
		}
		p.logger.Debugf("Loaded %s", path)
		into = append(into, obj)
	}
	return into, nil
}

func (p *ProjectStorageEngine) loadCube(m *Manifest, item CubeItem) (*models.Cube, error) {
	path := m.Resolve(item.FullPath)
	cube := p.factory.NewCube()
	if err := p.codec.DeserializeFile(path, cube); err != nil {
		return nil, projerrors.ErrAssembly.Wrap(err, path)
	}
	p.logger.Debugf("Loaded cube %s", path)

	for _, dep := range item.Dependencies {
		depPath := m.Resolve(dep)
		r, err := p.repair.FixPartitionsFileForDeserialize(depPath, cube)
		if err != nil {
			return nil, projerrors.ErrAssembly.Wrap(err, depPath)
		}

		partitionCube := p.factory.NewCube()
		if err := p.codec.Deserialize(r, partitionCube); err != nil {
			return nil, projerrors.ErrAssembly.Wrap(err, depPath)
		}
		if err := p.reconciler.Merge(cube, partitionCube); err != nil {
			return nil, projerrors.ErrAssembly.Wrap(err, depPath)
		}
		p.logger.Debugf("Merged partitions from %s into cube %s", depPath, cube.Name)
	}

	return cube, nil
}

// Disassemble writes every object of db into its own file under targetDir.
// Names are checked before anything is written.
func (p *ProjectStorageEngine) Disassemble(db *models.Database, targetDir string, opts DisassembleOptions) error {
	if db == nil {
		return projerrors.ErrInvalidArgument.New("database is required")
	}
	if strings.TrimSpace(targetDir) == "" {
		return projerrors.ErrInvalidArgument.New("target directory is required")
	}
	if err := checkNames(db, opts); err != nil {
		return err
	}

	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return projerrors.ErrIO.Wrap(err, targetDir)
	}

	for _, o := range db.DataSources {
		if err := p.write(targetDir, o.Name, ExtDataSource, o); err != nil {
			return err
		}
	}
	for _, o := range db.DataSourceViews {
		if err := p.write(targetDir, o.Name, ExtDataSourceView, o); err != nil {
			return err
		}
	}
	for _, o := range db.Roles {
		if err := p.write(targetDir, o.Name, ExtRole, o); err != nil {
			return err
		}
	}
	for _, o := range db.Dimensions {
		if err := p.write(targetDir, o.Name, ExtDimension, o); err != nil {
			return err
		}
	}
	for _, o := range db.MiningStructures {
		if err := p.write(targetDir, o.Name, ExtMiningStructure, o); err != nil {
			return err
		}
	}

	for _, cube := range db.Cubes {
		if err := p.write(targetDir, cube.Name, ExtCube, cube); err != nil {
			return err
		}
		if err := p.repair.FixSerializedCubeFile(filepath.Join(targetDir, cube.Name+ExtCube)); err != nil {
			return err
		}

		partitionCube := p.reconciler.Split(cube)
		if err := p.write(targetDir, cube.Name, ExtPartitions, partitionCube); err != nil {
			return err
		}
		if err := p.repair.FixSerializedPartitionsFile(filepath.Join(targetDir, cube.Name+ExtPartitions)); err != nil {
			return err
		}
	}

	p.logger.Infof("Disassembled database %s into %s", db.Name, targetDir)
	return nil
}

func (p *ProjectStorageEngine) write(dir, name, ext string, source interface{}) error {
	path := filepath.Join(dir, name+ext)
	if err := p.codec.SerializeFile(path, source, false); err != nil {
		return err
	}
	p.logger.Debugf("Wrote %s", path)
	return nil
}

// checkNames rejects names that cannot be used as file names and, unless
// overwriting is allowed, names repeated within a category.
func checkNames(db *models.Database, opts DisassembleOptions) error {
	categories := []struct {
		category string
		names    []string
	}{
		{"data source", names(db.DataSources, func(o *models.DataSource) string { return o.Name })},
		{"data source view", names(db.DataSourceViews, func(o *models.DataSourceView) string { return o.Name })},
		{"role", names(db.Roles, func(o *models.Role) string { return o.Name })},
		{"dimension", names(db.Dimensions, func(o *models.Dimension) string { return o.Name })},
		{"mining structure", names(db.MiningStructures, func(o *models.MiningStructure) string { return o.Name })},
		{"cube", names(db.Cubes, func(o *models.Cube) string { return o.Name })},
	}

	for _, c := range categories {
		seen := make(map[string]bool, len(c.names))
		for _, name := range c.names {
			if strings.TrimSpace(name) == "" {
				return projerrors.ErrInvalidArgument.New(fmt.Sprintf("%s without a name", c.category))
			}
			if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
				return projerrors.ErrInvalidArgument.New(fmt.Sprintf("%s name %q is not a valid file name", c.category, name))
			}
			if seen[name] && !opts.AllowOverwrite {
				return projerrors.ErrDuplicateName.New(c.category, name)
			}
			seen[name] = true
		}
	}
	return nil
}

func names[T any](objects []*T, name func(*T) string) []string {
	out := make([]string, 0, len(objects))
	for _, o := range objects {
		out = append(out, name(o))
	}
	return out
}

// WriteProjectManifest writes the database descriptor and a project file
// listing the files Disassemble writes for db. It returns the project file path.
func (p *ProjectStorageEngine) WriteProjectManifest(db *models.Database, targetDir string) (string, error) {
	if db == nil || strings.TrimSpace(db.Name) == "" {
		return "", projerrors.ErrInvalidArgument.New("database with a name is required")
	}

	descriptor := &models.Database{Object: db.Object}
	if err := p.write(targetDir, db.Name, ExtDatabase, descriptor); err != nil {
		return "", err
	}

	manifest := projectManifest(db)
	path := filepath.Join(targetDir, db.Name+ExtProject)
	if err := WriteManifest(manifest, path); err != nil {
		return "", err
	}
	p.logger.Infof("Wrote project file %s", path)
	return path, nil
}

// projectManifest lists the relative file names Disassemble uses for db.
func projectManifest(db *models.Database) *Manifest {
	m := &Manifest{Database: db.Name + ExtDatabase}

	add := func(list []string, name, ext string) []string {
		file := name + ext
		for _, existing := range list {
			if existing == file {
				return list
			}
		}
		return append(list, file)
	}

	for _, o := range db.DataSources {
		m.DataSources = add(m.DataSources, o.Name, ExtDataSource)
	}
	for _, o := range db.DataSourceViews {
		m.DataSourceViews = add(m.DataSourceViews, o.Name, ExtDataSourceView)
	}
	for _, o := range db.Roles {
		m.Roles = add(m.Roles, o.Name, ExtRole)
	}
	for _, o := range db.Dimensions {
		m.Dimensions = add(m.Dimensions, o.Name, ExtDimension)
	}
	for _, o := range db.MiningStructures {
		m.MiningStructures = add(m.MiningStructures, o.Name, ExtMiningStructure)
	}

	seen := make(map[string]bool)
	for _, c := range db.Cubes {
		if seen[c.Name] {
			continue
		}
		seen[c.Name] = true
		m.Cubes = append(m.Cubes, CubeItem{
			FullPath:     c.Name + ExtCube,
			Dependencies: []string{c.Name + ExtPartitions},
		})
	}
	return m
}

// GenerateOutputFile writes db as one consolidated document at path,
// creating parent directories as needed.
func (p *ProjectStorageEngine) GenerateOutputFile(db *models.Database, path string) error {
	if db == nil {
		return projerrors.ErrInvalidArgument.New("database is required")
	}
	if strings.TrimSpace(path) == "" {
		return projerrors.ErrInvalidArgument.New("output path is required")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return projerrors.ErrIO.Wrap(err, filepath.Dir(path))
	}

	var buf bytes.Buffer
	if err := p.codec.Serialize(&buf, db, false); err != nil {
		return err
	}
	if err := helpers.WriteFileAtomic(path, buf.Bytes()); err != nil {
		return err
	}

	p.logger.Infof("Wrote output file %s", path)
	return nil
}

// GenerateOutputFileFromProject assembles the project at manifestPath and
// writes it as one document at path.
func (p *ProjectStorageEngine) GenerateOutputFileFromProject(manifestPath, path string) error {
	db, err := p.Assemble(manifestPath)
	if err != nil {
		return err
	}
	return p.GenerateOutputFile(db, path)
}

// LoadOutputFile reads a consolidated document back into a database.
func (p *ProjectStorageEngine) LoadOutputFile(path string) (*models.Database, error) {
	if !helpers.FileExists(path, p.logger) {
		return nil, projerrors.ErrNotFound.New(path)
	}

	db := p.factory.NewDatabase()
	if err := p.codec.DeserializeFile(path, db); err != nil {
		return nil, err
	}
	return db, nil
}
