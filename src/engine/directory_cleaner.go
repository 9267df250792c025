package engine

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ssashelper/src/helpers"
	"ssashelper/src/projerrors"
	"ssashelper/src/settings"

	"github.com/beevik/etree"
	"go.uber.org/zap"
)

// Volatile elements removed from every cleaned file.
var volatileQueries = []string{
	"//AS:CreatedTimestamp",
	"//AS:LastSchemaUpdate",
	"//AS:LastProcessed",
	"//AS:State",
	"//AS:CurrentStorageMode",
}

const (
	annotationsQuery = "//AS:Annotations"

	designTimeNameAttr = "design-time-name"
	designerNameQuery  = "//@dwd:design-time-name/.."
	msPropNameQuery    = "//@msprop:design-time-name/.."

	backupTimeLayout = "200601021504"
)

// CleanOptions selects the files a clean run looks at and what it removes.
type CleanOptions struct {
	Patterns                   []string
	Recursive                  bool
	RemoveDesignTimeNames      bool
	RemoveDimensionAnnotations bool
	MakeBackup                 bool
}

// CleanResult counts the files a clean run inspected, found writable and rewrote.
type CleanResult struct {
	Inspected int
	Eligible  int
	Altered   int
}

// DefaultCleanOptions returns the options CleanDefaults uses.
func DefaultCleanOptions() CleanOptions {
	patterns, _ := settings.ParsePatterns("")
	return CleanOptions{
		Patterns:   patterns,
		MakeBackup: true,
	}
}

// DirectoryCleaner strips volatile metadata from project files in place.
type DirectoryCleaner struct {
	ns     *helpers.Namespaces
	logger *zap.SugaredLogger
	now    func() time.Time
}

func NewDirectoryCleaner(ns *helpers.Namespaces, logger *zap.SugaredLogger) *DirectoryCleaner {
	if ns == nil {
		ns = helpers.NewNamespaces()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &DirectoryCleaner{ns: ns, logger: logger, now: time.Now}
}

// CleanDefaults cleans the top level of dir with the default options.
func (c *DirectoryCleaner) CleanDefaults(dir string) (CleanResult, error) {
	return c.Clean(dir, DefaultCleanOptions())
}

// Clean processes every file under dir matching opts.Patterns. Read-only files
// are counted as inspected and skipped. The first failing file ends the run.
func (c *DirectoryCleaner) Clean(dir string, opts CleanOptions) (CleanResult, error) {
	var result CleanResult

	if strings.TrimSpace(dir) == "" || !helpers.DirExists(dir) {
		return result, projerrors.ErrInvalidArgument.New(fmt.Sprintf("%q is not a directory", dir))
	}
	if len(opts.Patterns) == 0 {
		opts.Patterns = DefaultCleanOptions().Patterns
	}

	files, err := c.collect(dir, opts)
	if err != nil {
		return result, err
	}

	for _, file := range files {
		result.Inspected++

		readOnly, err := helpers.IsReadOnly(file)
		if err != nil {
			return result, err
		}
		if readOnly {
			c.logger.Infof("Skipping read-only file %s", file)
			continue
		}
		result.Eligible++

		altered, err := c.cleanFile(file, opts)
		if err != nil {
			return result, err
		}
		if altered {
			result.Altered++
		}
	}

	c.logger.Infof("Cleaned %s: %d inspected, %d eligible, %d altered", dir, result.Inspected, result.Eligible, result.Altered)
	return result, nil
}

// collect lists the matching files in pattern order. A file matching several
// patterns is listed once.
func (c *DirectoryCleaner) collect(dir string, opts CleanOptions) ([]string, error) {
	var candidates []string
	if opts.Recursive {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.Type().IsRegular() {
				candidates = append(candidates, path)
			}
			return nil
		})
		if err != nil {
			return nil, projerrors.ErrIO.Wrap(err, dir)
		}
	} else {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, projerrors.ErrIO.Wrap(err, dir)
		}
		for _, entry := range entries {
			if entry.Type().IsRegular() {
				candidates = append(candidates, filepath.Join(dir, entry.Name()))
			}
		}
	}

	seen := make(map[string]bool, len(candidates))
	var files []string
	for _, pattern := range opts.Patterns {
		for _, path := range candidates {
			if seen[path] {
				continue
			}
			if ok, _ := filepath.Match(pattern, filepath.Base(path)); ok {
				seen[path] = true
				files = append(files, path)
			}
		}
	}
	return files, nil
}

// cleanFile removes the volatile content of one file and reports whether it
// was rewritten.
func (c *DirectoryCleaner) cleanFile(path string, opts CleanOptions) (bool, error) {
	doc, err := helpers.LoadDocument(path)
	if err != nil {
		return false, err
	}

	removed, err := c.strip(doc, path, opts)
	if err != nil {
		return false, err
	}
	if removed == 0 {
		c.logger.Debugf("Nothing to clean in %s", path)
		return false, nil
	}

	if opts.MakeBackup {
		backup := BackupName(path, c.now())
		if _, err := os.Stat(backup); err == nil {
			return false, projerrors.ErrIO.Wrap(fmt.Errorf("backup %s already exists", backup), path)
		}
		if err := helpers.CopyFile(path, backup); err != nil {
			return false, err
		}
		c.logger.Debugf("Backed up %s to %s", path, backup)
	}

	if err := helpers.SaveDocument(doc, path); err != nil {
		return false, err
	}
	c.logger.Debugf("Removed %d nodes from %s", removed, path)
	return true, nil
}

func (c *DirectoryCleaner) strip(doc *etree.Document, path string, opts CleanOptions) (int, error) {
	removed := 0
	for _, query := range volatileQueries {
		nodes, err := c.ns.Select(&doc.Element, query)
		if err != nil {
			return removed, err
		}
		removed += helpers.RemoveNodes(nodes)
	}

	if opts.RemoveDimensionAnnotations || !strings.EqualFold(filepath.Ext(path), ExtDimension) {
		nodes, err := c.ns.Select(&doc.Element, annotationsQuery)
		if err != nil {
			return removed, err
		}
		removed += helpers.RemoveNodes(nodes)
	}

	if opts.RemoveDesignTimeNames {
		for _, query := range []string{designerNameQuery, msPropNameQuery} {
			nodes, err := c.ns.Select(&doc.Element, query)
			if err != nil {
				return removed, err
			}
			removed += removeDesignTimeNames(nodes)
		}
	}

	return removed, nil
}

// removeDesignTimeNames drops every prefixed design-time-name attribute from
// nodes and returns how many were removed.
func removeDesignTimeNames(nodes []*etree.Element) int {
	removed := 0
	for _, node := range nodes {
		for _, a := range append([]etree.Attr(nil), node.Attr...) {
			if a.Key != designTimeNameAttr || a.Space == "" {
				continue
			}
			if uri := helpers.ResolvePrefix(node, a.Space); uri == helpers.DesignerNamespace || uri == helpers.MsPropNamespace {
				helpers.RemoveAttributes([]*etree.Element{node}, a.FullKey())
				removed++
			}
		}
	}
	return removed
}

// BackupName returns the backup file name for path taken at t.
func BackupName(path string, t time.Time) string {
	return fmt.Sprintf("%s.%s.bak", path, t.Format(backupTimeLayout))
}
