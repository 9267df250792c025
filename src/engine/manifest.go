package engine

import (
	"fmt"
	"path/filepath"
	"strings"

	"ssashelper/src/helpers"
	"ssashelper/src/projerrors"

	"github.com/beevik/etree"
	"github.com/clbanning/mxj/v2"
)

// Manifest element names for each category of project item.
const (
	manifestDataSources      = "DataSources"
	manifestDataSourceViews  = "DataSourceViews"
	manifestRoles            = "Roles"
	manifestDimensions       = "Dimensions"
	manifestMiningStructures = "MiningModels"
	manifestCubes            = "Cubes"
)

// CubeItem is one cube file and the partitions files it depends on.
type CubeItem struct {
	FullPath     string
	Dependencies []string
}

// Manifest is the categorized file index of a project, read from its project
// file. Paths are relative to Dir.
type Manifest struct {
	Path string
	Dir  string

	Database         string
	DataSources      []string
	DataSourceViews  []string
	Roles            []string
	Dimensions       []string
	MiningStructures []string
	Cubes            []CubeItem
}

// ReadManifest reads a project file.
func ReadManifest(path string) (*Manifest, error) {
	data, err := helpers.ReadDataFile(path)
	if err != nil {
		return nil, err
	}

	mv, err := mxj.NewMapXml(data)
	if err != nil {
		return nil, projerrors.ErrMalformed.New(path, err)
	}
	root, err := mv.Root()
	if err != nil {
		return nil, projerrors.ErrMalformed.New(path, err)
	}

	m := &Manifest{Path: path, Dir: filepath.Dir(path)}

	databases, err := stringValues(mv, root+".Database.FullPath")
	if err != nil {
		return nil, projerrors.ErrMalformed.New(path, err)
	}
	if len(databases) == 0 {
		return nil, projerrors.ErrMalformed.New(path, "no Database/FullPath entry")
	}
	m.Database = databases[0]

	lists := []struct {
		category string
		target   *[]string
	}{
		{manifestDataSources, &m.DataSources},
		{manifestDataSourceViews, &m.DataSourceViews},
		{manifestRoles, &m.Roles},
		{manifestDimensions, &m.Dimensions},
		{manifestMiningStructures, &m.MiningStructures},
	}
	for _, list := range lists {
		values, err := stringValues(mv, root+"."+list.category+".ProjectItem.FullPath")
		if err != nil {
			return nil, projerrors.ErrMalformed.New(path, err)
		}
		*list.target = values
	}

	items, err := mv.ValuesForPath(root + "." + manifestCubes + ".ProjectItem")
	if err != nil {
		return nil, projerrors.ErrMalformed.New(path, err)
	}
	for _, item := range items {
		fields, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		im := mxj.Map(fields)

		fullPath := strings.TrimSpace(im.ValueOrEmptyForPathString("FullPath"))
		if fullPath == "" {
			return nil, projerrors.ErrMalformed.New(path, "cube project item without FullPath")
		}
		deps, err := stringValues(im, "Dependencies.ProjectItem.FullPath")
		if err != nil {
			return nil, projerrors.ErrMalformed.New(path, err)
		}
		m.Cubes = append(m.Cubes, CubeItem{FullPath: fullPath, Dependencies: deps})
	}

	return m, nil
}

// stringValues returns the text of every element on path, in document order.
func stringValues(mv mxj.Map, path string) ([]string, error) {
	values, err := mv.ValuesForPath(path)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, v := range values {
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case map[string]interface{}:
			text, _ := t["#text"].(string)
			s = text
		default:
			s = fmt.Sprint(t)
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

// Resolve turns a manifest path into a path on disk. Backslash separated
// paths written on Windows are accepted.
func (m *Manifest) Resolve(rel string) string {
	rel = filepath.FromSlash(strings.ReplaceAll(rel, `\`, "/"))
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(m.Dir, rel)
}

// Files returns every file the manifest references, resolved, database first.
func (m *Manifest) Files() []string {
	files := []string{m.Resolve(m.Database)}
	for _, list := range [][]string{m.DataSources, m.DataSourceViews, m.Roles, m.Dimensions, m.MiningStructures} {
		for _, p := range list {
			files = append(files, m.Resolve(p))
		}
	}
	for _, c := range m.Cubes {
		files = append(files, m.Resolve(c.FullPath))
		for _, d := range c.Dependencies {
			files = append(files, m.Resolve(d))
		}
	}
	return files
}

// WriteManifest writes m as a project file at path.
func WriteManifest(m *Manifest, path string) error {
	if m == nil || m.Database == "" {
		return projerrors.ErrInvalidArgument.New("manifest without database entry")
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)
	project := doc.CreateElement("Project")
	project.CreateAttr("xmlns:xsd", helpers.XMLSchemaNamespace)
	project.CreateAttr("xmlns:xsi", helpers.XMLSchemaInstanceNamespace)
	project.CreateAttr("xmlns:ddl2", helpers.Engine2Namespace)
	project.CreateAttr("xmlns:ddl2_2", helpers.Engine2_2Namespace)
	project.CreateAttr("xmlns:ddl100_100", helpers.Engine100Namespace)
	project.CreateAttr("xmlns:dwd", helpers.DesignerNamespace)

	projectItem(project.CreateElement("Database"), m.Database)

	lists := []struct {
		category string
		paths    []string
	}{
		{manifestDataSources, m.DataSources},
		{manifestDataSourceViews, m.DataSourceViews},
		{manifestDimensions, m.Dimensions},
	}
	for _, list := range lists {
		category := project.CreateElement(list.category)
		for _, p := range list.paths {
			projectItem(category.CreateElement("ProjectItem"), p)
		}
	}

	cubes := project.CreateElement(manifestCubes)
	for _, c := range m.Cubes {
		item := cubes.CreateElement("ProjectItem")
		projectItem(item, c.FullPath)
		item.CreateElement("SubType").SetText("Code")
		deps := item.CreateElement("Dependencies")
		for _, d := range c.Dependencies {
			projectItem(deps.CreateElement("ProjectItem"), d)
		}
	}

	for _, list := range []struct {
		category string
		paths    []string
	}{
		{manifestMiningStructures, m.MiningStructures},
		{manifestRoles, m.Roles},
	} {
		category := project.CreateElement(list.category)
		for _, p := range list.paths {
			projectItem(category.CreateElement("ProjectItem"), p)
		}
	}

	return helpers.SaveDocument(doc, path)
}

func projectItem(e *etree.Element, path string) {
	e.CreateElement("Name").SetText(filepath.Base(path))
	e.CreateElement("FullPath").SetText(path)
}
