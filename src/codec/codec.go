// Package codec reads and writes project objects as XML documents.
//
// Only identity and the collections the reconciler works on are typed; all
// other content is carried through untouched. The writer always emits a
// measure group's StorageMode and ProcessingMode and writes partitions and
// aggregation designs wherever a measure group holds them, so cube and
// partitions files need the repair passes in package engine.
package codec

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"ssashelper/src/helpers"
	"ssashelper/src/models"
	"ssashelper/src/projerrors"

	"github.com/beevik/etree"
)

// Element names of the object documents.
const (
	TagDatabase          = "Database"
	TagDataSource        = "DataSource"
	TagDataSourceView    = "DataSourceView"
	TagRole              = "Role"
	TagDimension         = "Dimension"
	TagMiningStructure   = "MiningStructure"
	TagCube              = "Cube"
	TagMeasureGroup      = "MeasureGroup"
	TagPartition         = "Partition"
	TagAggregationDesign = "AggregationDesign"

	tagID                 = "ID"
	tagName               = "Name"
	tagStorageMode        = "StorageMode"
	tagProcessingMode     = "ProcessingMode"
	tagMeasureGroups      = "MeasureGroups"
	tagPartitions         = "Partitions"
	tagAggregationDesigns = "AggregationDesigns"
	tagDataSources        = "DataSources"
	tagDataSourceViews    = "DataSourceViews"
	tagRoles              = "Roles"
	tagDimensions         = "Dimensions"
	tagMiningStructures   = "MiningStructures"
	tagCubes              = "Cubes"
)

// Codec converts between object models and XML documents.
type Codec struct {
	ns *helpers.Namespaces
}

// New returns a codec declaring the namespaces of ns on every document root.
func New(ns *helpers.Namespaces) *Codec {
	if ns == nil {
		ns = helpers.NewNamespaces()
	}
	return &Codec{ns: ns}
}

// Deserialize populates target from one XML document. target must be a
// pointer to one of the major object types or to models.Cube.
func (c *Codec) Deserialize(r io.Reader, target interface{}) error {
	return c.deserialize(r, target, "document")
}

// DeserializeFile populates target from the XML file at path.
func (c *Codec) DeserializeFile(path string, target interface{}) error {
	data, err := helpers.ReadDataFile(path)
	if err != nil {
		return err
	}
	return c.deserialize(bytes.NewReader(data), target, path)
}

func (c *Codec) deserialize(r io.Reader, target interface{}, source string) error {
	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return projerrors.ErrMalformed.New(source, err)
	}
	root := doc.Root()
	if root == nil {
		return projerrors.ErrMalformed.New(source, "no root element")
	}

	d := decoder{source: source}
	switch t := target.(type) {
	case *models.Database:
		return d.database(root, t)
	case *models.DataSource:
		return d.object(root, TagDataSource, &t.Object, nil)
	case *models.DataSourceView:
		return d.object(root, TagDataSourceView, &t.Object, nil)
	case *models.Role:
		return d.object(root, TagRole, &t.Object, nil)
	case *models.Dimension:
		return d.object(root, TagDimension, &t.Object, nil)
	case *models.MiningStructure:
		return d.object(root, TagMiningStructure, &t.Object, nil)
	case *models.Cube:
		return d.cube(root, t)
	default:
		return projerrors.ErrInvalidArgument.New(fmt.Sprintf("cannot deserialize into %T", target))
	}
}

// Serialize writes source as a standalone XML document. includeDefaults also
// writes empty collections.
func (c *Codec) Serialize(w io.Writer, source interface{}, includeDefaults bool) error {
	root, err := c.Element(source, includeDefaults)
	if err != nil {
		return err
	}
	c.declareNamespaces(root)

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)
	doc.SetRoot(root)
	helpers.IndentDocument(doc)

	if _, err := doc.WriteTo(w); err != nil {
		return projerrors.ErrIO.Wrap(err, "serialized document")
	}
	return nil
}

// SerializeFile writes source to path, replacing any existing file.
func (c *Codec) SerializeFile(path string, source interface{}, includeDefaults bool) error {
	return helpers.WriteAtomic(path, func(w io.Writer) error {
		return c.Serialize(w, source, includeDefaults)
	})
}

// Element renders source as a detached element without namespace declarations.
func (c *Codec) Element(source interface{}, includeDefaults bool) (*etree.Element, error) {
	e := encoder{ns: c.ns, includeDefaults: includeDefaults}
	switch s := source.(type) {
	case *models.Database:
		return e.database(s), nil
	case *models.DataSource:
		return e.object(TagDataSource, &s.Object, nil, false), nil
	case *models.DataSourceView:
		return e.object(TagDataSourceView, &s.Object, nil, false), nil
	case *models.Role:
		return e.object(TagRole, &s.Object, nil, false), nil
	case *models.Dimension:
		return e.object(TagDimension, &s.Object, nil, false), nil
	case *models.MiningStructure:
		return e.object(TagMiningStructure, &s.Object, nil, false), nil
	case *models.Cube:
		return e.cube(s, false), nil
	case *models.MeasureGroup:
		return e.measureGroup(s), nil
	case *models.Partition:
		return e.object(TagPartition, &s.Object, nil, true), nil
	case *models.AggregationDesign:
		return e.object(TagAggregationDesign, &s.Object, nil, true), nil
	default:
		return nil, projerrors.ErrInvalidArgument.New(fmt.Sprintf("cannot serialize %T", source))
	}
}

// declareNamespaces makes root carry the fixed prefix declarations and the
// engine default namespace. Declarations the root already has keep their place.
func (c *Codec) declareNamespaces(root *etree.Element) {
	existing := root.Attr
	root.Attr = nil

	declared := false
	for _, a := range existing {
		if a.Space == "xmlns" || (a.Space == "" && a.Key == "xmlns") {
			declared = true
			break
		}
	}

	if declared {
		for _, a := range existing {
			root.CreateAttr(a.FullKey(), a.Value)
		}
		for _, d := range c.ns.RootDeclarations() {
			if root.SelectAttr("xmlns:"+d.Prefix) == nil {
				root.CreateAttr("xmlns:"+d.Prefix, d.URI)
			}
		}
		if root.SelectAttr("xmlns") == nil {
			root.CreateAttr("xmlns", helpers.EngineNamespace)
		}
		return
	}

	for _, d := range c.ns.RootDeclarations() {
		root.CreateAttr("xmlns:"+d.Prefix, d.URI)
	}
	for _, a := range existing {
		root.CreateAttr(a.FullKey(), a.Value)
	}
	root.CreateAttr("xmlns", helpers.EngineNamespace)
}

type decoder struct {
	source string
}

func (d decoder) malformed(format string, args ...interface{}) error {
	return projerrors.ErrMalformed.New(d.source, fmt.Sprintf(format, args...))
}

// object reads identity from e into obj and keeps everything else as the body.
// Children named in typed are handed to their reader and replaced by a marker.
func (d decoder) object(e *etree.Element, tag string, obj *models.Object, typed map[string]func(*etree.Element) error) error {
	if e.Tag != tag {
		return d.malformed("expected <%s>, found <%s>", tag, e.FullTag())
	}

	body := e.Copy()
	children := body.ChildElements()
	for i := 0; i < len(children); i++ {
		child := children[i]
		switch child.Tag {
		case tagID:
			obj.ID = strings.TrimSpace(child.Text())
			body.RemoveChild(child)
			continue
		case tagName:
			obj.Name = strings.TrimSpace(child.Text())
			body.RemoveChild(child)
			continue
		}

		read, ok := typed[child.Tag]
		if !ok {
			continue
		}
		if err := read(child); err != nil {
			return err
		}
		index := child.Index()
		body.RemoveChildAt(index)
		body.InsertChildAt(index, etree.NewElement(child.FullTag()))
	}

	obj.Body = body
	return nil
}

// each calls read for every child element of e named tag.
func each(e *etree.Element, tag string, read func(*etree.Element) error) error {
	for _, child := range e.SelectElements(tag) {
		if err := read(child); err != nil {
			return err
		}
	}
	return nil
}

func (d decoder) database(e *etree.Element, db *models.Database) error {
	typed := map[string]func(*etree.Element) error{
		tagDataSources: func(c *etree.Element) error {
			return each(c, TagDataSource, func(x *etree.Element) error {
				o := &models.DataSource{}
				db.DataSources = append(db.DataSources, o)
				return d.object(x, TagDataSource, &o.Object, nil)
			})
		},
		tagDataSourceViews: func(c *etree.Element) error {
			return each(c, TagDataSourceView, func(x *etree.Element) error {
				o := &models.DataSourceView{}
				db.DataSourceViews = append(db.DataSourceViews, o)
				return d.object(x, TagDataSourceView, &o.Object, nil)
			})
		},
		tagRoles: func(c *etree.Element) error {
			return each(c, TagRole, func(x *etree.Element) error {
				o := &models.Role{}
				db.Roles = append(db.Roles, o)
				return d.object(x, TagRole, &o.Object, nil)
			})
		},
		tagDimensions: func(c *etree.Element) error {
			return each(c, TagDimension, func(x *etree.Element) error {
				o := &models.Dimension{}
				db.Dimensions = append(db.Dimensions, o)
				return d.object(x, TagDimension, &o.Object, nil)
			})
		},
		tagMiningStructures: func(c *etree.Element) error {
			return each(c, TagMiningStructure, func(x *etree.Element) error {
				o := &models.MiningStructure{}
				db.MiningStructures = append(db.MiningStructures, o)
				return d.object(x, TagMiningStructure, &o.Object, nil)
			})
		},
		tagCubes: func(c *etree.Element) error {
			return each(c, TagCube, func(x *etree.Element) error {
				o := &models.Cube{}
				db.Cubes = append(db.Cubes, o)
				return d.cube(x, o)
			})
		},
	}
	return d.object(e, TagDatabase, &db.Object, typed)
}

func (d decoder) cube(e *etree.Element, cube *models.Cube) error {
	typed := map[string]func(*etree.Element) error{
		tagMeasureGroups: func(c *etree.Element) error {
			return each(c, TagMeasureGroup, func(x *etree.Element) error {
				mg := &models.MeasureGroup{}
				cube.MeasureGroups = append(cube.MeasureGroups, mg)
				return d.measureGroup(x, mg)
			})
		},
	}
	return d.object(e, TagCube, &cube.Object, typed)
}

func (d decoder) measureGroup(e *etree.Element, mg *models.MeasureGroup) error {
	typed := map[string]func(*etree.Element) error{
		tagStorageMode: func(c *etree.Element) error {
			mg.StorageMode = strings.TrimSpace(c.Text())
			return nil
		},
		tagProcessingMode: func(c *etree.Element) error {
			mg.ProcessingMode = strings.TrimSpace(c.Text())
			return nil
		},
		tagPartitions: func(c *etree.Element) error {
			return each(c, TagPartition, func(x *etree.Element) error {
				p := &models.Partition{}
				if err := d.object(x, TagPartition, &p.Object, nil); err != nil {
					return err
				}
				if p.ID == "" {
					return d.malformed("partition without ID in measure group %q", mg.ID)
				}
				mg.Partitions = append(mg.Partitions, p)
				return nil
			})
		},
		tagAggregationDesigns: func(c *etree.Element) error {
			return each(c, TagAggregationDesign, func(x *etree.Element) error {
				a := &models.AggregationDesign{}
				if err := d.object(x, TagAggregationDesign, &a.Object, nil); err != nil {
					return err
				}
				if a.ID == "" {
					return d.malformed("aggregation design without ID in measure group %q", mg.ID)
				}
				mg.AggregationDesigns = append(mg.AggregationDesigns, a)
				return nil
			})
		},
	}
	if err := d.object(e, TagMeasureGroup, &mg.Object, typed); err != nil {
		return err
	}

	if mg.ID == "" {
		return d.malformed("measure group without ID")
	}
	if mg.Name == "" {
		return d.malformed("measure group %q has no Name", mg.ID)
	}
	if mg.StorageMode == "" {
		mg.StorageMode = models.DefaultStorageMode
	}
	if mg.ProcessingMode == "" {
		mg.ProcessingMode = models.DefaultProcessingMode
	}
	return nil
}

type encoder struct {
	ns              *helpers.Namespaces
	includeDefaults bool
}

// slot writes one typed child into parent.
type slot struct {
	tag  string
	fill func(parent *etree.Element)
}

// object writes identity, then the body with typed slots expanded at their
// markers. Slots without a marker are appended in the given order. Nested
// objects drop namespace declarations the document root already makes.
func (e encoder) object(tag string, obj *models.Object, slots []slot, nested bool) *etree.Element {
	out := etree.NewElement(tag)
	if obj.Body != nil {
		for _, a := range obj.Body.Attr {
			if nested && e.redundantDeclaration(a) {
				continue
			}
			out.CreateAttr(a.FullKey(), a.Value)
		}
	}

	if obj.ID != "" {
		out.CreateElement(tagID).SetText(obj.ID)
	}
	if obj.Name != "" {
		out.CreateElement(tagName).SetText(obj.Name)
	}

	emitted := make(map[string]bool, len(slots))
	fill := func(tag string) bool {
		for _, s := range slots {
			if s.tag == tag {
				if !emitted[tag] {
					s.fill(out)
					emitted[tag] = true
				}
				return true
			}
		}
		return false
	}

	if obj.Body != nil {
		for _, token := range obj.Body.Child {
			switch t := token.(type) {
			case *etree.Element:
				if fill(t.Tag) {
					continue
				}
				out.AddChild(t.Copy())
			case *etree.CharData:
				switch {
				case t.IsWhitespace():
				case t.IsCData():
					out.CreateCData(t.Data)
				default:
					out.CreateText(t.Data)
				}
			case *etree.Comment:
				out.CreateComment(t.Data)
			}
		}
	}

	for _, s := range slots {
		fill(s.tag)
	}
	return out
}

func (e encoder) redundantDeclaration(a etree.Attr) bool {
	if a.Space == "" && a.Key == "xmlns" {
		return a.Value == helpers.EngineNamespace
	}
	if a.Space != "xmlns" {
		return false
	}
	uri, ok := e.ns.URI(a.Key)
	if !ok {
		return false
	}
	for _, d := range e.ns.RootDeclarations() {
		if d.Prefix == a.Key {
			return uri == a.Value
		}
	}
	return false
}

// collection writes <tag> holding items when there are any, or always when
// defaults are included.
func (e encoder) collection(parent *etree.Element, tag string, count int, item func(i int) *etree.Element) {
	if count == 0 && !e.includeDefaults {
		return
	}
	c := parent.CreateElement(tag)
	for i := 0; i < count; i++ {
		c.AddChild(item(i))
	}
}

func (e encoder) database(db *models.Database) *etree.Element {
	slots := []slot{
		{tagDimensions, func(p *etree.Element) {
			e.collection(p, tagDimensions, len(db.Dimensions), func(i int) *etree.Element {
				return e.object(TagDimension, &db.Dimensions[i].Object, nil, true)
			})
		}},
		{tagCubes, func(p *etree.Element) {
			e.collection(p, tagCubes, len(db.Cubes), func(i int) *etree.Element {
				return e.cube(db.Cubes[i], true)
			})
		}},
		{tagMiningStructures, func(p *etree.Element) {
			e.collection(p, tagMiningStructures, len(db.MiningStructures), func(i int) *etree.Element {
				return e.object(TagMiningStructure, &db.MiningStructures[i].Object, nil, true)
			})
		}},
		{tagRoles, func(p *etree.Element) {
			e.collection(p, tagRoles, len(db.Roles), func(i int) *etree.Element {
				return e.object(TagRole, &db.Roles[i].Object, nil, true)
			})
		}},
		{tagDataSources, func(p *etree.Element) {
			e.collection(p, tagDataSources, len(db.DataSources), func(i int) *etree.Element {
				return e.object(TagDataSource, &db.DataSources[i].Object, nil, true)
			})
		}},
		{tagDataSourceViews, func(p *etree.Element) {
			e.collection(p, tagDataSourceViews, len(db.DataSourceViews), func(i int) *etree.Element {
				return e.object(TagDataSourceView, &db.DataSourceViews[i].Object, nil, true)
			})
		}},
	}
	return e.object(TagDatabase, &db.Object, slots, false)
}

func (e encoder) cube(cube *models.Cube, nested bool) *etree.Element {
	slots := []slot{
		{tagMeasureGroups, func(p *etree.Element) {
			e.collection(p, tagMeasureGroups, len(cube.MeasureGroups), func(i int) *etree.Element {
				return e.measureGroup(cube.MeasureGroups[i])
			})
		}},
	}
	return e.object(TagCube, &cube.Object, slots, nested)
}

func (e encoder) measureGroup(mg *models.MeasureGroup) *etree.Element {
	mode := func(tag, value, fallback string) func(p *etree.Element) {
		return func(p *etree.Element) {
			if value == "" {
				value = fallback
			}
			p.CreateElement(tag).SetText(value)
		}
	}

	slots := []slot{
		{tagStorageMode, mode(tagStorageMode, mg.StorageMode, models.DefaultStorageMode)},
		{tagProcessingMode, mode(tagProcessingMode, mg.ProcessingMode, models.DefaultProcessingMode)},
		{tagPartitions, func(p *etree.Element) {
			e.collection(p, tagPartitions, len(mg.Partitions), func(i int) *etree.Element {
				return e.object(TagPartition, &mg.Partitions[i].Object, nil, true)
			})
		}},
		{tagAggregationDesigns, func(p *etree.Element) {
			e.collection(p, tagAggregationDesigns, len(mg.AggregationDesigns), func(i int) *etree.Element {
				return e.object(TagAggregationDesign, &mg.AggregationDesigns[i].Object, nil, true)
			})
		}},
	}
	return e.object(TagMeasureGroup, &mg.Object, slots, true)
}
