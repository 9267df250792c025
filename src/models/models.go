package models

import (
	"github.com/beevik/etree"
)

// Default measure group modes filled in when a document leaves them out.
const (
	DefaultStorageMode    = "Molap"
	DefaultProcessingMode = "Regular"
)

// Object is the identity and opaque content shared by every object in a project.
type Object struct {
	// ID is the stable synthetic identifier.
	ID string

	// Name is the display name, also used as the file name on disassembly.
	Name string

	// Body holds the attributes and child elements the model does not type,
	// in document order. Typed children leave an empty marker element behind
	// so they are written back in the same position.
	Body *etree.Element
}

func (o Object) clone() Object {
	c := Object{ID: o.ID, Name: o.Name}
	if o.Body != nil {
		c.Body = o.Body.Copy()
	}
	return c
}

type Database struct {
	Object

	DataSources      []*DataSource
	DataSourceViews  []*DataSourceView
	Roles            []*Role
	Dimensions       []*Dimension
	MiningStructures []*MiningStructure
	Cubes            []*Cube
}

type DataSource struct {
	Object
}

type DataSourceView struct {
	Object
}

type Role struct {
	Object
}

type Dimension struct {
	Object
}

type MiningStructure struct {
	Object
}

type Cube struct {
	Object

	MeasureGroups []*MeasureGroup
}

type MeasureGroup struct {
	Object

	StorageMode    string
	ProcessingMode string

	Partitions         []*Partition
	AggregationDesigns []*AggregationDesign
}

// Partition is relocated between trees without being interpreted beyond its identity.
type Partition struct {
	Object
}

// AggregationDesign is relocated between trees without being interpreted beyond its identity.
type AggregationDesign struct {
	Object
}

// NewMeasureGroup returns an empty measure group carrying only an identity.
func NewMeasureGroup(name, id string) *MeasureGroup {
	return &MeasureGroup{
		Object:         Object{ID: id, Name: name},
		StorageMode:    DefaultStorageMode,
		ProcessingMode: DefaultProcessingMode,
	}
}

func (d *DataSource) Clone() *DataSource { return &DataSource{d.clone()} }
func (d *DataSourceView) Clone() *DataSourceView { return &DataSourceView{d.clone()} }
func (r *Role) Clone() *Role { return &Role{r.clone()} }
func (d *Dimension) Clone() *Dimension { return &Dimension{d.clone()} }
func (m *MiningStructure) Clone() *MiningStructure { return &MiningStructure{m.clone()} }
func (p *Partition) Clone() *Partition { return &Partition{p.clone()} }

func (a *AggregationDesign) Clone() *AggregationDesign {
	return &AggregationDesign{a.clone()}
}

// Clone deep copies the measure group with its partitions and aggregation designs.
func (m *MeasureGroup) Clone() *MeasureGroup {
	c := &MeasureGroup{
		Object:         m.clone(),
		StorageMode:    m.StorageMode,
		ProcessingMode: m.ProcessingMode,
	}
	for i := 0; i < len(m.Partitions); i++ {
		c.Partitions = append(c.Partitions, m.Partitions[i].Clone())
	}
	for i := 0; i < len(m.AggregationDesigns); i++ {
		c.AggregationDesigns = append(c.AggregationDesigns, m.AggregationDesigns[i].Clone())
	}
	return c
}

// Clone deep copies the cube.
func (c *Cube) Clone() *Cube {
	out := &Cube{Object: c.clone()}
	for i := 0; i < len(c.MeasureGroups); i++ {
		out.MeasureGroups = append(out.MeasureGroups, c.MeasureGroups[i].Clone())
	}
	return out
}

// MeasureGroupByID returns the measure group with the given ID, or nil.
func (c *Cube) MeasureGroupByID(id string) *MeasureGroup {
	for i := 0; i < len(c.MeasureGroups); i++ {
		if c.MeasureGroups[i].ID == id {
			return c.MeasureGroups[i]
		}
	}
	return nil
}

// Clone deep copies the database and everything it owns.
func (d *Database) Clone() *Database {
	out := &Database{Object: d.clone()}
	for _, o := range d.DataSources {
		out.DataSources = append(out.DataSources, o.Clone())
	}
	for _, o := range d.DataSourceViews {
		out.DataSourceViews = append(out.DataSourceViews, o.Clone())
	}
	for _, o := range d.Roles {
		out.Roles = append(out.Roles, o.Clone())
	}
	for _, o := range d.Dimensions {
		out.Dimensions = append(out.Dimensions, o.Clone())
	}
	for _, o := range d.MiningStructures {
		out.MiningStructures = append(out.MiningStructures, o.Clone())
	}
	for _, o := range d.Cubes {
		out.Cubes = append(out.Cubes, o.Clone())
	}
	return out
}
