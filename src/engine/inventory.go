package engine

import (
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"ssashelper/src/codec"
	"ssashelper/src/helpers"
	"ssashelper/src/models"
	"ssashelper/src/projerrors"

	"github.com/beevik/etree"
	"golang.org/x/crypto/blake2b"
)

// InventoryEntry identifies one object and the digest of its content.
type InventoryEntry struct {
	ID     string `bson:"id"`
	Name   string `bson:"name"`
	Digest string `bson:"digest"`
}

type MeasureGroupInventory struct {
	ID                 string           `bson:"id"`
	Name               string           `bson:"name"`
	Partitions         []InventoryEntry `bson:"partitions"`
	AggregationDesigns []InventoryEntry `bson:"aggregationDesigns"`
}

type CubeInventory struct {
	InventoryEntry `bson:",inline"`
	MeasureGroups  []MeasureGroupInventory `bson:"measureGroups"`
}

// Inventory is a content summary of a database. Collections are sorted by ID
// so two inventories compare as sets.
type Inventory struct {
	CreatedAt        time.Time        `bson:"createdAt"`
	Database         InventoryEntry   `bson:"database"`
	DataSources      []InventoryEntry `bson:"dataSources"`
	DataSourceViews  []InventoryEntry `bson:"dataSourceViews"`
	Roles            []InventoryEntry `bson:"roles"`
	Dimensions       []InventoryEntry `bson:"dimensions"`
	MiningStructures []InventoryEntry `bson:"miningStructures"`
	Cubes            []CubeInventory  `bson:"cubes"`
}

// BuildInventory summarizes db. Cube digests leave out partitions and
// aggregation designs, which are listed per measure group instead.
func BuildInventory(db *models.Database) (*Inventory, error) {
	if db == nil {
		return nil, projerrors.ErrInvalidArgument.New("database is required")
	}
	b := inventoryBuilder{codec: codec.New(nil)}

	inv := &Inventory{CreatedAt: time.Now().UTC()}
	var err error
	if inv.Database, err = b.entry(db.Object, &models.Database{Object: db.Object}); err != nil {
		return nil, err
	}

	for _, o := range db.DataSources {
		if inv.DataSources, err = b.add(inv.DataSources, o.Object, o); err != nil {
			return nil, err
		}
	}
	for _, o := range db.DataSourceViews {
		if inv.DataSourceViews, err = b.add(inv.DataSourceViews, o.Object, o); err != nil {
			return nil, err
		}
	}
	for _, o := range db.Roles {
		if inv.Roles, err = b.add(inv.Roles, o.Object, o); err != nil {
			return nil, err
		}
	}
	for _, o := range db.Dimensions {
		if inv.Dimensions, err = b.add(inv.Dimensions, o.Object, o); err != nil {
			return nil, err
		}
	}
	for _, o := range db.MiningStructures {
		if inv.MiningStructures, err = b.add(inv.MiningStructures, o.Object, o); err != nil {
			return nil, err
		}
	}
	for _, cube := range db.Cubes {
		c, err := b.cube(cube)
		if err != nil {
			return nil, err
		}
		inv.Cubes = append(inv.Cubes, c)
	}

	for _, list := range [][]InventoryEntry{inv.DataSources, inv.DataSourceViews, inv.Roles, inv.Dimensions, inv.MiningStructures} {
		sortEntries(list)
	}
	sort.Slice(inv.Cubes, func(i, j int) bool { return inv.Cubes[i].ID < inv.Cubes[j].ID })
	return inv, nil
}

type inventoryBuilder struct {
	codec *codec.Codec
}

func (b inventoryBuilder) add(list []InventoryEntry, o models.Object, source interface{}) ([]InventoryEntry, error) {
	e, err := b.entry(o, source)
	if err != nil {
		return nil, err
	}
	return append(list, e), nil
}

func (b inventoryBuilder) entry(o models.Object, source interface{}) (InventoryEntry, error) {
	digest, err := b.digest(source)
	if err != nil {
		return InventoryEntry{}, err
	}
	return InventoryEntry{ID: o.ID, Name: o.Name, Digest: digest}, nil
}

func (b inventoryBuilder) cube(cube *models.Cube) (CubeInventory, error) {
	shell := cube.Clone()
	for _, mg := range shell.MeasureGroups {
		mg.Partitions = nil
		mg.AggregationDesigns = nil
	}

	entry, err := b.entry(cube.Object, shell)
	if err != nil {
		return CubeInventory{}, err
	}
	out := CubeInventory{InventoryEntry: entry}

	for _, mg := range cube.MeasureGroups {
		m := MeasureGroupInventory{ID: mg.ID, Name: mg.Name}
		for _, p := range mg.Partitions {
			if m.Partitions, err = b.add(m.Partitions, p.Object, p); err != nil {
				return CubeInventory{}, err
			}
		}
		for _, a := range mg.AggregationDesigns {
			if m.AggregationDesigns, err = b.add(m.AggregationDesigns, a.Object, a); err != nil {
				return CubeInventory{}, err
			}
		}
		sortEntries(m.Partitions)
		sortEntries(m.AggregationDesigns)
		out.MeasureGroups = append(out.MeasureGroups, m)
	}
	sort.Slice(out.MeasureGroups, func(i, j int) bool { return out.MeasureGroups[i].ID < out.MeasureGroups[j].ID })
	return out, nil
}

// digest hashes the indented rendering of source with every namespace
// declaration removed.
func (b inventoryBuilder) digest(source interface{}) (string, error) {
	root, err := b.codec.Element(source, false)
	if err != nil {
		return "", err
	}
	dropDeclarations(root)

	doc := etree.NewDocument()
	doc.SetRoot(root)
	helpers.IndentDocument(doc)
	data, err := doc.WriteToBytes()
	if err != nil {
		return "", err
	}

	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func dropDeclarations(e *etree.Element) {
	kept := e.Attr[:0]
	for _, a := range e.Attr {
		if a.Space == "xmlns" || (a.Space == "" && a.Key == "xmlns") {
			continue
		}
		kept = append(kept, a)
	}
	e.Attr = kept
	for _, c := range e.ChildElements() {
		dropDeclarations(c)
	}
}

func sortEntries(list []InventoryEntry) {
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
}

// WriteInventory stores inv as a BSON document at path.
func WriteInventory(inv *Inventory, path string) error {
	data, err := helpers.EncodeBSON(inv)
	if err != nil {
		return err
	}
	return helpers.WriteFileAtomic(path, data)
}

// ReadInventory loads an inventory written by WriteInventory.
func ReadInventory(path string) (*Inventory, error) {
	data, err := helpers.ReadDataFile(path)
	if err != nil {
		return nil, err
	}
	inv := &Inventory{}
	if err := helpers.DecodeBSON(data, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// Diff lists the differences between inv and other. Objects are matched by
// ID; the order of every collection is ignored.
func (inv *Inventory) Diff(other *Inventory) []string {
	var diffs []string
	diffs = append(diffs, diffEntries("database", []InventoryEntry{inv.Database}, []InventoryEntry{other.Database})...)
	diffs = append(diffs, diffEntries("data source", inv.DataSources, other.DataSources)...)
	diffs = append(diffs, diffEntries("data source view", inv.DataSourceViews, other.DataSourceViews)...)
	diffs = append(diffs, diffEntries("role", inv.Roles, other.Roles)...)
	diffs = append(diffs, diffEntries("dimension", inv.Dimensions, other.Dimensions)...)
	diffs = append(diffs, diffEntries("mining structure", inv.MiningStructures, other.MiningStructures)...)

	cubes := func(list []CubeInventory) []InventoryEntry {
		out := make([]InventoryEntry, 0, len(list))
		for _, c := range list {
			out = append(out, c.InventoryEntry)
		}
		return out
	}
	diffs = append(diffs, diffEntries("cube", cubes(inv.Cubes), cubes(other.Cubes))...)

	theirs := make(map[string]CubeInventory, len(other.Cubes))
	for _, c := range other.Cubes {
		theirs[c.ID] = c
	}
	for _, c := range inv.Cubes {
		if o, ok := theirs[c.ID]; ok {
			diffs = append(diffs, diffMeasureGroups(c, o)...)
		}
	}
	return diffs
}

func diffMeasureGroups(mine, theirs CubeInventory) []string {
	var diffs []string
	groups := make(map[string]MeasureGroupInventory, len(theirs.MeasureGroups))
	for _, mg := range theirs.MeasureGroups {
		groups[mg.ID] = mg
	}
	for _, mg := range mine.MeasureGroups {
		o, ok := groups[mg.ID]
		if !ok {
			diffs = append(diffs, fmt.Sprintf("measure group %q of cube %q: missing", mg.ID, mine.ID))
			continue
		}
		prefix := fmt.Sprintf("cube %q measure group %q ", mine.ID, mg.ID)
		diffs = append(diffs, diffEntries(prefix+"partition", mg.Partitions, o.Partitions)...)
		diffs = append(diffs, diffEntries(prefix+"aggregation design", mg.AggregationDesigns, o.AggregationDesigns)...)
		delete(groups, mg.ID)
	}
	for id := range groups {
		diffs = append(diffs, fmt.Sprintf("measure group %q of cube %q: unexpected", id, mine.ID))
	}
	sort.Strings(diffs)
	return diffs
}

func diffEntries(kind string, mine, theirs []InventoryEntry) []string {
	var diffs []string
	byID := make(map[string]InventoryEntry, len(theirs))
	for _, e := range theirs {
		byID[e.ID] = e
	}
	mineIDs := make([]string, 0, len(mine))
	for _, e := range mine {
		mineIDs = append(mineIDs, e.ID)
		o, ok := byID[e.ID]
		switch {
		case !ok:
			diffs = append(diffs, fmt.Sprintf("%s %q: missing", kind, e.ID))
		case o.Name != e.Name:
			diffs = append(diffs, fmt.Sprintf("%s %q: renamed %q to %q", kind, e.ID, e.Name, o.Name))
		case o.Digest != e.Digest:
			diffs = append(diffs, fmt.Sprintf("%s %q: content changed", kind, e.ID))
		}
	}

	known := helpers.NewSortedSet(mineIDs...)
	theirIDs := make([]string, 0, len(theirs))
	for _, e := range theirs {
		theirIDs = append(theirIDs, e.ID)
	}
	for _, id := range helpers.NewSortedSet(theirIDs...).Difference(known) {
		diffs = append(diffs, fmt.Sprintf("%s %q: unexpected", kind, id))
	}
	return diffs
}
