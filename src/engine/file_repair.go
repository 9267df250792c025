package engine

import (
	"bytes"
	"io"
	"strings"

	"ssashelper/src/helpers"
	"ssashelper/src/models"
	"ssashelper/src/projerrors"

	"github.com/beevik/etree"
	"go.uber.org/zap"
)

const (
	measureGroupIDQuery             = "/AS:Cube/AS:MeasureGroups/AS:MeasureGroup/AS:ID"
	measureGroupNameQuery           = "/AS:Cube/AS:MeasureGroups/AS:MeasureGroup/AS:Name"
	measureGroupStorageModeQuery    = "/AS:Cube/AS:MeasureGroups/AS:MeasureGroup/AS:StorageMode"
	measureGroupProcessingModeQuery = "/AS:Cube/AS:MeasureGroups/AS:MeasureGroup/AS:ProcessingMode"
	measureGroupPartitionsQuery     = "/AS:Cube/AS:MeasureGroups/AS:MeasureGroup/AS:Partitions"
	measureGroupAggregationsQuery   = "/AS:Cube/AS:MeasureGroups/AS:MeasureGroup/AS:AggregationDesigns"
)

// FileRepairer applies the structural fix-ups cube and partitions files need
// around serialization.
type FileRepairer struct {
	ns     *helpers.Namespaces
	logger *zap.SugaredLogger
}

// NewFileRepairer returns a repairer resolving queries with ns.
func NewFileRepairer(ns *helpers.Namespaces, logger *zap.SugaredLogger) *FileRepairer {
	if ns == nil {
		ns = helpers.NewNamespaces()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &FileRepairer{ns: ns, logger: logger}
}

// InjectPartitionNames gives every measure group ID in a partitions document
// a following Name resolved from base. Measure groups that already have a
// Name are left alone. It returns the number of names added.
func (f *FileRepairer) InjectPartitionNames(doc *etree.Document, base *models.Cube) (int, error) {
	if base == nil {
		return 0, projerrors.ErrInvalidArgument.New("base cube is required for name injection")
	}

	ids, err := f.ns.Select(&doc.Element, measureGroupIDQuery)
	if err != nil {
		return 0, err
	}

	injected := 0
	for i := 0; i < len(ids); i++ {
		idNode := ids[i]
		parent := idNode.Parent()
		if helpers.NodeExists(parent, "Name") {
			continue
		}

		id := strings.TrimSpace(idNode.Text())
		mg := base.MeasureGroupByID(id)
		if mg == nil {
			return injected, projerrors.ErrLookup.New(id, base.Name)
		}

		tag := "Name"
		if idNode.Space != "" {
			tag = idNode.Space + ":" + tag
		}
		name := etree.NewElement(tag)
		name.SetText(mg.Name)
		parent.InsertChildAt(idNode.Index()+1, name)
		injected++
	}

	return injected, nil
}

// FixPartitionsFileForDeserialize loads a partitions file, injects the measure
// group names from base and returns the enriched document as a reader. The
// file itself is not modified.
func (f *FileRepairer) FixPartitionsFileForDeserialize(path string, base *models.Cube) (io.Reader, error) {
	doc, err := helpers.LoadDocument(path)
	if err != nil {
		return nil, err
	}

	injected, err := f.InjectPartitionNames(doc, base)
	if err != nil {
		return nil, err
	}
	f.logger.Debugf("Injected %d measure group names into %s", injected, path)

	data, err := doc.WriteToBytes()
	if err != nil {
		return nil, projerrors.ErrIO.Wrap(err, path)
	}
	return bytes.NewReader(data), nil
}

// StripPartitionsArtifacts removes the measure group Name, StorageMode and
// ProcessingMode nodes written into a partitions document.
func (f *FileRepairer) StripPartitionsArtifacts(doc *etree.Document) (int, error) {
	return f.removeAll(doc, measureGroupNameQuery, measureGroupStorageModeQuery, measureGroupProcessingModeQuery)
}

// StripCubeArtifacts removes the Partitions and AggregationDesigns subtrees
// written into a cube document.
func (f *FileRepairer) StripCubeArtifacts(doc *etree.Document) (int, error) {
	return f.removeAll(doc, measureGroupPartitionsQuery, measureGroupAggregationsQuery)
}

// FixSerializedPartitionsFile strips a freshly written partitions file in place.
func (f *FileRepairer) FixSerializedPartitionsFile(path string) error {
	return f.rewrite(path, f.StripPartitionsArtifacts)
}

// FixSerializedCubeFile strips a freshly written cube file in place.
func (f *FileRepairer) FixSerializedCubeFile(path string) error {
	return f.rewrite(path, f.StripCubeArtifacts)
}

func (f *FileRepairer) removeAll(doc *etree.Document, queries ...string) (int, error) {
	removed := 0
	for _, query := range queries {
		nodes, err := f.ns.Select(&doc.Element, query)
		if err != nil {
			return removed, err
		}
		removed += helpers.RemoveNodes(nodes)
	}
	return removed, nil
}

func (f *FileRepairer) rewrite(path string, strip func(*etree.Document) (int, error)) error {
	doc, err := helpers.LoadDocument(path)
	if err != nil {
		return err
	}

	removed, err := strip(doc)
	if err != nil {
		return err
	}
	f.logger.Debugf("Removed %d nodes from %s", removed, path)

	return helpers.SaveDocument(doc, path)
}
