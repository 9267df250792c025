package engine

import (
	"fmt"

	"ssashelper/src/models"
	"ssashelper/src/projerrors"
)

// PartitionReconciler moves partitions and aggregation designs between a cube
// and a partition cube holding nothing else. Cube files never carry them; the
// partitions file next to each cube does.
//
// Collections are always walked by index over a snapshot taken before the loop.
type PartitionReconciler struct {
	factory ObjectFactory
}

// NewPartitionReconciler returns a reconciler creating stand-ins with factory.
func NewPartitionReconciler(factory ObjectFactory) *PartitionReconciler {
	if factory == nil {
		factory = NewObjectFactory()
	}
	return &PartitionReconciler{factory: factory}
}

// Split returns a partition cube holding clones of the partitions and
// aggregation designs of base, in their original order. Measure groups that
// have neither are left out. base is not modified.
func (r *PartitionReconciler) Split(base *models.Cube) *models.Cube {
	result := r.factory.NewPartitionCube(base)
	if base == nil {
		return result
	}

	groups := append([]*models.MeasureGroup(nil), base.MeasureGroups...)
	for i := 0; i < len(groups); i++ {
		mg := groups[i]
		if len(mg.Partitions) == 0 && len(mg.AggregationDesigns) == 0 {
			continue
		}

		standIn := r.factory.NewMeasureGroupStandIn(mg)
		for j := 0; j < len(mg.Partitions); j++ {
			standIn.Partitions = append(standIn.Partitions, mg.Partitions[j].Clone())
		}
		for j := 0; j < len(mg.AggregationDesigns); j++ {
			standIn.AggregationDesigns = append(standIn.AggregationDesigns, mg.AggregationDesigns[j].Clone())
		}
		result.MeasureGroups = append(result.MeasureGroups, standIn)
	}

	return result
}

// Merge appends clones of every partition and aggregation design of
// partitionCube to the measure group of base with the same ID. Every ID is
// resolved before anything is appended, so a lookup failure leaves base as it was.
func (r *PartitionReconciler) Merge(base, partitionCube *models.Cube) error {
	if base == nil {
		return projerrors.ErrInvalidArgument.New("base cube is required")
	}
	if partitionCube == nil {
		return projerrors.ErrInvalidArgument.New(fmt.Sprintf("partition cube for %q is required", base.Name))
	}

	groups := append([]*models.MeasureGroup(nil), partitionCube.MeasureGroups...)
	targets := make([]*models.MeasureGroup, len(groups))
	for i := 0; i < len(groups); i++ {
		target := base.MeasureGroupByID(groups[i].ID)
		if target == nil {
			return projerrors.ErrLookup.New(groups[i].ID, base.Name)
		}
		targets[i] = target
	}

	for i := 0; i < len(groups); i++ {
		source, target := groups[i], targets[i]
		for j := 0; j < len(source.Partitions); j++ {
			target.Partitions = append(target.Partitions, source.Partitions[j].Clone())
		}
		for j := 0; j < len(source.AggregationDesigns); j++ {
			target.AggregationDesigns = append(target.AggregationDesigns, source.AggregationDesigns[j].Clone())
		}
	}

	return nil
}
