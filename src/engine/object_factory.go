package engine

import (
	"ssashelper/src/models"
)

// ObjectFactory creates the model objects the assembler and the reconciler fill in.
type ObjectFactory interface {
	NewDatabase() *models.Database
	NewCube() *models.Cube

	// NewPartitionCube returns an empty cube carrying the identity of base.
	NewPartitionCube(base *models.Cube) *models.Cube

	// NewMeasureGroupStandIn returns an empty measure group carrying the
	// identity of source.
	NewMeasureGroupStandIn(source *models.MeasureGroup) *models.MeasureGroup
}

// ObjectFactoryImpl is a concrete implementation of ObjectFactory
type ObjectFactoryImpl struct{}

// NewObjectFactory creates a new instance of ObjectFactory
func NewObjectFactory() ObjectFactory {
	return &ObjectFactoryImpl{}
}

func (f *ObjectFactoryImpl) NewDatabase() *models.Database {
	return &models.Database{}
}

func (f *ObjectFactoryImpl) NewCube() *models.Cube {
	return &models.Cube{}
}

func (f *ObjectFactoryImpl) NewPartitionCube(base *models.Cube) *models.Cube {
	if base == nil {
		return &models.Cube{}
	}
	return &models.Cube{Object: models.Object{ID: base.ID, Name: base.Name}}
}

func (f *ObjectFactoryImpl) NewMeasureGroupStandIn(source *models.MeasureGroup) *models.MeasureGroup {
	return models.NewMeasureGroup(source.Name, source.ID)
}
