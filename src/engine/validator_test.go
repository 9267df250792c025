package engine

import (
	"fmt"
	"testing"

	"ssashelper/src/models"
	"ssashelper/src/projecttest"
	"ssashelper/src/projerrors"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEdition(t *testing.T) {
	for i, name := range []string{"Enterprise", "Standard", "Developer", "Evaluation"} {
		e, err := ParseEdition(name)
		require.NoError(t, err)
		assert.Equal(t, Edition(i), e)
		assert.Equal(t, name, e.String())
	}

	for _, name := range []string{"", "standard", "Express"} {
		_, err := ParseEdition(name)
		require.Error(t, err, name)
		assert.True(t, projerrors.ErrInvalidArgument.Is(err))
	}
}

func TestValidateSampleProject(t *testing.T) {
	_, db := assembleSample(t)
	v := NewValidator(nil)

	for _, edition := range []string{"Enterprise", "Standard", "Developer", "Evaluation"} {
		diags, ok, err := v.Validate(db, edition)
		require.NoError(t, err)
		assert.True(t, ok, edition)
		assert.Empty(t, diags, edition)
	}
}

func TestValidateRejectsUnknownEdition(t *testing.T) {
	_, db := assembleSample(t)
	_, ok, err := NewValidator(nil).Validate(db, "Web")
	require.Error(t, err)
	assert.False(t, ok)
	assert.True(t, projerrors.ErrInvalidArgument.Is(err))

	_, _, err = NewValidator(nil).Validate(nil, "Standard")
	assert.True(t, projerrors.ErrInvalidArgument.Is(err))
}

func manyPartitions(n int) []string {
	var ids []string
	for i := 0; i < n; i++ {
		ids = append(ids, fmt.Sprintf("P%d", i))
	}
	return ids
}

func testDatabase(cubes ...*models.Cube) *models.Database {
	return &models.Database{Object: models.Object{ID: "db", Name: "db"}, Cubes: cubes}
}

func TestValidateStandardPartitionLimit(t *testing.T) {
	db := testDatabase(projecttest.Cube("c", "Sales",
		projecttest.MeasureGroup("m", "Internet", manyPartitions(4), nil)))
	v := NewValidator(nil)

	diags, ok, err := v.Validate(db, "Standard")
	require.NoError(t, err)
	assert.False(t, ok)
	require.Len(t, diags, 1)
	assert.Equal(t, SeverityError, diags[0].Severity)
	assert.Equal(t, "Cube Sales/Internet", diags[0].Object)
	assert.Contains(t, diags[0].String(), "Error: Cube Sales/Internet: 4 partitions exceed the Standard edition limit of 3")

	diags, ok, err = v.Validate(db, "Enterprise")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, diags)

	db = testDatabase(projecttest.Cube("c", "Sales",
		projecttest.MeasureGroup("m", "Internet", manyPartitions(3), nil)))
	_, ok, err = v.Validate(db, "Standard")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestValidateProactiveCaching(t *testing.T) {
	mg := projecttest.MeasureGroup("m", "Internet", []string{"p"}, nil)
	mg.Partitions[0].Body.CreateElement("ProactiveCaching").CreateElement("SilenceInterval").SetText("-PT1S")
	db := testDatabase(projecttest.Cube("c", "Sales", mg))
	v := NewValidator(nil)

	diags, ok, err := v.Validate(db, "Standard")
	require.NoError(t, err)
	assert.False(t, ok)
	require.Len(t, diags, 1)
	assert.Equal(t, "Cube Sales/Internet/p", diags[0].Object)

	_, ok, err = v.Validate(db, "Developer")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestValidateMeasureGroupWithoutPartitions(t *testing.T) {
	db := testDatabase(projecttest.Cube("c", "Sales", projecttest.MeasureGroup("m", "Empty", nil, nil)))

	diags, ok, err := NewValidator(nil).Validate(db, "Enterprise")
	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, diags, 1)
	assert.Equal(t, SeverityWarning, diags[0].Severity)
	assert.Equal(t, "Warning: Cube Sales/Empty: measure group has no partitions", diags[0].String())
}

func TestValidateAggregationDesignReferences(t *testing.T) {
	mg := projecttest.MeasureGroup("m", "Internet", []string{"p1", "p2"}, []string{"Design"})
	mg.Partitions[0].Body.CreateElement("AggregationDesignID").SetText("Design")
	mg.Partitions[1].Body.CreateElement("AggregationDesignID").SetText("Missing")
	db := testDatabase(projecttest.Cube("c", "Sales", mg))

	diags, ok, err := NewValidator(nil).Validate(db, "Enterprise")
	require.NoError(t, err)
	assert.False(t, ok)
	require.Len(t, diags, 1)
	assert.Equal(t, `Error: Cube Sales/Internet/p2: references unknown aggregation design "Missing"`, diags[0].String())
}

func TestValidateDuplicatesAndIdentity(t *testing.T) {
	cube := projecttest.Cube("c", "Sales",
		projecttest.MeasureGroup("m", "A", []string{"p"}, []string{"d", "d"}),
		projecttest.MeasureGroup("m", "B", []string{"p"}, nil),
	)
	db := testDatabase(cube)
	db.Dimensions = []*models.Dimension{
		{Object: models.Object{ID: "d1", Name: "Date"}},
		{Object: models.Object{ID: "d1", Name: "Date"}},
		{Object: models.Object{ID: "", Name: "Nameless ID"}},
	}

	diags, ok, err := NewValidator(nil).Validate(db, "Enterprise")
	require.NoError(t, err)
	assert.False(t, ok)

	var got []string
	for _, d := range diags {
		got = append(got, d.String())
	}
	assert.ElementsMatch(t, []string{
		`Error: Dimension Date: duplicate ID "d1"`,
		`Error: Dimension Date: duplicate name`,
		`Error: Dimension Nameless ID: ID is missing`,
		`Error: Cube Sales/A: duplicate aggregation design ID "d"`,
		`Error: Cube Sales/B: duplicate measure group ID "m"`,
		`Error: Cube Sales/B/p: duplicate partition ID "p"`,
	}, got)
}

func TestValidateObjectReferences(t *testing.T) {
	_, db := assembleSample(t)
	db.DataSourceViews[0].Body.SelectElement("DataSourceID").SetText("Gone")
	dims := etree.NewElement("Dimensions")
	dims.CreateElement("Dimension").CreateElement("DimensionID").SetText("Product")
	db.Cubes[1].Body.AddChild(dims)

	diags, ok, err := NewValidator(nil).Validate(db, "Enterprise")
	require.NoError(t, err)
	assert.False(t, ok)

	var got []string
	for _, d := range diags {
		got = append(got, d.String())
	}
	assert.ElementsMatch(t, []string{
		`Error: DataSourceView Adventure Works DW: references unknown data source "Gone"`,
		`Error: Cube Finance: references unknown dimension "Product"`,
	}, got)
}
