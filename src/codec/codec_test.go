package codec

import (
	"bytes"
	"strings"
	"testing"

	"ssashelper/src/helpers"
	"ssashelper/src/models"
	"ssashelper/src/projerrors"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const salesCube = `<?xml version="1.0" encoding="utf-8"?>
<Cube xmlns:dwd="http://schemas.microsoft.com/DataWarehouse/Designer/1.0" xmlns="http://schemas.microsoft.com/analysisservices/2003/engine" dwd:design-time-name="cube-1">
  <ID>Sales</ID>
  <Name>Sales</Name>
  <Language>1033</Language>
  <MeasureGroups>
    <MeasureGroup>
      <ID>Fact Internet Sales</ID>
      <Name>Internet Sales</Name>
      <Measures>
        <Measure><ID>Amount</ID></Measure>
      </Measures>
      <StorageMode>Rolap</StorageMode>
      <Partitions>
        <Partition>
          <ID>P1</ID>
          <Name>P1</Name>
          <Source>s1</Source>
        </Partition>
      </Partitions>
    </MeasureGroup>
  </MeasureGroups>
  <Visible>true</Visible>
</Cube>`

func TestDeserializeCube(t *testing.T) {
	c := New(nil)
	cube := &models.Cube{}
	require.NoError(t, c.Deserialize(strings.NewReader(salesCube), cube))

	assert.Equal(t, "Sales", cube.ID)
	assert.Equal(t, "Sales", cube.Name)
	require.Len(t, cube.MeasureGroups, 1)

	mg := cube.MeasureGroups[0]
	assert.Equal(t, "Fact Internet Sales", mg.ID)
	assert.Equal(t, "Internet Sales", mg.Name)
	assert.Equal(t, "Rolap", mg.StorageMode)
	assert.Equal(t, models.DefaultProcessingMode, mg.ProcessingMode)
	require.Len(t, mg.Partitions, 1)
	assert.Equal(t, "P1", mg.Partitions[0].ID)
	assert.Empty(t, mg.AggregationDesigns)

	// Identity is typed, the rest is kept in the body.
	assert.Nil(t, cube.Body.SelectElement("ID"))
	assert.NotNil(t, cube.Body.SelectElement("Language"))
	assert.Equal(t, "cube-1", cube.Body.SelectAttrValue("dwd:design-time-name", ""))
}

func TestDeserializeErrors(t *testing.T) {
	c := New(nil)

	tests := []struct {
		name   string
		doc    string
		target interface{}
	}{
		{"not xml", "<Cube>", &models.Cube{}},
		{"wrong root", "<Dimension><ID>x</ID></Dimension>", &models.Cube{}},
		{"measure group without name", "<Cube><ID>c</ID><MeasureGroups><MeasureGroup><ID>mg</ID></MeasureGroup></MeasureGroups></Cube>", &models.Cube{}},
		{"measure group without id", "<Cube><ID>c</ID><MeasureGroups><MeasureGroup><Name>mg</Name></MeasureGroup></MeasureGroups></Cube>", &models.Cube{}},
		{"partition without id", "<Cube><MeasureGroups><MeasureGroup><ID>m</ID><Name>m</Name><Partitions><Partition><Name>p</Name></Partition></Partitions></MeasureGroup></MeasureGroups></Cube>", &models.Cube{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Deserialize(strings.NewReader(tt.doc), tt.target)
			require.Error(t, err)
			assert.True(t, projerrors.ErrMalformed.Is(err), err.Error())
		})
	}

	err := c.Deserialize(strings.NewReader("<Cube/>"), &models.Partition{})
	require.Error(t, err)
	assert.True(t, projerrors.ErrInvalidArgument.Is(err))
}

func TestSerializeKeepsBodyOrder(t *testing.T) {
	c := New(nil)
	cube := &models.Cube{}
	require.NoError(t, c.Deserialize(strings.NewReader(salesCube), cube))

	var buf bytes.Buffer
	require.NoError(t, c.Serialize(&buf, cube, false))

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(buf.Bytes()))
	root := doc.Root()

	var tags []string
	for _, e := range root.ChildElements() {
		tags = append(tags, e.Tag)
	}
	assert.Equal(t, []string{"ID", "Name", "Language", "MeasureGroups", "Visible"}, tags)

	mg := root.FindElement("MeasureGroups/MeasureGroup")
	require.NotNil(t, mg)
	tags = nil
	for _, e := range mg.ChildElements() {
		tags = append(tags, e.Tag)
	}
	assert.Equal(t, []string{"ID", "Name", "Measures", "StorageMode", "Partitions", "ProcessingMode"}, tags)
	assert.Equal(t, "Rolap", mg.SelectElement("StorageMode").Text())
}

func TestSerializeDeclaresNamespaces(t *testing.T) {
	c := New(nil)
	ds := &models.DataSource{Object: models.Object{ID: "ds", Name: "Source"}}

	var buf bytes.Buffer
	require.NoError(t, c.Serialize(&buf, ds, false))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, `<?xml version="1.0" encoding="utf-8"?>`))
	assert.Contains(t, out, `<DataSource xmlns:xsd="http://www.w3.org/2001/XMLSchema" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"`)
	assert.Contains(t, out, `xmlns:dwd="`+helpers.DesignerNamespace+`" xmlns="`+helpers.EngineNamespace+`">`)
	assert.Contains(t, out, "\n  <ID>ds</ID>\n  <Name>Source</Name>\n")
}

func TestSerializeMeasureGroupAlwaysWritesModes(t *testing.T) {
	c := New(nil)
	cube := &models.Cube{
		Object:        models.Object{ID: "c", Name: "c"},
		MeasureGroups: []*models.MeasureGroup{{Object: models.Object{ID: "m", Name: "m"}}},
	}

	el, err := c.Element(cube, false)
	require.NoError(t, err)
	mg := el.FindElement("MeasureGroups/MeasureGroup")
	require.NotNil(t, mg)
	assert.Equal(t, models.DefaultStorageMode, mg.SelectElement("StorageMode").Text())
	assert.Equal(t, models.DefaultProcessingMode, mg.SelectElement("ProcessingMode").Text())
	assert.Nil(t, mg.SelectElement("Partitions"))

	el, err = c.Element(cube, true)
	require.NoError(t, err)
	mg = el.FindElement("MeasureGroups/MeasureGroup")
	assert.NotNil(t, mg.SelectElement("Partitions"))
	assert.NotNil(t, mg.SelectElement("AggregationDesigns"))
}

func TestDatabaseRoundTrip(t *testing.T) {
	c := New(nil)
	db := &models.Database{
		Object:      models.Object{ID: "db", Name: "Adventure"},
		Dimensions:  []*models.Dimension{{Object: models.Object{ID: "d1", Name: "Date"}}},
		DataSources: []*models.DataSource{{Object: models.Object{ID: "ds1", Name: "DW"}}},
		Cubes: []*models.Cube{{
			Object: models.Object{ID: "c1", Name: "Sales"},
			MeasureGroups: []*models.MeasureGroup{{
				Object:     models.Object{ID: "m1", Name: "Internet"},
				Partitions: []*models.Partition{{Object: models.Object{ID: "p1", Name: "p1"}}},
			}},
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, c.Serialize(&buf, db, false))

	// Nested objects do not repeat the root declarations.
	assert.Equal(t, 1, strings.Count(buf.String(), `xmlns="`+helpers.EngineNamespace+`"`))

	out := &models.Database{}
	require.NoError(t, c.Deserialize(bytes.NewReader(buf.Bytes()), out))
	assert.Equal(t, "Adventure", out.Name)
	require.Len(t, out.Dimensions, 1)
	assert.Equal(t, "d1", out.Dimensions[0].ID)
	require.Len(t, out.DataSources, 1)
	require.Len(t, out.Cubes, 1)
	require.Len(t, out.Cubes[0].MeasureGroups, 1)
	require.Len(t, out.Cubes[0].MeasureGroups[0].Partitions, 1)
	assert.Equal(t, "p1", out.Cubes[0].MeasureGroups[0].Partitions[0].ID)
	assert.Empty(t, out.Roles)
}

func TestSerializeUnsupportedType(t *testing.T) {
	var buf bytes.Buffer
	err := New(nil).Serialize(&buf, "text", false)
	require.Error(t, err)
	assert.True(t, projerrors.ErrInvalidArgument.Is(err))
}
