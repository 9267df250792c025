// Package projecttest writes a small but complete sample project for tests.
//
// The project holds one data source, one data source view, one role, two
// dimensions, one mining structure and two cubes, each cube with a
// partitions file. Several files carry the volatile metadata the cleaner
// removes.
package projecttest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ssashelper/src/helpers"
	"ssashelper/src/models"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/require"
)

// Names of the sample objects.
const (
	DatabaseName = "Adventure Works"

	SalesCube          = "Sales"
	FinanceCube        = "Finance"
	InternetSalesID    = "Fact Internet Sales"
	InternetSalesName  = "Internet Sales"
	ResellerSalesID    = "Fact Reseller Sales"
	ResellerSalesName  = "Reseller Sales"
	FinanceGroupID     = "Fact Finance"
	FinanceGroupName   = "Finance"
	AggregationDesign  = "AggregationDesign"
	ProjectFileName    = "Adventure Works.dwproj"
	DatabaseFileName   = "Adventure Works.database"
	SalesCubeFile      = "Sales.cube"
	SalesPartitions    = "Sales.partitions"
	FinanceCubeFile    = "Finance.cube"
	FinancePartitions  = "Finance.partitions"
	DateDimensionFile  = "Date.dim"
	CustomerDimFile    = "Customer.dim"
	RoleFile           = "Readers.role"
	DataSourceFile     = "Adventure Works DW.ds"
	DataSourceViewFile = "Adventure Works DW.dsv"
	MiningFile         = "Customer Mining.dmm"
)

// Partition IDs per measure group in the sample partitions files.
var (
	InternetSalesPartitions = []string{"Internet_Sales_2003", "Internet_Sales_2004"}
	ResellerSalesPartitions = []string{"Reseller_Sales"}
	FinancePartitionIDs     = []string{"Finance_All"}
)

// ProjectFileCount is the number of files matching the default clean patterns.
const ProjectFileCount = 10

// VolatileFileCount is the number of files the default clean options alter.
const VolatileFileCount = 6

// Project is a sample project on disk.
type Project struct {
	Dir      string
	Manifest string
}

// Path returns the path of a project file.
func (p *Project) Path(name string) string {
	return filepath.Join(p.Dir, name)
}

// Write creates the sample project in a fresh temporary directory.
func Write(t testing.TB) *Project {
	t.Helper()
	return WriteTo(t, t.TempDir())
}

// WriteTo creates the sample project in dir.
func WriteTo(t testing.TB, dir string) *Project {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))

	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(expand(content)), 0644))
	}
	return &Project{Dir: dir, Manifest: filepath.Join(dir, ProjectFileName)}
}

// WriteFile writes one extra file into the project directory.
func (p *Project) WriteFile(t testing.TB, name, content string) string {
	t.Helper()
	path := p.Path(name)
	require.NoError(t, os.WriteFile(path, []byte(expand(content)), 0644))
	return path
}

// Root is the attribute list of every sample object root element. It may be
// used in extra files as {{root}}.
var Root = strings.Join([]string{
	`xmlns:xsd="` + helpers.XMLSchemaNamespace + `"`,
	`xmlns:xsi="` + helpers.XMLSchemaInstanceNamespace + `"`,
	`xmlns:ddl2="` + helpers.Engine2Namespace + `"`,
	`xmlns:ddl2_2="` + helpers.Engine2_2Namespace + `"`,
	`xmlns:ddl100_100="` + helpers.Engine100Namespace + `"`,
	`xmlns:dwd="` + helpers.DesignerNamespace + `"`,
	`xmlns="` + helpers.EngineNamespace + `"`,
}, " ")

func expand(content string) string {
	return strings.ReplaceAll(content, "{{root}}", Root)
}

// MeasureGroup builds a measure group holding partitions and aggregation
// designs with the given IDs.
func MeasureGroup(id, name string, partitions, designs []string) *models.MeasureGroup {
	mg := models.NewMeasureGroup(name, id)
	mg.Body = etree.NewElement("MeasureGroup")
	mg.Body.CreateElement("Measures").CreateElement("Measure").CreateElement("ID").SetText(id + " Count")

	for _, pid := range partitions {
		body := etree.NewElement("Partition")
		body.CreateElement("Source").CreateElement("QueryDefinition").SetText("SELECT * FROM " + pid)
		mg.Partitions = append(mg.Partitions, &models.Partition{Object: models.Object{ID: pid, Name: pid, Body: body}})
	}
	for _, aid := range designs {
		body := etree.NewElement("AggregationDesign")
		body.CreateElement("EstimatedRows").SetText("1000")
		mg.AggregationDesigns = append(mg.AggregationDesigns, &models.AggregationDesign{Object: models.Object{ID: aid, Name: aid, Body: body}})
	}
	return mg
}

// Cube builds a cube holding groups.
func Cube(id, name string, groups ...*models.MeasureGroup) *models.Cube {
	return &models.Cube{
		Object:        models.Object{ID: id, Name: name, Body: etree.NewElement("Cube")},
		MeasureGroups: groups,
	}
}

var files = map[string]string{
	ProjectFileName: `<?xml version="1.0" encoding="utf-8"?>
<Project xmlns:xsd="http://www.w3.org/2001/XMLSchema" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">
  <ProductVersion>10.50.1600.1</ProductVersion>
  <SchemaVersion>2.0</SchemaVersion>
  <State>$base64$PFNvdXJjZUNvbnRyb2xJbmZvPjwvU291cmNlQ29udHJvbEluZm8+</State>
  <Database>
    <Name>Adventure Works.database</Name>
    <FullPath>Adventure Works.database</FullPath>
  </Database>
  <DataSources>
    <ProjectItem>
      <Name>Adventure Works DW.ds</Name>
      <FullPath>Adventure Works DW.ds</FullPath>
    </ProjectItem>
  </DataSources>
  <DataSourceViews>
    <ProjectItem>
      <Name>Adventure Works DW.dsv</Name>
      <FullPath>Adventure Works DW.dsv</FullPath>
    </ProjectItem>
  </DataSourceViews>
  <Dimensions>
    <ProjectItem>
      <Name>Date.dim</Name>
      <FullPath>Date.dim</FullPath>
    </ProjectItem>
    <ProjectItem>
      <Name>Customer.dim</Name>
      <FullPath>Customer.dim</FullPath>
    </ProjectItem>
  </Dimensions>
  <Cubes>
    <ProjectItem>
      <Name>Sales.cube</Name>
      <FullPath>Sales.cube</FullPath>
      <SubType>Code</SubType>
      <Dependencies>
        <ProjectItem>
          <Name>Sales.partitions</Name>
          <FullPath>Sales.partitions</FullPath>
        </ProjectItem>
      </Dependencies>
    </ProjectItem>
    <ProjectItem>
      <Name>Finance.cube</Name>
      <FullPath>Finance.cube</FullPath>
      <SubType>Code</SubType>
      <Dependencies>
        <ProjectItem>
          <Name>Finance.partitions</Name>
          <FullPath>Finance.partitions</FullPath>
        </ProjectItem>
      </Dependencies>
    </ProjectItem>
  </Cubes>
  <MiningModels>
    <ProjectItem>
      <Name>Customer Mining.dmm</Name>
      <FullPath>Customer Mining.dmm</FullPath>
    </ProjectItem>
  </MiningModels>
  <Roles>
    <ProjectItem>
      <Name>Readers.role</Name>
      <FullPath>Readers.role</FullPath>
    </ProjectItem>
  </Roles>
</Project>
`,

	DatabaseFileName: `<?xml version="1.0" encoding="utf-8"?>
<Database {{root}} dwd:design-time-name="6c2a1f3e-0d2c-4b39-9f0e-1b8f1a2c3d4e">
  <ID>Adventure Works</ID>
  <Name>Adventure Works</Name>
  <CreatedTimestamp>2011-06-01T10:00:00Z</CreatedTimestamp>
  <LastSchemaUpdate>2011-06-01T10:00:00Z</LastSchemaUpdate>
  <Language>1033</Language>
  <Collation>Latin1_General_CI_AS</Collation>
  <DataSourceImpersonationInfo>
    <ImpersonationMode>Default</ImpersonationMode>
  </DataSourceImpersonationInfo>
</Database>
`,

	DataSourceFile: `<?xml version="1.0" encoding="utf-8"?>
<DataSource {{root}} xsi:type="RelationalDataSource" dwd:design-time-name="a1b2c3d4-0000-0000-0000-000000000001">
  <ID>Adventure Works DW</ID>
  <Name>Adventure Works DW</Name>
  <CreatedTimestamp>2011-06-01T10:00:00Z</CreatedTimestamp>
  <ConnectionString>Provider=SQLNCLI10.1;Data Source=localhost;Integrated Security=SSPI;Initial Catalog=AdventureWorksDW</ConnectionString>
  <ImpersonationInfo>
    <ImpersonationMode>ImpersonateServiceAccount</ImpersonationMode>
  </ImpersonationInfo>
  <Timeout>PT0S</Timeout>
</DataSource>
`,

	DataSourceViewFile: `<?xml version="1.0" encoding="utf-8"?>
<DataSourceView {{root}} dwd:design-time-name="a1b2c3d4-0000-0000-0000-000000000002">
  <ID>Adventure Works DW</ID>
  <Name>Adventure Works DW</Name>
  <CreatedTimestamp>2011-06-01T10:00:00Z</CreatedTimestamp>
  <DataSourceID>Adventure Works DW</DataSourceID>
  <Schema>
    <xs:schema id="Adventure_x0020_Works_x0020_DW" xmlns="" xmlns:xs="http://www.w3.org/2001/XMLSchema" xmlns:msdata="urn:schemas-microsoft-com:xml-msdata" xmlns:msprop="urn:schemas-microsoft-com:xml-msprop">
      <xs:element name="Adventure_x0020_Works_x0020_DW" msdata:IsDataSet="true" msprop:design-time-name="5f4e3d2c-1111-2222-3333-444455556666">
        <xs:complexType>
          <xs:choice minOccurs="0" maxOccurs="unbounded">
            <xs:element name="dbo_DimDate" msprop:DbTableName="DimDate" msprop:design-time-name="5f4e3d2c-1111-2222-3333-444455557777" />
          </xs:choice>
        </xs:complexType>
      </xs:element>
    </xs:schema>
  </Schema>
</DataSourceView>
`,

	RoleFile: `<?xml version="1.0" encoding="utf-8"?>
<Role {{root}} dwd:design-time-name="a1b2c3d4-0000-0000-0000-000000000003">
  <ID>Role</ID>
  <Name>Readers</Name>
  <Members>
    <Member>
      <Name>DOMAIN\Readers</Name>
    </Member>
  </Members>
</Role>
`,

	DateDimensionFile: `<?xml version="1.0" encoding="utf-8"?>
<Dimension {{root}} dwd:design-time-name="a1b2c3d4-0000-0000-0000-000000000004">
  <ID>Date</ID>
  <Name>Date</Name>
  <CreatedTimestamp>2011-06-01T10:00:00Z</CreatedTimestamp>
  <LastSchemaUpdate>2011-06-01T10:00:00Z</LastSchemaUpdate>
  <Annotations>
    <Annotation>
      <Name>http://schemas.microsoft.com/DataWarehouse/Designer/1.0:DiagramLayout</Name>
    </Annotation>
  </Annotations>
  <LastProcessed>2011-06-02T10:00:00Z</LastProcessed>
  <State>Processed</State>
  <Source xsi:type="DataSourceViewBinding" dwd:design-time-name="a1b2c3d4-0000-0000-0000-000000000005">
    <DataSourceViewID>Adventure Works DW</DataSourceViewID>
  </Source>
  <Attributes>
    <Attribute dwd:design-time-name="a1b2c3d4-0000-0000-0000-000000000006">
      <ID>Date Key</ID>
      <Name>Date Key</Name>
      <Usage>Key</Usage>
    </Attribute>
  </Attributes>
</Dimension>
`,

	CustomerDimFile: `<?xml version="1.0" encoding="utf-8"?>
<Dimension {{root}}>
  <ID>Customer</ID>
  <Name>Customer</Name>
  <Annotations>
    <Annotation>
      <Name>http://schemas.microsoft.com/DataWarehouse/Designer/1.0:ShowFriendlyNames</Name>
      <Value>true</Value>
    </Annotation>
  </Annotations>
  <Attributes>
    <Attribute>
      <ID>Customer Key</ID>
      <Name>Customer</Name>
      <Usage>Key</Usage>
    </Attribute>
  </Attributes>
</Dimension>
`,

	MiningFile: `<?xml version="1.0" encoding="utf-8"?>
<MiningStructure {{root}}>
  <ID>Customer Mining</ID>
  <Name>Customer Mining</Name>
  <LastProcessed>2011-06-02T10:00:00Z</LastProcessed>
  <State>Unprocessed</State>
  <Source xsi:type="DataSourceViewBinding">
    <DataSourceViewID>Adventure Works DW</DataSourceViewID>
  </Source>
  <Columns>
    <Column xsi:type="ScalarMiningStructureColumn">
      <ID>Customer Key</ID>
      <Name>Customer Key</Name>
      <IsKey>true</IsKey>
    </Column>
  </Columns>
</MiningStructure>
`,

	SalesCubeFile: `<?xml version="1.0" encoding="utf-8"?>
<Cube {{root}}>
  <ID>Sales</ID>
  <Name>Sales</Name>
  <CreatedTimestamp>2011-06-01T10:00:00Z</CreatedTimestamp>
  <LastSchemaUpdate>2011-06-01T10:00:00Z</LastSchemaUpdate>
  <Annotations>
    <Annotation>
      <Name>http://schemas.microsoft.com/DataWarehouse/Designer/1.0:DiagramLayout</Name>
    </Annotation>
  </Annotations>
  <State>Processed</State>
  <Language>1033</Language>
  <Dimensions>
    <Dimension>
      <ID>Date</ID>
      <Name>Date</Name>
      <DimensionID>Date</DimensionID>
    </Dimension>
    <Dimension>
      <ID>Customer</ID>
      <Name>Customer</Name>
      <DimensionID>Customer</DimensionID>
    </Dimension>
  </Dimensions>
  <MeasureGroups>
    <MeasureGroup>
      <ID>Fact Internet Sales</ID>
      <Name>Internet Sales</Name>
      <Measures>
        <Measure>
          <ID>Sales Amount</ID>
          <Name>Sales Amount</Name>
          <AggregateFunction>Sum</AggregateFunction>
        </Measure>
      </Measures>
      <StorageMode>Molap</StorageMode>
      <ProcessingMode>Regular</ProcessingMode>
    </MeasureGroup>
    <MeasureGroup>
      <ID>Fact Reseller Sales</ID>
      <Name>Reseller Sales</Name>
      <Measures>
        <Measure>
          <ID>Reseller Sales Amount</ID>
          <Name>Reseller Sales Amount</Name>
        </Measure>
      </Measures>
      <StorageMode>Rolap</StorageMode>
    </MeasureGroup>
  </MeasureGroups>
</Cube>
`,

	SalesPartitions: `<?xml version="1.0" encoding="utf-8"?>
<Cube {{root}}>
  <ID>Sales</ID>
  <Name>Sales</Name>
  <MeasureGroups>
    <MeasureGroup>
      <ID>Fact Internet Sales</ID>
      <Partitions>
        <Partition dwd:design-time-name="a1b2c3d4-0000-0000-0000-000000000010">
          <ID>Internet_Sales_2003</ID>
          <Name>Internet_Sales_2003</Name>
          <State>Processed</State>
          <Source xsi:type="QueryBinding">
            <DataSourceID>Adventure Works DW</DataSourceID>
            <QueryDefinition>SELECT * FROM FactInternetSales WHERE OrderDateKey &lt; 20040101</QueryDefinition>
          </Source>
          <StorageMode>Molap</StorageMode>
          <AggregationDesignID>AggregationDesign</AggregationDesignID>
        </Partition>
        <Partition>
          <ID>Internet_Sales_2004</ID>
          <Name>Internet_Sales_2004</Name>
          <Source xsi:type="QueryBinding">
            <DataSourceID>Adventure Works DW</DataSourceID>
            <QueryDefinition>SELECT * FROM FactInternetSales WHERE OrderDateKey &gt;= 20040101</QueryDefinition>
          </Source>
          <StorageMode>Molap</StorageMode>
          <AggregationDesignID>AggregationDesign</AggregationDesignID>
        </Partition>
      </Partitions>
      <AggregationDesigns>
        <AggregationDesign>
          <ID>AggregationDesign</ID>
          <Name>AggregationDesign</Name>
          <EstimatedRows>60398</EstimatedRows>
        </AggregationDesign>
      </AggregationDesigns>
    </MeasureGroup>
    <MeasureGroup>
      <ID>Fact Reseller Sales</ID>
      <Partitions>
        <Partition>
          <ID>Reseller_Sales</ID>
          <Name>Reseller_Sales</Name>
          <Source xsi:type="TableBinding">
            <DataSourceID>Adventure Works DW</DataSourceID>
            <DbTableName>FactResellerSales</DbTableName>
          </Source>
          <StorageMode>Rolap</StorageMode>
        </Partition>
      </Partitions>
    </MeasureGroup>
  </MeasureGroups>
</Cube>
`,

	FinanceCubeFile: `<?xml version="1.0" encoding="utf-8"?>
<Cube {{root}}>
  <ID>Finance</ID>
  <Name>Finance</Name>
  <Dimensions>
    <Dimension>
      <ID>Date</ID>
      <Name>Date</Name>
      <DimensionID>Date</DimensionID>
    </Dimension>
  </Dimensions>
  <MeasureGroups>
    <MeasureGroup>
      <ID>Fact Finance</ID>
      <Name>Finance</Name>
      <Measures>
        <Measure>
          <ID>Amount</ID>
          <Name>Amount</Name>
        </Measure>
      </Measures>
      <StorageMode>Molap</StorageMode>
      <ProcessingMode>Regular</ProcessingMode>
    </MeasureGroup>
  </MeasureGroups>
</Cube>
`,

	FinancePartitions: `<?xml version="1.0" encoding="utf-8"?>
<Cube {{root}}>
  <ID>Finance</ID>
  <Name>Finance</Name>
  <MeasureGroups>
    <MeasureGroup>
      <ID>Fact Finance</ID>
      <Partitions>
        <Partition>
          <ID>Finance_All</ID>
          <Name>Finance_All</Name>
          <Source xsi:type="TableBinding">
            <DataSourceID>Adventure Works DW</DataSourceID>
            <DbTableName>FactFinance</DbTableName>
          </Source>
        </Partition>
      </Partitions>
    </MeasureGroup>
  </MeasureGroups>
</Cube>
`,
}
