package aggcheck

// ColumnType is a warehouse neutral column type.
type ColumnType string

const (
	TypeInteger ColumnType = "INTEGER"
	TypeString  ColumnType = "STRING"
	TypeDate    ColumnType = "DATE"
)

// ColumnInfo is a single column of an explicit staging table schema
type ColumnInfo struct {
	Name string     `json:"name" yaml:"name"`
	Type ColumnType `json:"type" yaml:"type"`
}

// TableSchema is an explicit, ordered staging table definition. Schemas are never inferred.
type TableSchema struct {
	Name    string       `json:"name" yaml:"name"`
	Columns []ColumnInfo `json:"columns" yaml:"columns"`
}

// Column looks up a column by name.
func (t TableSchema) Column(name string) (ColumnInfo, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}

	return ColumnInfo{}, false
}

// ColumnNames returns the column names in declaration order.
func (t TableSchema) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}

	return names
}

// Staging table names
const (
	TableAggData        = "agg_data"
	TableAppNames       = "app_names"
	TableDeviceSegments = "device_segments"
	TableGeoSegments    = "geo_segments"

	// DefaultViewName is the derived view built over the staging tables.
	DefaultViewName = "v_agg_data"

	// FallbackSegment is assigned by the view when no device segment matches.
	FallbackSegment = "non_target_device"
)

// Schemas holds the explicit schema of every staging table.
var Schemas = map[string]TableSchema{
	TableAggData: {
		Name: TableAggData,
		Columns: []ColumnInfo{
			{Name: "app_id", Type: TypeInteger},
			{Name: "install_date", Type: TypeDate},
			{Name: "device_model", Type: TypeString},
			{Name: "installs", Type: TypeInteger},
		},
	},
	TableAppNames: {
		Name: TableAppNames,
		Columns: []ColumnInfo{
			{Name: "app_id", Type: TypeInteger},
			{Name: "app_name", Type: TypeString},
			{Name: "platform", Type: TypeString},
		},
	},
	TableDeviceSegments: {
		Name: TableDeviceSegments,
		Columns: []ColumnInfo{
			{Name: "device_model", Type: TypeString},
			{Name: "segment", Type: TypeString},
			{Name: "app_short", Type: TypeString},
			{Name: "platform", Type: TypeString},
			{Name: "ua_team", Type: TypeString},
		},
	},
	TableGeoSegments: {
		Name: TableGeoSegments,
		Columns: []ColumnInfo{
			{Name: "geo", Type: TypeString},
			{Name: "segment", Type: TypeString},
			{Name: "platform", Type: TypeString},
			{Name: "ua_team", Type: TypeString},
		},
	},
}

// StagingTables lists the staging tables in load order.
var StagingTables = []string{TableAggData, TableAppNames, TableDeviceSegments, TableGeoSegments}
