package fixture

import (
	"testing"

	"cloud.google.com/go/civil"
	"github.com/alecthomas/assert/v2"
	"github.com/shibukawa/aggcheck"
)

func TestParseRows(t *testing.T) {
	data := []byte(`[
		{"app_id": 1, "install_date": "2020-03-01", "device_model": "PIXEL 7", "installs": 100},
		{"app_id": 2.0, "install_date": "2021-05-10", "device_model": null, "installs": 0}
	]`)

	rows, err := ParseRows(data, aggcheck.Schemas[aggcheck.TableAggData])
	assert.NoError(t, err)

	assert.Equal(t, []map[string]any{
		{"app_id": int64(1), "install_date": civil.Date{Year: 2020, Month: 3, Day: 1}, "device_model": "PIXEL 7", "installs": int64(100)},
		{"app_id": int64(2), "install_date": civil.Date{Year: 2021, Month: 5, Day: 10}, "device_model": nil, "installs": int64(0)},
	}, rows)
}

func TestParseRows_Empty(t *testing.T) {
	rows, err := ParseRows([]byte(`[]`), aggcheck.Schemas[aggcheck.TableAppNames])
	assert.NoError(t, err)
	assert.Zero(t, rows)
}

func TestParseRows_Errors(t *testing.T) {
	tests := []struct {
		name    string
		table   string
		data    string
		wantErr error
	}{
		{
			name:    "object instead of array",
			table:   aggcheck.TableAppNames,
			data:    `{"app_id": 1, "app_name": "Solitaire", "platform": "android"}`,
			wantErr: aggcheck.ErrFixtureNotArray,
		},
		{
			name:    "array of scalars",
			table:   aggcheck.TableAppNames,
			data:    `[1, 2]`,
			wantErr: aggcheck.ErrFixtureNotArray,
		},
		{
			name:    "unknown column",
			table:   aggcheck.TableAppNames,
			data:    `[{"app_id": 1, "app_name": "Solitaire", "platform": "android", "store": "play"}]`,
			wantErr: aggcheck.ErrUnknownFixtureColumn,
		},
		{
			name:    "missing column",
			table:   aggcheck.TableAppNames,
			data:    `[{"app_id": 1, "app_name": "Solitaire"}]`,
			wantErr: aggcheck.ErrMissingFixtureColumn,
		},
		{
			name:    "fractional integer",
			table:   aggcheck.TableAggData,
			data:    `[{"app_id": 1, "install_date": "2020-03-01", "device_model": "X", "installs": 1.5}]`,
			wantErr: aggcheck.ErrFixtureValueType,
		},
		{
			name:    "integer as string",
			table:   aggcheck.TableAggData,
			data:    `[{"app_id": "1", "install_date": "2020-03-01", "device_model": "X", "installs": 1}]`,
			wantErr: aggcheck.ErrFixtureValueType,
		},
		{
			name:    "bad date",
			table:   aggcheck.TableAggData,
			data:    `[{"app_id": 1, "install_date": "03/01/2020", "device_model": "X", "installs": 1}]`,
			wantErr: aggcheck.ErrFixtureValueType,
		},
		{
			name:    "boolean in integer column",
			table:   aggcheck.TableAppNames,
			data:    `[{"app_id": true, "app_name": "Solitaire", "platform": "android"}]`,
			wantErr: aggcheck.ErrFixtureValueType,
		},
		{
			name:    "integer beyond int64",
			table:   aggcheck.TableAppNames,
			data:    `[{"app_id": 9223372036854775808, "app_name": "Solitaire", "platform": "android"}]`,
			wantErr: aggcheck.ErrFixtureValueType,
		},
		{
			name:    "yaml sequence",
			table:   aggcheck.TableAppNames,
			data:    "- app_id: 1\n  app_name: Solitaire\n  platform: android\n",
			wantErr: aggcheck.ErrFixtureSyntax,
		},
		{
			name:    "trailing comma",
			table:   aggcheck.TableAppNames,
			data:    `[{"app_id": 1, "app_name": "Solitaire", "platform": "android"},]`,
			wantErr: aggcheck.ErrFixtureSyntax,
		},
		{
			name:    "unquoted keys",
			table:   aggcheck.TableAppNames,
			data:    `[{app_id: 1, app_name: "Solitaire", platform: "android"}]`,
			wantErr: aggcheck.ErrFixtureSyntax,
		},
		{
			name:    "number in string column",
			table:   aggcheck.TableGeoSegments,
			data:    `[{"geo": 840, "segment": "tier1", "platform": "android", "ua_team": "Network"}]`,
			wantErr: aggcheck.ErrFixtureValueType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRows([]byte(tt.data), aggcheck.Schemas[tt.table])
			assert.IsError(t, err, tt.wantErr)
		})
	}
}

func TestParseRows_Malformed(t *testing.T) {
	_, err := ParseRows([]byte(`[{"app_id": 1,`), aggcheck.Schemas[aggcheck.TableAppNames])
	assert.IsError(t, err, aggcheck.ErrFixtureSyntax)
}

func TestParseRows_NullsInEveryColumn(t *testing.T) {
	data := []byte(`[
		{"app_id": null, "app_name": null, "platform": "ios"}
	]`)

	rows, err := ParseRows(data, aggcheck.Schemas[aggcheck.TableAppNames])
	assert.NoError(t, err)
	assert.Equal(t, []map[string]any{
		{"app_id": nil, "app_name": nil, "platform": "ios"},
	}, rows)

	rows, err = ParseRows([]byte(`[{"geo": "US", "segment": null, "platform": null, "ua_team": null}]`),
		aggcheck.Schemas[aggcheck.TableGeoSegments])
	assert.NoError(t, err)
	assert.Equal(t, []map[string]any{
		{"geo": "US", "segment": nil, "platform": nil, "ua_team": nil},
	}, rows)
}

func TestParseRows_IntegralNumbers(t *testing.T) {
	data := []byte(`[
		{"app_id": 1e2, "app_name": "Solitaire", "platform": "android"},
		{"app_id": 9007199254740993, "app_name": "Sudoku", "platform": "ios"}
	]`)

	rows, err := ParseRows(data, aggcheck.Schemas[aggcheck.TableAppNames])
	assert.NoError(t, err)
	assert.Equal[any](t, int64(100), rows[0]["app_id"])
	// beyond float64 precision, kept exact
	assert.Equal[any](t, int64(9007199254740993), rows[1]["app_id"])
}
