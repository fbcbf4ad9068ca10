package warehouse

import (
	"math/big"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/alecthomas/assert/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/shibukawa/aggcheck"
	"github.com/shopspring/decimal"
)

type installRecord struct {
	AppName     string          `db:"app_name"`
	DeviceModel *string         `db:"device_model"`
	InstallDate civil.Date      `db:"install_date"`
	Total       decimal.Decimal `db:"total"`
	Count       int64           `db:"cnt"`
}

func TestDecode(t *testing.T) {
	model := "PIXEL 7"
	rs := NewResultSet([]string{"app_name", "device_model", "install_date", "total", "cnt"}, []Row{
		{"app_name": "Solitaire", "device_model": model, "install_date": civil.Date{Year: 2020, Month: 3, Day: 1}, "total": int64(1200), "cnt": int64(2)},
		{"app_name": "Chess", "device_model": nil, "install_date": "2021-07-15", "total": "1500000.5", "cnt": decimal.NewFromInt(3)},
		{"app_name": "Go", "device_model": "X", "install_date": time.Date(2022, 1, 2, 0, 0, 0, 0, time.UTC), "total": 7.5, "cnt": "4"},
	})

	records, err := Decode[installRecord](rs)
	assert.NoError(t, err)
	assert.Equal(t, 3, len(records))

	assert.Equal(t, "Solitaire", records[0].AppName)
	assert.Equal(t, &model, records[0].DeviceModel)
	assert.Equal(t, civil.Date{Year: 2020, Month: 3, Day: 1}, records[0].InstallDate)
	assert.True(t, decimal.NewFromInt(1200).Equal(records[0].Total))
	assert.Equal(t, int64(2), records[0].Count)

	assert.Zero(t, records[1].DeviceModel)
	assert.Equal(t, civil.Date{Year: 2021, Month: 7, Day: 15}, records[1].InstallDate)
	assert.Equal(t, "1500000.5", records[1].Total.String())
	assert.Equal(t, int64(3), records[1].Count)

	assert.Equal(t, civil.Date{Year: 2022, Month: 1, Day: 2}, records[2].InstallDate)
	assert.Equal(t, int64(4), records[2].Count)
}

func TestDecode_DecimalTotals(t *testing.T) {
	type totalRecord struct {
		AppName string          `db:"app_name"`
		Total   decimal.Decimal `db:"total"`
	}

	rs := NewResultSet([]string{"app_name", "total"}, []Row{
		{"app_name": "Solitaire", "total": int64(1000001)},
		{"app_name": "Chess", "total": "2500000.00"},
		{"app_name": "Go", "total": 2.5},
	})

	got, err := Decode[totalRecord](rs)
	assert.NoError(t, err)

	want := []totalRecord{
		{AppName: "Solitaire", Total: decimal.NewFromInt(1000001)},
		{AppName: "Chess", Total: decimal.NewFromInt(2500000)},
		{AppName: "Go", Total: decimal.RequireFromString("2.5")},
	}

	equalDecimal := cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })
	if diff := cmp.Diff(want, got, equalDecimal); diff != "" {
		t.Errorf("Decode() mismatch (-want +got):\n%s", diff)
	}
}

func TestDecode_SchemaMismatch(t *testing.T) {
	type countRecord struct {
		Cnt int64 `db:"cnt"`
	}

	tests := []struct {
		name string
		row  Row
	}{
		{"missing column", Row{"count": int64(1)}},
		{"unexpected column", Row{"cnt": int64(1), "extra": "x"}},
		{"wrong type", Row{"cnt": "many"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode[countRecord](NewResultSet([]string{"cnt"}, []Row{tt.row}))
			assert.Error(t, err)
			assert.IsError(t, err, aggcheck.ErrRowShape)
		})
	}
}

func TestNormalizeValue(t *testing.T) {
	tests := []struct {
		name   string
		value  any
		dbType string
		want   any
	}{
		{"bytes to string", []byte("abc"), "TEXT", "abc"},
		{"int32 widened", int32(7), "INT4", int64(7)},
		{"uint8 widened", uint8(7), "", int64(7)},
		{"big int fits", big.NewInt(42), "HUGEINT", int64(42)},
		{"date from time", time.Date(2020, 2, 3, 0, 0, 0, 0, time.UTC), "date", civil.Date{Year: 2020, Month: 2, Day: 3}},
		{"date from bytes", []byte("2020-02-03"), "DATE", civil.Date{Year: 2020, Month: 2, Day: 3}},
		{"timestamp kept", time.Date(2020, 2, 3, 4, 5, 6, 0, time.UTC), "TIMESTAMP", time.Date(2020, 2, 3, 4, 5, 6, 0, time.UTC)},
		{"numeric integral", "1500", "NUMERIC", int64(1500)},
		{"integer text", []byte("12"), "BIGINT", int64(12)},
		{"integer column holding text", "abc", "INTEGER", "abc"},
		{"nil", nil, "DATE", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal[any](t, tt.want, normalizeValue(tt.value, tt.dbType))
		})
	}

	d, ok := normalizeValue("12.25", "DECIMAL").(decimal.Decimal)
	assert.True(t, ok)
	assert.Equal(t, "12.25", d.String())

	rat, ok := normalizeValue(big.NewRat(5, 4), "").(decimal.Decimal)
	assert.True(t, ok)
	assert.Equal(t, "1.25", rat.String())

	assert.Equal[any](t, int64(9), normalizeValue(big.NewRat(9, 1), ""))
}

func TestResultSet_RestartableAndPlain(t *testing.T) {
	rs := NewResultSet([]string{"install_date", "total"}, []Row{
		{"install_date": civil.Date{Year: 2020, Month: 1, Day: 31}, "total": decimal.NewFromInt(10)},
		{"install_date": civil.Date{Year: 2020, Month: 2, Day: 1}, "total": decimal.RequireFromString("2.5")},
	})

	count := func() int {
		n := 0
		for range rs.All() {
			n++
		}
		return n
	}

	assert.Equal(t, 2, count())
	assert.Equal(t, 2, count())

	first, ok := rs.First()
	assert.True(t, ok)
	assert.Equal[any](t, civil.Date{Year: 2020, Month: 1, Day: 31}, first["install_date"])

	assert.Equal(t, []map[string]any{
		{"install_date": "2020-01-31", "total": int64(10)},
		{"install_date": "2020-02-01", "total": 2.5},
	}, rs.Plain())

	_, ok = NewResultSet(nil, nil).First()
	assert.False(t, ok)
}
