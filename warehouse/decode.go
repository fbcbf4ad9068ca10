package warehouse

import (
	"fmt"
	"reflect"
	"strconv"
	"time"

	"cloud.google.com/go/civil"
	"github.com/go-viper/mapstructure/v2"
	"github.com/shibukawa/aggcheck"
	"github.com/shopspring/decimal"
)

// Decode converts every row into a typed record. Fields are matched by their `db` tag.
// A column the record expects but the row lacks, or a column the record does not declare,
// is a schema mismatch wrapping aggcheck.ErrRowShape.
func Decode[T any](rs *ResultSet) ([]T, error) {
	out := make([]T, 0, rs.Len())

	for i, row := range rs.Rows() {
		var rec T

		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:      &rec,
			TagName:     "db",
			ErrorUnset:  true,
			ErrorUnused: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				civilDateHook,
				decimalHook,
				int64Hook,
			),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create decoder: %w", err)
		}

		if err := decoder.Decode(map[string]any(row)); err != nil {
			return nil, fmt.Errorf("%w: row %d into %T: %w", aggcheck.ErrRowShape, i, rec, err)
		}

		out = append(out, rec)
	}

	return out, nil
}

var (
	civilDateType = reflect.TypeOf(civil.Date{})
	decimalType   = reflect.TypeOf(decimal.Decimal{})
)

// civilDateHook accepts ISO strings and timestamps for civil.Date fields.
func civilDateHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != civilDateType {
		return data, nil
	}

	switch v := data.(type) {
	case string:
		return civil.ParseDate(v)
	case time.Time:
		return civil.DateOf(v), nil
	default:
		return data, nil
	}
}

// decimalHook accepts any numeric representation for decimal.Decimal fields.
func decimalHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to != decimalType {
		return data, nil
	}

	switch v := data.(type) {
	case int64:
		return decimal.NewFromInt(v), nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case string:
		return decimal.NewFromString(v)
	default:
		return data, nil
	}
}

// int64Hook accepts integral decimals and numeric strings for int64 fields, which is how
// some drivers return aggregates.
func int64Hook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	if to.Kind() != reflect.Int64 {
		return data, nil
	}

	switch v := data.(type) {
	case decimal.Decimal:
		if !v.IsInteger() {
			return nil, fmt.Errorf("value %s is not an integer", v)
		}
		return v.IntPart(), nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("value %q is not an integer", v)
		}
		return n, nil
	default:
		return data, nil
	}
}
