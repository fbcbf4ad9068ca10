package warehouse

import (
	"math/big"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// normalizeValue converts a driver value into the small set of types the rest of the
// module understands: nil, bool, int64, float64, string, civil.Date, time.Time and
// decimal.Decimal. dbType is the driver's column type name and may be empty.
func normalizeValue(v any, dbType string) any {
	dbType = strings.ToUpper(dbType)

	switch val := v.(type) {
	case nil:
		return nil
	case []byte:
		return normalizeValue(string(val), dbType)
	case string:
		return normalizeString(val, dbType)
	case int:
		return int64(val)
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case uint8:
		return int64(val)
	case uint16:
		return int64(val)
	case uint32:
		return int64(val)
	case uint64:
		if val <= 1<<63-1 {
			return int64(val)
		}
		return decimal.NewFromBigInt(new(big.Int).SetUint64(val), 0)
	case float32:
		return float64(val)
	case *big.Int:
		if val.IsInt64() {
			return val.Int64()
		}
		return decimal.NewFromBigInt(val, 0)
	case *big.Rat:
		return ratToValue(val)
	case time.Time:
		if isDateType(dbType) {
			return civil.DateOf(val)
		}
		return val
	default:
		return v
	}
}

func normalizeString(s, dbType string) any {
	switch {
	case isDateType(dbType):
		if d, err := civil.ParseDate(s); err == nil {
			return d
		}
	case isIntegerType(dbType):
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	case isNumericType(dbType):
		if d, err := decimal.NewFromString(s); err == nil {
			if d.IsInteger() && d.BigInt().IsInt64() {
				return d.IntPart()
			}
			return d
		}
	}

	return s
}

// ratToValue keeps integral NUMERIC values as int64 so typed records can use plain integers.
func ratToValue(r *big.Rat) any {
	if r.IsInt() && r.Num().IsInt64() {
		return r.Num().Int64()
	}

	d, err := decimal.NewFromString(r.FloatString(9))
	if err != nil {
		f, _ := r.Float64()
		return f
	}

	return d
}

func isDateType(dbType string) bool {
	return dbType == "DATE"
}

func isIntegerType(dbType string) bool {
	switch dbType {
	case "INT", "INTEGER", "BIGINT", "INT8", "INT4", "INT2", "SMALLINT", "TINYINT", "MEDIUMINT", "INT64", "HUGEINT", "UNSIGNED BIGINT":
		return true
	}

	return false
}

func isNumericType(dbType string) bool {
	return dbType == "NUMERIC" || dbType == "DECIMAL" || dbType == "BIGNUMERIC" || strings.HasPrefix(dbType, "DECIMAL(")
}

// normalizeInsertValue prepares a validated fixture value for a database/sql INSERT.
// Dates travel as ISO text so SQLite stores comparable strings.
func normalizeInsertValue(v any) any {
	switch val := v.(type) {
	case civil.Date:
		return val.String()
	case decimal.Decimal:
		return val.String()
	default:
		return v
	}
}
