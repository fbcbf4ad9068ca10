package rules

import (
	"fmt"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shibukawa/aggcheck/warehouse"
	"github.com/shopspring/decimal"
)

// Typed violation records, one per rule query shape.

type unmatchedModel struct {
	DeviceModelUpper *string `db:"device_model_upper"`
}

type appPlatform struct {
	AppName  *string `db:"app_name"`
	Platform *string `db:"platform"`
}

type missingDeviceData struct {
	AppID       *int64  `db:"app_id"`
	DeviceModel *string `db:"device_model"`
	AppName     *string `db:"app_name"`
	Platform    *string `db:"platform"`
}

type deviceSegmentDuplicate struct {
	DeviceModel *string `db:"device_model"`
	Segment     *string `db:"segment"`
	Cnt         int64   `db:"cnt"`
}

type countRecord struct {
	Cnt int64 `db:"cnt"`
}

type missingAppID struct {
	AppID *int64 `db:"app_id"`
}

type appIDDuplicate struct {
	AppID           *int64 `db:"app_id"`
	UniqueAppNames  int64  `db:"unique_app_names"`
	UniquePlatforms int64  `db:"unique_platforms"`
}

type nonTargetSegment struct {
	DeviceModel   *string `db:"device_model"`
	DeviceSegment *string `db:"device_segment"`
}

type viewDuplicate struct {
	AppName       *string    `db:"app_name"`
	DeviceModel   *string    `db:"device_model"`
	InstallDate   civil.Date `db:"install_date"`
	Installs      *int64     `db:"installs"`
	DeviceSegment *string    `db:"device_segment"`
	Cnt           int64      `db:"cnt"`
}

type segmentStatus struct {
	DeviceModel   *string `db:"device_model"`
	DeviceSegment string  `db:"device_segment"`
	SegmentStatus string  `db:"segment_status"`
}

type nonTargetUsage struct {
	DeviceModel      *string `db:"device_model"`
	ExpectedSegments string  `db:"expected_segments"`
}

type installsType struct {
	InstallDate civil.Date `db:"install_date"`
	Installs    any        `db:"installs"`
}

type highInstalls struct {
	AppName       *string         `db:"app_name"`
	TotalInstalls decimal.Decimal `db:"total_installs"`
}

type undefinedModel struct {
	AppName       *string `db:"app_name"`
	TotalInstalls int64   `db:"total_installs"`
}

type missingSegment struct {
	DeviceSegment string `db:"device_segment"`
}

// listOf reports one line per decoded row. The headline is rendered with the parameters.
func listOf[T any](headline func(p Params, n int) string, line func(T) string) formatter {
	return func(rs *warehouse.ResultSet, p Params) (report, error) {
		records, err := warehouse.Decode[T](rs)
		if err != nil {
			return report{}, err
		}

		lines := make([]string, len(records))
		for i, rec := range records {
			lines[i] = line(rec)
		}

		return report{headline: headline(p, len(records)), lines: lines, violations: int64(len(records))}, nil
	}
}

// filteredListOf reports the rows accepted by keep; only those count as violations.
func filteredListOf[T any](headline func(p Params, n int) string, keep func(T) bool, line func(T) string) formatter {
	return func(rs *warehouse.ResultSet, p Params) (report, error) {
		records, err := warehouse.Decode[T](rs)
		if err != nil {
			return report{}, err
		}

		var lines []string

		for _, rec := range records {
			if keep(rec) {
				lines = append(lines, line(rec))
			}
		}

		return report{headline: headline(p, len(lines)), lines: lines, violations: int64(len(lines))}, nil
	}
}

// countOf sums the cnt column of count style queries.
func countOf(headline func(p Params, cnt int64) string) formatter {
	return func(rs *warehouse.ResultSet, p Params) (report, error) {
		records, err := warehouse.Decode[countRecord](rs)
		if err != nil {
			return report{}, err
		}

		var total int64
		for _, rec := range records {
			total += rec.Cnt
		}

		return report{headline: headline(p, total), violations: total}, nil
	}
}

// fixed returns a headline that ignores its arguments.
func fixed[N any](text string) func(Params, N) string {
	return func(Params, N) string { return text }
}

// genericRows formats arbitrary rows as "column: value" pairs in column order. Custom rules use it.
func genericRows(headline string) formatter {
	return func(rs *warehouse.ResultSet, _ Params) (report, error) {
		columns := rs.Columns()
		lines := make([]string, 0, rs.Len())

		for row := range rs.All() {
			parts := make([]string, len(columns))
			for i, col := range columns {
				parts[i] = col + ": " + display(row[col])
			}

			lines = append(lines, strings.Join(parts, ", "))
		}

		return report{headline: headline, lines: lines, violations: int64(len(lines))}, nil
	}
}

func str(s *string) string {
	if s == nil {
		return "NULL"
	}

	return *s
}

func num(n *int64) string {
	if n == nil {
		return "NULL"
	}

	return strconv.FormatInt(*n, 10)
}

func display(v any) string {
	switch val := warehouse.PlainValue(v).(type) {
	case nil:
		return "NULL"
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}
