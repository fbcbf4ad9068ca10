package rules

import "fmt"

const (
	passEmpty    = "size(rows) == 0"
	passZeroCnt  = "rows[0].cnt == 0"
	passAllZero  = "rows.all(r, r.cnt == 0)"
	passNoMissed = "rows.all(r, r.segment_status != 'Missing')"
)

// builtinRules returns fresh copies of the built-in catalog in id order.
func builtinRules() []*Rule {
	return []*Rule{
		{
			ID:          1,
			Name:        "device_models_match",
			Story:       StoryTables,
			Severity:    SeverityCritical,
			Description: "Verifies that all device models from the agg_data table have corresponding entries in the device_segments table, ignoring case.",
			Targets:     []string{"agg_data", "device_segments"},
			Step:        "Checking device model matches",
			Query: `
SELECT DISTINCT UPPER(agg.device_model) AS device_model_upper
FROM {{ table "agg_data" }} AS agg
WHERE UPPER(agg.device_model) NOT IN (
    SELECT DISTINCT UPPER(ds.device_model)
    FROM {{ table "device_segments" }} AS ds
)`,
			Pass: passEmpty,
			format: listOf(fixed[int]("Found devices in agg_data that are missing in device_segments:"),
				func(r unmatchedModel) string { return str(r.DeviceModelUpper) }),
		},
		{
			ID:          2,
			Name:        "app_platform_coverage",
			Story:       StoryTables,
			Severity:    SeverityCritical,
			Description: "Verifies that every (app_name, platform) pair of app_names is covered by at least one (app_short, platform) pair in device_segments.",
			Targets:     []string{"app_names", "device_segments"},
			Step:        "Checking app and platform coverage in device_segments",
			Query: `
SELECT DISTINCT an.app_name, an.platform
FROM {{ table "app_names" }} AS an
WHERE NOT EXISTS (
    SELECT 1
    FROM {{ table "device_segments" }} AS ds
    WHERE ds.app_short = an.app_name AND ds.platform = an.platform
)
ORDER BY an.app_name, an.platform`,
			Pass: passEmpty,
			format: listOf(fixed[int]("Found app/platform pairs without device segments:"),
				func(r appPlatform) string { return fmt.Sprintf("App Name: %s, Platform: %s", str(r.AppName), str(r.Platform)) }),
		},
		{
			ID:          3,
			Name:        "missing_device_data",
			Story:       StoryTables,
			Severity:    SeverityNormal,
			Description: "Tests the presence of corresponding entries in the device_segments table for each record in the agg_data table, ensuring data integrity between apps and devices.",
			Targets:     []string{"agg_data", "app_names", "device_segments"},
			Step:        "Finding unmatched data in device_segments",
			Query: `
SELECT agg.app_id, agg.device_model, an.app_name, an.platform
FROM {{ table "agg_data" }} AS agg
JOIN {{ table "app_names" }} AS an ON agg.app_id = an.app_id
LEFT JOIN {{ table "device_segments" }} AS ds
    ON UPPER(agg.device_model) = UPPER(ds.device_model)
    AND an.app_name = ds.app_short
    AND an.platform = ds.platform
WHERE ds.device_model IS NULL`,
			Pass: passEmpty,
			format: listOf(fixed[int]("Found records in agg_data without matching device models in device_segments:"),
				func(r missingDeviceData) string {
					return fmt.Sprintf("App ID: %s, Device Model: %s, App Name: %s, Platform: %s", num(r.AppID), str(r.DeviceModel), str(r.AppName), str(r.Platform))
				}),
		},
		{
			ID:          4,
			Name:        "device_segments_uniqueness",
			Story:       StoryTables,
			Severity:    SeverityNormal,
			Description: "Verifies the uniqueness of records in the device_segments table based on the combination of device_model and segment.",
			Targets:     []string{"device_segments"},
			Step:        "Finding duplicates in device_segments",
			Query: `
SELECT device_model, segment, COUNT(*) AS cnt
FROM {{ table "device_segments" }}
GROUP BY device_model, segment
HAVING COUNT(*) > 1`,
			Pass: passEmpty,
			format: listOf(fixed[int]("Found duplicates in device_segments:"),
				func(r deviceSegmentDuplicate) string {
					return fmt.Sprintf("Device Model: %s, Segment: %s, Count: %d", str(r.DeviceModel), str(r.Segment), r.Cnt)
				}),
		},
		{
			ID:          5,
			Name:        "agg_data_date_range",
			Story:       StoryTables,
			Severity:    SeverityCritical,
			Description: "Verifies that agg_data holds no installations before the date floor.",
			Targets:     []string{"agg_data"},
			Step:        "Checking the installation date range",
			Query: `
SELECT COUNT(*) AS cnt
FROM {{ table "agg_data" }}
WHERE install_date < {{ date .DateFloor }}`,
			Pass: passZeroCnt,
			format: countOf(func(p Params, n int64) string {
				return fmt.Sprintf("Found installations before '%s': %d", p.DateFloor, n)
			}),
		},
		{
			ID:          6,
			Name:        "agg_data_positive_installs",
			Story:       StoryTables,
			Severity:    SeverityNormal,
			Description: "Verifies that every install value in agg_data is positive.",
			Targets:     []string{"agg_data"},
			Step:        "Finding non-positive install values",
			Query: `
SELECT COUNT(*) AS cnt
FROM {{ table "agg_data" }}
WHERE installs <= 0`,
			Pass: passZeroCnt,
			format: countOf(func(_ Params, n int64) string {
				return fmt.Sprintf("Found non-positive install values: %d", n)
			}),
		},
		{
			ID:          7,
			Name:        "app_names_consistency",
			Story:       StoryTables,
			Severity:    SeverityCritical,
			Description: "Verifies that every app_id from the agg_data table has a corresponding entry in the app_names table.",
			Targets:     []string{"agg_data", "app_names"},
			Step:        "Verifying app_id consistency between agg_data and app_names",
			Query: `
SELECT ad.app_id
FROM {{ table "agg_data" }} AS ad
LEFT JOIN {{ table "app_names" }} AS an ON ad.app_id = an.app_id
WHERE an.app_id IS NULL`,
			Pass: passEmpty,
			format: listOf(fixed[int]("Found app_ids from agg_data missing in app_names:"),
				func(r missingAppID) string { return "App ID: " + num(r.AppID) }),
		},
		{
			ID:          8,
			Name:        "app_names_no_duplicate_ids",
			Story:       StoryTables,
			Severity:    SeverityNormal,
			Description: "Verifies that no app_id in app_names is associated with different app_name or platform values.",
			Targets:     []string{"app_names"},
			Step:        "Finding duplicates for app_id with different app_name or platform",
			Query: `
SELECT app_id, COUNT(DISTINCT app_name) AS unique_app_names, COUNT(DISTINCT platform) AS unique_platforms
FROM {{ table "app_names" }}
GROUP BY app_id
HAVING COUNT(DISTINCT app_name) > 1 OR COUNT(DISTINCT platform) > 1`,
			Pass: passEmpty,
			format: listOf(fixed[int]("Found app_ids with multiple app_names or platforms:"),
				func(r appIDDuplicate) string {
					return fmt.Sprintf("App ID: %s, App Names: %d, Platforms: %d", num(r.AppID), r.UniqueAppNames, r.UniquePlatforms)
				}),
		},
		{
			ID:          9,
			Name:        "app_names_platform_consistency",
			Story:       StoryTables,
			Severity:    SeverityCritical,
			Description: "Verifies that each app name and platform from app_names has a match in device_segments.",
			Targets:     []string{"app_names", "device_segments"},
			Step:        "Verifying consistency of app names and platforms",
			Query: `
SELECT an.app_name, an.platform
FROM {{ table "app_names" }} AS an
LEFT JOIN {{ table "device_segments" }} AS ds
    ON an.app_name = ds.app_short AND an.platform = ds.platform
WHERE ds.app_short IS NULL OR ds.platform IS NULL`,
			Pass: passEmpty,
			format: listOf(fixed[int]("Found inconsistent app names and platforms:"),
				func(r appPlatform) string { return fmt.Sprintf("app_name: %s, platform: %s", str(r.AppName), str(r.Platform)) }),
		},
		{
			ID:          10,
			Name:        "view_install_date_post_floor",
			Story:       StoryView,
			Severity:    SeverityCritical,
			Description: "Testing that there are no app installations in the view before the date floor.",
			Targets:     []string{"v_agg_data"},
			Step:        "Check for no installations before the date floor",
			Query: `
SELECT COUNT(*) AS cnt
FROM {{ table .View }}
WHERE install_date < {{ date .DateFloor }}`,
			Pass: passAllZero,
			format: countOf(func(p Params, n int64) string {
				return fmt.Sprintf("Should be 0 installations before %s, actual: %d", p.DateFloor, n)
			}),
		},
		{
			ID:          11,
			Name:        "view_positive_installs",
			Story:       StoryView,
			Severity:    SeverityCritical,
			Description: "Testing that there are no installations with zero or negative amounts.",
			Targets:     []string{"v_agg_data"},
			Step:        "Check for no installations with non-positive numbers",
			Query: `
SELECT COUNT(*) AS cnt
FROM {{ table .View }}
WHERE installs <= 0`,
			Pass: passAllZero,
			format: countOf(func(_ Params, n int64) string {
				return fmt.Sprintf("Should be 0 installations with non-positive numbers, actual: %d", n)
			}),
		},
		{
			ID:          12,
			Name:        "view_non_target_segments_absent",
			Story:       StoryView,
			Severity:    SeverityNormal,
			Description: "Tests the absence of records with non-target device segments in the view. Non-target segments are unspecified or explicitly marked as the fallback.",
			Targets:     []string{"v_agg_data"},
			Step:        "Check for the absence of non-target device segments",
			Query: `
SELECT device_model, device_segment
FROM {{ table .View }}
WHERE device_segment IS NULL OR device_segment = {{ param .Fallback }}`,
			Pass: passEmpty,
			format: listOf(
				func(_ Params, n int) string { return fmt.Sprintf("Expected 0 non-target device segments, found: %d", n) },
				func(r nonTargetSegment) string {
					return fmt.Sprintf("Device Model: %s, Segment: %s", str(r.DeviceModel), str(r.DeviceSegment))
				}),
		},
		{
			ID:          13,
			Name:        "view_no_duplicates",
			Story:       StoryView,
			Severity:    SeverityNormal,
			Description: "Verifies the absence of duplicates in the view. Duplicates may indicate issues in data collection or processing.",
			Targets:     []string{"v_agg_data"},
			Step:        "Checking for duplicates in the view",
			Query: `
SELECT app_name, device_model, install_date, installs, device_segment, COUNT(*) AS cnt
FROM {{ table .View }}
GROUP BY app_name, device_model, install_date, installs, device_segment
HAVING COUNT(*) > 1`,
			Pass: passEmpty,
			format: listOf(fixed[int]("Duplicates found in the view:"),
				func(r viewDuplicate) string {
					return fmt.Sprintf("App: %s, Device Model: %s, Install Date: %s, Installs: %s, Device Segment: %s, Count: %d",
						str(r.AppName), str(r.DeviceModel), r.InstallDate, num(r.Installs), str(r.DeviceSegment), r.Cnt)
				}),
		},
		{
			ID:          14,
			Name:        "view_proper_segment_use",
			Story:       StoryView,
			Severity:    SeverityCritical,
			Description: "Verifies that the device segments used in the view match those present in the device_segments table.",
			Targets:     []string{"v_agg_data", "device_segments"},
			Step:        "Verifying device segment consistency",
			Query: `
SELECT
    v.device_model,
    v.device_segment,
    CASE WHEN d.device_model IS NULL THEN 'Missing' ELSE 'Present' END AS segment_status
FROM (
    SELECT DISTINCT device_model, device_segment
    FROM {{ table .View }}
    WHERE device_segment != {{ param .Fallback }}
) AS v
LEFT JOIN {{ table "device_segments" }} AS d
    ON v.device_model = d.device_model AND v.device_segment = d.segment`,
			Pass: passNoMissed,
			format: filteredListOf(fixed[int]("Missing device segments found in device_segments:"),
				func(r segmentStatus) bool { return r.SegmentStatus == "Missing" },
				func(r segmentStatus) string {
					return fmt.Sprintf("Device Model: %s, Segment: %s", str(r.DeviceModel), r.DeviceSegment)
				}),
		},
		{
			ID:          15,
			Name:        "view_non_target_device_usage",
			Story:       StoryView,
			Severity:    SeverityCritical,
			Description: "Verifies that the fallback segment is used in the view only when device_segments has no segment for the device model.",
			Targets:     []string{"v_agg_data", "device_segments"},
			Step:        "Checking incorrect use of the fallback segment",
			Query: `
SELECT v.device_model, {{ stringAgg "d.segment" }} AS expected_segments
FROM (
    SELECT DISTINCT device_model
    FROM {{ table .View }}
    WHERE device_segment = {{ param .Fallback }}
) AS v
LEFT JOIN {{ table "device_segments" }} AS d ON v.device_model = d.device_model
GROUP BY v.device_model
HAVING COUNT(d.segment) > 0`,
			Pass: passEmpty,
			format: listOf(
				func(p Params, _ int) string { return fmt.Sprintf("Incorrect use of '%s' found:", p.Fallback) },
				func(r nonTargetUsage) string {
					return fmt.Sprintf("Model: '%s', Expected segments: [%s]", str(r.DeviceModel), r.ExpectedSegments)
				}),
		},
		{
			ID:          16,
			Name:        "view_date_range",
			Story:       StoryView,
			Severity:    SeverityCritical,
			Description: "Testing that the application installation dates are within the expected range.",
			Targets:     []string{"v_agg_data"},
			Step:        "Checking installation dates within the expected range",
			Query: `
SELECT COUNT(*) AS cnt
FROM {{ table .View }}
WHERE install_date < {{ date .DateFloor }} OR install_date > {{ currentDate }}`,
			Pass: passZeroCnt,
			format: countOf(func(p Params, n int64) string {
				return fmt.Sprintf("Found %d installations with dates outside the range after %s and before the current date", n, p.DateFloor)
			}),
		},
		{
			ID:          17,
			Name:        "view_installs_type_consistency",
			Story:       StoryView,
			Severity:    SeverityNormal,
			Description: "Tests the data type consistency of the installs column in the view. All values must cast to a 64-bit integer.",
			Targets:     []string{"v_agg_data"},
			Step:        "Checking data types for installs column",
			Query: `
SELECT install_date, installs
FROM {{ table .View }}
WHERE {{ safeInt64 "installs" }} IS NULL`,
			Pass: passEmpty,
			format: listOf(fixed[int]("Records with invalid installs values found:"),
				func(r installsType) string {
					return fmt.Sprintf("Install Date: %s, Installs: %s", r.InstallDate, display(r.Installs))
				}),
		},
		{
			ID:          18,
			Name:        "view_unrealistic_high_installs",
			Story:       StoryView,
			Severity:    SeverityCritical,
			Description: "Tests for unrealistic high installation values. The total installs of every application must not exceed the ceiling.",
			Targets:     []string{"v_agg_data"},
			Step:        "Checking for unrealistic high install values",
			Query: `
SELECT app_name, SUM(installs) AS total_installs
FROM {{ table .View }}
GROUP BY app_name
HAVING SUM(installs) > {{ param .InstallCeiling }}`,
			Pass: passEmpty,
			format: listOf(
				func(p Params, _ int) string {
					return fmt.Sprintf("Applications with unrealistic high install values found (threshold %d):", p.InstallCeiling)
				},
				func(r highInstalls) string { return fmt.Sprintf("App: %s, Total Installs: %s", str(r.AppName), r.TotalInstalls) }),
		},
		{
			ID:            19,
			Name:          "view_undefined_device_model",
			Story:         StoryView,
			Severity:      SeverityNormal,
			Description:   "Tests for application installs with undefined device models in the view.",
			Targets:       []string{"v_agg_data"},
			Step:          "Checking for installs with undefined device models",
			Informational: true,
			Query: `
SELECT app_name, COUNT(*) AS total_installs
FROM {{ table .View }}
WHERE device_model IS NULL OR device_model = ''
GROUP BY app_name`,
			Pass: passEmpty,
			format: listOf(fixed[int]("Applications with undefined device model installs found:"),
				func(r undefinedModel) string {
					return fmt.Sprintf("App Name: %s, Install Count: %d", str(r.AppName), r.TotalInstalls)
				}),
		},
		{
			ID:          20,
			Name:        "view_segment_existence",
			Story:       StoryView,
			Severity:    SeverityCritical,
			Description: "Verifies that each device segment of the view exists in device_segments or is the fallback segment.",
			Targets:     []string{"v_agg_data", "device_segments"},
			Step:        "Verifying device segment existence",
			Query: `
SELECT DISTINCT v.device_segment
FROM {{ table .View }} AS v
WHERE v.device_segment <> {{ param .Fallback }}
    AND NOT EXISTS (
        SELECT 1 FROM {{ table "device_segments" }} AS ds
        WHERE v.device_segment = ds.segment
    )`,
			Pass: passEmpty,
			format: listOf(fixed[int]("Missing device segments found in the view that are not present in device_segments:"),
				func(r missingSegment) string { return "Segment: " + r.DeviceSegment }),
		},
		{
			ID:          21,
			Name:        "view_date_floor_discrepancy",
			Story:       StoryTables,
			Severity:    SeverityNormal,
			Description: "Counts agg_data rows between the date floor and the view date floor. The view drops them silently.",
			Targets:     []string{"agg_data"},
			Step:        "Checking rows dropped by the view date floor",
			WarnOnly:    true,
			Query: `
SELECT COUNT(*) AS cnt
FROM {{ table "agg_data" }}
WHERE install_date >= {{ date .DateFloor }} AND install_date < {{ date .ViewDateFloor }}`,
			Pass: passZeroCnt,
			format: countOf(func(p Params, n int64) string {
				return fmt.Sprintf("Found %d agg_data rows from %s before %s that the view drops", n, p.DateFloor, p.ViewDateFloor)
			}),
		},
		{
			ID:          22,
			Name:        "ua_team_case_discrepancy",
			Story:       StoryTables,
			Severity:    SeverityNormal,
			Description: "Counts device_segments and geo_segments rows whose ua_team matches the view filter only case-insensitively. The view ignores them.",
			Targets:     []string{"device_segments", "geo_segments"},
			Step:        "Checking ua_team case mismatches",
			WarnOnly:    true,
			Query: `
SELECT
    (SELECT COUNT(*) FROM {{ table "device_segments" }}
     WHERE LOWER(ua_team) = LOWER({{ param .DeviceUATeam }}) AND ua_team <> {{ param .DeviceUATeam }})
  + (SELECT COUNT(*) FROM {{ table "geo_segments" }}
     WHERE LOWER(ua_team) = LOWER({{ param .GeoUATeam }}) AND ua_team <> {{ param .GeoUATeam }}) AS cnt`,
			Pass: passZeroCnt,
			format: countOf(func(p Params, n int64) string {
				return fmt.Sprintf("Found %d segment rows whose ua_team differs from '%s' (devices) or '%s' (geo) only by case",
					n, p.DeviceUATeam, p.GeoUATeam)
			}),
		},
	}
}

