package aggcheck

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"slices"
	"time"

	"cloud.google.com/go/civil"
	"github.com/goccy/go-yaml"
)

// View failure policies
const (
	ViewOnErrorWarn = "warn"
	ViewOnErrorFail = "fail"
)

// Config represents the aggcheck configuration
type Config struct {
	Dialect    string          `yaml:"dialect"`
	EnvFile    string          `yaml:"env_file"`
	Fixtures   FixturesConfig  `yaml:"fixtures"`
	Thresholds Thresholds      `yaml:"thresholds"`
	View       ViewConfig      `yaml:"view"`
	Execution  ExecutionConfig `yaml:"execution"`
	Audit      AuditConfig     `yaml:"audit"`
	Rules      RulesConfig     `yaml:"rules"`
}

// FixturesConfig represents the fixture files loaded into staging tables
type FixturesConfig struct {
	Dir    string         `yaml:"dir"`
	Tables []FixtureTable `yaml:"tables"`
}

// FixtureTable binds a fixture file to a staging table
type FixtureTable struct {
	Name string `yaml:"name"`
	File string `yaml:"file"`
}

// Thresholds holds the business constants baked into the view and the rules.
// The date floors and ua_team literals deliberately differ; rules report the gap.
type Thresholds struct {
	DateFloor      string `yaml:"date_floor"`
	ViewDateFloor  string `yaml:"view_date_floor"`
	InstallCeiling int64  `yaml:"install_ceiling"`
	DeviceUATeam   string `yaml:"device_ua_team"`
	GeoUATeam      string `yaml:"geo_ua_team"`
}

// DateFloorValue returns the parsed date_floor. The value is validated at load time.
func (t Thresholds) DateFloorValue() civil.Date {
	d, _ := civil.ParseDate(t.DateFloor)
	return d
}

// ViewDateFloorValue returns the parsed view_date_floor.
func (t Thresholds) ViewDateFloorValue() civil.Date {
	d, _ := civil.ParseDate(t.ViewDateFloor)
	return d
}

// ViewConfig represents view build settings
type ViewConfig struct {
	Name    string `yaml:"name"`
	OnError string `yaml:"on_error"`
}

// ExecutionConfig represents rule execution settings
type ExecutionConfig struct {
	QueryTimeout     time.Duration `yaml:"query_timeout"`
	Parallel         int           `yaml:"parallel"`
	MaxViolationRows int           `yaml:"max_violation_rows"`
	Verbose          bool          `yaml:"verbose"`
}

// AuditConfig represents where query audit artifacts are written
type AuditConfig struct {
	Dir string `yaml:"dir"`
}

// RulesConfig represents rule selection and user-defined rules
type RulesConfig struct {
	WarnOnly []string     `yaml:"warn_only"`
	Skip     []string     `yaml:"skip"`
	Custom   []CustomRule `yaml:"custom"`
}

// CustomRule is a violation query declared in the configuration file
type CustomRule struct {
	Name        string `yaml:"name"`
	Story       string `yaml:"story"`
	Severity    string `yaml:"severity"`
	Description string `yaml:"description"`
	Query       string `yaml:"query"`
	Pass        string `yaml:"pass"`
}

var ruleNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// LoadConfig loads configuration from the specified file
func LoadConfig(configPath string) (*Config, error) {
	// Load .env / docker.env next to the config first
	err := LoadEnvFiles(filepath.Dir(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load environment files: %w", err)
	}

	// Return default configuration if file doesn't exist
	if !fileExists(configPath) {
		config := DefaultConfig()
		expandConfigEnvVars(config)

		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig parses YAML configuration, applies defaults and validates it
func ParseConfig(data []byte) (*Config, error) {
	var config Config

	// Parse YAML with strict mode to detect unknown fields
	err := yaml.UnmarshalWithOptions(data, &config, yaml.Strict())
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&config)
	expandConfigEnvVars(&config)

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// DialectValue returns the validated dialect
func (c *Config) DialectValue() Dialect {
	return Dialect(c.Dialect)
}

// IsWarnOnly reports whether failures of the named rule are downgraded to warnings
func (c *Config) IsWarnOnly(name string) bool {
	return slices.Contains(c.Rules.WarnOnly, name)
}

// IsSkipped reports whether the named rule is disabled
func (c *Config) IsSkipped(name string) bool {
	return slices.Contains(c.Rules.Skip, name)
}

// ViewName returns the configured view name
func (c *Config) ViewName() string {
	return c.View.Name
}

// validateConfig validates the configuration for common errors and inconsistencies
func validateConfig(config *Config) error {
	if _, err := ParseDialect(config.Dialect); err != nil {
		return fmt.Errorf("%w: %w", ErrConfigValidation, err)
	}

	for _, field := range []struct{ name, value string }{
		{"thresholds.date_floor", config.Thresholds.DateFloor},
		{"thresholds.view_date_floor", config.Thresholds.ViewDateFloor},
	} {
		if _, err := civil.ParseDate(field.value); err != nil {
			return fmt.Errorf("%w: %s: %q is not a YYYY-MM-DD date", ErrConfigValidation, field.name, field.value)
		}
	}

	if config.Thresholds.InstallCeiling <= 0 {
		return fmt.Errorf("%w: thresholds.install_ceiling must be positive", ErrConfigValidation)
	}

	switch config.View.OnError {
	case ViewOnErrorWarn, ViewOnErrorFail:
	default:
		return fmt.Errorf("%w: view.on_error '%s': must be one of warn, fail", ErrConfigValidation, config.View.OnError)
	}

	if config.Execution.QueryTimeout <= 0 {
		return fmt.Errorf("%w: execution.query_timeout must be positive", ErrConfigValidation)
	}

	seen := make(map[string]bool)

	for _, table := range config.Fixtures.Tables {
		if _, ok := Schemas[table.Name]; !ok {
			return fmt.Errorf("%w: fixtures.tables: unknown staging table '%s'", ErrConfigValidation, table.Name)
		}

		if table.File == "" {
			return fmt.Errorf("%w: fixtures.tables: '%s' has no file", ErrConfigValidation, table.Name)
		}

		if seen[table.Name] {
			return fmt.Errorf("%w: fixtures.tables: '%s' listed twice", ErrConfigValidation, table.Name)
		}

		seen[table.Name] = true
	}

	for _, rule := range config.Rules.Custom {
		if !ruleNamePattern.MatchString(rule.Name) {
			return fmt.Errorf("%w: rules.custom: invalid rule name '%s'", ErrConfigValidation, rule.Name)
		}

		if rule.Query == "" {
			return fmt.Errorf("%w: rules.custom: '%s' has no query", ErrConfigValidation, rule.Name)
		}
	}

	return nil
}

// DefaultConfig returns the configuration used when no file is present
func DefaultConfig() *Config {
	config := &Config{}
	applyDefaults(config)

	return config
}

// applyDefaults fills in missing values
func applyDefaults(config *Config) {
	if config.Dialect == "" {
		config.Dialect = string(DialectBigQuery)
	}

	if config.EnvFile == "" {
		config.EnvFile = EnvFileName()
	}

	if config.Fixtures.Dir == "" {
		config.Fixtures.Dir = "data"
	}

	if len(config.Fixtures.Tables) == 0 {
		for _, name := range StagingTables {
			config.Fixtures.Tables = append(config.Fixtures.Tables, FixtureTable{Name: name, File: name + ".json"})
		}
	}

	if config.Thresholds.DateFloor == "" {
		config.Thresholds.DateFloor = "2020-01-01"
	}

	if config.Thresholds.ViewDateFloor == "" {
		config.Thresholds.ViewDateFloor = "2020-02-01"
	}

	if config.Thresholds.InstallCeiling == 0 {
		config.Thresholds.InstallCeiling = 1000000
	}

	if config.Thresholds.DeviceUATeam == "" {
		config.Thresholds.DeviceUATeam = "network"
	}

	if config.Thresholds.GeoUATeam == "" {
		config.Thresholds.GeoUATeam = "Network"
	}

	if config.View.Name == "" {
		config.View.Name = DefaultViewName
	}

	if config.View.OnError == "" {
		config.View.OnError = ViewOnErrorWarn
	}

	if config.Execution.QueryTimeout == 0 {
		config.Execution.QueryTimeout = 60 * time.Second
	}

	if config.Execution.Parallel <= 0 {
		config.Execution.Parallel = runtime.NumCPU()
	}

	if config.Execution.MaxViolationRows <= 0 {
		config.Execution.MaxViolationRows = 50
	}

	for i := range config.Rules.Custom {
		if config.Rules.Custom[i].Pass == "" {
			config.Rules.Custom[i].Pass = "size(rows) == 0"
		}

		if config.Rules.Custom[i].Severity == "" {
			config.Rules.Custom[i].Severity = "normal"
		}

		if config.Rules.Custom[i].Story == "" {
			config.Rules.Custom[i].Story = "Custom"
		}
	}
}

// expandEnvVars expands environment variables in the format ${VAR} or $VAR
func expandEnvVars(s string) string {
	// Pattern for ${VAR} format
	re1 := regexp.MustCompile(`\$\{([^}]+)\}`)
	s = re1.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})

	// Pattern for $VAR format (word boundaries)
	re2 := regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
	s = re2.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[1:])
	})

	return s
}

// expandConfigEnvVars expands environment variables in path-like settings
func expandConfigEnvVars(config *Config) {
	config.EnvFile = expandEnvVars(config.EnvFile)
	config.Fixtures.Dir = expandEnvVars(config.Fixtures.Dir)
	config.Audit.Dir = expandEnvVars(config.Audit.Dir)

	for i, table := range config.Fixtures.Tables {
		config.Fixtures.Tables[i].File = expandEnvVars(table.File)
	}
}
