package aggcheck

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Environment variable names
const (
	EnvCredentials  = "GOOGLE_APPLICATION_CREDENTIALS"
	EnvProjectID    = "GCP_PROJECT_ID"
	EnvDatasetID    = "BIGQUERY_DATASET_ID"
	EnvWarehouseDSN = "WAREHOUSE_DSN"
	EnvRunInDocker  = "RUN_IN_DOCKER"
)

// LookupFunc resolves an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(name string) (string, bool)

// Environment holds the connection parameters resolved from the process environment.
// It is created once and passed to every component that needs it.
type Environment struct {
	Credentials string
	ProjectID   string
	DatasetID   string
	DSN         string

	lookup LookupFunc
}

// LoadEnvironment resolves every parameter the dialect requires and fails on the first absent one.
// BigQuery needs a credentials file, the database/sql dialects need WAREHOUSE_DSN instead.
func LoadEnvironment(dialect Dialect, lookup LookupFunc) (*Environment, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	env := &Environment{lookup: lookup}

	var err error

	if dialect == DialectBigQuery {
		if env.Credentials, err = env.Get(EnvCredentials); err != nil {
			return nil, err
		}
	}

	if env.ProjectID, err = env.Get(EnvProjectID); err != nil {
		return nil, err
	}

	if env.DatasetID, err = env.Get(EnvDatasetID); err != nil {
		return nil, err
	}

	if dialect != DialectBigQuery {
		if env.DSN, err = env.Get(EnvWarehouseDSN); err != nil {
			return nil, err
		}
	}

	return env, nil
}

// Get returns the value of a variable. An unset variable is a ConfigurationError,
// an empty one is returned as is.
func (e *Environment) Get(name string) (string, error) {
	lookup := e.lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	value, ok := lookup(name)
	if !ok {
		return "", &ConfigurationError{Name: name}
	}

	return value, nil
}

// FullTableID returns "project.dataset.table".
func (e *Environment) FullTableID(table string) string {
	return fmt.Sprintf("%s.%s.%s", e.ProjectID, e.DatasetID, table)
}

// EnvFileName returns docker.env when RUN_IN_DOCKER=true and .env otherwise.
func EnvFileName() string {
	if os.Getenv(EnvRunInDocker) == "true" {
		return "docker.env"
	}

	return ".env"
}

// LoadEnvFiles loads the env file selected by EnvFileName from dir if it exists.
// Variables already present in the process environment win.
func LoadEnvFiles(dir string) error {
	path := filepath.Join(dir, EnvFileName())
	if !fileExists(path) {
		return nil
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}

	return nil
}

// fileExists checks if a file exists
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
