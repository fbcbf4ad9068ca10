package aggcheck

import (
	"errors"
	"fmt"
)

// Common errors used throughout the aggcheck packages
var (
	// ErrConfigValidation is returned when configuration validation fails.
	ErrConfigValidation = errors.New("configuration validation failed")
	// ErrMissingEnvironment indicates a required environment variable is not set.
	ErrMissingEnvironment = errors.New("required environment variable is not set")
	// ErrUnknownDialect indicates the configured warehouse dialect is not supported.
	ErrUnknownDialect = errors.New("unknown warehouse dialect")

	// Fixture errors

	// ErrFixtureLoad is wrapped by every LoadError.
	ErrFixtureLoad = errors.New("fixture load failed")
	// ErrUnknownFixtureColumn indicates a fixture object carries a key the schema does not declare.
	ErrUnknownFixtureColumn = errors.New("unknown column in fixture")
	// ErrMissingFixtureColumn indicates a fixture object lacks a declared column.
	ErrMissingFixtureColumn = errors.New("missing column in fixture")
	// ErrFixtureValueType indicates a fixture value does not match the declared column type.
	ErrFixtureValueType = errors.New("fixture value does not match column type")
	// ErrFixtureSyntax indicates the fixture file is not well formed JSON.
	ErrFixtureSyntax = errors.New("fixture is not valid JSON")
	// ErrFixtureNotArray indicates the fixture file is not a JSON array of objects.
	ErrFixtureNotArray = errors.New("fixture must be a JSON array of objects")

	// View errors

	// ErrViewBuild is wrapped by every ViewBuildError.
	ErrViewBuild = errors.New("view build failed")

	// Query errors

	// ErrQueryExecution is wrapped by every QueryExecutionError.
	ErrQueryExecution = errors.New("query execution failed")
	// ErrRowShape indicates a result row does not match the typed record expected by a rule.
	ErrRowShape = errors.New("result row does not match expected record")
	// ErrInvalidIdentifier indicates a table, dataset or project name failed validation.
	ErrInvalidIdentifier = errors.New("invalid SQL identifier")
)

// ConfigurationError reports a required environment value that is absent.
type ConfigurationError struct {
	Name string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("environment variable %s is not set", e.Name)
}

// Unwrap allows errors.Is(err, ErrMissingEnvironment).
func (e *ConfigurationError) Unwrap() error { return ErrMissingEnvironment }

// LoadError reports a fixture that could not be parsed, validated or loaded.
// It is fatal for its table only.
type LoadError struct {
	Table string
	File  string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s from %s: %v", e.Table, e.File, e.Err)
}

func (e *LoadError) Unwrap() []error { return []error{ErrFixtureLoad, e.Err} }

// ViewBuildError reports a failed view DDL statement.
type ViewBuildError struct {
	View string
	Err  error
}

func (e *ViewBuildError) Error() string {
	return fmt.Sprintf("failed to create view %s: %v", e.View, e.Err)
}

func (e *ViewBuildError) Unwrap() []error { return []error{ErrViewBuild, e.Err} }

// QueryErrorKind classifies the origin of a QueryExecutionError.
type QueryErrorKind string

const (
	// QueryErrorWarehouse is a failure reported by the warehouse or its driver.
	QueryErrorWarehouse QueryErrorKind = "warehouse"
	// QueryErrorTimeout is a query that exceeded its deadline.
	QueryErrorTimeout QueryErrorKind = "timeout"
	// QueryErrorInternal is any other failure (decode, audit, programming error).
	QueryErrorInternal QueryErrorKind = "internal"
)

// QueryExecutionError is the uniform wrapper for every failure raised while running a query.
// Callers match on this type instead of driver specific error types.
type QueryExecutionError struct {
	Description string
	SQL         string
	Kind        QueryErrorKind
	Err         error
}

func (e *QueryExecutionError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Description, e.Kind, e.Err)
}

func (e *QueryExecutionError) Unwrap() []error { return []error{ErrQueryExecution, e.Err} }
