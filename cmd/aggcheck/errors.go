package main

import "errors"

// Sentinel errors for command operations
var (
	ErrChecksFailed       = errors.New("data quality checks failed")
	ErrInvalidRunPattern  = errors.New("invalid --run pattern")
	ErrNoQuery            = errors.New("no query given: pass SQL as an argument or with --file")
	ErrQueryAndFileBoth   = errors.New("SQL argument and --file are mutually exclusive")
	ErrUnknownCheckFormat = errors.New("unknown check output format")
)
