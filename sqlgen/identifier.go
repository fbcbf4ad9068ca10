package sqlgen

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shibukawa/aggcheck"
)

// identifierRe allows alphanumeric + underscores, starting with a letter or underscore.
var identifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// projectRe accepts BigQuery project ids, including domain scoped ones (example.com:project).
var projectRe = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9.:-]*[a-zA-Z0-9]$`)

// maxIdentifierLen is the maximum length allowed for a SQL identifier.
const maxIdentifierLen = 128

// ValidateIdentifier checks that name is a safe table, dataset or column identifier.
func ValidateIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", aggcheck.ErrInvalidIdentifier)
	}
	if len(name) > maxIdentifierLen {
		return fmt.Errorf("%w: %q must be at most %d characters", aggcheck.ErrInvalidIdentifier, name, maxIdentifierLen)
	}
	if !identifierRe.MatchString(name) {
		return fmt.Errorf("%w: %q must match [a-zA-Z_][a-zA-Z0-9_]*", aggcheck.ErrInvalidIdentifier, name)
	}
	return nil
}

// ValidateProject checks a BigQuery project id.
func ValidateProject(name string) error {
	if len(name) > maxIdentifierLen || !projectRe.MatchString(name) {
		return fmt.Errorf("%w: invalid project id %q", aggcheck.ErrInvalidIdentifier, name)
	}
	return nil
}

// QuoteIdentifier quotes a single identifier for the dialect. The caller validates first.
func QuoteIdentifier(dialect aggcheck.Dialect, name string) string {
	switch dialect {
	case aggcheck.DialectBigQuery, aggcheck.DialectMySQL:
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	default:
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
}

// QuoteLiteral wraps a string value in single quotes using the dialect's escaping rules.
// BigQuery only understands backslash escapes; MySQL treats backslash as an escape character too.
func QuoteLiteral(dialect aggcheck.Dialect, value string) string {
	switch dialect {
	case aggcheck.DialectBigQuery:
		value = strings.ReplaceAll(value, `\`, `\\`)
		return "'" + strings.ReplaceAll(value, "'", `\'`) + "'"
	case aggcheck.DialectMySQL:
		value = strings.ReplaceAll(value, `\`, `\\`)
		return "'" + strings.ReplaceAll(value, "'", "''") + "'"
	default:
		return "'" + strings.ReplaceAll(value, "'", "''") + "'"
	}
}
