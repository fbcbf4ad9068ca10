package testhelper

import (
	"fmt"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"testing"
)

var (
	whiteSpaces = regexp.MustCompile(`^(\s+)`)
	blankRun    = regexp.MustCompile(`\s+`)
)

// TrimIndent removes the indentation of the second line from every line and drops the
// first (empty) line, so SQL can be written as an indented raw string in tests.
func TrimIndent(t testing.TB, src string) string {
	t.Helper()

	lines := strings.Split(src, "\n")
	if len(lines) < 2 {
		return src
	}

	indent := whiteSpaces.FindString(lines[1])
	for i, line := range lines {
		lines[i] = strings.TrimRight(strings.TrimPrefix(line, indent), " \t")
	}

	return strings.TrimSpace(strings.Join(lines[1:], "\n"))
}

// CollapseSpace normalizes every whitespace run to one space for layout insensitive SQL checks.
func CollapseSpace(sql string) string {
	return strings.TrimSpace(blankRun.ReplaceAllString(sql, " "))
}

// GetCaller returns "(file:line)" of the caller for table driven failure messages.
func GetCaller(t testing.TB) string {
	t.Helper()

	_, file, line, ok := runtime.Caller(1)
	if !ok {
		return "unknown"
	}

	return fmt.Sprintf("(%s:%d)", filepath.Base(file), line)
}
