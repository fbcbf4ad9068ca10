package audit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

const maxSlugLength = 60

// Dir writes every step into its own directory below <base>/<run-id>:
//
//	NN-<slug>/query.sql
//	NN-<slug>/rows.json
//	NN-<slug>/step.json
type Dir struct {
	runID string
	path  string
	seq   atomic.Int64
}

// NewDir creates the run directory with a fresh UUIDv7 run id.
func NewDir(base string) (*Dir, error) {
	runID := uuid.Must(uuid.NewV7()).String()
	path := filepath.Join(base, runID)

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	return &Dir{runID: runID, path: path}, nil
}

// RunID returns the id of this run.
func (d *Dir) RunID() string { return d.runID }

// Path returns the run directory.
func (d *Dir) Path() string { return d.path }

func (d *Dir) Record(_ context.Context, step Step) error {
	seq := d.seq.Add(1)
	stepDir := filepath.Join(d.path, fmt.Sprintf("%02d-%s", seq, Slug(step.Description)))

	if err := os.MkdirAll(stepDir, 0o755); err != nil {
		return fmt.Errorf("failed to create audit step directory: %w", err)
	}

	if err := os.WriteFile(filepath.Join(stepDir, "query.sql"), []byte(step.SQL+"\n"), 0o644); err != nil {
		return fmt.Errorf("failed to write query: %w", err)
	}

	rows := step.Rows
	if rows == nil {
		rows = []map[string]any{}
	}

	if err := writeJSON(filepath.Join(stepDir, "rows.json"), rows); err != nil {
		return err
	}

	return writeJSON(filepath.Join(stepDir, "step.json"), step)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}

	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}

	return nil
}

// Slug turns a step description into a file name fragment.
func Slug(description string) string {
	s := strings.Trim(slugPattern.ReplaceAllString(strings.ToLower(description), "-"), "-")
	if len(s) > maxSlugLength {
		s = strings.TrimRight(s[:maxSlugLength], "-")
	}

	if s == "" {
		return "step"
	}

	return s
}
