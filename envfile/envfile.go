// Package envfile rewrites KEY=value files in place, keeping every unrelated line as it was.
package envfile

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// TableKey returns the variable holding the full id of a staging table.
func TableKey(table string) string {
	return "BIGQUERY_TABLE_" + strings.ToUpper(table) + "_ID"
}

// TableUpdates converts table name to table id pairs into env file updates.
func TableUpdates(tableIDs map[string]string) map[string]string {
	updates := make(map[string]string, len(tableIDs))
	for table, id := range tableIDs {
		updates[TableKey(table)] = id
	}

	return updates
}

// Update writes updates into the file at path. Lines assigning one of the keys are
// replaced by KEY='value' and keep a leading "export". Keys not present are appended
// in sorted order and a missing file is created. The new content is written to a
// temporary file and renamed over path.
func Update(path string, updates map[string]string) error {
	content, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	var (
		out     bytes.Buffer
		written = make(map[string]bool, len(updates))
	)

	scanner := bufio.NewScanner(bytes.NewReader(content))
	for scanner.Scan() {
		line := scanner.Text()

		key, ok := assignedKey(line)
		if value, update := updates[key]; ok && update {
			if strings.HasPrefix(strings.TrimSpace(line), "export ") {
				out.WriteString("export ")
			}
			out.WriteString(formatLine(key, value))
			written[key] = true
		} else {
			out.WriteString(line)
		}

		out.WriteByte('\n')
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to scan %s: %w", path, err)
	}

	for _, key := range slices.Sorted(maps.Keys(updates)) {
		if written[key] {
			continue
		}

		out.WriteString(formatLine(key, updates[key]))
		out.WriteByte('\n')
	}

	return writeAtomic(path, out.Bytes())
}

// assignedKey returns the variable assigned by a line, ignoring comments and "export".
func assignedKey(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return "", false
	}

	trimmed = strings.TrimPrefix(trimmed, "export ")

	key, _, found := strings.Cut(trimmed, "=")
	if !found {
		return "", false
	}

	return strings.TrimSpace(key), true
}

func formatLine(key, value string) string {
	return key + "='" + value + "'"
}

func writeAtomic(path string, data []byte) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmp.Name(), err)
	}

	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to chmod %s: %w", tmp.Name(), err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp.Name(), err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}

	return nil
}
