package report

import (
	"fmt"
	"io"

	"github.com/shibukawa/aggcheck/rules"
	"github.com/shibukawa/aggcheck/sqlgen"
	"gopkg.in/yaml.v3"
)

// CatalogEntry is one exported rule.
type CatalogEntry struct {
	ID            int      `yaml:"id"`
	Name          string   `yaml:"name"`
	Story         string   `yaml:"story"`
	Severity      string   `yaml:"severity"`
	Description   string   `yaml:"description"`
	Targets       []string `yaml:"targets,omitempty"`
	Pass          string   `yaml:"pass"`
	Informational bool     `yaml:"informational,omitempty"`
	WarnOnly      bool     `yaml:"warn_only,omitempty"`
	SQL           string   `yaml:"sql"`
	Args          []string `yaml:"args,omitempty"`
}

// CatalogEntries renders every rule for the builder's dialect.
func CatalogEntries(catalog *rules.Catalog, b *sqlgen.Builder) ([]CatalogEntry, error) {
	entries := make([]CatalogEntry, 0, len(catalog.Rules()))

	for _, r := range catalog.Rules() {
		q, err := r.Render(b, catalog.Params())
		if err != nil {
			return nil, fmt.Errorf("failed to render rule %s: %w", r.Name, err)
		}

		entry := CatalogEntry{
			ID:            r.ID,
			Name:          r.Name,
			Story:         string(r.Story),
			Severity:      string(r.Severity),
			Description:   r.Description,
			Targets:       r.Targets,
			Pass:          r.Pass,
			Informational: r.Informational,
			WarnOnly:      r.WarnOnly,
			SQL:           q.SQL,
		}

		for _, arg := range q.Args {
			entry.Args = append(entry.Args, fmt.Sprint(arg))
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

// ExportCatalog writes the rendered catalog as YAML.
func ExportCatalog(w io.Writer, catalog *rules.Catalog, b *sqlgen.Builder) error {
	entries, err := CatalogEntries(catalog, b)
	if err != nil {
		return err
	}

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)

	if err := encoder.Encode(map[string]any{
		"dialect": string(b.Dialect()),
		"rules":   entries,
	}); err != nil {
		return fmt.Errorf("failed to encode catalog: %w", err)
	}

	return encoder.Close()
}
